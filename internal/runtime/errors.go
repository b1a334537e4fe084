package runtime

import "errors"

// Host-level failures. These are returned by the runtime and its services,
// never by the program itself.
var (
	ErrUnknownProgram       = errors.New("runtime: instruction targets an unknown program")
	ErrMissingSignature     = errors.New("runtime: missing required signature")
	ErrInvalidSignature     = errors.New("runtime: invalid signature")
	ErrDuplicateTransaction = errors.New("runtime: transaction already processed")
	ErrAccountNotListed     = errors.New("runtime: account not listed in instruction")
	ErrReadonlyAccount      = errors.New("runtime: account is not writable")
	ErrIllegalOwner         = errors.New("runtime: account not owned by the executing program")
	ErrDataSize             = errors.New("runtime: data length differs from allocated size")
	ErrAccountInUse         = errors.New("runtime: account already in use")
	ErrInsufficientLamports = errors.New("runtime: insufficient lamports")
	ErrNotTokenAccount      = errors.New("runtime: not a token account")
	ErrInvalidMint          = errors.New("runtime: invalid mint")
	ErrMintMismatch         = errors.New("runtime: token accounts have different mints")
	ErrOwnerMismatch        = errors.New("runtime: authority does not own token account")
	ErrAccountFrozen        = errors.New("runtime: token account is frozen")
	ErrInsufficientFunds    = errors.New("runtime: insufficient token balance")
	ErrNonZeroBalance       = errors.New("runtime: token account balance is not zero")
	ErrOverflow             = errors.New("runtime: balance overflow")
)
