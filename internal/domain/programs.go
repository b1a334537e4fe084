package domain

// Well-known program and sysvar addresses of the host ledger.
var (
	SystemProgramID          = MustPubkeyFromBase58("11111111111111111111111111111111")
	TokenProgramID           = MustPubkeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustPubkeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	MetadataProgramID        = MustPubkeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

	RentSysvarID  = MustPubkeyFromBase58("SysvarRent111111111111111111111111111111111")
	ClockSysvarID = MustPubkeyFromBase58("SysvarC1ock11111111111111111111111111111111")
)

// Account is a single addressed storage unit on the ledger.
type Account struct {
	Address    Pubkey
	Owner      Pubkey // program allowed to mutate Data
	Lamports   uint64 // native balance, also pays the storage deposit
	Data       []byte
	Executable bool
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.Data != nil {
		out.Data = make([]byte, len(a.Data))
		copy(out.Data, a.Data)
	}
	return &out
}

// IsOwnedBy reports whether program owns the account.
func (a *Account) IsOwnedBy(program Pubkey) bool {
	return a != nil && a.Owner == program
}

// AccountMeta describes one positional account of an instruction.
type AccountMeta struct {
	Pubkey     Pubkey `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// Meta is a shorthand constructor for AccountMeta.
func Meta(key Pubkey, signer, writable bool) AccountMeta {
	return AccountMeta{Pubkey: key, IsSigner: signer, IsWritable: writable}
}

// Instruction is a program invocation: target program, positional accounts
// and an opaque payload.
type Instruction struct {
	ProgramID Pubkey        `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}
