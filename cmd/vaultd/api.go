package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/observability"
	"nft-stake-vault/internal/program"
	"nft-stake-vault/internal/runtime"
	"nft-stake-vault/internal/storage"
	"nft-stake-vault/internal/verification"
)

// maxTxBody bounds the size of a submitted transaction.
const maxTxBody = 1 << 20

// API serves the ledger over HTTP.
type API struct {
	rt       *runtime.Runtime
	verifier verification.Verifier
	logger   *log.Logger
	started time.Time

	upgrader websocket.Upgrader

	mu        sync.Mutex
	submitted int
	committed int
	lastTxID  string
}

// NewAPI creates the HTTP API for rt. verifier may be nil.
func NewAPI(rt *runtime.Runtime, verifier verification.Verifier, logger *log.Logger) *API {
	return &API{
		rt:       rt,
		verifier: verifier,
		logger:   logger,
		started:  time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed mux.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", a.handleStatus)

	mux.HandleFunc("POST /v1/transactions", a.handleSubmit)
	mux.HandleFunc("GET /v1/accounts/{address}", a.handleAccount)
	mux.HandleFunc("GET /v1/stakes/{mint}/history", a.handleMintHistory)
	mux.HandleFunc("GET /v1/stakes/{mint}/verify", a.handleVerify)
	mux.HandleFunc("GET /v1/stakers/{staker}/history", a.handleStakerHistory)
	mux.HandleFunc("GET /v1/events", a.handleEvents)
	mux.HandleFunc("POST /v1/clock", a.handleClock)

	return mux
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	ProgramID   string `json:"program_id"`
	Admin       string `json:"admin"`
	RewardMint  string `json:"reward_mint"`
	LedgerTime  int64  `json:"ledger_time"`
	ManualClock bool   `json:"manual_clock"`
	Submitted   int    `json:"submitted"`
	Committed   int    `json:"committed"`
	LastTxID    string `json:"last_tx_id,omitempty"`
	Subscribers int    `json:"subscribers"`
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := a.rt.Config()
	_, manual := a.rt.Clock().(*runtime.ManualClock)

	a.mu.Lock()
	resp := StatusResponse{
		Status:      "running",
		Uptime:      time.Since(a.started).Round(time.Second).String(),
		ProgramID:   cfg.ProgramID.String(),
		Admin:       cfg.Admin.String(),
		RewardMint:  cfg.RewardMint.String(),
		LedgerTime:  a.rt.Clock().Now(),
		ManualClock: manual,
		Submitted:   a.submitted,
		Committed:   a.committed,
		LastTxID:    a.lastTxID,
		Subscribers: a.rt.Feed().Len(),
	}
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var signed runtime.SignedTransaction
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTxBody)).Decode(&signed); err != nil {
		writeError(w, http.StatusBadRequest, "decode transaction: "+err.Error())
		return
	}
	tx, err := signed.Verify()
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	a.mu.Lock()
	a.submitted++
	a.mu.Unlock()

	receipt, err := a.rt.Execute(r.Context(), tx)
	if err != nil {
		writeJSON(w, submitStatus(err), receipt)
		return
	}

	a.mu.Lock()
	a.committed++
	a.lastTxID = receipt.TxID
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, receipt)
}

// submitStatus maps an execution failure to an HTTP status.
func submitStatus(err error) int {
	if _, ok := program.AsProgramError(err); ok {
		return http.StatusUnprocessableEntity
	}
	switch {
	case errors.Is(err, runtime.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, runtime.ErrMissingSignature), errors.Is(err, runtime.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, runtime.ErrUnknownProgram):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// AccountResponse is the JSON form of a ledger account. Known layouts are
// decoded into Parsed.
type AccountResponse struct {
	Address    domain.Pubkey `json:"address"`
	Owner      domain.Pubkey `json:"owner"`
	Lamports   uint64        `json:"lamports"`
	Data       []byte        `json:"data"`
	Executable bool          `json:"executable"`
	Type       string        `json:"type,omitempty"`
	Parsed     interface{}   `json:"parsed,omitempty"`
}

func (a *API) handleAccount(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r, "address")
	if !ok {
		return
	}
	acct, err := a.rt.Account(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		a.logger.Printf("get account %s: %v", key, err)
		writeError(w, http.StatusInternalServerError, "read account")
		return
	}

	resp := AccountResponse{
		Address:    acct.Address,
		Owner:      acct.Owner,
		Lamports:   acct.Lamports,
		Data:       acct.Data,
		Executable: acct.Executable,
	}
	resp.Type, resp.Parsed = parseAccount(a.rt.Config().ProgramID, acct)
	writeJSON(w, http.StatusOK, resp)
}

// parseAccount decodes vault records and token accounts by owner and size.
func parseAccount(programID domain.Pubkey, acct *domain.Account) (string, interface{}) {
	switch {
	case acct.Owner == programID:
		switch len(acct.Data) {
		case domain.VaultRecordSize:
			if rec, err := domain.DecodeVaultRecord(acct.Data); err == nil {
				return "vault", map[string]interface{}{
					"min_period":    rec.MinPeriod,
					"reward_period": rec.RewardPeriod,
				}
			}
		case domain.WhitelistRecordSize:
			if rec, err := domain.DecodeWhitelistRecord(acct.Data); err == nil {
				return "whitelist", map[string]interface{}{"price": rec.Price}
			}
		case domain.StakeRecordSize:
			if rec, err := domain.DecodeStakeRecord(acct.Data); err == nil {
				return "stake", map[string]interface{}{
					"timestamp": rec.Timestamp,
					"staker":    rec.Staker,
					"active":    rec.Active,
				}
			}
		}
	case acct.Owner == domain.TokenProgramID:
		switch len(acct.Data) {
		case domain.TokenAccountSize:
			if ta, err := domain.DecodeTokenAccount(acct.Data); err == nil {
				return "token_account", map[string]interface{}{
					"mint":   ta.Mint,
					"owner":  ta.Owner,
					"amount": ta.Amount,
					"state":  ta.State,
				}
			}
		case domain.MintSize:
			if m, err := domain.DecodeMint(acct.Data); err == nil {
				return "mint", map[string]interface{}{
					"supply":   m.Supply,
					"decimals": m.Decimals,
				}
			}
		}
	}
	return "", nil
}

func (a *API) handleMintHistory(w http.ResponseWriter, r *http.Request) {
	mint, ok := pathKey(w, r, "mint")
	if !ok {
		return
	}
	a.writeHistory(w, r, func(h storage.StakeEventStore) ([]*domain.StakeEvent, error) {
		return h.GetByMint(r.Context(), mint)
	})
}

func (a *API) handleStakerHistory(w http.ResponseWriter, r *http.Request) {
	staker, ok := pathKey(w, r, "staker")
	if !ok {
		return
	}
	a.writeHistory(w, r, func(h storage.StakeEventStore) ([]*domain.StakeEvent, error) {
		return h.GetByStaker(r.Context(), staker)
	})
}

func (a *API) writeHistory(w http.ResponseWriter, r *http.Request, query func(storage.StakeEventStore) ([]*domain.StakeEvent, error)) {
	history := a.rt.History()
	if history == nil {
		writeError(w, http.StatusNotImplemented, "stake history is not enabled")
		return
	}
	events, err := query(history)
	if err != nil {
		a.logger.Printf("query history %s: %v", r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "query history")
		return
	}
	if events == nil {
		events = []*domain.StakeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleVerify replays the archived history of a mint against the ledger.
func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	mint, ok := pathKey(w, r, "mint")
	if !ok {
		return
	}
	if a.verifier == nil {
		writeError(w, http.StatusNotImplemented, "verification is not enabled")
		return
	}
	result, err := a.verifier.VerifyMint(r.Context(), mint)
	if errors.Is(err, verification.ErrInconsistentHistory) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		a.logger.Printf("verify %s: %v", mint, err)
		writeError(w, http.StatusInternalServerError, "verify mint")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleEvents streams committed stake events over a websocket until the
// client goes away.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Printf("upgrade events socket: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := a.rt.Feed().Subscribe()
	defer cancel()

	// Reader detects the client closing the socket.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				a.logger.Printf("write event: %v", err)
				return
			}
		}
	}
}

// ClockRequest moves a manual ledger clock. Set wins over Advance.
type ClockRequest struct {
	Set     *int64 `json:"set,omitempty"`
	Advance int64  `json:"advance,omitempty"`
}

func (a *API) handleClock(w http.ResponseWriter, r *http.Request) {
	clock, ok := a.rt.Clock().(*runtime.ManualClock)
	if !ok {
		writeError(w, http.StatusConflict, "ledger clock is not manual")
		return
	}
	var req ClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode clock request: "+err.Error())
		return
	}
	now := clock.Now()
	switch {
	case req.Set != nil:
		clock.Set(*req.Set)
		now = *req.Set
	case req.Advance != 0:
		now = clock.Advance(req.Advance)
	}
	a.logger.Printf("ledger clock at %d", now)
	writeJSON(w, http.StatusOK, map[string]int64{"now": now})
}

func pathKey(w http.ResponseWriter, r *http.Request, name string) (domain.Pubkey, bool) {
	key, err := domain.PubkeyFromBase58(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+": "+err.Error())
		return domain.Pubkey{}, false
	}
	return key, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
