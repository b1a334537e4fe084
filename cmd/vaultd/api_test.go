package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
	"nft-stake-vault/internal/program"
	"nft-stake-vault/internal/runtime"
	"nft-stake-vault/internal/storage/memory"
	"nft-stake-vault/internal/verification"
)

const apiT0 = int64(1_700_000_000)

var apiProgramID = domain.MustPubkeyFromBase58("Stake11111111111111111111111111111111111111")

func seedKey(seed byte) (ed25519.PrivateKey, domain.Pubkey) {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	var pk domain.Pubkey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return priv, pk
}

type apiEnv struct {
	t      *testing.T
	cfg    program.Config
	rt     *runtime.Runtime
	clock  *runtime.ManualClock
	server *httptest.Server

	adminKey, holderKey      ed25519.PrivateKey
	admin, holder            domain.Pubkey
	rewardMint, nft, creator domain.Pubkey
	nonce                    uint64
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	e := &apiEnv{t: t, clock: runtime.NewManualClock(apiT0)}
	e.adminKey, e.admin = seedKey(1)
	e.holderKey, e.holder = seedKey(2)
	_, e.rewardMint = seedKey(10)
	_, e.nft = seedKey(11)
	_, e.creator = seedKey(12)
	e.cfg = program.Config{ProgramID: apiProgramID, Admin: e.admin, RewardMint: e.rewardMint}

	store := memory.NewAccountStore()
	history := memory.NewStakeEventStore()
	g := &runtime.Genesis{
		Wallets: []runtime.GenesisWallet{
			{Address: e.admin, Lamports: 10_000_000_000},
			{Address: e.holder, Lamports: 10_000_000_000},
		},
		Mints: []runtime.GenesisMint{
			{Address: e.rewardMint, Decimals: 6, Supply: 1_000_000_000},
			{Address: e.nft, Supply: 1},
		},
		TokenAccounts: []runtime.GenesisTokenAccount{{Wallet: e.holder, Mint: e.nft, Amount: 1}},
		Metadata: []runtime.GenesisMetadata{{
			Mint:            e.nft,
			UpdateAuthority: e.creator,
			Name:            "API #1",
			Creators:        []domain.Creator{{Address: e.creator, Verified: true, Share: 100}},
		}},
		VaultReward: 1_000_000,
	}
	require.NoError(t, g.Apply(context.Background(), store, e.cfg, domain.DefaultRent()))

	rt, err := runtime.New(runtime.Options{
		Config:  e.cfg,
		Store:   store,
		History: history,
		Clock:   e.clock,
		Logger:  log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	e.rt = rt

	verifier := verification.NewLedgerVerifier(verification.LedgerVerifierOptions{
		ProgramID: apiProgramID,
		Accounts:  store,
		History:   history,
	})
	e.server = httptest.NewServer(NewAPI(rt, verifier, log.New(io.Discard, "", 0)).Handler())
	t.Cleanup(e.server.Close)
	return e
}

// signedBy returns a signer for key that takes an instruction builder's
// result directly, e.g. e.signedBy(key)(program.NewStakeInstruction(...)).
func (e *apiEnv) signedBy(key ed25519.PrivateKey) func(domain.Instruction, error) *runtime.SignedTransaction {
	return func(ix domain.Instruction, err error) *runtime.SignedTransaction {
		e.t.Helper()
		require.NoError(e.t, err)
		e.nonce++
		stx, err := runtime.Sign(ix, e.nonce, key)
		require.NoError(e.t, err)
		return stx
	}
}

func (e *apiEnv) post(path string, body interface{}) (*http.Response, []byte) {
	e.t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(e.t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(e.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp, out
}

func (e *apiEnv) get(path string) (*http.Response, []byte) {
	e.t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp, out
}

func (e *apiEnv) submit(stx *runtime.SignedTransaction) (int, runtime.Receipt) {
	e.t.Helper()
	resp, body := e.post("/v1/transactions", stx)
	var receipt runtime.Receipt
	require.NoError(e.t, json.Unmarshal(body, &receipt), string(body))
	return resp.StatusCode, receipt
}

func (e *apiEnv) ready() {
	e.t.Helper()
	status, r := e.submit(e.signedBy(e.adminKey)(program.NewConfigureVaultInstruction(e.cfg, 86400, 3600)))
	require.Equal(e.t, http.StatusOK, status, r.Err)
	status, r = e.submit(e.signedBy(e.adminKey)(program.NewSetPriceInstruction(e.cfg, e.creator, 10)))
	require.Equal(e.t, http.StatusOK, status, r.Err)
}

func TestAPI_StakeLifecycle(t *testing.T) {
	e := newAPIEnv(t)
	e.ready()

	status, receipt := e.submit(e.signedBy(e.holderKey)(program.NewStakeInstruction(e.cfg, e.holder, e.nft, e.creator)))
	require.Equal(t, http.StatusOK, status, receipt.Err)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, domain.StakeEventStake, receipt.Events[0].Kind)
	assert.NotEmpty(t, receipt.TxID)

	// Too early: the program rejects it and nothing is committed.
	status, receipt = e.submit(e.signedBy(e.holderKey)(program.NewUnstakeInstruction(e.cfg, e.holder, e.nft, e.creator)))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, receipt.Err, "TooEarly")

	resp, body := e.post("/v1/clock", ClockRequest{Advance: 90000})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"now": 1700090000}`, string(body))

	status, receipt = e.submit(e.signedBy(e.holderKey)(program.NewUnstakeInstruction(e.cfg, e.holder, e.nft, e.creator)))
	require.Equal(t, http.StatusOK, status, receipt.Err)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, uint64(250), receipt.Events[0].Reward)

	resp, body = e.get("/v1/stakes/" + e.nft.String() + "/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []domain.StakeEvent
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 2)
	assert.Equal(t, domain.StakeEventStake, history[0].Kind)
	assert.Equal(t, domain.StakeEventUnstake, history[1].Kind)

	resp, body = e.get("/v1/stakers/" + e.holder.String() + "/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &history))
	assert.Len(t, history, 2)

	resp, body = e.get("/v1/stakes/" + e.nft.String() + "/verify")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result verification.VerificationResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Match, "%+v", result.Divergences)
	assert.Equal(t, 2, result.Events)
}

func TestAPI_RejectsTamperedSignature(t *testing.T) {
	e := newAPIEnv(t)
	stx := e.signedBy(e.adminKey)(program.NewConfigureVaultInstruction(e.cfg, 86400, 3600))
	stx.Nonce++

	resp, _ := e.post("/v1/transactions", stx)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_RejectsReplay(t *testing.T) {
	e := newAPIEnv(t)
	stx := e.signedBy(e.adminKey)(program.NewConfigureVaultInstruction(e.cfg, 86400, 3600))

	status, _ := e.submit(stx)
	require.Equal(t, http.StatusOK, status)
	status, _ = e.submit(stx)
	assert.Equal(t, http.StatusConflict, status)
}

func TestAPI_RejectsMalformedBody(t *testing.T) {
	e := newAPIEnv(t)
	resp, err := http.Post(e.server.URL+"/v1/transactions", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Account(t *testing.T) {
	e := newAPIEnv(t)
	e.ready()

	vault, _, err := pda.VaultAddress(apiProgramID)
	require.NoError(t, err)

	resp, body := e.get("/v1/accounts/" + vault.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var acct struct {
		Owner  string                 `json:"owner"`
		Type   string                 `json:"type"`
		Parsed map[string]interface{} `json:"parsed"`
	}
	require.NoError(t, json.Unmarshal(body, &acct))
	assert.Equal(t, apiProgramID.String(), acct.Owner)
	assert.Equal(t, "vault", acct.Type)
	assert.EqualValues(t, 86400, acct.Parsed["min_period"])

	holderNFT, err := pda.AssociatedTokenAddress(e.holder, e.nft)
	require.NoError(t, err)
	resp, body = e.get("/v1/accounts/" + holderNFT.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &acct))
	assert.Equal(t, "token_account", acct.Type)
	assert.EqualValues(t, 1, acct.Parsed["amount"])

	resp, _ = e.get("/v1/accounts/not-a-key")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, absent := seedKey(99)
	resp, _ = e.get("/v1/accounts/" + absent.String())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_EventStream(t *testing.T) {
	e := newAPIEnv(t)
	e.ready()

	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return e.rt.Feed().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	status, receipt := e.submit(e.signedBy(e.holderKey)(program.NewStakeInstruction(e.cfg, e.holder, e.nft, e.creator)))
	require.Equal(t, http.StatusOK, status, receipt.Err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev domain.StakeEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.StakeEventStake, ev.Kind)
	assert.Equal(t, e.nft, ev.Mint)
	assert.Equal(t, receipt.TxID, ev.TxID)

	conn.Close()
	require.Eventually(t, func() bool { return e.rt.Feed().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAPI_StatusAndClock(t *testing.T) {
	e := newAPIEnv(t)

	resp, body := e.post("/v1/clock", map[string]int64{"set": apiT0 + 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"now": 1700000005}`, string(body))

	resp, body = e.get("/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st StatusResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, apiProgramID.String(), st.ProgramID)
	assert.True(t, st.ManualClock)
	assert.Equal(t, apiT0+5, st.LedgerTime)

	resp, _ = e.get("/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
