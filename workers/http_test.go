package workers

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"goscrow/EVMRPC"
	"goscrow/EVMRPC/evmtest"
	"goscrow/allowance"
	"goscrow/metrics"
	"goscrow/orchestrator"
	"goscrow/repository"
	"goscrow/tokens"
	"goscrow/types"
	"goscrow/workers/handlers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	escrow = evmtest.Addr("escrow")
	alice  = evmtest.Addr("alice")
	bob    = evmtest.Addr("bob")
	tokenX = evmtest.Addr("tokenX")
	tokenY = evmtest.Addr("tokenY")
)

type staticHealth []EVMRPC.EndpointHealth

func (h staticHealth) Health() []EVMRPC.EndpointHealth {
	return h
}

type server struct {
	ledger *evmtest.Ledger
	repo   *repository.Repository
	sched  *Scheduler
	http   *httptest.Server
}

func newServer(t *testing.T, withSigner bool, writeRPS float64, writeBurst int) *server {
	t.Helper()
	ledger := evmtest.NewLedger(escrow, alice)
	ledger.RegisterToken(tokenX, "Token X", "TKX", 18, true)
	ledger.RegisterToken(tokenY, "Token Y", "TKY", 6, true)

	m := metrics.New()
	cache := tokens.NewMetadataCache(ledger, m)
	repo := repository.New(ledger, cache, m)

	var writer EVMRPC.Writer
	if withSigner {
		writer = ledger
	}
	orch := orchestrator.New(ledger, writer, allowance.NewCoordinator(ledger, writer, m), cache, orchestrator.NewTrail(20), m)

	sched := NewScheduler(time.Hour, m)
	sched.Add(
		NewStream(types.StreamOperations, repo.FetchOperations, func(ops []types.Operation) { repo.ApplyOperations(ops) }),
		NewStream(types.StreamTokens, repo.FetchTokens, repo.ApplyTokens),
	)
	orch.SetRefresher(sched)

	api := &handlers.API{
		Ledger:       ledger,
		Repository:   repo,
		Metadata:     cache,
		Orchestrator: orch,
		Poller:       sched,
		Health:       staticHealth{{URL: "http://a", Error: "dial tcp: refused"}, {URL: "http://b", Version: "Geth/v1.13.14"}},
	}
	srv := httptest.NewServer(NewRouter(api, m.Handler(), writeRPS, writeBurst))
	t.Cleanup(srv.Close)
	t.Cleanup(sched.Stop)
	return &server{ledger: ledger, repo: repo, sched: sched, http: srv}
}

func (s *server) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, s.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var raw interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		if m, ok := raw.(map[string]interface{}); ok {
			out = m
		} else {
			out = map[string]interface{}{"list": raw}
		}
	}
	return resp.StatusCode, out
}

func TestHTTP_CreateSameTokenIsBadRequest(t *testing.T) {
	s := newServer(t, true, 100, 5)
	body := `{"tokenA":"` + tokenX.Hex() + `","tokenB":"` + tokenX.Hex() + `","amountA":"1","amountB":"1"}`

	code, out := s.do(t, http.MethodPost, "/operations", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "tokenB", out["field"])
	assert.Equal(t, types.ErrInvalidInput.Error(), out["kind"])
	assert.Empty(t, s.ledger.Calls())
}

func TestHTTP_CreateAndList(t *testing.T) {
	s := newServer(t, true, 100, 5)
	body := `{"tokenA":"` + tokenX.Hex() + `","tokenB":"` + tokenY.Hex() + `","amountA":"10","amountB":"5","duration":7200}`

	code, out := s.do(t, http.MethodPost, "/operations", body)
	require.Equal(t, http.StatusOK, code, out)
	wf := out["workflow"].(map[string]interface{})
	phases := wf["phases"].([]interface{})
	assert.Equal(t, "confirmed", phases[0].(map[string]interface{})["state"])
	assert.Equal(t, "confirmed", phases[1].(map[string]interface{})["state"])

	_, err := s.sched.Refresh(context.Background(), types.StreamOperations)
	require.NoError(t, err)
	code, out = s.do(t, http.MethodGet, "/operations?status=open", "")
	require.Equal(t, http.StatusOK, code)
	ops := out["operations"].([]interface{})
	require.Len(t, ops, 1)
	assert.Equal(t, "5000000", ops[0].(map[string]interface{})["amountB"])
	assert.Equal(t, types.LowerHex(tokenX), ops[0].(map[string]interface{})["tokenA"])

	code, out = s.do(t, http.MethodGet, "/operations?status=completed", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, out["operations"])

	code, _ = s.do(t, http.MethodGet, "/operations/1", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/operations/9", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHTTP_CompleteRevertedKeepsAllowance(t *testing.T) {
	s := newServer(t, true, 100, 5)
	s.ledger.Ops = []types.Operation{{
		ID: big.NewInt(7), Maker: bob, TokenA: tokenX, TokenB: tokenY,
		AmountA: big.NewInt(1), AmountB: big.NewInt(300000), Status: types.StatusOpen,
	}}
	s.ledger.WaitErr["completeOperation"] = types.ErrTransactionReverted

	code, out := s.do(t, http.MethodPost, "/operations/7/complete", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	wf := out["workflow"].(map[string]interface{})
	assert.Equal(t, true, wf["leftoverAllowance"])
}

func TestHTTP_NoSigner(t *testing.T) {
	s := newServer(t, false, 100, 5)
	code, out := s.do(t, http.MethodPost, "/operations/1/cancel", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, types.ErrNoSigningIdentity.Error(), out["kind"])
}

func TestHTTP_AddTokenNotOwner(t *testing.T) {
	s := newServer(t, true, 100, 5)
	s.ledger.OwnerAddr = bob

	code, _ := s.do(t, http.MethodPost, "/tokens", `{"address":"`+evmtest.Addr("new").Hex()+`"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, out := s.do(t, http.MethodGet, "/owner", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, out["isOwner"])
}

func TestHTTP_BadJSON(t *testing.T) {
	s := newServer(t, true, 100, 5)
	code, _ := s.do(t, http.MethodPost, "/tokens", `{"address":`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHTTP_WritesRateLimited(t *testing.T) {
	s := newServer(t, true, 0.001, 1)

	code, _ := s.do(t, http.MethodPost, "/operations/abc/cancel", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPost, "/operations/abc/cancel", "")
	assert.Equal(t, http.StatusTooManyRequests, code)

	// reads are not limited
	for i := 0; i < 3; i++ {
		code, _ = s.do(t, http.MethodGet, "/state", "")
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestHTTP_PauseResume(t *testing.T) {
	s := newServer(t, true, 100, 5)
	require.NoError(t, s.sched.Start(context.Background()))

	code, out := s.do(t, http.MethodPost, "/polling/pause", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paused", out["message"])
	code, _ = s.do(t, http.MethodPost, "/polling/pause", "")
	assert.Equal(t, http.StatusConflict, code)

	code, out = s.do(t, http.MethodGet, "/state", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paused", out["polling"])
	assert.Equal(t, types.LowerHex(alice), out["account"])

	code, _ = s.do(t, http.MethodPost, "/polling/resume", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestHTTP_Health(t *testing.T) {
	s := newServer(t, true, 100, 5)
	code, out := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out["status"])
	assert.Len(t, out["endpoints"], 2)
}

func TestHTTP_TokensAndBalances(t *testing.T) {
	s := newServer(t, true, 100, 5)
	s.ledger.Tokens[tokenX].Balances[escrow] = big.NewInt(1500000000000000000)
	_, err := s.sched.Refresh(context.Background(), types.StreamTokens)
	require.NoError(t, err)

	code, out := s.do(t, http.MethodGet, "/tokens", "")
	require.Equal(t, http.StatusOK, code)
	list := out["list"].([]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, "TKX", list[0].(map[string]interface{})["label"])

	code, out = s.do(t, http.MethodGet, "/tokens/"+evmtest.Addr("unknown").Hex(), "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, out["active"])
	assert.Equal(t, types.LowerHex(evmtest.Addr("unknown")), out["label"])

	code, out = s.do(t, http.MethodGet, "/balances/escrow", "")
	require.Equal(t, http.StatusOK, code)
	balances := out["list"].([]interface{})
	require.Len(t, balances, 2)
	assert.Equal(t, "1.5", balances[0].(map[string]interface{})["balance"])

	code, _ = s.do(t, http.MethodGet, "/balances/nope", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHTTP_Metrics(t *testing.T) {
	s := newServer(t, true, 100, 5)
	_, err := s.sched.Refresh(context.Background(), types.StreamOperations)
	require.NoError(t, err)

	resp, err := http.Get(s.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
