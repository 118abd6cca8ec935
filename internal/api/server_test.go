package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"oracle-pricefeed/internal/codec"
	"oracle-pricefeed/internal/committee"
	"oracle-pricefeed/internal/merkle"
	"oracle-pricefeed/internal/oracle"
	"oracle-pricefeed/internal/service"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, oracle.Event) error { return nil }

func newTestServer(t *testing.T) (*Server, *committee.Signer) {
	t.Helper()

	engine := service.NewEngine(service.Options{HCCWindowSize: 3, HCCBandWidth: 1, HCCPairs: []uint32{1}},
		oracle.NewStaticAuthorizer([]string{"admin"}), oracle.WallClock{}, nopNotifier{}, zerolog.Nop())

	signer := committee.NewSignerFromSecret(big.NewInt(31337))
	pub := signer.PublicKey()
	if err := engine.SeedCommittee(1, pub[:]); err != nil {
		t.Fatalf("seed committee: %v", err)
	}

	return NewServer(Options{ListenAddr: ":0"}, engine, zerolog.Nop()), signer
}

func signedPayload(t *testing.T, signer *committee.Signer, entries ...oracle.PriceEntry) string {
	t.Helper()

	leaves := make([]common.Hash, len(entries))
	for i := range entries {
		leaves[i] = entries[i].LeafHash()
	}
	flags := make([]bool, len(entries)-1)
	for i := range flags {
		flags[i] = true
	}

	root, err := merkle.ComputeRoot(leaves, nil, flags)
	if err != nil {
		t.Fatalf("compute root: %v", err)
	}
	sig, err := signer.Sign(root[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	raw := codec.Encode(&oracle.OracleProof{Blocks: []oracle.ProofBlock{{
		CommitteeID: 1,
		Root:        root,
		Signature:   sig,
		Leaves:      entries,
		Flags:       flags,
	}}})
	return hexutil.Encode(raw)
}

func liveEntry(pairID uint32, value uint64, offset uint64) oracle.PriceEntry {
	now := oracle.WallClock{}.Now()
	return oracle.PriceEntry{
		PairID:    pairID,
		Value:     *uint256.NewInt(value),
		Decimal:   6,
		Timestamp: now,
		Round:     now + offset,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func ingest(t *testing.T, srv *Server, signer *committee.Signer, entries ...oracle.PriceEntry) {
	t.Helper()
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/ingest",
		map[string]string{"payload": signedPayload(t, signer, entries...)}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIngestAndGetPrice(t *testing.T) {
	srv, signer := newTestServer(t)

	ingest(t, srv, signer, liveEntry(1, 2_500_000, 0))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/price/1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var got priceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PairID != 1 || got.Value != "2500000" || got.Decimal != 6 {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestGetPriceNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/price/42", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetPriceBadPairID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/price/abc", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetPricesOmitsMissing(t *testing.T) {
	srv, signer := newTestServer(t)
	ingest(t, srv, signer, liveEntry(1, 100, 0), liveEntry(3, 300, 0))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/prices?pairs=1,2,3", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Prices []priceResponse `json:"prices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(got.Prices))
	}
}

func TestGetDerived(t *testing.T) {
	srv, signer := newTestServer(t)

	two := liveEntry(1, 0, 0)
	two.Decimal = 18
	two.Value = *new(uint256.Int).Mul(uint256.NewInt(2), new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18)))
	four := liveEntry(2, 0, 0)
	four.Decimal = 18
	four.Value = *new(uint256.Int).Mul(uint256.NewInt(4), new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18)))
	ingest(t, srv, signer, two, four)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/derived?pair_a=1&pair_b=2&op=multiply", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var got derivedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Value != "8000000000000000000" || got.Decimal != 18 {
		t.Fatalf("unexpected derived price: %+v", got)
	}
}

func TestGetDerivedSamePairIsBadRequest(t *testing.T) {
	srv, signer := newTestServer(t)
	ingest(t, srv, signer, liveEntry(1, 100, 0))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/derived?pair_a=1&pair_b=1&op=multiply", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHCCStates(t *testing.T) {
	srv, signer := newTestServer(t)
	ingest(t, srv, signer, liveEntry(1, 100, 0))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/hcc?pairs=1,2", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		States []pairStateResponse `json:"states"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Pair 2 is not opted in and is omitted.
	if len(got.States) != 1 || got.States[0].State != "insufficient_history" {
		t.Fatalf("unexpected states: %+v", got.States)
	}
}

func TestIngestRejectsForgedBatch(t *testing.T) {
	srv, _ := newTestServer(t)
	forger := committee.NewSignerFromSecret(big.NewInt(999))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/ingest",
		map[string]string{"payload": signedPayload(t, forger, liveEntry(1, 100, 0))}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIngestUnknownCommitteeIsUnauthorized(t *testing.T) {
	srv, signer := newTestServer(t)

	entry := liveEntry(1, 100, 0)
	root := entry.LeafHash()
	sig, err := signer.Sign(root[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw := codec.Encode(&oracle.OracleProof{Blocks: []oracle.ProofBlock{{
		CommitteeID: 99,
		Root:        root,
		Signature:   sig,
		Leaves:      []oracle.PriceEntry{entry},
	}}})

	// An unregistered committee is an authentication failure on ingest,
	// unlike the committee lookup route where a missing id is 404.
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/ingest",
		map[string]string{"payload": hexutil.Encode(raw)}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIngestRejectsBadHex(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/ingest",
		map[string]string{"payload": "not-hex"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCommitteeAdminEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	newcomer := committee.NewSignerFromSecret(big.NewInt(555))
	pub := newcomer.PublicKey()

	body := map[string]any{"committee_id": 7, "public_key": hexutil.Encode(pub[:])}

	// Unauthenticated caller.
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/committees", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	admin := map[string]string{callerHeader: "admin"}
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/committees", body, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/committees/7", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PublicKey != hexutil.Encode(pub[:]) {
		t.Fatalf("unexpected key: %s", got.PublicKey)
	}

	rec = doJSON(t, srv.Handler(), http.MethodDelete, "/v1/committees/7", nil, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/v1/committees/7", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after removal, got %d", rec.Code)
	}
}

func TestRegisterCommitteeBadKey(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := map[string]string{callerHeader: "admin"}

	body := map[string]any{"committee_id": 7, "public_key": fmt.Sprintf("0x%x", make([]byte, 20))}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/committees", body, admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short key, got %d", rec.Code)
	}
}
