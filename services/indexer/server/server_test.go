package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/presale"
	"github.com/S3MTFoundationv0/s3mt.xyz/rpc"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/storage"
)

var testSecret = []byte("indexer-test-secret")

type fixture struct {
	server *Server
	alice  crypto.Identity
	bob    crypto.Identity
}

func newFixture(t *testing.T, auth AuthConfig) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	store, err := storage.New(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		alice: crypto.MustDeriveAddress(crypto.SystemProgramID, []byte("alice")),
		bob:   crypto.MustDeriveAddress(crypto.SystemProgramID, []byte("bob")),
	}
	_, err = store.Apply(context.Background(), []rpc.LogEntry{
		{Seq: 1, Kind: presale.LogKindInitialized, Timestamp: 1_700_000_000, Config: &presale.Config{}},
		purchase(2, f.alice, presale.CurrencyStable, 100, 400, 1_700_000_100),
		purchase(3, f.bob, presale.CurrencyNative, 7, 21, 1_700_000_200),
		purchase(4, f.alice, presale.CurrencyNative, 50, 150, 1_700_000_300),
	})
	require.NoError(t, err)

	f.server, err = New(store, auth, nil)
	require.NoError(t, err)
	return f
}

func purchase(seq uint64, buyer crypto.Identity, currency string, amount, allocation uint64, ts int64) rpc.LogEntry {
	view := &rpc.PurchaseView{Buyer: buyer, Currency: currency, AllocationAmount: allocation, Timestamp: ts}
	if currency == presale.CurrencyStable {
		view.StableAmount = amount
	} else {
		view.NativeAmount = amount
	}
	return rpc.LogEntry{Seq: seq, Kind: presale.LogKindPurchase, Timestamp: ts, Purchase: view}
}

func (f *fixture) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func sign(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestHealthAndTotals(t *testing.T) {
	f := newFixture(t, AuthConfig{})

	rec := f.get(t, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"cursor":4`)

	rec = f.get(t, "/v1/totals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var totals TotalsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &totals))
	require.Equal(t, int64(3), totals.Purchases)
	require.Equal(t, "100", totals.StableTotal)
	require.Equal(t, "57", totals.NativeTotal)
	require.Equal(t, "571", totals.AllocationTotal)
	require.Equal(t, int64(1), totals.ByCurrency[presale.CurrencyStable])
	require.Equal(t, int64(2), totals.ByCurrency[presale.CurrencyNative])
}

func TestBuyerSummary(t *testing.T) {
	f := newFixture(t, AuthConfig{})

	rec := f.get(t, "/v1/buyers/"+f.alice.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary storage.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, int64(2), summary.Purchases)
	require.Equal(t, "550", summary.AllocationTotal)
	require.Equal(t, int64(1_700_000_100), summary.FirstPurchase)
	require.Equal(t, int64(1_700_000_300), summary.LastPurchase)

	rec = f.get(t, "/v1/buyers/not-base58!", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchasesPaging(t *testing.T) {
	f := newFixture(t, AuthConfig{})

	rec := f.get(t, "/v1/purchases?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page PurchasePage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Purchases, 2)
	require.Equal(t, uint64(3), page.Next)

	rec = f.get(t, fmt.Sprintf("/v1/purchases?after=%d", page.Next), "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Purchases, 1)
	require.Equal(t, uint64(4), page.Purchases[0].Seq)

	rec = f.get(t, "/v1/purchases?buyer="+f.bob.String(), "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Purchases, 1)
	require.Equal(t, uint64(7), page.Purchases[0].NativeAmount)

	for _, bad := range []string{"?limit=0", "?after=-1", "?from=yesterday", "?from=200&to=100"} {
		rec = f.get(t, "/v1/purchases"+bad, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestExportRequiresToken(t *testing.T) {
	f := newFixture(t, AuthConfig{Secret: testSecret, Issuer: "presale", Audience: "analytics", ClockSkew: time.Second})
	exp := time.Now().Add(time.Hour).Unix()

	rec := f.get(t, "/v1/export.parquet", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	wrongKey := sign(t, []byte("other"), jwt.MapClaims{"iss": "presale", "aud": "analytics", "scope": "export", "exp": exp})
	require.Equal(t, http.StatusUnauthorized, f.get(t, "/v1/export.parquet", wrongKey).Code)

	wrongAudience := sign(t, testSecret, jwt.MapClaims{"iss": "presale", "aud": "billing", "scope": "export", "exp": exp})
	require.Equal(t, http.StatusUnauthorized, f.get(t, "/v1/export.parquet", wrongAudience).Code)

	expired := sign(t, testSecret, jwt.MapClaims{"iss": "presale", "aud": "analytics", "scope": "export", "exp": time.Now().Add(-time.Hour).Unix()})
	require.Equal(t, http.StatusUnauthorized, f.get(t, "/v1/export.parquet", expired).Code)

	noScope := sign(t, testSecret, jwt.MapClaims{"iss": "presale", "aud": "analytics", "scope": "read", "exp": exp})
	require.Equal(t, http.StatusForbidden, f.get(t, "/v1/export.parquet", noScope).Code)

	good := sign(t, testSecret, jwt.MapClaims{"iss": "presale", "aud": []string{"analytics"}, "scope": "read export", "exp": exp})
	rec = f.get(t, "/v1/export.parquet?from=1700000150", good)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-Row-Count"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), ".parquet")
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PAR1")))
}

func TestExportDisabledWithoutSecret(t *testing.T) {
	f := newFixture(t, AuthConfig{})
	rec := f.get(t, "/v1/export.parquet", "anything")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRejectsNonHMACTokens(t *testing.T) {
	f := newFixture(t, AuthConfig{Secret: testSecret})
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"scope": "export", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, f.get(t, "/v1/export.parquet", token).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, AuthConfig{})
	rec := f.get(t, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
}
