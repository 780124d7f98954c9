package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/presale"
	"github.com/S3MTFoundationv0/s3mt.xyz/rpc"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/config"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/server"
)

func writeConfig(t *testing.T, nodeURL string) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	doc := fmt.Sprintf(`listen: "127.0.0.1:0"
node_url: %q
database:
  driver: sqlite
  dsn: "file:%s?mode=memory&cache=shared"
poll:
  interval: "10ms"
  batch_size: 10
  max_backoff: "50ms"
`, nodeURL, uuid.NewString())
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestServiceIngestsMaximalAllocation(t *testing.T) {
	buyer := crypto.MustDeriveAddress(crypto.SystemProgramID, []byte("whale"))
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/presale/log" {
			http.NotFound(w, r)
			return
		}
		page := rpc.LogPage{Head: 1}
		if r.URL.Query().Get("after") == "0" {
			page.Records = []rpc.LogEntry{{
				Seq:       1,
				Kind:      presale.LogKindPurchase,
				Timestamp: 1_700_000_000,
				Purchase: &rpc.PurchaseView{
					Buyer:            buyer,
					Currency:         presale.CurrencyNative,
					NativeAmount:     1,
					AllocationAmount: math.MaxUint64,
					Timestamp:        1_700_000_000,
				},
			}}
			page.Next = 1
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer node.Close()

	svc, err := newService(writeConfig(t, node.URL), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer svc.Close()

	n, err := svc.ingester.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = svc.ingester.Tick(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	rec := httptest.NewRecorder()
	svc.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/purchases", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page server.PurchasePage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Purchases, 1)
	require.Equal(t, uint64(math.MaxUint64), page.Purchases[0].AllocationAmount)

	rec = httptest.NewRecorder()
	svc.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServiceRejectsBadDatabase(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1")
	cfg.Database.Driver = "mysql"
	_, err := newService(cfg, slog.Default())
	require.Error(t, err)
}
