package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/observability"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/export"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/models"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/storage"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// Server exposes indexed presale data over HTTP.
type Server struct {
	store   *storage.Store
	auth    *authenticator
	logger  *slog.Logger
	metrics *observability.IndexerMetrics
	handler http.Handler
}

// New builds the router.
func New(store *storage.Store, auth AuthConfig, logger *slog.Logger) (*Server, error) {
	if store == nil {
		return nil, errors.New("indexer server: store required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:   store,
		auth:    &authenticator{cfg: auth, logger: logger},
		logger:  logger,
		metrics: observability.Indexer(),
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/totals", s.handleTotals)
		r.Get("/buyers/{buyer}", s.handleBuyer)
		r.Get("/purchases", s.handlePurchases)
		r.With(s.auth.require(ExportScope)).Get("/export.parquet", s.handleExport)
	})
	s.handler = otelhttp.NewHandler(r, "presale.indexer")
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	cursor, err := s.store.Cursor(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cursor": cursor})
}

// TotalsResponse aggregates every indexed purchase.
type TotalsResponse struct {
	storage.Summary
	ByCurrency map[string]int64 `json:"byCurrency"`
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.Summarize(r.Context(), "")
	if err != nil {
		s.internalError(w, err)
		return
	}
	counts, err := s.store.CountByCurrency(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TotalsResponse{Summary: *summary, ByCurrency: counts})
}

func (s *Server) handleBuyer(w http.ResponseWriter, r *http.Request) {
	buyer, err := crypto.ParseIdentity(chi.URLParam(r, "buyer"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid buyer")
		return
	}
	summary, err := s.store.Summarize(r.Context(), buyer.String())
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// PurchaseView is one indexed purchase.
type PurchaseView struct {
	Seq              uint64 `json:"seq"`
	RequestID        string `json:"requestId"`
	Buyer            string `json:"buyer"`
	Currency         string `json:"currency"`
	StableAmount     uint64 `json:"stableAmount"`
	NativeAmount     uint64 `json:"nativeAmount"`
	AllocationAmount uint64 `json:"allocationAmount"`
	Timestamp        int64  `json:"timestamp"`
}

// PurchasePage is a cursor-paged purchase listing.
type PurchasePage struct {
	Purchases []PurchaseView `json:"purchases"`
	Next      uint64         `json:"next"`
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultPageLimit
	}
	rows, err := s.store.Purchases(r.Context(), q)
	if err != nil {
		s.internalError(w, err)
		return
	}
	page := PurchasePage{Purchases: make([]PurchaseView, 0, len(rows)), Next: q.After}
	for _, p := range rows {
		page.Purchases = append(page.Purchases, toView(p))
		page.Next = p.Seq
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		s.metrics.RecordExport("rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var buf bytes.Buffer
	rows, err := export.WritePurchases(r.Context(), &buf, s.store, q)
	if err != nil {
		s.metrics.RecordExport("failed")
		s.internalError(w, err)
		return
	}
	s.metrics.RecordExport("ok")
	name := "presale-purchases-" + time.Now().UTC().Format("20060102T150405Z") + ".parquet"
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("X-Row-Count", strconv.Itoa(rows))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func parseQuery(r *http.Request) (storage.PurchaseQuery, error) {
	query := r.URL.Query()
	var q storage.PurchaseQuery
	if raw := strings.TrimSpace(query.Get("buyer")); raw != "" {
		buyer, err := crypto.ParseIdentity(raw)
		if err != nil {
			return q, errors.New("invalid buyer")
		}
		q.Buyer = buyer.String()
	}
	if raw := strings.TrimSpace(query.Get("after")); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return q, errors.New("after must be an unsigned integer")
		}
		q.After = after
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return q, errors.New("limit must be a positive integer")
		}
		q.Limit = min(limit, maxPageLimit)
	}
	var err error
	if q.From, err = parseTime(query.Get("from")); err != nil {
		return q, errors.New("from must be RFC3339 or unix seconds")
	}
	if q.To, err = parseTime(query.Get("to")); err != nil {
		return q, errors.New("to must be RFC3339 or unix seconds")
	}
	if q.From != 0 && q.To != 0 && q.To <= q.From {
		return q, errors.New("to must be after from")
	}
	return q, nil
}

func parseTime(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return secs, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, err
	}
	return ts.Unix(), nil
}

func toView(p models.Purchase) PurchaseView {
	return PurchaseView{
		Seq:              p.Seq,
		RequestID:        p.RequestID,
		Buyer:            p.Buyer,
		Currency:         p.Currency,
		StableAmount:     uint64(p.StableAmount),
		NativeAmount:     uint64(p.NativeAmount),
		AllocationAmount: uint64(p.AllocationAmount),
		Timestamp:        p.PurchasedAt,
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("indexer request failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
