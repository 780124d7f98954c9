package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/S3MTFoundationv0/s3mt.xyz/core"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/state"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
	"github.com/S3MTFoundationv0/s3mt.xyz/crypto"
	"github.com/S3MTFoundationv0/s3mt.xyz/native/presale"
)

const defaultLogLimit = 100

var zeroIdentity crypto.Identity

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	head, err := s.processor.LogHead()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, 0, "Unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "logHead": head})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, 0, "InvalidArgument", "failed to read request body")
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, 0, "InvalidArgument", "request body too large")
		return
	}
	var req types.Request
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, uint32(presale.CodeInvalidArgument), "InvalidArgument", "invalid request body: "+err.Error())
		return
	}
	receipt, err := s.processor.Submit(r.Context(), &req)
	if err != nil {
		s.writeProcessorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	cfg, err := s.processor.Config()
	if err != nil {
		s.writeProcessorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConfigView{
		ProgramID:           s.processor.ProgramID(),
		ConfigAddress:       s.processor.ConfigAddress(),
		Admin:               cfg.Admin,
		Treasury:            cfg.Treasury,
		AcceptedStableAsset: cfg.AcceptedStableAsset,
		Paused:              cfg.Paused,
	})
}

func (s *Server) handleAddresses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, AddressesView{
		ProgramID:              s.processor.ProgramID(),
		ConfigAddress:          s.processor.ConfigAddress(),
		SystemProgram:          crypto.SystemProgramID,
		TokenProgram:           crypto.TokenProgramID,
		AssociatedTokenProgram: crypto.AssociatedTokenProgramID,
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	id, err := crypto.ParseIdentity(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, uint32(presale.CodeInvalidArgument), "InvalidArgument", "invalid account id")
		return
	}
	acc, err := s.processor.Account(id)
	if err != nil {
		s.writeProcessorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(id, acc, s.processor.ProgramID()))
}

func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	owner, err := crypto.ParseIdentity(strings.TrimSpace(query.Get("owner")))
	if err != nil {
		writeError(w, http.StatusBadRequest, uint32(presale.CodeInvalidArgument), "InvalidArgument", "invalid owner")
		return
	}
	mint, err := crypto.ParseIdentity(strings.TrimSpace(query.Get("mint")))
	if err != nil {
		writeError(w, http.StatusBadRequest, uint32(presale.CodeInvalidArgument), "InvalidArgument", "invalid mint")
		return
	}
	writeJSON(w, http.StatusOK, DeriveView{
		Owner:   owner,
		Mint:    mint,
		Address: crypto.DeriveTokenAccount(owner, mint),
	})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var after uint64
	if raw := strings.TrimSpace(query.Get("after")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, uint32(presale.CodeInvalidArgument), "InvalidArgument", "after must be an unsigned integer")
			return
		}
		after = parsed
	}
	limit := defaultLogLimit
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, uint32(presale.CodeInvalidArgument), "InvalidArgument", "limit must be a positive integer")
			return
		}
		limit = min(parsed, state.MaxLogPage)
	}
	buyer := zeroIdentity
	if raw := strings.TrimSpace(query.Get("buyer")); raw != "" {
		parsed, err := crypto.ParseIdentity(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, uint32(presale.CodeInvalidArgument), "InvalidArgument", "invalid buyer")
			return
		}
		buyer = parsed
	}

	records, err := s.processor.Log(buyer, after, limit)
	if err != nil {
		s.writeProcessorError(w, err)
		return
	}
	head, err := s.processor.LogHead()
	if err != nil {
		s.writeProcessorError(w, err)
		return
	}
	page := LogPage{Records: make([]LogEntry, 0, len(records)), Next: after, Head: head}
	for _, rec := range records {
		page.Records = append(page.Records, NewLogEntry(rec))
		page.Next = rec.Seq
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) writeProcessorError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrDuplicateRequest) {
		writeError(w, http.StatusConflict, 0, "DuplicateRequest", err.Error())
		return
	}
	code, name, ok := presale.Classify(err)
	if !ok {
		s.logger.Error("request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, 0, "Internal", "internal error")
		return
	}
	writeError(w, statusForCode(code), uint32(code), name, err.Error())
}

func statusForCode(code presale.ErrorCode) int {
	switch code {
	case presale.CodeUnauthorized:
		return http.StatusForbidden
	case presale.CodeNotInitialized:
		return http.StatusNotFound
	case presale.CodeSalePaused, presale.CodeAlreadyInitialized:
		return http.StatusConflict
	case presale.CodeTransferFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code uint32, name, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Name: name, Message: message})
}
