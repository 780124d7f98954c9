package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/S3MTFoundationv0/s3mt.xyz/core/state"
	"github.com/S3MTFoundationv0/s3mt.xyz/core/types"
)

const (
	wsWriteTimeout = 10 * time.Second
)

var errSubscriberLagged = errors.New("rpc: subscriber lagged")

// handleStream replays committed records after the cursor and then follows
// the live broker. A client dropped for lagging reconnects with the last seq
// it saw.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	broker := s.processor.Broker()
	if broker == nil {
		writeError(w, http.StatusServiceUnavailable, 0, "Unavailable", "streaming disabled")
		return
	}
	var cursor uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, 0, "InvalidArgument", "cursor must be an unsigned integer")
			return
		}
		cursor = parsed
	}
	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	err = s.streamLog(ctx, conn, cursor)
	switch {
	case errors.Is(err, errSubscriberLagged):
		_ = conn.Close(websocket.StatusTryAgainLater, "subscriber lagged")
	case err != nil && websocket.CloseStatus(err) == -1 && ctx.Err() == nil:
		s.logger.Warn("stream aborted", slog.Any("error", err))
		_ = conn.Close(websocket.StatusInternalError, "stream error")
	}
}

func (s *Server) streamLog(ctx context.Context, conn *websocket.Conn, cursor uint64) error {
	// Subscribe before reading the backlog so nothing committed in between is
	// missed; duplicates are dropped by seq below.
	live, cancel := s.processor.Broker().Subscribe(ctx)
	defer cancel()
	s.metrics.SetSubscribers(s.processor.Broker().Subscribers())
	defer func() { s.metrics.SetSubscribers(s.processor.Broker().Subscribers()) }()

	for {
		backlog, err := s.processor.Log(zeroIdentity, cursor, state.MaxLogPage)
		if err != nil {
			return err
		}
		for _, rec := range backlog {
			if err := writeLogRecord(ctx, conn, rec); err != nil {
				return err
			}
			cursor = rec.Seq
		}
		if len(backlog) < state.MaxLogPage {
			break
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-live:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errSubscriberLagged
			}
			if rec.Seq <= cursor {
				continue
			}
			if err := writeLogRecord(ctx, conn, rec); err != nil {
				return err
			}
			cursor = rec.Seq
		}
	}
}

func writeLogRecord(ctx context.Context, conn *websocket.Conn, rec types.LogRecord) error {
	data, err := json.Marshal(NewLogEntry(rec))
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
