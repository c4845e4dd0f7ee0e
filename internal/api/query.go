package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/nerrad567/loopdb/internal/auth"
	"github.com/nerrad567/loopdb/internal/infrastructure/database"
	"github.com/nerrad567/loopdb/internal/params"
)

// QueryRequest is the body of POST /api/v1/query.
//
// Params is a JSON array for positional binding, an object for named
// binding, or absent for none.
type QueryRequest struct {
	SQL    string              `json:"sql"`
	Mode   string              `json:"mode"`
	Params jsoniter.RawMessage `json:"params,omitempty"`
}

// QueryResponse is the body returned for run, one and all.
// Row and Rows carry the connection's JSON text unchanged.
type QueryResponse struct {
	Mode            string              `json:"mode"`
	LastInsertRowID *int64              `json:"last_insert_rowid,omitempty"`
	Row             jsoniter.RawMessage `json:"row,omitempty"`
	Rows            jsoniter.RawMessage `json:"rows,omitempty"`
}

// StateResponse is the body of GET /api/v1/state.
type StateResponse struct {
	ID                string `json:"id"`
	Autocommit        bool   `json:"autocommit"`
	LastInsertRowID   int64  `json:"last_insert_rowid"`
	LastError         string `json:"last_error"`
	EventsEnabled     bool   `json:"events_enabled"`
	DroppedEvents     uint64 `json:"dropped_events"`
	CollationLanguage string `json:"collation_language"`
}

// sqlFailure marks a statement error so handlers can answer 400 with the
// engine's last error text.
type sqlFailure struct {
	message string
	err     error
}

func (f *sqlFailure) Error() string { return f.message }
func (f *sqlFailure) Unwrap() error { return f.err }

// handleQuery executes one statement while holding the connection.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeBadRequest(w, "sql is required")
		return
	}
	if req.Mode == "" {
		req.Mode = database.ModeAll.String()
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	p, err := decodeParams(req.Params)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	readOnly := !auth.HasPermission(claimsFromContext(r.Context()).Role, auth.PermQueryWrite)

	ctx := r.Context()
	if mode == database.ModeEach {
		s.streamEach(ctx, w, req.SQL, p, readOnly)
		return
	}

	resp := QueryResponse{Mode: mode.String()}
	err = s.withConn(readOnly, func() error {
		switch mode {
		case database.ModeRun:
			if err := s.conn.Run(ctx, req.SQL, p); err != nil {
				return err
			}
			id, err := s.conn.LastInsertRowID(ctx)
			if err != nil {
				return err
			}
			resp.LastInsertRowID = &id
		case database.ModeOne:
			row, err := s.conn.One(ctx, req.SQL, p)
			if err != nil {
				return err
			}
			if row != "" {
				resp.Row = jsoniter.RawMessage(row)
			}
		default:
			rows, err := s.conn.All(ctx, req.SQL, p)
			if err != nil {
				return err
			}
			resp.Rows = jsoniter.RawMessage(rows)
		}
		return nil
	})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// rowQueue holds Each callbacks for one request until the statement
// finishes, so HTTP rows never pass through the event loop.
type rowQueue struct {
	work []func()
}

func (q *rowQueue) Post(fn func()) error {
	q.work = append(q.work, fn)
	return nil
}

func (q *rowQueue) drain() {
	for _, fn := range q.work {
		fn()
	}
	q.work = nil
}

// streamEach answers mode "each" as newline-delimited JSON.
func (s *Server) streamEach(ctx context.Context, w http.ResponseWriter, query string, p params.Container, readOnly bool) {
	var (
		rows rowQueue
		buf  bytes.Buffer
	)
	err := s.withConn(readOnly, func() error {
		return s.conn.EachTo(ctx, query, p, &rows, func(row string) {
			buf.WriteString(row)
			buf.WriteByte('\n')
		})
	})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	rows.drain()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	io.Copy(w, &buf)
}

// withConn runs fn while holding the connection. Readers run under
// WithReadOnly. A statement error is returned as *sqlFailure carrying the
// connection's last error text.
func (s *Server) withConn(readOnly bool, fn func() error) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	var err error
	if readOnly {
		err = s.conn.WithReadOnly(fn)
	} else {
		err = fn()
	}
	if err != nil {
		return &sqlFailure{message: s.conn.LastError(), err: err}
	}
	return nil
}

// writeQueryError maps execution errors onto HTTP responses.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeUnavailable(w, err.Error())
	default:
		var failure *sqlFailure
		if errors.As(err, &failure) {
			msg := failure.message
			if msg == "" {
				msg = failure.err.Error()
			}
			writeError(w, http.StatusBadRequest, ErrCodeSQL, msg)
			return
		}
		s.logger.Error("query failed", "error", err)
		writeInternalError(w, "query failed")
	}
}

// handleState reports the connection's engine state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var state StateResponse
	ctx := r.Context()
	err := s.withConn(false, func() error {
		state.ID = s.conn.ID()
		state.LastError = s.conn.LastError()
		state.EventsEnabled = s.conn.EventsEnabled()
		state.DroppedEvents = s.conn.DroppedEvents()
		state.CollationLanguage = s.conn.CollationLanguage()

		var err error
		if state.Autocommit, err = s.conn.Autocommit(); err != nil {
			return err
		}
		state.LastInsertRowID, err = s.conn.LastInsertRowID(ctx)
		return err
	})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleVacuum rebuilds the database file.
func (s *Server) handleVacuum(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.withConn(false, func() error {
		return s.conn.Vacuum(ctx)
	}); err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleSetCollation replaces the WINLOCALE language. An empty language
// restores the ambient locale.
func (s *Server) handleSetCollation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	s.connMu.Lock()
	err := s.conn.SetCollationLanguage(req.Language)
	s.connMu.Unlock()
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"language": req.Language})
}

// handleSetEvents turns change notifications on or off.
func (s *Server) handleSetEvents(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeBadRequest(w, "enabled is required")
		return
	}

	s.connMu.Lock()
	s.conn.SetEventsEnabled(*req.Enabled)
	s.connMu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"events_enabled": *req.Enabled})
}

// parseMode maps a mode name onto database.Mode.
func parseMode(name string) (database.Mode, error) {
	for _, m := range []database.Mode{database.ModeRun, database.ModeOne, database.ModeAll, database.ModeEach} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q (want run, one, all or each)", name)
}

// number is satisfied by json.Number from either encoding/json or jsoniter.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
}

// decodeParams turns the request's params field into a container. Named
// keys may carry a leading ':' which is dropped.
func decodeParams(raw jsoniter.RawMessage) (params.Container, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return params.None(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return params.Container{}, fmt.Errorf("invalid params: %w", err)
	}

	var c params.Container
	switch t := v.(type) {
	case []any:
		values := make([]any, len(t))
		for i, e := range t {
			values[i] = scalar(e)
		}
		c = params.Positional(values...)
	case map[string]any:
		named := make(map[string]any, len(t))
		for k, e := range t {
			named[strings.TrimPrefix(k, ":")] = scalar(e)
		}
		c = params.Named(named)
	default:
		return params.Container{}, fmt.Errorf("params must be an array or an object")
	}
	if err := c.Validate(); err != nil {
		return params.Container{}, fmt.Errorf("invalid params: %w", err)
	}
	return c, nil
}

// scalar converts decoded JSON numbers to int64 when integral, else float64.
func scalar(v any) any {
	n, ok := v.(number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return v
}
