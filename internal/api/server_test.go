package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/loopdb/internal/auth"
	"github.com/nerrad567/loopdb/internal/eventloop"
	"github.com/nerrad567/loopdb/internal/infrastructure/config"
	"github.com/nerrad567/loopdb/internal/infrastructure/database"
	"github.com/nerrad567/loopdb/internal/infrastructure/logging"
	"github.com/nerrad567/loopdb/internal/params"
)

const (
	testSecret    = "0123456789abcdef0123456789abcdef"
	testQueueSize = 256
)

type testEnv struct {
	ts     *httptest.Server
	srv    *Server
	conn   *database.Connection
	secret string
}

// newTestEnv starts a loop, opens a database with a notes table and serves
// the API from httptest.
func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	loop := eventloop.New(config.EventLoopConfig{QueueSize: testQueueSize})
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(loopCtx) //nolint:errcheck // Only fails when run twice
	}()
	t.Cleanup(func() {
		stopLoop()
		<-loopDone
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		conn    *database.Connection
		openErr error
	)
	if err := loop.Do(ctx, func() {
		conn, openErr = database.Open(eventloop.WithDispatcher(ctx, loop), database.Config{
			Path:        filepath.Join(t.TempDir(), "api.db"),
			WALMode:     true,
			BusyTimeout: 5,
		})
		if openErr != nil {
			return
		}
		openErr = conn.Run(ctx, "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)", params.None())
	}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if openErr != nil {
		t.Fatalf("opening database: %v", openErr)
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // Test cleanup

	srv, err := New(Deps{
		WS:       config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: secret}},
		Logger:   logging.Discard(),
		Conn:     conn,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler(context.Background()))
	t.Cleanup(func() {
		srv.Close() //nolint:errcheck // Test cleanup
		ts.Close()
	})

	return &testEnv{ts: ts, srv: srv, conn: conn, secret: secret}
}

func (e *testEnv) token(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken("tester", role, e.secret, 5)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return tok
}

// do sends a JSON request and returns the status and body.
func (e *testEnv) do(t *testing.T, method, path, token, body string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, data
}

func (e *testEnv) query(t *testing.T, token, body string) (int, QueryResponse, Error) {
	t.Helper()
	status, data := e.do(t, http.MethodPost, "/api/v1/query", token, body)
	var (
		qr   QueryResponse
		apiE Error
	)
	if status == http.StatusOK {
		if err := json.Unmarshal(data, &qr); err != nil {
			t.Fatalf("decoding %s: %v", data, err)
		}
	} else if err := json.Unmarshal(data, &apiE); err != nil {
		t.Fatalf("decoding error %s: %v", data, err)
	}
	return status, qr, apiE
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "")

	status, data := env.do(t, http.MethodGet, "/api/v1/health", "", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %s", status, data)
	}
	if !bytes.Contains(data, []byte(`"status":"ok"`)) {
		t.Errorf("body = %s, want status ok", data)
	}
}

func TestQuery_Modes(t *testing.T) {
	env := newTestEnv(t, "")

	status, qr, apiE := env.query(t, "", `{"sql":"INSERT INTO notes (body) VALUES (?)","mode":"run","params":["first"]}`)
	if status != http.StatusOK {
		t.Fatalf("run status = %d (%+v)", status, apiE)
	}
	if qr.LastInsertRowID == nil || *qr.LastInsertRowID != 1 {
		t.Errorf("last_insert_rowid = %v, want 1", qr.LastInsertRowID)
	}

	status, qr, apiE = env.query(t, "", `{"sql":"INSERT INTO notes (body) VALUES (:body)","mode":"run","params":{":body":"second"}}`)
	if status != http.StatusOK {
		t.Fatalf("named run status = %d (%+v)", status, apiE)
	}
	if *qr.LastInsertRowID != 2 {
		t.Errorf("last_insert_rowid = %d, want 2", *qr.LastInsertRowID)
	}

	status, qr, _ = env.query(t, "", `{"sql":"SELECT id, body FROM notes ORDER BY id"}`)
	if status != http.StatusOK {
		t.Fatalf("all status = %d", status)
	}
	if qr.Mode != "all" {
		t.Errorf("mode = %q, want default all", qr.Mode)
	}
	if got := string(qr.Rows); got != `[{"id":1,"body":"first"},{"id":2,"body":"second"}]` {
		t.Errorf("rows = %s", got)
	}

	status, qr, _ = env.query(t, "", `{"sql":"SELECT body FROM notes WHERE id = ?","mode":"one","params":[2]}`)
	if status != http.StatusOK {
		t.Fatalf("one status = %d", status)
	}
	if got := string(qr.Row); got != `{"body":"second"}` {
		t.Errorf("row = %s", got)
	}

	status, qr, _ = env.query(t, "", `{"sql":"SELECT body FROM notes WHERE id = 99","mode":"one"}`)
	if status != http.StatusOK {
		t.Fatalf("one (no rows) status = %d", status)
	}
	if qr.Row != nil {
		t.Errorf("row = %s, want absent", qr.Row)
	}

	status, data := env.do(t, http.MethodPost, "/api/v1/query", "", `{"sql":"SELECT id FROM notes ORDER BY id","mode":"each"}`)
	if status != http.StatusOK {
		t.Fatalf("each status = %d", status)
	}
	if string(data) != "{\"id\":1}\n{\"id\":2}\n" {
		t.Errorf("each body = %q", data)
	}
}

func TestQuery_BadRequests(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"invalid json", `{`, ErrCodeBadRequest},
		{"missing sql", `{"mode":"all"}`, ErrCodeBadRequest},
		{"unknown mode", `{"sql":"SELECT 1","mode":"many"}`, ErrCodeBadRequest},
		{"nested params", `{"sql":"SELECT ?","params":[[1]]}`, ErrCodeBadRequest},
		{"scalar params", `{"sql":"SELECT ?","params":5}`, ErrCodeBadRequest},
		{"engine error", `{"sql":"SELECT * FROM missing"}`, ErrCodeSQL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, apiE := env.query(t, "", tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", status)
			}
			if apiE.Code != tt.wantCode {
				t.Errorf("code = %q, want %q (%s)", apiE.Code, tt.wantCode, apiE.Message)
			}
		})
	}

	_, _, apiE := env.query(t, "", `{"sql":"SELECT * FROM missing"}`)
	if !strings.Contains(apiE.Message, "no such table") {
		t.Errorf("sql_error message = %q, want engine text", apiE.Message)
	}
}

func TestAuth_Roles(t *testing.T) {
	env := newTestEnv(t, testSecret)
	reader := env.token(t, auth.RoleReader)
	writer := env.token(t, auth.RoleWriter)
	admin := env.token(t, auth.RoleAdmin)

	if status, _, _ := env.query(t, "", `{"sql":"SELECT 1"}`); status != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", status)
	}
	if status, _, _ := env.query(t, "garbage", `{"sql":"SELECT 1"}`); status != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", status)
	}

	insert := `{"sql":"INSERT INTO notes (body) VALUES ('x')","mode":"run"}`
	status, _, apiE := env.query(t, reader, insert)
	if status != http.StatusBadRequest || apiE.Code != ErrCodeSQL {
		t.Errorf("reader insert = %d %q, want 400 sql_error", status, apiE.Code)
	}
	if status, _, _ := env.query(t, writer, insert); status != http.StatusOK {
		t.Errorf("writer insert status = %d, want 200", status)
	}

	// Read-only restrictions end with the reader's request.
	status, qr, _ := env.query(t, reader, `{"sql":"SELECT count(*) AS n FROM notes"}`)
	if status != http.StatusOK || string(qr.Rows) != `[{"n":1}]` {
		t.Errorf("reader select = %d %s", status, qr.Rows)
	}
	if status, _, _ := env.query(t, writer, insert); status != http.StatusOK {
		t.Errorf("writer insert after reader status = %d, want 200", status)
	}

	if status, _ := env.do(t, http.MethodPost, "/api/v1/vacuum", writer, ""); status != http.StatusForbidden {
		t.Errorf("writer vacuum status = %d, want 403", status)
	}
	if status, data := env.do(t, http.MethodPost, "/api/v1/vacuum", admin, ""); status != http.StatusOK {
		t.Errorf("admin vacuum status = %d (%s)", status, data)
	}
}

func TestAuth_ReaderCannotChangeConnection(t *testing.T) {
	env := newTestEnv(t, testSecret)
	reader := env.token(t, auth.RoleReader)
	writer := env.token(t, auth.RoleWriter)

	tests := []struct {
		name       string
		sql        string
		wantStatus int
	}{
		{"pragma read", "PRAGMA foreign_keys", http.StatusOK},
		{"table info", "PRAGMA table_info(notes)", http.StatusOK},
		{"pragma write", "PRAGMA foreign_keys = OFF", http.StatusBadRequest},
		{"query_only off", "PRAGMA query_only = OFF", http.StatusBadRequest},
		{"attach", "ATTACH DATABASE ':memory:' AS other", http.StatusBadRequest},
		{"detach", "DETACH DATABASE main", http.StatusBadRequest},
		{"vacuum", "VACUUM", http.StatusBadRequest},
		{"checkpoint", "PRAGMA wal_checkpoint(TRUNCATE)", http.StatusBadRequest},
		{"begin", "BEGIN", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(QueryRequest{SQL: tt.sql, Mode: "all"})
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			status, _, apiE := env.query(t, reader, string(body))
			if status != tt.wantStatus {
				t.Fatalf("reader %q status = %d (%+v), want %d", tt.sql, status, apiE, tt.wantStatus)
			}
			if status == http.StatusBadRequest && apiE.Code != ErrCodeSQL {
				t.Errorf("reader %q code = %q, want %q", tt.sql, apiE.Code, ErrCodeSQL)
			}
		})
	}

	status, qr, _ := env.query(t, writer, `{"sql":"PRAGMA foreign_keys"}`)
	if status != http.StatusOK || string(qr.Rows) != `[{"foreign_keys":1}]` {
		t.Errorf("writer foreign_keys = %d %s, want 1", status, qr.Rows)
	}
	if status, _, _ := env.query(t, writer, `{"sql":"INSERT INTO notes (body) VALUES ('x')","mode":"run"}`); status != http.StatusOK {
		t.Errorf("writer insert after reader status = %d, want 200", status)
	}
}

// countingObserver counts execution calls.
type countingObserver struct {
	mu         sync.Mutex
	executions int
}

func (o *countingObserver) ObserveExecution(database.Mode, time.Duration, error) {
	o.mu.Lock()
	o.executions++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveChange(database.ChangeKind, database.ChangeEvent) {}

func (o *countingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.executions
}

func TestQuery_ReaderSingleExecution(t *testing.T) {
	env := newTestEnv(t, testSecret)
	reader := env.token(t, auth.RoleReader)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"select", `{"sql":"SELECT 1 AS one","mode":"one"}`, http.StatusOK, ""},
		{"missing table", `{"sql":"SELECT * FROM missing"}`, http.StatusBadRequest, "no such table"},
		{"write", `{"sql":"DELETE FROM notes","mode":"run"}`, http.StatusBadRequest, "not authorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &countingObserver{}
			env.conn.SetObserver(obs)
			defer env.conn.SetObserver(nil)

			status, _, apiE := env.query(t, reader, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d (%+v), want %d", status, apiE, tt.wantStatus)
			}
			if tt.wantError != "" && !strings.Contains(apiE.Message, tt.wantError) {
				t.Errorf("message = %q, want mention of %q", apiE.Message, tt.wantError)
			}
			if got := obs.count(); got != 1 {
				t.Errorf("observed %d executions, want 1", got)
			}
			if tt.wantError != "" && !strings.Contains(env.conn.LastError(), tt.wantError) {
				t.Errorf("LastError() = %q, want mention of %q", env.conn.LastError(), tt.wantError)
			}
		})
	}
}

func TestQuery_EachBeyondQueueSize(t *testing.T) {
	env := newTestEnv(t, "")
	const rows = testQueueSize + 44

	insert := fmt.Sprintf(`{"sql":"INSERT INTO notes (body) WITH RECURSIVE n(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM n WHERE x < %d) SELECT 'row ' || x FROM n","mode":"run"}`, rows)
	if status, _, apiE := env.query(t, "", insert); status != http.StatusOK {
		t.Fatalf("insert status = %d (%+v)", status, apiE)
	}

	status, data := env.do(t, http.MethodPost, "/api/v1/query", "", `{"sql":"SELECT id FROM notes ORDER BY id","mode":"each"}`)
	if status != http.StatusOK {
		t.Fatalf("each status = %d (%s)", status, data)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != rows {
		t.Fatalf("each returned %d rows, want %d", len(lines), rows)
	}
	if lines[0] != `{"id":1}` || lines[rows-1] != fmt.Sprintf(`{"id":%d}`, rows) {
		t.Errorf("first/last rows = %s / %s", lines[0], lines[rows-1])
	}
}

func TestState(t *testing.T) {
	env := newTestEnv(t, "")

	if status, _, _ := env.query(t, "", `{"sql":"INSERT INTO notes (body) VALUES ('a')","mode":"run"}`); status != http.StatusOK {
		t.Fatalf("insert status = %d", status)
	}
	env.query(t, "", `{"sql":"SELECT * FROM missing"}`)

	status, data := env.do(t, http.MethodGet, "/api/v1/state", "", "")
	if status != http.StatusOK {
		t.Fatalf("state status = %d", status)
	}
	var st StateResponse
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if st.ID != env.conn.ID() {
		t.Errorf("id = %q, want %q", st.ID, env.conn.ID())
	}
	if !st.Autocommit {
		t.Error("autocommit = false, want true")
	}
	if st.LastInsertRowID != 1 {
		t.Errorf("last_insert_rowid = %d, want 1", st.LastInsertRowID)
	}
	if !strings.Contains(st.LastError, "no such table") {
		t.Errorf("last_error = %q", st.LastError)
	}
	if !st.EventsEnabled {
		t.Error("events_enabled = false, want true")
	}
}

func TestCollationAndEvents(t *testing.T) {
	env := newTestEnv(t, "")

	if status, data := env.do(t, http.MethodPut, "/api/v1/collation", "", `{"language":"sv"}`); status != http.StatusOK {
		t.Fatalf("collation status = %d (%s)", status, data)
	}
	if status, _ := env.do(t, http.MethodPut, "/api/v1/collation", "", `{"language":"not a tag!"}`); status != http.StatusBadRequest {
		t.Errorf("bad collation status = %d, want 400", status)
	}
	if status, _ := env.do(t, http.MethodPut, "/api/v1/events", "", `{"enabled":false}`); status != http.StatusOK {
		t.Errorf("events status = %d", status)
	}
	if status, _ := env.do(t, http.MethodPut, "/api/v1/events", "", `{}`); status != http.StatusBadRequest {
		t.Errorf("events without flag status = %d, want 400", status)
	}

	_, data := env.do(t, http.MethodGet, "/api/v1/state", "", "")
	var st StateResponse
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if st.CollationLanguage != "sv" {
		t.Errorf("collation_language = %q, want sv", st.CollationLanguage)
	}
	if st.EventsEnabled {
		t.Error("events_enabled = true after disabling")
	}
}

func dialWS(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/v1/ws" + query
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial() error = %v (status %d)", err, status)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readWS(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decoding %s: %v", data, err)
	}
	return msg
}

func TestWebSocket_ChangeEvents(t *testing.T) {
	env := newTestEnv(t, "")
	ws := dialWS(t, env, "")

	if err := ws.WriteJSON(map[string]any{
		"type":    WSTypeSubscribe,
		"id":      "1",
		"payload": map[string]any{"channels": []string{ChannelChanges, TableChannel("notes")}},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypeResponse || msg.ID != "1" {
		t.Fatalf("subscribe reply = %+v", msg)
	}

	if status, _, _ := env.query(t, "", `{"sql":"INSERT INTO notes (body) VALUES ('hi')","mode":"run"}`); status != http.StatusOK {
		t.Fatalf("insert status = %d", status)
	}

	msg := readWS(t, ws)
	if msg.Type != WSTypeEvent || msg.EventType != TableChannel("notes") {
		t.Fatalf("event = %+v", msg)
	}
	payload, _ := msg.Payload.(map[string]any) //nolint:errcheck // checked below
	if payload["table"] != "notes" || payload["action"] != "insert" || payload["rowid"] != float64(1) {
		t.Errorf("payload = %v", payload)
	}
	if payload["connection"] != env.conn.ID() {
		t.Errorf("connection = %v, want %s", payload["connection"], env.conn.ID())
	}

	// Subscribed to both channels, the client still gets one event per
	// change: the ping reply must be the next message.
	if err := ws.WriteJSON(map[string]any{"type": WSTypePing, "id": "2"}); err != nil {
		t.Fatalf("WriteJSON(ping) error = %v", err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypePong || msg.ID != "2" {
		t.Errorf("after event got %+v, want pong", msg)
	}
}

func TestWebSocket_UnknownChannel(t *testing.T) {
	env := newTestEnv(t, "")
	ws := dialWS(t, env, "")

	if err := ws.WriteJSON(map[string]any{
		"type":    WSTypeSubscribe,
		"id":      "x",
		"payload": map[string]any{"channels": []string{"device.state"}},
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypeError {
		t.Errorf("reply = %+v, want error", msg)
	}
}

func TestWebSocket_Tickets(t *testing.T) {
	env := newTestEnv(t, testSecret)

	if status, _ := env.do(t, http.MethodGet, "/api/v1/ws", "", ""); status != http.StatusUnauthorized {
		t.Errorf("ws without ticket status = %d, want 401", status)
	}

	status, data := env.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", env.token(t, auth.RoleReader), "")
	if status != http.StatusOK {
		t.Fatalf("ticket status = %d (%s)", status, data)
	}
	var body struct {
		Ticket string `json:"ticket"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Ticket == "" {
		t.Fatalf("ticket body = %s (%v)", data, err)
	}

	dialWS(t, env, "?ticket="+body.Ticket)

	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/v1/ws?ticket=" + body.Ticket
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("reused ticket error = %v, want ErrBadHandshake", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("reused ticket status = %d, want 401", resp.StatusCode)
	}
}

func TestTicketStore_Expiry(t *testing.T) {
	ts := newTicketStore()
	ticket := ts.issue("a", auth.RoleReader)

	ts.mu.Lock()
	entry := ts.tickets[ticket]
	entry.expiresAt = time.Now().Add(-time.Second)
	ts.tickets[ticket] = entry
	ts.mu.Unlock()

	ts.cleanExpired()
	if _, ok := ts.consume(ticket); ok {
		t.Error("consume() accepted an expired ticket")
	}
}

func TestDecodeParams(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind params.Kind
		wantErr  bool
	}{
		{"absent", ``, params.KindNone, false},
		{"null", `null`, params.KindNone, false},
		{"array", `[1, 2.5, "x", true, null]`, params.KindPositional, false},
		{"object", `{":a": 1, "b": "x"}`, params.KindNamed, false},
		{"nested", `[{"a":1}]`, 0, true},
		{"string", `"x"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := decodeParams([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && c.Kind() != tt.wantKind {
				t.Errorf("Kind() = %v, want %v", c.Kind(), tt.wantKind)
			}
		})
	}

	c, err := decodeParams([]byte(`[7, 2.5]`))
	if err != nil {
		t.Fatalf("decodeParams() error = %v", err)
	}
	if v := c.Values(); v[0] != int64(7) || v[1] != 2.5 {
		t.Errorf("Values() = %#v, want int64 7 and float64 2.5", v)
	}

	c, err = decodeParams([]byte(`{":a": 1}`))
	if err != nil {
		t.Fatalf("decodeParams() error = %v", err)
	}
	if _, ok := c.Map()["a"]; !ok {
		t.Errorf("Map() = %v, want key without colon", c.Map())
	}
}
