package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/loopdb/internal/auth"
	"github.com/nerrad567/loopdb/internal/infrastructure/database"
	"github.com/nerrad567/loopdb/internal/params"
)

// writeConfig writes a config with a temp database and quiet logging and
// returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()

	dir := t.TempDir()
	content := `
database:
  path: "` + filepath.Join(dir, "data", "test.db") + `"
  wal_mode: true
  busy_timeout: 5
  create_dirs: true
logging:
  level: error
  format: text
  output: stderr
` + extra
	path := filepath.Join(dir, "loopdb.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := run(ctx, args, &out)
	return out.String(), err
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := runCLI(t, "--config", "/nonexistent/path/config.yaml", "--exec", "SELECT 1")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--nope"}},
		{"stray argument", []string{"extra"}},
		{"bad mode", []string{"--mode", "some"}},
		{"mixed params", []string{"--param", "1", "--named", "a=1"}},
		{"named without value", []string{"--named", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.args...); err == nil {
				t.Errorf("run(%v) should fail", tt.args)
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	if _, err := runCLI(t, "--help"); err != nil {
		t.Errorf("run(--help) error = %v, want nil", err)
	}
}

func TestRun_ExecModes(t *testing.T) {
	cfgPath := writeConfig(t, "")

	steps := []struct {
		name string
		args []string
		want string
	}{
		{"create", []string{"--mode", "run", "--exec", "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)"}, "last_insert_rowid=0\n"},
		{"insert positional", []string{"--mode", "run", "--exec", "INSERT INTO notes (body) VALUES (?)", "--param", "first"}, "last_insert_rowid=1\n"},
		{"insert named", []string{"--mode", "run", "--exec", "INSERT INTO notes (body) VALUES (:body)", "--named", "body=second"}, "last_insert_rowid=2\n"},
		{"all", []string{"--exec", "SELECT id, body FROM notes ORDER BY id"}, `[{"id":1,"body":"first"},{"id":2,"body":"second"}]` + "\n"},
		{"one", []string{"--mode", "one", "--exec", "SELECT body FROM notes WHERE id = ?", "-p", "2"}, `{"body":"second"}` + "\n"},
		{"one no rows", []string{"--mode", "one", "--exec", "SELECT body FROM notes WHERE id = 99"}, ""},
		{"each", []string{"--mode", "each", "--exec", "SELECT id FROM notes ORDER BY id"}, "{\"id\":1}\n{\"id\":2}\n"},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			out, err := runCLI(t, append([]string{"--config", cfgPath}, step.args...)...)
			if err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if out != step.want {
				t.Errorf("output = %q, want %q", out, step.want)
			}
		})
	}
}

func TestRun_ExecError(t *testing.T) {
	cfgPath := writeConfig(t, "")

	_, err := runCLI(t, "--config", cfgPath, "--exec", "SELEC 1")
	if err == nil {
		t.Fatal("run() should fail for malformed SQL")
	}
	if !strings.Contains(err.Error(), "executing statement") {
		t.Errorf("error = %v, want executing statement failure", err)
	}
}

func TestRun_Vacuum(t *testing.T) {
	cfgPath := writeConfig(t, "")

	if _, err := runCLI(t, "--config", cfgPath, "--vacuum"); err != nil {
		t.Errorf("run(--vacuum) error = %v", err)
	}
}

func TestRun_Migrations(t *testing.T) {
	migrations := t.TempDir()
	if err := os.WriteFile(filepath.Join(migrations, "20260101_000000_notes.up.sql"),
		[]byte("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);"), 0600); err != nil {
		t.Fatalf("failed to write migration: %v", err)
	}
	cfgPath := writeConfig(t, "")
	t.Setenv("LOOPDB_CONFIG", cfgPath)

	// Migrations are configured in the file, so rewrite it with the dir.
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	data = bytes.Replace(data, []byte("  create_dirs: true\n"),
		[]byte("  create_dirs: true\n  migrations_dir: \""+migrations+"\"\n"), 1)
	if err := os.WriteFile(cfgPath, data, 0600); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--mode", "one", "--exec", "SELECT COUNT(*) AS n FROM notes")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if out != `{"n":0}`+"\n" {
		t.Errorf("output = %q", out)
	}
}

func TestRun_ServeUntilCancelled(t *testing.T) {
	cfgPath := writeConfig(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, []string{"--config", cfgPath}, &bytes.Buffer{})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v, want nil on shutdown", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func TestRun_IssueToken(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	cfgPath := writeConfig(t, `
security:
  jwt:
    secret: "`+secret+`"
`)

	out, err := runCLI(t, "--config", cfgPath, "--issue-token", "alice", "--role", "writer")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	claims, err := auth.ParseToken(strings.TrimSpace(out), secret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "alice" || claims.Role != auth.RoleWriter {
		t.Errorf("claims = %s/%s, want alice/writer", claims.Subject, claims.Role)
	}

	if _, err := runCLI(t, "--config", cfgPath, "--issue-token", "bob", "--role", "root"); !errors.Is(err, auth.ErrUnknownRole) {
		t.Errorf("unknown role error = %v, want ErrUnknownRole", err)
	}
	if _, err := runCLI(t, "--config", writeConfig(t, ""), "--issue-token", "bob"); !errors.Is(err, auth.ErrNoSecret) {
		t.Errorf("no secret error = %v, want ErrNoSecret", err)
	}
}

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRun_ServeAPI(t *testing.T) {
	port := freePort(t)
	cfgPath := writeConfig(t, fmt.Sprintf(`
api:
  enabled: true
  host: "127.0.0.1"
  port: %d
`, port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, []string{"--config", cfgPath}, &bytes.Buffer{})
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(5 * time.Second)
	var body []byte
	for {
		resp, err := http.Get(url)
		if err == nil {
			body, _ = io.ReadAll(resp.Body) //nolint:errcheck // checked via content below
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("API not healthy: %v %s", err, body)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("health body = %s", body)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("LOOPDB_CONFIG", "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("LOOPDB_CONFIG", "/env/config.yaml")
	if got := getConfigPath(""); got != "/env/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env path", got)
	}
	if got := getConfigPath("/flag/config.yaml"); got != "/flag/config.yaml" {
		t.Errorf("getConfigPath(flag) = %q, want flag path", got)
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]database.Mode{
		"run":  database.ModeRun,
		"ONE":  database.ModeOne,
		"all":  database.ModeAll,
		"":     database.ModeAll,
		"each": database.ModeEach,
	}
	for in, want := range tests {
		got, err := parseMode(in)
		if err != nil || got != want {
			t.Errorf("parseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestBuildParams(t *testing.T) {
	c, err := buildParams([]string{"1", "2.5", "null", "text"}, nil)
	if err != nil {
		t.Fatalf("buildParams() error = %v", err)
	}
	if c.Kind() != params.KindPositional {
		t.Fatalf("Kind() = %v, want positional", c.Kind())
	}
	values := c.Values()
	if values[0] != int64(1) || values[1] != 2.5 || values[2] != nil || values[3] != "text" {
		t.Errorf("Values() = %#v", values)
	}

	c, err = buildParams(nil, []string{":a=1", "b=x=y"})
	if err != nil {
		t.Fatalf("buildParams() error = %v", err)
	}
	m := c.Map()
	if m["a"] != int64(1) || m["b"] != "x=y" {
		t.Errorf("Map() = %#v", m)
	}

	if c, _ := buildParams(nil, nil); c.Kind() != params.KindNone {
		t.Errorf("Kind() = %v, want none", c.Kind())
	}
}
