package influxdb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/loopdb/internal/infrastructure/config"
	"github.com/nerrad567/loopdb/internal/infrastructure/database"
)

// fakeWriter records points instead of sending them.
type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	f.points = append(f.points, p)
	f.mu.Unlock()
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	f.flushes++
	f.mu.Unlock()
}

func newFakeClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	c := &Client{writer: w}
	c.open.Store(true)
	return c, w
}

func tagsOf(p *write.Point) map[string]string {
	tags := make(map[string]string)
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	return tags
}

func fieldsOf(p *write.Point) map[string]any {
	fields := make(map[string]any)
	for _, field := range p.FieldList() {
		fields[field.Key] = field.Value
	}
	return fields
}

func TestObserveExecution(t *testing.T) {
	client, w := newFakeClient()
	obs := client.Observer("conn-1")

	obs.ObserveExecution(database.ModeAll, 1500*time.Microsecond, nil)
	obs.ObserveExecution(database.ModeRun, time.Millisecond, errors.New("near \"SELEC\": syntax error"))

	if len(w.points) != 2 {
		t.Fatalf("wrote %d points, want 2", len(w.points))
	}

	ok := w.points[0]
	if ok.Name() != measurementExecution {
		t.Errorf("Name() = %q, want %q", ok.Name(), measurementExecution)
	}
	tags := tagsOf(ok)
	if tags["connection"] != "conn-1" || tags["mode"] != "all" || tags["status"] != "ok" {
		t.Errorf("tags = %v", tags)
	}
	fields := fieldsOf(ok)
	if fields["elapsed_ms"] != 1.5 {
		t.Errorf("elapsed_ms = %v, want 1.5", fields["elapsed_ms"])
	}
	if _, found := fields["error"]; found {
		t.Error("successful execution should not carry an error field")
	}

	failed := w.points[1]
	if tagsOf(failed)["status"] != "error" {
		t.Errorf("status = %q, want error", tagsOf(failed)["status"])
	}
	if fieldsOf(failed)["error"] != "near \"SELEC\": syntax error" {
		t.Errorf("error field = %v", fieldsOf(failed)["error"])
	}
}

func TestObserveChange(t *testing.T) {
	client, w := newFakeClient()
	obs := client.Observer("conn-2")

	obs.ObserveChange(database.Delete, database.ChangeEvent{RowID: 42, Table: "users"})

	if len(w.points) != 1 {
		t.Fatalf("wrote %d points, want 1", len(w.points))
	}
	p := w.points[0]
	if p.Name() != measurementChange {
		t.Errorf("Name() = %q, want %q", p.Name(), measurementChange)
	}
	tags := tagsOf(p)
	if tags["table"] != "users" || tags["action"] != "delete" || tags["connection"] != "conn-2" {
		t.Errorf("tags = %v", tags)
	}
	if fieldsOf(p)["rowid"] != int64(42) {
		t.Errorf("rowid = %v, want 42", fieldsOf(p)["rowid"])
	}
}

func TestWritePoint_NotConnected(t *testing.T) {
	client, w := newFakeClient()
	client.open.Store(false)

	client.WritePoint("sql_execution", nil, map[string]any{"elapsed_ms": 1.0})
	client.Observer("x").ObserveChange(database.Insert, database.ChangeEvent{RowID: 1, Table: "t"})
	client.Flush()

	if len(w.points) != 0 {
		t.Errorf("wrote %d points while disconnected, want 0", len(w.points))
	}
	if w.flushes != 0 {
		t.Errorf("Flush() reached the writer while disconnected")
	}
}

func TestWritePointWithTime(t *testing.T) {
	client, w := newFakeClient()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	client.WritePointWithTime("custom", map[string]string{"source": "test"}, map[string]any{"value": 9.5}, ts)
	client.Flush()

	if len(w.points) != 1 || !w.points[0].Time().Equal(ts) {
		t.Fatalf("points = %v, want one point at %v", w.points, ts)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
}

func TestSetOnError(t *testing.T) {
	client, _ := newFakeClient()

	got := make(chan error, 1)
	client.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	errs <- errors.New("batch rejected")
	close(errs)
	client.handleWriteErrors(errs)

	select {
	case err := <-got:
		if err.Error() != "batch rejected" {
			t.Errorf("callback error = %v", err)
		}
	default:
		t.Fatal("onError callback not invoked")
	}
}

func TestWriteOptions(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.InfluxDBConfig
		wantBatch uint
		wantFlush uint
	}{
		{"defaults", config.InfluxDBConfig{}, 100, 10000},
		{"negative uses defaults", config.InfluxDBConfig{BatchSize: -1, FlushInterval: -5}, 100, 10000},
		{"configured", config.InfluxDBConfig{BatchSize: 20, FlushInterval: 2}, 20, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := writeOptions(tt.cfg)
			if got := opts.BatchSize(); got != tt.wantBatch {
				t.Errorf("BatchSize() = %d, want %d", got, tt.wantBatch)
			}
			if got := opts.FlushInterval(); got != tt.wantFlush {
				t.Errorf("FlushInterval() = %d, want %d", got, tt.wantFlush)
			}
		})
	}
}
