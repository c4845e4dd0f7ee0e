package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/loopdb/internal/infrastructure/database"
)

// Measurement names.
const (
	measurementExecution = "sql_execution"
	measurementChange    = "sql_change"
)

// WritePoint writes a point stamped with the current time.
//
// Example:
//
//	client.WritePoint("sql_execution",
//	    map[string]string{"mode": "all"},
//	    map[string]any{"elapsed_ms": 1.5})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

// Observer returns a database.ExecutionObserver that tags every point
// with connectionID.
//
//	conn.SetObserver(client.Observer(conn.ID()))
func (c *Client) Observer(connectionID string) *Observer {
	return &Observer{client: c, connectionID: connectionID}
}

// Observer records one connection's executions and row changes.
type Observer struct {
	client       *Client
	connectionID string
}

var _ database.ExecutionObserver = (*Observer)(nil)

// ObserveExecution writes an sql_execution point.
func (o *Observer) ObserveExecution(mode database.Mode, elapsed time.Duration, err error) {
	status := "ok"
	fields := map[string]any{
		"elapsed_ms": float64(elapsed) / float64(time.Millisecond),
	}
	if err != nil {
		status = "error"
		fields["error"] = err.Error()
	}

	o.client.WritePoint(measurementExecution,
		map[string]string{
			"connection": o.connectionID,
			"mode":       mode.String(),
			"status":     status,
		},
		fields,
	)
}

// ObserveChange writes an sql_change point.
func (o *Observer) ObserveChange(kind database.ChangeKind, ev database.ChangeEvent) {
	o.client.WritePoint(measurementChange,
		map[string]string{
			"connection": o.connectionID,
			"table":      ev.Table,
			"action":     kind.String(),
		},
		map[string]any{
			"rowid": ev.RowID,
		},
	)
}
