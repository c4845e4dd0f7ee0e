// Package influxdb records loopdb statement metrics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. An Observer plugs
// into database.Connection.SetObserver and turns every execution call into
// an sql_execution point and every row change into an sql_change point.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	conn.SetObserver(client.Observer(conn.ID()))
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; batch failures are
// reported through SetOnError.
package influxdb
