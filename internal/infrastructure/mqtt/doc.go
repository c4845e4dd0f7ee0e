// Package mqtt provides the MQTT client loopdb publishes change events
// through.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees
//   - A retained online/offline status with Last Will and Testament
//   - Topic builders under a configurable prefix
//
// Topics:
//
//	{prefix}/change/{table}/{insert|update|delete}
//	{prefix}/system/status
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().Change("users", "insert")
//	err = client.PublishJSON(topic, payload, false)
package mqtt
