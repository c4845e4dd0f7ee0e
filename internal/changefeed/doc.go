// Package changefeed republishes database row changes on MQTT.
//
// A Bridge subscribes to insert, update and delete events of one or more
// database.Connection values. Listeners run on the connection's
// dispatcher goroutine, so they only enqueue; a worker goroutine owned by
// the bridge encodes each change and publishes it on
//
//	<prefix>/change/<table>/<action>
//
// When the buffer is full the change is dropped and counted rather than
// stalling the dispatcher.
package changefeed
