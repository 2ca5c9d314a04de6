// ABOUTME: Event bus wire protocol package
// ABOUTME: Defines broker messages and the reconnecting event client
// Package protocol implements the mixbus event protocol.
//
// Messages are single JSON objects over a WebSocket. Clients send
// subscribe, unsubscribe and emit; the broker relays emits to every
// subscriber as event messages. A shared secret travels in the
// x-auth-token header and is checked once per connection.
//
// Client is the per-process side: local handlers per event name, publish
// queuing while disconnected and subscription replay on reconnect.
//
// Example:
//
//	c := protocol.NewClient(protocol.Config{ServerAddr: "localhost:3001", Secret: secret, Name: "ui"})
//	c.Subscribe("new-volume-main", func(p json.RawMessage) { ... })
//	go c.Run(ctx)
//	c.Publish("IO-button-clicked", map[string]int{"button": 1})
package protocol
