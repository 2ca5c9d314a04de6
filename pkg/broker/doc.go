// ABOUTME: Event broker package
// ABOUTME: Topic-based WebSocket pub/sub server for mixbus processes
// Package broker implements the mixbus event broker.
//
// The broker keeps one table, event name to live connections, and relays
// every emit to the connections subscribed to that name. Emits for names
// with no subscribers are dropped. A connection's subscriptions disappear
// with it; clients replay them after reconnecting.
//
// Example:
//
//	srv := broker.New(broker.Config{Port: 3001, Secret: os.Getenv("EVENT_SERVER_SECRET")})
//	go srv.Start()
//	defer srv.Stop()
package broker
