// Package websocket pushes analysis change events to connected browsers.
//
// A Hub owns the set of clients and fans every broadcast out to them. Each
// Client runs a read pump, which only watches for disconnects and heartbeats,
// and a write pump that forwards hub messages and keeps the connection alive
// with pings.
//
// Events are JSON objects:
//
//	{"type":"analysis:updated","data":{...},"timestamp":"2024-03-01T12:00:00Z","trace_id":"..."}
package websocket
