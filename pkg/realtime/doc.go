// Package realtime implements the live push channel: a room-scoped broadcast
// hub with at-least-once, drop-on-backpressure delivery, and the two
// transports that subscribe to it (websocket and server-sent events). Every
// new subscriber receives an initial metrics snapshot before any broadcast.
package realtime
