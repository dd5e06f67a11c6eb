// Package hub implements the connection registry and everything that reads or mutates it.
//
// Registry holds live connections keyed by id. Dispatcher routes inbound frames for one connection,
// Broadcaster fans envelopes out by channel, user or role, and HeartbeatMonitor reaps connections
// that stopped proving liveness. Each connection owns a writer goroutine fed by a bounded buffer;
// sends never block, and a full buffer gets the connection evicted.
package hub
