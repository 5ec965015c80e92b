// Package peer wires one local peer together: an Engine that applies inbound
// messages and runs the sync trigger each tick, and a Service that drives the
// engine from a transport and exposes an admin HTTP API.
package peer
