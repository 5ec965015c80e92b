// Package transport carries encoded object sync messages between peers.
// UDP is the network transport; MemoryBus connects peers inside one process.
package transport
