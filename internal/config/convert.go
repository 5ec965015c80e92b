package config

import (
	"time"

	"github.com/danmuck/objsync/internal/ownership"
	"github.com/danmuck/objsync/internal/peer"
	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/transport"
	"github.com/danmuck/objsync/internal/trigger"
)

func (c PeerConfig) Identity() ownership.StaticIdentity {
	return ownership.StaticIdentity{ID: protocol.PeerID(c.PeerID)}
}

func (c PeerConfig) Locator() *trigger.FixedLocator {
	return &trigger.FixedLocator{Pos: c.Position, Present: c.HasPosition}
}

func (c PeerConfig) Engine() peer.EngineConfig {
	return peer.EngineConfig{
		Identity:         c.Identity(),
		Locator:          c.Locator(),
		SyncRange:        c.SyncRange,
		PeriodicRange:    c.PeriodicRange,
		PeriodicInterval: c.PeriodicInterval,
		Session:          c.Session,
	}
}

func (c PeerConfig) Service() peer.ServiceConfig {
	return peer.ServiceConfig{
		AdminAddr:    c.AdminAddr,
		TickInterval: c.TickInterval,
		CORSOrigins:  c.CORSOrigins,
		AdminToken:   c.AdminToken,
	}
}

func (c PeerConfig) UDP() transport.UDPConfig {
	return transport.UDPConfig{
		ListenAddr:  c.ListenAddr,
		Peers:       c.Peers,
		ReadTimeout: 250 * time.Millisecond,
	}
}
