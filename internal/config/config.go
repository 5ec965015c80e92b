package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/objsync/internal/protocol/session"
	"github.com/danmuck/objsync/internal/registry"
	"github.com/danmuck/objsync/internal/variant"
)

var ErrInvalidConfig = errors.New("config: invalid")

// PeerConfig is everything one objsyncd process needs.
type PeerConfig struct {
	PeerID      uint64
	ListenAddr  string
	Peers       []string
	AdminAddr   string
	AdminToken  string
	CORSOrigins []string

	TickInterval     time.Duration
	SyncRange        float32
	PeriodicRange    float32
	PeriodicInterval time.Duration

	// Position is the local peer's fixed location used for range checks.
	// Range checks are off when HasPosition is false.
	Position    variant.Vec3
	HasPosition bool

	Session session.Config
	Objects []ObjectConfig
}

// ObjectConfig declares an object spawned at startup. ID < 0 requests
// automatic assignment.
type ObjectConfig struct {
	Type string
	ID   int32
}

// RequestedID is the id to pass to registration.
func (o ObjectConfig) RequestedID() int32 {
	if o.ID < 0 {
		return registry.AutoID
	}
	return o.ID
}

func DefaultPeerConfig() PeerConfig {
	return PeerConfig{
		ListenAddr:       ":7300",
		AdminAddr:        "127.0.0.1:7400",
		CORSOrigins:      []string{"http://localhost:3000"},
		TickInterval:     50 * time.Millisecond,
		SyncRange:        25,
		PeriodicRange:    50,
		PeriodicInterval: 2 * time.Second,
		Session:          session.DefaultConfig(),
	}
}

func Validate(cfg PeerConfig) error {
	if cfg.PeerID == 0 {
		return fmt.Errorf("%w: peer_id must be non-zero", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("%w: listen_addr is required", ErrInvalidConfig)
	}
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("%w: tick_interval must be positive", ErrInvalidConfig)
	}
	if cfg.SyncRange < 0 || cfg.PeriodicRange < 0 {
		return fmt.Errorf("%w: ranges must not be negative", ErrInvalidConfig)
	}
	if cfg.PeriodicInterval <= 0 {
		return fmt.Errorf("%w: periodic_interval must be positive", ErrInvalidConfig)
	}
	seen := make(map[int32]struct{}, len(cfg.Objects))
	for i, obj := range cfg.Objects {
		if strings.TrimSpace(obj.Type) == "" {
			return fmt.Errorf("%w: objects[%d] type is required", ErrInvalidConfig, i)
		}
		if obj.ID < 0 {
			continue
		}
		if _, dup := seen[obj.ID]; dup {
			return fmt.Errorf("%w: objects[%d] duplicate id %d", ErrInvalidConfig, i, obj.ID)
		}
		seen[obj.ID] = struct{}{}
	}
	return nil
}
