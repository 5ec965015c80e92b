package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/danmuck/objsync/internal/variant"
)

type fileConfig struct {
	PeerID           uint64        `toml:"peer_id"`
	ListenAddr       string        `toml:"listen_addr"`
	Peers            []string      `toml:"peers"`
	AdminAddr        string        `toml:"admin_addr"`
	AdminToken       string        `toml:"admin_token"`
	CORSOrigins      []string      `toml:"cors_origins"`
	TickInterval     string        `toml:"tick_interval"`
	SyncRange        float32       `toml:"sync_range"`
	PeriodicRange    float32       `toml:"periodic_range"`
	PeriodicInterval string        `toml:"periodic_interval"`
	Position         []float32     `toml:"position"`
	Request          requestConfig `toml:"request"`
	Objects          []fileObject  `toml:"objects"`
}

type fileObject struct {
	Type string `toml:"type"`
	ID   *int32 `toml:"id"`
}

type requestConfig struct {
	Timeout      string  `toml:"timeout"`
	MaxAttempts  int     `toml:"max_attempts"`
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

// envOverrides are applied after the file. Unset variables leave the field
// nil.
type envOverrides struct {
	PeerID       *uint64        `env:"OBJSYNC_PEER_ID"`
	ListenAddr   *string        `env:"OBJSYNC_LISTEN_ADDR"`
	Peers        []string       `env:"OBJSYNC_PEERS" envSeparator:","`
	AdminAddr    *string        `env:"OBJSYNC_ADMIN_ADDR"`
	AdminToken   *string        `env:"OBJSYNC_ADMIN_TOKEN"`
	TickInterval *time.Duration `env:"OBJSYNC_TICK_INTERVAL"`
	SyncRange    *float32       `env:"OBJSYNC_SYNC_RANGE"`
}

// Load reads a TOML file over the defaults and then applies environment
// overrides. An empty path skips the file.
func Load(path string) (PeerConfig, error) {
	cfg := DefaultPeerConfig()
	if strings.TrimSpace(path) != "" {
		if err := applyFile(&cfg, path); err != nil {
			return PeerConfig{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return PeerConfig{}, err
	}
	cfg.Session = cfg.Session.WithDefaults()
	if err := Validate(cfg); err != nil {
		return PeerConfig{}, err
	}
	return cfg, nil
}

func applyFile(cfg *PeerConfig, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("peer_id") {
		cfg.PeerID = raw.PeerID
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("peers") {
		cfg.Peers = normalizeList(raw.Peers)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeList(raw.CORSOrigins)
	}
	if meta.IsDefined("tick_interval") {
		if cfg.TickInterval, err = parseDuration("tick_interval", raw.TickInterval); err != nil {
			return err
		}
	}
	if meta.IsDefined("sync_range") {
		cfg.SyncRange = raw.SyncRange
	}
	if meta.IsDefined("periodic_range") {
		cfg.PeriodicRange = raw.PeriodicRange
	}
	if meta.IsDefined("periodic_interval") {
		if cfg.PeriodicInterval, err = parseDuration("periodic_interval", raw.PeriodicInterval); err != nil {
			return err
		}
	}
	if meta.IsDefined("position") {
		if len(raw.Position) != 3 {
			return fmt.Errorf("%w: position needs 3 values, got %d", ErrInvalidConfig, len(raw.Position))
		}
		cfg.Position = variant.Vec3{X: raw.Position[0], Y: raw.Position[1], Z: raw.Position[2]}
		cfg.HasPosition = true
	}

	if meta.IsDefined("request", "timeout") {
		if cfg.Session.RequestTimeout, err = parseDuration("request.timeout", raw.Request.Timeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("request", "max_attempts") {
		cfg.Session.MaxAttempts = raw.Request.MaxAttempts
	}
	if meta.IsDefined("request", "initial_delay") {
		if cfg.Session.Backoff.InitialDelay, err = parseDuration("request.initial_delay", raw.Request.InitialDelay); err != nil {
			return err
		}
	}
	if meta.IsDefined("request", "multiplier") {
		cfg.Session.Backoff.Multiplier = raw.Request.Multiplier
	}
	if meta.IsDefined("request", "max_delay") {
		if cfg.Session.Backoff.MaxDelay, err = parseDuration("request.max_delay", raw.Request.MaxDelay); err != nil {
			return err
		}
	}
	if meta.IsDefined("request", "jitter") {
		cfg.Session.Backoff.Jitter = raw.Request.Jitter
	}

	if meta.IsDefined("objects") {
		cfg.Objects = make([]ObjectConfig, 0, len(raw.Objects))
		for _, obj := range raw.Objects {
			id := int32(-1)
			if obj.ID != nil {
				id = *obj.ID
			}
			cfg.Objects = append(cfg.Objects, ObjectConfig{Type: strings.TrimSpace(obj.Type), ID: id})
		}
	}
	return nil
}

func applyEnv(cfg *PeerConfig) error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if ov.PeerID != nil {
		cfg.PeerID = *ov.PeerID
	}
	if ov.ListenAddr != nil {
		cfg.ListenAddr = strings.TrimSpace(*ov.ListenAddr)
	}
	if ov.Peers != nil {
		cfg.Peers = normalizeList(ov.Peers)
	}
	if ov.AdminAddr != nil {
		cfg.AdminAddr = strings.TrimSpace(*ov.AdminAddr)
	}
	if ov.AdminToken != nil {
		cfg.AdminToken = strings.TrimSpace(*ov.AdminToken)
	}
	if ov.TickInterval != nil {
		cfg.TickInterval = *ov.TickInterval
	}
	if ov.SyncRange != nil {
		cfg.SyncRange = *ov.SyncRange
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
