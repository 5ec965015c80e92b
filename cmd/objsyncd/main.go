package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/objsync/internal/config"
	"github.com/danmuck/objsync/internal/observability"
	"github.com/danmuck/objsync/internal/peer"
	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/transport"
	"github.com/danmuck/objsync/internal/variant"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("config", "cmd/objsyncd/config.toml", "peer config path (empty for env only)")
	flag.Parse()

	if err := run(*path); err != nil {
		fmt.Fprintf(os.Stderr, "objsyncd: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	observability.InitLogger("objsyncd", protocol.PeerID(cfg.PeerID).String())

	engine, err := peer.NewEngine(cfg.Engine())
	if err != nil {
		return err
	}
	for _, obj := range cfg.Objects {
		id, err := engine.Spawn(variant.ParseType(obj.Type), obj.RequestedID())
		if err != nil {
			return fmt.Errorf("spawn %s: %w", obj.Type, err)
		}
		log.Info().Msgf("objsyncd.run spawned id=%d type=%s", id, obj.Type)
	}

	udp, err := transport.ListenUDP(cfg.UDP())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return peer.NewService(cfg.Service(), engine, udp).Run(ctx)
}
