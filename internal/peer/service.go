package peer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/objsync/internal/observability"
	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/transport"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Transport moves encoded messages between this peer and the others.
type Transport interface {
	Send(ctx context.Context, msg *protocol.ObjectSyncMessage) error
	Receive(ctx context.Context) (*protocol.ObjectSyncMessage, error)
	Close() error
}

type ServiceConfig struct {
	AdminAddr    string
	TickInterval time.Duration
	InboxSize    int
	CORSOrigins  []string
	// AdminToken guards mutating admin routes when set.
	AdminToken string
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		AdminAddr:    "127.0.0.1:7400",
		TickInterval: 50 * time.Millisecond,
		InboxSize:    1024,
		CORSOrigins:  []string{"http://localhost:3000"},
	}
}

// Service drives an Engine from a Transport on a fixed tick and serves the
// admin API. The engine is guarded by mu so admin calls land between ticks.
type Service struct {
	cfg       ServiceConfig
	transport Transport

	mu     sync.Mutex
	engine *Engine

	inbox   chan protocol.ObjectSyncMessage
	router  *gin.Engine
	label   string
	started time.Time
	ready   atomic.Bool
	now     func() time.Time
}

func NewService(cfg ServiceConfig, engine *Engine, tr Transport) *Service {
	def := DefaultServiceConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = def.InboxSize
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = def.CORSOrigins
	}
	s := &Service{
		cfg:       cfg,
		transport: tr,
		engine:    engine,
		inbox:     make(chan protocol.ObjectSyncMessage, cfg.InboxSize),
		label:     engine.LocalID().String(),
		started:   time.Now(),
		now:       time.Now,
	}
	s.router = s.newRouter()
	return s
}

func (s *Service) Router() *gin.Engine {
	return s.router
}

// WithEngine runs fn with exclusive access to the engine.
func (s *Service) WithEngine(fn func(*Engine)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.engine)
}

// Run blocks until ctx is cancelled or a loop fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 3)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- s.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		errs <- s.tickLoop(ctx)
	}()

	var srv *http.Server
	if addr := strings.TrimSpace(s.cfg.AdminAddr); addr != "" {
		srv = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info().Msgf("peer.Service.Run admin listening addr=%q", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
	}
	s.ready.Store(true)
	log.Info().Msgf("peer.Service.Run started peer=%s tick=%s", s.label, s.cfg.TickInterval)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
	}
	s.ready.Store(false)
	cancel()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		done()
	}
	_ = s.transport.Close()
	wg.Wait()
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		msg, err := s.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, transport.ErrClosed) {
				return err
			}
			observability.RecordDropped(s.label, "decode")
			log.Debug().Msgf("peer.Service.readLoop receive: %v", err)
			continue
		}
		select {
		case s.inbox <- *msg:
		default:
			observability.RecordDropped(s.label, "inbox_full")
		}
	}
}

func (s *Service) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	batch := s.drain()
	s.mu.Lock()
	out := s.engine.Tick(s.now(), batch)
	s.mu.Unlock()
	s.send(ctx, out)
}

func (s *Service) drain() []protocol.ObjectSyncMessage {
	var batch []protocol.ObjectSyncMessage
	for {
		select {
		case msg := <-s.inbox:
			batch = append(batch, msg)
		default:
			return batch
		}
	}
}

func (s *Service) send(ctx context.Context, out []protocol.ObjectSyncMessage) {
	for i := range out {
		if err := s.transport.Send(ctx, &out[i]); err != nil {
			log.Warn().Msgf("peer.Service.send %s: %v", out[i], err)
		}
	}
}
