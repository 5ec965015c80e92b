package peer

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/objsync/internal/auth"
	"github.com/danmuck/objsync/internal/observability"
	"github.com/danmuck/objsync/internal/ownership"
	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/registry"
	"github.com/danmuck/objsync/internal/variant"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (s *Service) newRouter() *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(s.label))
	r.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", auth.HeaderToken},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"peer":    s.label,
			"version": "0.0.1",
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := s.ready.Load()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready": ready,
			"peer":  s.label,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/objects", func(c *gin.Context) {
		var objects []ownership.Snapshot
		s.WithEngine(func(e *Engine) { objects = e.Snapshot() })
		c.JSON(http.StatusOK, gin.H{"objects": objects})
	})

	// Mutating routes require the admin token when one is configured.
	w := r.Group("")
	if s.cfg.AdminToken != "" {
		w.Use(auth.Middleware(auth.StaticToken{Token: s.cfg.AdminToken}))
	}

	w.POST("/objects", func(c *gin.Context) {
		var req spawnRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		requested := registry.AutoID
		if req.ID != nil {
			requested = *req.ID
		}
		var (
			id  int32
			err error
		)
		s.WithEngine(func(e *Engine) { id, err = e.Spawn(variant.ParseType(req.Type), requested) })
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	})

	r.GET("/objects/:id", func(c *gin.Context) {
		id, ok := objectID(c)
		if !ok {
			return
		}
		var (
			snap ownership.Snapshot
			err  error
		)
		s.WithEngine(func(e *Engine) { snap, err = e.Object(id) })
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	w.DELETE("/objects/:id", s.action(func(e *Engine, id int32) ([]protocol.ObjectSyncMessage, error) {
		return e.Despawn(id)
	}))
	w.POST("/objects/:id/claim", s.action(func(e *Engine, id int32) ([]protocol.ObjectSyncMessage, error) {
		return e.Claim(id)
	}))
	w.POST("/objects/:id/release", s.action(func(e *Engine, id int32) ([]protocol.ObjectSyncMessage, error) {
		return e.Release(id)
	}))
	w.POST("/objects/:id/force", s.action(func(e *Engine, id int32) ([]protocol.ObjectSyncMessage, error) {
		return e.Force(id)
	}))
	w.POST("/objects/:id/request", s.action(func(e *Engine, id int32) ([]protocol.ObjectSyncMessage, error) {
		return e.Request(id, s.now())
	}))
	w.POST("/objects/:id/constant-sync", s.toggle("enabled", func(e *Engine, id int32, on bool) error {
		return e.SetConstantSync(id, on)
	}))
	w.POST("/objects/:id/sync-enabled", s.toggle("enabled", func(e *Engine, id int32, on bool) error {
		return e.SetSyncEnabled(id, on)
	}))
	return r
}

type spawnRequest struct {
	Type string `json:"type" binding:"required"`
	ID   *int32 `json:"id"`
}

// action runs one local ownership action and sends what it produced.
func (s *Service) action(fn func(*Engine, int32) ([]protocol.ObjectSyncMessage, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectID(c)
		if !ok {
			return
		}
		var (
			out []protocol.ObjectSyncMessage
			err error
		)
		s.WithEngine(func(e *Engine) { out, err = fn(e, id) })
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		s.send(c.Request.Context(), out)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sent": len(out)})
	}
}

func (s *Service) toggle(param string, fn func(*Engine, int32, bool) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectID(c)
		if !ok {
			return
		}
		on, err := strconv.ParseBool(c.Query(param))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter " + param + " must be a bool"})
			return
		}
		s.WithEngine(func(e *Engine) { err = fn(e, id, on) })
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", param: on})
	}
}

func objectID(c *gin.Context) (int32, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object id"})
		return 0, false
	}
	return int32(id), true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ownership.ErrUnknownObject), errors.Is(err, registry.ErrUnknownID):
		return http.StatusNotFound
	case errors.Is(err, ownership.ErrNotOwner), errors.Is(err, registry.ErrDuplicateID), errors.Is(err, registry.ErrExhausted):
		return http.StatusConflict
	case errors.Is(err, variant.ErrUnsupportedObjectType), errors.Is(err, registry.ErrInvalidID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
