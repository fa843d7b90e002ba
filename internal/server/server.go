package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/claimsync/internal/audit/domain"
	"github.com/smallbiznis/claimsync/internal/clock"
	"github.com/smallbiznis/claimsync/internal/config"
	"github.com/smallbiznis/claimsync/internal/cursor"
	insurancedomain "github.com/smallbiznis/claimsync/internal/insurance/domain"
	"github.com/smallbiznis/claimsync/internal/journal"
	"github.com/smallbiznis/claimsync/internal/observability/logger"
	"github.com/smallbiznis/claimsync/internal/observability/metrics"
	"github.com/smallbiznis/claimsync/internal/observability/tracing"
	"github.com/smallbiznis/claimsync/internal/poller"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(func(w *poller.Worker) HeartbeatSource { return w }),
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

// HeartbeatSource reports the completion time of the last poll cycle.
type HeartbeatSource interface {
	LastHeartbeat() time.Time
}

// FailureLister reads the reconciliation failure journal.
type FailureLister interface {
	List(ctx context.Context, limit int) ([]journal.Record, error)
}

type HeartbeatStore interface {
	LastHeartbeat(ctx context.Context) (*time.Time, error)
}

type Params struct {
	fx.In

	Engine      *gin.Engine
	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	Clock       clock.Clock
	InsSvc      insurancedomain.Service
	AuditSvc    auditdomain.Service
	Failures    *journal.Journal
	Cursors     *cursor.Store
	Heartbeat   HeartbeatSource      `optional:"true"`
	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`
}

type Server struct {
	engine *gin.Engine
	db     *gorm.DB
	log    *zap.Logger
	cfg    config.Config
	clock  clock.Clock

	insSvc     insurancedomain.Service
	auditSvc   auditdomain.Service
	failures   FailureLister
	heartbeats HeartbeatStore
	heartbeat  HeartbeatSource

	httpMetrics     *metrics.HTTPMetrics
	decisionLimiter *rateLimiter
}

func NewServer(p Params) *Server {
	s := &Server{
		engine:      p.Engine,
		db:          p.DB,
		log:         p.Log.Named("server"),
		cfg:         p.Cfg,
		clock:       p.Clock,
		insSvc:      p.InsSvc,
		auditSvc:    p.AuditSvc,
		heartbeat:   p.Heartbeat,
		httpMetrics: p.HTTPMetrics,
	}
	if p.Failures != nil {
		s.failures = p.Failures
	}
	if p.Cursors != nil {
		s.heartbeats = p.Cursors
	}
	s.decisionLimiter = newRateLimiter(p.Cfg.Server.DecisionRateLimit, time.Minute, p.Clock)
	return s
}

// NewEngine builds the gin engine with request logging and HTTP metrics.
func NewEngine(cfg config.Config, log *zap.Logger, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(tracing.GinMiddleware(cfg.AppName))
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Logger:      log.Named("http"),
		SkipPaths:   []string{"/healthz", "/metrics"},
		SlowRequest: 2 * time.Second,
	}))
	engine.Use(metrics.GinMiddleware(httpMetrics))
	return engine
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api", s.OperatorAuthRequired())
	api.GET("/payers/:wallet/history", s.GetPayerHistory)
	api.GET("/payers/:wallet/claims", s.ListPayerClaims)
	api.GET("/claims", s.ListClaims)
	api.POST("/claims/:claim_id/decision", s.decisionLimiter.Middleware(), s.DecideClaim)
	api.GET("/reconcile/failures", s.ListReconcileFailures)
	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) Handler() http.Handler { return s.engine }

// RunHTTP binds the listener on start and drains in-flight requests on stop.
func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
