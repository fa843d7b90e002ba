package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	healthOK          = "ok"
	healthStarting    = "starting"
	healthStale       = "stale"
	healthUnavailable = "unavailable"
)

// Healthz reports database reachability and poller liveness.
func (s *Server) Healthz(c *gin.Context) {
	ctx := c.Request.Context()

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.log.Warn("health check database ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": healthUnavailable})
		return
	}

	var last time.Time
	if s.heartbeat != nil {
		last = s.heartbeat.LastHeartbeat()
	}
	if last.IsZero() && s.heartbeats != nil {
		stored, err := s.heartbeats.LastHeartbeat(ctx)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if stored != nil {
			last = stored.UTC()
		}
	}

	if last.IsZero() {
		c.JSON(http.StatusOK, gin.H{"status": healthStarting})
		return
	}

	body := gin.H{"status": healthOK, "last_heartbeat_at": last.Format(time.RFC3339)}
	staleAfter := s.cfg.Server.HeartbeatStaleAfter
	if staleAfter > 0 && s.clock.Now().Sub(last) > staleAfter {
		body["status"] = healthStale
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
