package handler

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/response"
)

// HealthStatus is the body of GET /healthz.
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// Health pings every component concurrently. Any failure answers 503.
func (h *Handler) Health(c *gin.Context) {
	status := HealthStatus{Status: "ok", Components: make(map[string]string, len(h.components))}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, p := range h.components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.HealthTimeout)
			defer cancel()

			state := "ok"
			if err := p.Ping(ctx); err != nil {
				logger.Warnw("health check failed", "component", p.Name(), "error", err.Error())
				state = err.Error()
			}
			mu.Lock()
			status.Components[p.Name()] = state
			if state != "ok" {
				status.Status = "degraded"
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	resp := response.Success(status)
	if status.Status != "ok" {
		e := apierrors.ErrServiceUnavailable
		resp.Code, resp.HTTPCode, resp.Message = e.Code, e.HTTPStatus(), e.MessageEN
	}
	resp.WithRequestID(c.Writer.Header().Get(response.HeaderRequestID))
	c.JSON(resp.HTTPStatus(), resp)
}
