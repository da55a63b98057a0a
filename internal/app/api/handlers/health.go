package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/lingobill/pkg/response"
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// @Summary      Health check
// @Description  Returns service status
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ok"}))
}

// @Summary      Readiness check
// @Description  Pings the database and, when configured, redis
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /readyz [get]
func Readyz(checks ...Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		out := make(map[string]string, len(checks))
		status := http.StatusOK
		for _, chk := range checks {
			if err := chk.Fn(ctx); err != nil {
				out[chk.Name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			out[chk.Name] = "ok"
		}
		if status != http.StatusOK {
			c.JSON(status, response.ErrorT[any](response.APIResponseCodeError, out))
			return
		}
		c.JSON(status, response.OKT(out))
	}
}

func RegisterHealthRoutes(r gin.IRouter, checks ...Check) {
	r.GET("/healthz", Healthz)
	r.GET("/readyz", Readyz(checks...))
}
