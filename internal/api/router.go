package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intervita/sessiond/internal/app"
	"github.com/intervita/sessiond/internal/handlers"
	"github.com/intervita/sessiond/internal/middleware"
	"github.com/intervita/sessiond/internal/token"
)

// NewRouter builds the Gin engine, wires middleware and registers the
// credential issuance routes.
func NewRouter(svc *token.Service, cfg *app.Config, rateStore middleware.RateStore) (*gin.Engine, error) {
	if svc == nil {
		return nil, fmt.Errorf("token service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	r.GET("/health", handlers.Health())

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	tokenHandler, err := handlers.NewTokenHandler(svc)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")
	if cfg.Server.RateLimit.Enabled {
		api.Use(middleware.RateLimit(rateStore, cfg.Server.RateLimit.MaxRequests, cfg.Server.RateLimit.Window))
	}
	{
		// One endpoint, two call styles: query parameters or JSON body.
		api.GET("/token", tokenHandler.Issue)
		api.POST("/token", tokenHandler.Issue)
	}

	return r, nil
}
