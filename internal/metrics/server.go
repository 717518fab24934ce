package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Config for the metrics HTTP server.
type Config struct {
	Port int `default:"9090"`
}

// Server serves /metrics on its own port, separate from any API surface.
type Server struct {
	echo *echo.Echo
	port int
}

// StartMetricsServer registers the metric sets for services and starts the
// scrape endpoint in the background. Returns nil when Port is zero.
func StartMetricsServer(cfg Config, services []string, logger *logrus.Logger) *Server {
	if cfg.Port == 0 {
		logger.Info("metrics server disabled")
		return nil
	}

	RegisterMetrics(services, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(HTTPMiddleware())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	srv := &Server{echo: e, port: cfg.Port}
	go func() {
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Debugf("metrics server stopped: %v", err)
		}
	}()
	logger.Infof("metrics server listening on :%d", cfg.Port)
	return srv
}

// Stop shuts the scrape endpoint down.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}
