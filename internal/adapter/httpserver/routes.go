package httpserver

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/radudiaconu0/sockudo/internal/adapter/metrics"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(requestLogger())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000,                          // 2 years; only sent over HTTPS
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	s.registerHealthRoutes()
	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}

	s.echo.GET("/app/:key", s.handleWebSocket)
	s.registerAPIRoutes()
}

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/apps/:app_id")
	if s.config.APIRateLimit > 0 {
		api.Use(newRateLimiter(s.config.APIRateLimit, s.config.APIRateBurst))
	}

	api.POST("/events", s.handlePublishEvent)
	api.POST("/batch_events", s.handlePublishBatch)
	api.GET("/channels", s.handleListChannels)
	api.GET("/channels/:channel_name", s.handleChannelInfo)
	api.GET("/sockets", s.handleListSockets)
}

// requestLogger logs one line per request. Probe and scrape traffic goes to
// Debug, client errors to Warn and server errors to Error.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
			}
			ctx := c.Request().Context()
			slog.LogAttrs(ctx, requestLogLevel(c.Path(), v.Status), "Request", attrs...)
			return nil
		},
	})
}

func requestLogLevel(route string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case route == "/metrics" || strings.HasPrefix(route, "/health/"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func (s *Server) handleWebSocket(c echo.Context) error {
	s.websocket.Serve(c.Response(), c.Request(), c.Param("key"))
	return nil
}
