package rest

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pgfinder/internal/logging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const shutdownTimeout = 10 * time.Second

// Options configure the HTTP server.
type Options struct {
	Address          string
	BasePath         string
	CORSAllowOrigins string
}

type Server struct {
	app     *fiber.App
	address string
	logger  logging.Logger
}

func NewServer(opts Options, h *Handler, l logging.Logger) *Server {
	logger := l.With("module", "http_server")

	app := fiber.New(fiber.Config{
		AppName:               "pgfinder",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(h),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(requestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	RegisterRoutes(app.Group(opts.BasePath), h)

	return &Server{app: app, address: opts.Address, logger: logger}
}

// App exposes the fiber application, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.logger.Error(ctx, "HTTP shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	return s.app.Listen(s.address)
}
