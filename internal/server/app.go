// Package server wires the identity service together: configuration and
// secrets, the database, mail delivery, the services, and the REST and gRPC
// servers. It handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/pgfinder/internal/common"
	"github.com/dmitrijs2005/pgfinder/internal/logging"
	"github.com/dmitrijs2005/pgfinder/internal/server/auth"
	"github.com/dmitrijs2005/pgfinder/internal/server/awsx"
	"github.com/dmitrijs2005/pgfinder/internal/server/config"
	"github.com/dmitrijs2005/pgfinder/internal/server/mail"
	"github.com/dmitrijs2005/pgfinder/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pgfinder/internal/server/rest"
	"github.com/dmitrijs2005/pgfinder/internal/server/secrets"
	"github.com/dmitrijs2005/pgfinder/internal/server/services"

	gs "github.com/dmitrijs2005/pgfinder/internal/server/grpc"
)

// seams
var (
	openDB               = repomanager.OpenDB
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
	loadSecrets          = secrets.Load
)

type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	dispatcher *mail.Dispatcher
	bootstrap  *services.BootstrapService
	httpServer runner
	grpcServer runner
}

// AWSSettings returns the AWS client settings carried by the config.
func AWSSettings(c *config.Config) awsx.Settings {
	return awsx.Settings{
		Region:          c.AWSRegion,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
		Endpoint:        c.AWSEndpoint,
	}
}

// PrepareConfig applies secrets from Secrets Manager and validates the
// result. In dev mode a missing secret key is replaced by a random one.
func PrepareConfig(ctx context.Context, c *config.Config, logger logging.Logger) error {
	if err := loadSecrets(ctx, c); err != nil {
		return fmt.Errorf("secrets load error: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.SecretKey == "" {
		key, err := common.MakeRandHexString(32)
		if err != nil {
			return fmt.Errorf("secret key generation error: %w", err)
		}
		c.SecretKey = key
		logger.Warn(ctx, "no secret key configured, using a random one; tokens will not survive a restart")
	}
	return nil
}

// OpenStore opens the database and brings the schema up to date.
func OpenStore(ctx context.Context, c *config.Config) (*sql.DB, repomanager.RepositoryManager, error) {
	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	m := newRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations error: %w", err)
	}
	return db, m, nil
}

func newMailSender(ctx context.Context, c *config.Config, logger logging.Logger) (mail.Sender, error) {
	if c.MailTransport == config.MailTransportSES {
		return mail.NewSESSender(ctx, AWSSettings(c), c.MailFrom)
	}
	return mail.NewLogSender(logger.With("module", "mail")), nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := PrepareConfig(ctx, c, logger); err != nil {
		return nil, err
	}

	db, m, err := OpenStore(ctx, c)
	if err != nil {
		return nil, err
	}

	sender, err := newMailSender(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mail init error: %w", err)
	}
	composer := mail.NewComposer(c.FrontendURL, c.VerificationTokenTTL, c.PasswordResetTokenTTL)
	dispatcher := mail.NewDispatcher(sender, composer, c.MailTimeout, logger)

	hasher := auth.NewPasswordHasher(c.PasswordHashCost)
	codec := auth.NewTokenCodec([]byte(c.SecretKey), c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)

	vs := services.NewVerificationService(db, m, c, dispatcher, logger)
	ss := services.NewSessionService(db, m, c, hasher, codec, vs, logger)
	as := services.NewAccountService(db, m, c, logger)
	ps := services.NewPasswordResetService(db, m, c, hasher, dispatcher, logger)
	bs := services.NewBootstrapService(db, m, c, hasher, logger)

	h := rest.NewHandler(ss, vs, as, ps, codec, c.DefaultPhoneRegion, logger)
	httpServer := rest.NewServer(rest.Options{
		Address:          c.EndpointAddrHTTP,
		BasePath:         c.BasePath,
		CORSAllowOrigins: c.CORSAllowOrigins,
	}, h, logger)

	grpcServer := gs.NewGRPCServer(c.EndpointAddrGRPC, logger, codec)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		dispatcher: dispatcher,
		bootstrap:  bs,
		httpServer: httpServer,
		grpcServer: grpcServer,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startServer(ctx context.Context, cancelFunc context.CancelFunc, name string, s runner) {
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped", "server", name, "error", err)
		cancelFunc()
	}
}

// Run seeds the administrator, then serves REST and gRPC until a signal
// arrives or either server fails. Pending mail is drained before the
// database is closed.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if _, err := app.bootstrap.EnsureAdmin(ctx); err != nil {
		_ = app.db.Close()
		return fmt.Errorf("admin bootstrap error: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startServer(ctx, cancelFunc, "http", app.httpServer)
	}()
	go func() {
		defer wg.Done()
		app.startServer(ctx, cancelFunc, "grpc", app.grpcServer)
	}()

	wg.Wait()

	app.dispatcher.Wait()

	app.logger.Info(ctx, "App stopped")

	return app.db.Close()
}
