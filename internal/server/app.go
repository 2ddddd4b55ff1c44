// Package server wires configuration, persistence, storage, processing and
// the HTTP API into a runnable application.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pockethour/image-sentinel/internal/logging"
	"github.com/pockethour/image-sentinel/internal/netx"
	"github.com/pockethour/image-sentinel/internal/payment"
	"github.com/pockethour/image-sentinel/internal/processor"
	"github.com/pockethour/image-sentinel/internal/server/api"
	"github.com/pockethour/image-sentinel/internal/server/config"
	"github.com/pockethour/image-sentinel/internal/server/repositories/repomanager"
	"github.com/pockethour/image-sentinel/internal/server/retention"
	"github.com/pockethour/image-sentinel/internal/server/services"
	"github.com/pockethour/image-sentinel/internal/storage"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	files     *services.FileService
	handler   http.Handler
	retention *retention.RetentionWorker
}

func newStore(ctx context.Context, c *config.Config) (storage.Store, error) {
	if c.StorageBackend == config.StorageS3 {
		return storage.NewS3Store(ctx, storage.S3Config{
			Region:    c.S3Region,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Endpoint:  c.S3Endpoint,
			Bucket:    c.S3Bucket,
		})
	}
	return storage.NewFSStore(c.DataDir)
}

func newProcessor(ctx context.Context, c *config.Config, logger logging.Logger) processor.Processor {
	if c.WorkerURL == "" {
		return processor.NewLocal(logger)
	}
	client := processor.NewClient(c.WorkerURL, c.WorkerTimeout)
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Health(hctx); err != nil {
		// requests will report the worker as unavailable until it comes up
		logger.Warn(ctx, "processing worker not reachable", "url", c.WorkerURL, "error", err)
	}
	return client
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repomanager.SetLogger(logger)
	rm, err := repomanager.New(c.DatabaseDriver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := newStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	svc := services.NewFileService(db, rm, store, newProcessor(ctx, c, logger),
		payment.NewSandboxGateway(c.PaymentSecret, c.CheckoutURL),
		services.Config{
			MaxUploadBytes: c.MaxUploadBytes,
			WorkDir:        c.WorkDir,
			Price:          c.Price,
			Currency:       c.Currency,
			PresignTTL:     c.PresignTTL,
		}, logger)

	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		files:     svc,
		handler:   api.NewHandler(svc, c.MaxUploadBytes, logger).Routes(),
		retention: retention.NewRetentionWorker(svc, c.RetentionWindow, c.SweepInterval, logger),
	}, nil
}

// Handler returns the HTTP handler served by Run.
func (app *App) Handler() http.Handler {
	return app.handler
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP and runs the retention worker until ctx is cancelled, a
// termination signal arrives, or either fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)
	app.logger.Info(ctx, "starting app", "address", app.config.HTTPAddress,
		"db", app.config.DatabaseDriver, "storage", app.config.StorageBackend)

	srv := &http.Server{
		Addr:              app.config.HTTPAddress,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return netx.Serve(gctx, srv, app.logger) })
	g.Go(func() error { return app.retention.Run(gctx) })

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	app.logger.Info(context.Background(), "app stopped")
	return err
}
