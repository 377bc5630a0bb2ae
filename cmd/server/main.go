package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/syncd-app/syncd-api/internal/config"
	"github.com/syncd-app/syncd-api/internal/handlers"
	"github.com/syncd-app/syncd-api/internal/middleware"
	"github.com/syncd-app/syncd-api/internal/migration"
	"github.com/syncd-app/syncd-api/internal/notification"
	"github.com/syncd-app/syncd-api/internal/repository"
	"github.com/syncd-app/syncd-api/internal/routes"
	"github.com/syncd-app/syncd-api/internal/scheduler"
	"github.com/syncd-app/syncd-api/internal/scraper"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config *config.Config
	db     *sqlx.DB
	logger zerolog.Logger

	users         repository.UserRepository
	tasks         repository.TaskRepository
	events        repository.EventRepository
	notifications repository.NotificationRepository

	scheduler *scheduler.Service
	scraper   *scraper.Scraper
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sqlx.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(db.DB, logger)

	// Repositories share one transaction manager.
	tm := repository.NewTransactionManager(db)

	app := &application{
		config:        cfg,
		db:            db,
		logger:        logger,
		users:         repository.NewUserRepository(db, tm),
		tasks:         repository.NewTaskRepository(db, tm),
		events:        repository.NewEventRepository(db, tm),
		notifications: repository.NewNotificationRepository(db),
	}

	app.scheduler = scheduler.NewService(app.users, app.notifications, logger)
	app.scraper = scraper.New(cfg.Scraper, app.events, logger)

	// Email dispatch for the notification sweep.
	mailer, err := notification.NewSMTPMailer(cfg.Email)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure mailer")
	}
	sender := notification.NewEmailSender(mailer, app.users, app.tasks, app.events, logger)

	processor := scheduler.NewProcessor(app.notifications, sender, app.scheduler, logger)
	if err := processor.Start(cfg.Notifications.SweepSpec, cfg.Notifications.DigestSpec); err != nil {
		logger.Fatal().Err(err).Msg("failed to start notification processor")
	}

	// Background scraper loop.
	scraperCtx, cancelScraper := context.WithCancel(context.Background())
	go func() {
		if err := app.scraper.Start(scraperCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("scraper exited")
		}
	}()

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{cfg.AllowedOrigin}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger, func() {
		cancelScraper()
		processor.Stop()
	})

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	authHandler := handlers.NewAuthHandler(app.users, app.config.JWTSecret, logger)
	taskHandler := handlers.NewTaskHandler(app.tasks, app.scheduler, logger)
	eventHandler := handlers.NewEventHandler(app.events, app.scheduler, app.scraper, logger)
	notificationHandler := handlers.NewNotificationHandler(app.notifications, logger)

	return routes.NewRouter(authHandler, taskHandler, eventHandler, notificationHandler)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger, stopBackground func()) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	stopBackground()
	logger.Info().Msg("Background services stopped.")
}
