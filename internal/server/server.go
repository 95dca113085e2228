package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rocha19/userserver/internal/domain"
	"github.com/rocha19/userserver/internal/events"
	"github.com/rocha19/userserver/internal/migrations"
	"github.com/rocha19/userserver/internal/repository"
)

type Server struct {
	logger        *slog.Logger
	startTime     time.Time
	db            *pgxpool.Pool
	config        *Config
	migrator      *migrations.Migrator
	userService   *domain.UserService
	eventConsumer events.EventConsumer
	eventSink     io.Closer
	handlers      *UserHandlers

	httpServer   *http.Server
	listener     *Listener
	stopListener context.CancelFunc
	serveDone    chan error
}

type HealthResponse struct {
	Status    string        `json:"status"`
	Uptime    time.Duration `json:"uptime"`
	StartTime time.Time     `json:"start_time"`
}

func NewServer(config *Config, logger *slog.Logger) (*Server, error) {
	logger.Info("configuration loaded",
		"listen_addr", config.ListenAddr,
		"transport", config.Transport,
		"worker_count", config.WorkerCount,
		"event_consumer_type", config.EventConsumerType,
		"event_sink", config.EventSink)

	server := &Server{
		logger:    logger,
		startTime: time.Now(),
		config:    config,
	}

	if err := server.initDatabase(); err != nil {
		server.close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := server.initEventConsumer(); err != nil {
		server.close()
		return nil, fmt.Errorf("failed to initialize event consumer: %w", err)
	}

	server.initUserService()

	return server, nil
}

func (s *Server) initDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connString := s.config.DBConnString

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = s.config.DBMaxConns
	config.MinConns = s.config.DBMinConns
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	s.logger.Info("connecting to database", "host", config.ConnConfig.Host, "database", config.ConnConfig.Database)

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	s.db = pool

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.logger.Info("database connection established successfully")

	migrator, err := migrations.NewMigrator(connString, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	s.migrator = migrator

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *Server) newEventSink() events.EventRepository {
	if s.config.EventSink == SinkKafka {
		sink := repository.NewKafkaEventsRepository(
			repository.NewKafkaWriter(s.config.KafkaBrokers, s.config.KafkaTopic))
		s.eventSink = sink
		s.logger.Info("recording events to kafka", "brokers", s.config.KafkaBrokers, "topic", s.config.KafkaTopic)
		return sink
	}
	return repository.NewDBEventsRepository(s.db)
}

func (s *Server) initEventConsumer() error {
	ctx := context.Background()

	switch s.config.EventConsumerType {
	case ConsumerNone:
		s.eventConsumer = events.NopConsumer{}
		s.logger.Info("event recording disabled")
	case ConsumerGoChannel:
		consumer := events.NewConsumer(s.newEventSink(), events.ConsumerOptions{
			BufferSize:   1000,
			BatchSize:    100,
			BatchTimeout: 100 * time.Millisecond,
			WorkerCount:  4,
			Logger:       s.logger,
		})

		s.eventConsumer = consumer
		s.eventConsumer.Start(ctx)
		s.logger.Info("initialized GoChannel consumer")
	case ConsumerWAL:
		walConsumer, err := events.NewWALConsumer(s.newEventSink(), events.WALConsumerOptions{
			BufferSize:       1000,
			BatchSize:        100,
			BatchTimeout:     100 * time.Millisecond,
			WALDir:           s.config.WALDir,
			WALPrefix:        "event_",
			SegmentThreshold: 1000,
			MaxSegments:      10,
			IsInSyncDiskMode: false,
			WorkerCount:      4,
			Logger:           s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create WAL consumer: %w", err)
		}

		s.eventConsumer = walConsumer
		s.eventConsumer.Start(ctx)
		s.logger.Info("initialized WAL consumer", "dir", s.config.WALDir)
	default:
		return fmt.Errorf("unsupported event consumer type: %s", s.config.EventConsumerType)
	}

	return nil
}

func (s *Server) initUserService() {
	userRepo := repository.NewDBUserRepository(s.db)
	s.userService = domain.NewUserService(userRepo, s.eventConsumer, s.logger)
	s.handlers = NewUserHandlers(s.userService, s.logger, s.config.UpdateMissingIsNotFound)
}

// Handler returns the chi router used by the http transport.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	if s.config.QueryTimeout > 0 {
		router.Use(middleware.Timeout(s.config.QueryTimeout))
	}

	router.Get("/healthz", s.healthHandler)
	NewUserRouter(s.handlers, s.logger).Routes(router)

	return router
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Uptime:    time.Since(s.startTime),
		StartTime: s.startTime,
	}

	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed to ping database", "error", err)
		response.Status = "unhealthy"
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("failed to encode health response", "error", err)
	}
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.config.ListenAddr, "transport", s.config.Transport, "start_time", s.startTime)

	s.serveDone = make(chan error, 1)

	switch s.config.Transport {
	case TransportHTTP:
		s.httpServer = &http.Server{
			Addr:         s.config.ListenAddr,
			Handler:      s.Handler(),
			ReadTimeout:  s.config.ReadTimeout,
			WriteTimeout: s.config.WriteTimeout,
			IdleTimeout:  15 * time.Second,
		}

		go func() {
			err := s.httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			s.serveDone <- err
		}()
	default:
		ln, err := net.Listen("tcp", s.config.ListenAddr)
		if err != nil {
			s.close()
			return fmt.Errorf("could not listen on %s: %w", s.config.ListenAddr, err)
		}

		s.listener = NewListener(NewRawUserRouter(s.handlers), ListenerOptions{
			WorkerCount:    s.config.WorkerCount,
			ReadBufferSize: s.config.ReadBufferSize,
			ReadTimeout:    s.config.ReadTimeout,
			WriteTimeout:   s.config.WriteTimeout,
			QueryTimeout:   s.config.QueryTimeout,
			Logger:         s.logger,
		})

		ctx, cancel := context.WithCancel(context.Background())
		s.stopListener = cancel
		go func() {
			s.serveDone <- s.listener.Serve(ctx, ln)
		}()
	}

	s.logger.Info("server is ready to handle requests", "addr", s.config.ListenAddr)

	return s.gracefulShutdown()
}

func (s *Server) gracefulShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error
	select {
	case sig := <-quit:
		s.logger.Info("server is shutting down", "reason", sig.String())
	case serveErr = <-s.serveDone:
		s.logger.Error("server stopped serving", "error", serveErr)
		s.serveDone = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpServer != nil {
		s.httpServer.SetKeepAlivesEnabled(false)
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("could not gracefully shutdown the server", "error", err)
		}
	}

	if s.stopListener != nil {
		s.stopListener()
	}
	if s.serveDone != nil {
		select {
		case err := <-s.serveDone:
			if err != nil {
				s.logger.Error("listener stopped with error", "error", err)
			}
		case <-ctx.Done():
			s.logger.Error("timed out waiting for connections to drain")
		}
	}

	s.close()
	s.logger.Info("server stopped")

	return serveErr
}

func (s *Server) close() {
	if s.migrator != nil {
		if err := s.migrator.Close(); err != nil {
			s.logger.Error("could not close migrator", "error", err)
		}
		s.logger.Info("migrator closed")
	}

	if s.eventConsumer != nil {
		s.eventConsumer.Stop()
		s.logger.Info("event consumer stopped")
	}

	if s.eventSink != nil {
		if err := s.eventSink.Close(); err != nil {
			s.logger.Error("could not close event sink", "error", err)
		}
	}

	if s.db != nil {
		s.db.Close()
		s.logger.Info("database connection closed")
	}
}
