package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// defaultSetupTimeout bounds the storage connection steps on top of their own timeouts.
const defaultSetupTimeout = 10 * time.Second

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	cleanups       []func()
	closers        []func(context.Context) error
	queueConsumers []func(context.Context) error
}

// NewApp provides an instance of App.
func NewApp() (AppProvider, error) {
	config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %s", err)
	}

	// ensure the logs folder exists and Setup the logging module.
	if err = os.MkdirAll(config.LogFolder, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create logging folder: %s", err)
	}
	clock := NewClock()
	logWriter := NewRSyncWriter(config, clock)
	logger, flusher := SetupLogging(config, logWriter, NewTickClock(clock))

	app := &App{
		logger: logger,
		config: config,
		cleanups: []func(){
			func() {
				if ferr := flusher(); ferr != nil {
					fmt.Println("error during flushing of logs: ", ferr)
				}
			},
			func() {
				if cerr := logWriter.Close(); cerr != nil {
					fmt.Println("error during closing of log file: ", cerr)
				}
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.MongoDB.ConnectTimeout+config.Redis.DialTimeout+config.BoltDB.Timeout+defaultSetupTimeout)
	defer cancel()

	storage, err := app.setupStorage(ctx)
	if err != nil {
		app.closeAll(context.Background())
		app.Clean()
		return nil, err
	}

	var queue Queuer
	if config.Mirror.Enabled {
		queue, err = app.setupMirror()
		if err != nil {
			app.closeAll(context.Background())
			app.Clean()
			return nil, err
		}
	}

	idsHandler := NewIDsHandler()
	bookService := NewBookService(logger, clock, idsHandler, storage, queue)
	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		clock,
		idsHandler,
		bookService,
	)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresProtected, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public:    middlewaresPublic.Chain,
			protected: middlewaresProtected.Chain,
			ops:       middlewaresOps.Chain,
		},
	)

	// Build the api server definition.
	app.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        router,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
		ErrorLog:       zap.NewStdLog(logger),
	}

	return app, nil
}

// setupStorage connects to the configured driver and registers its closer.
func (app *App) setupStorage(ctx context.Context) (BookStorage, error) {
	config := app.config
	switch config.Storage.Driver {
	case DriverRedis:
		redisClient, err := GetRedisClient(&config.Redis)
		if err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("failed to connect to redis server: %s", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return redisClient.Close() })
		return NewRedisBookStorage(app.logger, redisClient), nil

	case DriverBolt:
		boltDBClient, err := GetBoltDBClient(&config.BoltDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open boltdb database: %s", err)
		}
		app.closers = append(app.closers, func(context.Context) error { return boltDBClient.Close() })
		return NewBoltBookStorage(app.logger, &config.BoltDB, boltDBClient), nil

	default:
		mongoClient, err := GetMongoClient(ctx, &config.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb server: %s", err)
		}
		app.closers = append(app.closers, mongoClient.Disconnect)
		storage, err := NewMongoBookStorage(ctx, app.logger, mongoClient, &config.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to setup mongodb storage: %s", err)
		}
		return storage, nil
	}
}

// setupMirror connects the redis queues and the boltdb file which
// receives a copy of every book change.
func (app *App) setupMirror() (Queuer, error) {
	config := app.config
	redisClient, err := GetRedisClient(&config.Redis)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to mirror redis server: %s", err)
	}
	app.closers = append(app.closers, func(context.Context) error { return redisClient.Close() })

	boltDBClient, err := GetBoltDBClient(&config.Mirror.BoltDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror boltdb database: %s", err)
	}
	app.closers = append(app.closers, func(context.Context) error { return boltDBClient.Close() })

	queue := NewRedisQueue(redisClient)
	consumer := NewMirrorConsumer(app.logger, queue, NewBoltBookStorage(app.logger, &config.Mirror.BoltDB, boltDBClient))
	app.queueConsumers = append(app.queueConsumers, func(ctx context.Context) error {
		return consumer.Consume(ctx, MirrorQueues...)
	})
	return queue, nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions.
func (app *App) Clean() {
	for _, f := range app.cleanups {
		f()
	}
}

// closeAll releases storage connections in the reverse order of their opening.
func (app *App) closeAll(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil && !errors.Is(err, redis.ErrClosed) {
			app.logger.Error("failed to close storage connection", zap.Error(err))
		}
	}
	app.closers = nil
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
			zap.String("app.storage", app.config.Storage.Driver),
			zap.Bool("app.mirror", app.config.Mirror.Enabled),
		)
		err := app.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch {
		case err == nil, errors.Is(err, http.ErrServerClosed):
			app.logger.Info("api server graceful shutdown succeeded")
		case errors.Is(err, context.DeadlineExceeded):
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}
		app.closeAll(sCtx)
		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, consume := range app.queueConsumers {
			consume := consume
			g.Go(func() error {
				return consume(gCtx)
			})
		}
		return nil
	}
}
