package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bookinghq/go-token-service/internal/config"
	"github.com/bookinghq/go-token-service/server"
	"github.com/bookinghq/go-token-service/token"
	"github.com/bookinghq/go-token-service/token/lockout"
	"github.com/bookinghq/go-token-service/token/revocation"
	"github.com/bookinghq/go-token-service/token/rotation"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logger := newLogger(c)

	// Refuse to serve traffic on a broken configuration rather than failing
	// per-request.
	if err := config.Validate(c); err != nil {
		return err
	}

	displayAppname(c.GetAppName())

	stores, err := buildStores(c)
	if err != nil {
		return err
	}

	tokens, err := token.New(c, stores.Rotation, token.WithLogger(logger))
	if err != nil {
		return err
	}

	app := server.New(c, tokens, stores, logger)
	app.LogRoutes()

	srv := &http.Server{Addr: c.GetPort(), Handler: app}
	go listenAndServe(srv, logger)
	waitForStopSignal()
	return shutdown(srv)
}

// buildStores selects the persistence backend once at startup. The in-memory
// variant is only safe for a single instance; any horizontally-scaled
// deployment must use the shared Redis stores.
func buildStores(c config.Config) (server.Stores, error) {
	switch c.GetStoreBackend() {
	case config.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		ctx, cancel := context.WithTimeout(context.Background(), c.GetStoreTimeout())
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return server.Stores{}, fmt.Errorf("redis unreachable at %s: %w", c.GetRedisAddr(), err)
		}
		return server.Stores{
			Rotation:   rotation.NewRedisStore(client),
			Revocation: revocation.NewRedisStore(client, c.GetAccessTokenExpiry()),
			Lockout:    lockout.NewRedisStore(client),
		}, nil
	default:
		return server.Stores{
			Rotation:   rotation.NewMemoryStore(),
			Revocation: revocation.NewMemoryStore(),
			Lockout:    lockout.NewMemoryStore(),
		}, nil
	}
}

func newLogger(c config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func listenAndServe(srv *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", srv.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
