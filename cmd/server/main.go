package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/resume-demo-gate/internal/access"
	"github.com/iliyamo/resume-demo-gate/internal/clock"
	"github.com/iliyamo/resume-demo-gate/internal/config"
	"github.com/iliyamo/resume-demo-gate/internal/handler"
	"github.com/iliyamo/resume-demo-gate/internal/middleware"
	"github.com/iliyamo/resume-demo-gate/internal/queue"
	"github.com/iliyamo/resume-demo-gate/internal/router"
	"github.com/iliyamo/resume-demo-gate/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: .env not loaded: %v", err)
	}
	cfg := config.Load()
	clk := clock.Real()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sender service.Sender = service.LogSender{Reveal: cfg.Env == "dev"}
	if cfg.AMQPURL != "" {
		amqpSender := service.NewAMQPSender(cfg.AMQPURL, cfg.NotifyQueue)
		defer amqpSender.Close()
		sender = amqpSender
		if cfg.ConsumerEnabled {
			go func() {
				if err := queue.StartNotificationConsumer(ctx, cfg.AMQPURL, cfg.NotifyQueue, cfg.NotifyLogDir); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("notify-consumer: stopped: %v", err)
				}
			}()
		}
	} else {
		log.Printf("notify: no broker configured, notifications go to the log")
	}
	dispatcher := service.NewDispatcher(sender, cfg.NotifyBuffer, cfg.NotifyTimeout, clk)
	defer dispatcher.Close()

	arb := access.NewArbitrator(cfg.Access(), clk, dispatcher)
	go arb.Run(ctx, cfg.SweepInterval)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("http: %s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	router.RegisterRoutes(e)
	router.RegisterSession(e, handler.NewSessionHandler(arb), middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterAdmin(e, handler.NewAdminHandler(arb), cfg.JWTSecret, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	log.Printf("listening on :%s (env=%s, session=%s)", cfg.Port, cfg.Env, cfg.SessionDuration)
	if err := serve(ctx, e, ":"+cfg.Port); err != nil {
		log.Printf("server: %v", err)
	}
}

// serve runs e until ctx is done or the listener fails, then shuts it down.
func serve(ctx context.Context, e *echo.Echo, addr string) error {
	errc := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
