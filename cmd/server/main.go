package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-chat-gateway/internal/api"
	"github.com/npezzotti/go-chat-gateway/internal/bus"
	"github.com/npezzotti/go-chat-gateway/internal/chat"
	"github.com/npezzotti/go-chat-gateway/internal/config"
	"github.com/npezzotti/go-chat-gateway/internal/server"
	"github.com/npezzotti/go-chat-gateway/internal/stats"
	"github.com/npezzotti/go-chat-gateway/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := log.New(os.Stderr, "[go-chat] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Println("load .env:", err)
	}

	cfg, err := config.NewConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Fatal("config: ", err)
	}
	logger.SetPrefix(fmt.Sprintf("[go-chat %s] ", cfg.ServerId))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis: ", err)
	}
	defer redisClient.Close()

	st := store.NewRedisStore(redisClient, store.DefaultPrefix, 0)

	var eventBus bus.Bus
	switch cfg.Bus {
	case config.BusNats:
		nc, err := bus.NewNatsConn(cfg.NatsURL, "go-chat-"+cfg.ServerId)
		if err != nil {
			logger.Fatal("nats: ", err)
		}
		eventBus = bus.NewNatsBus(nc, bus.DefaultSubject, logger)
	default:
		eventBus = bus.NewRedisBus(redisClient, bus.DefaultChannel, logger)
	}
	defer eventBus.Close()

	if err := eventBus.Ping(ctx); err != nil {
		logger.Fatal("event bus: ", err)
	}

	svc := chat.NewService(logger, st, eventBus, chat.Options{
		Origin:           cfg.ServerId,
		OpTimeout:        cfg.OpTimeout,
		MaxMessageLength: cfg.MaxMessageLength,
	})

	for _, room := range cfg.Rooms {
		if err := svc.Presence.CreateRoom(ctx, room); err != nil {
			logger.Fatalf("create room %q: %v", room, err)
		}
	}

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux, cfg.ServerId)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	chatServer := server.NewChatServer(logger, svc, eventBus, statsUpdater, server.Options{
		TypingTimeout:    cfg.TypingTimeout,
		RateLimit:        rate.Limit(cfg.RateLimit),
		RateBurst:        cfg.RateBurst,
		MaxMessageLength: cfg.MaxMessageLength,
	})
	if err := chatServer.Subscribe(ctx); err != nil {
		logger.Fatal("event bus: ", err)
	}

	srv := api.NewGoChatApp(mux, logger, chatServer, svc.Presence, cfg)

	logger.Printf("using %s bus, redis at %s", cfg.Bus, cfg.RedisURL)

	go chatServer.Run()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Println("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		logger.Println("shutting down chat server...")
		if err := chatServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("chat server shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Println("server:", err)
	}

	logger.Println("shutdown complete")
}
