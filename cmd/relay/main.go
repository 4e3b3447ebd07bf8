package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/icodeninjaX/officeparty/logging"
	"github.com/icodeninjaX/officeparty/relay"
)

func main() {
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "relay.log"
	}
	log := logging.New(logFile)
	defer log.Sync()

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
		log.Infof("defaulting to port %s", port)
	}

	origin := os.Getenv("ORIGIN")
	if origin == "" {
		origin = "http://localhost:8080"
		log.Infof("defaulting to origin %s", origin)
	}

	secret := []byte(os.Getenv("TOKEN_SECRET"))
	if len(secret) == 0 {
		// Per-process secret: resume tokens survive reconnects but not a
		// relay restart, which matches the no-persistence model.
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.Fatalf("generate token secret: %v", err)
		}
		log.Info("TOKEN_SECRET not set, using per-process secret")
	}
	tokens := relay.NewTokenIssuer(secret)

	var bridge *relay.Bridge
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		bridge = relay.NewBridge(rdb, log)
		defer bridge.Close()
		log.Infof("cross-instance bridge enabled via %s", addr)
	}

	manager := relay.NewManager(relay.DefaultRoomOptions(), tokens, bridge, log)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: relay.NewRouter(manager, origin, log),
	}

	go func() {
		log.Infof("listening on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("shutdown: %v", err)
	}
}
