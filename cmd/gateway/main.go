// Command gateway runs the origin gateway: an edge HTTP service that
// derives a CORS origin allowlist from configuration and enforces it on
// every route, with an authenticated admin API for inspection and reload.
//
// Usage:
//
//	gateway [-config path]
//
// Configuration comes from defaults, an optional YAML file and
// environment variables; CORS_ALLOWED_ORIGINS is the canonical allowlist
// setting. SIGHUP reloads the allowlist without a restart.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/R3E-Network/origin-gateway/internal/config"
	"github.com/R3E-Network/origin-gateway/internal/runtime"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix("[gateway] ")
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default $GATEWAY_CONFIG)")
	flag.Parse()

	// A local .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := runtime.NewApplication(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				log.Println("SIGHUP received, reloading allowlist")
				if err := app.Reload(context.Background()); err != nil {
					log.Printf("reload failed: %v", err)
				}
				continue
			}
			log.Printf("%s received, shutting down", sig)
			cancel()
			if err := <-errCh; err != nil {
				log.Fatalf("shutdown: %v", err)
			}
			return
		case err := <-errCh:
			if err != nil {
				log.Fatalf("server: %v", err)
			}
			return
		}
	}
}
