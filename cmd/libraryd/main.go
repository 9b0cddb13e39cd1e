// libraryd serves the library catalog GraphQL API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hectorgarciatw/graphQL-Library/pkg/config"
	"github.com/hectorgarciatw/graphQL-Library/pkg/logging"
	"github.com/hectorgarciatw/graphQL-Library/pkg/server"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	port := flag.Int("port", 0, "listen port (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	logFormat := flag.String("log-format", "", "log format: text or json (overrides config)")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("libraryd %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "libraryd:", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.HTTPPort = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
	})

	srv := server.New(cfg, server.WithLogger(log))

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = srv.Start(startCtx)
	cancel()
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	received := <-sig
	log.Info("shutting down", "signal", received.String())

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
