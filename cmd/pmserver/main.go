package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pmsync/internal/config"
	"pmsync/internal/logger"
	"pmsync/internal/server"
	"pmsync/internal/storage/sqlite"
	"pmsync/internal/util"
)

func main() {
	cfg := config.Load()

	addrFlag := flag.String("addr", cfg.ServerAddr, "HTTP listen address")
	dbFlag := flag.String("db", cfg.DBPath, "Path to sqlite database file")
	keyFlag := flag.String("api-key", cfg.ServerAPIKey, "Required apiKey query parameter (empty disables the check)")
	originsFlag := flag.String("origins", strings.Join(cfg.AllowedOrigins, ","), "Comma separated CORS origins")
	staticFlag := flag.String("static", util.EnvOrDefault("PMSERVER_STATIC_DIR", ""), "Directory with a built dashboard")
	flag.Parse()

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	store, err := sqlite.Open(*dbFlag, log)
	if err != nil {
		log.Fatal("unable to open database", zap.Error(err))
	}
	defer store.Close()

	srv := server.New(store, log, server.Config{
		APIKey:         *keyFlag,
		AllowedOrigins: util.SplitList(*originsFlag),
		StaticDir:      *staticFlag,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              *addrFlag,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("addr", httpServer.Addr), zap.String("db", *dbFlag), zap.Bool("apiKey", *keyFlag != ""))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped unexpectedly", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server", zap.Error(err))
	}

	log.Info("server stopped")
}
