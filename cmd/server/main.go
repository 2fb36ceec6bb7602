package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nvoloshyn/go-chathub/internal/api"
	"github.com/nvoloshyn/go-chathub/internal/config"
	"github.com/nvoloshyn/go-chathub/internal/database"
	"github.com/nvoloshyn/go-chathub/internal/hub"
	"github.com/nvoloshyn/go-chathub/internal/stats"
)

// Development-only defaults, override both in any real deployment.
const (
	defaultAccessSigningKey  = "Zk1vZ2hSc2JQQmR3c3FFeUFXQ2JzR1RvdFJkTnJMYVo="
	defaultRefreshSigningKey = "cEt2d1lDSmRnVHJYdUh6bk1RaVdGa0JvdUxzRWpSbXA="
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr              string
	dsn               string
	accessSigningKey  string
	refreshSigningKey string
	allowedOrigins    stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&accessSigningKey, "access-signing-key", defaultAccessSigningKey, "base64 encoded access token signing key")
	flag.StringVar(&refreshSigningKey, "refresh-signing-key", defaultRefreshSigningKey, "base64 encoded refresh token signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[chathub] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, accessSigningKey, refreshSigningKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgChatHubRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatHub, err := hub.NewHub(logger, dbConn, statsUpdater)
	if err != nil {
		logger.Fatal("new hub:", err)
	}

	srv := api.NewChatHubApp(mux, logger, chatHub, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatHub.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down hub...")
	if err := chatHub.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("hub shutdown:", err)
	}

	logger.Println("shutdown complete")
}
