package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/lborres/shopfront"
	fileadapter "github.com/lborres/shopfront/adapters/file"
	fiberadapter "github.com/lborres/shopfront/adapters/fiber"
	pgxadapter "github.com/lborres/shopfront/adapters/pgx"
	"github.com/lborres/shopfront/adapters/rest"
	"github.com/lborres/shopfront/core"
	"github.com/lborres/shopfront/pkg/cache"
	"github.com/lborres/shopfront/pkg/crypto"
)

const shutdownTimeout = 5 * time.Second

func logFormat() string {
	format := []string{
		// Timestamp & Request ID
		"${time}|${requestid}",

		// Response metadata
		"${status}|${latency}",

		// Client info
		"${ip}:${port}",

		// Transfer size
		"${bytesReceived}|${bytesSent}",

		// Request details
		"${method}|${path}|${queryParams}",

		// errors
		"${errors}",
	}
	return strings.Join(format, "|") + "\n"
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-passphrase" {
		if err := hashPassphrase(os.Args[2:]); err != nil {
			log.Fatalf("hash-passphrase: %v", err)
		}
		return
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	cfg := LoadConfig()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("shopfront exited", "err", err)
		os.Exit(1)
	}
}

// hashPassphrase prints the encoded argon2id hash for
// SHOPFRONT_CONSOLE_PASSPHRASE_HASH.
func hashPassphrase(args []string) error {
	if len(args) != 1 || args[0] == "" {
		return errors.New("usage: shopfront hash-passphrase <passphrase>")
	}
	encoded, err := crypto.NewArgon2().Hash(args[0])
	if err != nil {
		return err
	}
	fmt.Println(encoded)
	return nil
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	api, err := rest.New(rest.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	verifier, err := consoleVerifier(cfg, logger)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:       "shopfront",
		CaseSensitive: true,
	})
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     logFormat(),
		TimeFormat: "2006/01/02 15:04:05",
		TimeZone:   "Local",
	}))

	sf, err := shopfront.New(ctx, shopfront.Config{
		API:            api,
		Storage:        storage,
		HTTP:           fiberadapter.New(app, verifier),
		HubURL:         cfg.HubURL,
		ReconnectDelay: cfg.ReconnectDelay,
		DebounceWindow: cfg.Debounce,
		PageSize:       cfg.PageSize,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create shopfront instance: %w", err)
	}
	defer sf.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("console listening", "addr", cfg.ConsoleAddr)
		return app.Listen(cfg.ConsoleAddr, fiber.ListenConfig{DisableStartupMessage: true})
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg Config) (core.Storage, func(), error) {
	switch cfg.Storage {
	case "memory":
		return cache.NewMemoryStorage(), func() {}, nil

	case "file":
		storage, err := fileadapter.New(cfg.StateDir)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {}, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for postgres storage")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		storage := pgxadapter.New(pool, cfg.Profile)
		if err := storage.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return storage, pool.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}

// consoleVerifier prefers the configured passphrase hash. Without one a
// random key is generated for this run and logged once.
func consoleVerifier(cfg Config, logger *slog.Logger) (crypto.KeyVerifier, error) {
	if cfg.PassphraseHash != "" {
		return crypto.PassphraseVerifier{Hasher: crypto.NewArgon2(), Encoded: cfg.PassphraseHash}, nil
	}

	key, err := crypto.NewAccessKey(0)
	if err != nil {
		return nil, fmt.Errorf("failed to generate console key: %w", err)
	}
	logger.Warn("no console passphrase configured, using a one-time key",
		"header", fiberadapter.HeaderConsoleKey, "key", key.Key)
	return crypto.DigestVerifier(key.Digest), nil
}
