package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/oniongate/satstore/internal/adapter/handler"
	"github.com/oniongate/satstore/internal/adapter/middleware"
	"github.com/oniongate/satstore/internal/adapter/storage"
	"github.com/oniongate/satstore/internal/core/cart"
	"github.com/oniongate/satstore/internal/core/config"
	"github.com/oniongate/satstore/internal/core/identity"
	"github.com/oniongate/satstore/internal/core/messaging"
	"github.com/oniongate/satstore/internal/core/notifications"
	"github.com/oniongate/satstore/internal/core/order"
	"github.com/oniongate/satstore/internal/core/ports"
	"github.com/oniongate/satstore/internal/core/wallet"
	"github.com/oniongate/satstore/internal/core/worker"
)

func main() {
	cfg := config.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	dbPool, err := storage.ConnectDB(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	params, err := wallet.NetworkParams(cfg.Network)
	if err != nil {
		slog.Error("invalid network config", "error", err)
		os.Exit(1)
	}
	walletProvider, err := wallet.NewStaticWallet(cfg.WalletAddress, params)
	if err != nil {
		slog.Error("invalid wallet config", "error", err)
		os.Exit(1)
	}

	var oracle ports.PaymentOracle
	switch cfg.Oracle {
	case "bitcoind":
		btcOracle, err := order.NewBitcoindOracle(cfg.BitcoindRPC, cfg.BitcoindUser, cfg.BitcoindPass, params, cfg.MinConf)
		if err != nil {
			slog.Error("bitcoind oracle setup failed", "error", err)
			os.Exit(1)
		}
		defer btcOracle.Shutdown()
		oracle = btcOracle
	default:
		oracle = order.NewMockOracle(cfg.MockConfirmAfter)
		slog.Warn("using mock payment oracle, payments auto-confirm", "after", cfg.MockConfirmAfter)
	}

	clientRepo := storage.NewClientRepository(dbPool)
	productRepo := storage.NewProductRepository(dbPool)
	cartRepo := storage.NewCartRepository(dbPool)
	orderRepo := storage.NewOrderRepository(dbPool)
	messageRepo := storage.NewMessageRepository(dbPool)

	resolver := identity.NewResolver(clientRepo)
	cartManager := cart.NewManager(cartRepo, productRepo)
	orderManager := order.NewManager(orderRepo, cartRepo, walletProvider, oracle, cfg.OrderExpiry, logger)
	if cfg.WebhookURL != "" {
		orderManager.WithNotifier(notifications.ConfirmationHook(cfg.WebhookURL, logger))
	}
	messageService := messaging.NewService(messageRepo, orderRepo, cfg.MessageSecret)

	productHandler := &handler.ProductHandler{Products: productRepo}
	cartHandler := &handler.CartHandler{Cart: cartManager}
	orderHandler := &handler.OrderHandler{Orders: orderManager}
	clientHandler := &handler.ClientHandler{Resolver: resolver, Orders: orderRepo}
	messageHandler := &handler.MessageHandler{Messages: messageService}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/v1", middleware.Session(resolver))

	api.Get("/products", productHandler.List)
	api.Get("/products/:id", productHandler.Get)

	api.Post("/cart/items", cartHandler.AddItem)
	api.Delete("/cart/items/:productID", cartHandler.RemoveItem)
	api.Get("/cart", cartHandler.Totals)

	api.Post("/orders", middleware.Idempotency(storage.NewIdempotencyRepository(dbPool)), orderHandler.Create)
	api.Get("/orders/:number/status", orderHandler.Status)
	api.Get("/orders/:number/qr", orderHandler.QR)
	api.Get("/orders/:number", orderHandler.Detail)
	api.Post("/orders/:number/cancel", orderHandler.Cancel)

	api.Post("/messages", messageHandler.Send)
	api.Get("/messages/:id", messageHandler.Get)

	api.Get("/client", clientHandler.Self)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	if cfg.PollInterval > 0 {
		confirmations := worker.NewConfirmationWorker(orderManager, orderRepo, cfg.PollInterval, logger)
		confirmations.Start(workerCtx)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "env", cfg.Env, "port", cfg.Port, "network", cfg.Network, "oracle", cfg.Oracle)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	<-stop
	slog.Info("shutting down")

	stopWorker()
	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	dbPool.Close()
	slog.Info("server exited")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
