// In file: cmd/gateway/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dileep-u-k/notion-gateway/internal/actions"
	"github.com/dileep-u-k/notion-gateway/internal/dispatch"
	"github.com/dileep-u-k/notion-gateway/internal/integrations"
	"github.com/dileep-u-k/notion-gateway/internal/intent"
	"github.com/dileep-u-k/notion-gateway/internal/notion"
	"github.com/dileep-u-k/notion-gateway/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// main is the entry point for the application.
// Its primary role is the "Composition Root": it loads configuration,
// initializes all services, injects dependencies, and starts the server.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	buildInfo := GetBuildInfo()
	log.Printf("🚀 Starting Notion Gateway | Version: %s | Commit: %s", buildInfo.Version, buildInfo.GitCommit)

	// 1. LOAD CONFIGURATION
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("❌ FATAL: Configuration Error: %v", err)
	}
	log.Println("✅ Configuration loaded.")

	// 2. INITIALIZE SERVICES
	registry, err := actions.NewRegistry()
	if err != nil {
		log.Fatalf("❌ FATAL: Invalid action registry: %v", err)
	}
	log.Printf("✅ Action registry initialized with %d actions.", registry.Count())

	matcher, err := intent.NewMatcher(registry, cfg.IntentRules)
	if err != nil {
		log.Fatalf("❌ FATAL: Invalid intent rules: %v", err)
	}

	credentials, store, err := initializeCredentials(cfg)
	if err != nil {
		log.Fatalf("❌ FATAL: %v", err)
	}

	notionClient := notion.NewClient(cfg.NotionBaseURL, cfg.NotionTimeout)
	dispatcher := dispatch.NewDispatcher(registry, credentials, notionClient)

	upstreamClient, err := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, 0)
	if err != nil {
		log.Fatalf("❌ FATAL: %v", err)
	}

	var storeForHandler IntegrationStore
	if store != nil {
		storeForHandler = store
	}
	gatewayHandler := NewGatewayHandler(upstreamClient, matcher, dispatcher, credentials, storeForHandler, registry, cfg.MaxToolRounds)
	log.Println("✅ All services initialized.")

	// 3. SETUP AND RUN THE WEB SERVER
	gin.SetMode(os.Getenv("GIN_MODE"))
	engine := gin.Default()
	gatewayHandler.RegisterRoutes(engine)

	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.Port), Handler: engine}
	runServerWithGracefulShutdown(srv)
}

// initializeCredentials selects the credential provider once, at startup.
// With the "stored" source it also returns the Redis-backed record store so
// the HTTP surface can manage integrations; with the "env" source the store
// stays nil and management endpoints are disabled.
func initializeCredentials(cfg *AppConfig) (integrations.CredentialProvider, *integrations.Store, error) {
	switch cfg.CredentialSource {
	case credentialSourceStored:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			return nil, nil, fmt.Errorf("could not connect to Redis: %w", err)
		}
		store := integrations.NewStore(rdb)
		log.Println("✅ Using stored OAuth credentials (Redis).")
		return integrations.NewStoreProvider(store, integrations.ServiceNotion), store, nil

	case credentialSourceEnv:
		provider, err := integrations.NewStaticProvider(cfg.NotionToken)
		if err != nil {
			return nil, nil, err
		}
		log.Println("✅ Using environment-variable Notion token.")
		return provider, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown credential source %q", cfg.CredentialSource)
	}
}

// runServerWithGracefulShutdown handles the server lifecycle.
func runServerWithGracefulShutdown(srv *http.Server) {
	go func() {
		log.Printf("👂 Gateway is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Listen error: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server shutdown failed:", err)
	}

	log.Println("👋 Server exited gracefully.")
}
