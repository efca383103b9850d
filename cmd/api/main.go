package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"

	v1 "github.com/kouekamluc/ascai-messaging/cmd/api/router/v1"
	cacheadapter "github.com/kouekamluc/ascai-messaging/internal/infrastructure/cache/adapter"
	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/database"
	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/identity"
	psadapter "github.com/kouekamluc/ascai-messaging/internal/infrastructure/pubsub/adapter"
	qadapter "github.com/kouekamluc/ascai-messaging/internal/infrastructure/queue/adapter"
	"github.com/kouekamluc/ascai-messaging/internal/infrastructure/realtime"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/dispatch"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/presence"
	"github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/application/task"
	repoadapter "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/persistence/repository/adapter"
	msghttp "github.com/kouekamluc/ascai-messaging/internal/pkg/messaging/presentation/http"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the database on startup
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := database.NewPoolFromEnv(connectCtx)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	// One Redis client backs the cache and the fanout fabric; asynq keeps
	// its own connection pool internally.
	rdb, err := newRedisClient(ctx)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	fabric := psadapter.NewRedisPubSub(rdb)
	hub := realtime.NewHub(fabric)
	if err := hub.Start(ctx); err != nil {
		log.Fatalf("failed to start realtime hub: %v", err)
	}
	defer hub.Close()

	repo := repoadapter.NewPgMessageRepository(pool)
	cache := cacheadapter.NewRedisCache(rdb)
	tracker := presence.NewTracker(cache, hub, repo)

	queueClient, err := qadapter.NewAsynqClientFromEnv()
	if err != nil {
		log.Fatalf("failed to create queue client: %v", err)
	}
	defer queueClient.Close()

	dispatcher := dispatch.NewDispatcher(tracker, hub, queueClient, repo)

	// Run the background worker in-process so the API binary alone handles
	// notification writes. A dedicated worker deployment can run the same
	// server against the same queues.
	queueServer, err := qadapter.NewAsynqServer()
	if err != nil {
		log.Fatalf("failed to create queue server: %v", err)
	}
	task.RegisterNotifyRecipientTask(queueServer, repo)
	go func() {
		if err := queueServer.Run(ctx); err != nil {
			log.Printf("queue server stopped: %v", err)
		}
	}()

	verifier, err := identity.NewJWTVerifierFromEnv()
	if err != nil {
		log.Fatalf("failed to configure token verifier: %v", err)
	}

	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
		})
	})

	v1.RegisterRoutes(r, msghttp.Deps{
		Pool:     pool,
		Hub:      hub,
		Verifier: verifier,
		Tracker:  tracker,
		Dispatch: dispatcher,
	})

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Printf("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

func newRedisClient(ctx context.Context) (*redis.Client, error) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return nil, errors.New("REDIS_URL environment variable is not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}
