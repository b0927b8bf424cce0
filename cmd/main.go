package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"golang.org/x/sync/errgroup"

	"github.com/jupiterclapton/relation-service/config"
	"github.com/jupiterclapton/relation-service/internal/adapters/primary/events"
	"github.com/jupiterclapton/relation-service/internal/adapters/primary/httpapi"
	"github.com/jupiterclapton/relation-service/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/relation-service/internal/adapters/secondary/graph"
	"github.com/jupiterclapton/relation-service/internal/adapters/secondary/notifier"
	"github.com/jupiterclapton/relation-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/relation-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/relation-service/internal/auth"
	"github.com/jupiterclapton/relation-service/internal/core/services"
)

func main() {
	// 1. Charger la Config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Initialiser le Logger (slog JSON pour la prod, Text pour le dev)
	initLogger(cfg)
	slog.Info("🚀 Starting Relation Service", "env", cfg.Env, "port", cfg.HTTPPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialiser le Tracing (OpenTelemetry)
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Error("Error shutting down tracer", "error", err)
			}
		}()
	}

	// 4. Infrastructure : store autoritatif (Postgres)
	dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		slog.Error("Unable to parse DB config", "error", err)
		os.Exit(1)
	}
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Vérification connectivité immédiate (Fail Fast)
	if err := dbPool.Ping(ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Database connected")

	store := repository.NewPostgresStore(dbPool)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Warn("Schema init failed (might be fine if already exists)", "error", err)
	}

	// 5. Infrastructure : projection graphe (Neo4j)
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		slog.Error("Failed to create neo4j driver", "error", err)
		os.Exit(1)
	}
	defer driver.Close(context.Background())

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := driver.VerifyConnectivity(pingCtx); err != nil {
		pingCancel()
		slog.Error("Failed to connect to Neo4j", "error", err)
		os.Exit(1)
	}
	pingCancel()
	slog.Info("✅ Connected to Neo4j")

	graphProjection := graph.NewNeo4jProjection(driver)
	if err := graphProjection.EnsureSchema(ctx); err != nil {
		slog.Warn("Graph schema init failed (might be fine if already exists)", "error", err)
	}

	// 6. Infrastructure : notifications (Redis)
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		slog.Warn("Redis tracing instrumentation failed", "error", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("✅ Redis connected")

	notificationFeed := notifier.NewRedisNotificationFeed(redisClient)

	// 7. Infrastructure : Event Broker (NATS JetStream)
	broker, err := eventbroker.NewNatsBroker(cfg.NatsUrl)
	if err != nil {
		slog.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer broker.Close()
	slog.Info("✅ NATS JetStream connected")

	// 8. Sécurité : clé publique du service de comptes (vérification seule)
	pubKey, err := os.ReadFile(cfg.RSAPublicKeyPath)
	if err != nil {
		slog.Error("Failed to read public key", "error", err)
		os.Exit(1)
	}
	verifier, err := security.NewJWTVerifier(pubKey)
	if err != nil {
		slog.Error("Failed to init JWT verifier", "error", err)
		os.Exit(1)
	}

	// 9. Wiring (Injection de dépendances) — Adapters -> Services
	relationEngine := services.NewRelationshipEngine(store, broker, cfg.ToggleTimeout)
	discovery := services.NewDiscoveryCoordinator(store, store, cfg.SearchDebounce, cfg.SearchTimeout, cfg.SessionTTL)

	// Consumer des événements de relation -> projections
	eventHandler := events.NewRelationEventHandler(graphProjection, notificationFeed)
	sub, err := broker.Conn().Subscribe(eventbroker.SubjectRelationChanged, eventHandler.HandleRelationChanged)
	if err != nil {
		slog.Error("Failed to subscribe to relation events", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	// 10. Chaîne de Middlewares HTTP
	apiServer := httpapi.NewServer(relationEngine, discovery, store, graphProjection, notificationFeed)

	var h http.Handler = apiServer.Routes()

	// A. Auth (injecte l'UserID de session)
	h = auth.Middleware(verifier)(h)

	// B. Rate limit par IP
	h = httpapi.NewRateLimiter(time.Second, cfg.RateLimitBurst).Middleware(h)

	// C. CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:19006"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "baggage", "sentry-trace"},
		AllowCredentials: true,
	})
	h = c.Handler(h)

	// D. OTEL HTTP (racine)
	h = otelhttp.NewHandler(h, "Relation-API", otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))

	srvHTTP := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: h,
	}

	// 11. Démarrage supervisé + Graceful Shutdown
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("📡 Relation Service listening", "port", cfg.HTTPPort)
		if err := srvHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			slog.Info("⚠️  Signal received, shutting down...", "signal", sig)
		case <-gctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srvHTTP.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("👋 Service stopped")
}

// --- HELPERS ---

func initLogger(cfg *config.Config) {
	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(), // En prod, gérez le TLS
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String("1.0.0"),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	// Propagation du trace-id entre services
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
