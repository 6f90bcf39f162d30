package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariannmichael/smartcity-orchestrator/internal/config"
	"github.com/ariannmichael/smartcity-orchestrator/internal/event/application"
	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
	eventHttp "github.com/ariannmichael/smartcity-orchestrator/internal/event/infra/inbound/http"
	chAnalytics "github.com/ariannmichael/smartcity-orchestrator/internal/event/infra/outbound/analytics/clickhouse"
	pgRepo "github.com/ariannmichael/smartcity-orchestrator/internal/event/infra/outbound/db/postgres"
	sqliteRepo "github.com/ariannmichael/smartcity-orchestrator/internal/event/infra/outbound/db/sqlite"
	infraEvents "github.com/ariannmichael/smartcity-orchestrator/internal/infra/events"
	"github.com/ariannmichael/smartcity-orchestrator/internal/infra/relayer"
	"github.com/ariannmichael/smartcity-orchestrator/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ---------------- Main ----------------
func main() {
	logger.Init()
	log := logger.Logger()
	defer log.Sync()

	// El contexto raíz se cancela con SIGINT/SIGTERM: el relay termina el
	// lote en curso y sale.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	// ---------------- DB ----------------
	var (
		eventRepo  domain.EventRepository
		outboxRepo domain.OutboxRepository
	)

	if cfg.LocalDeployment {
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		defer db.Close()

		if err := sqliteRepo.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}

		repo := sqliteRepo.NewEventRepoSQLite(db)
		eventRepo, outboxRepo = repo, repo
		log.Info("💾 SQLite como almacenamiento", zap.String("path", cfg.SQLitePath))
	} else {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping Postgres", zap.Error(err))
		}
		if err := pgRepo.InitPostgres(db); err != nil {
			log.Fatal("failed to initialize Postgres", zap.Error(err))
		}

		repo := pgRepo.NewEventRepoPostgres(db)
		eventRepo, outboxRepo = repo, repo
		log.Info("💾 Postgres como almacenamiento")
	}

	// ---------------- Analítica ----------------
	var analytics domain.EventAnalytics
	if cfg.UseClickHouse {
		chRepo, err := chAnalytics.NewEventLogClickHouse(cfg.ClickHouseAddr, cfg.ClickHouseDB)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, analítica deshabilitada", zap.Error(err))
		} else {
			analytics = chRepo
			log.Info("✅ ClickHouse conectado, analítica habilitada")
		}
	}

	// --------------- Servicio --------------
	registry := domain.NewFactoryRegistry()
	eventService := application.NewEventService(eventRepo, registry, analytics, log)

	// ---------------- Publisher ---------------
	var publisher domain.EventPublisher

	switch {
	case cfg.UseKafka:
		log.Info("🚀 Usando Kafka como canal de notificaciones")

		// Sin topic fijo: cada mensaje de outbox lleva el suyo.
		writer := kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.KafkaBrokers,
		})
		defer writer.Close()

		publisher = infraEvents.NewKafkaPublisher(writer, log)

	case cfg.UseRedis:
		log.Info("🚀 Usando Redis como canal de notificaciones")

		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to ping Redis", zap.Error(err))
		}
		defer rdb.Close()

		publisher = infraEvents.NewRedisPublisher(rdb, log)

	default:
		log.Info("⚡️ Usando bus de notificaciones en memoria (canales de Go)")

		bus := infraEvents.NewInMemoryBus()
		publisher = bus

		// Oyente local: loguea lo que el relay va publicando.
		for _, service := range []string{domain.ServiceHealth, domain.ServiceEnergy, domain.ServiceTransport, domain.ServiceSecurity} {
			topic := domain.TopicForService(service)
			ch := bus.Subscribe(topic, 10)
			go func(topic string, ch <-chan infraEvents.Notification) {
				for {
					select {
					case <-ctx.Done():
						return
					case n := <-ch:
						log.Info("🎧 Notificación recibida",
							zap.String("topic", topic),
							zap.ByteString("payload", n.Payload),
						)
					}
				}
			}(topic, ch)
		}
	}

	// ------------ Outbox Relay ------------
	// También puede ejecutarse como proceso aparte (cmd/outbox-relay).
	worker := relayer.NewOutboxWorker(
		outboxRepo,
		publisher,
		cfg.OutboxPoll,
		cfg.OutboxBatch,
		cfg.OutboxMaxAttempts,
		cfg.PublishTimeout,
		log,
	)
	go worker.Start(ctx)

	// ---------------- HTTP ----------------
	eventHandler := eventHttp.NewEventHandler(eventService)
	router := gin.Default()
	eventHttp.RegisterEventRoutes(router, eventHandler)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info("🚀 Server running",
		zap.String("url", "http://localhost:"+cfg.HTTPPort),
	)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
