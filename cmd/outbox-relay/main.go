package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariannmichael/smartcity-orchestrator/internal/config"
	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
	pgRepo "github.com/ariannmichael/smartcity-orchestrator/internal/event/infra/outbound/db/postgres"
	sqliteRepo "github.com/ariannmichael/smartcity-orchestrator/internal/event/infra/outbound/db/sqlite"
	infraEvents "github.com/ariannmichael/smartcity-orchestrator/internal/infra/events"
	"github.com/ariannmichael/smartcity-orchestrator/internal/infra/relayer"
	"github.com/ariannmichael/smartcity-orchestrator/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Relay de outbox como proceso independiente, compartiendo el mismo store
// durable que el orquestador.
func main() {
	logger.Init()
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	var outboxRepo domain.OutboxRepository
	if cfg.LocalDeployment {
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		defer db.Close()

		if err := sqliteRepo.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}
		outboxRepo = sqliteRepo.NewEventRepoSQLite(db)
	} else {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to open Postgres", zap.Error(err))
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			log.Fatal("failed to ping Postgres", zap.Error(err))
		}
		outboxRepo = pgRepo.NewEventRepoPostgres(db)
	}

	var publisher domain.EventPublisher
	switch {
	case cfg.UseKafka:
		writer := kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.KafkaBrokers,
		})
		defer writer.Close()
		publisher = infraEvents.NewKafkaPublisher(writer, log)

	case cfg.UseRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to ping Redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher = infraEvents.NewRedisPublisher(rdb, log)

	default:
		publisher = infraEvents.NewInMemoryBus()
	}

	worker := relayer.NewOutboxWorker(
		outboxRepo,
		publisher,
		cfg.OutboxPoll,
		cfg.OutboxBatch,
		cfg.OutboxMaxAttempts,
		cfg.PublishTimeout,
		log,
	)
	worker.Start(ctx)
}
