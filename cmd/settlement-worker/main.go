package main

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/porcupine/aviator-platform-poc/internal/settlement"
	"github.com/porcupine/aviator-platform-poc/internal/shared/config"
	"github.com/porcupine/aviator-platform-poc/internal/shared/db"
	"github.com/porcupine/aviator-platform-poc/internal/shared/kafka"
	"github.com/porcupine/aviator-platform-poc/internal/shared/logger"
	"github.com/porcupine/aviator-platform-poc/internal/shared/metrics"
	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/commission"
	wrepo "github.com/porcupine/aviator-platform-poc/internal/wallet-service/repo"
	ev "github.com/porcupine/aviator-platform-poc/pkg/contracts/events"
)

type resolvedPublisher struct {
	writer *kafka.Writer
}

func (p *resolvedPublisher) PublishBetResolved(ctx context.Context, e ev.BetResolved) error {
	b, _ := json.Marshal(e)
	return kafka.WriteJSON(ctx, p.writer, e.BetID, b)
}

func main() {
	cfg := config.Load()
	log, err := logger.New("settlement-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Conexão com o ledger para a transição pending -> win|loss
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer: eventos bet_settled vindos do motor do jogo
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSettled, "settlement-worker")
	defer reader.Close()

	// Kafka producer: publica bet_resolved e, opcionalmente, envia para DLQ
	resolvedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolved)
	defer resolvedWriter.Close()

	var dlqWriter *kafka.Writer
	if cfg.TopicBetSettledDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettledDLQ)
		defer dlqWriter.Close()
	}

	// Servidor HTTP para métricas Prometheus e healthcheck
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	policy := commission.New(cfg.MaxWinCents, cfg.WinCommissionPct, cfg.LossCommissionPct)
	settler := settlement.New(log, wrepo.NewPostgres(pg), policy, &resolvedPublisher{writer: resolvedWriter})

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicBetSettled),
		zap.String("publish", cfg.TopicBetResolved),
	)

	ctx := context.Background()

	// Loop principal: consome eventos do Kafka e liquida as apostas
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var settled ev.BetSettled
		if jerr := json.Unmarshal(msg.Value, &settled); jerr != nil {
			log.Error("unmarshal bet_settled", zap.Error(jerr))
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, string(msg.Key), msg.Value)
			}
			continue
		}

		if err := processOne(ctx, settler, &settled); err != nil {
			log.Error("settle bet", zap.String("betId", settled.BetID), zap.Error(err))
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, settled.BetID, msg.Value)
			}
			// Backoff simples para evitar flood em caso de erro
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// processOne tenta liquidar com retry simples antes de desistir para a DLQ
func processOne(ctx context.Context, settler *settlement.Settler, e *ev.BetSettled) error {
	const retries = 3
	var err error
	for i := 0; i < retries; i++ {
		if err = settler.Process(ctx, *e); err == nil {
			return nil
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return err
}
