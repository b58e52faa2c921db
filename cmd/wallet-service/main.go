package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	av "github.com/porcupine/aviator-platform-poc/internal/aviator"
	"github.com/porcupine/aviator-platform-poc/internal/auth"
	"github.com/porcupine/aviator-platform-poc/internal/mpesa"
	"github.com/porcupine/aviator-platform-poc/internal/shared/cache"
	"github.com/porcupine/aviator-platform-poc/internal/shared/config"
	"github.com/porcupine/aviator-platform-poc/internal/shared/db"
	"github.com/porcupine/aviator-platform-poc/internal/shared/kafka"
	"github.com/porcupine/aviator-platform-poc/internal/shared/logger"
	"github.com/porcupine/aviator-platform-poc/internal/shared/metrics"
	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/commission"
	whttp "github.com/porcupine/aviator-platform-poc/internal/wallet-service/http"
	kpub "github.com/porcupine/aviator-platform-poc/internal/wallet-service/producer"
	wrepo "github.com/porcupine/aviator-platform-poc/internal/wallet-service/repo"
)

func main() {
	cfg := config.Load()

	// Inicializa logger estruturado
	log, err := logger.New("wallet-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "wallet-service"), zap.String("env", cfg.Env))

	// Conexão com Postgres (ledger de contas e apostas)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis para caches de token verificado e estado do aviator
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}

	// Kafka writer para eventos bet_placed
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer writer.Close()

	// Credencial do gateway: primeiro fetch síncrono, renovação periódica em background
	tokens := mpesa.NewTokenSource(log, cfg.MpesaOAuthURL, cfg.MpesaConsumerKey, cfg.MpesaConsumerSecret)
	tokens.Start(context.Background(), cfg.MpesaTokenRefresh)

	gateway := mpesa.NewClient(tokens, mpesa.Settings{
		ShortCode:          cfg.MpesaShortCode,
		Passkey:            cfg.MpesaPasskey,
		InitiatorName:      cfg.MpesaInitiatorName,
		SecurityCredential: cfg.MpesaSecurityCredential,
		STKPushURL:         cfg.MpesaSTKPushURL,
		B2CURL:             cfg.MpesaB2CURL,
		BalanceURL:         cfg.MpesaBalanceURL,
		STKCallbackURL:     cfg.MpesaSTKCallbackURL,
		B2CTimeoutURL:      cfg.MpesaB2CTimeoutURL,
		B2CResultURL:       cfg.MpesaB2CResultURL,
		BalanceTimeoutURL:  cfg.MpesaBalanceTimeoutURL,
		BalanceResultURL:   cfg.MpesaBalanceResultURL,
	})

	// deps
	repository := wrepo.NewPostgres(pg)
	policy := commission.New(cfg.MaxWinCents, cfg.WinCommissionPct, cfg.LossCommissionPct)
	verifier := auth.NewVerifier(cfg.AuthVerifyURL, rdb)
	rounds := av.New(cfg.AviatorAPIURL, cfg.AviatorAPIKey, cfg.AviatorAPIHost, rdb)
	publ := kpub.NewKafkaPublisher(writer, cfg.TopicBetPlaced)

	// HTTP público
	api := whttp.NewServer(log, repository, policy, gateway, verifier, rounds, publ)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Inicia servidor principal da API
	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
