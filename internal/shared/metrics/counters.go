package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Contadores de negócio expostos em /metrics
var (
	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aviator_bets_placed_total",
		Help: "Total de apostas aceitas pelo wallet-service.",
	})

	BetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aviator_bets_rejected_total",
		Help: "Total de apostas rejeitadas, por motivo.",
	}, []string{"reason"})

	BetsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aviator_bets_settled_total",
		Help: "Total de apostas liquidadas pelo settlement-worker, por resultado.",
	}, []string{"outcome"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aviator_gateway_requests_total",
		Help: "Total de chamadas ao gateway de pagamento, por operação e status.",
	}, []string{"operation", "status"})
)
