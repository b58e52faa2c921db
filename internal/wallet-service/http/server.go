package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/porcupine/aviator-platform-poc/internal/auth"
	"github.com/porcupine/aviator-platform-poc/internal/shared/metrics"
	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/commission"
	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/dto"
	"github.com/porcupine/aviator-platform-poc/internal/wallet-service/repo"
	"github.com/porcupine/aviator-platform-poc/pkg/contracts/events"
)

// Repo define as operações do ledger usadas pelo handler HTTP
type Repo interface {
	PlaceBet(ctx context.Context, userID string, stakeCents int64) (*repo.Bet, error)
	History(ctx context.Context, userID string) ([]repo.Bet, error)
}

// Gateway define as operações do gateway de pagamento usadas pelo handler
type Gateway interface {
	STKPush(ctx context.Context, phone string, amountCents int64) (json.RawMessage, error)
	B2CPayment(ctx context.Context, phone string, amountCents int64) (json.RawMessage, error)
	AccountBalance(ctx context.Context) (json.RawMessage, error)
}

// Verifier valida o token de identidade e devolve o uid do chamador
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// RoundSource fornece o estado mais recente da rodada do aviator
type RoundSource interface {
	Latest(ctx context.Context) (json.RawMessage, error)
}

// Server expõe a API pública: apostas, histórico e movimentação via gateway
type Server struct {
	log      *zap.Logger
	repo     Repo
	policy   commission.Policy
	gateway  Gateway
	verifier Verifier
	rounds   RoundSource
	publ     interface {
		PublishBetPlaced(context.Context, events.BetPlaced) error
	}
}

func NewServer(log *zap.Logger, r Repo, policy commission.Policy, g Gateway, v Verifier, rounds RoundSource, p interface {
	PublishBetPlaced(context.Context, events.BetPlaced) error
}) *Server {
	return &Server{log: log, repo: r, policy: policy, gateway: g, verifier: v, rounds: rounds, publ: p}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bets", s.authenticated(s.placeBet))           // POST
	mux.HandleFunc("/bets/history", s.authenticated(s.betHistory)) // GET
	mux.HandleFunc("/deposit", s.authenticated(s.deposit))         // POST
	mux.HandleFunc("/withdraw", s.authenticated(s.withdraw))       // POST
	mux.HandleFunc("/balance", s.authenticated(s.balance))         // GET
	mux.HandleFunc("/profile", s.authenticated(s.profile))         // GET
	mux.HandleFunc("/aviator/latest", s.aviatorLatest)             // GET, sem auth
	return mux
}

type ctxKey int

const userIDKey ctxKey = iota

// authenticated delega a validação do token ao provedor de identidade
// e injeta o uid no contexto da requisição
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			http.Error(w, "missing authorization token", http.StatusForbidden)
			return
		}

		uid, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				s.log.Warn("token verification", zap.Error(err))
			}
			http.Error(w, "invalid token or unauthorized", http.StatusForbidden)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, uid)))
	}
}

func callerID(r *http.Request) string {
	uid, _ := r.Context().Value(userIDKey).(string)
	return uid
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.StakeCents <= 0 {
		metrics.BetsRejected.WithLabelValues("invalid_amount").Inc()
		http.Error(w, "invalid bet amount", http.StatusBadRequest)
		return
	}

	uid := callerID(r)
	bet, err := s.repo.PlaceBet(r.Context(), uid, req.StakeCents)
	switch {
	case errors.Is(err, repo.ErrAccountNotFound):
		metrics.BetsRejected.WithLabelValues("account_not_found").Inc()
		http.Error(w, "user not found", http.StatusNotFound)
		return
	case errors.Is(err, repo.ErrInsufficientFunds):
		metrics.BetsRejected.WithLabelValues("insufficient_funds").Inc()
		http.Error(w, "insufficient funds", http.StatusBadRequest)
		return
	case err != nil:
		s.log.Error("place bet", zap.String("userId", uid), zap.Error(err))
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	metrics.BetsPlaced.Inc()

	// publicação é fire-and-forget: a aposta já está durável no ledger
	if err := s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
		BetID:      bet.ID,
		UserID:     uid,
		StakeCents: bet.StakeCents,
		Outcome:    string(bet.Outcome),
	}); err != nil {
		s.log.Warn("publish bet_placed", zap.String("betId", bet.ID), zap.Error(err))
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, dto.PlaceBetResponse{BetID: bet.ID, Status: string(bet.Outcome)})
}

func (s *Server) betHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uid := callerID(r)
	bets, err := s.repo.History(r.Context(), uid)
	if err != nil {
		s.log.Error("bet history", zap.String("userId", uid), zap.Error(err))
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]dto.BetResponse, 0, len(bets))
	for _, b := range bets {
		out = append(out, dto.BetResponse{
			ID:          b.ID,
			UserID:      b.UserID,
			StakeCents:  b.StakeCents,
			Outcome:     string(b.Outcome),
			PayoutCents: b.PayoutCents,
			CreatedAt:   b.CreatedAt,
			SettledAt:   b.SettledAt,
		})
	}
	writeJSON(w, out)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.PhoneNumber == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	payload, err := s.gateway.STKPush(r.Context(), req.PhoneNumber, req.AmountCents)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("stk_push", "error").Inc()
		s.log.Error("stk push", zap.Error(err))
		http.Error(w, "error initiating payment", http.StatusInternalServerError)
		return
	}
	metrics.GatewayRequests.WithLabelValues("stk_push", "ok").Inc()
	writeRaw(w, payload)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.PhoneNumber == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// o valor enviado ao gateway é o liquidado pela comissão, nunca o stake cru.
	// o outcome vem do cliente aqui; o resultado autoritativo fica no ledger
	settled := s.policy.Settle(req.AmountCents, commission.Outcome(req.Outcome))

	payload, err := s.gateway.B2CPayment(r.Context(), req.PhoneNumber, settled)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("b2c", "error").Inc()
		s.log.Error("b2c payment", zap.Error(err))
		http.Error(w, "error initiating transaction", http.StatusInternalServerError)
		return
	}
	metrics.GatewayRequests.WithLabelValues("b2c", "ok").Inc()
	writeRaw(w, payload)
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := s.gateway.AccountBalance(r.Context())
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("balance", "error").Inc()
		s.log.Error("balance query", zap.Error(err))
		http.Error(w, "error checking balance", http.StatusInternalServerError)
		return
	}
	metrics.GatewayRequests.WithLabelValues("balance", "ok").Inc()
	writeRaw(w, payload)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, dto.ProfileResponse{UID: callerID(r)})
}

func (s *Server) aviatorLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.rounds == nil {
		http.Error(w, "not configured", http.StatusNotFound)
		return
	}

	payload, err := s.rounds.Latest(r.Context())
	if err != nil {
		s.log.Error("aviator latest", zap.Error(err))
		http.Error(w, "error fetching game state", http.StatusInternalServerError)
		return
	}
	writeRaw(w, payload)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw repassa o payload do gateway/upstream como veio
func writeRaw(w http.ResponseWriter, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}
