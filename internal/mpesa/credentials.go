package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TokenSource mantém o token OAuth corrente do gateway num slot único,
// escrito apenas pela rotina de renovação e lido por qualquer requisição.
// Falha na renovação mantém o último token válido; nunca volta a Unset.
type TokenSource struct {
	log      *zap.Logger
	oauthURL string
	key      string
	secret   string
	http     *http.Client

	mu    sync.RWMutex
	token string
}

func NewTokenSource(log *zap.Logger, oauthURL, consumerKey, consumerSecret string) *TokenSource {
	return &TokenSource{
		log:      log,
		oauthURL: oauthURL,
		key:      consumerKey,
		secret:   consumerSecret,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Current retorna o token corrente; ok=false enquanto nenhum fetch teve sucesso
func (t *TokenSource) Current() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token, t.token != ""
}

// Refresh busca um novo token no gateway via client credentials (Basic auth)
func (t *TokenSource) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.oauthURL, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.key, t.secret)

	res, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("oauth request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return fmt.Errorf("oauth http %d", res.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("oauth decode: %w", err)
	}
	if out.AccessToken == "" {
		return errors.New("oauth: empty access_token")
	}

	t.mu.Lock()
	t.token = out.AccessToken
	t.mu.Unlock()
	return nil
}

// Start faz o primeiro fetch de forma síncrona (ordem de inicialização explícita,
// antes da primeira requisição) e agenda a renovação periódica até ctx encerrar.
// Falhas são logadas e não propagam: o serviço segue com o último token bom.
func (t *TokenSource) Start(ctx context.Context, interval time.Duration) {
	if err := t.Refresh(ctx); err != nil {
		t.log.Warn("mpesa token fetch", zap.Error(err))
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.Refresh(ctx); err != nil {
					t.log.Warn("mpesa token refresh", zap.Error(err))
				}
			}
		}
	}()
}
