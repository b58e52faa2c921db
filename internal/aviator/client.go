package aviator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "aviator:latest"

// Client consulta o estado mais recente da rodada no provedor upstream.
// Cache curto em Redis segura o rate limit do provedor sob muitos clientes.
type Client struct {
	baseURL string
	apiKey  string
	apiHost string
	http    *http.Client
	rdb     *redis.Client // nil desabilita o cache
	ttl     time.Duration
}

func New(baseURL, apiKey, apiHost string, rdb *redis.Client) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		apiHost: apiHost,
		http:    &http.Client{Timeout: 5 * time.Second},
		rdb:     rdb,
		ttl:     2 * time.Second,
	}
}

// Latest retorna o payload cru do estado mais recente da rodada
func (c *Client) Latest(ctx context.Context) (json.RawMessage, error) {
	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, cacheKey).Bytes(); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.apiHost)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aviator upstream: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("aviator upstream http %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil {
		_ = c.rdb.Set(ctx, cacheKey, body, c.ttl).Err()
	}
	return body, nil
}
