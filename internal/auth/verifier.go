package auth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidToken indica token ausente, expirado ou recusado pelo provedor
var ErrInvalidToken = errors.New("invalid or expired token")

// Verifier resolve tokens de identidade junto ao provedor externo,
// com cache read-through em Redis para não bater no provedor a cada request.
type Verifier struct {
	verifyURL string
	http      *http.Client
	rdb       *redis.Client // nil desabilita o cache
	ttl       time.Duration
}

func NewVerifier(verifyURL string, rdb *redis.Client) *Verifier {
	return &Verifier{
		verifyURL: verifyURL,
		http:      &http.Client{Timeout: 5 * time.Second},
		rdb:       rdb,
		ttl:       5 * time.Minute,
	}
}

// Verify retorna o uid estável dono do token
func (v *Verifier) Verify(ctx context.Context, token string) (string, error) {
	key := cacheKey(token)
	if v.rdb != nil {
		if uid, err := v.rdb.Get(ctx, key).Result(); err == nil && uid != "" {
			return uid, nil
		}
	}

	body, _ := json.Marshal(map[string]string{"token": token})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := v.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth provider: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return "", ErrInvalidToken
	}
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("auth provider http %d", res.StatusCode)
	}

	var out struct {
		UID string `json:"uid"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.UID == "" {
		return "", ErrInvalidToken
	}

	if v.rdb != nil {
		_ = v.rdb.Set(ctx, key, out.UID, v.ttl).Err()
	}
	return out.UID, nil
}

// cacheKey usa o hash do token pra não guardar a credencial em claro no Redis
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "auth:token:" + hex.EncodeToString(sum[:])
}
