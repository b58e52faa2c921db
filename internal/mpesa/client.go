package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrGateway sinaliza falha de transporte ou resposta não-2xx do gateway.
// O chamador mapeia para um 5xx genérico sem vazar detalhes da requisição.
var ErrGateway = errors.New("gateway error")

// Settings agrupa credenciais de negócio e endpoints do gateway
type Settings struct {
	ShortCode          string
	Passkey            string
	InitiatorName      string
	SecurityCredential string

	STKPushURL string
	B2CURL     string
	BalanceURL string

	STKCallbackURL    string
	B2CTimeoutURL     string
	B2CResultURL      string
	BalanceTimeoutURL string
	BalanceResultURL  string
}

// Client monta e despacha requisições ao gateway M-Pesa.
// Sem estado entre chamadas: o token é lido do TokenSource imediatamente
// antes de cada envio, e senha/timestamp são recalculados por chamada.
type Client struct {
	tokens *TokenSource
	cfg    Settings
	http   *http.Client
}

func NewClient(tokens *TokenSource, cfg Settings) *Client {
	return &Client{
		tokens: tokens,
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// timestampFormat é o formato exigido pelo gateway (YYYYMMDDHHmmss)
const timestampFormat = "20060102150405"

// password deriva a senha de requisição de shortcode+passkey+timestamp.
// Como o timestamp carrega o segundo corrente, vale só para esta chamada.
func (c *Client) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + ts))
}

// STKPush inicia um depósito via push de pagamento no celular do usuário
func (c *Client) STKPush(ctx context.Context, phone string, amountCents int64) (json.RawMessage, error) {
	ts := time.Now().Format(timestampFormat)
	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            toUnits(amountCents),
		"PartyA":            phone,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.cfg.STKCallbackURL,
		"AccountReference":  "AviatorDeposit",
		"TransactionDesc":   "Deposit to Aviator",
	}
	return c.post(ctx, c.cfg.STKPushURL, payload)
}

// B2CPayment inicia um saque por disbursement.
// amountCents já deve chegar liquidado pela política de comissão.
func (c *Client) B2CPayment(ctx context.Context, phone string, amountCents int64) (json.RawMessage, error) {
	payload := map[string]any{
		"InitiatorName":      c.cfg.InitiatorName,
		"SecurityCredential": c.cfg.SecurityCredential,
		"CommandID":          "BusinessPayment",
		"Amount":             toUnits(amountCents),
		"PartyA":             c.cfg.ShortCode,
		"PartyB":             phone,
		"Remarks":            "Transaction from Aviator",
		"QueueTimeOutURL":    c.cfg.B2CTimeoutURL,
		"ResultURL":          c.cfg.B2CResultURL,
		"Occasion":           "Transaction",
	}
	return c.post(ctx, c.cfg.B2CURL, payload)
}

// AccountBalance consulta o saldo da conta de negócio no gateway
func (c *Client) AccountBalance(ctx context.Context) (json.RawMessage, error) {
	payload := map[string]any{
		"Initiator":          c.cfg.InitiatorName,
		"SecurityCredential": c.cfg.SecurityCredential,
		"CommandID":          "AccountBalance",
		"PartyA":             c.cfg.ShortCode,
		"IdentifierType":     "4",
		"Remarks":            "Checking account balance",
		"QueueTimeOutURL":    c.cfg.BalanceTimeoutURL,
		"ResultURL":          c.cfg.BalanceResultURL,
	}
	return c.post(ctx, c.cfg.BalanceURL, payload)
}

// post envia a requisição autenticada e devolve o payload cru do gateway
func (c *Client) post(ctx context.Context, url string, payload map[string]any) (json.RawMessage, error) {
	token, ok := c.tokens.Current()
	if !ok {
		return nil, fmt.Errorf("%w: credential not ready", ErrGateway)
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer res.Body.Close()

	out, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrGateway, err)
	}
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http %d", ErrGateway, res.StatusCode)
	}
	return out, nil
}

// toUnits converte centavos para as unidades inteiras aceitas pelo gateway
func toUnits(cents int64) int64 { return cents / 100 }
