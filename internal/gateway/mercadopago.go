package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Lorient94/GimnasioAdmin/internal/logger"
)

// ErrPaymentNotFound signals the gateway has no payment for the reference.
var ErrPaymentNotFound = errors.New("gateway payment not found")

// MercadoPagoClient talks to the MercadoPago REST API.
type MercadoPagoClient struct {
	accessToken     string
	baseURL         string
	currency        string
	notificationURL string
	backURL         string
	httpClient      *http.Client
}

type MercadoPagoConfig struct {
	AccessToken     string
	BaseURL         string
	Currency        string
	NotificationURL string
	BackURL         string
	Timeout         time.Duration
}

func NewMercadoPagoClient(cfg MercadoPagoConfig) *MercadoPagoClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &MercadoPagoClient{
		accessToken:     cfg.AccessToken,
		baseURL:         cfg.BaseURL,
		currency:        cfg.Currency,
		notificationURL: cfg.NotificationURL,
		backURL:         cfg.BackURL,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// preference payload shapes (only the fields we read/write)

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
	UnitPrice  float64 `json:"unit_price"`
}

type preferenceRequest struct {
	Items             []preferenceItem  `json:"items"`
	Payer             map[string]any    `json:"payer"`
	ExternalReference string            `json:"external_reference"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	BackURLs          map[string]string `json:"back_urls,omitempty"`
	AutoReturn        string            `json:"auto_return,omitempty"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount float64     `json:"transaction_amount"`
}

type paymentSearchResponse struct {
	Results []paymentResponse `json:"results"`
}

type refundResponse struct {
	ID     json.Number `json:"id"`
	Status string      `json:"status"`
}

func (c *MercadoPagoClient) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	start := time.Now()

	body := preferenceRequest{
		Items: []preferenceItem{{
			Title:      req.Concept,
			Quantity:   1,
			CurrencyID: c.currency,
			UnitPrice:  req.Amount,
		}},
		Payer: map[string]any{
			"identification": map[string]string{"type": "DNI", "number": req.PayerDNI},
		},
		ExternalReference: req.ExternalReference,
		NotificationURL:   c.notificationURL,
	}
	if c.backURL != "" {
		body.BackURLs = map[string]string{
			"success": c.backURL + "/success",
			"failure": c.backURL + "/failure",
			"pending": c.backURL + "/pending",
		}
		body.AutoReturn = "approved"
	}

	var resp preferenceResponse
	err := c.do(ctx, http.MethodPost, "/checkout/preferences", "", body, &resp)
	logger.GatewayLog("create_charge", req.ExternalReference, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	return &Charge{ChargeID: resp.ID, RedirectURL: resp.InitPoint}, nil
}

func (c *MercadoPagoClient) GetStatus(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	start := time.Now()

	var resp paymentResponse
	err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, "", nil, &resp)
	logger.GatewayLog("get_status", paymentID, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	return toPaymentStatus(resp), nil
}

func (c *MercadoPagoClient) SearchByReference(ctx context.Context, externalReference string) (*PaymentStatus, error) {
	start := time.Now()

	var resp paymentSearchResponse
	path := "/v1/payments/search?sort=date_created&criteria=desc&external_reference=" + externalReference
	err := c.do(ctx, http.MethodGet, path, "", nil, &resp)
	logger.GatewayLog("search_by_reference", externalReference, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrPaymentNotFound
	}

	return toPaymentStatus(resp.Results[0]), nil
}

func (c *MercadoPagoClient) RefundPayment(ctx context.Context, paymentID string, amount float64, idempotencyKey string) (*Refund, error) {
	start := time.Now()

	var body any
	if amount > 0 {
		body = map[string]float64{"amount": amount}
	}

	var resp refundResponse
	err := c.do(ctx, http.MethodPost, "/v1/payments/"+paymentID+"/refunds", idempotencyKey, body, &resp)
	logger.GatewayLog("refund", paymentID, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	return &Refund{RefundID: resp.ID.String(), Status: resp.Status}, nil
}

func (c *MercadoPagoClient) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrPaymentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("mercadopago %s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toPaymentStatus(resp paymentResponse) *PaymentStatus {
	return &PaymentStatus{
		PaymentID:         resp.ID.String(),
		Status:            resp.Status,
		StatusDetail:      resp.StatusDetail,
		ExternalReference: resp.ExternalReference,
		Amount:            resp.TransactionAmount,
	}
}
