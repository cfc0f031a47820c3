package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/adapter"
)

// MercadoPagoGateway implements adapter.PaymentGateway using direct HTTP
// calls against the Mercado Pago v1 API.
type MercadoPagoGateway struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

func NewMercadoPagoGateway(accessToken, baseURL string) *MercadoPagoGateway {
	if baseURL == "" {
		baseURL = "https://api.mercadopago.com"
	}
	return &MercadoPagoGateway{
		accessToken: accessToken,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *MercadoPagoGateway) Name() string { return "mercadopago" }

type mpPaymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	ExternalReference  string      `json:"external_reference"`
	TransactionAmount  float64     `json:"transaction_amount"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode    string `json:"qr_code"`
			TicketURL string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// CreatePayment initiates a payment. For pix the response carries a
// copy-paste code and a ticket URL; other methods fall back to the ticket
// URL alone.
func (g *MercadoPagoGateway) CreatePayment(ctx context.Context, method string, amount int64, description, externalRef string) (*adapter.PaymentIntent, error) {
	reqBody := map[string]interface{}{
		"transaction_amount": float64(amount) / 100,
		"description":        description,
		"external_reference": externalRef,
		"payment_method_id":  methodID(method),
		"payer":              map[string]string{"email": "buyer@noreply.local"},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payments", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	// Gateway-side replay protection for retried creates.
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	var out mpPaymentResponse
	if err := g.do(req, &out); err != nil {
		return nil, err
	}
	return &adapter.PaymentIntent{
		ID:           out.ID.String(),
		PayURL:       out.PointOfInteraction.TransactionData.TicketURL,
		PixCopyPaste: out.PointOfInteraction.TransactionData.QRCode,
	}, nil
}

// GetPayment fetches the authoritative payment resource by id. Reconciliation
// always re-fetches; webhook bodies are never trusted for status or amount.
func (g *MercadoPagoGateway) GetPayment(ctx context.Context, paymentID string) (*adapter.PaymentResource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	var out mpPaymentResponse
	if err := g.do(req, &out); err != nil {
		return nil, err
	}
	return &adapter.PaymentResource{
		ID:                out.ID.String(),
		Status:            out.Status,
		ExternalReference: out.ExternalReference,
		TransactionAmount: int64(math.Round(out.TransactionAmount * 100)),
	}, nil
}

func (g *MercadoPagoGateway) do(req *http.Request, out interface{}) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mercadopago error: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	return nil
}

func methodID(method string) string {
	if method == "pix" {
		return "pix"
	}
	return "checkout"
}

// Factory builds gateway clients from per-tenant credentials. Sandbox
// tenants share the production host; Mercado Pago separates environments by
// token, not URL.
type Factory struct {
	BaseURL string
}

func (f *Factory) For(name string, creds model.GatewayCredentials) (adapter.PaymentGateway, error) {
	if name != "mercadopago" {
		return nil, fmt.Errorf("unknown payment gateway %q", name)
	}
	return NewMercadoPagoGateway(creds.AccessToken, f.BaseURL), nil
}
