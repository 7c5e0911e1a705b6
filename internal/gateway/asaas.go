// internal/gateway/asaas.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/repasso/repasso-backend/internal/config"
)

// AsaasClient talks to an Asaas-style REST gateway. All requests carry a
// bounded timeout through the underlying http.Client so a slow provider
// can never hang a state transition.
type AsaasClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewAsaasClient(cfg config.GatewayConfig) *AsaasClient {
	return &AsaasClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type asaasCustomer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	CpfCnpj string `json:"cpfCnpj"`
	Phone   string `json:"mobilePhone,omitempty"`
}

type asaasList struct {
	Data []json.RawMessage `json:"data"`
}

func (c *AsaasClient) CreateOrFindCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	// Look up by tax id first
	query := url.Values{"cpfCnpj": {req.CPF}}
	var list asaasList
	if err := c.do(ctx, http.MethodGet, "/customers?"+query.Encode(), nil, &list); err != nil {
		return "", err
	}
	if len(list.Data) > 0 {
		var existing asaasCustomer
		if err := json.Unmarshal(list.Data[0], &existing); err == nil && existing.ID != "" {
			return existing.ID, nil
		}
	}

	body := asaasCustomer{
		Name:    req.Name,
		Email:   req.Email,
		CpfCnpj: req.CPF,
		Phone:   req.Phone,
	}
	var created asaasCustomer
	if err := c.do(ctx, http.MethodPost, "/customers", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

type asaasChargeRequest struct {
	Customer          string `json:"customer"`
	BillingType       string `json:"billingType"`
	Value             string `json:"value"`
	DueDate           string `json:"dueDate"`
	Description       string `json:"description,omitempty"`
	ExternalReference string `json:"externalReference"`
}

func (c *AsaasClient) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	body := asaasChargeRequest{
		Customer:          req.CustomerID,
		BillingType:       req.BillingType,
		Value:             req.Value.StringFixed(2),
		DueDate:           req.DueDate,
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
	}

	var charge Charge
	if err := c.do(ctx, http.MethodPost, "/payments", body, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

func (c *AsaasClient) GetChargeByReference(ctx context.Context, reference string) (*Charge, error) {
	query := url.Values{"externalReference": {reference}}
	var list asaasList
	if err := c.do(ctx, http.MethodGet, "/payments?"+query.Encode(), nil, &list); err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, nil
	}

	var charge Charge
	if err := json.Unmarshal(list.Data[0], &charge); err != nil {
		return nil, fmt.Errorf("failed to decode charge: %w", err)
	}
	return &charge, nil
}

func (c *AsaasClient) GetPixQRCode(ctx context.Context, chargeID string) (string, error) {
	var result struct {
		Payload string `json:"payload"`
	}
	if err := c.do(ctx, http.MethodGet, "/payments/"+chargeID+"/pixQrCode", nil, &result); err != nil {
		return "", err
	}
	return result.Payload, nil
}

func (c *AsaasClient) Refund(ctx context.Context, chargeID string, amount *decimal.Decimal) error {
	body := map[string]interface{}{}
	if amount != nil {
		body["value"] = amount.StringFixed(2)
	}
	return c.do(ctx, http.MethodPost, "/payments/"+chargeID+"/refund", body, nil)
}

func (c *AsaasClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection errors leave the charge in an unknown
		// state; callers retry via webhook or reconciliation.
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"path":   path,
		}).Warn("Gateway rejected request")
		return fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
