// internal/gateway/asaas_test.go
package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repasso/repasso-backend/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *AsaasClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewAsaasClient(config.GatewayConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
}

func TestCreateChargeSendsAccessToken(t *testing.T) {
	var gotToken string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("access_token")
		w.Write([]byte(`{"id":"pay_1","status":"PENDING","value":150.00,"invoiceUrl":"https://inv"}`))
	})

	charge, err := client.CreateCharge(context.Background(), ChargeRequest{
		CustomerID:        "cus_1",
		Value:             decimal.RequireFromString("150.00"),
		ExternalReference: "txn-id",
		BillingType:       "PIX",
		DueDate:           "2026-08-29",
	})
	require.NoError(t, err)
	assert.Equal(t, "test-key", gotToken)
	assert.Equal(t, "pay_1", charge.ID)
	assert.Equal(t, "https://inv", charge.InvoiceURL)
}

func TestServerErrorsAreUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CreateCharge(context.Background(), ChargeRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientErrorsAreDefinitive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"description":"invalid value"}]}`))
	})

	_, err := client.CreateCharge(context.Background(), ChargeRequest{})
	require.Error(t, err)
	// A 4xx means the gateway understood and refused; retrying won't help.
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestConnectionFailureIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := NewAsaasClient(config.GatewayConfig{BaseURL: server.URL, Timeout: time.Second})
	_, err := client.GetChargeByReference(context.Background(), "ref")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGetChargeByReferenceNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ref-123", r.URL.Query().Get("externalReference"))
		w.Write([]byte(`{"data":[]}`))
	})

	charge, err := client.GetChargeByReference(context.Background(), "ref-123")
	require.NoError(t, err)
	assert.Nil(t, charge)
}

func TestGetChargeByReferenceFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"pay_9","status":"RECEIVED","externalReference":"ref-9"}]}`))
	})

	charge, err := client.GetChargeByReference(context.Background(), "ref-9")
	require.NoError(t, err)
	require.NotNil(t, charge)
	assert.Equal(t, "pay_9", charge.ID)
	assert.True(t, IsPaidStatus(charge.Status))
}

func TestCreateOrFindCustomerPrefersExisting(t *testing.T) {
	var created bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			created = true
			w.Write([]byte(`{"id":"cus_new"}`))
			return
		}
		w.Write([]byte(`{"data":[{"id":"cus_existing","cpfCnpj":"52998224725"}]}`))
	})

	id, err := client.CreateOrFindCustomer(context.Background(), CustomerRequest{CPF: "52998224725"})
	require.NoError(t, err)
	assert.Equal(t, "cus_existing", id)
	assert.False(t, created)
}

func TestGetPixQRCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_1/pixQrCode", r.URL.Path)
		w.Write([]byte(`{"payload":"00020126pix"}`))
	})

	payload, err := client.GetPixQRCode(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "00020126pix", payload)
}

func TestIsPaidStatus(t *testing.T) {
	assert.True(t, IsPaidStatus(ChargeStatusConfirmed))
	assert.True(t, IsPaidStatus(ChargeStatusReceived))
	assert.False(t, IsPaidStatus(ChargeStatusPending))
	assert.False(t, IsPaidStatus(ChargeStatusOverdue))
}
