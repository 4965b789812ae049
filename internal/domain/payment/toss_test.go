package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
)

func newTestClient(baseURL, secretKey string) *TossClient {
	return NewTossClient(&config.Config{
		Toss: config.TossConfig{
			SecretKey: secretKey,
			BaseURL:   baseURL,
			Timeout:   5 * time.Second,
		},
	})
}

func TestConfirmPayment_Success(t *testing.T) {
	var gotAuth string
	var gotBody confirmRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payments/confirm", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(Confirmation{
			PaymentKey:  gotBody.PaymentKey,
			OrderID:     gotBody.OrderID,
			Status:      "DONE",
			TotalAmount: gotBody.Amount,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "test_sk_abc123")

	confirmation, err := client.ConfirmPayment("pay_key_1", "order_tok_1", 56000)
	require.NoError(t, err)

	assert.Equal(t, "DONE", confirmation.Status)
	assert.Equal(t, "order_tok_1", confirmation.OrderID)
	assert.Equal(t, int64(56000), confirmation.TotalAmount)

	// Basic auth: secret key as username, empty password
	assert.Equal(t, "Basic dGVzdF9za19hYmMxMjM6", gotAuth)

	assert.Equal(t, "pay_key_1", gotBody.PaymentKey)
	assert.Equal(t, int64(56000), gotBody.Amount)
}

func TestConfirmPayment_MissingSecretKey(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1", "")

	_, err := client.ConfirmPayment("pay_key_1", "order_tok_1", 1000)

	var confirmErr *ConfirmError
	require.ErrorAs(t, err, &confirmErr)
	assert.Equal(t, CodeMissingSecretKey, confirmErr.Code)
}

func TestConfirmPayment_GatewayRejectionKeepsCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "REJECT_CARD_COMPANY",
			"message": "카드사에서 결제를 거절했습니다.",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "test_sk_abc123")

	_, err := client.ConfirmPayment("pay_key_1", "order_tok_1", 1000)

	var confirmErr *ConfirmError
	require.ErrorAs(t, err, &confirmErr)
	assert.Equal(t, "REJECT_CARD_COMPANY", confirmErr.Code)
	assert.Equal(t, "카드사에서 결제를 거절했습니다.", confirmErr.Message)
}

func TestConfirmPayment_ErrorBodyWithoutCodeFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "test_sk_abc123")

	_, err := client.ConfirmPayment("pay_key_1", "order_tok_1", 1000)

	var confirmErr *ConfirmError
	require.ErrorAs(t, err, &confirmErr)
	assert.Equal(t, CodeConfirmFailed, confirmErr.Code)
	assert.NotEmpty(t, confirmErr.Message)
}

func TestConfirmPayment_NetworkErrorIsNotConfirmError(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1", "test_sk_abc123")

	_, err := client.ConfirmPayment("pay_key_1", "order_tok_1", 1000)
	require.Error(t, err)

	var confirmErr *ConfirmError
	assert.False(t, errors.As(err, &confirmErr))
}
