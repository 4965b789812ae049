// internal/domain/payment/toss.go
package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/your-org/storefront-backend/internal/config"
)

// ConfirmError is a typed payment confirmation failure. Code preserves the
// gateway's own error code for user display and support diagnostics.
type ConfirmError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ConfirmError) Error() string {
	return fmt.Sprintf("payment confirm failed (%s): %s", e.Code, e.Message)
}

const (
	// CodeMissingSecretKey is reported before any network call when the
	// server-held credential is not configured
	CodeMissingSecretKey = "MISSING_SECRET_KEY"

	// CodeConfirmFailed is the fallback when the gateway's error body
	// carries no code of its own
	CodeConfirmFailed = "PAYMENT_CONFIRM_FAILED"
)

// Confirmation represents the gateway's successful confirm response
type Confirmation struct {
	PaymentKey  string `json:"paymentKey"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"totalAmount"`
}

type confirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TossClient confirms payments against the Toss Payments API
type TossClient struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewTossClient creates a new Toss Payments client
func NewTossClient(cfg *config.Config) *TossClient {
	return &TossClient{
		secretKey: cfg.Toss.SecretKey,
		baseURL:   cfg.Toss.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Toss.Timeout,
		},
	}
}

// ConfirmPayment asks the gateway to capture the payment identified by
// paymentKey for the given order token and amount. A non-success response is
// returned as a *ConfirmError carrying the gateway's code and message.
func (c *TossClient) ConfirmPayment(paymentKey, orderID string, amount int64) (*Confirmation, error) {
	if c.secretKey == "" {
		return nil, &ConfirmError{
			Code:    CodeMissingSecretKey,
			Message: "payment secret key is not configured",
		}
	}

	reqBody, err := json.Marshal(confirmRequest{
		PaymentKey: paymentKey,
		OrderID:    orderID,
		Amount:     amount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal confirm request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v1/payments/confirm", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create confirm request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	// Toss uses basic auth with the secret key as username and no password
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
			errBody = errorResponse{}
		}

		confirmErr := &ConfirmError{
			Code:    errBody.Code,
			Message: errBody.Message,
		}
		if confirmErr.Code == "" {
			confirmErr.Code = CodeConfirmFailed
		}
		if confirmErr.Message == "" {
			confirmErr.Message = "payment confirmation was rejected"
		}
		return nil, confirmErr
	}

	var confirmation Confirmation
	if err := json.NewDecoder(resp.Body).Decode(&confirmation); err != nil {
		return nil, fmt.Errorf("failed to parse confirm response: %w", err)
	}

	return &confirmation, nil
}
