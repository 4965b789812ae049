// internal/domain/checkout/service.go
package checkout

import (
	"errors"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
)

// Failure codes returned by CompleteCheckout. Gateway rejections keep the
// gateway's own code instead of one of these.
const (
	FailureSessionMissing        = "SESSION_MISSING"
	FailureInvalidRedirectParams = "INVALID_REDIRECT_PARAMS"
	FailureInvalidAmount         = "INVALID_AMOUNT"
	FailureOrderIDMismatch       = "ORDER_ID_MISMATCH"
	FailureAmountMismatch        = "AMOUNT_MISMATCH"
	FailureOrderCreateFailed     = "ORDER_CREATE_FAILED"
	FailureStatusUpdateFailed    = "STATUS_UPDATE_FAILED"
)

// CompleteCheckoutParams are the raw query parameters the payment gateway
// appends to the success redirect. Amount stays a string until it has been
// validated against the session.
type CompleteCheckoutParams struct {
	PaymentKey string `json:"paymentKey" form:"paymentKey"`
	OrderToken string `json:"orderId" form:"orderId"`
	Amount     string `json:"amount" form:"amount"`
}

// CompleteCheckoutResult is the structured outcome of a completion attempt.
// Every failure mode maps to a code; the coordinator never panics out.
type CompleteCheckoutResult struct {
	Success     bool   `json:"success"`
	OrderID     uint   `json:"order_id,omitempty"`
	Message     string `json:"message,omitempty"`
	FailureCode string `json:"failure_code,omitempty"`
}

// Service coordinates checkout completion: it validates the redirect
// against the stored session, confirms the payment with the gateway, and
// only then persists the order.
type Service struct {
	config       *config.Config
	logger       *logrus.Logger
	sessions     *SessionStore
	orderService *order.Service
	tossClient   *payment.TossClient
}

// NewService creates a new checkout service
func NewService(cfg *config.Config, logger *logrus.Logger, sessions *SessionStore, orderService *order.Service, tossClient *payment.TossClient) *Service {
	return &Service{
		config:       cfg,
		logger:       logger,
		sessions:     sessions,
		orderService: orderService,
		tossClient:   tossClient,
	}
}

// BeginCheckout snapshots the cart into a session and returns the values
// the payment widget needs
func (s *Service) BeginCheckout(ownerID string, req *BeginCheckoutRequest) (*BeginCheckoutResult, error) {
	return s.sessions.Create(ownerID, req)
}

// CompleteCheckout runs the payment-return leg of checkout.
//
// The redirect parameters are checked against the stored session in a fixed
// order: session present, parameters present, amount a positive integer,
// order token match, amount match. Money is never charged until every check
// has passed. Only after the gateway confirms the payment is the order
// persisted and moved to confirmed; the session is cleared solely on full
// success, so a failed attempt can be retried within the session TTL.
func (s *Service) CompleteCheckout(ownerID string, params *CompleteCheckoutParams) *CompleteCheckoutResult {
	log := s.logger.WithFields(logrus.Fields{
		"owner_id":    ownerID,
		"order_token": params.OrderToken,
	})

	// 1. Session must exist and not be expired
	session, err := s.sessions.Get(ownerID)
	if err != nil {
		log.WithField("error", err.Error()).Error("failed to read checkout session")
		return &CompleteCheckoutResult{
			Success:     false,
			Message:     "checkout session could not be read",
			FailureCode: FailureSessionMissing,
		}
	}
	if session == nil {
		return &CompleteCheckoutResult{
			Success:     false,
			Message:     "checkout session not found or expired",
			FailureCode: FailureSessionMissing,
		}
	}

	// 2. All redirect parameters must be present
	if params.PaymentKey == "" || params.OrderToken == "" || params.Amount == "" {
		return &CompleteCheckoutResult{
			Success:     false,
			Message:     "payment redirect parameters are missing",
			FailureCode: FailureInvalidRedirectParams,
		}
	}

	// 3. Amount must parse to a positive integral number
	amount, err := strconv.ParseFloat(params.Amount, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) ||
		amount <= 0 || amount != math.Trunc(amount) {
		return &CompleteCheckoutResult{
			Success:     false,
			Message:     "payment amount is not a valid positive integer",
			FailureCode: FailureInvalidAmount,
		}
	}

	// 4. Order token must match the session
	if params.OrderToken != session.OrderToken {
		log.Warn("order token does not match checkout session")
		return &CompleteCheckoutResult{
			Success:     false,
			Message:     "order does not match the current checkout session",
			FailureCode: FailureOrderIDMismatch,
		}
	}

	// 5. Amount must match what the session was created with. This is the
	// defense against client-side price tampering between checkout start
	// and payment confirm.
	if int64(amount) != session.TotalAmount {
		log.WithFields(logrus.Fields{
			"expected_amount": session.TotalAmount,
			"received_amount": params.Amount,
		}).Warn("payment amount does not match checkout session")
		return &CompleteCheckoutResult{
			Success:     false,
			Message:     "payment amount does not match the order total",
			FailureCode: FailureAmountMismatch,
		}
	}

	// 6. Confirm the payment with the gateway. No money has moved yet;
	// a rejection here leaves nothing to undo.
	if _, err := s.tossClient.ConfirmPayment(params.PaymentKey, params.OrderToken, session.TotalAmount); err != nil {
		var confirmErr *payment.ConfirmError
		if errors.As(err, &confirmErr) {
			log.WithFields(logrus.Fields{
				"code":  confirmErr.Code,
				"error": confirmErr.Message,
			}).Warn("payment confirmation rejected")
			return &CompleteCheckoutResult{
				Success:     false,
				Message:     confirmErr.Message,
				FailureCode: confirmErr.Code,
			}
		}

		log.WithField("error", err.Error()).Error("payment confirmation failed")
		return &CompleteCheckoutResult{
			Success:     false,
			Message:     "payment confirmation failed",
			FailureCode: payment.CodeConfirmFailed,
		}
	}

	// 7. Persist the order from the cart using the session's shipping data.
	// The payment is already captured; a failure here is surfaced for
	// manual reconciliation rather than hidden.
	createdOrder, err := s.orderService.CreateOrder(ownerID, &order.CreateOrderRequest{
		ShippingAddress: session.ShippingAddress,
		OrderNote:       session.OrderNote,
	})
	if err != nil {
		log.WithField("error", err.Error()).Error("payment captured but order creation failed")
		return &CompleteCheckoutResult{
			Success:     false,
			Message:     "payment was captured but the order could not be created, please contact support",
			FailureCode: FailureOrderCreateFailed,
		}
	}

	// 8. Mark the order paid
	if err := s.orderService.UpdateOrderStatus(createdOrder.ID, order.OrderStatusConfirmed); err != nil {
		log.WithFields(logrus.Fields{
			"order_id": createdOrder.ID,
			"error":    err.Error(),
		}).Error("order created but status update failed")
		return &CompleteCheckoutResult{
			Success:     false,
			OrderID:     createdOrder.ID,
			Message:     "order was created but could not be confirmed, please contact support",
			FailureCode: FailureStatusUpdateFailed,
		}
	}

	// 9. The session has served its purpose
	if err := s.sessions.Clear(ownerID); err != nil {
		log.WithFields(logrus.Fields{
			"order_id": createdOrder.ID,
			"error":    err.Error(),
		}).Warn("checkout completed but session could not be cleared")
	}

	log.WithField("order_id", createdOrder.ID).Info("checkout completed")

	return &CompleteCheckoutResult{
		Success: true,
		OrderID: createdOrder.ID,
		Message: "order completed",
	}
}
