// internal/domain/checkout/session.go
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
)

// SessionData is the snapshot taken when checkout begins. The order token
// and total amount are the contract the returning payment redirect must
// match; the store exposes no way to mutate them after creation.
type SessionData struct {
	OrderToken      string                `json:"order_token"`
	OrderName       string                `json:"order_name"`
	TotalAmount     int64                 `json:"total_amount"`
	ShippingAddress order.ShippingAddress `json:"shipping_address"`
	OrderNote       string                `json:"order_note"`
	CartItemCount   int                   `json:"cart_item_count"`
	CreatedAt       time.Time             `json:"created_at"`
}

// BeginCheckoutRequest represents checkout session creation data
type BeginCheckoutRequest struct {
	ShippingAddress order.ShippingAddress `json:"shipping_address" binding:"required"`
	OrderNote       string                `json:"order_note,omitempty"`
}

// BeginCheckoutResult carries what the payment widget needs to start a payment
type BeginCheckoutResult struct {
	OrderToken string `json:"order_id"`
	OrderName  string `json:"order_name"`
	Amount     int64  `json:"amount"`
}

// SessionStore keeps one short-lived checkout session per user in Redis.
// Expiry is enforced by the key TTL: after it passes, Get returns nil and
// the user has to restart checkout.
type SessionStore struct {
	redisClient *redis.Client
	config      *config.Config
	cartService *cart.Service
}

// NewSessionStore creates a new checkout session store
func NewSessionStore(redisClient *redis.Client, cfg *config.Config, cartService *cart.Service) *SessionStore {
	return &SessionStore{
		redisClient: redisClient,
		config:      cfg,
		cartService: cartService,
	}
}

// Create snapshots the owner's cart into a fresh checkout session. If the
// cart is empty or unreadable, nothing is written and an error is returned.
func (s *SessionStore) Create(ownerID string, req *BeginCheckoutRequest) (*BeginCheckoutResult, error) {
	cartResponse, err := s.cartService.GetCart(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}

	if len(cartResponse.Items) == 0 {
		return nil, fmt.Errorf("cart is empty")
	}

	var totalAmount int64
	for _, item := range cartResponse.Items {
		totalAmount += item.Product.Price * int64(item.Quantity)
	}

	firstProductName := cartResponse.Items[0].Product.Name
	orderName := firstProductName
	if len(cartResponse.Items) > 1 {
		orderName = fmt.Sprintf("%s 외 %d건", firstProductName, len(cartResponse.Items)-1)
	}

	session := SessionData{
		OrderToken:      "order_" + uuid.NewString(),
		OrderName:       orderName,
		TotalAmount:     totalAmount,
		ShippingAddress: req.ShippingAddress,
		OrderNote:       req.OrderNote,
		CartItemCount:   len(cartResponse.Items),
		CreatedAt:       time.Now().UTC(),
	}

	sessionData, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize checkout session: %w", err)
	}

	ctx := context.Background()
	err = s.redisClient.Set(ctx, s.sessionKey(ownerID), sessionData, s.config.Checkout.SessionTTL).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to store checkout session: %w", err)
	}

	return &BeginCheckoutResult{
		OrderToken: session.OrderToken,
		OrderName:  session.OrderName,
		Amount:     session.TotalAmount,
	}, nil
}

// Get returns the owner's checkout session, or nil when it is absent,
// expired, or corrupt. It never fails on those cases.
func (s *SessionStore) Get(ownerID string) (*SessionData, error) {
	ctx := context.Background()

	raw, err := s.redisClient.Get(ctx, s.sessionKey(ownerID)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read checkout session: %w", err)
	}

	var session SessionData
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		// A corrupt session is treated as absent
		return nil, nil
	}

	return &session, nil
}

// Clear deletes the owner's checkout session. Deleting a session that does
// not exist is not an error.
func (s *SessionStore) Clear(ownerID string) error {
	ctx := context.Background()
	return s.redisClient.Del(ctx, s.sessionKey(ownerID)).Err()
}

func (s *SessionStore) sessionKey(ownerID string) string {
	return fmt.Sprintf("checkout:session:%s", ownerID)
}
