package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pockethour/image-sentinel/internal/server/models"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"

	checkoutTTL = 30 * time.Minute
	callbackTTL = 24 * time.Hour
)

// checkoutClaims are signed into the redirect form so the sandbox checkout
// can trust the order it is shown.
type checkoutClaims struct {
	jwt.RegisteredClaims
	OrderID  string `json:"oid"`
	Amount   int64  `json:"amt"`
	Currency string `json:"cur"`
}

type callbackClaims struct {
	jwt.RegisteredClaims
	OrderID string `json:"oid"`
	Status  string `json:"status"`
}

// callbackBody is the JSON document the provider posts back.
type callbackBody struct {
	Token string `json:"token"`
}

// SandboxGateway is an HS256-signed stand-in for a hosted checkout. Real
// providers differ in wire format but not in the verify-then-confirm flow.
type SandboxGateway struct {
	secret      []byte
	checkoutURL string
	now         func() time.Time
}

func NewSandboxGateway(secret, checkoutURL string) *SandboxGateway {
	return &SandboxGateway{secret: []byte(secret), checkoutURL: checkoutURL, now: time.Now}
}

func (g *SandboxGateway) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

func (g *SandboxGateway) Initiate(ctx context.Context, order *models.Order) (*RedirectForm, error) {
	if len(g.secret) == 0 {
		return nil, errors.New("payment secret is not configured")
	}
	now := g.now()
	token, err := g.sign(checkoutClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(checkoutTTL)),
		},
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("sign checkout: %w", err)
	}

	return &RedirectForm{
		Action: g.checkoutURL,
		Method: "POST",
		Fields: map[string]string{
			"order_id": order.ID,
			"amount":   strconv.FormatInt(order.Amount, 10),
			"currency": order.Currency,
			"token":    token,
		},
	}, nil
}

// SignCallback produces the payload the sandbox checkout posts back for
// orderID.
func (g *SandboxGateway) SignCallback(orderID string, succeeded bool) ([]byte, error) {
	status := StatusFailed
	if succeeded {
		status = StatusSucceeded
	}
	now := g.now()
	token, err := g.sign(callbackClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(callbackTTL)),
		},
		OrderID: orderID,
		Status:  status,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(callbackBody{Token: token})
}

func (g *SandboxGateway) VerifyCallback(payload []byte) (CallbackResult, error) {
	var body callbackBody
	if err := json.Unmarshal(payload, &body); err != nil || body.Token == "" {
		return CallbackResult{}, fmt.Errorf("%w: malformed body", ErrInvalidCallback)
	}

	claims := &callbackClaims{}
	_, err := jwt.ParseWithClaims(body.Token, claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(g.now))
	if err != nil {
		return CallbackResult{}, fmt.Errorf("%w: %w", ErrInvalidCallback, err)
	}
	if claims.OrderID == "" {
		return CallbackResult{}, fmt.Errorf("%w: missing order id", ErrInvalidCallback)
	}

	return CallbackResult{
		Valid:     true,
		OrderID:   claims.OrderID,
		Succeeded: claims.Status == StatusSucceeded,
	}, nil
}
