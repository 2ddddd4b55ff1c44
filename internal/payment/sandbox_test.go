package payment

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pockethour/image-sentinel/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxGateway_Initiate(t *testing.T) {
	g := NewSandboxGateway("secret", "https://pay.example/checkout")
	order := &models.Order{ID: "o1", FileID: "f1", Amount: 499, Currency: "USD"}

	form, err := g.Initiate(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/checkout", form.Action)
	assert.Equal(t, "POST", form.Method)
	assert.Equal(t, "o1", form.Fields["order_id"])
	assert.Equal(t, "499", form.Fields["amount"])

	claims := &checkoutClaims{}
	_, err = jwt.ParseWithClaims(form.Fields["token"], claims, func(t *jwt.Token) (any, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "o1", claims.OrderID)
	assert.Equal(t, int64(499), claims.Amount)
}

func TestSandboxGateway_InitiateWithoutSecret(t *testing.T) {
	_, err := NewSandboxGateway("", "x").Initiate(context.Background(), &models.Order{ID: "o"})
	assert.Error(t, err)
}

func TestSandboxGateway_VerifyCallback(t *testing.T) {
	g := NewSandboxGateway("secret", "")

	ok, err := g.SignCallback("o1", true)
	require.NoError(t, err)
	res, err := g.VerifyCallback(ok)
	require.NoError(t, err)
	assert.Equal(t, CallbackResult{Valid: true, OrderID: "o1", Succeeded: true}, res)

	failed, err := g.SignCallback("o2", false)
	require.NoError(t, err)
	res, err = g.VerifyCallback(failed)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.False(t, res.Succeeded)
}

func TestSandboxGateway_VerifyCallbackRejects(t *testing.T) {
	g := NewSandboxGateway("secret", "")
	forged, err := NewSandboxGateway("other", "").SignCallback("o1", true)
	require.NoError(t, err)

	expired := NewSandboxGateway("secret", "")
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	stale, err := expired.SignCallback("o1", true)
	require.NoError(t, err)

	for name, payload := range map[string][]byte{
		"garbage":   []byte("not json"),
		"no token":  []byte(`{}`),
		"bad token": []byte(`{"token":"a.b.c"}`),
		"forged":    forged,
		"expired":   stale,
	} {
		t.Run(name, func(t *testing.T) {
			res, err := g.VerifyCallback(payload)
			assert.ErrorIs(t, err, ErrInvalidCallback)
			assert.False(t, res.Valid)
		})
	}
}
