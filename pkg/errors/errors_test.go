package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/agentstation/stocksync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	err := pkgerrors.NewNotFoundError("supplier", "petcare")
	assert.Equal(t, "supplier petcare not found", err.Error())
	assert.True(t, pkgerrors.IsNotFound(err))

	wrapped := fmt.Errorf("selecting suppliers: %w", err)
	assert.True(t, pkgerrors.IsNotFound(wrapped))
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rateLimited bool
		unavailable bool
		auth        bool
		transient   bool
	}{
		{"rate limited", 429, true, false, false, false},
		{"server error", 503, false, true, false, true},
		{"unauthorized", 401, false, false, true, false},
		{"forbidden", 403, false, false, true, false},
		{"unprocessable", 422, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgerrors.NewAPIError("platform", tt.status, "boom")
			assert.Equal(t, tt.rateLimited, pkgerrors.IsRateLimited(err))
			assert.Equal(t, tt.unavailable, pkgerrors.IsPlatformUnavailable(err))
			assert.Equal(t, tt.auth, pkgerrors.IsAuthentication(err))
			assert.Equal(t, tt.transient, err.Transient())
		})
	}

	t.Run("network failure is transient", func(t *testing.T) {
		err := &pkgerrors.APIError{Service: "platform", Message: "dial", Err: errors.New("connection refused")}
		assert.True(t, err.Transient())
		assert.Contains(t, err.Error(), "API error from platform: dial")
	})
}

func TestSupplierError(t *testing.T) {
	base := &pkgerrors.AbortError{Supplier: "order_nordic", Searched: 3}
	err := pkgerrors.NewSupplierError("order_nordic", "reconciled", base)

	assert.True(t, pkgerrors.IsAborted(err))
	assert.Contains(t, err.Error(), "supplier order_nordic failed at reconciled")
	assert.Contains(t, err.Error(), "0 of 3 searched identifiers")

	var abort *pkgerrors.AbortError
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, 3, abort.Searched)
}

func TestAuthenticationError(t *testing.T) {
	cause := errors.New("bad password")
	err := pkgerrors.NewAuthenticationError("oase_outdoors", "form", "login rejected", cause)

	assert.True(t, pkgerrors.IsAuthentication(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "authentication error for oase_outdoors (form): login rejected", err.Error())
}

func TestConfigError(t *testing.T) {
	err := pkgerrors.NewConfigError("platform", "shop_url is required", nil)
	assert.True(t, pkgerrors.IsConfig(err))
	assert.True(t, pkgerrors.IsConfig(fmt.Errorf("load: %w", err)))
	assert.False(t, pkgerrors.IsConfig(errors.New("other")))
	assert.Equal(t, "configuration error in platform: shop_url is required", err.Error())
}

func TestWrapHelpers(t *testing.T) {
	assert.NoError(t, pkgerrors.WrapIO("write", "logs", nil))
	assert.NoError(t, pkgerrors.WrapResource("fetch", "products", "", nil))
	assert.NoError(t, pkgerrors.WrapParse("json", "", nil))

	cause := errors.New("disk full")
	err := pkgerrors.WrapIO("write", "logs/sync.json", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "IO error during write of logs/sync.json: disk full", err.Error())

	err = pkgerrors.WrapResource("set", "inventory level", "42", cause)
	assert.Equal(t, "failed to set inventory level 42: disk full", err.Error())
}
