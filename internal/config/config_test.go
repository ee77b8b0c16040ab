package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.20")))
	assert.Equal(t, "EUR", cfg.Currency.String())
	assert.Equal(t, 3, cfg.OrderNumberAttempts)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHECKOUT_TAX_RATE", "0.25")
	t.Setenv("CHECKOUT_CURRENCY", "USD")
	t.Setenv("CHECKOUT_ORDER_NUMBER_ATTEMPTS", "5")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/checkout")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, "USD", cfg.Currency.String())
	assert.Equal(t, 5, cfg.OrderNumberAttempts)
	assert.Equal(t, "postgres://localhost:5432/checkout", cfg.DatabaseURL)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad tax rate", key: "CHECKOUT_TAX_RATE", value: "twenty"},
		{name: "negative tax rate", key: "CHECKOUT_TAX_RATE", value: "-0.1"},
		{name: "bad currency", key: "CHECKOUT_CURRENCY", value: "EURO"},
		{name: "bad attempts", key: "CHECKOUT_ORDER_NUMBER_ATTEMPTS", value: "none"},
		{name: "zero attempts", key: "CHECKOUT_ORDER_NUMBER_ATTEMPTS", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}
