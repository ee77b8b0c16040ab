package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const (
	defaultTaxRate             = "0.20"
	defaultCurrency            = "EUR"
	defaultOrderNumberAttempts = 3
)

type Config struct {
	DatabaseURL string

	// TaxRate is the VAT fraction applied on top of subtotals, e.g. 0.20.
	TaxRate  decimal.Decimal
	Currency currency.Unit

	// OrderNumberAttempts caps regeneration on order number collisions.
	OrderNumberAttempts int
}

func Load() (Config, error) {
	var cfg Config

	taxRate, err := decimal.NewFromString(getEnv("CHECKOUT_TAX_RATE", defaultTaxRate))
	if err != nil {
		return cfg, fmt.Errorf("decimal.NewFromString: %w", err)
	}

	if taxRate.IsNegative() {
		return cfg, fmt.Errorf("tax rate[%s] is negative", taxRate)
	}

	cur, err := currency.ParseISO(getEnv("CHECKOUT_CURRENCY", defaultCurrency))
	if err != nil {
		return cfg, fmt.Errorf("currency.ParseISO: %w", err)
	}

	attempts, err := strconv.Atoi(getEnv("CHECKOUT_ORDER_NUMBER_ATTEMPTS", strconv.Itoa(defaultOrderNumberAttempts)))
	if err != nil {
		return cfg, fmt.Errorf("strconv.Atoi: %w", err)
	}

	if attempts < 1 {
		return cfg, fmt.Errorf("order number attempts[%d] must be at least 1", attempts)
	}

	return Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		TaxRate:             taxRate,
		Currency:            cur,
		OrderNumberAttempts: attempts,
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
