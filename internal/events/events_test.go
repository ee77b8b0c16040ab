package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/nikolayk812/checkout/internal/domain"
)

func TestEnvelopeWireShape(t *testing.T) {
	payload := OrderCreated{
		OrderID:     7,
		OrderNumber: "ORD-20240131154502-7F3A1B",
		UserID:      42,
		TotalAmount: "54.00",
		Currency:    "EUR",
	}

	envelope := newEnvelope(EventOrderCreated, payload)
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, "OrderCreated", envelope.EventName)
	assert.False(t, envelope.OccurredAt.IsZero())

	body, err := json.Marshal(envelope)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	for _, key := range []string{"eventId", "eventName", "occurredAt", "payload"} {
		assert.Contains(t, decoded, key)
	}

	inner, ok := decoded["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ORD-20240131154502-7F3A1B", inner["orderNumber"])
	assert.Equal(t, "54.00", inner["totalAmount"])
}

// Close is part of the Publisher contract so callers can release the
// broker channel through the interface they hold.
func TestPublisherClose(t *testing.T) {
	var p Publisher = NopPublisher{}
	require.NoError(t, p.Close())
}

func TestOrderLines(t *testing.T) {
	productID := uuid.New()

	items := []domain.OrderItem{
		{
			ProductID: productID,
			Quantity:  2,
			UnitPrice: domain.Money{Amount: decimal.RequireFromString("19.9"), Currency: currency.EUR},
		},
	}

	lines := orderLines(items)
	require.Len(t, lines, 1)
	assert.Equal(t, productID.String(), lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	// amounts render with fixed cents on the wire
	assert.Equal(t, "19.90", lines[0].UnitPrice)
}
