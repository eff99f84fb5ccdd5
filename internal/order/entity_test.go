// AngelaMos | 2026
// entity_test.go

package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 8, 28, 23, 30, 0, 0, time.UTC)

	number, err := NewOrderNumber(now)
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-20260828-[0-9A-F]{8}$`, number)
}

func TestNewOrderNumberUsesUTCDate(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// 23:30 EST is already the next day in UTC.
	now := time.Date(2026, 8, 28, 23, 30, 0, 0, est)

	number, err := NewOrderNumber(now)
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-20260829-`, number)
}

func TestNewOrderNumberIsRandomized(t *testing.T) {
	now := time.Now()

	a, err := NewOrderNumber(now)
	require.NoError(t, err)
	b, err := NewOrderNumber(now)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestOrderItemSubtotal(t *testing.T) {
	item := OrderItem{Quantity: 3, UnitPriceCents: 1999}
	assert.Equal(t, int64(5997), item.SubtotalCents())
}

func TestOrderStatusPredicates(t *testing.T) {
	pending := Order{Status: StatusPending}
	assert.True(t, pending.IsPending())
	assert.False(t, pending.IsCompleted())

	completed := Order{Status: StatusCompleted}
	assert.False(t, completed.IsPending())
	assert.True(t, completed.IsCompleted())
}

func TestListOrdersParamsNormalize(t *testing.T) {
	tests := []struct {
		name     string
		params   ListOrdersParams
		wantPage int
		wantSize int
	}{
		{"defaults", ListOrdersParams{}, 1, 20},
		{"negative page", ListOrdersParams{Page: -3, PageSize: 10}, 1, 10},
		{"oversized page size", ListOrdersParams{Page: 2, PageSize: 500}, 2, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.Normalize()
			assert.Equal(t, tt.wantPage, tt.params.Page)
			assert.Equal(t, tt.wantSize, tt.params.PageSize)
		})
	}
}
