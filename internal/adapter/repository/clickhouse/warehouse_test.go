package clickhouse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

func TestCreateTableSQL(t *testing.T) {
	w := &Warehouse{database: "analytics"}

	got := w.createTableSQL(domain.FactPaymentsSchema)
	assert.True(t, strings.HasPrefix(got, `CREATE TABLE IF NOT EXISTS "analytics"."fact_payments"`))
	assert.Contains(t, got, "payment_id Nullable(String)")
	assert.Contains(t, got, "payment_amount Decimal(38, 6)")
	assert.Contains(t, got, "payment_date Nullable(DateTime64(3, 'UTC'))")
	assert.Contains(t, got, "ENGINE = MergeTree ORDER BY event_id")

	daily := w.createTableSQL(domain.FactOrderDailySchema)
	assert.Contains(t, daily, "order_date Date")
	assert.Contains(t, daily, "ORDER BY order_date")
}

func TestOrderKey(t *testing.T) {
	all := domain.Schema{Columns: []domain.Column{{Name: "a", Nullable: true}}}
	assert.Equal(t, "tuple()", orderKey(all))
	assert.Equal(t, "date_key", orderKey(domain.DimDateSchema))
	assert.Equal(t, "customer_id", orderKey(domain.DimCustomerSchema))
	assert.Equal(t, "event_id", orderKey(domain.FactOrdersSchema))
}
