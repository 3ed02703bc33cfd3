package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("LEDGER_MAX_ATTEMPTS", "6")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "whsec_test", cfg.Stripe.WebhookSecret)
	assert.Equal(t, 5*time.Minute, cfg.Stripe.WebhookTolerance)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "credit-ledger", cfg.Kafka.Topic)
	assert.Equal(t, 6, cfg.Ledger.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Ledger.BaseDelay)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.R2.Enabled())
}

func TestLoadPriceTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.yml")
	content := `prices:
  - price_id: price_small
    sku: 3-credit-bundle
    credits: 3
  - price_id: price_big
    credits: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	table, err := LoadPriceTable(path)
	require.NoError(t, err)

	small, ok := table.Lookup("price_small")
	require.True(t, ok)
	assert.Equal(t, "3-credit-bundle", small.SKU)
	assert.EqualValues(t, 3, small.Credits)

	big, ok := table.Lookup("price_big")
	require.True(t, ok)
	assert.Equal(t, "price_big", big.SKU, "sku falls back to the price id")

	_, ok = table.Lookup("unknown-sku")
	assert.False(t, ok)

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "price_small", entries[0].PriceID)
}

func TestNewPriceTableRejectsBadEntries(t *testing.T) {
	_, err := NewPriceTable(PriceEntry{PriceID: "price_zero", Credits: 0})
	assert.Error(t, err)

	_, err = NewPriceTable(PriceEntry{PriceID: "p", Credits: 1}, PriceEntry{PriceID: "p", Credits: 2})
	assert.Error(t, err)

	_, err = NewPriceTable(PriceEntry{SKU: "no-id", Credits: 2})
	assert.Error(t, err)
}

func TestLoadPriceTableShipsDefaultCatalog(t *testing.T) {
	table, err := LoadPriceTable(filepath.Join("..", "..", "config", "prices.yml"))
	require.NoError(t, err)
	assert.Len(t, table.Entries(), 3)
}
