package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeBusinessFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "visadesk.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestBusinessConfigFromFile(t *testing.T) {
	path := writeBusinessFile(t, `
business:
  numbering:
    orderPrefix: SO
    invoicePrefix: BILL
  payment:
    methods: [bank_transfer, alipay]
  visa:
    expiringSoonDays: 14
`)

	holder, err := NewBusinessConfigHolder(Config{BusinessConfigFile: path}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, "SO", cfg.Numbering.OrderPrefix)
	assert.Equal(t, "BILL", cfg.Numbering.InvoicePrefix)
	assert.True(t, cfg.AllowsPaymentMethod("alipay"))
	assert.False(t, cfg.AllowsPaymentMethod("cash"))
	assert.Equal(t, 14, cfg.Visa.ExpiringSoonDays)
	assert.Equal(t, DefaultBusinessConfig().Voucher.MaxBytes, cfg.Voucher.MaxBytes)
}

func TestBusinessConfigPartialFileKeepsDefaults(t *testing.T) {
	path := writeBusinessFile(t, `
business:
  company:
    name: Acme Visas
`)

	holder, err := NewBusinessConfigHolder(Config{BusinessConfigFile: path}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	defaults := DefaultBusinessConfig()
	assert.Equal(t, "Acme Visas", cfg.Company.Name)
	assert.Equal(t, defaults.Numbering, cfg.Numbering)
	assert.Equal(t, defaults.Payment.Methods, cfg.Payment.Methods)
	assert.Equal(t, defaults.Voucher, cfg.Voucher)
	assert.Equal(t, defaults.Visa, cfg.Visa)
}

func TestBusinessConfigRejectsInvalidFile(t *testing.T) {
	path := writeBusinessFile(t, `
business:
  voucher:
    maxBytes: -1
`)

	_, err := NewBusinessConfigHolder(Config{BusinessConfigFile: path}, zap.NewNop())
	assert.Error(t, err)
}

func TestBusinessConfigMissingExplicitFile(t *testing.T) {
	_, err := NewBusinessConfigHolder(Config{BusinessConfigFile: filepath.Join(t.TempDir(), "absent.yml")}, zap.NewNop())
	assert.Error(t, err)
}

func TestBusinessConfigVoucherExtensions(t *testing.T) {
	cfg := DefaultBusinessConfig()
	assert.True(t, cfg.AllowsVoucherExtension(".PNG"))
	assert.False(t, cfg.AllowsVoucherExtension(".exe"))
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *BusinessConfigHolder
	assert.Equal(t, DefaultBusinessConfig(), holder.Get())
}
