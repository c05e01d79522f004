package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BusinessConfig holds operator-tunable rules that may change without a restart.
type BusinessConfig struct {
	Company   CompanyConfig   `mapstructure:"company"`
	Numbering NumberingConfig `mapstructure:"numbering"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Voucher   VoucherConfig   `mapstructure:"voucher"`
	Visa      VisaConfig      `mapstructure:"visa"`
}

// CompanyConfig is printed on rendered documents.
type CompanyConfig struct {
	Name string `mapstructure:"name"`
}

type NumberingConfig struct {
	OrderPrefix   string `mapstructure:"orderPrefix"`
	InvoicePrefix string `mapstructure:"invoicePrefix"`
}

type PaymentConfig struct {
	Methods []string `mapstructure:"methods"`
}

type VoucherConfig struct {
	MaxBytes          int64    `mapstructure:"maxBytes"`
	AllowedExtensions []string `mapstructure:"allowedExtensions"`
}

type VisaConfig struct {
	ExpiringSoonDays int `mapstructure:"expiringSoonDays"`
}

func DefaultBusinessConfig() BusinessConfig {
	return BusinessConfig{
		Company: CompanyConfig{
			Name: "Visadesk",
		},
		Numbering: NumberingConfig{
			OrderPrefix:   "ORD",
			InvoicePrefix: "INV",
		},
		Payment: PaymentConfig{
			Methods: []string{"bank_transfer", "cash", "other"},
		},
		Voucher: VoucherConfig{
			MaxBytes:          5 << 20,
			AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".pdf"},
		},
		Visa: VisaConfig{
			ExpiringSoonDays: 30,
		},
	}
}

// AllowsPaymentMethod reports whether method is one of the configured payment methods.
func (c BusinessConfig) AllowsPaymentMethod(method string) bool {
	method = strings.TrimSpace(method)
	for _, m := range c.Payment.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// AllowsVoucherExtension reports whether ext (with leading dot) may be uploaded.
func (c BusinessConfig) AllowsVoucherExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	for _, allowed := range c.Voucher.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

type BusinessConfigHolder struct {
	current atomic.Value // holds BusinessConfig
}

// NewStaticBusinessConfigHolder returns a holder that never reloads.
func NewStaticBusinessConfigHolder(cfg BusinessConfig) *BusinessConfigHolder {
	holder := &BusinessConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewBusinessConfigHolder reads visadesk.yml and keeps it in sync with the file on disk.
func NewBusinessConfigHolder(appCfg Config, log *zap.Logger) (*BusinessConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("business.config")

	v := viper.New()
	if appCfg.BusinessConfigFile != "" {
		v.SetConfigFile(appCfg.BusinessConfigFile)
	} else {
		v.SetConfigName("visadesk")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/visadesk")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("VISADESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBusinessConfig()
	v.SetDefault("business.company.name", defaults.Company.Name)
	v.SetDefault("business.numbering.orderPrefix", defaults.Numbering.OrderPrefix)
	v.SetDefault("business.numbering.invoicePrefix", defaults.Numbering.InvoicePrefix)
	v.SetDefault("business.payment.methods", defaults.Payment.Methods)
	v.SetDefault("business.voucher.maxBytes", defaults.Voucher.MaxBytes)
	v.SetDefault("business.voucher.allowedExtensions", defaults.Voucher.AllowedExtensions)
	v.SetDefault("business.visa.expiringSoonDays", defaults.Visa.ExpiringSoonDays)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeBusinessConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticBusinessConfigHolder(cfg)
	if !fileLoaded {
		log.Info("business config file not found, using defaults")
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBusinessConfig(v)
		if err != nil {
			log.Warn("business config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("business config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *BusinessConfigHolder) Get() BusinessConfig {
	if h == nil {
		return DefaultBusinessConfig()
	}
	return h.current.Load().(BusinessConfig)
}

func decodeBusinessConfig(v *viper.Viper) (BusinessConfig, error) {
	// UnmarshalKey skips defaults for sections missing from the file.
	var file struct {
		Business BusinessConfig `mapstructure:"business"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return BusinessConfig{}, err
	}
	cfg := file.Business
	cfg.Company.Name = strings.TrimSpace(cfg.Company.Name)
	cfg.Numbering.OrderPrefix = strings.TrimSpace(cfg.Numbering.OrderPrefix)
	cfg.Numbering.InvoicePrefix = strings.TrimSpace(cfg.Numbering.InvoicePrefix)
	if err := validateBusinessConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateBusinessConfig(cfg BusinessConfig) error {
	if cfg.Numbering.OrderPrefix == "" || cfg.Numbering.InvoicePrefix == "" {
		return errors.New("business.numbering prefixes cannot be empty")
	}
	if len(cfg.Payment.Methods) == 0 {
		return errors.New("business.payment.methods cannot be empty")
	}
	if cfg.Voucher.MaxBytes <= 0 {
		return errors.New("business.voucher.maxBytes must be positive")
	}
	if cfg.Visa.ExpiringSoonDays < 0 {
		return errors.New("business.visa.expiringSoonDays cannot be negative")
	}
	return nil
}
