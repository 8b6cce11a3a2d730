package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TUBEGUARD_"

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// SafeURL is where every corrective action sends the tab.
	SafeURL string `koanf:"safe_url" validate:"required,abs_url"`

	// StartURL is the first page the managed browser opens.
	StartURL string `koanf:"start_url" validate:"required,abs_url"`

	// BlocklistDir holds the yaml/json/toml table files.
	BlocklistDir string `koanf:"blocklist_dir" validate:"required"`

	// BlocklistDB is the bbolt snapshot of the compiled tables.
	BlocklistDB string `koanf:"blocklist_db" validate:"required"`

	// CacheSize bounds the URL decision cache; 0 disables it.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`

	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`

	NavPoll       time.Duration `koanf:"nav_poll" validate:"gt=0"`
	NativePoll    time.Duration `koanf:"native_poll" validate:"gt=0"`
	NativeTimeout time.Duration `koanf:"native_timeout" validate:"gt=0"`

	Headless   bool   `koanf:"headless"`
	ProfileDir string `koanf:"profile_dir"`

	// MetricsAddr is the Prometheus listen address; empty disables it.
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,listen_addr"`
}

// DEFAULT_APP_CONFIG defines the default application configuration.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:           "prod",
	LogLevel:      "info",
	SafeURL:       "https://www.youtube.com/",
	StartURL:      "https://www.youtube.com/",
	BlocklistDir:  "/etc/tubeguard/blocklist.d/",
	BlocklistDB:   "/var/lib/tubeguard/blocklist.db",
	CacheSize:     1024,
	BloomFPRate:   0.01,
	NavPoll:       time.Second,
	NativePoll:    10 * time.Millisecond,
	NativeTimeout: 1500 * time.Millisecond,
	Headless:      false,
	ProfileDir:    "",
	MetricsAddr:   "",
}

// validAbsURL accepts absolute http(s) URLs with a host.
func validAbsURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// validListenAddr accepts host:port where host may be empty.
func validListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envLoader loads environment variables with the prefix "TUBEGUARD_",
// lowercasing keys and trimming values. It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "abs_url" and "listen_addr" rules.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("abs_url", validAbsURL); err != nil {
		return err
	}
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
