// Package config loads and validates the environment-driven daemon
// configuration. Each subsection carries its own Validate method, so a bad
// value fails at startup rather than at first use.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProxyConfig covers the session-recovery reverse proxy (cmd/proxy).
type ProxyConfig struct {
	BindHost string `mapstructure:"bind_host"`
	BindPort int    `mapstructure:"bind_port"`

	BackendURL string `mapstructure:"backend_url"`

	// ResourceURL and AuthServerURL populate the OAuth protected-resource
	// metadata document and WWW-Authenticate header; both optional.
	ResourceURL   string `mapstructure:"resource_url"`
	AuthServerURL string `mapstructure:"auth_server_url"`

	Version string `mapstructure:"version"`
}

func (c ProxyConfig) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("config: proxy.backend_url is required")
	}
	if c.BindPort <= 0 || c.BindPort > 65535 {
		return fmt.Errorf("config: proxy.bind_port %d out of range", c.BindPort)
	}
	return nil
}

func (c ProxyConfig) Addr() string { return fmt.Sprintf("%s:%d", c.BindHost, c.BindPort) }

// IdentityConfig covers the catalog/identity-provider account used to
// validate PATs and OAuth tokens, plus the document-catalog database
// identifier.
type IdentityConfig struct {
	CatalogURL      string `mapstructure:"catalog_url"`
	CatalogAPIToken string `mapstructure:"catalog_api_token"`
	ProviderAccount string `mapstructure:"provider_account"`
	DatabaseID      string `mapstructure:"database_id"`

	// OAuth client credentials used by the token broker's refresh flow
	// (internal/tokenbroker.Broker.refresh); the identity provider account
	// above identifies which catalog-held connections these credentials
	// apply to.
	OAuthClientID     string `mapstructure:"oauth_client_id"`
	OAuthClientSecret string `mapstructure:"oauth_client_secret"`
	OAuthTokenURL     string `mapstructure:"oauth_token_url"`
}

func (c IdentityConfig) Validate() error {
	if c.CatalogURL == "" {
		return fmt.Errorf("config: identity.catalog_url is required")
	}
	if c.CatalogAPIToken == "" {
		return fmt.Errorf("config: identity.catalog_api_token is required")
	}
	return nil
}

// TokenCacheConfig covers the token broker's positive/negative TTLs
// (invariant I5's SafetyMargin is a code constant, not configurable).
type TokenCacheConfig struct {
	PositiveTTL time.Duration `mapstructure:"positive_ttl"`
	NegativeTTL time.Duration `mapstructure:"negative_ttl"`
}

func (c TokenCacheConfig) Validate() error {
	if c.PositiveTTL <= 0 || c.NegativeTTL <= 0 {
		return fmt.Errorf("config: token_cache ttls must be positive")
	}
	return nil
}

// StorageConfig covers the engine's object-store backend selection and the
// watch subsystem's default poll interval.
type StorageConfig struct {
	BindHost string `mapstructure:"bind_host"`
	BindPort int    `mapstructure:"bind_port"`

	// Backend selects the object store: "fs", "s3", "gcs", "azureblob", or
	// "memstore" (tests only). Concrete per-backend settings are read
	// directly from their native env vars (AWS_*, GOOGLE_APPLICATION_
	// CREDENTIALS, AZURE_STORAGE_*) by each SDK.
	Backend  string `mapstructure:"backend"`
	FSRoot   string `mapstructure:"fs_root"`
	S3Bucket string `mapstructure:"s3_bucket"`
	S3Region string `mapstructure:"s3_region"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	AzureContainer string `mapstructure:"azure_container"`

	DocSuffix  string `mapstructure:"doc_suffix"`
	CkptSuffix string `mapstructure:"ckpt_suffix"`

	WatchPollIntervalSecs uint32 `mapstructure:"watch_poll_interval_secs"`

	Version string `mapstructure:"version"`
}

func (c StorageConfig) Validate() error {
	switch c.Backend {
	case "fs":
		if c.FSRoot == "" {
			return fmt.Errorf("config: storage.fs_root is required for the fs backend")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("config: storage.s3_bucket is required for the s3 backend")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("config: storage.gcs_bucket is required for the gcs backend")
		}
	case "azureblob":
		if c.AzureContainer == "" {
			return fmt.Errorf("config: storage.azure_container is required for the azureblob backend")
		}
	case "memstore":
	default:
		return fmt.Errorf("config: storage.backend %q is not one of fs|s3|gcs|azureblob|memstore", c.Backend)
	}
	if c.BindPort <= 0 || c.BindPort > 65535 {
		return fmt.Errorf("config: storage.bind_port %d out of range", c.BindPort)
	}
	if c.WatchPollIntervalSecs == 0 {
		return fmt.Errorf("config: storage.watch_poll_interval_secs must be positive")
	}
	return nil
}

func (c StorageConfig) Addr() string { return fmt.Sprintf("%s:%d", c.BindHost, c.BindPort) }

// Config is the union of both daemons' settings; cmd/storaged and
// cmd/proxy each read only the sub-struct they need, but both share one
// loader so a combined single-process deployment (storaged embedding the
// proxy, or vice versa) reads one consistent environment.
type Config struct {
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	TokenCache TokenCacheConfig `mapstructure:"token_cache"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

// Load reads configuration from environment variables (prefixed DOCX_,
// nested fields joined by underscore, e.g. DOCX_PROXY_BACKEND_URL) with an
// optional YAML file overlay, mirroring cmn/config.go's JSON-file-plus-
// env-override loading.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("docx")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("proxy.bind_host", "0.0.0.0")
	v.SetDefault("proxy.bind_port", 8080)
	v.SetDefault("proxy.version", "dev")
	v.SetDefault("token_cache.positive_ttl", 5*time.Minute)
	v.SetDefault("token_cache.negative_ttl", 30*time.Second)
	v.SetDefault("storage.bind_host", "0.0.0.0")
	v.SetDefault("storage.bind_port", 9090)
	v.SetDefault("storage.backend", "fs")
	v.SetDefault("storage.doc_suffix", "docx")
	v.SetDefault("storage.ckpt_suffix", "docx")
	v.SetDefault("storage.watch_poll_interval_secs", uint32(30))
	v.SetDefault("storage.version", "dev")
}

// bindEnv wires each leaf key to its flattened DOCX_ env var explicitly;
// viper's AutomaticEnv alone doesn't reach nested keys that have no
// corresponding entry in the config file or defaults map.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"proxy.bind_host", "proxy.bind_port", "proxy.backend_url",
		"proxy.resource_url", "proxy.auth_server_url", "proxy.version",
		"identity.catalog_url", "identity.catalog_api_token",
		"identity.provider_account", "identity.database_id",
		"identity.oauth_client_id", "identity.oauth_client_secret",
		"identity.oauth_token_url",
		"token_cache.positive_ttl", "token_cache.negative_ttl",
		"storage.bind_host", "storage.bind_port", "storage.backend",
		"storage.fs_root", "storage.s3_bucket", "storage.s3_region",
		"storage.gcs_bucket", "storage.azure_container",
		"storage.doc_suffix", "storage.ckpt_suffix",
		"storage.watch_poll_interval_secs", "storage.version",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
