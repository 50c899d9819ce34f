package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/Shopify/ejson"
	"github.com/caarlos0/env/v6"
	"github.com/ghodss/yaml"
)

const (
	ConfigEnvVar        = "MONEYMANAGER_CONFIG"
	EjsonSecretKeyEnv   = "MONEYMANAGER_EJSON_SECRET_KEY"
	defaultEjsonKeyDir  = "/opt/ejson/keys"
	defaultAddr         = ":8080"
	defaultUserHeader   = "X-Forwarded-User"
	defaultFetchTimeout = 30
	defaultConcurrency  = 8
)

// ReadConfig loads the yaml config (from ConfigEnvVar when set, configFile otherwise) and
// the secrets merged from the ejson secrets file and the environment.
func ReadConfig(configFile, secretsFile string) (*Config, *Secrets, error) {
	cfg, err := readConfig(ConfigEnvVar, configFile)
	if err != nil {
		return nil, nil, err
	}

	secrets, err := readSecrets(secretsFile)
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(secrets); err != nil {
		return nil, nil, err
	}

	return cfg, secrets, nil
}

func readConfig(envName, filename string) (*Config, error) {
	var raw []byte
	var err error

	rawEnv := os.Getenv(envName)
	if rawEnv != "" {
		slog.Info("reading config from environment variable", "env", envName)
		raw = []byte(rawEnv)
	} else {
		raw, err = os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", filename, err)
		}
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func readSecrets(filename string) (*Secrets, error) {
	ejsonSecrets, ejsonErr := readEjsonSecrets(filename)

	envSecrets, envErr := readEnvSecrets()

	switch {
	case ejsonErr == nil && envErr == nil:
		// values from the environment win over the ejson file
		if err := mergo.Merge(envSecrets, *ejsonSecrets); err != nil {
			return nil, fmt.Errorf("failed to merge secrets: %w", err)
		}
		return envSecrets, nil
	case ejsonErr != nil && envErr == nil:
		slog.Warn("failed to read ejson secrets, using environment only", "file", filename, "error", ejsonErr)
		return envSecrets, nil
	case ejsonErr == nil && envErr != nil:
		slog.Warn("failed to parse environment secrets, using ejson only", "error", envErr)
		return ejsonSecrets, nil
	default:
		return nil, fmt.Errorf("failed to parse secrets. ejson error: %v. env error: %v", ejsonErr, envErr)
	}
}

func readEjsonSecrets(filename string) (*Secrets, error) {
	ejsonSecrets := Secrets{}
	ejsonKeyFile := os.Getenv(EjsonSecretKeyEnv)
	ejsonKey := []byte{}
	var err error

	if ejsonKeyFile != "" {
		ejsonKey, err = os.ReadFile(ejsonKeyFile)
		if err != nil {
			return nil, err
		}
	}

	raw, err := ejson.DecryptFile(filename, defaultEjsonKeyDir, string(ejsonKey))
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(raw, &ejsonSecrets)
	return &ejsonSecrets, err
}

func readEnvSecrets() (*Secrets, error) {
	envSecrets := Secrets{}
	err := env.Parse(&envSecrets)
	return &envSecrets, err
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = Sandbox
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		// a month of transactions across several banks can take a while
		c.Server.WriteTimeoutSeconds = 2 * defaultFetchTimeout
	}
	if c.Auth.UserHeader == "" {
		c.Auth.UserHeader = defaultUserHeader
	}
	if c.Fetch.RequestTimeoutSeconds == 0 {
		c.Fetch.RequestTimeoutSeconds = defaultFetchTimeout
	}
	if c.Fetch.MaxConcurrent == 0 {
		c.Fetch.MaxConcurrent = defaultConcurrency
	}
	if c.Plaid.ClientName == "" {
		c.Plaid.ClientName = "Money Manager"
	}
	if len(c.Plaid.CountryCodes) == 0 {
		c.Plaid.CountryCodes = []string{"US"}
	}
	if c.Plaid.Language == "" {
		c.Plaid.Language = "en"
	}
	if c.SQL.Driver == "" {
		c.SQL.Driver = "postgres"
	}
	if c.SQL.Database == "" {
		c.SQL.Database = "moneymanager"
	}
	if c.Monitor.Schedule == "" {
		c.Monitor.Schedule = "@every 1h"
	}
	if c.Monitor.InfluxMeasurement == "" {
		c.Monitor.InfluxMeasurement = "link_health"
	}
}

// Validate checks the config against the secrets it needs
func (c *Config) Validate(secrets *Secrets) error {
	if c.Environment != Sandbox && c.Environment != Production {
		return fmt.Errorf("invalid environment %q: must be %s or %s", c.Environment, Sandbox, Production)
	}

	if c.Fetch.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("fetch.requestTimeoutSeconds must be at least 1, got %d", c.Fetch.RequestTimeoutSeconds)
	}

	if c.Fetch.MaxConcurrent < 1 {
		return fmt.Errorf("fetch.maxConcurrent must be at least 1, got %d", c.Fetch.MaxConcurrent)
	}

	if !c.Plaid.Enabled && !c.Teller.Enabled {
		return fmt.Errorf("at least one of plaid or teller must be enabled")
	}

	if c.Plaid.Enabled && (secrets.Plaid.ClientID == "" || secrets.Plaid.Secret == "") {
		return fmt.Errorf("plaid is enabled but PLAID_CLIENT_ID or PLAID_SECRET is missing")
	}

	if c.Teller.Enabled && (secrets.Teller.Certificate == "" || secrets.Teller.PrivateKey == "") {
		return fmt.Errorf("teller is enabled but TELLER_CERT or TELLER_KEY is missing")
	}

	switch c.SQL.Driver {
	case "postgres":
	case "sqlite":
		if c.SQL.SqlitePath == "" {
			return fmt.Errorf("sql.sqlitePath is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid sql driver %q: must be postgres or sqlite", c.SQL.Driver)
	}

	return nil
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.RequestTimeoutSeconds) * time.Second
}
