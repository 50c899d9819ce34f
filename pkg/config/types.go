package config

type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

type Config struct {
	// Environment decides which aggregator hosts are used and which stored credentials are
	// visible. Credentials are never shared across environments.
	Environment Environment `json:"environment"`
	Server      ServerConfig
	Auth        AuthConfig
	Fetch       FetchConfig
	Plaid       PlaidConfig
	Teller      TellerConfig
	Monitor     MonitorConfig
	SQL         struct {
		// Driver is postgres or sqlite. sqlite is meant for local development.
		Driver     string `json:"driver"`
		Database   string `json:"database"`
		SqlitePath string `json:"sqlitePath"`
	}
}

type ServerConfig struct {
	Addr                string `json:"addr"`
	ReadTimeoutSeconds  int    `json:"readTimeoutSeconds"`
	WriteTimeoutSeconds int    `json:"writeTimeoutSeconds"`
}

type AuthConfig struct {
	// UserHeader is set by the auth proxy in front of the service
	UserHeader string `json:"userHeader"`
}

type FetchConfig struct {
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds"`
	MaxConcurrent         int `json:"maxConcurrent"`
}

type PlaidConfig struct {
	Enabled      bool     `json:"enabled"`
	ClientName   string   `json:"clientName"`
	CountryCodes []string `json:"countryCodes"`
	Language     string   `json:"language"`
	RedirectURI  string   `json:"redirectUri"`
	// BaseURL overrides the environment derived host
	BaseURL string `json:"baseUrl"`
}

type TellerConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"baseUrl"`
}

type MonitorConfig struct {
	Schedule          string `json:"schedule"`
	InfluxDatabase    string `json:"influxDatabase"`
	InfluxMeasurement string `json:"influxMeasurement"`
}

type Secrets struct {
	Plaid  PlaidSecrets
	Teller TellerSecrets
	SQL    SqlSecrets
	Influx InfluxSecrets

	// Alternative to the SQL struct, used as is when set
	DatabaseURL string `json:"databaseUrl" env:"DATABASE_URL"`
}

type PlaidSecrets struct {
	ClientID string `json:"clientId" env:"PLAID_CLIENT_ID"`
	Secret   string `json:"secret" env:"PLAID_SECRET"`
}

type TellerSecrets struct {
	// PEM encoded, literal "\n" sequences are accepted in place of newlines
	Certificate string `json:"certificate" env:"TELLER_CERT"`
	PrivateKey  string `json:"privateKey" env:"TELLER_KEY"`
}

type SqlSecrets struct {
	SqlHost     string `json:"sqlHost" env:"SQL_HOST"`
	SqlUsername string `json:"sqlUsername" env:"SQL_USERNAME"`
	SqlPassword string `json:"sqlPassword" env:"SQL_PASSWORD"`
}

type InfluxSecrets struct {
	InfluxEndpoint string `json:"influxEndpoint" env:"INFLUX_ENDPOINT"`
	InfluxUsername string `json:"influxUsername" env:"INFLUX_USERNAME"`
	InfluxPassword string `json:"influxPassword" env:"INFLUX_PASSWORD"`
}
