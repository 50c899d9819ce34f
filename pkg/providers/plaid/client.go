package plaid

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/plaid/plaid-go/v29/plaid"

	"github.com/bcaldwell/moneymanager/pkg/config"
	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/providers"
)

const (
	SandboxURL    = string(plaid.Sandbox)
	ProductionURL = string(plaid.Production)

	// maximum page size accepted by transactions/get
	maxPageSize = 500
)

type Options struct {
	ClientID     string
	Secret       string
	BaseURL      string
	ClientName   string
	CountryCodes []string
	Language     string
	RedirectURI  string
	HTTPClient   *http.Client
}

// OptionsFromConfig builds client options for the configured environment. cfg.Plaid.BaseURL
// wins over the environment host when set.
func OptionsFromConfig(cfg *config.Config, secrets *config.Secrets, httpClient *http.Client) Options {
	baseURL := cfg.Plaid.BaseURL
	if baseURL == "" {
		baseURL = SandboxURL
		if cfg.Environment == config.Production {
			baseURL = ProductionURL
		}
	}

	return Options{
		ClientID:     secrets.Plaid.ClientID,
		Secret:       secrets.Plaid.Secret,
		BaseURL:      baseURL,
		ClientName:   cfg.Plaid.ClientName,
		CountryCodes: cfg.Plaid.CountryCodes,
		Language:     cfg.Plaid.Language,
		RedirectURI:  cfg.Plaid.RedirectURI,
		HTTPClient:   httpClient,
	}
}

// Client talks to the Plaid API. It implements providers.Adapter and providers.Linker.
type Client struct {
	opts Options
	api  *plaid.PlaidApiService
}

func NewClient(opts Options) *Client {
	if len(opts.CountryCodes) == 0 {
		opts.CountryCodes = []string{"US"}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = SandboxURL
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", opts.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", opts.Secret)
	configuration.UseEnvironment(plaid.Environment(opts.BaseURL))
	if opts.HTTPClient != nil {
		configuration.HTTPClient = opts.HTTPClient
	}

	return &Client{opts: opts, api: plaid.NewAPIClient(configuration).PlaidApi}
}

func (c *Client) Provider() credentials.Provider {
	return credentials.Plaid
}

func (c *Client) countryCodes() []plaid.CountryCode {
	codes := make([]plaid.CountryCode, 0, len(c.opts.CountryCodes))
	for _, code := range c.opts.CountryCodes {
		codes = append(codes, plaid.CountryCode(code))
	}
	return codes
}

// upstreamError wraps a failed SDK call. Plaid's {error_code, error_message} payload is kept
// when the response carried one.
func upstreamError(credentialID, op string, httpResp *http.Response, err error) error {
	e := &providers.UpstreamError{
		Provider:     credentials.Plaid,
		CredentialID: credentialID,
		Op:           op,
		Err:          err,
	}
	if httpResp != nil {
		e.StatusCode = httpResp.StatusCode
	}

	var apiErr interface{ Body() []byte }
	if errors.As(err, &apiErr) {
		var plaidErr plaid.PlaidError
		if json.Unmarshal(apiErr.Body(), &plaidErr) == nil && plaidErr.GetErrorCode() != "" {
			e.Code = plaidErr.GetErrorCode()
			e.Message = plaidErr.GetErrorMessage()
			// the SDK error only carries the http status line
			e.Err = nil
		}
	}

	return e
}
