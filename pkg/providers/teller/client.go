package teller

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bcaldwell/moneymanager/pkg/config"
	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/providers"
)

const (
	DefaultBaseURL = "https://api.teller.io"
	APIVersion     = "2020-10-12"
)

// Client talks to the Teller API. It implements providers.Adapter and providers.Linker.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient uses httpClient as is, it must already carry the client certificate
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// NewClientFromConfig builds the mutual TLS http client from the configured certificate
func NewClientFromConfig(cfg *config.Config, secrets *config.Secrets) (*Client, error) {
	httpClient, err := NewHTTPClient(secrets.Teller.Certificate, secrets.Teller.PrivateKey, cfg.FetchTimeout())
	if err != nil {
		return nil, err
	}

	return NewClient(cfg.Teller.BaseURL, httpClient), nil
}

// NewHTTPClient returns an http client presenting the PEM encoded certificate. Escaped "\n"
// sequences are turned back into newlines so the PEMs can live in single line env vars.
func NewHTTPClient(certPEM, keyPEM string, timeout time.Duration) (*http.Client, error) {
	cert, err := tls.X509KeyPair([]byte(unescapePEM(certPEM)), []byte(unescapePEM(keyPEM)))
	if err != nil {
		return nil, fmt.Errorf("failed to load teller certificate: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func unescapePEM(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

func (c *Client) Provider() credentials.Provider {
	return credentials.Teller
}

// AccountScoped reports that transactions can only be listed one account at a time
func (c *Client) AccountScoped() bool {
	return true
}

// {"error":{"code":"enrollment.disconnected","message":"..."}}
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// get calls path with the access token as basic auth user and decodes the answer into out.
// Every failure is returned as a *providers.UpstreamError.
func (c *Client) get(ctx context.Context, credentialID, accessToken, op, path string, query url.Values, out interface{}) error {
	upstreamErr := func(statusCode int, err error) *providers.UpstreamError {
		return &providers.UpstreamError{
			Provider:     credentials.Teller,
			CredentialID: credentialID,
			Op:           op,
			StatusCode:   statusCode,
			Err:          err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return upstreamErr(0, err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.SetBasicAuth(accessToken, "")
	req.Header.Set("Teller-Version", APIVersion)
	req.Header.Set("Accept", "application/json")

	rs, err := c.http.Do(req)
	if err != nil {
		return upstreamErr(0, err)
	}
	defer rs.Body.Close()

	bodyBytes, err := io.ReadAll(rs.Body)
	if err != nil {
		return upstreamErr(rs.StatusCode, fmt.Errorf("reading response: %w", err))
	}

	if rs.StatusCode < 200 || rs.StatusCode > 299 {
		e := upstreamErr(rs.StatusCode, nil)
		var errPayload errorResponse
		if json.Unmarshal(bodyBytes, &errPayload) == nil && errPayload.Error.Code != "" {
			e.Code = errPayload.Error.Code
			e.Message = errPayload.Error.Message
		}
		return e
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return upstreamErr(rs.StatusCode, fmt.Errorf("decoding response: %w", err))
	}

	return nil
}
