package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcaldwell/moneymanager/pkg/credentials"
)

const DateFormat = "2006-01-02"

// ErrInvalidLinkRequest is wrapped by Linker implementations when the request misses a token
var ErrInvalidLinkRequest = errors.New("invalid link request")

// Adapter fetches accounts and transactions for one aggregator. Implementations are constructed
// with their own http client and are safe for concurrent use.
type Adapter interface {
	Provider() credentials.Provider
	ListAccounts(ctx context.Context, cred credentials.Credential) ([]Account, error)
	// ListTransactions returns the transactions of accountID inside r. An empty accountID means
	// every account of the credential, for aggregators that support it.
	ListTransactions(ctx context.Context, cred credentials.Credential, accountID string, r DateRange) ([]Transaction, error)
}

// Linker turns the result of an aggregator's client side link flow into a durable credential
type Linker interface {
	Link(ctx context.Context, req LinkRequest) (Link, error)
}

type LinkRequest struct {
	// PublicToken is the short lived token from Plaid Link
	PublicToken string
	// AccessToken and EnrollmentID come from Teller Connect
	AccessToken  string
	EnrollmentID string
}

type Link struct {
	AccessToken   string
	ItemID        string
	InstitutionID string
}

type Account struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Subtype         string `json:"subtype,omitempty"`
	InstitutionID   string `json:"institutionId,omitempty"`
	InstitutionName string `json:"institutionName,omitempty"`
}

// Transaction is a provider native record. Amount is always in the canonical sign: negative
// for money leaving the account, positive for money coming in.
type Transaction interface {
	ID() string
	// Date is the calendar day of the transaction, midnight UTC
	Date() time.Time
	// Datetime is the exact time when the aggregator knows it, zero otherwise
	Datetime() time.Time
	Amount() decimal.Decimal
	Description() string
	MerchantName() string
	// Category is ordered from coarse to fine
	Category() []string
	AccountID() string
	RunningBalance() decimal.NullDecimal
}

// DateRange covers whole calendar days, both ends included
type DateRange struct {
	Start time.Time
	End   time.Time
}

func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: Day(start), End: Day(end)}
}

func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(DateFormat), r.End.Format(DateFormat))
}

// Day truncates t to midnight UTC of its calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date as midnight UTC
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, s, time.UTC)
}

// UpstreamError is returned when an aggregator call fails, times out or answers with an error
// payload. CredentialID lets callers attribute the failure to one bank connection.
type UpstreamError struct {
	Provider     credentials.Provider
	CredentialID string
	Op           string
	StatusCode   int
	Code         string
	Message      string
	Err          error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	if e.CredentialID != "" {
		msg += fmt.Sprintf(" for credential %s", e.CredentialID)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Code != "" {
		msg += fmt.Sprintf(": %s", e.Code)
		if e.Message != "" {
			msg += fmt.Sprintf(" (%s)", e.Message)
		}
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
