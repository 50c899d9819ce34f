package plaid

import (
	"context"
	"log/slog"

	"github.com/plaid/plaid-go/v29/plaid"

	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/providers"
)

// ListAccounts returns the accounts of the item. The institution name is looked up on a best
// effort basis: when that call fails the accounts are returned without it.
func (c *Client) ListAccounts(ctx context.Context, cred credentials.Credential) ([]providers.Account, error) {
	rs, httpResp, err := c.api.AccountsGet(ctx).AccountsGetRequest(*plaid.NewAccountsGetRequest(cred.AccessToken)).Execute()
	if err != nil {
		return nil, upstreamError(cred.ID, "/accounts/get", httpResp, err)
	}

	item := rs.GetItem()
	institutionID := item.GetInstitutionId()
	if institutionID == "" {
		institutionID = cred.InstitutionID
	}

	institutionName := ""
	if institutionID != "" {
		institutionName, err = c.institutionName(ctx, cred.ID, institutionID)
		if err != nil {
			slog.Warn("failed to look up institution", "credential_id", cred.ID, "institution_id", institutionID, "error", err)
		}
	}

	plaidAccounts := rs.GetAccounts()
	accounts := make([]providers.Account, 0, len(plaidAccounts))
	for _, a := range plaidAccounts {
		accounts = append(accounts, providers.Account{
			ID:              a.GetAccountId(),
			Name:            a.GetName(),
			Type:            string(a.GetType()),
			Subtype:         string(a.GetSubtype()),
			InstitutionID:   institutionID,
			InstitutionName: institutionName,
		})
	}

	return accounts, nil
}

func (c *Client) institutionName(ctx context.Context, credentialID, institutionID string) (string, error) {
	req := plaid.NewInstitutionsGetByIdRequest(institutionID, c.countryCodes())
	rs, httpResp, err := c.api.InstitutionsGetById(ctx).InstitutionsGetByIdRequest(*req).Execute()
	if err != nil {
		return "", upstreamError(credentialID, "/institutions/get_by_id", httpResp, err)
	}

	institution := rs.GetInstitution()
	return institution.GetName(), nil
}
