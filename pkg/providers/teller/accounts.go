package teller

import (
	"context"
	"fmt"

	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/providers"
)

type account struct {
	ID           string `json:"id"`
	EnrollmentID string `json:"enrollment_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Subtype      string `json:"subtype"`
	Institution  struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"institution"`
}

func (c *Client) accounts(ctx context.Context, credentialID, accessToken string) ([]account, error) {
	accounts := []account{}
	if err := c.get(ctx, credentialID, accessToken, "accounts", "/accounts", nil, &accounts); err != nil {
		return nil, err
	}

	return accounts, nil
}

func (c *Client) ListAccounts(ctx context.Context, cred credentials.Credential) ([]providers.Account, error) {
	raw, err := c.accounts(ctx, cred.ID, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	accounts := make([]providers.Account, 0, len(raw))
	for _, a := range raw {
		accounts = append(accounts, providers.Account{
			ID:              a.ID,
			Name:            a.Name,
			Type:            a.Type,
			Subtype:         a.Subtype,
			InstitutionID:   a.Institution.ID,
			InstitutionName: a.Institution.Name,
		})
	}

	return accounts, nil
}

// Link verifies the access token handed over by Teller Connect by listing its accounts, which
// also tells us the institution of the enrollment.
func (c *Client) Link(ctx context.Context, req providers.LinkRequest) (providers.Link, error) {
	if req.AccessToken == "" {
		return providers.Link{}, fmt.Errorf("%w: access_token is required", providers.ErrInvalidLinkRequest)
	}

	accounts, err := c.accounts(ctx, "", req.AccessToken)
	if err != nil {
		return providers.Link{}, err
	}

	link := providers.Link{
		AccessToken: req.AccessToken,
		ItemID:      req.EnrollmentID,
	}
	if len(accounts) > 0 {
		link.InstitutionID = accounts[0].Institution.ID
		if link.ItemID == "" {
			link.ItemID = accounts[0].EnrollmentID
		}
	}

	if link.ItemID == "" {
		return providers.Link{}, fmt.Errorf("%w: enrollment_id is required", providers.ErrInvalidLinkRequest)
	}

	return link, nil
}
