package plaid

import (
	"context"
	"fmt"

	"github.com/plaid/plaid-go/v29/plaid"

	"github.com/bcaldwell/moneymanager/pkg/providers"
)

// CreateLinkToken creates the token the browser needs to open Plaid Link for userID
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	language := c.opts.Language
	if language == "" {
		language = "en"
	}

	req := plaid.NewLinkTokenCreateRequest(c.opts.ClientName, language, c.countryCodes(), *plaid.NewLinkTokenCreateRequestUser(userID))
	req.SetProducts([]plaid.Products{plaid.Products("transactions")})
	if c.opts.RedirectURI != "" {
		req.SetRedirectUri(c.opts.RedirectURI)
	}

	rs, httpResp, err := c.api.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
	if err != nil {
		return "", upstreamError("", "/link/token/create", httpResp, err)
	}

	return rs.GetLinkToken(), nil
}

// Link exchanges a public token for an access token and looks up the item's institution
func (c *Client) Link(ctx context.Context, req providers.LinkRequest) (providers.Link, error) {
	if req.PublicToken == "" {
		return providers.Link{}, fmt.Errorf("%w: public_token is required", providers.ErrInvalidLinkRequest)
	}

	exchange, httpResp, err := c.api.ItemPublicTokenExchange(ctx).
		ItemPublicTokenExchangeRequest(*plaid.NewItemPublicTokenExchangeRequest(req.PublicToken)).
		Execute()
	if err != nil {
		return providers.Link{}, upstreamError("", "/item/public_token/exchange", httpResp, err)
	}

	itemRs, httpResp, err := c.api.ItemGet(ctx).ItemGetRequest(*plaid.NewItemGetRequest(exchange.GetAccessToken())).Execute()
	if err != nil {
		return providers.Link{}, upstreamError("", "/item/get", httpResp, err)
	}

	item := itemRs.GetItem()
	return providers.Link{
		AccessToken:   exchange.GetAccessToken(),
		ItemID:        exchange.GetItemId(),
		InstitutionID: item.GetInstitutionId(),
	}, nil
}
