package dhan

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/internal/adapter"
	"github.com/samarthkathal/broker-go/internal/jsonx"
	"github.com/samarthkathal/broker-go/transport"
)

// TokenIDKey is the LoginRequest.Extra key carrying the tokenId Dhan
// redirects back with after consent login
const TokenIDKey = "tokenId"

// authenticator implements the partner consent flow. Dhan has no refresh
// token; an expired session needs a new consent.
type authenticator struct {
	c *Client
}

func (a *authenticator) Login(ctx context.Context, req auth.LoginRequest) (auth.Credential, error) {
	tokenID := req.Extra[TokenIDKey]
	if tokenID == "" {
		tokenID = req.OTP
	}
	if tokenID == "" {
		return auth.Credential{}, broker.NewErrorResponse(broker.ErrNotAuthenticated, "",
			"dhan login needs the consent tokenId", nil)
	}
	return a.c.ConsumeConsent(ctx, tokenID)
}

func (c *Client) authGet(ctx context.Context, route, endpoint string, query url.Values) (jsonx.Object, error) {
	if c.partnerID == "" || c.partnerSecret == "" {
		return nil, broker.NewErrorResponse(broker.ErrNotAuthenticated, "", "dhan partner credentials are not configured", nil)
	}

	u := c.authURL + route
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	h := http.Header{}
	h.Set("partner_id", c.partnerID)
	h.Set("partner_secret", c.partnerSecret)
	h.Set("Accept", "application/json")

	resp, err := c.doer.Do(ctx, &transport.Request{
		Method:   http.MethodGet,
		URL:      u,
		Header:   h,
		Broker:   BrokerName,
		Endpoint: endpoint,
	})
	if err != nil {
		return nil, broker.AsErrorResponse(err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, broker.NewErrorResponse(broker.ErrNotAuthenticated, "",
			"Unauthorized access - Authentication failed.", broker.RawData(resp.Body))
	}

	obj, er := adapter.Decode(BrokerName, resp.StatusCode, resp.Body)
	if er != nil {
		return nil, er
	}
	if !obj.IsNull("errorCode") || resp.StatusCode >= http.StatusBadRequest {
		return nil, broker.UpstreamFailure(obj.String("errorCode"),
			obj.First("errorMessage", "message"), broker.RawData(resp.Body))
	}
	return obj, nil
}

// GenerateConsent starts the partner login and returns the consentId to
// send the user to ConsentLoginURL with
func (c *Client) GenerateConsent(ctx context.Context) (string, error) {
	obj, err := c.authGet(ctx, routeGenerateConsent, "GenerateConsent", nil)
	if err != nil {
		return "", err
	}
	id := obj.String("consentId")
	if id == "" {
		return "", broker.UpstreamFailure("", "dhan did not return a consentId", nil)
	}
	return id, nil
}

// ConsentLoginURL is where the user logs in to approve consentID
func (c *Client) ConsentLoginURL(consentID string) string {
	return c.authURL + routeConsentLogin + "?consentId=" + url.QueryEscape(consentID)
}

// ConsumeConsent exchanges the tokenId from the login redirect for an
// access token. It does not touch the session; use Login for that.
func (c *Client) ConsumeConsent(ctx context.Context, tokenID string) (auth.Credential, error) {
	obj, err := c.authGet(ctx, routeConsumeConsent, "ConsumeConsent", url.Values{TokenIDKey: {tokenID}})
	if err != nil {
		return auth.Credential{}, err
	}

	token, clientID := obj.String("accessToken"), obj.String("dhanClientId")
	if token == "" || clientID == "" {
		return auth.Credential{}, broker.NewErrorResponse(broker.ErrNotAuthenticated, "",
			fmt.Sprintf("dhan consent %s returned no access token", tokenID), nil)
	}
	return auth.Credential{ClientID: clientID, AccessToken: token}, nil
}
