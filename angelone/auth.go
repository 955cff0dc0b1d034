package angelone

import (
	"context"
	"net/http"
	"strings"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/internal/jsonx"
)

// authenticator implements the SmartAPI password + TOTP login, token
// refresh and logout
type authenticator struct {
	c *Client
}

func (a *authenticator) Login(ctx context.Context, req auth.LoginRequest) (auth.Credential, error) {
	payload := map[string]any{
		"clientcode": req.ClientID,
		"password":   req.Password,
		"totp":       req.TOTP,
	}
	data, err := a.post(ctx, routeLogin, "Login", payload, nil)
	if err != nil {
		return auth.Credential{}, err
	}
	return credential(req.ClientID, data, ""), nil
}

func (a *authenticator) Refresh(ctx context.Context, cred auth.Credential) (auth.Credential, error) {
	data, err := a.post(ctx, routeRefresh, "RefreshToken", map[string]any{"refreshToken": cred.RefreshToken}, &cred)
	if err != nil {
		return auth.Credential{}, err
	}
	return credential(cred.ClientID, data, cred.RefreshToken), nil
}

func (a *authenticator) Logout(ctx context.Context, cred auth.Credential) error {
	_, err := a.post(ctx, routeLogout, "Logout", map[string]any{"clientcode": cred.ClientID}, &cred)
	return err
}

func (a *authenticator) post(ctx context.Context, route, endpoint string, payload map[string]any, cred *auth.Credential) (jsonx.Object, error) {
	req, err := a.c.request(http.MethodPost, route, endpoint, payload, cred, false)
	if err != nil {
		return nil, err
	}
	resp, err := a.c.doer.Do(ctx, req)
	if err != nil {
		return nil, broker.AsErrorResponse(err)
	}

	obj, er := envelope(resp.StatusCode, resp.Body)
	if er != nil {
		return nil, er
	}
	if route == routeLogout {
		return obj, nil
	}
	data, er := dataObject(obj, resp.Body)
	if er != nil {
		return nil, er
	}
	if data.String("jwtToken") == "" {
		return nil, broker.ParseFailure(BrokerName, resp.Body)
	}
	return data, nil
}

func credential(clientID string, data jsonx.Object, prevRefresh string) auth.Credential {
	refresh := data.String("refreshToken")
	if refresh == "" {
		refresh = prevRefresh
	}
	return auth.Credential{
		ClientID:     clientID,
		AccessToken:  strings.TrimPrefix(data.String("jwtToken"), "Bearer "),
		RefreshToken: refresh,
		FeedToken:    data.String("feedToken"),
	}
}
