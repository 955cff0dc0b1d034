package oswal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	broker "github.com/samarthkathal/broker-go"
	"github.com/samarthkathal/broker-go/auth"
	"github.com/samarthkathal/broker-go/internal/jsonx"
)

// TwoFAKey is the LoginRequest.Extra key for the second factor (date of
// birth or PAN) sent with every login
const TwoFAKey = "2FA"

// authenticator implements authdirectapi login with the optional OTP
// verification step, and logout. There is no refresh; the AuthToken lasts
// the trading day.
type authenticator struct {
	c *Client
}

// HashPassword is the sha256 hex of password followed by the API key
func HashPassword(password, apiKey string) string {
	sum := sha256.Sum256([]byte(password + apiKey))
	return hex.EncodeToString(sum[:])
}

func (a *authenticator) Login(ctx context.Context, req auth.LoginRequest) (auth.Credential, error) {
	payload := map[string]any{
		"userid":   req.ClientID,
		"password": HashPassword(req.Password, a.c.apiKey),
		"2FA":      req.Extra[TwoFAKey],
	}
	if req.TOTP != "" {
		payload["totp"] = req.TOTP
	}

	cred := auth.Credential{ClientID: req.ClientID}
	obj, err := a.post(ctx, routeLogin, "Login", payload, cred)
	if err != nil {
		return auth.Credential{}, err
	}
	token := obj.String("AuthToken")
	if token == "" {
		return auth.Credential{}, broker.NewErrorResponse(broker.ErrNotAuthenticated, "", "oswal login returned no AuthToken", nil)
	}
	cred.AccessToken = token

	if strings.EqualFold(obj.String("isAuthTokenVerified"), "FALSE") {
		if req.OTP == "" {
			return auth.Credential{}, broker.NewErrorResponse(broker.ErrNotAuthenticated, "",
				"oswal login needs the OTP sent to the registered mobile", nil)
		}
		if _, err := a.post(ctx, routeVerifyOTP, "VerifyOTP", map[string]any{"otp": req.OTP}, cred); err != nil {
			return auth.Credential{}, err
		}
	}
	return cred, nil
}

func (a *authenticator) Logout(ctx context.Context, cred auth.Credential) error {
	_, err := a.post(ctx, routeLogout, "Logout", map[string]any{"userid": cred.ClientID}, cred)
	return err
}

func (a *authenticator) post(ctx context.Context, route, endpoint string, payload map[string]any, cred auth.Credential) (jsonx.Object, error) {
	req, err := a.c.request(route, endpoint, payload, cred, false)
	if err != nil {
		return nil, err
	}
	resp, err := a.c.doer.Do(ctx, req)
	if err != nil {
		return nil, broker.AsErrorResponse(err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, broker.NewErrorResponse(broker.ErrNotAuthenticated, "",
			"oswal rejected the login", broker.RawData(resp.Body))
	}

	obj, er := envelope(resp.StatusCode, resp.Body)
	if er != nil {
		return nil, er
	}
	return obj, nil
}
