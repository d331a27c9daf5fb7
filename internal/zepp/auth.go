package zepp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultRegistrationURL = "https://api-user.huami.com"
	defaultLoginURL        = "https://account.huami.com"

	// Fixed client identity the provider expects on both login stages.
	redirectURI = "https://s3-us-west-2.amazonws.com/hm-registration/successsignin.html"
	appName     = "com.xiaomi.hm.health"
	appVersion  = "4.0.9"
	deviceID    = "02:00:00:00:00:00"
	deviceModel = "android_phone"
	dnList      = "account.huami.com,api-user.huami.com,api-watch.huami.com," +
		"api-analytics.huami.com,app-analytics.huami.com,api-mifit.huami.com"
)

var (
	// ErrAuthRejected is returned when the provider refuses the login or
	// answers with a shape no session can be built from.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrMissingToken is returned when the registration redirect lacks the
	// access token or country code parameter.
	ErrMissingToken = errors.New("missing token in redirect")
)

// Session is the provider context obtained from a successful login. It is
// immutable and lives for one run.
type Session struct {
	AppToken string
	UserID   string
}

// AuthClient performs the two-stage Huami login: email/password against the
// registration endpoint yields an access token embedded in a redirect, which
// is then exchanged for an app token and user id.
type AuthClient struct {
	registrationURL string
	loginURL        string
	client          *http.Client
	logger          *slog.Logger
}

func NewAuthClient(logger *slog.Logger) *AuthClient {
	return &AuthClient{
		registrationURL: defaultRegistrationURL,
		loginURL:        defaultLoginURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
			// The access token lives in the redirect itself, so the
			// redirect must be inspected rather than followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Login runs both stages and returns the session for the account.
func (a *AuthClient) Login(ctx context.Context, email, password string) (Session, error) {
	a.logger.Info("logging in", "email", email)

	access, country, err := a.requestAccessToken(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	a.logger.Info("obtained access token")

	return a.loginWithToken(ctx, access, country)
}

func (a *AuthClient) requestAccessToken(ctx context.Context, email, password string) (access, country string, err error) {
	form := url.Values{
		"state":        {"REDIRECTION"},
		"client_id":    {"HuaMi"},
		"redirect_uri": {redirectURI},
		"token":        {"access"},
		"password":     {password},
	}

	endpoint := a.registrationURL + "/registrations/" + url.PathEscape(email) + "/tokens"
	resp, err := a.postForm(ctx, endpoint, form)
	if err != nil {
		return "", "", fmt.Errorf("registration request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	location := resp.Header.Get("Location")
	if resp.StatusCode < 300 || resp.StatusCode >= 400 || location == "" {
		return "", "", fmt.Errorf("registration returned status %d without redirect: %w",
			resp.StatusCode, ErrAuthRejected)
	}

	redirect, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse redirect location: %w", ErrAuthRejected)
	}

	query := redirect.Query()
	access = query.Get("access")
	country = query.Get("country_code")
	if access == "" {
		return "", "", fmt.Errorf("no access token in redirect: %w", ErrMissingToken)
	}
	if country == "" {
		return "", "", fmt.Errorf("no country_code in redirect: %w", ErrMissingToken)
	}
	return access, country, nil
}

type loginResponse struct {
	TokenInfo *struct {
		AppToken string      `json:"app_token"`
		UserID   json.Number `json:"user_id"`
	} `json:"token_info"`
}

func (a *AuthClient) loginWithToken(ctx context.Context, access, country string) (Session, error) {
	form := url.Values{
		"grant_type":         {"access_token"},
		"code":               {access},
		"country_code":       {country},
		"app_name":           {appName},
		"app_version":        {appVersion},
		"device_id":          {deviceID},
		"device_model":       {deviceModel},
		"dn":                 {dnList},
		"allow_registration": {"false"},
		"third_name":         {"huami"},
	}

	resp, err := a.postForm(ctx, a.loginURL+"/v2/client/login", form)
	if err != nil {
		return Session{}, fmt.Errorf("token login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, fmt.Errorf("read login response: %w", err)
	}

	// Provider responses carry a lot of account metadata; only the two
	// token_info fields matter, everything else is ignored.
	var login loginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		return Session{}, fmt.Errorf("parse login response: %w", ErrAuthRejected)
	}
	if login.TokenInfo == nil || login.TokenInfo.AppToken == "" || login.TokenInfo.UserID.String() == "" {
		return Session{}, fmt.Errorf("login response lacks token_info: %w", ErrAuthRejected)
	}

	session := Session{
		AppToken: login.TokenInfo.AppToken,
		UserID:   login.TokenInfo.UserID.String(),
	}
	a.logger.Info("session established", "user_id", session.UserID)
	return session, nil
}

func (a *AuthClient) postForm(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.client.Do(req)
}
