package portal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// AuthCookieName is the cookie the SER portal reads its session from.
const AuthCookieName = "authCookie"

const logonPath = "Account/LogOn"

// Authenticator establishes a logged-in state on a freshly opened session.
type Authenticator interface {
	Authenticate(ctx context.Context, s *Session) error
}

// TokenAuthenticator injects a pre-obtained session token as a cookie.
type TokenAuthenticator struct {
	Token string
}

// Authenticate sets the auth cookie on the portal host, loads the landing
// page and verifies the portal did not bounce back to the login screen.
func (a TokenAuthenticator) Authenticate(ctx context.Context, s *Session) error {
	if strings.TrimSpace(a.Token) == "" {
		return &AuthError{Message: "session token is empty"}
	}
	domain, err := cookieDomain(s.cfg)
	if err != nil {
		return &AuthError{Message: "invalid portal URL", Cause: err}
	}

	var location string
	err = s.run(ctx, s.cfg.AuthTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			expires := cdp.TimeSinceEpoch(time.Now().Add(12 * time.Hour))
			return network.SetCookies([]*network.CookieParam{{
				Name:    AuthCookieName,
				Value:   a.Token,
				Domain:  domain,
				Path:    "/",
				Expires: &expires,
			}}).Do(ctx)
		}),
		chromedp.Navigate(s.cfg.BaseURL),
		chromedp.Location(&location),
	)
	if err != nil {
		return &AuthError{Message: "failed to load portal", Cause: err}
	}
	if isLogonURL(location) {
		return &AuthError{Message: "session token is invalid or expired"}
	}

	if marker := s.cfg.Selectors.PostLoginMarker; marker != "" {
		if err := s.run(ctx, s.cfg.AuthTimeout, chromedp.WaitVisible(marker, chromedp.ByQuery)); err != nil {
			return &AuthError{Message: "post-login marker did not appear", Cause: err}
		}
	}

	s.logger.Info("Authenticated with session token", zap.String("location", location))
	return nil
}

// PasswordAuthenticator logs in through the portal form.
type PasswordAuthenticator struct {
	Username string
	Password string
}

// Authenticate fills the login form, disables the client-side challenge check,
// submits and waits for the post-login URL.
func (a PasswordAuthenticator) Authenticate(ctx context.Context, s *Session) error {
	if a.Username == "" || a.Password == "" {
		return &AuthError{Message: "username and password are required"}
	}
	sel := s.cfg.Selectors
	loginURL := s.cfg.LoginURL
	if loginURL == "" {
		loginURL = strings.TrimRight(s.cfg.BaseURL, "/") + "/" + logonPath
	}

	err := s.run(ctx, s.cfg.AuthTimeout,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(sel.Username, chromedp.ByQuery),
		chromedp.SendKeys(sel.Username, a.Username, chromedp.ByQuery),
		chromedp.SendKeys(sel.Password, a.Password, chromedp.ByQuery),
		chromedp.Evaluate(sel.CaptchaOverride, nil),
		chromedp.Click(sel.LoginSubmit, chromedp.ByQuery),
	)
	if err != nil {
		return &AuthError{Message: "failed to submit login form", Cause: err}
	}

	location, err := s.waitForLocation(ctx, s.cfg.PostLoginURL, s.cfg.AuthTimeout)
	if err != nil {
		return &AuthError{Message: fmt.Sprintf("did not reach %s after login", s.cfg.PostLoginURL), Cause: err}
	}

	s.logger.Info("Authenticated with credentials", zap.String("location", location))
	return nil
}

// waitForLocation polls the current URL until it starts with want.
func (s *Session) waitForLocation(ctx context.Context, want string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var location string
	for {
		if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Location(&location)); err != nil {
			return location, err
		}
		if want == "" && !isLogonURL(location) {
			return location, nil
		}
		if want != "" && strings.HasPrefix(location, want) {
			return location, nil
		}
		if time.Now().After(deadline) {
			return location, fmt.Errorf("timed out at %s", location)
		}
		select {
		case <-ctx.Done():
			return location, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func isLogonURL(location string) bool {
	return strings.Contains(strings.ToLower(location), strings.ToLower(logonPath))
}

func cookieDomain(cfg Config) (string, error) {
	if cfg.CookieDomain != "" {
		return cfg.CookieDomain, nil
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("portal URL %q has no host", cfg.BaseURL)
	}
	return u.Hostname(), nil
}
