package config

import "time"

// OAuthConfig configures the Google identity verifier.
type OAuthConfig struct {
	GoogleUserInfoURL string
	Timeout           time.Duration
}

// LoadOAuthConfig reads GOOGLE_USERINFO_URL and OAUTH_TIMEOUT.
func LoadOAuthConfig() OAuthConfig {
	return OAuthConfig{
		GoogleUserInfoURL: envStr("GOOGLE_USERINFO_URL", "https://openidconnect.googleapis.com/v1/userinfo"),
		Timeout:           envDur("OAUTH_TIMEOUT", 5*time.Second),
	}
}
