// Package cas drives the multi-step login handshake against the
// university's central authentication service.
package cas

import "os"

// Config holds the identity-provider endpoints.
type Config struct {
	// LoginURL is the IdP login page, e.g. "https://sso.buaa.edu.cn/login".
	LoginURL string
}

// LoadConfig loads CAS configuration from environment variables, with the
// production portal as default.
func LoadConfig() Config {
	loginURL := os.Getenv("CAS_LOGIN_URL")
	if loginURL == "" {
		loginURL = "https://sso.buaa.edu.cn/login"
	}
	return Config{LoginURL: loginURL}
}
