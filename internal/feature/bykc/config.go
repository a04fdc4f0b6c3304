// Package bykc is the protocol client for the liberal-arts-course
// enrollment system: an application-level login that extracts a bearer
// token from a redirect, followed by encrypted RPC calls.
package bykc

import (
	"os"
	"time"
)

// Config holds the enrollment system endpoints.
type Config struct {
	// BaseURL is the enrollment system root, e.g. "https://bykc.buaa.edu.cn".
	BaseURL string
	// BridgeURL is the CAS bridge whose final redirect carries the bearer
	// token as a "token" query parameter.
	BridgeURL string
	// SecondaryBridgeURL is probed best-effort when the primary bridge
	// yields no token; cookies may already carry the session.
	SecondaryBridgeURL string
	// TokenTTL is the heuristic freshness window for a cached bearer
	// token. The upstream never confirms validity, so reuse is a guess.
	TokenTTL time.Duration
}

// LoadConfig loads enrollment system configuration from environment
// variables, with the production portal as default.
func LoadConfig() Config {
	base := os.Getenv("BYKC_BASE_URL")
	if base == "" {
		base = "https://bykc.buaa.edu.cn"
	}
	bridge := os.Getenv("BYKC_BRIDGE_URL")
	if bridge == "" {
		bridge = "https://sso.buaa.edu.cn/login?service=" + base + "/sscv/casLogin"
	}
	return Config{
		BaseURL:            base,
		BridgeURL:          bridge,
		SecondaryBridgeURL: base + "/casLogin",
		TokenTTL:           10 * time.Minute,
	}
}
