package usecase

import "os"

// LoadLoginConfig reads the optional portal endpoints from the
// environment. PROFILE_URL may be empty; identity enrichment is then
// skipped.
func LoadLoginConfig() LoginConfig {
	return LoginConfig{
		ProfileURL: os.Getenv("PROFILE_URL"),
	}
}
