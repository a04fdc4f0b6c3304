package entity

// Captcha describes a CAPTCHA challenge embedded in the SSO login page.
// It is surfaced to the caller before credentials are submitted; the caller
// answers it and retries with the same execution token.
type Captcha struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // e.g. "blockPuzzle", "clickWord"
	ImageURL string `json:"imageUrl"`
}
