// Package dto defines the request bodies of the auth HTTP endpoints.
package dto

// LoginReq is the request body of /api/auth/login. Captcha and Execution
// are only set when a preceding preload reported a captcha challenge.
type LoginReq struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Captcha   string `json:"captcha"`
	Execution string `json:"execution"`
}
