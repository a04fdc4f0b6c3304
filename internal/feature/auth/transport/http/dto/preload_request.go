package dto

// PreloadReq is the request body of /api/auth/preload and
// /api/auth/captcha.
type PreloadReq struct {
	Username string `json:"username" binding:"required"`
}
