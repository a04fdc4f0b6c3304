package cas

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"campus_backend/internal/feature/auth/domain"
	"campus_backend/internal/feature/auth/domain/entity"

	"golang.org/x/net/html"
)

// LoginPage is the parsed state of one fetched IdP login page. Fields holds
// every input the form declares (hidden anti-bot values included), so a
// submission can echo them all back.
type LoginPage struct {
	Execution    string
	Action       string // absolute form action URL
	Fields       url.Values
	Captcha      *entity.Captcha
	CaptchaField string // form field name for the captcha answer, if declared
}

// captchaFieldNames are the field names portals are known to use for the
// captcha answer, in preference order.
var captchaFieldNames = []string{"captcha", "captchaPayload", "captcha_code", "code"}

// captchaConfigRe matches the script-embedded captcha configuration, e.g.
// config.captcha = {type: 'blockPuzzle', id: 'xyz'}.
var captchaConfigRe = regexp.MustCompile(
	`config\.captcha\s*=\s*\{[^}]*\}`)

var captchaTypeRe = regexp.MustCompile(`type\s*:\s*['"]([^'"]+)['"]`)
var captchaIDRe = regexp.MustCompile(`id\s*:\s*['"]([^'"]+)['"]`)

// errorTipRes match the inline error tip the IdP renders after a rejected
// submission. Wording and markup vary between portal versions.
var errorTipRes = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<(?:span|div)[^>]*id="(?:msg|errorTip|showErrorTip)"[^>]*>(.*?)</(?:span|div)>`),
	regexp.MustCompile(`(?s)<(?:span|div)[^>]*class="[^"]*(?:auth_error|error-tip|errors)[^"]*"[^>]*>(.*?)</(?:span|div)>`),
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

// ParseLoginPage parses the IdP login page HTML fetched from base.
// A page without an execution token is a failure: InvalidCredentials when
// an inline error tip explains why, ProtocolError otherwise.
func ParseLoginPage(base *url.URL, body []byte) (*LoginPage, error) {
	page := &LoginPage{Fields: url.Values{}}

	doc, err := html.Parse(bytes.NewReader(body))
	if err == nil {
		form := findExecutionForm(doc)
		if form != nil {
			if action := attr(form, "action"); action != "" {
				if ref, err := url.Parse(action); err == nil {
					page.Action = base.ResolveReference(ref).String()
				}
			}
			collectInputs(form, page.Fields)
		}
	}
	if page.Action == "" {
		page.Action = base.String()
	}
	page.Execution = page.Fields.Get("execution")
	if page.Execution == "" {
		if tip := FindErrorTip(body); tip != "" {
			return nil, &domain.InvalidCredentialsError{Tip: tip}
		}
		return nil, fmt.Errorf("%w: could not locate execution token", domain.ErrProtocol)
	}

	for _, name := range captchaFieldNames {
		if _, ok := page.Fields[name]; ok {
			page.CaptchaField = name
			break
		}
	}
	page.Captcha = detectCaptcha(base, body)
	return page, nil
}

// detectCaptcha scans the page for an embedded captcha configuration and
// builds its descriptor, with the image URL templated from the id.
func detectCaptcha(base *url.URL, body []byte) *entity.Captcha {
	block := captchaConfigRe.Find(body)
	if block == nil {
		return nil
	}
	tm := captchaTypeRe.FindSubmatch(block)
	im := captchaIDRe.FindSubmatch(block)
	if tm == nil || im == nil {
		return nil
	}
	id := string(im[1])
	image := base.ResolveReference(&url.URL{
		Path:     "captcha",
		RawQuery: "id=" + url.QueryEscape(id),
	})
	return &entity.Captcha{
		ID:       id,
		Type:     string(tm[1]),
		ImageURL: image.String(),
	}
}

// FindErrorTip extracts the IdP's inline error tip text, if the page
// carries one. Returns "" otherwise.
func FindErrorTip(body []byte) string {
	for _, re := range errorTipRes {
		if m := re.FindSubmatch(body); m != nil {
			tip := tagRe.ReplaceAllString(string(m[1]), " ")
			tip = strings.Join(strings.Fields(tip), " ")
			if tip != "" {
				return tip
			}
		}
	}
	return ""
}

// findExecutionForm walks the document for the form that declares the
// hidden execution input.
func findExecutionForm(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "form" {
		if hasExecutionInput(n) {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if form := findExecutionForm(c); form != nil {
			return form
		}
	}
	return nil
}

func hasExecutionInput(n *html.Node) bool {
	if n.Type == html.ElementNode && n.Data == "input" && attr(n, "name") == "execution" {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasExecutionInput(c) {
			return true
		}
	}
	return false
}

// collectInputs gathers every named input and select in the form.
func collectInputs(n *html.Node, fields url.Values) {
	if n.Type == html.ElementNode && (n.Data == "input" || n.Data == "select") {
		if name := attr(n, "name"); name != "" {
			fields.Set(name, attr(n, "value"))
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectInputs(c, fields)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
