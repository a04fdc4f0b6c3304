package bykc

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Domain errors derived from the enrollment system's responses.
var (
	// ErrAlreadyEnrolled indicates the student already holds the course.
	ErrAlreadyEnrolled = errors.New("already enrolled in course")

	// ErrCourseFull indicates the course has no remaining capacity.
	ErrCourseFull = errors.New("course is full")

	// ErrNotSelectable indicates the course is outside its enrollment
	// window or not open to this student.
	ErrNotSelectable = errors.New("course is not selectable")

	// ErrSessionExpired indicates the upstream no longer recognizes the
	// session; the caller must re-run the login flow.
	ErrSessionExpired = errors.New("upstream session expired")
)

// UpstreamError is a non-success answer from the enrollment system that
// matched no known category. The raw upstream message is preserved for
// diagnosis.
type UpstreamError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("bykc %s: upstream error (status %d): %s", e.Endpoint, e.Status, e.Message)
}

// messageRules maps substrings of the upstream's human-readable error text
// to domain errors. The wording comes from a live, versioned service: when
// it drifts, classification degrades to the generic UpstreamError rather
// than failing loudly.
var messageRules = []struct {
	substrings []string
	err        error
}{
	{[]string{"已选", "已经报名", "重复选课"}, ErrAlreadyEnrolled},
	{[]string{"已满", "人数已满", "容量不足", "名额"}, ErrCourseFull},
	{[]string{"不在选课时间", "不可选", "未开放", "未到开始时间"}, ErrNotSelectable},
	{[]string{"未登录", "请登录", "登录失效", "会话已过期", "请重新登录"}, ErrSessionExpired},
}

// classifyMessage translates an upstream error message into the domain
// taxonomy. Unrecognized text is logged for visibility and surfaced as a
// generic UpstreamError carrying the raw message.
func classifyMessage(endpoint string, apiStatus int, msg string) error {
	for _, rule := range messageRules {
		for _, sub := range rule.substrings {
			if strings.Contains(msg, sub) {
				return fmt.Errorf("%w: %s", rule.err, msg)
			}
		}
	}
	slog.Warn("unclassified upstream error message",
		"endpoint", endpoint, "status", apiStatus, "message", msg)
	return &UpstreamError{Endpoint: endpoint, Status: apiStatus, Message: msg}
}
