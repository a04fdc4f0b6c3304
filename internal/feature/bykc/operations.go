package bykc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Endpoint names under /sscv/ on the enrollment system.
const (
	epProfile      = "getUserProfile"
	epQueryCourses = "queryStudentSemesterCourseByPage"
	epQueryChosen  = "queryChosenCourse"
	epEnroll       = "choseCourse"
	epWithdraw     = "delChosenCourse"
	epSignIn       = "signInCourse"
	epSignOut      = "signOutCourse"
	epConfig       = "getAllConfig"
	epStatistics   = "queryStatistic"
)

// GetProfile fetches the student profile.
func (s *Service) GetProfile(ctx context.Context, username string) (*Profile, error) {
	data, err := s.Call(ctx, username, epProfile, nil)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return &p, nil
}

// QueryCourses fetches one page of the semester's selectable courses.
func (s *Service) QueryCourses(ctx context.Context, username string, page, size int) (*CoursePage, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	data, err := s.Call(ctx, username, epQueryCourses, courseQueryRequest{
		PageNumber: page,
		PageSize:   size,
	})
	if err != nil {
		return nil, err
	}
	var result CoursePage
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse course page: %w", err)
	}
	return &result, nil
}

// QueryChosen fetches the student's enrolled courses with sign state.
func (s *Service) QueryChosen(ctx context.Context, username string) ([]ChosenCourse, error) {
	data, err := s.Call(ctx, username, epQueryChosen, nil)
	if err != nil {
		return nil, err
	}
	var chosen []ChosenCourse
	if err := json.Unmarshal(data, &chosen); err != nil {
		return nil, fmt.Errorf("parse chosen courses: %w", err)
	}
	return chosen, nil
}

// Enroll registers the student for a course.
func (s *Service) Enroll(ctx context.Context, username string, courseID int64) error {
	_, err := s.Call(ctx, username, epEnroll, courseIDRequest{CourseID: courseID})
	return err
}

// Withdraw drops the student's enrollment in a course.
func (s *Service) Withdraw(ctx context.Context, username string, courseID int64) error {
	_, err := s.Call(ctx, username, epWithdraw, courseIDRequest{CourseID: courseID})
	return err
}

// SignIn marks attendance at the start of a course session.
func (s *Service) SignIn(ctx context.Context, username string, courseID int64) error {
	_, err := s.Call(ctx, username, epSignIn, courseIDRequest{CourseID: courseID})
	return err
}

// SignOut marks attendance at the end of a course session.
func (s *Service) SignOut(ctx context.Context, username string, courseID int64) error {
	_, err := s.Call(ctx, username, epSignOut, courseIDRequest{CourseID: courseID})
	return err
}

// GetConfig fetches the system's global configuration blob.
func (s *Service) GetConfig(ctx context.Context, username string) (SystemConfig, error) {
	data, err := s.Call(ctx, username, epConfig, nil)
	if err != nil {
		return nil, err
	}
	var cfg SystemConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// GetStatistics fetches the student's completion statistics.
func (s *Service) GetStatistics(ctx context.Context, username string) (*Statistics, error) {
	data, err := s.Call(ctx, username, epStatistics, nil)
	if err != nil {
		return nil, err
	}
	var st Statistics
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse statistics: %w", err)
	}
	return &st, nil
}
