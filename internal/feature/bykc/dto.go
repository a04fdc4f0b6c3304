package bykc

import "encoding/json"

// apiEnvelope is the decrypted response wrapper every endpoint shares.
// Status 0 is success; anything else carries a human-readable Errmsg.
type apiEnvelope struct {
	Status int             `json:"status"`
	Errmsg string          `json:"errmsg"`
	Data   json.RawMessage `json:"data"`
}

// Profile is the student profile as reported by the enrollment system.
type Profile struct {
	ID       int64  `json:"id"`
	Name     string `json:"realName"`
	SchoolID string `json:"employeeId"`
	College  string `json:"collegeName"`
	Campus   string `json:"campusName"`
}

// Course is one selectable or chosen course.
type Course struct {
	ID           int64  `json:"id"`
	Name         string `json:"courseName"`
	Teacher      string `json:"courseTeacher"`
	Position     string `json:"coursePosition"`
	StartDate    string `json:"courseStartDate"`
	EndDate      string `json:"courseEndDate"`
	SelectStart  string `json:"courseSelectStartDate"`
	SelectEnd    string `json:"courseSelectEndDate"`
	MaxCount     int    `json:"courseMaxCount"`
	CurrentCount int    `json:"courseCurrentCount"`
	Campus       string `json:"courseCampus"`
}

// CoursePage is one page of a paged course query.
type CoursePage struct {
	Total   int      `json:"totalCount"`
	Content []Course `json:"content"`
}

// ChosenCourse is an enrolled course together with its sign state.
type ChosenCourse struct {
	Course     Course `json:"courseInfo"`
	SignedIn   bool   `json:"signIn"`
	SignedOut  bool   `json:"signOut"`
	ChosenTime string `json:"chosenTime"`
}

// SystemConfig is the enrollment system's global configuration blob
// (semester dates, selection windows, announcement text). The shape is
// upstream-defined and passed through untyped.
type SystemConfig map[string]json.RawMessage

// Statistics summarizes the student's completed course count per
// category.
type Statistics struct {
	Required  int `json:"requiredCount"`
	Completed int `json:"completedCount"`
	Selected  int `json:"selectedCount"`
}

// courseQueryRequest is the request body of the paged course query.
type courseQueryRequest struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
}

// courseIDRequest targets one course by id (enroll, withdraw, sign).
type courseIDRequest struct {
	CourseID int64 `json:"courseId"`
}
