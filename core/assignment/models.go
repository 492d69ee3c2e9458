package assignment

import (
	"math"
	"time"

	"github.com/trezcool/jifunze/core"
)

// Status filters
const (
	StatusAll      = "all"
	StatusUpcoming = "upcoming"
	StatusOverdue  = "overdue"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// OrderingFields are the fields assignments can be sorted by.
var OrderingFields = []string{"due_date", "created_at", "title"}

// Submission is a student's answer to an Assignment. It has no life outside of its Assignment.
type Submission struct {
	Student     string    `json:"student"`
	Content     string    `json:"content"`
	FileURL     string    `json:"file_url,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"` // UTC
}

type Assignment struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	DueDate     time.Time    `json:"due_date"` // UTC
	CreatedBy   string       `json:"created_by"`
	Submissions []Submission `json:"submissions"`
	CreatedAt   time.Time    `json:"created_at"` // UTC
	UpdatedAt   time.Time    `json:"updated_at"` // UTC
}

// IsOverdue is computed against `now` on every call; it is never stored.
func (a Assignment) IsOverdue(now time.Time) bool {
	return now.After(a.DueDate)
}

func (a Assignment) SubmissionCount() int { return len(a.Submissions) }

func (a Assignment) HasSubmissionFrom(studentID string) bool {
	for _, sub := range a.Submissions {
		if sub.Student == studentID {
			return true
		}
	}
	return false
}

// onlyFrom keeps the submissions of `studentID`.
func (a Assignment) onlyFrom(studentID string) Assignment {
	subs := make([]Submission, 0, 1)
	for _, sub := range a.Submissions {
		if sub.Student == studentID {
			subs = append(subs, sub)
		}
	}
	a.Submissions = subs
	return a
}

// Person is the public summary of a referenced user.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// View is an Assignment as rendered to a given user at a given time.
type View struct {
	Assignment
	Creator         *Person `json:"creator,omitempty"`
	IsOverdue       bool    `json:"is_overdue"`
	SubmissionCount int     `json:"submission_count"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Description string    `json:"description" validate:"required,notblank,max=5000"`
	DueDate     time.Time `json:"due_date" validate:"required,duedate"`
}

func (na *NewAssignment) Clean() {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
}

// UpdateAssignment defines what information may be provided to modify an existing Assignment.
// nil fields are left untouched.
type UpdateAssignment struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string    `json:"description" validate:"omitempty,notblank,max=5000"`
	DueDate     *time.Time `json:"due_date" validate:"omitempty,duedate"`
}

func (ua *UpdateAssignment) Clean() {
	core.CleanStringPtr(ua.Title)
	core.CleanStringPtr(ua.Description)
}

type NewSubmission struct {
	Content string `json:"content" validate:"required,notblank,max=10000"`
	FileURL string `json:"file_url" validate:"omitempty,http_url,max=2048"`
}

func (ns *NewSubmission) Clean() {
	ns.Content = core.CleanString(ns.Content)
	ns.FileURL = core.CleanString(ns.FileURL)
}

type QueryFilter struct {
	Status string `query:"status"`
	Page   int    `query:"page"`
	Limit  int    `query:"limit"`

	Owner     string            `query:"-"` // set by the service
	Orderings []core.DBOrdering `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	if qf.Status == "" {
		qf.Status = StatusAll
	}
	if qf.Page < 1 {
		qf.Page = 1
	}
	if qf.Limit < 1 {
		qf.Limit = defaultLimit
	} else if qf.Limit > maxLimit {
		qf.Limit = maxLimit
	}
	if len(qf.Orderings) == 0 {
		qf.Orderings = []core.DBOrdering{{Field: "created_at"}}
	}
}

func (qf QueryFilter) Skip() int64 { return int64((qf.Page - 1) * qf.Limit) }

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

type Page struct {
	Assignments []View     `json:"assignments"`
	Pagination  Pagination `json:"pagination"`
}

type Stats struct {
	TotalAssignments    int64   `json:"total_assignments"`
	UpcomingAssignments int64   `json:"upcoming_assignments"`
	OverdueAssignments  int64   `json:"overdue_assignments"`
	TotalSubmissions    int64   `json:"total_submissions"`
	AverageSubmissions  float64 `json:"average_submissions"`
}

// SetAverage derives AverageSubmissions, rounded to 2 decimals.
func (s *Stats) SetAverage() {
	if s.TotalAssignments == 0 {
		s.AverageSubmissions = 0
		return
	}
	avg := float64(s.TotalSubmissions) / float64(s.TotalAssignments)
	s.AverageSubmissions = math.Round(avg*100) / 100
}
