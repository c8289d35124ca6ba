package models

// Job statuses. A job is created as discovered and only ever moves along
// the edges in transitions below; rows are never deleted.
type Status string

const (
	StatusDiscovered Status = "discovered" // found by scraper or manual add, awaiting review
	StatusApproved   Status = "approved"   // operator approved for auto-apply
	StatusTailoring  Status = "tailoring"  // resume being generated
	StatusReady      Status = "ready"      // resume resolved / form filled, awaiting review
	StatusFilling    Status = "filling"    // form fill in progress
	StatusSubmitted  Status = "submitted"  // application submitted
	StatusFailed     Status = "failed"     // fill failed, retries exhausted
	StatusManual     Status = "manual"     // needs manual intervention (unsupported platform)
	StatusSkipped    Status = "skipped"    // operator rejected
)

// StatusOrder is the lifecycle ordering used for operator-facing listings.
var StatusOrder = []Status{
	StatusDiscovered, StatusApproved, StatusTailoring, StatusReady,
	StatusFilling, StatusSubmitted, StatusFailed, StatusManual, StatusSkipped,
}

// transitions is the directed edge set of the status machine. failed and
// manual re-enter approved only through explicit operator action.
var transitions = map[Status][]Status{
	StatusDiscovered: {StatusApproved, StatusSkipped},
	StatusApproved:   {StatusTailoring, StatusReady, StatusManual, StatusFailed, StatusSkipped},
	StatusTailoring:  {StatusReady, StatusFailed, StatusSkipped},
	StatusReady:      {StatusFilling, StatusSubmitted, StatusSkipped},
	StatusFilling:    {StatusReady, StatusFailed, StatusSkipped},
	StatusFailed:     {StatusApproved, StatusSkipped},
	StatusManual:     {StatusApproved, StatusSkipped},
	StatusSubmitted:  nil,
	StatusSkipped:    nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further automatic transition exists.
// failed and manual are terminal only until operator retry.
func (s Status) Terminal() bool {
	return s == StatusSubmitted || s == StatusSkipped
}

// CanTransition reports whether the edge from -> to is part of the machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one discovered or queued application. URL is the unique key:
// re-adding an existing URL resolves to the existing row.
type Job struct {
	ID             int64  `json:"id" db:"id"`
	Company        string `json:"company" db:"company"`
	Role           string `json:"role" db:"role"`
	URL            string `json:"url" db:"url"`
	Platform       string `json:"platform,omitempty" db:"platform"`
	JDText         string `json:"jd_text,omitempty" db:"jd_text"`
	ResumePath     string `json:"resume_path,omitempty" db:"resume_path"`
	ScreenshotPath string `json:"screenshot_path,omitempty" db:"screenshot_path"`
	Status         Status `json:"status" db:"status"`
	Error          string `json:"error,omitempty" db:"error"`
	Source         string `json:"source,omitempty" db:"source"`
	Created        int64  `json:"created" db:"created"`
	Updated        int64  `json:"updated" db:"updated"`
	Submitted      *int64 `json:"submitted,omitempty" db:"submitted"`
}

// FormAnswer is an append-only audit record of one answered screening
// question. It never feeds back into control flow.
type FormAnswer struct {
	ID       int64  `json:"id" db:"id"`
	JobID    int64  `json:"job_id" db:"job_id"`
	Question string `json:"question" db:"question"`
	Answer   string `json:"answer" db:"answer"`
	Source   string `json:"source" db:"source"` // lookup | ai | skip
	Created  int64  `json:"created" db:"created"`
}

// FieldLog severities used by adapters.
const (
	LogOK     = "ok"
	LogInfo   = "info"
	LogError  = "error"
	LogSkip   = "skip"
	LogAnswer = "answer"
)

// FieldLog is one discrete field-level action taken by an adapter.
type FieldLog struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Validation summarizes the post-fill state of a form.
type Validation struct {
	FilledCount   int      `json:"filled_count"`
	EmptyRequired []string `json:"empty_required,omitempty"`
}

// FillResult is the outcome of one adapter invocation.
type FillResult struct {
	Success        bool        `json:"success"`
	Submitted      bool        `json:"submitted"`
	Error          string      `json:"error,omitempty"`
	ScreenshotPath string      `json:"screenshot_path,omitempty"`
	Log            []FieldLog  `json:"log,omitempty"`
	Validation     *Validation `json:"validation,omitempty"`
}

// Append records a field-level action on the result.
func (r *FillResult) Append(level, message string) {
	r.Log = append(r.Log, FieldLog{Level: level, Message: message})
}
