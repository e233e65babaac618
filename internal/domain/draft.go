package domain

import (
	"strings"
	"time"
)

// Stage is a draft's position in the rewrite pipeline.
type Stage string

const (
	StageRaw           Stage = "RAW"
	StageEditorDone    Stage = "EDITOR_DONE"
	StageColumnistDone Stage = "COLUMNIST_DONE"
	StageSaved         Stage = "SAVED"
	StageFailed        Stage = "FAILED"
)

var stageOrder = map[Stage]int{
	StageRaw:           0,
	StageEditorDone:    1,
	StageColumnistDone: 2,
	StageSaved:         3,
}

// IsValid reports whether s is a known stage.
func (s Stage) IsValid() bool {
	_, ok := stageOrder[s]
	return ok || s == StageFailed
}

// CanTransition reports whether a persisted stage may move from s to next.
// Progress only moves forward one stage at a time. FAILED is reachable from
// anything but SAVED, and a failed draft may re-enter any progress stage.
func (s Stage) CanTransition(next Stage) bool {
	if next == StageFailed {
		return s != StageSaved
	}
	nextPos, ok := stageOrder[next]
	if !ok {
		return false
	}
	if s == StageFailed {
		return nextPos > 0
	}
	return nextPos == stageOrder[s]+1
}

// Step is a single rewrite transition.
type Step string

const (
	StepEditor    Step = "EDITOR"
	StepColumnist Step = "COLUMNIST"
	StepSave      Step = "SAVE"
)

// ParseStep accepts the lower or upper case step name.
func ParseStep(s string) (Step, bool) {
	switch Step(strings.ToUpper(strings.TrimSpace(s))) {
	case StepEditor:
		return StepEditor, true
	case StepColumnist:
		return StepColumnist, true
	case StepSave:
		return StepSave, true
	default:
		return "", false
	}
}

// Target is the stage a successful step produces.
func (s Step) Target() Stage {
	switch s {
	case StepEditor:
		return StageEditorDone
	case StepColumnist:
		return StageColumnistDone
	default:
		return StageSaved
	}
}

// DraftStatus is the review status.
type DraftStatus string

const (
	StatusPending  DraftStatus = "pending"
	StatusApproved DraftStatus = "approved"
)

// Warning codes for degraded stage output.
const (
	WarnEditorParseFallback    = "EDITOR_PARSE_FALLBACK"
	WarnColumnistParseFallback = "COLUMNIST_PARSE_FALLBACK"
)

// Persistence failures are recorded with this code.
const ErrorCodeDB = "DB_ERROR"

// Draft is an article moving through the rewrite state machine.
type Draft struct {
	ID         string      `db:"id"           json:"id"`
	NewsItemID string      `db:"news_item_id" json:"news_item_id"`
	Title      string      `db:"title"        json:"title"`
	Slug       string      `db:"slug"         json:"slug"`
	Summary    string      `db:"summary"      json:"summary"`
	Content    string      `db:"content"      json:"content"`
	Category   string      `db:"category"     json:"category"`
	Tags       StringList  `db:"tags"         json:"tags"`
	Status     DraftStatus `db:"status"       json:"status"`
	Stage      Stage       `db:"stage"        json:"stage"`

	EditorContent    *string        `db:"editor_content"    json:"editor_content,omitempty"`
	EditorNotes      StringList     `db:"editor_notes"      json:"editor_notes"`
	CalcChecks       CalcCheckList  `db:"calc_checks"       json:"calc_checks"`
	ColumnistContent *string        `db:"columnist_content" json:"columnist_content,omitempty"`
	ColumnistMeta    *ColumnistMeta `db:"columnist_meta"    json:"columnist_meta,omitempty"`
	Warnings         StringList     `db:"warnings"          json:"warnings"`

	ErrorStage   *string `db:"error_stage"   json:"error_stage,omitempty"`
	ErrorCode    *string `db:"error_code"    json:"error_code,omitempty"`
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`

	PublishedPostID *string    `db:"published_post_id" json:"published_post_id,omitempty"`
	ReviewedAt      *time.Time `db:"reviewed_at"       json:"reviewed_at,omitempty"`
	ReviewedBy      *string    `db:"reviewed_by"       json:"reviewed_by,omitempty"`

	Version   int       `db:"version"    json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsApproved reports the review status.
func (d *Draft) IsApproved() bool {
	return d.Status == StatusApproved
}

// HasEditorOutput reports a non-empty persisted editor result.
func (d *Draft) HasEditorOutput() bool {
	return d.EditorContent != nil && *d.EditorContent != ""
}

// HasColumnistOutput reports a non-empty persisted columnist result.
func (d *Draft) HasColumnistOutput() bool {
	return d.ColumnistContent != nil && *d.ColumnistContent != ""
}

// Fail moves the draft to FAILED, keeping all partial output.
func (d *Draft) Fail(step Step, code, message string) {
	stage := string(step)
	d.Stage = StageFailed
	d.ErrorStage = &stage
	d.ErrorCode = &code
	d.ErrorMessage = &message
}

// ClearError drops stale error fields before a resume.
func (d *Draft) ClearError() {
	d.ErrorStage = nil
	d.ErrorCode = nil
	d.ErrorMessage = nil
}

// DropColumnistOutput discards columnist results derived from an older
// editor pass, along with the warnings they carried.
func (d *Draft) DropColumnistOutput() {
	d.ColumnistContent = nil
	d.ColumnistMeta = nil
	d.Warnings = nil
}

// AddWarning appends code once.
func (d *Draft) AddWarning(code string) {
	for _, w := range d.Warnings {
		if w == code {
			return
		}
	}
	d.Warnings = append(d.Warnings, code)
}

// CalcCheck records one verified arithmetic claim.
type CalcCheck struct {
	Claim     string `json:"claim"`
	Before    string `json:"before"`
	After     string `json:"after"`
	Corrected bool   `json:"corrected"`
}

// ColumnistMeta is the structured columnist output besides the markdown.
type ColumnistMeta struct {
	Title           string   `json:"title"`
	MetaDescription string   `json:"meta_description"`
	Tags            []string `json:"tags"`
}

// DraftFilter narrows draft listings.
type DraftFilter struct {
	Status DraftStatus
	Stage  Stage
	Limit  int
	Offset int
}

// CandidateFilter narrows candidate listings.
type CandidateFilter struct {
	Category        string
	OnlyPending     bool
	IncludeExcluded bool
	Limit           int
	Offset          int
}
