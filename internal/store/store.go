// Package store persists interview sessions and applications.
//
// A Session is one live interview; an Application is the cross-stage
// aggregate carrying the resume, job description, and accumulated stage
// insights. Structured sub-fields (transcript, profile, scores) are
// serialised as JSONB.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voxhire/voxhire/internal/competency"
	"github.com/voxhire/voxhire/internal/insights"
	"github.com/voxhire/voxhire/internal/profile"
	"github.com/voxhire/voxhire/pkg/types"
)

// Session statuses.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Session is one live interview, keyed by the media room name.
type Session struct {
	// SessionID is the stable ID used as trace key and media room name.
	SessionID string

	// ApplicationID links the session to its cross-stage aggregate. Empty
	// for standalone practice sessions.
	ApplicationID string

	// StageType is hr, technical, behavioral, or practice.
	StageType string

	Status        string
	CandidateName string
	Language      string

	// Transcript is the full conversation, persisted periodically during
	// the session and finally at shutdown.
	Transcript []types.Turn

	// Results derived at session end.
	CandidateProfile *profile.Profile
	SkillAssessments []competency.TurnScore
	DifficultyLevel  string
	CompetencyScores map[string]competency.Score
	TopicsCovered    []string
	FeedbackMarkdown string
	OverallScore     int

	// TraceID links the session to its observability trace.
	TraceID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate reports all structural problems with the session.
func (s *Session) Validate() error {
	var errs []error
	if s.SessionID == "" {
		errs = append(errs, errors.New("session_id must not be empty"))
	}
	switch s.StageType {
	case "hr", "technical", "behavioral", "practice":
	case "":
		errs = append(errs, errors.New("stage_type must not be empty"))
	default:
		errs = append(errs, fmt.Errorf("stage_type %q is not a known stage", s.StageType))
	}
	switch s.Status {
	case "", StatusPending, StatusActive, StatusCompleted, StatusFailed:
	default:
		errs = append(errs, fmt.Errorf("status %q is not a known status", s.Status))
	}
	return errors.Join(errs...)
}

// Application is the cross-stage aggregate the core reads shared context
// from and writes stage insights to.
type Application struct {
	ID           string
	UserID       string
	JobRole      string
	Type         string
	Status       string
	CurrentStage int

	JobDescription string
	ResumeText     string

	// CrossStageInsights maps stage type to the durable insights written at
	// that stage's end.
	CrossStageInsights map[string]insights.StageInsights

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionStore provides persistence for interview sessions.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Create inserts a new session. The session is validated before
	// insertion. Returns an error if the session ID already exists.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by session ID. Returns (nil, nil) if not
	// found.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// SaveTranscript updates the transcript and status. Used for periodic
	// durability during a live session and for the final save.
	SaveTranscript(ctx context.Context, sessionID string, transcript []types.Turn, status string) error

	// SetTraceID records the observability trace ID on the session.
	SetTraceID(ctx context.Context, sessionID, traceID string) error

	// SaveResults writes the end-of-session derived state.
	SaveResults(ctx context.Context, sessionID string, r Results) error
}

// Results is the derived state written once at session end.
type Results struct {
	CandidateProfile *profile.Profile
	SkillAssessments []competency.TurnScore
	DifficultyLevel  string
	CompetencyScores map[string]competency.Score
	TopicsCovered    []string

	// FeedbackMarkdown is the serialized candidate feedback report.
	FeedbackMarkdown string
	OverallScore     int
}

// ApplicationStore provides persistence for applications. It satisfies
// [insights.ApplicationStore] so the cross-stage memory can write through it.
// Implementations must be safe for concurrent use.
type ApplicationStore interface {
	// Get retrieves an application by ID. Returns (nil, nil) if not found.
	Get(ctx context.Context, id string) (*Application, error)

	// CrossStageInsights returns the insights map for an application.
	CrossStageInsights(ctx context.Context, applicationID string) (map[string]insights.StageInsights, error)

	// SaveCrossStageInsights replaces the insights map for an application.
	SaveCrossStageInsights(ctx context.Context, applicationID string, m map[string]insights.StageInsights) error
}
