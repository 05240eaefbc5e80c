package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voxhire/voxhire/internal/competency"
	"github.com/voxhire/voxhire/internal/insights"
	"github.com/voxhire/voxhire/pkg/types"
)

// Schema is the SQL DDL for the interview tables. Execute it via [Migrate]
// or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS interview_applications (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL DEFAULT '',
    job_role             TEXT NOT NULL DEFAULT '',
    type                 TEXT NOT NULL DEFAULT 'standard',
    status               TEXT NOT NULL DEFAULT 'in_progress',
    current_stage        INT NOT NULL DEFAULT 1,
    job_description      TEXT NOT NULL DEFAULT '',
    resume_text          TEXT NOT NULL DEFAULT '',
    cross_stage_insights JSONB NOT NULL DEFAULT '{}',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_interview_applications_user ON interview_applications(user_id);

CREATE TABLE IF NOT EXISTS interview_sessions (
    session_id        TEXT PRIMARY KEY,
    application_id    TEXT NOT NULL DEFAULT '',
    stage_type        TEXT NOT NULL,
    status            TEXT NOT NULL DEFAULT 'pending',
    candidate_name    TEXT NOT NULL DEFAULT '',
    language          TEXT NOT NULL DEFAULT 'en',
    transcript        JSONB NOT NULL DEFAULT '[]',
    candidate_profile JSONB,
    skill_assessments JSONB NOT NULL DEFAULT '[]',
    difficulty_level  TEXT NOT NULL DEFAULT 'intermediate',
    competency_scores JSONB NOT NULL DEFAULT '{}',
    topics_covered    JSONB NOT NULL DEFAULT '[]',
    feedback_markdown TEXT NOT NULL DEFAULT '',
    overall_score     INT NOT NULL DEFAULT 0,
    trace_id          TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_interview_sessions_application ON interview_sessions(application_id);
`

// DB is the database interface used by the Postgres stores. Both
// *pgxpool.Pool and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Migrate executes the [Schema] DDL against the database, creating the
// interview tables and indexes if they do not already exist.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// PostgresSessionStore is a [SessionStore] backed by PostgreSQL.
type PostgresSessionStore struct {
	db DB
}

// Compile-time interface check.
var _ SessionStore = (*PostgresSessionStore)(nil)

// NewPostgresSessionStore creates a session store over the given database
// connection or pool. The caller is responsible for calling [Migrate] to
// ensure the schema exists before issuing queries.
func NewPostgresSessionStore(db DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

// Create inserts a new session. The session is validated first and an error
// is returned if the session ID already exists.
func (s *PostgresSessionStore) Create(ctx context.Context, sess *Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	transcriptJSON, err := json.Marshal(emptyTurns(sess.Transcript))
	if err != nil {
		return fmt.Errorf("store: marshal transcript: %w", err)
	}

	const query = `
		INSERT INTO interview_sessions (
			session_id, application_id, stage_type, status,
			candidate_name, language, transcript
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		sess.SessionID, sess.ApplicationID, sess.StageType, defaultStatus(sess.Status),
		sess.CandidateName, defaultLanguage(sess.Language), transcriptJSON,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: session %q already exists", sess.SessionID)
		}
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// Get retrieves a session by session ID. Returns (nil, nil) if not found.
func (s *PostgresSessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	const query = `
		SELECT session_id, application_id, stage_type, status,
		       candidate_name, language, transcript, candidate_profile,
		       skill_assessments, difficulty_level, competency_scores,
		       topics_covered, feedback_markdown, overall_score, trace_id,
		       created_at, updated_at
		FROM interview_sessions
		WHERE session_id = $1`

	var sess Session
	var transcriptJSON, profileJSON, assessmentsJSON, competencyJSON, topicsJSON []byte

	err := s.db.QueryRow(ctx, query, sessionID).Scan(
		&sess.SessionID, &sess.ApplicationID, &sess.StageType, &sess.Status,
		&sess.CandidateName, &sess.Language, &transcriptJSON, &profileJSON,
		&assessmentsJSON, &sess.DifficultyLevel, &competencyJSON,
		&topicsJSON, &sess.FeedbackMarkdown, &sess.OverallScore, &sess.TraceID,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get session %q: %w", sessionID, err)
	}

	if err := json.Unmarshal(transcriptJSON, &sess.Transcript); err != nil {
		return nil, fmt.Errorf("store: unmarshal transcript: %w", err)
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &sess.CandidateProfile); err != nil {
			return nil, fmt.Errorf("store: unmarshal candidate_profile: %w", err)
		}
	}
	if err := json.Unmarshal(assessmentsJSON, &sess.SkillAssessments); err != nil {
		return nil, fmt.Errorf("store: unmarshal skill_assessments: %w", err)
	}
	if err := json.Unmarshal(competencyJSON, &sess.CompetencyScores); err != nil {
		return nil, fmt.Errorf("store: unmarshal competency_scores: %w", err)
	}
	if err := json.Unmarshal(topicsJSON, &sess.TopicsCovered); err != nil {
		return nil, fmt.Errorf("store: unmarshal topics_covered: %w", err)
	}
	return &sess, nil
}

// SaveTranscript updates the transcript and status of an existing session.
func (s *PostgresSessionStore) SaveTranscript(ctx context.Context, sessionID string, transcript []types.Turn, status string) error {
	transcriptJSON, err := json.Marshal(emptyTurns(transcript))
	if err != nil {
		return fmt.Errorf("store: marshal transcript: %w", err)
	}

	const query = `
		UPDATE interview_sessions
		SET transcript = $2, status = $3, updated_at = now()
		WHERE session_id = $1
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query, sessionID, transcriptJSON, status).Scan(new(any))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("store: session %q not found", sessionID)
		}
		return fmt.Errorf("store: save transcript: %w", err)
	}
	return nil
}

// SetTraceID records the observability trace ID on the session.
func (s *PostgresSessionStore) SetTraceID(ctx context.Context, sessionID, traceID string) error {
	const query = `
		UPDATE interview_sessions
		SET trace_id = $2, updated_at = now()
		WHERE session_id = $1`
	if _, err := s.db.Exec(ctx, query, sessionID, traceID); err != nil {
		return fmt.Errorf("store: set trace id: %w", err)
	}
	return nil
}

// SaveResults writes the end-of-session derived state.
func (s *PostgresSessionStore) SaveResults(ctx context.Context, sessionID string, r Results) error {
	profileJSON, err := json.Marshal(r.CandidateProfile)
	if err != nil {
		return fmt.Errorf("store: marshal candidate_profile: %w", err)
	}
	assessmentsJSON, err := json.Marshal(emptyScores(r.SkillAssessments))
	if err != nil {
		return fmt.Errorf("store: marshal skill_assessments: %w", err)
	}
	competencyJSON, err := json.Marshal(emptyCompetency(r.CompetencyScores))
	if err != nil {
		return fmt.Errorf("store: marshal competency_scores: %w", err)
	}
	topicsJSON, err := json.Marshal(emptySlice(r.TopicsCovered))
	if err != nil {
		return fmt.Errorf("store: marshal topics_covered: %w", err)
	}

	const query = `
		UPDATE interview_sessions SET
			candidate_profile = $2, skill_assessments = $3,
			difficulty_level = $4, competency_scores = $5,
			topics_covered = $6, feedback_markdown = $7, overall_score = $8,
			updated_at = now()
		WHERE session_id = $1
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query, sessionID,
		profileJSON, assessmentsJSON, defaultDifficulty(r.DifficultyLevel),
		competencyJSON, topicsJSON, r.FeedbackMarkdown, r.OverallScore,
	).Scan(new(any))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("store: session %q not found", sessionID)
		}
		return fmt.Errorf("store: save results: %w", err)
	}
	return nil
}

// PostgresApplicationStore is an [ApplicationStore] backed by PostgreSQL.
type PostgresApplicationStore struct {
	db DB
}

// Compile-time interface checks. The store also feeds the cross-stage
// memory directly.
var (
	_ ApplicationStore          = (*PostgresApplicationStore)(nil)
	_ insights.ApplicationStore = (*PostgresApplicationStore)(nil)
)

// NewPostgresApplicationStore creates an application store over the given
// database connection or pool.
func NewPostgresApplicationStore(db DB) *PostgresApplicationStore {
	return &PostgresApplicationStore{db: db}
}

// Get retrieves an application by ID. Returns (nil, nil) if not found.
func (s *PostgresApplicationStore) Get(ctx context.Context, id string) (*Application, error) {
	const query = `
		SELECT id, user_id, job_role, type, status, current_stage,
		       job_description, resume_text, cross_stage_insights,
		       created_at, updated_at
		FROM interview_applications
		WHERE id = $1`

	var app Application
	var insightsJSON []byte

	err := s.db.QueryRow(ctx, query, id).Scan(
		&app.ID, &app.UserID, &app.JobRole, &app.Type, &app.Status, &app.CurrentStage,
		&app.JobDescription, &app.ResumeText, &insightsJSON,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get application %q: %w", id, err)
	}

	if err := json.Unmarshal(insightsJSON, &app.CrossStageInsights); err != nil {
		return nil, fmt.Errorf("store: unmarshal cross_stage_insights: %w", err)
	}
	return &app, nil
}

// CrossStageInsights returns the insights map for an application. A missing
// application yields an empty map.
func (s *PostgresApplicationStore) CrossStageInsights(ctx context.Context, applicationID string) (map[string]insights.StageInsights, error) {
	const query = `SELECT cross_stage_insights FROM interview_applications WHERE id = $1`

	var insightsJSON []byte
	err := s.db.QueryRow(ctx, query, applicationID).Scan(&insightsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return map[string]insights.StageInsights{}, nil
		}
		return nil, fmt.Errorf("store: get insights for %q: %w", applicationID, err)
	}

	var m map[string]insights.StageInsights
	if err := json.Unmarshal(insightsJSON, &m); err != nil {
		return nil, fmt.Errorf("store: unmarshal cross_stage_insights: %w", err)
	}
	return m, nil
}

// SaveCrossStageInsights replaces the insights map for an application.
func (s *PostgresApplicationStore) SaveCrossStageInsights(ctx context.Context, applicationID string, m map[string]insights.StageInsights) error {
	insightsJSON, err := json.Marshal(emptyInsights(m))
	if err != nil {
		return fmt.Errorf("store: marshal cross_stage_insights: %w", err)
	}

	const query = `
		UPDATE interview_applications
		SET cross_stage_insights = $2, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query, applicationID, insightsJSON).Scan(new(any))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("store: application %q not found", applicationID)
		}
		return fmt.Errorf("store: save insights: %w", err)
	}
	return nil
}

func defaultStatus(s string) string {
	if s == "" {
		return StatusPending
	}
	return s
}

func defaultLanguage(l string) string {
	if l == "" {
		return "en"
	}
	return l
}

func defaultDifficulty(d string) string {
	if d == "" {
		return "intermediate"
	}
	return d
}

// emptyTurns returns t if non-nil, otherwise an empty non-nil slice. This
// ensures JSON marshalling produces "[]" instead of "null".
func emptyTurns(t []types.Turn) []types.Turn {
	if t == nil {
		return []types.Turn{}
	}
	return t
}

func emptyScores(s []competency.TurnScore) []competency.TurnScore {
	if s == nil {
		return []competency.TurnScore{}
	}
	return s
}

func emptyCompetency(m map[string]competency.Score) map[string]competency.Score {
	if m == nil {
		return map[string]competency.Score{}
	}
	return m
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyInsights(m map[string]insights.StageInsights) map[string]insights.StageInsights {
	if m == nil {
		return map[string]insights.StageInsights{}
	}
	return m
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
