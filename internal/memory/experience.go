package memory

import (
	"database/sql"
	"fmt"
	"strings"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Experience types.
const (
	TypeExperience     = "experience"
	TypeCorrection     = "correction"
	TypeInsight        = "insight"
	TypeAutoCapture    = "auto_capture"
	TypeSessionSummary = "session_summary"
)

// ValidTypes lists the accepted experience types.
func ValidTypes() []string {
	return []string{TypeExperience, TypeCorrection, TypeInsight, TypeAutoCapture, TypeSessionSummary}
}

// Experience is one remembered outcome: the situation the agent was in,
// what it did, and how that turned out.
type Experience struct {
	ID             int64   `json:"id"`
	Type           string  `json:"type"`
	Context        string  `json:"context"`
	Action         string  `json:"action"`
	Result         string  `json:"result"`
	Success        bool    `json:"success"`
	Tags           string  `json:"tags,omitempty"`
	Project        string  `json:"project,omitempty"`
	TopicKey       *string `json:"topic_key,omitempty"`
	DuplicateCount int     `json:"duplicate_count"`
	RevisionCount  int     `json:"revision_count"`
	LastSeenAt     *string `json:"last_seen_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	DeletedAt      *string `json:"deleted_at,omitempty"`
}

// RecordParams holds the input for recording an experience.
type RecordParams struct {
	Type     string   `json:"type,omitempty"`
	Context  string   `json:"context"`
	Action   string   `json:"action"`
	Result   string   `json:"result"`
	Success  bool     `json:"success"`
	Tags     []string `json:"tags,omitempty"`
	Project  string   `json:"project,omitempty"`
	TopicKey string   `json:"topic_key,omitempty"`
}

// RecordOutcome describes what Record did with the incoming experience.
type RecordOutcome string

// Record outcomes.
const (
	OutcomeCreated      RecordOutcome = "created"
	OutcomeDeduplicated RecordOutcome = "deduplicated"
	OutcomeUpserted     RecordOutcome = "upserted"
)

// ForgetParams selects experiences to soft-delete. At least one
// selector must be set.
type ForgetParams struct {
	ID      int64  `json:"id,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Project string `json:"project,omitempty"`
}

// TimelineEntry is an experience in the neighborhood of a focus row.
type TimelineEntry struct {
	Experience
	IsFocus bool `json:"is_focus"`
}

// timelineLimit caps the number of rows a timeline returns.
const timelineLimit = 20

func normalizeType(t string) (string, error) {
	v := strings.TrimSpace(strings.ToLower(t))
	if v == "" {
		return TypeExperience, nil
	}
	for _, known := range ValidTypes() {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("memory: unknown experience type %q", t)
}

// ─── Recording ───────────────────────────────────────────────────────────────

// Record stores an experience and reports what happened to it.
//
// Constraint order matters: a matching topic key wins over the dedup
// window. With a topic key that already has an active row for the same
// project, the row is rewritten in place (upserted). Otherwise an
// active row with the same fingerprint in the same project inside the
// dedup window absorbs the write (deduplicated). Only then is a new
// row inserted (created).
func (s *Store) Record(p RecordParams) (int64, RecordOutcome, error) {
	typ, err := normalizeType(p.Type)
	if err != nil {
		return 0, "", err
	}
	if strings.TrimSpace(p.Context) == "" {
		return 0, "", fmt.Errorf("memory: record: context is required")
	}

	context := p.Context
	if len(context) > s.cfg.MaxTextLength {
		context = context[:s.cfg.MaxTextLength] + "... [truncated]"
	}
	action := p.Action
	if len(action) > s.cfg.MaxTextLength {
		action = action[:s.cfg.MaxTextLength] + "... [truncated]"
	}
	result := p.Result
	if len(result) > s.cfg.MaxTextLength {
		result = result[:s.cfg.MaxTextLength] + "... [truncated]"
	}

	tags := joinTags(p.Tags)
	project := strings.TrimSpace(p.Project)
	topicKey := normalizeTopicKey(p.TopicKey)
	normHash := Fingerprint(context, action, result)

	// Topic key upsert: if topic_key matches, rewrite the existing row
	if topicKey != "" {
		var existingID int64
		err := s.db.QueryRow(
			`SELECT id FROM experiences
			 WHERE topic_key = ?
			   AND project = ?
			   AND deleted_at IS NULL
			 ORDER BY datetime(updated_at) DESC, datetime(created_at) DESC
			 LIMIT 1`,
			topicKey, project,
		).Scan(&existingID)
		if err == nil {
			if _, err := s.execHook(s.db,
				`UPDATE experiences
				 SET type = ?,
				     context = ?,
				     action = ?,
				     result = ?,
				     success = ?,
				     tags = ?,
				     normalized_hash = ?,
				     revision_count = revision_count + 1,
				     last_seen_at = datetime('now'),
				     updated_at = datetime('now')
				 WHERE id = ?`,
				typ, context, action, result, p.Success, tags, normHash, existingID,
			); err != nil {
				return 0, "", fmt.Errorf("record upsert: %w", err)
			}
			s.noteWrite()
			return existingID, OutcomeUpserted, nil
		}
		if err != sql.ErrNoRows {
			return 0, "", fmt.Errorf("record topic lookup: %w", err)
		}
	}

	// Deduplication: same fingerprint in the same project within the window
	window := dedupeWindowExpression(s.cfg.DedupeWindow)
	var existingID int64
	err = s.db.QueryRow(
		`SELECT id FROM experiences
		 WHERE normalized_hash = ?
		   AND project = ?
		   AND deleted_at IS NULL
		   AND datetime(created_at) >= datetime('now', ?)
		 ORDER BY created_at DESC
		 LIMIT 1`,
		normHash, project, window,
	).Scan(&existingID)
	if err == nil {
		if _, err := s.execHook(s.db,
			`UPDATE experiences
			 SET duplicate_count = duplicate_count + 1,
			     last_seen_at = datetime('now'),
			     updated_at = datetime('now')
			 WHERE id = ?`,
			existingID,
		); err != nil {
			return 0, "", fmt.Errorf("record dedupe: %w", err)
		}
		s.noteWrite()
		return existingID, OutcomeDeduplicated, nil
	}
	if err != sql.ErrNoRows {
		return 0, "", fmt.Errorf("record dedupe lookup: %w", err)
	}

	// Insert new experience
	res, err := s.execHook(s.db,
		`INSERT INTO experiences (type, context, action, result, success, tags, project, topic_key, normalized_hash, duplicate_count, revision_count, last_seen_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 1, datetime('now'), datetime('now'))`,
		typ, context, action, result, p.Success, tags, project, nullableString(topicKey), normHash,
	)
	if err != nil {
		return 0, "", fmt.Errorf("record insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", fmt.Errorf("record insert id: %w", err)
	}
	s.noteWrite()
	return id, OutcomeCreated, nil
}

// ─── Retrieval ───────────────────────────────────────────────────────────────

// GetExperience returns an active experience by ID, or nil when the ID
// is unknown or the row is soft-deleted.
func (s *Store) GetExperience(id int64) (*Experience, error) {
	row := s.db.QueryRow(
		`SELECT `+experienceColumns+`
		 FROM experiences WHERE id = ? AND deleted_at IS NULL`, id,
	)
	var e Experience
	if err := row.Scan(
		&e.ID, &e.Type, &e.Context, &e.Action, &e.Result,
		&e.Success, &e.Tags, &e.Project, &e.TopicKey, &e.DuplicateCount, &e.RevisionCount,
		&e.LastSeenAt, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// RecentExperiences returns the newest active experiences, optionally
// narrowed to one project plus global entries.
func (s *Store) RecentExperiences(project string, limit int) ([]Experience, error) {
	if limit <= 0 {
		limit = s.cfg.MaxContextItems
	}

	query := `SELECT ` + experienceColumns + ` FROM experiences WHERE deleted_at IS NULL`
	args := []any{}
	if project != "" {
		query += ` AND (project = ? OR project = '')`
		args = append(args, project)
	}
	query += ` ORDER BY datetime(created_at) DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return s.queryExperiences(query, args...)
}

// ExperiencesByType returns the newest active experiences of one type.
func (s *Store) ExperiencesByType(typ, project string, limit int) ([]Experience, error) {
	if limit <= 0 {
		limit = s.cfg.MaxContextItems
	}

	query := `SELECT ` + experienceColumns + ` FROM experiences WHERE deleted_at IS NULL AND type = ?`
	args := []any{typ}
	if project != "" {
		query += ` AND (project = ? OR project = '')`
		args = append(args, project)
	}
	query += ` ORDER BY datetime(created_at) DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return s.queryExperiences(query, args...)
}

// CountActiveExperiences returns the number of active experiences.
func (s *Store) CountActiveExperiences() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM experiences WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count experiences: %w", err)
	}
	return n, nil
}

// ─── Forgetting ──────────────────────────────────────────────────────────────

// Forget soft-deletes experiences matched by the given selectors.
//
// Each selector is counted against the active set as it stood before
// any delete in this call and the counts are summed, so a row matched
// by two selectors contributes twice to the returned total. The
// deletes themselves are idempotent. Tag matching is substring
// containment on the stored comma-joined tags column.
func (s *Store) Forget(p ForgetParams) (int, error) {
	tag := strings.TrimSpace(p.Tag)
	project := strings.TrimSpace(p.Project)
	if p.ID <= 0 && tag == "" && project == "" {
		return 0, fmt.Errorf("memory: forget: at least one of id, tag or project is required")
	}

	type selector struct {
		where string
		arg   any
	}
	var selectors []selector
	if p.ID > 0 {
		selectors = append(selectors, selector{"id = ?", p.ID})
	}
	if tag != "" {
		selectors = append(selectors, selector{"instr(tags, ?) > 0", tag})
	}
	if project != "" {
		selectors = append(selectors, selector{"project = ?", project})
	}

	tx, err := s.beginTxHook()
	if err != nil {
		return 0, fmt.Errorf("forget: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	counts := make([]int, len(selectors))
	for i, sel := range selectors {
		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM experiences WHERE deleted_at IS NULL AND `+sel.where, sel.arg,
		).Scan(&counts[i]); err != nil {
			return 0, fmt.Errorf("forget count: %w", err)
		}
	}

	total := 0
	for i, sel := range selectors {
		if _, err := s.execHook(tx,
			`UPDATE experiences
			 SET deleted_at = datetime('now'),
			     updated_at = datetime('now')
			 WHERE deleted_at IS NULL AND `+sel.where, sel.arg,
		); err != nil {
			return 0, fmt.Errorf("forget delete: %w", err)
		}
		total += counts[i]
	}

	if err := s.commitHook(tx); err != nil {
		return 0, fmt.Errorf("forget: commit: %w", err)
	}
	s.noteWrite()
	return total, nil
}

// ─── Timeline ────────────────────────────────────────────────────────────────

// Timeline returns the active experiences recorded within one hour of
// the given experience, oldest first, capped at timelineLimit. An
// unknown or deleted ID yields an empty result rather than an error.
func (s *Store) Timeline(id int64) ([]TimelineEntry, error) {
	focus, err := s.GetExperience(id)
	if err != nil {
		return nil, fmt.Errorf("timeline focus: %w", err)
	}
	if focus == nil {
		return nil, nil
	}

	neighbors, err := s.queryExperiences(
		`SELECT `+experienceColumns+`
		 FROM experiences
		 WHERE deleted_at IS NULL
		   AND datetime(created_at) >= datetime(?, '-1 hour')
		   AND datetime(created_at) <= datetime(?, '+1 hour')
		 ORDER BY datetime(created_at) ASC, id ASC
		 LIMIT ?`,
		focus.CreatedAt, focus.CreatedAt, timelineLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("timeline window: %w", err)
	}

	entries := make([]TimelineEntry, 0, len(neighbors))
	for _, e := range neighbors {
		entries = append(entries, TimelineEntry{Experience: e, IsFocus: e.ID == id})
	}
	return entries, nil
}
