package memory

import (
	"fmt"

	"github.com/google/uuid"
)

// exportVersion tags snapshots so a future format change stays
// detectable on import.
const exportVersion = "1"

// ExportData is the full serializable dump of the memory database,
// soft-deleted rows included.
type ExportData struct {
	Version     string       `json:"version"`
	SnapshotID  string       `json:"snapshot_id"`
	ExportedAt  string       `json:"exported_at"`
	Experiences []Experience `json:"experiences,omitempty"`
	Preferences []Preference `json:"preferences,omitempty"`
	Patterns    []Pattern    `json:"patterns,omitempty"`
	Relations   []Relation   `json:"relations,omitempty"`
}

// ImportResult holds counts of imported records. Skipped counts rows
// that already existed or whose relation endpoints were missing.
type ImportResult struct {
	ExperiencesImported int `json:"experiences_imported"`
	PreferencesImported int `json:"preferences_imported"`
	PatternsImported    int `json:"patterns_imported"`
	RelationsImported   int `json:"relations_imported"`
	Skipped             int `json:"skipped"`
}

// Export dumps the entire memory database as a serializable snapshot.
func (s *Store) Export() (*ExportData, error) {
	data := &ExportData{
		Version:    exportVersion,
		SnapshotID: uuid.NewString(),
		ExportedAt: Now(),
	}

	experiences, err := s.queryExperiences(
		`SELECT ` + experienceColumns + ` FROM experiences ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("export experiences: %w", err)
	}
	data.Experiences = experiences

	prefRows, err := s.queryItHook(s.db,
		`SELECT id, key, value, scope, confidence, source, confirmed_count, last_confirmed_at, created_at, updated_at
		 FROM preferences ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("export preferences: %w", err)
	}
	defer func() { _ = prefRows.Close() }()
	for prefRows.Next() {
		var p Preference
		if err := prefRows.Scan(
			&p.ID, &p.Key, &p.Value, &p.Scope, &p.Confidence, &p.Source,
			&p.ConfirmedCount, &p.LastConfirmedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		data.Preferences = append(data.Preferences, p)
	}
	if err := prefRows.Err(); err != nil {
		return nil, err
	}

	patternRows, err := s.queryItHook(s.db,
		`SELECT id, description, category, frequency, examples, first_seen, last_seen
		 FROM patterns ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("export patterns: %w", err)
	}
	defer func() { _ = patternRows.Close() }()
	for patternRows.Next() {
		var p Pattern
		var rawExamples string
		if err := patternRows.Scan(&p.ID, &p.Description, &p.Category, &p.Frequency, &rawExamples, &p.FirstSeen, &p.LastSeen); err != nil {
			return nil, err
		}
		p.Examples = decodeExamples(rawExamples)
		data.Patterns = append(data.Patterns, p)
	}
	if err := patternRows.Err(); err != nil {
		return nil, err
	}

	relRows, err := s.queryItHook(s.db,
		`SELECT id, from_id, to_id, type, COALESCE(note, ''), created_at FROM relations ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("export relations: %w", err)
	}
	defer func() { _ = relRows.Close() }()
	for relRows.Next() {
		var r Relation
		if err := relRows.Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &r.Note, &r.CreatedAt); err != nil {
			return nil, err
		}
		data.Relations = append(data.Relations, r)
	}
	if err := relRows.Err(); err != nil {
		return nil, err
	}

	return data, nil
}

// Import loads a snapshot into the memory database atomically.
//
// Experiences keep their snapshot IDs so relations stay attached; rows
// whose ID is already taken are skipped rather than renumbered.
// Preferences and patterns merge on their natural keys. A relation
// whose endpoints are missing after the experience pass is skipped.
func (s *Store) Import(data *ExportData) (*ImportResult, error) {
	tx, err := s.beginTxHook()
	if err != nil {
		return nil, fmt.Errorf("import: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result := &ImportResult{}

	for _, e := range data.Experiences {
		res, err := s.execHook(tx,
			`INSERT OR IGNORE INTO experiences (id, type, context, action, result, success, tags, project, topic_key, normalized_hash, duplicate_count, revision_count, last_seen_at, created_at, updated_at, deleted_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Type, e.Context, e.Action, e.Result, e.Success, e.Tags, e.Project,
			nullableString(normalizeTopicKey(derefString(e.TopicKey))),
			Fingerprint(e.Context, e.Action, e.Result),
			maxInt(e.DuplicateCount, 1),
			maxInt(e.RevisionCount, 1),
			e.LastSeenAt, e.CreatedAt, e.UpdatedAt, e.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("import experience %d: %w", e.ID, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			result.Skipped++
			continue
		}
		result.ExperiencesImported++
	}

	for _, p := range data.Preferences {
		res, err := s.execHook(tx,
			`INSERT OR IGNORE INTO preferences (key, value, scope, confidence, source, confirmed_count, last_confirmed_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Key, p.Value, p.Scope, p.Confidence, p.Source,
			maxInt(p.ConfirmedCount, 1), p.LastConfirmedAt, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("import preference %s/%s: %w", p.Scope, p.Key, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			result.Skipped++
			continue
		}
		result.PreferencesImported++
	}

	for _, p := range data.Patterns {
		res, err := s.execHook(tx,
			`INSERT OR IGNORE INTO patterns (description, category, frequency, examples, first_seen, last_seen)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.Description, p.Category, maxInt(p.Frequency, 1), encodeExamples(p.Examples), p.FirstSeen, p.LastSeen,
		)
		if err != nil {
			return nil, fmt.Errorf("import pattern %q: %w", Truncate(p.Description, 40), err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			result.Skipped++
			continue
		}
		result.PatternsImported++
	}

	for _, r := range data.Relations {
		var exists int
		err := tx.QueryRow(
			`SELECT COUNT(*) FROM experiences WHERE id IN (?, ?)`, r.FromID, r.ToID,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("import relation %d: %w", r.ID, err)
		}
		if exists != 2 {
			result.Skipped++
			continue
		}
		res, err := s.execHook(tx,
			`INSERT OR IGNORE INTO relations (from_id, to_id, type, note, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			r.FromID, r.ToID, r.Type, nullableString(r.Note), r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("import relation %d: %w", r.ID, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			result.Skipped++
			continue
		}
		result.RelationsImported++
	}

	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("import: commit: %w", err)
	}
	s.noteWrite()
	return result, nil
}
