package memory

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// ScopeGlobal is the scope label for user-wide preferences. Any other
// scope value names a project.
const ScopeGlobal = "global"

// Confidence schedule: preferences start low and earn trust through
// re-affirmation, one step per confirmation, capped at certainty.
const (
	initialConfidence = 0.3
	confidenceStep    = 0.1
)

// Preference is a durable statement about how the user wants things
// done, with a confidence that grows on re-affirmation and decays with
// staleness at read time.
type Preference struct {
	ID              int64   `json:"id"`
	Key             string  `json:"key"`
	Value           string  `json:"value"`
	Scope           string  `json:"scope"`
	Confidence      float64 `json:"confidence"`
	Source          string  `json:"source,omitempty"`
	ConfirmedCount  int     `json:"confirmed_count"`
	LastConfirmedAt *string `json:"last_confirmed_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// MergedPreference is a preference seen through project resolution:
// decay applied and its origin recorded.
type MergedPreference struct {
	Preference
	Origin              string  `json:"origin"` // "global" or "project"
	EffectiveConfidence float64 `json:"effective_confidence"`
}

// ─── Affirmation ─────────────────────────────────────────────────────────────

// AffirmPreference records a preference or re-affirms an existing one.
//
// A new (key, scope) pair starts at confidence 0.3 with one
// confirmation. Re-affirming overwrites value and source, bumps the
// confirmation count and recomputes confidence from the count as it
// stood before this call: min(1.0, 0.3 + count*0.1). Stored confidence
// never decreases through affirmation.
func (s *Store) AffirmPreference(key, value, scope, source string) (*Preference, error) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return nil, fmt.Errorf("memory: preference: key is required")
	}
	if value == "" {
		return nil, fmt.Errorf("memory: preference: value is required")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = ScopeGlobal
	}

	var id int64
	var count int
	err := s.db.QueryRow(
		`SELECT id, confirmed_count FROM preferences WHERE key = ? AND scope = ?`,
		key, scope,
	).Scan(&id, &count)

	switch {
	case err == sql.ErrNoRows:
		_, err := s.execHook(s.db,
			`INSERT INTO preferences (key, value, scope, confidence, source, confirmed_count, last_confirmed_at)
			 VALUES (?, ?, ?, ?, ?, 1, datetime('now'))`,
			key, value, scope, initialConfidence, source,
		)
		if isUniqueViolation(err) {
			// Lost a race with a concurrent affirm; run the update path.
			return s.AffirmPreference(key, value, scope, source)
		}
		if err != nil {
			return nil, fmt.Errorf("preference insert: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("preference lookup: %w", err)
	default:
		confidence := math.Min(1.0, initialConfidence+float64(count)*confidenceStep)
		if _, err := s.execHook(s.db,
			`UPDATE preferences
			 SET value = ?,
			     source = ?,
			     confidence = ?,
			     confirmed_count = confirmed_count + 1,
			     last_confirmed_at = datetime('now'),
			     updated_at = datetime('now')
			 WHERE id = ?`,
			value, source, confidence, id,
		); err != nil {
			return nil, fmt.Errorf("preference update: %w", err)
		}
	}

	s.noteWrite()
	return s.getPreference(key, scope)
}

func (s *Store) getPreference(key, scope string) (*Preference, error) {
	row := s.db.QueryRow(
		`SELECT id, key, value, scope, confidence, source, confirmed_count, last_confirmed_at, created_at, updated_at
		 FROM preferences WHERE key = ? AND scope = ?`,
		key, scope,
	)
	var p Preference
	if err := row.Scan(
		&p.ID, &p.Key, &p.Value, &p.Scope, &p.Confidence, &p.Source,
		&p.ConfirmedCount, &p.LastConfirmedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ─── Decay ───────────────────────────────────────────────────────────────────

// decayFactor maps the age of the last confirmation onto the decay
// staircase: ≤30 days full trust, ≤90 slightly faded, ≤180 noticeably
// faded, anything older or unknown half trust. Computed in Go at read
// time; modernc.org/sqlite has no pow() and the staircase stays
// testable as a plain function.
func decayFactor(lastConfirmedAt *string, now time.Time) float64 {
	if lastConfirmedAt == nil {
		return 0.5
	}
	d := daysSince(*lastConfirmedAt, now)
	switch {
	case d < 0:
		return 0.5
	case d <= 30:
		return 1.0
	case d <= 90:
		return 0.9
	case d <= 180:
		return 0.7
	default:
		return 0.5
	}
}

// EffectiveConfidence applies age decay to the stored confidence,
// rounded to two decimals. The stored value is never modified.
func EffectiveConfidence(p Preference, now time.Time) float64 {
	return math.Round(p.Confidence*decayFactor(p.LastConfirmedAt, now)*100) / 100
}

// ─── Retrieval ───────────────────────────────────────────────────────────────

// PreferencesForScope returns all preferences in one scope, highest
// stored confidence first.
func (s *Store) PreferencesForScope(scope string) ([]Preference, error) {
	rows, err := s.queryItHook(s.db,
		`SELECT id, key, value, scope, confidence, source, confirmed_count, last_confirmed_at, created_at, updated_at
		 FROM preferences WHERE scope = ?
		 ORDER BY confidence DESC, key ASC`,
		scope,
	)
	if err != nil {
		return nil, fmt.Errorf("preferences for scope: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Preference
	for rows.Next() {
		var p Preference
		if err := rows.Scan(
			&p.ID, &p.Key, &p.Value, &p.Scope, &p.Confidence, &p.Source,
			&p.ConfirmedCount, &p.LastConfirmedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// GlobalPreferences returns all user-wide preferences.
func (s *Store) GlobalPreferences() ([]Preference, error) {
	return s.PreferencesForScope(ScopeGlobal)
}

// MergedPreferences resolves preferences for a project: global entries
// overlaid with project entries, where a project entry replaces the
// global one for the same key entirely. Results carry their origin and
// are ordered by effective (decay-applied) confidence.
func (s *Store) MergedPreferences(project string) ([]MergedPreference, error) {
	global, err := s.GlobalPreferences()
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]MergedPreference, len(global))
	for _, p := range global {
		byKey[p.Key] = MergedPreference{Preference: p, Origin: "global"}
	}

	project = strings.TrimSpace(project)
	if project != "" && project != ScopeGlobal {
		scoped, err := s.PreferencesForScope(project)
		if err != nil {
			return nil, err
		}
		for _, p := range scoped {
			byKey[p.Key] = MergedPreference{Preference: p, Origin: "project"}
		}
	}

	now := time.Now().UTC()
	merged := make([]MergedPreference, 0, len(byKey))
	for _, m := range byKey {
		m.EffectiveConfidence = EffectiveConfidence(m.Preference, now)
		merged = append(merged, m)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].EffectiveConfidence != merged[j].EffectiveConfidence {
			return merged[i].EffectiveConfidence > merged[j].EffectiveConfidence
		}
		return merged[i].Key < merged[j].Key
	})
	return merged, nil
}

// ─── Pruning ─────────────────────────────────────────────────────────────────

// PrunePreferencesBelow hard-deletes preferences whose stored (not
// effective) confidence lies below min.
func (s *Store) PrunePreferencesBelow(min float64) (int, error) {
	if min <= 0 || min > 1 {
		return 0, fmt.Errorf("memory: preference prune: min confidence must be in (0, 1]")
	}
	res, err := s.execHook(s.db, `DELETE FROM preferences WHERE confidence < ?`, min)
	if err != nil {
		return 0, fmt.Errorf("preference prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("preference prune count: %w", err)
	}
	s.noteWrite()
	return int(n), nil
}
