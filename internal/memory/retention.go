package memory

import "fmt"

// MaintenanceParams selects which maintenance dimensions run. At least
// one threshold must be provided.
type MaintenanceParams struct {
	OlderThanDays    int     `json:"older_than_days,omitempty"`
	OnlyFailures     bool    `json:"only_failures,omitempty"`
	MinConfidence    float64 `json:"min_confidence,omitempty"`
	HasMinConfidence bool    `json:"-"`
}

// MaintenanceResult reports what maintenance removed, per dimension.
// A dimension that matched nothing reports zero; that is not an error.
type MaintenanceResult struct {
	ExperiencesPruned int `json:"experiences_pruned"`
	PreferencesPruned int `json:"preferences_pruned"`
}

// PruneOlderThan soft-deletes active experiences created more than the
// given number of days ago. With onlyFailures set, successful entries
// are kept regardless of age.
func (s *Store) PruneOlderThan(days int, onlyFailures bool) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("memory: prune: days must be positive")
	}

	query := `UPDATE experiences
		 SET deleted_at = datetime('now'),
		     updated_at = datetime('now')
		 WHERE deleted_at IS NULL
		   AND datetime(created_at) < datetime('now', ?)`
	if onlyFailures {
		query += ` AND success = 0`
	}

	res, err := s.execHook(s.db, query, fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune count: %w", err)
	}
	s.noteWrite()
	return int(n), nil
}

// Maintain runs the requested retention passes and finishes with a WAL
// checkpoint. Missing both thresholds is a validation error and leaves
// the store untouched.
func (s *Store) Maintain(p MaintenanceParams) (*MaintenanceResult, error) {
	if p.OlderThanDays <= 0 && !p.HasMinConfidence {
		return nil, fmt.Errorf("memory: maintenance: provide older_than_days or min_confidence")
	}

	result := &MaintenanceResult{}

	if p.OlderThanDays > 0 {
		n, err := s.PruneOlderThan(p.OlderThanDays, p.OnlyFailures)
		if err != nil {
			return nil, err
		}
		result.ExperiencesPruned = n
	}

	if p.HasMinConfidence {
		n, err := s.PrunePreferencesBelow(p.MinConfidence)
		if err != nil {
			return nil, err
		}
		result.PreferencesPruned = n
	}

	if err := s.Checkpoint(); err != nil {
		return nil, err
	}
	return result, nil
}
