package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// maxPatternExamples caps the stored example list per pattern; the
// oldest example is evicted first.
const maxPatternExamples = 10

// Pattern is a recurring behavior observed across sessions: how often
// it came up and the latest examples of it.
type Pattern struct {
	ID          int64    `json:"id"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Frequency   int      `json:"frequency"`
	Examples    []string `json:"examples,omitempty"`
	FirstSeen   string   `json:"first_seen"`
	LastSeen    string   `json:"last_seen"`
}

// RecordPattern registers one occurrence of a pattern.
//
// The first observation creates the row at frequency 1; recurrences
// increment the frequency, append the example and refresh last_seen.
// The category is fixed at creation. Matching is exact on the
// description text.
func (s *Store) RecordPattern(description, category, example string) (*Pattern, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("memory: pattern: description is required")
	}
	example = strings.TrimSpace(example)

	var id int64
	var rawExamples string
	err := s.db.QueryRow(
		`SELECT id, examples FROM patterns WHERE description = ?`, description,
	).Scan(&id, &rawExamples)

	switch {
	case err == sql.ErrNoRows:
		var initial []string
		if example != "" {
			initial = []string{example}
		}
		_, err := s.execHook(s.db,
			`INSERT INTO patterns (description, category, examples) VALUES (?, ?, ?)`,
			description, strings.TrimSpace(category), encodeExamples(initial),
		)
		if isUniqueViolation(err) {
			// Lost a race with a concurrent record; run the update path.
			return s.RecordPattern(description, category, example)
		}
		if err != nil {
			return nil, fmt.Errorf("pattern insert: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("pattern lookup: %w", err)
	default:
		examples := decodeExamples(rawExamples)
		if example != "" {
			examples = append(examples, example)
			if len(examples) > maxPatternExamples {
				examples = examples[len(examples)-maxPatternExamples:]
			}
		}
		if _, err := s.execHook(s.db,
			`UPDATE patterns
			 SET frequency = frequency + 1,
			     examples = ?,
			     last_seen = datetime('now')
			 WHERE id = ?`,
			encodeExamples(examples), id,
		); err != nil {
			return nil, fmt.Errorf("pattern update: %w", err)
		}
	}

	s.noteWrite()
	return s.getPattern(description)
}

func (s *Store) getPattern(description string) (*Pattern, error) {
	row := s.db.QueryRow(
		`SELECT id, description, category, frequency, examples, first_seen, last_seen
		 FROM patterns WHERE description = ?`,
		description,
	)
	var p Pattern
	var rawExamples string
	if err := row.Scan(&p.ID, &p.Description, &p.Category, &p.Frequency, &rawExamples, &p.FirstSeen, &p.LastSeen); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.Examples = decodeExamples(rawExamples)
	return &p, nil
}

// TopPatterns returns the most frequent patterns, most recently seen
// first on ties.
func (s *Store) TopPatterns(limit int) ([]Pattern, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.queryItHook(s.db,
		`SELECT id, description, category, frequency, examples, first_seen, last_seen
		 FROM patterns
		 ORDER BY frequency DESC, datetime(last_seen) DESC, id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Pattern
	for rows.Next() {
		var p Pattern
		var rawExamples string
		if err := rows.Scan(&p.ID, &p.Description, &p.Category, &p.Frequency, &rawExamples, &p.FirstSeen, &p.LastSeen); err != nil {
			return nil, err
		}
		p.Examples = decodeExamples(rawExamples)
		results = append(results, p)
	}
	return results, rows.Err()
}

// encodeExamples serializes the example list; nil encodes as the empty
// JSON array so the column stays parseable.
func encodeExamples(examples []string) string {
	if len(examples) == 0 {
		return "[]"
	}
	b, err := json.Marshal(examples)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeExamples(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var examples []string
	if err := json.Unmarshal([]byte(raw), &examples); err != nil {
		return nil
	}
	return examples
}
