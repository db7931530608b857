package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ─── Ranking ─────────────────────────────────────────────────────────────────

// rankWeights holds the coefficients of the recall scoring formula.
// Relevance dominates, recency breaks near-ties between matches, and
// outcome nudges successful experiences above failed ones.
type rankWeights struct {
	Relevance  float64
	Recency    float64
	Outcome    float64
	ScopeBonus float64
}

// defaultRankWeights are the fixed production coefficients.
var defaultRankWeights = rankWeights{
	Relevance:  0.5,
	Recency:    0.3,
	Outcome:    0.2,
	ScopeBonus: 0.1,
}

// rankSignals are the per-candidate inputs to the scoring formula.
type rankSignals struct {
	Relevance   float64 // normalized match strength, best hit = 1.0
	Recency     float64 // 1/(1+days since creation)
	Outcome     float64 // 1.0 success, 0.5 failure
	SameProject bool    // candidate project equals the requested project
}

// rankScore combines the signals into a composite score.
func rankScore(w rankWeights, sig rankSignals) float64 {
	score := w.Relevance*sig.Relevance + w.Recency*sig.Recency + w.Outcome*sig.Outcome
	if sig.SameProject {
		score += w.ScopeBonus
	}
	return score
}

// normalizeRank maps FTS5 BM25 ranks (negative, lower is better) onto
// 0..1 with the best match of the result set at 1.0.
func normalizeRank(rank, best float64) float64 {
	if best >= 0 || rank >= 0 {
		return 0
	}
	return rank / best
}

func recencySignal(createdAt string, now time.Time) float64 {
	d := daysSince(createdAt, now)
	if d < 0 {
		return 0
	}
	return 1 / (1 + d)
}

func outcomeSignal(success bool) float64 {
	if success {
		return 1.0
	}
	return 0.5
}

// ─── Results ─────────────────────────────────────────────────────────────────

// RankedExperience is a recall hit with its composite score.
type RankedExperience struct {
	Experience
	Score     float64 `json:"score"`
	Relevance float64 `json:"relevance"`
}

// compactContextLen is the exact rune length of the context prefix in
// compact listings.
const compactContextLen = 120

// CompactExperience is the list-view projection of an experience: full
// metadata, context cut to a fixed-length prefix. Action and result
// stay behind a follow-up lookup of the full record.
type CompactExperience struct {
	ID             int64   `json:"id"`
	Type           string  `json:"type"`
	Context        string  `json:"context"`
	Success        bool    `json:"success"`
	Tags           string  `json:"tags,omitempty"`
	Project        string  `json:"project,omitempty"`
	TopicKey       *string `json:"topic_key,omitempty"`
	DuplicateCount int     `json:"duplicate_count"`
	RevisionCount  int     `json:"revision_count"`
	CreatedAt      string  `json:"created_at"`
}

// Compact returns the list-view projection of e.
func (e Experience) Compact() CompactExperience {
	return CompactExperience{
		ID:             e.ID,
		Type:           e.Type,
		Context:        contextPrefix(e.Context, compactContextLen),
		Success:        e.Success,
		Tags:           e.Tags,
		Project:        e.Project,
		TopicKey:       e.TopicKey,
		DuplicateCount: e.DuplicateCount,
		RevisionCount:  e.RevisionCount,
		CreatedAt:      e.CreatedAt,
	}
}

// contextPrefix returns at most n runes of s, with no ellipsis.
func contextPrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ─── Search ──────────────────────────────────────────────────────────────────

// candidateFetchCap bounds how many FTS hits are pulled for re-ranking.
const candidateFetchCap = 100

// Search runs ranked recall over active experiences.
//
// A non-empty project narrows candidates to that project plus global
// entries and grants same-project rows a scope bonus. Results are
// ordered by composite score, newest first on ties. An empty query, or
// a failing FTS query, falls back to the most recent experiences in
// plain recency order.
func (s *Store) Search(query, project string, limit int) ([]RankedExperience, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return s.searchRecent(project, limit)
	}

	fetch := limit * 10
	if fetch > candidateFetchCap {
		fetch = candidateFetchCap
	}

	sqlStr := `
		SELECT e.id, e.type, e.context, e.action, e.result, e.success, e.tags, e.project,
		       e.topic_key, e.duplicate_count, e.revision_count, e.last_seen_at, e.created_at, e.updated_at, e.deleted_at,
		       fts.rank
		FROM experiences_fts fts
		JOIN experiences e ON e.id = fts.rowid
		WHERE experiences_fts MATCH ? AND e.deleted_at IS NULL
	`
	args := []any{ftsQuery}

	if project != "" {
		sqlStr += ` AND (e.project = ? OR e.project = '')`
		args = append(args, project)
	}

	sqlStr += " ORDER BY fts.rank LIMIT ?"
	args = append(args, fetch)

	rows, err := s.queryItHook(s.db, sqlStr, args...)
	if err != nil {
		return s.searchRecent(project, limit)
	}
	defer func() { _ = rows.Close() }()

	type candidate struct {
		exp  Experience
		rank float64
	}
	var candidates []candidate
	best := 0.0
	for rows.Next() {
		var c candidate
		if err := rows.Scan(
			&c.exp.ID, &c.exp.Type, &c.exp.Context, &c.exp.Action, &c.exp.Result,
			&c.exp.Success, &c.exp.Tags, &c.exp.Project, &c.exp.TopicKey, &c.exp.DuplicateCount, &c.exp.RevisionCount,
			&c.exp.LastSeenAt, &c.exp.CreatedAt, &c.exp.UpdatedAt, &c.exp.DeletedAt,
			&c.rank,
		); err != nil {
			return nil, err
		}
		if c.rank < best {
			best = c.rank
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return s.searchRecent(project, limit)
	}

	now := time.Now().UTC()
	results := make([]RankedExperience, 0, len(candidates))
	for _, c := range candidates {
		relevance := normalizeRank(c.rank, best)
		sig := rankSignals{
			Relevance:   relevance,
			Recency:     recencySignal(c.exp.CreatedAt, now),
			Outcome:     outcomeSignal(c.exp.Success),
			SameProject: project != "" && c.exp.Project == project,
		}
		results = append(results, RankedExperience{
			Experience: c.exp,
			Score:      rankScore(defaultRankWeights, sig),
			Relevance:  relevance,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].CreatedAt != results[j].CreatedAt {
			return strings.Compare(results[i].CreatedAt, results[j].CreatedAt) > 0
		}
		return results[i].ID > results[j].ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// searchRecent returns the most recent experiences without FTS, used as
// fallback when the query is empty or the index misbehaves. Entries
// keep recency order; scores are computed for display only.
func (s *Store) searchRecent(project string, limit int) ([]RankedExperience, error) {
	sqlStr := `SELECT ` + experienceColumns + ` FROM experiences WHERE deleted_at IS NULL`
	var args []any

	if project != "" {
		sqlStr += ` AND (project = ? OR project = '')`
		args = append(args, project)
	}

	sqlStr += ` ORDER BY datetime(created_at) DESC, id DESC LIMIT ?`
	args = append(args, limit)

	experiences, err := s.queryExperiences(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search recent: %w", err)
	}

	now := time.Now().UTC()
	results := make([]RankedExperience, 0, len(experiences))
	for _, e := range experiences {
		sig := rankSignals{
			Recency:     recencySignal(e.CreatedAt, now),
			Outcome:     outcomeSignal(e.Success),
			SameProject: project != "" && e.Project == project,
		}
		results = append(results, RankedExperience{
			Experience: e,
			Score:      rankScore(defaultRankWeights, sig),
		})
	}
	return results, nil
}
