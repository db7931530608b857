package memory

import "fmt"

// ─── Types ───────────────────────────────────────────────────────────────────

// Relation is a typed directional edge between two experiences.
type Relation struct {
	ID        int64  `json:"id"`
	FromID    int64  `json:"from_id"`
	ToID      int64  `json:"to_id"`
	Type      string `json:"type"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

// AddRelationParams holds input for creating a new relation.
type AddRelationParams struct {
	FromID        int64  `json:"from_id"`
	ToID          int64  `json:"to_id"`
	Type          string `json:"type"`
	Note          string `json:"note,omitempty"`
	Bidirectional bool   `json:"bidirectional,omitempty"`
}

// RelatedNode is one experience reached through graph traversal,
// carrying edge metadata and a context excerpt instead of full text.
type RelatedNode struct {
	ID           int64  `json:"id"`
	Context      string `json:"context"`
	Type         string `json:"type"`
	Project      string `json:"project,omitempty"`
	CreatedAt    string `json:"created_at"`
	RelationType string `json:"relation_type"`
	Direction    string `json:"direction"` // "outgoing" or "incoming"
	Note         string `json:"note,omitempty"`
	Depth        int    `json:"depth"`
}

// RelatedGraph holds the full traversal output around a root experience.
type RelatedGraph struct {
	Root       Experience    `json:"root"`
	Connected  []RelatedNode `json:"connected"`
	TotalNodes int           `json:"total_nodes"`
	MaxDepth   int           `json:"max_depth"`
}

// ─── Operations ──────────────────────────────────────────────────────────────

// AddRelation creates a typed directional edge between two experiences.
// If Bidirectional is true, both directions are created atomically.
// Returns the IDs of created relations (1 or 2).
func (s *Store) AddRelation(p AddRelationParams) ([]int64, error) {
	if p.FromID == p.ToID {
		return nil, fmt.Errorf("cannot create self-relation: from_id and to_id are both %d", p.FromID)
	}

	if p.Type == "" {
		p.Type = "relates_to"
	}

	// Both endpoints must exist and be active
	for _, id := range []int64{p.FromID, p.ToID} {
		row, err := s.queryItHook(s.db,
			`SELECT 1 FROM experiences WHERE id = ? AND deleted_at IS NULL`, id)
		if err != nil {
			return nil, fmt.Errorf("checking experience %d: %w", id, err)
		}
		found := row.Next()
		row.Close()
		if !found {
			return nil, fmt.Errorf("experience %d not found or is deleted", id)
		}
	}

	note := nullableString(p.Note)

	if !p.Bidirectional {
		res, err := s.execHook(s.db,
			`INSERT INTO relations (from_id, to_id, type, note) VALUES (?, ?, ?, ?)`,
			p.FromID, p.ToID, p.Type, note,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("relation already exists: %d → %d (%s)", p.FromID, p.ToID, p.Type)
			}
			return nil, fmt.Errorf("creating relation: %w", err)
		}
		id, _ := res.LastInsertId()
		s.noteWrite()
		return []int64{id}, nil
	}

	tx, err := s.beginTxHook()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res1, err := s.execHook(tx,
		`INSERT INTO relations (from_id, to_id, type, note) VALUES (?, ?, ?, ?)`,
		p.FromID, p.ToID, p.Type, note,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("relation already exists: %d → %d (%s)", p.FromID, p.ToID, p.Type)
		}
		return nil, fmt.Errorf("creating forward relation: %w", err)
	}

	res2, err := s.execHook(tx,
		`INSERT INTO relations (from_id, to_id, type, note) VALUES (?, ?, ?, ?)`,
		p.ToID, p.FromID, p.Type, note,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("reverse relation already exists: %d → %d (%s)", p.ToID, p.FromID, p.Type)
		}
		return nil, fmt.Errorf("creating reverse relation: %w", err)
	}

	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	id1, _ := res1.LastInsertId()
	id2, _ := res2.LastInsertId()
	s.noteWrite()
	return []int64{id1, id2}, nil
}

// RemoveRelation hard-deletes a relation by its ID.
func (s *Store) RemoveRelation(id int64) error {
	res, err := s.execHook(s.db, `DELETE FROM relations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting relation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("relation %d not found", id)
	}
	s.noteWrite()
	return nil
}

// GetRelations returns all relations where the experience is either
// source or target.
func (s *Store) GetRelations(experienceID int64) ([]Relation, error) {
	rows, err := s.queryHook(s.db,
		`SELECT id, from_id, to_id, type, COALESCE(note, ''), created_at
		 FROM relations
		 WHERE from_id = ? OR to_id = ?
		 ORDER BY created_at ASC`,
		experienceID, experienceID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying relations: %w", err)
	}
	defer rows.Close()

	var result []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &r.Note, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning relation: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// RelatedExperiences traverses the relation graph from a starting
// experience using BFS and returns connected nodes with metadata only.
// Default depth is 2, max is 5. Cycle detection prevents loops.
// Soft-deleted nodes are invisible; paths through them are broken.
func (s *Store) RelatedExperiences(experienceID int64, maxDepth int) (*RelatedGraph, error) {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	if maxDepth > 5 {
		maxDepth = 5
	}

	root, err := s.GetExperience(experienceID)
	if err != nil {
		return nil, fmt.Errorf("root experience %d: %w", experienceID, err)
	}
	if root == nil {
		return nil, fmt.Errorf("experience %d not found or is deleted", experienceID)
	}

	type queueItem struct {
		id    int64
		depth int
	}

	visited := map[int64]bool{experienceID: true}
	queue := []queueItem{{id: experienceID, depth: 0}}
	var connected []RelatedNode
	actualMaxDepth := 0

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		rels, err := s.GetRelations(current.id)
		if err != nil {
			return nil, fmt.Errorf("getting relations for %d: %w", current.id, err)
		}

		for _, rel := range rels {
			otherID := rel.ToID
			direction := "outgoing"
			if rel.ToID == current.id {
				otherID = rel.FromID
				direction = "incoming"
			}

			if visited[otherID] {
				continue
			}
			visited[otherID] = true

			row, err := s.queryItHook(s.db,
				`SELECT id, context, type, project, created_at
				 FROM experiences WHERE id = ? AND deleted_at IS NULL`, otherID)
			if err != nil {
				continue
			}
			// Edges may outlive their endpoints; skip nodes forgotten since.
			if !row.Next() {
				row.Close()
				continue
			}

			var node RelatedNode
			if err := row.Scan(&node.ID, &node.Context, &node.Type, &node.Project, &node.CreatedAt); err != nil {
				row.Close()
				continue
			}
			row.Close()

			node.Context = contextPrefix(node.Context, compactContextLen)
			nodeDepth := current.depth + 1
			node.RelationType = rel.Type
			node.Direction = direction
			node.Note = rel.Note
			node.Depth = nodeDepth

			connected = append(connected, node)

			if nodeDepth > actualMaxDepth {
				actualMaxDepth = nodeDepth
			}

			queue = append(queue, queueItem{id: otherID, depth: nodeDepth})
		}
	}

	return &RelatedGraph{
		Root:       *root,
		Connected:  connected,
		TotalNodes: len(connected),
		MaxDepth:   actualMaxDepth,
	}, nil
}
