package memory

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// learningHeaderPattern matches the section headers capture looks for.
var learningHeaderPattern = regexp.MustCompile(
	`(?im)^#{2,3}\s+(?:Key\s+Learnings?|Learnings?|Lessons\s+Learned|Takeaways?):?\s*$`,
)

// minLearningLength is the minimum character length for a valid learning.
const minLearningLength = 20

// maxCapturedLearnings caps how many items one capture call saves.
const maxCapturedLearnings = 10

// CaptureParams holds the input for automatic learning capture.
type CaptureParams struct {
	Content string `json:"content"`
	Project string `json:"project,omitempty"`
	Source  string `json:"source,omitempty"`
}

// CaptureResult holds the output of automatic learning capture.
type CaptureResult struct {
	Extracted  int     `json:"extracted"`
	Saved      int     `json:"saved"`
	Duplicates int     `json:"duplicates"`
	IDs        []int64 `json:"ids,omitempty"`
}

// ExtractLearnings parses structured learning items from text. It
// looks for "## Key Learnings" style sections and collects numbered or
// bullet items long enough to stand on their own.
func ExtractLearnings(text string) []string {
	matches := learningHeaderPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	// Process sections in reverse — use first valid one (most recent)
	for i := len(matches) - 1; i >= 0; i-- {
		sectionStart := matches[i][1]
		sectionText := text[sectionStart:]

		// Cut off at next major section header
		if nextHeader := regexp.MustCompile(`\n#{1,3} `).FindStringIndex(sectionText); nextHeader != nil {
			sectionText = sectionText[:nextHeader[0]]
		}

		var learnings []string

		// Try numbered items: "1. text" or "1) text"
		numbered := regexp.MustCompile(`(?m)^\s*\d+[.)]\s+(.+)`).FindAllStringSubmatch(sectionText, -1)
		if len(numbered) > 0 {
			for _, m := range numbered {
				cleaned := cleanMarkdown(m[1])
				if len(cleaned) >= minLearningLength {
					learnings = append(learnings, cleaned)
				}
			}
		}

		// Fall back to bullet items
		if len(learnings) == 0 {
			bullets := regexp.MustCompile(`(?m)^\s*[-*]\s+(.+)`).FindAllStringSubmatch(sectionText, -1)
			for _, m := range bullets {
				cleaned := cleanMarkdown(m[1])
				if len(cleaned) >= minLearningLength {
					learnings = append(learnings, cleaned)
				}
			}
		}

		if len(learnings) > 0 {
			if len(learnings) > maxCapturedLearnings {
				learnings = learnings[:maxCapturedLearnings]
			}
			return learnings
		}
	}

	return nil
}

// cleanMarkdown strips basic markdown formatting.
func cleanMarkdown(text string) string {
	text = regexp.MustCompile(`\*\*([^*]+)\*\*`).ReplaceAllString(text, "$1") // bold
	text = regexp.MustCompile("`([^`]+)`").ReplaceAllString(text, "$1")       // inline code
	text = regexp.MustCompile(`\*([^*]+)\*`).ReplaceAllString(text, "$1")     // italic
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// CaptureLearnings extracts learnings from text and saves each one as
// an auto_capture experience. Unlike Record's time-boxed dedup, a
// learning whose fingerprint already exists anywhere in the active set
// for the project is skipped outright, whatever its age.
func (s *Store) CaptureLearnings(p CaptureParams) (*CaptureResult, error) {
	result := &CaptureResult{}

	learnings := ExtractLearnings(p.Content)
	result.Extracted = len(learnings)

	if len(learnings) == 0 {
		return result, nil
	}

	project := strings.TrimSpace(p.Project)
	source := strings.TrimSpace(p.Source)
	if source == "" {
		source = "session notes"
	}
	action := "captured automatically"
	captureResult := "noted from " + source

	for _, learning := range learnings {
		normHash := Fingerprint(learning, action, captureResult)
		var existingID int64
		err := s.db.QueryRow(
			`SELECT id FROM experiences
			 WHERE normalized_hash = ?
			   AND project = ?
			   AND deleted_at IS NULL
			 LIMIT 1`,
			normHash, project,
		).Scan(&existingID)

		if err == nil {
			result.Duplicates++
			continue
		}
		if err != sql.ErrNoRows {
			return result, fmt.Errorf("capture lookup: %w", err)
		}

		id, _, err := s.Record(RecordParams{
			Type:    TypeAutoCapture,
			Context: learning,
			Action:  action,
			Result:  captureResult,
			Success: true,
			Project: project,
		})
		if err != nil {
			return result, fmt.Errorf("capture save: %w", err)
		}
		result.Saved++
		result.IDs = append(result.IDs, id)
	}

	return result, nil
}
