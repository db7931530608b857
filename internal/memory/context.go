package memory

import (
	"fmt"
	"strings"
)

// FormatBriefing returns a markdown summary of what the store knows:
// recent corrections, resolved preferences, top patterns and recent
// experiences. An empty string means there is nothing to brief on.
func (s *Store) FormatBriefing(project string) (string, error) {
	corrections, err := s.ExperiencesByType(TypeCorrection, project, 5)
	if err != nil {
		return "", err
	}

	preferences, err := s.MergedPreferences(project)
	if err != nil {
		return "", err
	}
	if len(preferences) > 10 {
		preferences = preferences[:10]
	}

	patterns, err := s.TopPatterns(5)
	if err != nil {
		return "", err
	}

	recent, err := s.RecentExperiences(project, 10)
	if err != nil {
		return "", err
	}

	if len(corrections) == 0 && len(preferences) == 0 && len(patterns) == 0 && len(recent) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("## Memory Briefing\n\n")
	if project != "" {
		fmt.Fprintf(&b, "Project: **%s** (plus global entries)\n\n", project)
	}

	if len(corrections) > 0 {
		b.WriteString("### Recent Corrections\n")
		for _, c := range corrections {
			fmt.Fprintf(&b, "- I did: %s → wanted: %s. Lesson: %s\n",
				Truncate(c.Context, 120), Truncate(c.Action, 120), Truncate(c.Result, 200))
		}
		b.WriteString("\n")
	}

	if len(preferences) > 0 {
		b.WriteString("### Preferences\n")
		for _, p := range preferences {
			fmt.Fprintf(&b, "- **%s**: %s (%.2f confidence, %s)\n",
				p.Key, Truncate(p.Value, 200), p.EffectiveConfidence, p.Origin)
		}
		b.WriteString("\n")
	}

	if len(patterns) > 0 {
		b.WriteString("### Patterns\n")
		for _, p := range patterns {
			fmt.Fprintf(&b, "- %s (seen %dx)\n", Truncate(p.Description, 200), p.Frequency)
		}
		b.WriteString("\n")
	}

	if len(recent) > 0 {
		b.WriteString("### Recent Experiences\n")
		for _, e := range recent {
			marker := "ok"
			if !e.Success {
				marker = "failed"
			}
			fmt.Fprintf(&b, "- #%d [%s/%s] %s\n", e.ID, e.Type, marker, Truncate(e.Context, 160))
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}
