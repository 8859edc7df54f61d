package domain

import (
	"regexp"
	"time"
)

const TitleMaxLength = 60

// Variable is a named placeholder in a prompt body, filled in at run time.
type Variable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Prompt is a reusable template distilled from a conversation.
// Invariant: Body references exactly the declared variables and no others.
type Prompt struct {
	ID          int64      `json:"id,omitempty"`
	CaptureID   string     `json:"capture_id,omitempty"`
	WorkspaceID string     `json:"workspace_id,omitempty"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Variables   []Variable `json:"variables"`
	Tags        []string   `json:"tags"`
	SourceSite  string     `json:"source_site,omitempty"`
	PrivacyMode Mode       `json:"privacy_mode,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([\p{L}_][\p{L}\p{N}_]*)\s*\}\}`)

// Placeholders returns the distinct placeholder names present in the body,
// in order of first appearance.
func (p *Prompt) Placeholders() []string {
	seen := map[string]struct{}{}
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(p.Body, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}
