package extractor

import (
	"golang.org/x/net/html"

	"github.com/fradelfo/distill/pkg/domain"
)

// claudeExtractor reads claude.ai conversations. The UI exposes a
// data-testid on user turns and distinguishing font-* classes on both
// turn kinds; the attribute is checked first, classes second.
type claudeExtractor struct{}

func (e *claudeExtractor) Name() string { return "claude" }

func (e *claudeExtractor) Match(host string) bool {
	return host == "claude.ai" || host == "www.claude.ai"
}

func (e *claudeExtractor) Extract(doc *html.Node) ([]domain.Message, error) {
	turns := findAll(doc, func(n *html.Node) bool {
		if attrValue(n, "data-testid") == "user-message" {
			return true
		}
		return classContains(n, "font-user-message") || classContains(n, "font-claude-message")
	})

	var msgs []domain.Message
	for _, turn := range turns {
		role := domain.RoleAssistant
		if attrValue(turn, "data-testid") == "user-message" || classContains(turn, "font-user-message") {
			role = domain.RoleUser
		}
		if m, ok := newMessage(role, turn); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}
