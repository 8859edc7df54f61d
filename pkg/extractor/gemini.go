package extractor

import (
	"golang.org/x/net/html"

	"github.com/fradelfo/distill/pkg/domain"
)

// geminiExtractor reads gemini.google.com conversations, which render
// turns as <user-query> and <model-response> custom elements.
type geminiExtractor struct{}

func (e *geminiExtractor) Name() string { return "gemini" }

func (e *geminiExtractor) Match(host string) bool {
	return host == "gemini.google.com" || host == "bard.google.com"
}

func (e *geminiExtractor) Extract(doc *html.Node) ([]domain.Message, error) {
	turns := findAll(doc, func(n *html.Node) bool {
		return n.Data == "user-query" || n.Data == "model-response"
	})

	var msgs []domain.Message
	for _, turn := range turns {
		role := domain.RoleAssistant
		if turn.Data == "user-query" {
			role = domain.RoleUser
		}
		if m, ok := newMessage(role, turn); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}
