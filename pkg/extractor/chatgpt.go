package extractor

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/fradelfo/distill/pkg/domain"
)

// chatGPTExtractor reads chatgpt.com conversations. Turns are marked with
// an explicit data-message-author-role attribute, which makes role
// determination exact.
type chatGPTExtractor struct{}

func (e *chatGPTExtractor) Name() string { return "chatgpt" }

func (e *chatGPTExtractor) Match(host string) bool {
	return host == "chatgpt.com" || host == "chat.openai.com" ||
		strings.HasSuffix(host, ".chatgpt.com")
}

func (e *chatGPTExtractor) Extract(doc *html.Node) ([]domain.Message, error) {
	turns := findAll(doc, func(n *html.Node) bool {
		role := attrValue(n, "data-message-author-role")
		return role == "user" || role == "assistant"
	})

	var msgs []domain.Message
	for _, turn := range turns {
		role := domain.RoleAssistant
		if attrValue(turn, "data-message-author-role") == "user" {
			role = domain.RoleUser
		}
		if m, ok := newMessage(role, turn); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}
