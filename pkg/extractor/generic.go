package extractor

import (
	"strings"

	"github.com/samber/lo"
	"golang.org/x/net/html"

	"github.com/fradelfo/distill/pkg/domain"
)

var (
	userKeywords      = []string{"user", "human", "question"}
	assistantKeywords = []string{"assistant", "bot", "model", "agent", "answer", "response"}
)

// genericExtractor guesses message boundaries on unknown chat UIs from
// structural hints: role-bearing attribute values and class-name keywords.
// Results are inherently low confidence; callers treat them accordingly.
type genericExtractor struct{}

func (e *genericExtractor) Name() string { return GenericName }

func (e *genericExtractor) Match(string) bool { return true }

func (e *genericExtractor) Extract(doc *html.Node) ([]domain.Message, error) {
	candidates := findAll(doc, func(n *html.Node) bool {
		_, ok := guessRole(n)
		return ok
	})

	msgs := lo.FilterMap(candidates, func(n *html.Node, _ int) (domain.Message, bool) {
		role, _ := guessRole(n)
		return newMessage(role, n)
	})

	// A single role repeated throughout is more likely a false positive
	// (e.g. every element carries a "response" class) than a chat.
	roles := lo.Uniq(lo.Map(msgs, func(m domain.Message, _ int) domain.Role { return m.Role }))
	if len(msgs) > 1 && len(roles) < 2 {
		return nil, nil
	}
	return msgs, nil
}

// guessRole checks explicit role-ish attributes first, then class-name
// keywords. Matching both user and assistant hints disqualifies the node.
func guessRole(n *html.Node) (domain.Role, bool) {
	for _, key := range []string{"data-role", "data-message-role", "data-author", "role"} {
		switch strings.ToLower(attrValue(n, key)) {
		case "user", "human":
			return domain.RoleUser, true
		case "assistant", "bot", "model":
			return domain.RoleAssistant, true
		}
	}

	user := hasAnyKeyword(n, userKeywords)
	assistant := hasAnyKeyword(n, assistantKeywords)
	switch {
	case user && !assistant:
		return domain.RoleUser, true
	case assistant && !user:
		return domain.RoleAssistant, true
	}
	return "", false
}

func hasAnyKeyword(n *html.Node, keywords []string) bool {
	for _, kw := range keywords {
		if classContains(n, kw+"-message") || classContains(n, "message-"+kw) ||
			classContains(n, kw+"-turn") || classContains(n, "turn-"+kw) {
			return true
		}
	}
	return false
}
