package distiller

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fradelfo/distill/pkg/domain"
)

func TestParseOutputFencedJSON(t *testing.T) {
	raw := "```json\n{\"title\":\"t\",\"body\":\"b {{x}}\",\"variables\":[{\"name\":\"x\"}],\"tags\":[\"a\"]}\n```"

	p := parseOutput(raw)
	assert.Equal(t, "t", p.Title)
	assert.Equal(t, "b {{x}}", p.Body)
	require.Len(t, p.Variables, 1)
	assert.Equal(t, "x", p.Variables[0].Name)
}

func TestParseOutputSalvage(t *testing.T) {
	// variables as plain strings breaks the strict decode; the salvage
	// path still recovers title and body.
	raw := `{"title":"t","body":"b {{x}}","variables":["x"],"tags":["a"]}`

	p := parseOutput(raw)
	assert.Equal(t, "t", p.Title)
	assert.Equal(t, "b {{x}}", p.Body)
	assert.Equal(t, []string{"a"}, p.Tags)
}

func TestReconcileVariables(t *testing.T) {
	tests := []struct {
		name      string
		prompt    domain.Prompt
		wantNames []string
	}{
		{
			name: "orphan variable dropped",
			prompt: domain.Prompt{
				Body:      "Use {{topic}} here.",
				Variables: []domain.Variable{{Name: "topic"}, {Name: "unused"}},
			},
			wantNames: []string{"topic"},
		},
		{
			name: "undeclared placeholder declared",
			prompt: domain.Prompt{
				Body:      "Use {{topic}} and {{tone}}.",
				Variables: []domain.Variable{{Name: "topic"}},
			},
			wantNames: []string{"topic", "tone"},
		},
		{
			name: "duplicate declarations collapse",
			prompt: domain.Prompt{
				Body:      "Use {{topic}}.",
				Variables: []domain.Variable{{Name: "topic", Description: "first"}, {Name: "topic", Description: "second"}},
			},
			wantNames: []string{"topic"},
		},
		{
			name:      "no placeholders no variables",
			prompt:    domain.Prompt{Body: "A fixed template.", Variables: []domain.Variable{{Name: "ghost"}}},
			wantNames: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reconcileVariables(&tt.prompt)

			var names []string
			for _, v := range tt.prompt.Variables {
				names = append(names, v.Name)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.ElementsMatch(t, tt.prompt.Placeholders(), names,
				"declared variables must equal body placeholders exactly")
		})
	}
}

func TestRepairPromptFallbackBody(t *testing.T) {
	conv := &domain.Conversation{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "Summarize this article for me"},
	}}
	p := domain.Prompt{}

	repairPrompt(&p, conv)
	assert.Equal(t, "Summarize this article for me", p.Body)
	assert.NotEmpty(t, p.Title)
	assert.Empty(t, p.Variables)
}

func TestRestoreCodeBlocks(t *testing.T) {
	block := "```go\nfunc main() {}\n```"
	conv := &domain.Conversation{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "Fix this:\n" + block, HasCode: true},
	}}
	p := domain.Prompt{Title: "t", Body: "Fix the {{code_issue}} in the snippet."}

	repairPrompt(&p, conv)
	assert.Contains(t, p.Body, block, "conversation code blocks survive distillation verbatim")
}

func TestRestoreCodeBlocksFromAssistantMessage(t *testing.T) {
	block := "```python\nprint(\"hi\")\n```"
	conv := &domain.Conversation{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "Write a greeting script"},
		{Role: domain.RoleAssistant, Content: "Here you go:\n" + block, HasCode: true},
	}}
	p := domain.Prompt{Title: "t", Body: "Write a {{script_purpose}} script."}

	repairPrompt(&p, conv)
	assert.Contains(t, p.Body, block, "assistant code blocks are preserved too")
}

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Short title", "Short title"},
		{strings.Repeat("x", 70), strings.Repeat("x", 60)},
		{"A very long title that keeps going well past the sixty character budget", "A very long title that keeps going well past the sixty"},
		{"  spaced   out\ttitle  ", "spaced out title"},
	}

	for _, tt := range tests {
		got := truncateTitle(tt.in, domain.TitleMaxLength)
		assert.Equal(t, tt.want, got)
		assert.LessOrEqual(t, len([]rune(got)), domain.TitleMaxLength)
	}
}
