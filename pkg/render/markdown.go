package render

import (
	"fmt"

	"github.com/russross/blackfriday"

	"github.com/fradelfo/distill/pkg/domain"
)

// PromptHTML renders a prompt preview: title, body markdown with code
// blocks intact, and the declared variables.
func PromptHTML(p *domain.Prompt) []byte {
	md := fmt.Sprintf("# %s\n\n%s\n", p.Title, p.Body)
	if len(p.Variables) > 0 {
		md += "\n## Variables\n\n"
		for _, v := range p.Variables {
			line := fmt.Sprintf("- `{{%s}}`", v.Name)
			if v.Description != "" {
				line += ": " + v.Description
			}
			if v.Required {
				line += " (required)"
			}
			md += line + "\n"
		}
	}
	return blackfriday.MarkdownCommon([]byte(md))
}
