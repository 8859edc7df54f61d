package distiller

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/fradelfo/distill/pkg/domain"
)

const maxTags = 5

// parseOutput decodes the model's JSON. Strict unmarshal first; when the
// model wraps the object in prose or fences, gjson digs the fields out of
// whatever JSON is in there.
func parseOutput(raw string) domain.Prompt {
	raw = strings.TrimSpace(raw)
	if fenced := strings.TrimPrefix(raw, "```json"); fenced != raw {
		raw = strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(fenced, "```")), "```")
	}

	var p domain.Prompt
	if err := json.Unmarshal([]byte(raw), &p); err == nil {
		return p
	}

	p.Title = gjson.Get(raw, "title").String()
	p.Body = gjson.Get(raw, "body").String()
	for _, v := range gjson.Get(raw, "variables").Array() {
		name := v.Get("name").String()
		if name == "" && v.Type == gjson.String {
			name = v.String() // tolerate a bare list of names
		}
		if name == "" {
			continue
		}
		p.Variables = append(p.Variables, domain.Variable{
			Name:        name,
			Description: v.Get("description").String(),
			Required:    v.Get("required").Bool(),
		})
	}
	for _, t := range gjson.Get(raw, "tags").Array() {
		p.Tags = append(p.Tags, t.String())
	}
	return p
}

var fenceRe = regexp.MustCompile("(?s)```.*?```")

// repairPrompt enforces the output guarantees no matter what the model
// returned: title within budget, the variable set equal to the body's
// placeholder set, unique variable names, sane tags, and conversation
// code blocks surviving into the body.
func repairPrompt(p *domain.Prompt, conv *domain.Conversation) {
	p.Title = strings.TrimSpace(p.Title)
	p.Body = strings.TrimSpace(p.Body)

	if p.Body == "" {
		// Unusable model output: fall back to the first user message as
		// a literal, variable-free template.
		p.Body = firstUserContent(conv)
		p.Variables = nil
	}
	if p.Title == "" {
		p.Title = firstUserContent(conv)
	}
	p.Title = truncateTitle(p.Title, domain.TitleMaxLength)

	reconcileVariables(p)
	restoreCodeBlocks(p, conv)
	normalizeTags(p, conv.Site)
}

// reconcileVariables makes the declared variable set exactly the set of
// placeholders present in the body: orphan declarations are dropped,
// undeclared placeholders get a declaration, duplicates collapse to the
// first occurrence.
func reconcileVariables(p *domain.Prompt) {
	placeholders := p.Placeholders()
	inBody := lo.SliceToMap(placeholders, func(n string) (string, struct{}) { return n, struct{}{} })

	seen := map[string]struct{}{}
	var kept []domain.Variable
	for _, v := range p.Variables {
		v.Name = strings.TrimSpace(v.Name)
		if _, dup := seen[v.Name]; dup {
			continue
		}
		if _, ok := inBody[v.Name]; !ok {
			continue
		}
		seen[v.Name] = struct{}{}
		kept = append(kept, v)
	}
	for _, name := range placeholders {
		if _, ok := seen[name]; !ok {
			kept = append(kept, domain.Variable{Name: name, Required: true})
		}
	}
	p.Variables = kept
}

// restoreCodeBlocks re-appends conversation code blocks the model dropped.
// Preserving code verbatim is a hard output guarantee, not a preference.
func restoreCodeBlocks(p *domain.Prompt, conv *domain.Conversation) {
	var lost []string
	for _, m := range conv.Messages {
		if !m.HasCode {
			continue
		}
		for _, block := range fenceRe.FindAllString(m.Content, -1) {
			if !strings.Contains(p.Body, block) {
				lost = append(lost, block)
			}
		}
	}
	if len(lost) > 0 {
		p.Body = p.Body + "\n\n" + strings.Join(lo.Uniq(lost), "\n\n")
	}
}

func normalizeTags(p *domain.Prompt, site string) {
	tags := lo.FilterMap(p.Tags, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		return t, t != ""
	})
	tags = lo.Uniq(tags)
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	if len(tags) == 0 && site != "" {
		tags = []string{site}
	}
	p.Tags = tags
}

func firstUserContent(conv *domain.Conversation) string {
	for _, m := range conv.Messages {
		if m.Role == domain.RoleUser {
			return m.Content
		}
	}
	return conv.Messages[0].Content
}

// truncateTitle cuts at a word boundary within the budget.
func truncateTitle(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
