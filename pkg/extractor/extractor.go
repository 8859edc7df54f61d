package extractor

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/fradelfo/distill/pkg/domain"
	"github.com/fradelfo/distill/pkg/logger"
)

// Extractor reads a chat UI's parsed DOM and produces role-tagged messages
// in document order. Implementations are read-only over the document and
// return zero messages, not an error, when no chat interface is present.
type Extractor interface {
	Name() string
	Match(host string) bool
	Extract(doc *html.Node) ([]domain.Message, error)
}

const GenericName = "generic"

type Registry struct {
	extractors []Extractor
	generic    Extractor
}

// NewRegistry wires the supported site extractors plus the low-confidence
// generic fallback.
func NewRegistry() *Registry {
	return &Registry{
		extractors: []Extractor{
			&chatGPTExtractor{},
			&claudeExtractor{},
			&geminiExtractor{},
		},
		generic: &genericExtractor{},
	}
}

// ForHost returns the extractor registered for host, or the generic
// fallback when none matches.
func (r *Registry) ForHost(host string) Extractor {
	host = strings.ToLower(host)
	for _, e := range r.extractors {
		if e.Match(host) {
			return e
		}
	}
	return r.generic
}

// Supported reports whether a site-specific extractor exists for host.
func (r *Registry) Supported(host string) bool {
	return r.ForHost(host).Name() != GenericName
}

// Extract runs the extractor selected for host against doc. A specific
// extractor that yields zero messages is retried with the generic
// fallback. Panics from unexpected DOM shapes are downgraded to an empty
// result: detection failure is a signal, never a crash.
func (r *Registry) Extract(host string, doc *html.Node) (msgs []domain.Message, name string, err error) {
	e := r.ForHost(host)
	msgs, err = safeExtract(e, doc)
	if err == nil && len(msgs) == 0 && e.Name() != GenericName {
		if generic, genErr := safeExtract(r.generic, doc); genErr == nil && len(generic) > 0 {
			return generic, r.generic.Name(), nil
		}
	}
	return msgs, e.Name(), err
}

func safeExtract(e Extractor, doc *html.Node) (msgs []domain.Message, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("extractor recovered from malformed document",
				"extractor", e.Name(), logger.Err(fmt.Errorf("%v", rec)))
			msgs, err = nil, nil
		}
	}()
	return e.Extract(doc)
}

// newMessage builds a message from a matched DOM node, dropping
// empty-content candidates at the source.
func newMessage(role domain.Role, node *html.Node) (domain.Message, bool) {
	content := textContent(node)
	if content == "" {
		return domain.Message{}, false
	}
	return domain.Message{
		Role:      role,
		Content:   content,
		Timestamp: nodeTimestamp(node),
		HasCode:   hasCodeBlock(node),
		HasImage:  hasImage(node),
		WordCount: len(strings.Fields(content)),
	}, true
}

// nodeTimestamp reads a <time datetime="..."> inside the message node.
// Most chat UIs don't render one; the zero value means document order is
// the only ordering.
func nodeTimestamp(node *html.Node) time.Time {
	times := findAll(node, func(n *html.Node) bool {
		return n.Data == "time" && attrValue(n, "datetime") != ""
	})
	if len(times) == 0 {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, attrValue(times[0], "datetime"))
	if err != nil {
		return time.Time{}
	}
	return ts
}
