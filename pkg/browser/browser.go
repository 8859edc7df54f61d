package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-rod/rod"

	"github.com/fradelfo/distill/pkg/domain"
)

type Registry interface {
	Supported(host string) bool
}

// Browser attaches to an already-running Chromium over the DevTools
// protocol and exposes its chat tabs as capture page sources. Access is
// strictly read-only: pages are snapshotted, never driven.
type Browser struct {
	b        *rod.Browser
	registry Registry
}

func Connect(controlURL string, registry Registry) (*Browser, error) {
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser at %s: %w", controlURL, err)
	}
	return &Browser{b: b, registry: registry}, nil
}

func (br *Browser) Close() error {
	return br.b.Close()
}

// FindChatPage returns the first open tab whose hostname has a
// site-specific extractor. No matching tab means there is nothing to
// capture, not a failure.
func (br *Browser) FindChatPage() (*Page, error) {
	pages, err := br.b.Pages()
	if err != nil {
		return nil, fmt.Errorf("listing browser tabs: %w", err)
	}

	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		host := hostnameOf(info.URL)
		if host == "" {
			continue
		}
		if br.registry.Supported(host) {
			return &Page{page: p, host: host}, nil
		}
	}
	return nil, domain.ErrNoConversation
}

// Page adapts one browser tab to the orchestrator's PageSource.
type Page struct {
	page *rod.Page
	host string
}

func (p *Page) Host() string { return p.host }

func (p *Page) HTML(ctx context.Context) (string, error) {
	raw, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("reading tab html: %w", err)
	}
	return raw, nil
}

func hostnameOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
