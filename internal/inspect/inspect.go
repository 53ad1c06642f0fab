// Package inspect extracts structural element metadata from a live page so
// selector-refine can emit high-confidence locators. It is a caller-side
// helper: the healing engine itself never drives a browser.
package inspect

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"journeyheal/internal/fixes"
)

// Inspector owns a headless browser for structural lookups.
type Inspector struct {
	browser *rod.Browser
	logger  *zap.Logger
}

// New launches a headless browser and connects to it.
func New(logger *zap.Logger) (*Inspector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	url, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch inspection browser: %w", err)
	}
	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to inspection browser: %w", err)
	}
	return &Inspector{browser: browser, logger: logger}, nil
}

// Close shuts the browser down.
func (i *Inspector) Close() error {
	return i.browser.Close()
}

// Hints navigates to url, resolves the brittle selector, and reads the
// element's accessibility metadata. A selector that no longer resolves is an
// error; the caller falls back to text heuristics.
func (i *Inspector) Hints(ctx context.Context, url, selector string) (*fixes.AriaInfo, error) {
	page, err := i.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(30 * time.Second)
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("page did not finish loading: %w", err)
	}

	el, err := page.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q did not resolve on %s: %w", selector, url, err)
	}

	info := &fixes.AriaInfo{
		TestID: attr(el, "data-testid"),
		Label:  attr(el, "aria-label"),
		Role:   attr(el, "role"),
	}
	if info.Role == "" {
		info.Role = implicitRole(el)
	}
	info.Name = accessibleName(el, info.Label)

	i.logger.Debug("structural hints extracted",
		zap.String("selector", selector),
		zap.String("role", info.Role),
		zap.String("name", info.Name),
		zap.String("test_id", info.TestID))
	return info, nil
}

func attr(el *rod.Element, name string) string {
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return *v
}

// implicitRole maps common tag names to their default ARIA roles.
func implicitRole(el *rod.Element) string {
	obj, err := el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return ""
	}
	switch obj.Value.Str() {
	case "button":
		return "button"
	case "a":
		return "link"
	case "input":
		return "textbox"
	case "select":
		return "combobox"
	case "nav":
		return "navigation"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	}
	return ""
}

// accessibleName approximates the element's accessible name: aria-label
// first, then trimmed visible text.
func accessibleName(el *rod.Element, label string) string {
	if label != "" {
		return label
	}
	obj, err := el.Eval(`() => (this.innerText || this.value || '').trim().slice(0, 80)`)
	if err != nil {
		return ""
	}
	return obj.Value.Str()
}
