// Package crawler discovers chats in the virtualized conversation list of
// the web client. The list only materializes rows near the scroll position,
// so discovery is incremental: enumerate visible rows, hand them off, scroll
// a fraction of the viewport, repeat. Handles returned here go stale the
// moment the list re-renders; ClickByName is the semantic fallback.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abir2776/extract-message-whatsapp/internal/dom"
	"go.uber.org/zap"
)

// ErrContainerNotFound means no query in the container cascade matched.
// The current scan aborts; the repeating loop carries on.
var ErrContainerNotFound = errors.New("crawler: chat list container not found")

// ChatSummary is one discovered conversation row.
type ChatSummary struct {
	Name    string
	Preview string
	// Handle references the live row element. It is only valid until the
	// document mutates; treat dom.ErrStale as a signal to re-resolve by
	// Name.
	Handle dom.Element
}

// containerCascade locates the scrollable chat list, most specific first.
var containerCascade = []dom.Query{
	dom.CSS(".chat-list.custom-scroll"),
	dom.CSS(".chat-list"),
	dom.CSS("div[role='grid']"),
	dom.CSS("[data-testid='chat-list']"),
	dom.CSS("[class*='chat-list']"),
	dom.CSS(".custom-scroll"),
}

// itemCascade locates individual chat rows.
var itemCascade = []dom.Query{
	dom.CSS(".ListItem.Chat.chat-item-clickable"),
	dom.CSS("div.ListItem.Chat"),
	dom.CSS("[role='listitem']"),
	dom.CSS("div[role='row']"),
	dom.CSS("[class*='chat-item-clickable']"),
	dom.CSS(".chat-list > div"),
}

// nameCascade is the secondary per-row name lookup, used only when parsing
// the row text yields nothing.
var nameCascade = []dom.Query{
	dom.CSS(".chat-title"),
	dom.CSS(".peer-title"),
	dom.CSS("h3"),
	dom.CSS("[class*='title']"),
	dom.CSS("[class*='name']"),
}

// Config tunes the scroll behavior.
type Config struct {
	// ScrollFraction of the container's visible height advanced per step.
	ScrollFraction float64
	// ScrollSteps per ScrollStep call.
	ScrollSteps int
	// StepPause between scroll steps, SettlePause after the last one, both
	// giving the client time to render newly visible rows.
	StepPause   time.Duration
	SettlePause time.Duration
}

// DefaultConfig mirrors the tuning the web client tolerates well.
func DefaultConfig() Config {
	return Config{
		ScrollFraction: 0.3,
		ScrollSteps:    3,
		StepPause:      300 * time.Millisecond,
		SettlePause:    800 * time.Millisecond,
	}
}

// Crawler walks the conversation list of one live document.
type Crawler struct {
	doc    dom.Document
	cfg    Config
	logger *zap.Logger
}

// New creates a crawler over doc.
func New(doc dom.Document, cfg Config, logger *zap.Logger) *Crawler {
	if cfg.ScrollFraction <= 0 {
		cfg.ScrollFraction = 0.3
	}
	if cfg.ScrollSteps <= 0 {
		cfg.ScrollSteps = 3
	}
	return &Crawler{doc: doc, cfg: cfg, logger: logger}
}

// FindContainer locates the scrollable chat list element.
func (c *Crawler) FindContainer(ctx context.Context) (dom.Element, error) {
	for _, q := range containerCascade {
		el, err := c.doc.Find(ctx, q)
		if errors.Is(err, dom.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		c.logger.Debug("chat container located", zap.String("query", q.Expr))
		return el, nil
	}
	return nil, ErrContainerNotFound
}

// VisibleChats enumerates the currently rendered chat rows, in list order,
// deduplicated by name within the returned batch.
func (c *Crawler) VisibleChats(ctx context.Context) ([]ChatSummary, error) {
	rows, q, err := dom.FirstMatch(ctx, c.doc, itemCascade)
	if errors.Is(err, dom.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(rows))
	var chats []ChatSummary
	for _, row := range rows {
		visible, err := row.IsVisible(ctx)
		if err != nil || !visible {
			// A row going stale mid-enumeration just drops out of this
			// batch; the next pass will pick it up again.
			continue
		}
		name, preview, err := c.parseRow(ctx, row)
		if err != nil || name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		chats = append(chats, ChatSummary{Name: name, Preview: preview, Handle: row})
	}

	c.logger.Debug("visible chats enumerated",
		zap.String("query", q.Expr),
		zap.Int("rows", len(rows)),
		zap.Int("chats", len(chats)))
	return chats, nil
}

// ScrollStep advances the container by the configured fraction a few times,
// then pauses so lazily rendered rows can materialize.
func (c *Crawler) ScrollStep(ctx context.Context, container dom.Element) error {
	for i := 0; i < c.cfg.ScrollSteps; i++ {
		if err := c.doc.ScrollBy(ctx, container, c.cfg.ScrollFraction); err != nil {
			return err
		}
		if err := sleepCtx(ctx, c.cfg.StepPause); err != nil {
			return err
		}
	}
	return sleepCtx(ctx, c.cfg.SettlePause)
}

// ScrollToTop resets the list before a fresh scan.
func (c *Crawler) ScrollToTop(ctx context.Context, container dom.Element) error {
	if err := c.doc.ScrollToTop(ctx, container); err != nil {
		return err
	}
	return sleepCtx(ctx, c.cfg.SettlePause)
}

// ClickByName re-resolves a chat row by its visible name and clicks it.
// This is the second tier of stale-handle recovery: reference first, then
// semantic key.
func (c *Crawler) ClickByName(ctx context.Context, name string) error {
	lit := xpathLiteral(name)
	cascade := []dom.Query{
		dom.XPath(fmt.Sprintf("//*[contains(@class, 'chat-title') and text()=%s]/ancestor::*[contains(@class, 'ListItem')]", lit)),
		dom.XPath(fmt.Sprintf("//*[contains(@class, 'peer-title') and text()=%s]/ancestor::*[contains(@class, 'ListItem')]", lit)),
		dom.XPath(fmt.Sprintf("//*[text()=%s]/ancestor::*[contains(@class, 'Chat')]", lit)),
		dom.XPath(fmt.Sprintf("//*[text()=%s]", lit)),
	}

	const attempts = 2
	var lastErr error = dom.ErrNotFound
	for attempt := 0; attempt < attempts; attempt++ {
		for _, q := range cascade {
			el, err := c.doc.Find(ctx, q)
			if err != nil {
				lastErr = err
				continue
			}
			if err := el.Click(ctx); err != nil {
				lastErr = err
				continue
			}
			return nil
		}
		if err := sleepCtx(ctx, c.cfg.StepPause); err != nil {
			return err
		}
	}
	return fmt.Errorf("click chat %q by name: %w", name, lastErr)
}

// WaitForList blocks until any container query has a visible match, which
// is how we know the operator finished logging in.
func (c *Crawler) WaitForList(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := c.FindContainer(ctx); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("chat list did not appear within %s: %w", timeout, ErrContainerNotFound)
		}
		if err := sleepCtx(ctx, time.Second); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseRow extracts the chat name and preview from a row. Primary strategy:
// the row's visible text is newline-delimited as "Name\nTime\nPreview...";
// line 1 is the name unless it reads like a clock time, then line 2 is
// tried. Secondary strategy: ranked title sub-element lookup.
func (c *Crawler) parseRow(ctx context.Context, row dom.Element) (name, preview string, err error) {
	text, err := row.Text(ctx)
	if err != nil {
		return "", "", err
	}
	text = strings.TrimSpace(text)
	if text == "" || len(text) <= 1 {
		return "", "", nil
	}

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	name = lines[0]
	if looksLikeTime(name) {
		name = ""
		if len(lines) > 1 {
			name = lines[1]
		}
	}

	if len(lines) > 2 {
		preview = strings.TrimSpace(strings.Join(lines[2:], "\n"))
	} else if len(lines) > 1 && !looksLikeTime(lines[1]) {
		preview = lines[1]
	}

	if name == "" {
		for _, q := range nameCascade {
			el, ferr := row.Find(ctx, q)
			if ferr != nil {
				continue
			}
			t, terr := el.Text(ctx)
			if terr == nil && strings.TrimSpace(t) != "" {
				name = strings.TrimSpace(t)
				break
			}
		}
	}
	return name, preview, nil
}

// looksLikeTime reports whether s reads like a chat list timestamp
// ("3:41 PM").
func looksLikeTime(s string) bool {
	return strings.Contains(s, ":") &&
		(strings.Contains(s, "AM") || strings.Contains(s, "PM"))
}

// xpathLiteral quotes s as an XPath string literal, falling back to
// concat() when s contains both quote characters.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
