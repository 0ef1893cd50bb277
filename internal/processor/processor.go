// Package processor opens one discovered chat, pulls a window of recent
// messages out of the rendered pane, extracts identifiers and hands
// resolved pairs to the contact store. One chat is fully processed before
// the next begins; the document holds a single active chat at a time.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abir2776/extract-message-whatsapp/internal/bus"
	"github.com/abir2776/extract-message-whatsapp/internal/crawler"
	"github.com/abir2776/extract-message-whatsapp/internal/dom"
	"github.com/abir2776/extract-message-whatsapp/internal/extract"
	"github.com/abir2776/extract-message-whatsapp/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrChatOpenFailed means neither the captured handle nor the
	// name-based re-lookup could activate the chat. The chat is skipped.
	ErrChatOpenFailed = errors.New("processor: chat could not be opened")
	// ErrNoMessages means the message pane yielded no usable text after
	// every cascade tier. The chat is skipped.
	ErrNoMessages = errors.New("processor: no messages found")
)

// messageCascade locates message text nodes, content-specific selectors
// before generic ones.
var messageCascade = []dom.Query{
	dom.CSS(".message-content .text-content"),
	dom.CSS(".Message .message-content"),
	dom.CSS(".Message .text-content"),
	dom.CSS(".message .text-content"),
	dom.CSS(".Message"),
	dom.CSS(".message"),
	dom.CSS("[class*='Message']"),
	dom.CSS("[class*='text-content']"),
	dom.CSS("div[dir='auto']"),
}

// fallbackQuery is the broad last-resort text-node sweep: anything holding
// an @, a +, or more than a trivial amount of text. Only the tail of its
// result is consulted, the head is mostly chrome.
var fallbackQuery = dom.XPath("//*[contains(text(), '@') or contains(text(), '+') or string-length(text()) > 10]")

// outgoingClasses mark a message element (or ancestor) as sent by us.
var outgoingClasses = map[string]struct{}{
	"own":         {},
	"out":         {},
	"outgoing":    {},
	"message-out": {},
}

// Saver persists resolved pairs. *store.DB is the production implementation.
type Saver interface {
	SaveContact(ctx context.Context, phone, email, chatName string) (store.SaveResult, error)
}

// Config tunes one processor.
type Config struct {
	// MessageWindow bounds how many recent messages are scanned per chat.
	MessageWindow int
	// SettleDelay is the pause after activation before reading the pane.
	SettleDelay time.Duration
}

// Result records the outcome for one chat. The caller owns the
// ProcessedSet; a chat is marked processed regardless of Err.
type Result struct {
	Name  string
	Saved bool
	Err   error
}

// Processor drives per-chat extraction against one live document.
type Processor struct {
	doc     dom.Document
	crawler *crawler.Crawler
	saver   Saver
	bus     *bus.Bus
	cfg     Config
	logger  *zap.Logger
}

// New creates a processor.
func New(doc dom.Document, cr *crawler.Crawler, saver Saver, b *bus.Bus, cfg Config, logger *zap.Logger) *Processor {
	if cfg.MessageWindow <= 0 {
		cfg.MessageWindow = 10
	}
	return &Processor{doc: doc, crawler: cr, saver: saver, bus: b, cfg: cfg, logger: logger}
}

// Process opens the chat, scans its recent messages and persists the
// resolved pair if both identifiers are present. Errors are per-chat: the
// caller logs them and moves on.
func (p *Processor) Process(ctx context.Context, chat crawler.ChatSummary) Result {
	res := Result{Name: chat.Name}

	if err := p.activate(ctx, chat); err != nil {
		res.Err = err
		return res
	}
	p.bus.Publish(bus.Event{Kind: "chat.opened", Timestamp: time.Now(), Payload: chat.Name})

	if err := sleepCtx(ctx, p.cfg.SettleDelay); err != nil {
		res.Err = err
		return res
	}

	msgs, err := p.recentMessages(ctx)
	if err != nil {
		res.Err = err
		return res
	}

	emailMatch, phoneMatch := extract.FindAcrossMessages(msgs, p.cfg.MessageWindow)

	var email, phone string
	if emailMatch != nil {
		email = emailMatch.Value
	}
	if phoneMatch != nil {
		phone = phoneMatch.Value
	} else if candidate, ok := extract.NormalizePhone(chat.Name); ok {
		// No phone in any message: the display name itself often carries
		// the number. Email has no such fallback.
		phone = candidate
	}

	if email == "" || phone == "" {
		p.logger.Info("identifiers incomplete, skipping chat",
			zap.String("chat", chat.Name),
			zap.Bool("have_email", email != ""),
			zap.Bool("have_phone", phone != ""))
		return res
	}

	outcome, err := p.saver.SaveContact(ctx, phone, email, chat.Name)
	if err != nil {
		res.Err = err
		return res
	}
	res.Saved = outcome == store.Saved
	if res.Saved {
		p.bus.Publish(bus.Event{Kind: "contact.saved", Timestamp: time.Now(), Payload: email})
	}
	p.logger.Info("chat processed",
		zap.String("chat", chat.Name),
		zap.String("outcome", outcome.String()))
	return res
}

// activate clicks the captured handle, falling back to a name-based
// re-lookup when the handle has gone stale.
func (p *Processor) activate(ctx context.Context, chat crawler.ChatSummary) error {
	if chat.Handle != nil {
		err := chat.Handle.Click(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, dom.ErrStale) && !errors.Is(err, dom.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrChatOpenFailed, err)
		}
		p.logger.Debug("chat handle stale, re-resolving by name", zap.String("chat", chat.Name))
	}
	if err := p.crawler.ClickByName(ctx, chat.Name); err != nil {
		return fmt.Errorf("%w: %v", ErrChatOpenFailed, err)
	}
	return nil
}

// recentMessages reads the message pane and returns up to MessageWindow
// messages, position 1 being the most recent.
func (p *Processor) recentMessages(ctx context.Context) ([]extract.Message, error) {
	els, q, err := dom.FirstMatch(ctx, p.doc, messageCascade)
	if err != nil && !errors.Is(err, dom.ErrNotFound) {
		return nil, err
	}

	bodies := elementTexts(ctx, els)
	if len(bodies) == 0 {
		// Broad sweep; only the tail is plausibly message content.
		fallback, ferr := p.doc.FindAll(ctx, fallbackQuery)
		if ferr != nil {
			return nil, ferr
		}
		bodies = elementTexts(ctx, fallback)
		q = fallbackQuery
	}
	if len(bodies) == 0 {
		return nil, ErrNoMessages
	}

	// The pane renders oldest first; the window is the tail.
	if len(bodies) > p.cfg.MessageWindow {
		bodies = bodies[len(bodies)-p.cfg.MessageWindow:]
	}

	msgs := make([]extract.Message, 0, len(bodies))
	for i := len(bodies) - 1; i >= 0; i-- {
		msgs = append(msgs, extract.Message{
			Body:      bodies[i].text,
			Direction: bodies[i].direction,
			Position:  len(bodies) - i,
		})
	}
	p.logger.Debug("messages fetched",
		zap.String("query", q.Expr),
		zap.Int("count", len(msgs)))
	return msgs, nil
}

type messageText struct {
	text      string
	direction extract.Direction
}

// elementTexts reads each element's text, dropping empty and stale ones.
func elementTexts(ctx context.Context, els []dom.Element) []messageText {
	var out []messageText
	for _, el := range els {
		t, err := el.Text(ctx)
		if err != nil {
			continue
		}
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, messageText{text: t, direction: directionOf(el)})
	}
	return out
}

// directionOf classifies a message as incoming or outgoing from the class
// tokens of the element and a few ancestors.
func directionOf(el dom.Element) extract.Direction {
	cur := el
	for depth := 0; cur != nil && depth < 5; depth++ {
		if classes, ok := cur.Attribute("class"); ok {
			for _, token := range strings.Fields(classes) {
				if _, out := outgoingClasses[token]; out {
					return extract.Out
				}
			}
		}
		parent, ok := cur.Parent()
		if !ok {
			break
		}
		cur = parent
	}
	return extract.In
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
