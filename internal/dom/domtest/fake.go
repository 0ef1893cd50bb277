// Package domtest provides a scriptable in-memory Document for pipeline
// tests. Query results are keyed by the raw query expression; tests mutate
// the result map (typically from the OnScroll hook) to simulate a
// virtualized list materializing new rows.
package domtest

import (
	"context"
	"time"

	"github.com/abir2776/extract-message-whatsapp/internal/dom"
)

// Element is a fake dom.Element.
type Element struct {
	TextValue string
	Attrs     map[string]string
	Visible   bool
	// Stale makes every live operation fail with dom.ErrStale, simulating
	// a handle invalidated by a re-render.
	Stale    bool
	Children map[string][]*Element
	ParentEl *Element
	Clicks   int
	OnClick  func() error
}

// NewElement builds a visible element with the given text.
func NewElement(text string) *Element {
	return &Element{TextValue: text, Visible: true}
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if e.Stale {
		return "", dom.ErrStale
	}
	return e.TextValue, nil
}

func (e *Element) Attribute(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok && v != ""
}

func (e *Element) IsVisible(ctx context.Context) (bool, error) {
	if e.Stale {
		return false, dom.ErrStale
	}
	return e.Visible, nil
}

func (e *Element) Click(ctx context.Context) error {
	if e.Stale {
		return dom.ErrStale
	}
	e.Clicks++
	if e.OnClick != nil {
		return e.OnClick()
	}
	return nil
}

func (e *Element) Find(ctx context.Context, q dom.Query) (dom.Element, error) {
	els, err := e.FindAll(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, dom.ErrNotFound
	}
	return els[0], nil
}

func (e *Element) FindAll(ctx context.Context, q dom.Query) ([]dom.Element, error) {
	if e.Stale {
		return nil, dom.ErrStale
	}
	var out []dom.Element
	for _, c := range e.Children[q.Expr] {
		out = append(out, c)
	}
	return out, nil
}

func (e *Element) Parent() (dom.Element, bool) {
	if e.ParentEl == nil {
		return nil, false
	}
	return e.ParentEl, true
}

// Document is a fake dom.Document.
type Document struct {
	URL     string
	Results map[string][]*Element

	ScrollCalls int
	TopCalls    int
	// OnScroll runs after every ScrollBy, letting tests swap Results to
	// mimic lazy rendering.
	OnScroll func()
}

// NewDocument builds an empty fake document.
func NewDocument() *Document {
	return &Document{Results: make(map[string][]*Element)}
}

// SetResults replaces the result set for a query expression.
func (d *Document) SetResults(expr string, els ...*Element) {
	d.Results[expr] = els
}

func (d *Document) Navigate(ctx context.Context, url string) error {
	d.URL = url
	return nil
}

func (d *Document) CurrentURL(ctx context.Context) (string, error) {
	return d.URL, nil
}

func (d *Document) Find(ctx context.Context, q dom.Query) (dom.Element, error) {
	els, err := d.FindAll(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, dom.ErrNotFound
	}
	return els[0], nil
}

func (d *Document) FindAll(ctx context.Context, q dom.Query) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []dom.Element
	for _, e := range d.Results[q.Expr] {
		out = append(out, e)
	}
	return out, nil
}

func (d *Document) WaitVisible(ctx context.Context, q dom.Query, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		for _, e := range d.Results[q.Expr] {
			if e.Visible {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return dom.ErrNotFound
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (d *Document) ScrollBy(ctx context.Context, container dom.Element, fraction float64) error {
	d.ScrollCalls++
	if d.OnScroll != nil {
		d.OnScroll()
	}
	return nil
}

func (d *Document) ScrollToTop(ctx context.Context, container dom.Element) error {
	d.TopCalls++
	return nil
}
