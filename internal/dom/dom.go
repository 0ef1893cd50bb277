// Package dom is the narrow interface the pipeline uses to talk to the
// rendered document of the live web client. Components hold Element handles
// that are only valid until the document mutates; every operation can
// therefore fail with ErrStale and callers are expected to re-resolve by a
// semantic key (usually the chat name) instead of giving up.
package dom

import (
	"context"
	"errors"
	"time"
)

// By selects the query language for a Query expression.
type By int

const (
	ByCSS By = iota
	ByXPath
)

// Query is one structural selector. Lookup cascades are ordered []Query
// slices evaluated top-down; the first query yielding a non-empty result
// wins.
type Query struct {
	By   By
	Expr string
}

// CSS builds a CSS selector query.
func CSS(expr string) Query { return Query{By: ByCSS, Expr: expr} }

// XPath builds an XPath query.
func XPath(expr string) Query { return Query{By: ByXPath, Expr: expr} }

var (
	// ErrNotFound means the query matched nothing.
	ErrNotFound = errors.New("dom: element not found")
	// ErrStale means a previously captured handle was invalidated by a
	// re-render. Operations on it must be retried via re-lookup.
	ErrStale = errors.New("dom: stale element handle")
)

// Element is a handle to one rendered element.
type Element interface {
	// Text returns the visible text content of the element.
	Text(ctx context.Context) (string, error)
	// Attribute returns the named attribute as captured with the handle.
	Attribute(name string) (string, bool)
	// IsVisible reports whether the element currently has a rendered box.
	IsVisible(ctx context.Context) (bool, error)
	// Click scrolls the element into view and clicks it.
	Click(ctx context.Context) error
	// Find returns the first descendant matching q, or ErrNotFound.
	Find(ctx context.Context, q Query) (Element, error)
	// FindAll returns all descendants matching q (possibly empty).
	FindAll(ctx context.Context, q Query) ([]Element, error)
	// Parent returns the parent element handle if one was captured.
	Parent() (Element, bool)
}

// Document is the live page.
type Document interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// Find returns the first match for q, or ErrNotFound.
	Find(ctx context.Context, q Query) (Element, error)
	// FindAll returns all matches for q (possibly empty, never an error
	// just because nothing matched).
	FindAll(ctx context.Context, q Query) ([]Element, error)
	// WaitVisible blocks until q has a visible match or timeout elapses.
	WaitVisible(ctx context.Context, q Query, timeout time.Duration) error
	// ScrollBy advances the container's scroll offset by fraction of its
	// visible height.
	ScrollBy(ctx context.Context, container Element, fraction float64) error
	// ScrollToTop resets the container's scroll offset.
	ScrollToTop(ctx context.Context, container Element) error
}

// FirstMatch evaluates a query cascade top-down and returns the results of
// the first query with at least one match, together with that query.
func FirstMatch(ctx context.Context, doc Document, cascade []Query) ([]Element, Query, error) {
	for _, q := range cascade {
		els, err := doc.FindAll(ctx, q)
		if err != nil {
			return nil, q, err
		}
		if len(els) > 0 {
			return els, q, nil
		}
	}
	return nil, Query{}, ErrNotFound
}
