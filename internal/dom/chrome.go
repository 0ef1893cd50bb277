package dom

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// chromeDocument implements Document over a chromedp tab context.
type chromeDocument struct {
	ctx context.Context
}

func (d *chromeDocument) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapCDPErr(chromedp.Run(d.ctx, chromedp.Navigate(url)))
}

func (d *chromeDocument) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var url string
	if err := chromedp.Run(d.ctx, chromedp.Location(&url)); err != nil {
		return "", mapCDPErr(err)
	}
	return url, nil
}

func (d *chromeDocument) Find(ctx context.Context, q Query) (Element, error) {
	els, err := d.FindAll(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, ErrNotFound
	}
	return els[0], nil
}

func (d *chromeDocument) FindAll(ctx context.Context, q Query) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	if err := chromedp.Run(d.ctx,
		chromedp.Nodes(q.Expr, &nodes, queryOption(q), chromedp.AtLeast(0)),
	); err != nil {
		return nil, mapCDPErr(err)
	}
	els := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &chromeElement{ctx: d.ctx, node: n})
	}
	return els, nil
}

func (d *chromeDocument) WaitVisible(ctx context.Context, q Query, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	return mapCDPErr(chromedp.Run(tctx, chromedp.WaitVisible(q.Expr, queryOption(q))))
}

func (d *chromeDocument) ScrollBy(ctx context.Context, container Element, fraction float64) error {
	ce, err := asChromeElement(container)
	if err != nil {
		return err
	}
	return ce.eval(ctx, fmt.Sprintf("function() { this.scrollTop += this.clientHeight * %g; }", fraction), nil)
}

func (d *chromeDocument) ScrollToTop(ctx context.Context, container Element) error {
	ce, err := asChromeElement(container)
	if err != nil {
		return err
	}
	return ce.eval(ctx, "function() { this.scrollTop = 0; }", nil)
}

// chromeElement implements Element over a captured cdp node.
type chromeElement struct {
	ctx  context.Context
	node *cdp.Node
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.eval(ctx, "function() { return this.innerText || this.textContent || ''; }", &text); err != nil {
		return "", err
	}
	return text, nil
}

func (e *chromeElement) Attribute(name string) (string, bool) {
	v := e.node.AttributeValue(name)
	if v == "" {
		return "", false
	}
	return v, true
}

func (e *chromeElement) IsVisible(ctx context.Context) (bool, error) {
	var visible bool
	err := e.eval(ctx, `function() {
		const s = window.getComputedStyle(this);
		if (s.display === 'none' || s.visibility === 'hidden') return false;
		return this.getBoundingClientRect().height > 0;
	}`, &visible)
	if err != nil {
		return false, err
	}
	return visible, nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	if err := e.eval(ctx, "function() { this.scrollIntoView({block: 'center'}); }", nil); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapCDPErr(chromedp.Run(e.ctx, chromedp.MouseClickNode(e.node)))
}

func (e *chromeElement) Find(ctx context.Context, q Query) (Element, error) {
	els, err := e.FindAll(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, ErrNotFound
	}
	return els[0], nil
}

func (e *chromeElement) FindAll(ctx context.Context, q Query) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	if err := chromedp.Run(e.ctx,
		chromedp.Nodes(q.Expr, &nodes, queryOption(q), chromedp.FromNode(e.node), chromedp.AtLeast(0)),
	); err != nil {
		return nil, mapCDPErr(err)
	}
	els := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &chromeElement{ctx: e.ctx, node: n})
	}
	return els, nil
}

func (e *chromeElement) Parent() (Element, bool) {
	p := e.node.Parent
	if p == nil {
		return nil, false
	}
	return &chromeElement{ctx: e.ctx, node: p}, true
}

// eval resolves the node to a runtime object and calls fn with the element
// as `this`. If res is non-nil the return value is unmarshalled into it.
func (e *chromeElement) eval(ctx context.Context, fn string, res any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	action := chromedp.ActionFunc(func(cctx context.Context) error {
		obj, err := cdpdom.ResolveNode().WithNodeID(e.node.NodeID).Do(cctx)
		if err != nil {
			return err
		}
		v, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(cctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if res != nil && v != nil && v.Value != nil {
			return json.Unmarshal([]byte(v.Value), res)
		}
		return nil
	})
	return mapCDPErr(chromedp.Run(e.ctx, action))
}

func queryOption(q Query) chromedp.QueryOption {
	if q.By == ByXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}

func asChromeElement(el Element) (*chromeElement, error) {
	ce, ok := el.(*chromeElement)
	if !ok {
		return nil, fmt.Errorf("dom: element %T is not a browser element", el)
	}
	return ce, nil
}

// mapCDPErr translates devtools node-resolution failures into ErrStale so
// callers can re-resolve handles by key.
func mapCDPErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "Could not find node") ||
		strings.Contains(msg, "No node with given id") ||
		strings.Contains(msg, "node with given id does not belong") {
		return fmt.Errorf("%w: %v", ErrStale, err)
	}
	return err
}
