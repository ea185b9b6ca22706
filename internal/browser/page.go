package browser

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/chromedp/chromedp"
	"golang.org/x/crypto/sha3"
	"golang.org/x/text/cases"

	"github.com/nao1215/tabcollate/internal/driver"
	"github.com/nao1215/tabcollate/internal/extract"
	"github.com/nao1215/tabcollate/internal/model"
)

// DefaultTable is the result table selector used when a layout names none.
const DefaultTable = "table"

// ErrInvalidLayout is returned for a layout that cannot drive any page.
var ErrInvalidLayout = errors.New("invalid page layout")

// Layout names the selectors of one site's page.
type Layout struct {
	// Controls maps an axis to the CSS selector of its <select>.
	Controls map[string]string

	// Breakdown selects the control choosing the table's breakdown axis.
	// Its option labels are axis names.
	Breakdown string

	// FixedBreakdown names the axis the table always breaks down by, for
	// pages without a breakdown control.
	FixedBreakdown string

	// Table selects the result table. Empty means DefaultTable.
	Table string

	// Busy selects loading indicators. While any is visible the page is not ready.
	Busy string

	// OptionCounts reports that option labels end in a count, as in
	// "Texas (1,204)".
	OptionCounts bool
}

// Validate checks that the layout can drive a page.
func (l Layout) Validate() error {
	if len(l.Controls) == 0 {
		return fmt.Errorf("%w: no controls", ErrInvalidLayout)
	}
	if l.Breakdown == "" && l.FixedBreakdown == "" {
		return fmt.Errorf("%w: neither a breakdown control nor a fixed breakdown", ErrInvalidLayout)
	}
	return nil
}

func (l Layout) table() string {
	if l.Table == "" {
		return DefaultTable
	}
	return l.Table
}

// Page is one browser tab showing a tabulation page. It implements driver.Page.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	target string
	layout Layout
	logger *slog.Logger
}

var _ driver.Page = (*Page)(nil)

// Close closes the tab.
func (p *Page) Close() {
	p.cancel()
}

// rawOption is an <option> as the page script reports it.
type rawOption struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Disabled bool   `json:"disabled"`
}

type optionsResult struct {
	Found   bool        `json:"found"`
	Options []rawOption `json:"options"`
}

const optionsScript = `(() => {
  const el = document.querySelector(%s);
  if (!el || !el.options) return {found: false, options: []};
  return {found: true, options: Array.from(el.options).map((o, i) => ({
    index: i, text: o.textContent.trim(), disabled: o.disabled,
  }))};
})()`

const chooseScript = `(() => {
  const el = document.querySelector(%s);
  if (!el || !el.options) return "missing";
  const o = el.options[%d];
  if (!o || o.textContent.trim() !== %s) return "stale";
  if (o.disabled) return "disabled";
  el.selectedIndex = %d;
  el.dispatchEvent(new Event("input", {bubbles: true}));
  el.dispatchEvent(new Event("change", {bubbles: true}));
  return "ok";
})()`

type snapshotResult struct {
	Ready  string   `json:"ready"`
	Busy   bool     `json:"busy"`
	Table  string   `json:"table"`
	Values []string `json:"values"`
}

const snapshotScript = `(() => {
  const busy = %s !== "" && Array.from(document.querySelectorAll(%s)).some(e => e.offsetParent !== null);
  const t = document.querySelector(%s);
  const values = Array.from(document.querySelectorAll("select")).map(s => s.value);
  return {ready: document.readyState, busy: busy, table: t ? t.outerHTML : "", values: values};
})()`

const tableScript = `(() => {
  const t = document.querySelector(%s);
  return t ? t.outerHTML : "";
})()`

// Options lists the enabled options of the axis control.
func (p *Page) Options(ctx context.Context, axis string) ([]model.Option, error) {
	sel, ok := p.layout.Controls[axis]
	if !ok {
		return nil, fmt.Errorf("%w: %s", driver.ErrUnknownControl, axis)
	}
	raw, err := p.options(ctx, sel)
	if err != nil {
		return nil, err
	}
	opts := make([]model.Option, 0, len(raw))
	for _, o := range raw {
		if o.Disabled || o.Text == "" {
			continue
		}
		opts = append(opts, p.parseOption(o.Text))
	}
	return opts, nil
}

func (p *Page) options(ctx context.Context, sel string) ([]rawOption, error) {
	var res optionsResult
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(optionsScript, quote(sel)), &res)); err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, fmt.Errorf("%w: control %s is absent", driver.ErrNotReady, sel)
	}
	return res.Options, nil
}

func (p *Page) parseOption(text string) model.Option {
	if !p.layout.OptionCounts {
		return model.Option{Label: text}
	}
	return ParseOptionLabel(text)
}

// Choose selects the option of the axis control whose label is value.
func (p *Page) Choose(ctx context.Context, axis, value string) error {
	sel, ok := p.layout.Controls[axis]
	if !ok {
		return fmt.Errorf("%w: %s", driver.ErrUnknownControl, axis)
	}
	return p.choose(ctx, sel, value, p.parseOption)
}

func (p *Page) choose(ctx context.Context, sel, value string, parse func(string) model.Option) error {
	raw, err := p.options(ctx, sel)
	if err != nil {
		return err
	}
	labels := make([]string, len(raw))
	for i, o := range raw {
		labels[i] = parse(o.Text).Label
	}
	i := MatchLabel(labels, value)
	if i < 0 || raw[i].Disabled {
		return fmt.Errorf("%w: %q in %s", driver.ErrOptionNotFound, value, sel)
	}

	var status string
	script := fmt.Sprintf(chooseScript, quote(sel), raw[i].Index, quote(raw[i].Text), raw[i].Index)
	if err := p.run(ctx, chromedp.Evaluate(script, &status)); err != nil {
		return err
	}
	switch status {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("%w: control %s is absent", driver.ErrNotReady, sel)
	case "stale":
		return fmt.Errorf("%w: options of %s changed", driver.ErrStaleReference, sel)
	case "disabled":
		return fmt.Errorf("%w: %q in %s is disabled", driver.ErrOptionNotFound, value, sel)
	default:
		return fmt.Errorf("unexpected choose status %q", status)
	}
}

// Breakdown makes the table break down by axis.
func (p *Page) Breakdown(ctx context.Context, axis string) error {
	if p.layout.FixedBreakdown != "" {
		if fold(axis) == fold(p.layout.FixedBreakdown) {
			return nil
		}
		if p.layout.Breakdown == "" {
			return fmt.Errorf("%w: table always breaks down by %s, not %s",
				driver.ErrOptionNotFound, p.layout.FixedBreakdown, axis)
		}
	}
	return p.choose(ctx, p.layout.Breakdown, axis, func(s string) model.Option {
		return model.Option{Label: s}
	})
}

// Snapshot digests the table markup and every control value. It reports
// ErrNotReady while the document loads or a busy indicator shows.
func (p *Page) Snapshot(ctx context.Context) (string, error) {
	busy := quote(p.layout.Busy)
	script := fmt.Sprintf(snapshotScript, busy, busy, quote(p.layout.table()))
	var res snapshotResult
	if err := p.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return "", err
	}
	if res.Ready != "complete" {
		return "", fmt.Errorf("%w: document is %s", driver.ErrNotReady, res.Ready)
	}
	if res.Busy {
		return "", fmt.Errorf("%w: page is busy", driver.ErrNotReady)
	}
	h := sha3.New256()
	h.Write([]byte(res.Table))
	for _, v := range res.Values {
		h.Write([]byte{0})
		h.Write([]byte(v))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Table reads the result table.
func (p *Page) Table(ctx context.Context) ([]model.RawRow, error) {
	var markup string
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(tableScript, quote(p.layout.table())), &markup)); err != nil {
		return nil, err
	}
	if markup == "" {
		return nil, fmt.Errorf("%w: no table matches %s", driver.ErrNotReady, p.layout.table())
	}
	return ParseTable(markup)
}

// Reset reloads the page.
func (p *Page) Reset(ctx context.Context) error {
	p.logger.Debug("reloading page", "target", p.target)
	return p.run(ctx, chromedp.Reload(), chromedp.WaitReady("body"))
}

// run executes actions in the tab, bounded by ctx.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return classify(err)
	}
	return nil
}

// staleMessages are protocol errors raised when the page re-rendered or
// navigated under a running script.
var staleMessages = []string{
	"Execution context was destroyed",
	"Cannot find context with specified id",
	"No node with given id",
	"Could not find node with given id",
	"Inspected target navigated or closed",
}

func classify(err error) error {
	msg := err.Error()
	for _, m := range staleMessages {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", driver.ErrStaleReference, err)
		}
	}
	return err
}

// quote renders s as a JavaScript string literal.
func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// Marshal of a string cannot fail.
		panic(err)
	}
	return string(b)
}

var countSuffix = regexp.MustCompile(`^(.*\S)\s*\(\s*([0-9][0-9,\s\x{00a0}\x{202f}]*)\)$`)

// ParseOptionLabel splits a trailing count off an option label.
// "Texas (1,204)" is Texas with count 1204. A label without a numeric
// parenthesised suffix is returned unchanged without a count.
func ParseOptionLabel(text string) model.Option {
	text = strings.TrimSpace(text)
	m := countSuffix.FindStringSubmatch(text)
	if m == nil {
		return model.Option{Label: text}
	}
	n, err := extract.ParseCount(m[2])
	if err != nil {
		return model.Option{Label: text}
	}
	return model.Option{Label: strings.TrimSpace(m[1]), Count: n, HasCount: true}
}

// MatchLabel returns the index of value in labels, or -1. An exact match
// wins over a case-folded one.
func MatchLabel(labels []string, value string) int {
	for i, l := range labels {
		if l == value {
			return i
		}
	}
	want := fold(value)
	for i, l := range labels {
		if fold(l) == want {
			return i
		}
	}
	return -1
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
