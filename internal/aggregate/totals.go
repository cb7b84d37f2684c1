// Package aggregate merges time-entry, labor, and service data into
// per-opportunity totals.
package aggregate

import "sort"

// Pair is one accumulator cell. In the labor book it holds quoted and
// worked minutes; in the service book it holds quantity and price.
type Pair struct {
	Quoted float64
	Worked float64
}

// add returns the element-wise sum of two pairs.
func (p Pair) add(o Pair) Pair {
	return Pair{Quoted: p.Quoted + o.Quoted, Worked: p.Worked + o.Worked}
}

// Totals accumulates per-name pairs for one opportunity alongside a running
// grand total. The grand total is only ever mutated together with an entry,
// so it always equals the element-wise sum of the entries.
type Totals struct {
	perName map[string]Pair
	total   Pair
}

// NewTotals returns an empty accumulator with a zero grand total.
func NewTotals() *Totals {
	return &Totals{perName: make(map[string]Pair)}
}

// Add folds a pair into the named entry and the grand total.
func (t *Totals) Add(name string, p Pair) {
	t.perName[name] = t.perName[name].add(p)
	t.total = t.total.add(p)
}

// Replace discards all prior state and installs the given breakdown,
// recomputing the grand total from it. Used when a best quote wins.
func (t *Totals) Replace(breakdown map[string]Pair) {
	t.perName = make(map[string]Pair, len(breakdown))
	t.total = Pair{}
	for name, p := range breakdown {
		t.perName[name] = p
		t.total = t.total.add(p)
	}
}

// Get returns the pair accumulated under name.
func (t *Totals) Get(name string) (Pair, bool) {
	p, ok := t.perName[name]
	return p, ok
}

// Names returns all entry names in sorted order for deterministic output.
func (t *Totals) Names() []string {
	names := make([]string, 0, len(t.perName))
	for name := range t.perName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Total returns the grand total pair.
func (t *Totals) Total() Pair {
	return t.total
}

// Len returns the number of named entries.
func (t *Totals) Len() int {
	return len(t.perName)
}

// Book maps opportunity id to its accumulator, creating zeroed entries
// lazily so an opportunity with no matching items still has a well-defined
// zero total.
type Book struct {
	entries map[string]*Totals
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{entries: make(map[string]*Totals)}
}

// Touch returns the accumulator for id, creating a zeroed one on first use.
func (b *Book) Touch(id string) *Totals {
	t, ok := b.entries[id]
	if !ok {
		t = NewTotals()
		b.entries[id] = t
	}
	return t
}

// Get returns the accumulator for id if it exists.
func (b *Book) Get(id string) (*Totals, bool) {
	t, ok := b.entries[id]
	return t, ok
}
