package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// sumOfEntries recomputes the grand total from scratch for invariant checks.
func sumOfEntries(t *Totals) Pair {
	var sum Pair
	for _, name := range t.Names() {
		p, _ := t.Get(name)
		sum = sum.add(p)
	}
	return sum
}

func TestTotals_ZeroOnCreation(t *testing.T) {
	totals := NewTotals()
	assert.Equal(t, Pair{}, totals.Total())
	assert.Equal(t, 0, totals.Len())
}

func TestTotals_TotalTracksEveryMutation(t *testing.T) {
	totals := NewTotals()

	totals.Add("Install", Pair{Quoted: 60})
	assert.Equal(t, sumOfEntries(totals), totals.Total())

	totals.Add("Install", Pair{Worked: 30})
	assert.Equal(t, sumOfEntries(totals), totals.Total())

	totals.Add("Design", Pair{Quoted: 15, Worked: 5})
	assert.Equal(t, sumOfEntries(totals), totals.Total())

	assert.Equal(t, Pair{Quoted: 75, Worked: 35}, totals.Total())
}

func TestTotals_AddMergesSameName(t *testing.T) {
	totals := NewTotals()
	totals.Add("Install", Pair{Quoted: 10})
	totals.Add("Install", Pair{Quoted: 20, Worked: 5})

	p, ok := totals.Get("Install")
	assert.True(t, ok)
	assert.Equal(t, Pair{Quoted: 30, Worked: 5}, p)
	assert.Equal(t, 1, totals.Len())
}

func TestTotals_ReplaceDiscardsPriorState(t *testing.T) {
	totals := NewTotals()
	totals.Add("Install", Pair{Quoted: 100, Worked: 40})

	totals.Replace(map[string]Pair{
		"Design": {Quoted: 25},
		"Wiring": {Quoted: 35},
	})

	_, ok := totals.Get("Install")
	assert.False(t, ok)
	assert.Equal(t, Pair{Quoted: 60}, totals.Total())
	assert.Equal(t, sumOfEntries(totals), totals.Total())
}

func TestTotals_NamesSorted(t *testing.T) {
	totals := NewTotals()
	totals.Add("Wiring", Pair{})
	totals.Add("Design", Pair{})
	totals.Add("Install", Pair{})
	assert.Equal(t, []string{"Design", "Install", "Wiring"}, totals.Names())
}

func TestBook_TouchIsLazyAndStable(t *testing.T) {
	book := NewBook()

	_, ok := book.Get("opp1")
	assert.False(t, ok)

	first := book.Touch("opp1")
	assert.Equal(t, Pair{}, first.Total())

	first.Add("Install", Pair{Quoted: 10})
	again := book.Touch("opp1")
	assert.Same(t, first, again)

	got, ok := book.Get("opp1")
	assert.True(t, ok)
	assert.Equal(t, Pair{Quoted: 10}, got.Total())
}
