package knapsack

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidProblem is returned when a problem instance violates the solver's
// preconditions (negative capacity, weight or cost).
var ErrInvalidProblem = errors.New("invalid problem instance")

// Item is a candidate for the package.
// ID is the item's original position in the input and is what gets reported back.
type Item struct {
	ID     int
	Weight int
	Cost   int
}

// Problem is a single 0/1 knapsack instance
type Problem struct {
	Capacity int
	Items    []Item
}

// Solution is the outcome of solving a Problem
type Solution struct {
	IDs    []int // selected item IDs, ascending
	Cost   int   // total cost of the selection
	Weight int   // total weight of the selection
}

// Empty reports whether nothing fits
func (s Solution) Empty() bool {
	return len(s.IDs) == 0
}

// Table holds the best achievable cost for every (item prefix, capacity) pair.
// Row i covers the first i items, column w a weight budget of w.
type Table struct {
	rows  int
	cols  int
	cells []int
}

// At returns the best cost using the first i items within budget w
func (t *Table) At(i, w int) int {
	return t.cells[i*t.cols+w]
}

// Items returns the number of items the table was built for
func (t *Table) Items() int {
	return t.rows - 1
}

// Capacity returns the largest weight budget covered by the table
func (t *Table) Capacity() int {
	return t.cols - 1
}

// Best returns the optimal cost over all items at full capacity
func (t *Table) Best() int {
	return t.At(t.rows-1, t.cols-1)
}

// Build fills the optimal-value table for the given capacity and items.
//
// T[0][*] is zero. Column 0 is filled like every other column, so
// zero-weight items count at every budget. In each cell the item either does
// not fit, and the value is carried down from the previous row, or the better
// of leaving it out and taking it on top of T[i-1][w-weight] is kept.
//
// Time and space are O(len(items) * capacity).
func Build(capacity int, items []Item) (*Table, error) {
	if err := check(capacity, items); err != nil {
		return nil, err
	}

	cols := capacity + 1
	t := &Table{
		rows:  len(items) + 1,
		cols:  cols,
		cells: make([]int, (len(items)+1)*cols),
	}

	for i := 1; i < t.rows; i++ {
		item := items[i-1]
		prev := t.cells[(i-1)*cols : i*cols]
		row := t.cells[i*cols : (i+1)*cols]

		for w := 0; w < cols; w++ {
			skip := prev[w]
			if item.Weight > w {
				row[w] = skip
				continue
			}
			if take := item.Cost + prev[w-item.Weight]; take > skip {
				row[w] = take
			} else {
				row[w] = skip
			}
		}
	}

	return t, nil
}

// Reconstruct walks a filled table backward and returns the IDs of the items
// that realize t.Best(), in ascending order.
//
// The scan starts at the last item. An item is left out whenever the row
// above already reaches the remaining cost, so among equally good subsets
// the one preferred is the one this highest-index-first scan meets first.
// That is not necessarily the lightest one.
func Reconstruct(t *Table, items []Item) []int {
	ids, _ := selection(t, items)
	return ids
}

// selection returns the sorted IDs and the total weight of the backtracked items
func selection(t *Table, items []Item) ([]int, int) {
	picked := backtrack(t, items)

	ids := make([]int, len(picked))
	weight := 0
	for k, pos := range picked {
		ids[k] = items[pos].ID
		weight += items[pos].Weight
	}
	sort.Ints(ids)
	return ids, weight
}

// backtrack returns the positions of the selected items, highest first
func backtrack(t *Table, items []Item) []int {
	picked := make([]int, 0, len(items))

	w := t.Capacity()
	remaining := t.Best()
	for i := t.Items(); i > 0 && remaining > 0; i-- {
		if remaining == t.At(i-1, w) {
			continue
		}

		picked = append(picked, i-1)
		remaining -= items[i-1].Cost
		w -= items[i-1].Weight
	}

	return picked
}

// Solve builds the table for p and reconstructs its selection.
// An instance where nothing fits yields an empty Solution, not an error.
func Solve(p Problem) (Solution, error) {
	t, err := Build(p.Capacity, p.Items)
	if err != nil {
		return Solution{}, err
	}

	ids, weight := selection(t, p.Items)

	return Solution{IDs: ids, Cost: t.Best(), Weight: weight}, nil
}

func check(capacity int, items []Item) error {
	if capacity < 0 {
		return fmt.Errorf("%w: negative capacity %d", ErrInvalidProblem, capacity)
	}

	for _, item := range items {
		if item.Weight < 0 {
			return fmt.Errorf("%w: item %d has negative weight %d", ErrInvalidProblem, item.ID, item.Weight)
		}
		if item.Cost < 0 {
			return fmt.Errorf("%w: item %d has negative cost %d", ErrInvalidProblem, item.ID, item.Cost)
		}
	}

	return nil
}
