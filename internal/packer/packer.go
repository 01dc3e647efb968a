package packer

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sander-remitly/packer/internal/knapsack"
	"github.com/sander-remitly/packer/internal/models"
	"github.com/sander-remitly/packer/internal/parser"
	"github.com/sander-remitly/packer/internal/validation"
	"go.uber.org/zap"
)

// DefaultScale converts input values to hundredths before solving
const DefaultScale = 100

// Result is the solved form of one input line
type Result struct {
	Line        int
	Package     models.Package
	Selected    []int // selected item indices, ascending
	TotalCost   float64
	TotalWeight float64
}

// String renders the result as an output line
func (r Result) String() string {
	return models.FormatSelection(r.Selected)
}

// Packer parses, validates and solves package descriptions
type Packer struct {
	validator *validation.Validator
	scale     int
	workers   int
	log       *zap.Logger
}

// Option configures a Packer
type Option func(*Packer)

// WithValidator replaces the default-limits validator
func WithValidator(v *validation.Validator) Option {
	return func(p *Packer) { p.validator = v }
}

// WithScale sets how many integer units one input unit is split into.
// Values finer than 1/scale are rounded to the nearest unit.
func WithScale(scale int) Option {
	return func(p *Packer) {
		if scale > 0 {
			p.scale = scale
		}
	}
}

// WithWorkers sets how many packages are solved at once
func WithWorkers(n int) Option {
	return func(p *Packer) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(p *Packer) {
		if log != nil {
			p.log = log
		}
	}
}

// New creates a Packer
func New(opts ...Option) *Packer {
	p := &Packer{
		validator: validation.New(models.DefaultLimits()),
		scale:     DefaultScale,
		workers:   runtime.NumCPU(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PackFile solves every package in the file at path and returns the output,
// one line per package.
func (p *Packer) PackFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	results, err := p.Pack(ctx, f)
	if err != nil {
		return "", err
	}

	return Format(results), nil
}

// Pack solves every package read from r.
// All lines are parsed and validated before anything is solved; the first
// malformed or invalid line fails the whole input.
func (p *Packer) Pack(ctx context.Context, r io.Reader) ([]Result, error) {
	lines, err := parser.Parse(r)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		if err := p.validator.Validate(line.Package); err != nil {
			return nil, fmt.Errorf("line %d: %w", line.Number, err)
		}
	}

	start := time.Now()
	results, err := p.solveAll(ctx, lines)
	if err != nil {
		return nil, err
	}

	p.log.Debug("Packed input",
		zap.Int("packages", len(results)),
		zap.Int("workers", p.workers),
		zap.Duration("duration", time.Since(start)),
	)

	return results, nil
}

// Solve validates and solves a single package
func (p *Packer) Solve(pkg models.Package) (Result, error) {
	if err := p.validator.Validate(pkg); err != nil {
		return Result{}, err
	}
	return p.solve(pkg)
}

// solveAll fans the packages out to a bounded set of workers.
// Results keep the input order.
func (p *Packer) solveAll(ctx context.Context, lines []parser.Line) ([]Result, error) {
	results := make([]Result, len(lines))
	errs := make([]error, len(lines))

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := min(p.workers, len(lines))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := p.solve(lines[i].Package)
				if err != nil {
					errs[i] = fmt.Errorf("line %d: %w", lines[i].Number, err)
					continue
				}
				res.Line = lines[i].Number
				results[i] = res
			}
		}()
	}

	cancelled := false
feed:
	for i := range lines {
		select {
		case jobs <- i:
		case <-ctx.Done():
			cancelled = true
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return nil, ctx.Err()
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

func (p *Packer) solve(pkg models.Package) (Result, error) {
	sol, err := knapsack.Solve(p.problem(pkg))
	if err != nil {
		return Result{}, err
	}

	// Problem IDs are positions, so duplicate input indices stay distinct
	res := Result{
		Package:  pkg,
		Selected: make([]int, 0, len(sol.IDs)),
	}
	for _, pos := range sol.IDs {
		item := pkg.Items[pos]
		res.Selected = append(res.Selected, item.Index)
		res.TotalCost += item.Cost
		res.TotalWeight += item.Weight
	}
	sort.Ints(res.Selected)

	return res, nil
}

// problem converts a package to integer units. Capacity, weights and costs all
// go through the same scale, so the table and the backtracking see the same
// numbers. Weights round up and costs to nearest, so a selection never
// outweighs the capacity in the input's own units.
func (p *Packer) problem(pkg models.Package) knapsack.Problem {
	prob := knapsack.Problem{
		Capacity: pkg.Capacity * p.scale,
		Items:    make([]knapsack.Item, len(pkg.Items)),
	}
	for i, item := range pkg.Items {
		prob.Items[i] = knapsack.Item{
			ID:     i,
			Weight: p.weightUnits(item.Weight),
			Cost:   p.costUnits(item.Cost),
		}
	}
	return prob
}

// weightUnits rounds up. The slack absorbs float error in values that are
// already whole units, e.g. 53.38*100 = 5338.000000000001.
func (p *Packer) weightUnits(v float64) int {
	x := v * float64(p.scale)
	return int(math.Ceil(x - 1e-9*math.Max(1, math.Abs(x))))
}

func (p *Packer) costUnits(v float64) int {
	return int(math.Round(v * float64(p.scale)))
}

// Scale returns the number of integer units per input unit
func (p *Packer) Scale() int {
	return p.scale
}

// Format renders results one per line, without a trailing newline
func Format(results []Result) string {
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}
