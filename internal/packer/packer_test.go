package packer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sander-remitly/packer/internal/models"
	"github.com/sander-remitly/packer/internal/parser"
	"github.com/sander-remitly/packer/internal/validation"
)

func TestPackFile_Example(t *testing.T) {
	p := New()

	got, err := p.PackFile(context.Background(), filepath.Join("testdata", "example_input"))
	if err != nil {
		t.Fatalf("PackFile() error = %v", err)
	}

	want, err := os.ReadFile(filepath.Join("testdata", "example_output"))
	if err != nil {
		t.Fatalf("Failed to read expected output: %v", err)
	}

	if got != string(want) {
		t.Errorf("PackFile() = %q, want %q", got, string(want))
	}
}

func TestPackFile_Boundary(t *testing.T) {
	got, err := New().PackFile(context.Background(), filepath.Join("testdata", "example_input_boundary"))
	if err != nil {
		t.Fatalf("PackFile() error = %v", err)
	}

	if got != "1" {
		t.Errorf("PackFile() = %q, want %q", got, "1")
	}
}

func TestPackFile_Violations(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		wantRule string
	}{
		{"Capacity over 100", "example_input_violate_max_capacity", "max_capacity"},
		{"Item weight over 100", "example_input_violate_max_item_weight", "max_weight_cost"},
		{"Item cost over 100", "example_input_violate_max_item_cost", "max_weight_cost"},
		{"More than 15 items", "example_input_violate_max_items", "max_items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().PackFile(context.Background(), filepath.Join("testdata", tt.file))
			if !errors.Is(err, validation.ErrConstraint) {
				t.Fatalf("Expected ErrConstraint, got %v", err)
			}

			var violation *validation.Violation
			if !errors.As(err, &violation) || violation.Rule != tt.wantRule {
				t.Errorf("Expected %s violation, got %v", tt.wantRule, err)
			}
		})
	}
}

func TestPackFile_MissingFile(t *testing.T) {
	_, err := New().PackFile(context.Background(), filepath.Join("testdata", "does_not_exist"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
}

func TestPack_Results(t *testing.T) {
	input := "\n75 : (1,85.31,€29) (2,14.55,€74) (3,3.98,€16) (4,26.24,€55) (5,63.69,€52) (6,76.25,€75) (7,60.02,€74) (8,93.18,€35) (9,89.95,€78)\n"

	results, err := New().Pack(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}

	res := results[0]
	if res.Line != 2 {
		t.Errorf("Line = %d, want 2", res.Line)
	}

	if !reflect.DeepEqual(res.Selected, []int{2, 7}) {
		t.Errorf("Selected = %v, want [2 7]", res.Selected)
	}

	if res.TotalCost != 148 {
		t.Errorf("TotalCost = %v, want 148", res.TotalCost)
	}

	if diff := res.TotalWeight - 74.57; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("TotalWeight = %v, want 74.57", res.TotalWeight)
	}
}

func TestPack_KeepsInputOrder(t *testing.T) {
	var b strings.Builder
	var want []string
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			b.WriteString("81 : (1,53.38,€45) (2,88.62,€98) (3,78.48,€3) (4,72.30,€76) (5,30.18,€9) (6,46.34,€48)\n")
			want = append(want, "4")
		} else {
			b.WriteString("8 : (1,15.3,€34)\n")
			want = append(want, "-")
		}
	}

	results, err := New(WithWorkers(4)).Pack(context.Background(), strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}

	if got := Format(results); got != strings.Join(want, "\n") {
		t.Errorf("Format() = %q", got)
	}

	for i, res := range results {
		if res.Line != i+1 {
			t.Errorf("results[%d].Line = %d, want %d", i, res.Line, i+1)
		}
	}
}

func TestPack_SyntaxError(t *testing.T) {
	_, err := New().Pack(context.Background(), strings.NewReader("81 : (1,53.38,€45)\nnot a package\n"))
	if !errors.Is(err, parser.ErrSyntax) {
		t.Errorf("Expected ErrSyntax, got %v", err)
	}
}

func TestPack_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var b strings.Builder
	for i := 0; i < 1000; i++ {
		b.WriteString("8 : (1,15.3,€34)\n")
	}

	_, err := New(WithWorkers(1)).Pack(ctx, strings.NewReader(b.String()))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSolve(t *testing.T) {
	p := New()

	res, err := p.Solve(models.Package{Capacity: 10, Items: []models.PackageItem{
		{Index: 5, Weight: 4, Cost: 40},
		{Index: 3, Weight: 6, Cost: 30},
		{Index: 9, Weight: 5, Cost: 50},
	}})
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}

	if !reflect.DeepEqual(res.Selected, []int{5, 9}) {
		t.Errorf("Selected = %v, want [5 9]", res.Selected)
	}

	if res.String() != "5,9" {
		t.Errorf("String() = %q, want %q", res.String(), "5,9")
	}
}

func TestSolve_DuplicateIndices(t *testing.T) {
	res, err := New().Solve(models.Package{Capacity: 10, Items: []models.PackageItem{
		{Index: 1, Weight: 4, Cost: 10},
		{Index: 1, Weight: 5, Cost: 20},
	}})
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}

	if res.TotalCost != 30 || res.TotalWeight != 9 {
		t.Errorf("Totals = %v/%v, want 30/9", res.TotalCost, res.TotalWeight)
	}
}

func TestSolve_CustomLimits(t *testing.T) {
	p := New(WithValidator(validation.New(models.Limits{MaxCapacity: 5, MaxItems: 1, MaxWeight: 5, MaxCost: 5})))

	_, err := p.Solve(models.Package{Capacity: 6})
	if !errors.Is(err, validation.ErrConstraint) {
		t.Errorf("Expected ErrConstraint, got %v", err)
	}
}

func TestScale(t *testing.T) {
	pkg := models.Package{Capacity: 10, Items: []models.PackageItem{
		{Index: 1, Weight: 3.2, Cost: 10},
		{Index: 2, Weight: 3.2, Cost: 10},
		{Index: 3, Weight: 3.2, Cost: 10},
	}}

	// In hundredths all three fit: 9.6
	res, err := New().Solve(pkg)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !reflect.DeepEqual(res.Selected, []int{1, 2, 3}) {
		t.Errorf("Selected = %v, want [1 2 3]", res.Selected)
	}

	// Whole units count each item as 4, so only two fit
	res, err = New(WithScale(1)).Solve(pkg)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !reflect.DeepEqual(res.Selected, []int{1, 2}) {
		t.Errorf("Selected = %v, want [1 2]", res.Selected)
	}
	if res.TotalWeight > float64(pkg.Capacity) {
		t.Errorf("TotalWeight = %v exceeds capacity %d", res.TotalWeight, pkg.Capacity)
	}
}

func TestPack_NeverExceedsCapacity(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Single item a hair too heavy", "8 : (1,8.004,€34)", "-"},
		{"Pair a hair too heavy", "8 : (1,4.004,€10) (2,4.004,€10)", "1"},
		{"Exact fit", "8 : (1,8.00,€34)", "1"},
		{"Exact fit from two decimals", "81 : (1,53.38,€45) (2,27.62,€10)", "1,2"},
		{"Weights with float noise", "1 : (1,0.1,€1) (2,0.2,€1) (3,0.7,€1)", "1,2,3"},
		{"Zero weight item", "8 : (1,0,€5) (2,8,€20)", "1,2"},
		{"Weight below one unit", "8 : (1,0.001,€5) (2,8,€20)", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := New().Pack(context.Background(), strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Pack() error = %v", err)
			}

			if got := Format(results); got != tt.want {
				t.Errorf("Output = %q, want %q", got, tt.want)
			}

			for _, res := range results {
				if res.TotalWeight > float64(res.Package.Capacity) {
					t.Errorf("TotalWeight = %v exceeds capacity %d", res.TotalWeight, res.Package.Capacity)
				}
			}
		})
	}
}

func TestFormat(t *testing.T) {
	results := []Result{
		{Selected: []int{4}},
		{Selected: nil},
		{Selected: []int{2, 7}},
	}

	if got := Format(results); got != "4\n-\n2,7" {
		t.Errorf("Format() = %q", got)
	}

	if got := Format(nil); got != "" {
		t.Errorf("Format(nil) = %q, want empty", got)
	}
}
