package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/sander-remitly/packer/internal/models"
)

func TestParseLine_Valid(t *testing.T) {
	tests := []struct {
		name string
		line string
		want models.Package
	}{
		{
			name: "Euro costs",
			line: "81 : (1,53.38,€45) (2,88.62,€98)",
			want: models.Package{Capacity: 81, Items: []models.PackageItem{
				{Index: 1, Weight: 53.38, Cost: 45},
				{Index: 2, Weight: 88.62, Cost: 98},
			}},
		},
		{
			name: "Plain costs and extra whitespace",
			line: "  8:   (1,15.3,34)\t",
			want: models.Package{Capacity: 8, Items: []models.PackageItem{
				{Index: 1, Weight: 15.3, Cost: 34},
			}},
		},
		{
			name: "Dollar costs with decimals",
			line: "10 : (3,4,$9.5)",
			want: models.Package{Capacity: 10, Items: []models.PackageItem{
				{Index: 3, Weight: 4, Cost: 9.5},
			}},
		},
		{
			name: "No items",
			line: "42 :",
			want: models.Package{Capacity: 42, Items: []models.PackageItem{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}

			if got.Capacity != tt.want.Capacity {
				t.Errorf("Capacity = %d, want %d", got.Capacity, tt.want.Capacity)
			}

			if len(got.Items) != len(tt.want.Items) {
				t.Fatalf("Items = %+v, want %+v", got.Items, tt.want.Items)
			}

			for i, item := range got.Items {
				if item != tt.want.Items[i] {
					t.Errorf("Items[%d] = %+v, want %+v", i, item, tt.want.Items[i])
				}
			}
		})
	}
}

func TestParseLine_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantField string
	}{
		{"Missing separator", "81 (1,53.38,€45)", "line"},
		{"Empty capacity", " : (1,53.38,€45)", "capacity"},
		{"Fractional capacity", "81.5 : (1,53.38,€45)", "capacity"},
		{"Missing parentheses", "81 : 1,53.38,€45", "item"},
		{"Too few fields", "81 : (1,53.38)", "item"},
		{"Bad index", "81 : (x,53.38,€45)", "index"},
		{"Bad weight", "81 : (1,heavy,€45)", "weight"},
		{"Bad cost", "81 : (1,53.38,€)", "cost"},
		{"Infinite weight", "81 : (1,Inf,€45)", "weight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}

			if !errors.Is(err, ErrSyntax) {
				t.Errorf("Expected ErrSyntax, got %v", err)
			}

			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("Expected *Error, got %T", err)
			}

			if perr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", perr.Field, tt.wantField)
			}
		})
	}
}

func TestParse(t *testing.T) {
	input := strings.Join([]string{
		"81 : (1,53.38,€45) (2,88.62,€98)",
		"",
		"8 : (1,15.3,€34)",
		"   ",
		"75 : (1,85.31,€29)",
	}, "\n")

	lines, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}

	wantNumbers := []int{1, 3, 5}
	wantCapacities := []int{81, 8, 75}
	for i, line := range lines {
		if line.Number != wantNumbers[i] {
			t.Errorf("lines[%d].Number = %d, want %d", i, line.Number, wantNumbers[i])
		}
		if line.Package.Capacity != wantCapacities[i] {
			t.Errorf("lines[%d].Capacity = %d, want %d", i, line.Package.Capacity, wantCapacities[i])
		}
	}
}

func TestParse_ReportsLineNumber(t *testing.T) {
	input := "81 : (1,53.38,€45)\n\n8 : (1,oops,€34)\n"

	_, err := Parse(strings.NewReader(input))

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *Error, got %v", err)
	}

	if perr.Line != 3 {
		t.Errorf("Line = %d, want 3", perr.Line)
	}

	if !strings.HasPrefix(err.Error(), "line 3: invalid weight") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestParse_Empty(t *testing.T) {
	lines, err := Parse(strings.NewReader("\n\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(lines) != 0 {
		t.Errorf("Expected no lines, got %d", len(lines))
	}
}

func TestParse_LongLines(t *testing.T) {
	// Well past bufio.Scanner's default 64 KiB token size
	padded := "8 :" + strings.Repeat(" ", 100*1024) + "(1,15.3,€34)\n"

	lines, err := Parse(strings.NewReader(padded))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(lines) != 1 || len(lines[0].Package.Items) != 1 {
		t.Fatalf("Expected one package with one item, got %+v", lines)
	}

	tooLong := "8 : (1,15.3,€34)\n8 :" + strings.Repeat(" ", 2*MaxLineBytes) + "\n"

	_, err = Parse(strings.NewReader(tooLong))
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("Expected ErrSyntax, got %v", err)
	}

	var perr *Error
	if !errors.As(err, &perr) || perr.Line != 2 {
		t.Errorf("Expected the error on line 2, got %v", err)
	}
}
