// Package parser reads package descriptions in the line format
//
//	81 : (1,53.38,€45) (2,88.62,€98) (3,78.48,€3)
//
// one package per line: a capacity, a colon, then (index,weight,cost) tuples
// separated by whitespace. The cost may carry a currency symbol.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/sander-remitly/packer/internal/models"
)

// ErrSyntax is matched by every error the parser returns for malformed input
var ErrSyntax = errors.New("syntax error")

// MaxLineBytes is the longest line Parse accepts
const MaxLineBytes = 1 << 20

// Error describes a malformed field
type Error struct {
	Line  int    // 1-based line number, 0 when unknown
	Field string // line, capacity, item, index, weight or cost
	Value string // raw text that failed to parse
	Err   error  // underlying conversion error, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("invalid %s %q", e.Field, e.Value)
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is lets errors.Is(err, ErrSyntax) match any *Error
func (e *Error) Is(target error) bool {
	return target == ErrSyntax
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Line is a parsed package along with where it came from
type Line struct {
	Number  int
	Package models.Package
}

// Parse reads every non-blank line of r
func Parse(r io.Reader) ([]Line, error) {
	var lines []Line

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	number := 0
	for scanner.Scan() {
		number++

		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		pkg, err := ParseLine(text)
		if err != nil {
			var perr *Error
			if errors.As(err, &perr) {
				perr.Line = number
			}
			return nil, err
		}

		lines = append(lines, Line{Number: number, Package: pkg})
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &Error{
				Line:  number + 1,
				Field: "line",
				Value: fmt.Sprintf("longer than %d bytes", MaxLineBytes),
				Err:   err,
			}
		}
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	return lines, nil
}

// ParseLine parses a single package description
func ParseLine(s string) (models.Package, error) {
	head, tail, found := strings.Cut(s, ":")
	if !found {
		return models.Package{}, &Error{Field: "line", Value: s, Err: errors.New("missing ':' separator")}
	}

	head = strings.TrimSpace(head)
	capacity, err := strconv.Atoi(head)
	if err != nil {
		return models.Package{}, &Error{Field: "capacity", Value: head, Err: numErr(err)}
	}

	fields := strings.Fields(tail)
	pkg := models.Package{
		Capacity: capacity,
		Items:    make([]models.PackageItem, 0, len(fields)),
	}

	for _, field := range fields {
		item, err := parseItem(field)
		if err != nil {
			return models.Package{}, err
		}
		pkg.Items = append(pkg.Items, item)
	}

	return pkg, nil
}

// parseItem parses "(index,weight,cost)"
func parseItem(s string) (models.PackageItem, error) {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return models.PackageItem{}, &Error{Field: "item", Value: s, Err: errors.New("expected (index,weight,cost)")}
	}

	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != 3 {
		return models.PackageItem{}, &Error{Field: "item", Value: s, Err: fmt.Errorf("expected 3 fields, got %d", len(parts))}
	}

	index, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return models.PackageItem{}, &Error{Field: "index", Value: parts[0], Err: numErr(err)}
	}

	weight, err := parseDecimal(parts[1])
	if err != nil {
		return models.PackageItem{}, &Error{Field: "weight", Value: parts[1], Err: err}
	}

	// Costs usually come with a currency symbol in front
	cost, err := parseDecimal(strings.TrimLeftFunc(parts[2], func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != '-'
	}))
	if err != nil {
		return models.PackageItem{}, &Error{Field: "cost", Value: parts[2], Err: err}
	}

	return models.PackageItem{Index: index, Weight: weight, Cost: cost}, nil
}

func parseDecimal(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, numErr(err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

// numErr drops strconv's repetition of the input text
func numErr(err error) error {
	var nerr *strconv.NumError
	if errors.As(err, &nerr) {
		return nerr.Err
	}
	return err
}
