package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PackageItem is a single candidate item as read from the input
type PackageItem struct {
	Index  int     `json:"index"`  // 1-based position reported in the output
	Weight float64 `json:"weight"` // item weight
	Cost   float64 `json:"cost"`   // item cost
}

// Package is one input line: a capacity and the items to choose from
type Package struct {
	Capacity int           `json:"capacity"`
	Items    []PackageItem `json:"items"`
}

// String renders the package back in the input line format
func (p Package) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(p.Capacity))
	b.WriteString(" :")
	for _, item := range p.Items {
		fmt.Fprintf(&b, " (%d,%s,€%s)", item.Index, formatNumber(item.Weight), formatNumber(item.Cost))
	}
	return b.String()
}

// FormatSelection renders selected indices as the output line: "-" when
// nothing was selected, otherwise a comma separated list.
func FormatSelection(indices []int) string {
	if len(indices) == 0 {
		return "-"
	}

	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SolveRequest represents the API request for a single package
type SolveRequest struct {
	Capacity int           `json:"capacity"`
	Items    []PackageItem `json:"items"`
}

// SolveResponse represents the API response for a single package
type SolveResponse struct {
	Capacity          int           `json:"capacity"`
	Items             []PackageItem `json:"items"`
	Selected          []int         `json:"selected"`                  // Selected item indices, ascending
	Output            string        `json:"output"`                    // Rendered output line
	TotalCost         float64       `json:"total_cost"`                // Sum of selected costs
	TotalWeight       float64       `json:"total_weight"`              // Sum of selected weights
	CalculationTimeMs int64         `json:"calculation_time_ms"`       // Time taken in milliseconds
	Cached            bool          `json:"cached"`                    // Whether result was from cache
	CacheTTL          string        `json:"cache_ttl,omitempty"`       // Current cache TTL (if cached)
	CacheHitCount     int           `json:"cache_hit_count,omitempty"` // Number of cache hits for this package
}

// LineResult is the outcome for one line of a packed document
type LineResult struct {
	Line        int     `json:"line"`
	Capacity    int     `json:"capacity"`
	Selected    []int   `json:"selected"`
	Output      string  `json:"output"`
	TotalCost   float64 `json:"total_cost"`
	TotalWeight float64 `json:"total_weight"`
}

// PackResponse represents the API response for a whole document
type PackResponse struct {
	Results           []LineResult `json:"results"`
	Output            string       `json:"output"`
	CalculationTimeMs int64        `json:"calculation_time_ms"`
}

// Example is a named sample input
type Example struct {
	Name    string  `json:"name"`
	Input   string  `json:"input"`
	Package Package `json:"package"`
	Output  string  `json:"output"`
}

// ExamplesResponse represents the API response for examples
type ExamplesResponse struct {
	Examples []Example `json:"examples"`
}

// Limits are the constraints every package must satisfy before it is solved
type Limits struct {
	MaxCapacity int     `json:"max_capacity"`
	MaxItems    int     `json:"max_items"`
	MaxWeight   float64 `json:"max_weight"`
	MaxCost     float64 `json:"max_cost"`
}

// LimitsResponse represents the current limits
type LimitsResponse struct {
	Limits
	UpdatedAt time.Time `json:"updated_at"`
	Message   string    `json:"message,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
}

// HistoryEntry represents a solved package
type HistoryEntry struct {
	ID          int           `json:"id"`
	Capacity    int           `json:"capacity"`
	Items       []PackageItem `json:"items"`
	Selected    []int         `json:"selected"`
	Output      string        `json:"output"`
	TotalCost   float64       `json:"total_cost"`
	TotalWeight float64       `json:"total_weight"`
	Timestamp   time.Time     `json:"timestamp"`
}

// HistoryResponse represents the API response for history
type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
	Count   int            `json:"count"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
	Code    int      `json:"code,omitempty"`
}

// CacheStatsResponse represents cache statistics
type CacheStatsResponse struct {
	Enabled    bool    `json:"enabled"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	TotalKeys  int64   `json:"total_keys"`
	MemoryUsed string  `json:"memory_used"`
	Uptime     string  `json:"uptime"`
}

// DefaultLimits returns the standard package constraints
func DefaultLimits() Limits {
	return Limits{
		MaxCapacity: 100,
		MaxItems:    15,
		MaxWeight:   100,
		MaxCost:     100,
	}
}

// GetExamples returns the sample inputs with their expected outputs
func GetExamples() []Example {
	return []Example{
		{
			Name:  "Single heavy winner",
			Input: "81 : (1,53.38,€45) (2,88.62,€98) (3,78.48,€3) (4,72.30,€76) (5,30.18,€9) (6,46.34,€48)",
			Package: Package{Capacity: 81, Items: []PackageItem{
				{1, 53.38, 45}, {2, 88.62, 98}, {3, 78.48, 3},
				{4, 72.30, 76}, {5, 30.18, 9}, {6, 46.34, 48},
			}},
			Output: "4",
		},
		{
			Name:  "Nothing fits",
			Input: "8 : (1,15.3,€34)",
			Package: Package{Capacity: 8, Items: []PackageItem{
				{1, 15.3, 34},
			}},
			Output: "-",
		},
		{
			Name:  "Two items",
			Input: "75 : (1,85.31,€29) (2,14.55,€74) (3,3.98,€16) (4,26.24,€55) (5,63.69,€52) (6,76.25,€75) (7,60.02,€74) (8,93.18,€35) (9,89.95,€78)",
			Package: Package{Capacity: 75, Items: []PackageItem{
				{1, 85.31, 29}, {2, 14.55, 74}, {3, 3.98, 16},
				{4, 26.24, 55}, {5, 63.69, 52}, {6, 76.25, 75},
				{7, 60.02, 74}, {8, 93.18, 35}, {9, 89.95, 78},
			}},
			Output: "2,7",
		},
	}
}
