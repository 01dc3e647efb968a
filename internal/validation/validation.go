package validation

import (
	"errors"
	"fmt"

	"github.com/sander-remitly/packer/internal/models"
	"go.uber.org/multierr"
)

// ErrConstraint is matched by every constraint violation
var ErrConstraint = errors.New("constraint violated")

// Violation is a failed rule
type Violation struct {
	Rule   string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Reason)
}

// Is lets errors.Is(err, ErrConstraint) match any *Violation
func (v *Violation) Is(target error) bool {
	return target == ErrConstraint
}

// Rule is a single independent check. Check returns an empty reason when the
// package passes.
type Rule struct {
	Name  string
	Check func(pkg models.Package, limits models.Limits) string
}

// Validator runs an ordered list of rules against packages
type Validator struct {
	limits models.Limits
	rules  []Rule
}

// New creates a validator with the default rules
func New(limits models.Limits) *Validator {
	return NewWithRules(limits, DefaultRules()...)
}

// NewWithRules creates a validator with a custom rule list
func NewWithRules(limits models.Limits, rules ...Rule) *Validator {
	return &Validator{limits: limits, rules: rules}
}

// Limits returns the limits the validator checks against
func (v *Validator) Limits() models.Limits {
	return v.limits
}

// Validate runs the rules in order and stops at the first violation
func (v *Validator) Validate(pkg models.Package) error {
	for _, rule := range v.rules {
		if reason := rule.Check(pkg, v.limits); reason != "" {
			return &Violation{Rule: rule.Name, Reason: reason}
		}
	}
	return nil
}

// ValidateAll runs every rule and combines all violations.
// Use multierr.Errors to get them back individually.
func (v *Validator) ValidateAll(pkg models.Package) error {
	var err error
	for _, rule := range v.rules {
		if reason := rule.Check(pkg, v.limits); reason != "" {
			err = multierr.Append(err, &Violation{Rule: rule.Name, Reason: reason})
		}
	}
	return err
}

// DefaultRules returns the package constraints:
//  1. capacity is between 0 and MaxCapacity
//  2. every item weight and cost is between 0 and MaxWeight / MaxCost
//  3. there are at most MaxItems items
func DefaultRules() []Rule {
	return []Rule{
		{Name: "max_capacity", Check: checkCapacity},
		{Name: "max_weight_cost", Check: checkItems},
		{Name: "max_items", Check: checkItemCount},
	}
}

const (
	// MaxTableCells bounds the solver table a package within the limits may
	// need: (MaxItems+1) * (MaxCapacity*scale+1) cells.
	MaxTableCells = 1 << 22

	// MaxUnits bounds a single weight or cost once scaled
	MaxUnits = 1 << 30
)

// CheckLimits makes sure the limits themselves are usable at the given scale:
// every bound is positive and the largest allowed package stays within
// MaxTableCells and MaxUnits.
func CheckLimits(limits models.Limits, scale int) error {
	var err error
	violate := func(format string, args ...interface{}) {
		err = multierr.Append(err, &Violation{Rule: "limits", Reason: fmt.Sprintf(format, args...)})
	}

	if scale <= 0 {
		violate("scale must be positive, got %d", scale)
	}
	if limits.MaxCapacity <= 0 {
		violate("max capacity must be positive, got %d", limits.MaxCapacity)
	}
	if limits.MaxItems <= 0 {
		violate("max items must be positive, got %d", limits.MaxItems)
	}
	if !(limits.MaxWeight > 0) {
		violate("max weight must be positive, got %v", limits.MaxWeight)
	}
	if !(limits.MaxCost > 0) {
		violate("max cost must be positive, got %v", limits.MaxCost)
	}
	if err != nil {
		return err
	}

	// Floats so that huge limits cannot overflow
	cells := (float64(limits.MaxItems) + 1) * (float64(limits.MaxCapacity)*float64(scale) + 1)
	if cells > MaxTableCells {
		violate("%d items at capacity %d need %.0f table cells at scale %d, at most %d are allowed",
			limits.MaxItems, limits.MaxCapacity, cells, scale, MaxTableCells)
	}
	if limits.MaxWeight*float64(scale) > MaxUnits {
		violate("max weight %v is more than %d units at scale %d", limits.MaxWeight, MaxUnits, scale)
	}
	if limits.MaxCost*float64(scale) > MaxUnits {
		violate("max cost %v is more than %d units at scale %d", limits.MaxCost, MaxUnits, scale)
	}

	return err
}

func checkCapacity(pkg models.Package, limits models.Limits) string {
	if pkg.Capacity < 0 {
		return fmt.Sprintf("capacity must not be negative, got %d", pkg.Capacity)
	}
	if pkg.Capacity > limits.MaxCapacity {
		return fmt.Sprintf("maximum weight for a package is %d, got %d", limits.MaxCapacity, pkg.Capacity)
	}
	return ""
}

func checkItems(pkg models.Package, limits models.Limits) string {
	for _, item := range pkg.Items {
		if item.Weight < 0 || item.Cost < 0 {
			return fmt.Sprintf("item %d has a negative weight or cost", item.Index)
		}
		if item.Weight > limits.MaxWeight || item.Cost > limits.MaxCost {
			return fmt.Sprintf("maximum cost is %v and maximum weight is %v for each item, item %d has weight %v and cost %v",
				limits.MaxCost, limits.MaxWeight, item.Index, item.Weight, item.Cost)
		}
	}
	return ""
}

func checkItemCount(pkg models.Package, limits models.Limits) string {
	if len(pkg.Items) > limits.MaxItems {
		return fmt.Sprintf("at most %d items are allowed, got %d", limits.MaxItems, len(pkg.Items))
	}
	return ""
}
