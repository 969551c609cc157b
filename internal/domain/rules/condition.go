package rules

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/supplyai/backend/internal/domain/shared"
)

// Attribute names a value a rule condition may inspect. The set is
// closed so conditions can be fully validated when the rule is written,
// never at evaluation time.
type Attribute string

const (
	AttrCustomerTier        Attribute = "customer.tier"
	AttrCustomerSegment     Attribute = "customer.segment"
	AttrCustomerCreditLimit Attribute = "customer.credit_limit"
	AttrRequestQuantity     Attribute = "request.quantity"
	AttrInventoryAvailable  Attribute = "inventory.available"
	AttrInventoryOnHand     Attribute = "inventory.on_hand"
)

// IsValid returns true if the attribute is a known value
func (a Attribute) IsValid() bool {
	switch a {
	case AttrCustomerTier, AttrCustomerSegment, AttrCustomerCreditLimit,
		AttrRequestQuantity, AttrInventoryAvailable, AttrInventoryOnHand:
		return true
	}
	return false
}

// IsNumeric returns true for attributes compared as decimals
func (a Attribute) IsNumeric() bool {
	return a != AttrCustomerSegment
}

// Operator is a comparison operator within a condition leaf
type Operator string

const (
	OpEq  Operator = "EQ"
	OpNe  Operator = "NE"
	OpLt  Operator = "LT"
	OpLte Operator = "LTE"
	OpGt  Operator = "GT"
	OpGte Operator = "GTE"
	OpIn  Operator = "IN"
)

// IsValid returns true if the operator is a known value
func (o Operator) IsValid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpIn:
		return true
	}
	return false
}

// Comparison is a condition leaf: attribute <operator> value(s)
type Comparison struct {
	Attribute Attribute `json:"attribute"`
	Operator  Operator  `json:"operator"`
	Value     string    `json:"value,omitempty"`
	Values    []string  `json:"values,omitempty"` // IN only
}

// Condition is a tagged expression tree over the fixed attribute set.
// Exactly one of All, Any, Not, Cmp must be set. Conditions carry no
// executable code, so a stored rule can never fail to evaluate.
type Condition struct {
	All []Condition `json:"all,omitempty"`
	Any []Condition `json:"any,omitempty"`
	Not *Condition  `json:"not,omitempty"`
	Cmp *Comparison `json:"cmp,omitempty"`
}

// EvalContext is the immutable snapshot a condition is evaluated
// against. Built once per request from the tier snapshot and the ledger
// snapshot; evaluation has no side effects and is safe to retry.
type EvalContext struct {
	CustomerTier        int
	CustomerSegment     string
	CustomerCreditLimit decimal.Decimal
	RequestedQuantity   decimal.Decimal
	AvailableQuantity   decimal.Decimal
	OnHandQuantity      decimal.Decimal
}

// Validate checks the condition tree is well-formed. Malformed
// conditions are rejected here, at rule write time.
func (c *Condition) Validate() error {
	set := 0
	if len(c.All) > 0 {
		set++
	}
	if len(c.Any) > 0 {
		set++
	}
	if c.Not != nil {
		set++
	}
	if c.Cmp != nil {
		set++
	}
	if set != 1 {
		return shared.NewDomainError("VALIDATION_ERROR", "Condition node must set exactly one of all/any/not/cmp")
	}

	for i := range c.All {
		if err := c.All[i].Validate(); err != nil {
			return err
		}
	}
	for i := range c.Any {
		if err := c.Any[i].Validate(); err != nil {
			return err
		}
	}
	if c.Not != nil {
		return c.Not.Validate()
	}
	if c.Cmp != nil {
		return c.Cmp.validate()
	}
	return nil
}

func (cmp *Comparison) validate() error {
	if !cmp.Attribute.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Unknown condition attribute %q", cmp.Attribute))
	}
	if !cmp.Operator.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Unknown condition operator %q", cmp.Operator))
	}

	if cmp.Operator == OpIn {
		if len(cmp.Values) == 0 {
			return shared.NewDomainError("VALIDATION_ERROR", "IN comparison requires a non-empty values list")
		}
		for _, v := range cmp.Values {
			if err := cmp.Attribute.checkValue(v); err != nil {
				return err
			}
		}
		return nil
	}

	if len(cmp.Values) > 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Values list is only valid with the IN operator")
	}
	if !cmp.Attribute.IsNumeric() && cmp.Operator != OpEq && cmp.Operator != OpNe {
		return shared.NewDomainError("VALIDATION_ERROR", "String attributes only support EQ, NE and IN")
	}
	return cmp.Attribute.checkValue(cmp.Value)
}

func (a Attribute) checkValue(v string) error {
	if v == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Comparison value cannot be empty")
	}
	if a.IsNumeric() {
		if _, err := decimal.NewFromString(v); err != nil {
			return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Comparison value %q is not numeric", v))
		}
	}
	return nil
}

// Evaluate evaluates the condition tree against the snapshot. The tree
// is assumed valid (enforced at write time), so evaluation cannot fail.
func (c *Condition) Evaluate(ectx EvalContext) bool {
	switch {
	case len(c.All) > 0:
		for i := range c.All {
			if !c.All[i].Evaluate(ectx) {
				return false
			}
		}
		return true
	case len(c.Any) > 0:
		for i := range c.Any {
			if c.Any[i].Evaluate(ectx) {
				return true
			}
		}
		return false
	case c.Not != nil:
		return !c.Not.Evaluate(ectx)
	case c.Cmp != nil:
		return c.Cmp.evaluate(ectx)
	}
	return false
}

func (cmp *Comparison) evaluate(ectx EvalContext) bool {
	if cmp.Attribute.IsNumeric() {
		actual := cmp.Attribute.numericValue(ectx)
		if cmp.Operator == OpIn {
			for _, v := range cmp.Values {
				expected, err := decimal.NewFromString(v)
				if err == nil && actual.Equal(expected) {
					return true
				}
			}
			return false
		}
		expected, err := decimal.NewFromString(cmp.Value)
		if err != nil {
			return false
		}
		switch cmp.Operator {
		case OpEq:
			return actual.Equal(expected)
		case OpNe:
			return !actual.Equal(expected)
		case OpLt:
			return actual.LessThan(expected)
		case OpLte:
			return actual.LessThanOrEqual(expected)
		case OpGt:
			return actual.GreaterThan(expected)
		case OpGte:
			return actual.GreaterThanOrEqual(expected)
		}
		return false
	}

	actual := ectx.CustomerSegment
	switch cmp.Operator {
	case OpEq:
		return actual == cmp.Value
	case OpNe:
		return actual != cmp.Value
	case OpIn:
		for _, v := range cmp.Values {
			if actual == v {
				return true
			}
		}
	}
	return false
}

func (a Attribute) numericValue(ectx EvalContext) decimal.Decimal {
	switch a {
	case AttrCustomerTier:
		return decimal.NewFromInt(int64(ectx.CustomerTier))
	case AttrCustomerCreditLimit:
		return ectx.CustomerCreditLimit
	case AttrRequestQuantity:
		return ectx.RequestedQuantity
	case AttrInventoryAvailable:
		return ectx.AvailableQuantity
	case AttrInventoryOnHand:
		return ectx.OnHandQuantity
	}
	return decimal.Zero
}
