package models

import (
	"fmt"
	"strings"
)

// Condition is one of the three onset-timing regimes. The numeric order is
// the order in which a session runs them.
type Condition int

const (
	Predictable Condition = iota
	SemiPredictable
	Unpredictable
)

// AllConditions lists every condition in experiment order.
var AllConditions = []Condition{Predictable, SemiPredictable, Unpredictable}

var conditionLabels = map[Condition]string{
	Predictable:     "predictable",
	SemiPredictable: "semi-predictable",
	Unpredictable:   "unpredictable",
}

func (c Condition) String() string {
	if label, ok := conditionLabels[c]; ok {
		return label
	}
	return fmt.Sprintf("condition(%d)", int(c))
}

// Valid reports whether c is one of the known conditions.
func (c Condition) Valid() bool {
	_, ok := conditionLabels[c]
	return ok
}

// ParseCondition accepts the export labels, case-insensitively.
func ParseCondition(s string) (Condition, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for c, label := range conditionLabels {
		if label == needle {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown condition %q", s)
}

func (c Condition) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown condition %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Condition) UnmarshalText(text []byte) error {
	parsed, err := ParseCondition(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
