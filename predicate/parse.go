package predicate

import (
	"strconv"
	"strings"

	"github.com/lililuanluan/weazer/label"
	"github.com/pkg/errors"
)

var ErrSyntax = errors.New("predicate: syntax error")

// Parse a condition written as a disjunction of conjunctions of comparisons,
// e.g. "1:r0 == 1 && 2:r0 == 0 || x != 2". && binds tighter than ||.
func Parse(s string) (Condition, error) {
	var disj []Condition
	for _, alt := range strings.Split(s, "||") {
		var conj []Condition
		for _, term := range strings.Split(alt, "&&") {
			c, err := parseComparison(strings.TrimSpace(term))
			if err != nil {
				return nil, errors.Wrapf(err, "in %q", s)
			}
			conj = append(conj, c)
		}
		disj = append(disj, And(conj...))
	}
	return Or(disj...), nil
}

func parseComparison(term string) (Condition, error) {
	fields := strings.Fields(term)
	if len(fields) != 3 {
		return nil, errors.Wrapf(ErrSyntax, "expected 'key op value', got %q", term)
	}
	op, ok := label.ParseCmp(fields[1])
	if !ok {
		return nil, errors.Wrapf(ErrSyntax, "unknown comparison %q", fields[1])
	}
	v, err := strconv.ParseInt(fields[2], 0, 64)
	if err != nil {
		return nil, errors.Wrapf(ErrSyntax, "bad value %q", fields[2])
	}
	return Compare(fields[0], op, label.SVal(v)), nil
}
