package models

import (
	"fmt"
	"slices"
)

// PointScale names the set of estimates a project accepts.
type PointScale string

const (
	PointScaleFibonacci   PointScale = "fibonacci"
	PointScaleLinear      PointScale = "linear"
	PointScalePowersOfTwo PointScale = "powers_of_two"
)

// DefaultPointScale is used when a project does not choose one.
const DefaultPointScale = PointScaleFibonacci

var pointScales = map[PointScale][]int{
	PointScaleFibonacci:   {0, 1, 2, 3, 5, 8},
	PointScaleLinear:      {1, 2, 3, 4, 5},
	PointScalePowersOfTwo: {0, 1, 2, 4, 8},
}

// ParsePointScale parses a scale name; empty selects the default.
func ParsePointScale(s string) (PointScale, error) {
	if s == "" {
		return DefaultPointScale, nil
	}
	ps := PointScale(s)
	if _, ok := pointScales[ps]; !ok {
		return "", &ValidationError{
			Field:   "point_scale",
			Message: fmt.Sprintf("unknown point scale %q", s),
		}
	}
	return ps, nil
}

// Points returns the estimates allowed by the scale, ascending.
func (p PointScale) Points() []int {
	points, ok := pointScales[p]
	if !ok {
		points = pointScales[DefaultPointScale]
	}
	return slices.Clone(points)
}

// Allows reports whether estimate is on the scale.
func (p PointScale) Allows(estimate int) bool {
	return slices.Contains(p.Points(), estimate)
}
