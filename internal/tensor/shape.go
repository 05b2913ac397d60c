package tensor

import "fmt"

// Shape is a 4-D tensor shape in NCHW order: (num, channels, height, width).
type Shape [4]int

// NewShape builds a shape from its four dimensions.
func NewShape(n, c, h, w int) Shape {
	return Shape{n, c, h, w}
}

// Count returns the number of elements described by the shape.
func (s Shape) Count() int {
	return s[0] * s[1] * s[2] * s[3]
}

// Num returns the batch dimension.
func (s Shape) Num() int { return s[0] }

// Channels returns the channel dimension.
func (s Shape) Channels() int { return s[1] }

// Height returns the height dimension.
func (s Shape) Height() int { return s[2] }

// Width returns the width dimension.
func (s Shape) Width() int { return s[3] }

// Validate checks that no dimension is negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// EqualExcept reports whether s and other match on every axis but axis.
func (s Shape) EqualExcept(other Shape, axis int) bool {
	for i := range s {
		if i != axis && s[i] != other[i] {
			return false
		}
	}
	return true
}

// Offset returns the row-major flat index of (n, c, h, w).
func (s Shape) Offset(n, c, h, w int) int {
	return ((n*s[1]+c)*s[2]+h)*s[3] + w
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", s[0], s[1], s[2], s[3])
}
