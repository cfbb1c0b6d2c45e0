// Package testdata holds types the source provider tests load.
package testdata

import "context"

// Shape is a geometric shape.
type Shape interface {
	Area() float64
	// Describe returns a label.
	//dynproxy:nonintercepted
	Describe() string
}

// Named has a name.
type Named interface {
	Name() string
}

// Solid is a shape with a volume.
type Solid interface {
	Shape
	Volume(ctx context.Context, scale ...float64) (float64, error)
}

// Base is embedded by the other shapes.
type Base struct {
	id int
}

func (b *Base) Name() string  { return "base" }
func (b *Base) Area() float64 { return 0 }
func (b *Base) internal()     {}

// Square is a Base with a side.
type Square struct {
	Base
	Side float64
}

func (s *Square) Area() float64    { return s.Side * s.Side }
func (s *Square) Describe() string { return "square" }
func (s *Square) String() string   { return "square" }

// Final cannot be extended.
//
//dynproxy:sealed
type Final struct{}

func (Final) Done() {}

// Box holds a value.
type Box[T any] struct {
	v T
}

func (b *Box[T]) Get() T  { return b.v }
func (b *Box[T]) Set(v T) { b.v = v }

// Number is not a proxyable type.
type Number int

// Reset carries a misspelled directive.
//
//dynproxy:nointercept
func Reset() {}
