package state

import "fmt"

// Value is an opaque discrete-variable or cache value. The State only ever
// duplicates and renders it.
type Value interface {
	Clone() Value
	String() string
}

// Box holds a plain Go value. Cloning copies V shallowly, so T should be a
// value type; use VectorValue for slices.
type Box[T any] struct {
	V T
}

func NewBox[T any](v T) *Box[T] {
	return &Box[T]{V: v}
}

func (b *Box[T]) Clone() Value {
	c := *b
	return &c
}

func (b *Box[T]) String() string {
	return fmt.Sprint(b.V)
}

// VectorValue holds a Vector and deep-copies it on Clone.
type VectorValue struct {
	V Vector
}

func NewVectorValue(n int) *VectorValue {
	return &VectorValue{V: make(Vector, n)}
}

func (v *VectorValue) Clone() Value {
	return &VectorValue{V: v.V.Clone()}
}

func (v *VectorValue) String() string {
	return v.V.String()
}
