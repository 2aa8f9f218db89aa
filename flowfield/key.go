package flowfield

import (
	"fmt"

	"crowdnav/geom"
)

// Key identifies a shared destination. A key is either explicit (caller
// supplied a stable id) or derived from the quantized goal cell; keeping the
// two forms in separate fields of one comparable struct rules out collisions
// between caller ids and coordinate strings.
type Key struct {
	ID   string
	Cell geom.CellKey
}

// ExplicitKey wraps a caller-supplied destination id.
func ExplicitKey(id string) Key {
	return Key{ID: id}
}

// DerivedKey quantizes a goal position into a destination key, so nearby
// goals collapse onto one shared field.
func DerivedKey(x, z, cellSize float64) Key {
	return Key{Cell: geom.CellOf(x, z, 1.0/cellSize)}
}

// Explicit reports whether the key carries a caller-supplied id.
func (k Key) Explicit() bool {
	return k.ID != ""
}

func (k Key) String() string {
	if k.ID != "" {
		return "id:" + k.ID
	}
	return fmt.Sprintf("cell:%d,%d", k.Cell.Col, k.Cell.Row)
}
