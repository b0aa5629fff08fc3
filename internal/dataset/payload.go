package dataset

import (
	"fmt"

	"github.com/exa-analytics/exa/internal/table"
)

// Kind tags the content of a Payload.
type Kind int

const (
	// KindEmpty is a payload holding nothing.
	KindEmpty Kind = iota
	// KindTable is a payload holding a *table.Table.
	KindTable
	// KindOpaque is a payload holding any other value. Opaque payloads skip
	// validation.
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindTable:
		return "table"
	case KindOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Payload is the value a Dataset caches: nothing, a table, or an arbitrary
// value.
type Payload struct {
	kind  Kind
	table *table.Table
	value any
}

// Empty returns the empty payload.
func Empty() Payload {
	return Payload{}
}

// TablePayload wraps t. A nil t yields the empty payload.
func TablePayload(t *table.Table) Payload {
	if t == nil {
		return Payload{}
	}
	return Payload{kind: KindTable, table: t}
}

// Opaque wraps v. Tables and payloads are recognized and nil becomes the
// empty payload.
func Opaque(v any) Payload {
	switch x := v.(type) {
	case nil:
		return Payload{}
	case Payload:
		return x
	case *table.Table:
		return TablePayload(x)
	default:
		return Payload{kind: KindOpaque, value: v}
	}
}

// Kind returns the payload tag.
func (p Payload) Kind() Kind {
	return p.kind
}

// IsEmpty reports whether the payload holds nothing.
func (p Payload) IsEmpty() bool {
	return p.kind == KindEmpty
}

// Table returns the table held by p.
func (p Payload) Table() (*table.Table, bool) {
	return p.table, p.kind == KindTable
}

// Value returns the held value: the *table.Table, the opaque value, or nil.
func (p Payload) Value() any {
	switch p.kind {
	case KindTable:
		return p.table
	case KindOpaque:
		return p.value
	default:
		return nil
	}
}

// Copier is implemented by opaque values that know how to copy themselves.
type Copier interface {
	Copy() any
}

func (p Payload) copy() Payload {
	switch p.kind {
	case KindTable:
		return TablePayload(p.table.Copy())
	case KindOpaque:
		if c, ok := p.value.(Copier); ok {
			return Opaque(c.Copy())
		}
	}
	return p
}

func (p Payload) String() string {
	switch p.kind {
	case KindTable:
		r, c := p.table.Shape()
		return fmt.Sprintf("(%d, %d)", r, c)
	case KindOpaque:
		return fmt.Sprintf("%T", p.value)
	default:
		return ""
	}
}
