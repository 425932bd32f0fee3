package types

import "strings"

// FilterKind discriminates filter nodes.
type FilterKind int

const (
	FilterEq FilterKind = iota
	FilterPres
	FilterAnd
	FilterOr
	FilterNot
)

// Filter is a small search filter tree evaluated against entries. Values
// are compared against the string projection of the attribute's value set.
type Filter struct {
	Kind  FilterKind
	Attr  Attribute
	Value string
	Sub   []*Filter
}

// Eq matches entries where attr contains value.
func Eq(attr Attribute, value string) *Filter {
	return &Filter{Kind: FilterEq, Attr: attr, Value: value}
}

// Pres matches entries where attr is present.
func Pres(attr Attribute) *Filter {
	return &Filter{Kind: FilterPres, Attr: attr}
}

// And matches entries satisfying every sub filter.
func And(sub ...*Filter) *Filter {
	return &Filter{Kind: FilterAnd, Sub: sub}
}

// Or matches entries satisfying any sub filter.
func Or(sub ...*Filter) *Filter {
	return &Filter{Kind: FilterOr, Sub: sub}
}

// Not matches entries failing the sub filter.
func Not(sub *Filter) *Filter {
	return &Filter{Kind: FilterNot, Sub: []*Filter{sub}}
}

func (f *Filter) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f *Filter) write(b *strings.Builder) {
	switch f.Kind {
	case FilterEq:
		b.WriteString("(")
		b.WriteString(string(f.Attr))
		b.WriteString("=")
		b.WriteString(f.Value)
		b.WriteString(")")
	case FilterPres:
		b.WriteString("(")
		b.WriteString(string(f.Attr))
		b.WriteString("=*)")
	case FilterAnd, FilterOr:
		if f.Kind == FilterAnd {
			b.WriteString("(&")
		} else {
			b.WriteString("(|")
		}
		for _, s := range f.Sub {
			s.write(b)
		}
		b.WriteString(")")
	case FilterNot:
		b.WriteString("(!")
		for _, s := range f.Sub {
			s.write(b)
		}
		b.WriteString(")")
	}
}
