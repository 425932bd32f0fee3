package server

import (
	"github.com/cuemby/warden/pkg/entry"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

// entryInitBuilder keeps test entry construction readable.
type entryInitBuilder struct {
	e *entry.Init
}

func newEntryInit() *entryInitBuilder {
	return &entryInitBuilder{e: entry.NewInit()}
}

func (b *entryInitBuilder) classes(cs ...types.EntryClass) *entryInitBuilder {
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, string(c))
	}
	b.e.Set(types.AttrClass, value.NewIutf8(names...))
	return b
}

func (b *entryInitBuilder) attr(a types.Attribute, s value.Set) *entryInitBuilder {
	b.e.Set(a, s)
	return b
}

func (b *entryInitBuilder) build() *entry.Init {
	return b.e
}
