package object

import (
	"strings"

	"github.com/deai-sub000/deai/pkg/variant"
)

// Member is a named (name, type, storage, owned) slot on an object. When
// Owned is false, Addr points at storage the core merely observes
// (reflecting, e.g., a Go struct field through a field-getter closure);
// the core must never free such storage.
type Member struct {
	Name     string
	Type     variant.Tag
	Value    variant.Variant
	Owned    bool
	Writable bool
	// Addr is set only for non-owning address members; it is the live
	// external storage the member reflects.
	Addr *variant.Variant
}

func (m *Member) read() variant.Variant {
	if m.Owned {
		return variant.Copy(m.Value)
	}
	return variant.Copy(*m.Addr)
}

// reservedPrefix is the runtime's namespace for accessors, signal hooks,
// the type marker, root entries, and plugin-private storage.
const reservedPrefix = "__"

func isReserved(name string) bool { return strings.HasPrefix(name, reservedPrefix) }

func getterNameFor(plain string) string { return "__get_" + plain }

// plainNameFromGetter returns (plain, true) if name is a __get_<x> accessor,
// for any x (including an x that itself starts with "__"), and ("", false)
// otherwise.
func plainNameFromGetter(name string) (string, bool) {
	const p = "__get_"
	if strings.HasPrefix(name, p) {
		return strings.TrimPrefix(name, p), true
	}
	return "", false
}
