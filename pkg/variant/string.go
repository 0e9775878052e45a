package variant

import "golang.org/x/text/unicode/norm"

// NewString builds an owned STRING payload from s, NFC-normalizing it first.
// A runtime that hands member names and text payloads between unrelated
// plugins and scripting bridges needs a canonical byte form so that two
// strings which look identical compare and hash identically regardless of
// which collaborator produced them.
func NewString(s string) Variant {
	return OfString(norm.NFC.Bytes([]byte(s)))
}

// StringLiteral borrows s for the lifetime of the process; no normalization
// is performed since the literal is assumed to already be a compiled-in
// constant the runtime does not own.
func StringLiteral(s string) Variant { return OfLiteral(s) }

// AsString returns the Go string view of a STRING or STRING_LITERAL
// variant, or ("", false) otherwise.
func AsString(v Variant) (string, bool) {
	switch v.Tag {
	case STRING:
		return string(v.Str), true
	case STRING_LITERAL:
		return v.Lit, true
	default:
		return "", false
	}
}
