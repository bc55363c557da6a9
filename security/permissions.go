package security

import (
	"math"
	"strings"
)

// Permissions is the /P entry of the standard security handler.
type Permissions uint32

const (
	// PermOwner is reported when the owner password authenticated.
	PermOwner = Permissions(math.MaxUint32)

	PermPrinting          = Permissions(1 << 2)
	PermModify            = Permissions(1 << 3)
	PermExtractGraphics   = Permissions(1 << 4)
	PermAnnotate          = Permissions(1 << 5)
	PermFillForms         = Permissions(1 << 8)
	PermDisabilityExtract = Permissions(1 << 9)
	PermRotateInsert      = Permissions(1 << 10)
	PermFullPrintQuality  = Permissions(1 << 11)
)

// Allowed reports whether every bit of p2 is set in p.
func (p Permissions) Allowed(p2 Permissions) bool {
	return p&p2 == p2
}

func (p Permissions) String() string {
	if p == PermOwner {
		return "owner"
	}
	names := []struct {
		bit  Permissions
		name string
	}{
		{PermPrinting, "print"},
		{PermModify, "modify"},
		{PermExtractGraphics, "extract"},
		{PermAnnotate, "annotate"},
		{PermFillForms, "fill-forms"},
		{PermDisabilityExtract, "accessibility"},
		{PermRotateInsert, "assemble"},
		{PermFullPrintQuality, "print-high"},
	}
	var set []string
	for _, n := range names {
		if p.Allowed(n.bit) {
			set = append(set, n.name)
		}
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, ",")
}
