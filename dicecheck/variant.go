// Package dicecheck independently validates a resolved transform by warping a
// reference anatomical contour from secondary space into primary space and
// measuring per-slice polygon overlap. It exists because frame-of-reference
// UIDs in the wild are sometimes wrong or ambiguous: contour agreement is an
// empirical cross-check that owes nothing to the declared metadata.
package dicecheck

import (
	"fmt"

	"github.com/oncotools/regfusion/rigid"
)

// Variant names one of the four matrix readings probed when hunting down a
// mis-encoded registration object.
type Variant string

const (
	VariantRaw                Variant = "raw"
	VariantTransposed         Variant = "transposed"
	VariantInverted           Variant = "inverted"
	VariantInvertedTransposed Variant = "inverted-transposed"
)

// Variants lists every probe variant in scan order.
func Variants() []Variant {
	return []Variant{VariantRaw, VariantTransposed, VariantInverted, VariantInvertedTransposed}
}

// Apply produces the matrix reading for a variant. Anything other than raw is
// recorded on the result rows; a non-raw reading is never chosen silently.
func Apply(m rigid.Matrix, v Variant) (rigid.Matrix, error) {
	switch v {
	case VariantRaw, "":
		return m, nil
	case VariantTransposed:
		return rigid.TransposeVariant(m), nil
	case VariantInverted:
		return rigid.Invert(m), nil
	case VariantInvertedTransposed:
		return rigid.Invert(rigid.TransposeVariant(m)), nil
	}
	return m, fmt.Errorf("dicecheck: unknown variant %q", v)
}
