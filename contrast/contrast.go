// Package contrast implements relative luminance and contrast ratio for
// sRGB hex colours. None of its functions fail: invalid input is reported
// through the boolean result.
package contrast

import (
	"math"
	"regexp"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	White = "#ffffff"
	Black = "#000000"
)

var hexPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// NormalizeHex returns the 6-digit lowercase form of a 3- or 6-digit hex
// colour. Named colours, gradients and functional notations are rejected.
func NormalizeHex(value string) (string, bool) {
	v := strings.TrimSpace(value)
	if !hexPattern.MatchString(v) {
		return "", false
	}
	v = strings.ToLower(v)
	if len(v) == 4 {
		v = "#" + strings.Repeat(v[1:2], 2) + strings.Repeat(v[2:3], 2) + strings.Repeat(v[3:4], 2)
	}
	return v, true
}

// RelativeLuminance computes the WCAG relative luminance of a hex colour.
func RelativeLuminance(hex string) (float64, bool) {
	norm, ok := NormalizeHex(hex)
	if !ok {
		return 0, false
	}
	c, err := colorful.Hex(norm)
	if err != nil {
		return 0, false
	}
	return 0.2126*linearize(c.R) + 0.7152*linearize(c.G) + 0.0722*linearize(c.B), true
}

func linearize(c float64) float64 {
	if c <= 0.03928 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// Ratio returns (Lmax + 0.05) / (Lmin + 0.05) for two hex colours.
func Ratio(a, b string) (float64, bool) {
	la, ok := RelativeLuminance(a)
	if !ok {
		return 0, false
	}
	lb, ok := RelativeLuminance(b)
	if !ok {
		return 0, false
	}
	hi, lo := math.Max(la, lb), math.Min(la, lb)
	return (hi + 0.05) / (lo + 0.05), true
}

// Round2 rounds half up to two decimal places.
func Round2(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}

// RoundedRatio is Ratio rounded for reporting; nil when either colour is invalid.
func RoundedRatio(a, b string) *float64 {
	r, ok := Ratio(a, b)
	if !ok {
		return nil
	}
	r = Round2(r)
	return &r
}
