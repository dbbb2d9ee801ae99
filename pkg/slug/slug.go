package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that do not decompose into a base letter plus a combining mark.
var foldReplacer = strings.NewReplacer(
	"ı", "i",
	"ł", "l",
	"ø", "o",
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"đ", "d",
)

// Generate creates a URL-friendly slug from a product title.
// Accented letters are folded to their ASCII base letter.
//
// Examples:
//   - "Essence Mascara Lash Princess" → "essence-mascara-lash-princess"
//   - "Crème Brûlée" → "creme-brulee"
//   - "iPhone 9 (64GB)" → "iphone-9-64gb"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = foldReplacer.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
