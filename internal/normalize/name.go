package normalize

import (
	"strings"

	"golang.org/x/text/cases"
)

// legalSuffixes are stripped from the end of a name when building the
// comparison form. Ordered longest-first so "pte ltd" wins over "ltd".
var legalSuffixes = []string{
	"private limited", "pte ltd", "pvt ltd", "incorporated", "corporation",
	"sdn bhd", "limited", "company", "corp", "bhd", "llc", "ltd", "inc", "co",
}

var caseFolder = cases.Fold()

// Name builds the normalized comparison form of a company name: case-folded,
// legal suffixes stripped, punctuation replaced by spaces, whitespace
// collapsed. The as-received name is kept separately on the record.
func Name(name string) string {
	folded := caseFolder.String(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' ||
			r > 127 { // keep non-ASCII letters as-is after folding
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	n := strings.Join(strings.Fields(b.String()), " ")

	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range legalSuffixes {
			if strings.HasSuffix(n, " "+suffix) {
				n = strings.TrimSpace(n[:len(n)-len(suffix)-1])
				stripped = true
			}
		}
	}

	return n
}

// FirstToken returns the first whitespace-delimited token of a normalized
// name, used as the resolver's blocking signal.
func FirstToken(nameNorm string) string {
	if i := strings.IndexByte(nameNorm, ' '); i > 0 {
		return nameNorm[:i]
	}
	return nameNorm
}

// industryAliases maps common variants onto the closed industry set.
var industryAliases = map[string]string{
	"information technology": "Technology",
	"it":                     "Technology",
	"software":               "Technology",
	"fintech":                "FinTech",
	"financial technology":   "FinTech",
	"banking":                "FinTech",
	"finance":                "FinTech",
	"food & beverage":        "F&B",
	"food and beverage":      "F&B",
	"restaurant":             "F&B",
	"professional service":   "Professional Services",
	"consulting":             "Professional Services",
	"property":               "Real Estate",
	"medical":                "Healthcare",
	"ecommerce":              "E-commerce",
	"online retail":          "E-commerce",
}
