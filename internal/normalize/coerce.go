package normalize

import (
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// identifierPattern is the jurisdiction's registration number format:
// four-digit year, five digits, one uppercase check letter.
var identifierPattern = regexp.MustCompile(`^(19|20)\d{2}\d{5}[A-Z]$`)

var identifierExtract = regexp.MustCompile(`((?:19|20)\d{2}\d{5}[A-Z])`)

// Identifier validates a raw registration number, uppercasing and extracting
// it from surrounding noise if needed. Returns "" when no valid identifier
// can be recovered.
func Identifier(raw string) string {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if identifierPattern.MatchString(id) {
		return id
	}
	if m := identifierExtract.FindString(id); m != "" {
		return m
	}
	return ""
}

// Website validates and canonicalizes a website URL: scheme added when
// missing, host lowercased, trailing slash dropped. Returns "" for garbage.
func Website(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	out := u.Scheme + "://" + strings.ToLower(u.Host)
	if u.Path != "" && u.Path != "/" {
		out += u.Path
	}
	return out
}

// Domain extracts the bare host from a website URL, without the www prefix.
func Domain(website string) string {
	u, err := url.Parse(website)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Email validates an email address. Returns "" when invalid.
func Email(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return ""
	}
	return addr.Address
}

// Phone keeps digits and the leading +, requiring at least 7 digits.
// Returns "" when too short to be a phone number.
func Phone(raw string) string {
	var b strings.Builder
	digits := 0
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	if digits < 7 {
		return ""
	}
	return b.String()
}

// EmployeeCount coerces an employee count, nulling negatives.
func EmployeeCount(raw any) (int, bool) {
	n, ok := toInt(raw)
	if !ok || n < 0 {
		return 0, false
	}
	return n, true
}

// Revenue coerces a revenue figure, stripping currency noise from strings
// and nulling negatives.
func Revenue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return v, true
	case float32:
		return Revenue(float64(v))
	case int:
		return Revenue(float64(v))
	case int64:
		return Revenue(float64(v))
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' || r == '.' {
				return r
			}
			return -1
		}, v)
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || f < 0 {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

var yearExtract = regexp.MustCompile(`(19|20)\d{2}`)

// FoundingYear coerces a founding year, nulling values outside [1800, now].
func FoundingYear(raw any, now time.Time) (int, bool) {
	switch v := raw.(type) {
	case int:
		if v >= 1800 && v <= now.Year() {
			return v, true
		}
		return 0, false
	case int64:
		return FoundingYear(int(v), now)
	case float64:
		return FoundingYear(int(v), now)
	case string:
		if m := yearExtract.FindString(v); m != "" {
			y, _ := strconv.Atoi(m)
			return FoundingYear(y, now)
		}
		return 0, false
	default:
		return 0, false
	}
}

// maxSetItems caps set-typed fields like keywords and products.
const maxSetItems = 10

// StringSet splits a delimited string or slice into a trimmed, deduplicated
// list, dropping items shorter than 3 characters and capping at 10 entries.
func StringSet(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case string:
		items = splitDelimited(v)
	case []string:
		items = v
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok {
				items = append(items, s)
			}
		}
	default:
		return nil
	}

	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if len(it) < 3 {
			continue
		}
		key := strings.ToLower(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
		if len(out) == maxSetItems {
			break
		}
	}
	return out
}

func splitDelimited(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		i, err := strconv.Atoi(cleaned)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
