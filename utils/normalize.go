package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	dayFirstDate  = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)
	yearFirstDate = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
	headerSep     = regexp.MustCompile(`[\s\-]+`)
)

// DateLayout is the canonical date format produced by NormalizeDate.
const DateLayout = "2006-01-02"

// NormalizeDate converts DD-MM-YYYY, DD/MM/YYYY, YYYY-MM-DD and YYYY/MM/DD
// into zero-padded YYYY-MM-DD. Any other shape yields "". The result is not
// checked against the calendar; see ParseCanonicalDate.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if m := dayFirstDate.FindStringSubmatch(s); m != nil {
		return formatDateParts(m[3], m[2], m[1])
	}
	if m := yearFirstDate.FindStringSubmatch(s); m != nil {
		return formatDateParts(m[1], m[2], m[3])
	}
	return ""
}

func formatDateParts(year, month, day string) string {
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return fmt.Sprintf("%s-%02d-%02d", year, mo, d)
}

// ParseCanonicalDate parses a YYYY-MM-DD string and rejects dates that do not
// exist on the calendar (2019-02-30 and the like).
func ParseCanonicalDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// NormalizePhone applies the Indian numbering heuristic: keep digits and a
// leading '+', then make sure the number carries a country code, defaulting
// to +91. It is not an E.164 parser; a foreign number without '+' is tagged
// +91.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	hasPlus := strings.HasPrefix(s, "+")
	digits := DigitsOnly(s)
	if digits == "" {
		return ""
	}

	switch {
	case hasPlus:
		// +91... and any other explicit country code are kept as given.
		return "+" + digits
	case strings.HasPrefix(digits, "91") && len(digits) > 10:
		return "+" + digits
	default:
		return "+91" + digits
	}
}

// DigitsOnly drops every non-digit rune.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeGender trims and capitalizes: " fEMALE " -> "Female".
func NormalizeGender(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// NormalizeHeader maps a spreadsheet header to a field key: trimmed,
// lowercased, with runs of spaces and hyphens replaced by '_'.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return headerSep.ReplaceAllString(h, "_")
}
