package importer

import (
	"learningcenter_go/utils"
)

var allowedGenders = map[string]bool{"Male": true, "Female": true, "Other": true}

// ImportRow is one row of the review payload.
type ImportRow struct {
	RowNumber  int               `json:"rowNumber"`
	Original   map[string]string `json:"original"`
	Normalized Fields            `json:"normalized"`
	Extra      map[string]string `json:"extra,omitempty"`
	Errors     []string          `json:"errors"`
	IsValid    bool              `json:"isValid"`
}

// ReviewResult is the whole review payload.
type ReviewResult struct {
	Students     []ImportRow `json:"students"`
	ValidCount   int         `json:"validCount"`
	InvalidCount int         `json:"invalidCount"`
}

// Normalize trims names and brings dates, gender and phone into canonical
// form. Values that cannot be normalized become empty.
func Normalize(f Fields) Fields {
	return Fields{
		FirstName:      utils.SanitizeString(f.FirstName),
		LastName:       utils.SanitizeString(f.LastName),
		DateOfBirth:    utils.NormalizeDate(f.DateOfBirth),
		Gender:         utils.NormalizeGender(f.Gender),
		ParentName:     utils.SanitizeString(f.ParentName),
		ParentContact:  utils.NormalizePhone(f.ParentContact),
		EnrollmentDate: utils.NormalizeDate(f.EnrollmentDate),
	}
}

// Check normalizes f and returns one message per failing field.
func Check(f Fields) (Fields, []string) {
	n := Normalize(f)
	errs := make([]string, 0)

	if n.FirstName == "" {
		errs = append(errs, "First name is required")
	}
	if n.LastName == "" {
		errs = append(errs, "Last name is required")
	}

	switch {
	case n.DateOfBirth == "":
		errs = append(errs, "Date of birth is required (DD-MM-YYYY, DD/MM/YYYY, YYYY-MM-DD or YYYY/MM/DD)")
	default:
		if _, err := utils.ParseCanonicalDate(n.DateOfBirth); err != nil {
			errs = append(errs, "Date of birth is not a valid calendar date")
		}
	}

	switch {
	case n.Gender == "":
		errs = append(errs, "Gender is required")
	case !allowedGenders[n.Gender]:
		errs = append(errs, "Gender must be Male, Female or Other")
	}

	if n.ParentName == "" {
		errs = append(errs, "Parent name is required")
	}

	switch digits := len(utils.DigitsOnly(n.ParentContact)); {
	case n.ParentContact == "":
		errs = append(errs, "Parent contact is required")
	case digits != 10 && digits != 12:
		errs = append(errs, "Parent contact must have 10 digits, or 12 with the country code")
	}

	// an unreadable enrollment date falls back to the confirm day
	if n.EnrollmentDate != "" {
		if _, err := utils.ParseCanonicalDate(n.EnrollmentDate); err != nil {
			n.EnrollmentDate = ""
		}
	}
	return n, errs
}

// ValidateRow never fails; problems are reported in the row's Errors.
func ValidateRow(r Row) ImportRow {
	normalized, errs := Check(r.Fields)
	original := r.Original
	if original == nil {
		original = make(map[string]string)
	}
	return ImportRow{
		RowNumber:  r.Number,
		Original:   original,
		Normalized: normalized,
		Extra:      r.Extra,
		Errors:     errs,
		IsValid:    len(errs) == 0,
	}
}

func Review(rows []Row) ReviewResult {
	out := ReviewResult{Students: make([]ImportRow, 0, len(rows))}
	for _, r := range rows {
		ir := ValidateRow(r)
		if ir.IsValid {
			out.ValidCount++
		} else {
			out.InvalidCount++
		}
		out.Students = append(out.Students, ir)
	}
	return out
}
