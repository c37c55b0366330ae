package importer

import (
	"strings"
	"testing"
)

func validFields() Fields {
	return Fields{
		FirstName:     "Rahul",
		LastName:      "Sharma",
		DateOfBirth:   "15-05-2018",
		Gender:        "Male",
		ParentName:    "Amit",
		ParentContact: "9876543001",
	}
}

func TestValidateRowNormalizes(t *testing.T) {
	got := ValidateRow(Row{Number: 2, Fields: validFields()})
	if !got.IsValid {
		t.Fatalf("expected valid row, errors: %v", got.Errors)
	}
	if got.Normalized.DateOfBirth != "2018-05-15" {
		t.Errorf("date_of_birth = %q", got.Normalized.DateOfBirth)
	}
	if got.Normalized.ParentContact != "+919876543001" {
		t.Errorf("parent_contact = %q", got.Normalized.ParentContact)
	}
	if got.RowNumber != 2 {
		t.Errorf("row number = %d", got.RowNumber)
	}
	if got.Errors == nil {
		t.Errorf("errors should serialize as an empty list")
	}
}

func TestValidateRowErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *Fields)
		wantSub string
	}{
		{name: "gender x", mutate: func(f *Fields) { f.Gender = "x" }, wantSub: "Gender"},
		{name: "missing gender", mutate: func(f *Fields) { f.Gender = " " }, wantSub: "Gender is required"},
		{name: "missing first name", mutate: func(f *Fields) { f.FirstName = "" }, wantSub: "First name"},
		{name: "missing last name", mutate: func(f *Fields) { f.LastName = "  " }, wantSub: "Last name"},
		{name: "missing parent name", mutate: func(f *Fields) { f.ParentName = "" }, wantSub: "Parent name"},
		{name: "unparseable dob", mutate: func(f *Fields) { f.DateOfBirth = "May 15 2018" }, wantSub: "Date of birth is required"},
		{name: "impossible dob", mutate: func(f *Fields) { f.DateOfBirth = "31-02-2018" }, wantSub: "not a valid calendar date"},
		{name: "missing contact", mutate: func(f *Fields) { f.ParentContact = "n/a" }, wantSub: "Parent contact is required"},
		{name: "short contact", mutate: func(f *Fields) { f.ParentContact = "12345" }, wantSub: "Parent contact must"},
		{name: "foreign contact", mutate: func(f *Fields) { f.ParentContact = "+1 415 555 0100" }, wantSub: "Parent contact must"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := validFields()
			tc.mutate(&f)
			got := ValidateRow(Row{Number: 2, Fields: f})
			if got.IsValid {
				t.Fatalf("expected invalid row")
			}
			if len(got.Errors) != 1 {
				t.Fatalf("expected exactly one error, got %v", got.Errors)
			}
			if !strings.Contains(got.Errors[0], tc.wantSub) {
				t.Fatalf("error %q does not mention %q", got.Errors[0], tc.wantSub)
			}
		})
	}
}

func TestValidateRowAcceptedShapes(t *testing.T) {
	tests := []struct {
		dob, gender, contact string
	}{
		{"15/05/2018", "female", "+91 98765 43001"},
		{"2018-05-15", "OTHER", "919876543001"},
		{"2018/5/1", "male", "(987) 654-3001"},
	}
	for _, tc := range tests {
		f := validFields()
		f.DateOfBirth, f.Gender, f.ParentContact = tc.dob, tc.gender, tc.contact
		if got := ValidateRow(Row{Fields: f}); !got.IsValid {
			t.Errorf("%+v: unexpected errors %v", tc, got.Errors)
		}
	}
}

func TestBadEnrollmentDateIsDropped(t *testing.T) {
	f := validFields()
	f.EnrollmentDate = "soon"
	got := ValidateRow(Row{Fields: f})
	if !got.IsValid || got.Normalized.EnrollmentDate != "" {
		t.Fatalf("unexpected result %+v", got)
	}

	f.EnrollmentDate = "01/06/2023"
	got = ValidateRow(Row{Fields: f})
	if got.Normalized.EnrollmentDate != "2023-06-01" {
		t.Fatalf("enrollment date = %q", got.Normalized.EnrollmentDate)
	}
}

func TestReviewCounts(t *testing.T) {
	bad := validFields()
	bad.Gender = "x"
	res := Review([]Row{{Number: 2, Fields: validFields()}, {Number: 3, Fields: bad}})
	if res.ValidCount != 1 || res.InvalidCount != 1 || len(res.Students) != 2 {
		t.Fatalf("unexpected review %+v", res)
	}
	if res.Students[1].RowNumber != 3 {
		t.Fatalf("row order not preserved")
	}
}
