package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		contentType string
		wantErr     bool
	}{
		{name: "csv", file: "students.csv", contentType: "text/csv"},
		{name: "csv with charset", file: "students.csv", contentType: "text/csv; charset=utf-8"},
		{name: "csv from excel", file: "students.CSV", contentType: "application/vnd.ms-excel"},
		{name: "csv no content type", file: "students.csv"},
		{name: "xlsx", file: "students.xlsx", contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{name: "pdf", file: "students.pdf", contentType: "application/pdf", wantErr: true},
		{name: "csv named but pdf type", file: "students.csv", contentType: "application/pdf", wantErr: true},
		{name: "legacy xls", file: "students.xls", contentType: "application/vnd.ms-excel", wantErr: true},
		{name: "no extension", file: "students", contentType: "text/csv", wantErr: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := CheckFormat(tc.file, tc.contentType)
			if tc.wantErr && !errors.Is(err, ErrUnsupportedFormat) {
				t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	csv := "First Name, Last-Name ,DOB,Gender,Parent Name,Parent_Phone,House\n" +
		"Rahul,Sharma,15-05-2018,Male,Amit,9876543001,Blue\n" +
		",,,,,,\n" +
		"\n" +
		"Priya,Patel,2017/09/02,female,Meena,+91 98765 43002\n"

	rows, err := Parse("students.csv", "text/csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first.Number != 2 {
		t.Errorf("first row number = %d, want 2", first.Number)
	}
	if first.Fields.FirstName != "Rahul" || first.Fields.LastName != "Sharma" {
		t.Errorf("unexpected names %+v", first.Fields)
	}
	if first.Fields.DateOfBirth != "15-05-2018" {
		t.Errorf("dob alias not applied: %+v", first.Fields)
	}
	if first.Fields.ParentContact != "9876543001" {
		t.Errorf("parent_phone alias not applied: %+v", first.Fields)
	}
	if first.Extra["house"] != "Blue" {
		t.Errorf("unknown column not kept in extra: %+v", first.Extra)
	}
	if first.Original["date_of_birth"] != "15-05-2018" {
		t.Errorf("original not keyed by normalized header: %+v", first.Original)
	}

	second := rows[1]
	// the csv reader drops empty lines, so only the ",,,,,," record counts
	if second.Number != 4 {
		t.Errorf("second row number = %d, want 4", second.Number)
	}
	if second.Fields.ParentContact != "+91 98765 43002" {
		t.Errorf("unexpected contact %q", second.Fields.ParentContact)
	}
	if _, ok := second.Extra["house"]; !ok {
		t.Errorf("short record should still carry the extra column as empty")
	}
}

func TestParseEmpty(t *testing.T) {
	tests := map[string]string{
		"no bytes":     "",
		"header only":  "first_name,last_name\n",
		"blank rows":   "first_name,last_name\n,\n\n",
		"only newline": "\n\n",
	}
	for name, body := range tests {
		if _, err := Parse("students.csv", "text/csv", strings.NewReader(body)); !errors.Is(err, ErrEmptyFile) {
			t.Errorf("%s: expected ErrEmptyFile, got %v", name, err)
		}
	}
}

func TestParseMalformedCSV(t *testing.T) {
	_, err := Parse("students.csv", "text/csv", strings.NewReader("first_name\n\"unterminated\n"))
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if errors.Is(err, ErrEmptyFile) || errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected a read error, got %v", err)
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	values := [][]interface{}{
		{"first_name", "last_name", "date_of_birth", "gender", "parent_name", "parent_contact"},
		{"Rahul", "Sharma", "15-05-2018", "Male", "Amit", "9876543001"},
	}
	for r, row := range values {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	rows, err := Parse("students.xlsx", "", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Fields.ParentName != "Amit" || rows[0].Number != 2 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestTemplateParsesBack(t *testing.T) {
	for _, format := range []string{"csv", "xlsx"} {
		data, contentType, err := Template(format)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", format, err)
		}
		rows, err := Parse("template."+format, contentType, bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s: template does not parse: %v", format, err)
		}
		if len(rows) != 1 {
			t.Fatalf("%s: expected one sample row, got %d", format, len(rows))
		}
		if got := ValidateRow(rows[0]); !got.IsValid {
			t.Fatalf("%s: sample row is invalid: %v", format, got.Errors)
		}
	}
}
