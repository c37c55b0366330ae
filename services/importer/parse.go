package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"mime"
	"strings"

	"learningcenter_go/utils"

	"github.com/xuri/excelize/v2"
)

// Header names of the known import columns.
const (
	ColFirstName      = "first_name"
	ColLastName       = "last_name"
	ColDateOfBirth    = "date_of_birth"
	ColGender         = "gender"
	ColParentName     = "parent_name"
	ColParentContact  = "parent_contact"
	ColEnrollmentDate = "enrollment_date"
)

// TemplateColumns is the column order of the downloadable template.
var TemplateColumns = []string{
	ColFirstName, ColLastName, ColDateOfBirth, ColGender, ColParentName, ColParentContact, ColEnrollmentDate,
}

var headerAliases = map[string]string{
	"firstname":     ColFirstName,
	"lastname":      ColLastName,
	"dob":           ColDateOfBirth,
	"birth_date":    ColDateOfBirth,
	"parent_phone":  ColParentContact,
	"parent_mobile": ColParentContact,
	"contact":       ColParentContact,
}

var allowedContentTypes = map[string][]string{
	"csv": {"text/csv", "application/csv", "application/vnd.ms-excel", "text/plain", "application/octet-stream"},
	"xlsx": {
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/zip",
		"application/octet-stream",
	},
}

// Fields is the known-column projection of one import row.
type Fields struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	DateOfBirth    string `json:"date_of_birth"`
	Gender         string `json:"gender"`
	ParentName     string `json:"parent_name"`
	ParentContact  string `json:"parent_contact"`
	EnrollmentDate string `json:"enrollment_date,omitempty"`
}

// Row is one parsed data row. Number is the 1-based line in the file,
// header included.
type Row struct {
	Number   int
	Fields   Fields
	Original map[string]string
	Extra    map[string]string
}

// CheckFormat accepts .csv and .xlsx files whose declared content type, if
// any, matches the extension. It returns the lowercased extension.
func CheckFormat(name, contentType string) (string, error) {
	ext := utils.FileExtension(name)
	allowed, ok := allowedContentTypes[ext]
	if !ok {
		return "", ErrUnsupportedFormat
	}
	if contentType == "" {
		return ext, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", ErrUnsupportedFormat
	}
	for _, ct := range allowed {
		if mediaType == ct {
			return ext, nil
		}
	}
	return "", ErrUnsupportedFormat
}

// Parse reads a CSV or XLSX upload into rows. Blank lines are skipped.
func Parse(name, contentType string, r io.Reader) ([]Row, error) {
	ext, err := CheckFormat(name, contentType)
	if err != nil {
		return nil, err
	}

	var records [][]string
	switch ext {
	case "csv":
		records, err = readCSV(r)
	case "xlsx":
		records, err = readXLSX(r)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ext, err)
	}
	return rowsFromRecords(records)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	// Use first sheet
	sht := f.GetSheetName(0)
	if sht == "" {
		sht = "Sheet1"
	}
	return f.GetRows(sht)
}

func canonicalHeader(h string) string {
	key := utils.NormalizeHeader(h)
	if alias, ok := headerAliases[key]; ok {
		return alias
	}
	return key
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func rowsFromRecords(records [][]string) ([]Row, error) {
	// leading blank lines before the header are ignored
	for len(records) > 0 && isBlank(records[0]) {
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = canonicalHeader(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := Row{
			Number:   i + 2,
			Original: make(map[string]string, len(header)),
		}
		for col, key := range header {
			if key == "" {
				continue
			}
			value := ""
			if col < len(rec) {
				value = rec[col]
			}
			row.Original[key] = value
			if !row.Fields.set(key, value) {
				if row.Extra == nil {
					row.Extra = make(map[string]string)
				}
				row.Extra[key] = value
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

// set stores value under a known column and reports whether key was known.
func (f *Fields) set(key, value string) bool {
	switch key {
	case ColFirstName:
		f.FirstName = value
	case ColLastName:
		f.LastName = value
	case ColDateOfBirth:
		f.DateOfBirth = value
	case ColGender:
		f.Gender = value
	case ColParentName:
		f.ParentName = value
	case ColParentContact:
		f.ParentContact = value
	case ColEnrollmentDate:
		f.EnrollmentDate = value
	default:
		return false
	}
	return true
}

// Template returns an import template with the header and one sample row,
// as CSV or as an XLSX workbook.
func Template(format string) ([]byte, string, error) {
	sample := []string{"Rahul", "Sharma", "15-05-2018", "Male", "Suresh Sharma", "9876543001", ""}
	switch format {
	case "xlsx":
		f := excelize.NewFile()
		defer f.Close()
		sheet := f.GetSheetName(0)
		for i, v := range TemplateColumns {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, v)
		}
		for i, v := range sample {
			cell, _ := excelize.CoordinatesToCellName(i+1, 2)
			f.SetCellValue(sheet, cell, v)
		}
		buf, err := f.WriteToBuffer()
		if err != nil {
			return nil, "", err
		}
		return buf.Bytes(), allowedContentTypes["xlsx"][0], nil
	default:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write(TemplateColumns)
		_ = w.Write(sample)
		w.Flush()
		return buf.Bytes(), "text/csv", w.Error()
	}
}
