package importer

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, upload a .csv or .xlsx file")
	ErrEmptyFile         = errors.New("file has no data rows")
	ErrFileTooLarge      = errors.New("file exceeds the maximum upload size")
	ErrSchoolNotFound    = errors.New("school not found")
	ErrClassNotFound     = errors.New("class not found in this school")
)
