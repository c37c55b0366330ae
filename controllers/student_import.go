package controllers

import (
	"errors"
	"strconv"

	"learningcenter_go/middleware"
	"learningcenter_go/services/importer"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type StudentImportController struct {
	service *importer.Service
}

func NewStudentImportController(service *importer.Service) *StudentImportController {
	return &StudentImportController{service: service}
}

type confirmImportRequest struct {
	ClassID  uint              `json:"class_id"`
	SchoolID uint              `json:"school_id"`
	Students []importer.Fields `json:"students"`
	FilePath string            `json:"filePath"`
}

// ValidateImport parses an uploaded CSV/XLSX and returns the per-row review.
// POST /api/students/import/validate (multipart: file, class_id, school_id)
func (sc *StudentImportController) ValidateImport(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}

	classID, err1 := strconv.ParseUint(c.FormValue("class_id"), 10, 32)
	schoolID, err2 := strconv.ParseUint(c.FormValue("school_id"), 10, 32)
	if err1 != nil || err2 != nil || classID == 0 || schoolID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "class_id and school_id are required",
		})
	}
	if !allowedSchool(c, uint(schoolID)) {
		return forbiddenSchool(c)
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return sc.fail(c, err, "Failed to read uploaded file")
	}
	defer src.Close()

	result, err := sc.service.ValidateUpload(c.UserContext(), importer.UploadInput{
		Target:      importer.Target{SchoolID: uint(schoolID), ClassID: uint(classID)},
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Data:        src,
		UploadedBy:  user.ID,
	})
	if err != nil {
		return sc.fail(c, err, "Failed to process uploaded file")
	}
	return c.JSON(result)
}

// ConfirmImport writes the reviewed rows.
// POST /api/students/import/confirm
func (sc *StudentImportController) ConfirmImport(c *fiber.Ctx) error {
	var req confirmImportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ClassID == 0 || req.SchoolID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "class_id and school_id are required",
		})
	}
	if len(req.Students) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No students to import",
		})
	}
	if !allowedSchool(c, req.SchoolID) {
		return forbiddenSchool(c)
	}

	result, err := sc.service.Confirm(c.UserContext(), importer.Target{SchoolID: req.SchoolID, ClassID: req.ClassID}, req.Students, req.FilePath)
	if err != nil {
		return sc.fail(c, err, "Failed to import students")
	}
	return c.JSON(result)
}

// DownloadTemplate serves an empty import sheet. ?format=xlsx for Excel.
func (sc *StudentImportController) DownloadTemplate(c *fiber.Ctx) error {
	format := c.Query("format", "csv")
	if format != "csv" && format != "xlsx" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "format must be csv or xlsx",
		})
	}
	data, contentType, err := importer.Template(format)
	if err != nil {
		return sc.fail(c, err, "Failed to build template")
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="student_import_template.`+format+`"`)
	return c.Send(data)
}

func (sc *StudentImportController) fail(c *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, importer.ErrUnsupportedFormat),
		errors.Is(err, importer.ErrEmptyFile):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, importer.ErrFileTooLarge):
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, importer.ErrSchoolNotFound),
		errors.Is(err, importer.ErrClassNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"request_id": middleware.GetRequestID(c),
		"path":       c.Path(),
	}).Error(msg)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}
