package controllers

import (
	"errors"

	"learningcenter_go/middleware"
	"learningcenter_go/services/timetable"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type TimetableController struct {
	service *timetable.Service
}

func NewTimetableController(service *timetable.Service) *TimetableController {
	return &TimetableController{service: service}
}

// GetConsolidated returns every active class timetable of a school merged
// into one (day, period) grid.
func (tc *TimetableController) GetConsolidated(c *fiber.Ctx) error {
	schoolID, ok := parseID(c, "school_id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid school ID",
		})
	}
	if !allowedSchool(c, schoolID) {
		return forbiddenSchool(c)
	}

	result, err := tc.service.Consolidate(c.UserContext(), schoolID)
	if err != nil {
		return tc.fail(c, err, "Failed to fetch consolidated timetable")
	}

	return c.JSON(fiber.Map{
		"entries":    result.Entries,
		"maxPeriods": result.MaxPeriods,
		"slots":      timetable.GroupBySlot(result.Entries),
	})
}

// GetTeacherTimetable returns what a trainer teaches and where they are
// double booked. Trainers may only look at themselves.
func (tc *TimetableController) GetTeacherTimetable(c *fiber.Ctx) error {
	teacherID, ok := parseID(c, "teacher_id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid teacher ID",
		})
	}
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return err
	}
	if user.Role == "trainer" && user.ID != teacherID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Trainers can only view their own timetable",
		})
	}

	schedule, err := tc.service.ConsolidateForTeacher(c.UserContext(), teacherID)
	if err != nil {
		return tc.fail(c, err, "Failed to fetch teacher timetable")
	}
	return c.JSON(schedule)
}

func (tc *TimetableController) GetClassTimetable(c *fiber.Ctx) error {
	classID, ok := parseID(c, "class_id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid class ID",
		})
	}
	view, err := tc.service.GetForClass(c.UserContext(), classID)
	if err != nil {
		return tc.fail(c, err, "Failed to fetch timetable")
	}
	if !allowedSchool(c, view.Timetable.SchoolID) {
		return forbiddenSchool(c)
	}
	return c.JSON(view)
}

func (tc *TimetableController) GetTimetable(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid timetable ID",
		})
	}
	view, err := tc.service.Get(c.UserContext(), id)
	if err != nil {
		return tc.fail(c, err, "Failed to fetch timetable")
	}
	if !allowedSchool(c, view.Timetable.SchoolID) {
		return forbiddenSchool(c)
	}
	return c.JSON(view)
}

func (tc *TimetableController) CreateTimetable(c *fiber.Ctx) error {
	var input timetable.CreateTimetableInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if input.ClassID != 0 {
		schoolID, err := tc.service.SchoolOfClass(c.UserContext(), input.ClassID)
		if err != nil {
			return tc.fail(c, err, "Failed to create timetable")
		}
		if !allowedSchool(c, schoolID) {
			return forbiddenSchool(c)
		}
	}

	view, err := tc.service.Create(c.UserContext(), input)
	if err != nil {
		return tc.fail(c, err, "Failed to create timetable")
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// ReplaceEntries swaps the whole entry list of a timetable.
func (tc *TimetableController) ReplaceEntries(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid timetable ID",
		})
	}
	var input timetable.ReplaceEntriesInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if done, err := tc.ownTimetable(c, id, "Failed to update timetable"); done {
		return err
	}

	view, err := tc.service.ReplaceEntries(c.UserContext(), id, input)
	if err != nil {
		return tc.fail(c, err, "Failed to update timetable")
	}
	return c.JSON(view)
}

func (tc *TimetableController) DeleteTimetable(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid timetable ID",
		})
	}
	if done, err := tc.ownTimetable(c, id, "Failed to delete timetable"); done {
		return err
	}
	if err := tc.service.Deactivate(c.UserContext(), id); err != nil {
		return tc.fail(c, err, "Failed to delete timetable")
	}
	return c.JSON(fiber.Map{
		"message": "Timetable deleted successfully",
	})
}

// ownTimetable answers the request itself, reporting done, when timetable
// id is missing or belongs to a school the caller cannot access.
func (tc *TimetableController) ownTimetable(c *fiber.Ctx, id uint, msg string) (bool, error) {
	schoolID, err := tc.service.SchoolOfTimetable(c.UserContext(), id)
	if err != nil {
		return true, tc.fail(c, err, msg)
	}
	if !allowedSchool(c, schoolID) {
		return true, forbiddenSchool(c)
	}
	return false, nil
}

// fail maps service errors to responses. Anything unknown is logged and
// answered with msg.
func (tc *TimetableController) fail(c *fiber.Ctx, err error, msg string) error {
	var verr *timetable.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, timetable.ErrActiveTimetableExists):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Timetable already exists for this class",
		})
	case errors.Is(err, timetable.ErrClassNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Class not found",
		})
	case errors.Is(err, timetable.ErrTimetableNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Timetable not found",
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
