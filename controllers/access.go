package controllers

import (
	"strconv"

	"learningcenter_go/middleware"
	"learningcenter_go/models"

	"github.com/gofiber/fiber/v2"
)

// canAccessSchool lets admins and unscoped staff through; staff bound to a
// school only see their own.
func canAccessSchool(user *models.User, schoolID uint) bool {
	if user == nil {
		return false
	}
	if user.Role == "admin" || user.SchoolID == nil {
		return true
	}
	return *user.SchoolID == schoolID
}

func allowedSchool(c *fiber.Ctx, schoolID uint) bool {
	user, _ := middleware.GetCurrentUser(c)
	return canAccessSchool(user, schoolID)
}

func forbiddenSchool(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": "You do not have access to this school",
	})
}

func parseID(c *fiber.Ctx, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
