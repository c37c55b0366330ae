package controllers

import (
	"strconv"

	"learningcenter_go/models"
	"learningcenter_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(hub *websocket.Hub) *WebSocketController {
	return &WebSocketController{hub: hub}
}

// RequireUpgrade rejects plain HTTP requests to the websocket endpoint.
func (wsc *WebSocketController) RequireUpgrade(c *fiber.Ctx) error {
	if fiberws.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
		"error": "Use the WebSocket endpoint: ws://<host>/ws?token=YOUR_JWT",
	})
}

// WebSocketHandler attaches an authenticated connection to the hub. Users
// bound to a school listen on it; others pick one with ?school_id=.
func (wsc *WebSocketController) WebSocketHandler() fiber.Handler {
	return fiberws.New(func(c *fiberws.Conn) {
		user, ok := c.Locals("user").(*models.User)
		if !ok {
			c.WriteMessage(fiberws.CloseMessage, fiberws.FormatCloseMessage(fiberws.ClosePolicyViolation, "unauthenticated"))
			return
		}

		var schoolID uint
		if user.SchoolID != nil {
			schoolID = *user.SchoolID
		} else if v, err := strconv.ParseUint(c.Query("school_id"), 10, 32); err == nil {
			schoolID = uint(v)
		}
		if schoolID == 0 {
			logrus.WithField("user_id", user.ID).Info("WebSocket client without school only receives user messages")
		}

		wsc.hub.ServeFiberWS(c, user.ID, schoolID)
	})
}
