package middleware

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"learningcenter_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	RequestIDHeader = "X-Request-ID"
	LogQueueKey     = "logs:queue"
	logCacheTTL     = 24 * time.Hour
)

// RequestID tags every request with an id, reusing the caller's when sent.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := utils.CopyString(c.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("request_id", id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}

// GetRequestID returns the id set by RequestID, or "".
func GetRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals("request_id").(string)
	return id
}

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		// Log request
		duration := time.Since(start)
		status := c.Response().StatusCode()

		logrus.WithFields(logrus.Fields{
			"request_id": GetRequestID(c),
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"duration":   duration.String(),
			"ip":         c.IP(),
			"user_agent": c.Get("User-Agent"),
		}).Info("HTTP Request")

		return err
	}
}

// ActivityLogger records who changed what. Entries are queued in Redis when
// it is available and written straight to MySQL otherwise.
type ActivityLogger struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewActivityLogger(db *gorm.DB, redisClient *redis.Client) *ActivityLogger {
	return &ActivityLogger{db: db, redis: redisClient}
}

// Log stores one activity entry in the background.
func (l *ActivityLogger) Log(c *fiber.Ctx, action, resource string, resourceID uint, details interface{}) {
	activityLog := newActivityLog(c, action, resource, resourceID, details)

	go func(al models.ActivityLog) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in activity logger")
			}
		}()
		l.store(context.Background(), al)
	}(activityLog)
}

// newActivityLog copies everything it takes from c; fasthttp reuses the
// request buffers once the handler returns.
func newActivityLog(c *fiber.Ctx, action, resource string, resourceID uint, details interface{}) models.ActivityLog {
	var userID uint
	if user, err := GetCurrentUser(c); err == nil {
		userID = user.ID
	}

	activityLog := models.ActivityLog{
		UserID:     userID,
		Action:     action,
		Resource:   utils.CopyString(resource),
		ResourceID: resourceID,
		IPAddress:  utils.CopyString(c.IP()),
		UserAgent:  utils.CopyString(c.Get(fiber.HeaderUserAgent)),
	}
	activityLog.CreatedAt = time.Now()

	meta := map[string]interface{}{
		"original_details": details,
		"integrity_hash":   integrityHash(activityLog),
		"request_id":       GetRequestID(c),
		"method":           c.Method(),
		"path":             c.Path(),
		"status_code":      c.Response().StatusCode(),
	}
	if raw, err := json.Marshal(meta); err == nil {
		activityLog.Details = raw
	}
	return activityLog
}

func (l *ActivityLogger) store(ctx context.Context, al models.ActivityLog) {
	if l.redis != nil {
		err := l.enqueue(ctx, al)
		if err == nil {
			return
		}
		logrus.WithError(err).Warn("Failed to queue activity log, saving directly to database")
	}
	if l.db == nil {
		return
	}
	if err := l.db.WithContext(ctx).Create(&al).Error; err != nil {
		logrus.WithError(err).Error("Failed to save activity log to database")
	}
}

// enqueue stores the entry under its own key and indexes it in a sorted set
// scored by time, which the maintenance job drains.
func (l *ActivityLogger) enqueue(ctx context.Context, al models.ActivityLog) error {
	data, err := json.Marshal(al)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %v", err)
	}
	key := fmt.Sprintf("log:%d:%s:%d", al.UserID, al.Action, time.Now().UnixNano())

	pipe := l.redis.TxPipeline()
	pipe.Set(ctx, key, data, logCacheTTL)
	pipe.ZAdd(ctx, LogQueueKey, &redis.Z{Score: float64(al.CreatedAt.Unix()), Member: key})
	_, err = pipe.Exec(ctx)
	return err
}

// integrityHash lets an auditor detect edited rows.
func integrityHash(log models.ActivityLog) string {
	data := fmt.Sprintf("%d:%s:%s:%d:%s:%s:%s",
		log.UserID,
		log.Action,
		log.Resource,
		log.ResourceID,
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt.Format(time.RFC3339),
	)
	return fmt.Sprintf("%x", md5.Sum([]byte(data)))
}

// Middleware logs successful mutating requests.
func (l *ActivityLogger) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead || c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		err := c.Next()

		action := actionFor(c.Method())
		if action == "" || err != nil || c.Response().StatusCode() >= 400 {
			return err
		}

		var resourceID uint
		if id, parseErr := strconv.ParseUint(c.Params("id"), 10, 64); parseErr == nil {
			resourceID = uint(id)
		}
		l.Log(c, action, resourceFromPath(c.Path()), resourceID, nil)
		return nil
	}
}

func actionFor(method string) string {
	switch method {
	case fiber.MethodPost:
		return "CREATE"
	case fiber.MethodPut, fiber.MethodPatch:
		return "UPDATE"
	case fiber.MethodDelete:
		return "DELETE"
	}
	return ""
}

// resourceFromPath takes the segment after /api, e.g. "timetables".
func resourceFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "api" {
		return parts[1]
	}
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}
