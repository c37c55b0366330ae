package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"learningcenter_go/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-test-secret"

type userMap map[uint]*models.User

func (m userMap) FindUser(_ context.Context, id uint) (*models.User, error) {
	if id == 500 {
		return nil, errors.New("database unavailable")
	}
	return m[id], nil
}

func newApp(users UserFinder, handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	chain := append([]fiber.Handler{JWTMiddleware(secret, users)}, handlers...)
	chain = append(chain, func(c *fiber.Ctx) error {
		user, err := GetCurrentUser(c)
		if err != nil {
			return err
		}
		return c.SendString(user.Username)
	})
	app.Get("/", chain...)
	return app
}

func request(t *testing.T, app *fiber.App, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestJWTMiddleware(t *testing.T) {
	school := uint(1)
	active := &models.User{BaseModel: models.BaseModel{ID: 1}, Username: "asha", Role: "manager", Status: "active", SchoolID: &school}
	inactive := &models.User{BaseModel: models.BaseModel{ID: 2}, Username: "old", Role: "manager", Status: "inactive"}
	users := userMap{1: active, 2: inactive}
	app := newApp(users)

	valid, err := GenerateToken(active, secret, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(active, secret, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := GenerateToken(active, "another-secret", time.Hour)
	require.NoError(t, err)
	disabled, err := GenerateToken(inactive, secret, time.Hour)
	require.NoError(t, err)
	missing, err := GenerateToken(&models.User{BaseModel: models.BaseModel{ID: 9}, Role: "admin"}, secret, time.Hour)
	require.NoError(t, err)
	broken, err := GenerateToken(&models.User{BaseModel: models.BaseModel{ID: 500}}, secret, time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "valid", token: valid, status: fiber.StatusOK},
		{name: "missing header", token: "", status: fiber.StatusUnauthorized},
		{name: "expired", token: expired, status: fiber.StatusUnauthorized},
		{name: "wrong key", token: wrongKey, status: fiber.StatusUnauthorized},
		{name: "alg none", token: unsigned, status: fiber.StatusUnauthorized},
		{name: "inactive user", token: disabled, status: fiber.StatusUnauthorized},
		{name: "unknown user", token: missing, status: fiber.StatusUnauthorized},
		{name: "lookup failure", token: broken, status: fiber.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, request(t, app, tc.token))
		})
	}
}

func TestJWTMiddlewareRejectsMalformedHeader(t *testing.T) {
	app := newApp(userMap{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRoleUsesStoredRole(t *testing.T) {
	// token claims admin, the stored user has since been made a trainer
	stored := &models.User{BaseModel: models.BaseModel{ID: 3}, Username: "ravi", Role: "trainer", Status: "active"}
	app := newApp(userMap{3: stored}, RequireManagerOrAdmin())

	claimed := *stored
	claimed.Role = "admin"
	tok, err := GenerateToken(&claimed, secret, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, request(t, app, tok))

	staff := newApp(userMap{3: stored}, RequireStaff())
	assert.Equal(t, fiber.StatusOK, request(t, staff, tok))
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetRequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	generated := resp.Header.Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestResourceFromPath(t *testing.T) {
	tests := map[string]string{
		"/api/timetables/12/entries":  "timetables",
		"/api/students/import/confirm": "students",
		"/health":                      "health",
		"/":                            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, resourceFromPath(in), in)
	}
}

func TestActionFor(t *testing.T) {
	assert.Equal(t, "CREATE", actionFor(fiber.MethodPost))
	assert.Equal(t, "UPDATE", actionFor(fiber.MethodPut))
	assert.Equal(t, "UPDATE", actionFor(fiber.MethodPatch))
	assert.Equal(t, "DELETE", actionFor(fiber.MethodDelete))
	assert.Equal(t, "", actionFor(fiber.MethodGet))
}

func TestIntegrityHashChangesWithContent(t *testing.T) {
	base := models.ActivityLog{UserID: 1, Action: "CREATE", Resource: "timetables", ResourceID: 4}
	base.CreatedAt = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	edited := base
	edited.ResourceID = 5

	assert.Len(t, integrityHash(base), 32)
	assert.Equal(t, integrityHash(base), integrityHash(base))
	assert.NotEqual(t, integrityHash(base), integrityHash(edited))
}

func TestActivityLogOutlivesTheRequest(t *testing.T) {
	var logs []models.ActivityLog
	app := fiber.New()
	app.Use(RequestID())
	app.Post("/api/:resource", func(c *fiber.Ctx) error {
		logs = append(logs, newActivityLog(c, "CREATE", resourceFromPath(c.Path()), 0, nil))
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func(path, agent, requestID string) {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(fiber.HeaderUserAgent, agent)
		req.Header.Set(RequestIDHeader, requestID)
		_, err := app.Test(req, -1)
		require.NoError(t, err)
	}
	send("/api/timetables", "agent-one", "req-one")
	send("/api/studentsxx", "agent-two-longer", "req-two")

	require.Len(t, logs, 2)
	assert.Equal(t, "timetables", logs[0].Resource)
	assert.Equal(t, "agent-one", logs[0].UserAgent)
	assert.Contains(t, string(logs[0].Details), `"request_id":"req-one"`)
	assert.Equal(t, "studentsxx", logs[1].Resource)
	assert.Equal(t, "agent-two-longer", logs[1].UserAgent)
}
