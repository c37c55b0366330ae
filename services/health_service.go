package services

import (
	"context"
	"time"

	"learningcenter_go/config"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Overall health, ordered from best to worst.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusCritical = "critical"
)

// Per-dependency states.
const (
	stateUp       = "up"
	stateDown     = "down"
	stateDisabled = "disabled"
)

// ClientCounter reports connected realtime clients.
type ClientCounter interface {
	GetClientCount() int
}

// Check is the outcome of probing one dependency.
type Check struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// PoolStats is a snapshot of the MySQL connection pool.
type PoolStats struct {
	Open      int   `json:"open"`
	InUse     int   `json:"in_use"`
	Idle      int   `json:"idle"`
	MaxOpen   int   `json:"max_open"`
	WaitCount int64 `json:"wait_count"`
}

type HealthReport struct {
	Status           string     `json:"status"`
	Environment      string     `json:"environment"`
	Time             time.Time  `json:"time"`
	Uptime           string     `json:"uptime"`
	Checks           []Check    `json:"checks"`
	Pool             *PoolStats `json:"pool,omitempty"`
	WebSocketClients int        `json:"websocket_clients"`
	UploadBackend    string     `json:"upload_backend"`
}

// HealthService backs GET /health. MySQL is required; Redis only speeds
// things up, so losing it degrades rather than fails the service.
type HealthService struct {
	environment   string
	uploadBackend string
	started       time.Time

	db    *gorm.DB
	redis *redis.Client
	hub   ClientCounter
}

// NewHealthService creates a HealthService. db, redisClient and hub may be nil.
func NewHealthService(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, hub ClientCounter) *HealthService {
	s := &HealthService{environment: "unknown", started: time.Now(), db: db, redis: redisClient, hub: hub}
	if cfg != nil {
		if cfg.AppEnv != "" {
			s.environment = cfg.AppEnv
		}
		s.uploadBackend = cfg.UploadBackend
	}
	return s
}

func (s *HealthService) GetHealthReport(ctx context.Context) HealthReport {
	mysqlCheck, pool := s.checkMySQL(ctx)
	redisCheck := s.checkRedis(ctx)

	report := HealthReport{
		Status:        overallStatus(mysqlCheck, redisCheck),
		Environment:   s.environment,
		Time:          time.Now().UTC(),
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		Checks:        []Check{mysqlCheck, redisCheck},
		Pool:          pool,
		UploadBackend: s.uploadBackend,
	}
	if s.hub != nil {
		report.WebSocketClients = s.hub.GetClientCount()
	}
	return report
}

// HTTPStatus is 503 only when the service cannot answer requests.
func (s *HealthService) HTTPStatus(status string) int {
	if status == StatusCritical {
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusOK
}

func overallStatus(mysqlCheck, redisCheck Check) string {
	switch {
	case mysqlCheck.State != stateUp:
		return StatusCritical
	case redisCheck.State == stateDown:
		return StatusDegraded
	}
	return StatusOK
}

func (s *HealthService) checkMySQL(ctx context.Context) (Check, *PoolStats) {
	check := Check{Name: "mysql", State: stateDown}
	if s.db == nil {
		check.Error = "database connection not initialised"
		return check, nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		check.Error = err.Error()
		return check, nil
	}

	check.LatencyMs, err = timed(ctx, time.Second, sqlDB.PingContext)
	if err != nil {
		check.Error = err.Error()
		return check, nil
	}
	check.State = stateUp

	stats := sqlDB.Stats()
	return check, &PoolStats{
		Open:      stats.OpenConnections,
		InUse:     stats.InUse,
		Idle:      stats.Idle,
		MaxOpen:   stats.MaxOpenConnections,
		WaitCount: stats.WaitCount,
	}
}

func (s *HealthService) checkRedis(ctx context.Context) Check {
	check := Check{Name: "redis", State: stateDisabled}
	if s.redis == nil {
		return check
	}

	latency, err := timed(ctx, 500*time.Millisecond, func(ctx context.Context) error {
		return s.redis.Ping(ctx).Err()
	})
	check.LatencyMs = latency
	if err != nil {
		check.State = stateDown
		check.Error = err.Error()
		return check
	}
	check.State = stateUp
	return check
}

// timed runs ping under its own deadline and reports how long it took.
func timed(ctx context.Context, limit time.Duration, ping func(context.Context) error) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	start := time.Now()
	err := ping(ctx)
	return time.Since(start).Milliseconds(), err
}
