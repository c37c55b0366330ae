package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"learningcenter_go/config"
	"learningcenter_go/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the MySQL pool and runs migrations unless disabled.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	// Configure GORM logger based on environment
	gormLogger := logger.Default.LogMode(logger.Silent)
	if cfg.IsDevelopment() {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	var (
		db      *gorm.DB
		lastErr error
	)
	for attempt := 1; attempt <= 8; attempt++ { // 8 attempts ~ exponential backoff up to ~30s total
		db, lastErr = gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{Logger: gormLogger})
		if lastErr == nil {
			break
		}
		log.Printf("Database connect attempt %d failed: %v", attempt, lastErr)
		time.Sleep(time.Duration(attempt*attempt) * 300 * time.Millisecond)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("connect to database after retries: %w", lastErr)
	}

	log.Println("Database connected successfully")

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(55 * time.Minute)

	if !cfg.SkipMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// AutoMigrate performs automatic database migration
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.School{},
		&models.Class{},
		&models.User{},
		&models.Timetable{},
		&models.TimetableEntry{},
		&models.Student{},
		&models.StudentUpload{},
		&models.ActivityLog{},
		&models.LogArchive{},
	)
	if err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	log.Println("Database migration completed successfully")
	return nil
}

// ConnectRedis returns a client, or nil when Redis is unreachable. Callers
// must treat a nil client as "no cache".
func ConnectRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0, // use default DB
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("Redis connection failed: %v", err)
		log.Println("Continuing without Redis - timetable cache disabled, logs written directly to database")
		_ = client.Close()
		return nil
	}

	log.Println("Redis connected successfully")
	return client
}

// Close drains the connection pool.
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Println("Error getting database instance:", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Println("Error closing database connection:", err)
		return
	}
	log.Println("Database connection closed")
}
