package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"learningcenter_go/config"
	"learningcenter_go/middleware"
	"learningcenter_go/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	minArchiveDays  = 7
	archiveBatch    = 1000
	flushQueueAfter = 5 * time.Minute
)

// ObjectPutter is the part of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// LogArchiveService handles flushing queued activity logs and archiving old logs to S3
type LogArchiveService struct {
	db          *gorm.DB
	redisClient *redis.Client
	s3Client    ObjectPutter
	bucket      string
}

// ArchivedLog is the exported representation stored inside archives
type ArchivedLog struct {
	ID         uint           `json:"id"`
	UserID     uint           `json:"user_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID uint           `json:"resource_id"`
	Details    map[string]any `json:"details"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	CreatedAt  time.Time      `json:"created_at"`
	Username   string         `json:"username,omitempty"`
	UserRole   string         `json:"user_role,omitempty"`
}

// NewLogArchiveService loads AWS credentials from the default chain. Without
// them archiving fails but flushing still works.
func NewLogArchiveService(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *LogArchiveService {
	svc := &LogArchiveService{db: db, redisClient: redisClient, bucket: cfg.S3BucketName}
	awsConf, err := awscfg.LoadDefaultConfig(context.Background(), awscfg.WithRegion(cfg.AWSRegion))
	if err != nil {
		logrus.WithError(err).Warn("Failed to load AWS config; log archiving disabled")
		return svc
	}
	svc.s3Client = s3.NewFromConfig(awsConf)
	return svc
}

// NewLogArchiveServiceWithClient is used when the S3 client is built elsewhere.
func NewLogArchiveServiceWithClient(db *gorm.DB, redisClient *redis.Client, client ObjectPutter, bucket string) *LogArchiveService {
	return &LogArchiveService{db: db, redisClient: redisClient, s3Client: client, bucket: bucket}
}

// FlushQueuedLogs moves activity logs queued in Redis into MySQL.
func (las *LogArchiveService) FlushQueuedLogs(ctx context.Context) error {
	if las.redisClient == nil {
		return nil
	}

	cutoff := time.Now().Add(-flushQueueAfter)
	keys, err := las.redisClient.ZRangeByScore(ctx, middleware.LogQueueKey, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read log queue: %w", err)
	}

	var processed, failed int
	for _, key := range keys {
		raw, err := las.redisClient.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// expired before it was flushed
			las.redisClient.ZRem(ctx, middleware.LogQueueKey, key)
			continue
		}
		if err != nil {
			logrus.WithError(err).WithField("key", key).Error("Failed to read queued log")
			failed++
			continue
		}

		var activityLog models.ActivityLog
		if err := json.Unmarshal(raw, &activityLog); err != nil {
			logrus.WithError(err).WithField("key", key).Error("Failed to decode queued log")
			failed++
			continue
		}
		activityLog.ID = 0

		if err := las.db.WithContext(ctx).Create(&activityLog).Error; err != nil {
			logrus.WithError(err).WithField("key", key).Error("Failed to save queued log")
			failed++
			continue
		}

		pipe := las.redisClient.Pipeline()
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, middleware.LogQueueKey, key)
		if _, err := pipe.Exec(ctx); err != nil {
			logrus.WithError(err).WithField("key", key).Error("Failed to remove flushed log from queue")
		}
		processed++
	}

	if len(keys) > 0 {
		logrus.WithFields(logrus.Fields{"flushed": processed, "failed": failed}).Info("Flushed queued activity logs")
	}
	return nil
}

// ArchiveOldLogs zips logs older than daysOld, uploads them to S3 and then
// deletes them from MySQL.
func (las *LogArchiveService) ArchiveOldLogs(ctx context.Context, daysOld int) error {
	if daysOld < minArchiveDays {
		return fmt.Errorf("minimum archive age is %d days", minArchiveDays)
	}
	if las.s3Client == nil || las.bucket == "" {
		return fmt.Errorf("S3 archive target not configured")
	}

	cutoffDate := time.Now().AddDate(0, 0, -daysOld)

	var allLogs []ArchivedLog
	for offset := 0; ; offset += archiveBatch {
		var logs []models.ActivityLog
		err := las.db.WithContext(ctx).
			Where("created_at < ?", cutoffDate).
			Order("id").
			Limit(archiveBatch).
			Offset(offset).
			Find(&logs).Error
		if err != nil {
			return fmt.Errorf("failed to fetch logs for archiving: %w", err)
		}
		if len(logs) == 0 {
			break
		}
		for _, l := range logs {
			allLogs = append(allLogs, toArchived(l))
		}
	}

	if len(allLogs) == 0 {
		logrus.Info("No logs to archive")
		return nil
	}
	las.attachUsers(ctx, allLogs)

	archiveFileName := fmt.Sprintf("activity_logs_%s.zip", cutoffDate.Format("2006-01-02"))
	zipBuffer, err := createZipArchive(allLogs, archiveFileName)
	if err != nil {
		return fmt.Errorf("failed to create ZIP archive: %w", err)
	}

	s3Key := fmt.Sprintf("logs/archived/%d/%02d/%s", cutoffDate.Year(), cutoffDate.Month(), archiveFileName)
	archive := models.LogArchive{
		FileName:    archiveFileName,
		S3Key:       s3Key,
		StartDate:   allLogs[0].CreatedAt,
		EndDate:     cutoffDate,
		RecordCount: len(allLogs),
		FileSize:    int64(zipBuffer.Len()),
		Status:      "pending",
	}

	_, err = las.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(las.bucket),
		Key:         aws.String(s3Key),
		Body:        bytes.NewReader(zipBuffer.Bytes()),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		archive.Status = "failed"
		archive.Error = err.Error()
		if dbErr := las.db.WithContext(ctx).Create(&archive).Error; dbErr != nil {
			logrus.WithError(dbErr).Error("Failed to save archive metadata")
		}
		return fmt.Errorf("failed to upload archive to S3: %w", err)
	}

	maxID := allLogs[len(allLogs)-1].ID
	result := las.db.WithContext(ctx).Where("created_at < ? AND id <= ?", cutoffDate, maxID).Delete(&models.ActivityLog{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete archived logs from database: %w", result.Error)
	}

	archive.Status = "completed"
	if err := las.db.WithContext(ctx).Create(&archive).Error; err != nil {
		logrus.WithError(err).Error("Failed to save archive metadata")
	}
	logrus.WithFields(logrus.Fields{"s3_key": s3Key, "deleted": result.RowsAffected}).Info("Archived activity logs")
	return nil
}

func toArchived(l models.ActivityLog) ArchivedLog {
	out := ArchivedLog{
		ID:         l.ID,
		UserID:     l.UserID,
		Action:     l.Action,
		Resource:   l.Resource,
		ResourceID: l.ResourceID,
		IPAddress:  l.IPAddress,
		UserAgent:  l.UserAgent,
		CreatedAt:  l.CreatedAt,
	}
	if !l.Details.IsNull() {
		var details map[string]any
		if err := json.Unmarshal(l.Details, &details); err == nil {
			out.Details = details
		}
	}
	return out
}

func (las *LogArchiveService) attachUsers(ctx context.Context, logs []ArchivedLog) {
	ids := make([]uint, 0)
	seen := make(map[uint]bool)
	for _, l := range logs {
		if l.UserID != 0 && !seen[l.UserID] {
			seen[l.UserID] = true
			ids = append(ids, l.UserID)
		}
	}
	if len(ids) == 0 {
		return
	}
	var users []models.User
	if err := las.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		logrus.WithError(err).Warn("Failed to load users for archive")
		return
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for i := range logs {
		if u, ok := byID[logs[i].UserID]; ok {
			logs[i].Username = u.Username
			logs[i].UserRole = u.Role
		}
	}
}

// createZipArchive packs the logs as JSON and CSV plus a metadata file.
func createZipArchive(logs []ArchivedLog, fileName string) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zipWriter := zip.NewWriter(buf)

	logsFile, err := zipWriter.Create("activity_logs.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create logs file in ZIP: %w", err)
	}
	encoder := json.NewEncoder(logsFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(map[string]any{
		"export_date":    time.Now().UTC(),
		"record_count":   len(logs),
		"format_version": "1.0",
		"logs":           logs,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode logs to JSON: %w", err)
	}

	metadataFile, err := zipWriter.Create("metadata.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata file in ZIP: %w", err)
	}
	if err := json.NewEncoder(metadataFile).Encode(map[string]any{
		"file_name":    fileName,
		"created_at":   time.Now().UTC(),
		"record_count": len(logs),
		"date_range": map[string]any{
			"start": logs[0].CreatedAt,
			"end":   logs[len(logs)-1].CreatedAt,
		},
		"schema_version": "1.0",
		"description":    "Learning Center Activity Logs Archive",
	}); err != nil {
		return nil, fmt.Errorf("failed to encode metadata to JSON: %w", err)
	}

	csvFile, err := zipWriter.Create("activity_logs.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file in ZIP: %w", err)
	}
	w := csv.NewWriter(csvFile)
	_ = w.Write([]string{"ID", "User ID", "Username", "Role", "Action", "Resource", "Resource ID", "IP Address", "User Agent", "Created At", "Details"})
	for _, l := range logs {
		details := ""
		if l.Details != nil {
			if b, err := json.Marshal(l.Details); err == nil {
				details = string(b)
			}
		}
		_ = w.Write([]string{
			strconv.FormatUint(uint64(l.ID), 10),
			strconv.FormatUint(uint64(l.UserID), 10),
			l.Username,
			l.UserRole,
			l.Action,
			l.Resource,
			strconv.FormatUint(uint64(l.ResourceID), 10),
			l.IPAddress,
			l.UserAgent,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			details,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close ZIP writer: %w", err)
	}
	return buf, nil
}

// StartLogMaintenance schedules flush and archive on cronSpec. The caller
// stops the returned scheduler on shutdown.
func (las *LogArchiveService) StartLogMaintenance(cronSpec string, daysOld int) (*cron.Cron, error) {
	c := cron.New()

	// the queue is drained more often than logs are archived
	if _, err := c.AddFunc("@every 10m", func() {
		if err := las.FlushQueuedLogs(context.Background()); err != nil {
			logrus.WithError(err).Warn("periodic FlushQueuedLogs failed")
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(cronSpec, func() {
		ctx := context.Background()
		if err := las.FlushQueuedLogs(ctx); err != nil {
			logrus.WithError(err).Warn("FlushQueuedLogs before archive failed")
		}
		if err := las.ArchiveOldLogs(ctx, daysOld); err != nil {
			logrus.WithError(err).Warn("periodic ArchiveOldLogs failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid LOG_ARCHIVE_CRON %q: %w", cronSpec, err)
	}

	c.Start()
	return c, nil
}
