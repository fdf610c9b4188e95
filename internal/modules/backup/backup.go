// Package backup uploads snapshots of the database files to S3.
package backup

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	appconfig "stockfolio/internal/config"
)

// databaseFiles are the sqlite files worth keeping off-site. The cache
// database is rebuildable and not backed up.
var databaseFiles = []string{"ledger.db", "app.db"}

// Job uploads database snapshots on a cron schedule.
type Job struct {
	dataDir  string
	cfg      *appconfig.BackupConfig
	uploader *manager.Uploader
	timeout  time.Duration
	log      zerolog.Logger
}

// NewJob creates a backup job. Call only when cfg.Enabled().
func NewJob(ctx context.Context, dataDir string, cfg *appconfig.BackupConfig, log zerolog.Logger) (*Job, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &Job{
		dataDir:  dataDir,
		cfg:      cfg,
		uploader: manager.NewUploader(client),
		timeout:  5 * time.Minute,
		log:      log.With().Str("job", "backup").Logger(),
	}, nil
}

// Name implements scheduler.Job.
func (j *Job) Name() string {
	return "database_backup"
}

// Run uploads each database file under a timestamped key. A missing file is
// skipped rather than failing the whole backup, so a fresh install with no
// ledger yet still backs up what exists.
func (j *Job) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")

	var uploaded int
	for _, name := range databaseFiles {
		filePath := filepath.Join(j.dataDir, name)

		f, err := os.Open(filePath)
		if os.IsNotExist(err) {
			j.log.Warn().Str("file", name).Msg("Database file missing, skipping")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}

		key := path.Join(j.cfg.Prefix, stamp, name)
		_, err = j.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(j.cfg.Bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}

		uploaded++
		j.log.Debug().Str("file", name).Str("key", key).Msg("Database file uploaded")
	}

	j.log.Info().
		Int("files", uploaded).
		Str("bucket", j.cfg.Bucket).
		Msg("Backup completed")

	return nil
}
