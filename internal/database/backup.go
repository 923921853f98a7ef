package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cliquesaude/internal/config"

	"github.com/rs/zerolog"
)

// BackupService periodically snapshots the appointments database with
// VACUUM INTO, which is safe against concurrent writers, and prunes
// snapshots past the retention window.
type BackupService struct {
	db        *DB
	path      string
	interval  time.Duration
	retention int
	logger    *zerolog.Logger
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	interval := 24 * time.Hour
	if cfg.Interval != "" {
		if d, err := time.ParseDuration(cfg.Interval); err == nil && d > 0 {
			interval = d
		} else {
			logger.Warn().Str("interval", cfg.Interval).Msg("unparseable backup interval, using 24h")
		}
	}

	return &BackupService{
		db:        db,
		path:      cfg.Path,
		interval:  interval,
		retention: cfg.RetentionDays,
		logger:    logger,
	}
}

// Start snapshots immediately, then on every tick until ctx is done.
func (s *BackupService) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Str("path", s.path).Msg("backup service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.Snapshot(); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("backup service stopped")
			return
		case <-ticker.C:
			if err := s.Snapshot(); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.Prune()
		}
	}
}

// Snapshot writes one timestamped copy of the database.
func (s *BackupService) Snapshot() error {
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("appointments_%s.db", time.Now().Format("20060102_150405"))
	target := filepath.Join(s.path, name)

	if _, err := s.db.Exec(fmt.Sprintf("VACUUM INTO '%s'", target)); err != nil {
		return fmt.Errorf("vacuum into %s: %w", target, err)
	}

	s.logger.Info().Str("path", target).Msg("database snapshot written")
	return nil
}

// Prune removes snapshots older than the retention window. Retention of
// zero keeps everything.
func (s *BackupService) Prune() {
	if s.retention <= 0 {
		return
	}

	entries, err := os.ReadDir(s.path)
	if err != nil {
		s.logger.Error().Err(err).Msg("read backup directory")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retention)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", entry.Name()).Msg("pruning old snapshot")
			_ = os.Remove(filepath.Join(s.path, entry.Name()))
		}
	}
}
