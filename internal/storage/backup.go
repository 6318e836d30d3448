package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ErrBackupExists is returned when the backup destination is already taken.
var ErrBackupExists = errors.New("backup already exists")

// BackupInfo describes a completed backup.
type BackupInfo struct {
	CreatedAt    time.Time `json:"createdAt"`
	Path         string    `json:"path"`
	FileSize     int64     `json:"fileSize"`
	Transactions int       `json:"transactions"`
	Patterns     int       `json:"patterns"`
}

// Backup writes a consistent copy of the database to destPath and verifies
// the copy before returning.
func (s *SQLiteStorage) Backup(ctx context.Context, destPath string) (*BackupInfo, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(destPath, "destPath"); err != nil {
		return nil, err
	}

	destPath = filepath.Clean(destPath)
	if _, err := os.Stat(destPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackupExists, destPath)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	info := &BackupInfo{Path: destPath, CreatedAt: s.now()}
	if err := verifyBackup(ctx, info); err != nil {
		if rmErr := os.Remove(destPath); rmErr != nil {
			slog.Error("Failed to remove bad backup", "path", destPath, "error", rmErr)
		}
		return nil, err
	}

	stat, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	info.FileSize = stat.Size()
	return info, nil
}

// verifyBackup runs an integrity check against the copy and records its row
// counts.
func verifyBackup(ctx context.Context, info *BackupInfo) error {
	db, err := sql.Open("sqlite3", info.Path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to check backup integrity: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("backup integrity check failed: %s", result)
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&info.Transactions); err != nil {
		return fmt.Errorf("failed to count backup transactions: %w", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vendor_patterns").Scan(&info.Patterns); err != nil {
		return fmt.Errorf("failed to count backup patterns: %w", err)
	}
	return nil
}
