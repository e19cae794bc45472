package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// isBackupFile reports whether name is a scheduled backup. Pre-restore
// copies and in-flight temp files are not.
func isBackupFile(name string) bool {
	return strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupExt)
}

// listBackups lists all backup files in the backup directory with their metadata.
func listBackups(backupDir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !isBackupFile(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue // vanished between ReadDir and Info
		}

		backups = append(backups, BackupInfo{
			Path:      filepath.Join(backupDir, entry.Name()),
			Timestamp: info.ModTime(),
			Size:      info.Size(),
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// applyRetention removes old backups according to the retention policy.
// Backups are bucketed by age relative to now and each tier keeps only its
// newest entries.
func applyRetention(backupDir string, policy RetentionPolicy, now time.Time) error {
	backups, err := listBackups(backupDir)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return nil
	}

	var toDelete []string
	var hourly, daily, weekly, monthly []BackupInfo

	for _, backup := range backups {
		age := now.Sub(backup.Timestamp)
		switch {
		case age < 24*time.Hour:
			hourly = append(hourly, backup)
		case age < 7*24*time.Hour:
			daily = append(daily, backup)
		case age < 30*24*time.Hour:
			weekly = append(weekly, backup)
		case age < 365*24*time.Hour:
			monthly = append(monthly, backup)
		default:
			// Backups older than a year are always deleted.
			toDelete = append(toDelete, backup.Path)
		}
	}

	toDelete = append(toDelete, overflow(hourly, policy.Hourly)...)
	toDelete = append(toDelete, overflow(daily, policy.Daily)...)
	toDelete = append(toDelete, overflow(weekly, policy.Weekly)...)
	toDelete = append(toDelete, overflow(monthly, policy.Monthly)...)

	var lastErr error
	for _, path := range toDelete {
		if err := os.Remove(path); err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete some backups: %w", lastErr)
	}
	return nil
}

// overflow returns the paths beyond the first keep entries of a tier.
func overflow(tier []BackupInfo, keep int) []string {
	if keep < 0 {
		keep = 0
	}
	if len(tier) <= keep {
		return nil
	}
	paths := make([]string, 0, len(tier)-keep)
	for _, backup := range tier[keep:] {
		paths = append(paths, backup.Path)
	}
	return paths
}

// calculateDiskUsage calculates total bytes used by all backups.
func calculateDiskUsage(backupDir string) (int64, error) {
	backups, err := listBackups(backupDir)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, backup := range backups {
		total += backup.Size
	}
	return total, nil
}
