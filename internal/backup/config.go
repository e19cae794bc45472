package backup

import (
	"fmt"

	"github.com/scrypster/osintgraph/internal/config"
)

// NewServiceFromConfig builds a backup service from the OSINTGRAPH_BACKUP_*
// settings.
func NewServiceFromConfig(cfg config.BackupConfig, source StateSource) (*BackupService, error) {
	interval, err := config.ParseDuration(cfg.BackupInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid backup interval %q: %w", cfg.BackupInterval, err)
	}
	return NewBackupService(BackupConfig{
		Source:    source,
		BackupDir: cfg.BackupPath,
		Interval:  interval,
		Retention: RetentionPolicy{
			Hourly:  cfg.BackupRetentionHourly,
			Daily:   cfg.BackupRetentionDaily,
			Weekly:  cfg.BackupRetentionWeekly,
			Monthly: cfg.BackupRetentionMonthly,
		},
		VerifyBackups: cfg.BackupVerify,
	})
}
