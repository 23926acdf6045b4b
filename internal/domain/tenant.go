package domain

import (
	"errors"
	"strings"
	"time"
)

// TenantConfig holds the ticket system settings of one guild.
type TenantConfig struct {
	TenantID            string
	IntakeChannelID     string
	TranscriptChannelID string
	AdminRoleID         string
	ActiveCategoryID    string
	ArchiveCategoryID   string
	OwnerID             string
	Enabled             bool
	UpdatedAt           time.Time
}

// HasArchive reports whether closed tickets are archived instead of deleted.
func (c TenantConfig) HasArchive() bool {
	return c.ArchiveCategoryID != ""
}

// Validate checks the fixed shape of a config before it is persisted.
func (c TenantConfig) Validate() error {
	if strings.TrimSpace(c.TenantID) == "" {
		return errors.New("tenant id required")
	}
	if c.Enabled && c.IntakeChannelID == "" {
		return errors.New("intake channel required when enabled")
	}
	return nil
}
