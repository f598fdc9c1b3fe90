package jobstore

import (
	"time"
)

// JobRecord is the jobs table.
type JobRecord struct {
	ID       string `gorm:"primaryKey;size:64"`
	TenantID string `gorm:"index;size:64;not null"`
	OwnerID  string `gorm:"size:64"`
	// Descriptor is the queued request as JSON.
	Descriptor string `gorm:"type:text;not null"`

	State            string   `gorm:"index;size:32;not null"`
	Progress         int      `gorm:"not null;default:0"`
	EstimatedSeconds *float64 `gorm:"column:estimated_seconds"`
	DurationSeconds  float64  `gorm:"not null;default:0"`

	ErrorCode      string `gorm:"size:64"`
	ErrorMessage   string `gorm:"type:text"`
	ErrorDetails   string `gorm:"type:text"`
	ErrorRetryable bool

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

// TableName pins the table name.
func (JobRecord) TableName() string { return "jobs" }

// ArtifactRecord is one version of a transcript or generated artifact.
// (job_id, type, version) is unique and rows are never updated.
type ArtifactRecord struct {
	ID      string `gorm:"primaryKey;size:36"`
	JobID   string `gorm:"uniqueIndex:idx_artifact_version;size:64;not null"`
	Type    string `gorm:"uniqueIndex:idx_artifact_version;size:32;not null"`
	Version int    `gorm:"uniqueIndex:idx_artifact_version;not null"`

	Format   string `gorm:"size:16;not null"`
	Content  string `gorm:"type:text;not null"`
	Provider string `gorm:"size:32"`
	Model    string `gorm:"size:128"`
	// AudioRef is the canonical audio a transcript's timestamps refer to.
	AudioRef string `gorm:"size:512"`

	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	CreatedAt time.Time
}

func (ArtifactRecord) TableName() string { return "artifacts" }

// IdentityRecord is an enrolled speaker of a tenant.
type IdentityRecord struct {
	ID           string `gorm:"primaryKey;size:64"`
	TenantID     string `gorm:"index;size:64;not null"`
	Name         string `gorm:"size:255;not null"`
	VoiceprintID string `gorm:"size:128"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (IdentityRecord) TableName() string { return "identities" }

// Models lists every table for auto-migration.
func Models() []any {
	return []any{&JobRecord{}, &ArtifactRecord{}, &IdentityRecord{}}
}
