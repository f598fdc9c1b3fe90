package jobstore

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/kbukum/meetingflow/database"
	"github.com/kbukum/meetingflow/speaker"
	"github.com/kbukum/meetingflow/validation"
)

// IdentityDirectory lists a tenant's enrolled speakers from the identities
// table.
type IdentityDirectory struct {
	db *database.DB
}

var _ speaker.IdentityDirectory = (*IdentityDirectory)(nil)

// NewIdentityDirectory creates a directory on db.
func NewIdentityDirectory(db *database.DB) *IdentityDirectory {
	return &IdentityDirectory{db: db}
}

// KnownIdentities returns the tenant's identities that have a voiceprint,
// ordered by name.
func (d *IdentityDirectory) KnownIdentities(ctx context.Context, tenantID string) ([]speaker.Identity, error) {
	var recs []IdentityRecord
	err := d.db.WithContext(ctx).
		Where("tenant_id = ? AND voiceprint_id <> ''", tenantID).
		Order("name, id").
		Find(&recs).Error
	if err != nil {
		return nil, database.FromDatabase(err, "identity", tenantID)
	}
	out := make([]speaker.Identity, 0, len(recs))
	for _, r := range recs {
		out = append(out, speaker.Identity{ID: r.ID, Name: r.Name, VoiceprintID: r.VoiceprintID})
	}
	return out, nil
}

// Upsert enrolls or updates an identity.
func (d *IdentityDirectory) Upsert(ctx context.Context, tenantID string, id speaker.Identity) error {
	v := validation.New().
		Required("tenant_id", tenantID).
		Required("id", id.ID).
		Required("name", id.Name)
	if err := v.Err(); err != nil {
		return err
	}
	rec := &IdentityRecord{ID: id.ID, TenantID: tenantID, Name: id.Name, VoiceprintID: id.VoiceprintID}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id", "name", "voiceprint_id", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return database.FromDatabase(err, "identity", id.ID)
	}
	return nil
}
