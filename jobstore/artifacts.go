package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbukum/meetingflow/database"
	"github.com/kbukum/meetingflow/errors"
	"github.com/kbukum/meetingflow/llm"
	"github.com/kbukum/meetingflow/pipeline"
	"github.com/kbukum/meetingflow/transcription"
)

// GormArtifactRepository stores transcripts and artifacts, one row per
// version.
type GormArtifactRepository struct {
	db  *database.DB
	now func() time.Time
}

var _ pipeline.ArtifactRepository = (*GormArtifactRepository)(nil)

// NewArtifactRepository creates a repository on db.
func NewArtifactRepository(db *database.DB) *GormArtifactRepository {
	return &GormArtifactRepository{db: db, now: time.Now}
}

// SaveTranscript stores t as the next transcript version of jobID.
func (r *GormArtifactRepository) SaveTranscript(ctx context.Context, jobID string, t transcription.Transcript, audioRef string) (int, error) {
	content, err := json.Marshal(t)
	if err != nil {
		return 0, errors.Internal(fmt.Errorf("encode transcript: %w", err))
	}
	return r.insert(ctx, &ArtifactRecord{
		ID:       uuid.NewString(),
		JobID:    jobID,
		Type:     string(pipeline.ArtifactTypeTranscript),
		Format:   "json",
		Content:  string(content),
		Provider: t.Provider,
		AudioRef: audioRef,
	})
}

// SaveArtifact stores a as the next version of its type.
func (r *GormArtifactRepository) SaveArtifact(ctx context.Context, a *llm.Artifact) (int, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	return r.insert(ctx, &ArtifactRecord{
		ID:               id,
		JobID:            a.JobID,
		Type:             string(a.Type),
		Format:           a.Format,
		Content:          a.Content,
		Provider:         a.Provider,
		Model:            a.Model,
		PromptTokens:     a.Usage.PromptTokens,
		CompletionTokens: a.Usage.CompletionTokens,
		TotalTokens:      a.Usage.TotalTokens,
		CreatedAt:        a.CreatedAt,
	})
}

// insert assigns the next version inside a transaction. The unique index on
// (job_id, type, version) rejects a concurrent writer that read the same max.
func (r *GormArtifactRepository) insert(ctx context.Context, rec *ArtifactRecord) (int, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		var current int
		if err := tx.Model(&ArtifactRecord{}).
			Where("job_id = ? AND type = ?", rec.JobID, rec.Type).
			Select("COALESCE(MAX(version), 0)").
			Scan(&current).Error; err != nil {
			return err
		}
		rec.Version = current + 1
		return tx.Create(rec).Error
	})
	if err != nil {
		return 0, database.FromDatabase(err, "artifact", rec.JobID)
	}
	return rec.Version, nil
}

// Latest returns the highest version of typ for jobID.
func (r *GormArtifactRepository) Latest(ctx context.Context, jobID string, typ llm.ArtifactType) (*pipeline.ArtifactVersion, error) {
	var rec ArtifactRecord
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND type = ?", jobID, string(typ)).
		Order("version DESC").
		First(&rec).Error
	if err != nil {
		return nil, database.FromDatabase(err, "artifact", jobID)
	}
	return &pipeline.ArtifactVersion{
		Artifact: llm.Artifact{
			ID:       rec.ID,
			JobID:    rec.JobID,
			Type:     llm.ArtifactType(rec.Type),
			Format:   rec.Format,
			Content:  rec.Content,
			Provider: rec.Provider,
			Model:    rec.Model,
			Usage: llm.Usage{
				PromptTokens:     rec.PromptTokens,
				CompletionTokens: rec.CompletionTokens,
				TotalTokens:      rec.TotalTokens,
			},
			CreatedAt: rec.CreatedAt,
		},
		Version: rec.Version,
	}, nil
}

// LatestTranscript decodes the newest stored transcript of jobID.
func (r *GormArtifactRepository) LatestTranscript(ctx context.Context, jobID string) (*transcription.Transcript, int, error) {
	v, err := r.Latest(ctx, jobID, pipeline.ArtifactTypeTranscript)
	if err != nil {
		return nil, 0, err
	}
	var t transcription.Transcript
	if err := json.Unmarshal([]byte(v.Content), &t); err != nil {
		return nil, 0, errors.Internal(fmt.Errorf("decode transcript of job %s: %w", jobID, err))
	}
	return &t, v.Version, nil
}
