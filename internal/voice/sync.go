package voice

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/ivrflow/pkg/schema"
)

// SyncStore is the cache-store surface the sync service writes through.
type SyncStore interface {
	ReplaceVoiceRecords(ctx context.Context, records []schema.VoiceRecord) error
	RecordSyncRun(ctx context.Context, run *schema.SyncRun) error
}

// SyncService refreshes the local voice cache from the remote store. It runs
// outside the compile hot path; an already-initialized resolver keeps its
// snapshot until the process restarts.
type SyncService struct {
	remote *RemoteLoader
	store  SyncStore
	logger *slog.Logger
}

func NewSyncService(remote *RemoteLoader, store SyncStore, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{remote: remote, store: store, logger: logger}
}

// Sync pulls a full snapshot and replaces the cache contents. Every attempt,
// successful or not, leaves a sync-run row behind.
func (s *SyncService) Sync(ctx context.Context) (*schema.SyncRun, error) {
	run := &schema.SyncRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    "ok",
	}

	snap, err := s.remote.Fetch(ctx)
	if err != nil {
		return s.fail(ctx, run, err)
	}
	if err := s.store.ReplaceVoiceRecords(ctx, snap.Records); err != nil {
		return s.fail(ctx, run, schema.NewError(schema.ErrCodeStore, "replace voice cache").WithCause(err))
	}

	run.RecordCount = len(snap.Records)
	now := time.Now().UTC()
	run.CompletedAt = &now
	if err := s.store.RecordSyncRun(ctx, run); err != nil {
		s.logger.Warn("record sync run", slog.String("error", err.Error()))
	}

	s.logger.Info("voice cache synced",
		slog.String("run_id", run.ID),
		slog.Int("records", run.RecordCount))
	return run, nil
}

func (s *SyncService) fail(ctx context.Context, run *schema.SyncRun, cause error) (*schema.SyncRun, error) {
	run.Status = "failed"
	run.Error = cause.Error()
	now := time.Now().UTC()
	run.CompletedAt = &now
	if err := s.store.RecordSyncRun(ctx, run); err != nil {
		s.logger.Warn("record sync run", slog.String("error", err.Error()))
	}
	return run, cause
}
