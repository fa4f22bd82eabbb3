package store

import (
	"context"

	"github.com/rendis/ivrflow/pkg/schema"
)

// Store defines the persistence contract for the local voice cache.
// All implementations must be safe for concurrent use.
type Store interface {
	// Voice records (bulk tier of the resolver)
	ReplaceVoiceRecords(ctx context.Context, records []schema.VoiceRecord) error
	ListVoiceRecords(ctx context.Context) ([]schema.VoiceRecord, error)
	CountVoiceRecords(ctx context.Context) (int, error)

	// Sync runs
	RecordSyncRun(ctx context.Context, run *schema.SyncRun) error
	LatestSyncRun(ctx context.Context) (*schema.SyncRun, error)
	ListSyncRuns(ctx context.Context, limit int) ([]*schema.SyncRun, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
