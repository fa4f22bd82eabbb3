package voice

import (
	"context"
	"log/slog"

	"github.com/rendis/ivrflow/pkg/schema"
)

// Loader supplies a full voice-record snapshot at resolver initialization.
type Loader interface {
	Name() string
	Load(ctx context.Context) ([]schema.VoiceRecord, error)
}

// Init tries each loader in order and builds the resolver from the first
// non-empty snapshot. Tier failures fall through; only when every tier fails
// does initialization fail, since no compilation can proceed without prompt
// data.
func Init(ctx context.Context, logger *slog.Logger, loaders ...Loader) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	for _, l := range loaders {
		records, err := l.Load(ctx)
		if err != nil {
			logger.Warn("voice tier unavailable",
				slog.String("tier", l.Name()),
				slog.String("error", err.Error()))
			continue
		}
		if len(records) == 0 {
			logger.Warn("voice tier returned no records", slog.String("tier", l.Name()))
			continue
		}
		logger.Info("voice records loaded",
			slog.String("tier", l.Name()),
			slog.Int("count", len(records)))
		return NewResolver(records, logger), nil
	}

	return nil, schema.NewError(schema.ErrCodeNoVoiceData, "no voice data available from any tier")
}

// BulkSource is the slice of the local cache store the bulk loader reads.
type BulkSource interface {
	ListVoiceRecords(ctx context.Context) ([]schema.VoiceRecord, error)
}

// BulkLoader serves records from the local cache, the middle tier between
// the remote store and the built-in set.
type BulkLoader struct {
	src BulkSource
}

func NewBulkLoader(src BulkSource) *BulkLoader {
	return &BulkLoader{src: src}
}

func (l *BulkLoader) Name() string { return "bulk" }

func (l *BulkLoader) Load(ctx context.Context) ([]schema.VoiceRecord, error) {
	return l.src.ListVoiceRecords(ctx)
}
