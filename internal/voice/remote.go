package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rendis/ivrflow/pkg/schema"
)

// maxSnapshotBytes bounds how much of a remote snapshot body is read.
const maxSnapshotBytes = 32 << 20

// Snapshot is the remote store's bulk payload.
type Snapshot struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Records     []schema.VoiceRecord `json:"records"`
}

// SnapshotValidator checks a raw snapshot payload before it is decoded.
type SnapshotValidator interface {
	ValidateVoiceSnapshot(data []byte) error
}

// RemoteLoader pulls a full voice-record snapshot from the record service.
// It is the highest tier; any failure falls through to the local cache.
type RemoteLoader struct {
	endpoint  string
	token     string
	client    *http.Client
	validator SnapshotValidator
}

// NewRemoteLoader builds a loader for the given endpoint. An empty token
// skips authentication; a nil validator skips payload validation.
func NewRemoteLoader(endpoint, token string, timeout time.Duration, validator SnapshotValidator) *RemoteLoader {
	return &RemoteLoader{
		endpoint:  endpoint,
		token:     token,
		client:    &http.Client{Timeout: timeout},
		validator: validator,
	}
}

func (l *RemoteLoader) Name() string { return "remote" }

func (l *RemoteLoader) Load(ctx context.Context) ([]schema.VoiceRecord, error) {
	snap, err := l.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Records, nil
}

// Fetch retrieves and validates the full snapshot.
func (l *RemoteLoader) Fetch(ctx context.Context) (*Snapshot, error) {
	if l.endpoint == "" {
		return nil, schema.NewError(schema.ErrCodeSync, "no remote voice endpoint configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeSync, "build snapshot request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeSync, "fetch voice snapshot").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, schema.NewErrorf(schema.ErrCodeSync, "voice snapshot returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeSync, "read voice snapshot").WithCause(err)
	}

	if l.validator != nil {
		if err := l.validator.ValidateVoiceSnapshot(body); err != nil {
			return nil, schema.NewError(schema.ErrCodeSync, "invalid voice snapshot payload").WithCause(err)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, schema.NewError(schema.ErrCodeSync, fmt.Sprintf("decode voice snapshot: %v", err))
	}
	return &snap, nil
}
