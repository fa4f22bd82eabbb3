package schema

import "time"

// FoundationScope is the wildcard organization owning the shared prompt
// library. Records scoped to a specific organization outrank it during
// resolution.
const FoundationScope = "*"

// Voice record tiers. A higher tier outranks a lower one when transcripts
// compete for the same query.
const (
	TierFoundation   = 100
	TierOrganization = 200
)

// VoiceRecord is one entry in the prompt database: a recorded prompt
// identifier and the transcript of what it says.
type VoiceRecord struct {
	Organization string `json:"organization"`
	Category     string `json:"category"`
	PromptID     string `json:"prompt_id"`
	Transcript   string `json:"transcript"`
	Tier         int    `json:"tier"`
}

// SyncRun records one snapshot refresh of the local voice cache.
type SyncRun struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RecordCount int        `json:"record_count"`
	Status      string     `json:"status"` // "ok" or "failed"
	Error       string     `json:"error,omitempty"`
}
