package voice

import (
	"context"

	"github.com/rendis/ivrflow/pkg/schema"
)

// BuiltinLoader serves the minimal built-in foundation set. It never fails;
// it exists so the resolver can come up with no remote service and no local
// cache, at reduced match quality.
type BuiltinLoader struct{}

func (BuiltinLoader) Name() string { return "builtin" }

func (BuiltinLoader) Load(context.Context) ([]schema.VoiceRecord, error) {
	return BuiltinRecords(), nil
}

// BuiltinRecords returns the core foundation recordings present on every
// deployment.
func BuiltinRecords() []schema.VoiceRecord {
	core := []struct {
		transcript string
		promptID   string
	}{
		{"This is an", "callflow:1191"},
		{"callout", "callflow:1274"},
		{"from", "callflow:1589"},
		{"It is", "callflow:1231"},
		{"Press 1 if this is", "callflow:1002"},
		{"if you need more time to get", "callflow:1005"},
		{"to the phone", "callflow:1006"},
		{"is not home", "callflow:1004"},
		{"to repeat this message", "callflow:1643"},
		{"The callout reason is", "callflow:1019"},
		{"The trouble location is", "callflow:1232"},
		{"Please have", "callflow:1017"},
		{"call the", "callflow:1174"},
		{"callout system", "callflow:1290"},
		{"at", "callflow:1015"},
		{"Invalid entry", "callflow:1009"},
		{"Please enter your four digit PIN", "callflow:1008"},
		{"followed by the pound key", "callflow:1008"},
		{"You have accepted", "callflow:1297"},
		{"Please listen carefully", "callflow:1302"},
		{"To confirm receipt", "callflow:1035"},
		{"I'm sorry you are having problems", "callflow:1351"},

		{"Press 1", "callflow:PRS1NEU"},
		{"Press 3", "callflow:PRS3NEU"},
		{"Press 7", "callflow:PRS7NEU"},
		{"Press 9", "callflow:PRS9NEU"},

		{"Accept", "callflow:1001"},
		{"Decline", "callflow:1002"},
		{"Not Home", "callflow:1006"},
		{"Qualified No", "callflow:1145"},
	}

	records := make([]schema.VoiceRecord, 0, len(core))
	for _, c := range core {
		records = append(records, schema.VoiceRecord{
			Organization: schema.FoundationScope,
			Category:     "callflow",
			PromptID:     c.promptID,
			Transcript:   c.transcript,
			Tier:         schema.TierFoundation,
		})
	}
	return records
}
