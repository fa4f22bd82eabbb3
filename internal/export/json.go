package export

import (
	"encoding/json"

	"github.com/rendis/ivrflow/pkg/schema"
)

// SchemaChecker validates an encoded flow before it leaves the process.
type SchemaChecker interface {
	ValidateFlowJSON(data []byte) error
}

// JSON renders the record sequence as indented JSON. A non-nil checker
// verifies the payload against the call-flow schema first.
func JSON(records []schema.CallFlowRecord, checker SchemaChecker) ([]byte, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeCompile, "encode call flow").WithCause(err)
	}
	if checker != nil {
		if err := checker.ValidateFlowJSON(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}
