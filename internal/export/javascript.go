package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/ivrflow/pkg/schema"
)

// JavaScript renders the record sequence as the CommonJS module consumed by
// the IVR runtime. Output is deterministic: the same sequence always renders
// byte-identically.
func JavaScript(records []schema.CallFlowRecord, category string) (string, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", schema.NewError(schema.ErrCodeCompile, "encode call flow").WithCause(err)
	}

	var b strings.Builder
	b.WriteString("/**\n * IVR call flow")
	if category != "" {
		fmt.Fprintf(&b, " (%s)", category)
	}
	b.WriteString("\n * Prompts marked \"")
	b.WriteString(schema.PromptPlaceholder)
	b.WriteString("\" require manual review before deployment.\n */\n\n")
	b.WriteString("module.exports = ")
	b.Write(data)
	b.WriteString(";\n")
	return b.String(), nil
}
