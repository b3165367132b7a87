package ingest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tallybridge/internal/model"
)

//go:embed schema.cue
var voucherSchema string

// VoucherDefinition is the CUE definition holding the required fields.
const VoucherDefinition = "#Voucher"

// Schema knows which fields an uploaded JSON document must contain.
//
// Thread-safety: Schema is immutable after construction.
type Schema struct {
	required []string
}

// DefaultSchema compiles the embedded voucher schema.
func DefaultSchema() (*Schema, error) {
	return CompileSchema(voucherSchema, VoucherDefinition)
}

// CompileSchema compiles src and takes the regular (non-optional) fields of
// the named definition as the required set.
func CompileSchema(src, definition string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	def := v.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return nil, fmt.Errorf("compile schema: definition %s not found", definition)
	}

	iter, err := def.Fields()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %s: %w", definition, err)
	}

	var required []string
	for iter.Next() {
		required = append(required, norm.NFC.String(iter.Label()))
	}
	if len(required) == 0 {
		return nil, fmt.Errorf("compile schema: %s declares no required fields", definition)
	}
	sort.Strings(required)

	return &Schema{required: required}, nil
}

// Required returns the required field names in sorted order.
func (s *Schema) Required() []string {
	out := make([]string, len(s.required))
	copy(out, s.required)
	return out
}

// Admission is the outcome of checking one payload.
type Admission struct {
	Status        model.TaskStatus
	MissingFields string // sorted, comma-separated; empty unless rejected
}

// Admit decides the admission status of a payload.
//
//   - json: the payload must be a JSON object; absent required fields reject it
//   - xml: accepted without inspection
//
// A key that is present with a null value counts as present.
// Returns *ValidationError for malformed JSON, a non-object JSON value, or an
// unknown data type.
func (s *Schema) Admit(dataType model.DataType, payload string) (Admission, error) {
	if !dataType.Valid() {
		return Admission{}, &ValidationError{Field: "data_type", Reason: fmt.Sprintf("unsupported %q", dataType)}
	}
	if dataType == model.DataTypeXML {
		return Admission{Status: model.TaskPending}, nil
	}

	// Only the keys matter, so values stay raw. Numbers beyond float64 range
	// are still valid JSON.
	if !json.Valid([]byte(payload)) {
		return Admission{}, &ValidationError{Field: "payload", Reason: "invalid JSON"}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &obj); err != nil || obj == nil {
		return Admission{}, &ValidationError{Field: "payload", Reason: "JSON payload must be an object"}
	}

	present := make(map[string]bool, len(obj))
	for k := range obj {
		present[norm.NFC.String(k)] = true
	}

	var missing []string
	for _, f := range s.required {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return Admission{Status: model.TaskRejected, MissingFields: strings.Join(missing, ",")}, nil
	}
	return Admission{Status: model.TaskPending}, nil
}
