// Package normalize turns raw storage payloads into the canonical dataset the
// engine assumes. Shapes are checked once here; nothing downstream re-checks
// whether a collection is present or a sub-record exists.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperengineering/autoroi/internal/types"
)

// ErrShape indicates a payload field had the wrong JSON shape.
var ErrShape = errors.New("malformed payload shape")

// ShapeError names the field that was expected to be an ordered sequence
// (or object) but was something else.
type ShapeError struct {
	Field string
	Got   string
	Err   error
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("field %q: %s: %v", e.Field, e.Got, e.Err)
	}
	return fmt.Sprintf("field %q must be an array, got %s", e.Field, e.Got)
}

// Unwrap returns ErrShape for errors.Is() compatibility.
func (e *ShapeError) Unwrap() error {
	return ErrShape
}

// Parse decodes a {groups, processes} payload. Both fields must be present
// and be JSON arrays; a missing field, null, number or object is a
// ShapeError, never an empty collection.
func Parse(raw []byte) (*types.Dataset, error) {
	fields, err := decodeObject("data", raw)
	if err != nil {
		return nil, err
	}

	groupsRaw, err := requireArray(fields, "groups")
	if err != nil {
		return nil, err
	}
	processesRaw, err := requireArray(fields, "processes")
	if err != nil {
		return nil, err
	}

	ds := &types.Dataset{}
	if err := json.Unmarshal(groupsRaw, &ds.Groups); err != nil {
		return nil, &ShapeError{Field: "groups", Got: "invalid elements", Err: err}
	}
	if err := json.Unmarshal(processesRaw, &ds.Processes); err != nil {
		return nil, &ShapeError{Field: "processes", Got: "invalid elements", Err: err}
	}
	return ds, nil
}

// ParseParts is Parse for callers that already split the payload, such as
// the compute endpoint.
func ParseParts(groups, processes json.RawMessage) (*types.Dataset, error) {
	fields := map[string]json.RawMessage{}
	if groups != nil {
		fields["groups"] = groups
	}
	if processes != nil {
		fields["processes"] = processes
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// ParseCostClassification decodes a {hardCosts, softCosts} payload with the
// same array rule as Parse.
func ParseCostClassification(raw []byte) (*types.CostClassification, error) {
	fields, err := decodeObject("classification", raw)
	if err != nil {
		return nil, err
	}

	hardRaw, err := requireArray(fields, "hardCosts")
	if err != nil {
		return nil, err
	}
	softRaw, err := requireArray(fields, "softCosts")
	if err != nil {
		return nil, err
	}

	c := &types.CostClassification{}
	if err := json.Unmarshal(hardRaw, &c.HardCosts); err != nil {
		return nil, &ShapeError{Field: "hardCosts", Got: "invalid elements", Err: err}
	}
	if err := json.Unmarshal(softRaw, &c.SoftCosts); err != nil {
		return nil, &ShapeError{Field: "softCosts", Got: "invalid elements", Err: err}
	}
	return c, nil
}

func decodeObject(field string, raw []byte) (map[string]json.RawMessage, error) {
	if kind := jsonKind(raw); kind != "object" {
		return nil, &ShapeError{Field: field, Got: kind}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ShapeError{Field: field, Got: "invalid JSON", Err: err}
	}
	return fields, nil
}

func requireArray(fields map[string]json.RawMessage, name string) (json.RawMessage, error) {
	v, ok := fields[name]
	if !ok {
		return nil, &ShapeError{Field: name, Got: "missing"}
	}
	if kind := jsonKind(v); kind != "array" {
		return nil, &ShapeError{Field: name, Got: kind}
	}
	return v, nil
}

// jsonKind classifies a raw JSON value by its first significant byte.
func jsonKind(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "empty"
	}
	switch trimmed[0] {
	case '[':
		return "array"
	case '{':
		return "object"
	case '"':
		return "string"
	case 'n':
		return "null"
	case 't', 'f':
		return "boolean"
	default:
		return "number"
	}
}
