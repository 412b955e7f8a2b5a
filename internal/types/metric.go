package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MetricSource records whether a metric value was derived or entered by hand.
type MetricSource string

const (
	SourceAuto   MetricSource = "auto"
	SourceManual MetricSource = "manual"
)

// Metric is a value that is either derived by the engine (Auto) or pinned by
// a user (Manual). The zero value is an Auto zero.
type Metric[T any] struct {
	value  T
	source MetricSource
}

// Auto wraps a derived value.
func Auto[T any](v T) Metric[T] {
	return Metric[T]{value: v, source: SourceAuto}
}

// Manual wraps a user-entered value that normalization must not overwrite.
func Manual[T any](v T) Metric[T] {
	return Metric[T]{value: v, source: SourceManual}
}

// Value returns the wrapped value.
func (m Metric[T]) Value() T {
	return m.value
}

// IsManual reports whether the value was pinned by a user.
func (m Metric[T]) IsManual() bool {
	return m.source == SourceManual
}

// Source returns the metric source, defaulting to auto.
func (m Metric[T]) Source() MetricSource {
	if m.source == "" {
		return SourceAuto
	}
	return m.source
}

type metricJSON[T any] struct {
	Value  T            `json:"value"`
	Source MetricSource `json:"source"`
}

// MarshalJSON encodes the metric as {"value": v, "source": "auto"|"manual"}.
func (m Metric[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricJSON[T]{Value: m.value, Source: m.Source()})
}

// UnmarshalJSON accepts the object form or a bare value, which decodes as Auto.
func (m *Metric[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*m = Metric[T]{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var raw metricJSON[T]
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		switch raw.Source {
		case "", SourceAuto:
			*m = Auto(raw.Value)
		case SourceManual:
			*m = Manual(raw.Value)
		default:
			return fmt.Errorf("unknown metric source %q", raw.Source)
		}
		return nil
	}
	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*m = Auto(v)
	return nil
}
