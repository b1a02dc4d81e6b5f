package control_toolbox

import (
	rdkutils "go.viam.com/rdk/utils"
)

// ParameterStore is the injected parameter storage the managers read their
// configuration from. Keys are flat strings, usually namespaced with slashes
// ("wrench_manager/max_tf_attempts", "left_arm/sensor_calib"). Getters return
// false when the key is absent or holds a value of the wrong kind.
type ParameterStore interface {
	GetString(key string) (string, bool)
	GetInt(key string) (int, bool)
	GetBool(key string) (bool, bool)
	GetFloatSlice(key string) ([]float64, bool)
	GetFloatRows(key string) ([][]float64, bool)
}

// MapParameterStore adapts a resource attribute map into a ParameterStore.
// Values decoded from JSON arrive as float64 and []interface{}, so the
// getters coerce where the conversion is lossless.
type MapParameterStore struct {
	attrs rdkutils.AttributeMap
}

func NewMapParameterStore(attrs rdkutils.AttributeMap) *MapParameterStore {
	if attrs == nil {
		attrs = rdkutils.AttributeMap{}
	}
	return &MapParameterStore{attrs: attrs}
}

func (s *MapParameterStore) GetString(key string) (string, bool) {
	v, ok := s.attrs[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (s *MapParameterStore) GetInt(key string) (int, bool) {
	v, ok := s.attrs[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func (s *MapParameterStore) GetBool(key string) (bool, bool) {
	v, ok := s.attrs[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (s *MapParameterStore) GetFloatSlice(key string) ([]float64, bool) {
	v, ok := s.attrs[key]
	if !ok {
		return nil, false
	}
	return toFloatSlice(v)
}

func (s *MapParameterStore) GetFloatRows(key string) ([][]float64, bool) {
	v, ok := s.attrs[key]
	if !ok {
		return nil, false
	}
	rows, ok := v.([]interface{})
	if !ok {
		if direct, isDirect := v.([][]float64); isDirect {
			return direct, true
		}
		return nil, false
	}
	out := make([][]float64, 0, len(rows))
	for _, raw := range rows {
		row, ok := toFloatSlice(raw)
		if !ok {
			return nil, false
		}
		out = append(out, row)
	}
	return out, true
}

func toFloatSlice(v interface{}) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		out := make([]float64, len(s))
		copy(out, s)
		return out, true
	case []interface{}:
		out := make([]float64, 0, len(s))
		for _, raw := range s {
			switch n := raw.(type) {
			case float64:
				out = append(out, n)
			case int:
				out = append(out, float64(n))
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}
