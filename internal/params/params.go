// Package params implements the typed, validated parameter store exposed
// through the configuration portal.
package params

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/netplume/wifimgr-go/internal/models"
)

// Type is the value type of a parameter.
type Type int

const (
	TypeString Type = iota
	TypeInt
	TypeBool
	TypeFloat
)

var typeNames = [...]string{
	TypeString: "string",
	TypeInt:    "int",
	TypeBool:   "bool",
	TypeFloat:  "float",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("type(%d)", int(t))
	}
	return typeNames[t]
}

const (
	maxKeyLen   = 32
	maxLabelLen = 64
	maxValueLen = 128
)

// Parameter is one typed configuration entry. The key is immutable after
// Add; the value is always held as its string representation.
type Parameter struct {
	Key         string
	Label       string
	Type        Type
	Value       string
	Default     string
	Required    bool
	MaxLen      int
	Placeholder string
}

// Store is a capacity-bounded ordered collection of parameters with unique
// keys. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	params []Parameter
	index  map[string]int
}

// NewStore creates an empty parameter store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Add registers a new parameter. Fails with CONFLICT when the store is full
// or the key already exists, BAD_REQUEST on malformed input. The default
// value must itself validate against the declared type.
func (s *Store) Add(p Parameter) *models.AppError {
	if p.Key == "" || len(p.Key) > maxKeyLen {
		return models.ErrBadRequest("parameter key must be 1-32 chars")
	}
	if len(p.Label) > maxLabelLen {
		return models.ErrBadRequest("parameter label too long")
	}
	if p.MaxLen <= 0 || p.MaxLen > maxValueLen {
		p.MaxLen = maxValueLen
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[p.Key]; exists {
		return models.ErrConflict("parameter key already exists: " + p.Key)
	}
	if len(s.params) >= models.MaxParams {
		return models.ErrConflict("parameter store full")
	}
	if p.Default != "" {
		if err := validate(p, p.Default); err != nil {
			return err
		}
	}
	p.Value = p.Default
	s.index[p.Key] = len(s.params)
	s.params = append(s.params, p)
	return nil
}

// Set validates and stores a new value for key. On any failure the stored
// value is left unchanged.
func (s *Store) Set(key, value string) *models.AppError {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		return models.ErrNotFound("unknown parameter: " + key)
	}
	if err := validate(s.params[i], value); err != nil {
		return err
	}
	s.params[i].Value = value
	return nil
}

// Get returns the current value for key.
func (s *Store) Get(key string) (string, *models.AppError) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[key]
	if !ok {
		return "", models.ErrNotFound("unknown parameter: " + key)
	}
	return s.params[i].Value, nil
}

// List returns a copy of all parameters in registration order.
func (s *Store) List() []Parameter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Parameter, len(s.params))
	copy(out, s.params)
	return out
}

// Len returns the number of registered parameters.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.params)
}

// ResetAll restores every parameter's value to its recorded default.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.params {
		s.params[i].Value = s.params[i].Default
	}
}

// validate enforces type-specific rules plus the required/non-empty rule.
// An empty value is acceptable for optional parameters of any type.
func validate(p Parameter, value string) *models.AppError {
	if value == "" {
		if p.Required {
			return &models.AppError{
				Code: "BAD_REQUEST", Status: 400, Field: p.Key,
				Message: "value required for " + p.Key,
			}
		}
		return nil
	}
	if len(value) > p.MaxLen {
		return &models.AppError{
			Code: "BAD_REQUEST", Status: 400, Field: p.Key,
			Message: fmt.Sprintf("value exceeds %d chars", p.MaxLen),
		}
	}

	switch p.Type {
	case TypeInt:
		if !validInt(value) {
			return &models.AppError{
				Code: "BAD_REQUEST", Status: 400, Field: p.Key,
				Message: "not a valid integer: " + value,
			}
		}
	case TypeFloat:
		if !validFloat(value) {
			return &models.AppError{
				Code: "BAD_REQUEST", Status: 400, Field: p.Key,
				Message: "not a valid number: " + value,
			}
		}
	case TypeBool:
		switch value {
		case "true", "false", "1", "0":
		default:
			return &models.AppError{
				Code: "BAD_REQUEST", Status: 400, Field: p.Key,
				Message: "not a valid boolean: " + value,
			}
		}
	}
	return nil
}

// validInt accepts an optional sign followed by one or more digits,
// consuming the whole string.
func validInt(s string) bool {
	if s == "+" || s == "-" {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// validFloat accepts an optional sign, digits, and at most one decimal
// point with digits on at least one side. No exponent forms.
func validFloat(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if s == "" || s == "." {
		return false
	}
	dots := 0
	digits := 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '.':
			dots++
			if dots > 1 {
				return false
			}
		case s[i] >= '0' && s[i] <= '9':
			digits++
		default:
			return false
		}
	}
	return digits > 0
}

// Serialize encodes the full parameter set as a JSON object keyed by
// parameter key with type-appropriate value encoding (numbers as numbers,
// bools as bools, strings as strings).
func (s *Store) Serialize() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob := make(map[string]json.RawMessage, len(s.params))
	for _, p := range s.params {
		raw, err := encodeValue(p)
		if err != nil {
			return nil, fmt.Errorf("params: encode %s: %w", p.Key, err)
		}
		blob[p.Key] = raw
	}
	return json.Marshal(blob)
}

func encodeValue(p Parameter) (json.RawMessage, error) {
	if p.Value == "" {
		return json.Marshal("")
	}
	switch p.Type {
	case TypeInt:
		n, err := strconv.ParseInt(p.Value, 10, 64)
		if err != nil {
			return nil, err
		}
		return json.Marshal(n)
	case TypeFloat:
		f, err := strconv.ParseFloat(p.Value, 64)
		if err != nil {
			return nil, err
		}
		// Minimal decimal form so a load reproduces the value exactly.
		return json.RawMessage(strconv.FormatFloat(f, 'f', -1, 64)), nil
	case TypeBool:
		v := p.Value == "true" || p.Value == "1"
		return json.Marshal(v)
	default:
		return json.Marshal(p.Value)
	}
}

// Deserialize loads values from a blob produced by Serialize. A missing key
// leaves that parameter unchanged; a type mismatch skips that field rather
// than corrupting the store.
func (s *Store) Deserialize(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var blob map[string]json.RawMessage
	if err := json.Unmarshal(data, &blob); err != nil {
		return fmt.Errorf("params: decode blob: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, raw := range blob {
		i, ok := s.index[key]
		if !ok {
			continue // stale key from an older parameter set
		}
		value, ok := decodeValue(s.params[i].Type, raw)
		if !ok {
			continue // type mismatch, skip field
		}
		s.params[i].Value = value
	}
	return nil
}

func decodeValue(t Type, raw json.RawMessage) (string, bool) {
	// The empty string marks an unset optional value for every type.
	var str string
	if err := json.Unmarshal(raw, &str); err == nil && str == "" {
		return "", true
	}

	switch t {
	case TypeInt:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	case TypeFloat:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	case TypeBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	default:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return "", false
		}
		return v, true
	}
}
