package reading

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidSampleType is returned when a sample is neither a JSON number nor a JSON string
var ErrInvalidSampleType = &DecodeError{"value is not a valid type"}

// DecodeError represents a sample decoding error
type DecodeError struct {
	msg string
}

func (e *DecodeError) Error() string {
	return e.msg
}

// Sample is one PM2.5 value as sent on the wire: either a number or a
// string holding a number. The branch is kept until normalization.
type Sample struct {
	num      float64
	str      string
	isString bool
}

// Number creates a numeric sample
func Number(v float64) Sample {
	return Sample{num: v}
}

// String creates a string-typed sample
func String(s string) Sample {
	return Sample{str: s, isString: true}
}

// IsString reports whether the sample was encoded as a JSON string
func (s Sample) IsString() bool { return s.isString }

// Number returns the numeric value, ok is false for string samples
func (s Sample) Number() (float64, bool) {
	if s.isString {
		return 0, false
	}
	return s.num, true
}

// Text returns the raw string, ok is false for numeric samples
func (s Sample) Text() (string, bool) {
	if !s.isString {
		return "", false
	}
	return s.str, true
}

// Float coerces the sample to µg/m³. Unparseable strings and non-finite
// values give 0.
func (s Sample) Float() float64 {
	v := s.num
	if s.isString {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s.str), 64)
		if err != nil {
			return 0
		}
		v = parsed
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// UnmarshalJSON tries a number first, then a string
func (s *Sample) UnmarshalJSON(data []byte) error {
	// null decodes into both branches without error
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return ErrInvalidSampleType
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*s = Number(num)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = String(str)
		return nil
	}

	return ErrInvalidSampleType
}

// MarshalJSON writes the sample back in its original wire type
func (s Sample) MarshalJSON() ([]byte, error) {
	if s.isString {
		return json.Marshal(s.str)
	}
	return json.Marshal(s.num)
}

// Normalize returns the first sample as a float, or 0 when there is none
func Normalize(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	return samples[0].Float()
}
