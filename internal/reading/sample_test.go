package reading

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
		want    float64
	}{
		{"empty", nil, 0},
		{"unparseable string", []Sample{String("abc")}, 0},
		{"numeric string", []Sample{String("12.3")}, 12.3},
		{"padded string", []Sample{String(" 8.5 ")}, 8.5},
		{"number", []Sample{Number(12.3)}, 12.3},
		{"first sample wins", []Sample{Number(4), String("99")}, 4},
		{"NaN string", []Sample{String("NaN")}, 0},
		{"infinite string", []Sample{String("+Inf")}, 0},
		{"empty string", []Sample{String("")}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.samples); got != tt.want {
				t.Errorf("Normalize() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestSample_UnmarshalJSON(t *testing.T) {
	var samples []Sample
	if err := json.Unmarshal([]byte(`[35, "12.5", 0.25, "x"]`), &samples); err != nil {
		t.Fatalf("Unmarshal err = %v; want nil", err)
	}
	if len(samples) != 4 {
		t.Fatalf("len = %d; want 4", len(samples))
	}

	if v, ok := samples[0].Number(); !ok || v != 35 {
		t.Errorf("samples[0] = (%v, %v); want (35, true)", v, ok)
	}
	if s, ok := samples[1].Text(); !ok || s != "12.5" {
		t.Errorf("samples[1] = (%q, %v); want (12.5, true)", s, ok)
	}
	if !samples[3].IsString() {
		t.Error("samples[3] should keep the string branch")
	}
}

func TestSample_UnmarshalJSON_InvalidType(t *testing.T) {
	for _, raw := range []string{`[true]`, `[null]`, `[{"v":1}]`, `[[1]]`} {
		var samples []Sample
		err := json.Unmarshal([]byte(raw), &samples)
		if err == nil {
			t.Errorf("Unmarshal(%s) err = nil; want error", raw)
			continue
		}
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("Unmarshal(%s) err = %v; want *DecodeError", raw, err)
		}
	}
}

func TestSample_RoundTrip(t *testing.T) {
	t.Run("number", func(t *testing.T) {
		data, err := json.Marshal(Number(42.7))
		if err != nil {
			t.Fatalf("Marshal err = %v", err)
		}
		var got Sample
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal err = %v", err)
		}
		if v, ok := got.Number(); !ok || v != 42.7 {
			t.Errorf("got (%v, %v); want (42.7, true)", v, ok)
		}
	})

	t.Run("string keeps its form", func(t *testing.T) {
		data, err := json.Marshal(String("42.70"))
		if err != nil {
			t.Fatalf("Marshal err = %v", err)
		}
		if string(data) != `"42.70"` {
			t.Errorf("Marshal = %s; want \"42.70\"", data)
		}
		var got Sample
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal err = %v", err)
		}
		if s, ok := got.Text(); !ok || s != "42.70" {
			t.Errorf("got (%q, %v); want (42.70, true)", s, ok)
		}
		if got.Float() != 42.7 {
			t.Errorf("Float() = %v; want 42.7", got.Float())
		}
	})
}
