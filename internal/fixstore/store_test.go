package fixstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/smukkama/pm25-intent/internal/location"
)

func TestKey(t *testing.T) {
	if got := key("phone-1"); got != "location_fix:phone-1" {
		t.Errorf("key = %s; want location_fix:phone-1", got)
	}
}

func TestEncodeDecode(t *testing.T) {
	bkk := time.FixedZone("ICT", 7*3600)
	fix := location.Fix{
		Coordinate: location.Coordinate{Latitude: 13.75, Longitude: 100.5},
		Accuracy:   12.5,
		ObservedAt: time.Date(2026, 3, 1, 19, 0, 0, 0, bkk),
	}

	data, err := encode(fix)
	if err != nil {
		t.Fatalf("encode err = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}
	if int64(raw["observed_ms"].(float64)) != fix.ObservedAt.UnixMilli() {
		t.Errorf("observed_ms = %v; want %d", raw["observed_ms"], fix.ObservedAt.UnixMilli())
	}

	got, err := decode(data)
	if err != nil {
		t.Fatalf("decode err = %v", err)
	}
	if got.Coordinate != fix.Coordinate || got.Accuracy != fix.Accuracy || !got.ObservedAt.Equal(fix.ObservedAt) {
		t.Errorf("decoded = %+v; want %+v", got, fix)
	}
	if got.ObservedAt.Location() != time.UTC {
		t.Errorf("observed at zone = %v; want UTC", got.ObservedAt.Location())
	}
}

func TestDecode_Corrupt(t *testing.T) {
	if _, err := decode([]byte("{")); err == nil {
		t.Error("decode err = nil; want error")
	}
}
