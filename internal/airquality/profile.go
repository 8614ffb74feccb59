package airquality

import (
	"fmt"
	"math"
	"strings"

	"github.com/smukkama/pm25-intent/internal/i18n"
)

// Category is one bucket of a breakpoint table
type Category struct {
	Key   string
	Level int // 0 is the cleanest bucket of its profile
	label i18n.Text
}

// Label returns the category name in the given locale
func (c Category) Label(l i18n.Locale) string {
	return c.label.In(l)
}

// Band maps the half-open range [Low, High) to a category
type Band struct {
	Low      float64
	High     float64
	Category Category
}

// Profile is a named breakpoint table. Bands are ascending and contiguous,
// the last one is open ended.
type Profile struct {
	Name  string
	Bands []Band
}

// Classify maps a PM2.5 concentration (µg/m³) to a category. Values below the
// first band land in the lowest category, values at or above the last
// boundary land in the top one. A profile without bands yields Unknown.
func (p Profile) Classify(pm25 float64) Category {
	if len(p.Bands) == 0 {
		return Unknown
	}
	if math.IsNaN(pm25) {
		return p.Lowest()
	}
	for _, b := range p.Bands {
		if pm25 < b.High {
			return b.Category
		}
	}
	return p.Bands[len(p.Bands)-1].Category
}

// Lowest returns the cleanest category of the profile
func (p Profile) Lowest() Category {
	if len(p.Bands) == 0 {
		return Unknown
	}
	return p.Bands[0].Category
}

// Unknown is returned by an empty profile
var Unknown = Category{Key: "unknown", label: i18n.Text{TH: "ไม่ทราบ", EN: "unknown"}}

const (
	ProfileThai = "thai"
	ProfileUS   = "us"
)

// ParseProfile returns the named profile
func ParseProfile(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProfileThai, "th", "pcd":
		return ThaiProfile(), nil
	case ProfileUS, "us-aqi", "epa":
		return USProfile(), nil
	default:
		return Profile{}, fmt.Errorf("invalid air quality profile %q (allowed: %s, %s)", name, ProfileThai, ProfileUS)
	}
}

func band(low, high float64, level int, key string, label i18n.Text) Band {
	return Band{Low: low, High: high, Category: Category{Key: key, Level: level, label: label}}
}

// ThaiProfile is the 5-bucket table used by the Thai Pollution Control Department
func ThaiProfile() Profile {
	return Profile{
		Name: ProfileThai,
		Bands: []Band{
			band(0, 15.1, 0, "very_good", i18n.Text{TH: "ดีมาก", EN: "very good"}),
			band(15.1, 25, 1, "good", i18n.Text{TH: "ดี", EN: "good"}),
			band(25, 37.5, 2, "moderate", i18n.Text{TH: "ปานกลาง", EN: "moderate"}),
			band(37.5, 75, 3, "beginning_to_affect_health", i18n.Text{TH: "เริ่มมีผลกระทบต่อสุขภาพ", EN: "beginning to affect health"}),
			band(75, math.Inf(1), 4, "affects_health", i18n.Text{TH: "มีผลกระทบต่อสุขภาพ", EN: "affects health"}),
		},
	}
}

// USProfile is the 6-bucket table of the US AQI PM2.5 breakpoints
func USProfile() Profile {
	return Profile{
		Name: ProfileUS,
		Bands: []Band{
			band(0, 12, 0, "good", i18n.Text{TH: "ดี", EN: "good"}),
			band(12, 35.5, 1, "moderate", i18n.Text{TH: "ปานกลาง", EN: "moderate"}),
			band(35.5, 55.5, 2, "unhealthy_for_sensitive_groups", i18n.Text{TH: "ไม่ดีต่อกลุ่มเสี่ยง", EN: "unhealthy for sensitive groups"}),
			band(55.5, 150.5, 3, "unhealthy", i18n.Text{TH: "ไม่ดีต่อสุขภาพ", EN: "unhealthy"}),
			band(150.5, 250.5, 4, "very_unhealthy", i18n.Text{TH: "ไม่ดีต่อสุขภาพอย่างมาก", EN: "very unhealthy"}),
			band(250.5, math.Inf(1), 5, "hazardous", i18n.Text{TH: "อันตราย", EN: "hazardous"}),
		},
	}
}
