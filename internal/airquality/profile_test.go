package airquality

import (
	"math"
	"testing"

	"github.com/smukkama/pm25-intent/internal/i18n"
)

func TestThaiProfile_Classify(t *testing.T) {
	p := ThaiProfile()

	tests := []struct {
		value float64
		want  string
	}{
		{0, "very_good"},
		{7.5, "very_good"},
		{15.09, "very_good"},
		{15.1, "good"},
		{24.99, "good"},
		{25, "moderate"},
		{35, "moderate"},
		{37.5, "beginning_to_affect_health"},
		{74.9, "beginning_to_affect_health"},
		{75, "affects_health"},
		{1000, "affects_health"},
	}

	for _, tt := range tests {
		if got := p.Classify(tt.value).Key; got != tt.want {
			t.Errorf("Classify(%v) = %s; want %s", tt.value, got, tt.want)
		}
	}
}

func TestThaiProfile_LowestBucketIsHalfOpen(t *testing.T) {
	p := ThaiProfile()
	for i := 0; i < 151; i++ {
		v := float64(i) / 10
		if got := p.Classify(v); got.Level != 0 {
			t.Fatalf("Classify(%v) level = %d; want 0", v, got.Level)
		}
	}
	if got := p.Classify(15.1); got.Level != 1 {
		t.Errorf("Classify(15.1) level = %d; want 1", got.Level)
	}
}

func TestUSProfile_Classify(t *testing.T) {
	p := USProfile()

	tests := []struct {
		value float64
		want  string
	}{
		{0, "good"},
		{11.9, "good"},
		{12, "moderate"},
		{35.4, "moderate"},
		{35.5, "unhealthy_for_sensitive_groups"},
		{55.5, "unhealthy"},
		{150.4, "unhealthy"},
		{150.5, "very_unhealthy"},
		{250.4, "very_unhealthy"},
		{250.5, "hazardous"},
		{999.9, "hazardous"},
		{math.Inf(1), "hazardous"},
	}

	for _, tt := range tests {
		if got := p.Classify(tt.value).Key; got != tt.want {
			t.Errorf("Classify(%v) = %s; want %s", tt.value, got, tt.want)
		}
	}
}

func TestClassify_OutOfRangeInputs(t *testing.T) {
	for _, p := range []Profile{ThaiProfile(), USProfile()} {
		if got := p.Classify(-5); got.Level != 0 {
			t.Errorf("%s: Classify(-5) level = %d; want 0", p.Name, got.Level)
		}
		if got := p.Classify(math.NaN()); got.Level != 0 {
			t.Errorf("%s: Classify(NaN) level = %d; want 0", p.Name, got.Level)
		}
	}
}

func TestProfiles_BandsAreContiguous(t *testing.T) {
	for _, p := range []Profile{ThaiProfile(), USProfile()} {
		if p.Bands[0].Low != 0 {
			t.Errorf("%s: first band starts at %v; want 0", p.Name, p.Bands[0].Low)
		}
		for i := 1; i < len(p.Bands); i++ {
			if p.Bands[i].Low != p.Bands[i-1].High {
				t.Errorf("%s: band %d starts at %v; previous ends at %v", p.Name, i, p.Bands[i].Low, p.Bands[i-1].High)
			}
			if p.Bands[i].Category.Level != i {
				t.Errorf("%s: band %d has level %d", p.Name, i, p.Bands[i].Category.Level)
			}
		}
		if last := p.Bands[len(p.Bands)-1]; !math.IsInf(last.High, 1) {
			t.Errorf("%s: last band ends at %v; want +Inf", p.Name, last.High)
		}
	}
}

func TestCategory_Label(t *testing.T) {
	c := ThaiProfile().Classify(30)
	if got := c.Label(i18n.English); got != "moderate" {
		t.Errorf("English label = %q; want moderate", got)
	}
	if got := c.Label(i18n.Thai); got != "ปานกลาง" {
		t.Errorf("Thai label = %q; want ปานกลาง", got)
	}

	h := USProfile().Classify(300)
	if got := h.Label(i18n.English); got != "hazardous" {
		t.Errorf("English label = %q; want hazardous", got)
	}
}

func TestParseProfile(t *testing.T) {
	t.Run("known names", func(t *testing.T) {
		for name, want := range map[string]string{
			"thai":   ProfileThai,
			" TH ":   ProfileThai,
			"us":     ProfileUS,
			"US-AQI": ProfileUS,
		} {
			p, err := ParseProfile(name)
			if err != nil {
				t.Fatalf("ParseProfile(%q) err = %v; want nil", name, err)
			}
			if p.Name != want {
				t.Errorf("ParseProfile(%q) = %s; want %s", name, p.Name, want)
			}
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		if _, err := ParseProfile("who"); err == nil {
			t.Error("ParseProfile(who) err = nil; want error")
		}
	})
}

func TestClassify_EmptyProfile(t *testing.T) {
	var p Profile

	if got := p.Classify(35); got.Key != Unknown.Key {
		t.Errorf("Classify(35) = %s; want %s", got.Key, Unknown.Key)
	}
	if got := p.Lowest(); got.Key != Unknown.Key {
		t.Errorf("Lowest() = %s; want %s", got.Key, Unknown.Key)
	}
	if got := p.Classify(35).Label(i18n.English); got != "unknown" {
		t.Errorf("Label = %q; want unknown", got)
	}
}
