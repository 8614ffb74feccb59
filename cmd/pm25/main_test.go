package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "LOG_LEVEL", "LOCALE", "AQ_PROFILE", "PM25_API_URL", "PM25_HTTP_TIMEOUT",
		"LOCATION_SOURCE", "LOCATION_LAT", "LOCATION_LNG", "DEVICE_ID",
	} {
		t.Setenv(k, "")
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestRun_StdoutHoldsOnlyTheSentence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"pm25":[35]}}`))
	}))
	defer srv.Close()

	setEnv(t, map[string]string{
		"APP_ENV":      "prod",
		"LOG_LEVEL":    "debug",
		"LOCALE":       "en",
		"PM25_API_URL": srv.URL,
		"LOCATION_LAT": "13.75",
		"LOCATION_LNG": "100.50",
	})

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), &stdout, &stderr); code != 0 {
		t.Fatalf("run() = %d; want 0 (stderr: %s)", code, stderr.String())
	}

	want := "The current PM2.5 level is 35.0 µg/m³. Air quality is moderate.\n"
	if got := stdout.String(); got != want {
		t.Errorf("stdout = %q; want %q", got, want)
	}
	if !strings.Contains(stderr.String(), "air quality reported") {
		t.Errorf("stderr = %q; want the log record", stderr.String())
	}
}

func TestRun_FailureSentenceStillExitsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	setEnv(t, map[string]string{
		"LOCALE":       "en",
		"PM25_API_URL": srv.URL,
		"LOCATION_LAT": "13.75",
		"LOCATION_LNG": "100.50",
	})

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), &stdout, &stderr); code != 0 {
		t.Fatalf("run() = %d; want 0", code)
	}
	if got := stdout.String(); got != "Sorry, a network error occurred: server returned an error.\n" {
		t.Errorf("stdout = %q", got)
	}
}

func TestRun_InvalidConfigExitsNonZero(t *testing.T) {
	setEnv(t, map[string]string{"PM25_API_URL": "https://api.example.com/pm25"})

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), &stdout, &stderr); code != 1 {
		t.Errorf("run() = %d; want 1 without LOCATION_LAT/LNG", code)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q; want empty", stdout.String())
	}
}
