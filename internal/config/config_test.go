package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LISTENER_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitor.QueryIDTolerance != 2000 {
		t.Errorf("expected tolerance 2000, got %d", cfg.Monitor.QueryIDTolerance)
	}
	if cfg.Monitor.Window != 120*time.Second {
		t.Errorf("expected window 120s, got %s", cfg.Monitor.Window)
	}
	if cfg.Listener.CallTimeout != 30*time.Second {
		t.Errorf("expected listener call timeout 30s, got %s", cfg.Listener.CallTimeout)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "negative tolerance", key: "MONITOR_QUERY_ID_TOLERANCE", value: "-1", wantErr: "MONITOR_QUERY_ID_TOLERANCE"},
		{name: "non-numeric tolerance", key: "MONITOR_QUERY_ID_TOLERANCE", value: "lots", wantErr: "MONITOR_QUERY_ID_TOLERANCE"},
		{name: "negative start lt", key: "LISTENER_START_LT", value: "-10", wantErr: "LISTENER_START_LT"},
		{name: "zero window", key: "MONITOR_WINDOW_MS", value: "0", wantErr: "window"},
		{name: "negative window", key: "MONITOR_WINDOW_MS", value: "-1000", wantErr: "window"},
		{name: "zero call timeout", key: "MONITOR_CALL_TIMEOUT", value: "0s", wantErr: "call timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LISTENER_ENABLED", "false")
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfigLargeTolerance(t *testing.T) {
	t.Setenv("LISTENER_ENABLED", "false")
	t.Setenv("MONITOR_QUERY_ID_TOLERANCE", "18446744073709551615")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitor.QueryIDTolerance != 18446744073709551615 {
		t.Errorf("expected max uint64 tolerance, got %d", cfg.Monitor.QueryIDTolerance)
	}
}
