package server

import (
	"net/http"
	"testing"
	"time"
)

func TestDefaultSessionConfig(t *testing.T) {
	config := DefaultSessionConfig()

	if config.ReadTimeout <= 0 {
		t.Error("ReadTimeout should be positive")
	}
	if config.WriteTimeout <= 0 {
		t.Error("WriteTimeout should be positive")
	}
	if config.IdleTimeout <= 0 {
		t.Error("IdleTimeout should be positive")
	}
	if config.HandshakeTimeout <= 0 {
		t.Error("HandshakeTimeout should be positive")
	}
	if config.HeartbeatInterval <= 0 {
		t.Error("HeartbeatInterval should be positive")
	}
	if config.MaxMessageSize <= 0 {
		t.Error("MaxMessageSize should be positive")
	}
	if config.MaxPatchHistory <= 0 {
		t.Error("MaxPatchHistory should be positive")
	}
	if config.MaxEventQueue <= 0 {
		t.Error("MaxEventQueue should be positive")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Address == "" {
		t.Error("Address should not be empty")
	}
	if config.ReadBufferSize <= 0 {
		t.Error("ReadBufferSize should be positive")
	}
	if config.WriteBufferSize <= 0 {
		t.Error("WriteBufferSize should be positive")
	}
	if config.CheckOrigin == nil {
		t.Error("CheckOrigin should not be nil")
	}
	if config.Session == nil {
		t.Error("Session should not be nil")
	}
	if config.ShutdownTimeout <= 0 {
		t.Error("ShutdownTimeout should be positive")
	}
	if config.CleanupInterval <= 0 {
		t.Error("CleanupInterval should be positive")
	}
	if config.ResumeWindow <= 0 {
		t.Error("ResumeWindow should be positive")
	}
}

func TestConfigClone(t *testing.T) {
	config := DefaultConfig()
	clone := config.Clone()

	if clone == config {
		t.Fatal("Clone should return a new instance")
	}
	if clone.Session == config.Session {
		t.Error("Clone should deep-copy the session config")
	}

	clone.Address = ":9999"
	clone.Session.ReadTimeout = time.Second

	if config.Address == ":9999" {
		t.Error("mutating the clone should not affect the original")
	}
	if config.Session.ReadTimeout == time.Second {
		t.Error("mutating the cloned session config should not affect the original")
	}
}

func TestConfigChaining(t *testing.T) {
	config := DefaultConfig().
		WithAddress(":3000").
		WithMaxSessions(50)

	if config.Address != ":3000" {
		t.Errorf("Address = %q, want %q", config.Address, ":3000")
	}
	if config.MaxSessions != 50 {
		t.Errorf("MaxSessions = %d, want 50", config.MaxSessions)
	}
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin header", "", "example.com", true},
		{"matching origin", "https://example.com", "example.com", true},
		{"matching origin with port", "http://localhost:8080", "localhost:8080", true},
		{"mismatched host", "https://evil.com", "example.com", false},
		{"mismatched port", "http://localhost:9999", "localhost:8080", false},
		{"malformed origin", "://bad", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{
				Host:   tt.host,
				Header: http.Header{},
			}
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}

			if got := SameOriginCheck(r); got != tt.want {
				t.Errorf("SameOriginCheck(origin=%q, host=%q) = %v, want %v",
					tt.origin, tt.host, got, tt.want)
			}
		})
	}
}
