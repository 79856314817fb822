package portico

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/portico-dev/portico/pkg/render"
	"github.com/portico-dev/portico/pkg/server"
	"github.com/portico-dev/portico/pkg/snapshot"
)

// Config is the application configuration. Zero values mean defaults; an
// empty Config is a working development setup.
type Config struct {
	// Address is the listen address used by Run. Default ":8080".
	Address string

	// Page configures the bootstrap HTML page.
	Page PageConfig

	// Session configures session lifetime and persistence.
	Session SessionConfig

	// Static configures static file serving.
	Static StaticConfig

	// Security configures origin checking for the live endpoint.
	Security SecurityConfig

	// Logger is the structured logger for the application. If nil,
	// slog.Default() is used.
	Logger *slog.Logger

	// OnSessionStart runs when a new session finishes its handshake. The
	// context is the HTTP upgrade request's and dies when the handshake
	// returns; copy anything the app needs into the session.
	OnSessionStart func(httpCtx context.Context, s *Session)
}

// PageConfig configures the bootstrap page served before the websocket
// opens.
type PageConfig struct {
	// Path is the route the page is served at. Default "/".
	Path string

	// Title is the page title. Default "Portico".
	Title string

	// Lang is the html lang attribute. Default "en".
	Lang string

	// Meta lists additional head meta tags.
	Meta []MetaTag

	// StyleSheets lists external stylesheet paths.
	StyleSheets []string

	// Styles lists inline CSS blocks.
	Styles []string
}

// MetaTag is one meta element in the page head.
type MetaTag = render.MetaTag

// SessionConfig configures session behavior.
type SessionConfig struct {
	// ResumeWindow is how long a disconnected session remains resumable.
	// Default 5 minutes.
	ResumeWindow time.Duration

	// Store persists session snapshots across server restarts. If nil,
	// disconnected sessions survive only in memory.
	Store snapshot.Store

	// MaxSessions caps concurrent sessions. 0 means no limit.
	MaxSessions int

	// IdleTimeout detaches sessions with no client activity. Default 5
	// minutes.
	IdleTimeout time.Duration

	// HeartbeatInterval is the server ping cadence. Default 30 seconds.
	HeartbeatInterval time.Duration

	// MaxMessageSize caps inbound websocket messages in bytes. Default
	// 64 KiB.
	MaxMessageSize int64

	// MaxEventQueue caps queued client events per session. Default 256.
	MaxEventQueue int

	// MaxPatchHistory is the per-session replay ring size. Default 100
	// frames.
	MaxPatchHistory int
}

// StaticConfig configures static file serving.
type StaticConfig struct {
	// Dir is the directory served. Empty disables static serving.
	Dir string

	// Prefix is the URL prefix files are served under. Default "/".
	Prefix string

	// CacheControl selects the caching header strategy. Default
	// CacheControlNone.
	CacheControl CacheControlStrategy

	// Headers are added to every static response.
	Headers map[string]string
}

// SecurityConfig configures origin checking for websocket upgrades.
type SecurityConfig struct {
	// AllowedOrigins lists origins allowed to open live connections,
	// e.g. "https://app.example.com". When empty and AllowSameOrigin is
	// true, only same-origin requests are allowed.
	AllowedOrigins []string

	// AllowSameOrigin validates the Origin header against the request
	// Host when AllowedOrigins is empty. Default true.
	AllowSameOrigin bool
}

// CacheControlStrategy determines caching behavior for static files.
type CacheControlStrategy int

const (
	// CacheControlNone disables caching; every request revalidates.
	CacheControlNone CacheControlStrategy = iota

	// CacheControlProduction caches fingerprinted files as immutable for
	// a year and everything else for an hour with revalidation.
	CacheControlProduction
)

// DefaultConfig returns a Config with development defaults.
func DefaultConfig() Config {
	return Config{
		Address:  ":8080",
		Page:     DefaultPageConfig(),
		Session:  DefaultSessionConfig(),
		Static:   DefaultStaticConfig(),
		Security: SecurityConfig{AllowSameOrigin: true},
	}
}

// DefaultPageConfig returns the default bootstrap page configuration.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Path:  "/",
		Title: "Portico",
		Lang:  "en",
	}
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ResumeWindow: 5 * time.Minute,
	}
}

// DefaultStaticConfig returns the default static file configuration.
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		Prefix:       "/",
		CacheControl: CacheControlNone,
	}
}

// buildServerConfig translates the user-facing Config into the internal
// server configuration.
func buildServerConfig(cfg Config) *server.Config {
	sc := server.DefaultConfig()

	if cfg.Address != "" {
		sc.Address = cfg.Address
	}
	if cfg.Session.ResumeWindow > 0 {
		sc.ResumeWindow = cfg.Session.ResumeWindow
	}
	if cfg.Session.Store != nil {
		sc.SnapshotStore = cfg.Session.Store
	}
	if cfg.Session.MaxSessions > 0 {
		sc.MaxSessions = cfg.Session.MaxSessions
	}
	if cfg.Session.IdleTimeout > 0 {
		sc.Session.IdleTimeout = cfg.Session.IdleTimeout
	}
	if cfg.Session.HeartbeatInterval > 0 {
		sc.Session.HeartbeatInterval = cfg.Session.HeartbeatInterval
	}
	if cfg.Session.MaxMessageSize > 0 {
		sc.Session.MaxMessageSize = cfg.Session.MaxMessageSize
	}
	if cfg.Session.MaxEventQueue > 0 {
		sc.Session.MaxEventQueue = cfg.Session.MaxEventQueue
	}
	if cfg.Session.MaxPatchHistory > 0 {
		sc.Session.MaxPatchHistory = cfg.Session.MaxPatchHistory
	}

	if len(cfg.Security.AllowedOrigins) > 0 {
		origins := make(map[string]bool, len(cfg.Security.AllowedOrigins))
		for _, o := range cfg.Security.AllowedOrigins {
			origins[o] = true
		}
		sc.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return origins[origin]
		}
	} else if cfg.Security.AllowSameOrigin {
		sc.CheckOrigin = server.SameOriginCheck
	} else {
		sc.CheckOrigin = func(*http.Request) bool { return true }
	}

	if cfg.OnSessionStart != nil {
		sc.OnSessionStart = cfg.OnSessionStart
	}

	return sc
}
