package portico

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	clientdist "github.com/portico-dev/portico/client/dist"
	"github.com/portico-dev/portico/pkg/render"
	"github.com/portico-dev/portico/pkg/server"
)

// Paths the App serves in addition to the bootstrap page and static files.
const (
	// WebSocketPath is the live session endpoint.
	WebSocketPath = "/portico/ws"

	// ClientScriptPath serves the embedded thin client.
	ClientScriptPath = "/portico/client.js"
)

// App bundles the live session server, the bootstrap page, and static file
// serving into one http.Handler.
//
//	app := portico.New(portico.Config{})
//	app.MountFunc(func(s *portico.Session) error {
//	    doc := s.Document()
//	    doc.Root().AppendChild(doc.CreateText("hello"))
//	    return nil
//	})
//	app.Run(":8080")
type App struct {
	server   *server.Server
	renderer *render.Renderer

	staticFS http.FileSystem

	config Config
	logger *slog.Logger

	httpServer *http.Server
}

// New creates an App. Zero-value fields in cfg fall back to defaults.
func New(cfg Config) *App {
	if cfg.Address == "" {
		cfg.Address = DefaultConfig().Address
	}
	if cfg.Page.Path == "" {
		cfg.Page.Path = DefaultPageConfig().Path
	}
	if cfg.Page.Title == "" {
		cfg.Page.Title = DefaultPageConfig().Title
	}
	if cfg.Page.Lang == "" {
		cfg.Page.Lang = DefaultPageConfig().Lang
	}
	if cfg.Session.ResumeWindow == 0 {
		cfg.Session.ResumeWindow = DefaultSessionConfig().ResumeWindow
	}
	if cfg.Static.Prefix == "" {
		cfg.Static.Prefix = DefaultStaticConfig().Prefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := server.New(buildServerConfig(cfg))
	srv.SetLogger(logger)

	app := &App{
		server:   srv,
		renderer: render.NewRenderer(render.Config{IncludeEIDs: true}),
		config:   cfg,
		logger:   logger.With("component", "app"),
	}

	if cfg.Static.Dir != "" {
		app.staticFS = http.Dir(cfg.Static.Dir)
	}

	return app
}

// Mount sets the handler that builds each new session's document.
func (a *App) Mount(h Handler) {
	a.server.SetHandler(h)
}

// MountFunc is Mount for a plain function.
func (a *App) MountFunc(fn func(*Session) error) {
	a.server.SetHandler(server.HandlerFunc(fn))
}

// Use appends middleware to the session event chain. Call before the
// first session connects.
func (a *App) Use(mw ...Middleware) {
	a.server.Use(mw...)
}

// ServeHTTP implements http.Handler: the live endpoint, the client
// script, static files, and the bootstrap page, in that order.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == WebSocketPath:
		a.server.HandleWebSocket(w, r)

	case r.URL.Path == ClientScriptPath:
		a.serveClientScript(w, r)

	case a.staticFS != nil && a.shouldServeStatic(r.URL.Path):
		a.serveStatic(w, r)

	case r.URL.Path == a.config.Page.Path:
		a.servePage(w, r)

	default:
		http.NotFound(w, r)
	}
}

// servePage writes the bootstrap HTML document. The body arrives over the
// websocket once the session mounts.
func (a *App) servePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}

	page := render.PageData{
		Title:       a.config.Page.Title,
		Lang:        a.config.Page.Lang,
		Meta:        a.config.Page.Meta,
		StyleSheets: a.config.Page.StyleSheets,
		Styles:      a.config.Page.Styles,
	}
	if err := a.renderer.RenderPage(w, page); err != nil {
		a.logger.Error("page render failed", "error", err)
	}
}

func (a *App) serveClientScript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	a.applyCacheHeaders(w, ClientScriptPath)
	if r.Method == http.MethodHead {
		return
	}
	w.Write(clientdist.PorticoJS)
}

// Handler returns the App as an http.Handler, for wrapping in outer
// middleware or mounting under a router.
func (a *App) Handler() http.Handler {
	return a
}

// Server returns the underlying session server.
func (a *App) Server() *server.Server {
	return a.server
}

// Config returns the app configuration.
func (a *App) Config() Config {
	return a.config
}

// Logger returns the app logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Run listens on addr (or the configured address when addr is empty) and
// blocks until a shutdown signal or a listen error.
func (a *App) Run(addr string) error {
	if addr == "" {
		addr = a.config.Address
	}

	a.httpServer = &http.Server{
		Addr:    addr,
		Handler: a,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "address", addr)
		errCh <- a.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		a.logger.Info("shutting down...")
		return a.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the app: sessions are closed and snapshotted,
// then the listener stops.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if a.httpServer != nil {
		if herr := a.httpServer.Shutdown(ctx); herr != nil && err == nil {
			err = herr
		}
	}
	return err
}
