package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/auth"
	"github.com/bcnelson/position-admin/internal/backfill"
	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/service"
	"github.com/bcnelson/position-admin/internal/storage"
)

//go:embed templates/* static/*
var content embed.FS

// OIDCComponents holds the optional OIDC sign-in dependencies.
type OIDCComponents struct {
	Provider   *auth.OIDCProvider
	StateStore *auth.StateStore
}

// Options holds the dependencies of the admin web UI.
type Options struct {
	Store    storage.Storage
	Sync     *service.SyncService
	Backfill *backfill.Service
	Sessions *auth.SessionManager
	Flashes  *FlashStore
	OIDC     *OIDCComponents
	Logger   *zap.Logger

	// SyncURL is the master server's sync-out endpoint; RootURL is this
	// server's own address. Imports are refused when the first contains the second.
	SyncURL string
	RootURL string
}

// Server holds dependencies for web handlers.
type Server struct {
	store     storage.Storage
	sync      *service.SyncService
	backfill  *backfill.Service
	sessions  *auth.SessionManager
	flashes   *FlashStore
	oidc      *OIDCComponents
	logger    *zap.Logger
	syncURL   string
	rootURL   string
	templates map[string]*template.Template
	funcMap   template.FuncMap
}

// NewRouter creates a new web router with all routes configured.
func NewRouter(opts Options) (http.Handler, error) {
	if opts.Store == nil || opts.Backfill == nil || opts.Sessions == nil || opts.Flashes == nil {
		return nil, fmt.Errorf("web: store, backfill, sessions and flashes are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		store:    opts.Store,
		sync:     opts.Sync,
		backfill: opts.Backfill,
		sessions: opts.Sessions,
		flashes:  opts.Flashes,
		oidc:     opts.OIDC,
		logger:   opts.Logger.Named("web"),
		syncURL:  opts.SyncURL,
		rootURL:  opts.RootURL,
	}

	templates, err := s.parseTemplates()
	if err != nil {
		return nil, err
	}
	s.templates = templates

	r := chi.NewRouter()
	r.Use(s.loadVoter)

	// Static files
	staticFS, _ := fs.Sub(content, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Sign-in
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Get("/logout", s.handleLogout)
	if s.oidcEnabled() {
		r.Get("/auth/oidc/login", s.handleOIDCLogin)
		r.Get("/auth/oidc/callback", s.handleOIDCCallback)
	}

	// Read-only pages
	r.Group(func(r chi.Router) {
		r.Use(require(auth.Viewer...))

		r.Get("/", s.handleDashboard)
		r.Get("/sync", s.handleSyncDashboard)
		r.Get("/positions", s.handlePositionList)
	})

	// Editing and maintenance
	r.Group(func(r chi.Router) {
		r.Use(require(domain.RoleVerifiedVolunteer))

		r.Get("/positions/new", s.handlePositionNew)
		r.Post("/positions/edit", s.handlePositionEditProcess)
		r.Post("/positions/delete", s.handlePositionDelete)
		r.Get("/positions/refresh", s.handleRefreshSortingDates)
		r.Get("/positions/refresh/candidates", s.handleRefreshCandidateDetails)
		r.Get("/positions/refresh/offices", s.handleRefreshOfficeDetails)
		r.Get("/positions/refresh/measures", s.handleRefreshMeasureDetails)
		r.Get("/positions/relink", s.handleRelink)
		r.Get("/positions/{we_vote_id}/edit", s.handlePositionEdit)
	})

	r.With(require(auth.Viewer...)).Get("/positions/{we_vote_id}", s.handlePositionSummary)

	// Master server import
	r.With(require(domain.RoleAdmin)).Get("/positions/import", s.handlePositionsImport)

	return r, nil
}

// parseTemplates parses all templates with custom functions.
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	s.funcMap = template.FuncMap{
		"join":      strings.Join,
		"lower":     strings.ToLower,
		"dict":      dict,
		"comma":     comma,
		"ago":       humanize.Time,
		"stateName": stateName,
	}

	templates := make(map[string]*template.Template)

	// Read base template and components
	var base strings.Builder
	for _, name := range []string{"templates/base.html", "templates/components/nav.html", "templates/components/flash.html"} {
		b, err := content.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		base.Write(b)
	}

	// Parse each page template separately with the base
	pageFiles, err := fs.Glob(content, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	for _, pagePath := range pageFiles {
		pageName := strings.TrimSuffix(filepath.Base(pagePath), ".html")

		pageContent, err := content.ReadFile(pagePath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", pagePath, err)
		}

		tmpl, err := template.New(pageName).Funcs(s.funcMap).Parse(base.String() + string(pageContent))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", pageName, err)
		}
		templates[pageName] = tmpl
	}

	return templates, nil
}

// render executes a page into a buffer so a template error never leaves a
// half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, base, page string, status int, data PageData) {
	tmpl, ok := s.templates[page]
	if !ok {
		http.Error(w, "Template not found: "+page, http.StatusInternalServerError)
		return
	}

	data.Voter = auth.VoterFromContext(r.Context())
	data.Flashes = append(s.flashes.Take(w, r), data.Flashes...)
	data.OIDCEnabled = s.oidcEnabled()

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, base, data); err != nil {
		s.logger.Error("template error", zap.String("page", page), zap.Error(err))
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// renderError renders the error page.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, message string, status int) {
	s.render(w, r, "base", "error", status, PageData{
		Title:   http.StatusText(status),
		Flashes: []FlashMessage{{Type: FlashError, Message: message}},
	})
}

func (s *Server) oidcEnabled() bool {
	return s.oidc != nil && s.oidc.Provider != nil && s.oidc.StateStore != nil
}

// dict creates a map from key-value pairs for use in templates.
func dict(values ...any) map[string]any {
	if len(values)%2 != 0 {
		return nil
	}
	m := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		m[key] = values[i+1]
	}
	return m
}

func comma(n int) string {
	return humanize.Comma(int64(n))
}

func stateName(code string) string {
	if name, ok := domain.StateCodeMap[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

// PageData holds common data passed to all page templates.
type PageData struct {
	Title       string
	Active      string // Current nav item
	Flashes     []FlashMessage
	Voter       *domain.Voter
	OIDCEnabled bool
	Content     any
}
