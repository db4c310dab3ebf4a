package http

import (
	"mime"
	"net/http"
	"time"

	"faturas/internal/core"
	"faturas/internal/dashboard"
	"faturas/internal/export"
	"faturas/internal/log"
	"faturas/internal/metrics"
)

// dashboardPage is the template data of index.html and dashboard.html.
type dashboardPage struct {
	View      dashboard.View
	Active    string
	AllOption string
	LoadError string
}

func (s *Server) page(v dashboard.View) dashboardPage {
	p := dashboardPage{View: v, Active: v.Selector, AllOption: core.SelectorAll}
	if err := s.store.LastError(); err != nil {
		p.LoadError = err.Error()
	}
	return p
}

// sessionView applies the ?account= parameter to the session's dashboard.
// Without the parameter the active selector is refreshed.
func (s *Server) sessionView(w http.ResponseWriter, r *http.Request) (dashboard.View, error) {
	sess := s.sessionFor(w, r)
	if sel, ok := ParseSelectorParam(r.URL.Query()); ok {
		return sess.dashboard.Select(sel)
	}
	return sess.dashboard.Refresh()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("page not found").Write(w)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	v, err := s.sessionView(w, r)
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", s.page(v)); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed",
			log.FieldError, err.Error(), "template", "index.html")
	}
}

// handleDashboardPartial renders the dashboard tables for htmx swaps.
func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	v, err := s.sessionView(w, r)
	if err != nil {
		ErrorResponse(statusFor(err), err.Error()).Write(w)
		return
	}
	if s.templates == nil {
		ErrorResponse(http.StatusInternalServerError, "templates not loaded").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", s.page(v)); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution error",
			log.FieldError, err.Error(), "template", "dashboard.html")
	}
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	snap := s.store.Snapshot()
	body := map[string]interface{}{
		"all":        core.SelectorAll,
		"accounts":   snap.Accounts().IDs(),
		"loaded":     snap.Loaded(),
		"generation": snap.Generation(),
	}
	if snap.Loaded() {
		body["loadedAt"] = snap.LoadedAt().Format(time.RFC3339)
	}
	NewHTMXResponse().BodyJSON(body).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	v, err := s.sessionView(w, r)
	if err != nil {
		JSONErrorResponse(statusFor(err), err.Error()).Write(w)
		return
	}
	NewHTMXResponse().BodyJSON(v).Write(w)
}

// handleDashboardXLSX exports the series of ?account=, or of the session's
// active selector, without changing the active selector.
func (s *Server) handleDashboardXLSX(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	sess := s.sessionFor(w, r)
	sel, ok := ParseSelectorParam(r.URL.Query())
	if !ok {
		sel = sess.dashboard.Active()
	}
	v, err := sess.dashboard.View(sel)
	if err != nil {
		metrics.IncExport("xlsx", metrics.ResultError)
		JSONErrorResponse(statusFor(err), err.Error()).Write(w)
		return
	}

	data, err := export.Workbook(v)
	metrics.IncExport("xlsx", metrics.Result(err))
	if err != nil {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Series export failed", err,
			log.ComponentHTTP, log.OpExport, log.NewFields().WithSelection(sel.Account(), ""))
		JSONErrorResponse(http.StatusInternalServerError, "export failed").Write(w)
		return
	}
	NewHTMXResponse().
		Header("Content-Type", export.ContentTypeXLSX).
		Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.Filename(v.Selector)})).
		Body(data).
		Write(w)
}

// handleReload reloads the record store. On failure the previous snapshot
// stays current.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	snap, err := s.store.Load(r.Context())
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	NewHTMXResponse().
		TriggerDashboardRefresh(snap.Generation()).
		TriggerSuccessNotification("Invoices reloaded").
		BodyJSON(map[string]interface{}{
			"records":    snap.Len(),
			"accounts":   snap.Accounts().Len(),
			"malformed":  len(snap.Malformed()),
			"generation": snap.Generation(),
		}).
		Write(w)
}
