package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/headline-goat/trendline/internal/dataset"
	"github.com/headline-goat/trendline/internal/pipeline"
	"github.com/headline-goat/trendline/internal/render"
	"github.com/headline-goat/trendline/internal/state"
)

const msgpackContentType = "application/msgpack"

// writeData encodes v as msgpack when the client asks for it, JSON otherwise.
func writeData(w http.ResponseWriter, r *http.Request, v interface{}) {
	if strings.Contains(r.Header.Get("Accept"), msgpackContentType) {
		w.Header().Set("Content-Type", msgpackContentType)
		if err := msgpack.NewEncoder(w).Encode(v); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

type HealthResponse struct {
	Status        string `json:"status"`
	Variations    int    `json:"variations"`
	Days          int    `json:"days"`
	FirstDay      string `json:"first_day,omitempty"`
	LastDay       string `json:"last_day,omitempty"`
	Profiles      int    `json:"profiles"`
	DBSizeBytes   int64  `json:"db_size_bytes"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("health check failed to list profiles")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Get database size
	var dbSize int64
	row := s.store.DB().QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	if err := row.Scan(&dbSize); err != nil {
		if info, statErr := os.Stat(s.store.Path()); statErr == nil {
			dbSize = info.Size()
		}
	}

	ds := s.pipeline.Dataset()
	response := HealthResponse{
		Status:        "ok",
		Variations:    len(ds.Variations),
		Days:          len(ds.Days),
		Profiles:      len(profiles),
		DBSizeBytes:   dbSize,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	if first, last := ds.Span(); !first.IsZero() {
		response.FirstDay = first.Format(dataset.DateLayout)
		response.LastDay = last.Format(dataset.DateLayout)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// WindowResponse is the display window for one view configuration.
type WindowResponse struct {
	View    pipeline.ViewMode `json:"view" msgpack:"view"`
	Zoom    int               `json:"zoom" msgpack:"zoom"`
	Visible []string          `json:"visible" msgpack:"visible"`
	Total   int               `json:"total" msgpack:"total"`
	Buckets []pipeline.Bucket `json:"buckets" msgpack:"buckets"`
}

func (s *Server) handleWindowAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, err := s.loadViewer(r.Context(), r)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load viewer")
		http.Error(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}

	mode, visible, zoom, err := queryView(v.state, r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	window, err := s.pipeline.Window(mode, visible, zoom)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeData(w, r, WindowResponse{
		View:    mode,
		Zoom:    zoom,
		Visible: visible.Names(),
		Total:   len(s.pipeline.Buckets(mode)),
		Buckets: window,
	})
}

// TooltipEntry adds the palette color to a resolved tooltip row.
type TooltipEntry struct {
	pipeline.TooltipEntry
	Color string `json:"color" msgpack:"color"`
}

type TooltipResponse struct {
	Key     string         `json:"key" msgpack:"key"`
	View    string         `json:"view" msgpack:"view"`
	Entries []TooltipEntry `json:"entries" msgpack:"entries"`
}

func tooltipEntries(entries []pipeline.TooltipEntry, theme state.Theme) []TooltipEntry {
	out := make([]TooltipEntry, len(entries))
	for i, e := range entries {
		out[i] = TooltipEntry{TooltipEntry: e, Color: render.CSSColor(e.ColorIndex, theme)}
	}
	return out
}

func (s *Server) handleTooltipAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key parameter required", http.StatusBadRequest)
		return
	}

	v, err := s.loadViewer(r.Context(), r)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load viewer")
		http.Error(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}

	mode, visible, _, err := queryView(v.state, r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	entries, err := s.pipeline.Tooltip(mode, key, visible)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeData(w, r, TooltipResponse{
		Key:     key,
		View:    string(mode),
		Entries: tooltipEntries(entries, v.state.Theme),
	})
}

// PrefsResponse mirrors a viewer's saved state.
type PrefsResponse struct {
	Profile   string   `json:"profile,omitempty" msgpack:"profile,omitempty"`
	Theme     string   `json:"theme" msgpack:"theme"`
	View      string   `json:"view" msgpack:"view"`
	Zoom      int      `json:"zoom" msgpack:"zoom"`
	LineStyle string   `json:"line_style" msgpack:"line_style"`
	Visible   []string `json:"visible" msgpack:"visible"`
}

type prefsRequest struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

func prefsResponse(v *viewer) PrefsResponse {
	p := v.state.Preferences()
	resp := PrefsResponse{
		Theme:     p.Theme,
		View:      p.ViewMode,
		Zoom:      p.Zoom,
		LineStyle: p.LineStyle,
		Visible:   p.Visible,
	}
	if v.prefs != nil {
		resp.Profile = v.prefs.Profile
	}
	return resp
}

func (s *Server) handlePrefsAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	v, err := s.loadViewer(ctx, r)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load viewer")
		http.Error(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeData(w, r, prefsResponse(v))

	case http.MethodPost:
		var req prefsRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid JSON", http.StatusBadRequest)
				return
			}
		} else {
			req.Action = r.FormValue("action")
			req.Value = r.FormValue("value")
		}

		if err := applyAction(v.state, req.Action, req.Value); err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		if err := s.saveViewer(ctx, w, v); err != nil {
			s.log.Error().Err(err).Msg("failed to save preferences")
			http.Error(w, "Failed to save preferences", http.StatusInternalServerError)
			return
		}
		writeData(w, r, prefsResponse(v))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	v, err := s.loadViewer(r.Context(), r)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load viewer")
		http.Error(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}

	mode, visible, zoom, err := queryView(v.state, r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	window, err := s.pipeline.Window(mode, visible, zoom)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	err = render.Chart(w, window, s.pipeline.Dataset().Variations, visible, render.Options{
		Title:     s.title,
		Theme:     v.state.Theme,
		LineStyle: v.state.LineStyle,
	})
	if errors.Is(err, render.ErrNothingToRender) {
		w.Header().Del("Content-Type")
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to render chart")
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
	}
}
