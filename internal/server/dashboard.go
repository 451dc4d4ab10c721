package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/headline-goat/trendline/internal/dashboard"
	"github.com/headline-goat/trendline/internal/dataset"
	"github.com/headline-goat/trendline/internal/pipeline"
	"github.com/headline-goat/trendline/internal/render"
	"github.com/headline-goat/trendline/internal/state"
)

// Dashboard template data structures
type layoutData struct {
	Title   string
	Theme   string
	CSS     template.CSS
	Content template.HTML
}

type chartData struct {
	Error        string
	Title        string
	DayCount     int
	First        string
	Last         string
	Mode         string
	Zoom         int
	MinZoom      int
	MaxZoom      int
	LineStyles   []string
	LineStyle    string
	OtherTheme   string
	Legend       []legendItem
	CacheKey     string
	TotalBuckets int
	Columns      []string
	Rows         []tableRow
	HoverKey     string
	Tooltip      []tooltipItem
}

type legendItem struct {
	Name    string
	Color   string
	Visible bool
}

type tableRow struct {
	Key   string
	Cells []string
}

type tooltipItem struct {
	Name         string
	Color        string
	Rate         float64
	IsWinner     bool
	Interpolated bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	// Handle logout
	if r.URL.Query().Get("logout") == "1" {
		http.SetCookie(w, &http.Cookie{
			Name:   tokenCookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	ctx := r.Context()

	v, err := s.loadViewer(ctx, r)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load viewer")
		http.Error(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}

	// First visit creates a profile
	if v.prefs == nil {
		if err := s.saveViewer(ctx, w, v); err != nil {
			s.log.Error().Err(err).Msg("failed to create profile")
			http.Error(w, "Failed to save preferences", http.StatusInternalServerError)
			return
		}
	}

	st := v.state
	window, err := s.pipeline.Window(st.Mode, st.Visible, st.Zoom)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := s.chartData(st, window)
	data.Error = r.URL.Query().Get("error")

	if hover := r.URL.Query().Get("hover"); hover != "" {
		entries, err := s.pipeline.Tooltip(st.Mode, hover, st.Visible)
		if err == nil {
			data.HoverKey = hover
			for _, e := range tooltipEntries(entries, st.Theme) {
				data.Tooltip = append(data.Tooltip, tooltipItem{
					Name:         e.Name,
					Color:        e.Color,
					Rate:         e.Rate,
					IsWinner:     e.IsWinner,
					Interpolated: e.Interpolated,
				})
			}
		}
	}

	s.renderDashboard(w, s.title, string(st.Theme), "chart.html", data)
}

func (s *Server) chartData(st *state.State, window []pipeline.Bucket) chartData {
	ds := s.pipeline.Dataset()

	data := chartData{
		Title:        s.title,
		DayCount:     len(ds.Days),
		Mode:         string(st.Mode),
		Zoom:         st.Zoom,
		MinZoom:      pipeline.MinZoom,
		MaxZoom:      pipeline.MaxZoom,
		LineStyles:   []string{string(state.LineSolid), string(state.LineDashed), string(state.LineDotted)},
		LineStyle:    string(st.LineStyle),
		OtherTheme:   string(state.ThemeDark),
		CacheKey:     fmt.Sprintf("%s-%d-%s-%s-%s", st.Mode, st.Zoom, st.Visible.Key(), st.LineStyle, st.Theme),
		TotalBuckets: len(s.pipeline.Buckets(st.Mode)),
	}
	if st.Theme == state.ThemeDark {
		data.OtherTheme = string(state.ThemeLight)
	}
	if first, last := ds.Span(); !first.IsZero() {
		data.First = first.Format(dataset.DateLayout)
		data.Last = last.Format(dataset.DateLayout)
	}

	for i, v := range ds.Variations {
		visible := st.Visible.Has(v.Name)
		data.Legend = append(data.Legend, legendItem{
			Name:    v.Name,
			Color:   render.CSSColor(i, st.Theme),
			Visible: visible,
		})
		if visible {
			data.Columns = append(data.Columns, v.Name)
		}
	}

	for _, b := range window {
		row := tableRow{Key: b.Key}
		for _, name := range data.Columns {
			if rate, ok := b.RateOf(name); ok {
				row.Cells = append(row.Cells, formatRate(rate))
			} else {
				row.Cells = append(row.Cells, "–")
			}
		}
		data.Rows = append(data.Rows, row)
	}

	return data
}

// handleDashboardPrefs applies one form action and redirects back.
func (s *Server) handleDashboardPrefs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	v, err := s.loadViewer(ctx, r)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load viewer")
		http.Error(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}

	action := r.FormValue("action")
	if err := applyAction(v.state, action, r.FormValue("value")); err != nil {
		s.log.Debug().Err(err).Str("action", action).Msg("rejected dashboard action")
		http.Redirect(w, r, "/dashboard?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}

	if err := s.saveViewer(ctx, w, v); err != nil {
		s.log.Error().Err(err).Msg("failed to save preferences")
		http.Error(w, "Failed to save preferences", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) renderDashboard(w http.ResponseWriter, title, theme, contentTemplate string, data interface{}) {
	// Load CSS
	cssBytes, err := dashboard.Assets.ReadFile("assets/style.css")
	if err != nil {
		http.Error(w, "Failed to load styles", http.StatusInternalServerError)
		return
	}

	// Load and execute content template
	contentTmpl, err := template.ParseFS(dashboard.Templates, "templates/"+contentTemplate)
	if err != nil {
		http.Error(w, "Failed to parse template", http.StatusInternalServerError)
		return
	}

	var contentBuf bytes.Buffer
	if err := contentTmpl.Execute(&contentBuf, data); err != nil {
		s.log.Error().Err(err).Str("template", contentTemplate).Msg("failed to render template")
		http.Error(w, fmt.Sprintf("Failed to render template: %v", err), http.StatusInternalServerError)
		return
	}

	// Load and execute layout template
	layoutTmpl, err := template.ParseFS(dashboard.Templates, "templates/layout.html")
	if err != nil {
		http.Error(w, "Failed to parse layout", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = layoutTmpl.Execute(w, layoutData{
		Title:   title,
		Theme:   theme,
		CSS:     template.CSS(cssBytes),
		Content: template.HTML(contentBuf.String()),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to render page")
	}
}

func formatRate(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}
