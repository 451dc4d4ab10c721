package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/headline-goat/trendline/internal/pipeline"
	"github.com/headline-goat/trendline/internal/state"
	"github.com/headline-goat/trendline/internal/store"
)

const profileCookieName = "tl_profile"

var errUnknownAction = errors.New("unknown action")

// viewer is the caller's saved profile (nil when anonymous) and the state
// restored from it.
type viewer struct {
	prefs *store.Preferences
	state *state.State
}

func profileID(r *http.Request) string {
	if id := r.URL.Query().Get("profile"); id != "" {
		return id
	}
	if c, err := r.Cookie(profileCookieName); err == nil {
		return c.Value
	}
	return ""
}

// loadViewer restores the caller's state. Unknown profiles fall back to the
// default state rather than failing.
func (s *Server) loadViewer(ctx context.Context, r *http.Request) (*viewer, error) {
	ds := s.pipeline.Dataset()

	id := profileID(r)
	if id == "" {
		return &viewer{state: state.New(ds)}, nil
	}

	prefs, err := s.store.GetPreferences(ctx, id)
	if err == store.ErrNotFound {
		return &viewer{state: state.New(ds)}, nil
	}
	if err != nil {
		return nil, err
	}
	return &viewer{prefs: prefs, state: state.FromPreferences(ds, prefs)}, nil
}

// saveViewer persists the viewer's state, creating a profile and setting
// the profile cookie on first save.
func (s *Server) saveViewer(ctx context.Context, w http.ResponseWriter, v *viewer) error {
	if v.prefs == nil {
		prefs, err := s.store.CreateProfile(ctx, v.state.Preferences())
		if err != nil {
			return err
		}
		v.prefs = prefs
		http.SetCookie(w, &http.Cookie{
			Name:     profileCookieName,
			Value:    prefs.Profile,
			Path:     "/",
			HttpOnly: true,
			MaxAge:   int(365 * 24 * time.Hour / time.Second),
			SameSite: http.SameSiteLaxMode,
		})
		s.log.Info().Str("profile", prefs.Profile).Msg("created viewer profile")
		return nil
	}

	v.state.ApplyTo(v.prefs)
	return s.store.SavePreferences(ctx, v.prefs)
}

// applyAction performs one user intent on st. On error st is unchanged.
func applyAction(st *state.State, action, value string) error {
	switch action {
	case "toggle":
		return st.Toggle(value)
	case "visible":
		return st.SetVisible(splitNames(value))
	case "view":
		if value == "" {
			return fmt.Errorf("%w: empty", pipeline.ErrInvalidViewMode)
		}
		mode, err := pipeline.ParseViewMode(value)
		if err != nil {
			return err
		}
		return st.SetMode(mode)
	case "zoom":
		zoom, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %q", state.ErrZoomOutOfRange, value)
		}
		return st.SetZoom(zoom)
	case "zoom_in":
		st.ZoomIn()
		return nil
	case "zoom_out":
		st.ZoomOut()
		return nil
	case "line_style":
		return st.SetLineStyle(value)
	case "theme":
		return st.SetTheme(value)
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, action)
	}
}

func statusFor(err error) int {
	if errors.Is(err, state.ErrLastVisible) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// queryView layers one-off query overrides (view, visible, zoom) on top of
// the viewer's state without saving them. Any positive zoom is accepted.
func queryView(st *state.State, q url.Values) (pipeline.ViewMode, pipeline.VisibleSet, int, error) {
	mode := st.Mode
	if v := q.Get("view"); v != "" {
		m, err := pipeline.ParseViewMode(v)
		if err != nil {
			return "", nil, 0, err
		}
		mode = m
	}

	visible := st.Visible
	if q.Has("visible") {
		scratch := st.Clone()
		if err := scratch.SetVisible(splitNames(q.Get("visible"))); err != nil {
			return "", nil, 0, err
		}
		visible = scratch.Visible
	}

	zoom := st.Zoom
	if v := q.Get("zoom"); v != "" {
		z, err := strconv.Atoi(v)
		if err != nil {
			return "", nil, 0, fmt.Errorf("%w: %q", pipeline.ErrInvalidZoom, v)
		}
		zoom = z
	}

	return mode, visible, zoom, nil
}

func splitNames(csv string) []string {
	var names []string
	for _, n := range strings.Split(csv, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}
