package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/headline-goat/trendline/internal/pipeline"
	"github.com/headline-goat/trendline/internal/store"
)

type Server struct {
	store     *store.SQLiteStore
	pipeline  *pipeline.Pipeline
	log       zerolog.Logger
	port      int
	token     string
	tokenFile string
	title     string
	router    *http.ServeMux
	startTime time.Time
}

func New(s *store.SQLiteStore, p *pipeline.Pipeline, log zerolog.Logger, port int, tokenFile string) *Server {
	srv := &Server{
		store:     s,
		pipeline:  p,
		log:       log.With().Str("component", "server").Logger(),
		port:      port,
		token:     generateToken(),
		tokenFile: tokenFile,
		title:     "Experiment",
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

// SetTitle sets the experiment name shown on the dashboard and chart.
func (s *Server) SetTitle(title string) {
	if title != "" {
		s.title = title
	}
}

func (s *Server) setupRoutes() {
	api := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})

	// Public endpoints
	s.router.HandleFunc("/health", s.handleHealth)

	// API endpoints (bearer token or dashboard cookie)
	s.router.Handle("/api/window", api(s.apiAuthMiddleware(http.HandlerFunc(s.handleWindowAPI))))
	s.router.Handle("/api/tooltip", api(s.apiAuthMiddleware(http.HandlerFunc(s.handleTooltipAPI))))
	s.router.Handle("/api/prefs", api(s.apiAuthMiddleware(http.HandlerFunc(s.handlePrefsAPI))))

	// Dashboard endpoints (protected)
	s.router.Handle("/dashboard", s.authMiddleware(http.HandlerFunc(s.handleDashboard)))
	s.router.Handle("/dashboard/prefs", s.authMiddleware(http.HandlerFunc(s.handleDashboardPrefs)))
	s.router.Handle("/chart.png", s.authMiddleware(http.HandlerFunc(s.handleChart)))
}

func (s *Server) Start() error {
	// Write token to file for the token command
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.log.Warn().Err(err).Str("path", s.tokenFile).Msg("failed to write token file")
		}
	}

	addr := fmt.Sprintf(":%d", s.port)

	fmt.Println()
	fmt.Printf("trendline running on http://localhost:%d\n", s.port)
	fmt.Printf("Dashboard: http://localhost:%d/dashboard?token=%s\n", s.port, s.token)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	s.log.Info().Int("port", s.port).Msg("listening")
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
