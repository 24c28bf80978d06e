package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/kalshi-best-bets/internal/models"
	"github.com/cypherlabdev/kalshi-best-bets/internal/service"
)

// FeedReader serves dashboard views of the cached feed
type FeedReader interface {
	Bets(ctx context.Context, date string) (*models.FeedBets, error)
	Summary(ctx context.Context, date string) (*models.FeedSummary, error)
	Dates(ctx context.Context) ([]string, error)
	Ready(ctx context.Context) error
}

// FeedHandler handles HTTP requests for the best-bets feed
type FeedHandler struct {
	feed   FeedReader
	auth   *Authenticator
	logger zerolog.Logger
}

// NewFeedHandler creates a new feed HTTP handler
func NewFeedHandler(feed FeedReader, auth *Authenticator, logger zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		feed:   feed,
		auth:   auth,
		logger: logger.With().Str("component", "feed_handler").Logger(),
	}
}

// RegisterRoutes registers HTTP routes with the provided router
func (h *FeedHandler) RegisterRoutes(r chi.Router) {
	// POST /token - form username/password, returns a bearer token
	r.Post("/token", h.handleToken)

	r.Get("/healthz", h.handleHealth)
	r.Get("/ready", h.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.auth.RequireAuth)

		// GET /api/bets?date=YYYY-MM-DD - feed grouped by market type
		r.Get("/bets", h.handleGetBets)

		// GET /api/summary?date=YYYY-MM-DD - totals and top lists
		r.Get("/summary", h.handleGetSummary)

		// GET /api/dates - cached run dates
		r.Get("/dates", h.handleGetDates)
	})
}

// handleToken handles POST /token
func (h *FeedHandler) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid form")
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		h.errorResponse(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := h.auth.Login(username, password)
	if errors.Is(err, ErrInvalidCredentials) {
		h.logger.Debug().
			Str("username", username).
			Msg("login rejected")
		unauthorized(w, "incorrect username or password")
		return
	} else if err != nil {
		h.logger.Error().Err(err).Msg("failed to issue token")
		h.errorResponse(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.jsonResponse(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// handleGetBets handles GET /api/bets
func (h *FeedHandler) handleGetBets(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	bets, err := h.feed.Bets(r.Context(), date)
	if err != nil {
		h.feedError(w, err, date)
		return
	}

	h.jsonResponse(w, http.StatusOK, bets)
}

// handleGetSummary handles GET /api/summary
func (h *FeedHandler) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	summary, err := h.feed.Summary(r.Context(), date)
	if err != nil {
		h.feedError(w, err, date)
		return
	}

	h.jsonResponse(w, http.StatusOK, summary)
}

// handleGetDates handles GET /api/dates
func (h *FeedHandler) handleGetDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.feed.Dates(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list feed dates")
		h.errorResponse(w, http.StatusInternalServerError, "failed to list dates")
		return
	}
	if dates == nil {
		dates = []string{}
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"count": len(dates),
		"dates": dates,
	})
}

// handleHealth returns 200 if the service is running
func (h *FeedHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady returns 200 if the feed cache is reachable
func (h *FeedHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.feed.Ready(r.Context()); err != nil {
		h.errorResponse(w, http.StatusServiceUnavailable, "Redis unavailable")
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// dateParam validates the optional date query parameter
func (h *FeedHandler) dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return "", true
	}
	if _, err := time.Parse(service.DateLayout, date); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
		return "", false
	}
	return date, true
}

func (h *FeedHandler) feedError(w http.ResponseWriter, err error, date string) {
	if errors.Is(err, service.ErrNoFeed) {
		h.logger.Debug().
			Err(err).
			Str("date", date).
			Msg("feed not found")
		h.errorResponse(w, http.StatusNotFound, "feed not found")
		return
	}

	h.logger.Error().
		Err(err).
		Str("date", date).
		Msg("failed to retrieve feed")
	h.errorResponse(w, http.StatusInternalServerError, "failed to retrieve feed")
}

// jsonResponse writes a JSON response
func (h *FeedHandler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// errorResponse writes a JSON error response
func (h *FeedHandler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}

// TokenResponse is the body of a successful POST /token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
