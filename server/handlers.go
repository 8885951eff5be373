package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cine-journey/index"
	"cine-journey/planner"
	"cine-journey/storage"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSearchLimit     = 10
	DefaultJourneyDuration = planner.DefaultJourneyMinutes
)

type SearchRequest struct {
	Query string `json:"query" validate:"required"`
	Limit *int   `json:"limit" validate:"omitempty,min=1,max=50"`
}

type JourneyRequest struct {
	Duration    *int   `json:"duration" validate:"omitempty,gt=0"`
	Preferences string `json:"preferences"`
	ContentType string `json:"content_type"`
}

type ContentsResponse struct {
	Success  bool              `json:"success"`
	Contents []storage.Content `json:"contents"`
}

type JourneyResponse struct {
	Success bool            `json:"success"`
	Journey planner.Journey `json:"journey"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, limit, ok := s.decodeSearch(w, r)
	if !ok {
		return
	}

	contents, err := s.planner.SearchContent(r.Context(), query, limit)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondContents(w, contents)
}

func (s *Server) handleSemanticSearch(w http.ResponseWriter, r *http.Request) {
	query, limit, ok := s.decodeSearch(w, r)
	if !ok {
		return
	}

	contents, err := s.planner.SemanticSearch(r.Context(), query, limit)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondContents(w, contents)
}

func (s *Server) handlePlanJourney(w http.ResponseWriter, r *http.Request) {
	var req JourneyRequest
	if !s.decode(w, r, &req) {
		return
	}

	duration := DefaultJourneyDuration
	if req.Duration != nil {
		duration = *req.Duration
	}

	var contentType storage.ContentType
	if strings.TrimSpace(req.ContentType) != "" {
		t, err := storage.ParseContentType(req.ContentType)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		contentType = t
	}

	journey, err := s.planner.PlanJourney(r.Context(), planner.JourneyRequest{
		Duration:    duration,
		Preferences: req.Preferences,
		ContentType: string(contentType),
	})
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, JourneyResponse{Success: true, Journey: journey})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		respondError(w, http.StatusServiceUnavailable, "catalog storage is disabled")
		return
	}

	var filter storage.ContentType
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, err := storage.ParseContentType(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter = t
	}

	var (
		contents []storage.Content
		err      error
	)
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	switch {
	case q != "":
		contents, err = s.catalog.SearchContent(q)
	case filter != "":
		contents, err = s.catalog.GetContentByType(filter)
	default:
		contents, err = s.catalog.GetAllContent()
	}
	if err != nil {
		respondFailure(w, err)
		return
	}

	if q != "" && filter != "" {
		filtered := contents[:0]
		for _, c := range contents {
			if c.ContentType == filter {
				filtered = append(filtered, c)
			}
		}
		contents = filtered
	}
	respondContents(w, contents)
}

func (s *Server) decodeSearch(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	var req SearchRequest
	if !s.decode(w, r, &req) {
		return "", 0, false
	}

	limit := DefaultSearchLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	return req.Query, limit, true
}

// decode reads and validates a JSON body, answering 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be between 1 and %d", field, planner.MaxSearchLimit))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be positive", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}

// respondFailure maps domain errors onto status codes
func respondFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, planner.ErrInvalidDuration),
		errors.Is(err, planner.ErrInvalidLimit),
		errors.Is(err, storage.ErrInvalidContentType):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, index.ErrEncoding):
		log.Error().Err(err).Msg("Text encoding failed")
		respondError(w, http.StatusInternalServerError, "text encoding unavailable: "+err.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, "internal error: "+err.Error())
	}
}

func respondContents(w http.ResponseWriter, contents []storage.Content) {
	if contents == nil {
		contents = []storage.Content{}
	}
	respondJSON(w, http.StatusOK, ContentsResponse{Success: true, Contents: contents})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Success: false, Error: message})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}
