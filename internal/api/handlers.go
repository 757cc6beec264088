package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"StockLens/internal/model"
	"StockLens/internal/ranking"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLowPE(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	page, err := s.rankings.LowestPE(r.Context(), p)
	if err != nil {
		s.rankingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleLargestDeclines(w http.ResponseWriter, r *http.Request) {
	p, err := parseParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	page, err := s.rankings.LargestDeclines(r.Context(), p)
	if err != nil {
		s.rankingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type etlStatusResponse struct {
	Running bool            `json:"running"`
	LastRun *model.ETLStats `json:"lastRun"`
}

func (s *Server) handleETLStatus(w http.ResponseWriter, r *http.Request) {
	var resp etlStatusResponse
	if s.status != nil {
		resp.Running = s.status.IsRunning()
		resp.LastRun = s.status.LastRun()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) rankingError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ranking.ErrInvalidParams) {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", middleware.GetReqID(r.Context())).
		Msg("ranking query failed")
	writeError(w, http.StatusInternalServerError, codeInternal, "An unexpected error occurred")
}

// parseParams reads page, limit, sortBy, sortOrder, sector and industry.
// Missing page and limit take their defaults; range checks belong to the service.
func parseParams(q url.Values) (ranking.Params, error) {
	p := ranking.DefaultParams()
	var err error
	if v := q.Get("page"); v != "" {
		if p.Page, err = strconv.Atoi(v); err != nil {
			return p, errors.New("page and limit must be valid integers")
		}
	}
	if v := q.Get("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil {
			return p, errors.New("page and limit must be valid integers")
		}
	}
	p.SortBy = q.Get("sortBy")
	p.SortOrder = q.Get("sortOrder")
	p.Sector = q.Get("sector")
	p.Industry = q.Get("industry")
	return p, nil
}
