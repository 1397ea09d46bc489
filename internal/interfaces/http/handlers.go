package http

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"fundingarb/internal/application/service"
	"fundingarb/internal/domain/model"
)

const maxLimit = 200

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ratesResponse struct {
	Rows        []model.UnifiedRow `json:"rows"`
	LastUpdated time.Time          `json:"lastUpdated"`
}

type opportunitiesResponse struct {
	Opportunities []model.SpreadOpportunity `json:"opportunities"`
	CapitalUSD    float64                   `json:"capital"`
	Limit         int                       `json:"limit"`
	Sort          model.SortKey             `json:"sort"`
	LastUpdated   time.Time                 `json:"lastUpdated"`
}

type statusResponse struct {
	Status      string               `json:"status"`
	Sources     []model.SourceStatus `json:"sources"`
	Rows        int                  `json:"rows"`
	LastUpdated time.Time            `json:"lastUpdated"`
}

// --- Helpers ---

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(apiError{Code: "bad_request", Message: msg})
}

func parseLimit(v string, def, min, max int) (int, bool) {
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, false
	}
	return n, true
}

func parseCapital(v string, def float64) (float64, bool) {
	if v == "" {
		return def, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	return f, true
}

// --- Handlers ---

// Handles GET /api/rates.
func (s *Server) getRates(c fiber.Ctx) error {
	t := s.query.Table()
	rows := t.Rows
	if rows == nil {
		rows = []model.UnifiedRow{}
	}
	return c.JSON(ratesResponse{Rows: rows, LastUpdated: t.LastUpdated})
}

// Handles GET /api/opportunities?capital=&limit=&sort=net|diff.
func (s *Server) getOpportunities(c fiber.Ctx) error {
	capital, ok := parseCapital(c.Query("capital"), s.opts.CapitalUSD)
	if !ok {
		return badRequest(c, "capital must be a positive number")
	}
	limit, ok := parseLimit(c.Query("limit"), s.opts.Limit, 1, maxLimit)
	if !ok {
		return badRequest(c, "limit must be between 1 and 200")
	}
	sortBy := model.ParseSortKey(c.Query("sort"), model.SortByNetProfit)

	t := s.query.Table()
	key := opportunitiesKey(t.ID, capital, limit, sortBy)
	if resp, ok := s.cache.get(key); ok {
		return c.JSON(resp)
	}

	resp := opportunitiesResponse{
		Opportunities: s.query.Opportunities(capital, limit, sortBy),
		CapitalUSD:    capital,
		Limit:         limit,
		Sort:          sortBy,
		LastUpdated:   t.LastUpdated,
	}
	// 计算期间换了表就不缓存
	if t.ID != "" && s.query.Table().ID == t.ID {
		s.cache.set(key, resp)
	}
	return c.JSON(resp)
}

// Handles GET /api/status.
func (s *Server) getStatus(c fiber.Ctx) error {
	t := s.query.Table()
	return c.JSON(statusResponse{
		Status:      s.query.StatusLine(),
		Sources:     s.query.Statuses(),
		Rows:        len(t.Rows),
		LastUpdated: t.LastUpdated,
	})
}

// Handles GET /api/history.
func (s *Server) getHistory(c fiber.Ctx) error {
	if s.history == nil {
		return c.Status(fiber.StatusNotFound).JSON(apiError{Code: "not_found", Message: "history disabled"})
	}
	return c.JSON(s.history.State())
}

// Handles POST /api/refresh/:source.
func (s *Server) postRefresh(c fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("source"))
	if err != nil || name == "" {
		return badRequest(c, "source parameter is required")
	}

	if name == service.HistorySourceName {
		if s.history == nil {
			return c.Status(fiber.StatusNotFound).JSON(apiError{Code: "not_found", Message: "unknown source " + name})
		}
		if !s.history.RefreshAsync(c.Context()) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"source": name, "accepted": false})
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"source": name, "accepted": true})
	}

	if s.refresher == nil {
		return c.Status(fiber.StatusNotFound).JSON(apiError{Code: "not_found", Message: "unknown source " + name})
	}
	res, err := s.refresher.Trigger(c.Context(), name)
	if errors.Is(err, service.ErrUnknownSource) {
		return c.Status(fiber.StatusNotFound).JSON(apiError{Code: "not_found", Message: "unknown source " + name})
	}
	if err != nil {
		log.Error().Str("source", name).Err(err).Msg("refresh trigger failed")
		return c.Status(fiber.StatusInternalServerError).JSON(apiError{Code: "internal_server_error", Message: "internal server error"})
	}
	if res == service.TriggerDropped {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"source": name, "accepted": false})
	}

	log.Info().Str("source", name).Msg("manual refresh accepted")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"source": name, "accepted": true})
}
