package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/EijunnN/flash-route-sub001/internal/fleet"
)

// handleOrderSelection processes GET /api/orders/selection. It returns
// every order matching the selection filters, paging through the fleet
// API as needed. Defaults match the dispatch board: pending and active.
func (s *Server) handleOrderSelection(w http.ResponseWriter, r *http.Request) {
	query := fleet.OrderQuery{Status: "pending", Active: true}

	if status := r.URL.Query().Get("status"); status != "" {
		query.Status = status
	}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid active parameter: must be true or false")
			return
		}
		query.Active = active
	}

	orders, err := s.service.LoadOrderSelection(r.Context(), query)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"data":  orders,
		"count": len(orders),
	})
}

// handleCapabilities processes GET /api/capabilities, returning the
// tenant capability profile from the fleet API. Clients use it to decide
// which optional columns an import file must carry.
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	profile, err := s.service.Capabilities(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, profile)
}

// handleHealth reports service health including database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","database":"unreachable"}`))
			return
		}
	}
	writeJSON(w, map[string]any{
		"status":         "ok",
		"active_imports": s.service.ActiveImports(),
	})
}
