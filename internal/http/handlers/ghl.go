package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/practice-hub/internal/ghl"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

// GHLFetcher reads GoHighLevel resources. *ghl.Service implements it.
type GHLFetcher interface {
	Fetch(ctx context.Context, resource ghl.Resource, query url.Values, refresh bool) (json.RawMessage, error)
}

// GHLHandler proxies GoHighLevel reads for the front end.
type GHLHandler struct {
	fetcher GHLFetcher
	logger  *logging.Logger
}

func NewGHLHandler(fetcher GHLFetcher, logger *logging.Logger) *GHLHandler {
	if fetcher == nil {
		panic("handlers: ghl fetcher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GHLHandler{fetcher: fetcher, logger: logger}
}

// HandleResource serves GET /ghl/{resource}. refresh=true forces a new read.
func (h *GHLHandler) HandleResource(w http.ResponseWriter, r *http.Request) {
	resource, err := ghl.ParseResource(chi.URLParam(r, "resource"))
	if err != nil {
		jsonError(w, "unknown resource", http.StatusNotFound)
		return
	}
	query := r.URL.Query()
	refresh := parseBool(query.Get("refresh"))
	query.Del("refresh")

	data, err := h.fetcher.Fetch(r.Context(), resource, query, refresh)
	if err != nil {
		status, message := GHLErrorStatus(err)
		h.logger.Warn("ghl: proxy request failed", "resource", resource, "status", status, "error", err)
		jsonError(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GHLErrorStatus maps a GoHighLevel read failure to an HTTP status.
func GHLErrorStatus(err error) (int, string) {
	var apiErr *ghl.APIError
	switch {
	case errors.Is(err, ghl.ErrNotConfigured):
		return http.StatusServiceUnavailable, "gohighlevel integration not configured"
	case errors.Is(err, ghl.ErrUnknownResource):
		return http.StatusNotFound, "unknown resource"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream request timed out"
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests:
		return http.StatusTooManyRequests, "upstream rate limited"
	default:
		return http.StatusBadGateway, "upstream request failed"
	}
}
