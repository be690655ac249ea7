package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	appconfig "github.com/wolfman30/practice-hub/internal/config"
	"github.com/wolfman30/practice-hub/internal/coordinator"
	"github.com/wolfman30/practice-hub/internal/ghl"
	"github.com/wolfman30/practice-hub/internal/http/handlers"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

const routePrefix = "/ghl/"

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	client := ghl.New(ghl.Config{
		BaseURL:    cfg.GHLBaseURL,
		APIKey:     cfg.GHLAPIKey,
		LocationID: cfg.GHLLocationID,
		Version:    cfg.GHLAPIVersion,
		Timeout:    cfg.GHLTimeout,
		Logger:     logger,
	})
	if !client.Configured() {
		panic("GHL_API_KEY and GHL_LOCATION_ID are required")
	}

	// Built once so warm invocations share coalescing and throttling state.
	coord := coordinator.New(coordinator.Config{MinInterval: cfg.RequestMinInterval, Logger: logger})
	service := ghl.NewService(client, coord, logger)

	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return handle(ctx, service, logger, evt)
	})
}

func handle(ctx context.Context, fetcher handlers.GHLFetcher, logger *logging.Logger, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	if path == "/health" || path == "/_health" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Body: "ok"}, nil
	}

	if !strings.HasPrefix(path, routePrefix) {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound}, nil
	}
	if method != http.MethodGet {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusMethodNotAllowed}, nil
	}

	resource, err := ghl.ParseResource(strings.Trim(strings.TrimPrefix(path, routePrefix), "/"))
	if err != nil {
		return jsonResponse(http.StatusNotFound, map[string]string{"error": "unknown resource"}), nil
	}

	query, err := url.ParseQuery(strings.TrimSpace(evt.RawQueryString))
	if err != nil {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "invalid query string"}), nil
	}
	refresh, _ := strconv.ParseBool(query.Get("refresh"))
	query.Del("refresh")

	data, err := fetcher.Fetch(ctx, resource, query, refresh)
	if err != nil {
		status, message := handlers.GHLErrorStatus(err)
		logger.Warn("ghl-proxy: fetch failed", "resource", resource, "status", status, "error", err)
		return jsonResponse(status, map[string]string{"error": message}), nil
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusOK,
		Body:       string(data),
		Headers:    map[string]string{"content-type": "application/json"},
	}, nil
}

func jsonResponse(status int, payload any) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(payload)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"content-type": "application/json"},
	}
}
