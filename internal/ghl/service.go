package ghl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/wolfman30/practice-hub/internal/coordinator"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

// Resource names a GoHighLevel collection served by the Service.
type Resource string

const (
	ResourceContacts      Resource = "contacts"
	ResourceConversations Resource = "conversations"
	ResourceCalendars     Resource = "calendars"
	ResourceUsers         Resource = "users"
)

// ErrUnknownResource is returned for resources the Service does not serve.
var ErrUnknownResource = errors.New("ghl: unknown resource")

// ParseResource validates a resource name taken from a URL.
func ParseResource(name string) (Resource, error) {
	switch r := Resource(name); r {
	case ResourceContacts, ResourceConversations, ResourceCalendars, ResourceUsers:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownResource, name)
}

// API is the set of reads the Service fans out to. *Client implements it.
type API interface {
	ListContacts(ctx context.Context, query url.Values) (json.RawMessage, error)
	SearchConversations(ctx context.Context, query url.Values) (json.RawMessage, error)
	ListCalendars(ctx context.Context) (json.RawMessage, error)
	ListUsers(ctx context.Context) (json.RawMessage, error)
}

// Service routes every GoHighLevel read through a shared Coordinator, so
// identical concurrent reads hit the API once and repeated reads are spaced.
type Service struct {
	api    API
	coord  *coordinator.Coordinator
	logger *logging.Logger
}

func NewService(api API, coord *coordinator.Coordinator, logger *logging.Logger) *Service {
	if api == nil {
		panic("ghl: api cannot be nil")
	}
	if coord == nil {
		panic("ghl: coordinator cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{api: api, coord: coord, logger: logger}
}

// RequestKey is the coordinator key for a read.
func RequestKey(resource Resource, query url.Values) string {
	return fmt.Sprintf("ghl:%s:%s", resource, query.Encode())
}

// Fetch reads resource. refresh bypasses coalescing and spacing.
func (s *Service) Fetch(ctx context.Context, resource Resource, query url.Values, refresh bool) (json.RawMessage, error) {
	var fn func(context.Context) (json.RawMessage, error)
	switch resource {
	case ResourceContacts:
		fn = func(ctx context.Context) (json.RawMessage, error) { return s.api.ListContacts(ctx, query) }
	case ResourceConversations:
		fn = func(ctx context.Context) (json.RawMessage, error) { return s.api.SearchConversations(ctx, query) }
	case ResourceCalendars:
		query = nil
		fn = s.api.ListCalendars
	case ResourceUsers:
		query = nil
		fn = s.api.ListUsers
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}

	key := RequestKey(resource, query)
	data, err := coordinator.Do(ctx, s.coord, key, fn, refresh)
	if err != nil {
		s.logger.Warn("ghl: fetch failed", "key", key, "refresh", refresh, "error", err)
		return nil, err
	}
	return data, nil
}

func (s *Service) Contacts(ctx context.Context, query url.Values, refresh bool) (json.RawMessage, error) {
	return s.Fetch(ctx, ResourceContacts, query, refresh)
}

func (s *Service) Conversations(ctx context.Context, query url.Values, refresh bool) (json.RawMessage, error) {
	return s.Fetch(ctx, ResourceConversations, query, refresh)
}

func (s *Service) Calendars(ctx context.Context, refresh bool) (json.RawMessage, error) {
	return s.Fetch(ctx, ResourceCalendars, nil, refresh)
}

func (s *Service) Users(ctx context.Context, refresh bool) (json.RawMessage, error) {
	return s.Fetch(ctx, ResourceUsers, nil, refresh)
}
