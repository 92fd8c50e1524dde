package aegisx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// NavigationType selects which layout variant of the menu to load.
type NavigationType string

const (
	NavigationDefault    NavigationType = "default"
	NavigationCompact    NavigationType = "compact"
	NavigationHorizontal NavigationType = "horizontal"
	NavigationMobile     NavigationType = "mobile"
)

// Navigation item kinds. Only groups and collapsibles carry children;
// dividers carry no payload at all.
const (
	NavigationItemBasic       = "item"
	NavigationItemGroup       = "group"
	NavigationItemCollapsible = "collapsible"
	NavigationItemDivider     = "divider"
)

// Navigation source markers reported by Source().
const (
	NavigationSourceAPI      = "api"
	NavigationSourceFallback = "fallback"
)

// NavigationBadge is an optional badge rendered next to an item.
type NavigationBadge struct {
	Title   string `json:"title"`
	Classes string `json:"classes,omitempty"`
}

// NavigationItem is a node in the rendered menu tree. Hidden items are
// filtered out during conversion and never appear here.
type NavigationItem struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Type     string           `json:"type"`
	Icon     string           `json:"icon,omitempty"`
	Link     string           `json:"link,omitempty"`
	Badge    *NavigationBadge `json:"badge,omitempty"`
	Disabled bool             `json:"disabled,omitempty"`
	Children []NavigationItem `json:"children,omitempty"`
}

// apiNavigationItem is the wire shape returned by the navigation
// endpoints. It is a superset of NavigationItem: the server also sends
// visibility flags that the conversion consumes.
type apiNavigationItem struct {
	ID       string              `json:"id"`
	Key      string              `json:"key,omitempty"`
	Title    string              `json:"title"`
	Type     string              `json:"type"`
	Icon     string              `json:"icon,omitempty"`
	Link     string              `json:"link,omitempty"`
	Badge    *NavigationBadge    `json:"badge,omitempty"`
	Hidden   bool                `json:"hidden,omitempty"`
	Disabled bool                `json:"disabled,omitempty"`
	Children []apiNavigationItem `json:"children,omitempty"`
}

// NavigationService loads the menu tree from the API and falls back to
// the compiled-in tree when the API is unreachable or returns
// something unusable. Loading never fails from the caller's point of
// view: the menu is always renderable.
type NavigationService struct {
	httpClient *http.Client
	cfg        Config
	logger     Logger
	sink       ActivitySink
	fallback   []NavigationItem

	mu      sync.RWMutex
	items   []NavigationItem
	source  string
	lastErr error
}

// NavigationOption customizes NavigationService construction.
type NavigationOption func(*NavigationService)

// WithNavigationHTTPClient sets the HTTP client, normally one whose
// transport is the intercepting Transport so navigation requests carry
// the bearer token.
func WithNavigationHTTPClient(httpClient *http.Client) NavigationOption {
	return func(s *NavigationService) {
		if httpClient != nil {
			s.httpClient = httpClient
		}
	}
}

// WithNavigationLogger overrides the default logger.
func WithNavigationLogger(logger Logger) NavigationOption {
	return func(s *NavigationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNavigationActivitySink configures the sink notified on loads and
// fallbacks.
func WithNavigationActivitySink(sink ActivitySink) NavigationOption {
	return func(s *NavigationService) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithNavigationFallback replaces the compiled-in fallback tree.
func WithNavigationFallback(items []NavigationItem) NavigationOption {
	return func(s *NavigationService) {
		if items != nil {
			s.fallback = items
		}
	}
}

// NewNavigationService returns a service bound to cfg.
func NewNavigationService(cfg Config, opts ...NavigationOption) *NavigationService {
	s := &NavigationService{
		httpClient: http.DefaultClient,
		cfg:        cfg,
		logger:     defLogger{},
		sink:       noopActivitySink{},
		fallback:   FallbackNavigation(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// LoadNavigation fetches the menu variant from the navigation
// endpoint. Any failure, transport or structural, resolves to the
// static fallback tree; the error is retained for inspection through
// Err() but never returned.
func (s *NavigationService) LoadNavigation(ctx context.Context, navType NavigationType) []NavigationItem {
	items, err := s.fetch(ctx, "/api/navigation", navType)
	if err != nil {
		return s.resolveFallback(ctx, navType, err)
	}
	return s.resolve(ctx, navType, items)
}

// LoadUserNavigation fetches the per-user menu variant. A failure
// degrades to the generic navigation, which in turn degrades to the
// static fallback, so the caller always gets a tree.
func (s *NavigationService) LoadUserNavigation(ctx context.Context, navType NavigationType) []NavigationItem {
	items, err := s.fetch(ctx, "/api/navigation/user", navType)
	if err != nil {
		s.logger.Warn("user navigation unavailable, degrading to generic: %v", err)
		return s.LoadNavigation(ctx, navType)
	}
	return s.resolve(ctx, navType, items)
}

// Items returns the most recently resolved tree.
func (s *NavigationService) Items() []NavigationItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items
}

// Source reports where the current tree came from: "api" or
// "fallback". Empty before the first load.
func (s *NavigationService) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Err returns the error behind the current fallback, nil when the
// current tree came from the API.
func (s *NavigationService) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *NavigationService) fetch(ctx context.Context, path string, navType NavigationType) ([]apiNavigationItem, error) {
	if navType == "" {
		navType = NavigationDefault
	}

	url := fmt.Sprintf("%s%s?type=%s", s.cfg.GetAPIBaseURL(), path, navType)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to build navigation request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "navigation request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerrors.New("navigation endpoint returned non-OK status", goerrors.CategoryOperation).
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}

	env := apiEnvelope{}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed navigation response")
	}

	if !env.Success {
		return nil, goerrors.New("navigation endpoint reported failure", goerrors.CategoryOperation)
	}

	variants := map[NavigationType][]apiNavigationItem{}
	if err := json.Unmarshal(env.Data, &variants); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed navigation payload")
	}

	items, ok := variants[navType]
	if !ok {
		return nil, goerrors.New("navigation variant missing from response", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"type": string(navType)})
	}

	return items, nil
}

func (s *NavigationService) resolve(ctx context.Context, navType NavigationType, items []apiNavigationItem) []NavigationItem {
	converted := convertNavigationTree(items)

	s.mu.Lock()
	s.items = converted
	s.source = NavigationSourceAPI
	s.lastErr = nil
	s.mu.Unlock()

	s.record(ctx, ActivityEventNavigationLoaded, navType, nil)

	return converted
}

func (s *NavigationService) resolveFallback(ctx context.Context, navType NavigationType, cause error) []NavigationItem {
	s.logger.Warn("navigation load failed, serving fallback tree: %v", cause)

	s.mu.Lock()
	s.items = s.fallback
	s.source = NavigationSourceFallback
	s.lastErr = cause
	s.mu.Unlock()

	s.record(ctx, ActivityEventNavigationFallback, navType, cause)

	return s.fallback
}

func (s *NavigationService) record(ctx context.Context, eventType ActivityEventType, navType NavigationType, cause error) {
	metadata := map[string]any{"type": string(navType)}
	if cause != nil {
		metadata["error"] = cause.Error()
	}

	if err := s.sink.Record(ctx, ActivityEvent{
		EventType: eventType,
		Metadata:  metadata,
	}); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

// convertNavigationTree maps the wire tree to the rendered tree.
// Hidden nodes are dropped with their whole subtree. When every child
// of a node is hidden the node keeps no children slice at all, so a
// collapsible with nothing to show serializes without a children
// field.
func convertNavigationTree(items []apiNavigationItem) []NavigationItem {
	if len(items) == 0 {
		return nil
	}

	out := make([]NavigationItem, 0, len(items))
	for _, item := range items {
		if item.Hidden {
			continue
		}

		id := item.ID
		if id == "" {
			id = item.Key
		}

		node := NavigationItem{
			ID:       id,
			Title:    item.Title,
			Type:     item.Type,
			Icon:     item.Icon,
			Link:     item.Link,
			Badge:    item.Badge,
			Disabled: item.Disabled,
		}

		if item.Type == NavigationItemGroup || item.Type == NavigationItemCollapsible {
			node.Children = convertNavigationTree(item.Children)
		}

		out = append(out, node)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
