package aegisx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

var _ Config = (*RuntimeConfig)(nil)

// RuntimeConfig carries the client configuration. Compiled-in defaults
// come from DefaultRuntimeConfig; a config document fetched once at
// startup (LoadRuntimeConfig) overrides whichever fields it sets.
type RuntimeConfig struct {
	APIBaseURL        string          `json:"apiUrl,omitempty"`
	LoginRoute        string          `json:"loginRoute,omitempty"`
	DefaultRoute      string          `json:"defaultRoute,omitempty"`
	AuthExcludePaths  []string        `json:"authExcludePaths,omitempty"`
	CorrelationHeader string          `json:"correlationHeader,omitempty"`
	TimestampHeader   string          `json:"timestampHeader,omitempty"`
	ErrorLogPath      string          `json:"errorLogPath,omitempty"`
	Features          map[string]bool `json:"features,omitempty"`
}

// DefaultRuntimeConfig returns the compiled-in defaults.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		LoginRoute:        "/login",
		DefaultRoute:      "/dashboard",
		AuthExcludePaths:  []string{"/api/auth/"},
		CorrelationHeader: "X-Correlation-ID",
		TimestampHeader:   "X-Client-Timestamp",
		ErrorLogPath:      "/api/logs/client-errors",
		Features:          map[string]bool{},
	}
}

// LoadRuntimeConfig fetches the runtime config document (an http(s)
// URL or a local file path), overlays it on the compiled-in defaults
// and validates the result. The fetch happens exactly once; on any
// failure the defaults are returned alongside the error so startup can
// proceed degraded.
func LoadRuntimeConfig(ctx context.Context, client *http.Client, source string) (*RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()

	raw, err := readConfigSource(ctx, client, source)
	if err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryOperation, "unable to load runtime config").
			WithMetadata(map[string]any{"source": source})
	}

	override := &RuntimeConfig{}
	if err := json.Unmarshal(raw, override); err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse runtime config").
			WithMetadata(map[string]any{"source": source})
	}

	cfg.merge(override)

	if err := cfg.Validate(); err != nil {
		return DefaultRuntimeConfig(), goerrors.Wrap(err, goerrors.CategoryValidation, "invalid runtime config")
	}

	return cfg, nil
}

func readConfigSource(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if client == nil {
			client = http.DefaultClient
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("config fetch returned status %d", resp.StatusCode)
		}

		return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	}

	return os.ReadFile(source)
}

// merge overlays non-zero fields of other on top of c.
func (c *RuntimeConfig) merge(other *RuntimeConfig) {
	if other == nil {
		return
	}

	if other.APIBaseURL != "" {
		c.APIBaseURL = strings.TrimSuffix(other.APIBaseURL, "/")
	}
	if other.LoginRoute != "" {
		c.LoginRoute = other.LoginRoute
	}
	if other.DefaultRoute != "" {
		c.DefaultRoute = other.DefaultRoute
	}
	if len(other.AuthExcludePaths) > 0 {
		c.AuthExcludePaths = other.AuthExcludePaths
	}
	if other.CorrelationHeader != "" {
		c.CorrelationHeader = other.CorrelationHeader
	}
	if other.TimestampHeader != "" {
		c.TimestampHeader = other.TimestampHeader
	}
	if other.ErrorLogPath != "" {
		c.ErrorLogPath = other.ErrorLogPath
	}
	for name, enabled := range other.Features {
		c.Features[name] = enabled
	}
}

// Validate checks the merged configuration.
func (c *RuntimeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.APIBaseURL, is.URL),
		validation.Field(&c.LoginRoute, validation.Required, validation.By(mustBeRoute)),
		validation.Field(&c.DefaultRoute, validation.Required, validation.By(mustBeRoute)),
		validation.Field(&c.ErrorLogPath, validation.Required, validation.By(mustBeRoute)),
	)
}

func mustBeRoute(value any) error {
	route, _ := value.(string)
	if route == "" || strings.HasPrefix(route, "/") {
		return nil
	}
	return fmt.Errorf("must start with /")
}

func (c *RuntimeConfig) GetAPIBaseURL() string {
	return strings.TrimSuffix(c.APIBaseURL, "/")
}

func (c *RuntimeConfig) GetLoginRoute() string {
	return c.LoginRoute
}

func (c *RuntimeConfig) GetDefaultRoute() string {
	return c.DefaultRoute
}

func (c *RuntimeConfig) GetAuthExcludePaths() []string {
	return c.AuthExcludePaths
}

func (c *RuntimeConfig) GetCorrelationHeader() string {
	return c.CorrelationHeader
}

func (c *RuntimeConfig) GetTimestampHeader() string {
	return c.TimestampHeader
}

func (c *RuntimeConfig) GetErrorLogPath() string {
	return c.ErrorLogPath
}

func (c *RuntimeConfig) GetFeatureFlag(name string) bool {
	return c.Features[name]
}
