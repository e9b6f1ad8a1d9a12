package providerrouter

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
)

// providerTable is the recognised provider set from spec §4.1. Order does
// not matter here; model-name resolution is by exact tag match.
var providerTable = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"anthropic":  "https://api.anthropic.com/v1",
	"claude":     "https://api.anthropic.com/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"togetherai": "https://api.together.xyz/v1",
	"cohere":     "https://api.cohere.ai/compatibility/v1",
}

const defaultProviderTag = "openai"

// KnownProviderTags returns the canonical provider tags recognised by the
// router, for config to build its fallback-API-key table from.
func KnownProviderTags() []string {
	tags := make([]string, 0, len(providerTable))
	for tag := range providerTable {
		tags = append(tags, tag)
	}
	return tags
}

// Resolution is the outcome of routing one request: where to send it, which
// provider tag it belongs to (for telemetry low-cardinality tags), the
// resolved model name with any "provider@" / "url@" prefix stripped, and the
// bearer token to use.
type Resolution struct {
	BaseURL      string
	ProviderTag  string
	Model        string
	AuthToken    string
}

// Router implements spec §4.1's priority-ordered resolution plus a
// per-provider rate limiter and circuit breaker over configurable endpoint
// overrides.
type Router struct {
	health           *HealthManager
	baseURLOverrides []string
	overrideIndex    int
	fallbackKeys     map[string]string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New constructs a Router. baseURLOverride, if non-empty, replaces every
// resolved base URL (MODEL_BASE_URL, spec §6) with one endpoint picked from
// a comma-separated list, round-robin, skipping endpoints whose circuit is
// open (DESIGN.md: generalises the teacher's big/small-model endpoint
// rotation). fallbackKeys supplies provider-tag -> API key for requests that
// omit an Authorization header.
func New(baseURLOverride string, fallbackKeys map[string]string) *Router {
	var overrides []string
	for _, part := range strings.Split(baseURLOverride, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			overrides = append(overrides, trimmed)
		}
	}
	return &Router{
		health:           NewHealthManager(DefaultBreakerConfig()),
		baseURLOverrides: overrides,
		fallbackKeys:     fallbackKeys,
		limiters:         make(map[string]*rate.Limiter),
	}
}

// Health exposes the router's HealthManager so the orchestrator can report
// upstream call outcomes back into the breaker.
func (r *Router) Health() *HealthManager { return r.health }

// Resolve implements the four-tier resolution in spec §4.1:
//  1. a "provider@model" prefix embedded in the model name
//  2. a full URL prefix "http(s)://host/path@model"
//  3. the x-model-provider header (case-insensitive)
//  4. the built-in default (openai)
//
// Authentication is read from the case-insensitive Authorization header; its
// absence is an invalid_configuration error unless a fallback provider API
// key is configured.
func (r *Router) Resolve(req *http.Request, model string) (*Resolution, error) {
	baseURL, providerTag, effectiveModel := r.resolveModelAndProvider(req, model)

	token := bearerToken(req)
	if token == "" {
		token = r.fallbackKeys[providerTag]
	}
	if token == "" {
		return nil, apierror.New(apierror.KindInvalidConfiguration,
			"missing bearer token: no Authorization header and no configured fallback API key for provider "+providerTag)
	}

	if len(r.baseURLOverrides) > 0 {
		r.mu.Lock()
		baseURL = r.health.SelectHealthy(r.baseURLOverrides, &r.overrideIndex)
		r.mu.Unlock()
	}

	return &Resolution{
		BaseURL:     baseURL,
		ProviderTag: providerTag,
		Model:       effectiveModel,
		AuthToken:   token,
	}, nil
}

func (r *Router) resolveModelAndProvider(req *http.Request, model string) (baseURL, providerTag, effectiveModel string) {
	// Tier 1 & 2: an "@"-delimited prefix on the model name. Either a bare
	// provider tag ("anthropic@claude-3-5-sonnet") or a full URL
	// ("https://my-host/v1@my-model").
	if idx := strings.LastIndex(model, "@"); idx > 0 {
		prefix, rest := model[:idx], model[idx+1:]
		if strings.Contains(prefix, "://") {
			return prefix, tagForURL(prefix), rest
		}
		if base, ok := providerTable[strings.ToLower(prefix)]; ok {
			return base, strings.ToLower(prefix), rest
		}
	}

	// Tier 3: x-model-provider header.
	if header := req.Header.Get("x-model-provider"); header != "" {
		if base, ok := providerTable[strings.ToLower(header)]; ok {
			return base, strings.ToLower(header), model
		}
	}

	// Tier 4: built-in default.
	return providerTable[defaultProviderTag], defaultProviderTag, model
}

func tagForURL(url string) string {
	for tag, base := range providerTable {
		if strings.HasPrefix(url, base) {
			return tag
		}
	}
	return "custom"
}

// bearerToken extracts the token from a case-insensitive "Authorization:
// Bearer <token>" header.
func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// Limiter returns (creating if necessary) a token-bucket limiter for the
// given provider tag, so the router can fail fast with rate_limit_exceeded
// before placing load on an upstream that is already throttling us.
func (r *Router) Limiter(providerTag string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[providerTag]
	if !ok {
		// Conservative default: 5 requests/sec with a burst of 10, well
		// under every listed provider's documented floor-level rate limit.
		l = rate.NewLimiter(rate.Limit(5), 10)
		r.limiters[providerTag] = l
	}
	return l
}
