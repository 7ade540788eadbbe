package admin

import (
	"encoding/json"
	"sort"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/ai-gateway/internal/cache"
	"github.com/nulpointcorp/ai-gateway/internal/config"
	"github.com/nulpointcorp/ai-gateway/internal/guardrails"
	"github.com/nulpointcorp/ai-gateway/internal/logger"
	"github.com/nulpointcorp/ai-gateway/internal/ratelimit"
	"github.com/nulpointcorp/ai-gateway/internal/stats"
	"github.com/nulpointcorp/ai-gateway/pkg/apierr"
)

// Handlers is the thin admin-plane HTTP surface. It performs no business
// logic of its own beyond validating and swapping the State snapshot,
// except for the rate-limit plan and verbose-logging toggles, which must
// also push into the limiter/logger the dispatcher actually consults,
// since those two collaborators keep their own live state instead of
// reading the admin Snapshot on every call.
type Handlers struct {
	state   *State
	cache   cache.Cache
	stats   *stats.Stats
	limiter ratelimit.Limiter
	log     *logger.Logger
}

// New builds the admin Handlers over the given collaborators.
func New(state *State, c cache.Cache, s *stats.Stats, limiter ratelimit.Limiter, log *logger.Logger) *Handlers {
	return &Handlers{state: state, cache: c, stats: s, limiter: limiter, log: log}
}

// Router builds a fasthttp/router.Router exposing every admin operation.
func (h *Handlers) Router() *router.Router {
	r := router.New()

	r.GET("/admin/system-prompt", h.getSystemPrompt)
	r.POST("/admin/system-prompt", h.setSystemPrompt)

	r.GET("/admin/guardrails", h.getGuardrails)
	r.POST("/admin/guardrails", h.setGuardrails)

	r.GET("/admin/prompt-cache", h.getPromptCache)
	r.DELETE("/admin/prompt-cache", h.clearPromptCache)

	r.GET("/admin/rate-limit-plan", h.getRateLimitPlan)
	r.POST("/admin/rate-limit-plan", h.setRateLimitPlan)
	r.DELETE("/admin/rate-limit-plan", h.deleteRateLimitPlan)

	r.GET("/admin/logging-config", h.getLoggingConfig)
	r.POST("/admin/logging-config", h.setLoggingConfig)

	r.GET("/admin/verbose-logging", h.getVerboseLogging)
	r.POST("/admin/verbose-logging", h.setVerboseLogging)

	r.GET("/admin/stats", h.getStats)

	return r
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		apierr.Write(ctx, fasthttp.StatusInternalServerError, "failed to serialize response", apierr.TypeServerError, apierr.CodeInternalError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
}

// ── systemPrompt ─────────────────────────────────────────────────────────────

type systemPromptBody struct {
	SystemPrompt string `json:"systemPrompt"`
}

func (h *Handlers) getSystemPrompt(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, systemPromptBody{SystemPrompt: h.state.Get().SystemPrompt})
}

func (h *Handlers) setSystemPrompt(ctx *fasthttp.RequestCtx) {
	var body systemPromptBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
		apierr.Write(ctx, fasthttp.StatusBadRequest, "invalid JSON body", apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}
	snap := h.state.Get()
	snap.SystemPrompt = body.SystemPrompt
	h.state.Publish(snap)
	writeJSON(ctx, body)
}

// ── guardrails ───────────────────────────────────────────────────────────────

func (h *Handlers) getGuardrails(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, h.state.Get().Guardrails)
}

func (h *Handlers) setGuardrails(ctx *fasthttp.RequestCtx) {
	var cfg guardrails.Config
	if err := json.Unmarshal(ctx.PostBody(), &cfg); err != nil {
		apierr.Write(ctx, fasthttp.StatusBadRequest, "invalid JSON body", apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}
	if cfg.MinLength > cfg.MaxLength {
		apierr.Write(ctx, fasthttp.StatusBadRequest, "minLength must be <= maxLength", apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}
	snap := h.state.Get()
	snap.Guardrails = cfg
	h.state.Publish(snap)
	writeJSON(ctx, cfg)
}

// ── promptCache ──────────────────────────────────────────────────────────────

func (h *Handlers) getPromptCache(ctx *fasthttp.RequestCtx) {
	entries, err := h.cache.Snapshot(ctx)
	if err != nil {
		apierr.Write(ctx, fasthttp.StatusInternalServerError, err.Error(), apierr.TypeServerError, apierr.CodeInternalError)
		return
	}
	writeJSON(ctx, map[string]any{"size": len(entries), "entries": entries})
}

func (h *Handlers) clearPromptCache(ctx *fasthttp.RequestCtx) {
	if err := h.cache.Clear(ctx); err != nil {
		apierr.Write(ctx, fasthttp.StatusInternalServerError, err.Error(), apierr.TypeServerError, apierr.CodeInternalError)
		return
	}
	writeJSON(ctx, map[string]string{"status": "cleared"})
}

// ── rateLimitPlan ────────────────────────────────────────────────────────────

func (h *Handlers) getRateLimitPlan(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, h.state.Get().CurrentPlan)
}

func (h *Handlers) setRateLimitPlan(ctx *fasthttp.RequestCtx) {
	var plan ratelimit.Plan
	if err := json.Unmarshal(ctx.PostBody(), &plan); err != nil {
		apierr.Write(ctx, fasthttp.StatusBadRequest, "invalid JSON body", apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}
	if plan.RequestsPerWindow <= 0 || plan.WindowSeconds <= 0 {
		apierr.Write(ctx, fasthttp.StatusBadRequest, "requestsPerWindow and windowSeconds must be positive", apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}
	snap := h.state.Get()
	snap.CurrentPlan = &plan
	h.state.Publish(snap)
	if h.limiter != nil {
		h.limiter.SetPlan(&plan)
	}
	writeJSON(ctx, plan)
}

func (h *Handlers) deleteRateLimitPlan(ctx *fasthttp.RequestCtx) {
	snap := h.state.Get()
	snap.CurrentPlan = nil
	h.state.Publish(snap)
	if h.limiter != nil {
		h.limiter.SetPlan(nil)
	}
	writeJSON(ctx, map[string]string{"status": "deleted"})
}

// ── loggingConfig ────────────────────────────────────────────────────────────

func (h *Handlers) getLoggingConfig(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, h.state.Get().LoggingConfig)
}

func (h *Handlers) setLoggingConfig(ctx *fasthttp.RequestCtx) {
	var cfg config.LoggingConfig
	if err := json.Unmarshal(ctx.PostBody(), &cfg); err != nil {
		apierr.Write(ctx, fasthttp.StatusBadRequest, "invalid JSON body", apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}
	snap := h.state.Get()
	snap.LoggingConfig = cfg
	h.state.Publish(snap)
	writeJSON(ctx, cfg)
}

// ── verboseLogging ───────────────────────────────────────────────────────────

type verboseLoggingBody struct {
	VerboseLogging bool `json:"verboseLogging"`
}

func (h *Handlers) getVerboseLogging(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, verboseLoggingBody{VerboseLogging: h.state.Get().VerboseLogging})
}

func (h *Handlers) setVerboseLogging(ctx *fasthttp.RequestCtx) {
	var body verboseLoggingBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
		apierr.Write(ctx, fasthttp.StatusBadRequest, "invalid JSON body", apierr.TypeInvalidRequest, apierr.CodeInvalidRequest)
		return
	}
	snap := h.state.Get()
	snap.VerboseLogging = body.VerboseLogging
	h.state.Publish(snap)
	if h.log != nil {
		h.log.SetVerbose(body.VerboseLogging)
	}
	writeJSON(ctx, body)
}

// ── stats ────────────────────────────────────────────────────────────────────

// statsView is the exact token set the HTML dashboard's external template
// substitution requires; rendering the template itself is out of scope here.
type statsView struct {
	TotalRequests      int64    `json:"totalRequests"`
	SuccessfulRequests int64    `json:"successfulRequests"`
	FailedRequests     int64    `json:"failedRequests"`
	CacheHits          int64    `json:"cacheHits"`
	CacheMisses        int64    `json:"cacheMisses"`
	CacheHitRate       float64  `json:"cacheHitRate"`
	TotalInputTokens   int64    `json:"totalInputTokens"`
	TotalOutputTokens  int64    `json:"totalOutputTokens"`
	TotalErrors        int64    `json:"totalErrors"`
	RecentErrors       []string `json:"recentErrors"`

	RequestsLabels []string `json:"requestsLabels"`
	RequestsData   []int64  `json:"requestsData"`

	TokensLabels     []string `json:"tokensLabels"`
	InputTokensData  []int64  `json:"inputTokensData"`
	OutputTokensData []int64  `json:"outputTokensData"`

	ErrorLabels []string `json:"errorLabels"`
	ErrorData   []int64  `json:"errorData"`

	CacheSize int `json:"cacheSize"`
}

func (h *Handlers) getStats(ctx *fasthttp.RequestCtx) {
	snap := h.stats.Snapshot()

	var hitRate float64
	if total := snap.Requests.CacheHits + snap.Requests.CacheMisses; total > 0 {
		hitRate = float64(snap.Requests.CacheHits) / float64(total)
	}

	cacheSize := 0
	if h.cache != nil {
		if entries, err := h.cache.Snapshot(ctx); err == nil {
			cacheSize = len(entries)
		}
	}

	requestsLabels := sortedKeys(snap.Requests.ByProvider)
	requestsData := make([]int64, len(requestsLabels))
	for i, p := range requestsLabels {
		requestsData[i] = snap.Requests.ByProvider[p]
	}

	tokensLabels := sortedKeysUnion(snap.Tokens.InputByProvider, snap.Tokens.OutputByProvider)
	inputTokensData := make([]int64, len(tokensLabels))
	outputTokensData := make([]int64, len(tokensLabels))
	for i, p := range tokensLabels {
		inputTokensData[i] = snap.Tokens.InputByProvider[p]
		outputTokensData[i] = snap.Tokens.OutputByProvider[p]
	}

	errorLabels := sortedKeys(snap.Errors.ByType)
	errorData := make([]int64, len(errorLabels))
	for i, t := range errorLabels {
		errorData[i] = snap.Errors.ByType[t]
	}

	writeJSON(ctx, statsView{
		TotalRequests:      snap.Requests.Total,
		SuccessfulRequests: snap.Requests.Successful,
		FailedRequests:     snap.Requests.Failed,
		CacheHits:          snap.Requests.CacheHits,
		CacheMisses:        snap.Requests.CacheMisses,
		CacheHitRate:       hitRate,
		TotalInputTokens:   snap.Tokens.TotalInput,
		TotalOutputTokens:  snap.Tokens.TotalOutput,
		TotalErrors:        snap.Errors.Total,
		RecentErrors:       snap.Errors.RecentErrors,
		RequestsLabels:     requestsLabels,
		RequestsData:       requestsData,
		TokensLabels:       tokensLabels,
		InputTokensData:    inputTokensData,
		OutputTokensData:   outputTokensData,
		ErrorLabels:        errorLabels,
		ErrorData:          errorData,
		CacheSize:          cacheSize,
	})
}

func sortedKeys(m map[string]int64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysUnion(a, b map[string]int64) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
