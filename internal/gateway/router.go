package gateway

import (
	"encoding/json"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/ai-gateway/internal/admin"
	"github.com/nulpointcorp/ai-gateway/internal/healthcheck"
	"github.com/nulpointcorp/ai-gateway/internal/metrics"
)

// DataPlaneServer builds the fasthttp.Server exposing /chat, /healthz,
// /readyz, and /metrics.
func DataPlaneServer(h *Handler, hc *healthcheck.Checker, met *metrics.Registry, corsOrigins []string) *fasthttp.Server {
	r := router.New()

	r.POST("/chat", h.Chat)
	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		writeJSON(ctx, hc.Snapshot())
	})
	r.GET("/readyz", func(ctx *fasthttp.RequestCtx) {
		if hc.ReadinessOK() {
			writeJSON(ctx, map[string]string{"status": "ok"})
			return
		}
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		writeJSON(ctx, map[string]string{"status": "unavailable"})
	})
	if met != nil {
		r.GET("/metrics", met.Handler())
	}

	handler := applyMiddleware(r.Handler,
		recovery,
		timing,
		corsHandler(corsOrigins),
		securityHeaders,
	)

	return &fasthttp.Server{
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}

// AdminPlaneServer builds the fasthttp.Server exposing the admin control
// surface.
func AdminPlaneServer(h *admin.Handlers) *fasthttp.Server {
	handler := applyMiddleware(h.Router().Handler,
		recovery,
		timing,
	)

	return &fasthttp.Server{
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	ctx.SetContentType("application/json")
	data, _ := json.Marshal(v)
	ctx.SetBody(data)
}
