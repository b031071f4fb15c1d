// Package proxy provides the relay's edge server: a reverse proxy in front of an
// OpenAI-compatible API that swaps an allowlisted access code for the
// server-side API key, plus a cached release manifest endpoint for the desktop
// client's updater.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/relay/pkg/cache"
	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/release"
)

// Paths answered by the relay itself. Everything else is forwarded.
const (
	PathRoot          = "/"
	PathFavicon       = "/favicon.ico"
	PathLatestVersion = "/tauri-chatgpt/latest"

	// LivenessText is the body served at PathRoot.
	LivenessText = "一切安好~"

	// versionCacheKey is the only key the version cache ever holds.
	versionCacheKey = "Tauri-ChatGPT"

	headerRequestID = "X-Request-Id"
)

// Route labels used in logs and metrics.
const (
	routeOptions = "options"
	routeFavicon = "favicon"
	routeVersion = "version"
	routeRoot    = "root"
	routeProxy   = "proxy"
)

// corsHeaders are sent in answer to preflight requests.
var corsHeaders = map[string]string{
	fiber.HeaderAccessControlAllowOrigin:  "*",
	fiber.HeaderAccessControlAllowMethods: "GET, POST, PUT, DELETE",
	fiber.HeaderAccessControlAllowHeaders: "Content-Type, Authorization, " + HeaderAuthCode,
}

// ReleaseSource produces the release manifest served at PathLatestVersion.
type ReleaseSource interface {
	Latest(ctx context.Context) string
}

// Proxy is the relay's HTTP edge server.
// The only state shared between requests is the version cache.
type Proxy struct {
	config     Config
	logger     *zap.Logger
	httpClient *http.Client
	authorizer *Authorizer
	versions   *cache.TTLCache
	releases   ReleaseSource
	metrics    *proxyMetrics

	server        *fiber.App
	metricsServer *fiber.App
}

// New creates a new Proxy.
func New(config Config, logger *zap.Logger) (*Proxy, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	releaseClient := &http.Client{Timeout: config.ReleaseTimeout.Duration()}

	p := &Proxy{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: config.UpstreamTimeout.Duration(),
			// Redirects are relayed to the client, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		authorizer: NewAuthorizer(config.UpstreamKey, config.AllowedCodes),
		versions:   cache.New(config.VersionCacheTTL.Duration()),
		releases:   release.NewFetcher(config.ReleaseAPIURL, config.ReleaseAssetName, releaseClient, logger),
		metrics:    newProxyMetrics(),
	}

	p.server = fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		ErrorHandler:          p.handleError,
		BodyLimit:             config.MaxBodySize,
		// Local routes match their exact path only; "/FAVICON.ICO" and
		// "/favicon.ico/" are forwarded.
		CaseSensitive: true,
		StrictRouting: true,
	})

	p.server.Use(p.logRequest)

	// Registration order is precedence order.
	p.server.Options("*", p.handleOptions)
	p.server.All(PathFavicon, p.handleFavicon)
	p.server.All(PathLatestVersion, p.handleLatestVersion)
	p.server.All(PathRoot, p.handleRoot)
	p.server.All("*", p.handleProxy)

	if config.MetricsAddr != "" {
		p.metricsServer = fiber.New(fiber.Config{DisableStartupMessage: true})
		p.metricsServer.Get("/metrics", adaptor.HTTPHandler(
			promhttp.HandlerFor(p.metrics.registry, promhttp.HandlerOpts{}),
		))
	}

	return p, nil
}

// Run starts the proxy server on the configured listening address and blocks
// until it stops.
func (p *Proxy) Run() error {
	p.logger.Info("starting relay server",
		zap.String("listen", p.config.ListenAddr),
		zap.String("upstream_host", p.config.UpstreamHost),
		zap.Bool("key_injection", p.config.UpstreamKey != ""),
		zap.Duration("version_cache_ttl", p.versions.TTL()),
	)

	if p.metricsServer != nil {
		go func() {
			p.logger.Info("starting metrics server", zap.String("listen", p.config.MetricsAddr))
			if err := p.metricsServer.Listen(p.config.MetricsAddr); err != nil {
				p.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	return p.server.Listen(p.config.ListenAddr)
}

// Shutdown gracefully stops the servers, waiting for in-flight requests until
// ctx is done.
func (p *Proxy) Shutdown(ctx context.Context) error {
	var errs []error
	if p.metricsServer != nil {
		errs = append(errs, p.metricsServer.ShutdownWithContext(ctx))
	}
	errs = append(errs, p.server.ShutdownWithContext(ctx))
	return errors.Join(errs...)
}

// logRequest logs every request and tags it with a request id.
func (p *Proxy) logRequest(c *fiber.Ctx) error {
	id := c.Get(headerRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(headerRequestID, id)

	p.logger.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("request_id", id),
	)

	return c.Next()
}

func (p *Proxy) handleOptions(c *fiber.Ctx) error {
	p.metrics.requestsTotal.WithLabelValues(routeOptions).Inc()
	for k, v := range corsHeaders {
		c.Set(k, v)
	}
	c.Status(fiber.StatusOK)
	return nil
}

func (p *Proxy) handleFavicon(c *fiber.Ctx) error {
	p.metrics.requestsTotal.WithLabelValues(routeFavicon).Inc()
	c.Status(fiber.StatusOK)
	return nil
}

func (p *Proxy) handleRoot(c *fiber.Ctx) error {
	p.metrics.requestsTotal.WithLabelValues(routeRoot).Inc()
	return c.SendString(LivenessText)
}

// handleLatestVersion serves the release manifest from cache, refreshing it on
// a miss. Concurrent misses each fetch; the last write wins. A degraded "{}"
// is cached like any other value.
func (p *Proxy) handleLatestVersion(c *fiber.Ctx) error {
	p.metrics.requestsTotal.WithLabelValues(routeVersion).Inc()
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	if manifest, ok := p.versions.Get(versionCacheKey); ok {
		p.metrics.versionCacheTotal.WithLabelValues("hit").Inc()
		return c.SendString(manifest)
	}

	p.metrics.versionCacheTotal.WithLabelValues("miss").Inc()
	p.logger.Debug("version cache miss, fetching release manifest")

	manifest := p.releases.Latest(c.UserContext())
	p.versions.Set(versionCacheKey, manifest)

	return c.SendString(manifest)
}

// handleError turns any error escaping a handler into the JSON error envelope.
func (p *Proxy) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	p.logger.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", code),
		zap.Error(err),
	)

	return c.Status(code).JSON(llm.NewErrorResponse(err.Error()))
}
