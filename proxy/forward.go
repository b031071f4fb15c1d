package proxy

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/relay/pkg/llm"
)

// hopHeaders are headers that should not be forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// handleProxy authorizes the request and forwards it upstream.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	p.metrics.requestsTotal.WithLabelValues(routeProxy).Inc()

	header, decision, err := p.authorizer.Authorize(requestHeader(c))
	switch {
	case errors.Is(err, ErrAccessDenied):
		p.metrics.authDecisions.WithLabelValues(decisionDenied).Inc()
		p.logger.Info("request rejected", zap.String("path", c.Path()), zap.String("reason", "no access code"))
		return c.Status(fiber.StatusForbidden).SendString(accessDeniedMessage)
	case errors.Is(err, ErrAuthCodeIllegal):
		p.metrics.authDecisions.WithLabelValues(decisionIllegal).Inc()
		p.logger.Info("request rejected", zap.String("path", c.Path()), zap.String("reason", "illegal access code"))
		return c.Status(fiber.StatusUnauthorized).JSON(llm.NewErrorResponse(authCodeIllegalMessage))
	case err != nil:
		return err
	}
	p.metrics.authDecisions.WithLabelValues(decision.String()).Inc()

	if err := p.forward(c, header, decision); err != nil {
		p.metrics.upstreamErrors.Inc()
		p.logger.Error("failed to forward request", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.NewErrorResponse(err.Error()))
	}

	return nil
}

// targetURL is the upstream URL for the request: the configured upstream host
// if any, otherwise the host the client addressed, with the original path and
// query.
func (p *Proxy) targetURL(c *fiber.Ctx) (string, error) {
	host := p.config.UpstreamHost
	if host == "" {
		host = string(c.Request().Host())
	}
	if host == "" {
		return "", ErrNoUpstreamHost
	}

	return p.config.UpstreamScheme + "://" + host + string(c.Request().RequestURI()), nil
}

// forward sends the request upstream with header and relays the response.
// Event streams are relayed chunk by chunk as they arrive.
func (p *Proxy) forward(c *fiber.Ctx, header http.Header, decision Decision) error {
	startTime := time.Now()

	target, err := p.targetURL(c)
	if err != nil {
		return err
	}

	// The raw body goes upstream with its Content-Encoding header intact.
	// fasthttp reuses the request buffer once the handler returns, and a
	// streamed response outlives the handler.
	body := bytes.Clone(c.BodyRaw())

	if req, ok := llm.PeekChatRequest(body); ok && req.Model != "" {
		p.logger.Debug("forwarding chat request",
			zap.String("model", req.Model),
			zap.Int("message_count", len(req.Messages)),
			zap.Bool("stream", req.Stream),
		)
	}

	httpReq, err := http.NewRequestWithContext(c.Context(), c.Method(), target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upstream request: %w", err)
	}
	httpReq.Header = outboundHeader(header)

	p.logger.Debug("forwarding request to upstream",
		zap.String("method", c.Method()),
		zap.String("url", target),
		zap.String("decision", decision.String()),
		zap.Int("body_size", len(body)),
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("upstream request failed: %w", err)
	}

	p.metrics.upstreamDuration.WithLabelValues(strconv.Itoa(httpResp.StatusCode)).Observe(time.Since(startTime).Seconds())

	if !isEventStream(httpResp.Header) {
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("read upstream response: %w", err)
		}

		p.logger.Debug("received response from upstream",
			zap.Int("status", httpResp.StatusCode),
			zap.Int("body_size", len(respBody)),
			zap.Duration("duration", time.Since(startTime)),
		)

		c.Status(httpResp.StatusCode)
		copyResponseHeader(c, httpResp.Header)
		return c.Send(respBody)
	}

	c.Status(httpResp.StatusCode)
	copyResponseHeader(c, httpResp.Header)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer httpResp.Body.Close()

		n, err := relayStream(w, httpResp.Body)
		if err != nil {
			p.logger.Warn("event stream interrupted", zap.Int64("bytes", n), zap.Error(err))
			return
		}

		p.logger.Debug("event stream complete",
			zap.Int64("bytes", n),
			zap.Duration("duration", time.Since(startTime)),
		)
	}))

	return nil
}

// relayStream copies src to w, flushing after every read so clients see
// tokens as soon as the upstream produces them.
func relayStream(w *bufio.Writer, src io.Reader) (int64, error) {
	var total int64
	buf := make([]byte, 32*1024)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return total, err
			}
			if err := w.Flush(); err != nil {
				return total, err
			}
			total += int64(n)
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

// requestHeader copies the inbound request headers into a fresh http.Header.
// The inbound request is never modified.
func requestHeader(c *fiber.Ctx) http.Header {
	header := make(http.Header)
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

// outboundHeader returns header without hop-by-hop fields and the fields the
// HTTP client derives itself.
func outboundHeader(header http.Header) http.Header {
	out := header.Clone()
	for _, h := range hopHeaders {
		out.Del(h)
	}
	out.Del("Host")
	out.Del("Content-Length")
	return out
}

func copyResponseHeader(c *fiber.Ctx, header http.Header) {
	skip := make(map[string]bool, len(hopHeaders)+2)
	for _, h := range hopHeaders {
		skip[h] = true
	}
	// fasthttp writes its own.
	skip["Content-Length"] = true
	skip["Date"] = true

	for key, values := range header {
		if skip[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			c.Response().Header.Add(key, v)
		}
	}
}

func isEventStream(header http.Header) bool {
	return strings.HasPrefix(header.Get("Content-Type"), "text/event-stream")
}
