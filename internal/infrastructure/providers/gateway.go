package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"lenslink/internal/core/domain"
	"lenslink/internal/core/ports"
	"lenslink/pkg/config"
	apperrors "lenslink/pkg/errors"
	"lenslink/pkg/tracing"
	"lenslink/pkg/utils"
)

// CallObserver is notified after every provider round trip
type CallObserver interface {
	ObserveProviderCall(provider, operation string, duration time.Duration, err error)
}

type registeredProvider struct {
	provider     ports.AIProvider
	defaultModel string
}

// Gateway routes analysis calls to a named provider and bounds each call
// with a timeout. Failures are never retried.
type Gateway struct {
	providers       map[string]registeredProvider
	defaultProvider string
	timeout         time.Duration
	observer        CallObserver
	logger          *zap.SugaredLogger
}

func NewGateway(defaultProvider string, timeout time.Duration, logger *zap.SugaredLogger) *Gateway {
	return &Gateway{
		providers:       make(map[string]registeredProvider),
		defaultProvider: defaultProvider,
		timeout:         timeout,
		logger:          logger,
	}
}

// NewGatewayFromConfig registers the gemini and ollama backends
func NewGatewayFromConfig(cfg *config.Config, client *http.Client, logger *zap.SugaredLogger) *Gateway {
	if client == nil {
		client = &http.Client{}
	}

	g := NewGateway(cfg.Providers.Default, cfg.Providers.Timeout, logger)
	g.Register(NewGeminiProvider(cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.Endpoint, client), cfg.Providers.Gemini.Model)
	g.Register(NewOllamaProvider(cfg.Providers.Ollama.Endpoint, client), cfg.Providers.Ollama.Model)
	return g
}

var _ ports.ProviderGateway = (*Gateway)(nil)

func (g *Gateway) Register(provider ports.AIProvider, defaultModel string) {
	g.providers[provider.Name()] = registeredProvider{provider: provider, defaultModel: defaultModel}
}

// SetObserver installs a call observer, typically the metrics collector
func (g *Gateway) SetObserver(observer CallObserver) {
	g.observer = observer
}

// Providers lists registered provider names
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Gateway) Resolve(provider, model string) (string, string) {
	if provider == "" {
		provider = g.defaultProvider
	}
	if model == "" {
		if p, ok := g.providers[provider]; ok {
			model = p.defaultModel
		}
	}
	return provider, model
}

func (g *Gateway) Analyze(ctx context.Context, provider string, req domain.AnalyzeRequest) (string, error) {
	provider, req.Model = g.Resolve(provider, req.Model)
	return g.call(ctx, "analyze", provider, req.Model, func(ctx context.Context, p ports.AIProvider) (string, error) {
		return p.Analyze(ctx, req)
	})
}

func (g *Gateway) AskFollowUp(ctx context.Context, provider string, req domain.FollowUpRequest) (string, error) {
	provider, req.Model = g.Resolve(provider, req.Model)
	return g.call(ctx, "followup", provider, req.Model, func(ctx context.Context, p ports.AIProvider) (string, error) {
		return p.AskFollowUp(ctx, req)
	})
}

func (g *Gateway) call(ctx context.Context, operation, provider, model string, fn func(context.Context, ports.AIProvider) (string, error)) (string, error) {
	registered, ok := g.providers[provider]
	if !ok {
		return "", apperrors.WrapError(domain.ErrUnknownProvider, apperrors.ErrCodeConfiguration,
			fmt.Sprintf("unknown AI provider %q", provider), http.StatusBadRequest).
			WithContext("provider", provider)
	}

	ctx, span := tracing.TraceProviderCall(ctx, operation, provider, model)
	defer span.End()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := fn(ctx, registered.provider)
	duration := time.Since(start)

	if err != nil && apperrors.GetAppError(err) == nil {
		err = redactTransportError(err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("no answer within %s: %w", g.timeout, err)
		}
		err = apperrors.NewUpstreamError(provider, err).WithContext("model", model)
	}

	if g.observer != nil {
		g.observer.ObserveProviderCall(provider, operation, duration, err)
	}

	if err != nil {
		tracing.RecordError(ctx, err)
		g.logger.Warnw("Provider call failed",
			"provider", provider,
			"model", model,
			"operation", operation,
			"duration", duration,
			"error", err,
		)
		return "", err
	}

	g.logger.Debugw("Provider call succeeded",
		"provider", provider,
		"model", model,
		"operation", operation,
		"duration", duration,
	)
	return answer, nil
}

// redactTransportError masks query values and user info in the request URL a
// transport error quotes. Its text reaches clients and logs.
func redactTransportError(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	return fmt.Errorf("%s %q: %w", urlErr.Op, redactURL(urlErr.URL), urlErr.Err)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparsable url>"
	}
	if u.User != nil {
		u.User = url.User(utils.MaskSensitive(u.User.Username(), 0))
	}
	if u.RawQuery != "" {
		params := strings.Split(u.RawQuery, "&")
		for i, param := range params {
			if name, value, ok := strings.Cut(param, "="); ok {
				params[i] = name + "=" + utils.MaskSensitive(value, 0)
			}
		}
		u.RawQuery = strings.Join(params, "&")
	}
	return u.String()
}
