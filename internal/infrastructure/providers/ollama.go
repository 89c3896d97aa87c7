package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"lenslink/internal/core/domain"
	"lenslink/internal/core/ports"
	apperrors "lenslink/pkg/errors"
)

const OllamaName = "ollama"

// OllamaProvider calls a local Ollama server without streaming
type OllamaProvider struct {
	client    *api.Client
	configErr error
}

func NewOllamaProvider(endpoint string, httpClient *http.Client) *OllamaProvider {
	if endpoint == "" {
		return &OllamaProvider{configErr: apperrors.NewConfigurationError(OllamaName, "Ollama endpoint is not configured")}
	}
	base, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return &OllamaProvider{configErr: apperrors.NewConfigurationError(OllamaName,
			fmt.Sprintf("invalid Ollama endpoint %q", endpoint))}
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaProvider{client: api.NewClient(base, httpClient)}
}

var _ ports.AIProvider = (*OllamaProvider)(nil)

func (p *OllamaProvider) Name() string {
	return OllamaName
}

func (p *OllamaProvider) Analyze(ctx context.Context, req domain.AnalyzeRequest) (string, error) {
	prompt, err := analyzePrompt(req)
	if err != nil {
		return "", apperrors.NewInvalidInputError(err.Error())
	}

	gen := &api.GenerateRequest{Model: req.Model, Prompt: prompt}
	if len(req.Image) > 0 {
		gen.Images = []api.ImageData{req.Image}
	}
	return p.generate(ctx, gen)
}

// AskFollowUp ignores WebSearch; local models have no search tool.
func (p *OllamaProvider) AskFollowUp(ctx context.Context, req domain.FollowUpRequest) (string, error) {
	return p.generate(ctx, &api.GenerateRequest{Model: req.Model, Prompt: followUpPrompt(req)})
}

func (p *OllamaProvider) generate(ctx context.Context, req *api.GenerateRequest) (string, error) {
	if p.configErr != nil {
		return "", p.configErr
	}
	if req.Model == "" {
		return "", apperrors.NewConfigurationError(OllamaName, "no Ollama model selected")
	}

	stream := false
	req.Stream = &stream

	var answer strings.Builder
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		answer.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer.String()) == "" {
		return "", fmt.Errorf("empty answer from model %s", req.Model)
	}
	return answer.String(), nil
}
