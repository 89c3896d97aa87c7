package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"lenslink/internal/core/domain"
	"lenslink/internal/core/ports"
	apperrors "lenslink/pkg/errors"
)

const GeminiName = "gemini"

// GeminiProvider calls Gemini through the genai SDK. The API key travels in
// a request header, never in the URL.
type GeminiProvider struct {
	client *genai.Client
	// configErr is reported on every call when the client could not be built
	configErr error
}

func NewGeminiProvider(apiKey, endpoint string, httpClient *http.Client) *GeminiProvider {
	if apiKey == "" {
		return &GeminiProvider{configErr: apperrors.NewConfigurationError(GeminiName, "Gemini API key is not configured")}
	}
	if endpoint == "" {
		return &GeminiProvider{configErr: apperrors.NewConfigurationError(GeminiName, "Gemini endpoint is not configured")}
	}

	baseURL, version := splitEndpoint(endpoint)
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: version,
		},
	})
	if err != nil {
		return &GeminiProvider{configErr: apperrors.NewConfigurationError(GeminiName,
			fmt.Sprintf("Gemini client: %v", err))}
	}
	return &GeminiProvider{client: client}
}

var _ ports.AIProvider = (*GeminiProvider)(nil)

var apiVersionPattern = regexp.MustCompile(`^v\d+[a-z0-9]*$`)

// splitEndpoint turns ".../v1beta" into the SDK's base URL and API version.
func splitEndpoint(endpoint string) (string, string) {
	endpoint = strings.TrimSuffix(endpoint, "/")
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint + "/", ""
	}

	dir, last := "", u.Path
	if i := strings.LastIndex(u.Path, "/"); i >= 0 {
		dir, last = u.Path[:i], u.Path[i+1:]
	}
	if !apiVersionPattern.MatchString(last) {
		return endpoint + "/", ""
	}
	u.Path = dir + "/"
	return u.String(), last
}

func (p *GeminiProvider) Name() string {
	return GeminiName
}

func (p *GeminiProvider) Analyze(ctx context.Context, req domain.AnalyzeRequest) (string, error) {
	prompt, err := analyzePrompt(req)
	if err != nil {
		return "", apperrors.NewInvalidInputError(err.Error())
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(req.Image) > 0 {
		mimeType := req.MimeType
		if mimeType == "" {
			mimeType = http.DetectContentType(req.Image)
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image, mimeType))
	}

	return p.generate(ctx, req.Model, parts, nil)
}

func (p *GeminiProvider) AskFollowUp(ctx context.Context, req domain.FollowUpRequest) (string, error) {
	var config *genai.GenerateContentConfig
	if req.WebSearch {
		config = &genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		}
	}
	return p.generate(ctx, req.Model, []*genai.Part{genai.NewPartFromText(followUpPrompt(req))}, config)
}

func (p *GeminiProvider) generate(ctx context.Context, model string, parts []*genai.Part, config *genai.GenerateContentConfig) (string, error) {
	if p.configErr != nil {
		return "", p.configErr
	}
	if model == "" {
		return "", apperrors.NewConfigurationError(GeminiName, "no Gemini model selected")
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("no candidates returned")
	}

	answer := resp.Text()
	if answer == "" {
		return "", fmt.Errorf("empty answer (finish reason %s)", resp.Candidates[0].FinishReason)
	}
	return answer, nil
}
