package providers

import (
	"strings"

	"lenslink/internal/core/domain"
)

// analyzePrompt is the text sent with an image, or alone for a text-only
// analysis which must carry context.
func analyzePrompt(req domain.AnalyzeRequest) (string, error) {
	persona := strings.TrimSpace(req.Persona)
	extra := strings.TrimSpace(req.Context)

	if len(req.Image) == 0 && extra == "" {
		return "", domain.ErrMissingContext
	}
	if extra == "" {
		return persona, nil
	}
	if persona == "" {
		return extra, nil
	}
	return persona + "\n\nContext: " + extra, nil
}

func followUpPrompt(req domain.FollowUpRequest) string {
	if strings.TrimSpace(req.Context) == "" {
		return req.Question
	}
	return "Context: " + req.Context + "\n\nQuestion: " + req.Question
}
