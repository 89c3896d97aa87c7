package domain

// AnalyzeRequest asks a provider to describe an image. Without an image the
// call is text-only and Context must carry the material to reason about.
type AnalyzeRequest struct {
	Persona  string
	Image    []byte
	MimeType string
	Model    string
	Context  string
}

// FollowUpRequest is a text-only question about an earlier answer.
type FollowUpRequest struct {
	Question  string
	Model     string
	Context   string
	WebSearch bool
}

// CaptureRequest is an uploaded image waiting for analysis.
type CaptureRequest struct {
	Origin      ConnectionID
	Image       []byte
	Filename    string
	ContentType string
	Provider    string
	Model       string
	Persona     string
}

// FollowUpCommand is a client's askFollowUp message resolved to a connection.
type FollowUpCommand struct {
	Origin    ConnectionID
	ParentID  string
	Prompt    string
	Context   string
	Provider  string
	Model     string
	WebSearch bool
}
