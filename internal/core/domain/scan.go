package domain

// ThreadEntry is one follow-up exchange attached to a scan record.
type ThreadEntry struct {
	Prompt    string `json:"prompt"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}

// ScanRecord is one successful analysis. ID never changes after creation and
// Thread only grows at the end.
type ScanRecord struct {
	ID               string        `json:"id"`
	ImageRef         string        `json:"imageRef"`
	Answer           string        `json:"answer"`
	ProviderName     string        `json:"providerName"`
	ModelName        string        `json:"modelName"`
	TimestampDisplay string        `json:"timestampDisplay"`
	TimestampISO     string        `json:"timestampISO"`
	Thread           []ThreadEntry `json:"thread"`
}

// Clone returns a deep copy so callers cannot mutate stored threads.
func (r ScanRecord) Clone() ScanRecord {
	out := r
	out.Thread = make([]ThreadEntry, len(r.Thread))
	copy(out.Thread, r.Thread)
	return out
}
