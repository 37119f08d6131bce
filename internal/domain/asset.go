package domain

import "time"

// Visibility enumerates record sharing states.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// ArtifactSource is one normalized output unit of a succeeded prediction.
type ArtifactSource struct {
	SourceURL string
}

// ArtifactRecord describes a generated image and where it durably lives.
type ArtifactRecord struct {
	ID               int64
	OwnerID          string
	GeneratedID      string
	SourceURL        string
	StoredPath       string
	PublicURL        string
	Prompt           string
	TranslatedPrompt string
	StyleID          string
	Style            string
	JobID            string
	Visibility       Visibility
	Persisted        bool
	CreatedAt        time.Time
}

// DurableReference is the value stored as the record's file path: the object
// store path when the upload succeeded, otherwise the provider URL.
func (r ArtifactRecord) DurableReference() string {
	if r.StoredPath != "" {
		return r.StoredPath
	}
	return r.SourceURL
}
