package domain

import "context"

// ArtifactRepository is the relational store for artifact records.
// InsertMany writes the whole batch in one transaction or nothing.
type ArtifactRepository interface {
	InsertMany(ctx context.Context, records []ArtifactRecord) ([]ArtifactRecord, error)
}

// ObjectStore is durable, path-addressed binary storage. Put must reject any
// path whose first segment is not ownerID.
type ObjectStore interface {
	Put(ctx context.Context, ownerID, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
}
