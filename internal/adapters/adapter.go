package adapters

import (
	"context"
	"errors"

	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"github.com/suyashkumar/dicom"
)

var (
	// ErrNotFound is returned by RetrieveInstance when no instance matches
	ErrNotFound = errors.New("instance not found")

	// ErrReadOnly is returned by StoreInstance on stores that refuse writes
	ErrReadOnly = errors.New("data store is read-only")
)

// DataStore defines the backend behind the DICOMweb endpoints. Matching,
// deduplication and paging are the store's job; callers filter attributes.
// Implementations must be safe for concurrent use.
type DataStore interface {
	// Query operations
	SearchStudies(ctx context.Context, params models.QueryParams) ([]dicom.Dataset, error)
	SearchSeries(ctx context.Context, studyUID string, params models.QueryParams) ([]dicom.Dataset, error)
	SearchInstances(ctx context.Context, studyUID, seriesUID string, params models.QueryParams) ([]dicom.Dataset, error)

	// Retrieve operations
	RetrieveInstance(ctx context.Context, studyUID, seriesUID, sopInstanceUID string) (dicom.Dataset, error)

	Type() models.StoreType
	Close() error
}

// Writer is implemented by stores that accept STOW-RS uploads. ReadOnly
// reports whether StoreInstance will refuse every write.
type Writer interface {
	StoreInstance(ctx context.Context, ds dicom.Dataset) error
	ReadOnly() bool
}

// Pinger is implemented by stores whose dependencies can be probed
type Pinger interface {
	Ping(ctx context.Context) error
}
