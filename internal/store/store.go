// Package store holds the persistence interfaces behind which all shared
// mutable state lives. Every lifecycle write is a single conditional update:
// the mutating methods return false instead of writing when their guard no
// longer matches, which is what the lifecycle controller builds its
// compare-and-set transitions on.
package store

import (
	"context"
	"errors"
	"time"

	"oilwise-api-server/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrUnavailable is returned after bounded retries against a store that
	// keeps failing transiently.
	ErrUnavailable = errors.New("store: unavailable")
)

// RequestStore persists pickup requests.
type RequestStore interface {
	Insert(ctx context.Context, req *models.PickupRequest) error
	FindByRequestID(ctx context.Context, requestID string) (*models.PickupRequest, error)

	// Read views. Results are newest-first.
	ListByUser(ctx context.Context, userID string) ([]models.PickupRequest, error)
	ListByState(ctx context.Context, state string) ([]models.PickupRequest, error)
	ListAll(ctx context.Context, status models.Status) ([]models.PickupRequest, error)

	// ListStaleAssigned returns requests still submitted with an assignee
	// that was set before the cutoff.
	ListStaleAssigned(ctx context.Context, cutoff time.Time) ([]models.PickupRequest, error)

	// MarkAccepted flips submitted -> accepted iff the request is currently
	// assigned to collectorID. Returns false when the guard did not match.
	MarkAccepted(ctx context.Context, requestID, collectorID string) (bool, error)

	// MarkCollected flips accepted -> collected iff the request is currently
	// assigned to collectorID.
	MarkCollected(ctx context.Context, requestID, collectorID string) (bool, error)

	// RecordRejection clears the assignee and appends collectorID to the
	// rejection set iff the request is assigned to collectorID and not yet
	// collected. The request goes back to submitted.
	RecordRejection(ctx context.Context, requestID, collectorID string) (bool, error)

	// AssignIfUnassigned sets the assignee iff the request is submitted,
	// unassigned, and collectorID is not in the rejection set.
	AssignIfUnassigned(ctx context.Context, requestID, collectorID string) (bool, error)
}

// UserStore persists accounts. Collectors are users with RoleCollector.
type UserStore interface {
	Insert(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)

	// ListCollectorsByState returns collectors serving the state ordered by
	// registration time, which is the assignment tie-break.
	ListCollectorsByState(ctx context.Context, state string) ([]models.User, error)

	// UpdateLocation sets a collector's self-reported service point.
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error
}

// UsageStore persists consumption log entries.
type UsageStore interface {
	Insert(ctx context.Context, entry *models.UsageEntry) error
	ListByUser(ctx context.Context, userID string) ([]models.UsageEntry, error)
	SummaryByRegion(ctx context.Context) ([]models.StateUsage, []models.DistrictUsage, error)
}
