package assign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"oilwise-api-server/internal/models"
	"oilwise-api-server/internal/store"
)

func seedCollector(t *testing.T, users *store.MemoryUserStore, email, state string, registeredAt time.Time, coords *models.Coordinates) string {
	t.Helper()
	collector := &models.User{
		Email:     email,
		Name:      email,
		Role:      models.RoleCollector,
		State:     state,
		CreatedAt: registeredAt,
	}
	if coords != nil {
		collector.Latitude = &coords.Latitude
		collector.Longitude = &coords.Longitude
	}
	require.NoError(t, users.Insert(context.Background(), collector))
	return collector.UserID()
}

func requestIn(state string, coords *models.Coordinates) *models.PickupRequest {
	req := &models.PickupRequest{
		RequestID:  "OREQ-test",
		State:      state,
		Status:     models.StatusSubmitted,
		RejectedBy: []string{},
	}
	if coords != nil {
		req.Latitude = &coords.Latitude
		req.Longitude = &coords.Longitude
	}
	return req
}

func TestNextCollectorPrefersEarliestRegistered(t *testing.T) {
	users := store.NewMemoryUserStore()
	base := time.Now()
	first := seedCollector(t, users, "a@tn.example", "TN", base, nil)
	seedCollector(t, users, "b@tn.example", "TN", base.Add(time.Minute), nil)

	policy := NewPolicy(users)
	got, err := policy.NextCollector(context.Background(), requestIn("TN", nil))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, first, got.UserID())
}

func TestNextCollectorMatchesRegionOnly(t *testing.T) {
	users := store.NewMemoryUserStore()
	seedCollector(t, users, "a@tn.example", "TN", time.Now(), nil)

	policy := NewPolicy(users)
	got, err := policy.NextCollector(context.Background(), requestIn("KA", nil))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestNextCollectorExcludesRejections(t *testing.T) {
	users := store.NewMemoryUserStore()
	base := time.Now()
	first := seedCollector(t, users, "a@tn.example", "TN", base, nil)
	second := seedCollector(t, users, "b@tn.example", "TN", base.Add(time.Minute), nil)

	req := requestIn("TN", nil)
	req.RejectedBy = []string{first}

	policy := NewPolicy(users)
	got, err := policy.NextCollector(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, second, got.UserID())

	req.RejectedBy = []string{first, second}
	got, err = policy.NextCollector(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestNextCollectorPicksNearestServicePoint(t *testing.T) {
	users := store.NewMemoryUserStore()
	base := time.Now()
	// Chennai-ish request; the later-registered collector is much closer.
	seedCollector(t, users, "far@tn.example", "TN", base, &models.Coordinates{Latitude: 8.72, Longitude: 77.74})
	near := seedCollector(t, users, "near@tn.example", "TN", base.Add(time.Minute), &models.Coordinates{Latitude: 13.05, Longitude: 80.25})

	policy := NewPolicy(users)
	got, err := policy.NextCollector(context.Background(), requestIn("TN", &models.Coordinates{Latitude: 13.08, Longitude: 80.27}))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, near, got.UserID())
}

func TestNextCollectorFallsBackWhenNoServicePoints(t *testing.T) {
	users := store.NewMemoryUserStore()
	base := time.Now()
	first := seedCollector(t, users, "a@tn.example", "TN", base, nil)
	seedCollector(t, users, "b@tn.example", "TN", base.Add(time.Minute), nil)

	// Request has coordinates but no collector reported a service point, so
	// registration order decides.
	policy := NewPolicy(users)
	got, err := policy.NextCollector(context.Background(), requestIn("TN", &models.Coordinates{Latitude: 13.08, Longitude: 80.27}))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, first, got.UserID())
}

func TestHaversineKnownDistance(t *testing.T) {
	chennai := models.Coordinates{Latitude: 13.0827, Longitude: 80.2707}
	bengaluru := models.Coordinates{Latitude: 12.9716, Longitude: 77.5946}

	d := haversineKm(chennai, bengaluru)
	require.InDelta(t, 290, d, 15)
	require.Zero(t, haversineKm(chennai, chennai))
}
