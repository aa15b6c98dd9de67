// Package assign picks the collector a pickup request is offered to.
package assign

import (
	"context"
	"math"

	"oilwise-api-server/internal/models"
)

// CollectorDirectory is the read-only view of registered collectors the
// policy needs. Registration order of the returned slice is the tie-break.
type CollectorDirectory interface {
	ListCollectorsByState(ctx context.Context, state string) ([]models.User, error)
}

// Policy implements the matching rules: same state, never a collector who
// already rejected the request, nearest service point when coordinates exist
// on both sides, earliest-registered otherwise.
type Policy struct {
	Directory CollectorDirectory
}

func NewPolicy(directory CollectorDirectory) *Policy {
	return &Policy{Directory: directory}
}

// NextCollector returns the best eligible collector for the request, or nil
// when none exists. The caller keeps the request submitted-and-unassigned in
// the nil case.
func (p *Policy) NextCollector(ctx context.Context, req *models.PickupRequest) (*models.User, error) {
	collectors, err := p.Directory.ListCollectorsByState(ctx, req.State)
	if err != nil {
		return nil, err
	}

	eligible := make([]models.User, 0, len(collectors))
	for _, collector := range collectors {
		if req.IsRejectedBy(collector.UserID()) {
			continue
		}
		eligible = append(eligible, collector)
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	if point, ok := req.Coordinates(); ok {
		if nearest := nearestTo(point, eligible); nearest != nil {
			return nearest, nil
		}
	}

	// No usable coordinates on either side: earliest-registered wins. The
	// directory already returns collectors in registration order.
	return &eligible[0], nil
}

// nearestTo returns the closest collector that has a service point, or nil
// when none of them reported one.
func nearestTo(point models.Coordinates, collectors []models.User) *models.User {
	var nearest *models.User
	best := math.Inf(1)
	for i := range collectors {
		servicePoint, ok := collectors[i].Coordinates()
		if !ok {
			continue
		}
		if d := haversineKm(point, servicePoint); d < best {
			best = d
			nearest = &collectors[i]
		}
	}
	return nearest
}

const earthRadiusKm = 6371.0

// haversineKm is the great-circle distance between two points. Collectors
// operate within one state, so the spherical-earth error is irrelevant here.
func haversineKm(a, b models.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
