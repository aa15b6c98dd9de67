package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"oilwise-api-server/internal/models"
)

// In-memory implementations with the same conditional-update semantics as the
// mongo stores. They back the test suites; each store serializes access
// through one mutex so the guarded mutations are atomic.

// MemoryRequestStore implements RequestStore.
type MemoryRequestStore struct {
	mu       sync.Mutex
	requests map[string]*models.PickupRequest
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[string]*models.PickupRequest)}
}

func cloneRequest(req *models.PickupRequest) *models.PickupRequest {
	out := *req
	out.RejectedBy = append([]string(nil), req.RejectedBy...)
	return &out
}

func (m *MemoryRequestStore) Insert(ctx context.Context, req *models.PickupRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.RequestID]; ok {
		return ErrDuplicate
	}
	if req.ID.IsZero() {
		req.ID = primitive.NewObjectID()
	}
	m.requests[req.RequestID] = cloneRequest(req)
	return nil
}

func (m *MemoryRequestStore) FindByRequestID(ctx context.Context, requestID string) (*models.PickupRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRequest(req), nil
}

func (m *MemoryRequestStore) list(match func(*models.PickupRequest) bool) []models.PickupRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PickupRequest{}
	for _, req := range m.requests {
		if match(req) {
			out = append(out, *cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryRequestStore) ListByUser(ctx context.Context, userID string) ([]models.PickupRequest, error) {
	return m.list(func(r *models.PickupRequest) bool { return r.UserID == userID }), nil
}

func (m *MemoryRequestStore) ListByState(ctx context.Context, state string) ([]models.PickupRequest, error) {
	return m.list(func(r *models.PickupRequest) bool { return r.State == state }), nil
}

func (m *MemoryRequestStore) ListAll(ctx context.Context, status models.Status) ([]models.PickupRequest, error) {
	return m.list(func(r *models.PickupRequest) bool {
		return status == "" || r.Status == status
	}), nil
}

func (m *MemoryRequestStore) ListStaleAssigned(ctx context.Context, cutoff time.Time) ([]models.PickupRequest, error) {
	return m.list(func(r *models.PickupRequest) bool {
		return r.Status == models.StatusSubmitted &&
			r.OwnerCollectorID != "" &&
			r.AssignedAt != nil && r.AssignedAt.Before(cutoff)
	}), nil
}

func (m *MemoryRequestStore) MarkAccepted(ctx context.Context, requestID, collectorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok || req.Status != models.StatusSubmitted || req.OwnerCollectorID != collectorID {
		return false, nil
	}
	now := time.Now()
	req.Status = models.StatusAccepted
	req.AcceptedAt = &now
	return true, nil
}

func (m *MemoryRequestStore) MarkCollected(ctx context.Context, requestID, collectorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok || req.Status != models.StatusAccepted || req.OwnerCollectorID != collectorID {
		return false, nil
	}
	now := time.Now()
	req.Status = models.StatusCollected
	req.CollectedAt = &now
	return true, nil
}

func (m *MemoryRequestStore) RecordRejection(ctx context.Context, requestID, collectorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok || req.OwnerCollectorID != collectorID {
		return false, nil
	}
	if req.Status != models.StatusSubmitted && req.Status != models.StatusAccepted {
		return false, nil
	}
	req.Status = models.StatusSubmitted
	req.OwnerCollectorID = ""
	req.AssignedAt = nil
	req.AcceptedAt = nil
	if !req.IsRejectedBy(collectorID) {
		req.RejectedBy = append(req.RejectedBy, collectorID)
	}
	return true, nil
}

func (m *MemoryRequestStore) AssignIfUnassigned(ctx context.Context, requestID, collectorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok || req.Status != models.StatusSubmitted || req.OwnerCollectorID != "" {
		return false, nil
	}
	if req.IsRejectedBy(collectorID) {
		return false, nil
	}
	now := time.Now()
	req.OwnerCollectorID = collectorID
	req.AssignedAt = &now
	return true, nil
}

// MemoryUserStore implements UserStore.
type MemoryUserStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	emails map[string]string
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:  make(map[string]*models.User),
		emails: make(map[string]string),
	}
}

func cloneUser(user *models.User) *models.User {
	out := *user
	return &out
}

func (m *MemoryUserStore) Insert(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.emails[user.Email]; ok {
		return ErrDuplicate
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	id := user.UserID()
	m.users[id] = cloneUser(user)
	m.emails[user.Email] = id
	return nil
}

func (m *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(m.users[id]), nil
}

func (m *MemoryUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(user), nil
}

func (m *MemoryUserStore) ListCollectorsByState(ctx context.Context, state string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, user := range m.users {
		if user.Role == models.RoleCollector && user.State == state {
			out = append(out, *cloneUser(user))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryUserStore) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.Latitude = &lat
	user.Longitude = &lng
	return nil
}

// MemoryUsageStore implements UsageStore.
type MemoryUsageStore struct {
	mu      sync.Mutex
	entries []models.UsageEntry
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{}
}

func (m *MemoryUsageStore) Insert(ctx context.Context, entry *models.UsageEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MemoryUsageStore) ListByUser(ctx context.Context, userID string) ([]models.UsageEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.UsageEntry{}
	for _, entry := range m.entries {
		if entry.UserID == userID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (m *MemoryUsageStore) SummaryByRegion(ctx context.Context) ([]models.StateUsage, []models.DistrictUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stateTotals := map[string]float64{}
	stateDistricts := map[string]map[string]bool{}
	districtTotals := map[[2]string]float64{}

	for _, entry := range m.entries {
		stateTotals[entry.State] += entry.OilML
		if stateDistricts[entry.State] == nil {
			stateDistricts[entry.State] = map[string]bool{}
		}
		stateDistricts[entry.State][entry.District] = true
		districtTotals[[2]string{entry.State, entry.District}] += entry.OilML
	}

	byState := []models.StateUsage{}
	for state, total := range stateTotals {
		byState = append(byState, models.StateUsage{
			State:          state,
			TotalOilML:     total,
			DistrictsCount: len(stateDistricts[state]),
		})
	}
	sort.Slice(byState, func(i, j int) bool { return byState[i].State < byState[j].State })

	byDistrict := []models.DistrictUsage{}
	for key, total := range districtTotals {
		byDistrict = append(byDistrict, models.DistrictUsage{State: key[0], District: key[1], TotalOilML: total})
	}
	sort.Slice(byDistrict, func(i, j int) bool {
		if byDistrict[i].State != byDistrict[j].State {
			return byDistrict[i].State < byDistrict[j].State
		}
		return byDistrict[i].District < byDistrict[j].District
	})

	return byState, byDistrict, nil
}
