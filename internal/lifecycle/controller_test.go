package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"oilwise-api-server/internal/assign"
	"oilwise-api-server/internal/models"
	"oilwise-api-server/internal/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) all() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

type fixture struct {
	controller *Controller
	requests   *store.MemoryRequestStore
	users      *store.MemoryUserStore
	notifier   *recordingNotifier
}

func newFixture() *fixture {
	requests := store.NewMemoryRequestStore()
	users := store.NewMemoryUserStore()
	notifier := &recordingNotifier{}
	controller := NewController(requests, assign.NewPolicy(users), notifier)
	return &fixture{controller: controller, requests: requests, users: users, notifier: notifier}
}

func (f *fixture) addCollector(t *testing.T, email, state string, registeredAt time.Time) string {
	t.Helper()
	collector := &models.User{
		Email:     email,
		Name:      email,
		Role:      models.RoleCollector,
		State:     state,
		CreatedAt: registeredAt,
	}
	require.NoError(t, f.users.Insert(context.Background(), collector))
	return collector.UserID()
}

func requester(state string) *models.User {
	return &models.User{
		ID:    primitive.NewObjectID(),
		Email: "citizen@example.com",
		Name:  "Citizen",
		State: state,
	}
}

func validInput() CreateInput {
	return CreateInput{OilVolumeML: 500, DaysUsed: 7, OilType: "Sunflower"}
}

func TestCreateAssignsEarliestCollector(t *testing.T) {
	f := newFixture()
	base := time.Now()
	collectorA := f.addCollector(t, "a@tn.example", "TN", base)
	f.addCollector(t, "b@tn.example", "TN", base.Add(time.Minute))

	form, err := f.controller.Create(context.Background(), requester("TN"), validInput())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, form.Status)
	assert.Equal(t, collectorA, form.OwnerCollectorID)
	assert.NotNil(t, form.AssignedAt)
}

func TestCreateWithoutEligibleCollector(t *testing.T) {
	f := newFixture()

	form, err := f.controller.Create(context.Background(), requester("KA"), validInput())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, form.Status)
	assert.Empty(t, form.OwnerCollectorID)
	// The requester view must read "no collector yet", not an error.
	assert.Equal(t, "Form submitted. Looking for a collector...", form.Tracking())
}

func TestCreateInvalidPayload(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name  string
		user  *models.User
		input CreateInput
	}{
		{"zero volume", requester("TN"), CreateInput{OilVolumeML: 0, DaysUsed: 7}},
		{"zero days", requester("TN"), CreateInput{OilVolumeML: 500, DaysUsed: 0}},
		{"missing state", requester(""), validInput()},
		{"lat without lng", requester("TN"), CreateInput{OilVolumeML: 500, DaysUsed: 7, Latitude: ptr(13.0)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.controller.Create(context.Background(), tc.user, tc.input)
			require.ErrorIs(t, err, ErrInvalidPayload)
		})
	}

	forms, err := f.requests.ListAll(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, forms, "invalid payloads must persist nothing")
}

func ptr(v float64) *float64 { return &v }

func TestAcceptByNonAssigneeFails(t *testing.T) {
	f := newFixture()
	base := time.Now()
	f.addCollector(t, "a@tn.example", "TN", base)
	collectorB := f.addCollector(t, "b@tn.example", "TN", base.Add(time.Minute))

	form, err := f.controller.Create(context.Background(), requester("TN"), validInput())
	require.NoError(t, err)

	_, err = f.controller.Accept(context.Background(), form.RequestID, collectorB)
	require.ErrorIs(t, err, ErrUnauthorized)

	unchanged, err := f.requests.FindByRequestID(context.Background(), form.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, unchanged.Status)
	assert.Equal(t, form.OwnerCollectorID, unchanged.OwnerCollectorID)
}

func TestAcceptUnknownRequest(t *testing.T) {
	f := newFixture()
	collectorA := f.addCollector(t, "a@tn.example", "TN", time.Now())

	_, err := f.controller.Accept(context.Background(), "OREQ-missing", collectorA)
	require.ErrorIs(t, err, ErrNotFound)
}

// Full walk of the TN scenario: A assigned first, rejects; B gets the offer,
// accepts and collects; nothing moves after that.
func TestRejectReassignsThenAcceptAndCollect(t *testing.T) {
	f := newFixture()
	base := time.Now()
	collectorA := f.addCollector(t, "a@tn.example", "TN", base)
	collectorB := f.addCollector(t, "b@tn.example", "TN", base.Add(time.Minute))

	form, err := f.controller.Create(context.Background(), requester("TN"), validInput())
	require.NoError(t, err)
	require.Equal(t, collectorA, form.OwnerCollectorID)

	form, err = f.controller.Reject(context.Background(), form.RequestID, collectorA)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, form.Status)
	assert.Equal(t, []string{collectorA}, form.RejectedBy)
	assert.Equal(t, collectorB, form.OwnerCollectorID)

	form, err = f.controller.Accept(context.Background(), form.RequestID, collectorB)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, form.Status)

	form, err = f.controller.Collect(context.Background(), form.RequestID, collectorB)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCollected, form.Status)
	assert.Equal(t, collectorB, form.OwnerCollectorID)

	// Terminal: even the collector who owns it cannot move it again.
	_, err = f.controller.Reject(context.Background(), form.RequestID, collectorB)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = f.controller.Collect(context.Background(), form.RequestID, collectorB)
	require.ErrorIs(t, err, ErrInvalidState)

	final, err := f.requests.FindByRequestID(context.Background(), form.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCollected, final.Status)
}

func TestRejectWithNoRemainingCollector(t *testing.T) {
	f := newFixture()
	collectorA := f.addCollector(t, "a@tn.example", "TN", time.Now())

	form, err := f.controller.Create(context.Background(), requester("TN"), validInput())
	require.NoError(t, err)

	form, err = f.controller.Reject(context.Background(), form.RequestID, collectorA)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, form.Status)
	assert.Empty(t, form.OwnerCollectorID)
	assert.Equal(t, []string{collectorA}, form.RejectedBy)
	assert.Equal(t, "Form submitted. Looking for a collector...", form.Tracking())
}

func TestRejectFromAcceptedState(t *testing.T) {
	f := newFixture()
	base := time.Now()
	collectorA := f.addCollector(t, "a@tn.example", "TN", base)
	collectorB := f.addCollector(t, "b@tn.example", "TN", base.Add(time.Minute))

	form, err := f.controller.Create(context.Background(), requester("TN"), validInput())
	require.NoError(t, err)

	_, err = f.controller.Accept(context.Background(), form.RequestID, collectorA)
	require.NoError(t, err)

	// Backing out after accepting is still a rejection: back to submitted,
	// offered to the next collector.
	form, err = f.controller.Reject(context.Background(), form.RequestID, collectorA)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, form.Status)
	assert.Equal(t, collectorB, form.OwnerCollectorID)
	assert.Nil(t, form.AcceptedAt)
}

func TestCollectRequiresAcceptFirst(t *testing.T) {
	f := newFixture()
	collectorA := f.addCollector(t, "a@tn.example", "TN", time.Now())

	form, err := f.controller.Create(context.Background(), requester("TN"), validInput())
	require.NoError(t, err)

	_, err = f.controller.Collect(context.Background(), form.RequestID, collectorA)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCollectByNonAssigneeFails(t *testing.T) {
	f := newFixture()
	base := time.Now()
	collectorA := f.addCollector(t, "a@tn.example", "TN", base)
	collectorB := f.addCollector(t, "b@tn.example", "TN", base.Add(time.Minute))

	form, err := f.controller.Create(context.Background(), requester("TN"), validInput())
	require.NoError(t, err)
	_, err = f.controller.Accept(context.Background(), form.RequestID, collectorA)
	require.NoError(t, err)

	_, err = f.controller.Collect(context.Background(), form.RequestID, collectorB)
	require.ErrorIs(t, err, ErrUnauthorized)

	unchanged, err := f.requests.FindByRequestID(context.Background(), form.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, unchanged.Status)
	assert.Equal(t, collectorA, unchanged.OwnerCollectorID)
}

func TestRepeatAcceptIsInvalidState(t *testing.T) {
	f := newFixture()
	collectorA := f.addCollector(t, "a@tn.example", "TN", time.Now())

	form, err := f.controller.Create(context.Background(), requester("TN"), validInput())
	require.NoError(t, err)

	_, err = f.controller.Accept(context.Background(), form.RequestID, collectorA)
	require.NoError(t, err)

	_, err = f.controller.Accept(context.Background(), form.RequestID, collectorA)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestConcurrentAcceptSingleWinner(t *testing.T) {
	f := newFixture()
	base := time.Now()
	collectorA := f.addCollector(t, "a@tn.example", "TN", base)
	collectorB := f.addCollector(t, "b@tn.example", "TN", base.Add(time.Minute))

	form, err := f.controller.Create(context.Background(), requester("TN"), validInput())
	require.NoError(t, err)
	require.Equal(t, collectorA, form.OwnerCollectorID)

	results := make(chan error, 2)
	for _, collectorID := range []string{collectorA, collectorB} {
		go func(id string) {
			_, err := f.controller.Accept(context.Background(), form.RequestID, id)
			results <- err
		}(collectorID)
	}

	var errs []error
	for i := 0; i < 2; i++ {
		errs = append(errs, <-results)
	}

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if err != ErrConflict && err != ErrUnauthorized {
			t.Fatalf("race loser got unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one accept must win")

	final, err := f.requests.FindByRequestID(context.Background(), form.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, final.Status)
	assert.Equal(t, collectorA, final.OwnerCollectorID)
	assert.NotContains(t, final.RejectedBy, final.OwnerCollectorID)
}

func TestReassignStaleSweepsUnansweredForms(t *testing.T) {
	f := newFixture()
	base := time.Now()
	collectorA := f.addCollector(t, "a@tn.example", "TN", base)
	collectorB := f.addCollector(t, "b@tn.example", "TN", base.Add(time.Minute))

	stale, err := f.controller.Create(context.Background(), requester("TN"), validInput())
	require.NoError(t, err)

	answered, err := f.controller.Create(context.Background(), requester("TN"), validInput())
	require.NoError(t, err)
	_, err = f.controller.Accept(context.Background(), answered.RequestID, collectorA)
	require.NoError(t, err)

	// Zero threshold makes everything assigned before "now" stale.
	swept, err := f.controller.ReassignStale(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	reassigned, err := f.requests.FindByRequestID(context.Background(), stale.RequestID)
	require.NoError(t, err)
	assert.Equal(t, collectorB, reassigned.OwnerCollectorID)
	assert.Equal(t, []string{collectorA}, reassigned.RejectedBy)

	untouched, err := f.requests.FindByRequestID(context.Background(), answered.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, untouched.Status)
	assert.Equal(t, collectorA, untouched.OwnerCollectorID)
}

func TestTransitionsEmitEvents(t *testing.T) {
	f := newFixture()
	base := time.Now()
	collectorA := f.addCollector(t, "a@tn.example", "TN", base)
	collectorB := f.addCollector(t, "b@tn.example", "TN", base.Add(time.Minute))

	citizen := requester("TN")
	form, err := f.controller.Create(context.Background(), citizen, validInput())
	require.NoError(t, err)

	_, err = f.controller.Reject(context.Background(), form.RequestID, collectorA)
	require.NoError(t, err)
	_, err = f.controller.Accept(context.Background(), form.RequestID, collectorB)
	require.NoError(t, err)
	_, err = f.controller.Collect(context.Background(), form.RequestID, collectorB)
	require.NoError(t, err)

	events := f.notifier.all()
	require.Len(t, events, 4)

	assert.Equal(t, models.StatusSubmitted, events[0].NewStatus)
	assert.Equal(t, collectorA, events[0].AssigneeID)

	assert.Equal(t, models.StatusSubmitted, events[1].NewStatus)
	assert.Equal(t, collectorB, events[1].AssigneeID)
	assert.Equal(t, collectorA, events[1].PreviousAssigneeID)

	assert.Equal(t, models.StatusAccepted, events[2].NewStatus)
	assert.Equal(t, models.StatusCollected, events[3].NewStatus)

	for _, event := range events {
		assert.Equal(t, form.RequestID, event.RequestID)
		assert.Equal(t, citizen.UserID(), event.RequesterID)
	}
}
