// Package lifecycle enforces the pickup request state machine:
//
//	submitted -> accepted -> collected (terminal)
//
// Rejection is a transition back to submitted that records the rejecting
// collector and immediately re-runs assignment. Every guard is checked with a
// single conditional update against the store, never a read-then-write pair.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"oilwise-api-server/internal/assign"
	"oilwise-api-server/internal/models"
	"oilwise-api-server/internal/store"
)

// Controller owns every write to the request store.
type Controller struct {
	Requests store.RequestStore
	Policy   *assign.Policy
	Notifier Notifier
}

func NewController(requests store.RequestStore, policy *assign.Policy, notifier Notifier) *Controller {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Controller{Requests: requests, Policy: policy, Notifier: notifier}
}

// CreateInput is the payload of a new pickup request. Coordinates are
// optional: when the browser could not provide a position the request is
// still legal and assignment falls back to region-only matching.
type CreateInput struct {
	OilVolumeML float64
	DaysUsed    int
	OilType     string
	Latitude    *float64
	Longitude   *float64
}

// Create validates the payload, persists the request and offers it to the
// best-match collector if one exists.
func (c *Controller) Create(ctx context.Context, requester *models.User, input CreateInput) (*models.PickupRequest, error) {
	if requester == nil || strings.TrimSpace(requester.State) == "" {
		return nil, fmt.Errorf("%w: requester state is required", ErrInvalidPayload)
	}
	if input.OilVolumeML <= 0 {
		return nil, fmt.Errorf("%w: oilVolumeML must be positive", ErrInvalidPayload)
	}
	if input.DaysUsed <= 0 {
		return nil, fmt.Errorf("%w: daysUsed must be positive", ErrInvalidPayload)
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, fmt.Errorf("%w: latitude and longitude must be provided together", ErrInvalidPayload)
	}

	req := &models.PickupRequest{
		RequestID:   fmt.Sprintf("OREQ-%s", uuid.New().String()[:8]),
		UserID:      requester.UserID(),
		UserName:    requester.Name,
		Email:       requester.Email,
		Phone:       requester.Phone,
		Address:     requester.Address,
		State:       requester.State,
		OilVolumeML: input.OilVolumeML,
		DaysUsed:    input.DaysUsed,
		OilType:     input.OilType,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Status:      models.StatusSubmitted,
		RejectedBy:  []string{},
		CreatedAt:   time.Now(),
	}

	collector, err := c.Policy.NextCollector(ctx, req)
	if err != nil {
		return nil, err
	}
	if collector != nil {
		now := req.CreatedAt
		req.OwnerCollectorID = collector.UserID()
		req.AssignedAt = &now
	}

	if err := c.Requests.Insert(ctx, req); err != nil {
		return nil, err
	}

	c.Notifier.Notify(Event{
		RequestID:   req.RequestID,
		RequesterID: req.UserID,
		NewStatus:   req.Status,
		AssigneeID:  req.OwnerCollectorID,
	})
	return req, nil
}

// Accept flips submitted -> accepted for the currently assigned collector.
// The guard is one conditional update, so of two concurrent attempts exactly
// one succeeds.
func (c *Controller) Accept(ctx context.Context, requestID, collectorID string) (*models.PickupRequest, error) {
	ok, err := c.Requests.MarkAccepted(ctx, requestID, collectorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, c.explainFailure(ctx, requestID, collectorID, models.StatusSubmitted)
	}

	req, err := c.Requests.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	c.Notifier.Notify(Event{
		RequestID:   req.RequestID,
		RequesterID: req.UserID,
		NewStatus:   req.Status,
		AssigneeID:  req.OwnerCollectorID,
	})
	return req, nil
}

// Reject records the rejection, clears the assignment and offers the request
// to the next eligible collector. If none remains the request stays
// submitted and unassigned.
func (c *Controller) Reject(ctx context.Context, requestID, collectorID string) (*models.PickupRequest, error) {
	ok, err := c.Requests.RecordRejection(ctx, requestID, collectorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, c.explainFailure(ctx, requestID, collectorID, "")
	}
	return c.reassign(ctx, requestID, collectorID)
}

// reassign runs the policy against the request's current rejection set and
// installs the winner, if any. The assignment itself is conditional on the
// request still being unassigned, so a concurrent assignment is never
// overwritten.
func (c *Controller) reassign(ctx context.Context, requestID, previousCollectorID string) (*models.PickupRequest, error) {
	req, err := c.Requests.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	next, err := c.Policy.NextCollector(ctx, req)
	if err != nil {
		return nil, err
	}
	if next != nil {
		if _, err := c.Requests.AssignIfUnassigned(ctx, requestID, next.UserID()); err != nil {
			return nil, err
		}
		req, err = c.Requests.FindByRequestID(ctx, requestID)
		if err != nil {
			return nil, err
		}
	}

	c.Notifier.Notify(Event{
		RequestID:          req.RequestID,
		RequesterID:        req.UserID,
		NewStatus:          req.Status,
		AssigneeID:         req.OwnerCollectorID,
		PreviousAssigneeID: previousCollectorID,
	})
	return req, nil
}

// Collect flips accepted -> collected, the terminal state.
func (c *Controller) Collect(ctx context.Context, requestID, collectorID string) (*models.PickupRequest, error) {
	ok, err := c.Requests.MarkCollected(ctx, requestID, collectorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, c.explainFailure(ctx, requestID, collectorID, models.StatusAccepted)
	}

	req, err := c.Requests.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	c.Notifier.Notify(Event{
		RequestID:   req.RequestID,
		RequesterID: req.UserID,
		NewStatus:   req.Status,
		AssigneeID:  req.OwnerCollectorID,
	})
	return req, nil
}

// ReassignStale applies the system-triggered equivalent of Reject to every
// request that has sat assigned-but-unanswered since before the cutoff.
// Returns how many requests were swept.
func (c *Controller) ReassignStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := time.Now().Add(-staleAfter)
	stale, err := c.Requests.ListStaleAssigned(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, req := range stale {
		owner := req.OwnerCollectorID
		ok, err := c.Requests.RecordRejection(ctx, req.RequestID, owner)
		if err != nil {
			return swept, err
		}
		if !ok {
			// The collector responded between the listing and the sweep;
			// leave the request alone.
			continue
		}
		if _, err := c.reassign(ctx, req.RequestID, owner); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// explainFailure turns a failed conditional update into the precise error the
// caller should see. wantStatus is the status the transition departs from, or
// empty when several are legal.
func (c *Controller) explainFailure(ctx context.Context, requestID, collectorID string, wantStatus models.Status) error {
	req, err := c.Requests.FindByRequestID(ctx, requestID)
	if err != nil {
		if err == store.ErrNotFound {
			return ErrNotFound
		}
		return err
	}

	if req.Status == models.StatusCollected {
		return ErrInvalidState
	}
	if req.OwnerCollectorID != collectorID {
		if wantStatus == models.StatusSubmitted && req.Status == models.StatusAccepted {
			// Accept race: someone else accepted in the meantime, so the
			// loser sees a conflict, not a permission problem.
			return ErrConflict
		}
		return ErrUnauthorized
	}
	if wantStatus != "" && req.Status != wantStatus {
		return ErrInvalidState
	}
	return ErrConflict
}
