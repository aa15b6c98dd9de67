package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the lifecycle state of a pickup request. Rejection is a
// transition, not a state: a rejected request goes back to submitted and is
// offered to the next collector.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusAccepted  Status = "accepted"
	StatusCollected Status = "collected" // terminal
)

// PickupRequest matches the document in the "oil_forms" collection.
// Requester contact fields are denormalized onto the form at creation time.
//
// OwnerCollectorID is owned by the lifecycle controller and mutated only
// through status-guarded conditional updates. RejectedBy is append-only; a
// collector listed there is never offered this request again.
type PickupRequest struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID        string             `bson:"requestID" json:"requestID"`
	UserID           string             `bson:"userID" json:"userID"`
	UserName         string             `bson:"userName" json:"userName"`
	Email            string             `bson:"email" json:"email"`
	Phone            string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address          string             `bson:"address,omitempty" json:"address,omitempty"`
	State            string             `bson:"state" json:"state"`
	OilVolumeML      float64            `bson:"oilVolumeML" json:"oilVolumeML"`
	DaysUsed         int                `bson:"daysUsed" json:"daysUsed"`
	OilType          string             `bson:"oilType,omitempty" json:"oilType,omitempty"`
	Latitude         *float64           `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude        *float64           `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Status           Status             `bson:"status" json:"status"`
	OwnerCollectorID string             `bson:"ownerCollectorID" json:"ownerCollectorID,omitempty"`
	RejectedBy       []string           `bson:"rejectedBy" json:"rejectedBy"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	AssignedAt       *time.Time         `bson:"assignedAt,omitempty" json:"assignedAt,omitempty"`
	AcceptedAt       *time.Time         `bson:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`
	CollectedAt      *time.Time         `bson:"collectedAt,omitempty" json:"collectedAt,omitempty"`
}

// Coordinates returns the drop-off point if the requester shared one.
func (r *PickupRequest) Coordinates() (Coordinates, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: *r.Latitude, Longitude: *r.Longitude}, true
}

// IsRejectedBy reports whether the collector already rejected this request.
func (r *PickupRequest) IsRejectedBy(collectorID string) bool {
	for _, id := range r.RejectedBy {
		if id == collectorID {
			return true
		}
	}
	return false
}

// Tracking returns the requester-facing status line. An unassigned submitted
// request reads differently from one waiting on a specific collector, so the
// requester can tell "no collector yet" apart from "waiting for approval".
func (r *PickupRequest) Tracking() string {
	switch r.Status {
	case StatusCollected:
		return "Collector collected the oil. Completed."
	case StatusAccepted:
		return "Collector accepted your request."
	case StatusSubmitted:
		if r.OwnerCollectorID != "" {
			return "Assigned to collector. Waiting for approval."
		}
		return "Form submitted. Looking for a collector..."
	}
	return "Status unknown"
}
