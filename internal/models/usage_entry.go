package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UsageEntry matches the document in the "usage_entries" collection. One
// entry per user per logged day of cooking-oil consumption.
type UsageEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EntryID   string             `bson:"entryID" json:"entryID"`
	UserID    string             `bson:"userID" json:"userID"`
	State     string             `bson:"state" json:"state"`
	District  string             `bson:"district" json:"district"`
	Date      string             `bson:"date" json:"date"` // ISO date, e.g. 2026-08-28
	OilML     float64            `bson:"oilML" json:"oilML"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// StateUsage is one row of the policy summary, usage totalled per state.
type StateUsage struct {
	State          string  `bson:"_id" json:"state"`
	TotalOilML     float64 `bson:"totalOilML" json:"totalOilML"`
	DistrictsCount int     `bson:"districtsCount" json:"districtsCount"`
}

// DistrictUsage is one row of the policy summary, usage totalled per district.
type DistrictUsage struct {
	State      string  `bson:"state" json:"state"`
	District   string  `bson:"district" json:"district"`
	TotalOilML float64 `bson:"totalOilML" json:"totalOilML"`
}
