package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the closed set of account types. Role-gated operations must check
// membership through IsValid instead of comparing loose strings.
type Role string

const (
	RoleUser       Role = "user"
	RoleCollector  Role = "collector"
	RolePolicy     Role = "policy"
	RoleRestaurant Role = "restaurant"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleCollector, RolePolicy, RoleRestaurant:
		return true
	}
	return false
}

// User matches the document in the "users" collection. Latitude/Longitude is
// the self-reported service point of a collector; collectors may change it at
// any time and the assignment policy only ever reads it.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email" json:"email"`
	Name      string             `bson:"name" json:"name"`
	Password  string             `bson:"password" json:"-"`
	Role      Role               `bson:"role" json:"role"`
	State     string             `bson:"state" json:"state"`
	District  string             `bson:"district,omitempty" json:"district,omitempty"`
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address   string             `bson:"address,omitempty" json:"address,omitempty"`
	Latitude  *float64           `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude *float64           `bson:"longitude,omitempty" json:"longitude,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// UserID is the stable identifier handed out in JWT claims and stored on
// pickup requests.
func (u *User) UserID() string {
	return u.ID.Hex()
}

// Coordinates returns the service point if both components are present.
func (u *User) Coordinates() (Coordinates, bool) {
	if u.Latitude == nil || u.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: *u.Latitude, Longitude: *u.Longitude}, true
}
