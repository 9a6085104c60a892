package models

import "time"

// UnitStatus is the availability state of a responder unit.
type UnitStatus string

// Unit states. Out-of-service management belongs to fleet tooling;
// this core only reads it.
const (
	UnitAvailable    UnitStatus = "available"
	UnitCommitted    UnitStatus = "committed"
	UnitOutOfService UnitStatus = "out_of_service"
)

// Unit holds the structure for the unit collection in mongo. The _id
// is the human call-sign.
type Unit struct {
	ID      string      `json:"_id" bson:"_id"`
	Details UnitDetails `json:"unit" bson:"unit"`
}

// UnitDetails holds the structure for the inner unit structure as
// defined in the unit collection in mongo
type UnitDetails struct {
	Status     UnitStatus `json:"status" bson:"status"`
	ActiveCall string     `json:"activeCall" bson:"activeCall"`
	Lat        float64    `json:"lat" bson:"lat"`
	Lon        float64    `json:"lon" bson:"lon"`
	UpdatedAt  time.Time  `json:"updatedAt" bson:"updatedAt"`
}
