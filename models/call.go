package models

import "time"

// Priority orders calls for display only. The queue is never reordered
// automatically; consoles style rows by urgency.
type Priority string

// Call priorities, lowest to highest.
const (
	PriorityRoutine  Priority = "routine"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorityRank = map[Priority]int{
	PriorityRoutine:  0,
	PriorityHigh:     1,
	PriorityCritical: 2,
}

// Rank returns the urgency rank of the priority, higher is more urgent.
// Unknown priorities rank below routine.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return -1
}

// Call holds the structure for the call collection in mongo
type Call struct {
	ID      string      `json:"_id" bson:"_id"`
	Details CallDetails `json:"call" bson:"call"`
	Version int32       `json:"__v" bson:"__v"`
}

// CallDetails holds the structure for the inner call structure as
// defined in the call collection in mongo
type CallDetails struct {
	CallerName    string     `json:"callerName" bson:"callerName"`
	CallerPhone   string     `json:"callerPhone" bson:"callerPhone"`
	Address       string     `json:"address" bson:"address"`
	Lat           float64    `json:"lat" bson:"lat"`
	Lon           float64    `json:"lon" bson:"lon"`
	Priority      Priority   `json:"priority" bson:"priority"`
	Status        CallStatus `json:"status" bson:"status"`
	ETAMinutes    *int       `json:"etaMinutes,omitempty" bson:"etaMinutes,omitempty"`
	AssignedUnits []string   `json:"assignedUnits" bson:"assignedUnits"`
	CreatedAt     time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Assigned reports whether the given unit is bound to the call.
func (d CallDetails) Assigned(unitID string) bool {
	for _, u := range d.AssignedUnits {
		if u == unitID {
			return true
		}
	}
	return false
}
