package models

// CallStatus is the lifecycle state of a call. Each state is reachable
// from its immediate predecessor; closed is the override path and may
// be entered from any active state. The server is the sole enforcer of
// this graph; clients only offer legal next states in the UI.
type CallStatus string

// Call lifecycle states, in order.
const (
	StatusDispatched CallStatus = "dispatched"
	StatusEnroute    CallStatus = "enroute"
	StatusOnScene    CallStatus = "onscene"
	StatusTransport  CallStatus = "transport"
	StatusAvailable  CallStatus = "available"
	StatusClosed     CallStatus = "closed"
)

var nextStatus = map[CallStatus]CallStatus{
	StatusDispatched: StatusEnroute,
	StatusEnroute:    StatusOnScene,
	StatusOnScene:    StatusTransport,
	StatusTransport:  StatusAvailable,
}

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s CallStatus) bool {
	switch s {
	case StatusDispatched, StatusEnroute, StatusOnScene, StatusTransport, StatusAvailable, StatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s CallStatus) Terminal() bool {
	return s == StatusAvailable || s == StatusClosed
}

// Releases reports whether entering s unbinds the call's units.
func (s CallStatus) Releases() bool {
	return s == StatusAvailable || s == StatusClosed
}

// CanTransition reports whether a call may move from one state to
// another: one step forward, or closed from any active state.
func CanTransition(from, to CallStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusClosed {
		return ValidStatus(from)
	}
	return nextStatus[from] == to
}

// NextStatuses returns the legal next states from the given state, the
// "pick one of these" set a console may offer.
func NextStatuses(from CallStatus) []CallStatus {
	if from.Terminal() {
		return nil
	}
	return []CallStatus{nextStatus[from], StatusClosed}
}
