package entity

// Status represents an invoice's position in the approval lifecycle
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusWithdrawn Status = "Withdrawn"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusApproved:  true,
	StatusRejected:  true,
	StatusWithdrawn: true,
}

var terminalStatuses = map[Status]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusWithdrawn: true,
}

// IsValid returns true if the status is a known invoice status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if the status permits no further transitions
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo reports whether a transition to next is allowed.
// Pending is the sole mutable state; every other status is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending {
		return false
	}
	return terminalStatuses[next]
}
