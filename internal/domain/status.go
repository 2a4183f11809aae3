package domain

import "strings"

// Status is the lifecycle state of a Request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Labels written by earlier clients and still accepted on input.
var legacyStatus = map[string]Status{
	"รออนุมัติ": StatusPending,
	"อนุมัติ":   StatusApproved,
	"ปฏิเสธ":    StatusRejected,
	"สำเร็จ":    StatusCompleted,
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted},
}

// ParseStatus maps a canonical or legacy label to a Status.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	switch st := Status(strings.ToLower(s)); st {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return st, true
	}
	st, ok := legacyStatus[s]
	return st, ok
}

// CanTransition reports whether a request may move from s to next.
// Re-applying the current status is always allowed and is a no-op.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
