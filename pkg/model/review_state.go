package model

import "strings"

// ReviewState is the outcome a reviewer left on a pull request.
type ReviewState int

// Review states. Unknown absorbs every state string the server may add later.
const (
	ReviewUnknown ReviewState = iota
	ReviewApproved
	ReviewPending
	ReviewComment
	ReviewRequestChanges
	ReviewRequestReview
)

var reviewStateNames = map[ReviewState]string{
	ReviewUnknown:        "UNKNOWN",
	ReviewApproved:       "APPROVED",
	ReviewPending:        "PENDING",
	ReviewComment:        "COMMENT",
	ReviewRequestChanges: "REQUEST_CHANGES",
	ReviewRequestReview:  "REQUEST_REVIEW",
}

// ParseReviewState maps the server representation to a ReviewState.
func ParseReviewState(s string) ReviewState {
	normalized := strings.ToUpper(strings.TrimSpace(s))

	for state, name := range reviewStateNames {
		if name == normalized {
			return state
		}
	}

	return ReviewUnknown
}

// String returns the server representation of the state.
func (s ReviewState) String() string {
	name, ok := reviewStateNames[s]
	if !ok {
		return reviewStateNames[ReviewUnknown]
	}

	return name
}

// Conducted reports whether the state counts as a completed review.
// Only approvals and change requests do.
func (s ReviewState) Conducted() bool {
	switch s {
	case ReviewApproved, ReviewRequestChanges:
		return true
	case ReviewUnknown, ReviewPending, ReviewComment, ReviewRequestReview:
		return false
	}

	return false
}
