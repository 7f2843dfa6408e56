package model

// Reviewer is either an identified account or anonymous. Anonymous reviews are
// never attributed to a user.
type Reviewer struct {
	identity   Identity
	identified bool
}

// Identified returns a reviewer backed by an account.
func Identified(identity Identity) Reviewer {
	return Reviewer{identity: identity, identified: true}
}

// Anonymous returns a reviewer with no attributable account.
func Anonymous() Reviewer {
	return Reviewer{}
}

// Identity returns the reviewer account and true, or false for an anonymous reviewer.
func (r Reviewer) Identity() (Identity, bool) {
	return r.identity, r.identified
}

// String returns the reviewer email or "<anonymous>".
func (r Reviewer) String() string {
	if !r.identified {
		return "<anonymous>"
	}

	return r.identity.Email
}
