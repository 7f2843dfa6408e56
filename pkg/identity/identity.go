// Package identity resolves email aliases to tracked users.
package identity

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
)

// AuthorMissing is the index reported for an email no tracked user owns.
const AuthorMissing = -1

// ErrDuplicateAlias is returned when two users claim the same email.
var ErrDuplicateAlias = errors.New("alias assigned to more than one user")

// Index maps every alias to the position of its owner in the user catalog.
// Aliases are compared case-sensitively.
type Index struct {
	byEmail map[string]int
}

// NewIndex indexes users. Every email claimed by two different users is
// reported; an email repeated by the same user is accepted.
func NewIndex(users []model.User) (*Index, error) {
	ix := &Index{byEmail: make(map[string]int)}

	var errs []error

	for i, user := range users {
		for _, email := range user.Emails {
			owner, seen := ix.byEmail[email]
			if seen && owner != i {
				errs = append(errs, fmt.Errorf("%w: %q used by %q and %q",
					ErrDuplicateAlias, email, users[owner].Username, user.Username))

				continue
			}

			ix.byEmail[email] = i
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return ix, nil
}

// Lookup returns the catalog position of the owner of email, or AuthorMissing.
func (ix *Index) Lookup(email string) int {
	if idx, ok := ix.byEmail[email]; ok {
		return idx
	}

	return AuthorMissing
}

// Unmatched is an email seen in the sources that no tracked user owns.
type Unmatched struct {
	Email string
	Count int
}

// Unmatched counts the emails of seq that resolve to no user, most frequent first.
func (ix *Index) Unmatched(seq iter.Seq[string]) []Unmatched {
	counts := make(map[string]int)

	for email := range seq {
		if email == "" || ix.Lookup(email) != AuthorMissing {
			continue
		}

		counts[email]++
	}

	out := make([]Unmatched, 0, len(counts))
	for email, n := range counts {
		out = append(out, Unmatched{Email: email, Count: n})
	}

	slices.SortFunc(out, func(a, b Unmatched) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}

		return cmp.Compare(a.Email, b.Email)
	})

	return out
}
