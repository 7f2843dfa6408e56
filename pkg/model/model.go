// Package model defines the records shared by the catalogs, the source adapters,
// the event store and the attribution engine.
package model

import (
	"slices"
	"time"
)

// User is a tracked person. One person may commit and review under several emails.
type User struct {
	Username  string   `json:"username"   yaml:"username"`
	AvatarURL string   `json:"avatar_url" yaml:"avatar_url"`
	Role      string   `json:"role"       yaml:"role"`
	Teams     []string `json:"teams"      yaml:"teams"`
	Emails    []string `json:"emails"     yaml:"emails"`
}

// HasAlias reports whether email is one of the user's aliases. Comparison is case-sensitive.
func (u User) HasAlias(email string) bool {
	return slices.Contains(u.Emails, email)
}

// InTeam reports whether the user belongs to team.
func (u User) InTeam(team string) bool {
	return slices.Contains(u.Teams, team)
}

// Repository identifies a tracked repository both on disk and on the review server.
type Repository struct {
	Name   string `json:"name"   yaml:"name"`
	SSH    string `json:"ssh"    yaml:"ssh"`
	Branch string `json:"branch" yaml:"branch"`
	Owner  string `json:"owner"  yaml:"owner"`
}

// Key returns the event store key of the repository.
func (r Repository) Key() string {
	return r.Name
}

// Commit is one change read from git history.
type Commit struct {
	Hash         string
	Email        string
	Message      string
	FilesChanged int
	Insertions   int
	Deletions    int
	When         time.Time // UTC.
}

// Identity is an account on the review server.
type Identity struct {
	Login string
	Email string
}

// PullRequest is a remote pull request together with every review left on it.
type PullRequest struct {
	Number    int64
	Title     string
	Author    Identity
	State     string
	CreatedAt Timestamp
	MergedAt  Timestamp
	ClosedAt  Timestamp
	Reviews   []Review
}

// Review is a single review of a pull request.
type Review struct {
	ID            int64
	Reviewer      Reviewer
	State         ReviewState
	CommentsCount int
}
