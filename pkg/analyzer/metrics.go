package analyzer

import "github.com/Sumatoshi-tech/sprintstats/pkg/model"

// CommitMetrics sums the commits attributed to one user in one sprint.
type CommitMetrics struct {
	Commits      int `json:"commits"       yaml:"commits"`
	FilesChanged int `json:"files_changed" yaml:"files_changed"`
	Insertions   int `json:"insertions"    yaml:"insertions"`
	Deletions    int `json:"deletions"     yaml:"deletions"`
	ChangeLines  int `json:"change_lines"  yaml:"change_lines"`
}

// Add folds one commit into the metrics.
func (m *CommitMetrics) Add(c *model.Commit) {
	m.Commits++
	m.FilesChanged += c.FilesChanged
	m.Insertions += c.Insertions
	m.Deletions += c.Deletions
	m.ChangeLines += c.Insertions + c.Deletions
}

// PullRequestMetrics counts pull request activity of one user in one sprint,
// both as author and as reviewer.
type PullRequestMetrics struct {
	Created                  int `json:"created"                    yaml:"created"`
	Merged                   int `json:"merged"                     yaml:"merged"`
	Closed                   int `json:"closed"                     yaml:"closed"`
	ReceivedDiscussions      int `json:"received_discussions"       yaml:"received_discussions"`
	ApproverAssigned         int `json:"approver_assigned"          yaml:"approver_assigned"`
	ApproverConducted        int `json:"approver_conducted"         yaml:"approver_conducted"`
	ApproverAddedDiscussions int `json:"approver_added_discussions" yaml:"approver_added_discussions"`
}

// UserMetrics is the value of one (sprint, user) cell.
type UserMetrics struct {
	Commits      CommitMetrics      `json:"commits"       yaml:"commits"`
	PullRequests PullRequestMetrics `json:"pull_requests" yaml:"pull_requests"`
}

// UserResult pairs a user with its metrics.
type UserResult struct {
	User    model.User  `json:"user"    yaml:"user"`
	Metrics UserMetrics `json:"metrics" yaml:"metrics"`
}

// SprintResult holds one entry per configured user, in catalog order.
type SprintResult struct {
	Sprint model.Sprint `json:"sprint" yaml:"sprint"`
	Users  []UserResult `json:"users"  yaml:"users"`
}

// Report is the aggregation output, one entry per configured sprint in catalog order.
type Report []SprintResult

// ForTeam returns a copy of the report restricted to the members of team.
func (r Report) ForTeam(team string) Report {
	out := make(Report, len(r))

	for i, sprint := range r {
		out[i] = SprintResult{Sprint: sprint.Sprint}

		for _, ur := range sprint.Users {
			if ur.User.InTeam(team) {
				out[i].Users = append(out[i].Users, ur)
			}
		}
	}

	return out
}
