// Package gitea fetches pull requests and their reviews from a Gitea server.
package gitea

import (
	"context"
	"fmt"
	"net/http"

	sdk "code.gitea.io/sdk/gitea"
)

// Client is the part of the Gitea API the fetcher needs. *sdk.Client satisfies it.
type Client interface {
	ListRepoPullRequests(owner, repo string, opt sdk.ListPullRequestsOptions) ([]*sdk.PullRequest, *sdk.Response, error)
	ListPullReviews(owner, repo string, index int64, opt sdk.ListPullReviewsOptions) ([]*sdk.PullReview, *sdk.Response, error)
}

// NewClient creates an authenticated SDK client bound to ctx. The
// server version check is skipped so a single request is made per call.
func NewClient(ctx context.Context, baseURL, token string, httpClient *http.Client) (*sdk.Client, error) {
	opts := []sdk.ClientOption{
		sdk.SetContext(ctx),
		sdk.SetToken(token),
		sdk.SetGiteaVersion(""),
	}

	if httpClient != nil {
		opts = append(opts, sdk.SetHTTPClient(httpClient))
	}

	client, err := sdk.NewClient(baseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gitea client: %w", err)
	}

	return client, nil
}
