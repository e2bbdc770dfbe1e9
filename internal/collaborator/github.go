// Package collaborator grants buyers read access to a GitHub repository.
package collaborator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"sale_inviter/internal/domain"
)

// Permission granted to invited buyers.
const Permission = "pull"

const visibleReposHint = 5

// Config holds GitHub client configuration.
type Config struct {
	// BaseURL overrides the REST endpoint, e.g. for GitHub Enterprise.
	BaseURL string
	Timeout time.Duration
}

// GitHub invites collaborators through the REST API.
type GitHub struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*GitHub, error) {
	g := &GitHub{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "github"),
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		g.baseURL = u
	}

	return g, nil
}

func (g *GitHub) client(token string) *github.Client {
	c := github.NewClient(g.httpClient).WithAuthToken(token)
	if g.baseURL != nil {
		c.BaseURL = g.baseURL
	}
	return c
}

// Invite adds username as a pull collaborator. It never returns an error;
// failures are reported in the result with the HTTP status when known.
func (g *GitHub) Invite(ctx context.Context, token, owner, repo, username string) domain.InviteResult {
	_, resp, err := g.client(token).Repositories.AddCollaborator(ctx, owner, repo, username,
		&github.RepositoryAddCollaboratorOptions{Permission: Permission})
	if err != nil {
		result := domain.InviteResult{
			Status: statusOf(resp, err),
			Error:  messageOf(err),
		}
		g.logger.Warn("invite collaborator failed",
			"owner", owner,
			"repo", repo,
			"username", username,
			"status", result.Status,
			"error", result.Error,
		)
		return result
	}

	g.logger.Debug("invited collaborator",
		"owner", owner,
		"repo", repo,
		"username", username,
		"status", resp.StatusCode,
	)

	return domain.InviteResult{Success: true, Status: resp.StatusCode}
}

// TestConnection checks the token and that the repository is visible to it.
func (g *GitHub) TestConnection(ctx context.Context, token, owner, repo string) domain.ConnectionCheck {
	c := g.client(token)

	user, resp, err := c.Users.Get(ctx, "")
	if err != nil {
		return g.connectionError(ctx, c, statusOf(resp, err), err)
	}

	repository, resp, err := c.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return g.connectionError(ctx, c, statusOf(resp, err), err)
	}

	return domain.ConnectionCheck{
		Success: true,
		User:    user.GetLogin(),
		Repo:    repository.GetFullName(),
	}
}

func (g *GitHub) connectionError(ctx context.Context, c *github.Client, status int, err error) domain.ConnectionCheck {
	switch status {
	case http.StatusNotFound:
		repos, _, listErr := c.Repositories.ListByAuthenticatedUser(ctx, &github.RepositoryListByAuthenticatedUserOptions{
			Sort:        "updated",
			ListOptions: github.ListOptions{PerPage: visibleReposHint},
		})
		if listErr == nil {
			names := make([]string, 0, len(repos))
			for _, r := range repos {
				names = append(names, r.GetFullName())
			}
			return domain.ConnectionCheck{
				Error: fmt.Sprintf("Repo not found. Private repositories need a token with the 'repo' scope. Visible repos: [%s...]",
					strings.Join(names, ", ")),
			}
		}
		return domain.ConnectionCheck{
			Error: "Repository not found. Private repositories need a token with the 'repo' scope; 'public_repo' is not enough.",
		}
	case http.StatusUnauthorized:
		return domain.ConnectionCheck{Error: "Unauthorized. Please check your GitHub Personal Access Token."}
	default:
		return domain.ConnectionCheck{Error: messageOf(err)}
	}
}

func statusOf(resp *github.Response, err error) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}
	return 0
}

func messageOf(err error) string {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Message != "" {
		return errResp.Message
	}
	return err.Error()
}
