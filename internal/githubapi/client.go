// Package githubapi proposes case studies as pull requests on the content
// repository and lists the ones still open.
package githubapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mutual/internal/domain"
)

const perPage = 100

type Config struct {
	Owner      string
	Repo       string
	BaseBranch string
	Token      string
	// APIURL overrides https://api.github.com/, e.g. for GitHub Enterprise or tests.
	APIURL     string
	HTTPClient *http.Client
}

// Client talks to one repository.
type Client struct {
	gh     *github.Client
	owner  string
	repo   string
	base   string
	tracer trace.Tracer
}

func New(cfg Config) (*Client, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, errors.New("github owner and repo are required")
	}
	gh := github.NewClient(cfg.HTTPClient)
	if cfg.Token != "" {
		gh = gh.WithAuthToken(cfg.Token)
	}
	if cfg.APIURL != "" {
		u, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/") + "/")
		if err != nil {
			return nil, errors.Wrap(err, "parse github api url")
		}
		gh.BaseURL = u
	}
	base := cfg.BaseBranch
	if base == "" {
		base = "main"
	}
	return &Client{
		gh:     gh,
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		base:   base,
		tracer: otel.Tracer("mutual/githubapi"),
	}, nil
}

// ListOpen returns every open pull request, following pagination. A non-empty
// head restricts the result to pull requests from that branch.
func (c *Client) ListOpen(ctx context.Context, head string) ([]domain.ChangeRequest, error) {
	ctx, span := c.tracer.Start(ctx, "githubapi.ListOpen", trace.WithAttributes(attribute.String("head", head)))
	defer span.End()

	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	if head != "" {
		opts.Head = c.owner + ":" + head
	}
	res := []domain.ChangeRequest{}
	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, c.fail(span, "list pull requests", err)
		}
		for _, pr := range prs {
			res = append(res, toChangeRequest(pr))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	span.SetAttributes(attribute.Int("count", len(res)))
	return res, nil
}

// CreateChangeRequest creates the branch, commits the file and opens the pull
// request. Each step tolerates an earlier attempt having already done it, so a
// retried submission converges on the same pull request.
func (c *Client) CreateChangeRequest(ctx context.Context, sub Submission) (domain.ChangeRequest, error) {
	ctx, span := c.tracer.Start(ctx, "githubapi.CreateChangeRequest", trace.WithAttributes(
		attribute.String("branch", sub.Branch),
		attribute.String("path", sub.Path),
	))
	defer span.End()

	baseRef, _, err := c.gh.Git.GetRef(ctx, c.owner, c.repo, "refs/heads/"+c.base)
	if err != nil {
		return domain.ChangeRequest{}, c.fail(span, "read base branch "+c.base, err)
	}
	_, _, err = c.gh.Git.CreateRef(ctx, c.owner, c.repo, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + sub.Branch),
		Object: &github.GitObject{SHA: baseRef.GetObject().SHA},
	})
	if err != nil && !alreadyExists(err) {
		return domain.ChangeRequest{}, c.fail(span, "create branch "+sub.Branch, err)
	}
	_, _, err = c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, sub.Path, &github.RepositoryContentFileOptions{
		Message: github.Ptr(sub.CommitMessage),
		Content: sub.Content,
		Branch:  github.Ptr(sub.Branch),
	})
	if err != nil && !alreadyExists(err) {
		return domain.ChangeRequest{}, c.fail(span, "commit "+sub.Path, err)
	}
	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.Ptr(sub.Title),
		Head:  github.Ptr(sub.Branch),
		Base:  github.Ptr(c.base),
		Body:  github.Ptr(sub.Body),
	})
	if err != nil {
		if !alreadyExists(err) {
			return domain.ChangeRequest{}, c.fail(span, "open pull request", err)
		}
		open, lerr := c.ListOpen(ctx, sub.Branch)
		if lerr != nil {
			return domain.ChangeRequest{}, lerr
		}
		if len(open) == 0 {
			return domain.ChangeRequest{}, c.fail(span, "open pull request", err)
		}
		span.SetAttributes(attribute.Bool("reused", true))
		return open[0], nil
	}
	cr := toChangeRequest(pr)
	span.SetAttributes(attribute.Int("number", cr.Number))
	return cr, nil
}

func (c *Client) fail(span trace.Span, op string, err error) error {
	wrapped := &Error{Kind: classify(err), Op: op, Err: errors.Wrap(err, op)}
	span.RecordError(wrapped)
	span.SetStatus(codes.Error, wrapped.Kind.String())
	return wrapped
}

func toChangeRequest(pr *github.PullRequest) domain.ChangeRequest {
	return domain.ChangeRequest{
		Number:      pr.GetNumber(),
		HTMLURL:     pr.GetHTMLURL(),
		Title:       pr.GetTitle(),
		AuthorLogin: pr.GetUser().GetLogin(),
		State:       pr.GetState(),
		HeadBranch:  pr.GetHead().GetRef(),
	}
}
