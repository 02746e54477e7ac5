// Package github syncs the ledger against a GitHub repository, using the
// contents API to read partitions and the low-level git data API (trees,
// commits, refs) to write every change of a cycle as one atomic commit.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
)

// DefaultAPIBase is the public GitHub REST endpoint.
const DefaultAPIBase = "https://api.github.com"

var (
	// ErrUnauthorized is returned when the token is missing scopes,
	// expired, or plain wrong.
	ErrUnauthorized = errors.New("github: bad or missing token")
	// errNotFound marks a 404 so callers can treat absent files and
	// unborn branches as normal cases.
	errNotFound = errors.New("github: not found")
)

// apiError is any other non-2xx answer from the API.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("github: %s (http %d)", e.Message, e.Status)
}

// Config identifies one repository holding one ledger.
type Config struct {
	// APIBase defaults to DefaultAPIBase; point it elsewhere for GitHub
	// Enterprise instances.
	APIBase string
	// Repo is the "owner/name" pair.
	Repo string
	// Branch holding the ledger. Empty means the repository's default
	// branch, resolved on first use.
	Branch string
	// Token is a fine-grained or classic token with contents read/write.
	// Empty works for reading public repositories.
	Token string

	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client talks to one repository. It is not safe for concurrent use: one
// sync cycle drives it at a time.
type Client struct {
	apiBase string
	repo    string
	branch  string
	token   string
	hc      *http.Client
	logger  *log.Logger
	now     func() time.Time
}

// New validates cfg and returns a client. No request is made yet.
func New(cfg Config) (*Client, error) {
	owner, name, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("github: repository %q is not owner/name", cfg.Repo)
	}
	base := cfg.APIBase
	if base == "" {
		base = DefaultAPIBase
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[github] ", log.LstdFlags)
	}
	return &Client{
		apiBase: strings.TrimSuffix(base, "/"),
		repo:    cfg.Repo,
		branch:  cfg.Branch,
		token:   cfg.Token,
		hc:      hc,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// url builds a repository-scoped API url; parts are joined as given, so
// callers escape what needs escaping.
func (c *Client) url(parts ...string) string {
	u := c.apiBase + "/repos/" + c.repo
	if len(parts) > 0 {
		u += "/" + strings.Join(parts, "/")
	}
	return u
}

// do performs one API call: body (when non-nil) is sent as JSON, and the
// answer is decoded into out (when non-nil). accept defaults to the
// standard API media type; pass "application/vnd.github.raw" to receive
// file bytes into an out of type *[]byte.
func (c *Client) do(ctx context.Context, method, addr, accept string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cannot encode request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, addr, payload)
	if err != nil {
		return fmt.Errorf("cannot create http request %q: %w", addr, err)
	}
	if accept == "" {
		accept = "application/vnd.github+json"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("cannot execute http request: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Printf("%s %s %s", method, req.URL.Path, resp.Status)

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return fmt.Errorf("cannot read http body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, errNotFound)
	case resp.StatusCode >= 300:
		// error answers carry {"message": "..."}
		var detail struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(buf.Bytes(), &detail)
		if detail.Message == "" {
			detail.Message = resp.Status
		}
		return &apiError{Status: resp.StatusCode, Message: detail.Message}
	}

	switch out := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*out = buf.Bytes()
		return nil
	default:
		if err := json.Unmarshal(buf.Bytes(), out); err != nil {
			return fmt.Errorf("could not decode github json from %s: %w", req.URL.Path, err)
		}
		return nil
	}
}

// DefaultBranch asks the repository metadata for its default branch.
func (c *Client) DefaultBranch(ctx context.Context) (string, error) {
	// GET /repos/{owner}/{repo}
	// {
	//   "id": 1296269,
	//   "name": "expense-ledger",
	//   "default_branch": "main",
	//   ...
	// }
	var meta any
	if err := c.do(ctx, http.MethodGet, c.url(), "", nil, &meta); err != nil {
		return "", fmt.Errorf("cannot read repository metadata: %w", err)
	}
	got, err := jsonpath.Get("$.default_branch", meta)
	if err != nil {
		return "", fmt.Errorf("repository metadata has no default branch: %w", err)
	}
	branch, ok := got.(string)
	if !ok || branch == "" {
		return "", fmt.Errorf("repository metadata has unusable default branch %v", got)
	}
	return branch, nil
}

// resolvedBranch returns the configured branch, resolving the repository
// default once when none was configured.
func (c *Client) resolvedBranch(ctx context.Context) (string, error) {
	if c.branch != "" {
		return c.branch, nil
	}
	branch, err := c.DefaultBranch(ctx)
	if err != nil {
		return "", err
	}
	c.logger.Printf("using default branch %q", branch)
	c.branch = branch
	return branch, nil
}

func refQuery(branch string) string {
	return "?ref=" + url.QueryEscape(branch)
}
