package github

// This file contains the write side: turning a sync.CommitPlan into exactly
// one commit through the git data API (tree, commit, ref). The ref update
// runs with force:false, so a branch whose tip moved since the fetch makes
// the push fail with ErrBranchMoved instead of clobbering the other
// device's commit.

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sudokoi/expense-buddy-sub002/sync"
)

// ErrBranchMoved is returned when the branch tip changed underneath a push;
// rerunning the cycle merges on top of the new tip.
var ErrBranchMoved = errors.New("github: branch moved since fetch, rerun sync")

const blobMode = "100644"

// treeUpload adds or replaces one file with inline content.
type treeUpload struct {
	Path    string `json:"path"`
	Mode    string `json:"mode"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// treeDeletion removes one file. The API wants an explicit null sha, so the
// field must marshal even when nil.
type treeDeletion struct {
	Path string  `json:"path"`
	Mode string  `json:"mode"`
	Type string  `json:"type"`
	SHA  *string `json:"sha"`
}

// branchTip returns the commit and tree the branch points at, or ok=false
// for an unborn branch (freshly created, still empty repository).
func (c *Client) branchTip(ctx context.Context, branch string) (commit, tree string, ok bool, err error) {
	// GET /repos/{owner}/{repo}/git/ref/heads/{branch}
	// {
	//   "ref": "refs/heads/main",
	//   "object": { "sha": "aa218f56b14c9653891f9e74264a383fa43fefbd", "type": "commit" }
	// }
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	err = c.do(ctx, http.MethodGet, c.url("git", "ref", "heads", branch), "", nil, &ref)
	if errors.Is(err, errNotFound) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("cannot read branch %s: %w", branch, err)
	}

	// GET /repos/{owner}/{repo}/git/commits/{sha}
	// { "sha": "aa218f56...", "tree": { "sha": "691272480426f78a0138979dd3ce63b77f706feb" }, ... }
	var tip struct {
		Tree struct {
			SHA string `json:"sha"`
		} `json:"tree"`
	}
	if err := c.do(ctx, http.MethodGet, c.url("git", "commits", ref.Object.SHA), "", nil, &tip); err != nil {
		return "", "", false, fmt.Errorf("cannot read commit %s: %w", ref.Object.SHA, err)
	}
	return ref.Object.SHA, tip.Tree.SHA, true, nil
}

// Commit implements sync.Remote: the whole plan lands as one commit on top
// of the tip read now, and the ref moves to it only if nobody else moved it
// first.
func (c *Client) Commit(ctx context.Context, plan sync.CommitPlan) (sync.CommitResult, error) {
	if plan.Empty() {
		return sync.CommitResult{}, fmt.Errorf("github: refusing to commit an empty plan")
	}
	branch, err := c.resolvedBranch(ctx)
	if err != nil {
		return sync.CommitResult{}, err
	}

	parent, baseTree, born, err := c.branchTip(ctx, branch)
	if err != nil {
		return sync.CommitResult{}, err
	}
	if !born && len(plan.Deletions) > 0 {
		return sync.CommitResult{}, fmt.Errorf("github: cannot delete from unborn branch %s", branch)
	}

	entries := make([]any, 0, len(plan.Uploads)+len(plan.Deletions))
	for _, up := range plan.Uploads {
		entries = append(entries, treeUpload{Path: up.Path, Mode: blobMode, Type: "blob", Content: string(up.Content)})
	}
	for _, path := range plan.Deletions {
		entries = append(entries, treeDeletion{Path: path, Mode: blobMode, Type: "blob"})
	}

	// POST /repos/{owner}/{repo}/git/trees
	treeReq := map[string]any{"tree": entries}
	if born {
		treeReq["base_tree"] = baseTree
	}
	var tree struct {
		SHA string `json:"sha"`
	}
	if err := c.do(ctx, http.MethodPost, c.url("git", "trees"), "", treeReq, &tree); err != nil {
		return sync.CommitResult{}, fmt.Errorf("cannot create tree: %w", err)
	}

	// POST /repos/{owner}/{repo}/git/commits
	commitReq := map[string]any{"message": plan.Message, "tree": tree.SHA}
	if born {
		commitReq["parents"] = []string{parent}
	}
	var commit struct {
		SHA string `json:"sha"`
	}
	if err := c.do(ctx, http.MethodPost, c.url("git", "commits"), "", commitReq, &commit); err != nil {
		return sync.CommitResult{}, fmt.Errorf("cannot create commit: %w", err)
	}

	if born {
		// PATCH /repos/{owner}/{repo}/git/refs/heads/{branch}
		// force:false only moves the ref fast-forward from the parent we
		// committed on, which is the compare-and-swap this whole sequence
		// relies on.
		patch := map[string]any{"sha": commit.SHA, "force": false}
		err := c.do(ctx, http.MethodPatch, c.url("git", "refs", "heads", branch), "", patch, nil)
		var respErr *apiError
		switch {
		case errors.As(err, &respErr) && (respErr.Status == http.StatusConflict || respErr.Status == http.StatusUnprocessableEntity):
			return sync.CommitResult{}, fmt.Errorf("cannot update branch %s: %w", branch, ErrBranchMoved)
		case err != nil:
			return sync.CommitResult{}, fmt.Errorf("cannot update branch %s: %w", branch, err)
		}
	} else {
		// POST /repos/{owner}/{repo}/git/refs bootstraps the branch on an
		// empty repository.
		create := map[string]any{"ref": "refs/heads/" + branch, "sha": commit.SHA}
		if err := c.do(ctx, http.MethodPost, c.url("git", "refs"), "", create, nil); err != nil {
			return sync.CommitResult{}, fmt.Errorf("cannot create branch %s: %w", branch, err)
		}
	}

	c.logger.Printf("pushed %s to %s (%d uploads, %d deletions)", commit.SHA, branch, len(plan.Uploads), len(plan.Deletions))
	return sync.CommitResult{Commit: commit.SHA}, nil
}
