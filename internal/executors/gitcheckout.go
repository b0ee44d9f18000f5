package executors

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/registry"
)

// gitCheckoutNode implements the Git-Checkout node kind: clones a
// repository ref into a known workspace (§4.3). The repository URL comes
// from config "repoUrl", else the execution context's "repoUrl"; the ref
// from the "ref" input, else config "ref", else the context's "ref". Issue
// owner/repo fields in the context are not read.
type gitCheckoutNode struct {
	workspaceRoot string
}

// NewGitCheckout builds the Git-Checkout executor, rooted at workspaceRoot.
func NewGitCheckout(workspaceRoot string) Executor {
	return &gitCheckoutNode{workspaceRoot: workspaceRoot}
}

func (n *gitCheckoutNode) Kind() registry.NodeKind { return registry.KindGitCheckout }

func (n *gitCheckoutNode) Execute(ctx context.Context, config map[string]any, inputs Inputs, ec ExecutionContext) (Result, error) {
	repoURL, _ := config["repoUrl"].(string)
	if repoURL == "" {
		repoURL, _ = ec.Context["repoUrl"].(string)
	}
	if repoURL == "" {
		return Result{}, apperrors.New(apperrors.KindValidation, "git-checkout", "no repository url given or found in context")
	}

	ref, _ := inputs["ref"].(string)
	if ref == "" {
		ref, _ = config["ref"].(string)
	}
	if ref == "" {
		ref, _ = ec.Context["ref"].(string)
	}

	skipIfExists, _ := config["skipIfExists"].(bool)
	dest := filepath.Join(n.workspaceRoot, ec.ExecutionID, ec.NodeID)

	if skipIfExists {
		if info, err := os.Stat(dest); err == nil && info.IsDir() {
			return Result{Outputs: map[string]any{"path": dest, "ref": ref}}, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindInternalError, "git-checkout", err)
	}

	ec.emit("activity:git-checkout:start", map[string]any{"repoUrl": repoURL, "ref": ref})
	repo, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{URL: repoURL})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return Result{Outputs: map[string]any{"path": dest, "ref": ref}}, nil
		}
		return Result{}, apperrors.Wrap(apperrors.KindPlatformError, "git-checkout", err)
	}

	if ref != "" {
		if err := checkoutRef(repo, ref); err != nil {
			return Result{}, apperrors.Wrap(apperrors.KindPlatformError, "git-checkout", err)
		}
	}

	return Result{Outputs: map[string]any{"path": dest, "ref": ref}}, nil
}

// checkoutRef resolves ref against the repository (branch, tag, or commit
// hash all work via ResolveRevision) and checks out the resulting commit.
func checkoutRef(repo *git.Repository, ref string) error {
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: *hash})
}
