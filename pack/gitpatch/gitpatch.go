/*
	Package gitpatch turns a slice of git history into an ordered patch
	set on disk, plus the auxiliary metadata files that travel with it.

	The commit range is `(base, HEAD]` restricted to a fixed set of
	watched path prefixes.  Commit *selection* is done in-process with
	go-git (so an empty range is detected precisely, before anything
	shells out); patch *emission* is delegated to the host `git
	format-patch`, whose binary literal diffs are the interchange format
	every consumer of a patch set understands.
*/
package gitpatch

import (
	"context"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	. "github.com/warpfork/go-errcat"
	srcd_git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/object"

	"github.com/Wrymouth/merlon"
)

// WatchedPaths are the subtree prefixes a commit must touch to qualify
// for extraction.  Not user-configurable.
var WatchedPaths = []string{
	"src",
	"include",
	"assets",
	"ver/us",
}

// Commit is the selection result for one qualifying commit.
type Commit struct {
	Hash    string
	Subject string
}

/*
	QualifyingCommits walks `(baseRev, HEAD]` in the repo at repoDir and
	returns the qualifying commits, oldest first.  The range is the full
	DAG slice -- everything reachable from HEAD but not from the base --
	so work delivered through a merged side branch still counts.  Merge
	commits themselves are excluded; a commit qualifies only if it
	touches a watched prefix.

	May return errors of category:

	  - `merlon.ErrExtract` -- if the repo is unopenable, the base revision
	    is unknown, or it isn't an ancestor of HEAD
	  - `merlon.ErrCancelled` -- if the context is cancelled mid-walk
*/
func QualifyingCommits(ctx context.Context, repoDir string, baseRev string) ([]Commit, error) {
	repo, err := srcd_git.PlainOpen(repoDir)
	if err != nil {
		return nil, Errorf(merlon.ErrExtract, "cannot open git repo at %s: %s", repoDir, err)
	}
	baseHash, err := repo.ResolveRevision(plumbing.Revision(baseRev))
	if err != nil {
		return nil, Errorf(merlon.ErrExtract, "cannot resolve base revision %q in %s: %s", baseRev, repoDir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, Errorf(merlon.ErrExtract, "cannot resolve HEAD of %s: %s", repoDir, err)
	}
	if head.Hash() == *baseHash {
		return nil, nil
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, Errorf(merlon.ErrExtract, "cannot load HEAD commit of %s: %s", repoDir, err)
	}
	baseCommit, err := repo.CommitObject(*baseHash)
	if err != nil {
		return nil, Errorf(merlon.ErrExtract, "cannot load base commit %q of %s: %s", baseRev, repoDir, err)
	}
	if ancestor, err := baseCommit.IsAncestor(headCommit); err != nil {
		return nil, Errorf(merlon.ErrExtract, "cannot walk history of %s: %s", repoDir, err)
	} else if !ancestor {
		return nil, Errorf(merlon.ErrExtract, "base revision %q is not an ancestor of HEAD in %s", baseRev, repoDir)
	}

	// format-patch makes the authoritative selection later; this walk
	// exists to catch the empty range early and to know the expected
	// ordering.  `base..HEAD` means reachable-from-HEAD minus
	// reachable-from-base, so collect the base's ancestry first and
	// walk HEAD's with that set masked out.
	reachableFromBase := make(map[plumbing.Hash]bool)
	baseIter := object.NewCommitPreorderIter(baseCommit, nil, nil)
	if err := baseIter.ForEach(func(commit *object.Commit) error {
		reachableFromBase[commit.Hash] = true
		return nil
	}); err != nil {
		return nil, Errorf(merlon.ErrExtract, "cannot walk history of %s: %s", repoDir, err)
	}

	var selected []Commit
	iter := object.NewCommitPreorderIter(headCommit, reachableFromBase, nil)
	walkErr := iter.ForEach(func(commit *object.Commit) error {
		if ctx.Err() != nil {
			return Errorf(merlon.ErrCancelled, "cancelled")
		}
		if commit.NumParents() > 1 {
			return nil
		}
		touches, err := touchesWatchedPath(commit)
		if err != nil {
			return Errorf(merlon.ErrExtract, "cannot diff commit %s: %s", commit.Hash, err)
		}
		if touches {
			selected = append(selected, Commit{
				Hash:    commit.Hash.String(),
				Subject: subjectLine(commit.Message),
			})
		}
		return nil
	})
	switch Category(walkErr) {
	case nil:
	case merlon.ErrCancelled, merlon.ErrExtract:
		return nil, walkErr
	default:
		return nil, Errorf(merlon.ErrExtract, "cannot walk history of %s: %s", repoDir, walkErr)
	}

	// The walk collected newest first; patch order is oldest first.
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}
	return selected, nil
}

// touchesWatchedPath reports whether the commit's diff against its
// first parent (or against the empty tree, for a root commit) contains
// any path under a watched prefix.
func touchesWatchedPath(commit *object.Commit) (bool, error) {
	tree, err := commit.Tree()
	if err != nil {
		return false, err
	}
	if commit.NumParents() == 0 {
		found := false
		err := tree.Files().ForEach(func(f *object.File) error {
			if underWatchedPath(f.Name) {
				found = true
			}
			return nil
		})
		return found, err
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return false, err
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return false, err
	}
	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return false, err
	}
	for _, change := range changes {
		if underWatchedPath(change.From.Name) || underWatchedPath(change.To.Name) {
			return true, nil
		}
	}
	return false, nil
}

func underWatchedPath(name string) bool {
	if name == "" {
		return false
	}
	for _, prefix := range WatchedPaths {
		if name == prefix || strings.HasPrefix(name, prefix+"/") {
			return true
		}
	}
	return false
}

func subjectLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}
	return strings.TrimSpace(message)
}

/*
	Extract clears destDir and fills it with one patch file per commit
	in `(baseRev, HEAD]` touching the watched prefixes, by invoking the
	host `git format-patch`.  Returns the patch filenames in application
	order (format-patch's zero-padded numbering sorts lexically).

	The destination is cleared of *all* pre-existing entries first, so
	stale leftovers never leak into a bundle -- and anything manually
	placed there is destroyed.

	May return errors of category:

	  - `merlon.ErrExtract` -- on any nonzero exit of the git invocation,
	    naming destDir
	  - `merlon.ErrCancelled` -- if the context is cancelled
*/
func Extract(ctx context.Context, repoDir string, baseRev string, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, Errorf(merlon.ErrExtract, "cannot create patch directory %s: %s", destDir, err)
	}
	if err := clearDir(destDir); err != nil {
		return nil, Errorf(merlon.ErrExtract, "cannot clear patch directory %s: %s", destDir, err)
	}
	destAbs, err := filepath.Abs(destDir)
	if err != nil {
		return nil, Errorf(merlon.ErrExtract, "cannot resolve patch directory %s: %s", destDir, err)
	}

	args := []string{
		"format-patch",
		baseRev + "..HEAD",
		"-o", destAbs,
		"--minimal",
		"--binary",
		"--ignore-cr-at-eol",
		"--function-context",
		"--keep-subject",
		"--no-merges",
		"--no-stdout",
		"--",
	}
	args = append(args, WatchedPaths...)
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoDir
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, Errorf(merlon.ErrCancelled, "cancelled")
		}
		return nil, Errorf(merlon.ErrExtract, "failed git format-patch to directory %s: %s (%s)",
			destDir, err, strings.TrimSpace(string(output)))
	}

	entries, err := ioutil.ReadDir(destAbs)
	if err != nil {
		return nil, Errorf(merlon.ErrExtract, "cannot list patch directory %s: %s", destDir, err)
	}
	var patches []string
	for _, entry := range entries {
		if !entry.IsDir() {
			patches = append(patches, entry.Name())
		}
	}
	sort.Strings(patches)
	return patches, nil
}

// clearDir removes every entry of dir, recursively, leaving dir itself.
func clearDir(dir string) error {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
