package testutil

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/smartystreets/goconvey/convey"
	srcd_osfs "gopkg.in/src-d/go-billy.v4/osfs"
	srcd_git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/cache"
	"gopkg.in/src-d/go-git.v4/plumbing/object"
	"gopkg.in/src-d/go-git.v4/storage/filesystem"
)

/*
	A scratch git repository on disk, scriptable from tests.

	Commits use a fixed author and timestamp, so fixture histories are
	deterministic: the same script always produces the same hashes and
	the same patch bytes.
*/
type GitFixture struct {
	Dir  string
	Repo *srcd_git.Repository
}

var fixtureSig = object.Signature{
	Name:  "Fixture",
	Email: "fixture@example.org",
	When:  time.Date(2020, time.March, 14, 15, 9, 26, 0, time.UTC),
}

// GitRepoFixture initializes a fresh non-bare repository at dir.
func GitRepoFixture(dir string) GitFixture {
	worktree := srcd_osfs.New(dir)
	dotgit, err := worktree.Chroot(".git")
	convey.So(err, convey.ShouldBeNil)
	storer := filesystem.NewStorage(dotgit, cache.NewObjectLRUDefault())
	repo, err := srcd_git.Init(storer, worktree)
	convey.So(err, convey.ShouldBeNil)
	return GitFixture{Dir: dir, Repo: repo}
}

// WriteFile places content at a slash-separated path relative to the
// worktree root, creating parent dirs as needed.
func (f GitFixture) WriteFile(rel string, content string) {
	path := filepath.Join(f.Dir, filepath.FromSlash(rel))
	convey.So(os.MkdirAll(filepath.Dir(path), 0755), convey.ShouldBeNil)
	convey.So(ioutil.WriteFile(path, []byte(content), 0644), convey.ShouldBeNil)
}

// Commit stages the given worktree-relative paths and commits them,
// returning the new commit hash.
func (f GitFixture) Commit(msg string, paths ...string) string {
	wt, err := f.Repo.Worktree()
	convey.So(err, convey.ShouldBeNil)
	for _, p := range paths {
		_, err := wt.Add(p)
		convey.So(err, convey.ShouldBeNil)
	}
	sig := fixtureSig
	hash, err := wt.Commit(msg, &srcd_git.CommitOptions{Author: &sig, Committer: &sig})
	convey.So(err, convey.ShouldBeNil)
	return hash.String()
}

// MergeCommit fabricates a merge commit on the current branch whose
// second parent is otherParent, reusing HEAD's tree (no content
// change).  Enough to exercise merge exclusion without branch
// plumbing.
func (f GitFixture) MergeCommit(msg string, otherParent string) string {
	return f.MergeCommitAt(msg, f.Head(), otherParent)
}

// MergeCommitAt fabricates a merge commit with the given parent hashes
// in order, reusing the current HEAD tree, and advances the branch to
// it.  With the base first, this models a feature branch merged into a
// mainline that hasn't moved.
func (f GitFixture) MergeCommitAt(msg string, parents ...string) string {
	head, err := f.Repo.Head()
	convey.So(err, convey.ShouldBeNil)
	headCommit, err := f.Repo.CommitObject(head.Hash())
	convey.So(err, convey.ShouldBeNil)

	parentHashes := make([]plumbing.Hash, len(parents))
	for i, p := range parents {
		parentHashes[i] = plumbing.NewHash(p)
	}
	sig := fixtureSig
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      msg,
		TreeHash:     headCommit.TreeHash,
		ParentHashes: parentHashes,
	}
	obj := f.Repo.Storer.NewEncodedObject()
	convey.So(commit.Encode(obj), convey.ShouldBeNil)
	hash, err := f.Repo.Storer.SetEncodedObject(obj)
	convey.So(err, convey.ShouldBeNil)
	convey.So(f.Repo.Storer.SetReference(plumbing.NewHashReference(head.Name(), hash)), convey.ShouldBeNil)
	return hash.String()
}

// Head returns the current HEAD commit hash.
func (f GitFixture) Head() string {
	head, err := f.Repo.Head()
	convey.So(err, convey.ShouldBeNil)
	return head.Hash().String()
}
