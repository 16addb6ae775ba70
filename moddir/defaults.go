package moddir

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	. "github.com/warpfork/go-errcat"
	srcd_git "gopkg.in/src-d/go-git.v4"

	"github.com/Wrymouth/merlon"
)

/*
	DefaultConfig builds a fresh manifest for a mod dir that doesn't
	have one yet: package name from the directory basename, the current
	git identity as sole author, and the vendored subtree's HEAD as the
	base commit.

	May return errors of category:

	  - `merlon.ErrConfig` -- if the vendored subtree isn't a usable git worktree
*/
func DefaultConfig(modPath string) (Config, error) {
	modPath, err := filepath.Abs(modPath)
	if err != nil {
		return Config{}, Errorf(merlon.ErrConfig, "cannot resolve mod dir path: %s", err)
	}
	baseCommit, err := submoduleHead(filepath.Join(modPath, SubmoduleName))
	if err != nil {
		return Config{}, err
	}
	return Config{
		BaseCommit: baseCommit,
		Package: Package{
			Name:        filepath.Base(modPath),
			Version:     "0.1.0",
			Authors:     []string{gitAuthor()},
			Description: "An amazing mod",
			License:     "CC-BY-SA-4.0",
			Keywords:    []string{},
		},
		Dependencies: map[string]Dependency{},
	}, nil
}

func submoduleHead(submodulePath string) (string, error) {
	repo, err := srcd_git.PlainOpen(submodulePath)
	if err != nil {
		return "", Errorf(merlon.ErrConfig, "cannot open git repo at %s: %s", submodulePath, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", Errorf(merlon.ErrConfig, "cannot resolve HEAD of %s: %s", submodulePath, err)
	}
	return head.Hash().String(), nil
}

// gitAuthor yields `Name <email>` from the user's git configuration.
// Identity trouble degrades to empty fields rather than erroring; the
// manifest validator will flag the result and the user can fill it in.
func gitAuthor() string {
	return fmt.Sprintf("%s <%s>", gitConfigValue("user.name"), gitConfigValue("user.email"))
}

// gitConfigValue shells out for a global config key.  The repo-local
// config (all go-git v4 can see) rarely holds user identity, so this
// asks the real git, which merges all scopes.
func gitConfigValue(key string) string {
	out, err := exec.Command("git", "config", key).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
