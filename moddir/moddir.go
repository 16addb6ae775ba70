/*
	Package moddir resolves the layout of a mod project directory.

	A mod dir is a working tree with a `merlon.toml` manifest at its
	root and a vendored copy of the base game's source tree in a
	`papermario/` subdirectory (a git submodule in practice, though this
	package only cares that it is a git worktree).  The base ROM asset
	lives at a fixed relative path inside that subtree.

	Everything here is read-only from the packaging pipeline's point of
	view; the one mutating operation (writing a defaulted manifest) is
	only reachable through the init command.
*/
package moddir

import (
	"os"
	"path/filepath"

	. "github.com/warpfork/go-errcat"

	"github.com/Wrymouth/merlon"
)

const (
	// ManifestName is the filename of the package manifest, always
	// directly inside the mod dir root.
	ManifestName = "merlon.toml"

	// SubmoduleName is the directory name of the vendored base game
	// source tree.
	SubmoduleName = "papermario"

	// BaseRomRelPath is where the base ROM asset sits inside the
	// vendored subtree.  Its raw bytes are the encryption password for
	// distributables; see the pack/seal package.
	BaseRomRelPath = "ver/us/baserom.z64"
)

type ModDir struct {
	path string
}

/*
	Open resolves a path as a mod dir, verifying the expected layout.

	May return errors of category:

	  - `merlon.ErrConfig` -- if the manifest or the vendored subtree is missing
*/
func Open(path string) (ModDir, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return ModDir{}, Errorf(merlon.ErrConfig, "cannot resolve mod dir path: %s", err)
	}
	d := ModDir{path}
	if _, err := os.Stat(d.ConfigPath()); err != nil {
		return ModDir{}, Errorf(merlon.ErrConfig, "%s is not a mod dir: no %s (%s)", path, ManifestName, err)
	}
	if stat, err := os.Stat(d.SubmoduleDir()); err != nil || !stat.IsDir() {
		return ModDir{}, Errorf(merlon.ErrConfig, "%s is not a mod dir: no %s subtree", path, SubmoduleName)
	}
	return d, nil
}

func (d ModDir) Path() string {
	return d.path
}

// SubmoduleDir is the vendored base game source tree; patch extraction
// runs against the git history inside it.
func (d ModDir) SubmoduleDir() string {
	return filepath.Join(d.path, SubmoduleName)
}

func (d ModDir) ConfigPath() string {
	return filepath.Join(d.path, ManifestName)
}

// BaseRomPath is the designated key material file for encryption.
// The file is not required to exist until encryption time.
func (d ModDir) BaseRomPath() string {
	return filepath.Join(d.SubmoduleDir(), filepath.FromSlash(BaseRomRelPath))
}

// StagingDir is the scratch area for one named packaging run.  It is
// owned by that run for the pipeline's duration and is left in place on
// failure for inspection.
func (d ModDir) StagingDir(outputName string) string {
	return filepath.Join(d.path, ".merlon", "packages", outputName)
}

// Config reads and parses the manifest.  Parsing is repeated on every
// call; the manifest is small and callers read it once per run.
func (d ModDir) Config() (Config, error) {
	return ReadConfigFile(d.ConfigPath())
}
