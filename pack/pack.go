/*
	Package pack runs the packaging pipeline: turn a mod dir's git
	history slice into a single encrypted distributable artifact.

	The pipeline is strictly sequential -- extract, bundle, archive,
	encrypt, place -- with each stage gated on the success of the one
	before it.  There is no parallelism, no retry, and no partial
	success: any stage failure aborts the whole run.  Staging state
	under `.merlon/packages/` is deliberately left in place on failure
	so the operator can inspect it; a re-run clears and regenerates it.
*/
package pack

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	. "github.com/warpfork/go-errcat"

	"github.com/Wrymouth/merlon"
	"github.com/Wrymouth/merlon/moddir"
	"github.com/Wrymouth/merlon/pack/gitpatch"
	"github.com/Wrymouth/merlon/pack/seal"
	"github.com/Wrymouth/merlon/pack/tarball"
	"github.com/Wrymouth/merlon/rom"
)

// Extension is the conventional extension for distributable artifacts.
// A different extension is a warning, never an error.
const Extension = "merlon"

// Pipeline stage names, as they appear in progress events.
const (
	StageExtract = "extract"
	StageBundle  = "bundle"
	StageArchive = "archive"
	StageEncrypt = "encrypt"
	StagePlace   = "place"
)

// Staging filenames inside `.merlon/packages/<name>/`.
const (
	patchesDirName = "patches"
	archiveName    = "patches.tar.gz"
	encryptedName  = "patches.enc"
)

type Spec struct {
	// The mod dir to package.
	ModDir moddir.ModDir

	// Explicit output path.  When blank, the output name defaults to
	// the package name and the path to `<cwd>/<name>.merlon`.
	OutputPath string

	// Optionally: callbacks for progress and warning monitoring.
	Monitor merlon.Monitor
}

/*
	Pack runs the whole pipeline and returns the final artifact path.

	Descriptor validation issues and an off-convention output extension
	are surfaced as warning events, not errors.  Everything else in the
	taxonomy is fatal; see the category list on each stage's package.
*/
func Pack(ctx context.Context, spec Spec) (_ string, err error) {
	mon := spec.Monitor
	if mon.Chan != nil {
		defer close(mon.Chan)
	}
	defer RequireErrorHasCategory(&err, merlon.ErrorCategory(""))

	// Load the descriptor.  Validation issues are advisory.
	config, err := spec.ModDir.Config()
	if err != nil {
		return "", err
	}
	for _, violation := range config.Package.Validate() {
		mon.WarningEvent("%s", violation)
	}

	// Resolve the output identity before doing any work.
	outputName, outputPath, err := ResolveOutput(spec.OutputPath, config.Package.Name)
	if err != nil {
		return "", err
	}
	if filepath.Ext(outputPath) != "."+Extension {
		mon.WarningEvent("output filename does not end in .%s", Extension)
	}

	// Staging paths for this run.
	stagingDir := spec.ModDir.StagingDir(outputName)
	patchesDir := filepath.Join(stagingDir, patchesDirName)
	archivePath := filepath.Join(stagingDir, archiveName)
	encryptedPath := filepath.Join(stagingDir, encryptedName)
	submoduleDir := spec.ModDir.SubmoduleDir()

	// Select commits.  An empty range is a usage mistake and gets its
	// own category, distinct from a failing git invocation.
	commits, err := gitpatch.QualifyingCommits(ctx, submoduleDir, config.BaseCommit)
	if err != nil {
		return "", err
	}
	if len(commits) == 0 {
		return "", Errorf(merlon.ErrNoCommits, "no commits in %s submodule - did you forget to `git commit` inside?", moddir.SubmoduleName)
	}

	// Extract the patch set.
	mon.ProgressEvent(StageExtract, submoduleDir)
	patches, err := gitpatch.Extract(ctx, submoduleDir, config.BaseCommit, patchesDir)
	if err != nil {
		return "", err
	}
	if len(patches) == 0 {
		return "", Errorf(merlon.ErrNoCommits, "no commits in %s submodule - did you forget to `git commit` inside?", moddir.SubmoduleName)
	}

	// Bundle the metadata allow-list alongside the patches.
	mon.ProgressEvent(StageBundle, patchesDir)
	if err := gitpatch.BundleMetadata(spec.ModDir.Path(), patchesDir); err != nil {
		return "", err
	}

	// Archive the bundle, then surface the member list.
	mon.ProgressEvent(StageArchive, archivePath)
	if err := tarball.Pack(ctx, archivePath, patchesDir, patchesDirName); err != nil {
		return "", err
	}
	members, err := tarball.List(archivePath)
	if err != nil {
		return "", err
	}
	for _, member := range members {
		mon.ProgressEvent(StageArchive, member)
	}

	// Encrypt, keyed by the base ROM's raw bytes.  The progress event
	// carries the ROM's identity digest, never its content.
	baseRom := rom.New(spec.ModDir.BaseRomPath())
	mon.ProgressEvent(StageEncrypt, baseRom.String())
	if err := seal.Seal(ctx, encryptedPath, archivePath, baseRom.Path()); err != nil {
		return "", err
	}

	// Place the artifact at its final path.
	mon.ProgressEvent(StagePlace, outputPath)
	if err := Place(encryptedPath, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

/*
	ResolveOutput determines the logical package name and the final
	artifact path.  An explicit path wins: its file stem becomes the
	name and the path is used verbatim.  Otherwise the validated
	descriptor name is used, and the artifact lands in the current
	directory as `<name>.merlon`.

	May return errors of category:

	  - `merlon.ErrPlace` -- if the computed name is empty, or the current
	    directory can't be resolved
*/
func ResolveOutput(explicitPath string, packageName string) (name string, path string, err error) {
	if explicitPath != "" {
		base := filepath.Base(explicitPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
		if name == "" {
			return "", "", Errorf(merlon.ErrPlace, "output filename cannot be empty")
		}
		return name, explicitPath, nil
	}
	if packageName == "" {
		return "", "", Errorf(merlon.ErrPlace, "output filename cannot be empty")
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", "", Errorf(merlon.ErrPlace, "cannot resolve current directory: %s", err)
	}
	return packageName, filepath.Join(cwd, packageName+"."+Extension), nil
}

/*
	Place copies the staged artifact to its final path, overwriting
	silently if something is already there.  The copy goes through a
	temp file in the destination directory and a rename, so a crash
	mid-copy never leaves a half-written artifact at the final path.

	May return errors of category:

	  - `merlon.ErrPlace` -- for any I/O failure, naming the real
	    destination path
*/
func Place(stagedPath string, destPath string) error {
	staged, err := os.Open(stagedPath)
	if err != nil {
		return Errorf(merlon.ErrPlace, "cannot place artifact at %s: %s", destPath, err)
	}
	defer staged.Close()

	tmp, err := ioutil.TempFile(filepath.Dir(destPath), "."+filepath.Base(destPath)+".")
	if err != nil {
		return Errorf(merlon.ErrPlace, "cannot place artifact at %s: %s", destPath, err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}
	if _, err := io.Copy(tmp, staged); err != nil {
		cleanup()
		return Errorf(merlon.ErrPlace, "cannot place artifact at %s: %s", destPath, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		cleanup()
		return Errorf(merlon.ErrPlace, "cannot place artifact at %s: %s", destPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Errorf(merlon.ErrPlace, "cannot place artifact at %s: %s", destPath, err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		os.Remove(tmp.Name())
		return Errorf(merlon.ErrPlace, "cannot place artifact at %s: %s", destPath, err)
	}
	return nil
}
