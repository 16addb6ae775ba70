package gitpatch

import (
	"io"
	"os"
	"path/filepath"

	. "github.com/warpfork/go-errcat"

	"github.com/Wrymouth/merlon"
)

// MetadataFiles is the allow-list of auxiliary files copied alongside
// the patch set.  Anything else in the source dir stays behind.
var MetadataFiles = []string{
	"merlon.toml",
	"README.md", "README.txt", "README",
	"LICENSE.md", "LICENSE.txt", "LICENSE",
	"CONTRIBUTING.md", "CONTRIBUTING.txt", "CONTRIBUTING",
}

/*
	BundleMetadata copies each allow-listed file from srcDir into
	destDir when it exists.  Missing files are silently skipped;
	contents are copied byte-for-byte.  There's no ordering dependency
	between these files.

	May return errors of category:

	  - `merlon.ErrExtract` -- if a present file can't be copied
*/
func BundleMetadata(srcDir string, destDir string) error {
	for _, name := range MetadataFiles {
		srcPath := filepath.Join(srcDir, name)
		if _, err := os.Stat(srcPath); err != nil {
			continue
		}
		if err := copyFile(srcPath, filepath.Join(destDir, name)); err != nil {
			return Errorf(merlon.ErrExtract, "cannot bundle %s: %s", name, err)
		}
	}
	return nil
}

func copyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()
	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		return err
	}
	return dest.Close()
}
