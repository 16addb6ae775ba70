/*
	Package tarball compresses a bundle directory into a single
	tar.gz archive with deterministic membership and normalized entry
	metadata, and can enumerate members of existing archives.

	Normalization serves two masters: portability (no platform-specific
	extended attributes leak into the archive) and reproducibility (two
	runs over identical bundle contents produce byte-identical archive
	files, which keeps the encrypted artifact the only nondeterministic
	thing in a packaging run).
*/
package tarball

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	. "github.com/warpfork/go-errcat"

	"github.com/Wrymouth/merlon"
)

// Normalized entry metadata.  The mtime matches the epoch convention
// used elsewhere in this codebase's lineage for packed filesets; any
// fixed value would do, but a recognizable one aids debugging.
var normalizedMtime = time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	normalizedDirPerms  = 0755
	normalizedFilePerms = 0644
)

/*
	Pack archives srcDir (recursively) into a gzip'd tar at archivePath,
	with all members rooted under `prefix/`.

	Entry normalization: xattrs and PAX records stripped, uid/gid zeroed,
	user/group names blanked, fixed mtime, fixed perms, USTAR headers.
	Walk order is lexical, so membership order is deterministic.  The
	gzip header carries no timestamp and no OS marker.

	May return errors of category:

	  - `merlon.ErrArchive` -- for any failure to read the bundle or write
	    the archive
	  - `merlon.ErrCancelled` -- if the context is cancelled mid-walk
*/
func Pack(ctx context.Context, archivePath string, srcDir string, prefix string) error {
	archive, err := os.Create(archivePath)
	if err != nil {
		return Errorf(merlon.ErrArchive, "failed to compress to tar %s: %s", archivePath, err)
	}
	defer archive.Close()

	gzWriter, err := gzip.NewWriterLevel(archive, gzip.DefaultCompression)
	if err != nil {
		return Errorf(merlon.ErrArchive, "failed to compress to tar %s: %s", archivePath, err)
	}
	// A zero ModTime elides the timestamp; OS 255 is "unknown".
	// Both fields would otherwise vary across runs and hosts.
	gzWriter.Header.ModTime = time.Time{}
	gzWriter.Header.OS = 255
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	if err := packTree(ctx, tarWriter, srcDir, prefix); err != nil {
		return err
	}

	// Close the writers in order now so errors surface as a return
	// value instead of vanishing in the defers.
	if err := tarWriter.Close(); err != nil {
		return Errorf(merlon.ErrArchive, "failed to compress to tar %s: %s", archivePath, err)
	}
	if err := gzWriter.Close(); err != nil {
		return Errorf(merlon.ErrArchive, "failed to compress to tar %s: %s", archivePath, err)
	}
	if err := archive.Close(); err != nil {
		return Errorf(merlon.ErrArchive, "failed to compress to tar %s: %s", archivePath, err)
	}
	return nil
}

func packTree(ctx context.Context, tarWriter *tar.Writer, srcDir string, prefix string) error {
	// Emit the prefix dir itself first; consumers get a well-formed
	// archive with no implicit parent dirs.
	if err := tarWriter.WriteHeader(normalizedHeader(prefix, true, 0)); err != nil {
		return Errorf(merlon.ErrArchive, "failed to write tar entry %s: %s", prefix, err)
	}

	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return Errorf(merlon.ErrCancelled, "cancelled")
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := prefix + "/" + filepath.ToSlash(rel)
		if info.IsDir() {
			return tarWriter.WriteHeader(normalizedHeader(name, true, 0))
		}
		if !info.Mode().IsRegular() {
			// A bundle dir is wholly produced by this pipeline and
			// contains only regular files; anything else is a sign the
			// staging area was tampered with.
			return Errorf(merlon.ErrArchive, "refusing to archive non-regular file %s", path)
		}
		if err := tarWriter.WriteHeader(normalizedHeader(name, false, info.Size())); err != nil {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tarWriter, file)
		return err
	})
	switch Category(walkErr) {
	case nil:
		return nil
	case merlon.ErrCancelled, merlon.ErrArchive:
		return walkErr
	default:
		return Errorf(merlon.ErrArchive, "failed to archive %s: %s", srcDir, walkErr)
	}
}

func normalizedHeader(name string, isDir bool, size int64) *tar.Header {
	hdr := &tar.Header{
		Name:    name,
		Mode:    normalizedFilePerms,
		Size:    size,
		ModTime: normalizedMtime,
		Format:  tar.FormatUSTAR,
	}
	if isDir {
		hdr.Name += "/"
		hdr.Mode = normalizedDirPerms
		hdr.Typeflag = tar.TypeDir
		hdr.Size = 0
	} else {
		hdr.Typeflag = tar.TypeReg
	}
	return hdr
}

/*
	List enumerates the member names of an archive, in order.  The
	compression wrapping is autodetected by magic bytes (gzip, bzip2,
	xz, or none), so listing also works on foreign archives.

	May return errors of category:

	  - `merlon.ErrArchive` -- for unreadable or corrupt archives
*/
func List(archivePath string) ([]string, error) {
	archive, err := os.Open(archivePath)
	if err != nil {
		return nil, Errorf(merlon.ErrArchive, "cannot open archive %s: %s", archivePath, err)
	}
	defer archive.Close()

	reader, err := Decompress(archive)
	if err != nil {
		return nil, Errorf(merlon.ErrArchive, "corrupt archive compression in %s: %s", archivePath, err)
	}

	tarReader := tar.NewReader(reader)
	var members []string
	for {
		hdr, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Errorf(merlon.ErrArchive, "corrupt archive %s: %s", archivePath, err)
		}
		members = append(members, hdr.Name)
	}
	return members, nil
}
