/*
	Package rom identifies base ROM assets by content.

	A Rom is a path plus an on-demand content digest.  The digest is for
	*identity* -- telling two ROM files apart regardless of where they
	live -- and is deliberately separate from the encryption key path,
	which uses the ROM's raw bytes directly (see pack/seal).  Conflating
	the two would tie the artifact format to this digest choice.
*/
package rom

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
)

type Rom struct {
	path string
}

func New(path string) Rom {
	return Rom{path}
}

func (r Rom) Path() string {
	return r.path
}

func (r Rom) Open() (*os.File, error) {
	return os.Open(r.path)
}

// ReadBytes slurps the ROM's full content.  Base ROMs are tens of
// megabytes; callers that only need identity should use Sha1Hex.
func (r Rom) ReadBytes() ([]byte, error) {
	return ioutil.ReadFile(r.path)
}

// Sha1Hex computes the content digest, in lowercase hex.  Computed
// fresh on every call, never cached: the file may have been replaced
// since the Rom value was made.
func (r Rom) Sha1Hex() (string, error) {
	bytes, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	digest := sha1.Sum(bytes)
	return hex.EncodeToString(digest[:]), nil
}

// String renders `path (SHA1: digest)` for operator display.
// If the file can't be hashed the digest clause is silently omitted;
// display is a best-effort affair and never propagates errors.
func (r Rom) String() string {
	if digest, err := r.Sha1Hex(); err == nil {
		return fmt.Sprintf("%s (SHA1: %s)", r.path, digest)
	}
	return r.path
}
