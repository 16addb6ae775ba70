package testutil

import (
	"io/ioutil"
	"os"

	"github.com/smartystreets/goconvey/convey"
)

/*
	Creates a tmpdir, and calls the given function with it;
	cleans up the tmpdir afterwards regardless of success.
*/
func WithTmpdir(fn func(tmpDir string)) {
	tmpDir, err := ioutil.TempDir("", "merlon-test-")
	convey.So(err, convey.ShouldBeNil)
	defer os.RemoveAll(tmpDir)
	fn(tmpDir)
}

/*
	Like WithTmpdir, but also chdirs into the tmpdir for the duration
	(for code paths that resolve against the current directory).
*/
func WithTmpdirChdir(fn func(tmpDir string)) {
	WithTmpdir(func(tmpDir string) {
		prevDir, err := os.Getwd()
		convey.So(err, convey.ShouldBeNil)
		convey.So(os.Chdir(tmpDir), convey.ShouldBeNil)
		defer os.Chdir(prevDir)
		fn(tmpDir)
	})
}
