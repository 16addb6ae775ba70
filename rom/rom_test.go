package rom

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Wrymouth/merlon/testutil"
)

func TestRomIdentity(t *testing.T) {
	Convey("Given a ROM file on disk", t, func() {
		testutil.WithTmpdir(func(tmpDir string) {
			path := filepath.Join(tmpDir, "baserom.z64")
			So(ioutil.WriteFile(path, []byte("abc"), 0644), ShouldBeNil)
			r := New(path)

			Convey("the digest is the sha1 of the content, lowercase hex", func() {
				digest, err := r.Sha1Hex()
				So(err, ShouldBeNil)
				So(digest, ShouldEqual, "a9993e364706816aba3e25717850c26c9cd0d89d")
			})
			Convey("display includes path and digest", func() {
				So(r.String(), ShouldEqual, path+" (SHA1: a9993e364706816aba3e25717850c26c9cd0d89d)")
			})
			Convey("the digest tracks content changes (no caching)", func() {
				before, err := r.Sha1Hex()
				So(err, ShouldBeNil)
				So(ioutil.WriteFile(path, []byte("abcd"), 0644), ShouldBeNil)
				after, err := r.Sha1Hex()
				So(err, ShouldBeNil)
				So(after, ShouldNotEqual, before)
			})
		})
	})
	Convey("Given an unreadable ROM path", t, func() {
		r := New("/nope/nope/baserom.z64")

		Convey("hashing errors", func() {
			_, err := r.Sha1Hex()
			So(err, ShouldNotBeNil)
		})
		Convey("display silently omits the digest", func() {
			So(r.String(), ShouldEqual, "/nope/nope/baserom.z64")
		})
	})
}
