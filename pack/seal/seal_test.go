package seal

import (
	"bytes"
	"context"
	"io/ioutil"
	"os/exec"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"

	"github.com/Wrymouth/merlon"
	"github.com/Wrymouth/merlon/testutil"
)

func TestSealRoundTrip(t *testing.T) {
	Convey("Given plaintext and a key file", t, func() {
		testutil.WithTmpdir(func(tmpDir string) {
			ctx := context.Background()
			plainPath := filepath.Join(tmpDir, "patches.tar.gz")
			keyPath := filepath.Join(tmpDir, "baserom.z64")
			sealedPath := filepath.Join(tmpDir, "patches.enc")
			unsealedPath := filepath.Join(tmpDir, "roundtrip.tar.gz")
			plaintext := []byte("not really a tarball, but binary-ish \x00\x01\x02 content\n")
			So(ioutil.WriteFile(plainPath, plaintext, 0644), ShouldBeNil)
			So(ioutil.WriteFile(keyPath, []byte(testutil.FakeRomContent), 0644), ShouldBeNil)

			Convey("Seal then Unseal reproduces the exact bytes", func() {
				So(Seal(ctx, sealedPath, plainPath, keyPath), ShouldBeNil)
				So(Unseal(ctx, unsealedPath, sealedPath, keyPath), ShouldBeNil)
				result, err := ioutil.ReadFile(unsealedPath)
				So(err, ShouldBeNil)
				So(bytes.Equal(result, plaintext), ShouldBeTrue)
			})
			Convey("The container carries the salted magic and no plaintext", func() {
				So(Seal(ctx, sealedPath, plainPath, keyPath), ShouldBeNil)
				sealed, err := ioutil.ReadFile(sealedPath)
				So(err, ShouldBeNil)
				So(string(sealed[:8]), ShouldEqual, "Salted__")
				So(bytes.Contains(sealed, plaintext[:16]), ShouldBeFalse)
			})
			Convey("Sealing twice yields different ciphertext (fresh salt)", func() {
				sealedPath2 := filepath.Join(tmpDir, "patches2.enc")
				So(Seal(ctx, sealedPath, plainPath, keyPath), ShouldBeNil)
				So(Seal(ctx, sealedPath2, plainPath, keyPath), ShouldBeNil)
				sealed1, err := ioutil.ReadFile(sealedPath)
				So(err, ShouldBeNil)
				sealed2, err := ioutil.ReadFile(sealedPath2)
				So(err, ShouldBeNil)
				So(bytes.Equal(sealed1, sealed2), ShouldBeFalse)
			})
			Convey("Unsealing with different key bytes fails", func() {
				wrongKeyPath := filepath.Join(tmpDir, "other.z64")
				So(ioutil.WriteFile(wrongKeyPath, []byte("a different rom entirely"), 0644), ShouldBeNil)
				So(Seal(ctx, sealedPath, plainPath, keyPath), ShouldBeNil)
				// A wrong key almost always trips the padding check;
				// on the rare salt where garbage decodes as valid
				// padding, the output still can't match the plaintext.
				err := Unseal(ctx, unsealedPath, sealedPath, wrongKeyPath)
				if err == nil {
					result, readErr := ioutil.ReadFile(unsealedPath)
					So(readErr, ShouldBeNil)
					So(bytes.Equal(result, plaintext), ShouldBeFalse)
				} else {
					So(errcat.Category(err), ShouldEqual, merlon.ErrEncrypt)
				}
			})
			Convey("A missing key file is an encrypt-category error naming the artifact", func() {
				err := Seal(ctx, sealedPath, plainPath, filepath.Join(tmpDir, "missing.z64"))
				So(err, ShouldNotBeNil)
				So(errcat.Category(err), ShouldEqual, merlon.ErrEncrypt)
				So(err.Error(), ShouldContainSubstring, sealedPath)
			})
			Convey("A truncated container is rejected", func() {
				So(ioutil.WriteFile(sealedPath, []byte("Salted__tooshort"), 0644), ShouldBeNil)
				err := Unseal(ctx, unsealedPath, sealedPath, keyPath)
				So(err, ShouldNotBeNil)
				So(errcat.Category(err), ShouldEqual, merlon.ErrEncrypt)
			})
		})
	})
}

func TestSealOpensslInterop(t *testing.T) {
	Convey("Sealed artifacts decrypt with stock openssl", t,
		testutil.Requires(testutil.RequiresOpensslCommand, func() {
			testutil.WithTmpdir(func(tmpDir string) {
				ctx := context.Background()
				plainPath := filepath.Join(tmpDir, "payload")
				keyPath := filepath.Join(tmpDir, "baserom.z64")
				sealedPath := filepath.Join(tmpDir, "payload.enc")
				opensslOut := filepath.Join(tmpDir, "payload.openssl")
				plaintext := []byte("interop payload \x00\xff\x7f with binary bytes")
				So(ioutil.WriteFile(plainPath, plaintext, 0644), ShouldBeNil)
				// openssl's `-pass file:` reads only the first line of
				// the file; use key bytes where that equals the whole
				// content, so both sides derive from the same password.
				So(ioutil.WriteFile(keyPath, []byte("interop fixture key material, single line, no newline"), 0644), ShouldBeNil)

				So(Seal(ctx, sealedPath, plainPath, keyPath), ShouldBeNil)

				cmd := exec.Command("openssl", "enc", "-d",
					"-aes-256-cbc",
					"-md", "sha512",
					"-pbkdf2",
					"-iter", "100000",
					"-in", sealedPath,
					"-out", opensslOut,
					"-pass", "file:"+keyPath,
				)
				output, err := cmd.CombinedOutput()
				So(string(output), ShouldBeBlank)
				So(err, ShouldBeNil)
				result, err := ioutil.ReadFile(opensslOut)
				So(err, ShouldBeNil)
				So(bytes.Equal(result, plaintext), ShouldBeTrue)
			})
		}),
	)
}
