package testutil

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/smartystreets/goconvey/convey"
)

/*
	A complete scratch mod dir: manifest, vendored `papermario` subtree
	with one base commit, and a small fake base ROM on disk (present but
	untracked, like the real thing).

	Tests layer their own commits on top via the Submodule fixture.
*/
type ModDirFixture struct {
	Dir        string
	Submodule  GitFixture
	BaseCommit string
}

// FakeRomContent stands in for base ROM bytes in tests.  Any bytes do;
// the pipeline treats the file as opaque key material.
const FakeRomContent = "\x80\x37\x12\x40 definitely a real ROM\n"

func BuildModDirFixture(dir string) ModDirFixture {
	sub := GitRepoFixture(filepath.Join(dir, "papermario"))
	sub.WriteFile("src/main.c", "int main(void) { return 0; }\n")
	sub.WriteFile("include/common.h", "#define COMMON 1\n")
	base := sub.Commit("initial import", "src/main.c", "include/common.h")
	sub.WriteFile("ver/us/baserom.z64", FakeRomContent)

	manifest := fmt.Sprintf(`base_commit = %q

[package]
name = "test-mod"
version = "0.1.0"
authors = ["Fixture <fixture@example.org>"]
description = "A mod dir fixture"
license = "CC-BY-SA-4.0"
keywords = ["bugfix"]
`, base)
	convey.So(ioutil.WriteFile(filepath.Join(dir, "merlon.toml"), []byte(manifest), 0644), convey.ShouldBeNil)

	return ModDirFixture{Dir: dir, Submodule: sub, BaseCommit: base}
}
