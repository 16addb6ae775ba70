package moddir

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Wrymouth/merlon/testutil"
)

func TestPackageValidation(t *testing.T) {
	Convey("Package validation returns the full violation list", t, func() {
		p := Package{}
		violations := p.Validate()
		So(violations, ShouldContain, "name cannot be empty")
		So(violations, ShouldContain, "version cannot be empty")
		So(violations, ShouldContain, "authors cannot be empty")
		So(violations, ShouldContain, "description cannot be empty")
		So(violations, ShouldContain, "license cannot be empty")
	})
	Convey("A well-formed package validates clean", t, func() {
		p := Package{
			Name:        "star-rod-plus",
			Version:     "1.2.0",
			Authors:     []string{"Someone <someone@example.org>"},
			Description: "A mod",
			License:     "CC-BY-SA-4.0",
			Keywords:    []string{"qol", "feature"},
		}
		So(p.Validate(), ShouldBeEmpty)
		So(p.IsValid(), ShouldBeTrue)
	})
	Convey("Name casing and charset are checked separately", t, func() {
		p := Package{
			Name:        "My_Mod",
			Version:     "1.0.0",
			Authors:     []string{"x"},
			Description: "y",
			License:     "z",
		}
		violations := p.Validate()
		So(violations, ShouldContain, "name must be kebab-case")
		So(violations, ShouldContain, "name must be alphanumeric")
	})
	Convey("Hyphen placement matters for kebab-case", t, func() {
		So(isKebabCase("good-name"), ShouldBeTrue)
		So(isKebabCase("a2-b3"), ShouldBeTrue)
		So(isKebabCase("-leading"), ShouldBeFalse)
		So(isKebabCase("trailing-"), ShouldBeFalse)
		So(isKebabCase("doub--led"), ShouldBeFalse)
		So(isKebabCase("Upper"), ShouldBeFalse)
	})
	Convey("Keywords outside the closed set are flagged", t, func() {
		p := Package{
			Name:        "x",
			Version:     "1",
			Authors:     []string{"x"},
			Description: "y",
			License:     "z",
			Keywords:    []string{"bugfix", "speedhack"},
		}
		violations := p.Validate()
		So(len(violations), ShouldEqual, 1)
		So(violations[0], ShouldContainSubstring, "invalid keyword: speedhack")
	})
	Convey("Descriptions over 100 characters are flagged", t, func() {
		long := make([]byte, 101)
		for i := range long {
			long[i] = 'a'
		}
		p := Package{
			Name:        "x",
			Version:     "1",
			Authors:     []string{"x"},
			Description: string(long),
			License:     "z",
		}
		So(p.Validate(), ShouldContain, "description must be less than 100 characters")
	})
}

func TestConfigRoundTrip(t *testing.T) {
	Convey("Config survives a write/read round trip", t, func() {
		testutil.WithTmpdir(func(tmpDir string) {
			config := Config{
				BaseCommit: "f0e549c50372ac71af894309db05a63695e460a3",
				Package: Package{
					Name:        "test-mod",
					Version:     "0.1.0",
					Authors:     []string{"Someone <someone@example.org>"},
					Description: "A mod",
					License:     "CC-BY-SA-4.0",
					Keywords:    []string{"bugfix"},
				},
				Dependencies: map[string]Dependency{
					"other-mod": {Version: "2.0.0"},
				},
			}
			path := filepath.Join(tmpDir, ManifestName)
			So(WriteConfigFile(config, path), ShouldBeNil)
			reloaded, err := ReadConfigFile(path)
			So(err, ShouldBeNil)
			So(reloaded, ShouldResemble, config)
		})
	})
	Convey("Unparseable manifests report a config error", t, func() {
		testutil.WithTmpdir(func(tmpDir string) {
			path := filepath.Join(tmpDir, ManifestName)
			So(ioutil.WriteFile(path, []byte("= definitely not toml ="), 0644), ShouldBeNil)
			_, err := ReadConfigFile(path)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Open rejects dirs without the expected layout", t, func() {
		testutil.WithTmpdir(func(tmpDir string) {
			Convey("no manifest", func() {
				_, err := Open(tmpDir)
				So(err, ShouldNotBeNil)
			})
			Convey("manifest but no vendored subtree", func() {
				So(ioutil.WriteFile(filepath.Join(tmpDir, ManifestName), []byte(""), 0644), ShouldBeNil)
				_, err := Open(tmpDir)
				So(err, ShouldNotBeNil)
			})
			Convey("full layout", func() {
				So(ioutil.WriteFile(filepath.Join(tmpDir, ManifestName), []byte(""), 0644), ShouldBeNil)
				So(os.MkdirAll(filepath.Join(tmpDir, SubmoduleName), 0755), ShouldBeNil)
				d, err := Open(tmpDir)
				So(err, ShouldBeNil)
				So(d.SubmoduleDir(), ShouldEqual, filepath.Join(tmpDir, SubmoduleName))
				So(d.BaseRomPath(), ShouldEqual, filepath.Join(tmpDir, SubmoduleName, "ver", "us", "baserom.z64"))
			})
		})
	})
}
