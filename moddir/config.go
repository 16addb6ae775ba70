package moddir

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	. "github.com/warpfork/go-errcat"

	"github.com/Wrymouth/merlon"
)

// Config is the parsed form of a `merlon.toml` manifest.
type Config struct {
	// The rev of the vendored base game subtree that this mod is based
	// on.  Patch extraction covers `(BaseCommit, HEAD]`.
	BaseCommit string `toml:"base_commit"`

	Package Package `toml:"package"`

	Dependencies map[string]Dependency `toml:"dependencies"`
}

type Package struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Authors     []string `toml:"authors"`
	Description string   `toml:"description"`
	License     string   `toml:"license"`
	Keywords    []string `toml:"keywords"`
}

type Dependency struct {
	Version string `toml:"version"`
}

// ValidKeywords is the closed set of keywords a package may declare.
var ValidKeywords = []string{"qol", "cheat", "bugfix", "cosmetic", "feature"}

/*
	Validate checks package metadata and returns the full list of
	human-readable violations rather than failing on the first.

	Callers decide whether to treat the violations as warnings or as
	fatal; nothing in this package does either.
*/
func (p Package) Validate() []string {
	var violations []string
	if p.Name == "" {
		violations = append(violations, "name cannot be empty")
	}
	if p.Name != "" && !isKebabCase(p.Name) {
		violations = append(violations, "name must be kebab-case")
	}
	for _, r := range p.Name {
		if !isASCIIAlnum(r) && r != '-' {
			violations = append(violations, "name must be alphanumeric")
			break
		}
	}
	if p.Version == "" {
		violations = append(violations, "version cannot be empty")
	}
	if len(p.Authors) == 0 {
		violations = append(violations, "authors cannot be empty")
	}
	if p.Description == "" {
		violations = append(violations, "description cannot be empty")
	}
	if len(p.Description) > 100 {
		violations = append(violations, "description must be less than 100 characters")
	}
	if p.License == "" {
		violations = append(violations, "license cannot be empty")
	}
	for _, keyword := range p.Keywords {
		if !isValidKeyword(keyword) {
			violations = append(violations, fmt.Sprintf("invalid keyword: %s (valid keywords: %v)", keyword, ValidKeywords))
		}
	}
	return violations
}

func (p Package) IsValid() bool {
	return len(p.Validate()) == 0
}

func isValidKeyword(keyword string) bool {
	for _, valid := range ValidKeywords {
		if keyword == valid {
			return true
		}
	}
	return false
}

// isKebabCase reports whether s is lowercase-alphanumeric-and-hyphens
// with no leading, trailing, or doubled hyphens.
func isKebabCase(s string) bool {
	prevHyphen := true // a hyphen is also invalid at the start
	for _, r := range s {
		switch {
		case r == '-':
			if prevHyphen {
				return false
			}
			prevHyphen = true
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			prevHyphen = false
		default:
			return false
		}
	}
	return !prevHyphen
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

/*
	ReadConfigFile parses a manifest from disk.

	May return errors of category:

	  - `merlon.ErrConfig` -- for unreadable files or invalid TOML
*/
func ReadConfigFile(path string) (Config, error) {
	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return Config{}, Errorf(merlon.ErrConfig, "cannot read manifest %s: %s", path, err)
	}
	return config, nil
}

/*
	WriteConfigFile serializes a manifest to disk, overwriting.

	May return errors of category:

	  - `merlon.ErrConfig` -- for unwritable paths
*/
func WriteConfigFile(config Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return Errorf(merlon.ErrConfig, "cannot write manifest %s: %s", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return Errorf(merlon.ErrConfig, "cannot write manifest %s: %s", path, err)
	}
	return nil
}
