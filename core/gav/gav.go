// Package gav models Maven coordinates and the filename conventions
// attached to them.
package gav

import (
	"fmt"
	"regexp"
	"strings"
)

const snapshotSuffix = "-SNAPSHOT"

var (
	nameRe    = regexp.MustCompile(`^[a-z0-9_.-]+$`)
	versionRe = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+$`)
)

// GAV identifies one Maven coordinate.
type GAV struct {
	Group    string
	Artifact string
	Version  string
}

func (g GAV) String() string {
	return g.Group + "/" + g.Artifact + "/" + g.Version
}

// ValidName reports whether s is acceptable as a group or artifact name.
func ValidName(s string) bool {
	return nameRe.MatchString(s)
}

// ValidVersion reports whether s is acceptable as a version string.
func ValidVersion(s string) bool {
	return versionRe.MatchString(s)
}

// IsSnapshot reports whether version names a re-publishable snapshot.
func IsSnapshot(version string) bool {
	return strings.HasSuffix(version, snapshotSuffix)
}

// GroupPath converts a dotted group name to its repository path form.
func GroupPath(group string) string {
	return strings.ReplaceAll(group, ".", "/")
}

// GroupName converts a slash-encoded group path back to the dotted name.
func GroupName(groupPath string) string {
	return strings.ReplaceAll(strings.Trim(groupPath, "/"), "/", ".")
}

// snapshotVersionRe matches expanded snapshot version strings such as
// 1.0-20240101.010101-1.
var snapshotVersionRe = regexp.MustCompile(`^\d.*-\d{8}\.\d{6}-\d+$`)

// IsTimestampVersion reports whether s looks like an expanded snapshot
// version (base-yyyyMMdd.HHmmss-build).
func IsTimestampVersion(s string) bool {
	return snapshotVersionRe.MatchString(s)
}

// TimestampVersion extracts the yyyyMMdd.HHmmss-build portion from a
// snapshot filename. Snapshot uploads name files
// artifact-base-yyyyMMdd.HHmmss-build[-classifier].ext while the
// directory version stays base-SNAPSHOT. Returns "" when filename does
// not follow that form.
func TimestampVersion(artifact, version, filename string) string {
	if !IsSnapshot(version) {
		return ""
	}
	base := strings.TrimSuffix(version, snapshotSuffix)
	prefix := artifact + "-" + base + "-"
	if !strings.HasPrefix(filename, prefix) {
		return ""
	}
	rest := filename[len(prefix):]
	return timestampRe.FindString(rest)
}

var timestampRe = regexp.MustCompile(`^\d{8}\.\d{6}-\d+`)

// Parse builds a GAV from a slash-encoded group path and checks nothing;
// validation is the deploy pipeline's concern.
func Parse(groupPath, artifact, version string) GAV {
	return GAV{Group: GroupName(groupPath), Artifact: artifact, Version: version}
}

// Check verifies the coordinate character rules.
func Check(g GAV) error {
	if !ValidName(g.Group) {
		return fmt.Errorf("group %q contains invalid characters", g.Group)
	}
	if !ValidName(g.Artifact) {
		return fmt.Errorf("artifact %q contains invalid characters", g.Artifact)
	}
	if !ValidVersion(g.Version) {
		return fmt.Errorf("version %q contains invalid characters", g.Version)
	}
	return nil
}
