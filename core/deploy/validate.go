package deploy

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jarvault/jarvault/core/central"
	"github.com/jarvault/jarvault/core/db"
	"github.com/jarvault/jarvault/core/fileutil"
	"github.com/jarvault/jarvault/core/gav"
	"github.com/jarvault/jarvault/core/pom"
	"github.com/jarvault/jarvault/core/staging"
)

// Validator runs the aggregate checks on a staged deploy before it is
// committed.
type Validator struct {
	DB      db.Store
	Central *central.Client
}

// ValidateDeploy checks a staging directory against its parsed POM and
// the coordinate derived from the upload path. Checks run in order and
// the first violation is returned.
func (v *Validator) ValidateDeploy(ctx context.Context, dir string, p *pom.Project, coord gav.GAV) error {
	if err := gav.Check(coord); err != nil {
		return invalid(TagRegexValidationFailed, "invalid coordinate: %v", err)
	}
	if p.Group != coord.Group || p.Name != coord.Artifact || p.Version != coord.Version {
		return invalid(TagPomEntryMismatch,
			"pom declares %s/%s/%s but the upload path names %s",
			p.Group, p.Name, p.Version, coord)
	}
	if !gav.IsSnapshot(coord.Version) {
		existing, err := v.DB.FindJar(ctx, coord.Group, coord.Artifact, coord.Version)
		if err != nil {
			return forbidden(err, "could not check for an existing release")
		}
		if existing != nil {
			return invalid(TagNonSnapshotRedeploy,
				"%s has already been released; bump the version to deploy again", coord)
		}
	}
	if !v.Central.Allowed(coord.Group, coord.Artifact) {
		shadowed, err := v.Central.Exists(ctx, coord.Group, coord.Artifact)
		if err != nil {
			return invalidStatus(TagCentralShadowCheckFailure, http.StatusServiceUnavailable,
				"could not reach Maven Central to check %s/%s; try again later",
				coord.Group, coord.Artifact)
		}
		if shadowed {
			return invalid(TagCentralShadow,
				"%s/%s already exists on Maven Central", coord.Group, coord.Artifact)
		}
	}

	files, err := staging.Artifacts(dir)
	if err != nil {
		return forbidden(err, "could not enumerate staged files")
	}
	if p.Packaging == "jar" && !anyJar(files) {
		return invalid(TagMissingJarFile, "packaging is jar but no jar file was uploaded")
	}
	if err := checkChecksums(files); err != nil {
		return err
	}
	return checkSignatures(files)
}

func anyJar(files []string) bool {
	for _, f := range files {
		if strings.HasSuffix(f, ".jar") {
			return true
		}
	}
	return false
}

// checkChecksums requires at least one checksum sidecar per artifact
// file and verifies every sidecar that was provided.
func checkChecksums(files []string) error {
	for _, f := range files {
		name := filepath.Base(f)
		if name == staging.SidecarName || fileutil.HasChecksumExt(name) {
			continue
		}
		// Signatures are covered by the signing rule, not the checksum
		// rule.
		if strings.HasSuffix(name, ".asc") {
			continue
		}
		provided := 0
		for _, algo := range fileutil.Algos {
			if !fileutil.ChecksumFileExists(f, algo) {
				continue
			}
			provided++
			ok, err := fileutil.ValidChecksumFile(f, algo)
			if err != nil {
				return forbidden(err, "could not verify checksum for %s", name)
			}
			if !ok {
				return invalid(TagFileInvalidChecksum,
					"the %s checksum for %s does not match its content", algo, name)
			}
		}
		if provided == 0 {
			return invalid(TagFileMissingChecksum, "no md5 or sha1 checksum was uploaded for %s", name)
		}
	}
	return nil
}

// checkSignatures enforces all-or-nothing signing: once any .asc is
// staged, every signable artifact needs one. Checksum sidecars and
// repository metadata are not signed.
func checkSignatures(files []string) error {
	signed := false
	for _, f := range files {
		name := filepath.Base(f)
		if strings.HasSuffix(name, ".asc") && !strings.HasPrefix(name, "maven-metadata.xml") {
			signed = true
			break
		}
	}
	if !signed {
		return nil
	}
	for _, f := range files {
		name := filepath.Base(f)
		if strings.HasSuffix(name, ".asc") || fileutil.HasChecksumExt(name) {
			continue
		}
		if strings.HasPrefix(name, "maven-metadata.xml") {
			continue
		}
		if _, err := os.Stat(f + ".asc"); err != nil {
			return invalid(TagFileMissingSignature,
				"some files were signed but no signature was uploaded for %s", name)
		}
	}
	return nil
}
