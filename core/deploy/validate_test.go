package deploy

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jarvault/jarvault/core/gav"
	"github.com/jarvault/jarvault/core/pom"
	"github.com/jarvault/jarvault/core/staging"
)

func parsedPom(t *testing.T, dir string) *pom.Project {
	t.Helper()
	path, err := findPom(dir)
	if err != nil {
		t.Fatal(err)
	}
	p, err := pom.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestValidateDeployHappy(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := env.svc.Staging.Create()
	stageRelease(t, dir)

	coord := gav.GAV{Group: "com.ex", Artifact: "lib", Version: "1.0"}
	if err := env.svc.Validator.ValidateDeploy(context.Background(), dir, parsedPom(t, dir), coord); err != nil {
		t.Fatalf("valid deploy rejected: %v", err)
	}
}

func TestValidateDeployBadCoordinate(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := env.svc.Staging.Create()
	stageRelease(t, dir)
	p := parsedPom(t, dir)

	err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, gav.GAV{Group: "Com.Ex", Artifact: "lib", Version: "1.0"})
	if tag := deployTag(t, err); tag != TagRegexValidationFailed {
		t.Errorf("tag = %s", tag)
	}
}

func TestValidateDeployPomMismatch(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := env.svc.Staging.Create()
	stageRelease(t, dir)
	p := parsedPom(t, dir)

	err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, gav.GAV{Group: "com.ex", Artifact: "lib", Version: "2.0"})
	if tag := deployTag(t, err); tag != TagPomEntryMismatch {
		t.Errorf("tag = %s", tag)
	}
}

func TestValidateDeployRedeploy(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := env.svc.Staging.Create()
	stageRelease(t, dir)
	p := parsedPom(t, dir)

	if err := env.db.AddJar(context.Background(), "alice", p); err != nil {
		t.Fatal(err)
	}
	err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, gav.GAV{Group: "com.ex", Artifact: "lib", Version: "1.0"})
	if tag := deployTag(t, err); tag != TagNonSnapshotRedeploy {
		t.Errorf("tag = %s", tag)
	}
}

func TestValidateDeployCentralShadow(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := env.svc.Staging.Create()

	const shadowPom = `<project><groupId>org.clojure</groupId><artifactId>core</artifactId><version>1.0</version></project>`
	stageFile(t, dir, "org/clojure/core/1.0/core-1.0.pom", shadowPom, true)
	stageFile(t, dir, "org/clojure/core/1.0/core-1.0.jar", "jar", true)

	p := parsedPom(t, dir)
	coord := gav.GAV{Group: "org.clojure", Artifact: "core", Version: "1.0"}
	err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, coord)
	if tag := deployTag(t, err); tag != TagCentralShadow {
		t.Errorf("tag = %s", tag)
	}

	// The allow list bypasses the probe.
	env.svc.Validator.Central.Allow("org.clojure")
	if err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, coord); err != nil {
		t.Errorf("allow-listed coordinate rejected: %v", err)
	}
}

func TestValidateDeployCentralUnreachable(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := env.svc.Staging.Create()
	stageRelease(t, dir)
	p := parsedPom(t, dir)

	// Point the probe at a dead server.
	env.svc.Validator.Central.BaseURL = "http://127.0.0.1:1"
	err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, gav.GAV{Group: "com.ex", Artifact: "lib", Version: "1.0"})
	de, ok := AsError(err)
	if !ok || de.Tag != TagCentralShadowCheckFailure {
		t.Fatalf("err = %v", err)
	}
	if de.Status != 503 {
		t.Errorf("status = %d, want 503", de.Status)
	}
}

func TestValidateDeployMissingJar(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := env.svc.Staging.Create()
	stageFile(t, dir, "com/ex/lib/1.0/lib-1.0.pom", testPom, true)

	p := parsedPom(t, dir)
	err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, gav.GAV{Group: "com.ex", Artifact: "lib", Version: "1.0"})
	if tag := deployTag(t, err); tag != TagMissingJarFile {
		t.Errorf("tag = %s", tag)
	}
}

func TestValidateDeployMissingChecksum(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := env.svc.Staging.Create()
	stageFile(t, dir, "com/ex/lib/1.0/lib-1.0.pom", testPom, true)
	stageFile(t, dir, "com/ex/lib/1.0/lib-1.0.jar", "jar bytes", false)

	p := parsedPom(t, dir)
	err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, gav.GAV{Group: "com.ex", Artifact: "lib", Version: "1.0"})
	if tag := deployTag(t, err); tag != TagFileMissingChecksum {
		t.Errorf("tag = %s", tag)
	}
}

func TestValidateDeployInvalidChecksum(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := env.svc.Staging.Create()
	stageFile(t, dir, "com/ex/lib/1.0/lib-1.0.pom", testPom, true)
	jar := stageFile(t, dir, "com/ex/lib/1.0/lib-1.0.jar", "jar bytes", false)
	if err := os.WriteFile(jar+".sha1", []byte("deadbeef"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := parsedPom(t, dir)
	err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, gav.GAV{Group: "com.ex", Artifact: "lib", Version: "1.0"})
	de, ok := AsError(err)
	if !ok || de.Tag != TagFileInvalidChecksum {
		t.Fatalf("err = %v", err)
	}
	if want := "lib-1.0.jar"; !strings.Contains(de.Message, want) {
		t.Errorf("message %q does not reference %s", de.Message, want)
	}
}

func TestValidateDeployPartialSignatures(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := env.svc.Staging.Create()
	stageFile(t, dir, "com/ex/lib/1.0/lib-1.0.pom", testPom, true)
	jar := stageFile(t, dir, "com/ex/lib/1.0/lib-1.0.jar", "jar bytes", true)
	if err := os.WriteFile(jar+".asc", []byte("sig"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := parsedPom(t, dir)
	err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, gav.GAV{Group: "com.ex", Artifact: "lib", Version: "1.0"})
	if tag := deployTag(t, err); tag != TagFileMissingSignature {
		t.Errorf("tag = %s", tag)
	}

	// Signing everything satisfies the check.
	pomPath, _ := findPom(dir)
	if err := os.WriteFile(pomPath+".asc", []byte("sig"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, gav.GAV{Group: "com.ex", Artifact: "lib", Version: "1.0"}); err != nil {
		t.Errorf("fully signed deploy rejected: %v", err)
	}
}

func TestValidateDeploySnapshotSkipsRedeployCheck(t *testing.T) {
	env := newTestEnv(t)
	dir, _ := env.svc.Staging.Create()

	const snapPom = `<project><groupId>com.ex</groupId><artifactId>lib</artifactId><version>1.0-SNAPSHOT</version></project>`
	stageFile(t, dir, "com/ex/lib/1.0-SNAPSHOT/lib-1.0-20240101.010101-1.pom", snapPom, true)
	stageFile(t, dir, "com/ex/lib/1.0-SNAPSHOT/lib-1.0-20240101.010101-1.jar", "jar", true)
	if err := staging.WriteMetadata(dir, staging.Metadata{Group: "com.ex", GroupPath: "com/ex", Name: "lib", Version: "1.0-SNAPSHOT"}); err != nil {
		t.Fatal(err)
	}

	p := parsedPom(t, dir)
	if err := env.db.AddJar(context.Background(), "alice", p); err != nil {
		t.Fatal(err)
	}
	// A prior snapshot record does not block re-deploying the snapshot.
	if err := env.svc.Validator.ValidateDeploy(context.Background(), dir, p, gav.GAV{Group: "com.ex", Artifact: "lib", Version: "1.0-SNAPSHOT"}); err != nil {
		t.Errorf("snapshot redeploy rejected: %v", err)
	}
}
