package pom

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const samplePom = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <groupId>com.example</groupId>
  <artifactId>lib</artifactId>
  <version>1.0</version>
  <packaging>jar</packaging>
  <description>example library</description>
  <url>https://example.com/lib</url>
</project>`

const parentPom = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <parent>
    <groupId>com.example</groupId>
    <artifactId>parent</artifactId>
    <version>2.1</version>
  </parent>
  <artifactId>child</artifactId>
</project>`

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pom.xml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse(t *testing.T) {
	p, err := Parse(write(t, samplePom))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Group != "com.example" || p.Name != "lib" || p.Version != "1.0" {
		t.Errorf("coordinate = %s/%s/%s", p.Group, p.Name, p.Version)
	}
	if p.Packaging != "jar" {
		t.Errorf("packaging = %s", p.Packaging)
	}
	if p.Description != "example library" {
		t.Errorf("description = %s", p.Description)
	}
}

func TestParseParentFallback(t *testing.T) {
	p, err := Parse(write(t, parentPom))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Group != "com.example" || p.Version != "2.1" {
		t.Errorf("parent fallback gave %s/%s", p.Group, p.Version)
	}
	if p.Packaging != "jar" {
		t.Errorf("default packaging = %s", p.Packaging)
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse(write(t, "<project><groupId>x</project>")); err == nil {
		t.Fatal("malformed xml accepted")
	}
	if _, err := Parse(write(t, "<project/>")); err == nil || !strings.Contains(err.Error(), "artifactId") {
		t.Fatalf("missing artifactId not rejected: %v", err)
	}
}

const sampleMetadata = `<?xml version="1.0" encoding="UTF-8"?>
<metadata>
  <groupId>com.example</groupId>
  <artifactId>lib</artifactId>
  <versioning>
    <release>1.0</release>
    <versions><version>0.9</version><version>1.0</version></versions>
    <lastUpdated>20240101010101</lastUpdated>
  </versioning>
</metadata>`

func TestParseMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maven-metadata.xml")
	if err := os.WriteFile(path, []byte(sampleMetadata), 0o644); err != nil {
		t.Fatal(err)
	}
	md, err := ParseMetadata(path)
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if md.GroupID != "com.example" || md.ArtifactID != "lib" {
		t.Errorf("coordinate = %s/%s", md.GroupID, md.ArtifactID)
	}
	if len(md.Versioning.Versions) != 2 || md.Versioning.Release != "1.0" {
		t.Errorf("versioning = %+v", md.Versioning)
	}

	if err := os.WriteFile(path, []byte("<metadata><groupId>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseMetadata(path); err == nil {
		t.Fatal("truncated metadata accepted")
	}
}
