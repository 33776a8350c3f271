// Package pom parses Maven project descriptors and repository metadata
// files.
package pom

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
)

// Project is the parsed form of a pom.xml descriptor. Group and version
// fall back to the parent declaration when the project omits them, as
// Maven's own resolution does.
type Project struct {
	Group       string `json:"group"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Packaging   string `json:"packaging"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

type xmlParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type xmlProject struct {
	XMLName     xml.Name  `xml:"project"`
	GroupID     string    `xml:"groupId"`
	ArtifactID  string    `xml:"artifactId"`
	Version     string    `xml:"version"`
	Packaging   string    `xml:"packaging"`
	Description string    `xml:"description"`
	URL         string    `xml:"url"`
	Parent      xmlParent `xml:"parent"`
}

// Parse reads and decodes a pom.xml file.
func Parse(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw xmlProject
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	p := &Project{
		Group:       strings.TrimSpace(raw.GroupID),
		Name:        strings.TrimSpace(raw.ArtifactID),
		Version:     strings.TrimSpace(raw.Version),
		Packaging:   strings.TrimSpace(raw.Packaging),
		Description: strings.TrimSpace(raw.Description),
		URL:         strings.TrimSpace(raw.URL),
	}
	if p.Group == "" {
		p.Group = strings.TrimSpace(raw.Parent.GroupID)
	}
	if p.Version == "" {
		p.Version = strings.TrimSpace(raw.Parent.Version)
	}
	if p.Packaging == "" {
		p.Packaging = "jar"
	}
	if p.Name == "" {
		return nil, fmt.Errorf("parse %s: missing artifactId", path)
	}
	return p, nil
}

// Metadata is the parsed form of a maven-metadata.xml file.
type Metadata struct {
	XMLName    xml.Name `xml:"metadata"`
	GroupID    string   `xml:"groupId"`
	ArtifactID string   `xml:"artifactId"`
	Versioning struct {
		Latest      string   `xml:"latest"`
		Release     string   `xml:"release"`
		Versions    []string `xml:"versions>version"`
		LastUpdated string   `xml:"lastUpdated"`
	} `xml:"versioning"`
}

// ParseMetadata reads and decodes a maven-metadata.xml file.
func ParseMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var md Metadata
	if err := xml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &md, nil
}
