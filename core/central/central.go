// Package central probes the upstream Maven Central index so deploys
// cannot shadow coordinates that already exist there.
package central

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jarvault/jarvault/core/gav"
)

const defaultTimeout = 10 * time.Second

// Client checks coordinate existence on a Maven repository index.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	allow      map[string]struct{}
}

// NewClient returns a probe client for baseURL, e.g.
// https://repo1.maven.org/maven2.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		allow:      map[string]struct{}{},
	}
}

// allowFile is the YAML shape of the shadow allow list: entries are
// either "group" or "group/artifact".
type allowFile struct {
	Allow []string `yaml:"allow"`
}

// LoadAllowList reads the allow list from a YAML file.
func (c *Client) LoadAllowList(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read allow list: %w", err)
	}
	var f allowFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse allow list %s: %w", path, err)
	}
	for _, entry := range f.Allow {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			c.allow[entry] = struct{}{}
		}
	}
	return nil
}

// Allow adds an entry ("group" or "group/artifact") to the allow list.
func (c *Client) Allow(entry string) {
	c.allow[entry] = struct{}{}
}

// Allowed reports whether the coordinate is exempt from shadow checks.
func (c *Client) Allowed(group, artifact string) bool {
	if _, ok := c.allow[group]; ok {
		return true
	}
	_, ok := c.allow[group+"/"+artifact]
	return ok
}

// Exists probes the index for (group, artifact). A 404 means the name is
// free; 2xx means it exists. Anything else is a probe failure the caller
// must treat as inconclusive.
func (c *Client) Exists(ctx context.Context, group, artifact string) (bool, error) {
	url := fmt.Sprintf("%s/%s/%s/maven-metadata.xml", c.BaseURL, gav.GroupPath(group), artifact)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, fmt.Errorf("probe %s: unexpected status %d", url, resp.StatusCode)
	}
}
