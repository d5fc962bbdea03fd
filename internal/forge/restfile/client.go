// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package restfile implements the source adapter for forges whose API lists
// changed files with embedded per-file unified diffs (the GitHub pulls API
// shape). The HTTP client is a small struct wrapping *http.Client with a
// base URL and bearer token, rather than pulling in a REST framework.
package restfile

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// Client talks to a REST-per-file forge (GitHub-shaped API).
type Client struct {
	http    *http.Client
	baseURL *url.URL
	token   string
}

// NewClient builds a Client against baseURL (e.g. "https://api.github.com"),
// authenticating with token via a bearer Authorization header. Forge
// authentication handshakes (OAuth/JWT) are out of scope; the caller is
// expected to already hold a usable token.
func NewClient(baseURL, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: u,
		token:   token,
	}, nil
}

type pullRequestResponse struct {
	Body string `json:"body"`
	Head struct {
		Ref  string `json:"ref"`
		Repo struct {
			Name  string `json:"name"`
			Owner struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"repo"`
	} `json:"head"`
	Base struct {
		Ref  string `json:"ref"`
		Repo struct {
			Name  string `json:"name"`
			Owner struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"repo"`
	} `json:"base"`
	// State/Merged let linked-PR resolution learn whether a referenced PR is
	// merged/closed; the same pulls/{n} endpoint is where a real forge
	// surfaces that.
	State  string `json:"state"`
	Merged bool   `json:"merged"`
}

type changedFileResponse struct {
	Filename         string `json:"filename"`
	PreviousFilename string `json:"previous_filename"`
	Status           string `json:"status"`
	Additions        int    `json:"additions"`
	Deletions        int    `json:"deletions"`
	Patch            string `json:"patch"`
}

type contentsResponse struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (c *Client) getPullRequest(ctx context.Context, owner, repo string, num int) (*pullRequestResponse, error) {
	var out pullRequestResponse
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, num)
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// listChangedFiles pages through the files endpoint sequentially, capping
// at maxPages as a bound against a misbehaving forge. Output ordering must
// match listing order, so this keeps the simpler sequential form rather
// than fetching pages concurrently.
func (c *Client) listChangedFiles(ctx context.Context, owner, repo string, num, maxPages int) ([]changedFileResponse, error) {
	if maxPages <= 0 {
		maxPages = 100
	}
	var all []changedFileResponse
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files", owner, repo, num)
	for page := 1; page <= maxPages; page++ {
		var pageResult []changedFileResponse
		query := url.Values{"page": {fmt.Sprint(page)}, "per_page": {"100"}}
		if err := c.getJSON(ctx, path, query, &pageResult); err != nil {
			return nil, err
		}
		all = append(all, pageResult...)
		if len(pageResult) < 100 {
			return all, nil
		}
	}
	logrus.Warnf("changed-files listing for %s/%s#%d reached the %d-page cap; later pages were not fetched", owner, repo, num, maxPages)
	return all, nil
}

func (c *Client) getFileContents(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	var out contentsResponse
	query := url.Values{"ref": {ref}}
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, path), query, &out); err != nil {
		return nil, err
	}
	decoded, err := base64.StdEncoding.DecodeString(stripBase64Whitespace(out.Content))
	if err != nil {
		return nil, fmt.Errorf("decode file contents for %s@%s: %w", path, ref, err)
	}
	return decoded, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := *c.baseURL
	u.Path = joinURLPath(u.Path, path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("forge request to %s failed: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func joinURLPath(base, suffix string) string {
	if base == "" {
		return suffix
	}
	return base + suffix
}

func stripBase64Whitespace(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n', '\r', ' ', '\t':
			continue
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
