// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package combined implements the source adapter for forges whose API
// returns a single concatenated unified-diff blob per pull request (the
// Bitbucket Cloud shape), which this adapter splits per file before handing
// each chunk to internal/udiff.
package combined

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to a combined-diff forge (Bitbucket Cloud-shaped API).
type Client struct {
	http    *http.Client
	baseURL *url.URL
	token   string
}

// NewClient builds a Client against baseURL (e.g.
// "https://api.bitbucket.org"), authenticating with token via a bearer
// Authorization header.
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

type branchRef struct {
	Name string `json:"name"`
}

type commitRef struct {
	Hash string `json:"hash"`
}

type refResponse struct {
	Branch branchRef `json:"branch"`
	Commit commitRef `json:"commit"`
}

type descriptionBody struct {
	Raw string `json:"raw"`
}

type renderedFields struct {
	Description descriptionBody `json:"description"`
}

type diffLink struct {
	Href string `json:"href"`
}

type prLinks struct {
	Diff diffLink `json:"diff"`
}

type pullRequestResponse struct {
	Source      refResponse    `json:"source"`
	Destination refResponse    `json:"destination"`
	Rendered    renderedFields `json:"rendered"`
	Links       prLinks        `json:"links"`
	// State lets linked-PR resolution learn whether a linked PR is
	// merged/closed; Bitbucket surfaces that as this same resource's "state"
	// field (OPEN/MERGED/DECLINED/SUPERSEDED).
	State string `json:"state"`
}

func (c *Client) getPullRequest(ctx context.Context, owner, repo string, num int) (*pullRequestResponse, error) {
	var out pullRequestResponse
	path := fmt.Sprintf("/2.0/repositories/%s/%s/pullrequests/%d", owner, repo, num)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// getDiff fetches the raw unified-diff text at href, which may be an
// absolute URL (as returned by the pull request resource's links.diff.href)
// or a path relative to baseURL.
func (c *Client) getDiff(ctx context.Context, href string) (string, error) {
	body, err := c.getRaw(ctx, href)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) getFileContents(ctx context.Context, owner, repo, commitHash, path string) ([]byte, error) {
	return c.getRaw(ctx, fmt.Sprintf("/2.0/repositories/%s/%s/src/%s/%s", owner, repo, commitHash, path))
}

func (c *Client) resolveURL(pathOrHref string) string {
	u, err := url.Parse(pathOrHref)
	if err == nil && u.IsAbs() {
		return pathOrHref
	}
	resolved := *c.baseURL
	resolved.Path = c.baseURL.Path + pathOrHref
	return resolved.String()
}

func (c *Client) getRaw(ctx context.Context, pathOrHref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolveURL(pathOrHref), nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("forge request to %s failed: status %d", pathOrHref, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.getRaw(ctx, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
