// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package frontmatter extracts the "fensak.linked" front-matter block from a
// pull-request description, the structured header convention used to
// declare cross-PR dependencies.
package frontmatter

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fensak-io/rengine/internal/errkind"
)

// LinkedRef is one entry under fensak.linked before the host resolves it
// against the forge (to learn IsMerged/IsClosed).
type LinkedRef struct {
	Repo  string
	PRNum int
}

type frontMatterDoc struct {
	Fensak *fensakBlock `yaml:"fensak"`
}

type fensakBlock struct {
	Linked *[]linkedEntry `yaml:"linked"`
}

type linkedEntry struct {
	PRNum int    `yaml:"prNum"`
	Repo  string `yaml:"repo"`
}

// Extract parses the leading "---"-delimited front-matter block (if any)
// out of description and returns the fensak.linked entries it declares.
//
//   - No front matter, or front matter without a "fensak" key, returns an
//     empty (nil) slice and no error.
//   - A "fensak" key present without a "linked" key fails with
//     errkind.MalformedFrontMatter.
//   - An entry with no "repo" resolves to the empty string (same
//     repository as the host PR).
func Extract(description string) ([]LinkedRef, error) {
	block, ok := splitFrontMatter(description)
	if !ok {
		return nil, nil
	}

	var doc frontMatterDoc
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, errkind.NewMalformedFrontMatter(err.Error())
	}
	if doc.Fensak == nil {
		return nil, nil
	}
	if doc.Fensak.Linked == nil {
		return nil, errkind.NewMalformedFrontMatter(`"fensak" key present without a "linked" key`)
	}

	refs := make([]LinkedRef, 0, len(*doc.Fensak.Linked))
	for _, e := range *doc.Fensak.Linked {
		refs = append(refs, LinkedRef{Repo: e.Repo, PRNum: e.PRNum})
	}
	return refs, nil
}

// splitFrontMatter returns the text between the two delimiting "---" lines
// at the very start of description, if present.
func splitFrontMatter(description string) (string, bool) {
	const delim = "---"
	lines := strings.Split(description, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return "", false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			return strings.Join(lines[1:i], "\n"), true
		}
	}
	return "", false
}
