// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package combined

import "strings"

// fileDiff is one per-file chunk carved out of a combined diff blob, still
// carrying its own "diff --git" header line plus whatever hunk lines follow
// it, ready to hand to udiff.Parse.
type fileDiff struct {
	oldPath string
	newPath string
	body    string
}

const devNull = "/dev/null"

// splitCombinedDiff breaks a single concatenated unified-diff blob at each
// "diff --git a/<o> b/<t>" boundary, the delimiter a combined-diff forge
// emits between files in one response body. The old/new paths are read off
// the "--- a/<path>" / "+++ b/<path>" header lines rather than the
// diff --git line, since those are the lines a rename or a file touching
// /dev/null actually vary.
func splitCombinedDiff(blob string) []fileDiff {
	lines := strings.Split(blob, "\n")

	var chunks []fileDiff
	var current []string
	flush := func() {
		if strings.TrimSpace(strings.Join(current, "")) == "" {
			current = nil
			return
		}
		chunk := fileDiff{body: strings.Join(current, "\n")}
		for _, l := range current {
			switch {
			case strings.HasPrefix(l, "--- a/"):
				chunk.oldPath = strings.TrimPrefix(l, "--- a/")
			case strings.HasPrefix(l, "--- "):
				chunk.oldPath = normalizeDevNull(strings.TrimPrefix(l, "--- "))
			case strings.HasPrefix(l, "+++ b/"):
				chunk.newPath = strings.TrimPrefix(l, "+++ b/")
			case strings.HasPrefix(l, "+++ "):
				chunk.newPath = normalizeDevNull(strings.TrimPrefix(l, "+++ "))
			}
		}
		chunks = append(chunks, chunk)
		current = nil
	}

	for _, l := range lines {
		if strings.HasPrefix(l, "diff --git ") {
			flush()
		}
		current = append(current, l)
	}
	flush()
	return chunks
}

func normalizeDevNull(path string) string {
	if path == devNull {
		return ""
	}
	return path
}

// hunkLines strips the "diff --git"/"index"/"---"/"+++" header lines off a
// chunk's body, leaving only the "@@" hunks that internal/udiff.Parse
// expects as input.
func hunkLines(body string) string {
	lines := strings.Split(body, "\n")
	start := 0
	for i, l := range lines {
		if strings.HasPrefix(l, "@@") {
			start = i
			break
		}
	}
	return strings.Join(lines[start:], "\n")
}
