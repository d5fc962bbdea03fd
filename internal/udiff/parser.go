// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package udiff parses unified-diff text into the ordered Hunk sequence
// used by internal/patch. The structuring — a Sink-like scanner that walks
// the text line by line and a separate pass that folds delete/insert runs
// into Modified pairs — mirrors a typical line-diff pipeline, adapted to
// the four-state (Insert/Delete/Modified/Untouched) model this engine's
// callers consume instead of a two-state (Insert/Delete/Equal) one.
package udiff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fensak-io/rengine/internal/errkind"
	"github.com/fensak-io/rengine/internal/patch"
)

// Parse interprets text as either an empty diff, a single-file unified
// diff, or a multi-file concatenated diff, and returns the ordered Hunk
// sequence found in it. Only hunk bodies (the lines after an "@@" header)
// are interpreted; file headers ("--- a/x", "+++ b/x", "diff --git ...")
// are recognized and skipped wherever they appear, so a whole multi-file
// diff can be passed in as-is.
func Parse(text string) ([]patch.Hunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var hunks []patch.Hunk
	lines := splitLines(text)
	i := 0
	for i < len(lines) {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "@@"):
			hunk, consumed, err := parseHunk(lines, i)
			if err != nil {
				return nil, err
			}
			hunks = append(hunks, hunk)
			i += consumed
		default:
			// Not a hunk header: file header line, "diff --git" boundary, or
			// blank separator. Skip forward-compatibly.
			i++
		}
	}
	return hunks, nil
}

// splitLines splits on "\n" without discarding a trailing empty element's
// significance — unified diffs are line-oriented and a trailing newline in
// the source text should not manufacture a spurious empty context line.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

var headerErr = func(raw string) error {
	return errkind.NewInvalidPatch(fmt.Sprintf("malformed hunk header: %q", raw))
}

// parseHunk parses the "@@ -O,OL +U,UL @@" header at lines[start] plus its
// body, and returns how many lines (header + body) it consumed.
func parseHunk(lines []string, start int) (patch.Hunk, int, error) {
	header := lines[start]
	origStart, origLen, updStart, updLen, err := parseHunkHeader(header)
	if err != nil {
		return patch.Hunk{}, 0, err
	}

	h := patch.Hunk{
		OriginalStart: origStart,
		UpdatedStart:  updStart,
	}

	var pendingDeletes []patch.LineDiff
	var pendingInserts []patch.LineDiff

	flushPending := func() {
		h.DiffOperations = append(h.DiffOperations, pairRuns(pendingDeletes, pendingInserts)...)
		pendingDeletes = nil
		pendingInserts = nil
	}

	i := start + 1
	for i < len(lines) {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "@@"):
			// Next hunk header: this hunk's body is done.
			flushPending()
			return finalizeHunk(h, origLen, updLen), i - start, nil
		case strings.HasPrefix(line, "diff --git "):
			flushPending()
			return finalizeHunk(h, origLen, updLen), i - start, nil
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			// File header line interleaved between chunks; not part of this
			// hunk's body.
			flushPending()
			return finalizeHunk(h, origLen, updLen), i - start, nil
		case strings.HasPrefix(line, "+"):
			pendingInserts = append(pendingInserts, patch.LineDiff{Op: patch.LineInsert, Text: line[1:]})
			i++
		case strings.HasPrefix(line, "-"):
			pendingDeletes = append(pendingDeletes, patch.LineDiff{Op: patch.LineDelete, Text: line[1:]})
			i++
		case strings.HasPrefix(line, "\\"):
			// "\ No newline at end of file" and similar: ignored.
			i++
		case strings.HasPrefix(line, " "):
			flushPending()
			h.DiffOperations = append(h.DiffOperations, patch.LineDiff{Op: patch.LineUntouched, Text: line[1:]})
			i++
		case line == "":
			flushPending()
			h.DiffOperations = append(h.DiffOperations, patch.LineDiff{Op: patch.LineUntouched, Text: ""})
			i++
		default:
			// Unrecognized body-line prefix: skipped for forward
			// compatibility.
			i++
		}
	}
	flushPending()
	return finalizeHunk(h, origLen, updLen), i - start, nil
}

func finalizeHunk(h patch.Hunk, origLen, updLen int) patch.Hunk {
	h.OriginalLength = origLen
	h.UpdatedLength = updLen
	return h
}

// pairRuns coalesces a run of consecutive Deletes immediately followed by an
// equal-length run of Inserts into that many Modified entries, positionally.
// Unequal runs are not paired at all: their Deletes emit as Delete and their
// Inserts emit as Insert. Pairing never crosses an Untouched boundary
// because the caller only ever accumulates one contiguous delete/insert run
// at a time between flushes.
func pairRuns(deletes, inserts []patch.LineDiff) []patch.LineDiff {
	out := make([]patch.LineDiff, 0, len(deletes)+len(inserts))
	if len(deletes) != len(inserts) {
		out = append(out, deletes...)
		return append(out, inserts...)
	}
	for i := range deletes {
		out = append(out, patch.LineDiff{
			Op:      patch.LineModified,
			Text:    deletes[i].Text,
			NewText: inserts[i].Text,
		})
	}
	return out
}

// parseHunkHeader parses "@@ -O,OL +U,UL @@" (OL/UL optional, defaulting to
// 1 per standard unified-diff rules). When OL (or UL) is explicitly 0, the
// corresponding start is reported as 0 regardless of what O (or U) said,
// since a zero-length side has no anchoring context line.
func parseHunkHeader(header string) (origStart, origLen, updStart, updLen int, err error) {
	body := strings.TrimSpace(header)
	body = strings.TrimPrefix(body, "@@")
	if idx := strings.Index(body, "@@"); idx >= 0 {
		body = body[:idx]
	}
	body = strings.TrimSpace(body)
	fields := strings.Fields(body)
	if len(fields) < 2 {
		return 0, 0, 0, 0, headerErr(header)
	}
	origStart, origLen, err = parseRange(fields[0], "-")
	if err != nil {
		return 0, 0, 0, 0, headerErr(header)
	}
	updStart, updLen, err = parseRange(fields[1], "+")
	if err != nil {
		return 0, 0, 0, 0, headerErr(header)
	}
	if origLen == 0 {
		origStart = 0
	}
	if updLen == 0 {
		updStart = 0
	}
	return origStart, origLen, updStart, updLen, nil
}

func parseRange(field, sigil string) (start, length int, err error) {
	if !strings.HasPrefix(field, sigil) {
		return 0, 0, fmt.Errorf("expected %q prefix in %q", sigil, field)
	}
	field = strings.TrimPrefix(field, sigil)
	parts := strings.SplitN(field, ",", 2)
	start, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	if len(parts) == 1 {
		return start, 1, nil
	}
	length, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, length, nil
}
