// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package restfile

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fensak-io/rengine/internal/errkind"
	"github.com/fensak-io/rengine/internal/patch"
)

type fakeForge struct {
	pulls map[int]pullRequestResponse
	files map[int][]changedFileResponse
	blobs map[string]string // "owner/repo/path@ref" -> raw content
}

func newFakeForgeServer(t *testing.T, f *fakeForge) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/", func(w http.ResponseWriter, r *http.Request) {
		owner, repo, num, kind, path := parseTestPath(r.URL.Path)

		switch kind {
		case "pulls":
			pr, ok := f.pulls[num]
			require.True(t, ok, "no fake PR %d", num)
			writeJSON(w, pr)
		case "files":
			writeJSON(w, f.files[num])
		case "contents":
			ref := r.URL.Query().Get("ref")
			key := fmt.Sprintf("%s/%s/%s@%s", owner, repo, path, ref)
			content, ok := f.blobs[key]
			require.True(t, ok, "no fake blob %s", key)
			writeJSON(w, contentsResponse{Type: "file", Content: base64.StdEncoding.EncodeToString([]byte(content))})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	return httptest.NewServer(mux)
}

// parseTestPath is a tiny hand-rolled router matcher for this test's fixed
// URL shapes: /repos/{owner}/{repo}/pulls/{n}[/files] and
// /repos/{owner}/{repo}/contents/{path}.
func parseTestPath(p string) (owner, repo string, num int, kind, path string) {
	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if len(segs) < 4 {
		return "", "", 0, "", ""
	}
	owner, repo = segs[1], segs[2]
	switch segs[3] {
	case "pulls":
		num, _ = strconv.Atoi(segs[4])
		if len(segs) > 5 {
			kind = "files"
		} else {
			kind = "pulls"
		}
	case "contents":
		kind = "contents"
		path = strings.Join(segs[4:], "/")
	}
	return owner, repo, num, kind, path
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestAssemble_SimpleModifiedFile(t *testing.T) {
	f := &fakeForge{
		pulls: map[int]pullRequestResponse{
			1: {Body: "no front matter here"},
		},
		files: map[int][]changedFileResponse{
			1: {{Filename: "README.md", Status: "modified", Additions: 2, Deletions: 1, Patch: "@@ -1,1 +1,2 @@\n-old\n+new\n+line2\n"}},
		},
	}
	srv := newFakeForgeServer(t, f)
	defer srv.Close()

	client, err := NewClient(srv.URL, "")
	require.NoError(t, err)

	result, err := Assemble(context.Background(), client, "acme", "widgets", 1, Options{})
	require.NoError(t, err)
	require.Len(t, result.PatchList, 1)
	require.Equal(t, patch.PatchModified, result.PatchList[0].Op)
	require.Equal(t, 2, result.PatchList[0].Additions)
	require.Nil(t, result.PatchList[0].ObjectDiff)
}

func TestAssemble_UnknownStatusFails(t *testing.T) {
	f := &fakeForge{
		pulls: map[int]pullRequestResponse{1: {}},
		files: map[int][]changedFileResponse{
			1: {{Filename: "x.txt", Status: "typechanged"}},
		},
	}
	srv := newFakeForgeServer(t, f)
	defer srv.Close()
	client, _ := NewClient(srv.URL, "")

	_, err := Assemble(context.Background(), client, "acme", "widgets", 1, Options{})
	require.Error(t, err)
	require.True(t, errkind.IsUnknownFileStatus(err))
}

func TestAssemble_RenameWithoutPreviousFilenameFails(t *testing.T) {
	f := &fakeForge{
		pulls: map[int]pullRequestResponse{1: {}},
		files: map[int][]changedFileResponse{
			1: {{Filename: "new.txt", Status: "renamed"}},
		},
	}
	srv := newFakeForgeServer(t, f)
	defer srv.Close()
	client, _ := NewClient(srv.URL, "")

	_, err := Assemble(context.Background(), client, "acme", "widgets", 1, Options{})
	require.Error(t, err)
	require.True(t, errkind.IsInconsistentForgeResponse(err))
}

func TestAssemble_RenameNormalizedToThreeRecords(t *testing.T) {
	var pr pullRequestResponse
	pr.Base.Ref = "base"
	pr.Head.Ref = "head"
	f := &fakeForge{
		pulls: map[int]pullRequestResponse{1: pr},
		files: map[int][]changedFileResponse{
			1: {{Filename: "new.json", PreviousFilename: "old.json", Status: "renamed", Patch: "@@ -1,1 +1,1 @@\n-{\"a\":1}\n+{\"a\":2}\n"}},
		},
		blobs: map[string]string{
			"acme/widgets/old.json@base": `{"a":1}`,
			"acme/widgets/new.json@head": `{"a":2}`,
		},
	}
	srv := newFakeForgeServer(t, f)
	defer srv.Close()
	client, _ := NewClient(srv.URL, "")

	result, err := Assemble(context.Background(), client, "acme", "widgets", 1, Options{})
	require.NoError(t, err)
	require.Len(t, result.PatchList, 3)
	require.Equal(t, patch.PatchDelete, result.PatchList[0].Op)
	require.Equal(t, "old.json", result.PatchList[0].Path)
	require.Equal(t, patch.PatchInsert, result.PatchList[1].Op)
	require.Equal(t, "new.json", result.PatchList[1].Path)
	require.Equal(t, patch.PatchModified, result.PatchList[2].Op)
	require.NotNil(t, result.PatchList[2].ObjectDiff)
	require.Len(t, result.PatchList[2].ObjectDiff.Diff, 1)
}

func TestAssemble_LegacyRenameShape(t *testing.T) {
	f := &fakeForge{
		pulls: map[int]pullRequestResponse{1: {}},
		files: map[int][]changedFileResponse{
			1: {{Filename: "new.txt", PreviousFilename: "old.txt", Status: "renamed"}},
		},
	}
	srv := newFakeForgeServer(t, f)
	defer srv.Close()
	client, _ := NewClient(srv.URL, "")

	result, err := Assemble(context.Background(), client, "acme", "widgets", 1, Options{LegacyRenameShape: true})
	require.NoError(t, err)
	require.Len(t, result.PatchList, 2)
}

func TestAssemble_LinkedPRsResolved(t *testing.T) {
	f := &fakeForge{
		pulls: map[int]pullRequestResponse{
			1:  {Body: "---\nfensak:\n  linked:\n    - prNum: 41\n---\nbody\n"},
			41: {Merged: true, State: "closed"},
		},
		files: map[int][]changedFileResponse{1: {}},
	}
	srv := newFakeForgeServer(t, f)
	defer srv.Close()
	client, _ := NewClient(srv.URL, "")

	result, err := Assemble(context.Background(), client, "acme", "widgets", 1, Options{})
	require.NoError(t, err)
	require.Len(t, result.Metadata.LinkedPRs, 1)
	require.Equal(t, 41, result.Metadata.LinkedPRs[0].PRNum)
	require.True(t, result.Metadata.LinkedPRs[0].IsMerged)
	require.True(t, result.Metadata.LinkedPRs[0].IsClosed)
}
