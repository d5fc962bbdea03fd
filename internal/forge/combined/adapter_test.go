// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package combined

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fensak-io/rengine/internal/patch"
)

type fakeForge struct {
	pulls map[int]pullRequestResponse
	diffs map[string]string // href -> raw combined diff text
	blobs map[string]string // "owner/repo/path@hash" -> raw content
}

func newFakeForgeServer(t *testing.T, f *fakeForge) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/2.0/repositories/acme/widgets/pullrequests/1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, f.pulls[1])
	})
	mux.HandleFunc("/2.0/repositories/acme/widgets/pullrequests/41", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, f.pulls[41])
	})
	mux.HandleFunc("/diff/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(f.diffs["/diff/1"]))
	})
	mux.HandleFunc("/2.0/repositories/acme/widgets/src/", func(w http.ResponseWriter, r *http.Request) {
		// path shape: /2.0/repositories/acme/widgets/src/{hash}/{path...}
		rest := r.URL.Path[len("/2.0/repositories/acme/widgets/src/"):]
		hash, path := splitFirstSegment(rest)
		key := "acme/widgets/" + path + "@" + hash
		content, ok := f.blobs[key]
		require.True(t, ok, "no fake blob %s", key)
		_, _ = w.Write([]byte(content))
	})
	return httptest.NewServer(mux)
}

func splitFirstSegment(p string) (first, rest string) {
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			return p[:i], p[i+1:]
		}
	}
	return p, ""
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestAssemble_SimpleModifiedFile(t *testing.T) {
	var pr pullRequestResponse
	pr.Source = refResponse{Branch: branchRef{Name: "feature"}, Commit: commitRef{Hash: "headsha"}}
	pr.Destination = refResponse{Branch: branchRef{Name: "main"}, Commit: commitRef{Hash: "basesha"}}
	pr.Links.Diff.Href = "/diff/1"

	f := &fakeForge{
		pulls: map[int]pullRequestResponse{1: pr},
		diffs: map[string]string{
			"/diff/1": "diff --git a/README.md b/README.md\n--- a/README.md\n+++ b/README.md\n@@ -1,1 +1,2 @@\n-old\n+new\n+line2\n",
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
	require.Equal(t, "README.md", result.PatchList[0].Path)
	require.Nil(t, result.PatchList[0].ObjectDiff)
	require.Equal(t, "feature", result.Metadata.SourceBranch)
	require.Equal(t, "main", result.Metadata.TargetBranch)
}

func TestAssemble_RenameNormalizedToThreeRecords(t *testing.T) {
	var pr pullRequestResponse
	pr.Source.Commit.Hash = "headsha"
	pr.Destination.Commit.Hash = "basesha"
	pr.Links.Diff.Href = "/diff/1"
	f := &fakeForge{
		pulls: map[int]pullRequestResponse{1: pr},
		diffs: map[string]string{
			"/diff/1": "diff --git a/old.json b/new.json\n--- a/old.json\n+++ b/new.json\n@@ -1,1 +1,1 @@\n-{\"a\":1}\n+{\"a\":2}\n",
		},
		blobs: map[string]string{
			"acme/widgets/old.json@basesha": `{"a":1}`,
			"acme/widgets/new.json@headsha": `{"a":2}`,
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

func TestAssemble_AddedAndDeletedFiles(t *testing.T) {
	var pr pullRequestResponse
	pr.Links.Diff.Href = "/diff/1"
	f := &fakeForge{
		pulls: map[int]pullRequestResponse{1: pr},
		diffs: map[string]string{
			"/diff/1": "diff --git a/new.txt b/new.txt\n--- /dev/null\n+++ b/new.txt\n@@ -0,0 +1,1 @@\n+hello\n" +
				"diff --git a/gone.txt b/gone.txt\n--- a/gone.txt\n+++ /dev/null\n@@ -1,1 +0,0 @@\n-bye\n",
		},
	}
	srv := newFakeForgeServer(t, f)
	defer srv.Close()
	client, _ := NewClient(srv.URL, "")

	result, err := Assemble(context.Background(), client, "acme", "widgets", 1, Options{})
	require.NoError(t, err)
	require.Len(t, result.PatchList, 2)
	require.Equal(t, patch.PatchInsert, result.PatchList[0].Op)
	require.Equal(t, "new.txt", result.PatchList[0].Path)
	require.Equal(t, patch.PatchDelete, result.PatchList[1].Op)
	require.Equal(t, "gone.txt", result.PatchList[1].Path)
	require.Equal(t, 0, result.PatchList[0].Additions)
}

func TestAssemble_LinkedPRsResolved(t *testing.T) {
	var hostPR, linkedPR pullRequestResponse
	hostPR.Rendered.Description.Raw = "---\nfensak:\n  linked:\n    - prNum: 41\n---\nbody\n"
	hostPR.Links.Diff.Href = "/diff/1"
	linkedPR.State = "MERGED"
	f := &fakeForge{
		pulls: map[int]pullRequestResponse{1: hostPR, 41: linkedPR},
		diffs: map[string]string{"/diff/1": ""},
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
