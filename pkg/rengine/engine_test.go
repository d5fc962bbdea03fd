// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package rengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate_ApprovesOnTruthyRule(t *testing.T) {
	changeSet := &ChangeSet{
		PatchList: []Patch{{Path: "README.md", Op: PatchModified}},
		Metadata:  ChangeSetMetadata{SourceBranch: "feature", TargetBranch: "main"},
	}
	program := `function main(patches, metadata) { return patches.length === 1 && metadata.sourceBranch === "feature"; }`

	verdict, err := Evaluate(context.Background(), program, changeSet, EvaluateOptions{})
	require.NoError(t, err)
	require.True(t, verdict.Approve)
}

func TestEvaluate_CapturesLogs(t *testing.T) {
	changeSet := &ChangeSet{PatchList: []Patch{{Path: "a.txt", Op: PatchInsert}}}
	program := `function main(patches) { console.log("saw", patches.length, "patches"); return true; }`

	verdict, err := Evaluate(context.Background(), program, changeSet, EvaluateOptions{CaptureLogs: true})
	require.NoError(t, err)
	require.True(t, verdict.Approve)
	require.Len(t, verdict.Logs, 1)
	require.Equal(t, "saw 1 patches", verdict.Logs[0].Msg)
}

func TestEvaluate_NilChangeSetFails(t *testing.T) {
	_, err := Evaluate(context.Background(), `function main() { return true; }`, nil, EvaluateOptions{})
	require.Error(t, err)
}
