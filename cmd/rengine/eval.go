// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fensak-io/rengine/pkg/rengine"
)

var (
	evalMaxRuntimeMS      int64
	evalLegacyRenameShape bool
)

var evalCmd = &cobra.Command{
	Use:   "eval <owner/repo#pr> <rule.js>",
	Short: "Fetch a pull request's change set and evaluate a rule against it",
	Args:  cobra.ExactArgs(2),
	RunE:  runEval,
}

func init() {
	evalCmd.Flags().Int64Var(&evalMaxRuntimeMS, "max-runtime-ms", 0, "override the sandbox's wall-clock timeout")
	evalCmd.Flags().BoolVar(&evalLegacyRenameShape, "legacy-rename-shape", false, "emit the two-record rename shape on github-shaped forges")
}

func runEval(cmd *cobra.Command, args []string) error {
	owner, repo, num, err := parseRepoPR(args[0])
	if err != nil {
		return err
	}
	programText, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read rule file: %w", err)
	}

	ctx := context.Background()
	changeSet, err := fetchChangeSet(ctx, owner, repo, num)
	if err != nil {
		return fmt.Errorf("fetch change set: %w", err)
	}

	opts := rengine.EvaluateOptions{
		CaptureLogs: true,
		Logger:      logrus.WithField("component", "eval"),
	}
	if evalMaxRuntimeMS > 0 {
		opts.MaxRuntime = msToDuration(evalMaxRuntimeMS)
	}

	verdict, err := rengine.Evaluate(ctx, string(programText), changeSet, opts)
	if err != nil {
		return fmt.Errorf("evaluate rule: %w", err)
	}

	for _, l := range verdict.Logs {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", l.Level, l.Msg)
	}
	if verdict.Approve {
		fmt.Fprintln(cmd.OutOrStdout(), "approve")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "deny")
	os.Exit(1)
	return nil
}

func fetchChangeSet(ctx context.Context, owner, repo string, num int) (*rengine.ChangeSet, error) {
	switch flagForge {
	case "bitbucket":
		src, err := rengine.NewBitbucketSource(flagBaseURL, flagToken)
		if err != nil {
			return nil, err
		}
		return src.FetchChangeSet(ctx, owner, repo, num)
	default:
		src, err := rengine.NewGitHubSource(flagBaseURL, flagToken, evalLegacyRenameShape)
		if err != nil {
			return nil, err
		}
		return src.FetchChangeSet(ctx, owner, repo, num)
	}
}

// parseRepoPR splits "owner/repo#123" into its three parts.
func parseRepoPR(spec string) (owner, repo string, num int, err error) {
	ownerRepo, numStr, ok := strings.Cut(spec, "#")
	if !ok {
		return "", "", 0, fmt.Errorf("expected owner/repo#pr, got %q", spec)
	}
	owner, repo, ok = strings.Cut(ownerRepo, "/")
	if !ok {
		return "", "", 0, fmt.Errorf("expected owner/repo#pr, got %q", spec)
	}
	num, err = strconv.Atoi(numStr)
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid pull request number %q: %w", numStr, err)
	}
	return owner, repo, num, nil
}
