// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagVerbose bool
	flagForge   string
	flagBaseURL string
	flagToken   string
)

var rootCmd = &cobra.Command{
	Use:   "rengine",
	Short: "Sandboxed rule engine for evaluating pull-request approval policies",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagForge, "forge", "github", `forge shape: "github" (REST-per-file) or "bitbucket" (combined diff)`)
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "https://api.github.com", "forge API base URL")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "forge API bearer token")

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(serveCmd)
}
