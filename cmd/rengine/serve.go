// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fensak-io/rengine/pkg/rengine"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 1 * time.Minute
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a demo HTTP receiver that evaluates a rule against a forge webhook payload",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:8088", "address to listen on")
}

// evaluateRequest is the payload this demo receiver expects: a forge
// reference to fetch plus the rule program text to evaluate against it.
// A production webhook receiver would instead look the rule up from
// configuration keyed by repository; this endpoint takes it inline to keep
// the demo self-contained.
type evaluateRequest struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	PRNum   int    `json:"prNum"`
	Program string `json:"program"`
}

type evaluateResponse struct {
	Approve bool     `json:"approve"`
	Logs    []string `json:"logs,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func runServe(cmd *cobra.Command, args []string) error {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/webhook/evaluate", handleEvaluate).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:         serveListen,
		Handler:      router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	logrus.WithField("addr", serveListen).Info("rengine demo receiver listening")
	return srv.ListenAndServe()
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEvaluateError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultWriteTimeout)
	defer cancel()

	changeSet, err := fetchChangeSet(ctx, req.Owner, req.Repo, req.PRNum)
	if err != nil {
		writeEvaluateError(w, http.StatusBadGateway, err)
		return
	}

	verdict, err := rengine.Evaluate(ctx, req.Program, changeSet, rengine.EvaluateOptions{
		CaptureLogs: true,
		Logger:      logrus.WithField("component", "webhook"),
	})
	if err != nil {
		writeEvaluateError(w, http.StatusUnprocessableEntity, err)
		return
	}

	logs := make([]string, len(verdict.Logs))
	for i, l := range verdict.Logs {
		logs[i] = l.Level + ": " + l.Msg
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(evaluateResponse{Approve: verdict.Approve, Logs: logs})
}

func writeEvaluateError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(evaluateResponse{Error: err.Error()})
}
