// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package sandbox is the hermetic rule executor. It runs a user-supplied
// program text against a JSON-serialized patch list and change-set metadata
// under a hard wall-clock timeout, with no ambient capabilities beyond the
// four names the host bridge binds: getInput/setOutput/console.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fensak-io/rengine/internal/errkind"
	"github.com/fensak-io/rengine/internal/patch"
)

// Nominal scheduling constants named by the engine contract. The host does
// not separately enforce NSteps as a counted micro-step budget (see
// DESIGN.md); they are kept as named constants for API/documentation
// parity with callers that reason about this engine's scheduling model.
const (
	NSteps            = 100
	SleepMS           = 100 * time.Millisecond
	DefaultMaxRuntime = 5000 * time.Millisecond
)

// LogMode selects what happens to guest console.* calls.
type LogMode int

const (
	// LogDrop discards log calls. Default.
	LogDrop LogMode = iota
	// LogConsole forwards log calls to the host logger.
	LogConsole
	// LogCapture appends log calls to the returned Result's Logs, in call
	// order.
	LogCapture
)

// LogEntry is one captured guest console call.
type LogEntry struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

// Options configures one RunRule invocation.
type Options struct {
	LogMode LogMode
	// MaxRuntime overrides DefaultMaxRuntime (MAX_RUNTIME_MS) when non-zero.
	MaxRuntime time.Duration
	// Logger is used when LogMode == LogConsole. Defaults to logrus's
	// standard logger.
	Logger *logrus.Entry
}

// Result is the rule evaluation record returned on a successful settle.
type Result struct {
	Approve bool       `json:"approve"`
	Logs    []LogEntry `json:"logs"`
}

type ruleInput struct {
	Patches  []patch.Patch            `json:"patches"`
	Metadata patch.ChangeSetMetadata `json:"metadata"`
}

// timeoutSentinel is the value passed to vm.Interrupt so the recovered
// panic can be distinguished from a guest-thrown exception.
type timeoutSentinel struct{}

// RunRule executes programText's main(patches, metadata) entry point and
// returns its approve/logs record. programText must define a top-level
// `main` function; the host harness supplies getInput/setOutput and invokes
// it. See internal/sandbox/bridge.go for the bound names and
// internal/errkind for the failure kinds this can return.
func RunRule(ctx context.Context, programText string, patches []patch.Patch, metadata patch.ChangeSetMetadata, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	maxRuntime := opts.MaxRuntime
	if maxRuntime <= 0 {
		maxRuntime = DefaultMaxRuntime
	}

	inputJSON, err := json.Marshal(ruleInput{Patches: patches, Metadata: metadata})
	if err != nil {
		return nil, errkind.NewEngineInternalError(fmt.Sprintf("marshal rule input: %v", err))
	}

	invocationID := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = logrus.WithField("invocation", invocationID)
	} else {
		logger = logger.WithField("invocation", invocationID)
	}

	bridge := newHostBridge(string(inputJSON), opts.LogMode, logger)
	vm := goja.New()
	if err := bindHostBridge(vm, bridge); err != nil {
		return nil, errkind.NewEngineInternalError(fmt.Sprintf("bind host bridge: %v", err))
	}

	script := programText + "\n" + harnessEpilogue

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	timer := time.AfterFunc(maxRuntime, func() {
		vm.Interrupt(timeoutSentinel{})
	})
	defer timer.Stop()

	go func() {
		_, runErr := vm.RunString(script)
		if runErr != nil {
			done <- outcome{err: classifyGuestError(runErr, maxRuntime)}
			return
		}
		if !bridge.outputSet {
			done <- outcome{err: errkind.NewEngineInternalError("rule program did not call setOutput")}
			return
		}
		var settled struct {
			Result     json.RawMessage `json:"result"`
			ResultType string          `json:"resultType"`
		}
		if err := json.Unmarshal([]byte(bridge.output), &settled); err != nil {
			done <- outcome{err: errkind.NewEngineInternalError(fmt.Sprintf("decode setOutput payload: %v", err))}
			return
		}
		if settled.ResultType != "boolean" {
			done <- outcome{err: errkind.NewNonBooleanResult(settled.ResultType)}
			return
		}
		var approve bool
		if err := json.Unmarshal(settled.Result, &approve); err != nil {
			done <- outcome{err: errkind.NewEngineInternalError(fmt.Sprintf("decode setOutput payload: %v", err))}
			return
		}
		done <- outcome{result: &Result{Approve: approve, Logs: bridge.logs}}
	}()

	select {
	case <-ctx.Done():
		// Caller-initiated abort (process shutdown, parent deadline). This is
		// distinct from the sandbox's own MAX_RUNTIME_MS timeout, the only
		// cancellation channel within the core itself, so a caller-supplied
		// context canceling is surfaced as a host error, not as
		// errkind.Timeout.
		vm.Interrupt(timeoutSentinel{})
		<-done
		return nil, errkind.NewEngineInternalError(fmt.Sprintf("context canceled: %v", ctx.Err()))
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		return o.result, nil
	}
}

// classifyGuestError maps a goja execution error onto one of this
// component's contractual failure kinds. Logs captured before the failure
// are discarded on every path here — only the success path above returns a
// Logs slice.
func classifyGuestError(err error, maxRuntime time.Duration) error {
	if _, ok := err.(*goja.InterruptedError); ok {
		return errkind.NewTimeout(maxRuntime.Milliseconds())
	}
	if exc, ok := err.(*goja.Exception); ok {
		msg := exc.Error()
		return errkind.NewRuleExecutionFailure(sanitizeExceptionMessage(msg))
	}
	return errkind.NewRuleExecutionFailure(err.Error())
}

// sanitizeExceptionMessage trims surrounding whitespace from goja's
// exception text and otherwise leaves it unchanged, so "is not defined"
// passes through verbatim for forbidden-global references.
func sanitizeExceptionMessage(msg string) string {
	return strings.TrimSpace(msg)
}
