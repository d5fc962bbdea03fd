// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"strings"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"
)

// hostBridge holds the four-name surface bound into the guest's top-level
// scope: getInput/setOutput/console. Nothing else is ever registered on the
// runtime's global object, so a reference to anything else resolves only
// against goja's ECMAScript builtins (minus those stripped below) and
// otherwise fails as a ReferenceError — every other capability is missing
// by design, not merely unimplemented.
type hostBridge struct {
	input     string
	logMode   LogMode
	logger    *logrus.Entry
	output    string
	outputSet bool
	logs      []LogEntry
}

func newHostBridge(input string, logMode LogMode, logger *logrus.Entry) *hostBridge {
	return &hostBridge{input: input, logMode: logMode, logger: logger}
}

// harnessEpilogue is appended after the guest's programText. It implements
// the three of the four harness steps that belong in the guest (call
// getInput, deserialize and invoke main, call setOutput); the boolean-result
// check is done host-side in RunRule instead of here, since a rule that
// returns a non-boolean must fail with errkind.NonBooleanResult — a distinct
// contractual kind from a guest-thrown exception (errkind.RuleExecutionFailure)
// — and a JS-level throw would collapse that distinction.
const harnessEpilogue = `
(function(__rengine_main) {
	var __rengine_input = JSON.parse(getInput());
	var __rengine_result = __rengine_main(__rengine_input.patches, __rengine_input.metadata);
	setOutput(JSON.stringify({result: __rengine_result, resultType: typeof __rengine_result}));
})(main);
`

// ambientGlobalsToStrip lists the ECMAScript builtins that goja ships by
// default but that this sandbox must not expose: eval and the Function
// constructor are dynamic-code primitives that must stay forbidden, and Date
// is an ambient clock that would make rule evaluation non-deterministic.
// Deleting them from the global object makes a guest reference to them fail
// exactly like a reference to any other unbound name — a ReferenceError —
// rather than merely making them inert.
var ambientGlobalsToStrip = []string{"eval", "Function", "Date"}

func bindHostBridge(vm *goja.Runtime, bridge *hostBridge) error {
	global := vm.GlobalObject()
	for _, name := range ambientGlobalsToStrip {
		_ = global.Delete(name)
	}
	if math := global.Get("Math"); math != nil {
		if mathObj, ok := math.(*goja.Object); ok {
			_ = mathObj.Delete("random")
		}
	}

	if err := vm.Set("getInput", func() string { return bridge.input }); err != nil {
		return err
	}
	if err := vm.Set("setOutput", func(s string) {
		bridge.output = s
		bridge.outputSet = true
	}); err != nil {
		return err
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "debug", "warn", "error"} {
		level := level
		if err := console.Set(level, func(call goja.FunctionCall) goja.Value {
			bridge.recordLog(level, call.Arguments)
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// recordLog coerces the variadic argument list to strings and space-joins
// them, then dispatches per LogMode: Drop is a no-op, Console forwards to
// the host logger, Capture appends to logs in call order.
func (b *hostBridge) recordLog(level string, args []goja.Value) {
	if b.logMode == LogDrop {
		return
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = coerceToString(a)
	}
	msg := strings.Join(parts, " ")

	switch b.logMode {
	case LogConsole:
		logWithLevel(b.logger, level, msg)
	case LogCapture:
		b.logs = append(b.logs, LogEntry{Level: level, Msg: msg})
	}
}

// coerceToString applies ECMAScript ToString semantics, which is all
// console.log-style argument coercion requires: goja's Value.String()
// already yields "undefined"/"null" for those values and delegates to
// toString() for objects and arrays.
func coerceToString(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	return v.String()
}

func logWithLevel(logger *logrus.Entry, level, msg string) {
	switch level {
	case "debug":
		logger.Debug(msg)
	case "info", "log":
		logger.Info(msg)
	case "warn":
		logger.Warn(msg)
	case "error":
		logger.Error(msg)
	default:
		logger.Info(msg)
	}
}
