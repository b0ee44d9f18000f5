// Package sandbox implements the capability-restricted expression evaluator
// shared by the eval executor, function transitions, dynamic-agent/
// dynamic-command expression resolution, and template substitution (§4.3,
// §9). It is sealed against host-object access: only plain JSON helpers are
// exposed to scripts, and every run is bounded by a wall-clock timeout.
package sandbox

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/dop251/goja"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
)

// DefaultTimeout bounds a single script run when the caller supplies none.
const DefaultTimeout = 5 * time.Second

// Sandbox evaluates untrusted expression sources against a fresh goja VM per
// run. VMs are not reused across runs: each run starts from a clean,
// capability-restricted runtime so a script can never observe state left
// behind by a previous one.
type Sandbox struct {
	timeout time.Duration
}

// New constructs a Sandbox with the given wall-clock timeout. A non-positive
// timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Sandbox {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Sandbox{timeout: timeout}
}

// RunScript evaluates source as the body of a JavaScript function in a
// sealed goja VM, with bindings installed as global variables, and returns
// the exported value of its return statement (nil when it returns nothing).
// Op identifies the caller for error
// attribution (e.g. a node id). The VM is interrupted if it runs past the
// sandbox's timeout, surfacing a retryable apperrors.KindEvalError.
func (s *Sandbox) RunScript(ctx context.Context, op, source string, bindings map[string]any) (any, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	if err := registerHelpers(vm); err != nil {
		return nil, apperrors.Wrap(apperrors.KindEvalError, op, err)
	}
	for k, v := range bindings {
		if err := vm.Set(k, v); err != nil {
			return nil, apperrors.Wrap(apperrors.KindEvalError, op, err)
		}
	}

	done := make(chan struct{})
	timer := time.AfterFunc(s.timeout, func() {
		vm.Interrupt(fmt.Sprintf("%s: sandbox exceeded %s", op, s.timeout))
	})
	defer timer.Stop()

	var (
		val goja.Value
		err error
	)
	go func() {
		val, err = vm.RunString("(function(){" + source + "})()")
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		vm.Interrupt(fmt.Sprintf("%s: cancelled", op))
		<-done
		if err == nil {
			err = ctx.Err()
		}
	}

	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindEvalError, op, err)
	}
	return val.Export(), nil
}

// registerHelpers installs the small set of pure, host-object-free helpers
// available to every sandboxed script: jsonParse and jsonStringify. No
// network, filesystem, or process access is ever exposed, unlike a
// general-purpose scripting host.
func registerHelpers(vm *goja.Runtime) error {
	helpers := map[string]func(goja.FunctionCall) goja.Value{
		"jsonParse": func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				return goja.Null()
			}
			return vm.ToValue(jsonParseArg(vm, call.Arguments[0]))
		},
		"jsonStringify": func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				return vm.ToValue("")
			}
			return vm.ToValue(jsonStringifyArg(call.Arguments[0]))
		},
	}
	for name, fn := range helpers {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// ResolvePath evaluates a dotted context path (e.g. "user.name",
// "items[0].id") against ctxData using jsonpath. It returns (value, true,
// nil) when the path resolves, (nil, false, nil) when it does not (an
// unresolved path is not itself an error: callers such as PortUnresolved
// detection decide what that means), and a non-nil error only for a
// malformed path expression.
func ResolvePath(path string, ctxData map[string]any) (any, bool, error) {
	expr := normalizePath(path)
	v, err := jsonpath.Get(expr, map[string]any(ctxData))
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// normalizePath rewrites a bare dotted path ("user.name") into the "$."
// prefixed form jsonpath.Get expects, leaving already-prefixed expressions
// untouched.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "$") {
		return path
	}
	return "$." + path
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "unknown key")
}

// Truthy applies JavaScript-style truthiness coercion: false, 0, "", nil,
// NaN, and empty collections are falsy; everything else is truthy (§3's
// conditional transition contract).
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// Stringify renders a resolved switch value the way a JS template literal
// would, for case-key matching against the transition's string-keyed cases.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "undefined"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// RenderTemplate replaces every ${expr} placeholder in tpl with the
// stringified result of resolving expr as a dotted path against ctxData. An
// unresolved placeholder is a TemplateError (§4.3's Agent executor
// contract); a malformed path expression is also surfaced as one.
func RenderTemplate(op, tpl string, ctxData map[string]any) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(tpl) {
		start := strings.Index(tpl[i:], "${")
		if start < 0 {
			out.WriteString(tpl[i:])
			break
		}
		start += i
		out.WriteString(tpl[i:start])
		end := strings.Index(tpl[start:], "}")
		if end < 0 {
			return "", apperrors.Errorf(apperrors.KindTemplateError, op, "unterminated placeholder in template: %q", tpl[start:])
		}
		end += start
		expr := strings.TrimSpace(tpl[start+2 : end])
		val, ok, err := ResolvePath(expr, ctxData)
		if err != nil {
			return "", apperrors.Wrap(apperrors.KindTemplateError, op, err)
		}
		if !ok {
			return "", apperrors.Errorf(apperrors.KindTemplateError, op, "unresolved context variable %q", expr)
		}
		out.WriteString(Stringify(val))
		i = end + 1
	}
	return out.String(), nil
}

func jsonParseArg(vm *goja.Runtime, v goja.Value) any {
	var raw string
	switch exported := v.Export().(type) {
	case string:
		raw = exported
	case []byte:
		raw = string(exported)
	default:
		panic(vm.NewTypeError("jsonParse: expected string"))
	}
	var parsed any
	if err := decodeJSON(raw, &parsed); err != nil {
		panic(vm.NewTypeError("jsonParse: " + err.Error()))
	}
	return parsed
}

func jsonStringifyArg(v goja.Value) string {
	data, err := encodeJSON(v.Export())
	if err != nil {
		return ""
	}
	return string(data)
}
