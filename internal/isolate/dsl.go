package isolate

import (
	"reflect"

	"github.com/traefik/yaegi/interp"

	"vela/internal/capture"
	"vela/internal/runtime"
	"vela/internal/testcase"
)

// dslExports builds the yaegi symbol table an interpreted script sees when
// it imports "vela/testcase" and "vela/console". This is this engine's
// equivalent of codenerd's allowedPackages whitelist: rather than trust a
// textual import scan, only the packages named here are ever resolvable
// inside the interpreter, so a script cannot reach anything the Isolator
// didn't explicitly hand it. cap is bound per execution, matching spec §3's
// requirement that a file's console only ever see that file's own writes.
func dslExports(cap *capture.Capture, userContext map[string]string) interp.Exports {
	if userContext == nil {
		userContext = map[string]string{}
	}
	return interp.Exports{
		"vela/testcase/testcase": map[string]reflect.Value{
			"New":            reflect.ValueOf(testcase.New),
			"DefaultOptions": reflect.ValueOf(testcase.DefaultOptions),
			"TestCase":       reflect.ValueOf((*testcase.TestCase)(nil)),
			"Options":        reflect.ValueOf(testcase.Options{}),
		},
		"vela/internal/runtime/runtime": map[string]reflect.Value{
			"ConstPredicate": reflect.ValueOf(runtime.ConstPredicate),
			"Predicate":      reflect.ValueOf((*runtime.Predicate)(nil)),
		},
		"vela/console/console": map[string]reflect.Value{
			"Log":     reflect.ValueOf(cap.Log),
			"Info":    reflect.ValueOf(cap.Info),
			"Warn":    reflect.ValueOf(cap.Warn),
			"Error":   reflect.ValueOf(cap.Error),
			"Debug":   reflect.ValueOf(cap.Debug),
			"Time":    reflect.ValueOf(cap.Time),
			"TimeEnd": reflect.ValueOf(cap.TimeEnd),
		},
		// vela/context exposes the config's "context" overrides (spec §3's
		// Context row) as a read-only map, the way the Pool hands each file
		// a fresh binding set that never leaks into another file's run.
		"vela/context/context": map[string]reflect.Value{
			"Vars": reflect.ValueOf(userContext),
		},
	}
}
