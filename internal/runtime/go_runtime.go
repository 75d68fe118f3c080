package runtime

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/agentx-labs/exthost/internal/transport"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"
)

// DefaultAllowedPackages is the import allowlist for Go bundles. Nothing
// that reaches the filesystem, network, processes or unsafe memory is listed.
var DefaultAllowedPackages = []string{
	"bytes",
	"encoding/json",
	"errors",
	"fmt",
	"math",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
	"unicode/utf8",
}

// EntryPoint is the function every Go bundle must define in package main.
const EntryPoint = "main.Main"

// GoLauncher runs Go bundles in a yaegi interpreter. A bundle looks like:
//
//	package main
//
//	func Main(in <-chan []byte, out chan<- []byte) {
//		for msg := range in {
//			out <- msg
//		}
//	}
//
// Main must return once in is closed; an interpreted goroutine can't be
// preempted, so a bundle that ignores in makes Dispose time out. Bundle code
// runs only on the Main goroutine: go statements and time.AfterFunc are
// rejected at launch.
type GoLauncher struct {
	opts Options
}

// Launch checks imports against the allowlist, evaluates source and starts
// Main on a new goroutine.
func (l *GoLauncher) Launch(ctx context.Context, source string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkSource(source, l.opts.AllowedPackages); err != nil {
		return nil, err
	}

	logger := l.opts.Logger
	out := zap.NewStdLog(logger.With(zap.String("source", "stdout"))).Writer()
	i := interp.New(interp.Options{Stdout: out, Stderr: out})
	if err := i.Use(allowedSymbols(l.opts.AllowedPackages)); err != nil {
		return nil, fmt.Errorf("loading symbols: %w", err)
	}
	if _, err := i.EvalWithContext(ctx, source); err != nil {
		return nil, fmt.Errorf("evaluating bundle: %w", err)
	}

	v, err := i.Eval(EntryPoint)
	if err != nil {
		return nil, fmt.Errorf("bundle has no %s: %w", EntryPoint, err)
	}
	entry, ok := v.Interface().(func(<-chan []byte, chan<- []byte))
	if !ok {
		return nil, fmt.Errorf("%s has type %s, want func(<-chan []byte, chan<- []byte)", EntryPoint, v.Type())
	}

	pipe, ep := transport.NewPipe(l.opts.Buffer)
	h := newHandle(RuntimeGo, pipe, l.opts)

	go func() {
		defer close(ep.Out)
		h.exit(runGoBundle(entry, ep))
	}()
	return h, nil
}

// runGoBundle calls entry with its own outbound channel so writes after the
// host has gone away are dropped instead of blocking the bundle. The
// forwarder drains out until Main returns; out itself is never closed, since
// a send on a closed channel from interpreted code can't be recovered here.
func runGoBundle(entry func(<-chan []byte, chan<- []byte), ep transport.Endpoint) (err error) {
	out := make(chan []byte)
	returned := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		src := out
		for {
			select {
			case msg, ok := <-src:
				if !ok {
					// The bundle closed out itself.
					src = nil
					continue
				}
				ep.Post(msg)
			case <-returned:
				return
			}
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bundle panicked: %v", r)
		}
		close(returned)
		wg.Wait()
	}()

	entry(ep.In, out)
	return nil
}

// checkSource rejects bundles that are not package main, import packages
// outside allowed, or run code off the Main goroutine. A panic on any other
// goroutine would take the host down with it, so go statements and
// time.AfterFunc are refused.
func checkSource(source string, allowed []string) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "bundle.go", source, parser.SkipObjectResolution)
	if err != nil {
		return fmt.Errorf("parsing bundle: %w", err)
	}
	if f.Name.Name != "main" {
		return fmt.Errorf("bundle must be package main, got %q", f.Name.Name)
	}

	ok := make(map[string]bool, len(allowed))
	for _, p := range allowed {
		ok[p] = true
	}
	timeName := ""
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("parsing import %s: %w", imp.Path.Value, err)
		}
		if !ok[path] {
			return fmt.Errorf("import %q is not allowed in extension bundles", path)
		}
		if path == "time" {
			timeName = "time"
			if imp.Name != nil {
				timeName = imp.Name.Name
			}
		}
	}

	var found error
	ast.Inspect(f, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		switch n := n.(type) {
		case *ast.GoStmt:
			found = fmt.Errorf("go statements are not allowed in extension bundles (line %d)", fset.Position(n.Pos()).Line)
		case *ast.SelectorExpr:
			if x, isIdent := n.X.(*ast.Ident); isIdent && timeName != "" && x.Name == timeName && n.Sel.Name == "AfterFunc" {
				found = fmt.Errorf("time.AfterFunc is not allowed in extension bundles (line %d)", fset.Position(n.Pos()).Line)
			}
		}
		return true
	})
	return found
}

// allowedSymbols filters the yaegi stdlib exports down to the allowlist.
// Export keys are "importpath/pkgname".
func allowedSymbols(allowed []string) interp.Exports {
	ok := make(map[string]bool, len(allowed))
	for _, p := range allowed {
		ok[p] = true
	}
	exports := make(interp.Exports)
	for key, syms := range stdlib.Symbols {
		idx := strings.LastIndex(key, "/")
		if idx < 0 || !ok[key[:idx]] {
			continue
		}
		exports[key] = make(map[string]reflect.Value, len(syms))
		for name, sym := range syms {
			exports[key][name] = sym
		}
	}
	return exports
}
