package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agentx-labs/exthost/internal/transport"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// JSLauncher runs JavaScript bundles in a goja VM. The VM is owned by a
// single goroutine and exposes a Web Worker style surface:
//
//	self.onmessage = function (event) { postMessage(event.data); };
//	addEventListener("message", fn);
//	console.log(...);
//
// No filesystem, network or timer APIs are installed.
type JSLauncher struct {
	opts Options
}

// Launch compiles source and starts it on a new goroutine. Syntax errors are
// reported here; errors thrown by the top-level script stop the context and
// are available from Handle.Err.
func (l *JSLauncher) Launch(ctx context.Context, source string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prog, err := goja.Compile("bundle.js", source, false)
	if err != nil {
		return nil, fmt.Errorf("compiling bundle: %w", err)
	}

	pipe, ep := transport.NewPipe(l.opts.Buffer)
	h := newHandle(RuntimeJS, pipe, l.opts)

	w := &jsWorker{vm: goja.New(), ep: ep, logger: h.logger}
	if err := w.install(); err != nil {
		_ = pipe.Close()
		return nil, fmt.Errorf("preparing worker globals: %w", err)
	}
	h.stop = func() { w.vm.Interrupt("extension disposed") }

	go func() {
		defer close(ep.Out)
		h.exit(w.run(prog))
	}()
	return h, nil
}

type jsWorker struct {
	vm        *goja.Runtime
	ep        transport.Endpoint
	logger    *zap.Logger
	listeners []goja.Callable
}

func (w *jsWorker) install() error {
	vm := w.vm
	if err := vm.Set("self", vm.GlobalObject()); err != nil {
		return err
	}
	if err := vm.Set("postMessage", w.postMessage); err != nil {
		return err
	}
	if err := vm.Set("addEventListener", w.addEventListener); err != nil {
		return err
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, w.consoleFunc(level)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// run evaluates the program, then dispatches inbound messages until the host
// closes the transport.
func (w *jsWorker) run(prog *goja.Program) error {
	if _, err := w.vm.RunProgram(prog); err != nil {
		if isInterrupt(err) {
			return nil
		}
		return fmt.Errorf("running bundle: %w", err)
	}

	for msg := range w.ep.In {
		if err := w.dispatch(msg); err != nil {
			if isInterrupt(err) {
				return nil
			}
			// A throwing handler doesn't kill a worker.
			w.logger.Warn("extension message handler failed", zap.Error(err))
		}
	}
	return nil
}

func (w *jsWorker) dispatch(msg []byte) error {
	var data interface{}
	if err := json.Unmarshal(msg, &data); err != nil {
		data = string(msg)
	}
	event := w.vm.NewObject()
	if err := event.Set("data", data); err != nil {
		return err
	}
	if err := event.Set("type", "message"); err != nil {
		return err
	}

	handlers := w.listeners
	if fn, ok := goja.AssertFunction(w.vm.Get("onmessage")); ok {
		handlers = append([]goja.Callable{fn}, handlers...)
	}
	if len(handlers) == 0 {
		w.logger.Debug("extension has no message handler; dropping message")
		return nil
	}

	for _, fn := range handlers {
		if _, err := fn(goja.Undefined(), event); err != nil {
			return err
		}
	}
	return nil
}

func (w *jsWorker) postMessage(call goja.FunctionCall) goja.Value {
	data, err := json.Marshal(call.Argument(0).Export())
	if err != nil {
		panic(w.vm.NewTypeError("postMessage: message is not serializable: %v", err))
	}
	if !w.ep.Post(data) {
		w.logger.Debug("postMessage after transport closed")
	}
	return goja.Undefined()
}

func (w *jsWorker) addEventListener(call goja.FunctionCall) goja.Value {
	if call.Argument(0).String() != "message" {
		return goja.Undefined()
	}
	fn, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		panic(w.vm.NewTypeError("addEventListener: listener is not a function"))
	}
	w.listeners = append(w.listeners, fn)
	return goja.Undefined()
}

func (w *jsWorker) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		msg := strings.Join(parts, " ")
		switch level {
		case "warn":
			w.logger.Warn(msg, zap.String("source", "console"))
		case "error":
			w.logger.Error(msg, zap.String("source", "console"))
		case "debug":
			w.logger.Debug(msg, zap.String("source", "console"))
		default:
			w.logger.Info(msg, zap.String("source", "console"))
		}
		return goja.Undefined()
	}
}

func isInterrupt(err error) bool {
	var ie *goja.InterruptedError
	return errors.As(err, &ie)
}
