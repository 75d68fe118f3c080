package runtime

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const jsEcho = `
self.onmessage = function (event) {
	postMessage({echo: event.data});
};
`

const goEcho = `package main

import "strings"

func Main(in <-chan []byte, out chan<- []byte) {
	for msg := range in {
		out <- []byte(strings.ToUpper(string(msg)))
	}
}
`

func roundTrip(t *testing.T, h *Handle, msg string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, h.Transport().Send(ctx, []byte(msg)))
	got, err := h.Transport().Receive(ctx)
	require.NoError(t, err)
	return string(got)
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		runtime string
		want    Launcher
	}{
		{RuntimeJS, &JSLauncher{}},
		{RuntimeGo, &GoLauncher{}},
		{"python", &unknownLauncher{}},
		{"", &unknownLauncher{}},
	}
	for _, tt := range tests {
		t.Run(tt.runtime, func(t *testing.T) {
			assert.IsType(t, tt.want, Dispatch(tt.runtime, Options{}))
		})
	}
}

func TestUnknownLauncher(t *testing.T) {
	h, err := Dispatch("wasm", Options{}).Launch(context.Background(), "x")
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrUnknownRuntime)
	assert.Contains(t, err.Error(), `"wasm"`)
}

func TestJSLauncher_Echo(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, err := Dispatch(RuntimeJS, Options{}).Launch(context.Background(), jsEcho)
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, RuntimeJS, h.Runtime)

	assert.JSONEq(t, `{"echo":{"n":1}}`, roundTrip(t, h, `{"n":1}`))
	assert.JSONEq(t, `{"echo":"hi"}`, roundTrip(t, h, `"hi"`))

	require.NoError(t, h.Dispose())
	require.NoError(t, h.Dispose())
	<-h.Done()
	assert.NoError(t, h.Err())
}

func TestJSLauncher_AddEventListener(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := `addEventListener("message", function (e) { postMessage(e.data * 2); });`
	h, err := Dispatch(RuntimeJS, Options{}).Launch(context.Background(), src)
	require.NoError(t, err)
	defer h.Dispose()

	assert.Equal(t, "42", roundTrip(t, h, `21`))
}

func TestJSLauncher_HandlerErrorKeepsWorker(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := `
self.onmessage = function (e) {
	if (e.data === "boom") { throw new Error("boom"); }
	postMessage(e.data);
};`
	h, err := Dispatch(RuntimeJS, Options{}).Launch(context.Background(), src)
	require.NoError(t, err)
	defer h.Dispose()

	require.NoError(t, h.Transport().Send(context.Background(), []byte(`"boom"`)))
	assert.Equal(t, `"ok"`, roundTrip(t, h, `"ok"`))
}

func TestJSLauncher_SyntaxError(t *testing.T) {
	h, err := Dispatch(RuntimeJS, Options{}).Launch(context.Background(), "function (")
	assert.Nil(t, h)
	assert.ErrorContains(t, err, "compiling bundle")
}

func TestJSLauncher_TopLevelThrow(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, err := Dispatch(RuntimeJS, Options{}).Launch(context.Background(), `throw new Error("nope");`)
	require.NoError(t, err)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
	assert.ErrorContains(t, h.Err(), "nope")

	_, err = h.Transport().Receive(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, h.Dispose())
}

func TestJSLauncher_DisposeInterruptsBusyLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, err := Dispatch(RuntimeJS, Options{ShutdownTimeout: 5 * time.Second}).
		Launch(context.Background(), `for (;;) {}`)
	require.NoError(t, err)

	assert.NoError(t, h.Dispose())
	<-h.Done()
}

func TestJSLauncher_NoHostAPIs(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := `
self.onmessage = function () {
	postMessage([typeof require, typeof fetch, typeof XMLHttpRequest, typeof process]);
};`
	h, err := Dispatch(RuntimeJS, Options{}).Launch(context.Background(), src)
	require.NoError(t, err)
	defer h.Dispose()

	assert.JSONEq(t, `["undefined","undefined","undefined","undefined"]`, roundTrip(t, h, `null`))
}

func TestJSLauncher_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Dispatch(RuntimeJS, Options{}).Launch(ctx, jsEcho)
	assert.ErrorIs(t, err, context.Canceled)
}

// yaegi keeps background goroutines alive, so the Go runtime tests skip
// goleak.

func TestGoLauncher_Echo(t *testing.T) {
	h, err := Dispatch(RuntimeGo, Options{}).Launch(context.Background(), goEcho)
	require.NoError(t, err)

	assert.Equal(t, `"HELLO"`, roundTrip(t, h, `"hello"`))

	require.NoError(t, h.Dispose())
	<-h.Done()
	assert.NoError(t, h.Err())
}

func TestGoLauncher_ForbiddenImport(t *testing.T) {
	for _, pkg := range []string{"os", "net/http", "os/exec", "unsafe", "syscall"} {
		t.Run(pkg, func(t *testing.T) {
			src := "package main\n\nimport _ \"" + pkg + "\"\n\nfunc Main(in <-chan []byte, out chan<- []byte) {}\n"
			h, err := Dispatch(RuntimeGo, Options{}).Launch(context.Background(), src)
			assert.Nil(t, h)
			assert.ErrorContains(t, err, "is not allowed")
		})
	}
}

func TestGoLauncher_MissingEntryPoint(t *testing.T) {
	h, err := Dispatch(RuntimeGo, Options{}).Launch(context.Background(), "package main\n\nfunc Other() {}\n")
	assert.Nil(t, h)
	assert.Error(t, err)
}

func TestGoLauncher_WrongPackage(t *testing.T) {
	_, err := Dispatch(RuntimeGo, Options{}).Launch(context.Background(), "package ext\n")
	assert.ErrorContains(t, err, "package main")
}

func TestGoLauncher_Panic(t *testing.T) {
	src := `package main

func Main(in <-chan []byte, out chan<- []byte) {
	<-in
	panic("bad bundle")
}
`
	h, err := Dispatch(RuntimeGo, Options{}).Launch(context.Background(), src)
	require.NoError(t, err)
	defer h.Dispose()

	require.NoError(t, h.Transport().Send(context.Background(), []byte(`1`)))
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
	assert.ErrorContains(t, h.Err(), "bad bundle")
}

func TestGoLauncher_ShutdownTimeout(t *testing.T) {
	src := `package main

import "time"

func Main(in <-chan []byte, out chan<- []byte) {
	time.Sleep(time.Second)
}
`
	h, err := Dispatch(RuntimeGo, Options{ShutdownTimeout: 20 * time.Millisecond}).
		Launch(context.Background(), src)
	require.NoError(t, err)

	assert.ErrorIs(t, h.Dispose(), ErrShutdownTimeout)
	assert.ErrorIs(t, h.Dispose(), ErrShutdownTimeout)
}

// A bundle can only run code on its Main goroutine; anything else could panic
// outside the launcher's recover and take the host down.
func TestGoLauncher_RejectsBackgroundWork(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "late send after Main returns",
			src: `package main

import "time"

func Main(in <-chan []byte, out chan<- []byte) {
	go func() {
		time.Sleep(50 * time.Millisecond)
		out <- []byte("late")
	}()
}
`,
			want: "go statements are not allowed",
		},
		{
			name: "panic in goroutine",
			src: `package main

func Main(in <-chan []byte, out chan<- []byte) {
	go func() { panic("boom in goroutine") }()
	for range in {
	}
}
`,
			want: "go statements are not allowed",
		},
		{
			name: "go statement in helper",
			src: `package main

func spawn(f func()) { go f() }

func Main(in <-chan []byte, out chan<- []byte) {}
`,
			want: "line 3",
		},
		{
			name: "time.AfterFunc",
			src: `package main

import "time"

func Main(in <-chan []byte, out chan<- []byte) {
	time.AfterFunc(time.Millisecond, func() { panic("timer") })
}
`,
			want: "time.AfterFunc is not allowed",
		},
		{
			name: "aliased time.AfterFunc",
			src: `package main

import clock "time"

func Main(in <-chan []byte, out chan<- []byte) {
	clock.AfterFunc(clock.Millisecond, func() {})
}
`,
			want: "time.AfterFunc is not allowed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Dispatch(RuntimeGo, Options{}).Launch(context.Background(), tt.src)
			assert.Nil(t, h)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestGoLauncher_MainReturnsEarly(t *testing.T) {
	src := `package main

func Main(in <-chan []byte, out chan<- []byte) {
	msg := <-in
	out <- msg
}
`
	h, err := Dispatch(RuntimeGo, Options{}).Launch(context.Background(), src)
	require.NoError(t, err)
	defer h.Dispose()

	assert.Equal(t, `"once"`, roundTrip(t, h, `"once"`))

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
	assert.NoError(t, h.Err())

	_, err = h.Transport().Receive(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestGoLauncher_DisposeWhileBundleSends(t *testing.T) {
	src := `package main

func Main(in <-chan []byte, out chan<- []byte) {
	for msg := range in {
		for i := 0; i < 100; i++ {
			out <- msg
		}
	}
}
`
	h, err := Dispatch(RuntimeGo, Options{Buffer: 1}).Launch(context.Background(), src)
	require.NoError(t, err)

	require.NoError(t, h.Transport().Send(context.Background(), []byte(`1`)))
	assert.NoError(t, h.Dispose())
	assert.NoError(t, h.Err())
}

func TestGoLauncher_BundleClosesOut(t *testing.T) {
	src := `package main

func Main(in <-chan []byte, out chan<- []byte) {
	close(out)
	for range in {
	}
}
`
	h, err := Dispatch(RuntimeGo, Options{}).Launch(context.Background(), src)
	require.NoError(t, err)

	assert.NoError(t, h.Dispose())
	assert.NoError(t, h.Err())
}
