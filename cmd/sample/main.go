// Command sample exposes a handful of plain functions over HTTP, on the
// command line and as local calls.
//
// Serve:
//
//	go run ./cmd/sample
//	go run ./cmd/sample --config sample.yaml
//
// Run a function as a command:
//
//	go run ./cmd/sample add 1 2
//	go run ./cmd/sample greet Ada --excited
//
// Then explore:
//
//	GET  http://localhost:8080/documentation            documentation
//	GET  http://localhost:8080/add?a=1&b=2              add two numbers
//	GET  http://localhost:8080/v1/greet?name=Ada        version 1 greeting
//	GET  http://localhost:8080/v2/greet?name=Ada        version 2 greeting
//	GET  http://localhost:8080/birthday?name=Ada&age=36 ranged input
//	POST http://localhost:8080/notes                    JSON, YAML, TOML or msgpack body
//	GET  http://localhost:8080/admin/stats              basic auth
//	GET  http://localhost:8080/metrics                  Prometheus metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/bjaus/expose"
	"github.com/bjaus/expose/auth"
	"github.com/bjaus/expose/types"
)

func main() {
	flags := pflag.NewFlagSet("sample", pflag.ExitOnError)
	flags.SetInterspersed(false)
	configFlag := flags.StringP("config", "c", "", "Path to a config file (yaml, toml or json)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Server.level()}))
	slog.SetDefault(logger)

	reg := newRegistry(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if args := flags.Args(); len(args) > 0 {
		if err := reg.RunCLI(ctx, args, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	slog.Info("starting server", "addr", cfg.Server.Addr, "docs", "/documentation")

	if err := reg.ListenAndServe(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "err", err)
	}

	slog.Info("server stopped")
}

func newRegistry(cfg *Config, logger *slog.Logger) *expose.Registry {
	reg := expose.New(
		expose.WithName("sample"),
		expose.WithLogger(logger),
		expose.WithOutput(expose.Negotiate(expose.JSON, expose.YAML, expose.MsgPack, expose.Text)),
	)

	reg.Use(expose.Recovery(logger))
	reg.Use(expose.RequestID())
	reg.Use(expose.Logger(logger))
	reg.Use(expose.Metrics(expose.MetricsConfig{Namespace: "sample"}))
	reg.Use(expose.Secure(), expose.Compress())

	reg.ServeDocumentation("/documentation")
	reg.Handle("GET /metrics", expose.MetricsHandler(nil))

	limited := expose.Requires(expose.RateLimit(expose.RateLimitConfig{
		Rate:  cfg.Server.RateLimit,
		Burst: int(cfg.Server.RateLimit) + 1,
	}))

	reg.Expose("/add", expose.Introspect("add", add), expose.Examples("a=1&b=2"))
	reg.Expose("/echo", echo, expose.Examples("text=hello"))

	reg.Get("/greet", expose.Introspect("greet", greetV1), expose.Versions(expose.Version(1)))
	reg.Get("/greet", expose.Introspect("greet", greetV2), expose.Versions(expose.VersionRange(2, 4)))
	reg.CLI(expose.Introspect("greet", greetV2))

	reg.Get("/birthday", birthday, limited, expose.Examples("name=Ada&age=36"))
	reg.Get("/timed", expose.Introspect("timed", timed))

	reg.Post("/notes", expose.Introspect("add_note", addNote), expose.Status(http.StatusCreated))
	reg.Get("/notes/{id}", expose.Introspect("get_note", getNote))
	reg.Get("/notes", expose.Introspect("list_notes", listNotes),
		expose.Cache(30*time.Second, false),
		expose.AllowOrigins("*"),
	)

	admin := reg.Group("admin", expose.Requires(
		auth.Basic(auth.VerifyUser(cfg.Auth.AdminUser, cfg.Auth.AdminPassword), "sample"),
	))
	admin.Get("/admin/stats", expose.Introspect("stats", stats))

	if cfg.Auth.JWTSecret != "" {
		reg.Get("/me", expose.Introspect("me", me), expose.Requires(auth.JWT([]byte(cfg.Auth.JWTSecret))))
	}

	expose.OnError[*noteError](reg, handleNoteError)
	reg.NotFound(notFound)

	return reg
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

type addArgs struct {
	A int `doc:"First number"`
	B int `doc:"Second number"`
}

func add(_ context.Context, in addArgs) (int, error) {
	return in.A + in.B, nil
}

var echo = &expose.Function{
	Name: "echo",
	Doc:  "Returns text unchanged.",
	Params: []expose.Param{
		{Name: "text", Type: types.Text, Doc: "Text to echo"},
	},
	Call: func(_ context.Context, args expose.Args) (any, error) {
		return args["text"], nil
	},
}

type greetArgs struct {
	Name    string `doc:"Who to greet"`
	Excited bool   `default:"false" doc:"Add an exclamation mark"`
}

func greetV1(_ context.Context, in greetArgs) (string, error) {
	return "Hello " + in.Name, nil
}

func greetV2(_ context.Context, in greetArgs) (map[string]string, error) {
	greeting := "Hello, " + in.Name
	if in.Excited {
		greeting += "!"
	}
	return map[string]string{"greeting": greeting}, nil
}

var birthday = &expose.Function{
	Name: "happy_birthday",
	Doc:  "Says happy birthday to a user.",
	Params: []expose.Param{
		{Name: "name", Type: types.Text},
		{Name: "age", Type: types.Accept(types.InRange(0, 150), "An age between 0 and 149")},
	},
	Call: func(_ context.Context, args expose.Args) (any, error) {
		return fmt.Sprintf("Happy %v Birthday %v!", args["age"], args["name"]), nil
	},
}

type timedArgs struct {
	Timer *expose.Timer `directive:"ctx_timer" default:"2"`
	Delay time.Duration `default:"10ms" type:"text"`
}

func timed(ctx context.Context, in timedArgs) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(in.Delay):
	}
	return map[string]any{"taken": in.Timer}, nil
}

// ---------------------------------------------------------------------------
// Notes
// ---------------------------------------------------------------------------

// Note is a stored note.
type Note struct {
	ID      int       `json:"id"`
	Title   string    `json:"title"`
	Tags    []string  `json:"tags,omitempty"`
	Created time.Time `json:"created"`
}

type noteError struct {
	id int
}

func (e *noteError) Error() string { return fmt.Sprintf("note %d does not exist", e.id) }

var notes = &noteStore{notes: map[int]Note{}, nextID: 1}

type noteStore struct {
	mu     sync.RWMutex
	notes  map[int]Note
	nextID int
}

type addNoteArgs struct {
	Title string `doc:"Note title"`
	Tags  string `default:"" doc:"Comma separated tags"`
}

func addNote(_ context.Context, in addNoteArgs) (Note, error) {
	notes.mu.Lock()
	defer notes.mu.Unlock()
	n := Note{ID: notes.nextID, Title: strings.TrimSpace(in.Title), Created: time.Now()}
	for tag := range strings.SplitSeq(in.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			n.Tags = append(n.Tags, tag)
		}
	}
	notes.notes[n.ID] = n
	notes.nextID++
	return n, nil
}

type getNoteArgs struct {
	ID int `doc:"Note ID"`
}

func getNote(_ context.Context, in getNoteArgs) (Note, error) {
	notes.mu.RLock()
	defer notes.mu.RUnlock()
	n, ok := notes.notes[in.ID]
	if !ok {
		return Note{}, &noteError{id: in.ID}
	}
	return n, nil
}

type listNotesArgs struct {
	Tag string `default:"" doc:"Only notes with this tag"`
}

func listNotes(_ context.Context, in listNotesArgs) ([]Note, error) {
	notes.mu.RLock()
	defer notes.mu.RUnlock()
	out := make([]Note, 0, len(notes.notes))
	for _, n := range notes.notes {
		if in.Tag != "" && !slices.Contains(n.Tags, in.Tag) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

var handleNoteError = &expose.Function{
	Name:   "note_error",
	Params: []expose.Param{{Name: "exception"}, {Name: "response"}},
	Call: func(_ context.Context, args expose.Args) (any, error) {
		res := args["response"].(*expose.Response) //nolint:errcheck,forcetypeassert // pseudo-parameter
		res.Status = http.StatusNotFound
		return map[string]string{"error": args["exception"].(error).Error()}, nil //nolint:forcetypeassert // handler seed
	},
}

var notFound = &expose.Function{
	Name: "not_found",
	Call: func(context.Context, expose.Args) (any, error) {
		return map[string]string{"error": "nothing here"}, nil
	},
}

// ---------------------------------------------------------------------------
// Authenticated
// ---------------------------------------------------------------------------

type statsArgs struct {
	User any `directive:"ctx_user"`
}

func stats(_ context.Context, in statsArgs) (map[string]any, error) {
	notes.mu.RLock()
	defer notes.mu.RUnlock()
	return map[string]any{"user": in.User, "notes": len(notes.notes)}, nil
}

type meArgs struct {
	User any `directive:"ctx_user"`
}

func me(_ context.Context, in meArgs) (any, error) {
	return in.User, nil
}
