// Package runtimetest provides test doubles for the runtime package.
package runtimetest

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/icryo/backplane-tui/internal/errors"
	"github.com/icryo/backplane-tui/internal/runtime"
)

// Call records one adapter invocation for assertions.
type Call struct {
	Op string
	ID string
}

// FakeClient simulates a container runtime for testing. All fields are safe
// to configure before use; mutating state mid-test requires holding no other
// goroutine references, or using the provided mutators.
type FakeClient struct {
	mu sync.Mutex

	// Containers is the inventory returned by ListContainers.
	Containers []runtime.Container

	// Stats maps container id to the sample returned by ContainerStats.
	Stats map[string]runtime.StatsSample

	// StatsErr maps container id to an error returned instead of a sample.
	StatsErr map[string]error

	// ListErr, when set, makes ListContainers fail (daemon unreachable).
	ListErr error

	// LogStreams maps container id to the lines served by StreamLogs.
	LogStreams map[string][]string

	// LogFollowHang keeps follow streams open after serving lines until the
	// stream is closed, mimicking a live container.
	LogFollowHang bool

	// Shells is the set of shell paths that exec successfully.
	Shells map[string]bool

	// ExecErr, when set, makes every ExecCreate fail.
	ExecErr error

	// CommandErr, when set, makes lifecycle commands fail.
	CommandErr error

	// Images returned by ListImages.
	Images []string

	// Processes returned by Top for any container.
	Processes runtime.ProcessList

	// Calls records every invocation in order.
	Calls []Call

	closed bool
}

var _ runtime.API = (*FakeClient)(nil)

// NewFakeClient returns a fake with empty but usable state.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Stats:      make(map[string]runtime.StatsSample),
		StatsErr:   make(map[string]error),
		LogStreams: make(map[string][]string),
		Shells:     make(map[string]bool),
	}
}

func (f *FakeClient) record(op, id string) {
	f.Calls = append(f.Calls, Call{Op: op, ID: id})
}

// CallsFor returns the ops recorded against one container id.
func (f *FakeClient) CallsFor(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ops []string
	for _, c := range f.Calls {
		if c.ID == id {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// SetContainers replaces the inventory under lock.
func (f *FakeClient) SetContainers(cs []runtime.Container) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Containers = append([]runtime.Container(nil), cs...)
}

// Ping fails when ListErr is set.
func (f *FakeClient) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ListErr
}

// ListContainers returns the configured inventory sorted by name.
func (f *FakeClient) ListContainers(ctx context.Context) ([]runtime.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list", "")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := append([]runtime.Container(nil), f.Containers...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ContainerStats returns the configured sample or error for the container.
func (f *FakeClient) ContainerStats(ctx context.Context, id string) (runtime.StatsSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stats", id)
	if err, ok := f.StatsErr[id]; ok {
		return runtime.StatsSample{}, err
	}
	if s, ok := f.Stats[id]; ok {
		return s, nil
	}
	return runtime.StatsSample{ContainerID: id, Time: time.Now()}, nil
}

// fakeStream serves fixed lines, optionally staying open afterwards.
type fakeStream struct {
	reader io.Reader
	hang   chan struct{}
	once   sync.Once
}

func (s *fakeStream) Read(p []byte) (int, error) {
	n, err := s.reader.Read(p)
	if err == io.EOF && s.hang != nil {
		// Lines exhausted but the stream stays open until closed.
		<-s.hang
		return 0, io.EOF
	}
	return n, err
}

func (s *fakeStream) Close() error {
	if s.hang != nil {
		s.once.Do(func() { close(s.hang) })
	}
	return nil
}

// StreamLogs serves the configured lines for the container.
func (f *FakeClient) StreamLogs(ctx context.Context, id string, tail int, follow bool) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("logs", id)
	lines, ok := f.LogStreams[id]
	if !ok {
		return nil, errors.New(errors.ErrContainer, "no such container", "")
	}
	body := ""
	if len(lines) > 0 {
		body = strings.Join(lines, "\n") + "\n"
	}
	s := &fakeStream{reader: strings.NewReader(body)}
	if follow && f.LogFollowHang {
		s.hang = make(chan struct{})
	}
	return s, nil
}

// FakePty is the Pty returned by ExecCreate. Writes accumulate in Input;
// Output is served to readers until the session is closed.
type FakePty struct {
	mu      sync.Mutex
	Shell   string
	Input   []byte
	output  chan []byte
	Resizes [][2]uint16
	Closed  bool
	once    sync.Once
}

// Emit queues bytes for the session's reader, simulating remote output.
func (p *FakePty) Emit(b []byte) {
	p.output <- b
}

func (p *FakePty) Read(buf []byte) (int, error) {
	chunk, ok := <-p.output
	if !ok {
		return 0, io.EOF
	}
	return copy(buf, chunk), nil
}

func (p *FakePty) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Input = append(p.Input, buf...)
	return len(buf), nil
}

func (p *FakePty) Resize(ctx context.Context, width, height uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Resizes = append(p.Resizes, [2]uint16{width, height})
	return nil
}

func (p *FakePty) Close() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.Closed = true
		p.mu.Unlock()
		close(p.output)
	})
	return nil
}

// ExecCreate succeeds for shells present in the Shells set.
func (f *FakeClient) ExecCreate(ctx context.Context, id, shell string, width, height uint16) (runtime.Pty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("exec", id)
	if f.ExecErr != nil {
		return nil, f.ExecErr
	}
	if !f.Shells[shell] {
		return nil, errors.New(errors.ErrExec, "shell not found: "+shell, "")
	}
	return &FakePty{Shell: shell, output: make(chan []byte, 16)}, nil
}

func (f *FakeClient) command(op, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(op, id)
	return f.CommandErr
}

func (f *FakeClient) StartContainer(ctx context.Context, id string) error {
	return f.command("start", id)
}

func (f *FakeClient) StopContainer(ctx context.Context, id string) error {
	return f.command("stop", id)
}

func (f *FakeClient) RestartContainer(ctx context.Context, id string) error {
	return f.command("restart", id)
}

func (f *FakeClient) RemoveContainer(ctx context.Context, id string) error {
	return f.command("remove", id)
}

func (f *FakeClient) PauseContainer(ctx context.Context, id string) error {
	return f.command("pause", id)
}

func (f *FakeClient) UnpauseContainer(ctx context.Context, id string) error {
	return f.command("unpause", id)
}

func (f *FakeClient) RenameContainer(ctx context.Context, id, name string) error {
	return f.command("rename", id)
}

// CreateContainer records the call and returns a synthetic id.
func (f *FakeClient) CreateContainer(ctx context.Context, spec runtime.CreateSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create", spec.Name)
	if f.CommandErr != nil {
		return "", f.CommandErr
	}
	return "created-" + spec.Name, nil
}

func (f *FakeClient) ListImages(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("images", "")
	return append([]string(nil), f.Images...), nil
}

func (f *FakeClient) Top(ctx context.Context, id string) (runtime.ProcessList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("top", id)
	if f.CommandErr != nil {
		return runtime.ProcessList{}, f.CommandErr
	}
	if len(f.Processes.Titles) > 0 {
		return f.Processes, nil
	}
	return runtime.ProcessList{Titles: []string{"PID", "CMD"}}, nil
}

// IsNotFound matches errors whose message mentions a missing container.
func (f *FakeClient) IsNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such container")
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
