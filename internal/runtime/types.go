package runtime

import (
	"context"
	"io"
	"time"
)

// Container is a point-in-time summary of one container from an inventory
// listing. The ID is the stable identity across refresh cycles.
type Container struct {
	ID      string
	Name    string
	Image   string
	State   string // running, exited, paused, created, restarting, removing, dead
	Status  string // human-readable, e.g. "Up 3 minutes"
	Ports   []PortMapping
	Labels  map[string]string
	Created time.Time
}

// Running reports whether the container is in the running state.
func (c Container) Running() bool {
	return c.State == "running"
}

// Active reports whether the container is running or paused. Paused
// containers still hold resources, so stats remain meaningful for them.
func (c Container) Active() bool {
	return c.State == "running" || c.State == "paused"
}

// PortMapping describes one published or exposed port.
type PortMapping struct {
	HostPort      uint16 // 0 when the port is exposed but not published
	ContainerPort uint16
	Protocol      string
}

// StatsSample is a point-in-time resource usage snapshot for one container.
// RxBytes/TxBytes are monotonic counters; rates are derived downstream by
// differencing consecutive samples.
type StatsSample struct {
	ContainerID string
	Time        time.Time
	CPUPercent  float64
	MemoryUsed  uint64
	MemoryLimit uint64
	RxBytes     uint64
	TxBytes     uint64
}

// MemoryPercent returns memory usage as a percentage of the limit.
func (s StatsSample) MemoryPercent() float64 {
	if s.MemoryLimit == 0 {
		return 0
	}
	return float64(s.MemoryUsed) / float64(s.MemoryLimit) * 100
}

// CreateSpec describes a container to create and start.
type CreateSpec struct {
	Name          string
	Image         string
	HostPort      uint16
	ContainerPort uint16
	Env           []string
	Volumes       []string // bind specs, e.g. /host:/container
	Command       []string
}

// ProcessList is the output of a container top call: column titles plus one
// row per process.
type ProcessList struct {
	Titles    []string
	Processes [][]string
}

// Pty is an attached interactive exec session. Reads return raw terminal
// output; writes forward raw keystrokes. Close releases the underlying
// connection; after Close, reads return io.EOF.
type Pty interface {
	io.Reader
	io.Writer
	// Resize propagates a terminal size change to the remote pseudo-terminal.
	Resize(ctx context.Context, width, height uint16) error
	Close() error
}

// API is the surface of the container runtime the engine consumes. Every
// call may fail independently with a daemon-unreachable or not-found error;
// callers never assume a prior success implies a later one will succeed.
type API interface {
	// Ping checks daemon reachability.
	Ping(ctx context.Context) error

	// ListContainers returns all containers, running or not, sorted by name.
	ListContainers(ctx context.Context) ([]Container, error)

	// ContainerStats returns a one-shot usage snapshot for one container.
	ContainerStats(ctx context.Context, id string) (StatsSample, error)

	// StreamLogs returns a demultiplexed plain-text log stream. With
	// follow=true the stream stays open until the context is cancelled, the
	// returned reader is closed, or the container stops.
	StreamLogs(ctx context.Context, id string, tail int, follow bool) (io.ReadCloser, error)

	// ExecCreate starts an interactive shell in the container and attaches a
	// pseudo-terminal of the given size. It fails if the shell path does not
	// exist or exits immediately.
	ExecCreate(ctx context.Context, id, shell string, width, height uint16) (Pty, error)

	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	RestartContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	PauseContainer(ctx context.Context, id string) error
	UnpauseContainer(ctx context.Context, id string) error
	RenameContainer(ctx context.Context, id, name string) error

	// CreateContainer creates and starts a container, returning its id.
	CreateContainer(ctx context.Context, spec CreateSpec) (string, error)

	// ListImages returns locally available image tags, sorted.
	ListImages(ctx context.Context) ([]string, error)

	// Top lists the processes running inside a container.
	Top(ctx context.Context, id string) (ProcessList, error)

	// IsNotFound reports whether err means the referenced container is gone,
	// as opposed to the daemon being unreachable.
	IsNotFound(err error) bool

	Close() error
}
