// Package runtime adapts the Docker Engine API to the narrow surface the
// sync engine consumes. It owns no state beyond the SDK client; all calls
// are independently failable.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/icryo/backplane-tui/internal/errors"
	"github.com/icryo/backplane-tui/internal/logger"
)

// stopTimeoutSeconds is passed to the daemon for stop and restart so
// containers get a consistent grace period before SIGKILL.
const stopTimeoutSeconds = 10

// Client implements API against a local Docker daemon.
type Client struct {
	cli *client.Client
	log logger.Logger
}

var _ API = (*Client)(nil)

// NewClient connects to the Docker daemon. An empty host uses the
// environment (DOCKER_HOST) or the platform default socket.
func NewClient(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrDaemon,
			"Failed to create runtime client",
			"Check that DOCKER_HOST (if set) is a valid endpoint")
	}
	return &Client{cli: cli, log: logger.NewEnvLogger("[runtime]")}, nil
}

// Ping checks daemon reachability.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.cli.Ping(ctx); err != nil {
		return errors.WrapWithCode(err, errors.ErrDaemon,
			"Container daemon unreachable",
			"Check the daemon is running and the socket is accessible")
	}
	return nil
}

// ListContainers returns all containers, running or not, sorted by name.
func (c *Client) ListContainers(ctx context.Context) ([]Container, error) {
	list, err := c.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrDaemon,
			"Failed to list containers",
			"Check the daemon is running and the socket is accessible")
	}

	result := make([]Container, 0, len(list))
	for _, item := range list {
		name := ""
		if len(item.Names) > 0 {
			name = strings.TrimPrefix(item.Names[0], "/")
		}

		ports := make([]PortMapping, 0, len(item.Ports))
		for _, p := range item.Ports {
			ports = append(ports, PortMapping{
				HostPort:      p.PublicPort,
				ContainerPort: p.PrivatePort,
				Protocol:      p.Type,
			})
		}

		result = append(result, Container{
			ID:      item.ID,
			Name:    name,
			Image:   item.Image,
			State:   item.State,
			Status:  item.Status,
			Ports:   ports,
			Labels:  item.Labels,
			Created: time.Unix(item.Created, 0),
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ContainerStats returns a one-shot usage snapshot for one container.
func (c *Client) ContainerStats(ctx context.Context, id string) (StatsSample, error) {
	resp, err := c.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return StatsSample{}, errors.WrapWithCode(err, errors.ErrContainer,
			"Failed to read container stats", "")
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return StatsSample{}, errors.WrapWithCode(err, errors.ErrContainer,
			"Failed to decode container stats", "")
	}

	var rx, tx uint64
	for _, net := range stats.Networks {
		rx += net.RxBytes
		tx += net.TxBytes
	}

	return StatsSample{
		ContainerID: id,
		Time:        time.Now(),
		CPUPercent:  cpuPercent(&stats),
		MemoryUsed:  stats.MemoryStats.Usage,
		MemoryLimit: stats.MemoryStats.Limit,
		RxBytes:     rx,
		TxBytes:     tx,
	}, nil
}

// cpuPercent derives a CPU percentage from the daemon's cumulative counters,
// scaled by the number of online CPUs the way docker stats does.
func cpuPercent(stats *container.StatsResponse) float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) -
		float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) -
		float64(stats.PreCPUStats.SystemUsage)

	numCPUs := float64(stats.CPUStats.OnlineCPUs)
	if numCPUs == 0 {
		numCPUs = float64(len(stats.CPUStats.CPUUsage.PercpuUsage))
	}
	if numCPUs == 0 {
		numCPUs = 1
	}

	if systemDelta > 0 && cpuDelta > 0 {
		return cpuDelta / systemDelta * numCPUs * 100
	}
	return 0
}

// StreamLogs returns a demultiplexed plain-text log stream.
func (c *Client) StreamLogs(ctx context.Context, id string, tail int, follow bool) (io.ReadCloser, error) {
	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Tail:       fmt.Sprintf("%d", tail),
	}
	raw, err := c.cli.ContainerLogs(ctx, id, opts)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrContainer,
			"Failed to open log stream", "")
	}

	inspect, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		raw.Close()
		return nil, errors.WrapWithCode(err, errors.ErrContainer,
			"Failed to inspect container", "")
	}

	// TTY containers produce an unframed byte stream; non-TTY log streams are
	// multiplexed with stream headers and need demuxing.
	if inspect.Config != nil && inspect.Config.Tty {
		return raw, nil
	}
	return demuxStream(raw), nil
}

// demuxStream strips Docker's stream-multiplexing headers, merging stdout and
// stderr into one readable pipe. Closing the returned reader closes the
// underlying stream, which unblocks the copy goroutine.
func demuxStream(raw io.ReadCloser) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, raw)
		pw.CloseWithError(err)
	}()
	return &demuxedStream{Reader: pr, raw: raw, pipe: pr}
}

type demuxedStream struct {
	io.Reader
	raw  io.ReadCloser
	pipe *io.PipeReader
}

func (d *demuxedStream) Close() error {
	d.pipe.Close()
	return d.raw.Close()
}

// ExecCreate starts an interactive shell in the container. A candidate shell
// counts as usable only if the exec process survives the attach; a shell
// path missing from the image exits immediately and is reported as an error
// so the caller can try the next candidate.
func (c *Client) ExecCreate(ctx context.Context, id, shell string, width, height uint16) (Pty, error) {
	created, err := c.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          true,
		Cmd:          []string{shell},
		Env:          []string{"TERM=xterm-256color"},
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			"Failed to create exec session", "")
	}

	attach, err := c.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{
		Tty:         true,
		ConsoleSize: &[2]uint{uint(height), uint(width)},
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			"Failed to attach exec session", "")
	}

	// Give the process one scheduling beat, then verify it is still alive.
	// A missing shell binary exits immediately with a nonzero code.
	time.Sleep(100 * time.Millisecond)
	inspect, err := c.cli.ContainerExecInspect(ctx, created.ID)
	if err == nil && !inspect.Running && inspect.ExitCode != 0 {
		attach.Close()
		return nil, errors.New(errors.ErrExec,
			fmt.Sprintf("Shell %s exited with code %d", shell, inspect.ExitCode), "")
	}

	c.log.Debug("exec attached: container=%s shell=%s", shortID(id), shell)
	return &dockerPty{cli: c.cli, execID: created.ID, attach: attach}, nil
}

// dockerPty adapts a hijacked exec connection to the Pty interface.
type dockerPty struct {
	cli    *client.Client
	execID string
	attach types.HijackedResponse
}

func (p *dockerPty) Read(buf []byte) (int, error)  { return p.attach.Reader.Read(buf) }
func (p *dockerPty) Write(buf []byte) (int, error) { return p.attach.Conn.Write(buf) }

func (p *dockerPty) Resize(ctx context.Context, width, height uint16) error {
	return p.cli.ContainerExecResize(ctx, p.execID, container.ResizeOptions{
		Width:  uint(width),
		Height: uint(height),
	})
}

func (p *dockerPty) Close() error {
	p.attach.Close()
	return nil
}

// StartContainer starts a stopped container.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	if err := c.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return errors.WrapWithCode(err, errors.ErrCommand,
			"Failed to start container", "")
	}
	return nil
}

// StopContainer stops a running container with a grace period.
func (c *Client) StopContainer(ctx context.Context, id string) error {
	timeout := stopTimeoutSeconds
	if err := c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return errors.WrapWithCode(err, errors.ErrCommand,
			"Failed to stop container", "")
	}
	return nil
}

// RestartContainer restarts a container with a grace period.
func (c *Client) RestartContainer(ctx context.Context, id string) error {
	timeout := stopTimeoutSeconds
	if err := c.cli.ContainerRestart(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return errors.WrapWithCode(err, errors.ErrCommand,
			"Failed to restart container", "")
	}
	return nil
}

// RemoveContainer force-removes a container, stopping it first if needed.
func (c *Client) RemoveContainer(ctx context.Context, id string) error {
	if err := c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return errors.WrapWithCode(err, errors.ErrCommand,
			"Failed to remove container", "")
	}
	return nil
}

// PauseContainer pauses a running container.
func (c *Client) PauseContainer(ctx context.Context, id string) error {
	if err := c.cli.ContainerPause(ctx, id); err != nil {
		return errors.WrapWithCode(err, errors.ErrCommand,
			"Failed to pause container", "")
	}
	return nil
}

// UnpauseContainer resumes a paused container.
func (c *Client) UnpauseContainer(ctx context.Context, id string) error {
	if err := c.cli.ContainerUnpause(ctx, id); err != nil {
		return errors.WrapWithCode(err, errors.ErrCommand,
			"Failed to unpause container", "")
	}
	return nil
}

// RenameContainer renames a container.
func (c *Client) RenameContainer(ctx context.Context, id, name string) error {
	if err := c.cli.ContainerRename(ctx, id, name); err != nil {
		return errors.WrapWithCode(err, errors.ErrCommand,
			"Failed to rename container", "")
	}
	return nil
}

// CreateContainer creates and starts a container from a spec.
func (c *Client) CreateContainer(ctx context.Context, spec CreateSpec) (string, error) {
	portBindings := nat.PortMap{}
	exposed := nat.PortSet{}
	if spec.HostPort != 0 && spec.ContainerPort != 0 {
		port, err := nat.NewPort("tcp", fmt.Sprintf("%d", spec.ContainerPort))
		if err != nil {
			return "", errors.WrapWithCode(err, errors.ErrCommand,
				"Invalid container port", "")
		}
		exposed[port] = struct{}{}
		portBindings[port] = []nat.PortBinding{{
			HostIP:   "0.0.0.0",
			HostPort: fmt.Sprintf("%d", spec.HostPort),
		}}
	}

	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
	}
	if len(spec.Volumes) > 0 {
		hostConfig.Binds = spec.Volumes
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		ExposedPorts: exposed,
		Cmd:          spec.Command,
		Tty:          true,
		OpenStdin:    true,
	}

	created, err := c.cli.ContainerCreate(ctx, cfg, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrCommand,
			"Failed to create container",
			"Check the image exists locally or can be pulled")
	}

	if err := c.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrCommand,
			"Container created but failed to start", "")
	}

	c.log.Debug("created container %s from %s", shortID(created.ID), spec.Image)
	return created.ID, nil
}

// ListImages returns locally available image tags, sorted.
func (c *Client) ListImages(ctx context.Context) ([]string, error) {
	images, err := c.cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrDaemon,
			"Failed to list images", "")
	}

	var tags []string
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag != "<none>:<none>" {
				tags = append(tags, tag)
			}
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// Top lists the processes running inside a container.
func (c *Client) Top(ctx context.Context, id string) (ProcessList, error) {
	body, err := c.cli.ContainerTop(ctx, id, nil)
	if err != nil {
		return ProcessList{}, errors.WrapWithCode(err, errors.ErrContainer,
			"Failed to list container processes", "")
	}
	return ProcessList{Titles: body.Titles, Processes: body.Processes}, nil
}

// IsNotFound reports whether err means the referenced container is gone.
func (c *Client) IsNotFound(err error) bool {
	return errdefs.IsNotFound(err)
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.cli.Close()
}

// shortID truncates a container id for log output.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
