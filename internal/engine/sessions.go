package engine

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	bperrors "github.com/icryo/backplane-tui/internal/errors"
	"github.com/icryo/backplane-tui/internal/logger"
	"github.com/icryo/backplane-tui/internal/runtime"
)

// Sentinel errors for session admission. Compared with errors.Is, so callers
// can branch on them without string matching.
var (
	// ErrSessionAlreadyActive rejects a second interactive shell while one is
	// open. The active session is left untouched.
	ErrSessionAlreadyActive = bperrors.New(bperrors.ErrSession,
		"an interactive shell is already open",
		"Detach from the current shell before opening another")

	// ErrNoShellAvailable means every candidate shell failed to start in the
	// container.
	ErrNoShellAvailable = bperrors.New(bperrors.ErrExec,
		"no shell available in this container",
		"The image ships none of the known shells (bash, sh, zsh, ash)")
)

// SessionsOptions configure session behavior.
type SessionsOptions struct {
	// LogTail is how many historical lines a new log session requests.
	LogTail int
	// Shells are the candidate shell paths tried in order for exec sessions.
	Shells []string
}

// Sessions owns all long-lived streams: log tails and the interactive exec
// shell. At most one log session exists per container (reopening replaces the
// old one) and at most one exec session exists globally. Every session emits
// SessionEnded exactly once, whatever ends it, and teardown is deterministic:
// once a close returns, the session publishes nothing further.
type Sessions struct {
	api   runtime.API
	queue *Queue
	opts  SessionsOptions
	log   logger.Logger

	mu     sync.Mutex
	nextID int64
	logs   map[string]*logSession // keyed by container id
	exec   *execSession
}

// NewSessions creates a session manager publishing onto queue.
func NewSessions(api runtime.API, queue *Queue, opts SessionsOptions) *Sessions {
	if opts.LogTail <= 0 {
		opts.LogTail = 500
	}
	if len(opts.Shells) == 0 {
		opts.Shells = []string{"/bin/bash", "/bin/sh", "/bin/zsh", "/bin/ash"}
	}
	return &Sessions{
		api:   api,
		queue: queue,
		opts:  opts,
		log:   logger.NewEnvLogger("[sessions]"),
		logs:  make(map[string]*logSession),
	}
}

type logSession struct {
	id          int64
	containerID string
	stream      io.ReadCloser
	cancel      context.CancelFunc
	done        chan struct{}
	endOnce     sync.Once
}

// close tears the session down and waits for the pump goroutine to exit.
func (ls *logSession) close() {
	ls.cancel()
	ls.stream.Close()
	<-ls.done
}

type execSession struct {
	id          int64
	containerID string
	shell       string
	pty         runtime.Pty
	cancel      context.CancelFunc
	done        chan struct{}
	endOnce     sync.Once
}

func (es *execSession) close() {
	es.cancel()
	es.pty.Close()
	<-es.done
}

// OpenLogs starts a follow-mode log session for the container, replacing any
// existing log session on the same container. The mode transition arrives via
// SessionOpened on the queue.
func (s *Sessions) OpenLogs(containerID, containerName string) error {
	s.mu.Lock()
	old := s.logs[containerID]
	delete(s.logs, containerID)
	s.mu.Unlock()
	if old != nil {
		old.close()
	}

	// The stream outlives this call, so its context belongs to the session,
	// not the caller.
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := s.api.StreamLogs(ctx, containerID, s.opts.LogTail, true)
	if err != nil {
		cancel()
		return bperrors.WrapWithCode(err, bperrors.ErrSession,
			"failed to open log stream for "+containerName,
			"Check that the container still exists")
	}

	ls := &logSession{
		containerID: containerID,
		stream:      stream,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	s.mu.Lock()
	s.nextID++
	ls.id = s.nextID
	s.logs[containerID] = ls
	s.mu.Unlock()

	s.queue.Publish(SessionOpened{
		Kind:          SessionLogs,
		SessionID:     ls.id,
		ContainerID:   containerID,
		ContainerName: containerName,
		Time:          time.Now(),
	})

	go s.pumpLogs(ctx, ls)
	return nil
}

// pumpLogs forwards stream lines onto the queue until the stream ends, then
// publishes SessionEnded exactly once and unregisters the session.
func (s *Sessions) pumpLogs(ctx context.Context, ls *logSession) {
	defer close(ls.done)

	sc := bufio.NewScanner(ls.stream)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		s.queue.Publish(LogLine{
			SessionID:   ls.id,
			ContainerID: ls.containerID,
			Line:        sc.Text(),
			Time:        time.Now(),
		})
	}

	var errMsg string
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		errMsg = err.Error()
		s.log.Debug("log stream for %s ended: %v", ls.containerID, err)
	}

	s.mu.Lock()
	if s.logs[ls.containerID] == ls {
		delete(s.logs, ls.containerID)
	}
	s.mu.Unlock()

	ls.endOnce.Do(func() {
		s.queue.Publish(SessionEnded{
			Kind:        SessionLogs,
			SessionID:   ls.id,
			ContainerID: ls.containerID,
			Err:         errMsg,
			Time:        time.Now(),
		})
	})
}

// OpenExec starts an interactive shell in the container, trying each
// candidate shell in order. Only one exec session may exist at a time;
// a second open fails with ErrSessionAlreadyActive and leaves the first
// untouched.
func (s *Sessions) OpenExec(containerID, containerName string, width, height uint16) error {
	s.mu.Lock()
	if s.exec != nil {
		s.mu.Unlock()
		return ErrSessionAlreadyActive
	}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	var pty runtime.Pty
	var shell string
	for _, candidate := range s.opts.Shells {
		p, err := s.api.ExecCreate(ctx, containerID, candidate, width, height)
		if err != nil {
			s.log.Debug("shell %s in %s: %v", candidate, containerID, err)
			continue
		}
		pty, shell = p, candidate
		break
	}
	if pty == nil {
		cancel()
		return ErrNoShellAvailable
	}

	es := &execSession{
		containerID: containerID,
		shell:       shell,
		pty:         pty,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	s.mu.Lock()
	if s.exec != nil {
		// Lost the admission race; the earlier session wins.
		s.mu.Unlock()
		cancel()
		pty.Close()
		return ErrSessionAlreadyActive
	}
	s.nextID++
	es.id = s.nextID
	s.exec = es
	s.mu.Unlock()

	s.queue.Publish(SessionOpened{
		Kind:          SessionExec,
		SessionID:     es.id,
		ContainerID:   containerID,
		ContainerName: containerName,
		Time:          time.Now(),
	})

	go s.pumpExec(ctx, es)
	return nil
}

// pumpExec forwards raw terminal output onto the queue until the remote side
// closes, then publishes SessionEnded exactly once.
func (s *Sessions) pumpExec(ctx context.Context, es *execSession) {
	defer close(es.done)

	buf := make([]byte, 4096)
	var errMsg string
	for {
		n, err := es.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.queue.Publish(ExecOutput{
				SessionID: es.id,
				Chunk:     chunk,
				Time:      time.Now(),
			})
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				errMsg = err.Error()
				s.log.Debug("exec stream for %s ended: %v", es.containerID, err)
			}
			break
		}
	}

	s.mu.Lock()
	if s.exec == es {
		s.exec = nil
	}
	s.mu.Unlock()

	es.endOnce.Do(func() {
		s.queue.Publish(SessionEnded{
			Kind:        SessionExec,
			SessionID:   es.id,
			ContainerID: es.containerID,
			Err:         errMsg,
			Time:        time.Now(),
		})
	})
}

// WriteExec forwards raw keystrokes to the active exec session.
func (s *Sessions) WriteExec(p []byte) error {
	s.mu.Lock()
	es := s.exec
	s.mu.Unlock()
	if es == nil {
		return bperrors.New(bperrors.ErrSession, "no active shell", "")
	}
	_, err := es.pty.Write(p)
	return err
}

// ResizeExec propagates a terminal resize to the active exec session, if any.
func (s *Sessions) ResizeExec(ctx context.Context, width, height uint16) error {
	s.mu.Lock()
	es := s.exec
	s.mu.Unlock()
	if es == nil {
		return nil
	}
	return es.pty.Resize(ctx, width, height)
}

// CloseLogs tears down the log session for the container, if any. Returns
// after the pump has exited; no further lines will be published.
func (s *Sessions) CloseLogs(containerID string) {
	s.mu.Lock()
	ls := s.logs[containerID]
	delete(s.logs, containerID)
	s.mu.Unlock()
	if ls != nil {
		ls.close()
	}
}

// CloseExec tears down the active exec session, if any.
func (s *Sessions) CloseExec() {
	s.mu.Lock()
	es := s.exec
	s.exec = nil
	s.mu.Unlock()
	if es != nil {
		es.close()
	}
}

// CloseFor tears down every session attached to the container. Called when
// the container is removed so stale streams cannot outlive their subject.
func (s *Sessions) CloseFor(containerID string) {
	s.CloseLogs(containerID)

	s.mu.Lock()
	es := s.exec
	if es != nil && es.containerID != containerID {
		es = nil
	} else {
		s.exec = nil
	}
	s.mu.Unlock()
	if es != nil {
		es.close()
	}
}

// CloseAll tears down every session. Used at shutdown.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	var all []*logSession
	for id, ls := range s.logs {
		all = append(all, ls)
		delete(s.logs, id)
	}
	es := s.exec
	s.exec = nil
	s.mu.Unlock()

	for _, ls := range all {
		ls.close()
	}
	if es != nil {
		es.close()
	}
}

// ExecShell reports the shell path of the active exec session, for the
// status bar.
func (s *Sessions) ExecShell() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exec == nil {
		return ""
	}
	return s.exec.shell
}
