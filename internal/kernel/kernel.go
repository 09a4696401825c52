// Package kernel is the daemon's single-owner concurrency arena: the
// current operating state, the cancellation token for whatever operation is
// running, the handle of the background goroutine running it, and the
// in-flight rsync child process. Each slot is guarded by its own short-held
// mutex so a caller blocked on a long scan never blocks a status read.
package kernel

import (
	"context"
	"os/exec"
	"sync"

	"github.com/google/uuid"
)

// State is the daemon's coarse operating mode, exposed on /api/status.
type State string

const (
	StateIdle      State = "idle"
	StateScanning  State = "scanning"
	StatePlanning  State = "planning"
	StateExecuting State = "executing"
)

// Status is a snapshot of the daemon's current activity.
type Status struct {
	State  State
	Detail string
}

// Idle returns the canonical idle status.
func Idle() Status { return Status{State: StateIdle} }

// Kernel owns the daemon's single point of mutable shared runtime state.
// Only one background operation (scan, plan, execute) runs at a time; the
// API layer enforces that by checking Status().State before starting a new
// one.
type Kernel struct {
	statusMu sync.RWMutex
	status   Status

	cancelMu     sync.Mutex
	cancelID     string
	cancelFunc   context.CancelFunc

	taskMu sync.Mutex
	task   *sync.WaitGroup

	childMu sync.Mutex
	child   *exec.Cmd
}

// New returns a Kernel in the idle state.
func New() *Kernel {
	return &Kernel{status: Idle()}
}

// Status returns the current operating status.
func (k *Kernel) Status() Status {
	k.statusMu.RLock()
	defer k.statusMu.RUnlock()
	return k.status
}

// SetStatus updates the current operating status.
func (k *Kernel) SetStatus(s Status) {
	k.statusMu.Lock()
	k.status = s
	k.statusMu.Unlock()
}

// NewOperation replaces the current cancellation token with a fresh one and
// returns the context the caller's background goroutine should select on,
// plus an opaque operation id for logging. Any previous operation's token is
// discarded without being cancelled — callers are expected to have already
// waited for (or explicitly cancelled) the prior operation via Status().
func (k *Kernel) NewOperation(parent context.Context) (context.Context, string) {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()

	k.cancelMu.Lock()
	k.cancelID = id
	k.cancelFunc = cancel
	k.cancelMu.Unlock()

	return ctx, id
}

// RequestCancel cancels whatever operation is currently registered. Safe to
// call when no operation is running (a no-op) and safe to call twice.
func (k *Kernel) RequestCancel() {
	k.cancelMu.Lock()
	defer k.cancelMu.Unlock()
	if k.cancelFunc != nil {
		k.cancelFunc()
	}
}

// SetTask registers the WaitGroup tracking the current background
// operation, so shutdown can wait for it to finish (or give up after its own
// timeout).
func (k *Kernel) SetTask(wg *sync.WaitGroup) {
	k.taskMu.Lock()
	k.task = wg
	k.taskMu.Unlock()
}

// Task returns the currently registered background-task handle, or nil if
// none is running.
func (k *Kernel) Task() *sync.WaitGroup {
	k.taskMu.Lock()
	defer k.taskMu.Unlock()
	return k.task
}

// SetChild registers the in-flight rsync child process so shutdown can kill
// it directly if the operation doesn't respond to cancellation in time.
func (k *Kernel) SetChild(cmd *exec.Cmd) {
	k.childMu.Lock()
	k.child = cmd
	k.childMu.Unlock()
}

// ClearChild removes the registered child process once it has exited.
func (k *Kernel) ClearChild() {
	k.childMu.Lock()
	k.child = nil
	k.childMu.Unlock()
}

// KillChild force-kills the registered child process, if any.
func (k *Kernel) KillChild() {
	k.childMu.Lock()
	defer k.childMu.Unlock()
	if k.child != nil && k.child.Process != nil {
		k.child.Process.Kill()
	}
}
