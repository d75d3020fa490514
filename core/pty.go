package core

import (
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// PTY wraps a master file descriptor and the child process attached to its
// slave end. Exclusively owned by one Agent; the master is closed exactly
// once, on reap.
type PTY struct {
	mu     sync.Mutex
	master *os.File
	cmd    *exec.Cmd
	closed bool
}

// StartPTY allocates a master/slave pair sized to size, execs argv with env
// in the child (the child becomes the slave's controlling process via
// creack/pty's Setctty/Setsid handling), and returns the wrapper plus the
// child's pid. Output post-processing is left to the caller: OPOST is
// disabled below so '\n' is never translated to "\r\n" by the kernel line
// discipline underneath the parser, which does its own CR/LF handling.
func StartPTY(argv []string, env []string, size Size) (*PTY, int, error) {
	if len(argv) == 0 {
		return nil, 0, Errorf(ErrorKindUsage, "StartPTY", "argv must not be empty")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(size.Rows),
		Cols: uint16(size.Cols),
	})
	if err != nil {
		return nil, 0, NewError(ErrorKindSpawnFailed, "StartPTY", err)
	}
	if err := disableOPOST(master); err != nil {
		_ = master.Close()
		_ = cmd.Process.Kill()
		return nil, 0, NewError(ErrorKindPTY, "StartPTY", err)
	}
	p := &PTY{master: master, cmd: cmd}
	return p, cmd.Process.Pid, nil
}

// disableOPOST clears the OPOST flag on the master's line discipline so the
// kernel does not rewrite outgoing newlines underneath the VT parser.
func disableOPOST(f *os.File) error {
	fd := int(f.Fd())
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	termios.Oflag &^= unix.OPOST
	return unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}

// Read reads available output from the master into b. The master is left
// in the OS-default blocking mode; the pump calls Read from its own
// dedicated goroutine, so a blocking read never stalls other agents.
func (p *PTY) Read(b []byte) (int, error) {
	return p.master.Read(b)
}

// Write sends bytes to the master (i.e. to the child's stdin). Callers on
// the Attach input path should treat a partial write as best-effort;
// PTY.Write does not retry internally.
func (p *PTY) Write(b []byte) (int, error) {
	return p.master.Write(b)
}

// Resize forwards TIOCSWINSZ to the master and delivers SIGWINCH to the
// child, belt-and-suspenders for apps that miss the implicit signal the
// kernel already sends on a successful ioctl.
func (p *PTY) Resize(size Size) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return Errorf(ErrorKindPTY, "Resize", "pty already closed")
	}
	if err := pty.Setsize(p.master, &pty.Winsize{
		Rows: uint16(size.Rows),
		Cols: uint16(size.Cols),
	}); err != nil {
		return NewError(ErrorKindPTY, "Resize", err)
	}
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Signal(syscall.SIGWINCH)
	}
	return nil
}

// Signal delivers sig to the child process.
func (p *PTY) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd.Process == nil {
		return Errorf(ErrorKindPTY, "Signal", "no child process")
	}
	return p.cmd.Process.Signal(sig)
}

// Wait blocks until the child exits and returns its exit status. Callers
// must not call Wait concurrently from more than one goroutine.
func (p *PTY) Wait() (code int, signal int, err error) {
	waitErr := p.cmd.Wait()
	if waitErr == nil {
		return p.cmd.ProcessState.ExitCode(), 0, nil
	}
	var exitErr *exec.ExitError
	if ok := errorsAsExitError(waitErr, &exitErr); ok {
		status, ok := exitErr.Sys().(syscall.WaitStatus)
		if ok && status.Signaled() {
			return -1, int(status.Signal()), nil
		}
		return exitErr.ExitCode(), 0, nil
	}
	return -1, 0, waitErr
}

func errorsAsExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// Close closes the master exactly once; subsequent calls are no-ops.
func (p *PTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.master.Close()
}

// Pid returns the child's process id.
func (p *PTY) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}
