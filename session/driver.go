package session

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// procHandle is a running subprocess as the session runtime sees it: a
// stream of output chunks, line-oriented input, and a kill switch.
type procHandle interface {
	io.Reader

	// writeLine writes one input line followed by the terminator the
	// subprocess expects.
	writeLine(line string) error

	// resize adjusts the terminal size, where the driver supports one.
	resize(cols, rows uint16) error

	// kill force-terminates the subprocess, preferring the whole process
	// group so grandchildren do not survive.
	kill()

	// wait blocks until the subprocess exits.
	wait() error
}

// driver spawns subprocesses. The PTY driver is the default; the pipe driver
// serves environments without a usable PTY, and tests substitute a fake.
type driver interface {
	spawn(program string, args []string, dir string, env []string, cols, rows uint16) (procHandle, error)
}

// colorEnv are capability hints merged into every spawned environment so
// agent CLIs keep their colored output under a captured terminal.
var colorEnv = []string{
	"TERM=xterm-256color",
	"FORCE_COLOR=1",
	"CLICOLOR_FORCE=1",
}

// killGroup signals the whole process group, falling back to the single
// process when group delivery is unavailable.
func killGroup(proc *os.Process) {
	if proc == nil {
		return
	}
	if err := syscall.Kill(-proc.Pid, syscall.SIGKILL); err != nil {
		_ = proc.Kill()
	}
}

// ptyDriver runs the subprocess under a pseudo-terminal. Input lines are
// terminated with "\r", the way a terminal sends Enter.
type ptyDriver struct{}

type ptyHandle struct {
	cmd  *exec.Cmd
	ptmx *os.File
}

func (d ptyDriver) spawn(program string, args []string, dir string, env []string, cols, rows uint16) (procHandle, error) {
	cmd := exec.Command(program, args...)
	cmd.Dir = dir
	cmd.Env = env

	if cols == 0 {
		cols = 120
	}
	if rows == 0 {
		rows = 40
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("starting %s under pty: %w", program, err)
	}
	return &ptyHandle{cmd: cmd, ptmx: ptmx}, nil
}

func (h *ptyHandle) Read(p []byte) (int, error) {
	return h.ptmx.Read(p)
}

func (h *ptyHandle) writeLine(line string) error {
	_, err := h.ptmx.WriteString(line + "\r")
	return err
}

func (h *ptyHandle) resize(cols, rows uint16) error {
	return pty.Setsize(h.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

func (h *ptyHandle) kill() {
	killGroup(h.cmd.Process)
	_ = h.ptmx.Close()
}

func (h *ptyHandle) wait() error {
	return h.cmd.Wait()
}

// pipeDriver runs the subprocess over plain pipes with stderr merged into
// stdout. Input lines are terminated with "\n". Resize is meaningless here.
type pipeDriver struct{}

type pipeHandle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (d pipeDriver) spawn(program string, args []string, dir string, env []string, cols, rows uint16) (procHandle, error) {
	cmd := exec.Command(program, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin for %s: %w", program, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout for %s: %w", program, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", program, err)
	}
	return &pipeHandle{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

func (h *pipeHandle) Read(p []byte) (int, error) {
	return h.stdout.Read(p)
}

func (h *pipeHandle) writeLine(line string) error {
	_, err := io.WriteString(h.stdin, line+"\n")
	return err
}

func (h *pipeHandle) resize(cols, rows uint16) error {
	return fmt.Errorf("pipe sessions have no terminal to resize")
}

func (h *pipeHandle) kill() {
	killGroup(h.cmd.Process)
	_ = h.stdin.Close()
}

func (h *pipeHandle) wait() error {
	return h.cmd.Wait()
}
