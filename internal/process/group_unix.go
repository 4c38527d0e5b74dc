//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const gracefulQuitSupported = true

// killDelay is the pause between SIGTERM and SIGKILL.
const killDelay = 5 * time.Second

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interruptGroup(p *os.Process) {
	if p == nil {
		return
	}
	if err := unix.Kill(-p.Pid, unix.SIGINT); err != nil {
		_ = p.Signal(os.Interrupt)
	}
}

// terminateGroup sends SIGTERM to the process group, then SIGKILL if the
// leader has not exited within killDelay.
func terminateGroup(p *os.Process, exited <-chan struct{}) {
	if p == nil {
		return
	}
	if err := unix.Kill(-p.Pid, unix.SIGTERM); err != nil {
		_ = p.Signal(unix.SIGTERM)
	}
	select {
	case <-exited:
	case <-time.After(killDelay):
		if err := unix.Kill(-p.Pid, unix.SIGKILL); err != nil {
			_ = p.Kill()
		}
	}
}
