//go:build windows

package process

import (
	"os"
	"os/exec"
)

const gracefulQuitSupported = false

func setProcessGroup(*exec.Cmd) {}

func interruptGroup(p *os.Process) {
	if p != nil {
		_ = p.Kill()
	}
}

func terminateGroup(p *os.Process, _ <-chan struct{}) {
	if p != nil {
		_ = p.Kill()
	}
}
