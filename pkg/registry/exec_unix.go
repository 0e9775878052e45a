//go:build !windows

package registry

import (
	"os/exec"
	"syscall"
)

func lookPath(name string) (string, error) { return exec.LookPath(name) }

func syscallExec(path string, argv, envv []string) error {
	return syscall.Exec(path, argv, envv)
}
