//go:build windows

package registry

import (
	"os"
	"os/exec"
)

// Windows has no execve equivalent that replaces the calling process image;
// this approximates it by spawning argv[0] and exiting with its status.
func lookPath(name string) (string, error) { return exec.LookPath(name) }

func syscallExec(path string, argv, envv []string) error {
	cmd := exec.Command(path, argv[1:]...)
	cmd.Env = envv
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return err
	}
	os.Exit(0)
	return nil
}
