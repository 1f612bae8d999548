package transport

import (
	"fmt"
	"os/exec"
	"time"
)

// NewChildProcess spawns path with the default "--embed" argument injected,
// wiring its stdin/stdout as pipes to serve as the MessagePack-RPC channel —
// the form spec.md §6 calls "a factory that takes only a program path".
func NewChildProcess(path string) (*Stream, *exec.Cmd, error) {
	return NewChildProcessWithArgs(path, []string{"--embed"}, nil, "")
}

// NewChildProcessWithArgs spawns path with caller-supplied args, env, and
// working directory — the fully parameterized factory spec.md §6
// describes. Unlike NewChildProcess it injects no default argument; the
// caller is responsible for including whatever flag makes the child speak
// MessagePack-RPC over stdio.
func NewChildProcessWithArgs(path string, args, env []string, dir string) (*Stream, *exec.Cmd, error) {
	cmd := exec.Command(path, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}

	inw, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("nvimrpc/transport: stdin pipe: %w", err)
	}
	outr, err := cmd.StdoutPipe()
	if err != nil {
		inw.Close()
		return nil, nil, fmt.Errorf("nvimrpc/transport: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		inw.Close()
		return nil, nil, fmt.Errorf("nvimrpc/transport: start %s: %w", path, err)
	}

	closeFn := func() error {
		inw.Close()
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()

		timer := time.NewTimer(10 * time.Second)
		defer timer.Stop()
		select {
		case err := <-done:
			return err
		case <-timer.C:
			if cmd.Process != nil {
				cmd.Process.Kill()
			}
			return <-done
		}
	}

	return &Stream{Reader: outr, Writer: inw, close: closeFn}, cmd, nil
}
