// Package main runs the missions API, the sweep worker and the MCP bridge in
// one container and stops all of them when any one exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

// shutdownTimeout is the grace period before forcing child exit.
const shutdownTimeout = 10 * time.Second

// childProcess describes a managed child command.
type childProcess struct {
	name string
	cmd  *exec.Cmd
}

// processExit reports a child process exit result.
type processExit struct {
	name string
	err  error
}

// childSpec names a binary under the bin dir and its arguments.
type childSpec struct {
	name string
	bin  string
	args []string
}

func main() {
	log.SetPrefix("[ENTRYPOINT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	binDir := getenvDefault("PROXIM8_BIN_DIR", "/app")
	specs := []childSpec{
		{name: "missions", bin: "missions"},
		{name: "worker", bin: "worker"},
		{name: "mcp", bin: "mcp", args: []string{
			"-transport=http",
			"-http-addr=" + getenvDefault("PROXIM8_MCP_HTTP_ADDR", "0.0.0.0:8081"),
		}},
	}

	children := make([]*childProcess, 0, len(specs))
	for _, spec := range specs {
		child, err := startChild(spec.name, exec.Command(filepath.Join(binDir, spec.bin), spec.args...))
		if err != nil {
			terminateChildren(children)
			log.Fatalf("failed to start %s: %v", spec.name, err)
		}
		children = append(children, child)
	}

	exitCh := make(chan processExit, len(children))
	for _, child := range children {
		go waitChild(child, exitCh)
	}

	select {
	case <-ctx.Done():
		log.Printf("shutdown signal received")
		terminateChildren(children)
		waitForChildren(exitCh, len(children), shutdownTimeout, children)
	case exit := <-exitCh:
		log.Printf("%s exited: %v", exit.name, exit.err)
		terminateChildren(children)
		waitForChildren(exitCh, len(children)-1, shutdownTimeout, children)
		os.Exit(exitCode(exit.err))
	}
}

// startChild starts a child process with inherited stdio streams.
func startChild(name string, cmd *exec.Cmd) (*childProcess, error) {
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	return &childProcess{name: name, cmd: cmd}, nil
}

func waitChild(child *childProcess, exitCh chan<- processExit) {
	exitCh <- processExit{name: child.name, err: child.cmd.Wait()}
}

// terminateChildren sends SIGTERM to all child processes.
func terminateChildren(children []*childProcess) {
	for _, child := range children {
		if child == nil || child.cmd == nil || child.cmd.Process == nil {
			continue
		}
		_ = child.cmd.Process.Signal(syscall.SIGTERM)
	}
}

// waitForChildren waits for the remaining exits or kills what is left.
func waitForChildren(exitCh <-chan processExit, remaining int, timeout time.Duration, children []*childProcess) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for remaining > 0 {
		select {
		case exit := <-exitCh:
			log.Printf("%s stopped", exit.name)
			remaining--
		case <-timer.C:
			for _, child := range children {
				if child.cmd.Process != nil && child.cmd.ProcessState == nil {
					_ = child.cmd.Process.Kill()
				}
			}
			return
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
