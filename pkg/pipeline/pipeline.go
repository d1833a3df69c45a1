package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// LaunchError is returned when a process of the pipeline could not be started.
type LaunchError struct {
	Name string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("unable to start %s: %v", e.Name, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Status is the outcome of both processes of a pipeline after they have exited.
type Status struct {
	Producer Exit
	Consumer Exit
}

// Exit describes how a single process ended.
type Exit struct {
	// Code is the process exit code, or -1 if it was killed or could not be waited for.
	Code int
	Err  error
}

// Success reports whether the process exited with status 0.
func (e Exit) Success() bool {
	return e.Err == nil && e.Code == 0
}

// Process is a started member of the pipeline.
type Process struct {
	Name string
	cmd  *exec.Cmd
}

// Wait blocks until the process exits.
func (p *Process) Wait() Exit {
	return exitOf(p.cmd.Wait())
}

func (p *Process) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// Run starts producer with its standard output connected to the standard input of consumer
// through an OS pipe, then waits for the consumer and afterwards reaps the producer. The bytes on
// the pipe never pass through this process.
//
// An error is returned only if the pipe could not be created or either process failed to start;
// in that case nothing is left running. Exit statuses are reported in Status.
func Run(ctx context.Context, producer, consumer Command) (Status, error) {
	var status Status
	r, w, err := os.Pipe()
	if err != nil {
		return status, fmt.Errorf("unable to create pipe: %w", err)
	}
	environ := os.Environ()

	prodCmd := producer.cmd(ctx, environ)
	prodCmd.Stdout = w
	consCmd := consumer.cmd(ctx, environ)
	consCmd.Stdin = r

	prod := &Process{Name: producer.Name, cmd: prodCmd}
	if err := prodCmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return status, &LaunchError{Name: producer.Name, Err: err}
	}
	// the producer holds its own copy of the write end
	_ = w.Close()

	cons := &Process{Name: consumer.Name, cmd: consCmd}
	if err := consCmd.Start(); err != nil {
		_ = r.Close()
		prod.kill()
		status.Producer = prod.Wait()
		return status, &LaunchError{Name: consumer.Name, Err: err}
	}
	// the consumer holds its own copy of the read end; once it exits the producer sees EPIPE
	_ = r.Close()

	status.Consumer = cons.Wait()
	status.Producer = prod.Wait()
	return status, nil
}

func exitOf(err error) Exit {
	if err == nil {
		return Exit{}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Exit{Code: exitErr.ExitCode(), Err: err}
	}
	return Exit{Code: -1, Err: err}
}
