package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/xraph/jobqueue/worker"
)

// Command is the payload of an exec job.
type Command struct {
	Command string            `json:"command"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

const maxOutput = 4 << 10

// newExecWorker returns a worker that runs each job's command with shell.
// The process is killed when the job is cancelled or times out.
func newExecWorker(cfg WorkerConfig, logger *slog.Logger) *worker.Worker {
	run := func(ctx context.Context, c Command, jobID string) error {
		if strings.TrimSpace(c.Command) == "" {
			return errors.New("empty command")
		}

		cmd := exec.CommandContext(ctx, cfg.Shell, "-c", c.Command)
		cmd.Dir = c.Dir
		cmd.Env = os.Environ()
		for k, v := range c.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		err := cmd.Run()
		logger.Debug("command exited",
			slog.String("job_id", jobID),
			slog.String("command", c.Command),
			slog.String("output", truncate(out.String(), maxOutput)),
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("%s: %w: %s", c.Command, err, truncate(strings.TrimSpace(out.String()), 256))
		}
		return nil
	}

	return worker.New(cfg.Name, run,
		worker.WithConcurrency(cfg.Concurrency),
		worker.WithLogger(logger),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
