// Package submit abstracts handing a shell command to an execution
// backend, either the local machine or a SLURM cluster.  Heavy optional
// steps (e.g. footprinting) run through this interface so the pipeline
// itself stays scheduler-agnostic.
package submit

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Script is one unit of work: a shell command plus where its output and
// log should land.
type Script struct {
	// Command is run through `sh -c`.
	Command string
	// OutPath receives the command's stdout.
	OutPath string
	// LogPath receives the command's stderr.
	LogPath string
	// Name labels the job for the scheduler; optional.
	Name string
}

// Submitter hands a script to an execution backend and returns the
// backend's job identifier.
type Submitter interface {
	Submit(ctx context.Context, script Script) (jobID string, err error)
}

// Local runs the script synchronously on the local machine.  The returned
// job ID is the process ID of the finished command.
type Local struct{}

func (Local) Submit(ctx context.Context, script Script) (string, error) {
	if script.Command == "" {
		return "", errors.New("submit: empty command")
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", script.Command)
	if script.OutPath != "" {
		out, err := os.Create(script.OutPath)
		if err != nil {
			return "", err
		}
		defer out.Close() // nolint: errcheck
		cmd.Stdout = out
	}
	if script.LogPath != "" {
		logFile, err := os.Create(script.LogPath)
		if err != nil {
			return "", err
		}
		defer logFile.Close() // nolint: errcheck
		cmd.Stderr = logFile
	}
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "submit: %s", script.Command)
	}
	return strconv.Itoa(cmd.Process.Pid), nil
}

// Slurm submits the script with sbatch and parses the job ID from the
// scheduler's reply.
type Slurm struct {
	// Sbatch is the submit binary; empty means "sbatch" from PATH.
	Sbatch string
	// Partition and Time are passed through when non-empty.
	Partition string
	Time      string
}

func (s Slurm) sbatch() string {
	if s.Sbatch == "" {
		return "sbatch"
	}
	return s.Sbatch
}

// renderBatch writes the sbatch file for the script.
func (s Slurm) renderBatch(script Script) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	if script.Name != "" {
		fmt.Fprintf(&b, "#SBATCH --job-name=%s\n", script.Name)
	}
	if script.OutPath != "" {
		fmt.Fprintf(&b, "#SBATCH --output=%s\n", script.OutPath)
	}
	if script.LogPath != "" {
		fmt.Fprintf(&b, "#SBATCH --error=%s\n", script.LogPath)
	}
	if s.Partition != "" {
		fmt.Fprintf(&b, "#SBATCH --partition=%s\n", s.Partition)
	}
	if s.Time != "" {
		fmt.Fprintf(&b, "#SBATCH --time=%s\n", s.Time)
	}
	b.WriteString(script.Command)
	b.WriteString("\n")
	return b.String()
}

func (s Slurm) Submit(ctx context.Context, script Script) (string, error) {
	if script.Command == "" {
		return "", errors.New("submit: empty command")
	}
	dir, err := ioutil.TempDir("", "sbatch")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir) // nolint: errcheck
	batchPath := filepath.Join(dir, "job.sh")
	if err := ioutil.WriteFile(batchPath, []byte(s.renderBatch(script)), 0755); err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, s.sbatch(), batchPath).Output()
	if err != nil {
		return "", errors.Wrapf(err, "submit: sbatch %s", batchPath)
	}
	return parseSbatchReply(string(out))
}

// parseSbatchReply extracts the job ID from sbatch's "Submitted batch job
// NNN" reply.
func parseSbatchReply(reply string) (string, error) {
	fields := strings.Fields(strings.TrimSpace(reply))
	if len(fields) == 0 {
		return "", errors.New("submit: empty sbatch reply")
	}
	id := fields[len(fields)-1]
	if _, err := strconv.Atoi(id); err != nil {
		return "", errors.Errorf("submit: cannot parse sbatch reply %q", reply)
	}
	return id, nil
}
