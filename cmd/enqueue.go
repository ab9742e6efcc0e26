package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/engine"
)

var (
	enqueuePriority   int
	enqueueMaxRetries int
	enqueueTimeout    int
	enqueueRunAt      string
	enqueueFromStdin  bool
)

// jobPayload is the recognized shape of SPEC_FULL.md §6's job submission
// document. Unknown fields are rejected by the decoder, not silently
// ignored; max_retries is a pointer so "omitted" (fall back to the
// configured default) is distinguishable from an explicit 0.
type jobPayload struct {
	ID             string `json:"id"`
	Command        string `json:"command"`
	MaxRetries     *int   `json:"max_retries"`
	Priority       int    `json:"priority"`
	RunAt          string `json:"run_at"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <id> <command>",
	Short: "Enqueue a job",
	Long: `Enqueue a job either by id/command arguments and flags, or by piping
line-delimited JSON documents via --from-stdin, one job per line:

  echo '{"id":"job1","command":"echo hello"}' | queuectl enqueue --from-stdin`,
	Args: func(cmd *cobra.Command, args []string) error {
		if enqueueFromStdin {
			return cobra.ExactArgs(0)(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if enqueueFromStdin {
			return enqueueFromReader(os.Stdin)
		}

		id, command := args[0], args[1]

		maxRetries := enqueueMaxRetries
		if !cmd.Flags().Changed("max-retries") {
			cfg, err := st.GetConfig()
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			maxRetries = cfg.MaxRetries
		}

		j := &engine.Job{
			ID:             id,
			Command:        command,
			Priority:       enqueuePriority,
			MaxRetries:     maxRetries,
			TimeoutSeconds: enqueueTimeout,
		}

		if enqueueRunAt != "" {
			t, err := time.Parse(time.RFC3339, enqueueRunAt)
			if err != nil {
				return fmt.Errorf("parse --run-at (expected RFC3339): %w", err)
			}
			j.RunAt = &t
		}

		if err := st.Insert(j, time.Now().UTC()); err != nil {
			return err
		}
		fmt.Printf("enqueued %s\n", j.ID)
		return nil
	},
}

// enqueueFromReader decodes one job payload per line and inserts each in
// turn, stopping at the first malformed document so a batch never leaves
// the caller unsure which jobs actually landed.
func enqueueFromReader(r *os.File) error {
	scanner := bufio.NewScanner(r)
	now := time.Now().UTC()
	count := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		j, err := decodeJobPayload(line)
		if err != nil {
			return err
		}
		if err := st.Insert(j, now); err != nil {
			return err
		}
		fmt.Printf("enqueued %s\n", j.ID)
		count++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	fmt.Printf("enqueued %d job(s)\n", count)
	return nil
}

// decodeJobPayload parses one line of SPEC_FULL.md §6's job submission
// document. DisallowUnknownFields rejects any field outside the recognized
// set, and a missing id/command is rejected the same way, all surfaced as
// engine.ErrInvalidPayload so the CLI exits with the ClientError code.
func decodeJobPayload(line string) (*engine.Job, error) {
	dec := json.NewDecoder(strings.NewReader(line))
	dec.DisallowUnknownFields()

	var p jobPayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidPayload, err)
	}
	if p.ID == "" || p.Command == "" {
		return nil, fmt.Errorf("%w: id and command are required", engine.ErrInvalidPayload)
	}

	j := &engine.Job{
		ID:             p.ID,
		Command:        p.Command,
		Priority:       p.Priority,
		TimeoutSeconds: p.TimeoutSeconds,
	}

	if p.MaxRetries != nil {
		j.MaxRetries = *p.MaxRetries
	} else {
		cfg, err := st.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		j.MaxRetries = cfg.MaxRetries
	}

	if p.RunAt != "" {
		t, err := time.Parse(time.RFC3339, p.RunAt)
		if err != nil {
			return nil, fmt.Errorf("%w: run_at must be RFC3339: %v", engine.ErrInvalidPayload, err)
		}
		j.RunAt = &t
	}

	return j, nil
}

func init() {
	enqueueCmd.Flags().IntVar(&enqueuePriority, "priority", 0, "Dispatch priority, higher goes first")
	enqueueCmd.Flags().IntVar(&enqueueMaxRetries, "max-retries", 0, "Override the configured default max retries")
	enqueueCmd.Flags().IntVar(&enqueueTimeout, "timeout", engine.DefaultTimeoutSeconds, "Per-job execution deadline in seconds")
	enqueueCmd.Flags().StringVar(&enqueueRunAt, "run-at", "", "Earliest eligibility, RFC3339 (e.g. 2026-01-01T00:00:00Z)")
	enqueueCmd.Flags().BoolVar(&enqueueFromStdin, "from-stdin", false, "Read line-delimited JSON job documents from stdin instead of positional args")
	rootCmd.AddCommand(enqueueCmd)
}
