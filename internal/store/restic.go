package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const groupTagPrefix = "group="

// commandRunner executes one restic invocation. Tests substitute a fake
// so no binary is needed.
type commandRunner func(ctx context.Context, env []string, args ...string) (stdout, stderr []byte, err error)

// ResticStore drives the restic binary. Create writes into Repo; when
// RemoteRepo is set, Flush copies the snapshot there, which makes the
// upload step a real remote push instead of a no-op.
type ResticStore struct {
	bin        string
	repo       string
	remoteRepo string
	password   string
	run        commandRunner
}

func NewResticStore(repo, remoteRepo, password string) (*ResticStore, error) {
	bin, err := exec.LookPath("restic")
	if err != nil {
		return nil, fmt.Errorf("restic binary not found in PATH: %w", err)
	}
	return &ResticStore{
		bin:        bin,
		repo:       repo,
		remoteRepo: remoteRepo,
		password:   password,
		run:        execRunner(bin),
	}, nil
}

func execRunner(bin string) commandRunner {
	return func(ctx context.Context, env []string, args ...string) ([]byte, []byte, error) {
		cmd := exec.CommandContext(ctx, bin, args...)
		cmd.Env = env
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err := cmd.Run()
		return stdout.Bytes(), stderr.Bytes(), err
	}
}

func (s *ResticStore) env() []string {
	return []string{
		"RESTIC_REPOSITORY=" + s.repo,
		"RESTIC_PASSWORD=" + s.password,
	}
}

func (s *ResticStore) copyEnv() []string {
	return []string{
		"RESTIC_REPOSITORY=" + s.remoteRepo,
		"RESTIC_PASSWORD=" + s.password,
		"RESTIC_FROM_REPOSITORY=" + s.repo,
		"RESTIC_FROM_PASSWORD=" + s.password,
	}
}

// Verify probes the repository and initializes it when missing, so a
// fresh repo does not fail preflight.
func (s *ResticStore) Verify(ctx context.Context) error {
	_, stderr, err := s.run(ctx, s.env(), "snapshots", "--json", "--latest", "1")
	if err == nil {
		return nil
	}
	if isNotRepository(string(stderr)) {
		if _, initStderr, initErr := s.run(ctx, s.env(), "init"); initErr != nil {
			return fmt.Errorf("restic: init repository: %w: %s", initErr, initStderr)
		}
		return nil
	}
	return classify(fmt.Errorf("restic: probe repository: %w: %s", err, stderr))
}

func (s *ResticStore) Create(ctx context.Context, group string, paths []string, tags []string) (Snapshot, error) {
	args := []string{"backup", "--json", "--tag", groupTagPrefix + group}
	for _, tag := range tags {
		args = append(args, "--tag", tag)
	}
	args = append(args, paths...)

	stdout, stderr, err := s.run(ctx, s.env(), args...)
	if err != nil {
		return Snapshot{}, classify(fmt.Errorf("restic: backup %s: %w: %s", group, err, stderr))
	}

	summary, err := parseBackupSummary(stdout)
	if err != nil {
		return Snapshot{}, fmt.Errorf("restic: backup %s: %w", group, err)
	}

	return Snapshot{
		ID:        SnapshotID(summary.SnapshotID),
		GroupName: group,
		CreatedAt: time.Now().UTC(),
		SizeBytes: summary.TotalBytesProcessed,
		Tags:      tags,
	}, nil
}

func (s *ResticStore) Flush(ctx context.Context, id SnapshotID) error {
	if s.remoteRepo == "" {
		return nil
	}
	if _, stderr, err := s.run(ctx, s.copyEnv(), "copy", string(id)); err != nil {
		return classify(fmt.Errorf("restic: copy %s to remote: %w: %s", id, err, stderr))
	}
	return nil
}

func (s *ResticStore) List(ctx context.Context, group string) ([]Snapshot, error) {
	stdout, stderr, err := s.run(ctx, s.env(), "snapshots", "--json", "--tag", groupTagPrefix+group)
	if err != nil {
		return nil, classify(fmt.Errorf("restic: list snapshots: %w: %s", err, stderr))
	}

	var raw []resticSnapshot
	if err := json.Unmarshal(stdout, &raw); err != nil {
		return nil, fmt.Errorf("restic: parse snapshots: %w", err)
	}

	snapshots := make([]Snapshot, 0, len(raw))
	for _, r := range raw {
		snapshots = append(snapshots, r.toSnapshot())
	}
	SortNewestFirst(snapshots)
	return snapshots, nil
}

func (s *ResticStore) Restore(ctx context.Context, id SnapshotID, target string) error {
	args := []string{"restore", string(id), "--target", target, "--overwrite", "always", "--delete"}
	if _, stderr, err := s.run(ctx, s.env(), args...); err != nil {
		if isNoMatchingID(string(stderr)) {
			return fmt.Errorf("restic: restore %s: %w", id, ErrSnapshotNotFound)
		}
		return classify(fmt.Errorf("restic: restore %s: %w: %s", id, err, stderr))
	}
	return nil
}

func (s *ResticStore) Forget(ctx context.Context, ids []SnapshotID) error {
	if len(ids) == 0 {
		return nil
	}
	args := []string{"forget", "--prune"}
	for _, id := range ids {
		args = append(args, string(id))
	}
	if _, stderr, err := s.run(ctx, s.env(), args...); err != nil {
		return classify(fmt.Errorf("restic: forget snapshots: %w: %s", err, stderr))
	}
	return nil
}

// resticSnapshot mirrors `restic snapshots --json` output.
type resticSnapshot struct {
	ID      string    `json:"id"`
	ShortID string    `json:"short_id"`
	Time    time.Time `json:"time"`
	Tags    []string  `json:"tags"`
	Paths   []string  `json:"paths"`
	Summary *struct {
		TotalBytesProcessed int64 `json:"total_bytes_processed"`
	} `json:"summary"`
}

func (r resticSnapshot) toSnapshot() Snapshot {
	snap := Snapshot{
		ID:        SnapshotID(r.ID),
		CreatedAt: r.Time,
	}
	for _, tag := range r.Tags {
		if strings.HasPrefix(tag, groupTagPrefix) {
			snap.GroupName = strings.TrimPrefix(tag, groupTagPrefix)
			continue
		}
		snap.Tags = append(snap.Tags, tag)
	}
	if r.Summary != nil {
		snap.SizeBytes = r.Summary.TotalBytesProcessed
	}
	return snap
}

// backupSummary is the final line of `restic backup --json`.
type backupSummary struct {
	MessageType         string `json:"message_type"`
	SnapshotID          string `json:"snapshot_id"`
	TotalBytesProcessed int64  `json:"total_bytes_processed"`
}

func parseBackupSummary(stdout []byte) (backupSummary, error) {
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var summary backupSummary
	found := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg backupSummary
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.MessageType == "summary" {
			summary = msg
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return backupSummary{}, fmt.Errorf("read backup output: %w", err)
	}
	if !found || summary.SnapshotID == "" {
		return backupSummary{}, fmt.Errorf("no summary in backup output")
	}
	return summary, nil
}

func isNotRepository(stderr string) bool {
	return strings.Contains(stderr, "Is there a repository at the following location?") ||
		strings.Contains(stderr, "unable to open config file")
}

func isNoMatchingID(stderr string) bool {
	return strings.Contains(stderr, "no matching ID found") ||
		strings.Contains(stderr, "no snapshot found")
}

// classify tags network-shaped restic failures as transient so the
// upload step can retry them with backoff.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"i/o timeout",
		"timeout exceeded",
		"temporarily unavailable",
		"network is unreachable",
		"tls handshake",
		"no route to host",
	} {
		if strings.Contains(msg, marker) {
			return Transient(err)
		}
	}
	return err
}
