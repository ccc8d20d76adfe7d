// Package remote mirrors the destination tree to object storage around a
// full run.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/tommy/internal/config"
	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/task"
)

// Syncer pulls the remote copy before a run and pushes the result after it.
type Syncer interface {
	Pull(ctx context.Context) error
	Push(ctx context.Context) error
}

// S3Syncer shells out to `<command> s3 sync`.
type S3Syncer struct {
	Command string
	Bucket  string
	Dir     string
	Runner  task.Runner
	Logger  *slog.Logger
}

// New returns the syncer described by cfg, or nil when remote sync is off.
func New(cfg config.RemoteConfig, dir string, r task.Runner, log *slog.Logger) Syncer {
	if !cfg.Enabled {
		return nil
	}
	return &S3Syncer{Command: cfg.Command, Bucket: cfg.Bucket, Dir: dir, Runner: r, Logger: log}
}

// URL returns the bucket as an s3:// URL.
func (s *S3Syncer) URL() string {
	if strings.HasPrefix(s.Bucket, "s3://") {
		return s.Bucket
	}
	return "s3://" + s.Bucket
}

// Pull copies the bucket into the destination root.
func (s *S3Syncer) Pull(ctx context.Context) error {
	return s.sync(ctx, "pull", s.URL(), s.Dir)
}

// Push copies the destination root into the bucket.
func (s *S3Syncer) Push(ctx context.Context) error {
	return s.sync(ctx, "push", s.Dir, s.URL())
}

func (s *S3Syncer) sync(ctx context.Context, op, from, to string) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	command := s.Command
	if command == "" {
		command = "aws"
	}

	log.Info("remote sync", "op", op, "from", from, "to", to)
	if err := s.Runner.Run(ctx, command, "s3", "sync", from, to); err != nil {
		return &model.Error{
			Code:    model.ErrCodeRemote,
			Message: fmt.Sprintf("%s %s failed", op, s.URL()),
			Path:    s.Dir,
			Err:     err,
		}
	}
	return nil
}
