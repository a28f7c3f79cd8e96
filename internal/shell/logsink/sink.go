// Package logsink persists deployment log lines and streams them live.
package logsink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/artpar/launchpad/internal/core/deployment"
	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/artpar/launchpad/internal/shell/notify"
)

// Appender is the persistence the sink needs.
type Appender interface {
	AppendBuildLog(ctx context.Context, entry *domain.BuildLogEntry) error
}

// Sink hands out per-deployment logs.
type Sink struct {
	store     Appender
	publisher notify.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewSink creates a Sink.
func NewSink(store Appender, publisher notify.Publisher, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "logsink"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// For returns the log of one deployment. A DeploymentLog is safe for
// concurrent use but is expected to be owned by a single pipeline.
func (s *Sink) For(deploymentID string) *DeploymentLog {
	return &DeploymentLog{
		sink:         s,
		deploymentID: deploymentID,
		topic:        deployment.DeploymentTopic(deploymentID),
	}
}

// DeploymentLog appends entries for one deployment.
type DeploymentLog struct {
	sink         *Sink
	deploymentID string
	topic        string

	mu   sync.Mutex
	last time.Time
}

// Append persists one entry and then publishes it on the deployment topic.
// Timestamps never go backwards within a deployment.
func (l *DeploymentLog) Append(ctx context.Context, level domain.LogLevel, message string) (*domain.BuildLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.sink.now()
	if ts.Before(l.last) {
		ts = l.last
	}

	entry := &domain.BuildLogEntry{
		DeploymentID: l.deploymentID,
		Level:        level,
		Message:      message,
		CreatedAt:    ts,
	}
	if err := l.sink.store.AppendBuildLog(ctx, entry); err != nil {
		return nil, err
	}
	l.last = ts

	if l.sink.publisher != nil {
		l.sink.publisher.Publish(l.topic, notify.Event{
			Type:      notify.EventLog,
			Data:      entry,
			Timestamp: ts,
		})
	}
	return entry, nil
}

func (l *DeploymentLog) write(ctx context.Context, level domain.LogLevel, message string) {
	if _, err := l.Append(ctx, level, message); err != nil {
		l.sink.logger.Error("failed to append log entry",
			"deployment_id", l.deploymentID,
			"level", level,
			"error", err,
		)
	}
}

// Info appends an info entry. Persistence failures are logged, not returned.
func (l *DeploymentLog) Info(ctx context.Context, message string) {
	l.write(ctx, domain.LogInfo, message)
}

// Warn appends a warning entry.
func (l *DeploymentLog) Warn(ctx context.Context, message string) {
	l.write(ctx, domain.LogWarning, message)
}

// Error appends an error entry.
func (l *DeploymentLog) Error(ctx context.Context, message string) {
	l.write(ctx, domain.LogError, message)
}
