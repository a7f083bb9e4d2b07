package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/file-intake/internal/core/domain"
	"github.com/kirillkom/file-intake/internal/core/ports"
	"github.com/kirillkom/file-intake/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

const DefaultQueueGroup = "intake-workers"

// Queue publishes intake tasks to a NATS subject and relays them from that
// subject into a local task queue on the worker side.
type Queue struct {
	conn       *nats.Conn
	subject    string
	queueGroup string
	executor   *resilience.Executor
	logger     *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, errors.New("nats subject is required")
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	queueGroup := strings.TrimSpace(options.QueueGroup)
	if queueGroup == "" {
		queueGroup = DefaultQueueGroup
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("file-intake"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:       conn,
		subject:    subject,
		queueGroup: queueGroup,
		executor:   options.ResilienceExecutor,
		logger:     logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Enqueue publishes the task. Delivery order across subscribers follows
// the subject order; each task reaches exactly one member of the group.
func (q *Queue) Enqueue(ctx context.Context, task domain.IntakeTask) error {
	payload, err := encodeTask(task)
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if q.conn.IsClosed() {
			return nats.ErrConnectionClosed
		}
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, publishOperation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return domain.WrapError(domain.ErrQueueClosed, "nats publish", err)
		}
		return resilience.WrapTemporary("nats publish", err, classifyNATSError)
	}
	return nil
}

// Relay subscribes to the subject and forwards every decoded task into
// sink until ctx ends, then drains the subscription.
func (q *Queue) Relay(ctx context.Context, sink ports.TaskSink) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		task, err := decodeTask(msg.Data)
		if err != nil {
			q.logger.Warn("nats_task_dropped", "error", err, "payload", truncate(string(msg.Data), 256))
			return
		}
		if err := sink.Enqueue(ctx, task); err != nil {
			q.logger.Error("nats_relay_failed", "file_id", task.FileID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	q.logger.Info("nats_relay_started", "subject", q.subject, "queue_group", q.queueGroup)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeTask(task domain.IntakeTask) ([]byte, error) {
	if strings.TrimSpace(task.FileID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode intake task", errors.New("file id is required"))
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("encode intake task: %w", err)
	}
	return payload, nil
}

// decodeTask accepts the JSON envelope and, for producers that publish
// only an id, a bare file id.
func decodeTask(data []byte) (domain.IntakeTask, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return domain.IntakeTask{}, domain.WrapError(domain.ErrInvalidInput, "decode intake task", errors.New("empty payload"))
	}
	if !strings.HasPrefix(raw, "{") {
		return domain.NewIntakeTask(raw), nil
	}
	var task domain.IntakeTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return domain.IntakeTask{}, domain.WrapError(domain.ErrInvalidInput, "decode intake task", err)
	}
	task.FileID = strings.TrimSpace(task.FileID)
	if task.FileID == "" {
		return domain.IntakeTask{}, domain.WrapError(domain.ErrInvalidInput, "decode intake task", errors.New("file id is required"))
	}
	if task.RetryCounter < 0 {
		task.RetryCounter = 0
	}
	return task, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
