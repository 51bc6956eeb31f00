package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/notification-service/internal/domain"
	"github.com/spec-kit/notification-service/internal/mail"
	"github.com/spec-kit/notification-service/internal/storage"
)

// Recorder receives every completed dispatch summary.
type Recorder interface {
	RecordDispatch(summary domain.DispatchSummary)
}

// DefaultSendTimeout bounds a transport check or a single send when no
// timeout is configured.
const DefaultSendTimeout = 30 * time.Second

// DispatcherDependencies wires the dispatcher.
type DispatcherDependencies struct {
	Transport      mail.Transport
	Composer       *Composer
	Attachments    storage.AttachmentStore
	Recorder       Recorder
	Logger         *zap.Logger
	MaxConcurrency int
	SendTimeout    time.Duration
}

// Dispatcher fans one notification out to many recipients. Sends run
// concurrently and independently; Dispatch returns once all have settled.
//
// There is no deadline for the whole pass beyond the caller's context. The
// transport check and each send are bounded by SendTimeout, which falls back
// to DefaultSendTimeout when unset.
type Dispatcher struct {
	transport   mail.Transport
	composer    *Composer
	attachments storage.AttachmentStore
	recorder    Recorder
	logger      *zap.Logger
	limit       int
	sendTimeout time.Duration
	now         func() time.Time
}

// NewDispatcher constructs the dispatcher.
func NewDispatcher(deps DispatcherDependencies) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := deps.MaxConcurrency
	if limit <= 0 {
		limit = -1
	}
	sendTimeout := deps.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{
		transport:   deps.Transport,
		composer:    deps.Composer,
		attachments: deps.Attachments,
		recorder:    deps.Recorder,
		logger:      logger,
		limit:       limit,
		sendTimeout: sendTimeout,
		now:         time.Now,
	}
}

// sendResult is the outcome of one delivery attempt.
type sendResult struct {
	email string
	err   error
}

// Dispatch sends n to every recipient and summarizes the outcome. It never
// returns an error: transport setup failure and per-recipient failures are
// both reported in the summary.
func (d *Dispatcher) Dispatch(ctx context.Context, n domain.Notification, departmentName string, recipients []Recipient) domain.DispatchSummary {
	summary := domain.DispatchSummary{
		NotificationID:  n.ID,
		TotalAttempted:  len(recipients),
		FailedAddresses: []string{},
		DispatchedAt:    d.now(),
	}
	if len(recipients) == 0 {
		d.logger.Info("no eligible recipients; dispatch skipped", zap.String("notification_id", n.ID))
		return summary
	}
	defer func() {
		if d.recorder != nil {
			d.recorder.RecordDispatch(summary)
		}
	}()

	if err := d.verify(ctx); err != nil {
		d.logger.Error("mail transport unavailable", zap.String("notification_id", n.ID), zap.Error(err))
		failAll(&summary, recipients, err)
		return summary
	}

	rendered, err := d.composer.Render(n, departmentName, d.loadAttachment(ctx, n))
	if err != nil {
		d.logger.Error("compose notification email", zap.String("notification_id", n.ID), zap.Error(err))
		failAll(&summary, recipients, err)
		return summary
	}

	results := make([]sendResult, len(recipients))
	var g errgroup.Group
	g.SetLimit(d.limit)
	for i, r := range recipients {
		g.Go(func() error {
			results[i] = sendResult{email: r.Email, err: d.send(ctx, rendered, r)}
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.err != nil {
			summary.Failed++
			summary.FailedAddresses = append(summary.FailedAddresses, res.email)
			d.logger.Warn("notification email failed",
				zap.String("notification_id", n.ID),
				zap.String("email", res.email),
				zap.Error(res.err))
			continue
		}
		summary.Successful++
	}

	d.logger.Info("notification dispatch complete",
		zap.String("notification_id", n.ID),
		zap.Int("total", summary.TotalAttempted),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed))
	return summary
}

// failAll reports a whole-dispatch failure: nothing was sent.
func failAll(summary *domain.DispatchSummary, recipients []Recipient, err error) {
	summary.Successful = 0
	summary.Failed = len(recipients)
	summary.TransportError = err.Error()
	for _, r := range recipients {
		summary.FailedAddresses = append(summary.FailedAddresses, r.Email)
	}
}

func (d *Dispatcher) verify(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return d.transport.Verify(ctx)
}

// send delivers one message. A panic in the transport is reported as a failure
// of this recipient only.
func (d *Dispatcher) send(ctx context.Context, rendered Rendered, r Recipient) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("send panicked: %v", p)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return d.transport.Send(ctx, d.composer.Message(rendered, r))
}

// loadAttachment reads the notification's file once for all recipients. A
// missing file degrades to a link-only email.
func (d *Dispatcher) loadAttachment(ctx context.Context, n domain.Notification) *mail.Attachment {
	if !n.HasAttachment() || d.attachments == nil {
		return nil
	}
	blob, err := d.attachments.Open(ctx, n.AttachmentRef)
	if err != nil {
		d.logger.Warn("attachment unavailable; sending link only",
			zap.String("notification_id", n.ID),
			zap.String("ref", n.AttachmentRef),
			zap.Error(err))
		return nil
	}
	return &mail.Attachment{
		Filename:    storage.FileName(n.AttachmentRef),
		ContentType: blob.ContentType,
		Content:     blob.Content,
	}
}
