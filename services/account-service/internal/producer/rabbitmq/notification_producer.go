package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"AccountPlatform/pkg/logger"
	"AccountPlatform/pkg/metrics"
	"AccountPlatform/pkg/rabbitmq"
	"AccountPlatform/services/account-service/internal/domain"
)

// Publisher публикует тело сообщения в брокер
type Publisher interface {
	Publish(ctx context.Context, body []byte, options ...rabbitmq.PublishOption) error
}

// Observer принимает статусы отправки уведомлений
type Observer interface {
	ObserveNotification(status string)
}

// NotificationProducer ставит уведомления об активации в очередь.
// Ждет только подтверждения брокера, доставку потребителю не отслеживает.
type NotificationProducer struct {
	publisher Publisher
	logger    logger.Logger
	observer  Observer
}

// NewNotificationProducer создает новый producer уведомлений
func NewNotificationProducer(publisher Publisher, log logger.Logger, observer Observer) *NotificationProducer {
	if log == nil {
		log = logger.NewNop()
	}
	return &NotificationProducer{
		publisher: publisher,
		logger:    log,
		observer:  observer,
	}
}

// Enqueue публикует уведомление {email, message}
func (p *NotificationProducer) Enqueue(ctx context.Context, notification domain.Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	var options []rabbitmq.PublishOption
	if traceID := logger.TraceID(ctx); traceID != "" {
		options = append(options, rabbitmq.WithHeaders(amqp.Table{"trace_id": traceID}))
	}

	if err := p.publisher.Publish(ctx, body, options...); err != nil {
		p.observe(metrics.NotificationFailed)
		p.logger.Error("Failed to enqueue notification",
			logger.CtxField(ctx),
			logger.String("email", notification.Email),
			logger.Error(err),
		)
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	p.observe(metrics.NotificationPublished)
	p.logger.Debug("Notification enqueued",
		logger.CtxField(ctx),
		logger.String("email", notification.Email),
	)
	return nil
}

func (p *NotificationProducer) observe(status string) {
	if p.observer != nil {
		p.observer.ObserveNotification(status)
	}
}
