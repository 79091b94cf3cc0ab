// Package notify records admin notifications and forwards them to the
// message broker. Broker delivery is best effort: a broker outage must
// never fail the request that triggered the notification.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tfsgroup/siteportal/internal/db"
	"github.com/tfsgroup/siteportal/internal/model"
)

const queueName = "admin.notifications"

// Event is the broker payload mirroring the stored notification row.
type Event struct {
	UserID    string  `json:"user_id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   *string `json:"message,omitempty"`
	RelatedID *string `json:"related_id,omitempty"`
}

type Notifier struct {
	store   *db.Store
	amqpURL string
}

// NewNotifier wires a notifier against the store. amqpURL may be empty,
// in which case notifications are stored but not published.
func NewNotifier(store *db.Store, amqpURL string) *Notifier {
	return &Notifier{store: store, amqpURL: amqpURL}
}

// NotifyAdmins stores one notification per admin user and publishes a
// single broker event. Storage errors are returned; publish errors are
// only logged.
func (n *Notifier) NotifyAdmins(ctx context.Context, typ, title string, message, relatedID *string) error {
	adminIDs, err := n.store.ListAdminUserIDs(ctx)
	if err != nil {
		return err
	}
	for _, adminID := range adminIDs {
		row := model.AdminNotification{UserID: adminID, Type: typ, Title: title, Message: message, RelatedID: relatedID}
		if _, err := n.store.CreateNotification(ctx, row); err != nil {
			return err
		}
		n.publish(ctx, Event{UserID: adminID, Type: typ, Title: title, Message: message, RelatedID: relatedID})
	}
	return nil
}

// Notify stores a notification for one user and publishes it.
func (n *Notifier) Notify(ctx context.Context, userID, typ, title string, message, relatedID *string) error {
	row := model.AdminNotification{UserID: userID, Type: typ, Title: title, Message: message, RelatedID: relatedID}
	if _, err := n.store.CreateNotification(ctx, row); err != nil {
		return err
	}
	n.publish(ctx, Event{UserID: userID, Type: typ, Title: title, Message: message, RelatedID: relatedID})
	return nil
}

func (n *Notifier) publish(ctx context.Context, event Event) {
	if n.amqpURL == "" {
		return
	}
	conn, err := amqp.Dial(n.amqpURL)
	if err != nil {
		log.Printf("notify: broker dial failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("notify: channel open failed: %v", err)
		return
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("notify: queue declare failed: %v", err)
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("notify: marshal event failed: %v", err)
		return
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Printf("notify: publish failed: %v", err)
	}
}
