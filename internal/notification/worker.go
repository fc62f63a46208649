package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"fieldops-scheduler-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubjectResolver maps an event's opaque subject id to a human-readable
// label for notification text. Display only; never part of validation.
type SubjectResolver interface {
	Label(ctx context.Context, subjectID string) string
}

// EchoResolver is the default resolver: the subject id is its own label.
type EchoResolver struct{}

// Label returns the subject id unchanged.
func (EchoResolver) Label(_ context.Context, subjectID string) string {
	return subjectID
}

// commitJob is one committed schedule change to fan out.
type commitJob struct {
	event       model.ScheduledEvent
	resourceIDs []string
}

// WorkerPool manages a pool of workers for sending notifications about
// committed schedule changes.
type WorkerPool struct {
	size     int
	jobs     chan commitJob
	db       *gorm.DB
	webpush  *webpush.Options
	sender   NotificationSender
	subjects SubjectResolver
}

// NewWorkerPool creates a new worker pool. resolver may be nil, in which
// case subject ids are used verbatim.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, resolver SubjectResolver) *WorkerPool {
	if resolver == nil {
		resolver = EchoResolver{}
	}
	return &WorkerPool{
		size:     size,
		jobs:     make(chan commitJob, 64),
		db:       db,
		webpush:  webpushOptions,
		sender:   &WebPushSender{}, // Use the real sender by default
		subjects: resolver,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			log.Printf("Worker %d processing event %s", id, job.event.ID)
			wp.sendNotificationsForEvent(ctx, job)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// EventCommitted queues a committed change for delivery. It implements the
// engine's Notifier contract: fire-and-forget, so a full queue drops the
// notification rather than stalling the commit path.
func (wp *WorkerPool) EventCommitted(event *model.ScheduledEvent, resourceIDs []string) {
	job := commitJob{event: *event, resourceIDs: resourceIDs}
	select {
	case wp.jobs <- job:
	default:
		log.Printf("Notification queue full; dropping notification for event %s", event.ID)
	}
}

// Jobs returns the number of queued jobs for testing.
func (wp *WorkerPool) Jobs() int {
	return len(wp.jobs)
}

// sendNotificationsForEvent fetches subscriptions for the affected
// resources and sends one notification per subscriber.
func (wp *WorkerPool) sendNotificationsForEvent(ctx context.Context, job commitJob) {
	if len(job.resourceIDs) == 0 {
		return
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Distinct("push_subscriptions.*").
		Joins("JOIN subscription_resource_mapping srm ON srm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("srm.resource_id IN ?", job.resourceIDs).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for event %s: %v", job.event.ID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for event %s", len(subscriptions), job.event.ID)

	label := wp.subjects.Label(ctx, job.event.SubjectID)
	message := fmt.Sprintf("Schedule updated for %s: %s – %s",
		label,
		job.event.StartAt.Format("Mon 15:04"),
		job.event.EndAt.Format("15:04"))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	// Manually construct the webpush.Subscription object
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == 410 {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
