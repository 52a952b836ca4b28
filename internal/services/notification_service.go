package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/domain/notification"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
	"github.com/minutehq/usagewatch/internal/pkg/metrics"
)

// NotificationService routes alerts to delivery channels according to the
// persisted severity policy table. Immediate alerts fan out to all policy
// channels concurrently; batched alerts accumulate per window and go out as
// one digest per organization at flush time.
type NotificationService struct {
	policies       notification.Repository
	alertService   alert.Service
	senders        map[notification.Channel]notification.Sender
	channelTimeout time.Duration
	digestTopN     int
	logger         *logger.Logger

	mu     sync.Mutex
	queues map[time.Duration]*batchQueue
}

type batchEntry struct {
	alert    *alert.Alert
	channels []notification.Channel
}

// batchQueue holds one window's pending alerts. The window clock starts
// when the first alert lands in an empty queue.
type batchQueue struct {
	openedAt time.Time
	entries  []batchEntry
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	policies notification.Repository,
	alertService alert.Service,
	senders []notification.Sender,
	channelTimeout time.Duration,
	digestTopN int,
	log *logger.Logger,
) notification.Service {
	byChannel := make(map[notification.Channel]notification.Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	if channelTimeout <= 0 {
		channelTimeout = 10 * time.Second
	}
	if digestTopN <= 0 {
		digestTopN = 5
	}
	return &NotificationService{
		policies:       policies,
		alertService:   alertService,
		senders:        byChannel,
		channelTimeout: channelTimeout,
		digestTopN:     digestTopN,
		logger:         log,
		queues:         make(map[time.Duration]*batchQueue),
	}
}

// Dispatch routes one alert per its severity policy
func (s *NotificationService) Dispatch(ctx context.Context, a *alert.Alert) error {
	policy, err := s.policies.GetPolicy(ctx, a.Severity)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"alert_id": a.ID,
			"severity": a.Severity,
		}).ErrorWithErr(err, "Failed to resolve notification policy")
		return errors.DatabaseError("failed to resolve notification policy", err)
	}
	if policy == nil || policy.Cadence == notification.CadenceNone || len(policy.Channels) == 0 {
		s.logger.WithFields(map[string]interface{}{
			"alert_id": a.ID,
			"severity": a.Severity,
		}).Debug("No notification routing for severity")
		return nil
	}

	switch policy.Cadence {
	case notification.CadenceImmediate:
		sent := s.sendToChannels(ctx, policy.Channels, s.alertMessage(a))
		s.recordDelivery(ctx, a, sent)
		return nil
	case notification.CadenceBatched:
		s.enqueue(policy.BatchWindow, a, policy.Channels)
		return nil
	default:
		return errors.ValidationError(fmt.Sprintf("unknown cadence %q for severity %s", policy.Cadence, a.Severity), nil)
	}
}

// FlushDue flushes every batch window whose deadline has passed as of now
func (s *NotificationService) FlushDue(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	var due []time.Duration
	for window, q := range s.queues {
		if len(q.entries) > 0 && !now.Before(q.openedAt.Add(window)) {
			due = append(due, window)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })

	for _, window := range due {
		if err := s.FlushWindow(ctx, window); err != nil {
			return err
		}
	}
	return nil
}

// FlushWindow drains one batch window, composing a single digest per
// organization and sending it once per channel
func (s *NotificationService) FlushWindow(ctx context.Context, window time.Duration) error {
	s.mu.Lock()
	q, ok := s.queues[window]
	if !ok || len(q.entries) == 0 {
		s.mu.Unlock()
		return nil
	}
	entries := q.entries
	q.entries = nil
	s.mu.Unlock()

	metrics.SetBatchPending(window.String(), 0)
	metrics.RecordBatchFlush(window.String())

	byOrg := make(map[string][]batchEntry)
	var orgIDs []string
	for _, e := range entries {
		if _, seen := byOrg[e.alert.OrganizationID]; !seen {
			orgIDs = append(orgIDs, e.alert.OrganizationID)
		}
		byOrg[e.alert.OrganizationID] = append(byOrg[e.alert.OrganizationID], e)
	}

	for _, orgID := range orgIDs {
		group := byOrg[orgID]
		digest := s.composeDigest(orgID, window, group)

		sent := s.sendToChannels(ctx, groupChannels(group), s.digestMessage(digest))
		sentSet := make(map[string]bool, len(sent))
		for _, ch := range sent {
			sentSet[ch] = true
		}

		for _, e := range group {
			var delivered []string
			for _, ch := range e.channels {
				if sentSet[string(ch)] {
					delivered = append(delivered, string(ch))
				}
			}
			s.recordDelivery(ctx, e.alert, delivered)
		}

		s.logger.WithFields(map[string]interface{}{
			"organization_id": orgID,
			"window":          window.String(),
			"alerts":          digest.TotalAlerts,
			"channels":        sent,
		}).Info("Batch digest flushed")
	}
	return nil
}

// FlushAll drains every batch window regardless of deadline
func (s *NotificationService) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	var windows []time.Duration
	for window, q := range s.queues {
		if len(q.entries) > 0 {
			windows = append(windows, window)
		}
	}
	s.mu.Unlock()

	sort.Slice(windows, func(i, j int) bool { return windows[i] < windows[j] })

	for _, window := range windows {
		if err := s.FlushWindow(ctx, window); err != nil {
			return err
		}
	}
	return nil
}

// PendingCount reports alerts queued for a batch window
func (s *NotificationService) PendingCount(window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[window]; ok {
		return len(q.entries)
	}
	return 0
}

// GetPolicies retrieves the severity routing table
func (s *NotificationService) GetPolicies(ctx context.Context) ([]*notification.Policy, error) {
	policies, err := s.policies.GetPolicies(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to get notification policies")
		return nil, err
	}
	return policies, nil
}

// UpdatePolicy validates and persists one severity's routing row
func (s *NotificationService) UpdatePolicy(ctx context.Context, policy *notification.Policy) error {
	if !policy.Severity.IsValid() {
		return errors.ValidationError(fmt.Sprintf("invalid severity: %s", policy.Severity), nil)
	}
	if !policy.Cadence.IsValid() {
		return errors.ValidationError(fmt.Sprintf("invalid cadence: %s", policy.Cadence), nil)
	}
	for _, ch := range policy.Channels {
		if !ch.IsValid() {
			return errors.ValidationError(fmt.Sprintf("invalid channel: %s", ch), nil)
		}
	}
	if policy.Cadence == notification.CadenceBatched && policy.BatchWindow <= 0 {
		return errors.ValidationError("batched cadence requires a positive batch window", nil)
	}
	if policy.Cadence != notification.CadenceBatched {
		policy.BatchWindow = 0
	}
	policy.UpdatedAt = time.Now().UTC()

	if err := s.policies.UpsertPolicy(ctx, policy); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"severity": policy.Severity,
		}).ErrorWithErr(err, "Failed to update notification policy")
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"severity": policy.Severity,
		"cadence":  policy.Cadence,
		"channels": policy.Channels,
	}).Info("Notification policy updated")
	return nil
}

// EnsurePolicies inserts defaults for severities missing from the persisted
// table; existing rows win
func (s *NotificationService) EnsurePolicies(ctx context.Context, defaults []*notification.Policy) error {
	existing, err := s.policies.GetPolicies(ctx)
	if err != nil {
		return err
	}
	present := make(map[anomaly.Severity]bool, len(existing))
	for _, p := range existing {
		present[p.Severity] = true
	}
	for _, p := range defaults {
		if present[p.Severity] {
			continue
		}
		p.UpdatedAt = time.Now().UTC()
		if err := s.policies.UpsertPolicy(ctx, p); err != nil {
			return err
		}
		s.logger.WithFields(map[string]interface{}{
			"severity": p.Severity,
			"cadence":  p.Cadence,
		}).Info("Notification policy seeded")
	}
	return nil
}

// sendToChannels fans the message out to every channel concurrently, each
// send bounded by the channel timeout. A failing channel never blocks the
// others; the returned slice holds the channels that succeeded, in fixed
// channel order.
func (s *NotificationService) sendToChannels(ctx context.Context, channels []notification.Channel, msg *notification.Message) []string {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent []string
	)
	for _, ch := range channels {
		sender, ok := s.senders[ch]
		if !ok {
			s.logger.WithFields(map[string]interface{}{
				"channel":         ch,
				"organization_id": msg.OrganizationID,
			}).Warn("No sender registered for channel, skipping")
			continue
		}
		wg.Add(1)
		go func(sender notification.Sender) {
			defer wg.Done()
			start := time.Now()
			sendCtx, cancel := context.WithTimeout(ctx, s.channelTimeout)
			defer cancel()
			if err := sender.Send(sendCtx, msg); err != nil {
				metrics.RecordNotification(string(sender.Channel()), "failed", time.Since(start))
				s.logger.WithFields(map[string]interface{}{
					"channel":         sender.Channel(),
					"organization_id": msg.OrganizationID,
				}).ErrorWithErr(err, "Notification delivery failed")
				return
			}
			metrics.RecordNotification(string(sender.Channel()), "sent", time.Since(start))
			mu.Lock()
			sent = append(sent, string(sender.Channel()))
			mu.Unlock()
		}(sender)
	}
	wg.Wait()

	sort.Slice(sent, func(i, j int) bool {
		return channelRank(notification.Channel(sent[i])) < channelRank(notification.Channel(sent[j]))
	})
	return sent
}

// recordDelivery appends the successfully delivered channels to the alert
func (s *NotificationService) recordDelivery(ctx context.Context, a *alert.Alert, sent []string) {
	if len(sent) == 0 {
		return
	}
	if err := s.alertService.MarkNotified(ctx, a.ID, sent); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"alert_id": a.ID,
			"channels": sent,
		}).ErrorWithErr(err, "Failed to record delivered channels on alert")
	}
}

// enqueue adds an alert to its window's batch
func (s *NotificationService) enqueue(window time.Duration, a *alert.Alert, channels []notification.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[window]
	if !ok {
		q = &batchQueue{}
		s.queues[window] = q
	}
	if len(q.entries) == 0 {
		q.openedAt = time.Now().UTC()
	}
	q.entries = append(q.entries, batchEntry{alert: a, channels: channels})
	metrics.SetBatchPending(window.String(), float64(len(q.entries)))

	s.logger.WithFields(map[string]interface{}{
		"alert_id": a.ID,
		"window":   window.String(),
		"pending":  len(q.entries),
	}).Debug("Alert queued for batch notification")
}

// composeDigest summarizes one organization's flush group: counts by
// severity plus the top alert titles, highest severity first and newest
// first within a severity
func (s *NotificationService) composeDigest(orgID string, window time.Duration, group []batchEntry) *notification.Digest {
	digest := &notification.Digest{
		OrganizationID:  orgID,
		Window:          window,
		TotalAlerts:     len(group),
		CountBySeverity: make(map[anomaly.Severity]int),
		FlushedAt:       time.Now().UTC(),
	}

	sorted := make([]*alert.Alert, 0, len(group))
	for _, e := range group {
		digest.CountBySeverity[e.alert.Severity]++
		sorted = append(sorted, e.alert)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Severity.Rank() != sorted[j].Severity.Rank() {
			return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	for _, a := range sorted {
		if len(digest.TopTitles) >= s.digestTopN {
			break
		}
		digest.TopTitles = append(digest.TopTitles, a.Title)
	}
	return digest
}

// alertMessage renders the channel-neutral payload for one alert
func (s *NotificationService) alertMessage(a *alert.Alert) *notification.Message {
	return &notification.Message{
		OrganizationID: a.OrganizationID,
		Subject:        fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.Title),
		Body:           a.Description,
		Severity:       a.Severity,
		Alert:          a,
	}
}

// digestMessage renders the channel-neutral payload for a flush digest
func (s *NotificationService) digestMessage(d *notification.Digest) *notification.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%d usage alert(s) in the last %s.\n", d.TotalAlerts, d.Window)
	severities := anomaly.Severities()
	for i := len(severities) - 1; i >= 0; i-- {
		if n := d.CountBySeverity[severities[i]]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", severities[i], n)
		}
	}
	if len(d.TopTitles) > 0 {
		b.WriteString("Top alerts:\n")
		for _, title := range d.TopTitles {
			fmt.Fprintf(&b, "- %s\n", title)
		}
	}
	return &notification.Message{
		OrganizationID: d.OrganizationID,
		Subject:        fmt.Sprintf("Usage alert digest: %d alert(s)", d.TotalAlerts),
		Body:           b.String(),
		Severity:       digestSeverity(d),
		Digest:         d,
	}
}

// digestSeverity is the highest severity present in the digest; chat
// formatting keys off it
func digestSeverity(d *notification.Digest) anomaly.Severity {
	severities := anomaly.Severities()
	for i := len(severities) - 1; i >= 0; i-- {
		if d.CountBySeverity[severities[i]] > 0 {
			return severities[i]
		}
	}
	return anomaly.SeverityLow
}

// groupChannels is the union of the group's policy channels in fixed
// channel order
func groupChannels(group []batchEntry) []notification.Channel {
	seen := make(map[notification.Channel]bool)
	for _, e := range group {
		for _, ch := range e.channels {
			seen[ch] = true
		}
	}
	var channels []notification.Channel
	for _, ch := range notification.AllChannels() {
		if seen[ch] {
			channels = append(channels, ch)
		}
	}
	return channels
}

func channelRank(c notification.Channel) int {
	for i, ch := range notification.AllChannels() {
		if ch == c {
			return i
		}
	}
	return len(notification.AllChannels())
}
