package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/minutehq/usagewatch/internal/domain/alert"
	"github.com/minutehq/usagewatch/internal/domain/anomaly"
	"github.com/minutehq/usagewatch/internal/domain/notification"
	"github.com/minutehq/usagewatch/internal/domain/org"
	"github.com/minutehq/usagewatch/internal/domain/usage"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
)

// MockUsageRepository is a mock implementation of usage.Repository
type MockUsageRepository struct {
	Historical    []usage.DayModeUsage
	Hourly        [24]float64
	MonthUsage    map[usage.Mode]usage.MonthUsage
	Recent        []usage.Session
	LastHour      map[usage.Mode]float64
	Active        int
	HistoryError  error
	HourlyError   error
	MonthError    error
	ActivityError error
	LastHourError error
	ActiveError   error
}

func NewMockUsageRepository() *MockUsageRepository {
	return &MockUsageRepository{
		MonthUsage: make(map[usage.Mode]usage.MonthUsage),
		LastHour:   make(map[usage.Mode]float64),
	}
}

func (m *MockUsageRepository) GetHistoricalUsage(ctx context.Context, organizationID string, since time.Time) ([]usage.DayModeUsage, error) {
	if m.HistoryError != nil {
		return nil, m.HistoryError
	}
	var result []usage.DayModeUsage
	for _, d := range m.Historical {
		if !d.Day.Before(since) {
			result = append(result, d)
		}
	}
	return result, nil
}

func (m *MockUsageRepository) GetHourlyProfile(ctx context.Context, organizationID string, since time.Time) ([24]float64, error) {
	if m.HourlyError != nil {
		return [24]float64{}, m.HourlyError
	}
	return m.Hourly, nil
}

func (m *MockUsageRepository) GetCurrentMonthUsage(ctx context.Context, organizationID string) (map[usage.Mode]usage.MonthUsage, error) {
	if m.MonthError != nil {
		return nil, m.MonthError
	}
	return m.MonthUsage, nil
}

func (m *MockUsageRepository) GetRecentActivity(ctx context.Context, organizationID string, window time.Duration) ([]usage.Session, error) {
	if m.ActivityError != nil {
		return nil, m.ActivityError
	}
	return m.Recent, nil
}

func (m *MockUsageRepository) GetLastHourUsage(ctx context.Context, organizationID string) (map[usage.Mode]float64, error) {
	if m.LastHourError != nil {
		return nil, m.LastHourError
	}
	return m.LastHour, nil
}

func (m *MockUsageRepository) CountActiveSessions(ctx context.Context, organizationID string) (int, error) {
	if m.ActiveError != nil {
		return 0, m.ActiveError
	}
	return m.Active, nil
}

// MockOrgRepository is a mock implementation of org.Repository
type MockOrgRepository struct {
	Orgs      map[string]*org.Organization
	Order     []string
	GetError  error
	ListError error
}

func NewMockOrgRepository() *MockOrgRepository {
	return &MockOrgRepository{
		Orgs: make(map[string]*org.Organization),
	}
}

func (m *MockOrgRepository) Add(o *org.Organization) {
	if _, ok := m.Orgs[o.ID]; !ok {
		m.Order = append(m.Order, o.ID)
	}
	m.Orgs[o.ID] = o
}

func (m *MockOrgRepository) GetByID(ctx context.Context, id string) (*org.Organization, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	o, ok := m.Orgs[id]
	if !ok {
		return nil, errors.NotFound("Organization")
	}
	return o, nil
}

func (m *MockOrgRepository) List(ctx context.Context) ([]*org.Organization, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	result := make([]*org.Organization, 0, len(m.Order))
	for _, id := range m.Order {
		result = append(result, m.Orgs[id])
	}
	return result, nil
}

func (m *MockOrgRepository) GetTier(ctx context.Context, id string) (org.Tier, error) {
	o, err := m.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return o.Tier, nil
}

// MockAlertRepository is a mock implementation of alert.Repository. It
// enforces the open-alert uniqueness constraint the way the real store does.
type MockAlertRepository struct {
	mu          sync.Mutex
	Alerts      map[string]*alert.Alert
	Order       []string
	CreateError error
	GetError    error
	ListError   error
	UpdateError error
}

func NewMockAlertRepository() *MockAlertRepository {
	return &MockAlertRepository{
		Alerts: make(map[string]*alert.Alert),
	}
}

func (m *MockAlertRepository) Create(ctx context.Context, a *alert.Alert) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Alerts {
		if !existing.Resolved &&
			existing.OrganizationID == a.OrganizationID &&
			existing.Type == a.Type &&
			existing.Title == a.Title {
			return alert.ErrDuplicateOpenAlert
		}
	}
	cp := *a
	m.Alerts[a.ID] = &cp
	m.Order = append(m.Order, a.ID)
	return nil
}

func (m *MockAlertRepository) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Alerts[id]
	if !ok {
		return nil, errors.NotFound("Alert")
	}
	cp := *a
	return &cp, nil
}

func (m *MockAlertRepository) FindOpen(ctx context.Context, organizationID string, alertType anomaly.Type, title string) (*alert.Alert, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Alerts {
		if !a.Resolved && a.OrganizationID == organizationID && a.Type == alertType && a.Title == title {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockAlertRepository) ListActive(ctx context.Context, organizationID string) ([]*alert.Alert, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*alert.Alert
	for _, id := range m.Order {
		a := m.Alerts[id]
		if a.Resolved {
			continue
		}
		if organizationID != "" && a.OrganizationID != organizationID {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockAlertRepository) List(ctx context.Context, filter alert.Filter, limit, offset int) ([]*alert.Alert, int64, error) {
	if m.ListError != nil {
		return nil, 0, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*alert.Alert
	for _, id := range m.Order {
		a := m.Alerts[id]
		if filter.OrganizationID != "" && a.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.Resolved != nil && a.Resolved != *filter.Resolved {
			continue
		}
		cp := *a
		matched = append(matched, &cp)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *MockAlertRepository) Resolve(ctx context.Context, id string, resolvedBy string, resolvedAt time.Time) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Alerts[id]
	if !ok {
		return errors.NotFound("Alert")
	}
	a.Resolved = true
	a.ResolvedAt = &resolvedAt
	a.ResolvedBy = resolvedBy
	return nil
}

func (m *MockAlertRepository) AppendNotificationsSent(ctx context.Context, id string, channels []string) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Alerts[id]
	if !ok {
		return errors.NotFound("Alert")
	}
	for _, ch := range channels {
		present := false
		for _, existing := range a.NotificationsSent {
			if existing == ch {
				present = true
				break
			}
		}
		if !present {
			a.NotificationsSent = append(a.NotificationsSent, ch)
		}
	}
	return nil
}

func (m *MockAlertRepository) CountActiveBySeverity(ctx context.Context) (map[anomaly.Severity]int, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[anomaly.Severity]int)
	for _, a := range m.Alerts {
		if !a.Resolved {
			counts[a.Severity]++
		}
	}
	return counts, nil
}

// MockPolicyRepository is a mock implementation of notification.Repository
type MockPolicyRepository struct {
	Policies    map[anomaly.Severity]*notification.Policy
	GetError    error
	UpsertError error
}

func NewMockPolicyRepository() *MockPolicyRepository {
	return &MockPolicyRepository{
		Policies: make(map[anomaly.Severity]*notification.Policy),
	}
}

func (m *MockPolicyRepository) GetPolicies(ctx context.Context) ([]*notification.Policy, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	var result []*notification.Policy
	for _, sev := range anomaly.Severities() {
		if p, ok := m.Policies[sev]; ok {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockPolicyRepository) GetPolicy(ctx context.Context, severity anomaly.Severity) (*notification.Policy, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	p, ok := m.Policies[severity]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MockPolicyRepository) UpsertPolicy(ctx context.Context, policy *notification.Policy) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	cp := *policy
	m.Policies[policy.Severity] = &cp
	return nil
}

// MockSender is a mock implementation of notification.Sender. Sends are
// recorded under a lock because the router fans out concurrently.
type MockSender struct {
	mu        sync.Mutex
	Ch        notification.Channel
	SendError error
	Delay     time.Duration
	Sent      []*notification.Message
}

func NewMockSender(ch notification.Channel) *MockSender {
	return &MockSender{Ch: ch}
}

func (m *MockSender) Channel() notification.Channel {
	return m.Ch
}

func (m *MockSender) Send(ctx context.Context, msg *notification.Message) error {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.SendError != nil {
		return m.SendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, msg)
	return nil
}

func (m *MockSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

func (m *MockSender) LastMessage() *notification.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return m.Sent[len(m.Sent)-1]
}
