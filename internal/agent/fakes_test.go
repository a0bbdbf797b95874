package agent

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"proco-workers/internal/common/llm"
	"proco-workers/internal/models"
)

// ==========================
// Scripted model
// ==========================

type scriptedModel struct {
	mu        sync.Mutex
	responses map[string][]string
	errs      map[string]error
	requests  []llm.Request
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{responses: map[string][]string{}, errs: map[string]error{}}
}

func (m *scriptedModel) on(purpose string, responses ...string) *scriptedModel {
	m.responses[purpose] = append(m.responses[purpose], responses...)
	return m
}

func (m *scriptedModel) fail(purpose string, err error) *scriptedModel {
	m.errs[purpose] = err
	return m
}

func (m *scriptedModel) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if err := m.errs[req.Purpose]; err != nil {
		return "", err
	}
	queue := m.responses[req.Purpose]
	if len(queue) == 0 {
		return "", errors.New("no scripted response for " + req.Purpose)
	}
	m.responses[req.Purpose] = queue[1:]
	return queue[0], nil
}

func (m *scriptedModel) calls(purpose string) []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []llm.Request
	for _, r := range m.requests {
		if r.Purpose == purpose {
			out = append(out, r)
		}
	}
	return out
}

// ==========================
// Vendor source
// ==========================

type fakeVendors struct {
	vendors []models.Vendor
	err     error
	bySpec  int
	all     int
}

func (f *fakeVendors) VendorsBySpecialty(ctx context.Context, specialty models.Specialty) ([]models.Vendor, error) {
	f.bySpec++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Vendor
	for _, v := range f.vendors {
		if v.Specialty == specialty {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVendors) AllVendors(ctx context.Context) ([]models.Vendor, error) {
	f.all++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Vendor(nil), f.vendors...), nil
}

func rating(r float64) *float64 { return &r }

func vendor(id, name string, specialty models.Specialty, rate float64, r *float64) models.Vendor {
	return models.Vendor{ID: id, Name: name, Specialty: specialty, HourlyRate: rate, Rating: r}
}

// ==========================
// In-memory conversation store
// ==========================

type memoryStore struct {
	messages []models.Message
	issues   []models.Issue

	failIssueCreate error
	failHistory     error
	lockCalls       int
}

func (s *memoryStore) add(m models.Message) {
	s.messages = append(s.messages, m)
}

func (s *memoryStore) MessagesByIssue(ctx context.Context, issueID string) ([]models.Message, error) {
	if s.failHistory != nil {
		return nil, s.failHistory
	}
	var out []models.Message
	for _, m := range s.messages {
		if m.IssueID != nil && *m.IssueID == issueID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) RecentScopeMessages(ctx context.Context, tenantID, propertyID string, limit int) ([]models.Message, error) {
	if s.failHistory != nil {
		return nil, s.failHistory
	}
	var out []models.Message
	for _, m := range s.messages {
		if m.IssueID == nil && m.TenantID == tenantID && m.PropertyID != nil && *m.PropertyID == propertyID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ScopeIssueSince(ctx context.Context, tenantID, propertyID string, since time.Time) (string, bool, error) {
	s.lockCalls++
	for i := len(s.issues) - 1; i >= 0; i-- {
		is := s.issues[i]
		if is.TenantID == tenantID && is.PropertyID == propertyID && !is.CreatedAt.Before(since) {
			return is.ID, true, nil
		}
	}
	return "", false, nil
}

func (s *memoryStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if s.failIssueCreate != nil {
		return s.failIssueCreate
	}
	s.issues = append(s.issues, *issue)
	return nil
}

func (s *memoryStore) LinkScopeMessages(ctx context.Context, tenantID, propertyID, issueID string) (int64, error) {
	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.IssueID == nil && m.TenantID == tenantID && m.PropertyID != nil && *m.PropertyID == propertyID {
			id := issueID
			m.IssueID = &id
			n++
		}
	}
	return n, nil
}

func strPtr(s string) *string { return &s }

func message(id, tenant, property string, role models.Role, content string, at time.Time) models.Message {
	return models.Message{
		ID:         id,
		TenantID:   tenant,
		PropertyID: strPtr(property),
		Role:       role,
		Content:    content,
		CreatedAt:  at,
	}
}
