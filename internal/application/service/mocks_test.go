package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/garyjia/proposal-review/internal/application/dispatcher"
	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
)

// memStore backs the mock repositories so that services observe their own
// writes across calls
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	records     map[int64]*entity.Record
	approvals   map[int64]*entity.ApprovalRecord
	adjustments map[int64]*entity.AdjustmentRequest
	users       map[int64]*entity.User
	audit       []*entity.AuditLogEntry
	changelog   []*entity.ChangelogEntry
}

func newMemStore() *memStore {
	return &memStore{
		records:     make(map[int64]*entity.Record),
		approvals:   make(map[int64]*entity.ApprovalRecord),
		adjustments: make(map[int64]*entity.AdjustmentRequest),
		users:       make(map[int64]*entity.User),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addUser(email, role string) *entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &entity.User{ID: s.id(), Email: email, Name: strings.Split(email, "@")[0], Role: role}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addRecord(r *entity.Record) *entity.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	if r.Version == 0 {
		r.Version = 1
	}
	if r.Status == "" {
		r.Status = entity.RecordStatusDraft
	}
	cp := *r
	s.records[r.ID] = &cp
	return r
}

func (s *memStore) addApproval(a *entity.ApprovalRecord) *entity.ApprovalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	cp := *a
	s.approvals[a.ID] = &cp
	return a
}

func (s *memStore) record(id int64) *entity.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		cp := *r
		return &cp
	}
	return nil
}

func (s *memStore) approval(id int64) *entity.ApprovalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.approvals[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (s *memStore) adjustmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.adjustments)
}

func (s *memStore) auditEntries() []*entity.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.AuditLogEntry(nil), s.audit...)
}

// Mock repositories

type mockRecordRepo struct {
	store            *memStore
	updateStatusFunc func(ctx context.Context, id int64, status string) error
	updateCalls      int
}

func (m *mockRecordRepo) Create(ctx context.Context, record *entity.Record) error {
	m.store.addRecord(record)
	return nil
}

func (m *mockRecordRepo) GetByID(ctx context.Context, id int64) (*entity.Record, error) {
	return m.store.record(id), nil
}

func (m *mockRecordRepo) List(ctx context.Context, filter port.RecordFilter) ([]*entity.Record, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*entity.Record
	for _, r := range m.store.records {
		if r.Hidden && !filter.IncludeHidden {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRecordRepo) Update(ctx context.Context, record *entity.Record, expectedVersion int) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.updateCalls++
	stored, ok := m.store.records[record.ID]
	if !ok || stored.Version != expectedVersion {
		return workflow.ErrConflict
	}
	cp := *record
	if stored.RequirementDisabled {
		cp.AllocatedHours = stored.AllocatedHours
	}
	m.store.records[record.ID] = &cp
	return nil
}

func (m *mockRecordRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.updateCalls++
	if r, ok := m.store.records[id]; ok {
		r.Status = status
	}
	return nil
}

func (m *mockRecordRepo) UpdateAllocation(ctx context.Context, id int64, change entity.AllocationChange) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.updateCalls++
	r, ok := m.store.records[id]
	if !ok {
		return workflow.ErrRecordNotFound
	}
	applyAllocation(r, change)
	return nil
}

func (m *mockRecordRepo) SetHidden(ctx context.Context, id int64, hidden bool) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if r, ok := m.store.records[id]; ok {
		r.Hidden = hidden
	}
	return nil
}

type mockApprovalRepo struct {
	store             *memStore
	applyDecisionFunc func(ctx context.Context, id int64, expectedStatus string, d entity.ApprovalDecision) error
	writes            int
}

func (m *mockApprovalRepo) Create(ctx context.Context, a *entity.ApprovalRecord) error {
	m.writes++
	m.store.addApproval(a)
	return nil
}

func (m *mockApprovalRepo) GetByID(ctx context.Context, id int64) (*entity.ApprovalRecord, error) {
	return m.store.approval(id), nil
}

func (m *mockApprovalRepo) ListByRecord(ctx context.Context, recordID int64) ([]*entity.ApprovalRecord, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*entity.ApprovalRecord
	for _, a := range m.store.approvals {
		if a.RecordID == recordID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockApprovalRepo) CountByRecord(ctx context.Context, recordID int64) (int, error) {
	list, _ := m.ListByRecord(ctx, recordID)
	return len(list), nil
}

func (m *mockApprovalRepo) ApplyDecision(ctx context.Context, id int64, expectedStatus string, d entity.ApprovalDecision) error {
	m.writes++
	if m.applyDecisionFunc != nil {
		return m.applyDecisionFunc(ctx, id, expectedStatus, d)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	a, ok := m.store.approvals[id]
	if !ok || a.Status != expectedStatus {
		return workflow.ErrConflict
	}
	a.Apply(d)
	return nil
}

type mockAdjustmentRepo struct {
	store      *memStore
	existsFunc func(ctx context.Context, recordID int64) (bool, error)
}

func (m *mockAdjustmentRepo) Create(ctx context.Context, req *entity.AdjustmentRequest) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	req.ID = m.store.id()
	cp := *req
	m.store.adjustments[req.ID] = &cp
	return nil
}

func (m *mockAdjustmentRepo) GetByID(ctx context.Context, id int64) (*entity.AdjustmentRequest, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if r, ok := m.store.adjustments[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *mockAdjustmentRepo) ListByRecord(ctx context.Context, recordID int64) ([]*entity.AdjustmentRequest, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*entity.AdjustmentRequest
	for _, r := range m.store.adjustments {
		if r.RecordID == recordID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockAdjustmentRepo) ExistsForRecord(ctx context.Context, recordID int64) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, recordID)
	}
	list, _ := m.ListByRecord(ctx, recordID)
	return len(list) > 0, nil
}

func (m *mockAdjustmentRepo) Update(ctx context.Context, req *entity.AdjustmentRequest, expectedStatus string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	stored, ok := m.store.adjustments[req.ID]
	if !ok || stored.Status != expectedStatus {
		return workflow.ErrConflict
	}
	cp := *req
	m.store.adjustments[req.ID] = &cp
	return nil
}

func (m *mockAdjustmentRepo) Delete(ctx context.Context, id int64) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.adjustments[id]; !ok {
		return workflow.ErrRequestNotFound
	}
	delete(m.store.adjustments, id)
	return nil
}

type mockAuditRepo struct {
	store      *memStore
	createFunc func(ctx context.Context, entry *entity.AuditLogEntry) error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *entity.AuditLogEntry) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, entry)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	entry.ID = m.store.id()
	m.store.audit = append(m.store.audit, entry)
	return nil
}

func (m *mockAuditRepo) ListByRecord(ctx context.Context, recordID int64, filter entity.AuditFilter) ([]*entity.AuditLogEntry, error) {
	var out []*entity.AuditLogEntry
	for _, e := range m.store.auditEntries() {
		if e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockChangelogRepo struct {
	store           *memStore
	createBatchFunc func(ctx context.Context, entries []*entity.ChangelogEntry) error
}

func (m *mockChangelogRepo) CreateBatch(ctx context.Context, entries []*entity.ChangelogEntry) error {
	if m.createBatchFunc != nil {
		return m.createBatchFunc(ctx, entries)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, e := range entries {
		e.ID = m.store.id()
		m.store.changelog = append(m.store.changelog, e)
	}
	return nil
}

func (m *mockChangelogRepo) ListByRecord(ctx context.Context, recordID int64, filter entity.ChangelogFilter) ([]*entity.ChangelogEntry, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*entity.ChangelogEntry
	for _, e := range m.store.changelog {
		if e.RecordID == recordID && (filter.FieldName == "" || e.FieldName == filter.FieldName) {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockDirectory struct {
	store          *memStore
	listByRoleFunc func(ctx context.Context, role string) ([]*entity.User, error)
}

func (m *mockDirectory) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, u := range m.store.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockDirectory) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return m.store.users[id], nil
}

func (m *mockDirectory) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	if m.listByRoleFunc != nil {
		return m.listByRoleFunc(ctx, role)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*entity.User
	for _, u := range m.store.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
	calls               int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockNotifier struct {
	mu       sync.Mutex
	approval []port.ApprovalNotice
	adjust   map[string][]port.AdjustmentNotice
	err      error
}

func (m *mockNotifier) SendApprovalEvent(ctx context.Context, notice port.ApprovalNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approval = append(m.approval, notice)
	return m.err
}

func (m *mockNotifier) record(kind string, notice port.AdjustmentNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adjust == nil {
		m.adjust = make(map[string][]port.AdjustmentNotice)
	}
	m.adjust[kind] = append(m.adjust[kind], notice)
	return m.err
}

func (m *mockNotifier) SendRequestCreated(ctx context.Context, notice port.AdjustmentNotice) error {
	return m.record("created", notice)
}

func (m *mockNotifier) SendRequestApproved(ctx context.Context, notice port.AdjustmentNotice) error {
	return m.record("approved", notice)
}

func (m *mockNotifier) SendRequestRejected(ctx context.Context, notice port.AdjustmentNotice) error {
	return m.record("rejected", notice)
}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, fmt.Sprint(msg))
}

// fixture wires every service against one memStore
type fixture struct {
	store       *memStore
	records     *mockRecordRepo
	approvalsDB *mockApprovalRepo
	adjustDB    *mockAdjustmentRepo
	auditDB     *mockAuditRepo
	changelogDB *mockChangelogRepo
	directory   *mockDirectory
	tx          *mockTxManager
	notifier    *mockNotifier
	logger      *mockLogger
	dispatcher  dispatcher.Dispatcher
}

func newFixture() *fixture {
	store := newMemStore()
	notifier := &mockNotifier{}
	logger := &mockLogger{}
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(logger))
	NewNotificationService(notifier, logger).Register(d)

	return &fixture{
		store:       store,
		records:     &mockRecordRepo{store: store},
		approvalsDB: &mockApprovalRepo{store: store},
		adjustDB:    &mockAdjustmentRepo{store: store},
		auditDB:     &mockAuditRepo{store: store},
		changelogDB: &mockChangelogRepo{store: store},
		directory:   &mockDirectory{store: store},
		tx:          &mockTxManager{},
		notifier:    notifier,
		logger:      logger,
		dispatcher:  d,
	}
}

func (f *fixture) audit() AuditService {
	return NewAuditService(f.auditDB, f.logger)
}

func (f *fixture) approvalService(catalog *workflow.Catalog) ApprovalService {
	if catalog == nil {
		catalog = workflow.DefaultCatalog()
	}
	return NewApprovalService(f.records, f.approvalsDB, f.directory, f.tx, f.audit(), f.dispatcher, catalog, f.logger)
}

func (f *fixture) adjustmentService() AdjustmentService {
	return NewAdjustmentService(f.records, f.adjustDB, f.directory, f.tx, f.audit(), f.dispatcher, entity.RoleReviewer, f.logger)
}

func (f *fixture) changelogService() ChangelogService {
	return NewChangelogService(f.changelogDB, f.tx, f.logger)
}

func (f *fixture) recordService(autoStart bool) RecordService {
	return NewRecordService(f.records, f.directory, f.changelogService(), f.audit(), f.approvalService(nil), autoStart, f.logger)
}

func readyRecord() *entity.Record {
	return &entity.Record{
		Title:          "Website redesign",
		Client:         "Acme",
		Pricing:        12000,
		AllocatedHours: 40,
		OwnerID:        7,
		CreatedBy:      7,
		UpdatedBy:      7,
	}
}
