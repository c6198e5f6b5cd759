package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lab-request-system/internal/dto"
	"lab-request-system/internal/entities"
	"lab-request-system/pkg/constants"
	apperrors "lab-request-system/pkg/errors"
)

func toUserRole(v interface{}) constants.UserRole { return constants.UserRole(v.(string)) }

func toRequestStatus(v interface{}) constants.RequestStatus {
	return constants.RequestStatus(v.(string))
}

func toPriority(v interface{}) constants.Priority { return constants.Priority(v.(string)) }

func nullString(s string) null.String { return null.StringFrom(s) }

func nullTime(t time.Time) null.Time { return null.TimeFrom(t) }

// fixture is the shared in-memory backing store for the fake repositories.
// dataMu guards the maps; txMu serializes whole transactions the way row
// locks do in the real database.
type fixture struct {
	dataMu sync.Mutex
	txMu   sync.Mutex

	nextUserID       uint64
	nextRequestID    uint64
	nextTypeID       uint64
	nextAttachmentID uint64
	nextAuditID      uint64

	users       map[uint64]*entities.User
	requests    map[uint64]*entities.AnalysisRequest
	types       map[uint64]*entities.AnalysisType
	links       map[uint64][]uint64
	attachments map[uint64]*entities.Attachment
	audits      []entities.AuditEntry
}

func newFixture() *fixture {
	return &fixture{
		users:       make(map[uint64]*entities.User),
		requests:    make(map[uint64]*entities.AnalysisRequest),
		types:       make(map[uint64]*entities.AnalysisType),
		links:       make(map[uint64][]uint64),
		attachments: make(map[uint64]*entities.Attachment),
	}
}

func (f *fixture) addUser(u entities.User) *entities.User {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	f.nextUserID++
	u.ID = f.nextUserID
	u.CreatedAt = time.Now()
	f.users[u.ID] = &u
	return &u
}

func (f *fixture) addRequest(req entities.AnalysisRequest) *entities.AnalysisRequest {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	f.nextRequestID++
	req.ID = f.nextRequestID
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	f.requests[req.ID] = &req
	return &req
}

func (f *fixture) addType(t entities.AnalysisType) *entities.AnalysisType {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	f.nextTypeID++
	t.ID = f.nextTypeID
	f.types[t.ID] = &t
	return &t
}

// fixtureState is a point-in-time copy of everything a transaction can touch.
type fixtureState struct {
	nextUserID       uint64
	nextRequestID    uint64
	nextTypeID       uint64
	nextAttachmentID uint64
	nextAuditID      uint64

	users       map[uint64]*entities.User
	requests    map[uint64]*entities.AnalysisRequest
	types       map[uint64]*entities.AnalysisType
	links       map[uint64][]uint64
	attachments map[uint64]*entities.Attachment
	audits      []entities.AuditEntry
}

func copyTable[V any](src map[uint64]*V) map[uint64]*V {
	dst := make(map[uint64]*V, len(src))
	for k, v := range src {
		copied := *v
		dst[k] = &copied
	}
	return dst
}

func (f *fixture) snapshot() *fixtureState {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()

	links := make(map[uint64][]uint64, len(f.links))
	for k, v := range f.links {
		links[k] = append([]uint64(nil), v...)
	}
	return &fixtureState{
		nextUserID:       f.nextUserID,
		nextRequestID:    f.nextRequestID,
		nextTypeID:       f.nextTypeID,
		nextAttachmentID: f.nextAttachmentID,
		nextAuditID:      f.nextAuditID,
		users:            copyTable(f.users),
		requests:         copyTable(f.requests),
		types:            copyTable(f.types),
		links:            links,
		attachments:      copyTable(f.attachments),
		audits:           append([]entities.AuditEntry(nil), f.audits...),
	}
}

func (f *fixture) restore(s *fixtureState) {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()

	f.nextUserID = s.nextUserID
	f.nextRequestID = s.nextRequestID
	f.nextTypeID = s.nextTypeID
	f.nextAttachmentID = s.nextAttachmentID
	f.nextAuditID = s.nextAuditID
	f.users = s.users
	f.requests = s.requests
	f.types = s.types
	f.links = s.links
	f.attachments = s.attachments
	f.audits = s.audits
}

func (f *fixture) auditActions() []string {
	f.dataMu.Lock()
	defer f.dataMu.Unlock()
	actions := make([]string, 0, len(f.audits))
	for _, e := range f.audits {
		actions = append(actions, e.Action)
	}
	return actions
}

// --- transaction manager ---

type fakeTxManager struct{ f *fixture }

// RunInTransaction restores the pre-transaction state when the callback
// fails, mirroring a database rollback.
func (m *fakeTxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	m.f.txMu.Lock()
	defer m.f.txMu.Unlock()

	saved := m.f.snapshot()
	if err := fn(nil); err != nil {
		m.f.restore(saved)
		return err
	}
	return nil
}

// --- user repository ---

type fakeUserRepo struct{ f *fixture }

func (r *fakeUserRepo) FindByID(ctx context.Context, id uint64) (*entities.User, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	u, ok := r.f.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*entities.User, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	for _, u := range r.f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByUsername(ctx, username)
	return err == nil, nil
}

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string, excludeID uint64) (bool, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	for _, u := range r.f.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) CreateInTx(ctx context.Context, tx pgx.Tx, user *entities.User) (uint64, error) {
	created := r.f.addUser(*user)
	return created.ID, nil
}

func (r *fakeUserRepo) UpdateInTx(ctx context.Context, tx pgx.Tx, id uint64, fields map[string]interface{}) error {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	u, ok := r.f.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "email":
			u.Email = v.(string)
		case "full_name":
			u.FullName = v.(string)
		case "role":
			u.Role = toUserRole(v)
		case "is_active":
			u.IsActive = v.(bool)
		}
	}
	return nil
}

func (r *fakeUserRepo) List(ctx context.Context, filter dto.UserListFilter) ([]entities.User, uint64, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	users := make([]entities.User, 0)
	for _, u := range r.f.users {
		if filter.Role != "" && u.Role.String() != filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, *u)
	}
	return users, uint64(len(users)), nil
}

func (r *fakeUserRepo) FindNamesByIDs(ctx context.Context, ids []uint64) (map[uint64]string, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	names := make(map[uint64]string, len(ids))
	for _, id := range ids {
		if u, ok := r.f.users[id]; ok {
			names[id] = u.FullName
		}
	}
	return names, nil
}

// --- request repository ---

type fakeRequestRepo struct{ f *fixture }

func uniqueViolation() error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "analysis_requests_request_number_key"}
}

func (r *fakeRequestRepo) CreateInTx(ctx context.Context, tx pgx.Tx, req *entities.AnalysisRequest) (uint64, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	for _, existing := range r.f.requests {
		if existing.RequestNumber == req.RequestNumber {
			return 0, uniqueViolation()
		}
	}
	r.f.nextRequestID++
	copied := *req
	copied.ID = r.f.nextRequestID
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	r.f.requests[copied.ID] = &copied
	return copied.ID, nil
}

func (r *fakeRequestRepo) ReplaceAnalysisTypesInTx(ctx context.Context, tx pgx.Tx, requestID uint64, typeIDs []uint64) error {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	r.f.links[requestID] = append([]uint64(nil), typeIDs...)
	return nil
}

func (r *fakeRequestRepo) FindByID(ctx context.Context, id uint64) (*entities.AnalysisRequest, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	req, ok := r.f.requests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *fakeRequestRepo) FindForUpdateInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.AnalysisRequest, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeRequestRepo) UpdateInTx(ctx context.Context, tx pgx.Tx, id uint64, fields map[string]interface{}) error {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	req, ok := r.f.requests[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "analyst_id":
			req.AnalystID = nullUint64(v.(uint64))
		case "status":
			req.Status = toRequestStatus(v)
		case "completed_at":
			req.CompletedAt = nullTime(v.(time.Time))
		case "compound_name":
			req.CompoundName = v.(string)
		case "priority":
			req.Priority = toPriority(v)
		case "due_date":
			req.DueDate = v.(time.Time)
		case "description":
			req.Description = nullString(v.(string))
		case "chemist_comments":
			req.ChemistComments = nullString(v.(string))
		case "analyst_comments":
			req.AnalystComments = nullString(v.(string))
		}
	}
	req.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRequestRepo) CountByNumberPrefix(ctx context.Context, prefix string) (uint64, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	var count uint64
	for _, req := range r.f.requests {
		if strings.HasPrefix(req.RequestNumber, prefix) {
			count++
		}
	}
	return count, nil
}

func (r *fakeRequestRepo) List(ctx context.Context, filter dto.RequestListFilter) ([]entities.AnalysisRequest, uint64, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	requests := make([]entities.AnalysisRequest, 0)
	for _, req := range r.f.requests {
		if filter.ChemistID != 0 && req.ChemistID != filter.ChemistID {
			continue
		}
		if filter.Status != "" && req.Status.String() != filter.Status {
			continue
		}
		if filter.Priority != "" && req.Priority.String() != filter.Priority {
			continue
		}
		if filter.AnalystID != nil {
			if *filter.AnalystID == 0 {
				if req.AnalystID.Valid {
					continue
				}
			} else if !req.AnalystID.Valid || req.AnalystID.Uint64 != *filter.AnalystID {
				continue
			}
		}
		requests = append(requests, *req)
	}
	return requests, uint64(len(requests)), nil
}

func (r *fakeRequestRepo) ListAll(ctx context.Context) ([]entities.AnalysisRequest, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	requests := make([]entities.AnalysisRequest, 0, len(r.f.requests))
	for _, req := range r.f.requests {
		requests = append(requests, *req)
	}
	return requests, nil
}

// --- analysis type repository ---

type fakeTypeRepo struct{ f *fixture }

func (r *fakeTypeRepo) FindActiveByIDs(ctx context.Context, ids []uint64) ([]entities.AnalysisType, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	types := make([]entities.AnalysisType, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.f.types[id]; ok && t.IsActive {
			types = append(types, *t)
		}
	}
	return types, nil
}

func (r *fakeTypeRepo) ListActive(ctx context.Context) ([]entities.AnalysisType, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	types := make([]entities.AnalysisType, 0)
	for _, t := range r.f.types {
		if t.IsActive {
			types = append(types, *t)
		}
	}
	return types, nil
}

func (r *fakeTypeRepo) List(ctx context.Context) ([]entities.AnalysisType, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	types := make([]entities.AnalysisType, 0, len(r.f.types))
	for _, t := range r.f.types {
		types = append(types, *t)
	}
	return types, nil
}

func (r *fakeTypeRepo) CreateInTx(ctx context.Context, tx pgx.Tx, t *entities.AnalysisType) (uint64, error) {
	created := r.f.addType(*t)
	return created.ID, nil
}

func (r *fakeTypeRepo) UpdateInTx(ctx context.Context, tx pgx.Tx, id uint64, fields map[string]interface{}) error {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	t, ok := r.f.types[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			t.Name = v.(string)
		case "description":
			t.Description = nullString(v.(string))
		case "is_active":
			t.IsActive = v.(bool)
		}
	}
	return nil
}

func (r *fakeTypeRepo) FindByRequestID(ctx context.Context, requestID uint64) ([]entities.AnalysisType, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	types := make([]entities.AnalysisType, 0)
	for _, id := range r.f.links[requestID] {
		if t, ok := r.f.types[id]; ok {
			types = append(types, *t)
		}
	}
	return types, nil
}

func (r *fakeTypeRepo) FindByRequestIDs(ctx context.Context, requestIDs []uint64) (map[uint64][]entities.AnalysisType, error) {
	result := make(map[uint64][]entities.AnalysisType, len(requestIDs))
	for _, requestID := range requestIDs {
		types, _ := r.FindByRequestID(ctx, requestID)
		result[requestID] = types
	}
	return result, nil
}

// --- attachment repository ---

type fakeAttachmentRepo struct{ f *fixture }

func (r *fakeAttachmentRepo) CreateInTx(ctx context.Context, tx pgx.Tx, attachment *entities.Attachment) (uint64, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	r.f.nextAttachmentID++
	copied := *attachment
	copied.ID = r.f.nextAttachmentID
	copied.UploadedAt = time.Now()
	r.f.attachments[copied.ID] = &copied
	return copied.ID, nil
}

func (r *fakeAttachmentRepo) FindByID(ctx context.Context, id uint64) (*entities.Attachment, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	a, ok := r.f.attachments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAttachmentRepo) FindAllByRequestID(ctx context.Context, requestID uint64) ([]entities.Attachment, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	attachments := make([]entities.Attachment, 0)
	for _, a := range r.f.attachments {
		if a.RequestID == requestID {
			attachments = append(attachments, *a)
		}
	}
	return attachments, nil
}

func (r *fakeAttachmentRepo) FindAllByRequestIDs(ctx context.Context, requestIDs []uint64) (map[uint64][]entities.Attachment, error) {
	result := make(map[uint64][]entities.Attachment, len(requestIDs))
	for _, requestID := range requestIDs {
		attachments, _ := r.FindAllByRequestID(ctx, requestID)
		result[requestID] = attachments
	}
	return result, nil
}

func (r *fakeAttachmentRepo) DeleteInTx(ctx context.Context, tx pgx.Tx, id uint64) error {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	if _, ok := r.f.attachments[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.f.attachments, id)
	return nil
}

// --- audit repository ---

type fakeAuditRepo struct{ f *fixture }

func (r *fakeAuditRepo) CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.AuditEntry) error {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	r.f.nextAuditID++
	copied := *entry
	copied.ID = r.f.nextAuditID
	copied.CreatedAt = time.Now()
	r.f.audits = append(r.f.audits, copied)
	return nil
}

func (r *fakeAuditRepo) List(ctx context.Context, filter dto.AuditListFilter) ([]entities.AuditEntry, uint64, error) {
	r.f.dataMu.Lock()
	defer r.f.dataMu.Unlock()
	entries := make([]entities.AuditEntry, 0)
	for _, e := range r.f.audits {
		if filter.UserID != 0 && e.UserID != filter.UserID {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != 0 && (!e.EntityID.Valid || e.EntityID.Uint64 != filter.EntityID) {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		entries = append(entries, e)
	}
	return entries, uint64(len(entries)), nil
}

// failingAuditRepo drops into write failures on demand so tests can check
// that mutations roll back together with their trail entries.
type failingAuditRepo struct {
	fakeAuditRepo
	failWrites bool
}

func (r *failingAuditRepo) CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.AuditEntry) error {
	if r.failWrites {
		return errors.New("audit store unavailable")
	}
	return r.fakeAuditRepo.CreateInTx(ctx, tx, entry)
}

// --- cache repository ---

type fakeCacheRepo struct {
	mu    sync.Mutex
	store map[string]string
	gets  int
	hits  int
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{store: make(map[string]string)}
}

func (r *fakeCacheRepo) Get(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	value, ok := r.store[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	r.hits++
	return value, nil
}

func (r *fakeCacheRepo) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[key] = value
	return nil
}

func (r *fakeCacheRepo) Del(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		delete(r.store, key)
	}
	return nil
}
