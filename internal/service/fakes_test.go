package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"milkrun/internal/events"
	"milkrun/internal/model"
	"milkrun/internal/repository"
	"milkrun/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeAreas struct {
	areas map[uuid.UUID]*model.Area
}

func (f *fakeAreas) FindByID(_ context.Context, id uuid.UUID) (*model.Area, error) {
	area, ok := f.areas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *area
	return &cp, nil
}

type fakeCustomers struct {
	customers map[uuid.UUID]*model.Customer
}

func (f *fakeCustomers) FindByID(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCustomers) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.Customer, error) {
	var out []model.Customer
	for _, id := range ids {
		if c, ok := f.customers[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCustomers) ListByArea(_ context.Context, areaID uuid.UUID) ([]model.Customer, error) {
	var out []model.Customer
	for _, c := range f.customers {
		if c.AreaID == areaID && c.IsActive {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ApartmentOrder < out[j].ApartmentOrder })
	return out, nil
}

type fakeProducts struct {
	products map[uuid.UUID]*model.StoreProduct
}

func (f *fakeProducts) FindByID(_ context.Context, id uuid.UUID) (*model.StoreProduct, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.StoreProduct, error) {
	var out []model.StoreProduct
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeAttendance struct {
	mu   sync.Mutex
	logs []*model.AttendanceLog
	// race makes the next Create lose against a log inserted by beforeFail.
	race       bool
	beforeFail func(f *fakeAttendance)
}

func (f *fakeAttendance) insert(log *model.AttendanceLog) {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	f.logs = append(f.logs, log)
}

func (f *fakeAttendance) Create(_ context.Context, log *model.AttendanceLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.race {
		f.race = false
		if f.beforeFail != nil {
			f.beforeFail(f)
		}
		return gorm.ErrDuplicatedKey
	}
	f.insert(log)
	return nil
}

func (f *fakeAttendance) FindByKey(_ context.Context, storeID, areaID uuid.UUID, businessDate string) (*model.AttendanceLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, log := range f.logs {
		if log.StoreID == storeID && log.AreaID == areaID && log.BusinessDate == businessDate {
			cp := *log
			cp.Entries = append([]model.AttendanceEntry(nil), log.Entries...)
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAttendance) ReplaceEntries(_ context.Context, log *model.AttendanceLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.logs {
		if existing.ID == log.ID {
			cp := *log
			f.logs[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeAttendance) ListForCustomer(_ context.Context, customerID uuid.UUID, from, to time.Time) ([]model.AttendanceLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AttendanceLog
	for _, log := range f.logs {
		if log.Date.Before(from) || log.Date.After(to) {
			continue
		}
		if entry := log.EntryFor(customerID); entry != nil {
			cp := *log
			cp.Entries = []model.AttendanceEntry{*entry}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f *fakeAttendance) ListByArea(ctx context.Context, areaID uuid.UUID, from, to time.Time, page, limit int) ([]model.AttendanceLog, int64, error) {
	all, _ := f.ListByAreaRange(ctx, areaID, from, to)
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakeAttendance) ListByAreaRange(_ context.Context, areaID uuid.UUID, from, to time.Time) ([]model.AttendanceLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AttendanceLog
	for _, log := range f.logs {
		if log.AreaID == areaID && !log.Date.Before(from) && !log.Date.After(to) {
			out = append(out, *log)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f *fakeAttendance) DeleteByArea(_ context.Context, areaID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.logs[:0]
	var deleted int64
	for _, log := range f.logs {
		if log.AreaID == areaID {
			deleted++
			continue
		}
		kept = append(kept, log)
	}
	f.logs = kept
	return deleted, nil
}

type fakeAudit struct {
	entries []model.AuditLog
}

func (f *fakeAudit) Log(_ context.Context, entry *model.AuditLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAudit) List(_ context.Context, filter repository.AuditFilter, page, limit int) ([]model.AuditLog, int64, error) {
	var out []model.AuditLog
	for _, e := range f.entries {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.StoreID != "" && (e.StoreID == nil || e.StoreID.String() != filter.StoreID) {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

func (f *fakeAudit) actions() []string {
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeInvoices struct {
	invoices  map[uuid.UUID]*model.Invoice
	createErr error
}

func newFakeInvoices() *fakeInvoices {
	return &fakeInvoices{invoices: map[uuid.UUID]*model.Invoice{}}
}

func (f *fakeInvoices) Create(_ context.Context, inv *model.Invoice) error {
	if f.createErr != nil {
		return f.createErr
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	cp := *inv
	f.invoices[inv.ID] = &cp
	return nil
}

func (f *fakeInvoices) FindByID(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvoices) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.invoices[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.invoices, id)
	return nil
}

func (f *fakeInvoices) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]model.Invoice, error) {
	var out []model.Invoice
	for _, inv := range f.invoices {
		if inv.CustomerID == customerID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	return out, nil
}

// FindOverlapCandidates returns every invoice of the customer; the detector
// does the interval test.
func (f *fakeInvoices) FindOverlapCandidates(ctx context.Context, customerID uuid.UUID, _, _ time.Time) ([]model.Invoice, error) {
	return f.ListByCustomer(ctx, customerID)
}

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, html []byte) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("%PDF-"), html[:8]...), nil
}

type fakeStorage struct {
	uploadErr  error
	destroyErr error
	uploaded   []string
	destroyed  []string
}

func (f *fakeStorage) Upload(_ context.Context, data []byte, opts storage.UploadOptions) (*storage.UploadResult, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	publicID := "invoices/" + opts.PublicID + "." + opts.Format
	f.uploaded = append(f.uploaded, publicID)
	return &storage.UploadResult{
		PublicID:     publicID,
		URL:          "https://storage.example.com/" + publicID,
		SecureURL:    "https://storage.example.com/" + publicID,
		Bytes:        int64(len(data)),
		ResourceType: opts.ResourceType,
		Format:       opts.Format,
	}, nil
}

func (f *fakeStorage) Destroy(_ context.Context, publicID, _ string) error {
	f.destroyed = append(f.destroyed, publicID)
	return f.destroyErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeUsers struct {
	users []*model.User
}

func (f *fakeUsers) Create(_ context.Context, user *model.User) error {
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = uuid.New()
	f.users = append(f.users, user)
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	for _, u := range f.users {
		if u.ID.String() == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) GetByLogin(_ context.Context, login string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == login || u.Username == login {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) List(_ context.Context, storeID string, page, limit int) ([]model.User, int64, error) {
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		if storeID != "" && (u.StoreID == nil || u.StoreID.String() != storeID) {
			continue
		}
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

var errBoom = errors.New("boom")
