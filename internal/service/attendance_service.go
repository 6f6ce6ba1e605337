package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"milkrun/internal/apperr"
	"milkrun/internal/draft"
	"milkrun/internal/events"
	"milkrun/internal/lock"
	"milkrun/internal/model"
	"milkrun/internal/period"
	"milkrun/internal/report"
	"milkrun/internal/repository"
	"milkrun/internal/stock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DTOs
type AttendanceProductInput struct {
	ProductID string          `json:"productId" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Status    string          `json:"status" binding:"required,delivery_status"`
}

type AttendanceEntryInput struct {
	CustomerID string                   `json:"customerId" binding:"required"`
	Products   []AttendanceProductInput `json:"products" binding:"dive"`
}

type ReturnedItems struct {
	Quantity   decimal.Decimal  `json:"quantity"`
	Expression stock.Expression `json:"expression"`
}

// expression prefers the typed text and falls back to the plain quantity.
func (r ReturnedItems) expression() string {
	if strings.TrimSpace(string(r.Expression)) != "" {
		return string(r.Expression)
	}
	return r.Quantity.String()
}

type SubmitAttendanceRequest struct {
	Date            string                 `json:"date" binding:"required"`
	AreaID          string                 `json:"areaId" binding:"required"`
	Attendance      []AttendanceEntryInput `json:"attendance" binding:"dive"`
	TotalDispatched stock.Expression       `json:"totalDispatched"`
	ReturnedItems   ReturnedItems          `json:"returnedItems"`
	// IsEditing is set when the client reopened a submitted record.
	IsEditing bool `json:"isEditing"`
}

type SubmitAttendanceResponse struct {
	Log            *model.AttendanceLog `json:"log"`
	State          draft.State          `json:"state"`
	Merged         bool                 `json:"merged"`
	Reconciliation stock.Result         `json:"reconciliation"`
}

type ReconcileRequest struct {
	TotalDispatched stock.Expression       `json:"totalDispatched"`
	ReturnedItems   ReturnedItems          `json:"returnedItems"`
	Attendance      []AttendanceEntryInput `json:"attendance" binding:"dive"`
}

type ReconcileResponse struct {
	stock.Result
	Balanced bool `json:"balanced"`
}

type AttendanceHistoryFilter struct {
	AreaID string
	From   string
	To     string
	Page   int
	Limit  int
}

// historyDays is the window listed when no range is given.
const historyDays = 30

type AttendanceService interface {
	Submit(ctx context.Context, actor Actor, req SubmitAttendanceRequest) (*SubmitAttendanceResponse, error)
	Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResponse, error)
	Get(ctx context.Context, actor Actor, date, areaID string) (*model.AttendanceLog, error)
	History(ctx context.Context, actor Actor, filter AttendanceHistoryFilter) ([]model.AttendanceLog, int64, error)
	Session(ctx context.Context, actor Actor, date, areaID string) (*draft.Session, error)
	BeginEdit(ctx context.Context, actor Actor, date, areaID string) (*draft.Session, error)
	Export(ctx context.Context, actor Actor, areaID, from, to string) ([]byte, error)
	CleanupArea(ctx context.Context, actor Actor, areaID string) (int64, error)
}

// AttendanceDeps are the collaborators of the attendance service.
type AttendanceDeps struct {
	Attendance repository.AttendanceRepository
	Areas      repository.AreaRepository
	Customers  repository.CustomerRepository
	Products   repository.ProductRepository
	Audit      repository.AuditRepository
	Tx         repository.TransactionManager
	Locker     lock.Locker
	Sessions   *draft.Manager
	Drafts     DraftService
	Events     events.Publisher
	Location   *time.Location
	Log        zerolog.Logger
}

type attendanceService struct {
	AttendanceDeps
}

func NewAttendanceService(deps AttendanceDeps) AttendanceService {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	return &attendanceService{AttendanceDeps: deps}
}

func attendanceLockKey(area *model.Area, date string) string {
	return "attendance:" + area.StoreID.String() + ":" + area.ID.String() + ":" + date
}

func (s *attendanceService) Submit(ctx context.Context, actor Actor, req SubmitAttendanceRequest) (*SubmitAttendanceResponse, error) {
	date, err := period.ParseDate(req.Date)
	if err != nil {
		return nil, apperr.Validation("date", "must be a YYYY-MM-DD date")
	}
	areaID, err := parseID("areaId", req.AreaID)
	if err != nil {
		return nil, err
	}
	area, err := loadArea(ctx, s.Areas, actor, areaID)
	if err != nil {
		return nil, err
	}

	sheet, entries, err := buildEntries(req.Attendance)
	if err != nil {
		return nil, err
	}
	returned := req.ReturnedItems.expression()
	result := stock.Reconcile(string(req.TotalDispatched), returned, sheet)
	if err := result.Check(); err != nil {
		return nil, err
	}

	log := &model.AttendanceLog{
		StoreID:              area.StoreID,
		AreaID:               area.ID,
		BusinessDate:         req.Date,
		Date:                 date,
		TotalDispatched:      result.Dispatched,
		DispatchedExpression: string(req.TotalDispatched),
		ReturnedQuantity:     result.Returned,
		ReturnedExpression:   returned,
		SubmittedBy:          actor.UserID,
		Entries:              entries,
	}
	key := draft.Key{Date: req.Date, AreaID: area.ID.String()}

	var res *SubmitAttendanceResponse
	err = s.Locker.WithLock(ctx, attendanceLockKey(area, req.Date), func(ctx context.Context) error {
		var err error
		res, err = s.submitLocked(ctx, actor, key, log, req.IsEditing)
		return err
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, apperr.Conflict("attendance for this date and area is being submitted by another request", map[string]interface{}{
				"date":   req.Date,
				"areaId": area.ID,
			})
		}
		return nil, err
	}
	res.Reconciliation = result

	if err := s.Drafts.Discard(ctx, key); err != nil {
		s.Log.Warn().Err(err).Str("key", key.String()).Msg("failed to clear draft after submission")
	}
	s.publish(ctx, events.New(events.AttendanceSubmitted, area.StoreID.String(), map[string]interface{}{
		"id":     res.Log.ID,
		"date":   res.Log.BusinessDate,
		"areaId": res.Log.AreaID,
		"merged": res.Merged,
	}))
	return res, nil
}

func (s *attendanceService) submitLocked(ctx context.Context, actor Actor, key draft.Key, log *model.AttendanceLog, editing bool) (*SubmitAttendanceResponse, error) {
	existing, err := s.Attendance.FindByKey(ctx, log.StoreID, log.AreaID, log.BusinessDate)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// A draft still waiting in the saver counts as a draft for the guard.
	if err := s.Drafts.Flush(ctx, key); err != nil {
		s.Log.Warn().Err(err).Str("key", key.String()).Msg("failed to flush pending draft")
	}
	if _, err := s.Sessions.Guard(ctx, key, existing != nil, editing); err != nil {
		var conflict *apperr.ConflictError
		if errors.As(err, &conflict) && existing != nil {
			conflict.Details["id"] = existing.ID
		}
		return nil, err
	}

	if existing != nil {
		copyHeader(existing, log)
		existing.Entries = log.Entries
		if err := s.replace(ctx, actor, existing, model.ActionEditAttendance); err != nil {
			return nil, err
		}
		return &SubmitAttendanceResponse{Log: existing, State: draft.StateSubmitted}, nil
	}

	err = s.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.Attendance.Create(txCtx, log); err != nil {
			return err
		}
		return writeAudit(txCtx, s.Audit, actor, &log.StoreID, model.ActionSubmitAttendance, log.ID.String(), log.BusinessDate, map[string]interface{}{
			"areaId":    log.AreaID,
			"customers": len(log.Entries),
		})
	})
	if err == nil {
		return &SubmitAttendanceResponse{Log: log, State: draft.StateSubmitted}, nil
	}
	if !repository.IsDuplicateKey(err) {
		return nil, fmt.Errorf("failed to save attendance: %w", err)
	}

	// Another instance created the log between our lookup and insert.
	s.Log.Info().Str("key", key.String()).Msg("attendance created concurrently, merging")
	existing, err = s.Attendance.FindByKey(ctx, log.StoreID, log.AreaID, log.BusinessDate)
	if err != nil {
		return nil, fmt.Errorf("failed to reload attendance after duplicate insert: %w", err)
	}
	merged := mergeEntries(existing.Entries, log.Entries)
	// The incoming header only balanced the incoming lines; the merged
	// log must balance on its own.
	delivered := deliveredTotal(merged)
	balance := log.TotalDispatched.Add(log.ReturnedQuantity).Sub(delivered)
	if !balance.IsZero() {
		return nil, apperr.Conflict("attendance for this date and area was submitted concurrently and the combined lines do not balance", map[string]interface{}{
			"id":         existing.ID,
			"dispatched": log.TotalDispatched,
			"returned":   log.ReturnedQuantity,
			"delivered":  delivered,
			"balance":    balance,
		})
	}
	copyHeader(existing, log)
	existing.Entries = merged
	if err := s.replace(ctx, actor, existing, model.ActionMergeAttendance); err != nil {
		return nil, err
	}
	return &SubmitAttendanceResponse{Log: existing, State: draft.StateSubmitted, Merged: true}, nil
}

func (s *attendanceService) replace(ctx context.Context, actor Actor, log *model.AttendanceLog, action string) error {
	return s.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.Attendance.ReplaceEntries(txCtx, log); err != nil {
			return fmt.Errorf("failed to update attendance: %w", err)
		}
		return writeAudit(txCtx, s.Audit, actor, &log.StoreID, action, log.ID.String(), log.BusinessDate, map[string]interface{}{
			"areaId":    log.AreaID,
			"customers": len(log.Entries),
		})
	})
}

func copyHeader(dst, src *model.AttendanceLog) {
	dst.TotalDispatched = src.TotalDispatched
	dst.DispatchedExpression = src.DispatchedExpression
	dst.ReturnedQuantity = src.ReturnedQuantity
	dst.ReturnedExpression = src.ReturnedExpression
	dst.SubmittedBy = src.SubmittedBy
}

// mergeEntries keeps every existing customer line, replacing the ones the
// incoming submission also carries and appending new customers.
func mergeEntries(existing, incoming []model.AttendanceEntry) []model.AttendanceEntry {
	index := make(map[uuid.UUID]int, len(existing)+len(incoming))
	out := make([]model.AttendanceEntry, 0, len(existing)+len(incoming))
	for _, e := range existing {
		index[e.CustomerID] = len(out)
		out = append(out, e)
	}
	for _, e := range incoming {
		if i, ok := index[e.CustomerID]; ok {
			out[i] = e
			continue
		}
		index[e.CustomerID] = len(out)
		out = append(out, e)
	}
	for i := range out {
		out[i].Position = i
	}
	return out
}

// deliveredTotal sums the delivered quantities of stored entries.
func deliveredTotal(entries []model.AttendanceEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		for _, p := range e.Products {
			if stock.Status(p.Status) == stock.StatusDelivered {
				total = total.Add(p.Quantity)
			}
		}
	}
	return total
}

// buildEntries validates submitted lines and returns them both as a sheet
// for reconciliation and as entries in request order.
func buildEntries(input []AttendanceEntryInput) (stock.Sheet, []model.AttendanceEntry, error) {
	sheet := stock.NewSheet()
	entries := make([]model.AttendanceEntry, 0, len(input))

	for i, in := range input {
		field := fmt.Sprintf("attendance[%d]", i)
		customerID, err := parseID(field+".customerId", in.CustomerID)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := sheet[customerID.String()]; dup {
			return nil, nil, apperr.Validation(field+".customerId", "customer appears more than once")
		}
		line := map[string]stock.Entry{}
		sheet[customerID.String()] = line

		entry := model.AttendanceEntry{CustomerID: customerID, Position: i}
		for j, p := range in.Products {
			pfield := fmt.Sprintf("%s.products[%d]", field, j)
			productID, err := parseID(pfield+".productId", p.ProductID)
			if err != nil {
				return nil, nil, err
			}
			if _, dup := line[productID.String()]; dup {
				return nil, nil, apperr.Validation(pfield+".productId", "product appears more than once")
			}
			status := stock.Status(p.Status)
			if !status.Valid() {
				return nil, nil, apperr.Validation(pfield+".status", stock.ErrInvalidStatus.Error())
			}
			if p.Quantity.IsNegative() {
				return nil, nil, apperr.Validation(pfield+".quantity", stock.ErrNegativeQuantity.Error())
			}
			quantity := p.Quantity
			if status != stock.StatusDelivered {
				quantity = decimal.Zero
			}
			line[productID.String()] = stock.Entry{Status: status, Quantity: quantity}
			entry.Products = append(entry.Products, model.AttendanceProduct{
				ProductID: productID,
				Quantity:  quantity,
				Status:    string(status),
			})
		}
		entries = append(entries, entry)
	}
	return sheet, entries, nil
}

func (s *attendanceService) Reconcile(_ context.Context, req ReconcileRequest) (*ReconcileResponse, error) {
	sheet, _, err := buildEntries(req.Attendance)
	if err != nil {
		return nil, err
	}
	result := stock.Reconcile(string(req.TotalDispatched), req.ReturnedItems.expression(), sheet)
	return &ReconcileResponse{Result: result, Balanced: result.Balanced()}, nil
}

func (s *attendanceService) Get(ctx context.Context, actor Actor, date, areaID string) (*model.AttendanceLog, error) {
	area, err := s.areaForDate(ctx, actor, date, areaID)
	if err != nil {
		return nil, err
	}
	log, err := s.Attendance.FindByKey(ctx, area.StoreID, area.ID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("attendance", "no attendance submitted for %s", date)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return log, nil
}

func (s *attendanceService) History(ctx context.Context, actor Actor, filter AttendanceHistoryFilter) ([]model.AttendanceLog, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	areaID, err := parseID("areaId", filter.AreaID)
	if err != nil {
		return nil, 0, err
	}
	area, err := loadArea(ctx, s.Areas, actor, areaID)
	if err != nil {
		return nil, 0, err
	}
	p, err := s.rangeOrRecent(filter.From, filter.To)
	if err != nil {
		return nil, 0, err
	}

	logs, total, err := s.Attendance.ListByArea(ctx, area.ID, p.Start, p.End, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("database error: %w", err)
	}
	return logs, total, nil
}

// rangeOrRecent resolves from/to, defaulting to the last historyDays days.
func (s *attendanceService) rangeOrRecent(from, to string) (period.Period, error) {
	if from == "" && to == "" {
		today := period.Truncate(time.Now().In(s.Location))
		return period.Between(today.AddDate(0, 0, -historyDays), today)
	}
	return period.Resolve("", from, to)
}

func (s *attendanceService) Session(ctx context.Context, actor Actor, date, areaID string) (*draft.Session, error) {
	area, err := s.areaForDate(ctx, actor, date, areaID)
	if err != nil {
		return nil, err
	}
	roster, submitted, err := s.sessionInputs(ctx, area, date)
	if err != nil {
		return nil, err
	}

	key := draft.Key{Date: date, AreaID: area.ID.String()}
	if err := s.Drafts.Flush(ctx, key); err != nil {
		s.Log.Warn().Err(err).Str("key", key.String()).Msg("failed to flush pending draft")
	}
	return s.Sessions.Open(ctx, key, roster, submitted)
}

func (s *attendanceService) BeginEdit(ctx context.Context, actor Actor, date, areaID string) (*draft.Session, error) {
	area, err := s.areaForDate(ctx, actor, date, areaID)
	if err != nil {
		return nil, err
	}
	roster, submitted, err := s.sessionInputs(ctx, area, date)
	if err != nil {
		return nil, err
	}
	return s.Sessions.BeginEdit(draft.Key{Date: date, AreaID: area.ID.String()}, roster, submitted)
}

func (s *attendanceService) areaForDate(ctx context.Context, actor Actor, date, areaID string) (*model.Area, error) {
	if _, err := period.ParseDate(date); err != nil {
		return nil, apperr.Validation("date", "must be a YYYY-MM-DD date")
	}
	id, err := parseID("areaId", areaID)
	if err != nil {
		return nil, err
	}
	return loadArea(ctx, s.Areas, actor, id)
}

// sessionInputs loads the area roster and the submitted record, if any.
func (s *attendanceService) sessionInputs(ctx context.Context, area *model.Area, date string) ([]draft.RosterCustomer, *draft.Submitted, error) {
	customers, err := s.Customers.ListByArea(ctx, area.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load customers: %w", err)
	}
	roster := make([]draft.RosterCustomer, 0, len(customers))
	for _, c := range customers {
		rc := draft.RosterCustomer{CustomerID: c.ID.String(), Name: c.Name}
		for _, sub := range c.Subscriptions {
			line := draft.ProductLine{ProductID: sub.ProductID.String(), Quantity: sub.Quantity}
			if sub.Product != nil {
				line.Name = sub.Product.Name
			}
			rc.Products = append(rc.Products, line)
		}
		roster = append(roster, rc)
	}

	log, err := s.Attendance.FindByKey(ctx, area.StoreID, area.ID, date)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return roster, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("database error: %w", err)
	}
	return roster, submittedFromLog(log), nil
}

func submittedFromLog(log *model.AttendanceLog) *draft.Submitted {
	sheet := stock.NewSheet()
	for _, entry := range log.Entries {
		line := map[string]stock.Entry{}
		for _, p := range entry.Products {
			line[p.ProductID.String()] = stock.Entry{Status: stock.Status(p.Status), Quantity: p.Quantity}
		}
		sheet[entry.CustomerID.String()] = line
	}
	dispatched := log.DispatchedExpression
	if dispatched == "" {
		dispatched = log.TotalDispatched.String()
	}
	returned := log.ReturnedExpression
	if returned == "" {
		returned = log.ReturnedQuantity.String()
	}
	return &draft.Submitted{TotalDispatched: dispatched, ReturnedExpression: returned, Sheet: sheet}
}

func (s *attendanceService) Export(ctx context.Context, actor Actor, areaID, from, to string) ([]byte, error) {
	id, err := parseID("areaId", areaID)
	if err != nil {
		return nil, err
	}
	area, err := loadArea(ctx, s.Areas, actor, id)
	if err != nil {
		return nil, err
	}
	p, err := s.rangeOrRecent(from, to)
	if err != nil {
		return nil, err
	}

	logs, err := s.Attendance.ListByAreaRange(ctx, area.ID, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	names, err := s.names(ctx, logs)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := report.WriteAttendance(&buf, logs, names); err != nil {
		return nil, fmt.Errorf("failed to build attendance workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *attendanceService) names(ctx context.Context, logs []model.AttendanceLog) (report.Names, error) {
	customerIDs := map[uuid.UUID]bool{}
	productIDs := map[uuid.UUID]bool{}
	for _, log := range logs {
		for _, entry := range log.Entries {
			customerIDs[entry.CustomerID] = true
			for _, p := range entry.Products {
				productIDs[p.ProductID] = true
			}
		}
	}

	names := report.Names{Customers: map[string]string{}, Products: map[string]string{}}
	customers, err := s.Customers.FindByIDs(ctx, keys(customerIDs))
	if err != nil {
		return names, fmt.Errorf("failed to load customers: %w", err)
	}
	for _, c := range customers {
		names.Customers[c.ID.String()] = c.Name
	}
	products, err := s.Products.FindByIDs(ctx, keys(productIDs))
	if err != nil {
		return names, fmt.Errorf("failed to load products: %w", err)
	}
	for _, p := range products {
		names.Products[p.ID.String()] = p.Name
	}
	return names, nil
}

func keys(set map[uuid.UUID]bool) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (s *attendanceService) CleanupArea(ctx context.Context, actor Actor, areaID string) (int64, error) {
	id, err := parseID("areaId", areaID)
	if err != nil {
		return 0, err
	}
	area, err := loadArea(ctx, s.Areas, actor, id)
	if err != nil {
		return 0, err
	}

	var deleted int64
	err = s.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		deleted, err = s.Attendance.DeleteByArea(txCtx, area.ID)
		if err != nil {
			return fmt.Errorf("failed to delete attendance: %w", err)
		}
		return writeAudit(txCtx, s.Audit, actor, &area.StoreID, model.ActionCleanupArea, area.ID.String(), area.Name, map[string]interface{}{
			"deleted": deleted,
		})
	})
	if err != nil {
		return 0, err
	}

	s.Log.Info().Str("area_id", area.ID.String()).Int64("deleted", deleted).Msg("area attendance cleaned up")
	s.publish(ctx, events.New(events.AttendanceCleared, area.StoreID.String(), map[string]interface{}{
		"areaId":  area.ID,
		"deleted": deleted,
	}))
	return deleted, nil
}

func (s *attendanceService) publish(ctx context.Context, event events.Event) {
	if err := s.Events.Publish(ctx, event); err != nil {
		s.Log.Warn().Err(err).Str("event", event.Type).Msg("failed to publish event")
	}
}
