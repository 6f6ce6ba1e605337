package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"milkrun/internal/apperr"
	"milkrun/internal/billing"
	"milkrun/internal/events"
	"milkrun/internal/lock"
	"milkrun/internal/model"
	"milkrun/internal/period"
	"milkrun/internal/render"
	"milkrun/internal/repository"
	"milkrun/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("milkrun/service")

// --- DTOs ---

type GenerateInvoiceRequest struct {
	CustomerID  string `json:"customerId"`
	Period      string `json:"period"`
	From        string `json:"from"`
	To          string `json:"to"`
	GeneratedBy string `json:"generatedBy"`
}

type RegenerateInvoiceRequest struct {
	GeneratedBy string `json:"generatedBy"`
}

type InvoiceSummary struct {
	ID          string          `json:"id"`
	BillNo      string          `json:"billNo"`
	CustomerID  string          `json:"customerId"`
	Period      string          `json:"period"`
	FromDate    string          `json:"fromDate,omitempty"`
	ToDate      string          `json:"toDate,omitempty"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
	URL         string          `json:"url"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

type DeleteInvoiceResponse struct {
	DeletedInvoiceID string `json:"deletedInvoiceId"`
}

// InvoicePreview is a priced rollup that was neither rendered nor stored.
type InvoicePreview struct {
	CustomerID      string              `json:"customerId"`
	Period          string              `json:"period"`
	From            string              `json:"from"`
	To              string              `json:"to"`
	Logs            int                 `json:"logs"`
	Lines           []model.InvoiceLine `json:"lines"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	DeliveryCharges decimal.Decimal     `json:"deliveryCharges"`
	GrandTotal      decimal.Decimal     `json:"grandTotal"`
}

// --- Interface ---

type InvoiceService interface {
	Generate(ctx context.Context, actor Actor, req GenerateInvoiceRequest) (*InvoiceSummary, error)
	Regenerate(ctx context.Context, actor Actor, invoiceID string, req RegenerateInvoiceRequest) (*InvoiceSummary, error)
	Delete(ctx context.Context, actor Actor, invoiceID string) (*DeleteInvoiceResponse, error)
	Get(ctx context.Context, actor Actor, invoiceID string) (*model.Invoice, error)
	ListByCustomer(ctx context.Context, actor Actor, customerID string) ([]InvoiceSummary, error)
	Preview(ctx context.Context, actor Actor, customerID, from, to string) (*InvoicePreview, error)
}

// InvoiceDeps are the collaborators of the invoice service.
type InvoiceDeps struct {
	Invoices    repository.InvoiceRepository
	Customers   repository.CustomerRepository
	Products    repository.ProductRepository
	Areas       repository.AreaRepository
	Attendance  repository.AttendanceRepository
	Audit       repository.AuditRepository
	Tx          repository.TransactionManager
	Locker      lock.Locker
	Renderer    render.PDFRenderer
	Storage     storage.ObjectStorage
	Events      events.Publisher
	PhoneRegion string
	Log         zerolog.Logger
}

type invoiceService struct {
	InvoiceDeps
	now func() time.Time
}

func NewInvoiceService(deps InvoiceDeps) InvoiceService {
	if deps.Storage == nil {
		deps.Storage = storage.Unconfigured{}
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	return &invoiceService{InvoiceDeps: deps, now: time.Now}
}

func invoiceLockKey(customerID uuid.UUID) string {
	return "invoice:" + customerID.String()
}

func billNo(customerID uuid.UUID, at time.Time) string {
	id := customerID.String()
	return fmt.Sprintf("INV-%d-%s", at.UnixMilli(), id[len(id)-6:])
}

func toSummary(inv *model.Invoice) InvoiceSummary {
	s := InvoiceSummary{
		ID:          inv.ID.String(),
		BillNo:      inv.BillNo,
		CustomerID:  inv.CustomerID.String(),
		Period:      inv.Period,
		GrandTotal:  inv.GrandTotal,
		URL:         inv.Storage.SecureURL,
		GeneratedAt: inv.GeneratedAt,
	}
	if inv.FromDate != nil {
		s.FromDate = inv.FromDate.Format(period.DateLayout)
	}
	if inv.ToDate != nil {
		s.ToDate = inv.ToDate.Format(period.DateLayout)
	}
	if s.URL == "" {
		s.URL = inv.Storage.URL
	}
	return s
}

// --- Implementation ---

// validate is the RECEIVED -> VALIDATED step.
func (s *invoiceService) validate(req GenerateInvoiceRequest) (uuid.UUID, period.Period, error) {
	customerID, err := parseID("customerId", req.CustomerID)
	if err != nil {
		return uuid.Nil, period.Period{}, err
	}
	p, err := period.Resolve(req.Period, req.From, req.To)
	if err != nil {
		return uuid.Nil, period.Period{}, err
	}
	return customerID, p, nil
}

func (s *invoiceService) Generate(ctx context.Context, actor Actor, req GenerateInvoiceRequest) (*InvoiceSummary, error) {
	ctx, span := tracer.Start(ctx, "invoice.generate")
	defer span.End()

	customerID, p, err := s.validate(req)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(
		attribute.String("customer.id", customerID.String()),
		attribute.String("invoice.period", p.Label),
	)

	var out *InvoiceSummary
	err = s.withCustomerLock(ctx, customerID, func(ctx context.Context) error {
		var err error
		out, err = s.generate(ctx, actor, customerID, p, req.GeneratedBy)
		return err
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

func (s *invoiceService) withCustomerLock(ctx context.Context, customerID uuid.UUID, fn func(ctx context.Context) error) error {
	err := s.Locker.WithLock(ctx, invoiceLockKey(customerID), fn)
	if errors.Is(err, lock.ErrNotObtained) {
		return apperr.Conflict("an invoice for this customer is already being generated", map[string]interface{}{
			"customerId": customerID,
		})
	}
	return err
}

// generate runs VALIDATED -> CREATED. The caller holds the customer lock.
func (s *invoiceService) generate(ctx context.Context, actor Actor, customerID uuid.UUID, p period.Period, generatedBy string) (*InvoiceSummary, error) {
	log := s.Log.With().Str("customer_id", customerID.String()).Str("period", p.Label).Logger()

	// Existing invoices of another store's customer must not leak through
	// the conflict payload.
	if err := s.checkCustomerStore(ctx, actor, customerID); err != nil {
		return nil, err
	}

	// CHECKED
	candidates, err := s.Invoices.FindOverlapCandidates(ctx, customerID, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing invoices: %w", err)
	}
	if overlap, found := billing.DetectOverlap(candidates, p); found {
		log.Info().Str("existing_invoice", overlap.Invoice.BillNo).Bool("legacy", overlap.Legacy).Msg("invoice rejected as duplicate")
		return nil, apperr.Conflict("an invoice already exists for an overlapping period", overlap.Details())
	}

	// CUSTOMER_LOADED
	customer, err := s.loadCustomer(ctx, actor, customerID)
	if err != nil {
		return nil, err
	}

	// AGGREGATED
	doc, logs, err := s.document(ctx, customer, p)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	doc.BillNo = billNo(customerID, now)
	log.Debug().Int("logs", logs).Int("lines", len(doc.Lines)).Str("grand_total", doc.GrandTotal.String()).Msg("invoice built")

	// BUILT -> STORED
	stored, err := s.renderAndStore(ctx, doc, customer, now)
	if err != nil {
		log.Error().Err(err).Msg("invoice render or upload failed")
		return nil, err
	}

	invoice := &model.Invoice{
		BillNo:          doc.BillNo,
		CustomerID:      customerID,
		Period:          p.Label,
		PeriodKind:      string(p.Kind),
		FromDate:        &p.Start,
		ToDate:          &p.End,
		Items:           doc.Lines,
		Subtotal:        doc.Subtotal,
		DeliveryCharges: doc.DeliveryCharges,
		GrandTotal:      doc.GrandTotal,
		Storage:         *stored,
		GeneratedBy:     generatedByOf(actor, generatedBy),
		GeneratedAt:     now,
	}

	// CREATED
	err = s.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.Invoices.Create(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		return writeAudit(txCtx, s.Audit, actor, &customer.StoreID, model.ActionGenerateInvoice, invoice.ID.String(), invoice.BillNo, map[string]interface{}{
			"customerId": customerID,
			"period":     invoice.Period,
			"grandTotal": invoice.GrandTotal,
		})
	})
	if err != nil {
		s.destroy(ctx, stored.PublicID, stored.ResourceType)
		return nil, err
	}

	log.Info().Str("bill_no", invoice.BillNo).Msg("invoice generated")
	s.publish(ctx, events.New(events.InvoiceGenerated, customer.StoreID.String(), toSummary(invoice)))
	summary := toSummary(invoice)
	return &summary, nil
}

func generatedByOf(actor Actor, requested string) string {
	if requested != "" {
		return requested
	}
	return actor.UserID
}

// checkCustomerStore reports customers outside the actor's store as missing.
// Platform admins skip the lookup.
func (s *invoiceService) checkCustomerStore(ctx context.Context, actor Actor, customerID uuid.UUID) error {
	if actor.StoreID == "" {
		return nil
	}
	customers, err := s.Customers.FindByIDs(ctx, []uuid.UUID{customerID})
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if len(customers) == 0 || !actor.canAccess(customers[0].StoreID) {
		return apperr.NotFound("customer")
	}
	return nil
}

func (s *invoiceService) loadCustomer(ctx context.Context, actor Actor, customerID uuid.UUID) (*model.Customer, error) {
	customer, err := s.Customers.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("customer")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !actor.canAccess(customer.StoreID) {
		return nil, apperr.NotFound("customer")
	}
	return customer, nil
}

// document aggregates the customer's attendance over p and prices it.
func (s *invoiceService) document(ctx context.Context, customer *model.Customer, p period.Period) (billing.Document, int, error) {
	logs, err := s.Attendance.ListForCustomer(ctx, customer.ID, p.Start, p.End)
	if err != nil {
		return billing.Document{}, 0, fmt.Errorf("failed to load attendance: %w", err)
	}
	rollup := billing.Aggregate(logs, customer.ID)
	if rollup.Logs == 0 {
		return billing.Document{}, 0, apperr.NotFoundf("attendance", "no attendance records found for this period")
	}
	if rollup.Empty() {
		return billing.Document{}, 0, apperr.NotFoundf("attendance", "no deliveries found for this period")
	}

	products, err := s.Products.FindByIDs(ctx, rollup.ProductIDs())
	if err != nil {
		return billing.Document{}, 0, fmt.Errorf("failed to load products: %w", err)
	}
	catalog := make(map[string]model.StoreProduct, len(products))
	for _, product := range products {
		catalog[product.ID.String()] = product
	}
	doc := billing.Build(rollup, catalog, customer, p, s.PhoneRegion)
	if len(doc.Lines) == 0 {
		return billing.Document{}, 0, apperr.NotFoundf("attendance", "no deliveries found for this period")
	}
	return doc, rollup.Logs, nil
}

func (s *invoiceService) renderAndStore(ctx context.Context, doc billing.Document, customer *model.Customer, now time.Time) (*model.StoredFile, error) {
	ctx, span := tracer.Start(ctx, "invoice.render_and_store")
	defer span.End()

	html, err := render.InvoiceHTML(doc, s.storeName(ctx, customer), now)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to render invoice html: %w", err))
	}
	pdf, err := s.Renderer.Render(ctx, html)
	if err != nil {
		return nil, fail(span, apperr.External("pdf renderer", err))
	}
	uploaded, err := s.Storage.Upload(ctx, pdf, storage.UploadOptions{
		PublicID:     doc.BillNo,
		ResourceType: "raw",
		Format:       "pdf",
		ContentType:  "application/pdf",
	})
	if err != nil {
		return nil, fail(span, apperr.External("object storage", err))
	}
	span.SetAttributes(attribute.Int64("invoice.bytes", uploaded.Bytes))

	return &model.StoredFile{
		PublicID:     uploaded.PublicID,
		URL:          uploaded.URL,
		SecureURL:    uploaded.SecureURL,
		Bytes:        uploaded.Bytes,
		ResourceType: uploaded.ResourceType,
		Format:       uploaded.Format,
	}, nil
}

// storeName is printed on the invoice header. A lookup failure leaves it blank.
func (s *invoiceService) storeName(ctx context.Context, customer *model.Customer) string {
	area, err := s.Areas.FindByID(ctx, customer.AreaID)
	if err != nil || area.Store == nil {
		if err != nil {
			s.Log.Warn().Err(err).Str("area_id", customer.AreaID.String()).Msg("failed to load store for invoice header")
		}
		return ""
	}
	return area.Store.Name
}

// destroy removes a stored file. Failures are logged and swallowed.
func (s *invoiceService) destroy(ctx context.Context, publicID, resourceType string) {
	if publicID == "" {
		return
	}
	if err := s.Storage.Destroy(ctx, publicID, resourceType); err != nil {
		s.Log.Warn().Err(err).Str("public_id", publicID).Msg("failed to delete stored invoice file")
	}
}

// Regenerate deletes an invoice and builds it again for the same period:
// find, verify customer, best-effort file delete, record delete, generate.
// Between the record delete and the new insert the period has no invoice;
// a retry of the whole operation recovers from a failure there.
func (s *invoiceService) Regenerate(ctx context.Context, actor Actor, invoiceID string, req RegenerateInvoiceRequest) (*InvoiceSummary, error) {
	ctx, span := tracer.Start(ctx, "invoice.regenerate")
	defer span.End()

	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fail(span, err)
	}
	// Verified before anything is destroyed.
	customer, err := s.loadCustomer(ctx, actor, inv.CustomerID)
	if err != nil {
		return nil, fail(span, err)
	}
	inv.Customer = customer
	p, err := billing.StoredPeriod(*inv)
	if err != nil {
		return nil, fail(span, apperr.Validation("period", fmt.Sprintf("stored period %q cannot be recovered", inv.Period)))
	}
	span.SetAttributes(attribute.String("invoice.bill_no", inv.BillNo), attribute.String("invoice.period", p.Label))

	var out *InvoiceSummary
	err = s.withCustomerLock(ctx, inv.CustomerID, func(ctx context.Context) error {
		if err := s.remove(ctx, actor, inv, model.ActionRegenerateInvoice); err != nil {
			return err
		}
		customerID, p, err := s.validate(requestFor(inv, p, req.GeneratedBy))
		if err != nil {
			return err
		}
		out, err = s.generate(ctx, actor, customerID, p, req.GeneratedBy)
		return err
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return out, nil
}

// requestFor rebuilds the request that produced an invoice: month invoices
// are asked for by label, range invoices by their dates.
func requestFor(inv *model.Invoice, p period.Period, generatedBy string) GenerateInvoiceRequest {
	req := GenerateInvoiceRequest{
		CustomerID:  inv.CustomerID.String(),
		From:        p.From(),
		To:          p.To(),
		GeneratedBy: generatedBy,
	}
	if p.Kind == period.KindMonth {
		req.Period = p.Label
	}
	return req
}

func (s *invoiceService) Delete(ctx context.Context, actor Actor, invoiceID string) (*DeleteInvoiceResponse, error) {
	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, inv); err != nil {
		return nil, err
	}
	if err := s.remove(ctx, actor, inv, model.ActionDeleteInvoice); err != nil {
		return nil, err
	}
	return &DeleteInvoiceResponse{DeletedInvoiceID: inv.ID.String()}, nil
}

// remove deletes the stored file, best effort, then the record.
func (s *invoiceService) remove(ctx context.Context, actor Actor, inv *model.Invoice, action string) error {
	s.destroy(ctx, inv.Storage.PublicID, inv.Storage.ResourceType)

	err := s.Tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.Invoices.Delete(txCtx, inv.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("invoice")
			}
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		return writeAudit(txCtx, s.Audit, actor, invoiceStore(inv), action, inv.ID.String(), inv.BillNo, map[string]interface{}{
			"customerId": inv.CustomerID,
			"period":     inv.Period,
		})
	})
	if err != nil {
		return err
	}

	s.Log.Info().Str("bill_no", inv.BillNo).Str("action", action).Msg("invoice deleted")
	storeID := ""
	if inv.Customer != nil {
		storeID = inv.Customer.StoreID.String()
	}
	s.publish(ctx, events.New(events.InvoiceDeleted, storeID, map[string]interface{}{
		"id":         inv.ID,
		"billNo":     inv.BillNo,
		"customerId": inv.CustomerID,
	}))
	return nil
}

func (s *invoiceService) findInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	id, err := parseID("invoiceId", invoiceID)
	if err != nil {
		return nil, err
	}
	inv, err := s.Invoices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return inv, nil
}

// invoiceStore returns the store of the invoice's customer, or nil when the
// customer no longer exists.
func invoiceStore(inv *model.Invoice) *uuid.UUID {
	if inv.Customer == nil {
		return nil
	}
	return &inv.Customer.StoreID
}

// authorize hides invoices of other stores and attaches the customer.
// Customers deleted since the invoice was generated are still looked up.
func (s *invoiceService) authorize(ctx context.Context, actor Actor, inv *model.Invoice) error {
	customers, err := s.Customers.FindByIDs(ctx, []uuid.UUID{inv.CustomerID})
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if len(customers) == 0 {
		if actor.StoreID == "" {
			return nil
		}
		return apperr.NotFound("invoice")
	}
	if !actor.canAccess(customers[0].StoreID) {
		return apperr.NotFound("invoice")
	}
	inv.Customer = &customers[0]
	return nil
}

func (s *invoiceService) Get(ctx context.Context, actor Actor, invoiceID string) (*model.Invoice, error) {
	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) ListByCustomer(ctx context.Context, actor Actor, customerID string) ([]InvoiceSummary, error) {
	id, err := parseID("customerId", customerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCustomerStore(ctx, actor, id); err != nil {
		return nil, err
	}

	invoices, err := s.Invoices.ListByCustomer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	res := make([]InvoiceSummary, 0, len(invoices))
	for i := range invoices {
		res = append(res, toSummary(&invoices[i]))
	}
	return res, nil
}

func (s *invoiceService) Preview(ctx context.Context, actor Actor, customerID, from, to string) (*InvoicePreview, error) {
	id, err := parseID("customerId", customerID)
	if err != nil {
		return nil, err
	}
	p, err := period.Resolve("", from, to)
	if err != nil {
		return nil, err
	}
	customer, err := s.loadCustomer(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	doc, logs, err := s.document(ctx, customer, p)
	if err != nil {
		return nil, err
	}
	return &InvoicePreview{
		CustomerID:      customer.ID.String(),
		Period:          p.Label,
		From:            p.From(),
		To:              p.To(),
		Logs:            logs,
		Lines:           doc.Lines,
		Subtotal:        doc.Subtotal,
		DeliveryCharges: doc.DeliveryCharges,
		GrandTotal:      doc.GrandTotal,
	}, nil
}

func (s *invoiceService) publish(ctx context.Context, event events.Event) {
	if err := s.Events.Publish(ctx, event); err != nil {
		s.Log.Warn().Err(err).Str("event", event.Type).Msg("failed to publish event")
	}
}

// fail records err on the span and returns it.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
