package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"milkrun/internal/apperr"
	"milkrun/internal/draft"
	"milkrun/internal/period"
	"milkrun/internal/repository"
	"milkrun/internal/stock"
)

type SaveDraftRequest struct {
	TotalDispatched      stock.Expression               `json:"totalDispatched"`
	ReturnedExpression   stock.Expression               `json:"returnedExpression"`
	Attendance           stock.Sheet                    `json:"attendance"`
	ModifiedProductLists map[string][]draft.ProductLine `json:"modifiedProductLists"`
}

// DraftService syncs unsubmitted attendance between devices. Writes are
// coalesced by the saver before they reach the store.
type DraftService interface {
	Save(ctx context.Context, actor Actor, areaID, date string, req SaveDraftRequest) (*draft.Draft, error)
	Get(ctx context.Context, actor Actor, areaID, date string) (*draft.Draft, error)
	Delete(ctx context.Context, actor Actor, areaID, date string) error
	// Flush writes a pending draft of key through to the store.
	Flush(ctx context.Context, key draft.Key) error
	// Discard drops the pending and stored draft of key.
	Discard(ctx context.Context, key draft.Key) error
}

type draftService struct {
	areaRepo repository.AreaRepository
	store    draft.Store
	saver    *draft.Saver
}

func NewDraftService(areaRepo repository.AreaRepository, store draft.Store, saver *draft.Saver) DraftService {
	return &draftService{areaRepo: areaRepo, store: store, saver: saver}
}

func (s *draftService) key(ctx context.Context, actor Actor, areaID, date string) (draft.Key, error) {
	id, err := parseID("areaId", areaID)
	if err != nil {
		return draft.Key{}, err
	}
	if _, err := period.ParseDate(date); err != nil {
		return draft.Key{}, apperr.Validation("date", "must be a YYYY-MM-DD date")
	}
	if _, err := loadArea(ctx, s.areaRepo, actor, id); err != nil {
		return draft.Key{}, err
	}
	return draft.Key{Date: date, AreaID: id.String()}, nil
}

func (s *draftService) Save(ctx context.Context, actor Actor, areaID, date string, req SaveDraftRequest) (*draft.Draft, error) {
	key, err := s.key(ctx, actor, areaID, date)
	if err != nil {
		return nil, err
	}

	sheet := req.Attendance
	if sheet == nil {
		sheet = stock.NewSheet()
	}
	if err := sheet.Normalize(); err != nil {
		return nil, apperr.Validation("attendance", err.Error())
	}

	d := &draft.Draft{
		TotalDispatched:      string(req.TotalDispatched),
		ReturnedExpression:   string(req.ReturnedExpression),
		Attendance:           sheet,
		ModifiedProductLists: req.ModifiedProductLists,
		UpdatedAt:            time.Now().UTC(),
	}
	s.saver.Schedule(key, d)
	return d, nil
}

func (s *draftService) Get(ctx context.Context, actor Actor, areaID, date string) (*draft.Draft, error) {
	key, err := s.key(ctx, actor, areaID, date)
	if err != nil {
		return nil, err
	}
	if d, ok := s.saver.Pending(key); ok {
		return d, nil
	}
	d, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, draft.ErrNotFound) {
			return nil, apperr.NotFound("draft")
		}
		return nil, err
	}
	return d, nil
}

func (s *draftService) Delete(ctx context.Context, actor Actor, areaID, date string) error {
	key, err := s.key(ctx, actor, areaID, date)
	if err != nil {
		return err
	}
	return s.Discard(ctx, key)
}

func (s *draftService) Flush(ctx context.Context, key draft.Key) error {
	if err := s.saver.Flush(ctx, key); err != nil {
		return fmt.Errorf("failed to flush draft: %w", err)
	}
	return nil
}

func (s *draftService) Discard(ctx context.Context, key draft.Key) error {
	s.saver.Cancel(key)
	return s.store.Delete(ctx, key)
}
