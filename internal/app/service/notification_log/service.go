package notification_log

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/pkg/logctx"
	"github.com/fatflowers/lingobill/pkg/tool"
	"github.com/fatflowers/lingobill/pkg/types"
)

type Service struct {
	db      *gorm.DB
	log     *zap.SugaredLogger
	pending sync.WaitGroup
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a webhook event log. Nil input is ignored.
func (s *Service) Save(ctx context.Context, log *models.WebhookEventLog) {
	if log == nil {
		return
	}
	if log.ID == "" {
		log.ID = tool.GenerateUUIDV7()
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.db.Save(log).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save webhook event log: %v", err)
		}
	}()
}

// Flush blocks until every pending Save has finished or ctx is done.
func (s *Service) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var listColumns = []string{"event_id", "event_type", "user_id", "status", "provider_id", "created_at"}

type ListRequest struct {
	Filters []*types.CommonFilter `json:"filters"`
	From    int                   `json:"from"`
	Size    int                   `json:"size"`
}

type ListResponse struct {
	Items []*models.WebhookEventLog `json:"items"`
	Total int64                     `json:"total"`
}

// List returns logs newest first, for operators tracing a delivery.
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	if req == nil {
		req = &ListRequest{}
	}
	if err := types.Allowed(req.Filters, listColumns...); err != nil {
		return nil, err
	}
	if req.Size <= 0 {
		req.Size = 20
	}
	base := s.db.WithContext(ctx).Model(&models.WebhookEventLog{})
	if len(req.Filters) > 0 {
		base = base.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count webhook event logs: %w", err)
	}
	var rows []*models.WebhookEventLog
	if err := base.Order("created_at desc").Order("id desc").Offset(req.From).Limit(req.Size).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook event logs: %w", err)
	}
	return &ListResponse{Items: rows, Total: total}, nil
}

func registerFlush(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{OnStop: s.Flush})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(registerFlush),
)
