// Package app wires configuration into repositories, collaborators and
// services. Both binaries build their object graph here.
package app

import (
	"context"
	"fmt"
	"time"

	"milkrun/internal/config"
	"milkrun/internal/draft"
	"milkrun/internal/events"
	"milkrun/internal/lock"
	"milkrun/internal/logger"
	"milkrun/internal/render"
	"milkrun/internal/repository"
	"milkrun/internal/service"
	"milkrun/internal/storage"
	"milkrun/internal/websocket"

	"cloud.google.com/go/pubsub"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

const (
	lockTTL         = 30 * time.Second
	lockWait        = 5 * time.Second
	rendererTimeout = 30 * time.Second
)

// App holds the wired services and the resources to release on shutdown.
type App struct {
	Hub *websocket.Hub

	Attendance service.AttendanceService
	Drafts     service.DraftService
	Invoices   service.InvoiceService
	Statistics service.StatisticsService
	Revenue    service.RevenueService
	Audit      service.AuditService
	Users      service.UserService

	saver   *draft.Saver
	pubsub  *events.PubSubPublisher
	closers []func() error
}

// Build connects the optional backends named in cfg. A hub is created only
// when realtime is set; the admin CLI runs without one.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB, realtime bool) (*App, error) {
	log := logger.WithComponent("app")
	a := &App{}

	var (
		locker     lock.Locker = lock.NewLocalLocker()
		draftStore draft.Store = draft.NewMemoryStore()
	)
	if cfg.RedisAddress != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		locker = lock.NewRedisLocker(redislock.New(client), lockTTL, lockWait, logger.WithComponent("lock"))
		draftStore = draft.NewRedisStore(client, cfg.DraftTTL)
		log.Info().Str("address", cfg.RedisAddress).Msg("redis locks and draft store enabled")
	} else {
		log.Warn().Msg("REDIS_ADDRESS not set; using in-process locks and drafts")
	}

	var objects storage.ObjectStorage = storage.Unconfigured{}
	if cfg.GCSBucket != "" {
		client, err := storage.NewGCSClient(ctx, cfg.GCSCredentialsJSON)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		objects = storage.NewGCS(client, cfg.GCSBucket, cfg.GCSFolder)
	} else {
		log.Warn().Msg("GCS_BUCKET not set; invoice generation will fail at upload")
	}

	var publishers events.Multi
	if realtime {
		a.Hub = websocket.NewHub()
		publishers = append(publishers, events.NewHubPublisher(a.Hub))
	}
	if cfg.PubSubProjectID != "" && cfg.PubSubTopic != "" {
		var opts []option.ClientOption
		if cfg.GCSCredentialsJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GCSCredentialsJSON)))
		}
		client, err := pubsub.NewClient(ctx, cfg.PubSubProjectID, opts...)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.pubsub = events.NewPubSubPublisher(client, cfg.PubSubTopic)
		publishers = append(publishers, a.pubsub)
	}

	// Repositories
	txManager := repository.NewTransactionManager(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	areaRepo := repository.NewAreaRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	productRepo := repository.NewProductRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)
	revenueRepo := repository.NewRevenueRepository(db)

	loc := cfg.Location()
	a.saver = draft.NewSaver(draftStore, draft.DefaultDebounce, logger.WithComponent("draft"))
	a.Drafts = service.NewDraftService(areaRepo, draftStore, a.saver)

	a.Attendance = service.NewAttendanceService(service.AttendanceDeps{
		Attendance: attendanceRepo,
		Areas:      areaRepo,
		Customers:  customerRepo,
		Products:   productRepo,
		Audit:      auditRepo,
		Tx:         txManager,
		Locker:     locker,
		Sessions:   draft.NewManager(draftStore, loc, logger.WithComponent("session")),
		Drafts:     a.Drafts,
		Events:     publishers,
		Location:   loc,
		Log:        logger.WithComponent("attendance"),
	})
	a.Invoices = service.NewInvoiceService(service.InvoiceDeps{
		Invoices:    invoiceRepo,
		Customers:   customerRepo,
		Products:    productRepo,
		Areas:       areaRepo,
		Attendance:  attendanceRepo,
		Audit:       auditRepo,
		Tx:          txManager,
		Locker:      locker,
		Renderer:    render.NewChromiumRenderer(cfg.PDFRendererURL, rendererTimeout),
		Storage:     objects,
		Events:      publishers,
		PhoneRegion: cfg.PhoneRegion,
		Log:         logger.WithComponent("invoice"),
	})
	a.Statistics = service.NewStatisticsService(statisticsRepo, areaRepo, loc)
	a.Revenue = service.NewRevenueService(revenueRepo, loc)
	a.Audit = service.NewAuditService(auditRepo)
	a.Users = service.NewUserService(userRepo, auditRepo, txManager, string(cfg.Secret()))

	return a, nil
}

// Shutdown flushes pending drafts and events, then closes the clients.
func (a *App) Shutdown(ctx context.Context) {
	if a.saver != nil {
		a.saver.Stop(ctx)
	}
	if a.pubsub != nil {
		a.pubsub.Stop()
	}
	a.Close()
}

// Close releases the backend clients in reverse order of creation.
func (a *App) Close() {
	log := logger.WithComponent("app")
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("failed to close client")
		}
	}
	a.closers = nil
}
