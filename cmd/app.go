package cmd

import (
	"context"
	"fmt"

	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/core"
	"github.com/agnosto/board-collector/dashboard"
	"github.com/agnosto/board-collector/db"
	"github.com/agnosto/board-collector/db/mongostore"
	"github.com/agnosto/board-collector/db/repository"
	dbservice "github.com/agnosto/board-collector/db/service"
	"github.com/agnosto/board-collector/images"
	"github.com/agnosto/board-collector/logger"
	"github.com/agnosto/board-collector/notifications"
	"github.com/agnosto/board-collector/service"
	"github.com/agnosto/board-collector/texts"
)

// App holds the collector and everything it was built from.
type App struct {
	Config     *config.Config
	Client     *core.Client
	Collector  *service.Collector
	Hub        *dashboard.Hub
	Images     *dbservice.ImageService
	Statistics *dbservice.StatisticService

	closeStore func() error
}

type publishers []service.Publisher

func (ps publishers) Publish(result service.CycleResult) {
	for _, p := range ps {
		p.Publish(result)
	}
}

type repositories struct {
	images     repository.ImageRepository
	texts      repository.TextRepository
	statistics repository.StatisticRepository
	close      func() error
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	switch cfg.Storage.Backend {
	case "mongo":
		store, err := mongostore.New(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Logger.Printf("[INFO] Using mongo database %s", cfg.Storage.MongoDatabase)
		return &repositories{
			images:     store.Images(),
			texts:      store.Texts(),
			statistics: store.Statistics(),
			close:      store.Close,
		}, nil
	default:
		database, err := db.NewDatabase(cfg.Options.SaveLocation)
		if err != nil {
			return nil, err
		}
		logger.Logger.Printf("[INFO] Using sqlite database %s", database.Path)
		return &repositories{
			images:     repository.NewImageRepository(database.DB),
			texts:      repository.NewTextRepository(database.DB),
			statistics: repository.NewStatisticRepository(database.DB),
			close:      database.Close,
		}, nil
	}
}

// NewApp opens the configured store and wires fetcher, pipelines,
// notifications and the dashboard into a collector. extra publishers receive
// every cycle result next to the dashboard.
func NewApp(ctx context.Context, cfg *config.Config, extra ...service.Publisher) (*App, error) {
	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}

	imageService := dbservice.NewImageService(repos.images, cfg.Images.HashThreshold, cfg.Images.ScanBatchSize)
	textService := dbservice.NewTextService(repos.texts)
	statisticService := dbservice.NewStatisticService(repos.statistics)

	client := core.NewClient(cfg)
	notifier := notifications.NewNotificationService(cfg)

	imagePipeline := images.NewPipeline(
		images.NewDownloader(cfg, client.Limiter()),
		images.NewOptimizer(cfg),
		imageService,
	).WithRepostNotifier(notifier, cfg.Notifications.RepostThreshold)

	textPipeline := texts.NewPipeline(texts.NewScorer(cfg), textService, cfg.Toxicity.Weights)

	app := &App{
		Config:     cfg,
		Client:     client,
		Images:     imageService,
		Statistics: statisticService,
		closeStore: repos.close,
	}

	var pubs publishers
	if cfg.Dashboard.Enabled {
		app.Hub = dashboard.NewHub(cfg, statisticService)
		pubs = append(pubs, app.Hub)
	}
	pubs = append(pubs, extra...)

	app.Collector = service.NewCollector(cfg, service.Deps{
		Fetcher:   client,
		Images:    imagePipeline,
		Texts:     textPipeline,
		Stats:     statisticService,
		Sweeper:   images.NewSweeper(imageService, cfg.OptimizedDir(), cfg.Retention()),
		Publisher: pubs,
		Notifier:  notifier,
	})

	return app, nil
}

func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}
