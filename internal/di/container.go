package di

import (
	"github.com/likecodingloveproblems/matchticketselling/internal/handler"
	"github.com/likecodingloveproblems/matchticketselling/internal/repository"
	"github.com/likecodingloveproblems/matchticketselling/internal/service"
	"github.com/likecodingloveproblems/matchticketselling/pkg/database"
	"github.com/likecodingloveproblems/matchticketselling/pkg/redis"
)

// Container holds all dependencies for the ticket service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	MatchRepo repository.MatchRepository
	Store     repository.ReservationStore

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	MatchService       service.MatchService
	ReservationService service.ReservationService

	// Handlers
	HealthHandler  *handler.HealthHandler
	MatchHandler   *handler.MatchHandler
	InvoiceHandler *handler.InvoiceHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *redis.Client
	MatchRepo      repository.MatchRepository
	Store          repository.ReservationStore
	EventPublisher service.EventPublisher
	ServiceName    string
	Version        string
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		MatchRepo:      cfg.MatchRepo,
		Store:          cfg.Store,
		EventPublisher: cfg.EventPublisher,
	}

	c.MatchService = service.NewMatchService(c.MatchRepo)
	c.ReservationService = service.NewReservationService(c.Store, c.EventPublisher)

	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis, cfg.ServiceName, cfg.Version)
	c.MatchHandler = handler.NewMatchHandler(c.MatchService)
	c.InvoiceHandler = handler.NewInvoiceHandler(c.ReservationService)

	return c
}
