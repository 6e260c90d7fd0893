package router

import (
	bidsvc "arcana-backend/internal/application/bids"
	cardsvc "arcana-backend/internal/application/cards"
	"arcana-backend/internal/application/ledger"
	listsvc "arcana-backend/internal/application/listings"
	settlesvc "arcana-backend/internal/application/settlement"
	usersvc "arcana-backend/internal/application/users"
	"arcana-backend/internal/authz"
	"arcana-backend/internal/config"
	"arcana-backend/internal/database"
	bidhandler "arcana-backend/internal/interfaces/handlers/bids"
	cardhandler "arcana-backend/internal/interfaces/handlers/cards"
	healthhandler "arcana-backend/internal/interfaces/handlers/health"
	listhandler "arcana-backend/internal/interfaces/handlers/listings"
	mkthandler "arcana-backend/internal/interfaces/handlers/marketplace"
	userhandler "arcana-backend/internal/interfaces/handlers/users"
	"arcana-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services bundles the application services the router wires together, so
// cmd/api can hand the same instances to the sweeper.
type Services struct {
	Listings   *listsvc.Service
	Bids       *bidsvc.Service
	Settlement *settlesvc.Service
	Users      *usersvc.Service
	Cards      *cardsvc.Service
	Ledger     *ledger.Service
}

// CreateApp opens the DB and Redis, builds all services and returns the
// wired Fiber app.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, *Services, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, nil, err
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	guard := authz.FieldRules{}
	services := &Services{
		Listings:   &listsvc.Service{DB: db, Guard: guard},
		Bids:       &bidsvc.Service{DB: db, Guard: guard},
		Settlement: &settlesvc.Service{DB: db, Guard: guard},
		Users:      &usersvc.Service{DB: db, StartingCredits: cfg.StartingCredits},
		Cards:      &cardsvc.Service{DB: db},
		Ledger:     &ledger.Service{DB: db},
	}

	app := NewApp(cfg, db, rdb, services)
	return app, db, rdb, services, nil
}

// NewApp builds the Fiber app around already-constructed services. Split out
// so tests can run against an in-memory DB.
func NewApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client, services *Services) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(cfg.AllowedOrigin))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	health := &healthhandler.Handlers{DB: db, RDB: rdb}
	app.Get("/health", health.Health)

	api := app.Group("/api/v1")

	lh := &listhandler.Handlers{Listings: services.Listings, Settlement: services.Settlement}
	api.Post("/listings", lh.CreateListing)
	api.Get("/listings", lh.ListListings)
	api.Get("/listings/:listing_id", lh.GetListing)
	api.Post("/listings/:listing_id/cancel", lh.CancelListing)
	api.Post("/listings/:listing_id/purchase", lh.PurchaseListing)

	bh := &bidhandler.Handlers{Bids: services.Bids}
	api.Post("/listings/:listing_id/bids", bh.PlaceBid)
	api.Get("/listings/:listing_id/bids", bh.ListBids)

	mh := &mkthandler.Handlers{Listings: services.Listings, Bids: services.Bids}
	api.Get("/marketplace/users/:user_id/listings", mh.UserListings)
	api.Get("/marketplace/users/:user_id/purchases", mh.UserPurchases)
	api.Get("/marketplace/users/:user_id/bids/active", mh.UserActiveBids)
	api.Get("/marketplace/users/:user_id/bids/history", mh.UserBidHistory)

	uh := &userhandler.Handlers{Users: services.Users, Cards: services.Cards}
	api.Post("/users", uh.Register)
	api.Get("/users/:user_id", uh.GetUser)
	api.Get("/users/:user_id/cards", uh.GetUserCards)

	ch := &cardhandler.Handlers{Cards: services.Cards}
	api.Post("/cards", ch.CreateCard)
	api.Get("/cards/:card_id", ch.GetCard)

	return app
}
