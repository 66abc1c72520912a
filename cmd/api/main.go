package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flicky/flashmart-api/internal/authz"
	"github.com/flicky/flashmart-api/internal/config"
	"github.com/flicky/flashmart-api/internal/handler"
	"github.com/flicky/flashmart-api/internal/lock"
	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/realtime"
	"github.com/flicky/flashmart-api/internal/repository"
	"github.com/flicky/flashmart-api/internal/repository/memory"
	mongostore "github.com/flicky/flashmart-api/internal/repository/mongo"
	"github.com/flicky/flashmart-api/internal/service"
	"github.com/flicky/flashmart-api/internal/worker"
)

const (
	lockTTL  = 10 * time.Second
	lockWait = 5 * time.Second
)

type repositories struct {
	users      repository.UserRepository
	categories repository.CategoryRepository
	products   repository.ProductRepository
	carts      repository.CartRepository
	orders     repository.OrderRepository
	pincodes   repository.PincodeRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		repos       repositories
		dbPool      *pgxpool.Pool
		mongoClient *mongo.Client
	)
	switch cfg.Store.Driver {
	case config.StorePostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
		if err != nil {
			log.Error("parse db config", "error", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = cfg.DB.MaxConns

		dbPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			log.Error("connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			log.Error("ping database", "error", err)
			os.Exit(1)
		}
		repos = repositories{
			users:      repository.NewUserRepository(dbPool),
			categories: repository.NewCategoryRepository(dbPool),
			products:   repository.NewProductRepository(dbPool),
			carts:      repository.NewCartRepository(dbPool),
			orders:     repository.NewOrderRepository(dbPool),
			pincodes:   repository.NewPincodeRepository(dbPool),
		}
		log.Info("connected to PostgreSQL")

	case config.StoreMongo:
		mongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URL))
		if err != nil {
			log.Error("connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()

		if err := mongoClient.Ping(ctx, nil); err != nil {
			log.Error("ping MongoDB", "error", err)
			os.Exit(1)
		}
		db := mongoClient.Database(cfg.Mongo.Database)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			log.Error("ensure MongoDB indexes", "error", err)
			os.Exit(1)
		}
		store := mongostore.NewStore(db)
		repos = repositories{
			users:      store.Users,
			categories: store.Categories,
			products:   store.Products,
			carts:      store.Carts,
			orders:     store.Orders,
			pincodes:   store.Pincodes,
		}
		log.Info("connected to MongoDB", "database", cfg.Mongo.Database)

	default:
		store := memory.NewStore()
		repos = repositories{
			users:      store.Users,
			categories: store.Categories,
			products:   store.Products,
			carts:      store.Carts,
			orders:     store.Orders,
			pincodes:   store.Pincodes,
		}
		log.Warn("using in-memory store; data is lost on restart")
	}

	// Redis backs the product cache, the per-user lock and event idempotency.
	var (
		redisClient *redis.Client
		locker      lock.Locker = lock.NewKeyedMutex()
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("connect to Redis", "error", err)
			os.Exit(1)
		}
		locker = lock.NewRedisLocker(redisClient, lockTTL, lockWait)
		log.Info("connected to Redis")
	}

	hub := realtime.NewHub(log)
	eventHandler := worker.NewEventHandler(repos.orders, redisClient, hub, log)

	var (
		amqpConn  *amqp.Connection
		consumer  *worker.Consumer
		publisher service.Publisher = worker.NewInlinePublisher(eventHandler)
	)
	if cfg.RabbitMQ.URL != "" {
		amqpConn, err = amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			log.Error("connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer amqpConn.Close()

		pubCh, err := amqpConn.Channel()
		if err != nil {
			log.Error("open RabbitMQ channel", "error", err)
			os.Exit(1)
		}
		defer pubCh.Close()
		if err := worker.SetupRabbitMQ(pubCh); err != nil {
			log.Error("setup RabbitMQ", "error", err)
			os.Exit(1)
		}

		consumeCh, err := amqpConn.Channel()
		if err != nil {
			log.Error("open RabbitMQ channel", "error", err)
			os.Exit(1)
		}
		defer consumeCh.Close()
		if err := consumeCh.Qos(1, 0, false); err != nil {
			log.Error("set QoS", "error", err)
			os.Exit(1)
		}

		publisher = worker.NewAMQPPublisher(pubCh)
		consumer = worker.NewConsumer(consumeCh, eventHandler, log)
		log.Info("connected to RabbitMQ")
	} else {
		log.Info("RabbitMQ not configured; order events are handled in-process")
	}

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		log.Error("init authorization", "error", err)
		os.Exit(1)
	}

	// Services
	authSvc := service.NewAuthService(repos.users, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(repos.products, repos.categories, redisClient)
	categorySvc := service.NewCategoryService(repos.categories)
	addressSvc := service.NewAddressService(repos.users)
	pincodeSvc := service.NewPincodeService(repos.pincodes)
	cartSvc := service.NewCartService(repos.carts, productSvc, locker, log)
	orderSvc := service.NewOrderService(repos.orders, repos.carts, repos.users, productSvc, locker, publisher,
		service.OrderOptions{
			StatusPolicy:   model.StatusPolicy(cfg.Order.StatusPolicy),
			DeliveryETA:    cfg.Order.DeliveryETA,
			ListLimit:      cfg.Order.ListLimit,
			AdminListLimit: cfg.Order.AdminListSize,
		}, log)

	created, err := authSvc.EnsureAdmin(ctx, service.AdminAccount{
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		Name:     cfg.Admin.Name,
		Phone:    cfg.Admin.Phone,
	})
	if err != nil {
		log.Error("bootstrap admin account", "error", err)
		os.Exit(1)
	}
	if created {
		log.Info("admin account created", "email", cfg.Admin.Email)
	}

	// Router
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.Origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	handler.RegisterRoutes(router, handler.Handlers{
		Auth:    handler.NewAuthHandler(authSvc),
		Address: handler.NewAddressHandler(addressSvc),
		Catalog: handler.NewCatalogHandler(productSvc, categorySvc),
		Pincode: handler.NewPincodeHandler(pincodeSvc),
		Cart:    handler.NewCartHandler(cartSvc),
		Order:   handler.NewOrderHandler(orderSvc),
		Admin:   handler.NewAdminOrderHandler(orderSvc, hub),
		Health:  handler.NewHealthHandler(dbPool, mongoClient, redisClient, amqpConn),
	}, authSvc, enforcer)

	if consumer != nil {
		if err := consumer.Start(ctx); err != nil {
			log.Error("start order event consumer", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	if consumer != nil {
		consumer.Stop(5 * time.Second)
	}
	cancel()
	log.Info("server stopped")
}
