package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthHandler reports on whichever backends were configured; nil ones are skipped.
type HealthHandler struct {
	dbPool      *pgxpool.Pool
	mongoClient *mongo.Client
	redisClient *redis.Client
	amqpConn    *amqp.Connection
}

func NewHealthHandler(dbPool *pgxpool.Pool, mongoClient *mongo.Client, redisClient *redis.Client, amqpConn *amqp.Connection) *HealthHandler {
	return &HealthHandler{dbPool: dbPool, mongoClient: mongoClient, redisClient: redisClient, amqpConn: amqpConn}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	checks := h.checks()
	body := gin.H{"status": "ok"}
	ctx := c.Request.Context()

	for name, check := range checks {
		if err := check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", name: "unavailable"})
			return
		}
		body[name] = "connected"
	}
	c.JSON(http.StatusOK, body)
}

func (h *HealthHandler) checks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if h.dbPool != nil {
		checks["postgres"] = h.dbPool.Ping
	}
	if h.mongoClient != nil {
		checks["mongo"] = func(ctx context.Context) error { return h.mongoClient.Ping(ctx, nil) }
	}
	if h.redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return h.redisClient.Ping(ctx).Err() }
	}
	if h.amqpConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if h.amqpConn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		}
	}
	return checks
}
