package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"boardapp/config"
	"boardapp/models"
	"boardapp/services"
)

// App holds every store handle and service a handler needs. It is built
// once at process start and passed explicitly; nothing in this codebase
// reaches for a package-level connection.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	DB        *gorm.DB
	Redis     *redis.Client
	Limiter   services.RateLimiter
	Cache     services.AdCache
	Index     services.ArticleIndex
	Docs      services.DocStore
	Publisher services.Publisher
	Blacklist services.TokenBlacklist
	Auth      *services.Auth
	Notifier  *services.Notifier

	mongoClient *mongo.Client
	rabbitConn  *amqp.Connection
	rabbitCh    *amqp.Channel
}

// New dials every backend, migrates the schema and bootstraps the master
// admin account. On any failure the partially built app is closed.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	if err := a.initDB(); err != nil {
		return nil, err
	}
	if err := a.initRedis(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.initSearch(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.initMongo(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.initRabbit(); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Auth = services.NewAuth(cfg.Jwt.SecretKey, time.Duration(cfg.Jwt.ExpireMinutes)*time.Minute)
	a.Notifier = services.NewNotifier(a.DB, a.Docs)

	if err := a.bootstrapAdmin(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	return a, nil
}

func (a *App) initDB() error {
	db, err := gorm.Open(gormmysql.Open(a.Config.Database.Dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(a.Config.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(a.Config.Database.MaxOpenConns)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Board{},
		&models.Article{},
		&models.Comment{},
		&models.Advertisement{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	a.DB = db
	a.Log.Info().Msg("database initialized")
	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	if a.Config.Redis.Addr == "" {
		// No cache configured: fall back to the derived-timestamp gate and
		// skip ad caching and token revocation.
		a.Log.Warn().Msg("redis addr empty, using database-derived rate limiting")
		a.Limiter = services.NewLastWriteGate(a.DB, a.Config.RateLimit.ArticleWindow, a.Config.RateLimit.CommentWindow)
		a.Blacklist = services.NewMemoryBlacklist()
		a.Cache = services.NewMemoryAdCache()
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		DB:       a.Config.Redis.DB,
		Password: a.Config.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	a.Redis = rdb
	a.Limiter = services.NewRedisRateLimiter(rdb)
	a.Cache = services.NewRedisAdCache(rdb)
	a.Blacklist = services.NewRedisBlacklist(rdb)
	a.Log.Info().Str("addr", a.Config.Redis.Addr).Msg("redis initialized")
	return nil
}

func (a *App) initSearch(ctx context.Context) error {
	index, err := services.NewOpenSearchIndex(a.Config.OpenSearch.Addr)
	if err != nil {
		return err
	}
	if err := index.EnsureIndex(ctx); err != nil {
		return err
	}
	a.Index = index
	a.Log.Info().Str("addr", a.Config.OpenSearch.Addr).Msg("search index initialized")
	return nil
}

func (a *App) initMongo(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(a.Config.MongoDB.Uri).
		SetMaxPoolSize(a.Config.MongoDB.MaxPoolSize))
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	db := client.Database(a.Config.MongoDB.Database)
	if err := db.RunCommand(ctx, bson.M{"ping": 1}).Err(); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}

	a.mongoClient = client
	a.Docs = services.NewMongoStore(db)
	a.Log.Info().Str("database", a.Config.MongoDB.Database).Msg("mongodb initialized")
	return nil
}

func (a *App) initRabbit() error {
	if a.Config.RabbitMQ.Url == "" {
		a.Log.Warn().Msg("rabbitmq url empty, write events will not be published")
		a.Publisher = services.NewMemoryPublisher()
		return nil
	}

	conn, err := amqp.Dial(a.Config.RabbitMQ.Url)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(a.Config.RabbitMQ.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	a.rabbitConn = conn
	a.rabbitCh = ch
	a.Publisher = services.NewAMQPPublisher(ch, a.Config.RabbitMQ.Exchange)
	a.Log.Info().Str("exchange", a.Config.RabbitMQ.Exchange).Msg("rabbitmq initialized")
	return nil
}

// bootstrapAdmin creates the master admin account if it does not exist.
func (a *App) bootstrapAdmin(ctx context.Context) error {
	if a.Config.Admin.Password == "" {
		return nil
	}

	var existing models.User
	err := a.DB.WithContext(ctx).
		Where("username = ?", a.Config.Admin.Username).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	admin := models.User{
		Username: a.Config.Admin.Username,
		Email:    a.Config.Admin.Email,
		Role:     models.RoleAdmin,
	}
	if err := admin.SetPassword(a.Config.Admin.Password); err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := a.DB.WithContext(ctx).Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	a.Log.Info().Str("username", admin.Username).Msg("master admin created")
	return nil
}

// Close releases every handle New acquired. Safe on a partially built app.
func (a *App) Close(ctx context.Context) {
	if a.rabbitCh != nil {
		a.rabbitCh.Close()
	}
	if a.rabbitConn != nil {
		a.rabbitConn.Close()
	}
	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			a.Log.Warn().Err(err).Msg("mongodb disconnect")
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
