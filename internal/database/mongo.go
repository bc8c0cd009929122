package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const DefaultMongoDatabase = "commerce"

// MongoDriver backs the document store used for checkout sessions. It is
// not a SQLDriver: relational constraints beyond unique indexes are not
// available there.
type MongoDriver struct {
	client   *mongo.Client
	database string
	logger   *zap.Logger
}

func NewMongoDriver(database string, logger *zap.Logger) *MongoDriver {
	if database == "" {
		database = DefaultMongoDatabase
	}
	return &MongoDriver{database: database, logger: nopIfNil(logger).Named("mongo")}
}

func (md *MongoDriver) Name() string {
	return "mongo"
}

func (md *MongoDriver) Connect(ctx context.Context, dsn string) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return classify(err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return NewStoreError(CodeStoreUnavailable, "mongo ping failed", err)
	}
	md.client = client
	md.logger.Info("connected", zap.String("database", md.database))
	return nil
}

func (md *MongoDriver) Close() error {
	if md.client == nil {
		return nil
	}
	md.logger.Info("disconnecting")
	return md.client.Disconnect(context.Background())
}

func (md *MongoDriver) Reset(ctx context.Context) error {
	if err := md.client.Database(md.database).Drop(ctx); err != nil {
		return classify(err)
	}
	md.logger.Info("database reset", zap.String("database", md.database))
	return nil
}

// ExecuteTx needs a replica set or sharded cluster; standalone servers
// reject transactions.
func (md *MongoDriver) ExecuteTx(ctx context.Context, txFunc func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return txFunc(ctx)
	}

	session, err := md.client.StartSession()
	if err != nil {
		return classify(err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if err := txFunc(sessCtx); err != nil {
			return nil, err
		}
		return nil, nil
	})

	return classify(err)
}

func (md *MongoDriver) Database() *mongo.Database {
	return md.client.Database(md.database)
}
