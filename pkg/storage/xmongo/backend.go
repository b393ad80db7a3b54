package xmongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// collection 是 *mongo.Collection 中驱动用到的操作。
type collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateManyOptions]) (*mongo.UpdateResult, error)
	DeleteMany(ctx context.Context, filter any, opts ...options.Lister[options.DeleteManyOptions]) (*mongo.DeleteResult, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
}

// backend 是会话依赖的数据库操作，测试中替换为内存实现。
type backend interface {
	collection(name string) collection
	runCommand(ctx context.Context, cmd bson.D) error
	ping(ctx context.Context) error
	disconnect(ctx context.Context) error
}

type clientBackend struct {
	client *mongo.Client
	db     *mongo.Database
}

func newClientBackend(client *mongo.Client, database string) *clientBackend {
	return &clientBackend{client: client, db: client.Database(database)}
}

func (b *clientBackend) collection(name string) collection {
	return b.db.Collection(name)
}

func (b *clientBackend) runCommand(ctx context.Context, cmd bson.D) error {
	return b.db.RunCommand(ctx, cmd).Err()
}

func (b *clientBackend) ping(ctx context.Context) error {
	return b.client.Ping(ctx, readpref.Primary())
}

func (b *clientBackend) disconnect(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}
