package xmongo

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/todokit/internal/storageopt"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// Driver 是 MongoDB 的 xstore 驱动。
type Driver struct {
	database string
	cfg      config
	opts     storageopt.Options
}

// New 创建驱动，database 为语句使用的数据库。
func New(database string, opts ...Option) (*Driver, error) {
	if database == "" {
		return nil, ErrEmptyDatabase
	}
	d := &Driver{database: database}
	for _, opt := range opts {
		if opt != nil {
			opt(&d.cfg)
		}
	}
	d.opts = storageopt.Apply(d.cfg.storage)
	return d, nil
}

// Name 实现 xstore.Driver。
func (d *Driver) Name() string { return "mongo" }

// Connect 实现 xstore.Driver：建立客户端并 Ping 主节点。
func (d *Driver) Connect(ctx context.Context, addresses []string) (xstore.Session, error) {
	if len(addresses) == 0 {
		return nil, xstore.ErrNoEndpoints
	}
	co := options.Client().SetConnectTimeout(d.opts.ConnectTimeout)
	for _, fn := range d.cfg.client {
		fn(co)
	}
	co.SetHosts(addresses)

	client, err := mongo.Connect(co)
	if err != nil {
		return nil, fmt.Errorf("xmongo: connect: %w", err)
	}
	s, err := d.open(ctx, newClientBackend(client, d.database))
	if err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	return s, nil
}

// open 在 backend 上建立会话，首次探活失败时返回错误。
func (d *Driver) open(ctx context.Context, b backend) (*Session, error) {
	in, err := storageopt.NewInstrumenter(d.Name(), d.opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := storageopt.BoundedContext(ctx, d.opts.ConnectTimeout)
	defer cancel()
	if err := in.Ping(ctx, b.ping); err != nil {
		in.Close()
		return nil, fmt.Errorf("xmongo: ping: %w", err)
	}
	return &Session{backend: b, in: in}, nil
}

// Session 是 MongoDB 会话。
type Session struct {
	backend backend
	in      *storageopt.Instrumenter
	closed  atomic.Bool
	release atomic.Bool
}

// Execute 实现 xstore.Session。
func (s *Session) Execute(ctx context.Context, stmt xstore.Statement) (*xstore.Result, error) {
	if s.closed.Load() {
		return nil, xstore.ErrSessionClosed
	}
	if err := stmt.Validate(); err != nil {
		return nil, err
	}
	res, err := s.in.Execute(ctx, stmt, func(ctx context.Context) (*xstore.Result, error) {
		return s.execute(ctx, stmt)
	})
	if errors.Is(err, mongo.ErrClientDisconnected) {
		s.closed.Store(true)
	}
	return res, err
}

func (s *Session) execute(ctx context.Context, stmt xstore.Statement) (*xstore.Result, error) {
	switch stmt.Kind {
	case xstore.KindCommand:
		cmd, err := parseCommand(stmt.Command)
		if err != nil {
			return nil, err
		}
		if err := s.backend.runCommand(ctx, cmd); err != nil {
			return nil, err
		}
		return &xstore.Result{Applied: true}, nil
	case xstore.KindInsert:
		return s.insert(ctx, stmt)
	case xstore.KindUpdate:
		r, err := s.backend.collection(stmt.Table).UpdateMany(ctx, filterDoc(stmt.Where), bson.D{{Key: "$set", Value: valuesDoc(stmt.Values)}})
		if err != nil {
			return nil, err
		}
		return &xstore.Result{Applied: r.Acknowledged && r.MatchedCount > 0}, nil
	case xstore.KindDelete:
		r, err := s.backend.collection(stmt.Table).DeleteMany(ctx, filterDoc(stmt.Where))
		if err != nil {
			return nil, err
		}
		return &xstore.Result{Applied: r.Acknowledged && r.DeletedCount > 0}, nil
	default:
		return s.find(ctx, stmt)
	}
}

func (s *Session) insert(ctx context.Context, stmt xstore.Statement) (*xstore.Result, error) {
	coll := s.backend.collection(stmt.Table)
	if stmt.Replace && len(stmt.Key) > 0 {
		r, err := coll.UpdateOne(ctx, filterDoc(keyOf(stmt)),
			bson.D{{Key: "$set", Value: valuesDoc(stmt.Values)}},
			options.UpdateOne().SetUpsert(true))
		if err != nil {
			return nil, err
		}
		return &xstore.Result{Applied: r.Acknowledged}, nil
	}
	if stmt.IfNotExists && len(stmt.Key) > 0 {
		r, err := coll.UpdateOne(ctx, filterDoc(keyOf(stmt)),
			bson.D{{Key: "$setOnInsert", Value: valuesDoc(stmt.Values)}},
			options.UpdateOne().SetUpsert(true))
		if err != nil {
			return nil, err
		}
		return &xstore.Result{Applied: r.Acknowledged && r.UpsertedCount == 1}, nil
	}
	r, err := coll.InsertOne(ctx, valuesDoc(stmt.Values))
	if err != nil {
		return nil, err
	}
	return &xstore.Result{Applied: r.Acknowledged}, nil
}

func keyOf(stmt xstore.Statement) xstore.Row {
	key := make(xstore.Row, len(stmt.Key))
	for _, k := range stmt.Key {
		key[k] = stmt.Values[k]
	}
	return key
}

func (s *Session) find(ctx context.Context, stmt xstore.Statement) (*xstore.Result, error) {
	fo := options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}})
	if stmt.OrderBy != "" {
		dir := 1
		if stmt.Desc {
			dir = -1
		}
		fo.SetSort(bson.D{{Key: stmt.OrderBy, Value: dir}})
	}
	if stmt.Limit > 0 {
		fo.SetLimit(int64(stmt.Limit))
	}
	cur, err := s.backend.collection(stmt.Table).Find(ctx, filterDoc(stmt.Where), fo)
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	rows := make([]xstore.Row, 0, len(docs))
	for _, doc := range docs {
		delete(doc, "_id")
		rows = append(rows, xstore.Row(doc))
	}
	return &xstore.Result{Rows: rows, Applied: true}, nil
}

// Closed 实现 xstore.Session。客户端断开后返回 true。
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Ping 探测主节点。
func (s *Session) Ping(ctx context.Context) error {
	return s.in.Ping(ctx, s.backend.ping)
}

// Stats 返回语句计数。
func (s *Session) Stats() storageopt.Stats {
	return s.in.Stats()
}

// Close 实现 xstore.Session，断开客户端，重复调用安全。
func (s *Session) Close(ctx context.Context) error {
	s.closed.Store(true)
	if !s.release.CompareAndSwap(false, true) {
		return nil
	}
	defer s.in.Close()
	if err := s.backend.disconnect(ctx); err != nil {
		s.in.Logger().Warn(ctx, "disconnect failed", xlog.Err(err))
		return fmt.Errorf("xmongo: disconnect: %w", err)
	}
	return nil
}

// parseCommand 把扩展 JSON 文本解析为有序命令文档。
func parseCommand(cmd string) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(cmd), false, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if len(doc) == 0 {
		return nil, ErrInvalidCommand
	}
	return doc, nil
}

// filterDoc 把等值条件转为过滤文档，键按字典序排列保证稳定。
func filterDoc(where xstore.Row) bson.D {
	return valuesDoc(where)
}

func valuesDoc(row xstore.Row) bson.D {
	doc := make(bson.D, 0, len(row))
	for _, k := range slices.Sorted(maps.Keys(row)) {
		doc = append(doc, bson.E{Key: k, Value: row[k]})
	}
	return doc
}

var (
	_ xstore.Driver  = (*Driver)(nil)
	_ xstore.Session = (*Session)(nil)
)
