package todorepo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/mq/xqueue"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/repository/xrepo"
	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// 操作名，同时作为指标前缀。
const (
	OpAddTodo   = "add.todo"
	OpAddLookup = "add.lookup"
	OpLoadTodo  = "load.todo"
	OpLoadTodos = "load.todos"
)

// Repo 是 Todo 仓储。
type Repo struct {
	core    *xrepo.Core
	queue   xqueue.Enqueuer
	topic   string
	created *lru.Cache[string, int64] // 创建时间不可变，无需过期
}

// New 在 core 之上创建 Repo。
func New(core *xrepo.Core, opts ...Option) (*Repo, error) {
	if core == nil {
		return nil, ErrNilCore
	}
	o := &options{topic: DefaultTopic, cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	created, err := lru.New[string, int64](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("todorepo: create cache: %w", err)
	}
	return &Repo{
		core:    core,
		queue:   o.queue,
		topic:   o.topic,
		created: created,
	}, nil
}

// Core 返回仓储核心。
func (r *Repo) Core() *xrepo.Core { return r.core }

// Start 启动健康检查与首次连接。
func (r *Repo) Start() { r.core.Start() }

// Connect 立即发起连接。
func (r *Repo) Connect() *xpromise.Promise[bool] { return r.core.Connect() }

// Close 释放连接并清空缓存。
func (r *Repo) Close(ctx context.Context) error {
	r.created.Purge()
	return r.core.Close(ctx)
}

// AddTodo 写入一个 Todo 版本。
//
// 两张表均按 (id, updatedTime) 覆盖写入，重复添加同一版本仍以 true 结算。
// 写入以 all 组合（AllTimeout），再与旁路队列投递以 any 竞速（AnyTimeout），
// 任一先成功即以 true 结算；两者都失败时以 errors.Join 合并的全部错误拒绝。
func (r *Repo) AddTodo(todo Todo) *xpromise.Promise[bool] {
	if err := todo.Validate(); err != nil {
		return xpromise.RejectedWith[bool](xpromise.NewError(OpAddTodo, xrepo.ErrInvariant, "", err))
	}
	return xrepo.Gate(r.core, OpAddTodo, func(s xpromise.Settler[bool], conn *xrepo.Conn) {
		cfg := r.core.Config()
		reactor := r.core.Reactor()

		writes := reactor.All(cfg.AllTimeout,
			r.core.Exec(OpAddTodo, conn, xstore.Insert(TableTodo, todoRow(todo)).Upsert(ColID, ColUpdatedTime)),
			r.core.Exec(OpAddLookup, conn, xstore.Insert(TableLookup, lookupRow(todo)).Upsert(ColID, ColUpdatedTime)),
		)
		writes.Then(func([]any) { r.rememberCreated(todo) })

		var race *xpromise.Promise[any]
		if enqueued := r.enqueue(todo); enqueued != nil {
			race = reactor.Any(cfg.AnyTimeout, enqueued, writes)
		} else {
			race = reactor.Any(cfg.AnyTimeout, writes)
		}
		race.
			Then(func(any) { s.Resolve(true) }).
			Catch(func(err error) { s.Reject(err) })
	})
}

// enqueue 投递到旁路队列，未配置队列时返回 nil。
func (r *Repo) enqueue(todo Todo) *xpromise.Promise[bool] {
	if r.queue == nil {
		return nil
	}
	payload, err := json.Marshal(todo)
	if err != nil {
		return xpromise.RejectedWith[bool](fmt.Errorf("todorepo: encode todo: %w", err))
	}
	item := xqueue.NewItem(r.topic, payload).WithHeader("todo-id", todo.ID)
	item.Key = fmt.Sprintf("%s:%d", todo.ID, todo.UpdatedTime)
	metrics := r.core.Metrics()
	logger := r.core.Logger()
	return xqueue.AsyncEnqueue(r.core.Reactor(), r.queue, item).
		Then(func(bool) {
			metrics.Increment("todo.queue.success")
			logger.Debug(r.core.Reactor().Context(), "todorepo: sent to queue", slog.String("todo", todo.ID))
		}).
		Catch(func(err error) {
			metrics.Increment("todo.queue.fail")
			logger.Error(r.core.Reactor().Context(), "todorepo: send to queue failed",
				slog.String("todo", todo.ID), xlog.Err(err))
		})
}

func (r *Repo) rememberCreated(todo Todo) {
	if todo.CreatedTime > 0 {
		r.created.Add(todo.ID, todo.CreatedTime)
	}
}

// LoadTodo 读取 id 的最新版本，不存在时以 nil 结算。
// 最新版本缺少创建时间时，从 TodoLookup 的首个版本补齐。
func (r *Repo) LoadTodo(id string) *xpromise.Promise[*Todo] {
	return xrepo.Gate(r.core, OpLoadTodo, func(s xpromise.Settler[*Todo], conn *xrepo.Conn) {
		latest := xstore.Select(TableTodo, xstore.Row{ColID: id}).
			OrderedBy(ColUpdatedTime, true).
			WithLimit(1)
		r.core.Exec(OpLoadTodo, conn, latest).
			Then(func(res *xstore.Result) {
				row, ok := res.One()
				if !ok {
					s.Resolve(nil)
					return
				}
				todo := todoFromRow(row)
				if todo.CreatedTime != 0 {
					s.Resolve(&todo)
					return
				}
				r.loadCreatedTime(conn, id).
					Then(func(created int64) {
						todo.CreatedTime = created
						s.Resolve(&todo)
					}).
					Catch(func(err error) { s.Reject(err) })
			}).
			Catch(func(err error) { s.Reject(err) })
	})
}

// loadCreatedTime 返回 TodoLookup 中首个版本的更新时间。
func (r *Repo) loadCreatedTime(conn *xrepo.Conn, id string) *xpromise.Promise[int64] {
	if created, ok := r.created.Get(id); ok {
		return xpromise.ResolvedWith(created)
	}
	first := xstore.Select(TableLookup, xstore.Row{ColID: id}).
		OrderedBy(ColUpdatedTime, false).
		WithLimit(1)
	return xpromise.Map(r.core.Exec(OpLoadTodo, conn, first), func(res *xstore.Result) (int64, error) {
		row, ok := res.One()
		if !ok {
			return 0, xpromise.NewError(OpLoadTodo, ErrCreatedTimeNotFound, "no lookup row for "+id, nil)
		}
		created := asMillis(row[ColUpdatedTime])
		r.created.Add(id, created)
		return created, nil
	})
}

// LoadTodos 读取至多 LoadLimit 行 Todo。
func (r *Repo) LoadTodos() *xpromise.Promise[[]Todo] {
	return xrepo.Gate(r.core, OpLoadTodos, func(s xpromise.Settler[[]Todo], conn *xrepo.Conn) {
		all := xstore.Select(TableTodo, nil).WithLimit(LoadLimit)
		r.core.Exec(OpLoadTodos, conn, all).
			Then(func(res *xstore.Result) {
				todos := make([]Todo, 0, len(res.Rows))
				for _, row := range res.Rows {
					todos = append(todos, todoFromRow(row))
				}
				s.Resolve(todos)
			}).
			Catch(func(err error) { s.Reject(err) })
	})
}
