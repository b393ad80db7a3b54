package subrepo

import (
	"context"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/repository/xrepo"
	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// 操作名。
const (
	OpStore  = "subscription.store"
	OpFind   = "subscription.find"
	OpUpdate = "subscription.update"
	OpRemove = "subscription.remove"
	OpList   = "subscription.list"

	// ListLimit 是 List 的返回上限。
	ListLimit = 1000
)

// Repo 是订阅仓储。
type Repo struct {
	core *xrepo.Core
}

// New 在 core 之上创建 Repo。
func New(core *xrepo.Core) (*Repo, error) {
	if core == nil {
		return nil, ErrNilCore
	}
	return &Repo{core: core}, nil
}

// Core 返回仓储核心。
func (r *Repo) Core() *xrepo.Core { return r.core }

// Start 启动健康检查与首次连接。
func (r *Repo) Start() { r.core.Start() }

// Connect 立即发起连接。
func (r *Repo) Connect() *xpromise.Promise[bool] { return r.core.Connect() }

// Close 释放连接。
func (r *Repo) Close(ctx context.Context) error { return r.core.Close(ctx) }

// Store 写入订阅，缺省 ID 与创建时间自动补齐。以写入后的订阅结算。
func (r *Repo) Store(sub Subscription) *xpromise.Promise[Subscription] {
	sub = sub.withDefaults()
	return xrepo.Gate(r.core, OpStore, func(s xpromise.Settler[Subscription], conn *xrepo.Conn) {
		r.core.Exec(OpStore, conn, xstore.Insert(Table, row(sub)).Unique(ColID)).
			Then(func(*xstore.Result) { s.Resolve(sub) }).
			Catch(func(err error) { s.Reject(err) })
	})
}

// Find 读取订阅，不存在时以 nil 结算。
func (r *Repo) Find(id string) *xpromise.Promise[*Subscription] {
	if id == "" {
		return xpromise.RejectedWith[*Subscription](xpromise.NewError(OpFind, ErrEmptyID, "", nil))
	}
	return xrepo.Gate(r.core, OpFind, func(s xpromise.Settler[*Subscription], conn *xrepo.Conn) {
		find := xstore.Select(Table, xstore.Row{ColID: id}).WithLimit(1)
		r.core.Exec(OpFind, conn, find).
			Then(func(res *xstore.Result) {
				if one, ok := res.One(); ok {
					sub := fromRow(one)
					s.Resolve(&sub)
					return
				}
				s.Resolve(nil)
			}).
			Catch(func(err error) { s.Reject(err) })
	})
}

// Update 更新订阅名称，以是否命中记录结算。名称为空时拒绝。
// CreateTime 非零时同时按创建时间匹配。
func (r *Repo) Update(sub Subscription) *xpromise.Promise[bool] {
	if sub.Name == "" {
		return xpromise.RejectedWith[bool](xpromise.NewError(OpUpdate, ErrNameRequired, "", nil))
	}
	if sub.ID == "" {
		return xpromise.RejectedWith[bool](xpromise.NewError(OpUpdate, ErrEmptyID, "", nil))
	}
	where := xstore.Row{ColID: sub.ID}
	if sub.CreateTime != 0 {
		where[ColCreateTime] = sub.CreateTime
	}
	return r.write(OpUpdate, xstore.Update(Table, xstore.Row{ColName: sub.Name}, where))
}

// Remove 删除订阅，以是否命中记录结算。
func (r *Repo) Remove(id string) *xpromise.Promise[bool] {
	if id == "" {
		return xpromise.RejectedWith[bool](xpromise.NewError(OpRemove, ErrEmptyID, "", nil))
	}
	return r.write(OpRemove, xstore.Delete(Table, xstore.Row{ColID: id}))
}

func (r *Repo) write(op string, stmt xstore.Statement) *xpromise.Promise[bool] {
	return xrepo.Gate(r.core, op, func(s xpromise.Settler[bool], conn *xrepo.Conn) {
		r.core.Exec(op, conn, stmt).
			Then(func(res *xstore.Result) { s.Resolve(res.Applied) }).
			Catch(func(err error) { s.Reject(err) })
	})
}

// List 读取至多 ListLimit 个订阅。
func (r *Repo) List() *xpromise.Promise[[]Subscription] {
	return xrepo.Gate(r.core, OpList, func(s xpromise.Settler[[]Subscription], conn *xrepo.Conn) {
		r.core.Exec(OpList, conn, xstore.Select(Table, nil).OrderedBy(ColCreateTime, false).WithLimit(ListLimit)).
			Then(func(res *xstore.Result) {
				out := make([]Subscription, 0, len(res.Rows))
				for _, one := range res.Rows {
					out = append(out, fromRow(one))
				}
				s.Resolve(out)
			}).
			Catch(func(err error) { s.Reject(err) })
	})
}
