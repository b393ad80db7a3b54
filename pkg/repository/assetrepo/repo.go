package assetrepo

import (
	"context"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/repository/xrepo"
	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// 操作名。
const (
	OpStore  = "asset.store"
	OpFind   = "asset.find"
	OpUpdate = "asset.update"
	OpRemove = "asset.remove"
	OpList   = "asset.list"

	// ListLimit 是 List 的返回上限。
	ListLimit = 1000
)

// Repo 是资产仓储。
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

// Store 按 (id, createTime) 覆盖写入资产，以写入后的资产结算。
func (r *Repo) Store(asset Asset) *xpromise.Promise[Asset] {
	if asset.Name == "" {
		return xpromise.RejectedWith[Asset](xpromise.NewError(OpStore, ErrNameRequired, "", nil))
	}
	asset = asset.withDefaults()
	return xrepo.Gate(r.core, OpStore, func(s xpromise.Settler[Asset], conn *xrepo.Conn) {
		r.core.Exec(OpStore, conn, xstore.Insert(Table, row(asset)).Upsert(ColID, ColCreateTime)).
			Then(func(*xstore.Result) { s.Resolve(asset) }).
			Catch(func(err error) { s.Reject(err) })
	})
}

// Find 读取资产，不存在时以 nil 结算。
func (r *Repo) Find(id string) *xpromise.Promise[*Asset] {
	if id == "" {
		return xpromise.RejectedWith[*Asset](xpromise.NewError(OpFind, ErrEmptyID, "", nil))
	}
	return xrepo.Gate(r.core, OpFind, func(s xpromise.Settler[*Asset], conn *xrepo.Conn) {
		r.core.Exec(OpFind, conn, xstore.Select(Table, xstore.Row{ColID: id}).WithLimit(1)).
			Then(func(res *xstore.Result) {
				one, ok := res.One()
				if !ok {
					s.Resolve(nil)
					return
				}
				asset := fromRow(one)
				s.Resolve(&asset)
			}).
			Catch(func(err error) { s.Reject(err) })
	})
}

// Update 更新资产名称，以是否命中记录结算。CreateTime 非零时同时匹配创建时间。
func (r *Repo) Update(asset Asset) *xpromise.Promise[bool] {
	if asset.Name == "" {
		return xpromise.RejectedWith[bool](xpromise.NewError(OpUpdate, ErrNameRequired, "", nil))
	}
	if asset.ID == "" {
		return xpromise.RejectedWith[bool](xpromise.NewError(OpUpdate, ErrEmptyID, "", nil))
	}
	where := xstore.Row{ColID: asset.ID}
	if asset.CreateTime != 0 {
		where[ColCreateTime] = asset.CreateTime
	}
	return r.write(OpUpdate, xstore.Update(Table, xstore.Row{ColName: asset.Name}, where))
}

// Remove 删除资产的全部版本，以是否命中记录结算。
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

// List 按创建时间升序读取至多 ListLimit 个资产。
func (r *Repo) List() *xpromise.Promise[[]Asset] {
	return xrepo.Gate(r.core, OpList, func(s xpromise.Settler[[]Asset], conn *xrepo.Conn) {
		list := xstore.Select(Table, nil).OrderedBy(ColCreateTime, false).WithLimit(ListLimit)
		r.core.Exec(OpList, conn, list).
			Then(func(res *xstore.Result) {
				out := make([]Asset, 0, len(res.Rows))
				for _, one := range res.Rows {
					out = append(out, fromRow(one))
				}
				s.Resolve(out)
			}).
			Catch(func(err error) { s.Reject(err) })
	})
}
