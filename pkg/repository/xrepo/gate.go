package xrepo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/async/xreactor"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/resilience/xbreaker"
	"github.com/omeyang/todokit/pkg/storage/xstore"
)

// Gate 在一次 Breaker 快照上门控操作 op。
//
// Breaker 不可用时立即以 ErrNotConnected 拒绝并计数 <store>.breaker.broken；
// 否则在反应器的下一个回合以当前连接调用 fn。fn 负责结算 Settler，
// fn 的 panic 被恢复并转为拒绝。
func Gate[T any](c *Core, op string, fn func(xpromise.Settler[T], *Conn)) *xpromise.Promise[T] {
	return xpromise.New(func(s xpromise.Settler[T]) {
		c.holder.Load().Match(
			func() { s.Reject(c.notConnected(op)) },
			func(conn *Conn) {
				err := c.reactor.Defer(func() { runGated(op, s, conn, fn) })
				if err != nil {
					c.RecordError(op, err)
					s.Reject(xpromise.NewError(op, ErrStoreOperation, "dispatch failed", err))
				}
			},
		)
	})
}

func runGated[T any](op string, s xpromise.Settler[T], conn *Conn, fn func(xpromise.Settler[T], *Conn)) {
	defer func() {
		if r := recover(); r != nil {
			s.Reject(xpromise.NewError(op, xpromise.ErrPanic, fmt.Sprint(r), nil))
		}
	}()
	fn(s, conn)
}

func (c *Core) notConnected(op string) error {
	c.metrics.Increment(c.store + ".breaker.broken")
	err := xpromise.NewError(op, ErrNotConnected, "not connected to "+c.store, nil)
	c.logger.Error(c.reactor.Context(), "xrepo: rejected, breaker broken", xlog.Operation(op))
	return err
}

// Exec 在阻塞执行器上经 CallGuard 执行 stmt。
//
// 存储错误计入 RecordError 并以 ErrStoreOperation 拒绝；
// 插入未生效时另计 <op>.fail.not.added，同样计入 RecordError，并以 ErrInvariant 拒绝；
// 其余情况计入 RecordSuccess。
func (c *Core) Exec(op string, conn *Conn, stmt xstore.Statement) *xpromise.Promise[*xstore.Result] {
	if conn == nil || conn.Session == nil {
		return xpromise.RejectedWith[*xstore.Result](c.notConnected(op))
	}
	call := xreactor.Blocking(c.reactor, func(ctx context.Context) (*xstore.Result, error) {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.StatementTimeout)
		defer cancel()
		if conn.Guard == nil {
			return conn.Session.Execute(ctx, stmt)
		}
		return xbreaker.Execute(ctx, conn.Guard, func(ctx context.Context) (*xstore.Result, error) {
			return conn.Session.Execute(ctx, stmt)
		})
	})

	out, s := xpromise.Pend[*xstore.Result]()
	call.Finally(func(res *xstore.Result, err error) {
		if err != nil {
			c.RecordError(op, err)
			s.Reject(xpromise.NewError(op, ErrStoreOperation, "unable to "+stmt.Describe(), err))
			return
		}
		if stmt.Kind == xstore.KindInsert && (res == nil || !res.Applied) {
			err := xpromise.NewError(op, ErrInvariant,
				"store reported no error but "+stmt.Describe()+" was not applied", nil)
			c.metrics.Increment(op + ".fail.not.added")
			c.RecordError(op, err)
			s.Reject(err)
			return
		}
		if res == nil {
			res = &xstore.Result{}
		}
		c.RecordSuccess(op)
		s.Resolve(res)
	})
	return out
}

// RecordSuccess 计数 <op>.success。
func (c *Core) RecordSuccess(op string) {
	c.metrics.Increment(op + ".success")
}

// RecordError 计数 <op>.fail、<op>.fail.<kind> 与 <store>.error，并累加存储错误数。
func (c *Core) RecordError(op string, err error) {
	kind := ErrorKind(err)
	c.metrics.Increment(op + ".fail")
	c.metrics.Increment(op + ".fail." + kind)
	c.metrics.Increment(c.store + ".error")
	n := c.storeErrors.Add(1)
	c.logger.Warn(c.reactor.Context(), "xrepo: store operation failed",
		xlog.Operation(op), slog.String("kind", kind), xlog.Count(n), xlog.Err(err))
}
