package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/config/xconf"
	"github.com/omeyang/todokit/pkg/lifecycle/xrun"
	"github.com/omeyang/todokit/pkg/observability/xlog"
	"github.com/omeyang/todokit/pkg/repository/assetrepo"
	"github.com/omeyang/todokit/pkg/repository/subrepo"
	"github.com/omeyang/todokit/pkg/repository/todorepo"
)

const (
	// AliveMetric 是 serve 心跳记录的水位指标。
	AliveMetric = "i.am.alive"

	defaultHeartbeat = 10 * time.Second
	closeTimeout     = 10 * time.Second
)

// errRunForElapsed 表示 serve --run-for 到期，按正常退出处理。
var errRunForElapsed = errors.New("todoctl: run-for elapsed")

func createCommands() []*cli.Command {
	return []*cli.Command{
		createServeCommand(),
		{
			Name:      "add",
			Usage:     "写入一个 Todo",
			ArgsUsage: "<name> [description]",
			Action:    withEnv(cmdAdd),
		},
		{
			Name:      "get",
			Usage:     "读取 Todo 的最新版本",
			ArgsUsage: "<id>",
			Action:    withEnv(cmdGet),
		},
		{
			Name:   "list",
			Usage:  "列出 Todo",
			Action: withEnv(cmdList),
		},
		{
			Name:   "check",
			Usage:  "连接存储并报告健康状态与指标",
			Action: withEnv(cmdCheck),
		},
		createSubCommand(),
		createAssetCommand(),
	}
}

// loadSettings 读取配置文件（若有），再叠加命令行覆盖项。
func loadSettings(cmd *cli.Command) (xconf.Settings, *xconf.Source, error) {
	settings := xconf.Default()
	var src *xconf.Source
	if path := cmd.String("config"); path != "" {
		var err error
		if src, err = xconf.Open(path); err != nil {
			return settings, nil, err
		}
		if settings, err = src.Settings(); err != nil {
			return settings, nil, err
		}
	}
	if cmd.IsSet("store") {
		settings.Store.Driver = cmd.String("store")
	}
	if cmd.IsSet("queue") {
		settings.Queue.Kind = cmd.String("queue")
	}
	if cmd.IsSet("service") {
		settings.Repo.Service = cmd.String("service")
	}
	if cmd.IsSet("static") {
		settings.Discovery.Static = cmd.StringSlice("static")
	}
	if cmd.IsSet("log-level") {
		settings.Log.Level = cmd.String("log-level")
	}
	if err := settings.Validate(); err != nil {
		return settings, nil, &usageError{msg: err.Error()}
	}
	return settings, src, nil
}

type envAction func(ctx context.Context, cmd *cli.Command, e *env) error

// withEnv 为一次性命令构建组件，命令结束后关闭。
func withEnv(fn envAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		settings, _, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		e, err := newEnv(settings, cmd.Root().ErrWriter)
		if err != nil {
			return err
		}
		e.reactor.Start()

		runCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
		defer cancel()
		runErr := fn(runCtx, cmd, e)

		closeCtx, cancelClose := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancelClose()
		return errors.Join(runErr, e.close(closeCtx))
	}
}

// connect 等待连接建立，失败时以退出码 1 结束。
func connect(ctx context.Context, p *xpromise.Promise[bool]) error {
	if _, err := p.Await(ctx); err != nil {
		return &exitError{code: 1, msg: fmt.Sprintf("store unavailable: %v", err)}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdAdd(ctx context.Context, cmd *cli.Command, e *env) error {
	name := cmd.Args().Get(0)
	if name == "" {
		return &usageError{msg: "add requires <name>"}
	}
	if err := connect(ctx, e.todos.Connect()); err != nil {
		return err
	}
	todo := todorepo.NewTodo(name, cmd.Args().Get(1))
	if _, err := e.todos.AddTodo(todo).Await(ctx); err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, todo)
}

func cmdGet(ctx context.Context, cmd *cli.Command, e *env) error {
	id := cmd.Args().Get(0)
	if id == "" {
		return &usageError{msg: "get requires <id>"}
	}
	if err := connect(ctx, e.todos.Connect()); err != nil {
		return err
	}
	todo, err := e.todos.LoadTodo(id).Await(ctx)
	if err != nil {
		return err
	}
	if todo == nil {
		return &exitError{code: 1, msg: fmt.Sprintf("todo %s not found", id)}
	}
	return printJSON(cmd.Root().Writer, todo)
}

func cmdList(ctx context.Context, cmd *cli.Command, e *env) error {
	if err := connect(ctx, e.todos.Connect()); err != nil {
		return err
	}
	todos, err := e.todos.LoadTodos().Await(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, todos)
}

// checkReport 是 check 命令的输出。
type checkReport struct {
	Store     string           `json:"store"`
	Service   string           `json:"service,omitempty"`
	Connected bool             `json:"connected"`
	Health    string           `json:"health"`
	Failing   []string         `json:"failing,omitempty"`
	Error     string           `json:"error,omitempty"`
	Counters  map[string]int64 `json:"counters"`
}

func cmdCheck(ctx context.Context, cmd *cli.Command, e *env) error {
	_, connErr := e.todos.Connect().Await(ctx)
	core := e.todos.Core()
	health := e.health.Snapshot()
	report := checkReport{
		Store:     core.Store(),
		Service:   core.Config().Service,
		Connected: core.IsConnected(),
		Health:    health.Status(),
		Failing:   health.Owners,
		Counters:  e.metrics.Counters(),
	}
	if connErr != nil {
		report.Error = connErr.Error()
	}
	if err := printJSON(cmd.Root().Writer, report); err != nil {
		return err
	}
	if connErr != nil {
		return &exitError{code: 1}
	}
	return nil
}

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "常驻运行：健康检查、心跳、配置热重载",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "heartbeat", Usage: "心跳间隔", Value: defaultHeartbeat},
			&cli.DurationFlag{Name: "run-for", Usage: "运行指定时长后退出，0 表示直到收到信号"},
		},
		Action: cmdServe,
	}
}

// serveReport 是 serve 退出时输出的指标摘要。
type serveReport struct {
	Alive    int64            `json:"alive"`
	Counters map[string]int64 `json:"counters"`
}

func cmdServe(ctx context.Context, cmd *cli.Command) error {
	settings, src, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	e, err := newEnv(settings, cmd.Root().ErrWriter)
	if err != nil {
		return err
	}

	stopHeartbeat := e.reactor.Repeating(cmd.Duration("heartbeat"), func() {
		e.sink.RecordLevel(AliveMetric, 1)
	})
	services := []xrun.Service{
		xrun.Lifecycle("todo", e.todos.Start, e.todos.Close, closeTimeout),
		xrun.Lifecycle("subscription", e.subs.Start, e.subs.Close, closeTimeout),
		xrun.Lifecycle("asset", e.assets.Start, e.assets.Close, closeTimeout),
	}
	if src != nil {
		w, err := xconf.Watch(src, func(s xconf.Settings, err error) { e.applyReload(s, err) })
		if err != nil {
			return errors.Join(err, e.release())
		}
		w.Start()
		services = append(services, xrun.Until("config-watch", w))
	}
	if d := cmd.Duration("run-for"); d > 0 {
		services = append(services, func(ctx context.Context) error {
			select {
			case <-time.After(d):
				return errRunForElapsed
			case <-ctx.Done():
				return nil
			}
		})
	}

	e.logger.Info(ctx, "todoctl: serving", slog.String("store", settings.Store.Driver),
		slog.String("queue", settings.Queue.Kind))
	runErr := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(e.logger), xrun.WithName("todoctl")}, services...)
	stopHeartbeat()
	if errors.Is(runErr, xrun.ErrSignal) || errors.Is(runErr, errRunForElapsed) {
		e.logger.Info(ctx, "todoctl: shutting down", xlog.Err(runErr))
		runErr = nil
	}

	alive, _ := e.metrics.Level(AliveMetric)
	report := serveReport{Alive: alive, Counters: e.metrics.Counters()}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	return errors.Join(runErr, e.close(closeCtx), printJSON(cmd.Root().Writer, report))
}

// applyReload 应用热重载后的日志级别，其余配置需重启生效。
func (e *env) applyReload(s xconf.Settings, err error) {
	ctx := context.Background()
	if err != nil {
		e.logger.Warn(ctx, "todoctl: config reload failed", xlog.Err(err))
		return
	}
	level, err := xlog.ParseLevel(s.Log.Level)
	if err != nil {
		e.logger.Warn(ctx, "todoctl: invalid log level", xlog.Err(err))
		return
	}
	e.logger.SetLevel(level)
	e.logger.Info(ctx, "todoctl: config reloaded", slog.String("level", level.String()))
}

func createSubCommand() *cli.Command {
	return &cli.Command{
		Name:  "sub",
		Usage: "订阅管理",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "新增订阅",
				ArgsUsage: "<name>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "third-party", Usage: "第三方订阅 ID"}},
				Action:    withEnv(cmdSubAdd),
			},
			{Name: "list", Usage: "列出订阅", Action: withEnv(cmdSubList)},
			{Name: "rename", Usage: "修改订阅名称", ArgsUsage: "<id> <name>", Action: withEnv(cmdSubRename)},
			{Name: "rm", Usage: "删除订阅", ArgsUsage: "<id>", Action: withEnv(cmdSubRemove)},
		},
	}
}

func cmdSubAdd(ctx context.Context, cmd *cli.Command, e *env) error {
	name := cmd.Args().Get(0)
	if name == "" {
		return &usageError{msg: "sub add requires <name>"}
	}
	if err := connect(ctx, e.subs.Connect()); err != nil {
		return err
	}
	sub, err := e.subs.Store(subrepo.Subscription{Name: name, ThirdPartyID: cmd.String("third-party")}).Await(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, sub)
}

func cmdSubList(ctx context.Context, cmd *cli.Command, e *env) error {
	if err := connect(ctx, e.subs.Connect()); err != nil {
		return err
	}
	subs, err := e.subs.List().Await(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, subs)
}

func cmdSubRename(ctx context.Context, cmd *cli.Command, e *env) error {
	id, name := cmd.Args().Get(0), cmd.Args().Get(1)
	if id == "" || name == "" {
		return &usageError{msg: "sub rename requires <id> <name>"}
	}
	if err := connect(ctx, e.subs.Connect()); err != nil {
		return err
	}
	ok, err := e.subs.Update(subrepo.Subscription{ID: id, Name: name}).Await(ctx)
	return reportApplied(ok, err, "subscription", id)
}

func cmdSubRemove(ctx context.Context, cmd *cli.Command, e *env) error {
	id := cmd.Args().Get(0)
	if id == "" {
		return &usageError{msg: "sub rm requires <id>"}
	}
	if err := connect(ctx, e.subs.Connect()); err != nil {
		return err
	}
	ok, err := e.subs.Remove(id).Await(ctx)
	return reportApplied(ok, err, "subscription", id)
}

func reportApplied(ok bool, err error, kind, id string) error {
	if err != nil {
		return err
	}
	if !ok {
		return &exitError{code: 1, msg: fmt.Sprintf("%s %s not found", kind, id)}
	}
	return nil
}

func createAssetCommand() *cli.Command {
	return &cli.Command{
		Name:  "asset",
		Usage: "资产管理",
		Commands: []*cli.Command{
			{Name: "add", Usage: "新增资产", ArgsUsage: "<name>", Action: withEnv(cmdAssetAdd)},
			{Name: "get", Usage: "读取资产", ArgsUsage: "<id>", Action: withEnv(cmdAssetGet)},
			{Name: "list", Usage: "列出资产", Action: withEnv(cmdAssetList)},
			{Name: "rm", Usage: "删除资产", ArgsUsage: "<id>", Action: withEnv(cmdAssetRemove)},
		},
	}
}

func cmdAssetAdd(ctx context.Context, cmd *cli.Command, e *env) error {
	name := cmd.Args().Get(0)
	if name == "" {
		return &usageError{msg: "asset add requires <name>"}
	}
	if err := connect(ctx, e.assets.Connect()); err != nil {
		return err
	}
	asset, err := e.assets.Store(assetrepo.Asset{Name: name}).Await(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, asset)
}

func cmdAssetGet(ctx context.Context, cmd *cli.Command, e *env) error {
	id := cmd.Args().Get(0)
	if id == "" {
		return &usageError{msg: "asset get requires <id>"}
	}
	if err := connect(ctx, e.assets.Connect()); err != nil {
		return err
	}
	asset, err := e.assets.Find(id).Await(ctx)
	if err != nil {
		return err
	}
	if asset == nil {
		return &exitError{code: 1, msg: fmt.Sprintf("asset %s not found", id)}
	}
	return printJSON(cmd.Root().Writer, asset)
}

func cmdAssetList(ctx context.Context, cmd *cli.Command, e *env) error {
	if err := connect(ctx, e.assets.Connect()); err != nil {
		return err
	}
	assets, err := e.assets.List().Await(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, assets)
}

func cmdAssetRemove(ctx context.Context, cmd *cli.Command, e *env) error {
	id := cmd.Args().Get(0)
	if id == "" {
		return &usageError{msg: "asset rm requires <id>"}
	}
	if err := connect(ctx, e.assets.Connect()); err != nil {
		return err
	}
	ok, err := e.assets.Remove(id).Await(ctx)
	return reportApplied(ok, err, "asset", id)
}
