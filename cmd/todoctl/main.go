// todoctl 是 todokit 仓储的命令行工具。
//
// 用法:
//
//	todoctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config     配置文件（.yaml/.yml/.json），缺省使用内置默认值
//	    --store      存储驱动 memory|mongo|clickhouse
//	    --queue      旁路队列 none|memory|redis|kafka|pulsar
//	    --service    服务发现提示，如 dns://mongo.todo.svc:27017
//	    --static     静态端点 host:port，可重复
//	    --log-level  日志级别
//	-t, --timeout    单条命令的超时时间 (默认: 30s)
//
// 命令:
//
//	serve          常驻运行：健康检查、心跳、配置热重载
//	add <name>     写入一个 Todo
//	get <id>       读取 Todo 的最新版本
//	list           列出 Todo
//	check          连接存储并报告健康状态与指标
//	sub            订阅管理（add/list/rename/rm）
//
// 退出码:
//
//	0: 成功
//	1: 执行失败、记录不存在或存储不可用
//	2: 参数错误
//
// 示例:
//
//	todoctl add "buy milk" "two bottles"
//	todoctl --store mongo --service dns://mongo.todo.svc:27017 list
//	todoctl -c /etc/todokit/todo.yaml serve
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

const defaultTimeout = 30 * time.Second

// 版本信息，可通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "todoctl",
		Usage:     "todokit 仓储命令行工具",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "配置文件路径"},
			&cli.StringFlag{Name: "store", Usage: "存储驱动 memory|mongo|clickhouse"},
			&cli.StringFlag{Name: "queue", Usage: "旁路队列 none|memory|redis|kafka|pulsar"},
			&cli.StringFlag{Name: "service", Usage: "服务发现提示"},
			&cli.StringSliceFlag{Name: "static", Usage: "静态端点 host:port"},
			&cli.StringFlag{Name: "log-level", Usage: "日志级别 debug|info|warn|error"},
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Usage: "命令超时时间", Value: defaultTimeout},
		},
		Commands: createCommands(),
		// 退出码由 run 统一映射，禁止 urfave/cli 直接退出进程。
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := createApp(stdout, stderr).Run(ctx, args)
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.msg != "" {
			fmt.Fprintln(stderr, exitErr.msg)
		}
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}

// exitError 以指定退出码结束，msg 非空时输出到 stderr。
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// usageError 表示参数错误。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }
