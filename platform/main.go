package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/meoying/shardingfed/config"
	"github.com/meoying/shardingfed/internal/executor"
	"github.com/meoying/shardingfed/internal/job"
	"github.com/meoying/shardingfed/internal/merge"
	"github.com/meoying/shardingfed/internal/routelog"
	"github.com/meoying/shardingfed/internal/service"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	path := pflag.StringP("config", "c", "config/config.yaml", "配置文件路径")
	audit := pflag.Bool("audit", false, "消费 Kafka 里的路由日志并打印")
	pflag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigchan
		cancel()
	}()

	if *audit {
		runAudit(ctx, cfg)
		return
	}
	if pflag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "用法: platform -c config.yaml 'SELECT ...' [参数...]")
		os.Exit(2)
	}

	svc, err := initService(ctx, cfg, *path)
	if err != nil {
		panic(err)
	}
	sql, args := pflag.Arg(0), parseArgs(pflag.Args()[1:])
	plan, err := svc.Explain(sql, args, nil)
	if err != nil {
		panic(err)
	}
	if plan.Statement.Kind.IsDML() {
		affected, err := svc.Exec(ctx, sql, args, nil)
		if err != nil {
			panic(err)
		}
		fmt.Printf("影响行数: %d\n", affected)
		return
	}
	if err = query(ctx, svc, sql, args); err != nil {
		panic(err)
	}
}

func initService(ctx context.Context, cfg config.Config, path string) (*service.QueryService, error) {
	dbs, err := initDBs(cfg.DataSources)
	if err != nil {
		return nil, err
	}
	dialect, err := cfg.ParseDialect()
	if err != nil {
		return nil, err
	}
	rule, err := cfg.BuildRule()
	if err != nil {
		return nil, err
	}
	holder := job.NewRuleHolder(rule)
	exec := executor.NewExecutor(dbs)
	if cfg.Watch.Interval > 0 {
		watcher := job.NewRuleWatcher(holder, func(ctx context.Context) (*sharding.Rule, error) {
			latest, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return latest.BuildRule()
		}, cfg.Watch.Interval)
		watcher.Checker = exec.HasTable
		watcher.Start(ctx)
	}

	svc := service.NewQueryService(holder, exec, merge.NewEngine(dialect))
	var sinks routelog.MultiSink
	if cfg.Log.SQLShow {
		sinks = append(sinks, routelog.NewSlogSink())
	}
	if cfg.Log.Kafka.Addr != "" {
		producer, err := initProducer(cfg.Log.Kafka)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, routelog.NewKafkaSink(producer, cfg.Log.Kafka.Topic))
	}
	if len(sinks) > 0 {
		svc.RouteLog = sinks
	}
	return svc, nil
}

func query(ctx context.Context, svc *service.QueryService, sql string, args []any) error {
	rs, err := svc.Query(ctx, sql, args, nil)
	if err != nil {
		return err
	}
	defer rs.Close()
	fmt.Println(strings.Join(rs.Columns(), "\t"))
	for {
		ok, err := rs.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		row, err := rs.Row()
		if err != nil {
			return err
		}
		vals := make([]string, 0, len(row))
		for _, v := range row {
			if v == nil {
				vals = append(vals, "NULL")
				continue
			}
			vals = append(vals, cast.ToString(v))
		}
		fmt.Println(strings.Join(vals, "\t"))
	}
}

// parseArgs 命令行参数都是字符串，整数转成 int64，分片算法需要数字
func parseArgs(raw []string) []any {
	res := make([]any, 0, len(raw))
	for _, r := range raw {
		if i, err := cast.ToInt64E(r); err == nil {
			res = append(res, i)
			continue
		}
		res = append(res, r)
	}
	return res
}

func runAudit(ctx context.Context, cfg config.Config) {
	kafka := cfg.Log.Kafka
	if kafka.Addr == "" || kafka.GroupID == "" {
		panic("审计模式需要配置 log.kafka.addr 和 log.kafka.groupID")
	}
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	consumer, err := sarama.NewConsumerGroup(strings.Split(kafka.Addr, ","), kafka.GroupID, saramaCfg)
	if err != nil {
		panic(err)
	}
	defer consumer.Close()
	handler := routelog.NewConsumer(routelog.NewSlogSink())
	for ctx.Err() == nil {
		// 发生 rebalance 之后 Consume 会返回，需要重新加入
		if err = consumer.Consume(ctx, []string{kafka.Topic}, handler); err != nil {
			slog.Error("消费路由日志失败", slog.Any("err", err))
			return
		}
	}
}

func initDBs(sources []config.DB) (map[string]*gorm.DB, error) {
	dbs := make(map[string]*gorm.DB, len(sources))
	for _, s := range sources {
		db, err := gorm.Open(mysql.Open(s.DSN))
		if err != nil {
			return nil, fmt.Errorf("连接数据源 %s 失败 %w", s.Name, err)
		}
		dbs[s.Name] = db
	}
	return dbs, nil
}

func initProducer(kafka config.Kafka) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Partitioner = sarama.NewRandomPartitioner
	return sarama.NewSyncProducer(strings.Split(kafka.Addr, ","), cfg)
}
