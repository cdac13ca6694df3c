package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ecodeclub/ekit/slice"
	"github.com/meoying/shardingfed/internal/sharding"
)

// Loader 重新读取配置并构造分片规则
type Loader func(ctx context.Context) (*sharding.Rule, error)

// RuleWatcher 定期重新加载分片规则，它需要做的事情有：
// 1. 按照固定间隔调用 Loader 构造新的规则
// 2. 比较新旧规则的数据节点，记录新增和淘汰的节点
// 3. 替换 RuleHolder 里的规则
type RuleWatcher struct {
	holder   *RuleHolder
	loader   Loader
	interval time.Duration
	clock    clock.Clock
	// Checker 检查新增的数据节点是否已经建表，为 nil 的时候不检查
	Checker func(ctx context.Context, node sharding.DataNode) bool
	Logger  *slog.Logger
}

func NewRuleWatcher(holder *RuleHolder, loader Loader, interval time.Duration) *RuleWatcher {
	return &RuleWatcher{
		holder:   holder,
		loader:   loader,
		interval: interval,
		clock:    clock.New(),
		Logger:   slog.Default(),
	}
}

// Start 立刻创建 ticker，然后在后台监听，ctx 结束就退出
func (w *RuleWatcher) Start(ctx context.Context) {
	ticker := w.clock.Ticker(w.interval)
	go w.watch(ctx, ticker)
}

func (w *RuleWatcher) watch(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			loadCtx, cancel := context.WithTimeout(ctx, time.Second*3)
			err := w.Reload(loadCtx)
			cancel()
			if err != nil {
				// 加载失败继续使用旧的规则
				w.Logger.Error("重新加载分片规则失败", slog.Any("err", err))
			}
		case <-ctx.Done():
			w.Logger.Info("退出分片规则监听")
			return
		}
	}
}

func (w *RuleWatcher) Reload(ctx context.Context) error {
	latest, err := w.loader(ctx)
	if err != nil {
		return fmt.Errorf("加载分片规则失败 %w", err)
	}
	cur := w.holder.Load()
	// latest 有的，cur 没有，就是新的数据节点
	// cur 有的，latest 没有，就是已经不再使用的数据节点
	added := slice.DiffSet(latest.DataNodes(), cur.DataNodes())
	for _, n := range added {
		w.Logger.Info("新增数据节点", slog.String("node", n.String()))
		if w.Checker != nil && !w.Checker(ctx, n) {
			w.Logger.Warn("数据节点对应的表不存在", slog.String("node", n.String()))
		}
	}
	removed := slice.DiffSet(cur.DataNodes(), latest.DataNodes())
	for _, n := range removed {
		w.Logger.Info("淘汰数据节点", slog.String("node", n.String()))
	}
	w.holder.Store(latest)
	return nil
}
