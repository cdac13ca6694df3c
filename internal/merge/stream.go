package merge

import (
	"github.com/ecodeclub/ekit/queue"
)

// cursor 一个分片游标，以及它当前行的排序键
type cursor struct {
	result QueryResult
	shard  int
	keys   []any
}

// advance 移动到下一行并且读出排序键
func (c *cursor) advance(cols columns) (bool, error) {
	ok, err := c.result.Next()
	if err != nil || !ok {
		return false, err
	}
	return true, cols.load(c.result, c.keys)
}

// kWayMerger 归并多个各自有序的分片游标。
// 排序键相同的时候按照分片的注册顺序，保证输出稳定。
// 同一时刻每个分片只会读一行，内存占用和分片数量成正比
type kWayMerger struct {
	results []QueryResult
	cols    columns
	pq      *queue.PriorityQueue[*cursor]
	inited  bool
}

func newKWayMerger(results []QueryResult, cols columns) *kWayMerger {
	return &kWayMerger{
		results: results,
		cols:    cols,
		pq: queue.NewPriorityQueue[*cursor](len(results), func(src, dst *cursor) int {
			if res := cols.compare(src.keys, dst.keys); res != 0 {
				return res
			}
			return src.shard - dst.shard
		}),
	}
}

// init 第一次使用的时候每个分片读一行
func (m *kWayMerger) init() error {
	if m.inited {
		return nil
	}
	m.inited = true
	for i, r := range m.results {
		c := &cursor{result: r, shard: i, keys: make([]any, len(m.cols))}
		if err := m.push(c); err != nil {
			return err
		}
	}
	return nil
}

// push 游标前进一行，还有数据就放回队列
func (m *kWayMerger) push(c *cursor) error {
	ok, err := c.advance(m.cols)
	if err != nil || !ok {
		return err
	}
	return m.pq.Enqueue(c)
}

// pop 取出当前最小的游标，没有了返回 nil
func (m *kWayMerger) pop() *cursor {
	c, err := m.pq.Dequeue()
	if err != nil {
		return nil
	}
	return c
}

// peekSame 队首的游标和 keys 是否属于同一组
func (m *kWayMerger) peekSame(keys []any) bool {
	c, err := m.pq.Peek()
	if err != nil {
		return false
	}
	return m.cols.compare(c.keys, keys) == 0
}
