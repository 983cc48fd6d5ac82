// Package dispatch 提供检测循环与后台消费者之间的命令通道。
//
// 通道为无界FIFO队列：生产者Put永不阻塞（检测循环每帧执行一次，
// 不允许等待消费者），消费者Get阻塞等待。Close作为关闭哨兵，
// 已入队的消息会先被消费完。
package dispatch

import (
	"sync"

	"wisefido-vision/internal/models"
)

// queue 无界FIFO队列（多生产者/单消费者）
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []interface{}
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// put 入队，永不阻塞。队列已关闭时丢弃并返回false
func (q *queue) put(v interface{}) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, v)
	q.cond.Signal()
	return true
}

// get 出队，队列为空时阻塞。队列关闭且已清空时返回false
func (q *queue) get() (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return nil, false
	}

	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

// tryGet 非阻塞出队。第二个返回值表示是否取到，第三个表示队列是否已关闭且清空
func (q *queue) tryGet() (interface{}, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false, q.closed
	}

	v := q.items[0]
	q.items = q.items[1:]
	return v, true, false
}

// close 关闭队列（哨兵）。唤醒阻塞中的消费者
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// CommandQueue 持久化命令通道
type CommandQueue struct {
	q *queue
}

// NewCommandQueue 创建持久化命令通道
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{q: newQueue()}
}

// Put 入队命令，永不阻塞
func (c *CommandQueue) Put(cmd models.Command) {
	c.q.put(cmd)
}

// Get 阻塞出队。通道关闭且清空时返回false
func (c *CommandQueue) Get() (models.Command, bool) {
	v, ok := c.q.get()
	if !ok {
		return models.Command{}, false
	}
	return v.(models.Command), true
}

// Close 关闭通道
func (c *CommandQueue) Close() {
	c.q.close()
}

// Len 当前积压数量
func (c *CommandQueue) Len() int {
	return c.q.len()
}

// TaskQueue VLM分析任务通道
type TaskQueue struct {
	q *queue
}

// NewTaskQueue 创建VLM任务通道
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{q: newQueue()}
}

// Put 入队任务，永不阻塞
func (t *TaskQueue) Put(task models.VLMTask) {
	t.q.put(task)
}

// Get 阻塞出队。通道关闭且清空时返回false
func (t *TaskQueue) Get() (models.VLMTask, bool) {
	v, ok := t.q.get()
	if !ok {
		return models.VLMTask{}, false
	}
	return v.(models.VLMTask), true
}

// TryGet 非阻塞出队
func (t *TaskQueue) TryGet() (models.VLMTask, bool) {
	v, got, _ := t.q.tryGet()
	if !got {
		return models.VLMTask{}, false
	}
	return v.(models.VLMTask), true
}

// Close 关闭通道
func (t *TaskQueue) Close() {
	t.q.close()
}

// Len 当前积压数量
func (t *TaskQueue) Len() int {
	return t.q.len()
}

// ResultQueue VLM结果通道
// 生命周期管理器目前不消费该通道，仅作为扩展点保留
type ResultQueue struct {
	q *queue
}

// NewResultQueue 创建VLM结果通道
func NewResultQueue() *ResultQueue {
	return &ResultQueue{q: newQueue()}
}

// Put 入队结果，永不阻塞
func (r *ResultQueue) Put(result models.VLMResult) {
	r.q.put(result)
}

// TryGet 非阻塞出队
func (r *ResultQueue) TryGet() (models.VLMResult, bool) {
	v, got, _ := r.q.tryGet()
	if !got {
		return models.VLMResult{}, false
	}
	return v.(models.VLMResult), true
}

// Close 关闭通道
func (r *ResultQueue) Close() {
	r.q.close()
}
