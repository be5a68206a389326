package cache

import (
	"container/list"
	"strings"
	"sync"

	"omnis-alertmanager/internal/alert"
	"omnis-alertmanager/internal/logging"
)

// MaxTmpMessages 去重缓存的容量上限
const MaxTmpMessages = 20000

// Engine 预警元数据与运行期缓存。
// 元数据（编码定义、发送规则、禁止规则）启动后只读，无需加锁；
// 去重缓存与重发快照在派发与调度器之间共享，各自持锁。
type Engine struct {
	items   map[string]*alert.Item
	rules   map[string]*alert.SendRule
	forbids []*alert.ForbidRule

	tmpMu      sync.Mutex
	tmpIndex   map[string]*list.Element
	tmpOrder   *list.List // 队首最旧
	tmpMax     int

	snapMu    sync.Mutex
	snapshots map[string]*alert.ResendSnapshot
}

type tmpEntry struct {
	key       string
	isRecover bool
}

func New(items map[string]*alert.Item, rules map[string]*alert.SendRule, forbids []*alert.ForbidRule) *Engine {
	e := &Engine{
		items:     make(map[string]*alert.Item, len(items)),
		rules:     make(map[string]*alert.SendRule, len(rules)),
		forbids:   forbids,
		tmpIndex:  make(map[string]*list.Element),
		tmpOrder:  list.New(),
		tmpMax:    MaxTmpMessages,
		snapshots: make(map[string]*alert.ResendSnapshot),
	}
	for code, item := range items {
		e.items[strings.ToUpper(code)] = item
	}
	for code, rule := range rules {
		e.rules[strings.ToUpper(code)] = rule
	}
	logging.Infof("alert cache primed with %d items / %d rules / %d forbid rules",
		len(e.items), len(e.rules), len(e.forbids))
	return e
}

func (e *Engine) GetItem(code string) *alert.Item {
	return e.items[strings.ToUpper(code)]
}

func (e *Engine) GetSendRule(code string) *alert.SendRule {
	return e.rules[strings.ToUpper(code)]
}

func (e *Engine) ForbidRules() []*alert.ForbidRule {
	return e.forbids
}

// AddTmpMessage 记录一条已处理的事件，重复写入只刷新新旧顺序；
// 超出容量时循环剔除最旧条目（批量增长时一次 pop 不够）。
func (e *Engine) AddTmpMessage(eventID, project string, isRecover bool) {
	key := alert.DedupKey(eventID, project)
	e.tmpMu.Lock()
	defer e.tmpMu.Unlock()
	if el, ok := e.tmpIndex[key]; ok {
		el.Value.(*tmpEntry).isRecover = isRecover
		e.tmpOrder.MoveToBack(el)
		return
	}
	e.tmpIndex[key] = e.tmpOrder.PushBack(&tmpEntry{key: key, isRecover: isRecover})
	for e.tmpOrder.Len() > e.tmpMax {
		oldest := e.tmpOrder.Front()
		e.tmpOrder.Remove(oldest)
		delete(e.tmpIndex, oldest.Value.(*tmpEntry).key)
	}
}

// CheckTmpMessage 查询事件是否处理过。seen 为 false 表示缓存内未出现，
// 否则 wasRecover 指示此前观察到的是恢复事件还是产生事件。
func (e *Engine) CheckTmpMessage(eventID, project string) (wasRecover, seen bool) {
	e.tmpMu.Lock()
	defer e.tmpMu.Unlock()
	el, ok := e.tmpIndex[alert.DedupKey(eventID, project)]
	if !ok {
		return false, false
	}
	return el.Value.(*tmpEntry).isRecover, true
}

// TmpMessageCount 当前去重缓存大小（测试用）。
func (e *Engine) TmpMessageCount() int {
	e.tmpMu.Lock()
	defer e.tmpMu.Unlock()
	return e.tmpOrder.Len()
}

// PutSnapshot 登记重发快照，键为记录 ID。
func (e *Engine) PutSnapshot(recordID string, snap *alert.ResendSnapshot) {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	e.snapshots[recordID] = snap
}

// SnapshotList 拷贝一份当前快照表，调度器在锁外遍历。
func (e *Engine) SnapshotList() map[string]*alert.ResendSnapshot {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	out := make(map[string]*alert.ResendSnapshot, len(e.snapshots))
	for k, v := range e.snapshots {
		out[k] = v
	}
	return out
}

func (e *Engine) RemoveSnapshot(recordID string) {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	delete(e.snapshots, recordID)
}
