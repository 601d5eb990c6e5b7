package site

import (
	"fmt"
	"sync"

	"github.com/samber/lo"
)

// Registry 站点 ID → 站点的映射，保持插入顺序，控制面板实体始终排在首位
type Registry struct {
	mu    sync.RWMutex
	ids   IDAllocator
	order []*Site
	byID  map[string]*Site
}

// NewRegistry 创建注册表；ids 为空时使用 UUID
func NewRegistry(ids IDAllocator) *Registry {
	if ids == nil {
		ids = UUIDAllocator{}
	}
	return &Registry{
		ids:  ids,
		byID: make(map[string]*Site),
	}
}

// AddMain 注册控制面板实体。重复调用返回已存在的实体。
func (r *Registry) AddMain(url string, icon []byte) *Site {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[MainID]; ok {
		return existing
	}
	s := &Site{ID: MainID, URL: url, Main: true, Icon: icon}
	r.byID[MainID] = s
	r.order = append([]*Site{s}, r.order...)
	return s
}

// Add 注册一个新站点，状态为 Uninitialized
func (r *Registry) Add(rawURL string) (*Site, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.ids.NextID()
	// 分配器不应重复，防御性地重试几次
	for i := 0; i < 8 && (id == MainID || r.byID[id] != nil); i++ {
		id = r.ids.NextID()
	}
	if id == MainID || r.byID[id] != nil {
		return nil, fmt.Errorf("无法分配唯一的站点 ID: %s", id)
	}

	s := &Site{ID: id, URL: u}
	r.byID[id] = s
	r.order = append(r.order, s)
	return s, nil
}

// Find 按 ID 查找站点；已删除的站点视为不存在
func (r *Registry) Find(id string) (*Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok || !s.Alive() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Main 返回控制面板实体（未注册时为 nil）
func (r *Registry) Main() *Site {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[MainID]
}

// Remove 从注册表移除站点
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	r.order = lo.Reject(r.order, func(s *Site, _ int) bool { return s.ID == id })
}

// All 按插入顺序返回全部站点，控制面板在首位
func (r *Registry) All() []*Site {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Site, len(r.order))
	copy(out, r.order)
	return out
}

// Visible 返回需要持久化的站点：未删除且不是控制面板
func (r *Registry) Visible() []*Site {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(r.order, func(s *Site, _ int) bool {
		return !s.Main && s.Status.Code() > StatusDeleted.Code()
	})
}

// VisibleURLs 返回 Visible 站点的地址列表
func (r *Registry) VisibleURLs() []string {
	return lo.Map(r.Visible(), func(s *Site, _ int) string { return s.URL })
}

// Len 当前站点数量（含控制面板）
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
