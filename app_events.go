// app_events.go - 控制面板事件
// 站点状态变化只推送给控制面板窗口

package main

import (
	"log/slog"

	"traysites/internal/lifecycle"
	"traysites/internal/logging"
	"traysites/internal/site"
)

// 事件名称常量
const (
	EventSiteNew    = "site:new"
	EventSiteStatus = "site:status"
	EventSiteList   = "site:list"
	EventLogBatch   = logging.EventLogBatch
)

// SiteNewEvent site:new 负载
type SiteNewEvent struct {
	ID     string      `json:"id"`
	URL    string      `json:"url"`
	Status int         `json:"status"`
	State  site.Status `json:"state"`
}

// SiteStatusEvent site:status 负载
type SiteStatusEvent struct {
	ID     string      `json:"id"`
	Status int         `json:"status"`
	State  site.Status `json:"state"`
}

// SiteListEvent site:list 负载
type SiteListEvent struct {
	List []string `json:"list"`
}

// panelEmitter 向指定窗口发送事件（由 tray.Host 实现）
type panelEmitter interface {
	Emit(id, name string, data any) bool
}

// panelNotifier 实现 lifecycle.Notifier，事件地址固定为控制面板窗口。
// 控制面板未打开时事件直接丢弃，打开后通过 ListSites 拉取完整列表。
type panelNotifier struct {
	emitter panelEmitter
	logger  *slog.Logger
}

var _ lifecycle.Notifier = (*panelNotifier)(nil)

func (n *panelNotifier) emit(name string, data any) {
	if n.emitter == nil {
		return
	}
	if !n.emitter.Emit(site.MainID, name, data) {
		n.logger.Debug("控制面板未打开，跳过事件", "event", name)
	}
}

func (n *panelNotifier) SiteAdded(v site.View) {
	n.emit(EventSiteNew, SiteNewEvent{ID: v.ID, URL: v.URL, Status: v.Status, State: v.State})
}

func (n *panelNotifier) StatusChanged(v site.View) {
	n.emit(EventSiteStatus, SiteStatusEvent{ID: v.ID, Status: v.Status, State: v.State})
}

func (n *panelNotifier) SitesLoaded(urls []string) {
	n.emit(EventSiteList, SiteListEvent{List: urls})
}

// emitLog 日志批量事件的发送函数
func (a *App) emitLog(name string, data any) {
	a.mu.RLock()
	host := a.host
	a.mu.RUnlock()
	if host != nil {
		host.Emit(site.MainID, name, data)
	}
}
