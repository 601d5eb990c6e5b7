// Package site 定义托盘站点实体与站点注册表
package site

import (
	"fmt"
	"net/url"
	"strings"
)

// MainID 控制面板实体的保留 ID
const MainID = "main"

// Site 一个被托盘托管的网站。
// Status 之外的运行时句柄（托盘、窗口）由 lifecycle.Controller 持有。
type Site struct {
	ID   string
	URL  string
	Main bool

	// Icon 预置图标（控制面板）或异步解析得到的 favicon
	Icon []byte

	Status Status
}

// View 推送给前端的站点快照
type View struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Main   bool   `json:"main"`
	Status int    `json:"status"`
	State  Status `json:"state"`
}

// View 返回站点的只读快照
func (s *Site) View() View {
	return View{
		ID:     s.ID,
		URL:    s.URL,
		Main:   s.Main,
		Status: s.Status.Code(),
		State:  s.Status,
	}
}

// Alive 站点未被删除
func (s *Site) Alive() bool {
	return s.Status != StatusDeleted
}

// ValidateURL 校验用户添加的站点地址：必须是带主机名的 http/https 地址
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: 地址为空", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: 不支持的协议 %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: 缺少主机名", ErrInvalidURL)
	}
	return raw, nil
}
