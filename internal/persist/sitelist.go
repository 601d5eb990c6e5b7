// Package persist 读写站点列表文件（JSON 字符串数组）
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// IOError 站点列表文件读写失败
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("站点列表%s失败 (%s): %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError 站点列表文件内容损坏
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("站点列表解析失败 (%s): %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FileStore 将可见站点地址整体覆盖写入单个 JSON 文件
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path 返回文件路径
func (s *FileStore) Path() string {
	return s.path
}

// Load 读取站点地址列表。
// 文件不存在时返回 *IOError（errors.Is(err, fs.ErrNotExist) 成立），内容损坏返回 *ParseError。
func (s *FileStore) Load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &IOError{Op: "读取", Path: s.path, Err: err}
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, &ParseError{Path: s.path, Err: err}
	}
	return urls, nil
}

// Save 整体写入站点地址列表（先写临时文件再 rename，避免写一半时崩溃损坏文件）
func (s *FileStore) Save(urls []string) error {
	if urls == nil {
		urls = []string{}
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return &IOError{Op: "编码", Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &IOError{Op: "创建目录", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".sites-*.json")
	if err != nil {
		return &IOError{Op: "写入", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &IOError{Op: "写入", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &IOError{Op: "写入", Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &IOError{Op: "写入", Path: s.path, Err: err}
	}
	return nil
}
