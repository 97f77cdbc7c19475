// Package testutil 提供测试辅助工具
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// FileHelper 文件相关的测试辅助
type FileHelper struct {
	t    *testing.T
	root string
}

// NewFileHelper 在临时目录上创建文件辅助器
func NewFileHelper(t *testing.T) *FileHelper {
	t.Helper()
	return &FileHelper{t: t, root: t.TempDir()}
}

// Root 返回临时根目录
func (h *FileHelper) Root() string {
	return h.root
}

// Path 返回根目录下的路径
func (h *FileHelper) Path(parts ...string) string {
	return filepath.Join(append([]string{h.root}, parts...)...)
}

// WriteFile 写入文件并创建父目录，返回完整路径
func (h *FileHelper) WriteFile(rel, content string) string {
	h.t.Helper()
	path := h.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		h.t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		h.t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Mkdir 创建目录，返回完整路径
func (h *FileHelper) Mkdir(rel string) string {
	h.t.Helper()
	path := h.Path(rel)
	if err := os.MkdirAll(path, 0o755); err != nil {
		h.t.Fatalf("mkdir %s: %v", path, err)
	}
	return path
}

// TouchAt 创建文件（或目录，rel 以 / 结尾时）并设置修改时间
func (h *FileHelper) TouchAt(rel string, mod time.Time) string {
	h.t.Helper()
	var path string
	if strings.HasSuffix(rel, "/") {
		path = h.Mkdir(rel)
	} else {
		path = h.WriteFile(rel, "")
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		h.t.Fatalf("chtimes %s: %v", path, err)
	}
	return path
}

// WriteJSONL 将记录逐行写入 JSONL 文件
func (h *FileHelper) WriteJSONL(rel string, records ...interface{}) string {
	h.t.Helper()
	var sb strings.Builder
	for _, r := range records {
		if s, ok := r.(string); ok {
			sb.WriteString(s)
		} else {
			b, err := json.Marshal(r)
			if err != nil {
				h.t.Fatalf("marshal: %v", err)
			}
			sb.Write(b)
		}
		sb.WriteByte('\n')
	}
	return h.WriteFile(rel, sb.String())
}

// ReadLines 读取文件的非空行
func (h *FileHelper) ReadLines(path string) []string {
	h.t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		h.t.Fatalf("read %s: %v", path, err)
	}
	var lines []string
	for _, l := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
