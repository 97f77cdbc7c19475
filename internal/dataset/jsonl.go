// Package dataset 提供 JSONL 数据集读写与训练样本构建
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ashwinyue/qa-grader/internal/model"
)

// maxLineSize 单行最大长度
const maxLineSize = 4 << 20

// ReadJSONL 读取 JSONL 文件，每行解码为一个 T，空行跳过。
// 文件不存在返回 not_found，任意一行解码失败返回 malformed。
func ReadJSONL[T any](path string) ([]T, error) {
	return readJSONL[T](path, nil)
}

// ReadJSONLLenient 与 ReadJSONL 相同，但解码失败的行交给 skip 后跳过
func ReadJSONLLenient[T any](path string, skip func(line int, err error)) ([]T, error) {
	if skip == nil {
		skip = func(int, error) {}
	}
	return readJSONL[T](path, skip)
}

func readJSONL[T any](path string, skip func(line int, err error)) ([]T, error) {
	const op = "dataset.read"

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &model.OpError{Op: op, Kind: model.KindNotFound, Path: path, Err: model.ErrNotFound}
		}
		return nil, &model.OpError{Op: op, Kind: model.KindInternal, Path: path, Err: err}
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			if skip != nil {
				skip(lineNo, err)
				continue
			}
			kind := model.KindMalformed
			if model.IsKind(err, model.KindInvalidArgument) {
				kind = model.KindInvalidArgument
			}
			return nil, &model.OpError{Op: op, Kind: kind, Path: path, Err: fmt.Errorf("line %d: %w", lineNo, err)}
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &model.OpError{Op: op, Kind: model.KindInternal, Path: path, Err: err}
	}
	return out, nil
}

// CountLines 统计文件行数，文件不存在时为 0
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, &model.OpError{Op: "dataset.count", Kind: model.KindInternal, Path: path, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	n := 0
	for scanner.Scan() {
		n++
	}
	if err := scanner.Err(); err != nil {
		return 0, &model.OpError{Op: "dataset.count", Kind: model.KindInternal, Path: path, Err: err}
	}
	return n, nil
}

// AppendJSONL 将记录逐行追加到文件末尾，必要时创建父目录。
// 文件末尾缺少换行（上次写入被截断）时先补一个换行。
func AppendJSONL(path string, records ...interface{}) error {
	const op = "dataset.append"

	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return &model.OpError{Op: op, Kind: model.KindInvalidArgument, Path: path, Err: err}
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &model.OpError{Op: op, Kind: model.KindInternal, Path: path, Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return &model.OpError{Op: op, Kind: model.KindInternal, Path: path, Err: err}
	}
	defer f.Close()

	out := buf.Bytes()
	torn, err := missingNewline(f)
	if err != nil {
		return &model.OpError{Op: op, Kind: model.KindInternal, Path: path, Err: err}
	}
	if torn {
		out = append([]byte{'\n'}, out...)
	}

	if _, err := f.Write(out); err != nil {
		return &model.OpError{Op: op, Kind: model.KindInternal, Path: path, Err: err}
	}
	return nil
}

// missingNewline 判断非空文件的最后一个字节是否不是换行
func missingNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// WriteJSONL 原子地重写整个文件（临时文件 + rename）
func WriteJSONL[T any](path string, records []T) error {
	const op = "dataset.write"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &model.OpError{Op: op, Kind: model.KindInternal, Path: path, Err: err}
	}

	var buf bytes.Buffer
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return &model.OpError{Op: op, Kind: model.KindInvalidArgument, Path: path, Err: err}
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return &model.OpError{Op: op, Kind: model.KindInternal, Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &model.OpError{Op: op, Kind: model.KindInternal, Path: path, Err: err}
	}
	return nil
}

// Appender 串行化同一文件上的并发追加
type Appender struct {
	mu   sync.Mutex
	path string
}

// NewAppender 创建追加器
func NewAppender(path string) *Appender {
	return &Appender{path: path}
}

// Path 返回目标文件
func (a *Appender) Path() string {
	return a.path
}

// Append 追加记录
func (a *Appender) Append(records ...interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AppendJSONL(a.path, records...)
}

// Count 返回当前行数
func (a *Appender) Count() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return CountLines(a.path)
}
