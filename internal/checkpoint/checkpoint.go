// Package checkpoint locates model artifacts on disk for resuming training
// and for inference.
//
// Two selection policies exist and they deliberately differ on "nothing
// found": FindLatestByEpoch reports found=false without an error (a fresh
// training run is a valid outcome), while Latest fails with a not_found error
// (inference cannot proceed without a model).
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ashwinyue/qa-grader/internal/model"
	"go.uber.org/zap"
)

const (
	// Ext checkpoint 文件扩展名
	Ext = ".ckpt"
	// exportedPrefix 导出目录的通用前缀
	exportedPrefix = "checkpoint-"
	tmpSuffix      = ".tmp"
)

// Finder 在文件系统中查找 checkpoint
type Finder struct {
	logger *zap.Logger
}

// NewFinder 创建 Finder
func NewFinder(logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{logger: logger}
}

// FindLatestByEpoch 返回 dir 下 epoch 最大的 {prefix}*.ckpt 的绝对路径。
// 目录不存在或没有匹配项时 found 为 false 且不返回错误。
func (f *Finder) FindLatestByEpoch(dir, prefix string) (string, bool, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		f.logger.Warn("checkpoint directory not found", zap.String("dir", dir))
		return "", false, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, &model.OpError{Op: "checkpoint.find_by_epoch", Kind: model.KindInternal, Path: dir, Err: err}
	}

	epochRe := epochPattern(prefix)
	best := ""
	highest := -1

	// os.ReadDir 按文件名排序，同 epoch 时先出现的胜出
	for _, entry := range entries {
		name := entry.Name()
		if !matchesGlob(name, prefix) {
			continue
		}

		path := filepath.Join(dir, name)
		epoch, ok := epochFromManifest(path, prefix)
		if !ok {
			epoch, ok = parseEpoch(epochRe, name)
		}
		if !ok {
			continue
		}

		if epoch > highest {
			highest = epoch
			best = path
		}
	}

	if best == "" {
		return "", false, nil
	}

	abs, err := filepath.Abs(best)
	if err != nil {
		return "", false, &model.OpError{Op: "checkpoint.find_by_epoch", Kind: model.KindInternal, Path: best, Err: err}
	}

	f.logger.Debug("resume checkpoint selected", zap.String("path", abs), zap.Int("epoch", highest))
	return abs, true, nil
}

// Latest 递归查找 root 下以 marker 开头或匹配 checkpoint-* 的最新产物（按修改时间）。
// 修改时间相同时取字典序更大的路径。没有候选时返回 not_found 错误。
func (f *Finder) Latest(root, marker string) (*model.Artifact, error) {
	const op = "checkpoint.latest"

	if marker == "" {
		return nil, &model.OpError{Op: op, Kind: model.KindInvalidArgument, Path: root, Err: errors.New("marker is empty")}
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, &model.OpError{Op: op, Kind: model.KindNotFound, Path: root, Err: fmt.Errorf("no %s checkpoints: %w", marker, model.ErrNotFound)}
	}

	var (
		bestPath string
		bestTime time.Time
		bestDir  bool
	)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// 不可读的子目录直接跳过
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root || !isCandidate(d.Name(), marker) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}

		mod := fi.ModTime()
		if bestPath == "" || mod.After(bestTime) || (mod.Equal(bestTime) && path > bestPath) {
			bestPath, bestTime, bestDir = path, mod, d.IsDir()
		}
		return nil
	})
	if walkErr != nil {
		return nil, &model.OpError{Op: op, Kind: model.KindInternal, Path: root, Err: walkErr}
	}

	if bestPath == "" {
		return nil, &model.OpError{Op: op, Kind: model.KindNotFound, Path: root, Err: fmt.Errorf("no %s checkpoints: %w", marker, model.ErrNotFound)}
	}

	artifactType := model.ArtifactCheckpoint
	if bestDir {
		artifactType = model.ArtifactDir
	}

	return &model.Artifact{Path: bestPath, Type: artifactType, ModTime: bestTime}, nil
}

// Resolve 优先使用显式指定的路径，否则取 root 下最新的产物，并校验产物类型
func (f *Finder) Resolve(explicit, root, marker string) (*model.Artifact, error) {
	const op = "checkpoint.resolve"

	if explicit == "" {
		latest, err := f.Latest(root, marker)
		if err != nil {
			return nil, err
		}
		if latest.Type == model.ArtifactCheckpoint && filepath.Ext(latest.Path) != Ext {
			return nil, &model.OpError{Op: op, Kind: model.KindUnsupported, Path: latest.Path, Err: errors.New("unknown checkpoint type")}
		}
		return latest, nil
	}

	info, err := os.Stat(explicit)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &model.OpError{Op: op, Kind: model.KindNotFound, Path: explicit, Err: model.ErrNotFound}
		}
		return nil, &model.OpError{Op: op, Kind: model.KindInternal, Path: explicit, Err: err}
	}

	artifact := &model.Artifact{Path: explicit, ModTime: info.ModTime()}
	switch {
	case info.IsDir():
		artifact.Type = model.ArtifactDir
	case filepath.Ext(explicit) == Ext:
		artifact.Type = model.ArtifactCheckpoint
	default:
		return nil, &model.OpError{Op: op, Kind: model.KindUnsupported, Path: explicit, Err: errors.New("unknown checkpoint type")}
	}
	return artifact, nil
}

// ParseEpoch 从文件名中解析 epoch，格式为 {prefix}-epoch=<digits>...ckpt
func ParseEpoch(prefix, name string) (int, bool) {
	return parseEpoch(epochPattern(prefix), name)
}

// FilenameTemplate 交给运行时的文件名模板，渲染结果形如
// {prefix}-epoch=07-val_loss=0.123.ckpt，可由 ParseEpoch 解析
func FilenameTemplate(prefix, monitor string) string {
	return fmt.Sprintf("%s-{epoch:02d}-{%s:.3f}", prefix, monitor)
}

func epochPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(prefix) + `-epoch=(\d+).*\.ckpt$`)
}

func parseEpoch(re *regexp.Regexp, name string) (int, bool) {
	m := re.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	epoch, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return epoch, true
}

// matchesGlob 等价于 {prefix}*.ckpt，隐藏文件仅在 prefix 以 . 开头时匹配
func matchesGlob(name, prefix string) bool {
	if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
		return false
	}
	return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, Ext) && len(name) >= len(prefix)+len(Ext)
}

func isCandidate(name, marker string) bool {
	if strings.HasSuffix(name, ManifestSuffix) || strings.HasSuffix(name, tmpSuffix) {
		return false
	}
	return strings.HasPrefix(name, marker) || strings.HasPrefix(name, exportedPrefix)
}

func epochFromManifest(artifact, prefix string) (int, bool) {
	m, err := ReadManifest(artifact)
	if err != nil {
		return 0, false
	}
	if m.Prefix != "" && m.Prefix != prefix {
		return 0, false
	}
	if m.Epoch < 0 {
		return 0, false
	}
	return m.Epoch, true
}
