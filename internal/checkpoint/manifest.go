package checkpoint

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/ashwinyue/qa-grader/internal/model"
)

// ManifestSuffix 旁路清单文件后缀
const ManifestSuffix = ".manifest.json"

// ManifestPath 返回产物对应的清单路径
func ManifestPath(artifact string) string {
	return artifact + ManifestSuffix
}

// WriteManifest 写入旁路清单（先写临时文件再重命名）
func WriteManifest(artifact string, m *model.Manifest) error {
	const op = "checkpoint.write_manifest"
	path := ManifestPath(artifact)

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &model.OpError{Op: op, Kind: model.KindInternal, Path: path, Err: err}
	}

	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return &model.OpError{Op: op, Kind: model.KindInternal, Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &model.OpError{Op: op, Kind: model.KindInternal, Path: path, Err: err}
	}
	return nil
}

// ReadManifest 读取旁路清单，不存在时返回 not_found
func ReadManifest(artifact string) (*model.Manifest, error) {
	const op = "checkpoint.read_manifest"
	path := ManifestPath(artifact)

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &model.OpError{Op: op, Kind: model.KindNotFound, Path: path, Err: model.ErrNotFound}
		}
		return nil, &model.OpError{Op: op, Kind: model.KindInternal, Path: path, Err: err}
	}

	var m model.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, &model.OpError{Op: op, Kind: model.KindMalformed, Path: path, Err: err}
	}
	return &m, nil
}
