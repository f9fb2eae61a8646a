package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockName 是缓存目录下的批处理锁文件名。
const LockName = ".avmeta.lock"

// ErrLocked 表示另一个批处理正在使用同一个缓存目录。
var ErrLocked = errors.New("batch: 缓存目录正被另一个进程使用")

// Lock 对缓存目录加非阻塞的独占锁。拿不到锁时立即返回 ErrLocked。
func Lock(cacheDir string) (unlock func() error, err error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(cacheDir, LockName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return fl.Unlock, nil
}
