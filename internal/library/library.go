// Package library 把一部已缓存的影片“提升”进媒体库目录：
// 写 NFO -> 下载 fanart -> 裁切 poster -> 移动视频 -> 删除缓存 JSON。
//
// 约束：移动视频永远是最后一步；sidecar 任一失败都禁止移动。
// sidecar 不覆盖已有文件（已存在视为满足）。
package library

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/infra/fsx"
	"github.com/John-Robertt/avmeta/internal/infra/imgx"
	"github.com/John-Robertt/avmeta/internal/nfo"
	"github.com/John-Robertt/avmeta/internal/scan"
	"github.com/John-Robertt/avmeta/internal/store"
)

const (
	FanartName = "fanart.jpg"
	PosterName = "poster.jpg"
)

const (
	StageNFO    = "nfo"
	StageFanart = "fanart"
	StagePoster = "poster"
	StageMove   = "move"
)

// Error 指明提升在哪个阶段失败。
type Error struct {
	Code  domain.Code
	Stage string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("%s %s 失败：%v", e.Code, e.Stage, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Result 是一次提升的结果。
type Result struct {
	Code  domain.Code `json:"code"`
	Dir   string      `json:"dir"`
	Files []string    `json:"files"`
	Moves []fsx.Move  `json:"moves"`
	// CacheRemoved 表示缓存 JSON 已删除。
	CacheRemoved bool `json:"cacheRemoved"`
}

type Promoter struct {
	library string
	movies  *store.MovieStore
	client  *http.Client
	log     *zap.Logger
}

// New 构造 Promoter。client 用于下载 fanart（见 httpx.NewImageClient）。
func New(libraryPath string, movies *store.MovieStore, client *http.Client, log *zap.Logger) *Promoter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Promoter{library: filepath.Clean(libraryPath), movies: movies, client: client, log: log.Named("library")}
}

// Promote 把 code 对应的缓存影片写入 {library}/{code}/。
func (p *Promoter) Promote(ctx context.Context, code domain.Code) (Result, error) {
	env, ok := p.movies.Load(code)
	if !ok {
		return Result{Code: code}, fmt.Errorf("%s：%w", code, store.ErrNotFound)
	}
	rec := env.Data
	code = rec.Code

	outDir := filepath.Join(p.library, string(code))
	res := Result{Code: code, Dir: outDir}
	if err := fsx.EnsureDir(outDir); err != nil {
		return res, &Error{Code: code, Stage: StageNFO, Err: err}
	}

	// sidecar 写入（原子 + 不覆盖）。任何失败都禁止 move。
	b, err := nfo.EncodeMovie(rec)
	if err != nil {
		return res, &Error{Code: code, Stage: StageNFO, Err: err}
	}
	nfoName := string(code) + ".nfo"
	if err := writeSidecar(outDir, nfoName, b); err != nil {
		return res, &Error{Code: code, Stage: StageNFO, Err: err}
	}
	res.Files = append(res.Files, nfoName)

	fanart, err := p.fanart(ctx, outDir, rec)
	if err != nil {
		return res, &Error{Code: code, Stage: StageFanart, Err: err}
	}
	res.Files = append(res.Files, FanartName)

	// poster 由 fanart 裁切得到；不再单独下载 cover。
	poster, err := imgx.Poster(fanart)
	if err != nil {
		return res, &Error{Code: code, Stage: StagePoster, Err: err}
	}
	if err := writeSidecar(outDir, PosterName, poster); err != nil {
		return res, &Error{Code: code, Stage: StagePoster, Err: err}
	}
	res.Files = append(res.Files, PosterName)

	// move：最后一步。中途失败 => 尝试回滚已移动文件。
	res.Moves, err = p.moveVideos(code, env.VideoFile, outDir)
	if err != nil {
		return res, &Error{Code: code, Stage: StageMove, Err: err}
	}

	removed, err := p.movies.Delete(code)
	if err != nil {
		p.log.Warn("remove cache json failed", zap.String("code", string(code)), zap.Error(err))
	}
	res.CacheRemoved = removed
	p.log.Info("promoted", zap.String("code", string(code)), zap.String("dir", outDir), zap.Int("videos", len(res.Moves)))
	return res, nil
}

// fanart 下载并写入 fanart.jpg；已存在时直接读取本地文件。
func (p *Promoter) fanart(ctx context.Context, outDir string, rec domain.MovieRecord) ([]byte, error) {
	if b, ok, err := fsx.ReadFileIfExists(filepath.Join(outDir, FanartName)); err != nil {
		return nil, err
	} else if ok {
		return b, nil
	}

	u := strings.TrimSpace(rec.FanartURL)
	if u == "" {
		u = strings.TrimSpace(rec.CoverURL)
	}
	if u == "" {
		return nil, errors.New("记录没有 fanartUrl/coverUrl，无法下载 fanart")
	}
	b, err := download(ctx, p.client, u, rec.Website)
	if err != nil {
		return nil, fmt.Errorf("下载 %s：%w", u, err)
	}
	if err := writeSidecar(outDir, FanartName, b); err != nil {
		return nil, err
	}
	return b, nil
}

// moveVideos 移动媒体库根目录下所有属于 code 的视频（多分段同 CODE 一起移动）。
func (p *Promoter) moveVideos(code domain.Code, videoFile, outDir string) ([]fsx.Move, error) {
	files, err := scan.ScanVideos(p.library)
	if err != nil {
		return nil, err
	}
	var moves []fsx.Move
	for _, f := range files {
		if domain.SameCode(f.Code, code) || (videoFile != "" && f.Name == videoFile) {
			moves = append(moves, fsx.Move{Src: f.AbsPath, Dst: filepath.Join(outDir, f.Name)})
		}
	}
	if len(moves) == 0 {
		p.log.Info("no video to move", zap.String("code", string(code)))
		return nil, nil
	}
	return fsx.MoveAll(moves)
}

func writeSidecar(dir, name string, b []byte) error {
	err := fsx.WriteAtomic(dir, name, b, fsx.Create)
	if err == nil || errors.Is(err, os.ErrExist) {
		return nil
	}
	return err
}
