// Package execsrc 把外部刮削程序（子进程）接入为来源。
//
// 协议：
//   - 参数：配置的命令行 + 标识（影片为一个或多个番号，演员为一个名称）
//   - stdout：影片为 JSON 数组（部分记录），演员为单个 JSON 对象或 null
//   - stderr：逐行诊断输出；以 "@@CONFIRM " 开头的行是提问，通过 Confirmer 取得答案后
//     向子进程 stdin 写入 "y\n" 或 "n\n"；以 "@@LIMIT" 开头的行表示子进程自身的会话额度用尽
//   - 退出码非 0 视为失败
package execsrc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/confirm"
	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/session"
	"github.com/John-Robertt/avmeta/internal/source"
)

const (
	EntityMovie = "movie"
	EntityActor = "actor"

	confirmPrefix = "@@CONFIRM "
	limitPrefix   = "@@LIMIT"

	// 保留最后几行 stderr 用于错误信息。
	stderrTail = 5
)

// Config 对应配置文件中的一个 exec_sources 条目。
type Config struct {
	Name    string   `json:"name" toml:"name"`
	Entity  string   `json:"entity" toml:"entity"`
	Command []string `json:"command" toml:"command"`
}

// Source 是一个子进程来源。Entity 决定它实现的是影片还是演员契约。
type Source struct {
	name      string
	entity    string
	command   []string
	confirmer confirm.Confirmer
	log       *zap.Logger
}

// New 校验配置并构造来源。confirmer 为 nil 时所有提问都回答 "n"。
func New(cfg Config, confirmer confirm.Confirmer, log *zap.Logger) (*Source, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		return nil, errors.New("exec source: name 不能为空")
	}
	entity := strings.ToLower(strings.TrimSpace(cfg.Entity))
	if entity != EntityMovie && entity != EntityActor {
		return nil, fmt.Errorf("exec source %q: entity 必须是 movie 或 actor，实际 %q", name, cfg.Entity)
	}
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, fmt.Errorf("exec source %q: command 不能为空", name)
	}
	if confirmer == nil {
		confirmer = confirm.Fixed(false)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{
		name:      name,
		entity:    entity,
		command:   append([]string(nil), cfg.Command...),
		confirmer: confirmer,
		log:       log.Named("exec").With(zap.String("source", name)),
	}, nil
}

func (s *Source) Name() string   { return s.name }
func (s *Source) Entity() string { return s.entity }

// ScrapeMovies 以番号为参数运行子进程。会话由子进程自行管理，这里不使用 sess。
func (s *Source) ScrapeMovies(ctx context.Context, _ *session.Session, codes []domain.Code) ([]domain.MovieRecord, error) {
	args := make([]string, 0, len(codes))
	for _, c := range codes {
		args = append(args, string(c))
	}
	out, err := s.run(ctx, strings.Join(args, ","), args)
	if err != nil {
		return nil, err
	}
	recs, err := decodeMovies(out)
	if err != nil {
		return nil, &source.Error{Source: s.name, Stage: "decode", Err: err}
	}
	return recs, nil
}

// ScrapeActor 以演员名为参数运行子进程。stdout 为 null/空时返回 (nil, nil)。
func (s *Source) ScrapeActor(ctx context.Context, _ *session.Session, name string) (*domain.ActorRecord, error) {
	out, err := s.run(ctx, name, []string{name})
	if err != nil {
		return nil, err
	}
	rec, err := decodeActor(out)
	if err != nil {
		return nil, &source.Error{Source: s.name, Stage: "decode", Err: err}
	}
	if rec != nil {
		rec.Sources = []string{s.name}
	}
	return rec, nil
}

func (s *Source) run(ctx context.Context, subject string, args []string) ([]byte, error) {
	argv := append(append([]string(nil), s.command[1:]...), args...)
	cmd := exec.CommandContext(ctx, s.command[0], argv...)
	cmd.WaitDelay = 2 * time.Second

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &source.Error{Source: s.name, Stage: "exec", Err: err}
	}
	// stderr 经 io.Pipe 转交给读取协程：Wait 受 WaitDelay 约束，
	// 孙进程持有 stderr 不放时也不会无限阻塞。
	pr, pw := io.Pipe()
	cmd.Stderr = pw

	started := time.Now()
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		return nil, &source.Error{Source: s.name, Stage: "exec", Err: err}
	}

	type drained struct {
		tail    []string
		limited bool
	}
	ch := make(chan drained, 1)
	go func() {
		tail, limited := s.drainStderr(ctx, subject, pr, stdin)
		_, _ = io.Copy(io.Discard, pr)
		ch <- drained{tail: tail, limited: limited}
	}()

	waitErr := cmd.Wait()
	_ = pw.Close()
	d := <-ch
	tail, limited := d.tail, d.limited

	s.log.Debug("child exited",
		zap.String("subject", subject),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("stdout_bytes", stdout.Len()),
		zap.Error(waitErr))

	if limited {
		return nil, &session.LimitError{URL: s.name}
	}
	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &source.Error{Source: s.name, Stage: "exec", Err: ctxErr}
		}
		msg := strings.Join(tail, " | ")
		if msg != "" {
			waitErr = fmt.Errorf("%w; stderr: %s", waitErr, msg)
		}
		return nil, &source.Error{Source: s.name, Stage: "exec", Err: waitErr}
	}
	return stdout.Bytes(), nil
}

// drainStderr 逐行处理 stderr：诊断行写日志，提问行交给 Confirmer 并把答案写回 stdin。
func (s *Source) drainStderr(ctx context.Context, subject string, r io.Reader, stdin io.Writer) (tail []string, limited bool) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.HasPrefix(line, confirmPrefix):
			q := strings.TrimSpace(strings.TrimPrefix(line, confirmPrefix))
			ok, err := s.confirmer.Confirm(ctx, confirm.Request{
				Kind:    confirm.KindSourcePrompt,
				Source:  s.name,
				Subject: subject,
				Message: q,
			})
			if err != nil {
				s.log.Warn("confirmation failed, answering no", zap.String("question", q), zap.Error(err))
				ok = false
			}
			answer := "n\n"
			if ok {
				answer = "y\n"
			}
			if _, err := io.WriteString(stdin, answer); err != nil {
				s.log.Warn("write answer to child failed", zap.Error(err))
			}
		case strings.HasPrefix(line, limitPrefix):
			limited = true
		case strings.TrimSpace(line) != "":
			s.log.Debug("child stderr", zap.String("line", line))
			tail = append(tail, line)
			if len(tail) > stderrTail {
				tail = tail[1:]
			}
		}
	}
	return tail, limited
}
