// Package confirm 把“需要用户确认”的交互抽象为 Confirmer，执行层不关心确认来自终端还是前端页面。
package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Kind 区分确认的语境。
type Kind string

const (
	// KindSourceFailed：某来源失败，询问是否继续下一个来源（拒绝 = 中止整批）。
	KindSourceFailed Kind = "source_failed"
	// KindSourcePrompt：子进程来源在运行中发出的提问。
	KindSourcePrompt Kind = "source_prompt"
)

type Request struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Source  string `json:"source,omitempty"`
	Subject string `json:"subject,omitempty"` // code 或演员名
	Message string `json:"message"`
}

// Confirmer 请求一次是/否确认。ctx 取消时必须尽快返回 ctx.Err()。
type Confirmer interface {
	Confirm(ctx context.Context, req Request) (bool, error)
}

// Fixed 总是给出同一个答案（非交互模式与测试使用）。
type Fixed bool

func (f Fixed) Confirm(context.Context, Request) (bool, error) { return bool(f), nil }

// Stdio 在终端上提问，读取一行 y/n。默认（空行/EOF）为否。
type Stdio struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewStdio(in io.Reader, out io.Writer) *Stdio {
	return &Stdio{in: bufio.NewReader(in), out: out}
}

func (s *Stdio) Confirm(ctx context.Context, req Request) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := fmt.Fprintf(s.out, "%s [y/N]: ", prompt(req)); err != nil {
		return false, err
	}

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := s.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.err != io.EOF {
			return false, a.err
		}
		return Yes(a.line), nil
	}
}

// Yes 判断一行输入是否表示同意（y/yes，大小写不敏感）。
func Yes(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func prompt(req Request) string {
	msg := strings.TrimSpace(req.Message)
	var tags []string
	if req.Source != "" {
		tags = append(tags, req.Source)
	}
	if req.Subject != "" {
		tags = append(tags, req.Subject)
	}
	if len(tags) == 0 {
		return msg
	}
	return "[" + strings.Join(tags, " ") + "] " + msg
}
