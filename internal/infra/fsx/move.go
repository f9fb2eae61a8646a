package fsx

import (
	"fmt"
	"os"
)

const (
	MoveDone       = "moved"
	MoveRolledBack = "rolled_back"
	MoveFailed     = "failed"
)

// Move 是一次文件移动及其最终状态。
type Move struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Status string `json:"status"`
}

// MoveAll 依次移动 moves（Status 被忽略并重写）。
//
// 任一移动失败（包括目标已存在）时，倒序把已完成的移动移回原处；
// 返回值包含每一项实际到达的状态，未轮到的项不出现在结果中。
func MoveAll(moves []Move) ([]Move, error) {
	out := make([]Move, 0, len(moves))
	for _, m := range moves {
		m.Status = MoveDone
		err := moveOne(m.Src, m.Dst)
		if err != nil {
			m.Status = MoveFailed
			out = append(out, m)
			rollback(out[:len(out)-1])
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

func moveOne(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("目标已存在：%s", dst)
	}
	return Rename(src, dst)
}

func rollback(done []Move) {
	for i := len(done) - 1; i >= 0; i-- {
		if err := Rename(done[i].Dst, done[i].Src); err != nil {
			done[i].Status = MoveFailed
			continue
		}
		done[i].Status = MoveRolledBack
	}
}
