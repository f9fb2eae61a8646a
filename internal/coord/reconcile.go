package coord

import (
	"strings"

	"github.com/John-Robertt/avmeta/internal/domain"
)

// ReconcileRefs 用权威的 ActorRecord 重写影片内嵌的 ActorRef（role 保持不变）。
// 找不到记录的 ref 原样保留。changed 表示至少一个 ref 发生了变化。
func ReconcileRefs(refs []domain.ActorRef, lookup func(name string) (domain.ActorRecord, bool)) ([]domain.ActorRef, bool) {
	if len(refs) == 0 {
		return refs, false
	}
	out := make([]domain.ActorRef, len(refs))
	changed := false
	for i, ref := range refs {
		out[i] = ref
		name := strings.TrimSpace(ref.Name)
		if name == "" {
			continue
		}
		rec, ok := lookup(name)
		if !ok {
			continue
		}
		next := rec.Ref(ref.Role)
		// 影片里出现的名字保持原样（可能是别名）。
		next.Name = ref.Name
		if next.AltName == "" {
			next.AltName = ref.AltName
		}
		if next.Thumb == "" {
			next.Thumb = ref.Thumb
		}
		if next != ref {
			out[i] = next
			changed = true
		}
	}
	return out, changed
}
