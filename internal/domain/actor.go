package domain

import (
	"strings"
	"time"
)

// ActorRecord 是演员的权威记录（每个 ID 对应且仅对应一个 {id}.nfo）。
//
// 约束：
// - ID 是 slug；除非索引命中已有 ID，否则由 Name 确定性推导
// - 身体数据缺失时为 0，字符串缺失时为空串
type ActorRecord struct {
	ID         string
	Name       string
	AltName    string
	OtherNames []string

	Birthdate string // ISO date
	Height    int    // cm
	Bust      int
	Waist     int
	Hips      int

	ThumbURL   string // 远端原图
	ThumbLocal string // 手动上传的本地文件名
	Thumb      string // 展示用（由 store.ActorStore.Save 解析）

	Sources    []string
	LastUpdate time.Time
}

// NameVariants 返回该记录应写入名称索引的所有名称（未做大小写处理）。
// altName 允许用逗号分隔多个别名。
func (a ActorRecord) NameVariants() []string {
	out := make([]string, 0, 2+len(a.OtherNames))
	if s := strings.TrimSpace(a.Name); s != "" {
		out = append(out, s)
	}
	for _, seg := range SplitAltName(a.AltName) {
		out = append(out, seg)
	}
	for _, o := range a.OtherNames {
		if s := strings.TrimSpace(o); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SplitAltName 按半角/全角逗号切分 altName，并去掉空段。
func SplitAltName(alt string) []string {
	if strings.TrimSpace(alt) == "" {
		return nil
	}
	parts := strings.FieldsFunc(alt, func(r rune) bool { return r == ',' || r == '，' || r == '、' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Ref 把 ActorRecord 投影为 MovieRecord 内嵌的 ActorRef（role 由调用方保留）。
func (a ActorRecord) Ref(role string) ActorRef {
	return ActorRef{
		Name:      a.Name,
		AltName:   a.AltName,
		Role:      role,
		Thumb:     a.Thumb,
		Birthdate: a.Birthdate,
		Height:    a.Height,
		Bust:      a.Bust,
		Waist:     a.Waist,
		Hips:      a.Hips,
	}
}
