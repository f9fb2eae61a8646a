package merge

import (
	"strings"

	"github.com/John-Robertt/avmeta/internal/domain"
)

// LocalThumbPrefix 是手动上传头像的展示路径前缀（thumb = 前缀 + thumbLocal）。
const LocalThumbPrefix = "/actors/thumbs/"

// ActorInput 是一个来源对某演员的一次成功刮削结果。
type ActorInput struct {
	Source string
	Record domain.ActorRecord
}

type actorField struct {
	name  string
	empty func(a *domain.ActorRecord) bool
	copy  func(dst, src *domain.ActorRecord)
}

// actorFields 是参与逐字段合并的字段表（otherNames/sources/thumbLocal 另行处理）。
var actorFields = []actorField{
	{"name", func(a *domain.ActorRecord) bool { return emptyString(a.Name) }, func(d, s *domain.ActorRecord) { d.Name = strings.TrimSpace(s.Name) }},
	{"altName", func(a *domain.ActorRecord) bool { return emptyString(a.AltName) }, func(d, s *domain.ActorRecord) { d.AltName = strings.TrimSpace(s.AltName) }},
	{"birthdate", func(a *domain.ActorRecord) bool { return emptyString(a.Birthdate) }, func(d, s *domain.ActorRecord) { d.Birthdate = strings.TrimSpace(s.Birthdate) }},
	{"height", func(a *domain.ActorRecord) bool { return a.Height == 0 }, func(d, s *domain.ActorRecord) { d.Height = s.Height }},
	{"bust", func(a *domain.ActorRecord) bool { return a.Bust == 0 }, func(d, s *domain.ActorRecord) { d.Bust = s.Bust }},
	{"waist", func(a *domain.ActorRecord) bool { return a.Waist == 0 }, func(d, s *domain.ActorRecord) { d.Waist = s.Waist }},
	{"hips", func(a *domain.ActorRecord) bool { return a.Hips == 0 }, func(d, s *domain.ActorRecord) { d.Hips = s.Hips }},
	{"thumbUrl", func(a *domain.ActorRecord) bool { return emptyString(a.ThumbURL) }, func(d, s *domain.ActorRecord) { d.ThumbURL = strings.TrimSpace(s.ThumbURL) }},
	{"thumb", func(a *domain.ActorRecord) bool { return emptyString(a.Thumb) }, func(d, s *domain.ActorRecord) { d.Thumb = strings.TrimSpace(s.Thumb) }},
}

// ActorAcrossSources 合并多个新鲜刮削结果（没有本地基线）。
//
// 规则：
//   - 每个字段取 priority 中第一个给出非空值的来源；priority 未列出的来源排在其后（按名称）
//   - otherNames 取所有来源的并集
//   - Sources（溯源）为至少贡献了一个字段的来源，按合并顺序排列
//
// 结果与 inputs 的数组顺序无关。
func ActorAcrossSources(inputs []ActorInput, priority []string) domain.ActorRecord {
	bySource := make(map[string]*domain.ActorRecord, len(inputs))
	names := make([]string, 0, len(inputs))
	for i := range inputs {
		name := strings.ToLower(strings.TrimSpace(inputs[i].Source))
		if _, ok := bySource[name]; ok {
			continue
		}
		bySource[name] = &inputs[i].Record
		names = append(names, name)
	}
	order := orderSources(names, priority)

	var out domain.ActorRecord
	contributed := make(map[string]bool, len(order))
	for _, f := range actorFields {
		for _, src := range order {
			r := bySource[src]
			if f.empty(r) {
				continue
			}
			f.copy(&out, r)
			contributed[src] = true
			break
		}
	}

	others := make([][]string, 0, len(order))
	for _, src := range order {
		r := bySource[src]
		if len(r.OtherNames) > 0 {
			others = append(others, r.OtherNames)
			contributed[src] = true
		}
	}
	out.OtherNames = union(others...)

	for _, src := range order {
		if contributed[src] {
			out.Sources = append(out.Sources, src)
		}
	}
	return out
}

// ActorLocalWins 用新刮削结果补全本地记录：本地非空字段永远胜出，空字段才回退到 scraped。
//
// 特例：本地存在手动上传的头像（thumbLocal 非空）时，thumbLocal/thumb/thumbUrl 全部保持本地值，
// 避免远端头像在 Save 的 thumb 解析中顶掉用户上传的图片。
//
// 性质：ActorLocalWins(local, domain.ActorRecord{}) == local。
func ActorLocalWins(local, scraped domain.ActorRecord) domain.ActorRecord {
	out := local
	out.OtherNames = cloneStrings(local.OtherNames)
	out.Sources = cloneStrings(local.Sources)

	pinnedThumb := !emptyString(local.ThumbLocal)
	for _, f := range actorFields {
		if pinnedThumb && (f.name == "thumb" || f.name == "thumbUrl") {
			continue
		}
		if f.empty(&out) && !f.empty(&scraped) {
			f.copy(&out, &scraped)
		}
	}

	if emptyString(out.ID) {
		out.ID = scraped.ID
	}
	if len(scraped.OtherNames) > 0 {
		out.OtherNames = union(local.OtherNames, scraped.OtherNames)
	}
	if len(scraped.Sources) > 0 {
		out.Sources = union(local.Sources, scraped.Sources)
	}
	return out
}

// ResolveThumb 计算展示用 thumb：
// 远端原图 thumbUrl > 已经是远端地址的 thumb > 手动上传标记路径 > 空。
func ResolveThumb(a domain.ActorRecord) string {
	if u := strings.TrimSpace(a.ThumbURL); u != "" {
		return u
	}
	if t := strings.TrimSpace(a.Thumb); isRemote(t) {
		return t
	}
	if l := strings.TrimSpace(a.ThumbLocal); l != "" {
		return LocalThumbPrefix + l
	}
	return ""
}

// ActorComplete 判断演员记录是否“完整”：
// name/altName/birthdate/height/bust/waist/hips/thumb 八项全部非空/非零。
//
// 这是多来源刮削的停止条件，刻意严格：缺任何一项都会在下次访问时继续刮削。
func ActorComplete(a domain.ActorRecord) bool {
	return !emptyString(a.Name) &&
		!emptyString(a.AltName) &&
		!emptyString(a.Birthdate) &&
		a.Height != 0 &&
		a.Bust != 0 &&
		a.Waist != 0 &&
		a.Hips != 0 &&
		!emptyString(a.Thumb)
}

// MissingActorFields 返回缺失的必填字段名（用于日志与报告）。
func MissingActorFields(a domain.ActorRecord) []string {
	var out []string
	check := func(name string, missing bool) {
		if missing {
			out = append(out, name)
		}
	}
	check("name", emptyString(a.Name))
	check("altName", emptyString(a.AltName))
	check("birthdate", emptyString(a.Birthdate))
	check("height", a.Height == 0)
	check("bust", a.Bust == 0)
	check("waist", a.Waist == 0)
	check("hips", a.Hips == 0)
	check("thumb", emptyString(a.Thumb))
	return out
}

func isRemote(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "//")
}
