package nfo

import (
	"encoding/xml"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/John-Robertt/avmeta/internal/domain"
)

// actorDoc 是演员缓存文件 {id}.nfo 的 XML 结构。
//
// 约束：
// - 每个字段一个元素；数组（othername/source）重复元素
// - 数值以纯整数输出；为 0/空时整个元素省略
// - ID 不写入文件：它由文件名决定（见 store.ActorStore）
type actorDoc struct {
	XMLName xml.Name `xml:"actor"`

	Name       string   `xml:"name"`
	AltName    string   `xml:"altname,omitempty"`
	OtherNames []string `xml:"othername,omitempty"`

	Birthdate string `xml:"birthdate,omitempty"`
	Height    measure `xml:"height,omitempty"`
	Bust      measure `xml:"bust,omitempty"`
	Waist     measure `xml:"waist,omitempty"`
	Hips      measure `xml:"hips,omitempty"`

	Thumb      string `xml:"thumb,omitempty"`
	ThumbURL   string `xml:"thumburl,omitempty"`
	ThumbLocal string `xml:"thumblocal,omitempty"`

	Sources    []string `xml:"source,omitempty"`
	LastUpdate string   `xml:"lastupdate,omitempty"`
}

// measure 是身高/三围数值。写出时为纯整数；读入时宽松解析，
// 用户手改的 "165cm"、" 88 "、"86.5" 都能读出数值，无法解析的记为 0 而不是让整条记录失效。
type measure int

func (m *measure) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	*m = measure(parseMeasure(s))
	return nil
}

func parseMeasure(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	f, err := cast.ToFloat64E(s[:end])
	if err != nil || f <= 0 {
		return 0
	}
	return int(math.Round(f))
}

// EncodeActor 把 ActorRecord 编码为 NFO（XML）。
func EncodeActor(a domain.ActorRecord) ([]byte, error) {
	if strings.TrimSpace(a.Name) == "" {
		return nil, errors.New("nfo: actor name 不能为空")
	}
	d := actorDoc{
		Name:       strings.TrimSpace(a.Name),
		AltName:    strings.TrimSpace(a.AltName),
		OtherNames: normList(a.OtherNames),
		Birthdate:  strings.TrimSpace(a.Birthdate),
		Height:     measure(a.Height),
		Bust:       measure(a.Bust),
		Waist:      measure(a.Waist),
		Hips:       measure(a.Hips),
		Thumb:      strings.TrimSpace(a.Thumb),
		ThumbURL:   strings.TrimSpace(a.ThumbURL),
		ThumbLocal: strings.TrimSpace(a.ThumbLocal),
		Sources:    normList(a.Sources),
	}
	if !a.LastUpdate.IsZero() {
		d.LastUpdate = a.LastUpdate.UTC().Format(time.RFC3339)
	}

	b, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(header), append(b, '\n')...), nil
}

// DecodeActor 解析 {id}.nfo。返回的记录 ID 为空，由调用方按文件名填充。
func DecodeActor(b []byte) (domain.ActorRecord, error) {
	var d actorDoc
	if err := xml.Unmarshal(b, &d); err != nil {
		return domain.ActorRecord{}, err
	}
	if strings.TrimSpace(d.Name) == "" {
		return domain.ActorRecord{}, errors.New("nfo: 缺少 <name>")
	}
	a := domain.ActorRecord{
		Name:       strings.TrimSpace(d.Name),
		AltName:    strings.TrimSpace(d.AltName),
		OtherNames: normList(d.OtherNames),
		Birthdate:  strings.TrimSpace(d.Birthdate),
		Height:     int(d.Height),
		Bust:       int(d.Bust),
		Waist:      int(d.Waist),
		Hips:       int(d.Hips),
		Thumb:      strings.TrimSpace(d.Thumb),
		ThumbURL:   strings.TrimSpace(d.ThumbURL),
		ThumbLocal: strings.TrimSpace(d.ThumbLocal),
		Sources:    normList(d.Sources),
	}
	if s := strings.TrimSpace(d.LastUpdate); s != "" {
		// lastupdate 解析失败不算致命：用户手改文件时常见。
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			a.LastUpdate = t.UTC()
		}
	}
	return a, nil
}
