package slug

import "testing"

func TestMake(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Mao Hamasaki", "mao-hamasaki"},
		{"  mao   hamasaki  ", "mao-hamasaki"},
		{"浜崎真緒 Mao Hamasaki", "mao-hamasaki"},
		{"Ｍａｏ　Ｈａｍａｓａｋｉ", "mao-hamasaki"},
		{"Zoé O'Neil", "zoe-oneil"},
		{"--Yua_Mikami--", "yua-mikami"},
		{"三上悠亜", ""},
		{"AIKA (2nd)", "aika-2nd"},
	}
	for _, c := range cases {
		if got := Make(c.in); got != c.want {
			t.Fatalf("Make(%q)：期望 %q，实际 %q", c.in, c.want, got)
		}
	}
}

func TestMake_Stable(t *testing.T) {
	in := "Ｙｕａ Mikami 三上悠亜"
	a := Make(in)
	for i := 0; i < 5; i++ {
		if b := Make(in); b != a {
			t.Fatalf("Make 不稳定：%q vs %q", a, b)
		}
	}
	if Make(a) != a {
		t.Fatalf("slug 再次 Make 应保持不变：%q -> %q", a, Make(a))
	}
}

func TestInvert(t *testing.T) {
	if got := Invert("Mao Hamasaki"); got != "Hamasaki Mao" {
		t.Fatalf("期望 Hamasaki Mao，实际 %q", got)
	}
	if got := Invert("AIKA"); got != "" {
		t.Fatalf("单段名称应返回空串，实际 %q", got)
	}
}

func TestID_FallbackForCJKOnly(t *testing.T) {
	if got := ID("Mao Hamasaki"); got != "mao-hamasaki" {
		t.Fatalf("期望 mao-hamasaki，实际 %q", got)
	}
	a := ID("三上悠亜")
	if len(a) != len("n-")+10 || a[:2] != "n-" {
		t.Fatalf("CJK 名称应退化为摘要 ID，实际 %q", a)
	}
	if ID(" 三上悠亜 ") != a {
		t.Fatalf("摘要 ID 应忽略首尾空白")
	}
	if ID("") != "" {
		t.Fatalf("空名称应返回空 ID")
	}
}
