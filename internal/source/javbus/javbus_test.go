package javbus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/session"
)

const detailHTML = `<html><head>
<meta name="keywords" content="SSIS-001,エスワン,シリーズA,巨乳,単体作品">
</head><body>
<div class="container">
<h3>SSIS-001 テストタイトル</h3>
<div class="row movie">
  <div class="col-md-9 screencap"><a class="bigImage" href="/pics/cover/abc_b.jpg"><img src="/pics/cover/abc_b.jpg"></a></div>
  <div class="col-md-3 info">
    <p><span class="header">識別碼:</span> <span>SSIS-001</span></p>
    <p><span class="header">發行日期:</span> 2021-02-19</p>
    <p><span class="header">長度:</span> 150分鐘</p>
    <p><span class="header">導演:</span> <a href="/director/1">監督A</a></p>
    <p><span class="header">製作商:</span> <a href="/studio/1">エスワン ナンバーワンスタイル</a></p>
    <p><span class="header">發行商:</span> <a href="/label/1">エスワン</a></p>
    <p><span class="header">系列:</span> <a href="/series/1">シリーズA</a></p>
  </div>
</div>
<div class="star-box star-box-common idol-box"><li>
  <a href="/star/okq"><img src="/pics/actress/okq_a.jpg" title="三上悠亜"></a>
  <div class="star-name"><a href="/star/okq" title="三上悠亜">三上悠亜</a></div>
</li></div>
<div id="sample-waterfall">
  <a class="sample-box" href="https://pics.example/s1.jpg"></a>
  <a class="sample-box" href="https://pics.example/s2.jpg"></a>
</div>
</div></body></html>`

const searchStarHTML = `<html><body><div id="waterfall">
<div class="item"><a class="avatar-box" href="/star/aaa"><div class="photo-frame"><img title="三上悠亜ファン"></div><div class="photo-info"><span>三上悠亜ファン</span></div></a></div>
<div class="item"><a class="avatar-box" href="/star/okq"><div class="photo-frame"><img title="三上悠亜"></div><div class="photo-info"><span>三上悠亜</span></div></a></div>
</div></body></html>`

const starHTML = `<html><body><div id="waterfall"><div class="item">
<div class="avatar-box">
  <div class="photo-frame"><img src="/pics/actress/okq_a.jpg" title="三上悠亜"></div>
  <div class="photo-info">
    <span class="pb10">三上悠亜</span>
    <p>生日: 1993-08-16</p>
    <p>年齡: 31</p>
    <p>身高: 159cm</p>
    <p>罩杯: F</p>
    <p>胸圍: 83cm</p>
    <p>腰圍: 57cm</p>
    <p>臀圍: 88cm</p>
  </div>
</div>
</div></div></body></html>`

func TestParseMovie(t *testing.T) {
	rec, err := ParseMovie("SSIS-001", []byte(detailHTML), "https://www.javbus.com/SSIS-001")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rec.Title != "テストタイトル" {
		t.Fatalf("期望去掉番号前缀，实际 %q", rec.Title)
	}
	if rec.ReleaseDate != "2021-02-19" || rec.Year != 2021 || rec.Runtime != 150 {
		t.Fatalf("日期/时长解析错误：%+v", rec)
	}
	if rec.Studio != "エスワン" || rec.Label != "エスワン" || rec.Series != "シリーズA" || rec.Director != "監督A" {
		t.Fatalf("厂牌/系列/导演解析错误：%+v", rec)
	}
	if !reflect.DeepEqual(rec.Genres, []string{"巨乳", "単体作品"}) {
		t.Fatalf("标签应剔除 code/studio/series，实际 %v", rec.Genres)
	}
	if len(rec.Actors) != 1 || rec.Actors[0].Name != "三上悠亜" || rec.Actors[0].Thumb != "https://www.javbus.com/pics/actress/okq_a.jpg" {
		t.Fatalf("演员解析错误：%+v", rec.Actors)
	}
	if rec.CoverURL != "https://www.javbus.com/pics/cover/abc_b.jpg" || rec.FanartURL != rec.CoverURL {
		t.Fatalf("封面解析错误：cover=%q fanart=%q", rec.CoverURL, rec.FanartURL)
	}
	if len(rec.SampleImages) != 2 {
		t.Fatalf("期望 2 张样品图，实际 %v", rec.SampleImages)
	}
}

func TestParseMovie_RejectsMismatchedCode(t *testing.T) {
	if _, err := ParseMovie("ABP-999", []byte(detailHTML), "https://www.javbus.com/ABP-999"); err == nil {
		t.Fatalf("识别码不匹配时应报错")
	}
	if _, err := ParseMovie("SSIS-001", []byte(`<html><body>verify</body></html>`), "u"); err == nil {
		t.Fatalf("非详情页应报错")
	}
}

func TestFindStarHrefAndParseStar(t *testing.T) {
	href, err := FindStarHref([]byte(searchStarHTML), " 三上悠亜 ")
	if err != nil || href != "/star/okq" {
		t.Fatalf("期望命中同名演员 /star/okq，实际 %q err=%v", href, err)
	}
	href, _ = FindStarHref([]byte(searchStarHTML), "不存在")
	if href != "" {
		t.Fatalf("多个结果且无同名时应返回空，实际 %q", href)
	}

	rec, err := ParseStar([]byte(starHTML), "https://www.javbus.com/star/okq")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := domain.ActorRecord{
		Name: "三上悠亜", Birthdate: "1993-08-16", Height: 159, Bust: 83, Waist: 57, Hips: 88,
		ThumbURL: "https://www.javbus.com/pics/actress/okq_a.jpg", Sources: []string{"javbus"},
	}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("演员页解析不符合预期：\n期望 %+v\n实际 %+v", want, rec)
	}
}

func TestSource_ScrapeThroughSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/SSIS-001":
			// 302 但 body 是完整详情页：应当直接解析。
			w.Header().Set("Location", "/doc/driver-verify?referer=/SSIS-001")
			w.WriteHeader(http.StatusFound)
			_, _ = w.Write([]byte(detailHTML))
		case r.URL.Path == "/BLOCK-001":
			w.Header().Set("Location", "/doc/driver-verify")
			w.WriteHeader(http.StatusFound)
			_, _ = w.Write([]byte(`<div id="ageVerify"></div>`))
		case strings.HasPrefix(r.URL.Path, "/searchstar/"):
			_, _ = w.Write([]byte(searchStarHTML))
		case r.URL.Path == "/star/okq":
			_, _ = w.Write([]byte(starHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sess := session.New(session.Options{})
	if err := sess.Open(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer sess.Close()

	src := Source{BaseURL: srv.URL}
	ctx := context.Background()

	recs, err := src.ScrapeMovies(ctx, sess, []domain.Code{"SSIS-001", "NONE-001"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(recs) != 1 || recs[0].Code != "SSIS-001" || recs[0].Website != srv.URL+"/SSIS-001" {
		t.Fatalf("期望只返回 SSIS-001，实际 %+v", recs)
	}

	if _, err := src.ScrapeMovies(ctx, sess, []domain.Code{"BLOCK-001"}); err == nil {
		t.Fatalf("验证页应视为失败")
	}

	a, err := src.ScrapeActor(ctx, sess, "三上悠亜")
	if err != nil || a == nil {
		t.Fatalf("期望刮到演员，实际 %+v err=%v", a, err)
	}
	if a.Height != 159 || a.ThumbURL != srv.URL+"/pics/actress/okq_a.jpg" {
		t.Fatalf("演员解析不符合预期：%+v", a)
	}

	none, err := src.ScrapeActor(ctx, sess, "不存在")
	if err != nil || none != nil {
		t.Fatalf("无同名结果应返回 (nil, nil)，实际 %+v err=%v", none, err)
	}
}
