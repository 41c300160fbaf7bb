package creatomate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// renderServer 第 succeedAt 次查询返回 succeeded；succeedAt 为 0 表示一直 pending
func renderServer(succeedAt int32, failWith string) (*httptest.Server, *int32, *map[string]any) {
	var polls int32
	body := map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodPost:
			json.NewDecoder(r.Body).Decode(&body)
			w.Write([]byte(`[{"id":"r-1","status":"planned"}]`))
		case http.MethodGet:
			n := atomic.AddInt32(&polls, 1)
			switch {
			case failWith != "":
				json.NewEncoder(w).Encode(Render{ID: "r-1", Status: StatusFailed, ErrorMessage: failWith})
			case n == 2:
				w.WriteHeader(http.StatusBadGateway)
			case succeedAt > 0 && n >= succeedAt:
				json.NewEncoder(w).Encode(Render{ID: "r-1", Status: StatusSucceeded, URL: "https://cdn.example.com/final.mp4"})
			default:
				json.NewEncoder(w).Encode(Render{ID: "r-1", Status: StatusRendering})
			}
		}
	}))
	return srv, &polls, &body
}

func newTestClient(url string) *Client {
	c, _ := NewClient(Config{
		BaseURL:            url,
		APIKey:             "key",
		PollInterval:       time.Millisecond,
		MaxAttempts:        60,
		MasterPollInterval: time.Millisecond,
		MasterMaxAttempts:  5,
	})
	return c
}

func TestCompose(t *testing.T) {
	Convey("模板合成", t, func() {
		ctx := context.Background()

		Convey("第 5 次查询成功时返回成片URL", func() {
			srv, polls, body := renderServer(5, "")
			defer srv.Close()

			url, err := newTestClient(srv.URL).Compose(ctx, "tpl-1", []string{"https://v/1.mp4", "https://v/2.mp4", "https://v/3.mp4"})
			So(err, ShouldBeNil)
			So(url, ShouldEqual, "https://cdn.example.com/final.mp4")
			So(atomic.LoadInt32(polls), ShouldEqual, 5)

			mods := (*body)["modifications"].(map[string]any)
			So(mods["video_1.source"], ShouldEqual, "https://v/1.mp4")
			So(mods["video_3.source"], ShouldEqual, "https://v/3.mp4")
			So((*body)["template_id"], ShouldEqual, "tpl-1")
		})

		Convey("一直未完成时返回超时错误而不是挂起", func() {
			srv, polls, _ := renderServer(0, "")
			defer srv.Close()

			_, err := newTestClient(srv.URL).Compose(ctx, "tpl-1", []string{"https://v/1.mp4"})
			So(errors.Is(err, ErrRenderTimeout), ShouldBeTrue)
			So(atomic.LoadInt32(polls), ShouldEqual, 60)
		})

		Convey("渲染失败时带出厂商错误信息", func() {
			srv, _, _ := renderServer(0, "source not reachable")
			defer srv.Close()

			_, err := newTestClient(srv.URL).Compose(ctx, "tpl-1", []string{"https://v/1.mp4"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "Creatomate render failed: source not reachable")
		})

		Convey("没有视频时直接报错", func() {
			_, err := newTestClient("http://unused").Compose(ctx, "tpl-1", nil)
			So(errors.Is(err, ErrNoVideos), ShouldBeTrue)
		})
	})
}

func TestMaster(t *testing.T) {
	Convey("母版合成", t, func() {
		ctx := context.Background()

		Convey("成功时返回 1920x1080 母版", func() {
			srv, _, body := renderServer(3, "")
			defer srv.Close()

			mv, err := newTestClient(srv.URL).Master(ctx, MasterRequest{
				VideoURLs:    []string{"https://v/1.mp4", "https://v/2.mp4"},
				VoiceoverURL: "https://a/vo.mp3",
				BrandName:    "Chai Co",
				Duration:     20,
			})
			So(err, ShouldBeNil)
			So(mv.VideoURL, ShouldEqual, "https://cdn.example.com/final.mp4")
			So(mv.Resolution, ShouldEqual, "1920x1080")
			So((*body)["width"], ShouldEqual, 1920.0)
		})

		Convey("超过最大次数返回 Render timed out", func() {
			srv, _, _ := renderServer(0, "")
			defer srv.Close()

			_, err := newTestClient(srv.URL).Master(ctx, MasterRequest{VideoURLs: []string{"https://v/1.mp4"}, Duration: 10})
			So(errors.Is(err, ErrMasterTimeout), ShouldBeTrue)
		})
	})

	Convey("母版元素", t, func() {
		els := MasterElements(MasterRequest{
			VideoURLs:    []string{"a", "b"},
			VoiceoverURL: "vo",
			BrandLogo:    "logo",
			BrandName:    "Brand",
			Duration:     20,
		})
		So(len(els), ShouldEqual, 5)
		So(els[1]["time"], ShouldEqual, 10.0)
		So(els[2]["type"], ShouldEqual, "audio")
		So(els[3]["type"], ShouldEqual, "image")
		So(els[4]["time"], ShouldEqual, 17.0)

		noLogo := MasterElements(MasterRequest{VideoURLs: []string{"a"}, Duration: 10})
		So(len(noLogo), ShouldEqual, 3)
	})
}
