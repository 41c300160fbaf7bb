package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestImageClient_GenerateImage(t *testing.T) {
	Convey("AI 网关图片生成", t, func() {
		var got chatRequest
		status := http.StatusOK
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			if status != http.StatusOK {
				w.WriteHeader(status)
				return
			}
			w.Write([]byte(`{"choices":[{"message":{"content":"ok","images":[{"image_url":{"url":"data:image/png;base64,AAAA"}}]}}]}`))
		}))
		defer srv.Close()

		c, err := NewImageClient(Config{BaseURL: srv.URL, APIKey: "k"})
		So(err, ShouldBeNil)

		Convey("请求携带提示词和全部参考图", func() {
			url, err := c.GenerateImage(context.Background(), "a red car sinking", []string{"https://r/1.png", "https://r/2.png"})
			So(err, ShouldBeNil)
			So(url, ShouldEqual, "data:image/png;base64,AAAA")

			So(got.Modalities, ShouldResemble, []string{"image", "text"})
			parts := got.Messages[0].Content
			So(len(parts), ShouldEqual, 3)
			So(strings.HasSuffix(parts[0].Text, "Description: a red car sinking"), ShouldBeTrue)
			So(parts[2].ImageURL.URL, ShouldEqual, "https://r/2.png")
		})

		Convey("429 映射为限流错误", func() {
			status = http.StatusTooManyRequests
			_, err := c.GenerateImage(context.Background(), "p", nil)
			So(errors.Is(err, ErrRateLimited), ShouldBeTrue)
		})

		Convey("402 映射为额度耗尽错误", func() {
			status = http.StatusPaymentRequired
			_, err := c.GenerateImage(context.Background(), "p", nil)
			So(errors.Is(err, ErrCreditsExhausted), ShouldBeTrue)
		})
	})
}

func TestImageClient_NoImage(t *testing.T) {
	Convey("响应里没有图片时返回 ErrNoImage", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{"content":"sorry"}}]}`))
		}))
		defer srv.Close()

		c, _ := NewImageClient(Config{BaseURL: srv.URL, APIKey: "k"})
		_, err := c.GenerateImage(context.Background(), "p", nil)
		So(errors.Is(err, ErrNoImage), ShouldBeTrue)
	})
}
