package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"opentry/internal/pkg/httpclient"
)

func TestSynthesize(t *testing.T) {
	Convey("ElevenLabs 配音", t, func() {
		var gotPath, gotText string
		fail := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fail {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			gotPath = r.URL.Path
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			gotText, _ = body["text"].(string)
			w.Write([]byte("ID3-fake-mp3"))
		}))
		defer srv.Close()

		c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "xi"})
		So(err, ShouldBeNil)

		Convey("多段脚本用省略号连接并按语气选择音色", func() {
			res, err := c.Synthesize(context.Background(), Request{
				Scripts: []string{"Meet the new chai.", "Brewed for you."},
				Tone:    "warm",
			})
			So(err, ShouldBeNil)
			So(string(res.Audio), ShouldEqual, "ID3-fake-mp3")
			So(res.ContentType, ShouldEqual, "audio/mpeg")
			So(gotText, ShouldEqual, "Meet the new chai. ... Brewed for you.")
			So(strings.HasSuffix(gotPath, "/"+VoicePresets["warm"]), ShouldBeTrue)
			So(res.Duration, ShouldEqual, EstimateDuration(gotText))
		})

		Convey("厂商报错时返回 StatusError", func() {
			fail = true
			_, err := c.Synthesize(context.Background(), Request{Scripts: []string{"x"}})
			var se *httpclient.StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("没有脚本时报错", func() {
			_, err := c.Synthesize(context.Background(), Request{})
			So(errors.Is(err, ErrNoScripts), ShouldBeTrue)
		})
	})

	Convey("音色与时长估算", t, func() {
		So(VoiceFor("unknown"), ShouldEqual, VoicePresets["professional"])
		So(EstimateDuration("one two three four five"), ShouldEqual, 2)
		So(EstimateDuration("a b c d e f"), ShouldEqual, 3)
	})
}
