package service

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"opentry/internal/model/social"
)

func TestSocialService(t *testing.T) {
	Convey("社交绑定按会话隔离", t, func() {
		svc := NewSocialService(newMemConnections())
		ctx := context.Background()

		err := svc.Save(ctx, "sess-a", &social.Connection{Platform: social.PlatformYouTube, PlatformUsername: "Noir Channel", AccessToken: "tok"})
		So(err, ShouldBeNil)

		Convey("列表只包含当前会话", func() {
			conns, err := svc.List(ctx, "sess-a")
			So(err, ShouldBeNil)
			So(conns, ShouldHaveLength, 1)
			So(conns[0].PlatformUsername, ShouldEqual, "Noir Channel")

			conns, err = svc.List(ctx, "sess-b")
			So(err, ShouldBeNil)
			So(conns, ShouldBeEmpty)

			_, err = svc.List(ctx, "")
			So(err, ShouldEqual, ErrMissingSession)
		})

		Convey("不支持的平台", func() {
			err := svc.Save(ctx, "sess-a", &social.Connection{Platform: "tiktok"})
			So(err, ShouldEqual, ErrInvalidPlatform)
		})

		Convey("按平台返回发布结果", func() {
			results, err := svc.Post(ctx, "sess-a", PostRequest{
				Platforms: []social.Platform{social.PlatformYouTube, social.PlatformInstagram},
				Caption:   "New drop",
				VideoURL:  "https://render.example/final.mp4",
			})
			So(err, ShouldBeNil)
			So(results[social.PlatformYouTube].Success, ShouldBeTrue)
			So(results[social.PlatformYouTube].ChannelName, ShouldEqual, "Noir Channel")
			So(results[social.PlatformInstagram].Success, ShouldBeFalse)
			So(results[social.PlatformInstagram].Error, ShouldEqual, "Not connected to instagram")
		})

		Convey("Instagram 缺少媒体地址", func() {
			So(svc.Save(ctx, "sess-a", &social.Connection{Platform: social.PlatformInstagram, PlatformUsername: "noir"}), ShouldBeNil)
			results, err := svc.Post(ctx, "sess-a", PostRequest{Platforms: []social.Platform{social.PlatformInstagram}})
			So(err, ShouldBeNil)
			So(results[social.PlatformInstagram].Error, ShouldEqual, "No media URL provided")
		})

		Convey("缺少平台", func() {
			_, err := svc.Post(ctx, "sess-a", PostRequest{})
			So(err, ShouldEqual, ErrNoPlatforms)
		})

		Convey("解除绑定", func() {
			So(svc.Disconnect(ctx, "sess-a", social.PlatformYouTube), ShouldBeNil)
			So(svc.Disconnect(ctx, "sess-a", social.PlatformYouTube), ShouldEqual, ErrConnectionAbsent)
			conns, _ := svc.List(ctx, "sess-a")
			So(conns, ShouldBeEmpty)
		})
	})
}
