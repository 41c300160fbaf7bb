package ctxutil

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestContextValues(t *testing.T) {
	Convey("context 中的身份信息", t, func() {
		Convey("未注入时返回 false", func() {
			_, ok := GetUserID(context.Background())
			So(ok, ShouldBeFalse)
			_, ok = GetSessionID(context.Background())
			So(ok, ShouldBeFalse)
		})

		Convey("用户ID与会话ID互不干扰", func() {
			ctx := WithUserID(context.Background(), "u-1")
			ctx = WithSessionID(ctx, "sess-abc")

			uid, ok := GetUserID(ctx)
			So(ok, ShouldBeTrue)
			So(uid, ShouldEqual, "u-1")

			sid, ok := GetSessionID(ctx)
			So(ok, ShouldBeTrue)
			So(sid, ShouldEqual, "sess-abc")
		})

		Convey("空字符串视为不存在", func() {
			_, ok := GetSessionID(WithSessionID(context.Background(), ""))
			So(ok, ShouldBeFalse)
		})
	})
}
