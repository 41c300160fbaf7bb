package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestUntil(t *testing.T) {
	Convey("固定间隔轮询", t, func() {
		ctx := context.Background()

		Convey("第 5 次检查成功时返回结果且不再继续检查", func() {
			calls := 0
			v, err := Until(ctx, time.Millisecond, 60, func(ctx context.Context, attempt int) (string, bool, error) {
				calls++
				if attempt == 5 {
					return "https://cdn.example.com/final.mp4", true, nil
				}
				return "", false, nil
			})
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "https://cdn.example.com/final.mp4")
			So(calls, ShouldEqual, 5)
		})

		Convey("始终未完成时返回 ErrMaxAttempts", func() {
			calls := 0
			_, err := Until(ctx, time.Millisecond, 3, func(ctx context.Context, attempt int) (int, bool, error) {
				calls++
				return 0, false, nil
			})
			So(errors.Is(err, ErrMaxAttempts), ShouldBeTrue)
			So(calls, ShouldEqual, 3)
		})

		Convey("检查返回错误时立即终止", func() {
			boom := errors.New("render failed")
			calls := 0
			_, err := Until(ctx, time.Millisecond, 10, func(ctx context.Context, attempt int) (int, bool, error) {
				calls++
				return 0, false, boom
			})
			So(err, ShouldEqual, boom)
			So(calls, ShouldEqual, 1)
		})

		Convey("ctx 取消后停止轮询", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			calls := 0
			_, err := Until(cctx, 50*time.Millisecond, 10, func(ctx context.Context, attempt int) (int, bool, error) {
				calls++
				return 0, false, nil
			})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(calls, ShouldEqual, 0)
		})

		Convey("maxAttempts 非正数时直接返回", func() {
			_, err := Until(ctx, time.Millisecond, 0, func(ctx context.Context, attempt int) (int, bool, error) {
				return 1, true, nil
			})
			So(errors.Is(err, ErrMaxAttempts), ShouldBeTrue)
		})
	})
}
