package cache

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryLocker(t *testing.T) {
	Convey("进程内锁", t, func() {
		ctx := context.Background()
		m := NewMemoryLocker()
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		m.now = func() time.Time { return now }

		Convey("同一个 key 只能被加锁一次", func() {
			ok, _ := m.TryLock(ctx, "k", time.Minute)
			So(ok, ShouldBeTrue)
			ok, _ = m.TryLock(ctx, "k", time.Minute)
			So(ok, ShouldBeFalse)
		})

		Convey("释放后可以重新加锁", func() {
			m.TryLock(ctx, "k", time.Minute)
			So(m.Unlock(ctx, "k"), ShouldBeNil)
			ok, _ := m.TryLock(ctx, "k", time.Minute)
			So(ok, ShouldBeTrue)
		})

		Convey("过期后自动失效", func() {
			m.TryLock(ctx, "k", time.Minute)
			now = now.Add(2 * time.Minute)
			ok, _ := m.TryLock(ctx, "k", time.Minute)
			So(ok, ShouldBeTrue)
		})

		Convey("事件去重", func() {
			first, _ := m.MarkOnce(ctx, "evt_1", time.Hour)
			second, _ := m.MarkOnce(ctx, "evt_1", time.Hour)
			So(first, ShouldBeTrue)
			So(second, ShouldBeFalse)
		})
	})
}
