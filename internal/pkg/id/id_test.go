package id

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestValid(t *testing.T) {
	Convey("实体ID校验", t, func() {
		So(Valid(New()), ShouldBeTrue)
		So(New(), ShouldNotEqual, New())
		So(Valid(""), ShouldBeFalse)
		So(Valid("../../etc/passwd"), ShouldBeFalse)
		// v1 UUID 不是本服务生成的
		So(Valid("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), ShouldBeFalse)
	})
}
