package password

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPassword(t *testing.T) {
	Convey("密码哈希", t, func() {
		hash, err := Hash("correct horse")
		So(err, ShouldBeNil)
		So(hash, ShouldNotEqual, "correct horse")
		So(Verify("correct horse", hash), ShouldBeTrue)
		So(Verify("wrong horse", hash), ShouldBeFalse)

		_, err = Hash("short")
		So(err, ShouldEqual, ErrTooShort)
		_, err = Hash(strings.Repeat("x", 73))
		So(err, ShouldEqual, ErrTooLong)
	})
}
