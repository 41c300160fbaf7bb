package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestJWT(t *testing.T) {
	Convey("JWT 签发与校验", t, func() {
		j := NewJWT("test-secret", time.Hour)

		Convey("签发的 token 可以被校验", func() {
			token, err := j.GenerateToken("u-1", "a@b.com")
			So(err, ShouldBeNil)

			claims, err := j.ValidateToken(token)
			So(err, ShouldBeNil)
			So(claims.UserID, ShouldEqual, "u-1")
			So(claims.Email, ShouldEqual, "a@b.com")
		})

		Convey("过期 token 返回 ErrExpiredToken", func() {
			expired := NewJWT("test-secret", -time.Minute)
			token, err := expired.GenerateToken("u-1", "a@b.com")
			So(err, ShouldBeNil)

			_, err = j.ValidateToken(token)
			So(err, ShouldEqual, ErrExpiredToken)
		})

		Convey("不同密钥签发的 token 无效", func() {
			other := NewJWT("other-secret", time.Hour)
			token, _ := other.GenerateToken("u-1", "a@b.com")

			_, err := j.ValidateToken(token)
			So(err, ShouldEqual, ErrInvalidToken)
		})

		Convey("其他签发方的 token 无效", func() {
			token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &Claims{
				UserID: "u-1",
				RegisteredClaims: gojwt.RegisteredClaims{
					Issuer:    "someone-else",
					ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
			}).SignedString([]byte("test-secret"))
			So(err, ShouldBeNil)

			_, err = j.ValidateToken(token)
			So(err, ShouldEqual, ErrInvalidToken)
		})

		Convey("有效期", func() {
			So(j.TTL(), ShouldEqual, time.Hour)
		})

		Convey("乱码 token 无效", func() {
			_, err := j.ValidateToken("not-a-token")
			So(err, ShouldEqual, ErrInvalidToken)
		})
	})
}
