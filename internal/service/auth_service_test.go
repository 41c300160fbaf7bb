package service

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"opentry/internal/model/auth"
)

func TestAuthService(t *testing.T) {
	Convey("注册与登录", t, func() {
		users := newMemUsers()
		svc := NewAuthService(users, "test-secret", time.Hour)
		ctx := context.Background()

		res, err := svc.Register(ctx, " Maya@Example.com ", "correct-horse", "Maya")
		So(err, ShouldBeNil)
		So(res.TokenType, ShouldEqual, "Bearer")
		So(res.ExpiresIn, ShouldEqual, 3600)
		So(res.User.Email, ShouldEqual, "maya@example.com")

		userID, err := svc.ValidateToken(res.AccessToken)
		So(err, ShouldBeNil)
		So(userID, ShouldEqual, res.User.ID)

		Convey("邮箱不能重复", func() {
			_, err := svc.Register(ctx, "maya@example.com", "another-pass", "")
			So(err, ShouldEqual, ErrEmailTaken)
		})

		Convey("密码太短", func() {
			_, err := svc.Register(ctx, "x@example.com", "short", "")
			So(err, ShouldEqual, ErrWeakPassword)
		})

		Convey("正确密码登录并记录登录时间", func() {
			res, err := svc.Login(ctx, "MAYA@example.com", "correct-horse")
			So(err, ShouldBeNil)
			So(res.AccessToken, ShouldNotBeEmpty)

			me, err := svc.Me(ctx, res.User.ID)
			So(err, ShouldBeNil)
			So(me.LastLoginAt, ShouldNotBeNil)
		})

		Convey("错误密码或未知邮箱", func() {
			_, err := svc.Login(ctx, "maya@example.com", "wrong-password")
			So(err, ShouldEqual, ErrInvalidCredentials)
			_, err = svc.Login(ctx, "nobody@example.com", "correct-horse")
			So(err, ShouldEqual, ErrInvalidCredentials)
		})

		Convey("被禁用的用户", func() {
			users.users[res.User.ID].Status = auth.UserStatusBanned
			_, err := svc.Login(ctx, "maya@example.com", "correct-horse")
			So(err, ShouldEqual, ErrUserBanned)
		})

		Convey("非法 Token", func() {
			_, err := svc.ValidateToken("garbage")
			So(err, ShouldNotBeNil)
			_, err = svc.Me(ctx, "missing")
			So(err, ShouldEqual, ErrUserNotFound)
		})
	})
}
