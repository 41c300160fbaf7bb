package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"opentry/internal/pkg/ctxutil"
	"opentry/internal/pkg/jwt"
)

type stubValidator map[string]string

func (s stubValidator) ValidateToken(token string) (string, error) {
	if token == "expired" {
		return "", jwt.ErrExpiredToken
	}
	if uid, ok := s[token]; ok {
		return uid, nil
	}
	return "", errors.New("invalid token")
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/whoami", func(c *gin.Context) {
		uid, _ := ctxutil.GetUserID(c.Request.Context())
		sid, _ := ctxutil.GetSessionID(c.Request.Context())
		c.String(http.StatusOK, uid+"|"+sid)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func do(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	Convey("Bearer 认证", t, func() {
		r := newEngine(Auth(stubValidator{"good": "u-1"}))

		Convey("缺少 Authorization 返回 401", func() {
			w := do(r, http.MethodGet, "/whoami", nil)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(w.Body.String(), ShouldContainSubstring, "40101")
		})

		Convey("格式错误返回 401", func() {
			w := do(r, http.MethodGet, "/whoami", map[string]string{"Authorization": "Token good"})
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("过期 token 返回 40102", func() {
			w := do(r, http.MethodGet, "/whoami", map[string]string{"Authorization": "Bearer expired"})
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(w.Body.String(), ShouldContainSubstring, "40102")
			So(w.Body.String(), ShouldContainSubstring, "Token expired")
		})

		Convey("有效 token 注入 user_id", func() {
			w := do(r, http.MethodGet, "/whoami", map[string]string{"Authorization": "Bearer good"})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, "u-1|")
		})
	})
}

func TestSession(t *testing.T) {
	Convey("会话ID透传到 context", t, func() {
		r := newEngine(Session())

		w := do(r, http.MethodGet, "/whoami", map[string]string{ctxutil.SessionIDHeader: " sess-9 "})
		So(w.Body.String(), ShouldEqual, "|sess-9")

		w = do(r, http.MethodGet, "/whoami", nil)
		So(w.Body.String(), ShouldEqual, "|")
	})
}

func TestRequestIDAndCORS(t *testing.T) {
	Convey("请求ID与跨域", t, func() {
		Convey("未携带时生成请求ID", func() {
			r := newEngine(RequestID())
			w := do(r, http.MethodGet, "/whoami", nil)
			So(w.Header().Get(RequestIDHeader), ShouldNotBeEmpty)

			w = do(r, http.MethodGet, "/whoami", map[string]string{RequestIDHeader: "req-1"})
			So(w.Header().Get(RequestIDHeader), ShouldEqual, "req-1")
		})

		Convey("白名单来源", func() {
			r := newEngine(CORS([]string{"https://app.example.com/"}))
			w := do(r, http.MethodGet, "/whoami", map[string]string{"Origin": "https://app.example.com"})
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://app.example.com")

			w = do(r, http.MethodGet, "/whoami", map[string]string{"Origin": "https://evil.example.com"})
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
		})

		Convey("预检请求直接返回 204", func() {
			r := newEngine(CORS(nil))
			w := do(r, http.MethodOptions, "/whoami", map[string]string{"Origin": "https://a.example"})
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})
	})
}

func TestRecovery(t *testing.T) {
	Convey("panic 转为 500", t, func() {
		r := newEngine(Recovery())
		w := do(r, http.MethodGet, "/panic", nil)
		So(w.Code, ShouldEqual, http.StatusInternalServerError)
		So(w.Body.String(), ShouldContainSubstring, "50001")
	})
}
