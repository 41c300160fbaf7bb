package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"opentry/internal/catalog"
	"opentry/internal/pkg/gateway"
	httputil "opentry/internal/pkg/http"
	"opentry/internal/pkg/httpclient"
	"opentry/internal/production"
	"opentry/internal/service"
)

func TestStatus(t *testing.T) {
	Convey("业务错误映射为 HTTP 状态码", t, func() {
		cases := []struct {
			err    error
			status int
			code   int
		}{
			{service.ErrProjectNotFound, http.StatusNotFound, httputil.CodeNotFound},
			{fmt.Errorf("load: %w", catalog.ErrTemplateNotFound), http.StatusNotFound, httputil.CodeNotFound},
			{service.ErrNotEnoughReferenceImages, http.StatusBadRequest, httputil.CodeInvalidRequest},
			{service.ErrMissingSignature, http.StatusBadRequest, httputil.CodeBadSignature},
			{service.ErrInvalidSignature, http.StatusUnauthorized, httputil.CodeBadSignature},
			{service.ErrPaymentRequired, http.StatusPaymentRequired, httputil.CodePaymentRequired},
			{service.ErrPhaseBusy, http.StatusConflict, httputil.CodeConflict},
			{service.ErrCheckoutMismatch, http.StatusBadRequest, httputil.CodeInvalidRequest},
			{service.ErrPaymentReused, http.StatusConflict, httputil.CodeConflict},
			{production.ErrRunning, http.StatusConflict, httputil.CodeConflict},
			{gateway.ErrRateLimited, http.StatusTooManyRequests, httputil.CodeRateLimited},
			{&httpclient.StatusError{Service: "creatomate", StatusCode: 500}, http.StatusBadGateway, httputil.CodeVendor},
			{errors.New("boom"), http.StatusInternalServerError, httputil.CodeInternal},
		}
		for _, tc := range cases {
			status, code := Status(tc.err)
			So(status, ShouldEqual, tc.status)
			So(code, ShouldEqual, tc.code)
		}
	})
}

func TestFail(t *testing.T) {
	gin.SetMode(gin.TestMode)

	Convey("Fail 写入错误响应", t, func() {
		Convey("内部错误隐藏细节", func() {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			Fail(c, errors.New("mongo: connection refused"))

			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			var body httputil.ErrorResponse
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body.Code, ShouldEqual, httputil.CodeInternal)
			So(body.Message, ShouldEqual, "Internal server error")
		})

		Convey("业务错误返回原始消息", func() {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			Fail(c, service.ErrMissingSignature)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			var body httputil.ErrorResponse
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body.Message, ShouldEqual, "No signature")
		})
	})
}
