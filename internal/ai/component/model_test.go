package component

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"opentry/internal/config"
)

func TestNewChatModel(t *testing.T) {
	Convey("ChatModel 工厂", t, func() {
		ctx := context.Background()

		Convey("缺少 API Key", func() {
			_, err := NewChatModel(ctx, &config.AIConfig{Provider: "openai"})
			So(err, ShouldNotBeNil)
		})

		Convey("未知 Provider", func() {
			_, err := NewChatModel(ctx, &config.AIConfig{Provider: "palm", APIKey: "k"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unsupported AI provider")
		})

		Convey("采样参数只在配置时设置", func() {
			s := newSampling(config.AIOptionsConfig{Temperature: 0.8})
			So(*s.temperature, ShouldAlmostEqual, 0.8, 1e-6)
			So(s.maxTokens, ShouldBeNil)
			So(s.topP, ShouldBeNil)
		})

		Convey("网关默认地址", func() {
			So(orDefault("", defaultGatewayBaseURL), ShouldEqual, defaultGatewayBaseURL)
			So(orDefault("https://proxy.local/v1", defaultGatewayBaseURL), ShouldEqual, "https://proxy.local/v1")
		})
	})
}
