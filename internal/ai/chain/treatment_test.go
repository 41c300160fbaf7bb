package chain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	. "github.com/smartystreets/goconvey/convey"

	"opentry/internal/model/production"
)

type fakeChatModel struct {
	content  string
	err      error
	messages []*schema.Message
	opts     *model.Options
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.messages = input
	f.opts = model.GetCommonOptions(&model.Options{}, opts...)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

const treatmentJSON = `{
  "visualAnchor": {"technicalDescription": "matte black bottle", "keyVisualElements": ["cap"], "colorPalette": ["#000000"], "materialTextures": ["glass"]},
  "acts": [
    {"actNumber": 1, "title": "The Hook", "cameraMovement": "Slow Dolly In", "duration": 5, "voiceoverScript": "One."},
    {"actNumber": 2, "title": "The Solution", "cameraMovement": "Crane Shot", "duration": 7, "voiceoverScript": "Two."},
    {"actNumber": 3, "title": "The Payoff", "cameraMovement": "Orbit", "duration": 5, "voiceoverScript": "Three."}
  ],
  "overallTone": "rising",
  "musicDirection": "strings"
}`

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}
	for in, want := range cases {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTreatmentChain(t *testing.T) {
	Convey("导演脚本生成", t, func() {
		ctx := context.Background()
		in := production.Inputs{
			ProductName: "Noir",
			Description: "cold brew",
			Archetype:   production.ArchetypeRebel,
			Emotion:     production.EmotionDesire,
			Mood:        "cinematic",
		}

		Convey("解析带代码块的输出", func() {
			fake := &fakeChatModel{content: "```json\n" + treatmentJSON + "\n```"}
			tr, err := NewTreatmentChainWithModel(fake).WriteTreatment(ctx, in)

			So(err, ShouldBeNil)
			So(len(tr.Acts), ShouldEqual, 3)
			So(tr.Acts[1].Title, ShouldEqual, "The Solution")
			So(tr.TotalDuration(), ShouldEqual, 17)
			So(tr.VisualAnchor.TechnicalDescription, ShouldEqual, "matte black bottle")

			So(float64(*fake.opts.Temperature), ShouldAlmostEqual, 0.8, 0.0001)
			So(*fake.opts.MaxTokens, ShouldEqual, 2000)
			So(strings.Contains(fake.messages[1].Content, "BRAND: Noir"), ShouldBeTrue)
			So(strings.Contains(fake.messages[1].Content, "BRAND ARCHETYPE: rebel"), ShouldBeTrue)
		})

		Convey("非 JSON 输出返回格式错误", func() {
			fake := &fakeChatModel{content: "Sure! Here is your treatment."}
			_, err := NewTreatmentChainWithModel(fake).WriteTreatment(ctx, in)
			So(errors.Is(err, ErrTreatmentFormat), ShouldBeTrue)
		})

		Convey("幕数不是 3 时拒绝", func() {
			fake := &fakeChatModel{content: `{"acts":[{"actNumber":1}]}`}
			_, err := NewTreatmentChainWithModel(fake).WriteTreatment(ctx, in)
			So(errors.Is(err, ErrTreatmentFormat), ShouldBeTrue)
		})

		Convey("空输出", func() {
			fake := &fakeChatModel{content: "  "}
			_, err := NewTreatmentChainWithModel(fake).WriteTreatment(ctx, in)
			So(errors.Is(err, ErrEmptyTreatment), ShouldBeTrue)
		})

		Convey("模型错误透传", func() {
			boom := errors.New("gateway down")
			fake := &fakeChatModel{err: boom}
			_, err := NewTreatmentChainWithModel(fake).WriteTreatment(ctx, in)
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})
}
