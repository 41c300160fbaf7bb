package catalog

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultCatalog(t *testing.T) {
	Convey("内置模板目录", t, func() {
		c, err := Default()
		So(err, ShouldBeNil)

		Convey("包含四个模板且顺序稳定", func() {
			list := c.List()
			So(len(list), ShouldEqual, 4)
			So(list[0].ID, ShouldEqual, "car-sinking")
			So(c.IDs(), ShouldResemble, []string{"car-sinking", "couple-romance", "product-showcase", "travel-montage"})
		})

		Convey("参考图数量与价格", func() {
			couple, err := c.Get("couple-romance")
			So(err, ShouldBeNil)
			So(couple.ReferenceImagesRequired, ShouldEqual, 2)
			for _, tmpl := range c.List() {
				So(tmpl.Shots, ShouldEqual, 3)
				So(len(tmpl.Prompts), ShouldEqual, tmpl.Shots)
				So(tmpl.Price, ShouldEqual, 29)
				So(tmpl.RenderTemplateID, ShouldEqual, "70f6563a-d3ce-47f5-90a0-34d40663881e")
			}
		})

		Convey("未知模板返回 ErrTemplateNotFound", func() {
			_, err := c.Get("nope")
			So(errors.Is(err, ErrTemplateNotFound), ShouldBeTrue)
		})

		Convey("List 返回副本", func() {
			list := c.List()
			list[0].ID = "mutated"
			again, _ := c.Get("car-sinking")
			So(again.ID, ShouldEqual, "car-sinking")
		})
	})
}

func TestVideoPromptFallback(t *testing.T) {
	Convey("缺省运动提示词回退到默认值", t, func() {
		c, err := Parse([]byte(`
default_video_prompt: "default motion"
templates:
  - id: t1
    shots: 2
    reference_images_required: 1
    price: 10
    prompts: ["a", "b"]
    video_prompts: ["move a"]
`))
		So(err, ShouldBeNil)
		tmpl, _ := c.Get("t1")
		So(tmpl.VideoPrompt(0), ShouldEqual, "move a")
		So(tmpl.VideoPrompt(1), ShouldEqual, "default motion")
		So(tmpl.VideoPrompt(7), ShouldEqual, "default motion")
	})
}

func TestParseValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"prompt count mismatch", "templates:\n  - id: x\n    shots: 2\n    reference_images_required: 1\n    price: 1\n    prompts: [\"a\"]\n"},
		{"no reference images", "templates:\n  - id: x\n    shots: 1\n    reference_images_required: 0\n    price: 1\n    prompts: [\"a\"]\n"},
		{"zero price", "templates:\n  - id: x\n    shots: 1\n    reference_images_required: 1\n    price: 0\n    prompts: [\"a\"]\n"},
		{"duplicate id", "templates:\n  - id: x\n    shots: 1\n    reference_images_required: 1\n    price: 1\n    prompts: [\"a\"]\n  - id: x\n    shots: 1\n    reference_images_required: 1\n    price: 1\n    prompts: [\"a\"]\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}
