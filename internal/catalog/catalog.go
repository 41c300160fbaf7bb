package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

//go:embed templates.yaml
var templatesYAML []byte

// ErrTemplateNotFound 模板不存在
var ErrTemplateNotFound = errors.New("template not found")

// Template 短视频模板
type Template struct {
	ID                      string   `mapstructure:"id" json:"id"`
	Name                    string   `mapstructure:"name" json:"name"`
	Description             string   `mapstructure:"description" json:"description"`
	Thumbnail               string   `mapstructure:"thumbnail" json:"thumbnail"`
	PreviewVideo            string   `mapstructure:"preview_video" json:"preview_video,omitempty"`
	Shots                   int      `mapstructure:"shots" json:"shots"`
	ReferenceImagesRequired int      `mapstructure:"reference_images_required" json:"reference_images_required"`
	UploadTips              []string `mapstructure:"upload_tips" json:"upload_tips"`
	Prompts                 []string `mapstructure:"prompts" json:"-"`
	VideoPrompts            []string `mapstructure:"video_prompts" json:"-"`
	RenderTemplateID        string   `mapstructure:"render_template_id" json:"-"`
	Price                   int      `mapstructure:"price" json:"price"` // INR

	defaultVideoPrompt string
}

// VideoPrompt 返回第 i 个镜头的运动提示词，缺省时使用共享默认值
func (t Template) VideoPrompt(i int) string {
	if i >= 0 && i < len(t.VideoPrompts) && t.VideoPrompts[i] != "" {
		return t.VideoPrompts[i]
	}
	return t.defaultVideoPrompt
}

func (t Template) validate() error {
	switch {
	case t.ID == "":
		return errors.New("template id is empty")
	case t.Shots <= 0:
		return fmt.Errorf("template %s: shots must be positive", t.ID)
	case len(t.Prompts) != t.Shots:
		return fmt.Errorf("template %s: %d prompts for %d shots", t.ID, len(t.Prompts), t.Shots)
	case t.ReferenceImagesRequired < 1:
		return fmt.Errorf("template %s: at least one reference image is required", t.ID)
	case t.Price <= 0:
		return fmt.Errorf("template %s: price must be positive", t.ID)
	}
	return nil
}

type document struct {
	DefaultVideoPrompt string     `mapstructure:"default_video_prompt"`
	Templates          []Template `mapstructure:"templates"`
}

// Catalog 只读模板目录
type Catalog struct {
	ordered []Template
	byID    map[string]Template
}

// Default 加载内置模板目录
func Default() (*Catalog, error) {
	return Parse(templatesYAML)
}

// Parse 解析 YAML 模板目录并校验
func Parse(data []byte) (*Catalog, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var doc document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		ordered: make([]Template, 0, len(doc.Templates)),
		byID:    make(map[string]Template, len(doc.Templates)),
	}
	for _, t := range doc.Templates {
		if err := t.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %s", t.ID)
		}
		t.defaultVideoPrompt = doc.DefaultVideoPrompt
		c.ordered = append(c.ordered, t)
		c.byID[t.ID] = t
	}
	return c, nil
}

// List 按定义顺序返回全部模板
func (c *Catalog) List() []Template {
	out := make([]Template, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Get 按 ID 查找模板
func (c *Catalog) Get(id string) (Template, error) {
	t, ok := c.byID[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, nil
}

// IDs 返回排序后的模板 ID
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
