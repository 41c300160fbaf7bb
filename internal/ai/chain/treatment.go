package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"opentry/internal/ai/component"
	"opentry/internal/config"
	"opentry/internal/model/production"
)

const (
	treatmentTemperature = 0.8
	treatmentMaxTokens   = 2000
)

var (
	// ErrEmptyTreatment 模型没有返回内容
	ErrEmptyTreatment = errors.New("No treatment generated")
	// ErrTreatmentFormat 模型输出不是合法的脚本 JSON
	ErrTreatmentFormat = errors.New("Failed to parse AI response as JSON")
)

const treatmentSystemPrompt = `You are an elite Hollywood commercial director and creative strategist. You create Oscar-worthy advertisement treatments that rival Super Bowl commercials. Your treatments are technically precise, emotionally resonant, and visually stunning.

You MUST respond with valid JSON only. No markdown, no code blocks, just pure JSON.`

const treatmentSchema = `{
  "visualAnchor": {
    "technicalDescription": "Obsessively detailed description of the product/subject that will ensure visual consistency across all shots. Include exact colors, materials, textures, proportions, distinctive features.",
    "keyVisualElements": ["element1", "element2", "element3"],
    "colorPalette": ["#hex1", "#hex2", "#hex3", "#hex4"],
    "materialTextures": ["texture1", "texture2"]
  },
  "acts": [
    {
      "actNumber": 1,
      "title": "The Hook",
      "narrativeGoal": "What this act achieves emotionally",
      "cameraLens": "e.g., 35mm Anamorphic",
      "lighting": "e.g., Volumetric Rembrandt, Golden Hour",
      "colorScience": "e.g., Kodak Vision3 500T",
      "cameraMovement": "e.g., Slow Dolly In, Crane Shot",
      "duration": 5,
      "voiceoverScript": "Compelling 2-3 sentence narration for this act"
    },
    {"actNumber": 2, "title": "The Solution", "duration": 7, "...": "same fields as act 1"},
    {"actNumber": 3, "title": "The Payoff", "duration": 5, "...": "same fields as act 1"}
  ],
  "overallTone": "Brief description of the ad's emotional arc",
  "musicDirection": "Description of the score style and tempo"
}`

// TreatmentChain 导演脚本生成链
// 工作流: 品牌简报 -> Prompt -> ChatModel -> JSON 脚本
type TreatmentChain struct {
	chatModel model.BaseChatModel
}

// NewTreatmentChain 按 AI 配置创建脚本生成链
func NewTreatmentChain(ctx context.Context, cfg *config.AIConfig) (*TreatmentChain, error) {
	chatModel, err := component.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewTreatmentChainWithModel(chatModel), nil
}

// NewTreatmentChainWithModel 使用已有模型创建（测试时注入）
func NewTreatmentChainWithModel(chatModel model.BaseChatModel) *TreatmentChain {
	return &TreatmentChain{chatModel: chatModel}
}

// WriteTreatment 生成三幕导演脚本
func (c *TreatmentChain) WriteTreatment(ctx context.Context, in production.Inputs) (*production.Treatment, error) {
	messages := []*schema.Message{
		schema.SystemMessage(treatmentSystemPrompt),
		schema.UserMessage(buildTreatmentPrompt(in)),
	}

	resp, err := c.chatModel.Generate(ctx, messages,
		model.WithTemperature(treatmentTemperature),
		model.WithMaxTokens(treatmentMaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("generate treatment: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, ErrEmptyTreatment
	}

	treatment, err := ParseTreatment(resp.Content)
	if err != nil {
		log.Error().Err(err).Str("product", in.ProductName).Msg("failed to parse treatment")
		return nil, err
	}

	log.Info().Str("product", in.ProductName).Int("acts", len(treatment.Acts)).Msg("treatment generated")
	return treatment, nil
}

// ParseTreatment 去掉 Markdown 代码块后解析脚本并校验三幕结构
func ParseTreatment(text string) (*production.Treatment, error) {
	var t production.Treatment
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTreatmentFormat, err)
	}
	if len(t.Acts) != production.ActCount {
		return nil, fmt.Errorf("%w: expected %d acts, got %d", ErrTreatmentFormat, production.ActCount, len(t.Acts))
	}
	for i := range t.Acts {
		if t.Acts[i].ActNumber == 0 {
			t.Acts[i].ActNumber = i + 1
		}
	}
	return &t, nil
}

// StripCodeFence 去掉 ```json ... ``` 包裹
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func buildTreatmentPrompt(in production.Inputs) string {
	var b strings.Builder
	b.WriteString("Create a cinematic advertisement treatment for:\n\n")
	fmt.Fprintf(&b, "BRAND: %s\n", in.Brand())
	fmt.Fprintf(&b, "BUSINESS TYPE: %s\n", in.BusinessType)
	fmt.Fprintf(&b, "PRODUCT/SERVICE: %s\n", in.ProductName)
	fmt.Fprintf(&b, "DESCRIPTION: %s\n", in.Description)
	fmt.Fprintf(&b, "BRAND ARCHETYPE: %s\n", in.Archetype)
	fmt.Fprintf(&b, "TARGET EMOTION: %s\n", in.Emotion)
	fmt.Fprintf(&b, "VISUAL MOOD: %s\n", in.Mood)
	fmt.Fprintf(&b, "TARGET AUDIENCE: %s\n\n", in.Audience)
	b.WriteString("Generate a complete director's treatment as JSON with this EXACT structure:\n")
	b.WriteString(treatmentSchema)
	return b.String()
}
