package production

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Phase 广告制作流程阶段
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseBriefing   Phase = "briefing"
	PhaseTreatment  Phase = "treatment"
	PhaseKeyframing Phase = "keyframing"
	PhaseVideo      Phase = "video"
	PhaseAudio      Phase = "audio"
	PhaseMastering  Phase = "mastering"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// Running 是否处于制作中（非 idle/complete/error）
func (p Phase) Running() bool {
	switch p {
	case PhaseIdle, PhaseComplete, PhaseError:
		return false
	}
	return true
}

// StepStatus 单个阶段的展示状态
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepActive   StepStatus = "active"
	StepComplete StepStatus = "complete"
	StepError    StepStatus = "error"
)

// Progress 状态对应的进度值
func (s StepStatus) Progress() int {
	switch s {
	case StepComplete:
		return 100
	case StepActive:
		return 50
	}
	return 0
}

// Step 阶段展示信息
type Step struct {
	ID             Phase      `bson:"id" json:"id"`
	Name           string     `bson:"name" json:"name"`
	Status         StepStatus `bson:"status" json:"status"`
	Progress       int        `bson:"progress" json:"progress"`
	Substeps       []string   `bson:"substeps" json:"substeps"`
	CurrentSubstep string     `bson:"current_substep,omitempty" json:"current_substep,omitempty"`
}

// ActCount 固定三幕结构
const ActCount = 3

// InitialSteps 返回初始阶段列表（每次调用返回新切片）
func InitialSteps() []Step {
	steps := []Step{
		{ID: PhaseBriefing, Name: "Deep Briefing", Substeps: []string{"Analyzing brand archetype", "Mapping emotional journey", "Engineering conflict arc"}},
		{ID: PhaseTreatment, Name: "Director's Treatment", Substeps: []string{"Creating visual anchor", "Scripting 3-act structure", "Defining cinematic specs"}},
		{ID: PhaseKeyframing, Name: "Visual DNA Locking", Substeps: actSubsteps("Rendering Act %d keyframe")},
		{ID: PhaseVideo, Name: "Motion Synthesis", Substeps: actSubsteps("Animating Act %d")},
		{ID: PhaseAudio, Name: "Audio Production", Substeps: []string{"Generating voiceover", "Syncing narration"}},
		{ID: PhaseMastering, Name: "Final Mastering", Substeps: []string{"Compositing acts", "Adding logo overlay", "Exporting 4K master"}},
	}
	for i := range steps {
		steps[i].Status = StepPending
	}
	return steps
}

func actSubsteps(format string) []string {
	out := make([]string, ActCount)
	for i := range out {
		out[i] = fmt.Sprintf(format, i+1)
	}
	return out
}

// Archetype 品牌原型
type Archetype string

const (
	ArchetypeHero      Archetype = "hero"
	ArchetypeMagician  Archetype = "magician"
	ArchetypeCreator   Archetype = "creator"
	ArchetypeRuler     Archetype = "ruler"
	ArchetypeCaregiver Archetype = "caregiver"
	ArchetypeEveryman  Archetype = "everyman"
	ArchetypeRebel     Archetype = "rebel"
	ArchetypeLover     Archetype = "lover"
	ArchetypeJester    Archetype = "jester"
	ArchetypeSage      Archetype = "sage"
	ArchetypeExplorer  Archetype = "explorer"
	ArchetypeInnocent  Archetype = "innocent"
)

// IsValid 检查原型是否有效
func (a Archetype) IsValid() bool {
	switch a {
	case ArchetypeHero, ArchetypeMagician, ArchetypeCreator, ArchetypeRuler,
		ArchetypeCaregiver, ArchetypeEveryman, ArchetypeRebel, ArchetypeLover,
		ArchetypeJester, ArchetypeSage, ArchetypeExplorer, ArchetypeInnocent:
		return true
	}
	return false
}

// Emotion 目标情绪
type Emotion string

const (
	EmotionAwe         Emotion = "awe"
	EmotionJoy         Emotion = "joy"
	EmotionTrust       Emotion = "trust"
	EmotionDesire      Emotion = "desire"
	EmotionNostalgia   Emotion = "nostalgia"
	EmotionExcitement  Emotion = "excitement"
	EmotionSerenity    Emotion = "serenity"
	EmotionInspiration Emotion = "inspiration"
)

// IsValid 检查情绪是否有效
func (e Emotion) IsValid() bool {
	switch e {
	case EmotionAwe, EmotionJoy, EmotionTrust, EmotionDesire,
		EmotionNostalgia, EmotionExcitement, EmotionSerenity, EmotionInspiration:
		return true
	}
	return false
}

// Inputs 用户提交的制作参数
type Inputs struct {
	BusinessType  string    `bson:"business_type,omitempty" json:"business_type,omitempty"`
	BrandName     string    `bson:"brand_name,omitempty" json:"brand_name,omitempty"`
	ProductName   string    `bson:"product_name" json:"product_name"`
	Description   string    `bson:"description" json:"description"`
	Mood          string    `bson:"mood,omitempty" json:"mood,omitempty"`
	Audience      string    `bson:"audience,omitempty" json:"audience,omitempty"`
	ProductImages []string  `bson:"product_images" json:"product_images"`
	BrandLogo     string    `bson:"brand_logo,omitempty" json:"brand_logo,omitempty"`
	Archetype     Archetype `bson:"archetype" json:"archetype"`
	Emotion       Emotion   `bson:"emotion" json:"emotion"`
}

// Brand 展示用品牌名，未填写时使用产品名
func (in Inputs) Brand() string {
	if in.BrandName != "" {
		return in.BrandName
	}
	return in.ProductName
}

// VoiceTone 由情绪基调推导配音语气
func (in Inputs) VoiceTone() string {
	switch in.Mood {
	case "corporate":
		return "professional"
	case "high_energy":
		return "energetic"
	case "emotional":
		return "warm"
	}
	return "sophisticated"
}

// Briefing 深度简报
type Briefing struct {
	Archetype       Archetype `bson:"archetype" json:"archetype"`
	Emotion         Emotion   `bson:"emotion" json:"emotion"`
	CoreConflict    string    `bson:"core_conflict" json:"core_conflict"`
	Transformation  string    `bson:"transformation" json:"transformation"`
	ProductDNA      string    `bson:"product_dna" json:"product_dna"`
	ReferenceImages []string  `bson:"reference_images" json:"reference_images"`
}

// VisualAnchor 贯穿三幕的视觉锚点
type VisualAnchor struct {
	TechnicalDescription string   `bson:"technical_description" json:"technicalDescription"`
	KeyVisualElements    []string `bson:"key_visual_elements" json:"keyVisualElements"`
	ColorPalette         []string `bson:"color_palette" json:"colorPalette"`
	MaterialTextures     []string `bson:"material_textures" json:"materialTextures"`
}

// ActSpec 单幕规格
type ActSpec struct {
	ActNumber       int    `bson:"act_number" json:"actNumber"`
	Title           string `bson:"title" json:"title"`
	NarrativeGoal   string `bson:"narrative_goal" json:"narrativeGoal"`
	CameraLens      string `bson:"camera_lens" json:"cameraLens"`
	Lighting        string `bson:"lighting" json:"lighting"`
	ColorScience    string `bson:"color_science" json:"colorScience"`
	CameraMovement  string `bson:"camera_movement" json:"cameraMovement"`
	Duration        int    `bson:"duration" json:"duration"`
	VoiceoverScript string `bson:"voiceover_script" json:"voiceoverScript"`
}

// Treatment 导演脚本
// JSON 字段使用 camelCase，与大模型输出格式保持一致
type Treatment struct {
	VisualAnchor   VisualAnchor `bson:"visual_anchor" json:"visualAnchor"`
	Acts           []ActSpec    `bson:"acts" json:"acts"`
	OverallTone    string       `bson:"overall_tone" json:"overallTone"`
	MusicDirection string       `bson:"music_direction" json:"musicDirection"`
}

// TotalDuration 三幕总时长（秒）
func (t *Treatment) TotalDuration() int {
	total := 0
	for _, act := range t.Acts {
		total += act.Duration
	}
	return total
}

// Keyframe 关键帧
type Keyframe struct {
	ActNumber      int    `bson:"act_number" json:"act_number"`
	ImageURL       string `bson:"image_url" json:"image_url"`
	Prompt         string `bson:"prompt" json:"prompt"`
	CinematicSpecs string `bson:"cinematic_specs" json:"cinematic_specs"`
}

// VideoShot 单幕视频镜头
type VideoShot struct {
	ActNumber      int    `bson:"act_number" json:"act_number"`
	ShotNumber     int    `bson:"shot_number" json:"shot_number"`
	VideoURL       string `bson:"video_url" json:"video_url"`
	Duration       int    `bson:"duration" json:"duration"`
	CameraMovement string `bson:"camera_movement" json:"camera_movement"`
}

// Audio 配音资源
type Audio struct {
	VoiceoverURL       string `bson:"voiceover_url" json:"voiceover_url"`
	BackgroundMusicURL string `bson:"background_music_url,omitempty" json:"background_music_url,omitempty"`
	Duration           int    `bson:"duration" json:"duration"`
}

// ActOutput 成片中的单幕素材
type ActOutput struct {
	ActNumber   int    `bson:"act_number" json:"act_number"`
	VideoURL    string `bson:"video_url" json:"video_url"`
	KeyframeURL string `bson:"keyframe_url" json:"keyframe_url"`
}

// FinalOutput 成片输出
type FinalOutput struct {
	MasterVideoURL string      `bson:"master_video_url" json:"master_video_url"`
	ThumbnailURL   string      `bson:"thumbnail_url" json:"thumbnail_url"`
	Duration       int         `bson:"duration" json:"duration"`
	Resolution     string      `bson:"resolution" json:"resolution"`
	Acts           []ActOutput `bson:"acts" json:"acts"`
}

// State 制作流程聚合状态
type State struct {
	Phase       Phase        `bson:"phase" json:"phase"`
	Steps       []Step       `bson:"steps" json:"steps"`
	Briefing    *Briefing    `bson:"briefing,omitempty" json:"briefing,omitempty"`
	Treatment   *Treatment   `bson:"treatment,omitempty" json:"treatment,omitempty"`
	Keyframes   []Keyframe   `bson:"keyframes" json:"keyframes"`
	VideoShots  []VideoShot  `bson:"video_shots" json:"video_shots"`
	Audio       *Audio       `bson:"audio,omitempty" json:"audio,omitempty"`
	FinalOutput *FinalOutput `bson:"final_output,omitempty" json:"final_output,omitempty"`
	Error       string       `bson:"error,omitempty" json:"error,omitempty"`
}

// NewState 返回 idle 初始状态
func NewState() State {
	return State{
		Phase:      PhaseIdle,
		Steps:      InitialSteps(),
		Keyframes:  []Keyframe{},
		VideoShots: []VideoShot{},
	}
}

// Step 按阶段查找展示信息
func (s *State) Step(id Phase) *Step {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return &s.Steps[i]
		}
	}
	return nil
}

// Production 广告制作任务（持久化文档）
type Production struct {
	ID        string    `bson:"id" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Inputs    Inputs    `bson:"inputs" json:"inputs"`
	State     State     `bson:"state" json:"state"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Collection 返回集合名称
func (p *Production) Collection() string { return "productions" }

// EnsureIndexes 创建和维护索引
func (p *Production) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(p.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("uniq_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_user_created"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
