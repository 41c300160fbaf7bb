package reel

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Phase 短视频项目所处阶段
type Phase string

const (
	PhaseDraft     Phase = "draft"     // 已上传参考图，尚未生成
	PhaseImages    Phase = "images"    // 图片生成中
	PhaseReview    Phase = "review"    // 图片已全部结束，等待用户确认/重新生成
	PhasePayment   Phase = "payment"   // 等待支付
	PhaseVideos    Phase = "videos"    // 视频生成中
	PhaseComposing Phase = "composing" // 合成渲染中
	PhaseComplete  Phase = "complete"  // 成片完成
	PhaseError     Phase = "error"     // 整阶段失败（可基于已有素材重试）
)

// ItemStatus 单个图片/视频条目的状态
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemGenerating ItemStatus = "generating"
	ItemComplete   ItemStatus = "complete"
	ItemError      ItemStatus = "error"
)

// Settled 是否已到达本次尝试的终态
func (s ItemStatus) Settled() bool {
	return s == ItemComplete || s == ItemError
}

// GeneratedImage 模板每个镜头对应一张生成图
type GeneratedImage struct {
	ID     string     `bson:"id" json:"id"`
	Prompt string     `bson:"prompt" json:"prompt"`
	URL    string     `bson:"url" json:"url"`
	Status ItemStatus `bson:"status" json:"status"`
	Error  string     `bson:"error,omitempty" json:"error,omitempty"`
}

// GeneratedVideo 与生成图一一对应的视频
// Fallback 为 true 时 URL 是源图片地址（视频生成失败的降级）
type GeneratedVideo struct {
	ID       string     `bson:"id" json:"id"`
	ImageID  string     `bson:"image_id" json:"image_id"`
	Status   ItemStatus `bson:"status" json:"status"`
	URL      string     `bson:"url,omitempty" json:"url,omitempty"`
	Fallback bool       `bson:"fallback" json:"fallback"`
	Error    string     `bson:"error,omitempty" json:"error,omitempty"`
}

// Project 短视频项目
type Project struct {
	ID              string           `bson:"id" json:"id"`
	UserID          string           `bson:"user_id" json:"user_id"`
	TemplateID      string           `bson:"template_id" json:"template_id"`
	ReferenceImages []string         `bson:"reference_images" json:"reference_images"`
	Images          []GeneratedImage `bson:"images" json:"images"`
	Videos          []GeneratedVideo `bson:"videos" json:"videos"`
	TransactionID   string           `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	FinalVideoURL   string           `bson:"final_video_url,omitempty" json:"final_video_url,omitempty"`
	Phase           Phase            `bson:"phase" json:"phase"`
	Error           string           `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt       time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `bson:"updated_at" json:"updated_at"`
}

// CompletedImages 返回已成功生成的图片（保持模板顺序）
func (p *Project) CompletedImages() []GeneratedImage {
	out := make([]GeneratedImage, 0, len(p.Images))
	for _, img := range p.Images {
		if img.Status == ItemComplete && img.URL != "" {
			out = append(out, img)
		}
	}
	return out
}

// VideoURLs 返回用于合成的有序视频地址
func (p *Project) VideoURLs() []string {
	urls := make([]string, 0, len(p.Videos))
	for _, v := range p.Videos {
		if v.URL != "" {
			urls = append(urls, v.URL)
		}
	}
	return urls
}

// Collection 返回集合名称
func (p *Project) Collection() string { return "reel_projects" }

// EnsureIndexes 创建和维护索引
func (p *Project) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
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
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetName("idx_transaction"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
