package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"opentry/internal/catalog"
	"opentry/internal/model/payment"
	model "opentry/internal/model/reel"
	"opentry/internal/pkg/cache"
	"opentry/internal/pkg/id"
	"opentry/internal/pkg/storage"
	"opentry/internal/reel"
	reelRepo "opentry/internal/repository/reel"
)

// MaxReferenceImages 单个项目最多上传的参考图数量
const MaxReferenceImages = 4

var (
	ErrProjectNotFound          = errors.New("project not found")
	ErrNotEnoughReferenceImages = errors.New("not enough reference images for this template")
	ErrTooManyReferenceImages   = errors.New("at most 4 reference images are allowed")
	ErrInvalidReferenceImage    = errors.New("reference image must be a data url or an http(s) url")
	ErrPhaseBusy                = errors.New("project is already processing")
	ErrInvalidPhase             = errors.New("operation is not allowed in the current phase")
	ErrImagesNotReady           = errors.New("no generated images available")
	ErrPaymentRequired          = errors.New("payment required")
	ErrImageNotFound            = errors.New("image not found")
	ErrAllImagesFailed          = errors.New("all images failed to generate")
)

// TemplateSource 模板目录
type TemplateSource interface {
	Get(id string) (catalog.Template, error)
}

// ReelOptions 短视频流水线参数
type ReelOptions struct {
	JobTimeout time.Duration // 单个后台任务的最长执行时间，默认 45m
}

// ReelService 短视频流水线：参考图 → 图片生成 → 支付 → 视频生成 → 合成
// 长耗时阶段在后台执行，同一项目通过阶段锁串行
type ReelService struct {
	projects  reelRepo.ProjectRepository
	templates TemplateSource
	runner    *reel.Runner
	payments  *PaymentService
	store     storage.Storage
	locker    Locker
	opts      ReelOptions

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReelService 创建短视频服务
func NewReelService(
	projects reelRepo.ProjectRepository,
	templates TemplateSource,
	runner *reel.Runner,
	payments *PaymentService,
	store storage.Storage,
	locker Locker,
	opts ReelOptions,
) *ReelService {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 45 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &ReelService{
		projects:  projects,
		templates: templates,
		runner:    runner,
		payments:  payments,
		store:     store,
		locker:    locker,
		opts:      opts,
		base:      base,
		cancel:    cancel,
	}
}

// Wait 等待所有后台任务结束
func (s *ReelService) Wait() {
	s.wg.Wait()
}

// Close 取消后台任务并等待退出
func (s *ReelService) Close() {
	s.cancel()
	s.wg.Wait()
}

// CreateProject 收集参考图并创建项目
// data URL 上传到存储，http(s) 地址原样保留
func (s *ReelService) CreateProject(ctx context.Context, userID, templateID string, images []string) (*model.Project, error) {
	tmpl, err := s.templates.Get(templateID)
	if err != nil {
		return nil, err
	}
	if len(images) > MaxReferenceImages {
		return nil, ErrTooManyReferenceImages
	}
	if len(images) < tmpl.ReferenceImagesRequired {
		return nil, fmt.Errorf("%w: need %d, got %d", ErrNotEnoughReferenceImages, tmpl.ReferenceImagesRequired, len(images))
	}

	projectID := id.New()
	refs := make([]string, 0, len(images))
	for i, img := range images {
		switch {
		case storage.IsDataURL(img):
			url, err := storage.UploadDataURL(ctx, s.store, fmt.Sprintf("references/%s/%d", projectID, i), img)
			if err != nil {
				return nil, err
			}
			refs = append(refs, url)
		case strings.HasPrefix(img, "https://") || strings.HasPrefix(img, "http://"):
			refs = append(refs, img)
		default:
			return nil, ErrInvalidReferenceImage
		}
	}

	p := &model.Project{
		ID:              projectID,
		UserID:          userID,
		TemplateID:      tmpl.ID,
		ReferenceImages: refs,
		Images:          []model.GeneratedImage{},
		Videos:          []model.GeneratedVideo{},
		Phase:           model.PhaseDraft,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to create project")
		return nil, err
	}

	log.Info().Str("project_id", p.ID).Str("template_id", tmpl.ID).Int("references", len(refs)).Msg("project created")
	return p, nil
}

// GetProject 查询项目（校验归属）
func (s *ReelService) GetProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if !id.Valid(projectID) {
		return nil, ErrProjectNotFound
	}
	p, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

// ListProjects 列出用户最近的项目
func (s *ReelService) ListProjects(ctx context.Context, userID string, limit int64) ([]*model.Project, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.projects.ListByUser(ctx, userID, limit)
}

// GenerateImages 后台为每个镜头生成图片，立即返回 images 阶段的项目
func (s *ReelService) GenerateImages(ctx context.Context, userID, projectID string) (*model.Project, error) {
	p, tmpl, err := s.load(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	switch p.Phase {
	case model.PhaseDraft, model.PhaseReview, model.PhaseError:
	default:
		return nil, ErrInvalidPhase
	}
	if len(p.ReferenceImages) < tmpl.ReferenceImagesRequired {
		return nil, ErrNotEnoughReferenceImages
	}

	unlock, err := s.lock(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.SetPhase(ctx, p.ID, model.PhaseImages, ""); err != nil {
		unlock()
		return nil, err
	}

	refs := p.ReferenceImages
	s.async(projectID, unlock, func(ctx context.Context) {
		result := model.Project{Images: s.runner.GenerateImages(ctx, tmpl, refs, s.imageObserver(ctx, projectID))}
		if len(result.CompletedImages()) == 0 {
			s.setPhase(ctx, projectID, model.PhaseError, ErrAllImagesFailed.Error())
			return
		}
		s.setPhase(ctx, projectID, model.PhaseReview, "")
	})

	p.Phase = model.PhaseImages
	return p, nil
}

// RegenerateImage 重新生成单张图片，其余图片保持不变
// 整个过程持有阶段锁，期间同一项目的生成、支付、合成返回 ErrPhaseBusy
func (s *ReelService) RegenerateImage(ctx context.Context, userID, projectID, imageID string) (*model.Project, error) {
	p, _, err := s.load(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if p.Phase != model.PhaseReview && p.Phase != model.PhaseError {
		return nil, ErrInvalidPhase
	}

	unlock, err := s.lock(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 加锁前读到的图片可能已被其他阶段改写
	p, _, err = s.load(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if p.Phase != model.PhaseReview && p.Phase != model.PhaseError {
		return nil, ErrInvalidPhase
	}

	index := -1
	for i, img := range p.Images {
		if img.ID == imageID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, ErrImageNotFound
	}

	images, err := s.runner.RegenerateImage(ctx, p.ID, p.ReferenceImages, p.Images, index, s.imageObserver(ctx, p.ID))
	if err != nil {
		return nil, err
	}
	p.Images = images
	if p.Phase == model.PhaseError && len(p.CompletedImages()) > 0 {
		s.setPhase(ctx, p.ID, model.PhaseReview, "")
		p.Phase = model.PhaseReview
		p.Error = ""
	}
	return p, nil
}

// StartPayment 为已完成图片生成的项目发起支付，并在后台等待支付后自动继续
func (s *ReelService) StartPayment(ctx context.Context, userID, projectID string) (*PaymentSession, error) {
	p, tmpl, err := s.load(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if p.Phase != model.PhaseReview && p.Phase != model.PhasePayment {
		return nil, ErrInvalidPhase
	}
	ready := p.CompletedImages()
	if len(ready) == 0 {
		return nil, ErrImagesNotReady
	}

	unlock, err := s.lock(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	session, err := s.payments.Start(ctx, userID, payment.Snapshot{
		ProjectID:  p.ID,
		TemplateID: tmpl.ID,
		ShotCount:  len(ready),
	}, tmpl.Price)
	if err != nil {
		unlock()
		return nil, err
	}
	if err := s.projects.SetTransaction(ctx, p.ID, session.TransactionID); err != nil {
		unlock()
		return nil, err
	}
	if err := s.projects.SetPhase(ctx, p.ID, model.PhasePayment, ""); err != nil {
		unlock()
		return nil, err
	}

	s.async(p.ID, unlock, func(ctx context.Context) {
		p.TransactionID = session.TransactionID
		if err := s.run(ctx, p, tmpl); err != nil {
			log.Warn().Err(err).Str("project_id", p.ID).Msg("reel pipeline stopped")
		}
	})

	return session, nil
}

// CheckPayment 触发一次服务端支付查询（客户端的“我已支付”只会走到这里）
func (s *ReelService) CheckPayment(ctx context.Context, userID, projectID string) (*PaymentStatus, error) {
	p, _, err := s.load(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if p.TransactionID == "" {
		return nil, ErrPaymentRequired
	}
	return s.payments.Check(ctx, userID, p.TransactionID)
}

// GenerateVideos 已支付项目在后台生成视频并合成（用于支付后流程中断时的手动重试）
func (s *ReelService) GenerateVideos(ctx context.Context, userID, projectID string) (*model.Project, error) {
	p, tmpl, err := s.load(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePaid(ctx, p); err != nil {
		return nil, err
	}
	if len(p.CompletedImages()) == 0 {
		return nil, ErrImagesNotReady
	}

	unlock, err := s.lock(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.SetPhase(ctx, p.ID, model.PhaseVideos, ""); err != nil {
		unlock()
		return nil, err
	}

	job := *p
	s.async(p.ID, unlock, func(ctx context.Context) {
		if err := s.videosAndCompose(ctx, &job, tmpl); err != nil {
			log.Warn().Err(err).Str("project_id", p.ID).Msg("video generation stopped")
		}
	})

	p.Phase = model.PhaseVideos
	return p, nil
}

// Compose 基于已生成的视频重新合成，合成超时后可直接重试，无需重新上传
func (s *ReelService) Compose(ctx context.Context, userID, projectID string) (*model.Project, error) {
	p, tmpl, err := s.load(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePaid(ctx, p); err != nil {
		return nil, err
	}
	if len(p.VideoURLs()) == 0 {
		return nil, reel.ErrNothingToCompose
	}

	unlock, err := s.lock(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := s.projects.SetPhase(ctx, p.ID, model.PhaseComposing, ""); err != nil {
		unlock()
		return nil, err
	}

	job := *p
	s.async(p.ID, unlock, func(ctx context.Context) {
		if err := s.compose(ctx, &job, tmpl); err != nil {
			log.Warn().Err(err).Str("project_id", p.ID).Msg("compose failed")
		}
	})

	p.Phase = model.PhaseComposing
	return p, nil
}

// Run 同步执行支付之后的完整流程：等待支付 → 生成视频 → 合成
func (s *ReelService) Run(ctx context.Context, userID, projectID string) (*model.Project, error) {
	p, tmpl, err := s.load(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if p.TransactionID == "" {
		return nil, ErrPaymentRequired
	}

	unlock, err := s.lock(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.run(ctx, p, tmpl); err != nil {
		return nil, err
	}
	return s.GetProject(ctx, userID, projectID)
}

func (s *ReelService) run(ctx context.Context, p *model.Project, tmpl catalog.Template) error {
	status, err := s.payments.Await(ctx, p.UserID, p.TransactionID)
	if err != nil {
		if status != nil {
			// 支付失败或过期，回到待确认阶段，可重新发起支付
			s.setPhase(ctx, p.ID, model.PhaseReview, err.Error())
		}
		return err
	}
	log.Info().Str("project_id", p.ID).Str("transaction_id", p.TransactionID).Msg("payment confirmed, generating videos")

	s.setPhase(ctx, p.ID, model.PhaseVideos, "")
	return s.videosAndCompose(ctx, p, tmpl)
}

func (s *ReelService) videosAndCompose(ctx context.Context, p *model.Project, tmpl catalog.Template) error {
	videos := s.runner.GenerateVideos(ctx, tmpl, p.Images, func(videos []model.GeneratedVideo) {
		if err := s.projects.SetVideos(ctx, p.ID, videos); err != nil {
			log.Warn().Err(err).Str("project_id", p.ID).Msg("failed to persist videos")
		}
	})
	p.Videos = videos

	s.setPhase(ctx, p.ID, model.PhaseComposing, "")
	return s.compose(ctx, p, tmpl)
}

func (s *ReelService) compose(ctx context.Context, p *model.Project, tmpl catalog.Template) error {
	url, err := s.runner.Compose(ctx, tmpl, p.Videos)
	if err != nil {
		s.setPhase(ctx, p.ID, model.PhaseError, err.Error())
		return err
	}
	if err := s.projects.SetFinalVideo(ctx, p.ID, url); err != nil {
		log.Error().Err(err).Str("project_id", p.ID).Msg("failed to save final video")
		return err
	}
	log.Info().Str("project_id", p.ID).Str("url", url).Msg("reel composed")
	return nil
}

func (s *ReelService) requirePaid(ctx context.Context, p *model.Project) error {
	if p.TransactionID == "" {
		return ErrPaymentRequired
	}
	tx, err := s.payments.Transaction(ctx, p.UserID, p.TransactionID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return ErrPaymentRequired
		}
		return err
	}
	if tx.Status != payment.StatusCompleted {
		return ErrPaymentRequired
	}
	return nil
}

func (s *ReelService) load(ctx context.Context, userID, projectID string) (*model.Project, catalog.Template, error) {
	p, err := s.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, catalog.Template{}, err
	}
	tmpl, err := s.templates.Get(p.TemplateID)
	if err != nil {
		return nil, catalog.Template{}, err
	}
	return p, tmpl, nil
}

// lock 获取项目阶段锁，返回释放函数
func (s *ReelService) lock(ctx context.Context, projectID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := cache.PhaseLockKeyPrefix + projectID
	ok, err := s.locker.TryLock(ctx, key, cache.PhaseLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPhaseBusy
	}
	return func() {
		if err := s.locker.Unlock(context.Background(), key); err != nil {
			log.Warn().Err(err).Str("project_id", projectID).Msg("failed to release phase lock")
		}
	}, nil
}

// async 在后台执行任务，结束后释放阶段锁
func (s *ReelService) async(projectID string, unlock func(), fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unlock()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("project_id", projectID).Msg("reel job panicked")
				s.setPhase(context.Background(), projectID, model.PhaseError, "internal error")
			}
		}()

		ctx, cancel := context.WithTimeout(s.base, s.opts.JobTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (s *ReelService) imageObserver(ctx context.Context, projectID string) reel.ImageObserver {
	return func(images []model.GeneratedImage) {
		if err := s.projects.SetImages(ctx, projectID, images); err != nil {
			log.Warn().Err(err).Str("project_id", projectID).Msg("failed to persist images")
		}
	}
}

func (s *ReelService) setPhase(ctx context.Context, projectID string, phase model.Phase, errMsg string) {
	// 任务被取消时仍需落库终态
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := s.projects.SetPhase(ctx, projectID, phase, errMsg); err != nil {
		log.Error().Err(err).Str("project_id", projectID).Str("phase", string(phase)).Msg("failed to update project phase")
	}
}
