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

	model "opentry/internal/model/production"
	"opentry/internal/pkg/id"
	"opentry/internal/pkg/storage"
	"opentry/internal/production"
	prodRepo "opentry/internal/repository/production"
)

var (
	ErrProductionNotFound = errors.New("production not found")
	ErrInvalidArchetype   = errors.New("invalid brand archetype")
	ErrInvalidEmotion     = errors.New("invalid target emotion")
	ErrMissingProduct     = errors.New("product name and description are required")
	ErrMissingProductImg  = errors.New("at least one product image is required")
)

// ProductionOptions 广告制作参数
type ProductionOptions struct {
	SubstepDelay time.Duration
	JobTimeout   time.Duration // 默认 30m
}

// ProductionService 广告制作服务：持久化任务并在后台执行六阶段流程
type ProductionService struct {
	repo  prodRepo.ProductionRepository
	deps  production.Deps
	store storage.Storage
	opts  ProductionOptions

	mu      sync.Mutex
	running map[string]*production.Workflow

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProductionService 创建广告制作服务
func NewProductionService(repo prodRepo.ProductionRepository, deps production.Deps, store storage.Storage, opts ProductionOptions) *ProductionService {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &ProductionService{
		repo:    repo,
		deps:    deps,
		store:   store,
		opts:    opts,
		running: make(map[string]*production.Workflow),
		base:    base,
		cancel:  cancel,
	}
}

// Wait 等待所有后台任务结束
func (s *ProductionService) Wait() {
	s.wg.Wait()
}

// Close 取消后台任务并等待退出
func (s *ProductionService) Close() {
	s.cancel()
	s.wg.Wait()
}

// Create 校验输入、保存任务并在后台开始制作
func (s *ProductionService) Create(ctx context.Context, userID string, in model.Inputs) (*model.Production, error) {
	if strings.TrimSpace(in.ProductName) == "" || strings.TrimSpace(in.Description) == "" {
		return nil, ErrMissingProduct
	}
	if len(in.ProductImages) == 0 {
		return nil, ErrMissingProductImg
	}
	if !in.Archetype.IsValid() {
		return nil, ErrInvalidArchetype
	}
	if !in.Emotion.IsValid() {
		return nil, ErrInvalidEmotion
	}

	p := &model.Production{
		ID:     id.New(),
		UserID: userID,
		State:  model.NewState(),
	}

	images, err := s.host(ctx, fmt.Sprintf("products/%s", p.ID), in.ProductImages)
	if err != nil {
		return nil, err
	}
	in.ProductImages = images
	if in.BrandLogo != "" {
		logo, err := s.host(ctx, fmt.Sprintf("logos/%s", p.ID), []string{in.BrandLogo})
		if err != nil {
			return nil, err
		}
		in.BrandLogo = logo[0]
	}
	p.Inputs = in

	if err := s.repo.Create(ctx, p); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to create production")
		return nil, err
	}

	s.start(p)
	log.Info().Str("production_id", p.ID).Str("product", in.ProductName).Msg("production started")
	return p, nil
}

// Get 查询任务；执行中的任务返回内存中的最新状态
func (s *ProductionService) Get(ctx context.Context, userID, productionID string) (*model.Production, error) {
	p, err := s.find(ctx, userID, productionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	w := s.running[productionID]
	s.mu.Unlock()
	if w != nil {
		p.State = w.State()
	}
	return p, nil
}

// Reset 把已结束的任务恢复为初始空状态
func (s *ProductionService) Reset(ctx context.Context, userID, productionID string) (*model.Production, error) {
	p, err := s.find(ctx, userID, productionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	_, busy := s.running[productionID]
	s.mu.Unlock()
	if busy {
		return nil, production.ErrRunning
	}

	p.State = model.NewState()
	if err := s.repo.SaveState(ctx, p.ID, p.State); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProductionService) start(p *model.Production) {
	productionID := p.ID
	save := func(state model.State) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.repo.SaveState(ctx, productionID, state); err != nil {
			log.Warn().Err(err).Str("production_id", productionID).Msg("failed to persist production state")
		}
	}

	w := production.New(s.deps,
		production.WithSubstepDelay(s.opts.SubstepDelay),
		production.OnChange(save),
		production.OnError(func(msg string) {
			log.Warn().Str("production_id", productionID).Str("error", msg).Msg("production failed")
		}),
		production.OnComplete(func(out *model.FinalOutput) {
			if out != nil {
				log.Info().Str("production_id", productionID).Str("video_url", out.MasterVideoURL).Msg("production complete")
			}
		}),
	)

	s.mu.Lock()
	s.running[productionID] = w
	s.mu.Unlock()

	inputs := p.Inputs
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, productionID)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(s.base, s.opts.JobTimeout)
		defer cancel()
		final, _ := w.Run(ctx, inputs)
		save(final)
	}()
}

func (s *ProductionService) find(ctx context.Context, userID, productionID string) (*model.Production, error) {
	if !id.Valid(productionID) {
		return nil, ErrProductionNotFound
	}
	p, err := s.repo.FindByID(ctx, productionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductionNotFound
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrProductionNotFound
	}
	return p, nil
}

// host data URL 上传到存储，http(s) 地址保留
func (s *ProductionService) host(ctx context.Context, prefix string, images []string) ([]string, error) {
	out := make([]string, 0, len(images))
	for i, img := range images {
		switch {
		case storage.IsDataURL(img):
			url, err := storage.UploadDataURL(ctx, s.store, fmt.Sprintf("%s/%d", prefix, i), img)
			if err != nil {
				return nil, err
			}
			out = append(out, url)
		case strings.HasPrefix(img, "https://") || strings.HasPrefix(img, "http://"):
			out = append(out, img)
		default:
			return nil, ErrInvalidReferenceImage
		}
	}
	return out, nil
}
