// Package production 实现六阶段广告制作流程：
// briefing → treatment → keyframing → video → audio → mastering。
// 阶段转换由显式的转换表驱动，只能前进；任一阶段失败即进入终态 error。
package production

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	model "opentry/internal/model/production"
	"opentry/internal/pkg/creatomate"
)

var (
	// ErrNoVideos 没有任何镜头生成成功
	ErrNoVideos = errors.New("No videos were generated successfully")
	// ErrRunning 流程正在执行
	ErrRunning = errors.New("production is already running")
	// ErrNoTreatment 缺少导演脚本
	ErrNoTreatment = errors.New("treatment is missing")
)

const finalResolution = "1920x1080"

// TreatmentWriter 生成导演脚本
type TreatmentWriter interface {
	WriteTreatment(ctx context.Context, in model.Inputs) (*model.Treatment, error)
}

// ImageGenerator 生成关键帧，返回图片地址
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, referenceImages []string) (string, error)
}

// ShotGenerator 以关键帧为首帧生成指定时长的镜头
type ShotGenerator interface {
	GenerateShot(ctx context.Context, imageURL, prompt string, duration int) (string, error)
}

// Voice 生成旁白并返回可访问的音频
type Voice interface {
	Voiceover(ctx context.Context, scripts []string, tone string) (*model.Audio, error)
}

// Masterer 母版合成
type Masterer interface {
	Master(ctx context.Context, req creatomate.MasterRequest) (*creatomate.MasterVideo, error)
}

// Deps 流程依赖的外部能力
type Deps struct {
	Treatment TreatmentWriter
	Images    ImageGenerator
	Shots     ShotGenerator
	Voice     Voice
	Master    Masterer
}

// handler 单个阶段的执行函数
type handler func(ctx context.Context, w *Workflow) error

// transition 转换表条目
type transition struct {
	run  handler
	next model.Phase
}

// transitions 阶段转换表
var transitions = map[model.Phase]transition{
	model.PhaseBriefing:   {run: runBriefing, next: model.PhaseTreatment},
	model.PhaseTreatment:  {run: runTreatment, next: model.PhaseKeyframing},
	model.PhaseKeyframing: {run: runKeyframing, next: model.PhaseVideo},
	model.PhaseVideo:      {run: runVideo, next: model.PhaseAudio},
	model.PhaseAudio:      {run: runAudio, next: model.PhaseMastering},
	model.PhaseMastering:  {run: runMastering, next: model.PhaseComplete},
}

// Workflow 单次广告制作
type Workflow struct {
	deps         Deps
	substepDelay time.Duration

	onChange   func(model.State)
	onError    func(string)
	onComplete func(*model.FinalOutput)

	mu      sync.Mutex
	state   model.State
	inputs  model.Inputs
	running bool
}

// Option Workflow 可选项
type Option func(*Workflow)

// WithSubstepDelay 子步骤之间的展示延迟
func WithSubstepDelay(d time.Duration) Option {
	return func(w *Workflow) { w.substepDelay = d }
}

// OnChange 状态变化回调（收到快照）
func OnChange(fn func(model.State)) Option {
	return func(w *Workflow) { w.onChange = fn }
}

// OnError 失败回调
func OnError(fn func(string)) Option {
	return func(w *Workflow) { w.onError = fn }
}

// OnComplete 成片回调
func OnComplete(fn func(*model.FinalOutput)) Option {
	return func(w *Workflow) { w.onComplete = fn }
}

// New 创建流程，初始状态为 idle
func New(deps Deps, opts ...Option) *Workflow {
	w := &Workflow{
		deps:  deps,
		state: model.NewState(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State 返回当前状态快照
func (w *Workflow) State() model.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return snapshot(w.state)
}

// Running 是否正在执行
func (w *Workflow) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Reset 回到 idle 初始状态
func (w *Workflow) Reset() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrRunning
	}
	w.state = model.NewState()
	w.inputs = model.Inputs{}
	w.mu.Unlock()
	w.notify()
	return nil
}

// Run 从 briefing 开始执行到 complete 或 error，返回最终状态
// 失败时 error 同时写入状态，返回的 error 为导致失败的原因
func (w *Workflow) Run(ctx context.Context, in model.Inputs) (model.State, error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return model.State{}, ErrRunning
	}
	w.running = true
	w.inputs = in
	w.state = model.NewState()
	w.state.Phase = model.PhaseBriefing
	w.state.Briefing = &model.Briefing{
		Archetype:       in.Archetype,
		Emotion:         in.Emotion,
		ReferenceImages: in.ProductImages,
	}
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.notify()

	for {
		phase := w.phase()
		if phase == model.PhaseComplete {
			break
		}
		t, ok := transitions[phase]
		if !ok {
			err := fmt.Errorf("no transition from phase %s", phase)
			w.fail(phase, err)
			return w.State(), err
		}

		log.Info().Str("phase", string(phase)).Str("product", in.ProductName).Msg("production phase started")
		if err := t.run(ctx, w); err != nil {
			log.Error().Err(err).Str("phase", string(phase)).Msg("production phase failed")
			w.fail(phase, err)
			return w.State(), err
		}

		w.update(func(s *model.State) {
			setStep(s, phase, model.StepComplete, "")
			s.Phase = t.next
		})
	}

	final := w.State()
	if w.onComplete != nil {
		w.onComplete(final.FinalOutput)
	}
	return final, nil
}

func (w *Workflow) phase() model.Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Phase
}

// update 在锁内修改状态后通知观察者
func (w *Workflow) update(fn func(s *model.State)) {
	w.mu.Lock()
	fn(&w.state)
	w.mu.Unlock()
	w.notify()
}

func (w *Workflow) notify() {
	if w.onChange != nil {
		w.onChange(w.State())
	}
}

func (w *Workflow) fail(phase model.Phase, err error) {
	msg := err.Error()
	w.update(func(s *model.State) {
		if step := s.Step(phase); step != nil {
			step.Status = model.StepError
			step.CurrentSubstep = ""
		}
		s.Phase = model.PhaseError
		s.Error = msg
	})
	if w.onError != nil {
		w.onError(msg)
	}
}

// substep 标记阶段进行中的子步骤
func (w *Workflow) substep(phase model.Phase, label string) {
	w.update(func(s *model.State) { setStep(s, phase, model.StepActive, label) })
}

// progress 按幕报告进度 round(i/3*100)
func (w *Workflow) progress(phase model.Phase, i int) {
	w.update(func(s *model.State) {
		if step := s.Step(phase); step != nil {
			step.Progress = int(math.Round(float64(i) / float64(model.ActCount) * 100))
		}
	})
}

// pause 子步骤展示延迟，可被 ctx 取消
func (w *Workflow) pause(ctx context.Context) error {
	if w.substepDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(w.substepDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func setStep(s *model.State, phase model.Phase, status model.StepStatus, substep string) {
	step := s.Step(phase)
	if step == nil {
		return
	}
	step.Status = status
	step.Progress = status.Progress()
	step.CurrentSubstep = substep
}

func snapshot(s model.State) model.State {
	out := s
	out.Steps = append([]model.Step(nil), s.Steps...)
	out.Keyframes = append([]model.Keyframe{}, s.Keyframes...)
	out.VideoShots = append([]model.VideoShot{}, s.VideoShots...)
	return out
}
