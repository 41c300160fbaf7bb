package service

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	model "opentry/internal/model/production"
	"opentry/internal/pkg/creatomate"
	"opentry/internal/pkg/storage/local"
	"opentry/internal/production"
)

type stubTreatment struct{ err error }

func (s stubTreatment) WriteTreatment(ctx context.Context, in model.Inputs) (*model.Treatment, error) {
	if s.err != nil {
		return nil, s.err
	}
	acts := make([]model.ActSpec, model.ActCount)
	for i := range acts {
		acts[i] = model.ActSpec{ActNumber: i + 1, Duration: 5, VoiceoverScript: "Line."}
	}
	return &model.Treatment{Acts: acts}, nil
}

type stubImages struct{}

func (stubImages) GenerateImage(ctx context.Context, prompt string, refs []string) (string, error) {
	return "https://kf.example/frame.png", nil
}

type stubShots struct{}

func (stubShots) GenerateShot(ctx context.Context, imageURL, prompt string, duration int) (string, error) {
	return "https://shots.example/shot.mp4", nil
}

type stubVoice struct{}

func (stubVoice) Voiceover(ctx context.Context, scripts []string, tone string) (*model.Audio, error) {
	return &model.Audio{VoiceoverURL: "https://media.example/vo.mp3", Duration: 3}, nil
}

type stubMaster struct{}

func (stubMaster) Master(ctx context.Context, req creatomate.MasterRequest) (*creatomate.MasterVideo, error) {
	return &creatomate.MasterVideo{VideoURL: "https://render.example/master.mp4", Duration: req.Duration, Resolution: "1920x1080"}, nil
}

func productionInputs() model.Inputs {
	return model.Inputs{
		BrandName:     "Noir",
		ProductName:   "Cold Brew",
		Description:   "Slow steeped coffee",
		Mood:          "high_energy",
		ProductImages: []string{"https://cdn.example/bottle.jpg"},
		Archetype:     model.ArchetypeRebel,
		Emotion:       model.EmotionDesire,
	}
}

func newProductionFixture(t *testing.T, treatment production.TreatmentWriter) (*ProductionService, *memProductions) {
	store, err := local.NewLocalStorage(t.TempDir(), "http://media.local/files")
	So(err, ShouldBeNil)
	repo := newMemProductions()
	svc := NewProductionService(repo, production.Deps{
		Treatment: treatment,
		Images:    stubImages{},
		Shots:     stubShots{},
		Voice:     stubVoice{},
		Master:    stubMaster{},
	}, store, ProductionOptions{})
	return svc, repo
}

func TestProductionService(t *testing.T) {
	Convey("广告制作任务", t, func() {
		ctx := context.Background()

		Convey("校验输入", func() {
			svc, _ := newProductionFixture(t, stubTreatment{})

			in := productionInputs()
			in.Archetype = "wizard"
			_, err := svc.Create(ctx, "user-1", in)
			So(err, ShouldEqual, ErrInvalidArchetype)

			in = productionInputs()
			in.Emotion = "anger"
			_, err = svc.Create(ctx, "user-1", in)
			So(err, ShouldEqual, ErrInvalidEmotion)

			in = productionInputs()
			in.ProductImages = nil
			_, err = svc.Create(ctx, "user-1", in)
			So(err, ShouldEqual, ErrMissingProductImg)

			in = productionInputs()
			in.Description = " "
			_, err = svc.Create(ctx, "user-1", in)
			So(err, ShouldEqual, ErrMissingProduct)
		})

		Convey("后台执行到 complete 并持久化", func() {
			svc, repo := newProductionFixture(t, stubTreatment{})
			p, err := svc.Create(ctx, "user-1", productionInputs())
			So(err, ShouldBeNil)
			svc.Wait()

			got, err := svc.Get(ctx, "user-1", p.ID)
			So(err, ShouldBeNil)
			So(got.State.Phase, ShouldEqual, model.PhaseComplete)
			So(got.State.FinalOutput, ShouldNotBeNil)
			So(got.State.FinalOutput.MasterVideoURL, ShouldEqual, "https://render.example/master.mp4")
			So(got.State.FinalOutput.Duration, ShouldEqual, 15)
			So(repo.saves, ShouldBeGreaterThan, 1)

			_, err = svc.Get(ctx, "user-2", p.ID)
			So(err, ShouldEqual, ErrProductionNotFound)

			Convey("重置回初始状态", func() {
				reset, err := svc.Reset(ctx, "user-1", p.ID)
				So(err, ShouldBeNil)
				So(reset.State.Phase, ShouldEqual, model.PhaseIdle)

				got, _ := svc.Get(ctx, "user-1", p.ID)
				So(got.State.FinalOutput, ShouldBeNil)
				So(got.State.Steps, ShouldHaveLength, 6)
			})
		})

		Convey("阶段失败进入 error", func() {
			svc, _ := newProductionFixture(t, stubTreatment{err: errors.New("No treatment generated")})
			p, err := svc.Create(ctx, "user-1", productionInputs())
			So(err, ShouldBeNil)
			svc.Wait()

			got, _ := svc.Get(ctx, "user-1", p.ID)
			So(got.State.Phase, ShouldEqual, model.PhaseError)
			So(got.State.Error, ShouldEqual, "No treatment generated")
			So(got.State.Step(model.PhaseTreatment).Status, ShouldEqual, model.StepError)
			So(got.State.Step(model.PhaseBriefing).Status, ShouldEqual, model.StepComplete)
		})
	})
}
