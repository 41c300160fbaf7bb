package production

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	model "opentry/internal/model/production"
	"opentry/internal/pkg/creatomate"
)

func runBriefing(ctx context.Context, w *Workflow) error {
	w.substep(model.PhaseBriefing, "Analyzing brand archetype")
	if err := w.pause(ctx); err != nil {
		return err
	}
	w.substep(model.PhaseBriefing, "Mapping emotional journey")
	return w.pause(ctx)
}

func runTreatment(ctx context.Context, w *Workflow) error {
	w.substep(model.PhaseTreatment, "Creating visual anchor")

	in := w.inputs
	if len(in.ProductImages) > 3 {
		in.ProductImages = in.ProductImages[:3]
	}
	treatment, err := w.deps.Treatment.WriteTreatment(ctx, in)
	if err != nil {
		return err
	}
	w.update(func(s *model.State) { s.Treatment = treatment })

	w.substep(model.PhaseTreatment, "Scripting 3-act structure")
	if err := w.pause(ctx); err != nil {
		return err
	}
	w.substep(model.PhaseTreatment, "Defining cinematic specs")
	return w.pause(ctx)
}

// runKeyframing 逐幕生成关键帧，单幕失败跳过
func runKeyframing(ctx context.Context, w *Workflow) error {
	treatment := w.State().Treatment
	if treatment == nil {
		return ErrNoTreatment
	}

	var refs []string
	if len(w.inputs.ProductImages) > 0 {
		refs = w.inputs.ProductImages[:1]
	}

	for i, act := range treatment.Acts {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.substep(model.PhaseKeyframing, fmt.Sprintf("Rendering Act %d keyframe", i+1))
		w.progress(model.PhaseKeyframing, i)

		act.ActNumber = i + 1
		prompt := KeyframePrompt(treatment.VisualAnchor, act, w.inputs.Brand(), w.inputs.BusinessType)
		url, err := w.deps.Images.GenerateImage(ctx, prompt, refs)
		if err != nil {
			log.Warn().Err(err).Int("act", i+1).Msg("keyframe generation failed, skipping act")
			continue
		}

		kf := model.Keyframe{
			ActNumber:      i + 1,
			ImageURL:       url,
			Prompt:         prompt,
			CinematicSpecs: CinematicSpecs(act),
		}
		w.update(func(s *model.State) { s.Keyframes = append(s.Keyframes, kf) })
	}
	return nil
}

// runVideo 为每个关键帧生成镜头，单个失败跳过
func runVideo(ctx context.Context, w *Workflow) error {
	st := w.State()
	if st.Treatment == nil {
		return ErrNoTreatment
	}

	for i, kf := range st.Keyframes {
		if err := ctx.Err(); err != nil {
			return err
		}
		act := st.Treatment.Acts[kf.ActNumber-1]
		w.substep(model.PhaseVideo, fmt.Sprintf("Animating Act %d", kf.ActNumber))
		w.progress(model.PhaseVideo, i)

		duration := ShotDuration(act)
		url, err := w.deps.Shots.GenerateShot(ctx, kf.ImageURL, MotionPrompt(act, duration), duration)
		if err != nil {
			log.Warn().Err(err).Int("act", kf.ActNumber).Msg("shot generation failed, skipping act")
			continue
		}

		shot := model.VideoShot{
			ActNumber:      kf.ActNumber,
			ShotNumber:     1,
			VideoURL:       url,
			Duration:       duration,
			CameraMovement: act.CameraMovement,
		}
		w.update(func(s *model.State) { s.VideoShots = append(s.VideoShots, shot) })
	}
	return nil
}

func runAudio(ctx context.Context, w *Workflow) error {
	treatment := w.State().Treatment
	if treatment == nil {
		return ErrNoTreatment
	}

	w.substep(model.PhaseAudio, "Generating voiceover")
	scripts := make([]string, 0, len(treatment.Acts))
	for _, act := range treatment.Acts {
		scripts = append(scripts, act.VoiceoverScript)
	}
	audio, err := w.deps.Voice.Voiceover(ctx, scripts, w.inputs.VoiceTone())
	if err != nil {
		return err
	}
	w.update(func(s *model.State) { s.Audio = audio })

	w.substep(model.PhaseAudio, "Syncing narration")
	return w.pause(ctx)
}

func runMastering(ctx context.Context, w *Workflow) error {
	st := w.State()
	if st.Treatment == nil {
		return ErrNoTreatment
	}
	w.substep(model.PhaseMastering, "Compositing acts")

	urls := make([]string, 0, len(st.VideoShots))
	for _, shot := range st.VideoShots {
		urls = append(urls, shot.VideoURL)
	}
	if len(urls) == 0 {
		return ErrNoVideos
	}

	total := st.Treatment.TotalDuration()
	req := creatomate.MasterRequest{
		VideoURLs: urls,
		BrandLogo: w.inputs.BrandLogo,
		BrandName: w.inputs.Brand(),
		Duration:  float64(total),
	}
	if st.Audio != nil {
		req.VoiceoverURL = st.Audio.VoiceoverURL
	}
	master, err := w.deps.Master.Master(ctx, req)
	if err != nil {
		return err
	}

	w.substep(model.PhaseMastering, "Adding logo overlay")
	if err := w.pause(ctx); err != nil {
		return err
	}
	w.substep(model.PhaseMastering, "Exporting 4K master")
	if err := w.pause(ctx); err != nil {
		return err
	}

	out := &model.FinalOutput{
		MasterVideoURL: master.VideoURL,
		Duration:       total,
		Resolution:     finalResolution,
		Acts:           make([]model.ActOutput, 0, len(st.Keyframes)),
	}
	if len(st.Keyframes) > 0 {
		out.ThumbnailURL = st.Keyframes[0].ImageURL
	}
	for _, kf := range st.Keyframes {
		act := model.ActOutput{ActNumber: kf.ActNumber, KeyframeURL: kf.ImageURL}
		for _, shot := range st.VideoShots {
			if shot.ActNumber == kf.ActNumber {
				act.VideoURL = shot.VideoURL
				break
			}
		}
		out.Acts = append(out.Acts, act)
	}
	w.update(func(s *model.State) { s.FinalOutput = out })
	return nil
}
