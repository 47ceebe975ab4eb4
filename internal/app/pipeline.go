package app

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
)

// run is the capture loop behind a subscription.
//
// Each tick reads a frame, caches it, adapts the frame rate to motion
// (idle rate until motion, back to idle after the rate's timeout), detects
// hands and hands the first one to h. Detection runs on every frame because
// a held sign produces no motion. Ticks that arrive while a frame is being
// processed are dropped by the ticker.
func (s *CameraSource) run(sub *Subscription, h FrameHandler) {
	defer close(sub.done)
	defer func() {
		if err := s.camera.Close(); err != nil {
			s.logger.Warn("failed to close camera", "err", err)
		}
		s.motion.Reset()
		s.logger.Info("pose source stopped")
	}()

	rate := capture.DefaultRate()
	s.camera.SetFPS(rate.FPS())

	ticker := time.NewTicker(frameInterval(rate.FPS()))
	defer ticker.Stop()

	var readErrors int
	for {
		select {
		case <-sub.stop:
			return
		case <-ticker.C:
		}

		frame, err := s.camera.ReadFrame()
		if err != nil {
			// Log the first failure of a run, then every 100th.
			if readErrors%100 == 0 {
				s.logger.Warn("failed to read frame", "err", err, "failures", readErrors+1)
			}
			readErrors++
			continue
		}
		readErrors = 0

		pose := s.process(frame, rate, ticker)
		frame.Close()

		select {
		case <-sub.stop:
			return
		default:
		}
		h(pose)
	}
}

func (s *CameraSource) process(frame *gocv.Mat, rate *capture.Rate, ticker *time.Ticker) detector.Pose {
	s.remember(frame)

	if fps, changed := rate.Observe(s.motion.Detect(frame), time.Now()); changed {
		s.camera.SetFPS(fps)
		ticker.Reset(frameInterval(fps))
		s.logger.Debug("frame rate changed", "fps", fps, "active", rate.Active())
	}

	if s.detector == nil {
		return nil
	}

	hands, err := s.detector.Detect(frame)
	if err != nil {
		s.logger.Warn("hand detection failed", "err", err)
		return nil
	}
	if len(hands) == 0 {
		return nil
	}
	return hands[0].Pose()
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
