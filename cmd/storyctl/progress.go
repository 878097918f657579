package main

import (
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
	)
}

// stageBars keeps one bar per ingest stage, created on first report.
type stageBars struct {
	labels map[string]string
	bars   map[string]*progressbar.ProgressBar
}

func newStageBars(labels map[string]string) *stageBars {
	return &stageBars{labels: labels, bars: make(map[string]*progressbar.ProgressBar)}
}

func (s *stageBars) report(stage string, done, total int) {
	bar, ok := s.bars[stage]
	if !ok {
		bar = getProgressBar(total, s.labels[stage])
		s.bars[stage] = bar
	}
	bar.Set(done)
	if done == total {
		bar.Finish()
	}
}
