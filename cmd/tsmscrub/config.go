package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rateStage describes one leg of a rate curve: the playback rate ramps
// linearly from From to To across the stage, over FrameShare of the total
// input (FrameShare values across all stages need not sum to 1; they are
// normalized).
type rateStage struct {
	From       float64
	To         float64
	FrameShare float64
}

type curveConfig struct {
	Stages []rateStage
}

type yamlCurveConfig struct {
	Stages []struct {
		From  float64 `yaml:"from"`
		To    float64 `yaml:"to"`
		Share float64 `yaml:"share"`
	} `yaml:"stages"`
}

// loadCurveConfig reads a rate-curve document such as:
//
//	stages:
//	  - from: 1.0
//	    to: 1.0
//	    share: 0.3
//	  - from: 1.0
//	    to: 2.0
//	    share: 0.7
func loadCurveConfig(path string) (curveConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return curveConfig{}, fmt.Errorf("read rate curve config: %w", err)
	}

	var yc yamlCurveConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return curveConfig{}, fmt.Errorf("parse rate curve config: %w", err)
	}
	if len(yc.Stages) == 0 {
		return curveConfig{}, fmt.Errorf("rate curve config has no stages")
	}

	cfg := curveConfig{Stages: make([]rateStage, len(yc.Stages))}
	for i, s := range yc.Stages {
		if s.Share <= 0 {
			return curveConfig{}, fmt.Errorf("stage %d: share must be positive", i)
		}
		cfg.Stages[i] = rateStage{From: s.From, To: s.To, FrameShare: s.Share}
	}
	return cfg, nil
}

// rateAt returns the playback rate at fraction (in [0,1]) of the total
// input consumed so far, interpolating within whichever stage that
// fraction falls in.
func (c curveConfig) rateAt(fraction float64) float64 {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	var total float64
	for _, s := range c.Stages {
		total += s.FrameShare
	}
	if total <= 0 {
		return 1.0
	}

	target := fraction * total
	var acc float64
	for i, s := range c.Stages {
		if target <= acc+s.FrameShare || i == len(c.Stages)-1 {
			local := (target - acc) / s.FrameShare
			if local < 0 {
				local = 0
			}
			if local > 1 {
				local = 1
			}
			return s.From + local*(s.To-s.From)
		}
		acc += s.FrameShare
	}
	return c.Stages[len(c.Stages)-1].To
}

// constantCurve builds a single-stage curve holding rate fixed end to end.
func constantCurve(rate float64) curveConfig {
	return curveConfig{Stages: []rateStage{{From: rate, To: rate, FrameShare: 1}}}
}
