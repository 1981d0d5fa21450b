// Command tsmscrub is a file-based demonstration host for the tscale
// engine: it decodes a WAV file, drives the engine across a constant rate
// or a multi-stage rate curve, and writes the time-scaled result back out
// as WAV. It is a consumer of the public tscale API only; it never reaches
// into the engine's internal packages.
package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"tscale"
	"tscale/internal/enginemetrics"
)

// logMetricsSummary gathers the run's Prometheus metric families from its
// private registry and logs each metric's value, the way
// publishAllMetrics gathers from a registry before fan-out elsewhere.
func logMetricsSummary(logger *slog.Logger, metrics *enginemetrics.Set) {
	families, err := metrics.Registry.Gather()
	if err != nil {
		logger.Error("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			default:
				continue
			}
			logger.Info("metric", "name", mf.GetName(), "value", value)
		}
	}
}

const feedChunkFrames = 4096
const drainChunkFrames = 1024

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var (
		inPath     = pflag.StringP("in", "i", "", "input WAV file path")
		outPath    = pflag.StringP("out", "o", "", "output WAV file path")
		rate       = pflag.Float64("rate", 1.0, "constant playback rate (ignored if --curve is set)")
		curvePath  = pflag.String("curve", "", "path to a YAML rate-curve config (overrides --rate)")
		windowMs   = pflag.Float64("window-ms", tscale.DefaultOptions().OLAWindowSizeMs, "OLA window size in milliseconds")
		searchMs   = pflag.Float64("search-ms", tscale.DefaultOptions().WSOLASearchIntervalMs, "WSOLA search interval in milliseconds")
		minRate    = pflag.Float64("min-rate", tscale.DefaultOptions().MinPlaybackRate, "rates below this are muted to silence")
		maxRate    = pflag.Float64("max-rate", tscale.DefaultOptions().MaxPlaybackRate, "rates above this are muted to silence")
		bitDepth   = pflag.Int("bit-depth", 16, "output WAV bit depth")
		metricsOn  = pflag.Bool("metrics", false, "collect Prometheus metrics for this run and log a summary at exit")
	)
	pflag.Parse()

	if *inPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: tsmscrub --in in.wav --out out.wav [--rate 1.5 | --curve curve.yaml]")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(logger, *inPath, *outPath, *rate, *curvePath, *windowMs, *searchMs, *minRate, *maxRate, *bitDepth, *metricsOn); err != nil {
		logger.Error("tsmscrub failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, inPath, outPath string, rate float64, curvePath string, windowMs, searchMs, minRate, maxRate float64, bitDepth int, metricsOn bool) error {
	planes, channels, sampleRate, err := decodeWAV(inPath)
	if err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	inputFrames := 0
	if channels > 0 {
		inputFrames = len(planes[0])
	}
	logger.Info("decoded input", "path", inPath, "channels", channels, "sample_rate", sampleRate, "frames", inputFrames)

	curve := constantCurve(rate)
	if curvePath != "" {
		curve, err = loadCurveConfig(curvePath)
		if err != nil {
			return fmt.Errorf("load rate curve: %w", err)
		}
	}

	opts := tscale.DefaultOptions()
	opts.OLAWindowSizeMs = windowMs
	opts.WSOLASearchIntervalMs = searchMs
	opts.MinPlaybackRate = minRate
	opts.MaxPlaybackRate = maxRate

	engineOpts := []tscale.Option{tscale.WithLogger(logger)}
	var metrics *enginemetrics.Set
	if metricsOn {
		metrics = enginemetrics.New(uuid.New().String())
		engineOpts = append(engineOpts, tscale.WithMetrics(metrics))
	}

	engine, err := tscale.New(opts, channels, sampleRate, engineOpts...)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer engine.Close()

	outPlanes := make([][]float32, channels)
	for c := range outPlanes {
		outPlanes[c] = make([]float32, 0, inputFrames)
	}

	fed := 0
	finalized := false
	drainBuf := make([][]float32, channels)
	for c := range drainBuf {
		drainBuf[c] = make([]float32, drainChunkFrames)
	}

	for {
		for fed < inputFrames {
			remaining := inputFrames - fed
			n := remaining
			if n > feedChunkFrames {
				n = feedChunkFrames
			}
			chunk := make([][]float32, channels)
			for c := range chunk {
				chunk[c] = planes[c][fed : fed+n]
			}
			currentRate := curve.rateAt(float64(fed) / float64(inputFrames))
			accepted := engine.FillInputBuffer(chunk, n, currentRate)
			if accepted == 0 {
				break
			}
			fed += accepted
		}
		if fed >= inputFrames && !finalized {
			engine.SetFinal()
			finalized = true
		}

		fraction := 1.0
		if inputFrames > 0 {
			fraction = float64(fed) / float64(inputFrames)
		}
		currentRate := curve.rateAt(fraction)

		produced := engine.FillBuffer(drainBuf, currentRate)
		if produced > 0 {
			for c := range outPlanes {
				outPlanes[c] = append(outPlanes[c], drainBuf[c][:produced]...)
			}
		}
		if produced == 0 && finalized {
			break
		}
		if produced == 0 && fed >= inputFrames && !engine.FramesAvailable(currentRate) {
			break
		}
	}

	logger.Info("produced output", "frames", len(outPlanes[0]), "stats", engine.Stats())

	if metrics != nil {
		logMetricsSummary(logger, metrics)
	}

	if err := encodeWAV(outPath, outPlanes, channels, sampleRate, bitDepth); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// decodeWAV reads a WAV file into planar float32 channels, normalized to
// [-1, 1].
func decodeWAV(path string) (planes [][]float32, channels, sampleRate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read PCM: %w", err)
	}

	channels = int(dec.NumChans)
	sampleRate = int(dec.SampleRate)
	if channels < 1 {
		return nil, 0, 0, fmt.Errorf("invalid channel count %d", channels)
	}

	floatBuf := buf.AsFloatBuffer()
	frames := buf.NumFrames()
	fullScale := float64(int(1) << uint(dec.BitDepth-1))

	planes = make([][]float32, channels)
	for c := range planes {
		planes[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			planes[c][i] = float32(floatBuf.Data[i*channels+c] / fullScale)
		}
	}
	return planes, channels, sampleRate, nil
}

// encodeWAV re-interleaves planar float32 channels and writes them as a
// PCM WAV file at the given bit depth.
func encodeWAV(path string, planes [][]float32, channels, sampleRate, bitDepth int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	defer enc.Close()

	frames := 0
	if channels > 0 && len(planes) > 0 {
		frames = len(planes[0])
	}

	maxVal := float64(int(1)<<uint(bitDepth-1) - 1)
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := float64(planes[c][i]) * maxVal
			if v > maxVal {
				v = maxVal
			}
			if v < -maxVal-1 {
				v = -maxVal - 1
			}
			data[i*channels+c] = int(math.Round(v))
		}
	}

	intBuf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	return enc.Write(intBuf)
}
