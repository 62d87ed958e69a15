package viz

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/RyanBlaney/dubsync/pkg/audio"
	"github.com/RyanBlaney/dubsync/pkg/logging"
)

// Review UI palette
var (
	backgroundColor = color.NRGBA{R: 0xf8, G: 0xfa, B: 0xfc, A: 0xff}
	referenceColor  = color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0x99}
	candidateColor  = color.NRGBA{R: 0xf5, G: 0x9e, B: 0x0b, A: 0x99}
)

// RendererConfig holds waveform image settings
type RendererConfig struct {
	// WindowSeconds caps how much leading audio is drawn
	WindowSeconds float64
	// MaxPoints caps how many downsampled buckets each panel draws
	MaxPoints int
	Logger    logging.Logger
}

// WaveformRenderer draws the stacked reference/candidate waveform image
// attached to flagged results. Panels show the leading window of each
// decode, downsampled to min/max pairs per bucket so the envelope shape
// survives.
type WaveformRenderer struct {
	windowSeconds float64
	maxPoints     int
	logger        logging.Logger
}

// NewWaveformRenderer creates a renderer; zero config picks the defaults
// (15 s window, 2000 buckets per panel)
func NewWaveformRenderer(config *RendererConfig) *WaveformRenderer {
	if config == nil {
		config = &RendererConfig{}
	}
	windowSeconds := config.WindowSeconds
	if windowSeconds <= 0 {
		windowSeconds = 15
	}
	maxPoints := config.MaxPoints
	if maxPoints <= 0 {
		maxPoints = 2000
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &WaveformRenderer{
		windowSeconds: windowSeconds,
		maxPoints:     maxPoints,
		logger:        logger,
	}
}

// RenderComparison draws both waveforms stacked and returns the PNG
// base64-encoded
func (r *WaveformRenderer) RenderComparison(reference, candidate *audio.Buffer, offsetMs, matchScore float64) (string, error) {
	if reference.Empty() || candidate.Empty() {
		return "", fmt.Errorf("cannot render empty buffers")
	}

	top, err := r.waveformPlot(reference, referenceColor)
	if err != nil {
		return "", err
	}
	top.Title.Text = fmt.Sprintf("Sync: %vms | Content Integrity: %v%%", offsetMs, matchScore)
	top.Y.Label.Text = "Reference"
	top.X.Tick.Marker = plot.ConstantTicks{}

	bottom, err := r.waveformPlot(candidate, candidateColor)
	if err != nil {
		return "", err
	}
	bottom.Y.Label.Text = "Comparison"
	bottom.X.Label.Text = "Time (s)"

	img := vgimg.NewWith(
		vgimg.UseWH(10*vg.Inch, 5*vg.Inch),
		vgimg.UseDPI(100),
		vgimg.UseBackgroundColor(backgroundColor),
	)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 2, Cols: 1,
		PadX: vg.Millimeter, PadY: vg.Millimeter,
		PadTop: vg.Millimeter, PadBottom: vg.Millimeter,
		PadLeft: vg.Millimeter, PadRight: vg.Millimeter,
	}
	plots := [][]*plot.Plot{{top}, {bottom}}
	canvases := plot.Align(plots, tiles, dc)
	top.Draw(canvases[0][0])
	bottom.Draw(canvases[1][0])

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("failed to encode waveform png: %w", err)
	}

	r.logger.Debug("Rendered waveform comparison", logging.Fields{
		"png_bytes":   buf.Len(),
		"offset_ms":   offsetMs,
		"match_score": matchScore,
	})

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (r *WaveformRenderer) waveformPlot(buf *audio.Buffer, lineColor color.Color) (*plot.Plot, error) {
	points := downsampleWaveform(buf.Window(r.windowSeconds), buf.SampleRate, r.maxPoints)

	p := plot.New()
	line, err := plotter.NewLine(points)
	if err != nil {
		return nil, fmt.Errorf("failed to build waveform line: %w", err)
	}
	line.Color = lineColor
	line.Width = vg.Points(0.75)
	p.Add(line)
	return p, nil
}

// downsampleWaveform reduces raw samples to min/max pairs per time bucket
func downsampleWaveform(samples []float64, sampleRate, maxPoints int) plotter.XYs {
	if len(samples) == 0 || sampleRate <= 0 {
		return plotter.XYs{}
	}
	bucket := len(samples) / maxPoints
	if bucket < 1 {
		bucket = 1
	}

	points := make(plotter.XYs, 0, 2*(len(samples)/bucket+1))
	for start := 0; start < len(samples); start += bucket {
		end := start + bucket
		if end > len(samples) {
			end = len(samples)
		}
		lo, hi := samples[start], samples[start]
		for _, v := range samples[start+1 : end] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		t := float64(start) / float64(sampleRate)
		points = append(points, plotter.XY{X: t, Y: hi}, plotter.XY{X: t, Y: lo})
	}
	return points
}
