package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
)

// StreamInfo summarizes the first audio stream of a container as reported
// by ffprobe
type StreamInfo struct {
	Container  string  `json:"container" yaml:"container"`
	Codec      string  `json:"codec" yaml:"codec"`
	SampleRate int     `json:"sample_rate" yaml:"sample_rate"`
	Channels   int     `json:"channels" yaml:"channels"`
	Duration   float64 `json:"duration_seconds" yaml:"duration_seconds"`
	BitRate    int     `json:"bit_rate" yaml:"bit_rate"`
}

// Prober shells out to ffprobe for container metadata
type Prober struct {
	ffprobePath string
}

// NewProber creates a prober; empty path means "ffprobe" on PATH
func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath}
}

// Probe runs ffprobe and extracts the first audio stream's parameters
func (p *Prober) Probe(ctx context.Context, path string) (*StreamInfo, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, NewAudioError(path, ErrCodeProbeFailed,
			"ffprobe failed: "+stderrExcerpt(stderr.Bytes()), err)
	}

	var parsed struct {
		Format struct {
			FormatName string `json:"format_name"`
			Duration   string `json:"duration"`
			BitRate    string `json:"bit_rate"`
		} `json:"format"`
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return nil, NewAudioError(path, ErrCodeProbeFailed, "cannot parse ffprobe output", err)
	}

	info := &StreamInfo{Container: parsed.Format.FormatName}
	info.Duration, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	info.BitRate, _ = strconv.Atoi(parsed.Format.BitRate)

	for _, stream := range parsed.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		info.Codec = stream.CodecName
		info.Channels = stream.Channels
		info.SampleRate, _ = strconv.Atoi(stream.SampleRate)
		break
	}
	if info.Codec == "" {
		return nil, NewAudioError(path, ErrCodeProbeFailed, "no audio stream found", nil)
	}

	return info, nil
}
