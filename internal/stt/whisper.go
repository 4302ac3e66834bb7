// Package stt wraps the whisper.cpp CLI and ffmpeg format conversion.
// It is a collaborator of the orchestration layer: the core only ever
// receives already-transcribed text.
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mkravets/safedesk/internal/config"
	"github.com/mkravets/safedesk/internal/domain"
	"go.uber.org/zap"
)

// Result is a finished transcription.
type Result struct {
	Text     string
	Language string
}

// Whisper runs whisper-cli against WAV files.
type Whisper struct {
	binary        string
	modelPath     string
	language      string
	threads       int
	ffmpegBinary  string
	ldLibraryPath string
	logger        *zap.Logger
}

// NewWhisper creates a transcriber from configuration.
func NewWhisper(cfg config.WhisperConfig, logger *zap.Logger) *Whisper {
	threads := cfg.Threads
	if threads <= 0 {
		threads = 4
	}
	ffmpeg := cfg.FFmpegBinary
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Whisper{
		binary:        cfg.Binary,
		modelPath:     cfg.ModelPath,
		language:      cfg.Language,
		threads:       threads,
		ffmpegBinary:  ffmpeg,
		ldLibraryPath: cfg.LDLibraryPath,
		logger:        logger,
	}
}

// ConvertToWAV converts an OGG/Opus file to mono 16kHz WAV via ffmpeg and
// returns the output path.
func (w *Whisper) ConvertToWAV(ctx context.Context, inputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	out, err := os.CreateTemp("", "safedesk_audio_*.wav")
	if err != nil {
		return "", fmt.Errorf("creating wav file: %w", err)
	}
	outputPath := out.Name()
	out.Close()

	cmd := exec.CommandContext(ctx, w.ffmpegBinary,
		"-y",
		"-i", inputPath,
		"-ac", "1",
		"-ar", "16000",
		outputPath,
	)
	w.logger.Debug("Running ffmpeg", zap.String("cmd", strings.Join(cmd.Args, " ")))
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg failed to convert audio: %w: %s", err, tail(output))
	}
	return outputPath, nil
}

type whisperPayload struct {
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
}

// Transcribe runs whisper-cli on a WAV file and collects the segment text.
func (w *Whisper) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("audio for transcription not found: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "safedesk_whisper_")
	if err != nil {
		return nil, fmt.Errorf("creating whisper work dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outPrefix := filepath.Join(tmpDir, "result")
	cmd := exec.CommandContext(ctx, w.binary,
		"-m", w.modelPath,
		"-f", audioPath,
		"-l", w.language,
		"-t", strconv.Itoa(w.threads),
		"-oj",
		"-of", outPrefix,
		"-np",
	)
	if w.ldLibraryPath != "" {
		cmd.Env = append(os.Environ(), "LD_LIBRARY_PATH="+w.ldLibraryPath)
	}

	w.logger.Debug("Running whisper-cli", zap.String("cmd", strings.Join(cmd.Args, " ")))
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("whisper-cli failed: %w: %s", err, tail(output))
	}

	data, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("whisper-cli finished but JSON result not found: %w", err)
	}

	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding whisper output: %w", err)
	}

	var parts []string
	for _, segment := range payload.Transcription {
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return nil, domain.ErrEmptyTranscript
	}
	return &Result{Text: text, Language: payload.Result.Language}, nil
}

// tail keeps error output short enough to embed in an error message.
func tail(output []byte) string {
	s := strings.TrimSpace(string(output))
	if len(s) > 300 {
		s = s[len(s)-300:]
	}
	return s
}
