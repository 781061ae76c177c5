package processing

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"musichelper/logger"
	"musichelper/model"
)

// ToolRunner abstracts the external Python analysis toolchain. The tool is a
// black box: a non-zero exit (or timeout) is the only failure signal.
type ToolRunner interface {
	// Separate runs source separation + initial chord extraction for an
	// uploaded file. The tool writes its artifacts under the processed
	// directory for the given upload id.
	Separate(ctx context.Context, inputPath string, uploadID int64) error
	// ExtractChords re-runs chord extraction against one stem inside an
	// already-processed directory, writing the timeline JSON to outputName
	// (relative to processedDir).
	ExtractChords(ctx context.Context, processedDir, stem, outputName string) error
}

// PythonAnalyzer invokes the analysis scripts through a Python interpreter.
type PythonAnalyzer struct {
	pythonPath       string
	processScript    string
	regenerateScript string
	processTimeout   time.Duration
	regenTimeout     time.Duration
}

// NewPythonAnalyzer creates a PythonAnalyzer.
func NewPythonAnalyzer(pythonPath, processScript, regenerateScript string, processTimeout, regenTimeout time.Duration) *PythonAnalyzer {
	return &PythonAnalyzer{
		pythonPath:       pythonPath,
		processScript:    processScript,
		regenerateScript: regenerateScript,
		processTimeout:   processTimeout,
		regenTimeout:     regenTimeout,
	}
}

// Separate runs the separation script: python3 process_audio.py <input> <uploadId>.
func (p *PythonAnalyzer) Separate(ctx context.Context, inputPath string, uploadID int64) error {
	ctx, cancel := context.WithTimeout(ctx, p.processTimeout)
	defer cancel()

	return p.run(ctx, p.processScript, inputPath, strconv.FormatInt(uploadID, 10))
}

// ExtractChords runs the regeneration script:
// python3 regenerate_chords.py <processedDir> <stem> <outputName>.
func (p *PythonAnalyzer) ExtractChords(ctx context.Context, processedDir, stem, outputName string) error {
	ctx, cancel := context.WithTimeout(ctx, p.regenTimeout)
	defer cancel()

	return p.run(ctx, p.regenerateScript, processedDir, stem, outputName)
}

func (p *PythonAnalyzer) run(ctx context.Context, script string, args ...string) error {
	cmdArgs := append([]string{script}, args...)
	cmd := exec.CommandContext(ctx, p.pythonPath, cmdArgs...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Info("Executing analysis tool",
		logger.String("script", script),
		logger.Any("args", args))

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s timed out", model.ErrToolFailure, script)
		}
		return fmt.Errorf("%w: %s: %v\nTool stderr: %s", model.ErrToolFailure, script, err, stderr.String())
	}
	return nil
}
