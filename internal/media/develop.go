package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"rawgallery/internal/logging"
)

// DefaultDevelopCommand is the raw developer invoked by default.
const DefaultDevelopCommand = "darktable-cli"

// Developer renders thumbnails with an external raw developer. The command
// is called as
//
//	<Command> <raw> [<sidecar>] <output> --width <Size> --height <Size> [Args...]
//
// and must write a JPEG to <output>.
type Developer struct {
	Command string
	Args    []string
	Size    int
	IDs     IDGenerator
}

// NewDeveloper creates a developer for command with the default size.
func NewDeveloper(command string, extraArgs []string) *Developer {
	if command == "" {
		command = DefaultDevelopCommand
	}
	return &Developer{
		Command: command,
		Args:    extraArgs,
		Size:    DefaultSize,
		IDs:     UUIDGenerator{},
	}
}

// Strategy implements Deriver.
func (d *Developer) Strategy() string {
	return StrategyDevelop
}

// Derive implements Deriver. A non-zero exit, or a missing or empty output
// file, is a *DerivationError carrying the tool's output.
func (d *Developer) Derive(ctx context.Context, rawPath, sidecarPath, outDir string) (thumbPath string, err error) {
	start := time.Now()
	defer func() { observe(StrategyDevelop, start, err) }()

	outPath := thumbnailPath(d.IDs, outDir)
	args := d.arguments(rawPath, sidecarPath, outPath)

	logging.Debug("Developing %s: %s %v", rawPath, d.Command, args)

	cmd := exec.CommandContext(ctx, d.Command, args...)
	// Children of a killed developer may hold the output pipes open
	cmd.WaitDelay = 2 * time.Second

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	fail := func(err error) (string, error) {
		removePartial(outPath)
		return "", &DerivationError{
			Path:     rawPath,
			Strategy: StrategyDevelop,
			Err:      err,
			Output:   output.String(),
		}
	}

	if runErr := cmd.Run(); runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}
		return fail(fmt.Errorf("%s failed: %w", d.Command, runErr))
	}

	info, statErr := os.Stat(outPath)
	if statErr != nil || info.Size() == 0 {
		return fail(ErrNoOutput)
	}

	if logging.IsDebugEnabled() && output.Len() > 0 {
		logging.Debug("%s output for %s: %s", d.Command, rawPath, output.String())
	}
	return outPath, nil
}

func (d *Developer) arguments(rawPath, sidecarPath, outPath string) []string {
	size := d.Size
	if size <= 0 {
		size = DefaultSize
	}

	args := []string{rawPath}
	if sidecarPath != "" {
		args = append(args, sidecarPath)
	}
	args = append(args, outPath,
		"--width", strconv.Itoa(size),
		"--height", strconv.Itoa(size),
	)
	return append(args, d.Args...)
}

// removePartial deletes whatever a failed derivation left behind.
func removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Failed to remove partial thumbnail %s: %v", path, err)
	}
}
