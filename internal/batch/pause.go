package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ratings-cli/internal/config"
)

// Pauser blocks between chunks. done is the number of chunks finished.
type Pauser interface {
	Pause(ctx context.Context, done, total int) error
}

// NoPause returns immediately.
type NoPause struct{}

func (NoPause) Pause(context.Context, int, int) error { return nil }

// Delay sleeps for a fixed duration, or until ctx is done.
type Delay struct {
	D time.Duration
}

func (d Delay) Pause(ctx context.Context, done, total int) error {
	zap.L().Info("batch: pausing before next chunk",
		zap.Int("done", done),
		zap.Int("total", total),
		zap.Duration("delay", d.D),
	)
	t := time.NewTimer(d.D)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Prompt waits for the operator to press Enter, typically after changing
// egress. One reader serves every pause so buffered input is never lost. A
// read left pending by a cancelled pause is picked up by the next one.
// Prompt is not safe for concurrent use.
type Prompt struct {
	in      *bufio.Reader
	out     io.Writer
	pending chan error
}

// NewPrompt creates a prompt reading lines from in and writing to out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

func (p *Prompt) Pause(ctx context.Context, done, total int) error {
	fmt.Fprintf(p.out, "Chunk %d/%d written. Change VPN location if needed, then press Enter to continue...", done, total) //nolint:errcheck

	if p.pending == nil {
		line := make(chan error, 1)
		go func() {
			_, err := p.in.ReadString('\n')
			line <- err
		}()
		p.pending = line
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-p.pending:
		p.pending = nil
		if err != nil && err != io.EOF {
			return eris.Wrap(err, "batch: read prompt")
		}
		return nil
	}
}

// NewPauser picks the pauser for cfg. A prompt on a non-interactive stdin
// becomes the configured delay so the rate-limit gap is kept.
func NewPauser(cfg config.BatchConfig, in *os.File, out io.Writer) Pauser {
	switch cfg.Pause {
	case config.PauseNone:
		return NoPause{}
	case config.PauseDelay:
		return Delay{D: cfg.PauseDelay()}
	}
	if in == nil || !isTerminal(in.Fd()) {
		zap.L().Info("batch: stdin is not a terminal, pausing with a delay instead of a prompt",
			zap.Duration("delay", cfg.PauseDelay()),
		)
		return Delay{D: cfg.PauseDelay()}
	}
	return NewPrompt(in, out)
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
