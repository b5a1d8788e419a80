// Package render drives the external chip-accurate renderer that
// replays a binary and logs its register writes, and defines the log
// codecs the verifier's inputs travel through. The renderer is an
// out-of-process blocking call under a caller-imposed deadline; a
// failed or timed-out run is an Error, and so is an empty log, which
// must never reach the verifier looking like a silent original.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"sidrip/internal/verify"
)

// Error reports a renderer invocation that produced no usable log.
type Error struct {
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("renderer %s: %s: %v", e.Path, e.Msg, e.Err)
	}
	return fmt.Sprintf("renderer %s: %s", e.Path, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Renderer invokes an external register-logging replayer. The command
// is expected to write a text register log (see WriteLog) to stdout.
type Renderer struct {
	// Path is the renderer executable.
	Path string
	// Seconds bounds the replay duration passed to the renderer.
	Seconds int
	// Song selects the subtune, 1-based; 0 means the file's default.
	Song int
}

// Run replays the file at sidPath and parses the produced log. The
// context deadline bounds the whole out-of-process call; on timeout
// the renderer is killed and the error wraps context.DeadlineExceeded.
func (r *Renderer) Run(ctx context.Context, sidPath string) ([]verify.Frame, error) {
	args := []string{"-t", strconv.Itoa(r.Seconds)}
	if r.Song > 0 {
		args = append(args, "-a", strconv.Itoa(r.Song-1))
	}
	args = append(args, sidPath)

	cmd := exec.CommandContext(ctx, r.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{Path: r.Path, Msg: "timed out", Err: ctxErr}
		}
		msg := "failed"
		if s := bytes.TrimSpace(stderr.Bytes()); len(s) > 0 {
			msg = fmt.Sprintf("failed: %s", s)
		}
		return nil, &Error{Path: r.Path, Msg: msg, Err: err}
	}

	frames, err := ReadLog(stdout.Bytes())
	if err != nil {
		return nil, &Error{Path: r.Path, Msg: "produced a malformed log", Err: err}
	}
	if len(frames) == 0 {
		// A zero-length log means the renderer went wrong, not that
		// the tune wrote nothing; scoring it would compare "empty
		// against empty" and report false perfection.
		return nil, &Error{Path: r.Path, Msg: "produced an empty log"}
	}
	return frames, nil
}

// IsTimeout reports whether err is a renderer deadline expiry.
func IsTimeout(err error) bool {
	var re *Error
	return errors.As(err, &re) && errors.Is(re.Err, context.DeadlineExceeded)
}
