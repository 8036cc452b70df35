package repair

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// NCO runs the NetCDF Operators (ncap2, ncatted) as external processes.
type NCO struct {
	ncap2   []string
	ncatted []string
	timeout time.Duration
	log     zerolog.Logger
}

// NewNCO builds an NCO toolchain. The command strings may carry a prefix,
// e.g. "docker run --rm -v /data:/data nco ncap2", and are split with
// shell quoting rules. timeout bounds every single invocation.
func NewNCO(ncap2, ncatted string, timeout time.Duration, log zerolog.Logger) (*NCO, error) {
	a, err := splitCommand(ncap2)
	if err != nil {
		return nil, errors.Wrap(err, "ncap2 command")
	}
	b, err := splitCommand(ncatted)
	if err != nil {
		return nil, errors.Wrap(err, "ncatted command")
	}
	return &NCO{ncap2: a, ncatted: b, timeout: timeout, log: log}, nil
}

func splitCommand(s string) ([]string, error) {
	args, err := shellquote.Split(s)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}

// AddVariable runs `ncap2 -O -s name=expr in out`.
func (n *NCO) AddVariable(ctx context.Context, in, out, name, expr string) error {
	return n.run(ctx, "ncap2", n.ncap2, ncap2Args(in, out, name, expr))
}

// SetAttributes runs `ncatted -O -a ... -a ... in out`.
func (n *NCO) SetAttributes(ctx context.Context, in, out string, edits []AttrEdit) error {
	if len(edits) == 0 {
		return errors.New("ncatted: no attribute edits")
	}
	return n.run(ctx, "ncatted", n.ncatted, ncattedArgs(in, out, edits))
}

func ncap2Args(in, out, name, expr string) []string {
	return []string{"-O", "-s", name + "=" + expr, in, out}
}

func ncattedArgs(in, out string, edits []AttrEdit) []string {
	args := make([]string, 0, 2*len(edits)+3)
	args = append(args, "-O")
	for _, e := range edits {
		args = append(args, "-a", e.spec())
	}
	return append(args, in, out)
}

func (n *NCO) run(ctx context.Context, op string, command, args []string) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	argv := append(append([]string{}, command[1:]...), args...)
	cmd := exec.CommandContext(ctx, command[0], argv...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	n.log.Debug().
		Str("op", op).
		Strs("args", argv).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("toolchain invocation")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.CombineErrors(ctxErr, err)
		}
		return &Error{Op: op, Stderr: stderr.String(), Err: err}
	}
	return nil
}
