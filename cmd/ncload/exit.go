package main

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/MarlonSantos/geonode-cloud/internal/exitcode"
	"github.com/MarlonSantos/geonode-cloud/internal/handler"
	"github.com/MarlonSantos/geonode-cloud/internal/ingest"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// exitCode maps the outcome of a dispatch to a process exit code.
func exitCode(exec *model.PipelineExecution, err error) int {
	if err == nil {
		if exec != nil && exec.State == model.StateRollbackFailed {
			return exitcode.RollbackFailed
		}
		return exitcode.Success
	}

	var se *setupError
	if errors.As(err, &se) {
		return se.code
	}
	var ve *handler.ValidationError
	if errors.As(err, &ve) || errors.Is(err, handler.ErrNoHandler) || errors.Is(err, ingest.ErrUploadTooLarge) {
		return exitcode.ValidationError
	}

	var pe *ingest.PipelineError
	if errors.As(err, &pe) {
		switch {
		case pe.RollbackErr != nil:
			return exitcode.RollbackFailed
		case errors.Is(pe.Err, context.Canceled):
			return exitcode.Cancelled
		}
		return exitcode.ForStage(pe.Stage)
	}
	return exitcode.ImportError
}

// fail logs err with its hints and exits with code.
func fail(log zerolog.Logger, code int, err error, msg string) {
	ev := log.Error().Err(err).Int("exit_code", code)
	if hint := errors.FlattenHints(err); hint != "" {
		ev = ev.Str("hint", hint)
	}
	ev.Msg(msg)
	os.Exit(code)
}
