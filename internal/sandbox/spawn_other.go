//go:build !linux

package sandbox

import (
	"context"
	"errors"
)

var ErrLaunch = errors.New("failed to launch process")

func (e *Engine) spawn(context.Context, spawnSpec) (rawResult, error) {
	return rawResult{}, errors.Join(ErrLaunch, errors.New("sandboxed execution requires linux"))
}
