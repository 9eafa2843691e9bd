//go:build !linux
// +build !linux

package main

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// NewPlayerctlPlayer is only available where MPRIS exists
func NewPlayerctlPlayer(cfg PlaybackConfig, interval time.Duration, log *zap.Logger) (MediaPlayer, error) {
	return nil, errors.New("playerctl backend is only supported on linux")
}
