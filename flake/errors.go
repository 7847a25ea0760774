package flake

import "errors"

var (
	ErrNoMachineID         = errors.New("flake: cannot determine machine id")
	ErrMachineIDOutOfRange = errors.New("flake: machine id out of range")
	ErrClockRegression     = errors.New("flake: clock moved backwards")
	ErrTimestampOverflow   = errors.New("flake: elapsed ticks overflow timestamp bits")
)
