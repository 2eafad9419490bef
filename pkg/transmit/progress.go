// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transmit

import "time"

// Stage identifies a step of the transfer sequence
type Stage int

// Transfer stages, in order
const (
	StageAcquire Stage = iota
	StageHeader
	StageSettle
	StagePayload
	StageRelease
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageAcquire:
		return "acquire"
	case StageHeader:
		return "header"
	case StageSettle:
		return "settle"
	case StagePayload:
		return "payload"
	case StageRelease:
		return "release"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Progress is passed to the progress callback on every stage change and
// after every payload chunk.
type Progress struct {
	Stage        Stage
	BytesWritten uint64 // payload bytes written so far
	TotalBytes   uint64 // payload length
	ElapsedTime  time.Duration
}

// Percentage returns payload completion from 0 to 100
func (p Progress) Percentage() float64 {
	if p.TotalBytes == 0 {
		if p.Stage >= StageRelease {
			return 100
		}
		return 0
	}
	return float64(p.BytesWritten) / float64(p.TotalBytes) * 100
}

// ProgressCallback receives transfer progress. It runs on the transfer
// goroutine and should return quickly.
type ProgressCallback func(Progress)
