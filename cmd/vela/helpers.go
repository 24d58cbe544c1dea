package main

import (
	"os"
	"time"

	"go.uber.org/zap/zapcore"
)

func zapNewAtomicDebugLevel() zapcore.Level {
	return zapcore.DebugLevel
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// loadRequires reads each --require module's source, in configured order,
// for the Isolator to evaluate ahead of every test file (spec §6).
func loadRequires(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, string(content))
	}
	return out, nil
}
