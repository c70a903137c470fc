package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugModeKey struct{}

// debugKeyLength is the length of generated debug keys.
const debugKeyLength = 6

// EnableDebugMode marks `ctx` so that the work done under it logs its progress. `key` tags those
// entries; an empty key is replaced by a random one.
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = utils.RandomAlphaString(debugKeyLength)
	}
	return context.WithValue(ctx, debugModeKey{}, key)
}

// DebugKey returns the key debug mode was enabled with, and false when it is not enabled.
func DebugKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(debugModeKey{}).(string)
	return key, ok && key != ""
}

// IsDebugMode is true when `ctx` was marked with EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	_, ok := DebugKey(ctx)
	return ok
}
