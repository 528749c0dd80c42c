package publish

import (
	"context"
	"fmt"

	masterminds "github.com/Masterminds/semver/v3"
	"github.com/morezero/dbi/pkg/store"
)

const versionLogPrefix = "publish:version"

// VersionKey is the store key holding the last published version of a scope.
func VersionKey(opts Options) string {
	if opts.GuildID != "" {
		return fmt.Sprintf("publish:version:%s:%s", opts.Scope, opts.GuildID)
	}
	return fmt.Sprintf("publish:version:%s", opts.Scope)
}

// NewerThanPublished reports whether version is newer than the one recorded
// for opts. An empty record always allows publishing.
func NewerThanPublished(ctx context.Context, s store.Store, opts Options, version string) (bool, string, error) {
	next, err := masterminds.NewVersion(version)
	if err != nil {
		return false, "", fmt.Errorf("%s - invalid version %q: %w", versionLogPrefix, version, err)
	}

	var last string
	ok, err := store.GetJSON(ctx, s, VersionKey(opts), &last)
	if err != nil {
		return false, "", err
	}
	if !ok || last == "" {
		return true, "", nil
	}

	prev, err := masterminds.NewVersion(last)
	if err != nil {
		// An unreadable record never blocks a publish.
		return true, last, nil
	}
	return next.GreaterThan(prev), last, nil
}

// RecordVersion stores version as the last published one for opts.
func RecordVersion(ctx context.Context, s store.Store, opts Options, version string) error {
	return store.SetJSON(ctx, s, VersionKey(opts), version)
}
