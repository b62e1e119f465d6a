package enabled

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vanderheijden86/ghtree/pkg/model"
)

// FallbackPersister writes to both a primary (remote) and a local store and
// reads from the primary, falling back to the local copy when the primary is
// unreachable.
type FallbackPersister struct {
	Primary Persister
	Local   Persister
	Logger  *slog.Logger
}

func (f *FallbackPersister) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// SaveEnabled saves to the local store first, then the primary. It fails only
// if both fail.
func (f *FallbackPersister) SaveEnabled(ctx context.Context, records []model.EnabledRecord) error {
	var localErr error
	if f.Local != nil {
		if localErr = f.Local.SaveEnabled(ctx, records); localErr != nil {
			f.logger().Warn("save enabled state locally failed", "error", localErr)
		}
	}
	if f.Primary == nil {
		return localErr
	}
	primaryErr := f.Primary.SaveEnabled(ctx, records)
	if primaryErr == nil || (f.Local != nil && localErr == nil) {
		if primaryErr != nil {
			f.logger().Warn("save enabled state to config service failed, kept local copy", "error", primaryErr)
		}
		return nil
	}
	return errors.Join(primaryErr, localErr)
}

// LoadEnabled reads from the primary and refreshes the local copy. On
// primary failure the local copy is returned.
func (f *FallbackPersister) LoadEnabled(ctx context.Context) ([]model.EnabledRecord, error) {
	if f.Primary != nil {
		records, err := f.Primary.LoadEnabled(ctx)
		if err == nil {
			if f.Local != nil {
				if err := f.Local.SaveEnabled(ctx, records); err != nil {
					f.logger().Warn("refresh local enabled state failed", "error", err)
				}
			}
			return records, nil
		}
		if f.Local == nil {
			return nil, err
		}
		f.logger().Warn("config service unreachable, using local enabled state", "error", err)
	}
	if f.Local == nil {
		return nil, nil
	}
	return f.Local.LoadEnabled(ctx)
}
