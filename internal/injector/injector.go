// internal/injector/injector.go
package injector

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/dom"
	"github.com/xkilldash9x/jobfill/internal/config"
)

const (
	BorderSuccess = "2px solid #27ae60"
	BorderFailure = "2px solid #e74c3c"

	// DirectInput is the "type it yourself" option many selects carry.
	DirectInput = "직접입력"

	errorLabel     = "오류"
	displayLimit   = 30
	defaultVerify  = 100 * time.Millisecond
	checkedState   = "checked"
	uncheckedState = "unchecked"
)

// Injector writes values into fields so that page scripts observe them as
// user input, then reads them back to verify.
type Injector struct {
	adapter dom.Adapter
	cfg     config.InjectorConfig
	logger  *zap.Logger
}

// New returns an injector for adapter. A negative verify delay disables the
// wait before read-back.
func New(adapter dom.Adapter, cfg config.InjectorConfig, logger *zap.Logger) *Injector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Injector{adapter: adapter, cfg: cfg, logger: logger.Named("injector")}
}

// Fill writes value into field. An empty value is a no-op and yields no
// record (ok is false). Every other outcome, including adapter failures, is
// reported through the record rather than an error.
func (i *Injector) Fill(ctx context.Context, field schemas.FieldDescriptor, value string) (rec schemas.FilledFieldRecord, ok bool) {
	if value == "" {
		return schemas.FilledFieldRecord{}, false
	}
	rec, err := i.fill(ctx, field, value)
	if err != nil {
		i.logger.Warn("Field write failed.", zap.String("key", field.Key), zap.Error(err))
		return schemas.FilledFieldRecord{
			Key:          field.Key,
			Label:        errorLabel,
			DisplayValue: value,
			Success:      false,
			Reason:       err.Error(),
		}, true
	}
	return rec, true
}

// write sets the value and fires the event sequence. A lifted readonly flag
// is put back even when a step fails.
func (i *Injector) write(ctx context.Context, field schemas.FieldDescriptor, value string) (err error) {
	key := field.Key
	if field.ReadOnly {
		if err := i.adapter.SetReadOnly(ctx, key, false); err != nil {
			return err
		}
		defer func() {
			if rerr := i.adapter.SetReadOnly(ctx, key, true); rerr != nil && err == nil {
				err = rerr
			}
		}()
	}

	switch {
	case field.IsSelect():
		opts, err := i.adapter.Options(ctx, key)
		if err != nil {
			return err
		}
		if opt, found := chooseOption(opts, value); found {
			if err := i.adapter.SetValue(ctx, key, opt.Value); err != nil {
				return err
			}
		} else {
			i.logger.Debug("No option matched.", zap.String("key", key), zap.String("value", value))
		}
	case field.IsToggle():
		if field.ToggleValue == value || strings.Contains(field.ToggleValue, value) {
			if err := i.adapter.SetChecked(ctx, key, true); err != nil {
				return err
			}
		}
	default:
		if err := i.adapter.SetValue(ctx, key, value); err != nil {
			return err
		}
	}
	return i.adapter.Dispatch(ctx, key, dom.WriteEvents(value)...)
}

func (i *Injector) fill(ctx context.Context, field schemas.FieldDescriptor, value string) (schemas.FilledFieldRecord, error) {
	key := field.Key
	label := dom.DisplayLabel(field)

	if err := i.write(ctx, field, value); err != nil {
		return schemas.FilledFieldRecord{}, err
	}

	if err := i.settle(ctx); err != nil {
		return schemas.FilledFieldRecord{}, err
	}

	after, err := i.adapter.Field(ctx, key)
	if err != nil {
		return schemas.FilledFieldRecord{}, err
	}
	var (
		success bool
		actual  string
	)
	if after.IsToggle() {
		success = after.Checked
		actual = uncheckedState
		if success {
			actual = checkedState
		}
	} else {
		actual = after.CurrentValue
		success = actual == value
	}

	if err := i.highlight(ctx, key, success); err != nil {
		i.logger.Debug("Could not highlight field.", zap.String("key", key), zap.Error(err))
	}

	rec := schemas.FilledFieldRecord{
		Key:          key,
		Label:        label,
		DisplayValue: Truncate(value),
		Success:      success,
	}
	if !success {
		rec.Reason = fmt.Sprintf("Expected: %s, Got: %s", value, actual)
		i.logger.Info("Field did not take the value.", zap.String("key", key), zap.String("label", label), zap.String("reason", rec.Reason))
	}
	return rec, nil
}

// chooseOption picks an option by value, trimmed text, then contained text,
// falling back to a direct-input or empty option.
func chooseOption(opts []dom.Option, value string) (dom.Option, bool) {
	for _, o := range opts {
		if o.Value == value || strings.TrimSpace(o.Text) == value || strings.Contains(o.Text, value) {
			return o, true
		}
	}
	for _, o := range opts {
		if o.Value == DirectInput || strings.Contains(o.Text, DirectInput) || o.Value == "" {
			return o, true
		}
	}
	return dom.Option{}, false
}

func (i *Injector) settle(ctx context.Context) error {
	d := i.cfg.VerifyDelay
	if d < 0 {
		return ctx.Err()
	}
	if d == 0 {
		d = defaultVerify
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (i *Injector) highlight(ctx context.Context, key string, success bool) error {
	if !i.cfg.Highlight {
		return nil
	}
	border := BorderFailure
	if success {
		border = BorderSuccess
	}
	return i.adapter.SetStyle(ctx, key, "border", border)
}

// ClearHighlights removes the border left on every field by a previous run.
func (i *Injector) ClearHighlights(ctx context.Context) error {
	fields, err := i.adapter.Fields(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate fields: %w", err)
	}
	for _, f := range fields {
		if err := i.adapter.SetStyle(ctx, f.Key, "border", ""); err != nil {
			return fmt.Errorf("failed to clear border on %s: %w", f.Key, err)
		}
	}
	return nil
}

// Truncate shortens a value for display.
func Truncate(value string) string {
	if utf8.RuneCountInString(value) <= displayLimit {
		return value
	}
	return string([]rune(value)[:displayLimit]) + "..."
}
