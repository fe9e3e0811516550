// internal/injector/injector_test.go
package injector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/dom"
	"github.com/xkilldash9x/jobfill/internal/browser/session"
	"github.com/xkilldash9x/jobfill/internal/config"
)

const formPage = `<html><body><form>
	<div><label for="name">이름</label><input id="name" name="name"></div>
	<div><input id="addr" name="addr" readonly placeholder="주소"></div>
	<select id="degree"><option value="">선택</option><option value="ba">학사</option></select>
	<select id="school"><option value="seoul">서울대</option><option value="direct">직접입력</option></select>
	<input type="checkbox" id="agree" value="yes">
	<input type="file" id="photo" accept="image/*">
	<input type="file" id="resume" accept=".pdf">
	<input type="file" id="any">
</form></body></html>`

// tinyPNG is a 1x1 transparent PNG.
const tinyPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// setupInjector parses the fixture and returns an injector over it.
func setupInjector(t *testing.T) (*Injector, *session.Session) {
	t.Helper()
	s, err := session.FromHTML(zaptest.NewLogger(t), formPage)
	require.NoError(t, err)
	cfg := config.InjectorConfig{VerifyDelay: -1, Highlight: true}
	return New(s, cfg, zaptest.NewLogger(t)), s
}

func field(t *testing.T, s *session.Session, id string) schemas.FieldDescriptor {
	t.Helper()
	fields, err := s.Fields(context.Background())
	require.NoError(t, err)
	for _, f := range fields {
		if f.ID == id {
			return f
		}
	}
	t.Fatalf("no field with id %q", id)
	return schemas.FieldDescriptor{}
}

func border(t *testing.T, s *session.Session, key string) string {
	t.Helper()
	var out string
	require.NoError(t, s.Exclusive(func(doc *html.Node, _ dom.EventRecorder) error {
		out = dom.StyleProperty(dom.ByKey(doc, key), "border")
		return nil
	}))
	return out
}

// -- Test Cases: Text inputs --

func TestFillText(t *testing.T) {
	ctx := context.Background()
	inj, s := setupInjector(t)
	f := field(t, s, "name")

	rec, ok := inj.Fill(ctx, f, "홍길동")
	require.True(t, ok)
	assert.Equal(t, schemas.FilledFieldRecord{Key: f.Key, Label: "이름", DisplayValue: "홍길동", Success: true}, rec)
	assert.Equal(t, "홍길동", field(t, s, "name").CurrentValue)
	assert.Equal(t, BorderSuccess, border(t, s, f.Key))

	// The offline page has no jQuery, so its two events are skipped.
	events := s.EventsFor(f.Key)
	require.Len(t, events, 6)
	assert.Equal(t, "input", events[0].Type)
	assert.Equal(t, dom.EventInput, events[3].Kind)
	assert.Equal(t, "홍길동", events[3].Data)
	assert.Equal(t, "keyup", events[5].Type)
}

func TestFillEmptyValueIsNoop(t *testing.T) {
	inj, s := setupInjector(t)
	f := field(t, s, "name")

	_, ok := inj.Fill(context.Background(), f, "")
	assert.False(t, ok)
	assert.Empty(t, s.EventsFor(f.Key))
	assert.Empty(t, field(t, s, "name").CurrentValue)
}

func TestFillReadOnlyIsRestored(t *testing.T) {
	inj, s := setupInjector(t)
	f := field(t, s, "addr")
	require.True(t, f.ReadOnly)

	rec, ok := inj.Fill(context.Background(), f, "서울시 강남구")
	require.True(t, ok)
	assert.True(t, rec.Success)
	assert.Equal(t, "주소", rec.Label)

	after := field(t, s, "addr")
	assert.Equal(t, "서울시 강남구", after.CurrentValue)
	assert.True(t, after.ReadOnly)
}

// failingDispatch passes everything through except the event dispatch.
type failingDispatch struct {
	dom.Adapter
}

func (failingDispatch) Dispatch(context.Context, string, ...dom.Event) error {
	return errors.New("page detached")
}

func TestFillReadOnlyIsRestoredOnFailure(t *testing.T) {
	s, err := session.FromHTML(zaptest.NewLogger(t), formPage)
	require.NoError(t, err)
	inj := New(failingDispatch{s}, config.InjectorConfig{VerifyDelay: -1}, zaptest.NewLogger(t))

	rec, ok := inj.Fill(context.Background(), field(t, s, "addr"), "서울시 강남구")
	require.True(t, ok)
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Reason, "page detached")
	assert.True(t, field(t, s, "addr").ReadOnly, "readonly comes back after a failed write")
}

func TestFillTruncatesDisplayValue(t *testing.T) {
	inj, s := setupInjector(t)
	long := strings.Repeat("가", 40)
	rec, ok := inj.Fill(context.Background(), field(t, s, "name"), long)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("가", 30)+"...", rec.DisplayValue)
	assert.True(t, rec.Success)
}

// -- Test Cases: Selects and toggles --

func TestFillSelect(t *testing.T) {
	ctx := context.Background()

	t.Run("by value", func(t *testing.T) {
		inj, s := setupInjector(t)
		rec, _ := inj.Fill(ctx, field(t, s, "degree"), "ba")
		assert.True(t, rec.Success)
		assert.Equal(t, "ba", field(t, s, "degree").CurrentValue)
	})

	t.Run("by text verifies the literal value", func(t *testing.T) {
		inj, s := setupInjector(t)
		f := field(t, s, "degree")
		rec, _ := inj.Fill(ctx, f, "학사")
		assert.Equal(t, "ba", field(t, s, "degree").CurrentValue)
		assert.False(t, rec.Success)
		assert.Equal(t, "Expected: 학사, Got: ba", rec.Reason)
		assert.Equal(t, BorderFailure, border(t, s, f.Key))
	})

	t.Run("falls back to direct input", func(t *testing.T) {
		inj, s := setupInjector(t)
		rec, _ := inj.Fill(ctx, field(t, s, "school"), "카이스트")
		assert.Equal(t, "direct", field(t, s, "school").CurrentValue)
		assert.False(t, rec.Success)
	})
}

func TestFillCheckbox(t *testing.T) {
	ctx := context.Background()

	t.Run("matching value checks", func(t *testing.T) {
		inj, s := setupInjector(t)
		rec, _ := inj.Fill(ctx, field(t, s, "agree"), "yes")
		assert.True(t, rec.Success)
		assert.True(t, field(t, s, "agree").Checked)
	})

	t.Run("other value leaves it unchecked", func(t *testing.T) {
		inj, s := setupInjector(t)
		rec, _ := inj.Fill(ctx, field(t, s, "agree"), "no")
		assert.False(t, rec.Success)
		assert.Equal(t, "Expected: no, Got: unchecked", rec.Reason)
	})
}

// -- Test Cases: Failures and housekeeping --

func TestFillAdapterError(t *testing.T) {
	inj, _ := setupInjector(t)
	rec, ok := inj.Fill(context.Background(), schemas.FieldDescriptor{Key: "f99", Tag: "input"}, "값")
	require.True(t, ok)
	assert.Equal(t, "오류", rec.Label)
	assert.Equal(t, "값", rec.DisplayValue)
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Reason, dom.ErrNotFound.Error())
}

func TestFillHonoursContext(t *testing.T) {
	s, err := session.FromHTML(zaptest.NewLogger(t), formPage)
	require.NoError(t, err)
	inj := New(s, config.InjectorConfig{VerifyDelay: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	rec, ok := inj.Fill(ctx, field(t, s, "name"), "홍길동")
	require.True(t, ok)
	assert.False(t, rec.Success)
	assert.Equal(t, "오류", rec.Label)
}

func TestClearHighlights(t *testing.T) {
	ctx := context.Background()
	inj, s := setupInjector(t)
	f := field(t, s, "name")
	_, _ = inj.Fill(ctx, f, "홍길동")
	require.NotEmpty(t, border(t, s, f.Key))

	require.NoError(t, inj.ClearHighlights(ctx))
	assert.Empty(t, border(t, s, f.Key))
}

// -- Test Cases: Photo --

func TestAttachPhoto(t *testing.T) {
	inj, s := setupInjector(t)
	n, err := inj.AttachPhoto(context.Background(), tinyPNG)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	photo, ok := s.File(field(t, s, "photo").Key)
	require.True(t, ok)
	assert.Equal(t, PhotoName, photo.Name)
	assert.Equal(t, "image/png", photo.MIME)
	assert.NotEmpty(t, photo.Data)

	_, ok = s.File(field(t, s, "resume").Key)
	assert.False(t, ok)
	_, ok = s.File(field(t, s, "any").Key)
	assert.True(t, ok)

	assert.Equal(t, dom.FileEvents(), s.EventsFor(field(t, s, "photo").Key))
}

func TestDecodeDataURL(t *testing.T) {
	_, _, err := DecodeDataURL("data:text/plain;base64,aGk=")
	assert.ErrorIs(t, err, ErrNotImage)

	_, _, err = DecodeDataURL("data:image/png;base64")
	assert.ErrorIs(t, err, ErrNotImage)

	_, _, err = DecodeDataURL("data:image/png;base64,***")
	assert.Error(t, err)

	mime, data, err := DecodeDataURL("data:image/jpeg;base64,aGk=")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, []byte("hi"), data)
}
