// internal/composite/composite_test.go
package composite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/session"
	"github.com/xkilldash9x/jobfill/internal/config"
	"github.com/xkilldash9x/jobfill/internal/injector"
	"github.com/xkilldash9x/jobfill/internal/matcher"
)

// setupSplitter parses markup and returns a splitter over it.
func setupSplitter(t *testing.T, markup string) (*Splitter, *session.Session) {
	t.Helper()
	s, err := session.FromHTML(zaptest.NewLogger(t), markup)
	require.NoError(t, err)
	inj := injector.New(s, config.InjectorConfig{VerifyDelay: -1}, zaptest.NewLogger(t))
	return New(s, inj, zaptest.NewLogger(t)), s
}

// values maps field names to their current values.
func values(t *testing.T, s *session.Session) map[string]string {
	t.Helper()
	fields, err := s.Fields(context.Background())
	require.NoError(t, err)
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Name] = f.CurrentValue
	}
	return out
}

func keyOf(t *testing.T, s *session.Session, name string) string {
	t.Helper()
	fields, err := s.Fields(context.Background())
	require.NoError(t, err)
	for _, f := range fields {
		if f.Name == name {
			return f.Key
		}
	}
	t.Fatalf("no field named %q", name)
	return ""
}

// -- Test Cases: FormatDate --

func TestFormatDate(t *testing.T) {
	tests := []struct {
		name  string
		date  schemas.DateValue
		style schemas.DateStyle
		want  string
	}{
		{"hyphen", schemas.NewDate(2024, 3, 5), schemas.DateStyleHyphen, "2024-03-05"},
		{"default style is hyphen", schemas.NewDate(2024, 3, 5), "", "2024-03-05"},
		{"none", schemas.NewDate(2024, 3, 5), schemas.DateStyleNone, "20240305"},
		{"dot", schemas.NewDate(2024, 11, 25), schemas.DateStyleDot, "2024.11.25"},
		{"year only", schemas.NewDate(2024, 0, 0), schemas.DateStyleHyphen, "2024"},
		{"year and month", schemas.NewDate(2024, 3, 0), schemas.DateStyleDot, "2024.03"},
		{"day without month falls back to the year", schemas.NewDate(2024, 0, 5), schemas.DateStyleHyphen, "2024"},
		{"legacy passes through", schemas.LegacyDate("2024/3/5"), schemas.DateStyleDot, "2024/3/5"},
		{"empty", schemas.DateValue{}, schemas.DateStyleHyphen, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDate(tt.date, tt.style))
		})
	}
}

// -- Test Cases: Phone --

func TestSplitPhone(t *testing.T) {
	assert.Equal(t, []string{"010", "1234", "5678"}, SplitPhone("010-1234-5678"))
	assert.Equal(t, []string{"02", "123", "4567"}, SplitPhone("02-123-4567"))
	assert.Equal(t, []string{"010", "1234", "5678"}, SplitPhone("01012345678"))
	assert.Equal(t, []string{"02", "1234", "5678"}, SplitPhone("0212345678"))
	assert.Equal(t, []string{"12345"}, SplitPhone("(12) 345"))
}

func TestPhone(t *testing.T) {
	ctx := context.Background()

	t.Run("three ordered boxes", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form>
			<input name="phone2"><input name="phone1" placeholder="휴대폰"><input name="phone3">
		</form>`)
		used := matcher.NewUsedSet()
		res, err := sp.Phone(ctx, "010-1234-5678", nil, used)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Filled)

		v := values(t, s)
		assert.Equal(t, "010", v["phone1"])
		assert.Equal(t, "1234", v["phone2"])
		assert.Equal(t, "5678", v["phone3"])
		assert.Equal(t, 3, used.Len())
	})

	t.Run("single field keeps the stored number", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form><input name="mobile" placeholder="연락처"></form>`)
		res, err := sp.Phone(ctx, "0212345678", nil, matcher.NewUsedSet())
		require.NoError(t, err)
		assert.Equal(t, 1, res.Filled)
		assert.Equal(t, "0212345678", values(t, s)["mobile"])
	})

	t.Run("used fields are skipped", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form><input name="phone"></form>`)
		used := matcher.NewUsedSet()
		used.Claim(keyOf(t, s, "phone"))
		res, err := sp.Phone(ctx, "010-1234-5678", nil, used)
		require.NoError(t, err)
		assert.Zero(t, res.Filled)
	})

	t.Run("empty number writes nothing", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form><input name="phone"></form>`)
		res, err := sp.Phone(ctx, "", nil, nil)
		require.NoError(t, err)
		assert.Zero(t, res.Filled)
		assert.Empty(t, s.Events())
	})
}

// -- Test Cases: Email --

func TestEmail(t *testing.T) {
	ctx := context.Background()
	structured := schemas.NewEmail("jdoe", "example.com")

	t.Run("id and domain fields", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form><input name="email_id"> @ <input name="email_domain"></form>`)
		res, err := sp.Email(ctx, structured, nil, matcher.NewUsedSet(), false)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Filled)
		v := values(t, s)
		assert.Equal(t, "jdoe", v["email_id"])
		assert.Equal(t, "example.com", v["email_domain"])
	})

	t.Run("direct input domain beats the dropdown", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form>
			<input name="email_id">
			<select name="email_domain"><option value="">선택</option><option value="naver.com">naver.com</option></select>
			<input name="email_domain_direct">
		</form>`)
		_, err := sp.Email(ctx, schemas.LegacyEmail("jdoe@example.com"), nil, matcher.NewUsedSet(), false)
		require.NoError(t, err)
		v := values(t, s)
		assert.Equal(t, "jdoe", v["email_id"])
		assert.Equal(t, "example.com", v["email_domain_direct"])
		assert.Empty(t, v["email_domain"])
	})

	t.Run("single field gets the full address", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form><input name="email"></form>`)
		res, err := sp.Email(ctx, structured, nil, matcher.NewUsedSet(), false)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Filled)
		assert.Equal(t, "jdoe@example.com", values(t, s)["email"])
	})

	t.Run("confirm field gets the full address", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form><input name="email"><input name="email_confirm"></form>`)
		used := matcher.NewUsedSet()
		res, err := sp.Email(ctx, structured, nil, used, true)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Filled)
		v := values(t, s)
		assert.Equal(t, "jdoe@example.com", v["email"])
		assert.Equal(t, "jdoe@example.com", v["email_confirm"])
		assert.Equal(t, 2, used.Len())
	})

	t.Run("empty address writes nothing", func(t *testing.T) {
		sp, _ := setupSplitter(t, `<form><input name="email"></form>`)
		res, err := sp.Email(ctx, schemas.EmailValue{}, nil, nil, true)
		require.NoError(t, err)
		assert.Zero(t, res.Filled)
	})
}

// -- Test Cases: Date --

func TestDate(t *testing.T) {
	ctx := context.Background()
	birth := schemas.NewDate(1995, 3, 5)

	t.Run("component fields", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form>
			<select name="birth_year"><option value="">년</option><option value="1994">1994</option><option value="1995">1995</option></select>
			<select name="birth_month"><option value="">월</option><option value="1">1월</option><option value="3">3월</option></select>
			<input name="birth_day">
		</form>`)
		res, err := sp.Date(ctx, birth, nil, schemas.DateStyleHyphen, matcher.NewUsedSet())
		require.NoError(t, err)
		assert.Equal(t, 3, res.Filled)
		for _, rec := range res.Records {
			assert.True(t, rec.Success, rec.Reason)
		}
		v := values(t, s)
		assert.Equal(t, "1995", v["birth_year"])
		assert.Equal(t, "3", v["birth_month"])
		assert.Equal(t, "05", v["birth_day"])
	})

	t.Run("single field gets the formatted date", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form><input name="birthdate" placeholder="생년월일"></form>`)
		res, err := sp.Date(ctx, birth, nil, schemas.DateStyleDot, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Filled)
		assert.Equal(t, "1995.03.05", values(t, s)["birthdate"])
	})

	t.Run("legacy string is parsed for components", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form><input name="birth_yyyy"><input name="birth_mm"><input name="birth_dd"></form>`)
		res, err := sp.Date(ctx, schemas.LegacyDate("19950305"), nil, schemas.DateStyleHyphen, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Filled)
		v := values(t, s)
		assert.Equal(t, "1995", v["birth_yyyy"])
		assert.Equal(t, "03", v["birth_mm"])
		assert.Equal(t, "05", v["birth_dd"])
	})

	t.Run("legacy string into one field is unchanged", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form><input name="birth"></form>`)
		_, err := sp.Date(ctx, schemas.LegacyDate("1995.3.5"), nil, schemas.DateStyleHyphen, nil)
		require.NoError(t, err)
		assert.Equal(t, "1995.3.5", values(t, s)["birth"])
	})

	t.Run("unparseable date writes nothing", func(t *testing.T) {
		sp, s := setupSplitter(t, `<form><input name="birth"></form>`)
		res, err := sp.Date(ctx, schemas.LegacyDate("언젠가"), nil, schemas.DateStyleHyphen, nil)
		require.NoError(t, err)
		assert.Zero(t, res.Filled)
		assert.Empty(t, values(t, s)["birth"])
	})
}
