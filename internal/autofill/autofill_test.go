// internal/autofill/autofill_test.go
package autofill

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/browser/dom"
	"github.com/xkilldash9x/jobfill/internal/browser/session"
	"github.com/xkilldash9x/jobfill/internal/config"
	"github.com/xkilldash9x/jobfill/internal/matcher"
)

// recordingNotifier keeps every notification it receives.
type recordingNotifier struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) last(t *testing.T) Notification {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.got)
	return r.got[len(r.got)-1]
}

// panickingAdapter blows up when a write reaches one element.
type panickingAdapter struct {
	*session.Session
	key string
}

func (p *panickingAdapter) SetValue(ctx context.Context, key, v string) error {
	if key == p.key {
		panic("boom")
	}
	return p.Session.SetValue(ctx, key, v)
}

// failingAdapter cannot enumerate fields.
type failingAdapter struct {
	*session.Session
}

func (failingAdapter) Fields(context.Context) ([]schemas.FieldDescriptor, error) {
	return nil, errors.New("page went away")
}

// fakeSource serves a profile from memory.
type fakeSource struct {
	mu      sync.Mutex
	profile *schemas.Profile
	err     error
	changes chan struct{}
}

func (f *fakeSource) Load(context.Context) (*schemas.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, f.err
}

func (f *fakeSource) Watch(context.Context) (<-chan struct{}, error) {
	return f.changes, nil
}

func (f *fakeSource) set(p *schemas.Profile) {
	f.mu.Lock()
	f.profile = p
	f.mu.Unlock()
}

func setupOrchestrator(t *testing.T, adapter dom.Adapter) (*Orchestrator, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	o, err := New(adapter, matcher.NewWeighted(0), config.InjectorConfig{VerifyDelay: -1, Highlight: true}, n, zaptest.NewLogger(t))
	require.NoError(t, err)
	return o, n
}

func parsePage(t *testing.T, markup string) *session.Session {
	t.Helper()
	s, err := session.FromHTML(zaptest.NewLogger(t), markup)
	require.NoError(t, err)
	return s
}

// valuesByID maps element ids to their current values.
func valuesByID(t *testing.T, s *session.Session) map[string]string {
	t.Helper()
	fields, err := s.Fields(context.Background())
	require.NoError(t, err)
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.ID] = f.CurrentValue
	}
	return out
}

func keyByID(t *testing.T, s *session.Session, id string) string {
	t.Helper()
	fields, err := s.Fields(context.Background())
	require.NoError(t, err)
	for _, f := range fields {
		if f.ID == id {
			return f.Key
		}
	}
	t.Fatalf("no field with id %q", id)
	return ""
}

// -- Test Cases: Orchestrator --

func TestNewRejectsNilDependencies(t *testing.T) {
	_, err := New(nil, matcher.NewWeighted(0), config.InjectorConfig{}, &recordingNotifier{}, zap.NewNop())
	assert.Error(t, err)
	_, err = New(parsePage(t, "<form></form>"), nil, config.InjectorConfig{}, &recordingNotifier{}, zap.NewNop())
	assert.Error(t, err)
}

func TestRunSingleName(t *testing.T) {
	s := parsePage(t, `<form><label for="applicant">이름</label><input id="applicant"></form>`)
	o, n := setupOrchestrator(t, s)

	summary, err := o.Run(context.Background(), &schemas.Profile{
		PersonalInfo: &schemas.PersonalInfo{Name: "홍길동"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Filled)
	assert.Zero(t, summary.SectionErrors)
	assert.Equal(t, schemas.RunDone, summary.State)
	assert.Equal(t, "1개 필드가 자동완성되었습니다!", summary.Message)
	assert.Equal(t, "홍길동", valuesByID(t, s)["applicant"])

	got := n.last(t)
	assert.Equal(t, schemas.NotifySuccess, got.Kind)
	require.Len(t, got.Records, 1)
	assert.True(t, got.Records[0].Success)
	assert.Equal(t, "이름", got.Records[0].Label)
}

func TestRunWithoutProfile(t *testing.T) {
	s := parsePage(t, `<form><label for="applicant">이름</label><input id="applicant"></form>`)
	o, n := setupOrchestrator(t, s)

	summary, err := o.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoProfile)
	assert.Equal(t, schemas.RunIdle, summary.State)
	assert.Empty(t, s.Events())

	got := n.last(t)
	assert.Equal(t, schemas.NotifyError, got.Kind)
	assert.Equal(t, MsgNoProfile, got.Message)
}

func TestRunSkipsEmptyValues(t *testing.T) {
	s := parsePage(t, `<form><label for="applicant">이름</label><input id="applicant"></form>`)
	o, n := setupOrchestrator(t, s)

	summary, err := o.Run(context.Background(), &schemas.Profile{
		PersonalInfo: &schemas.PersonalInfo{Gender: ""},
		Careers:      []schemas.Career{{}},
	})
	require.NoError(t, err)
	assert.Zero(t, summary.Filled)
	assert.Empty(t, s.Events())
	assert.Empty(t, n.last(t).Records)
}

func TestRunSectionIsolation(t *testing.T) {
	s := parsePage(t, `<form>
		<label for="applicant">이름</label><input id="applicant">
		<label for="company">회사명</label><input id="company">
		<label for="veteran">보훈여부</label><input id="veteran">
	</form>`)
	adapter := &panickingAdapter{Session: s, key: keyByID(t, s, "company")}
	o, n := setupOrchestrator(t, adapter)

	var states []schemas.RunState
	o.SetObserver(func(state schemas.RunState, _ string) {
		if len(states) == 0 || states[len(states)-1] != state {
			states = append(states, state)
		}
	})

	summary, err := o.Run(context.Background(), &schemas.Profile{
		PersonalInfo:      &schemas.PersonalInfo{Name: "홍길동"},
		Careers:           []schemas.Career{{Company: "ACME"}},
		DisabilityVeteran: &schemas.DisabilityVeteran{VeteranStatus: "비대상"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Filled)
	assert.Equal(t, 1, summary.SectionErrors)
	assert.Equal(t, "2개 필드 자동완성 (1개 섹션 오류)", summary.Message)
	assert.Equal(t, []schemas.RunState{schemas.RunRunning, schemas.RunPartialFailure, schemas.RunDone}, states)

	v := valuesByID(t, s)
	assert.Equal(t, "홍길동", v["applicant"])
	assert.Empty(t, v["company"])
	assert.Equal(t, "비대상", v["veteran"])
	assert.Equal(t, schemas.NotifyWarning, n.last(t).Kind)
}

func TestRunAdapterErrorsCountPerSection(t *testing.T) {
	s := parsePage(t, `<form><input id="applicant"></form>`)
	o, _ := setupOrchestrator(t, failingAdapter{Session: s})

	summary, err := o.Run(context.Background(), &schemas.Profile{
		PersonalInfo: &schemas.PersonalInfo{Name: "홍길동"},
		Education:    &schemas.Education{University: &schemas.University{Name: "한국대학교"}},
	})
	require.NoError(t, err)
	assert.Zero(t, summary.Filled)
	assert.Equal(t, 2, summary.SectionErrors)
}

func TestRunCareers(t *testing.T) {
	s := parsePage(t, `<form><ul>
		<li><label for="c1">회사명</label><input id="c1"><label for="d1">부서</label><input id="d1"></li>
		<li><label for="c2">회사명</label><input id="c2"><label for="d2">부서</label><input id="d2"></li>
	</ul></form>`)
	o, _ := setupOrchestrator(t, s)

	summary, err := o.Run(context.Background(), &schemas.Profile{
		Careers: []schemas.Career{
			{Company: "ACME", Department: "R&D"},
			{Company: "Initech", Department: "QA"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Filled)

	v := valuesByID(t, s)
	assert.Equal(t, "ACME", v["c1"])
	assert.Equal(t, "Initech", v["c2"])
	assert.Equal(t, "R&D", v["d1"])
	assert.Equal(t, "QA", v["d2"])
}

func TestRunPersonalInfoExtras(t *testing.T) {
	s := parsePage(t, `<form>
		<label for="pw">비밀번호</label><input id="pw" type="password">
		<label for="pw2">비밀번호 확인</label><input id="pw2" type="password">
		<input id="phone1" name="phone1"><input id="phone2" name="phone2"><input id="phone3" name="phone3">
	</form>`)
	o, _ := setupOrchestrator(t, s)

	summary, err := o.Run(context.Background(), &schemas.Profile{
		PersonalInfo: &schemas.PersonalInfo{Password: "s3cret!", Phone: "010-1234-5678"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Filled)

	v := valuesByID(t, s)
	assert.Equal(t, "s3cret!", v["pw"])
	assert.Equal(t, "s3cret!", v["pw2"])
	assert.Equal(t, "010", v["phone1"])
	assert.Equal(t, "1234", v["phone2"])
	assert.Equal(t, "5678", v["phone3"])
}

func TestRunCancelled(t *testing.T) {
	s := parsePage(t, `<form><label for="applicant">이름</label><input id="applicant"></form>`)
	o, _ := setupOrchestrator(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := o.Run(ctx, &schemas.Profile{PersonalInfo: &schemas.PersonalInfo{Name: "홍길동"}})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Filled)
	assert.Empty(t, valuesByID(t, s)["applicant"])
}

func TestSectionNames(t *testing.T) {
	assert.Equal(t, []string{
		"personalInfo", "education", "careers", "activities",
		"overseas", "languageScores", "certificates", "disabilityVeteran",
	}, SectionNames())
}

// -- Test Cases: RunContext --

func TestSuggestionCache(t *testing.T) {
	c := NewSuggestionCache()
	c.Put("2", CachedSuggestion{Key: "k2"})
	c.Put("0", CachedSuggestion{Key: "k0"})
	c.Put("2", CachedSuggestion{Key: "k2b"})
	assert.Equal(t, []string{"2", "0"}, c.Indexes())

	got, ok := c.Get("2")
	require.True(t, ok)
	assert.Equal(t, "k2b", got.Key)

	c.Delete("2")
	c.Delete("missing")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"0"}, c.Indexes())

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestNewRunContextIDsAreUnique(t *testing.T) {
	a, b := NewRunContext(), NewRunContext()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Zero(t, a.Used.Len())
}

// -- Test Cases: Trigger --

func setupTrigger(t *testing.T, src *fakeSource) (*Trigger, *session.Session) {
	t.Helper()
	s := parsePage(t, `<form><label for="applicant">이름</label><input id="applicant"></form>`)
	o, _ := setupOrchestrator(t, s)
	tr, err := NewTrigger(o, src, zaptest.NewLogger(t))
	require.NoError(t, err)
	return tr, s
}

func TestTriggerFire(t *testing.T) {
	src := &fakeSource{profile: &schemas.Profile{PersonalInfo: &schemas.PersonalInfo{Name: "홍길동"}}}
	tr, s := setupTrigger(t, src)

	summary, err := tr.Fire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Filled)
	assert.Equal(t, "홍길동", valuesByID(t, s)["applicant"])
	assert.False(t, tr.InFlight())
}

func TestTriggerPrimeSkipsSourceRead(t *testing.T) {
	src := &fakeSource{err: errors.New("source must not be read")}
	tr, s := setupTrigger(t, src)
	tr.Prime(&schemas.Profile{PersonalInfo: &schemas.PersonalInfo{Name: "이영희"}})

	summary, err := tr.Fire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Filled)
	assert.Equal(t, "이영희", valuesByID(t, s)["applicant"])
}

func TestTriggerRejectsConcurrentRun(t *testing.T) {
	src := &fakeSource{profile: &schemas.Profile{PersonalInfo: &schemas.PersonalInfo{Name: "홍길동"}}}
	tr, _ := setupTrigger(t, src)

	entered := make(chan struct{})
	release := make(chan struct{})
	tr.SetConfirm(func(context.Context) (bool, error) {
		close(entered)
		<-release
		return true, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := tr.Fire(context.Background())
		done <- err
	}()
	<-entered

	_, err := tr.Fire(context.Background())
	assert.ErrorIs(t, err, ErrRunInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, tr.InFlight())
}

func TestTriggerDeclined(t *testing.T) {
	src := &fakeSource{profile: &schemas.Profile{PersonalInfo: &schemas.PersonalInfo{Name: "홍길동"}}}
	tr, s := setupTrigger(t, src)
	tr.SetConfirm(func(context.Context) (bool, error) { return false, nil })

	summary, err := tr.Fire(context.Background())
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Equal(t, schemas.RunIdle, summary.State)
	assert.Empty(t, s.Events())
}

func TestTriggerWatchRefreshesProfile(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{changes: make(chan struct{}, 1)}
	tr, _ := setupTrigger(t, src)

	refreshed := make(chan *schemas.Profile, 1)
	tr.OnRefresh = func(p *schemas.Profile) { refreshed <- p }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Watch(ctx) }()

	want := &schemas.Profile{PersonalInfo: &schemas.PersonalInfo{Name: "김철수"}}
	src.set(want)
	src.changes <- struct{}{}

	select {
	case p := <-refreshed:
		assert.Same(t, want, p)
	case <-time.After(2 * time.Second):
		t.Fatal("profile was not refreshed")
	}
	assert.Same(t, want, tr.Profile())

	cancel()
	require.NoError(t, <-done)
}

// -- Test Cases: Notifier --

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleNotifier(&buf).Notify(context.Background(), Notification{
		Kind:    schemas.NotifySuccess,
		Message: "1개 필드가 자동완성되었습니다!",
		Records: []schemas.FilledFieldRecord{
			{Label: "<b>이름</b>", DisplayValue: "홍길동", Success: true},
			{Label: "학위", DisplayValue: "학사", Success: false, Reason: "Expected: 학사, Got: ba"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "✓ 1개 필드가 자동완성되었습니다!")
	assert.Contains(t, out, "이름")
	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "Expected: 학사, Got: ba")
}

func TestConsoleNotifierKeepsPlainPunctuation(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleNotifier(&buf).Notify(context.Background(), Notification{
		Kind:    schemas.NotifySuccess,
		Message: "done",
		Records: []schemas.FilledFieldRecord{
			{Label: "R&D 경력", DisplayValue: "O'Brien & Sons", Success: true},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "R&D 경력")
	assert.Contains(t, out, "O'Brien & Sons")
	assert.NotContains(t, out, "&amp;")
	assert.NotContains(t, out, "&#39;")
}

func TestMultiNotifier(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	MultiNotifier{a, nil, b}.Notify(context.Background(), Notification{Message: "x"})
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}
