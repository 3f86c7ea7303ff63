package review_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/catalog"
	"github.com/rpggio/casereview/internal/domain/credential"
	"github.com/rpggio/casereview/internal/domain/review"
	"github.com/rpggio/casereview/internal/testutil"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	passwords map[string]string
	admins    map[string]bool
}

func (f *fakeUsers) Authenticate(_ context.Context, username, password string) (*credential.User, error) {
	want, ok := f.passwords[username]
	if !ok || want != password || password == "" {
		return nil, credential.ErrInvalidCredentials
	}
	return &credential.User{Username: username, IsAdmin: f.admins[username]}, nil
}

func (f *fakeUsers) Exists(_ context.Context, username string) (bool, error) {
	_, ok := f.passwords[username]
	return ok, nil
}

func (f *fakeUsers) List(_ context.Context) ([]credential.UserSummary, error) {
	var out []credential.UserSummary
	for name := range f.passwords {
		out = append(out, credential.UserSummary{Username: name, IsAdmin: f.admins[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

type fakeDiagnoses struct {
	records map[string]map[string]string
	failSet bool
}

func (f *fakeDiagnoses) Get(_ context.Context, username, caseID string) (string, bool, error) {
	text, ok := f.records[username][caseID]
	return text, ok, nil
}

func (f *fakeDiagnoses) Set(_ context.Context, username, caseID, text string) error {
	if f.failSet {
		return errors.New("disk full")
	}
	if f.records[username] == nil {
		f.records[username] = make(map[string]string)
	}
	f.records[username][caseID] = text
	return nil
}

func (f *fakeDiagnoses) Delete(_ context.Context, username, caseID string) {
	delete(f.records[username], caseID)
}

func (f *fakeDiagnoses) ListForUser(_ context.Context, username string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range f.records[username] {
		out[k] = v
	}
	return out, nil
}

type memAudit struct {
	mu     sync.Mutex
	logs   map[string][]audit.Event
	failOn audit.Action
}

func (m *memAudit) Append(_ context.Context, key string, event *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && event.Action == m.failOn {
		return errors.New("write failed")
	}
	event.Seq = int64(len(m.logs[key]) + 1)
	m.logs[key] = append(m.logs[key], *event)
	return nil
}

func (m *memAudit) List(_ context.Context, key string) ([]audit.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Event(nil), m.logs[key]...), nil
}

func (m *memAudit) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.logs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

type fixture struct {
	engine    *review.Engine
	auditRepo *memAudit
	diagnoses *fakeDiagnoses
}

func newFixture(t *testing.T, scope audit.Scope, stepping review.SteppingMode) *fixture {
	t.Helper()
	root := testutil.WriteCatalog(t, testutil.DefaultLayout())
	users := &fakeUsers{
		passwords: map[string]string{"admin": "admin-pw", "user1": "pw1", "user2": "pw2"},
		admins:    map[string]bool{"admin": true},
	}
	diagnoses := &fakeDiagnoses{records: make(map[string]map[string]string)}
	repo := &memAudit{logs: make(map[string][]audit.Event)}

	// A frozen clock forces the collision path on every append.
	frozen := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	auditSvc := audit.NewService(repo, scope, nil).WithClock(func() time.Time { return frozen })

	engine := review.NewEngine(catalog.NewScanner(root, nil), users, diagnoses, auditSvc,
		review.Options{Stepping: stepping}, nil)
	return &fixture{engine: engine, auditRepo: repo, diagnoses: diagnoses}
}

func (f *fixture) login(t *testing.T, username, password string) review.Session {
	t.Helper()
	res, err := f.engine.Login(context.Background(), review.NewSession(), username, password)
	require.NoError(t, err)
	return res.Session
}

func (f *fixture) openPhase(t *testing.T, sess review.Session, caseID, phaseID string) review.Session {
	t.Helper()
	ctx := context.Background()
	res, err := f.engine.OpenCase(ctx, sess, caseID)
	require.NoError(t, err)
	res, err = f.engine.SelectPhase(ctx, res.Session, phaseID)
	require.NoError(t, err)
	return res.Session
}

func actions(events []audit.Event) []audit.Action {
	out := make([]audit.Action, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func TestEngine_LoginSuccess(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)

	res, err := f.engine.Login(context.Background(), review.NewSession(), "user1", "pw1")
	require.NoError(t, err)
	require.Equal(t, review.Session{Username: "user1", Page: review.PageCaseSelection}, res.Session)
	require.Len(t, res.Events, 1)
	require.Equal(t, audit.ActionLogin, res.Events[0].Action)
	require.Equal(t, "user1", res.Events[0].LogKey)
	require.Len(t, f.auditRepo.logs["user1"], 1)
}

func TestEngine_LoginFailure(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()

	res, err := f.engine.Login(ctx, review.NewSession(), "user1", "wrong-pw-31")
	require.ErrorIs(t, err, review.ErrInvalidCredentials)
	require.Equal(t, review.PageLogin, res.Session.Page)
	require.Empty(t, res.Session.Username)
	require.Equal(t, []audit.Action{audit.ActionLoginFail}, actions(f.auditRepo.logs["user1"]))

	_, err = f.engine.Login(ctx, review.NewSession(), "mallory", "guess-77")
	require.ErrorIs(t, err, review.ErrInvalidCredentials)
	require.NotContains(t, f.auditRepo.logs, "mallory")
	require.Len(t, f.auditRepo.logs[audit.UnattributedKey], 1)
	require.Equal(t, "mallory", f.auditRepo.logs[audit.UnattributedKey][0].Username)

	_, err = f.engine.Login(ctx, review.NewSession(), "", "")
	require.ErrorIs(t, err, review.ErrInvalidCredentials)
	require.Len(t, f.auditRepo.logs[audit.UnattributedKey], 2)

	for key, events := range f.auditRepo.logs {
		for _, e := range events {
			for _, field := range []string{e.Username, e.Case, e.Series, e.Details} {
				require.NotContains(t, field, "wrong-pw-31", "log %s", key)
				require.NotContains(t, field, "guess-77", "log %s", key)
			}
		}
	}
	for _, e := range res.Events {
		require.NotContains(t, e.Details, "wrong-pw-31")
	}
}

func TestEngine_LoginGlobalScope(t *testing.T) {
	f := newFixture(t, audit.ScopeGlobal, review.SteppingClamp)
	ctx := context.Background()

	_, err := f.engine.Login(ctx, review.NewSession(), "mallory", "x")
	require.Error(t, err)
	f.login(t, "user1", "pw1")
	f.login(t, "user2", "pw2")

	keys, err := f.auditRepo.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{audit.GlobalKey}, keys)
	require.Equal(t, []audit.Action{audit.ActionLoginFail, audit.ActionLogin, audit.ActionLogin},
		actions(f.auditRepo.logs[audit.GlobalKey]))
}

func TestEngine_LoginWhileLoggedIn(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	sess := f.login(t, "user1", "pw1")

	res, err := f.engine.Login(context.Background(), sess, "user2", "pw2")
	require.ErrorIs(t, err, review.ErrAlreadyAuthenticated)
	require.Equal(t, sess, res.Session)
}

func TestEngine_OpenCaseResetsSelection(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()
	sess := f.login(t, "user1", "pw1")

	res, err := f.engine.OpenCase(ctx, sess, "CASE01")
	require.NoError(t, err)
	require.Equal(t, review.PageViewer, res.Session.Page)
	require.Equal(t, "CASE01", res.Session.SelectedCase)
	require.Empty(t, res.Session.SelectedPhase)
	require.Equal(t, 1, res.Session.SliceIndex)
	require.Equal(t, "CASE01", res.Events[0].Case)

	_, err = f.engine.OpenCase(ctx, sess, "CASE99")
	require.ErrorIs(t, err, review.ErrCaseNotFound)

	_, err = f.engine.OpenCase(ctx, res.Session, "CASE02")
	require.ErrorIs(t, err, review.ErrInvalidPage)
}

func TestEngine_ScenarioStepping(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()
	sess := f.openPhase(t, f.login(t, "user1", "pw1"), "CASE01", "non_contrast")
	require.Equal(t, 1, sess.SliceIndex)

	var changes []audit.Event
	for i := 0; i < 3; i++ {
		res, err := f.engine.StepSlice(ctx, sess, review.DirectionDown)
		require.NoError(t, err)
		sess = res.Session
		changes = append(changes, res.Events...)
	}
	require.Equal(t, 3, sess.SliceIndex)
	require.Len(t, changes, 2)
	require.Equal(t, "Slice: 2", changes[0].Details)
	require.Equal(t, "Slice: 3", changes[1].Details)
	require.Equal(t, "non_contrast", changes[1].Series)

	changes = nil
	for i := 0; i < 5; i++ {
		res, err := f.engine.StepSlice(ctx, sess, review.DirectionUp)
		require.NoError(t, err)
		sess = res.Session
		changes = append(changes, res.Events...)
	}
	require.Equal(t, 1, sess.SliceIndex)
	require.Len(t, changes, 2)
}

func TestEngine_StepSliceWrap(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingWrap)
	ctx := context.Background()
	sess := f.openPhase(t, f.login(t, "user1", "pw1"), "CASE01", "non_contrast")

	res, err := f.engine.StepSlice(ctx, sess, review.DirectionUp)
	require.NoError(t, err)
	require.Equal(t, 3, res.Session.SliceIndex)
	require.Equal(t, "Slice: 3", res.Events[0].Details)

	res, err = f.engine.StepSlice(ctx, res.Session, review.DirectionDown)
	require.NoError(t, err)
	require.Equal(t, 1, res.Session.SliceIndex)
}

func TestEngine_StepSliceGuards(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()
	sess := f.login(t, "user1", "pw1")

	_, err := f.engine.StepSlice(ctx, sess, review.DirectionDown)
	require.ErrorIs(t, err, review.ErrInvalidPage)

	res, err := f.engine.OpenCase(ctx, sess, "CASE01")
	require.NoError(t, err)
	_, err = f.engine.StepSlice(ctx, res.Session, review.DirectionDown)
	require.ErrorIs(t, err, review.ErrNoPhaseSelected)

	viewer := f.openPhase(t, sess, "CASE01", "non_contrast")
	_, err = f.engine.StepSlice(ctx, viewer, review.Direction("sideways"))
	require.ErrorIs(t, err, review.ErrInvalidDirection)

	_, err = f.engine.StepSlice(ctx, review.NewSession(), review.DirectionDown)
	require.ErrorIs(t, err, review.ErrNotAuthenticated)
}

func TestEngine_StepSliceClampsStaleIndex(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	sess := f.openPhase(t, f.login(t, "user1", "pw1"), "CASE01", "non_contrast")
	sess.SliceIndex = 9

	res, err := f.engine.StepSlice(context.Background(), sess, review.DirectionDown)
	require.NoError(t, err)
	require.Equal(t, 3, res.Session.SliceIndex)
	require.Empty(t, res.Events)
}

func TestEngine_SelectPhase(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()
	sess := f.openPhase(t, f.login(t, "user1", "pw1"), "CASE02", "arterial")

	res, err := f.engine.SelectPhase(ctx, sess, "arterial")
	require.NoError(t, err)
	require.Empty(t, res.Events, "reselecting at slice 1 records nothing")

	stepped, err := f.engine.StepSlice(ctx, sess, review.DirectionDown)
	require.NoError(t, err)
	res, err = f.engine.SelectPhase(ctx, stepped.Session, "arterial")
	require.NoError(t, err)
	require.Equal(t, 1, res.Session.SliceIndex)
	require.Equal(t, []audit.Action{audit.ActionSelectSeries}, actions(res.Events))

	res, err = f.engine.SelectPhase(ctx, sess, "empty")
	require.NoError(t, err)
	require.Equal(t, "empty", res.Session.SelectedPhase)
	require.Equal(t, 0, res.Session.SliceIndex)
	require.NotEmpty(t, res.Warnings)

	res, err = f.engine.SelectPhase(ctx, sess, "missing")
	require.NoError(t, err)
	require.Empty(t, res.Session.SelectedPhase)
	require.Equal(t, 0, res.Session.SliceIndex)
	require.Empty(t, res.Events)
	require.NotEmpty(t, res.Warnings)

	res, err = f.engine.SelectPhase(ctx, sess, "")
	require.NoError(t, err)
	require.Empty(t, res.Session.SelectedPhase)
	require.Empty(t, res.Warnings)
}

func TestEngine_SaveDiagnosis(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()
	sess := f.openPhase(t, f.login(t, "user1", "pw1"), "CASE01", "non_contrast")

	res, err := f.engine.SaveDiagnosis(ctx, sess, "No acute findings")
	require.NoError(t, err)
	require.Equal(t, review.Session{Username: "user1", Page: review.PageCaseSelection}, res.Session)
	require.Equal(t, "No acute findings", f.diagnoses.records["user1"]["CASE01"])
	require.Equal(t, audit.ActionSaveDiagnosis, res.Events[0].Action)
	require.Equal(t, "No acute findings", res.Events[0].Details)
	require.Equal(t, "non_contrast", res.Events[0].Series)

	view, err := f.engine.View(ctx, res.Session)
	require.NoError(t, err)
	require.Equal(t, []review.CaseEntry{{ID: "CASE01", Done: true}, {ID: "CASE02"}}, view.Cases)

	res, err = f.engine.OpenCase(ctx, res.Session, "CASE01")
	require.NoError(t, err)
	view, err = f.engine.View(ctx, res.Session)
	require.NoError(t, err)
	require.Equal(t, "No acute findings", view.Diagnosis)
}

func TestEngine_ViewDoneFollowsStoredDiagnosis(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()
	res, err := f.engine.OpenCase(ctx, f.login(t, "user1", "pw1"), "CASE01")
	require.NoError(t, err)
	res, err = f.engine.SaveDiagnosis(ctx, res.Session, "nodule")
	require.NoError(t, err)

	view, err := f.engine.View(ctx, res.Session)
	require.NoError(t, err)
	require.Equal(t, []review.CaseEntry{{ID: "CASE01", Done: true}, {ID: "CASE02"}}, view.Cases)

	f.diagnoses.Delete(ctx, "user1", "CASE01")
	view, err = f.engine.View(ctx, res.Session)
	require.NoError(t, err)
	require.Equal(t, []review.CaseEntry{{ID: "CASE01"}, {ID: "CASE02"}}, view.Cases)
}

func TestEngine_SaveDiagnosisEmptyTextMarksDone(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()
	res, err := f.engine.OpenCase(ctx, f.login(t, "user1", "pw1"), "CASE02")
	require.NoError(t, err)

	res, err = f.engine.SaveDiagnosis(ctx, res.Session, "")
	require.NoError(t, err)
	view, err := f.engine.View(ctx, res.Session)
	require.NoError(t, err)
	require.Equal(t, []review.CaseEntry{{ID: "CASE01"}, {ID: "CASE02", Done: true}}, view.Cases)
}

func TestEngine_SaveDiagnosisStorageFailure(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	f.diagnoses.failSet = true
	sess := f.openPhase(t, f.login(t, "user1", "pw1"), "CASE01", "non_contrast")

	res, err := f.engine.SaveDiagnosis(context.Background(), sess, "text")
	require.NoError(t, err)
	require.Equal(t, review.PageCaseSelection, res.Session.Page)
	require.Contains(t, res.Warnings, "Diagnosis could not be saved")
}

func TestEngine_AuditFailureIsWarning(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	f.auditRepo.failOn = audit.ActionOpenCase
	sess := f.login(t, "user1", "pw1")

	res, err := f.engine.OpenCase(context.Background(), sess, "CASE01")
	require.NoError(t, err)
	require.Equal(t, review.PageViewer, res.Session.Page)
	require.Empty(t, res.Events)
	require.Contains(t, res.Warnings, "Audit log could not be written")
}

func TestEngine_BackToSelection(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	sess := f.openPhase(t, f.login(t, "user1", "pw1"), "CASE02", "venous")

	res, err := f.engine.BackToSelection(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, review.Session{Username: "user1", Page: review.PageCaseSelection}, res.Session)
	require.Equal(t, audit.ActionBackToSelection, res.Events[0].Action)
	require.Equal(t, "CASE02", res.Events[0].Case)
	require.Empty(t, f.diagnoses.records["user1"])
}

func TestEngine_Logout(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()
	sess := f.openPhase(t, f.login(t, "user1", "pw1"), "CASE01", "non_contrast")

	res, err := f.engine.Logout(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, review.NewSession(), res.Session)
	require.Equal(t, audit.ActionLogout, res.Events[0].Action)

	_, err = f.engine.Logout(ctx, res.Session)
	require.ErrorIs(t, err, review.ErrNotAuthenticated)
}

func TestEngine_TimestampsStrictlyIncrease(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()
	sess := f.openPhase(t, f.login(t, "user1", "pw1"), "CASE01", "non_contrast")
	for i := 0; i < 4; i++ {
		res, err := f.engine.StepSlice(ctx, sess, review.DirectionDown)
		require.NoError(t, err)
		sess = res.Session
	}
	_, err := f.engine.Logout(ctx, sess)
	require.NoError(t, err)

	events := f.auditRepo.logs["user1"]
	require.Equal(t, []audit.Action{
		audit.ActionLogin, audit.ActionOpenCase, audit.ActionSelectSeries,
		audit.ActionChangeSlice, audit.ActionChangeSlice, audit.ActionLogout,
	}, actions(events))
	for i := 1; i < len(events); i++ {
		require.True(t, events[i].Timestamp.After(events[i-1].Timestamp), "event %d", i)
	}
}

func TestEngine_Admin(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()

	user := f.login(t, "user1", "pw1")
	_, err := f.engine.OpenAdmin(ctx, user)
	require.ErrorIs(t, err, review.ErrForbidden)
	_, err = f.engine.AdminLog(ctx, user, "user1")
	require.ErrorIs(t, err, review.ErrForbidden)

	admin := f.login(t, "admin", "admin-pw")
	require.True(t, admin.IsAdmin)
	res, err := f.engine.OpenAdmin(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, review.PageAdmin, res.Session.Page)

	view, err := f.engine.View(ctx, res.Session)
	require.NoError(t, err)
	require.NotNil(t, view.Admin)
	require.Len(t, view.Admin.Users, 3)
	require.Equal(t, []string{"admin", "user1"}, view.Admin.Logs)

	events, err := f.engine.AdminLog(ctx, res.Session, "user1")
	require.NoError(t, err)
	require.Equal(t, []audit.Action{audit.ActionLogin}, actions(events))

	res, err = f.engine.CloseAdmin(ctx, res.Session)
	require.NoError(t, err)
	require.Equal(t, review.PageCaseSelection, res.Session.Page)

	_, err = f.engine.CloseAdmin(ctx, res.Session)
	require.ErrorIs(t, err, review.ErrInvalidPage)
}

func TestEngine_ViewViewer(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	ctx := context.Background()
	sess := f.openPhase(t, f.login(t, "user1", "pw1"), "CASE02", "arterial")
	res, err := f.engine.StepSlice(ctx, sess, review.DirectionDown)
	require.NoError(t, err)

	view, err := f.engine.View(ctx, res.Session)
	require.NoError(t, err)
	require.Equal(t, []string{"arterial", "empty", "venous"}, view.Phases)
	require.Equal(t, &review.SliceView{Index: 2, Count: 2, Name: "2.png"}, view.Slice)
	require.Empty(t, view.Diagnosis)

	ref, err := f.engine.SliceAt(ctx, res.Session, 1)
	require.NoError(t, err)
	require.Equal(t, "1.png", ref.Name)
	_, err = f.engine.SliceAt(ctx, res.Session, 3)
	require.ErrorIs(t, err, review.ErrNoSlices)

	empty, err := f.engine.SelectPhase(ctx, res.Session, "empty")
	require.NoError(t, err)
	view, err = f.engine.View(ctx, empty.Session)
	require.NoError(t, err)
	require.Nil(t, view.Slice)
	require.NotEmpty(t, view.Warnings)
}

func TestEngine_ViewLoggedOut(t *testing.T) {
	f := newFixture(t, audit.ScopePerUser, review.SteppingClamp)
	view, err := f.engine.View(context.Background(), review.Session{})
	require.NoError(t, err)
	require.Equal(t, review.PageLogin, view.Session.Page)
	require.Nil(t, view.Cases)
}

func TestParseSteppingMode(t *testing.T) {
	mode, err := review.ParseSteppingMode("wrap")
	require.NoError(t, err)
	require.Equal(t, review.SteppingWrap, mode)

	_, err = review.ParseSteppingMode("bounce")
	require.ErrorIs(t, err, review.ErrInvalidSteppingMode)

	dir, err := review.ParseDirection("up")
	require.NoError(t, err)
	require.Equal(t, review.DirectionUp, dir)
	_, err = review.ParseDirection("left")
	require.ErrorIs(t, err, review.ErrInvalidDirection)
}
