package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/tunebridge-backend/internal/data/repos"
	"github.com/yungbote/tunebridge-backend/internal/data/repos/testutil"
	"github.com/yungbote/tunebridge-backend/internal/data/txn"
	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/platform/secrets"
)

type fakeExecutor struct {
	mu     sync.Mutex
	calls  [][]string
	handle string
	err    error
}

func (f *fakeExecutor) RunJob(_ context.Context, jobName string, args []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{jobName}, args...))
	if f.err != nil {
		return "", f.err
	}
	if f.handle == "" {
		return "operations/op-1", nil
	}
	return f.handle, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingLauncher struct {
	mu        sync.Mutex
	launched  []uuid.UUID
	delivered []CallbackSignal
	apply     func(ctx context.Context, jobID uuid.UUID, sig CallbackSignal) error
}

func (l *recordingLauncher) Launch(_ context.Context, jobID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, jobID)
	return nil
}

func (l *recordingLauncher) DeliverCallback(ctx context.Context, jobID uuid.UUID, sig CallbackSignal) error {
	l.mu.Lock()
	l.delivered = append(l.delivered, sig)
	apply := l.apply
	l.mu.Unlock()
	if apply != nil {
		return apply(ctx, jobID, sig)
	}
	return nil
}

func (l *recordingLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(ev string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) JobCreated(context.Context, *types.FineTuneJob, string) { n.add("created") }
func (n *recordingNotifier) JobRunning(context.Context, *types.FineTuneJob)         { n.add("running") }
func (n *recordingNotifier) JobCompleted(context.Context, *types.FineTuneJob)       { n.add("completed") }
func (n *recordingNotifier) JobFailed(context.Context, *types.FineTuneJob, string)  { n.add("failed") }

func (n *recordingNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type fakeModelStore struct {
	existing map[string]bool
}

func (s *fakeModelStore) Bucket() string { return "models-bucket" }
func (s *fakeModelStore) PrefixExists(_ context.Context, prefix string) (bool, error) {
	return s.existing[prefix], nil
}
func (s *fakeModelStore) Close() error { return nil }

// testEnv wires the finetune services against a fresh database.
type testEnv struct {
	log        *logger.Logger
	repos      repos.Set
	runner     txn.Runner
	exec       *fakeExecutor
	launcher   *recordingLauncher
	notify     *recordingNotifier
	admission  AdmissionService
	dispatch   JobDispatchService
	credential CredentialService
	completion CompletionService
	callbacks  CallbackService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Nop()
	conn := testutil.DB(t)
	set := repos.NewSet(conn, log)
	runner := txn.NewGormRunner(conn)
	cipher, err := secrets.NewCipher("test-encryption-passphrase")
	require.NoError(t, err)

	env := &testEnv{
		log:      log,
		repos:    set,
		runner:   runner,
		exec:     &fakeExecutor{},
		launcher: &recordingLauncher{},
		notify:   &recordingNotifier{},
	}
	env.credential = NewCredentialService(log, set, runner, cipher, "https://infer.example.com")
	env.completion = NewCompletionService(log, set, runner, env.credential, env.notify)
	env.dispatch = NewJobDispatchService(log, set,
		NewDispatcher(log, env.exec, DispatcherConfig{JobName: "trainer", Bucket: "models-bucket"}),
		env.notify, "https://api.example.com")
	env.launcher.apply = env.completion.Apply
	env.admission = NewAdmissionService(log, set, runner, env.launcher, env.notify, AdmissionConfig{Bucket: "models-bucket"})
	env.callbacks = NewCallbackService(log, set, env.launcher)
	return env
}

func (e *testEnv) admitNew(t *testing.T, userID uuid.UUID, name string) *AdmitResult {
	t.Helper()
	res, err := e.admission.Admit(context.Background(), userID, AdmitRequest{
		ModelName: name,
		BaseModel: "llama-3-8b",
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) callbackToken(t *testing.T, jobID uuid.UUID) string {
	t.Helper()
	job, err := e.repos.Jobs.GetByID(ctxDB(), jobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job.CallbackToken
}

func ctxDB() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }
