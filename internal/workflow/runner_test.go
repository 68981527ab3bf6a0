package workflow

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/dayroll/internal/apperr"
	"github.com/starford/dayroll/internal/calendar"
	"github.com/starford/dayroll/internal/check"
	"github.com/starford/dayroll/internal/ledger"
	"github.com/starford/dayroll/internal/models"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/sse"
	"github.com/starford/dayroll/internal/testutil"
)

type recordedEvents struct {
	mu       sync.Mutex
	started  []sse.RunEvent
	finished []sse.RunEvent
	findings []sse.Event
}

func (e *recordedEvents) RunStarted(ev sse.RunEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, ev)
}

func (e *recordedEvents) RunFinished(ev sse.RunEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = append(e.finished, ev)
}

func (e *recordedEvents) Publish(ev sse.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.findings = append(e.findings, ev)
}

type env struct {
	store  *testutil.MemStore
	ledger *ledger.DB
	events *recordedEvents
	runner *Runner
}

func newEnv(t *testing.T, dbs check.Databases) *env {
	t.Helper()
	e := &env{
		store:  testutil.NewTaskStore(),
		ledger: testutil.TestLedger(t),
		events: &recordedEvents{},
	}
	r, err := New(notion.NewGateway(e.store), e.ledger, nil, e.events, Options{
		Databases: dbs,
		Rules:     models.DefaultStatusRules(),
		Layout:    models.DefaultReviewLayout(),
	}, testutil.Logger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.runner = r
	return e
}

func allDBs() check.Databases {
	return check.Databases{Task: testutil.TaskDB, DailyReview: testutil.DailyDB, CycleReview: testutil.CycleDB}
}

func TestFullPass_EndToEnd(t *testing.T) {
	e := newEnv(t, allDBs())
	e.store.SeedTask("Write report", testutil.Day("2026-10-14"), "")
	e.store.SeedTask("Email client", testutil.Day("2026-10-14"), "done")

	today := testutil.Day("2026-10-15")
	res, err := e.runner.FullPass(context.Background(), today, ScopeReview)
	if err != nil {
		t.Fatalf("FullPass: %v", err)
	}

	tasks := e.store.TasksOn(today)
	if len(tasks) != 1 || tasks[0].Title != "Write report" || tasks[0].Status != testutil.StatusNS {
		t.Fatalf("today's tasks = %+v", tasks)
	}
	if res.Review == nil || res.Review.Completed != 0 || res.Review.Incomplete != 1 {
		t.Errorf("review = %+v, want 0/1", res.Review)
	}
	if res.Weekly != nil || res.Monthly != nil {
		t.Error("Thursday is no window boundary")
	}
}

func TestReviewPass_RecordsRunAndEvents(t *testing.T) {
	e := newEnv(t, allDBs())
	today := testutil.Day("2026-10-15")
	if err := e.runner.ReviewPass(context.Background(), JobReview, today); err != nil {
		t.Fatalf("ReviewPass: %v", err)
	}
	ok, err := e.ledger.Succeeded(JobReview, today)
	if err != nil || !ok {
		t.Errorf("Succeeded = %v, %v", ok, err)
	}
	if len(e.events.started) != 1 || len(e.events.finished) != 1 || e.events.finished[0].Outcome != "succeeded" {
		t.Errorf("events = %+v / %+v", e.events.started, e.events.finished)
	}
	// The check ran before the daily record existed.
	if len(e.events.findings) == 0 {
		t.Error("expected the missing daily review to be published")
	}
}

func TestWeeklyAggregationOncePerWindow(t *testing.T) {
	e := newEnv(t, allDBs())
	sunday := testutil.Day("2026-10-18")

	for i := 0; i < 2; i++ {
		if _, err := e.runner.FullPass(context.Background(), sunday, ScopeReview); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	var weekly int
	for _, p := range e.store.Pages(testutil.CycleDB) {
		if p.Get("Type").SelectName() == "Weekly" {
			weekly++
		}
	}
	if weekly != 1 {
		t.Errorf("weekly records = %d, want 1", weekly)
	}
	if ok, _ := e.ledger.HasPeriodic(string(models.Weekly), sunday); !ok {
		t.Error("periodic marker missing")
	}
}

func TestMonthEndCreatesMonthly(t *testing.T) {
	e := newEnv(t, allDBs())
	res, err := e.runner.FullPass(context.Background(), testutil.Day("2026-10-31"), ScopeReview)
	if err != nil {
		t.Fatal(err)
	}
	if res.Monthly == nil || res.Weekly != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestStartupPassLeavesPeriodicToReviewPass(t *testing.T) {
	e := newEnv(t, allDBs())
	sunday := testutil.Day("2026-10-18")
	e.store.SeedTask("early", sunday, "")

	if err := e.runner.ReviewPass(context.Background(), JobStartup, sunday); err != nil {
		t.Fatalf("startup pass: %v", err)
	}
	if ok, _ := e.ledger.HasPeriodic(string(models.Weekly), sunday); ok {
		t.Fatal("startup pass must not mark the week as aggregated")
	}

	for _, title := range []string{"a", "b", "c", "d"} {
		e.store.SeedTask(title, sunday, "Done")
	}
	if err := e.runner.ReviewPass(context.Background(), JobReview, sunday); err != nil {
		t.Fatalf("review pass: %v", err)
	}
	var weekly []notion.Page
	for _, p := range e.store.Pages(testutil.CycleDB) {
		if p.Get("Type").SelectName() == "Weekly" {
			weekly = append(weekly, p)
		}
	}
	if len(weekly) != 1 {
		t.Fatalf("weekly records = %d, want 1", len(weekly))
	}
	if got := weekly[0].Get("Completed").Int(); got != 4 {
		t.Errorf("weekly completed = %d, want 4", got)
	}
	if got := weekly[0].Get("Incomplete").Int(); got != 1 {
		t.Errorf("weekly incomplete = %d, want 1", got)
	}
}

func TestManualPassSkipsPeriodic(t *testing.T) {
	e := newEnv(t, allDBs())
	if err := e.runner.ReviewPass(context.Background(), JobManual, testutil.Day("2026-10-31")); err != nil {
		t.Fatal(err)
	}
	if n := len(e.store.Pages(testutil.CycleDB)); n != 0 {
		t.Errorf("periodic records = %d, want 0", n)
	}
	if ok, _ := e.ledger.HasPeriodic(string(models.Monthly), testutil.Day("2026-10-31")); ok {
		t.Error("manual pass must not mark the month as aggregated")
	}
}

func TestCycleWithoutDailyWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := testutil.NewTaskStore()
	r, err := New(notion.NewGateway(store), testutil.TestLedger(t), nil, nil, Options{
		Databases: check.Databases{Task: testutil.TaskDB, CycleReview: testutil.CycleDB},
		Rules:     models.DefaultStatusRules(),
		Layout:    models.DefaultReviewLayout(),
	}, logger)
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	res, err := r.FullPass(context.Background(), testutil.Day("2026-10-18"), ScopeReview)
	if err != nil {
		t.Fatal(err)
	}
	if res.Weekly != nil {
		t.Error("weekly aggregated without a daily review database")
	}
	if !strings.Contains(buf.String(), "periodic reviews need the daily review database") {
		t.Errorf("log = %s", buf.String())
	}
}

func TestFullPass_NoReviewDatabases(t *testing.T) {
	e := newEnv(t, check.Databases{Task: testutil.TaskDB})
	e.store.SeedTask("a", testutil.Day("2026-10-17"), "")
	res, err := e.runner.FullPass(context.Background(), testutil.Day("2026-10-18"), ScopeReview)
	if err != nil {
		t.Fatal(err)
	}
	if res.Review != nil || res.Weekly != nil || len(res.Rollover.Rolled) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestUnresolvedSchemaFailsRun(t *testing.T) {
	e := newEnv(t, allDBs())
	e.store.AddDatabase(testutil.TaskDB, map[string]string{"Name": notion.TypeTitle})
	today := testutil.Day("2026-10-15")

	err := e.runner.ReviewPass(context.Background(), JobReview, today)
	if !errors.Is(err, apperr.ErrUnresolvedSchema) {
		t.Fatalf("err = %v, want ErrUnresolvedSchema", err)
	}
	if ok, _ := e.ledger.Succeeded(JobReview, today); ok {
		t.Error("failed pass must not be recorded as success")
	}
	runs, _ := e.ledger.ListRuns(1)
	if len(runs) != 1 || runs[0].Outcome != ledger.Failed {
		t.Errorf("runs = %+v", runs)
	}
	if e.store.Creates != 0 {
		t.Errorf("creates = %d, want none", e.store.Creates)
	}
}

func TestResolveSchema_StoresFingerprint(t *testing.T) {
	e := newEnv(t, allDBs())
	if _, err := e.runner.ResolveSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	first, _ := e.ledger.SchemaChecksum(testutil.TaskDB)
	if first == "" {
		t.Fatal("fingerprint not stored")
	}
	cols := map[string]string{}
	for k, v := range testutil.TaskColumns {
		cols[k] = v
	}
	cols["Estimate minutes"] = notion.TypeNumber
	e.store.AddDatabase(testutil.TaskDB, cols)
	m, err := e.runner.ResolveSchema(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second, _ := e.ledger.SchemaChecksum(testutil.TaskDB); second == first {
		t.Error("fingerprint not updated after schema change")
	}
	if m.Duration == nil || m.Duration.Name != "Estimate minutes" {
		t.Errorf("duration = %+v", m.Duration)
	}
}

func TestEnsureReviewSchemaOption(t *testing.T) {
	e := newEnv(t, allDBs())
	e.store.AddDatabase(testutil.DailyDB, map[string]string{"Title": notion.TypeTitle, "Date": notion.TypeDate})
	e.runner.opts.EnsureReviewSchema = true
	if _, err := e.runner.FullPass(context.Background(), testutil.Day("2026-10-15"), ScopeDaily); err != nil {
		t.Fatal(err)
	}
	s, _ := e.store.RetrieveDatabase(context.Background(), testutil.DailyDB)
	if _, ok := s.Lookup("Completed"); !ok {
		t.Error("review columns not ensured")
	}
}

func TestInspector(t *testing.T) {
	e := newEnv(t, allDBs())
	clock := calendar.NewManualClock(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))
	in := NewInspector(e.runner, e.ledger, clock)

	rep, err := in.Schema(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Missing) != 0 || rep.Mapping.Status.Name != "Status" || rep.Fingerprint == "" {
		t.Errorf("schema = %+v", rep)
	}

	e.store.AddDatabase(testutil.TaskDB, map[string]string{"Name": notion.TypeTitle})
	rep, err = in.Schema(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Missing) != 2 {
		t.Errorf("missing = %v, want date and status", rep.Missing)
	}

	if got := in.CheckNow(context.Background()); got.Day != "2026-10-15" {
		t.Errorf("check day = %s", got.Day)
	}
	if e.store.Creates != 0 || e.store.Updates != 0 {
		t.Error("inspector must not write")
	}
}
