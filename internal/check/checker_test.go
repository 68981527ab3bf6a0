package check

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/starford/dayroll/internal/models"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/schema"
	"github.com/starford/dayroll/internal/testutil"
)

func testChecker(t *testing.T, store *testutil.MemStore, dbs Databases) *Checker {
	t.Helper()
	r, err := schema.NewResolver()
	if err != nil {
		t.Fatal(err)
	}
	return New(notion.NewGateway(store), r, dbs, models.DefaultReviewLayout(), models.DefaultStatusRules(), testutil.Logger())
}

func allDBs() Databases {
	return Databases{Task: testutil.TaskDB, DailyReview: testutil.DailyDB, CycleReview: testutil.CycleDB}
}

func seedReview(store *testutil.MemStore, db, day, label string) {
	props := notion.Properties{"Title": notion.Title("r"), "Date": notion.On(testutil.Day(day))}
	if label != "" {
		props["Type"] = notion.Option(label)
	}
	store.Seed(db, props)
}

func TestCheck_ReportsExactlyTheMissingTitle(t *testing.T) {
	store := testutil.NewTaskStore()
	store.SeedTask("A", testutil.Day("2026-10-14"), "")
	store.SeedTask("B", testutil.Day("2026-10-14"), "In progress")
	store.SeedTask("A", testutil.Day("2026-10-15"), "Not started")
	seedReview(store, testutil.DailyDB, "2026-10-15", "Daily")

	rep := testChecker(t, store, allDBs()).Check(context.Background(), testutil.Day("2026-10-15"))
	if len(rep.Findings) != 1 || rep.Findings[0].Code != RolloverGap {
		t.Fatalf("findings = %+v", rep.Findings)
	}
	if !reflect.DeepEqual(rep.Findings[0].Titles, []string{"B"}) {
		t.Errorf("gap = %v, want [B]", rep.Findings[0].Titles)
	}
}

func TestGap(t *testing.T) {
	got := Gap([]string{"A", "B"}, map[string]bool{"A": true})
	if !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("Gap = %v", got)
	}
}

func TestCheck_MissingReviewsOnSundayMonthEnd(t *testing.T) {
	// 2026-05-31 is both a Sunday and the last day of May.
	store := testutil.NewTaskStore()
	rep := testChecker(t, store, allDBs()).Check(context.Background(), testutil.Day("2026-05-31"))
	for _, c := range []Code{DailyReviewMissing, WeeklyReviewMissing, MonthlyReviewMissing} {
		if !rep.Has(c) {
			t.Errorf("missing finding %s in %+v", c, rep.Findings)
		}
	}
	if rep.Has(RolloverGap) {
		t.Error("no tasks means no gap")
	}
}

func TestCheck_PeriodicRecordsSatisfy(t *testing.T) {
	store := testutil.NewTaskStore()
	seedReview(store, testutil.DailyDB, "2026-05-31", "")
	seedReview(store, testutil.CycleDB, "2026-05-31", "Weekly")
	seedReview(store, testutil.CycleDB, "2026-05-31", "Monthly")

	rep := testChecker(t, store, allDBs()).Check(context.Background(), testutil.Day("2026-05-31"))
	if !rep.OK() {
		t.Errorf("findings = %+v, want none", rep.Findings)
	}
}

func TestCheck_WeeklyRecordDoesNotCountAsDaily(t *testing.T) {
	store := testutil.NewTaskStore()
	seedReview(store, testutil.DailyDB, "2026-10-18", "Weekly")
	rep := testChecker(t, store, Databases{Task: testutil.TaskDB, DailyReview: testutil.DailyDB}).
		Check(context.Background(), testutil.Day("2026-10-18"))
	if !rep.Has(DailyReviewMissing) {
		t.Errorf("findings = %+v", rep.Findings)
	}
	if rep.Has(WeeklyReviewMissing) {
		t.Error("weekly check needs a cycle database")
	}
}

func TestCheck_ErrorsAreIndependent(t *testing.T) {
	store := testutil.NewTaskStore()
	store.FailQuery = func(db string) error {
		if db == testutil.TaskDB {
			return errors.New("offline")
		}
		return nil
	}
	store.SeedTask("A", testutil.Day("2026-10-14"), "")

	rep := testChecker(t, store, allDBs()).Check(context.Background(), testutil.Day("2026-10-15"))
	if !rep.Has(CheckError) || !rep.Has(DailyReviewMissing) {
		t.Errorf("findings = %+v, want check-error and daily-review-missing", rep.Findings)
	}
}

func TestCheck_UnresolvedSchemaIsFinding(t *testing.T) {
	store := testutil.NewMemStore()
	store.AddDatabase(testutil.TaskDB, map[string]string{"Name": notion.TypeTitle})
	rep := testChecker(t, store, Databases{Task: testutil.TaskDB}).Check(context.Background(), testutil.Day("2026-10-15"))
	if len(rep.Findings) != 1 || rep.Findings[0].Code != CheckError {
		t.Errorf("findings = %+v", rep.Findings)
	}
}
