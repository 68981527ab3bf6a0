package review

import (
	"context"
	"testing"

	"github.com/starford/dayroll/internal/models"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/testutil"
)

func testReconciler(t *testing.T) (*Reconciler, *testutil.MemStore) {
	t.Helper()
	store := testutil.NewTaskStore()
	r := New(notion.NewGateway(store), testutil.DailyDB, testutil.TaskDB,
		models.DefaultReviewLayout(), models.DefaultStatusRules(), testutil.Logger())
	return r, store
}

func TestReconcile_CreatesWithPlaceholders(t *testing.T) {
	r, store := testReconciler(t)
	today := testutil.Day("2026-10-18")
	store.SeedTask("a", today, "Done")
	store.SeedTask("b", today, "")
	store.SeedTask("c", today, "In progress")

	res, err := r.Reconcile(context.Background(), testutil.TaskMapping, today)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !res.Created || res.Completed != 1 || res.Incomplete != 2 {
		t.Errorf("result = %+v", res)
	}
	page, ok := store.Page(testutil.DailyDB, res.PageID)
	if !ok {
		t.Fatal("record not stored")
	}
	if got := page.Get("Title").PlainText(); got != "Daily review 2026-10-18" {
		t.Errorf("title = %q", got)
	}
	if got := page.Get("Summary").PlainText(); got != SummaryPrompt {
		t.Errorf("summary = %q", got)
	}
	if got := page.Get("Type").SelectName(); got != "Daily" {
		t.Errorf("type = %q", got)
	}
}

func TestReconcile_IdempotentAndPreservesText(t *testing.T) {
	r, store := testReconciler(t)
	today := testutil.Day("2026-10-18")
	store.SeedTask("a", today, "")

	first, err := r.Reconcile(context.Background(), testutil.TaskMapping, today)
	if err != nil {
		t.Fatal(err)
	}
	// Operator edits the summary, then finishes the task and adds another.
	if _, err := store.UpdatePage(context.Background(), first.PageID, notion.Properties{
		"Summary": notion.Text("shipped the report"),
	}); err != nil {
		t.Fatal(err)
	}
	for _, p := range store.Pages(testutil.TaskDB) {
		store.UpdatePage(context.Background(), p.ID, notion.Properties{"Status": notion.Option("done")})
	}
	store.SeedTask("b", today, "")

	second, err := r.Reconcile(context.Background(), testutil.TaskMapping, today)
	if err != nil {
		t.Fatal(err)
	}
	if second.Created || second.PageID != first.PageID {
		t.Errorf("second = %+v, want update of %s", second, first.PageID)
	}
	if n := len(store.Pages(testutil.DailyDB)); n != 1 {
		t.Fatalf("records = %d, want 1", n)
	}
	page, _ := store.Page(testutil.DailyDB, first.PageID)
	if got := page.Get("Summary").PlainText(); got != "shipped the report" {
		t.Errorf("summary = %q, want operator text kept", got)
	}
	if page.Get("Completed").Int() != 1 || page.Get("Incomplete").Int() != 1 {
		t.Errorf("counts = %d/%d, want 1/1", page.Get("Completed").Int(), page.Get("Incomplete").Int())
	}
}

func TestReconcile_CountsMatchTasksForEveryDay(t *testing.T) {
	r, store := testReconciler(t)
	days := map[string][]string{
		"2026-10-15": {"done", "", ""},
		"2026-10-16": {},
		"2026-10-17": {"已完成", "完成", "Not started", "Done"},
	}
	for day, statuses := range days {
		for i, s := range statuses {
			store.SeedTask(day+"-"+string(rune('a'+i)), testutil.Day(day), s)
		}
	}
	for day, statuses := range days {
		res, err := r.Reconcile(context.Background(), testutil.TaskMapping, testutil.Day(day))
		if err != nil {
			t.Fatalf("%s: %v", day, err)
		}
		if res.Completed+res.Incomplete != len(statuses) {
			t.Errorf("%s: %d+%d != %d", day, res.Completed, res.Incomplete, len(statuses))
		}
	}
}

func TestFind_IgnoresPeriodicRecords(t *testing.T) {
	r, store := testReconciler(t)
	today := testutil.Day("2026-10-18")
	store.Seed(testutil.DailyDB, notion.Properties{
		"Title": notion.Title("Weekly review 2026-10-18"),
		"Date":  notion.On(today),
		"Type":  notion.Option("Weekly"),
	})
	legacy := store.Seed(testutil.DailyDB, notion.Properties{
		"Title": notion.Title("old style"),
		"Date":  notion.On(today),
	})
	got, err := r.Find(context.Background(), today)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != legacy {
		t.Errorf("Find = %v, want untagged record %s", got, legacy)
	}
}

func TestEnsureSchema_AddsMissingColumns(t *testing.T) {
	store := testutil.NewMemStore()
	store.AddDatabase("bare", map[string]string{"Title": notion.TypeTitle, "Date": notion.TypeDate})
	gw := notion.NewGateway(store)
	if err := EnsureSchema(context.Background(), gw, "bare", models.DefaultReviewLayout(), testutil.Logger()); err != nil {
		t.Fatal(err)
	}
	s, _ := gw.FetchSchema(context.Background(), "bare")
	for _, name := range []string{"Completed", "Incomplete", "Difficulty", "Solution", "Summary", "Type"} {
		if _, ok := s.Lookup(name); !ok {
			t.Errorf("column %q not added", name)
		}
	}
}

func TestReconcile_WritesToExistingTitleColumn(t *testing.T) {
	store := testutil.NewTaskStore()
	store.AddDatabase("fresh", map[string]string{"Name": notion.TypeTitle})
	gw := notion.NewGateway(store)
	layout := models.DefaultReviewLayout()
	if err := EnsureSchema(context.Background(), gw, "fresh", layout, testutil.Logger()); err != nil {
		t.Fatal(err)
	}
	s, _ := gw.FetchSchema(context.Background(), "fresh")
	if _, ok := s.Lookup("Title"); ok {
		t.Fatal("a second title column must not be added")
	}

	r := New(gw, "fresh", testutil.TaskDB, layout, models.DefaultStatusRules(), testutil.Logger())
	today := testutil.Day("2026-10-15")
	store.SeedTask("a", today, "")
	res, err := r.Reconcile(context.Background(), testutil.TaskMapping, today)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	page, _ := store.Page("fresh", res.PageID)
	if got := page.Get("Name").PlainText(); got != "Daily review 2026-10-15" {
		t.Errorf("Name = %q, want %q", got, "Daily review 2026-10-15")
	}
}
