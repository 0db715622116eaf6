package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/db"
	"github.com/onnwee/chatbot/testutil"
)

type factory func(t *testing.T) Store

func backends() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"sqlite": func(t *testing.T) Store { return NewSQL(testutil.SetupSQLite(t), db.SQLite) },
		"postgres": func(t *testing.T) Store {
			return NewSQL(testutil.SetupTestDB(t), db.Postgres)
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

func TestCommandLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if err := s.CreateCommand(ctx, command.Discord, "hello", "Hi there!"); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := s.GetCommand(ctx, command.Discord, "hello")
		if err != nil || got != "Hi there!" {
			t.Fatalf("get = %q, %v", got, err)
		}
		if err := s.CreateCommand(ctx, command.Discord, "hello", "again"); !errors.Is(err, command.ErrDuplicateCommand) {
			t.Fatalf("duplicate create err = %v, want ErrDuplicateCommand", err)
		}
		// Same name on the other source is independent.
		if _, err := s.GetCommand(ctx, command.Twitch, "hello"); !errors.Is(err, command.ErrNotFound) {
			t.Fatalf("twitch get err = %v, want ErrNotFound", err)
		}

		if err := s.UpdateCommand(ctx, command.Discord, "hello", "Hello!"); err != nil {
			t.Fatalf("update: %v", err)
		}
		got, _ = s.GetCommand(ctx, command.Discord, "hello")
		if got != "Hello!" {
			t.Errorf("after update get = %q", got)
		}
		if err := s.UpdateCommand(ctx, command.Twitch, "hello", "x"); !errors.Is(err, command.ErrNotFound) {
			t.Errorf("update missing err = %v, want ErrNotFound", err)
		}

		if err := s.DeleteCommand(ctx, command.Discord, "hello"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.GetCommand(ctx, command.Discord, "hello"); !errors.Is(err, command.ErrNotFound) {
			t.Errorf("get after delete err = %v, want ErrNotFound", err)
		}
		if err := s.DeleteCommand(ctx, command.Discord, "hello"); !errors.Is(err, command.ErrNotFound) {
			t.Errorf("second delete err = %v, want ErrNotFound", err)
		}
	})
}

func TestCreateRejectsReservedAndInvalid(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, name := range []string{"help", "bot", "admins", "ahelp"} {
			if err := s.CreateCommand(ctx, command.Twitch, name, "x"); !errors.Is(err, command.ErrDuplicateCommand) {
				t.Errorf("create %q err = %v, want ErrDuplicateCommand", name, err)
			}
		}
		if err := s.CreateCommand(ctx, command.Twitch, "9lives", "x"); !errors.Is(err, command.ErrInvalidName) {
			t.Errorf("create invalid err = %v, want ErrInvalidName", err)
		}
	})
}

func TestListCommandsOrderedAndRestartable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, n := range []string{"zeta", "alpha", "mid"} {
			if err := s.CreateCommand(ctx, command.Discord, n, n+" content"); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.CreateCommand(ctx, command.Twitch, "other", "x"); err != nil {
			t.Fatal(err)
		}

		seq := s.ListCommands(ctx, command.Discord)
		for run := 0; run < 2; run++ {
			got, err := CollectCommands(seq)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 3 || got[0].Name != "alpha" || got[1].Name != "mid" || got[2].Name != "zeta" {
				t.Fatalf("run %d list = %+v", run, got)
			}
			if got[0].Content != "alpha content" || got[0].Source != command.Discord {
				t.Errorf("run %d first = %+v", run, got[0])
			}
		}

		// Early break releases the iterator without error.
		for c, err := range seq {
			if err != nil {
				t.Fatal(err)
			}
			if c.Name != "alpha" {
				t.Errorf("first = %q", c.Name)
			}
			break
		}
		// The store stays usable after an early break.
		if _, err := s.GetCommand(ctx, command.Twitch, "other"); err != nil {
			t.Errorf("get after break: %v", err)
		}
	})
}

func TestAdmins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		added, err := s.AddAdmin(ctx, command.Discord, "42")
		if err != nil || !added {
			t.Fatalf("add = %v, %v", added, err)
		}
		added, err = s.AddAdmin(ctx, command.Discord, "42")
		if err != nil || added {
			t.Fatalf("re-add = %v, %v, want false", added, err)
		}
		if _, err := s.AddAdmin(ctx, command.Discord, "7"); err != nil {
			t.Fatal(err)
		}

		if ok, _ := s.IsAdmin(ctx, command.Discord, "42"); !ok {
			t.Error("42 should be admin on discord")
		}
		if ok, _ := s.IsAdmin(ctx, command.Twitch, "42"); ok {
			t.Error("42 must not be admin on twitch")
		}

		ids, err := s.ListAdmins(ctx, command.Discord)
		if err != nil || len(ids) != 2 || ids[0] != "42" || ids[1] != "7" {
			t.Errorf("list = %v, %v", ids, err)
		}

		if err := s.RemoveAdmin(ctx, command.Discord, "42"); err != nil {
			t.Fatal(err)
		}
		if ok, _ := s.IsAdmin(ctx, command.Discord, "42"); ok {
			t.Error("42 still admin after remove")
		}
		if err := s.RemoveAdmin(ctx, command.Discord, "42"); !errors.Is(err, command.ErrNotFound) {
			t.Errorf("remove missing err = %v, want ErrNotFound", err)
		}
	})
}

func TestTopForMonthOrdering(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		march := command.Period{Year: 2024, Month: time.March}
		for i := 0; i < 3; i++ {
			if err := s.RecordUsage(ctx, march, command.KindBuiltin, "help"); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.RecordUsage(ctx, march, command.KindCustom, "hello"); err != nil {
			t.Fatal(err)
		}
		// Another month must not leak in.
		if err := s.RecordUsage(ctx, command.Period{Year: 2024, Month: time.April}, command.KindCustom, "hello"); err != nil {
			t.Fatal(err)
		}

		got, err := s.TopForMonth(ctx, 2024, time.March)
		if err != nil {
			t.Fatal(err)
		}
		want := []command.UsageRecord{
			{Kind: command.KindBuiltin, Name: "help", Count: 3},
			{Kind: command.KindCustom, Name: "hello", Count: 1},
		}
		if len(got) != len(want) {
			t.Fatalf("TopForMonth = %+v, want %+v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("TopForMonth[%d] = %+v, want %+v", i, got[i], want[i])
			}
		}
	})
}

func TestTopAllTimeSumsAndBreaksTies(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		jan := command.Period{Year: 2024, Month: time.January}
		feb := command.Period{Year: 2024, Month: time.February}

		must := func(err error) {
			t.Helper()
			if err != nil {
				t.Fatal(err)
			}
		}
		must(s.AddUsage(ctx, jan, command.KindCustom, "hello", 2))
		must(s.AddUsage(ctx, feb, command.KindCustom, "hello", 3))
		must(s.AddUsage(ctx, jan, command.KindBuiltin, "ban", 5))
		must(s.AddUsage(ctx, feb, command.KindBuiltin, "ftoc", 1))
		must(s.AddUsage(ctx, feb, command.KindBuiltin, "ctof", 1))

		got, err := s.TopAllTime(ctx)
		if err != nil {
			t.Fatal(err)
		}
		wantNames := []string{"ban", "hello", "ctof", "ftoc"}
		wantCounts := []int64{5, 5, 1, 1}
		if len(got) != len(wantNames) {
			t.Fatalf("TopAllTime = %+v", got)
		}
		for i := range wantNames {
			if got[i].Name != wantNames[i] || got[i].Count != wantCounts[i] {
				t.Errorf("TopAllTime[%d] = %+v, want %s=%d", i, got[i], wantNames[i], wantCounts[i])
			}
		}

		if err := s.AddUsage(ctx, jan, command.KindCustom, "hello", 0); !errors.Is(err, command.ErrUsage) {
			t.Errorf("zero delta err = %v, want ErrUsage", err)
		}
	})
}

// Two groups of writers, standing in for the two chat platforms, hammer the
// same key. No increment may be lost.
func TestConcurrentSameKeyIncrements(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		period := command.Period{Year: 2025, Month: time.June}
		const groups, workers, perWorker = 2, 8, 25

		var wg sync.WaitGroup
		errs := make(chan error, groups*workers)
		for g := 0; g < groups; g++ {
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perWorker; i++ {
						if err := s.RecordUsage(ctx, period, command.KindCustom, "hello"); err != nil {
							errs <- err
							return
						}
					}
				}()
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("record: %v", err)
		}

		got, err := s.TopForMonth(ctx, 2025, time.June)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Count != groups*workers*perWorker {
			t.Fatalf("count = %+v, want %d", got, groups*workers*perWorker)
		}
	})
}
