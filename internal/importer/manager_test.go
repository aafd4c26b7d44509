package importer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cadence/internal/conflicts"
	"cadence/internal/importer"
	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/services"
	"cadence/internal/store"
	"cadence/internal/testsupport"
)

const ownerEmail = "teacher@example.com"

var (
	january  = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	february = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	march    = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

func twoMonthRequest() importer.Request {
	return importer.Request{Owner: "teacher", OwnerEmail: ownerEmail, From: january, To: march}
}

func collect(t *testing.T, job *importer.Job) []importer.Event {
	t.Helper()
	var events []importer.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-job.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("job %s did not finish; events so far: %+v", job.ID(), events)
		}
	}
}

func types(events []importer.Event) []importer.EventType {
	out := make([]importer.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func assertMonotonic(t *testing.T, events []importer.Event) {
	t.Helper()
	var prev importer.Progress
	for _, ev := range events {
		p := ev.Progress
		if p.ChunksDone < prev.ChunksDone || p.Imported < prev.Imported || p.Skipped < prev.Skipped || p.Errors < prev.Errors {
			t.Fatalf("progress went backwards: %+v after %+v", p, prev)
		}
		prev = p
	}
}

// cancellingStore cancels the job right after its first lesson is written.
type cancellingStore struct {
	*store.Store
	once   sync.Once
	cancel func()
}

func (s *cancellingStore) CreateLessonWithLink(ctx context.Context, lesson store.Lesson, link store.Link) (*store.Lesson, *store.Link, error) {
	created, createdLink, err := s.Store.CreateLessonWithLink(ctx, lesson, link)
	s.once.Do(s.cancel)
	return created, createdLink, err
}

func TestImportCancellationHaltsForwardProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	calendar := &testsupport.FakeCalendar{Events: []matching.CalendarEvent{
		testsupport.LessonEvent("jan-1", "Guitar lesson", ownerEmail, "sam@example.com", january.AddDate(0, 0, 9).Add(17*time.Hour)),
		testsupport.LessonEvent("feb-1", "Guitar lesson", ownerEmail, "sam@example.com", february.AddDate(0, 0, 9).Add(17*time.Hour)),
	}}

	jobIDs := make(chan string, 1)
	var mgr *importer.Manager
	wrapped := &cancellingStore{Store: st}
	wrapped.cancel = func() { mgr.Cancel(<-jobIDs) }
	mgr = importer.NewManager(cfg, wrapped, calendar, nil, logging.NewNop())

	job, err := mgr.Start(context.Background(), twoMonthRequest())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	jobIDs <- job.ID()
	events := collect(t, job)

	last := events[len(events)-1]
	if last.Type != importer.EventCancelled {
		t.Fatalf("expected cancelled terminal event, got %v", types(events))
	}
	if last.Progress.Imported != 1 {
		t.Fatalf("expected imported=1, got %+v", last.Progress)
	}
	for _, ev := range events {
		if ev.ItemID == "feb-1" || (ev.Chunk != nil && ev.Chunk.Index == 1) {
			t.Fatalf("month two was touched: %+v", ev)
		}
	}
	if calls := calendar.Calls(); calls != 1 {
		t.Fatalf("expected one calendar call, got %d", calls)
	}
	lessons, err := st.ListLessons(context.Background(), "teacher")
	if err != nil || len(lessons) != 1 {
		t.Fatalf("expected the first lesson kept, got %d %v", len(lessons), err)
	}
	if status := job.Status(); status.State != importer.StateCancelled || status.FinishedAt == nil {
		t.Fatalf("unexpected final status %+v", status)
	}
	if mgr.Registry().Len() != 0 {
		t.Fatal("job should be unregistered after cancellation")
	}
	history, err := mgr.History(context.Background(), "teacher", 5)
	if err != nil || len(history) != 1 || history[0].State != string(importer.StateCancelled) {
		t.Fatalf("unexpected history %+v %v", history, err)
	}
}

func TestImportCompletesWithShadowStudents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	calendar := &testsupport.FakeCalendar{
		PageSize: 1,
		Events: []matching.CalendarEvent{
			testsupport.LessonEvent("jan-1", "Piano lesson", ownerEmail, "jamie.lee@example.com", january.AddDate(0, 0, 4).Add(16*time.Hour)),
			testsupport.LessonEvent("jan-2", "Dentist", ownerEmail, "jamie.lee@example.com", january.AddDate(0, 0, 6).Add(9*time.Hour)),
			testsupport.LessonEvent("feb-1", "Piano lesson", ownerEmail, "jamie.lee@example.com", february.AddDate(0, 0, 4).Add(16*time.Hour)),
		},
	}
	mgr := importer.NewManager(cfg, st, calendar, nil, logging.NewNop())

	job, err := mgr.Start(context.Background(), twoMonthRequest())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	events := collect(t, job)
	want := []importer.EventType{
		importer.EventInit,
		importer.EventChunkStart, importer.EventItemImported, importer.EventItemSkipped,
		importer.EventChunkStart, importer.EventItemImported,
		importer.EventComplete,
	}
	got := types(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	assertMonotonic(t, events)

	if events[0].Progress.ChunksTotal != 2 {
		t.Fatalf("init should carry chunk total, got %+v", events[0].Progress)
	}
	if !events[2].ShadowCreated || events[5].ShadowCreated {
		t.Fatalf("expected shadow student created once, got %v then %v", events[2].ShadowCreated, events[5].ShadowCreated)
	}
	if events[3].Reason != matching.ReasonNotLesson {
		t.Fatalf("expected not_lesson reason, got %q", events[3].Reason)
	}
	final := events[len(events)-1].Progress
	if final.Imported != 2 || final.Skipped != 1 || final.Errors != 0 || final.ChunksDone != 2 {
		t.Fatalf("unexpected final progress %+v", final)
	}

	student, err := st.FindStudentByEmail(context.Background(), "jamie.lee@example.com")
	if err != nil || student == nil {
		t.Fatalf("expected shadow student, got %+v %v", student, err)
	}
	if !student.Shadow || student.DisplayName != "Jamie Lee" {
		t.Fatalf("unexpected shadow student %+v", student)
	}
	if calls := calendar.Calls(); calls != 3 {
		t.Fatalf("expected 3 paged calls, got %d", calls)
	}
}

func TestImportRerunDetectsConflicts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	changed := testsupport.LessonEvent("jan-1", "Piano lesson", ownerEmail, "kid@example.com", january.AddDate(0, 0, 4).Add(16*time.Hour))
	steady := testsupport.LessonEvent("jan-2", "Piano lesson", ownerEmail, "kid@example.com", january.AddDate(0, 0, 11).Add(16*time.Hour))
	calendar := &testsupport.FakeCalendar{Events: []matching.CalendarEvent{changed, steady}}
	detector := conflicts.NewManager(st, calendar, logging.NewNop())
	mgr := importer.NewManager(cfg, st, calendar, detector, logging.NewNop())
	req := importer.Request{Owner: "teacher", OwnerEmail: ownerEmail, From: january, To: february}

	first, err := mgr.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	collect(t, first)

	ctx := context.Background()
	link, err := st.FindLink(ctx, matching.SourceCalendarEvent, "jan-1")
	if err != nil || link == nil {
		t.Fatalf("FindLink failed: %+v %v", link, err)
	}
	local := link.Snapshot
	edited := *local
	edited.Notes = "work on scales"
	if err := st.UpdateLesson(ctx, link.EntityID, edited); err != nil {
		t.Fatalf("UpdateLesson failed: %v", err)
	}
	calendar.Events[0].Start = changed.Start.Add(time.Hour)
	calendar.Events[0].End = changed.End.Add(time.Hour)

	second, err := mgr.Start(context.Background(), req)
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	events := collect(t, second)
	reasons := map[string]string{}
	for _, ev := range events {
		if ev.Type == importer.EventItemSkipped {
			reasons[ev.ItemID] = ev.Reason
		}
	}
	if reasons["jan-1"] != importer.ReasonConflict || reasons["jan-2"] != importer.ReasonAlreadyImported {
		t.Fatalf("unexpected skip reasons %v", reasons)
	}
	final := events[len(events)-1]
	if final.Type != importer.EventComplete || final.Progress.Imported != 0 || final.Progress.Skipped != 2 {
		t.Fatalf("unexpected final event %+v", final)
	}
	outstanding, err := detector.List(ctx, "teacher")
	if err != nil || len(outstanding) != 1 {
		t.Fatalf("expected one conflict, got %d %v", len(outstanding), err)
	}
}

func TestImportPageFailureEndsWithError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	calendar := &testsupport.FakeCalendar{
		FailOn: february,
		Events: []matching.CalendarEvent{
			testsupport.LessonEvent("jan-1", "Guitar lesson", ownerEmail, "sam@example.com", january.AddDate(0, 0, 2).Add(15*time.Hour)),
		},
	}
	mgr := importer.NewManager(cfg, st, calendar, nil, logging.NewNop())
	job, err := mgr.Start(context.Background(), twoMonthRequest())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	events := collect(t, job)
	last := events[len(events)-1]
	if last.Type != importer.EventError || last.Message == "" {
		t.Fatalf("expected error terminal event, got %+v", last)
	}
	if last.Progress.Imported != 1 || last.Progress.ChunksDone != 1 {
		t.Fatalf("expected partial progress, got %+v", last.Progress)
	}
	if job.Status().State != importer.StateFailed {
		t.Fatalf("expected failed state, got %s", job.Status().State)
	}
}

func blockingCalendar(release <-chan struct{}) *testsupport.FakeCalendar {
	return &testsupport.FakeCalendar{
		Events: []matching.CalendarEvent{
			testsupport.LessonEvent("jan-1", "Guitar lesson", ownerEmail, "sam@example.com", january.AddDate(0, 0, 2).Add(15*time.Hour)),
		},
		OnList: func(int) { <-release },
	}
}

func TestOneActiveJobPerOwner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	release := make(chan struct{})
	mgr := importer.NewManager(cfg, st, blockingCalendar(release), nil, logging.NewNop())

	first, err := mgr.Start(context.Background(), twoMonthRequest())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_, err = mgr.Start(context.Background(), twoMonthRequest())
	if !errors.Is(err, importer.ErrJobActive) || !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrJobActive, got %v", err)
	}
	other := twoMonthRequest()
	other.Owner = "other-teacher"
	second, err := mgr.Start(context.Background(), other)
	if err != nil {
		t.Fatalf("Start for another owner failed: %v", err)
	}
	if active := mgr.Registry().Active(); len(active) != 2 {
		t.Fatalf("expected two active jobs, got %d", len(active))
	}

	close(release)
	collect(t, first)
	collect(t, second)
	if mgr.Cancel(first.ID()) {
		t.Fatal("cancelling a finished job should report not found")
	}
}

func TestSupersedeCancelsRunningJob(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSupersede(true))
	st := testsupport.MustOpenStore(t, cfg)
	release := make(chan struct{})
	mgr := importer.NewManager(cfg, st, blockingCalendar(release), nil, logging.NewNop())

	first, err := mgr.Start(context.Background(), twoMonthRequest())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	second, err := mgr.Start(context.Background(), twoMonthRequest())
	if err != nil {
		t.Fatalf("superseding Start failed: %v", err)
	}
	if job, ok := mgr.Registry().ForOwner("teacher"); !ok || job.ID() != second.ID() {
		t.Fatal("expected the new job to own the slot")
	}
	close(release)

	firstEvents := collect(t, first)
	if last := firstEvents[len(firstEvents)-1]; last.Type != importer.EventCancelled {
		t.Fatalf("superseded job should end cancelled, got %v", types(firstEvents))
	}
	secondEvents := collect(t, second)
	if last := secondEvents[len(secondEvents)-1]; last.Type != importer.EventComplete {
		t.Fatalf("new job should complete, got %v", types(secondEvents))
	}
	if mgr.Registry().Len() != 0 {
		t.Fatal("registry should be empty")
	}
}

func TestSupersededJobStaysVisibleUntilItEnds(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSupersede(true))
	st := testsupport.MustOpenStore(t, cfg)
	release := make(chan struct{})
	listing := make(chan int, 4)
	calendar := blockingCalendar(release)
	calendar.OnList = func(call int) {
		listing <- call
		<-release
	}
	mgr := importer.NewManager(cfg, st, calendar, nil, logging.NewNop())

	first, err := mgr.Start(context.Background(), twoMonthRequest())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-listing
	second, err := mgr.Start(context.Background(), twoMonthRequest())
	if err != nil {
		t.Fatalf("superseding Start failed: %v", err)
	}

	if _, ok := mgr.Registry().Get(first.ID()); !ok {
		t.Fatal("superseded job should stay listed until it finishes")
	}
	active := mgr.Registry().Active()
	listed := false
	for _, status := range active {
		listed = listed || status.ID == first.ID()
	}
	if len(active) != 2 || !listed {
		t.Fatalf("expected both jobs active, got %+v", active)
	}
	if !mgr.Cancel(first.ID()) {
		t.Fatal("cancel by id should still find the superseded job")
	}
	if job, ok := mgr.Registry().ForOwner("teacher"); !ok || job.ID() != second.ID() {
		t.Fatal("expected the new job to own the slot")
	}
	close(release)

	collect(t, first)
	if job, ok := mgr.Registry().ForOwner("teacher"); ok && job.ID() != second.ID() {
		t.Fatal("finishing the superseded job must not free the new job's slot")
	}
	collect(t, second)
	if mgr.Registry().Len() != 0 || mgr.Cancel(first.ID()) {
		t.Fatal("finished jobs should be unregistered")
	}
}

func TestStartValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	mgr := importer.NewManager(cfg, st, &testsupport.FakeCalendar{}, nil, logging.NewNop())

	cases := []struct {
		name string
		req  importer.Request
	}{
		{"missing owner", importer.Request{OwnerEmail: ownerEmail, From: january, To: march}},
		{"missing email", importer.Request{Owner: "teacher", From: january, To: march}},
		{"inverted range", importer.Request{Owner: "teacher", OwnerEmail: ownerEmail, From: march, To: january}},
		{"range too long", importer.Request{Owner: "teacher", OwnerEmail: ownerEmail, From: january, To: january.AddDate(2, 0, 0)}},
	}
	for _, tc := range cases {
		if _, err := mgr.Start(context.Background(), tc.req); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
	if mgr.Registry().Len() != 0 {
		t.Fatal("rejected requests must not register jobs")
	}

	noSource := importer.NewManager(cfg, st, nil, nil, logging.NewNop())
	if _, err := noSource.Start(context.Background(), twoMonthRequest()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUnbufferedEventsStillDeliverInit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	mgr := importer.NewManager(cfg, st, &testsupport.FakeCalendar{}, nil, logging.NewNop(), importer.WithEventBuffer(0))
	job, err := mgr.Start(context.Background(), twoMonthRequest())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	events := collect(t, job)
	if events[0].Type != importer.EventInit || events[len(events)-1].Type != importer.EventComplete {
		t.Fatalf("unexpected events %v", types(events))
	}
}

var (
	_ importer.Store    = (*store.Store)(nil)
	_ importer.Detector = (*conflicts.Manager)(nil)
)
