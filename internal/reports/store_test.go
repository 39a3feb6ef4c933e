package reports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/riddle015/riverhacks/internal/apperr"
	"github.com/riddle015/riverhacks/internal/db/dbtest"
	"github.com/riddle015/riverhacks/internal/geo"
)

// stepClock returns t0, t0+step, t0+2*step, ...
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

type fakeLocator struct {
	district int
	name     string
}

func (f fakeLocator) Locate(p geo.Point) (*int, *string) {
	d, n := f.district, f.name
	return &d, &n
}

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	gdb := dbtest.SQLite(t)
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(gdb, opts)
}

func pothole(owner *string) CreateInput {
	return CreateInput{
		OwnerID:     owner,
		CategoryID:  "infrastructure",
		Description: "pothole on Congress Ave",
		Severity:    3,
		Longitude:   -97.7431,
		Latitude:    30.2672,
	}
}

func TestCreateReport_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{StrictStatus: true})

	r, err := s.CreateReport(ctx, pothole(nil))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Status != StatusSubmitted {
		t.Errorf("expected status submitted, got %q", r.Status)
	}
	if !ValidTrackingNumber(r.TrackingNumber) {
		t.Errorf("tracking number %q does not match pattern", r.TrackingNumber)
	}
	if r.TrackingNumber[:14] != r.CreatedAt.Format("20060102150405") {
		t.Errorf("tracking number %q does not encode created_at %v", r.TrackingNumber, r.CreatedAt)
	}
	if r.ResolvedAt != nil {
		t.Error("new report must not be resolved")
	}
	if !r.UpdatedAt.Equal(r.CreatedAt) {
		t.Errorf("expected updated_at == created_at, got %v vs %v", r.UpdatedAt, r.CreatedAt)
	}

	got, err := s.GetReport(ctx, r.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Location.Lon != -97.7431 || got.Location.Lat != 30.2672 {
		t.Errorf("location did not round trip: %+v", got.Location)
	}
	if got.UserID != nil {
		t.Errorf("expected anonymous report, got owner %v", *got.UserID)
	}

	if _, err := s.AppendUpdate(ctx, r.ID.String(), UpdateInput{Status: StatusResolved, Comment: "patched"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err = s.GetReport(ctx, r.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusResolved || got.ResolvedAt == nil {
		t.Errorf("expected resolved with resolved_at, got %q %v", got.Status, got.ResolvedAt)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Error("updated_at must not precede created_at")
	}
}

func TestCreateReport_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{StrictStatus: true})

	cases := map[string]struct {
		mutate func(*CreateInput)
		kind   apperr.Kind
	}{
		"missing category":  {func(in *CreateInput) { in.CategoryID = "" }, apperr.KindValidation},
		"blank description": {func(in *CreateInput) { in.Description = "   " }, apperr.KindValidation},
		"severity too low":  {func(in *CreateInput) { in.Severity = 0 }, apperr.KindValidation},
		"severity too high": {func(in *CreateInput) { in.Severity = 6 }, apperr.KindValidation},
		"unknown category":  {func(in *CreateInput) { in.CategoryID = "unicorns" }, apperr.KindValidation},
		"longitude range":   {func(in *CreateInput) { in.Longitude = 200 }, apperr.KindInvalidGeometry},
		"latitude range":    {func(in *CreateInput) { in.Latitude = -95 }, apperr.KindInvalidGeometry},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := pothole(nil)
			tc.mutate(&in)
			_, err := s.CreateReport(ctx, in)
			if got := apperr.KindOf(err); got != tc.kind {
				t.Errorf("expected %q, got %q (%v)", tc.kind, got, err)
			}
		})
	}

	list, err := s.ListReports(ctx, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("rejected submissions must not persist anything, found %d reports", len(list))
	}
}

func TestCreateReport_DerivesGeoContext(t *testing.T) {
	s := newTestStore(t, Options{Locator: fakeLocator{district: 9, name: "Downtown"}})

	r, err := s.CreateReport(context.Background(), pothole(nil))
	if err != nil {
		t.Fatal(err)
	}
	if r.CouncilDistrict == nil || *r.CouncilDistrict != 9 {
		t.Errorf("expected district 9, got %v", r.CouncilDistrict)
	}
	if r.Neighborhood == nil || *r.Neighborhood != "Downtown" {
		t.Errorf("expected Downtown, got %v", r.Neighborhood)
	}
}

func TestTrackingNumbers_UniqueWithinOneSecond(t *testing.T) {
	frozen := time.Date(2025, 4, 20, 14, 30, 0, 0, time.UTC)
	s := newTestStore(t, Options{Now: func() time.Time { return frozen }})

	seen := map[string]bool{}
	for i := 0; i < 25; i++ {
		r, err := s.CreateReport(context.Background(), pothole(nil))
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if r.TrackingNumber[:14] != "20250420143000" {
			t.Fatalf("unexpected timestamp part in %q", r.TrackingNumber)
		}
		if seen[r.TrackingNumber] {
			t.Fatalf("duplicate tracking number %q", r.TrackingNumber)
		}
		seen[r.TrackingNumber] = true
	}
}

func TestResolvedAtInvariant(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{StrictStatus: true})
	r, err := s.CreateReport(ctx, pothole(nil))
	if err != nil {
		t.Fatal(err)
	}
	id := r.ID.String()

	if _, err := s.AppendUpdate(ctx, id, UpdateInput{Status: StatusInProgress, Comment: "crew assigned"}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetReport(ctx, id)
	if got.ResolvedAt != nil {
		t.Fatal("resolved_at must stay null after a non-terminal update")
	}

	if _, err := s.AppendUpdate(ctx, id, UpdateInput{Status: StatusResolved, Comment: "filled"}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetReport(ctx, id)
	if got.ResolvedAt == nil {
		t.Fatal("resolved_at must be set after a terminal update")
	}
	first := *got.ResolvedAt

	if _, err := s.AppendUpdate(ctx, id, UpdateInput{Status: StatusInProgress, Comment: "reopened"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendUpdate(ctx, id, UpdateInput{Status: StatusClosed, Comment: "done"}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetReport(ctx, id)
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(first) {
		t.Errorf("resolved_at must never revert or move: was %v, now %v", first, got.ResolvedAt)
	}
	if got.Status != StatusClosed {
		t.Errorf("expected closed, got %q", got.Status)
	}
}

func TestAppendUpdate_Ordering(t *testing.T) {
	ctx := context.Background()
	// frozen clock: ordering must still follow commit order
	frozen := time.Date(2025, 4, 21, 9, 15, 0, 0, time.UTC)
	s := newTestStore(t, Options{StrictStatus: true, Now: func() time.Time { return frozen }})

	r, err := s.CreateReport(ctx, pothole(nil))
	if err != nil {
		t.Fatal(err)
	}
	u1, err := s.AppendUpdate(ctx, r.ID.String(), UpdateInput{Status: StatusInProgress, Comment: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	u2, err := s.AppendUpdate(ctx, r.ID.String(), UpdateInput{Status: StatusResolved, Comment: "u2"})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetReport(ctx, r.ID.String())
	if got.Status != StatusResolved {
		t.Errorf("expected resolved, got %q", got.Status)
	}

	updates, err := s.ListUpdates(ctx, r.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 2 || updates[0].ID != u1.ID || updates[1].ID != u2.ID {
		t.Fatalf("expected [u1, u2], got %+v", updates)
	}
	if !updates[1].CreatedAt.After(updates[0].CreatedAt) {
		t.Errorf("created_at must increase in commit order: %v, %v", updates[0].CreatedAt, updates[1].CreatedAt)
	}
	if updates[0].Seq != 1 || updates[1].Seq != 2 {
		t.Errorf("expected seq 1,2 got %d,%d", updates[0].Seq, updates[1].Seq)
	}
}

func TestAppendUpdate_Errors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{StrictStatus: true})
	r, err := s.CreateReport(ctx, pothole(nil))
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.AppendUpdate(ctx, "00000000-0000-0000-0000-000000000000", UpdateInput{Status: StatusResolved, Comment: "x"})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
	_, err = s.AppendUpdate(ctx, "not-a-uuid", UpdateInput{Status: StatusResolved, Comment: "x"})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not_found for malformed id, got %v", err)
	}
	_, err = s.AppendUpdate(ctx, r.ID.String(), UpdateInput{Status: "", Comment: "x"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation for missing status, got %v", err)
	}
	_, err = s.AppendUpdate(ctx, r.ID.String(), UpdateInput{Status: StatusResolved, Comment: " "})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation for missing comment, got %v", err)
	}
	_, err = s.AppendUpdate(ctx, r.ID.String(), UpdateInput{Status: "escalated", Comment: "x"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation for unknown status, got %v", err)
	}

	updates, _ := s.ListUpdates(ctx, r.ID.String())
	if len(updates) != 0 {
		t.Errorf("failed appends must leave no rows, found %d", len(updates))
	}
	got, _ := s.GetReport(ctx, r.ID.String())
	if got.Status != StatusSubmitted {
		t.Errorf("failed appends must not change status, got %q", got.Status)
	}
}

func TestAppendUpdate_LaxStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{StrictStatus: false})
	r, err := s.CreateReport(ctx, pothole(nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendUpdate(ctx, r.ID.String(), UpdateInput{Status: "escalated", Comment: "sent to TxDOT"}); err != nil {
		t.Fatalf("lax store should accept custom status: %v", err)
	}
	got, _ := s.GetReport(ctx, r.ID.String())
	if got.Status != "escalated" || got.ResolvedAt != nil {
		t.Errorf("unexpected state %q %v", got.Status, got.ResolvedAt)
	}
}

func TestAppendUpdate_ParentMustBelongToReport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{StrictStatus: true})
	a, _ := s.CreateReport(ctx, pothole(nil))
	b, _ := s.CreateReport(ctx, pothole(nil))

	ua, err := s.AppendUpdate(ctx, a.ID.String(), UpdateInput{Status: StatusInProgress, Comment: "a1"})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := s.AppendUpdate(ctx, a.ID.String(), UpdateInput{Status: StatusInProgress, Comment: "reply", ParentUpdateID: &ua.ID})
	if err != nil {
		t.Fatalf("reply on same report: %v", err)
	}
	if reply.ParentUpdateID == nil || *reply.ParentUpdateID != ua.ID {
		t.Error("expected parent id to be kept")
	}

	_, err = s.AppendUpdate(ctx, b.ID.String(), UpdateInput{Status: StatusInProgress, Comment: "cross", ParentUpdateID: &ua.ID})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation for foreign parent, got %v", err)
	}
}

func TestAppendUpdate_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{StrictStatus: true})
	r, err := s.CreateReport(ctx, pothole(nil))
	if err != nil {
		t.Fatal(err)
	}

	const n = 12
	statuses := []string{StatusInProgress, StatusResolved, StatusClosed, StatusSubmitted}
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendUpdate(ctx, r.ID.String(), UpdateInput{
				Status:  statuses[i%len(statuses)],
				Comment: fmt.Sprintf("update %d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent append failed: %v", err)
		}
	}

	updates, err := s.ListUpdates(ctx, r.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != n {
		t.Fatalf("expected %d updates, got %d", n, len(updates))
	}
	seen := map[string]bool{}
	for i, u := range updates {
		if u.Seq != i+1 {
			t.Errorf("expected seq %d at position %d, got %d", i+1, i, u.Seq)
		}
		if i > 0 && !u.CreatedAt.After(updates[i-1].CreatedAt) {
			t.Errorf("created_at not increasing at %d", i)
		}
		if seen[u.ID.String()] {
			t.Errorf("duplicate update id %s", u.ID)
		}
		seen[u.ID.String()] = true
	}

	got, _ := s.GetReport(ctx, r.ID.String())
	if got.Status != updates[n-1].StatusChange {
		t.Errorf("status %q does not match last update %q", got.Status, updates[n-1].StatusChange)
	}
	if got.ResolvedAt == nil {
		t.Error("some update was terminal, resolved_at must be set")
	}
}

func TestListReports(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{next: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), step: time.Minute}
	s := newTestStore(t, Options{Now: clock.Now})

	alice, bob := "alice", "bob"
	var ids []string
	for i := 0; i < 5; i++ {
		owner := &alice
		if i%2 == 1 {
			owner = &bob
		}
		r, err := s.CreateReport(ctx, pothole(owner))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, r.ID.String())
	}

	all, err := s.ListReports(ctx, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 || all[0].ID.String() != ids[4] || all[4].ID.String() != ids[0] {
		t.Errorf("expected newest first, got %d reports", len(all))
	}

	limited, _ := s.ListReports(ctx, ListOptions{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("expected 2 with limit, got %d", len(limited))
	}

	mine, _ := s.ListReports(ctx, ListOptions{OwnerID: &bob})
	if len(mine) != 2 {
		t.Errorf("expected 2 reports for bob, got %d", len(mine))
	}
	for _, r := range mine {
		if r.UserID == nil || *r.UserID != bob {
			t.Errorf("owner filter leaked report %s", r.ID)
		}
	}
}

func TestVotes_OnePerUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})
	r, _ := s.CreateReport(ctx, pothole(nil))
	id := r.ID.String()

	first, err := s.CastVote(ctx, id, "alice", VoteUp, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.CastVote(ctx, id, "alice", VoteConfirm, "saw it too")
	if err != nil {
		t.Fatal(err)
	}
	if second.VoteType != VoteConfirm || second.Comment != "saw it too" {
		t.Errorf("repeat vote should replace the first, got %+v", second)
	}
	if second.ID != first.ID {
		t.Errorf("expected the same vote row to be updated")
	}
	if _, err := s.CastVote(ctx, id, "bob", VoteDown, ""); err != nil {
		t.Fatal(err)
	}

	sum, err := s.VoteSummary(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Upvotes != 0 || sum.Confirms != 1 || sum.Downvotes != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}

	if _, err := s.CastVote(ctx, id, "carol", "meh", ""); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation for unknown vote type, got %v", err)
	}
	if _, err := s.CastVote(ctx, "00000000-0000-0000-0000-000000000000", "carol", VoteUp, ""); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestDeleteReport_Cascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{StrictStatus: true})
	r, _ := s.CreateReport(ctx, pothole(nil))
	id := r.ID.String()
	if _, err := s.AppendUpdate(ctx, id, UpdateInput{Status: StatusInProgress, Comment: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CastVote(ctx, id, "alice", VoteUp, ""); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteReport(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetReport(ctx, id); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not_found after delete, got %v", err)
	}
	var n int64
	s.db.Model(&ReportUpdate{}).Where("report_id = ?", r.ID).Count(&n)
	if n != 0 {
		t.Errorf("expected updates removed, found %d", n)
	}
	s.db.Model(&Vote{}).Where("report_id = ?", r.ID).Count(&n)
	if n != 0 {
		t.Errorf("expected votes removed, found %d", n)
	}
	if err := s.DeleteReport(ctx, id); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("second delete should be not_found, got %v", err)
	}
}

func TestPoints_FilterConjunction(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{next: time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC), step: 24 * time.Hour}
	s := newTestStore(t, Options{StrictStatus: true, Now: clock.Now})

	mk := func(category string, resolve bool) string {
		in := pothole(nil)
		in.CategoryID = category
		r, err := s.CreateReport(ctx, in)
		if err != nil {
			t.Fatal(err)
		}
		if resolve {
			if _, err := s.AppendUpdate(ctx, r.ID.String(), UpdateInput{Status: StatusResolved, Comment: "ok"}); err != nil {
				t.Fatal(err)
			}
		}
		return r.ID.String()
	}
	want := mk("infrastructure", true)
	mk("infrastructure", false)
	mk("traffic", true)

	got, err := s.Points(ctx, Filter{CategoryIDs: []string{"infrastructure"}, Statuses: []string{StatusResolved}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID.String() != want {
		t.Fatalf("expected only %s, got %d rows", want, len(got))
	}

	none, err := s.Points(ctx, Filter{CategoryIDs: []string{"noise"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("expected empty result, got %d", len(none))
	}

	all, _ := s.Points(ctx, Filter{})
	start := all[1].CreatedAt
	end := all[2].CreatedAt
	window, _ := s.Points(ctx, Filter{Start: &start, End: &end})
	if len(window) != 1 || window[0].ID != all[1].ID {
		t.Errorf("expected [start, end) to select only the middle report, got %d", len(window))
	}
}

func TestNearby(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{next: time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC), step: time.Hour}
	s := newTestStore(t, Options{Now: clock.Now})

	mk := func(lon, lat float64) string {
		in := pothole(nil)
		in.Longitude, in.Latitude = lon, lat
		r, err := s.CreateReport(ctx, in)
		if err != nil {
			t.Fatal(err)
		}
		return r.ID.String()
	}
	old := mk(-97.7431, 30.2672)   // same spot, oldest
	far := mk(-97.7000, 30.3000)   // ~5km away
	near := mk(-97.7440, 30.2680)  // ~120m away
	exact := mk(-97.7431, 30.2672) // same spot, newest
	center := geo.Point{Lon: -97.7431, Lat: 30.2672}

	all, err := s.Nearby(ctx, center, time.Date(2025, 4, 19, 0, 0, 0, 0, time.UTC), 500)
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, n := range all {
		order = append(order, n.Report.ID.String())
		if n.Report.ID.String() == far {
			t.Error("report outside radius returned")
		}
	}
	if len(order) != 3 || order[0] != exact || order[1] != old || order[2] != near {
		t.Errorf("expected [exact old near] by distance then recency, got %v", order)
	}

	recent, _ := s.Nearby(ctx, center, time.Date(2025, 4, 20, 1, 30, 0, 0, time.UTC), 500)
	for _, n := range recent {
		if n.Report.ID.String() == old {
			t.Error("report outside time window returned")
		}
	}

	if _, err := s.Nearby(ctx, center, time.Time{}, 0); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation for zero radius, got %v", err)
	}
}
