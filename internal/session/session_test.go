package session

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisync/registry/internal/model"
	"github.com/medisync/registry/internal/protocol"
	"github.com/medisync/registry/internal/repository"
	"github.com/medisync/registry/internal/repository/sqlite"
	"github.com/medisync/registry/pkg/logger"
	"github.com/medisync/registry/pkg/messaging/memory"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

func newTestRepo(t *testing.T) repository.PatientRepository {
	t.Helper()
	store := sqlite.NewStore(sqlite.Config{Path: ":memory:"})
	t.Cleanup(func() { store.Close() })
	return sqlite.NewPatientRepository(store, nil)
}

func newTestSession(t *testing.T, repo repository.PatientRepository, bus *memory.Bus) *Session {
	t.Helper()
	sess, err := New(repo, bus, nil, testLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func validRequest(firstName string) *model.RegisterPatientRequest {
	return &model.RegisterPatientRequest{
		FirstName:     firstName,
		LastName:      "Doe",
		Age:           30,
		Gender:        "Male",
		ContactNumber: "1234567890",
		Email:         "john@x.com",
	}
}

func TestSnapshotConvergenceAcrossSessions(t *testing.T) {
	bus := memory.NewBus()
	defer bus.Close()
	repo := newTestRepo(t)

	publisher := newTestSession(t, repo, bus)
	subscriber := newTestSession(t, repo, bus)

	_, err := publisher.Register(context.Background(), validRequest("John"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return subscriber.View().Total == 1
	}, time.Second, 10*time.Millisecond)

	// Field for field, same order: both sessions hold the publisher's
	// read-back list.
	assert.Equal(t, publisher.View().Patients, subscriber.View().Patients)
}

func TestSnapshotReplacesListWholesale(t *testing.T) {
	bus := memory.NewBus()
	defer bus.Close()

	sess := newTestSession(t, newTestRepo(t), bus)

	stale := []model.Patient{
		{ID: 99, FirstName: "Stale", LastName: "Entry", CreatedAt: "2026-01-01T00:00:00.000Z"},
	}
	sess.ApplySnapshot(stale)
	require.Equal(t, 1, sess.View().Total)

	fresh := []model.Patient{
		{ID: 2, FirstName: "Jane", LastName: "Doe", CreatedAt: "2026-01-02T11:00:00.000Z"},
		{ID: 1, FirstName: "John", LastName: "Doe", CreatedAt: "2026-01-02T10:00:00.000Z"},
	}
	sess.ApplySnapshot(fresh)

	view := sess.View()
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, "Jane", view.Patients[0].FirstName)
	assert.Equal(t, "John", view.Patients[1].FirstName)
}

func TestRemoteFilterChangeIsNeverRepublished(t *testing.T) {
	bus := memory.NewBus()
	defer bus.Close()
	repo := newTestRepo(t)

	origin := newTestSession(t, repo, bus)
	peer := newTestSession(t, repo, bus)

	// An observer counts every filter publish on the wire, whoever sent it.
	observer, err := bus.Open(protocol.PatientsFilterChannel)
	require.NoError(t, err)
	var published int64
	require.NoError(t, observer.Subscribe(func([]byte) {
		atomic.AddInt64(&published, 1)
	}))

	origin.SetSearch(context.Background(), "john")

	require.Eventually(t, func() bool {
		return peer.View().SearchText == "john"
	}, time.Second, 10*time.Millisecond)

	// One keystroke, one publish. A republish by the peer would arrive
	// shortly after; wait it out before counting.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&published))
	assert.Equal(t, "john", origin.View().SearchText)
}

func TestFilterSemantics(t *testing.T) {
	bus := memory.NewBus()
	defer bus.Close()

	sess := newTestSession(t, newTestRepo(t), bus)
	sess.ApplySnapshot([]model.Patient{{
		ID:            1,
		FirstName:     "John",
		LastName:      "Doe",
		Email:         "john@x.com",
		ContactNumber: "1234567890",
		CreatedAt:     "2026-01-02T10:00:00.000Z",
	}})

	ctx := context.Background()

	sess.SetSearch(ctx, "jane")
	view := sess.View()
	assert.Empty(t, view.Patients)
	assert.Equal(t, ListStateNoMatch, view.State)

	for _, q := range []string{"John", "x.com", "1234"} {
		sess.SetSearch(ctx, q)
		view = sess.View()
		require.Len(t, view.Patients, 1, "query %q", q)
		assert.Equal(t, "John", view.Patients[0].FirstName)
		assert.Equal(t, ListStateOK, view.State)
	}

	// Name matching spans the given+family concatenation.
	sess.SetSearch(ctx, "hn do")
	assert.Len(t, sess.View().Patients, 1)
}

func TestEmptyAndNoMatchAreDistinctStates(t *testing.T) {
	bus := memory.NewBus()
	defer bus.Close()

	sess := newTestSession(t, newTestRepo(t), bus)

	view := sess.View()
	assert.Equal(t, ListStateNoRecords, view.State)
	assert.Zero(t, view.Total)

	sess.ApplySnapshot([]model.Patient{{ID: 1, FirstName: "John", LastName: "Doe", CreatedAt: "2026-01-02T10:00:00.000Z"}})
	sess.SetSearch(context.Background(), "zzz")

	view = sess.View()
	assert.Equal(t, ListStateNoMatch, view.State)
	assert.Equal(t, 1, view.Total)
	assert.Empty(t, view.Patients)
}

func TestRegisterAppliesSnapshotLocally(t *testing.T) {
	bus := memory.NewBus()
	defer bus.Close()

	sess := newTestSession(t, newTestRepo(t), bus)

	patients, err := sess.Register(context.Background(), validRequest("John"))
	require.NoError(t, err)
	require.Len(t, patients, 1)

	view := sess.View()
	assert.Equal(t, 1, view.Total)
	assert.Equal(t, "John", view.Patients[0].FirstName)
	assert.Equal(t, ListStateOK, view.State)
}

func TestRegisterValidationLeavesViewUntouched(t *testing.T) {
	bus := memory.NewBus()
	defer bus.Close()

	sess := newTestSession(t, newTestRepo(t), bus)

	_, err := sess.Register(context.Background(), &model.RegisterPatientRequest{})
	require.Error(t, err)
	assert.Equal(t, ListStateNoRecords, sess.View().State)
}

func TestClosedSessionStopsReceiving(t *testing.T) {
	bus := memory.NewBus()
	defer bus.Close()
	repo := newTestRepo(t)

	publisher := newTestSession(t, repo, bus)
	closed := newTestSession(t, repo, bus)

	require.NoError(t, closed.Close())
	require.NoError(t, closed.Close())

	_, err := publisher.Register(context.Background(), validRequest("John"))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, closed.View().Total)
}

func TestRefreshRecoversFromMissedBroadcasts(t *testing.T) {
	bus := memory.NewBus()
	defer bus.Close()
	repo := newTestRepo(t)

	publisher := newTestSession(t, repo, bus)
	_, err := publisher.Register(context.Background(), validRequest("John"))
	require.NoError(t, err)

	// A session opened after the write never saw the broadcast; its initial
	// load reads the store directly.
	late := newTestSession(t, repo, bus)
	assert.Equal(t, 1, late.View().Total)

	_, err = publisher.Register(context.Background(), validRequest("Jane"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return late.View().Total == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, late.Refresh(context.Background()))
	assert.Equal(t, 2, late.View().Total)
}
