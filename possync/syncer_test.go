// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory Backend with per-call fault injection. It
// mimics the real backend's conditional write: creating an id that already
// exists fails with the conditional-check code.
type fakeBackend struct {
	mu      sync.Mutex
	records map[string]map[string]map[string]any

	createCalls int
	updateCalls int
	deleteCalls int
	listCalls   int

	createErr func(typeName, id string) error
	deleteErr error
	listErr   error

	inFlight      int
	maxConcurrent int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{records: make(map[string]map[string]map[string]any)}
}

func (f *fakeBackend) typeRecords(typeName string) map[string]map[string]any {
	if f.records[typeName] == nil {
		f.records[typeName] = make(map[string]map[string]any)
	}
	return f.records[typeName]
}

func (f *fakeBackend) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxConcurrent {
		f.maxConcurrent = f.inFlight
	}
	f.mu.Unlock()
}

func (f *fakeBackend) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeBackend) Create(ctx context.Context, typeName string, input map[string]any) (map[string]any, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	id, _ := input["id"].(string)
	if f.createErr != nil {
		if err := f.createErr(typeName, id); err != nil {
			return nil, err
		}
	}
	recs := f.typeRecords(typeName)
	if _, exists := recs[id]; exists {
		return nil, &BackendError{
			Code:    CodeConditionalCheckFailed,
			Type:    "DynamoDB:ConditionalCheckFailedException",
			Message: "The conditional request failed",
		}
	}
	recs[id] = cloneObj(input)
	return cloneObj(input), nil
}

func (f *fakeBackend) Update(ctx context.Context, typeName string, input map[string]any) (map[string]any, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updateCalls++
	id, _ := input["id"].(string)
	f.typeRecords(typeName)[id] = cloneObj(input)
	return cloneObj(input), nil
}

func (f *fakeBackend) Delete(ctx context.Context, typeName string, id string) error {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.typeRecords(typeName), id)
	return nil
}

func (f *fakeBackend) List(ctx context.Context, typeName string, limit int) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []map[string]any
	for _, obj := range f.typeRecords(typeName) {
		out = append(out, cloneObj(obj))
	}
	return out, nil
}

func cloneObj(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

func (f *fakeBackend) has(typeName, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.typeRecords(typeName)[id]
	return ok
}

// --- push ---

func TestSyncPushesPendingRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewCustomerRepo(store, nil)
	backend := newFakeBackend()
	svc := NewCustomerSync(repo, backend, nil)

	c := &Customer{Name: "Dana", Phone: "555-0101"}
	require.NoError(t, repo.Insert(ctx, c))

	result, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, SyncStats{Total: 1, Synced: 1, Failed: 0, Skipped: 1}, result.Stats)

	require.True(t, backend.has(EntityCustomer, c.ID))
	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, got.IsLocalOnly)
	require.Equal(t, c.ID, got.AmplifyID)
}

func TestSyncPushIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewCustomerRepo(store, nil)
	backend := newFakeBackend()
	svc := NewCustomerSync(repo, backend, nil)

	require.NoError(t, repo.Insert(ctx, &Customer{Name: "Dana", Phone: "1"}))

	_, err := svc.Sync(ctx)
	require.NoError(t, err)
	firstCreates := backend.createCalls

	// Second pass with no local edits uploads nothing.
	result, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 0, result.Stats.Total)
	require.Equal(t, firstCreates, backend.createCalls)
}

func TestCreateFallsBackToUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewCustomerRepo(store, nil)
	backend := newFakeBackend()
	svc := NewCustomerSync(repo, backend, nil)

	// The backend already has the record from a previous pass whose
	// mark-synced write was lost.
	c := &Customer{SyncEnvelope: SyncEnvelope{ID: "c1"}, Name: "Dana", Phone: "1"}
	require.NoError(t, repo.Insert(ctx, c))
	backend.typeRecords(EntityCustomer)["c1"] = map[string]any{"id": "c1", "name": "Stale", "phone": "1"}

	result, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.Stats.Synced)
	require.Equal(t, 1, backend.updateCalls, "create must fall back to update")

	got, _ := repo.FindByID(ctx, "c1")
	require.False(t, got.IsLocalOnly)
}

func TestSoftDeletePropagatesThenPurges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewCustomerRepo(store, nil)
	backend := newFakeBackend()
	svc := NewCustomerSync(repo, backend, nil)

	c := &Customer{Name: "Dana", Phone: "1"}
	require.NoError(t, repo.Insert(ctx, c))
	_, err := svc.Sync(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, c.ID))
	result, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)

	require.Equal(t, 1, backend.deleteCalls)
	require.False(t, backend.has(EntityCustomer, c.ID))
	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.Nil(t, got, "local copy must be purged after the remote delete")
}

func TestNeverSyncedDeleteSkipsBackend(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewCustomerRepo(store, nil)
	backend := newFakeBackend()
	svc := NewCustomerSync(repo, backend, nil)

	c := &Customer{Name: "Dana", Phone: "1"}
	require.NoError(t, repo.Insert(ctx, c))
	require.NoError(t, repo.Delete(ctx, c.ID))

	result, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 0, backend.deleteCalls, "never-synced records must not produce remote calls")
	require.Equal(t, 0, backend.createCalls)
}

func TestFailedDeleteStaysPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewCustomerRepo(store, nil)
	backend := newFakeBackend()
	svc := NewCustomerSync(repo, backend, nil)

	c := &Customer{Name: "Dana", Phone: "1"}
	require.NoError(t, repo.Insert(ctx, c))
	_, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, c.ID))

	backend.deleteErr = fmt.Errorf("network down")
	result, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 1, result.Stats.Failed)

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "soft-deleted record must survive a failed remote delete")
	require.True(t, got.IsDeleted)

	// Retry after the network recovers.
	backend.deleteErr = nil
	result, err = svc.Sync(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	got, _ = repo.FindByID(ctx, c.ID)
	require.Nil(t, got)
}

func TestPartialFailureIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewCustomerRepo(store, nil)
	backend := newFakeBackend()
	svc := NewCustomerSync(repo, backend, nil)

	a := &Customer{SyncEnvelope: SyncEnvelope{ID: "a"}, Name: "A", Phone: "1"}
	b := &Customer{SyncEnvelope: SyncEnvelope{ID: "b"}, Name: "B", Phone: "2"}
	c := &Customer{SyncEnvelope: SyncEnvelope{ID: "c"}, Name: "C", Phone: "3"}
	for _, e := range []*Customer{a, b, c} {
		require.NoError(t, repo.Insert(ctx, e))
	}

	backend.createErr = func(typeName, id string) error {
		if id == "b" {
			return fmt.Errorf("record rejected")
		}
		return nil
	}

	result, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 3, result.Stats.Total)
	require.Equal(t, 1, result.Stats.Failed)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "b")

	require.True(t, backend.has(EntityCustomer, "a"))
	require.True(t, backend.has(EntityCustomer, "c"))

	// Only the failed record is still pending.
	pending, err := repo.PendingPush(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "b", pending[0].ID)

	// The retry pass converges.
	backend.createErr = nil
	result, err = svc.Sync(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.Stats.Total)
}

// --- pull ---

func TestPullInsertsRemoteRecordsOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewCustomerRepo(store, nil)
	backend := newFakeBackend()
	svc := NewCustomerSync(repo, backend, nil)

	backend.typeRecords(EntityCustomer)["r1"] = map[string]any{"id": "r1", "name": "Remote", "phone": "9"}

	result, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.Stats.Synced)

	got, err := repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.False(t, got.IsLocalOnly)
	require.Equal(t, "r1", got.AmplifyID)

	// Second pass recognizes the record and does not duplicate it.
	result, err = svc.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Stats.Skipped)
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestPullNeverOverwritesPendingPush(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewCustomerRepo(store, nil)
	backend := newFakeBackend()
	svc := NewCustomerSync(repo, backend, nil)

	// Local edit pending push, remote has an older copy under the same id.
	c := &Customer{SyncEnvelope: SyncEnvelope{ID: "c1"}, Name: "Local Edit", Phone: "1"}
	require.NoError(t, repo.Insert(ctx, c))
	backend.typeRecords(EntityCustomer)["c1"] = map[string]any{"id": "c1", "name": "Remote Copy", "phone": "1"}

	_, err := svc.Sync(ctx)
	require.NoError(t, err)

	got, _ := repo.FindByID(ctx, "c1")
	require.Equal(t, "Local Edit", got.Name, "push wins; the pull must not clobber the local edit")
}

func TestPullFailureIsReportedNotFatal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewCustomerRepo(store, nil)
	backend := newFakeBackend()
	svc := NewCustomerSync(repo, backend, nil)

	require.NoError(t, repo.Insert(ctx, &Customer{Name: "Dana", Phone: "1"}))
	backend.listErr = fmt.Errorf("list timed out")

	result, err := svc.Sync(ctx)
	require.NoError(t, err, "pull failure must not abort the pass")
	require.False(t, result.Success)
	require.Equal(t, 1, result.Stats.Synced, "the push half still completed")
	require.Len(t, result.Errors, 1)
	require.True(t, strings.HasPrefix(result.Errors[0], "Download failed: "))
}

func TestSyncOnClosedStore(t *testing.T) {
	store := newTestStore(t)
	repo, _ := NewCustomerRepo(store, nil)
	svc := NewCustomerSync(repo, newFakeBackend(), nil)

	require.NoError(t, store.Close())
	_, err := svc.Sync(context.Background())
	require.ErrorIs(t, err, ErrDatabaseNotInitialized)
}

// --- order batching ---

func TestOrderSyncBatchesPushes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewOrderRepo(store, nil)
	backend := newFakeBackend()
	svc := NewOrderSync(repo, backend, nil)

	for i := 0; i < 12; i++ {
		o := &Order{
			CustomerID: "c1",
			Items:      []OrderItem{{ProductID: "p1", ProductName: "Shirt", Price: 3.5, Quantity: 1}},
			Subtotal:   3.5, Tax: 0.28, Total: 3.78,
			Status: OrderStatusPending,
		}
		require.NoError(t, repo.Insert(ctx, o))
	}

	result, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 12, result.Stats.Total)
	require.Equal(t, 12, result.Stats.Synced)
	require.LessOrEqual(t, backend.maxConcurrent, orderPushBatchSize,
		"no more than one batch of requests may be in flight")

	pending, err := repo.PendingPush(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestOrderEndToEnd(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo, _ := NewOrderRepo(store, nil)
	backend := newFakeBackend()
	svc := NewOrderSync(repo, backend, nil)

	// Three orders taken offline.
	var ids []string
	for i := 0; i < 3; i++ {
		o := &Order{
			CustomerID: "c1",
			Items:      []OrderItem{{ProductID: "p1", ProductName: "Shirt", Price: 3.5, Quantity: i + 1}},
			Subtotal:   LineTotal(3.5, i+1, 0),
			Status:     OrderStatusPending,
		}
		o.Total = o.Subtotal
		require.NoError(t, repo.Insert(ctx, o))
		ids = append(ids, o.ID)
	}

	result, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	for _, id := range ids {
		require.True(t, backend.has(EntityOrder, id))
		got, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		require.False(t, got.IsLocalOnly)
	}

	// A second register pulls all three.
	store2 := newTestStore(t)
	repo2, _ := NewOrderRepo(store2, nil)
	svc2 := NewOrderSync(repo2, backend, nil)
	result, err = svc2.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, result.Stats.Synced)
	n, err := repo2.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
