package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tallerpro/checkup/internal/core/catalog"
	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/core/config"
	"github.com/tallerpro/checkup/internal/core/eventbus/testbus"
	"github.com/tallerpro/checkup/internal/core/outbox"
	"github.com/tallerpro/checkup/internal/data/db"
	"github.com/tallerpro/checkup/internal/data/stores"
	"github.com/tallerpro/checkup/internal/remote"
)

func brakeTemplate() checklist.Template {
	return checklist.Template{
		ID:       "tmpl-brakes",
		Name:     "Brake Service",
		Category: "brakes",
		Items: []checklist.Item{
			{ID: "pads", Question: "Pads replaced?", AnswerType: checklist.AnswerBoolean, DisplayOrder: 1, Required: true},
			{ID: "torque", Question: "Wheel torque (Nm)", AnswerType: checklist.AnswerNumber, DisplayOrder: 2, Required: true},
			{ID: "notes", Question: "Additional notes", AnswerType: checklist.AnswerText, DisplayOrder: 3, Required: false},
		},
	}
}

// fakeRemote is an in-memory checklist service. Individual methods can be
// scripted to fail with unavailability or a permanent rejection.
type fakeRemote struct {
	mu sync.Mutex

	fail   map[string]bool  // method -> return UnavailableError
	reject map[string]error // method -> permanent error

	orders    map[string]remote.Order
	templates map[string]checklist.Template
	instances map[string]checklist.Instance // by instance ID
	byOrder   map[string]string
	finalized map[string]string // idempotency key -> instance ID

	calls  []string
	nextID int
}

func newFakeRemote() *fakeRemote {
	tmpl := brakeTemplate()
	return &fakeRemote{
		fail:   make(map[string]bool),
		reject: make(map[string]error),
		orders: map[string]remote.Order{
			"order-1": {ID: "order-1", Category: "brakes", Status: "in_service", ChecklistRequired: true},
			"order-2": {ID: "order-2", Category: "brakes", Status: "quoted", ChecklistRequired: false},
		},
		templates: map[string]checklist.Template{tmpl.Category: tmpl},
		instances: make(map[string]checklist.Instance),
		byOrder:   make(map[string]string),
		finalized: make(map[string]string),
	}
}

func (f *fakeRemote) setFail(method string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = v
}

func (f *fakeRemote) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range []string{"FetchOrder", "FetchTemplate", "FetchInstanceByOrder", "CreateInstance", "UpdateState", "SubmitResponse", "FinalizeInstance"} {
		f.fail[m] = v
	}
}

func (f *fakeRemote) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

// gate records the call and returns any scripted failure. Callers hold no
// lock; gate takes and releases it.
func (f *fakeRemote) gate(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if f.fail[method] {
		return &remote.UnavailableError{Op: method, Err: fmt.Errorf("scripted outage")}
	}
	if err := f.reject[method]; err != nil {
		return err
	}
	return nil
}

func (f *fakeRemote) FetchOrder(_ context.Context, orderID string) (remote.Order, error) {
	if err := f.gate("FetchOrder"); err != nil {
		return remote.Order{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return remote.Order{}, remote.ErrNotFound
	}
	return o, nil
}

func (f *fakeRemote) FetchTemplate(_ context.Context, category string) (checklist.Template, error) {
	if err := f.gate("FetchTemplate"); err != nil {
		return checklist.Template{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tmpl, ok := f.templates[category]
	if !ok {
		return checklist.Template{}, remote.ErrNotFound
	}
	return tmpl, nil
}

func (f *fakeRemote) FetchInstanceByOrder(_ context.Context, orderID string) (checklist.Instance, error) {
	if err := f.gate("FetchInstanceByOrder"); err != nil {
		return checklist.Instance{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byOrder[orderID]
	if !ok {
		return checklist.Instance{}, remote.ErrNotFound
	}
	return f.instances[id].Clone(), nil
}

func (f *fakeRemote) CreateInstance(_ context.Context, orderID, templateID string) (checklist.Instance, error) {
	if err := f.gate("CreateInstance"); err != nil {
		return checklist.Instance{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order := f.orders[orderID]
	f.nextID++
	inst := checklist.Start(f.templates[order.Category], fmt.Sprintf("srv-%d", f.nextID), orderID, time.Now())
	f.instances[inst.ID] = inst
	f.byOrder[orderID] = inst.ID
	return inst.Clone(), nil
}

func (f *fakeRemote) UpdateState(_ context.Context, instanceID string, kind outbox.Kind) (checklist.Instance, error) {
	if err := f.gate("UpdateState"); err != nil {
		return checklist.Instance{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return checklist.Instance{}, remote.ErrNotFound
	}
	switch kind {
	case outbox.KindPause:
		inst.State = checklist.StatePaused
	case outbox.KindResume:
		inst.State = checklist.StateInProgress
	}
	f.instances[instanceID] = inst
	return inst.Clone(), nil
}

func (f *fakeRemote) SubmitResponse(_ context.Context, instanceID string, resp checklist.Response) (checklist.Response, error) {
	if err := f.gate("SubmitResponse"); err != nil {
		return checklist.Response{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return checklist.Response{}, remote.ErrNotFound
	}
	replaced := false
	for i := range inst.Responses {
		if inst.Responses[i].ItemID == resp.ItemID {
			inst.Responses[i] = resp
			replaced = true
			break
		}
	}
	if !replaced {
		inst.Responses = append(inst.Responses, resp)
	}
	f.instances[instanceID] = inst
	return resp, nil
}

func (f *fakeRemote) FinalizeInstance(_ context.Context, instanceID string, in checklist.FinalizeInput, idempotencyKey string) (checklist.Instance, error) {
	if err := f.gate("FinalizeInstance"); err != nil {
		return checklist.Instance{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if prior, ok := f.finalized[idempotencyKey]; ok {
		return f.instances[prior].Clone(), nil
	}
	inst, ok := f.instances[instanceID]
	if !ok {
		return checklist.Instance{}, remote.ErrNotFound
	}
	now := time.Now()
	inst.State = checklist.StateFinalized
	inst.FinalizedAt = &now
	fin := in
	inst.Finalization = &fin
	f.instances[instanceID] = inst
	f.finalized[idempotencyKey] = instanceID
	return inst.Clone(), nil
}

type testEnv struct {
	store *stores.InstanceStore
	fake  *fakeRemote
	svc   *Service
	rec   *Reconciler
	bus   *testbus.Bus
	now   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open("", db.OpenOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	fake := newFakeRemote()
	cfg := config.DefaultConfig()
	bus := testbus.New(t)

	env := &testEnv{
		store: stores.NewInstanceStore(database),
		fake:  fake,
		bus:   bus,
		now:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(env.store, fake, catalog.New(fake), bus.EventBus, &cfg, zerolog.Nop())
	env.svc.now = func() time.Time { return env.now }
	env.rec = NewReconciler(env.svc, zerolog.Nop())
	return env
}

// advance moves the engine clock forward.
func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

// record fetches the stored order record, failing the test if absent.
func (env *testEnv) record(t *testing.T, orderID string) stores.OrderRecord {
	t.Helper()
	rec, err := env.store.Get(context.Background(), orderID)
	require.NoError(t, err)
	return rec
}

// completeRequired answers every required item of the brake template.
func (env *testEnv) completeRequired(t *testing.T, orderID string) {
	t.Helper()
	ctx := context.Background()
	res, err := env.svc.Respond(ctx, orderID, "pads", checklist.BoolValue(true))
	require.NoError(t, err)
	require.NotEqual(t, StatusRejected, res.Status)
	res, err = env.svc.Respond(ctx, orderID, "torque", checklist.NumberValue(110))
	require.NoError(t, err)
	require.NotEqual(t, StatusRejected, res.Status)
}
