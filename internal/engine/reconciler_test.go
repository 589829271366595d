package engine

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallerpro/checkup/internal/core/checklist"
	"github.com/tallerpro/checkup/internal/core/outbox"
	"github.com/tallerpro/checkup/internal/remote"
)

// queueOffline starts an instance online and queues the given item answers
// while the submit endpoint is down.
func queueOffline(t *testing.T, env *testEnv, orderID string, items ...string) {
	t.Helper()
	ctx := context.Background()
	_, err := env.svc.Start(ctx, orderID)
	require.NoError(t, err)

	env.fake.setFail("SubmitResponse", true)
	for _, item := range items {
		var res Result
		var v checklist.Value
		switch item {
		case "pads":
			v = checklist.BoolValue(true)
		case "torque":
			v = checklist.NumberValue(110)
		default:
			v = checklist.TextValue("noted")
		}
		res, err = env.svc.Respond(ctx, orderID, item, v)
		require.NoError(t, err)
		require.Equal(t, StatusPendingSync, res.Status)
	}
	env.fake.setFail("SubmitResponse", false)
}

func TestReconcilerDrain(t *testing.T) {
	ctx := context.Background()

	t.Run("replays queue in order and empties it", func(t *testing.T) {
		env := newTestEnv(t)
		queueOffline(t, env, "order-1", "pads", "torque", "notes")

		require.NoError(t, env.rec.Drain(ctx))

		rec := env.record(t, "order-1")
		assert.Empty(t, rec.Pending)
		assert.Empty(t, rec.SyncMarks)
		assert.NotNil(t, rec.LastSyncedAt)

		// Server received every answer.
		serverInst, err := env.fake.FetchInstanceByOrder(ctx, "order-1")
		require.NoError(t, err)
		assert.Len(t, serverInst.Responses, 3)

		// Local derived state survived the post-drain reconcile.
		assert.Equal(t, 100, rec.Instance.ProgressPercent)
		assert.Equal(t, checklist.StateReadyToFinalize, rec.Instance.State)
	})

	t.Run("stops at first unavailable mutation", func(t *testing.T) {
		env := newTestEnv(t)
		queueOffline(t, env, "order-1", "pads", "torque")

		env.fake.setFail("SubmitResponse", true)
		require.NoError(t, env.rec.Drain(ctx))

		rec := env.record(t, "order-1")
		require.Len(t, rec.Pending, 2)
		assert.Equal(t, 1, rec.Pending[0].Attempts)
		require.NotNil(t, rec.Pending[0].LastAttemptAt)
		assert.Equal(t, 0, rec.Pending[1].Attempts)
	})

	t.Run("failed mutation waits out its backoff window", func(t *testing.T) {
		env := newTestEnv(t)
		queueOffline(t, env, "order-1", "pads")

		env.fake.setFail("SubmitResponse", true)
		require.NoError(t, env.rec.Drain(ctx))
		env.fake.setFail("SubmitResponse", false)

		attempts := env.fake.callCount("SubmitResponse")
		require.NoError(t, env.rec.Drain(ctx))
		// Inside the backoff window nothing is retried.
		assert.Equal(t, attempts, env.fake.callCount("SubmitResponse"))

		env.advance(5 * time.Second)
		require.NoError(t, env.rec.Drain(ctx))
		rec := env.record(t, "order-1")
		assert.Empty(t, rec.Pending)
	})

	t.Run("adopts server instance id for offline-created instance", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.setFail("CreateInstance", true)

		res, err := env.svc.Start(ctx, "order-1")
		require.NoError(t, err)
		localID := res.Instance.ID

		env.fake.setFail("SubmitResponse", true)
		_, err = env.svc.Respond(ctx, "order-1", "pads", checklist.BoolValue(true))
		require.NoError(t, err)

		env.fake.setFail("CreateInstance", false)
		env.fake.setFail("SubmitResponse", false)
		require.NoError(t, env.rec.Drain(ctx))

		rec := env.record(t, "order-1")
		assert.Empty(t, rec.Pending)
		assert.NotEqual(t, localID, rec.Instance.ID)

		// The response landed on the server-side instance, not the
		// provisional local ID.
		serverInst, err := env.fake.FetchInstanceByOrder(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, rec.Instance.ID, serverInst.ID)
		_, ok := serverInst.Response("pads")
		assert.True(t, ok)
	})

	t.Run("finalize replays with the original idempotency key", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Start(ctx, "order-1")
		require.NoError(t, err)
		env.completeRequired(t, "order-1")

		env.fake.setFail("FinalizeInstance", true)
		_, err = env.svc.Finalize(ctx, "order-1", validFinalizeInput())
		require.NoError(t, err)
		key := env.record(t, "order-1").Pending[0].Finalize.IdempotencyKey

		env.fake.setFail("FinalizeInstance", true)
		require.NoError(t, env.rec.Drain(ctx))
		env.advance(time.Minute)
		env.fake.setFail("FinalizeInstance", false)
		require.NoError(t, env.rec.Drain(ctx))

		rec := env.record(t, "order-1")
		assert.Empty(t, rec.Pending)
		assert.True(t, rec.FinalizeConfirmed)
		assert.Equal(t, checklist.StateFinalized, rec.Instance.State)

		// The server saw the same key the mutation was queued with.
		env.fake.mu.Lock()
		_, seen := env.fake.finalized[key]
		env.fake.mu.Unlock()
		assert.True(t, seen)
	})

	t.Run("permanent rejection drops the mutation", func(t *testing.T) {
		env := newTestEnv(t)
		queueOffline(t, env, "order-1", "pads", "torque")

		env.fake.mu.Lock()
		env.fake.reject["SubmitResponse"] = &remote.StatusError{
			Op:   "SubmitResponse",
			Code: http.StatusUnprocessableEntity,
			Body: "item not in template version",
		}
		env.fake.mu.Unlock()

		require.NoError(t, env.rec.Drain(ctx))

		// Both were rejected and dropped; the queue is unblocked.
		rec := env.record(t, "order-1")
		assert.Empty(t, rec.Pending)
	})

	t.Run("rejected mutations revert to the server state", func(t *testing.T) {
		env := newTestEnv(t)
		queueOffline(t, env, "order-1", "pads")

		env.fake.mu.Lock()
		env.fake.reject["SubmitResponse"] = &remote.StatusError{
			Op:   "SubmitResponse",
			Code: http.StatusUnprocessableEntity,
			Body: "item not in template version",
		}
		env.fake.mu.Unlock()

		require.NoError(t, env.rec.Drain(ctx))

		// The server refused the answer, so the local optimistic copy must
		// not keep it. The drop alone is not enough; the record is refreshed
		// from the server even though nothing was replayed.
		rec := env.record(t, "order-1")
		assert.Empty(t, rec.Pending)
		assert.Empty(t, rec.SyncMarks)
		_, ok := rec.Instance.Response("pads")
		assert.False(t, ok, "server-rejected answer survived locally")
		assert.Equal(t, 0, rec.Instance.ProgressPercent)

		// A later drain pass must not resurrect anything either.
		require.NoError(t, env.rec.Drain(ctx))
		rec = env.record(t, "order-1")
		_, ok = rec.Instance.Response("pads")
		assert.False(t, ok)
	})

	t.Run("replayed blank answer stays incomplete on the server", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Start(ctx, "order-1")
		require.NoError(t, err)

		env.fake.setFail("SubmitResponse", true)
		res, err := env.svc.Respond(ctx, "order-1", "notes", checklist.TextValue(""))
		require.NoError(t, err)
		require.Equal(t, StatusPendingSync, res.Status)
		resp, ok := res.Instance.Response("notes")
		require.True(t, ok)
		require.False(t, resp.Completed)
		env.fake.setFail("SubmitResponse", false)

		require.NoError(t, env.rec.Drain(ctx))

		serverInst, err := env.fake.FetchInstanceByOrder(ctx, "order-1")
		require.NoError(t, err)
		serverResp, ok := serverInst.Response("notes")
		require.True(t, ok)
		assert.False(t, serverResp.Completed, "blank answer replayed as completed")
	})

	t.Run("drain without queued work is a no-op", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Start(ctx, "order-1")
		require.NoError(t, err)

		before := env.fake.callCount("FetchInstanceByOrder")
		require.NoError(t, env.rec.Drain(ctx))
		assert.Equal(t, before, env.fake.callCount("FetchInstanceByOrder"))
	})
}

func TestReconcilerDue(t *testing.T) {
	env := newTestEnv(t)

	fresh := outbox.Mutation{}
	assert.True(t, env.rec.due(fresh))

	last := env.now.Add(-1 * time.Second)
	tried := outbox.Mutation{Attempts: 1, LastAttemptAt: &last}
	assert.False(t, env.rec.due(tried), "base delay is 2s, only 1s elapsed")

	last = env.now.Add(-3 * time.Second)
	tried = outbox.Mutation{Attempts: 1, LastAttemptAt: &last}
	assert.True(t, env.rec.due(tried))

	// Delay doubles per attempt but never exceeds the ceiling.
	last = env.now.Add(-299 * time.Second)
	many := outbox.Mutation{Attempts: 30, LastAttemptAt: &last}
	assert.False(t, env.rec.due(many))

	last = env.now.Add(-301 * time.Second)
	many = outbox.Mutation{Attempts: 30, LastAttemptAt: &last}
	assert.True(t, env.rec.due(many))
}
