package sim

import (
	"context"
	"testing"
	"time"

	"github.com/projecteru2/core/log"
	coretypes "github.com/projecteru2/core/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/projecteru2/rwlock/lock"
	"github.com/projecteru2/rwlock/types"
)

func TestMain(m *testing.M) {
	_ = log.SetupLog(context.TODO(), &coretypes.ServerLogConfig{Level: "error"}, "")
	goleak.VerifyTestMain(m)
}

func TestRunAllPolicies(t *testing.T) {
	for _, policy := range lock.Policies() {
		t.Run(string(policy), func(t *testing.T) {
			opts := Options{
				Policy:       policy,
				Readers:      3,
				Writers:      2,
				Iterations:   4,
				MaxJitter:    time.Millisecond,
				MaxReadHold:  time.Millisecond,
				MaxWriteHold: time.Millisecond,
				Seed:         42,
			}
			report, err := Run(context.Background(), opts)
			require.NoError(t, err)

			require.NotEmpty(t, report.ID)
			require.Equal(t, string(policy), report.Policy)
			require.EqualValues(t, 42, report.Seed)
			require.Len(t, report.Trace, 20)
			require.Equal(t, 12, report.Stats[types.KindReader].Admissions)
			require.Equal(t, 8, report.Stats[types.KindWriter].Admissions)

			// Admission sequence numbers are dense and start at 1.
			for i, a := range report.Trace {
				require.Equal(t, i+1, a.Seq)
				require.NotEmpty(t, a.Worker)
			}
		})
	}
}

func TestRunPicksSeed(t *testing.T) {
	report, err := Run(context.Background(), Options{
		Policy:     lock.Fair,
		Readers:    1,
		Iterations: 1,
	})
	require.NoError(t, err)
	require.NotZero(t, report.Seed)
	require.Equal(t, 1, report.Stats[types.KindReader].Admissions)
	require.Equal(t, 0, report.Stats[types.KindWriter].Admissions)
}

func TestRunNoWorkers(t *testing.T) {
	_, err := Run(context.Background(), Options{Policy: lock.Fair})
	require.Error(t, err)
}

func TestRunUnknownPolicy(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Policy:  lock.Policy("lifo"),
		Readers: 1,
	})
	require.Error(t, err)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, Options{
		Policy:     lock.WriterPriority,
		Readers:    2,
		Writers:    2,
		Iterations: 3,
	})
	require.ErrorIs(t, err, context.Canceled)
}
