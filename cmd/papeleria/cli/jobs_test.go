package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/papeleria/papeleria/jobs"
)

type stubClient struct {
	enqueued []string
}

func (s *stubClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.enqueued = append(s.enqueued, task.Type())
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (s *stubClient) Close() error { return nil }

type stubInspector struct{}

func (stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: queue, Pending: 2, Active: 1, Retry: 3}, nil
}

func (stubInspector) Close() error { return nil }

func TestTriggerCommand(t *testing.T) {
	client := &stubClient{}
	cli := &JobsCLI{client: client, inspector: stubInspector{}, retention: 24 * time.Hour}

	var out bytes.Buffer
	require.NoError(t, cli.Run(context.Background(), []string{"trigger", "low-stock-scan"}, &out))
	require.NoError(t, cli.Run(context.Background(), []string{"trigger", jobs.TaskIdempotencyCleanup}, &out))
	require.Equal(t, []string{jobs.TaskLowStockScan, jobs.TaskIdempotencyCleanup}, client.enqueued)
	require.Contains(t, out.String(), "enqueued inventory:low_stock_scan id=t-1")

	require.Error(t, cli.Run(context.Background(), []string{"trigger", "unknown"}, &out))
	require.Error(t, cli.Run(context.Background(), []string{"trigger"}, &out))
	require.Error(t, cli.Run(context.Background(), nil, &out))
}

func TestStatsCommand(t *testing.T) {
	cli := &JobsCLI{client: &stubClient{}, inspector: stubInspector{}}
	var out bytes.Buffer
	require.NoError(t, cli.Run(context.Background(), []string{"stats"}, &out))
	require.Equal(t, "queue=default pending=2 active=1 scheduled=0 retry=3\n", out.String())
}
