package report

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"mission-runner/internal/telemetry"
)

const defaultGreptimePort = 4001

// greptimeClient is the part of the ingester client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes trial results and reward rows to GreptimeDB.
type GreptimeDBWriter struct {
	client      greptimeClient
	trialTable  string
	rewardTable string
	log         *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port").
// Empty table names fall back to the telemetry defaults.
func NewGreptimeDBWriter(endpoint, database, trialTable, rewardTable string) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptimedb client: %w", err)
	}
	if trialTable == "" {
		trialTable = telemetry.TrialTableName
	}
	if rewardTable == "" {
		rewardTable = telemetry.RewardTableName
	}
	return &GreptimeDBWriter{client: client, trialTable: trialTable, rewardTable: rewardTable, log: slog.Default()}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	if !strings.Contains(endpoint, ":") {
		return endpoint, defaultGreptimePort, nil
	}
	host, p, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("greptimedb endpoint %q: %w", endpoint, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("greptimedb endpoint %q: invalid port", endpoint)
	}
	return host, port, nil
}

// WriteTrial inserts a single trial result.
func (w *GreptimeDBWriter) WriteTrial(r telemetry.TrialResult) error {
	return w.WriteTrials([]telemetry.TrialResult{r})
}

// WriteTrials inserts multiple trial results.
func (w *GreptimeDBWriter) WriteTrials(rows []telemetry.TrialResult) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.trialTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("run_id", types.STRING)
	tbl.AddTagColumn("experiment_id", types.STRING)
	tbl.AddTagColumn("trial", types.INT64)
	tbl.AddFieldColumn("summary", types.STRING)
	tbl.AddFieldColumn("total_reward", types.FLOAT64)
	tbl.AddFieldColumn("reward_events", types.INT64)
	tbl.AddFieldColumn("ignored_events", types.INT64)
	tbl.AddFieldColumn("turn_commands", types.INT64)
	tbl.AddFieldColumn("start_attempts", types.INT64)
	tbl.AddFieldColumn("errors", types.STRING)
	tbl.AddFieldColumn("duration_ms", types.INT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, r := range rows {
		err := tbl.AddRow(
			r.RunID, r.ExperimentID, int64(r.Trial),
			r.Summary, r.TotalReward,
			int64(r.RewardEvents), int64(r.IgnoredEvents), int64(r.TurnCommands), int64(r.StartAttempts),
			strings.Join(r.Errors, "\n"), r.Duration().Milliseconds(),
			r.Timestamp,
		)
		if err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}

// WriteReward inserts a single reward row.
func (w *GreptimeDBWriter) WriteReward(r telemetry.RewardRow) error {
	return w.WriteRewards([]telemetry.RewardRow{r})
}

// WriteRewards inserts multiple reward rows.
func (w *GreptimeDBWriter) WriteRewards(rows []telemetry.RewardRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.rewardTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("run_id", types.STRING)
	tbl.AddTagColumn("trial", types.INT64)
	tbl.AddFieldColumn("value", types.FLOAT64)
	tbl.AddFieldColumn("total", types.FLOAT64)
	tbl.AddFieldColumn("command", types.STRING)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, r := range rows {
		if err := tbl.AddRow(r.RunID, int64(r.Trial), r.Value, r.Total, r.Command, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, len(rows))
}

func (w *GreptimeDBWriter) write(tbl *table.Table, n int) error {
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.logger().Error("greptimedb write failed", "err", err)
		return err
	}
	w.logger().Debug("greptimedb rows written", "rows", n)
	return nil
}

func (w *GreptimeDBWriter) logger() *slog.Logger {
	if w.log == nil {
		return slog.Default()
	}
	return w.log
}
