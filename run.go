package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type connectFunc func(ctx context.Context, dbType DatabaseType, url string, opts providerOptions) (SchemaProvider, error)

// runRequest is everything one comparison run needs.
type runRequest struct {
	Pair      DatabasePair
	Language  Language
	Ignore    []DiffKind
	OutputDir string
	Options   providerOptions

	connect connectFunc
	now     func() time.Time
}

// generateReport connects both databases, snapshots them, diffs and writes
// the report. Progress goes to bus, which is always closed on return: with
// Finish on success, or with exactly one ErrorEvent on failure.
func generateReport(ctx context.Context, req runRequest, bus *Bus, log logrus.FieldLogger) (string, error) {
	path, err := runStages(ctx, req, bus, log)
	if err != nil {
		log.WithError(err).Error("report generation failed")
		bus.Fail(err)
		return "", err
	}
	log.WithField("path", path).Info("report written")
	bus.Finish()
	return path, nil
}

func runStages(ctx context.Context, req runRequest, bus *Bus, log logrus.FieldLogger) (string, error) {
	connect := req.connect
	if connect == nil {
		connect = connectSource
	}
	now := req.now
	if now == nil {
		now = time.Now
	}

	dbType, err := parseDatabaseType(req.Pair.DatabaseType)
	if err != nil {
		return "", err
	}
	opts := req.Options
	opts.Schema = req.Pair.Schema

	bus.Emit(StageEvent{Stage: StageStart})

	base, err := connectRole(ctx, connect, RoleBase, dbType, req.Pair.BaseConnection, opts, log)
	if err != nil {
		return "", err
	}
	defer base.Close()

	target, err := connectRole(ctx, connect, RoleTarget, dbType, req.Pair.TargetConnection, opts, log)
	if err != nil {
		return "", err
	}
	defer target.Close()

	bus.Emit(StageEvent{Stage: StageFetchingBaseTableList})
	baseSnap, err := fetchSnapshot(ctx, base, StageFetchingBaseTableList, bus, log.WithField("role", RoleBase))
	if err != nil {
		return "", err
	}

	bus.Emit(StageEvent{Stage: StageFetchingTargetTableList})
	targetSnap, err := fetchSnapshot(ctx, target, StageFetchingTargetTableList, bus, log.WithField("role", RoleTarget))
	if err != nil {
		return "", err
	}

	bus.Emit(StageEvent{Stage: StageComparingTables})
	report := compareSnapshots(baseSnap, targetSnap, req.Language, req.Ignore, bus)
	log.WithField("tables", len(report.Tables)).Info("comparison done")

	bus.Emit(StageEvent{Stage: StageSavingReportFile})
	return writeReport(req.OutputDir, report, now())
}

func connectRole(ctx context.Context, connect connectFunc, role Role, dbType DatabaseType, url string, opts providerOptions, log logrus.FieldLogger) (SchemaProvider, error) {
	opts.Logger = log.WithField("role", role)
	p, err := connect(ctx, dbType, url, opts)
	if err != nil {
		var ce *ConnectionError
		if errors.As(err, &ce) {
			ce.Role = role
			return nil, ce
		}
		return nil, &ConnectionError{Role: role, Engine: string(dbType), Err: err}
	}
	return p, nil
}

// fetchSnapshot lists and describes every table, reporting i/total after
// each one. Zero tables still produce one 0/0 event.
func fetchSnapshot(ctx context.Context, p SchemaProvider, stage Stage, bus *Bus, log logrus.FieldLogger) (Snapshot, error) {
	names, err := p.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	total := len(names)
	log.WithField("tables", total).Debug("listed tables")

	snap := make(Snapshot, total)
	if total == 0 {
		bus.Emit(ProgressEvent{Stage: stage, Current: 0, Total: 0})
		return snap, nil
	}
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := p.DescribeTable(ctx, name)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, queryErr("describe table", name, fmt.Errorf("provider returned no table"))
		}
		snap[name] = t
		bus.Emit(ProgressEvent{Stage: stage, Current: i + 1, Total: total})
	}
	return snap, nil
}

// compareSnapshots diffs table by table so progress can be reported as
// 0/total, then i/total after each base table.
func compareSnapshots(base, target Snapshot, lang Language, ignore []DiffKind, bus *Bus) DiffReport {
	names := base.TableNames()
	total := len(names)
	opts := DiffOptions{Ignore: ignore}

	bus.Emit(ProgressEvent{Stage: StageComparingTables, Current: 0, Total: total})
	var diffs []Difference
	for i, name := range names {
		diffs = append(diffs, diffTable(name, base[name], target, opts)...)
		bus.Emit(ProgressEvent{Stage: StageComparingTables, Current: i + 1, Total: total})
	}
	return buildReport(diffs, newPrinter(lang))
}
