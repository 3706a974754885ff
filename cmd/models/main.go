package main

import (
	"fmt"
	"os"

	"flockwatch/internal/config"
	"flockwatch/internal/logger"
	"flockwatch/internal/registry"
)

const usage = `usage: models <command> [args]

commands:
  list                        list registered model versions
  get <id>                    show one version and its artifact files
  validate <id>               check a version's artifacts load cleanly
  compare <id1> <id2> [key]   compare two versions (key: mae|rmse|r2|performance_score)
  activate <id>               make a version the active model
  delete <id>                 remove a non-active version
  history                     training metrics, newest first
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load("./config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	reg, err := registry.New(cfg.Registry.Dir, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open registry at %s: %v\n", cfg.Registry.Dir, err)
		os.Exit(1)
	}

	if err := run(reg, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(reg *registry.Registry, command string, args []string) error {
	switch command {
	case "list":
		return list(reg)
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("get requires a version id")
		}
		return get(reg, args[0])
	case "validate":
		if len(args) != 1 {
			return fmt.Errorf("validate requires a version id")
		}
		return validate(reg, args[0])
	case "compare":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("compare requires two version ids and an optional metric key")
		}
		metric := registry.ComparePerfScore
		if len(args) == 3 {
			metric = args[2]
		}
		return compare(reg, args[0], args[1], metric)
	case "activate":
		if len(args) != 1 {
			return fmt.Errorf("activate requires a version id")
		}
		return reg.SetActive(args[0])
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("delete requires a version id")
		}
		return reg.Delete(args[0])
	case "history":
		return history(reg)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func list(reg *registry.Registry) error {
	versions := reg.ListVersions()
	if len(versions) == 0 {
		fmt.Println("no model versions registered")
		return nil
	}

	fmt.Printf("%-28s %-10s %-8s %-8s %-8s %s\n", "ID", "STATUS", "MAE", "R2", "SCORE", "TRAINED")
	for _, v := range versions {
		active := ""
		if v.IsActive {
			active = " *"
		}
		fmt.Printf("%-28s %-10s %-8.3f %-8.3f %-8.3f %s%s\n",
			v.ID, v.Status, v.Metrics.TestMAE, v.Metrics.TestR2, v.Metrics.PerformanceScore,
			v.TrainedAt.Format("2006-01-02 15:04"), active)
	}
	return nil
}

func get(reg *registry.Registry, id string) error {
	version, presence, err := reg.GetVersion(id)
	if err != nil {
		return err
	}

	fmt.Printf("id:           %s\n", version.ID)
	fmt.Printf("status:       %s\n", version.Status)
	fmt.Printf("active:       %v\n", version.IsActive)
	fmt.Printf("model type:   %s\n", version.ModelType)
	fmt.Printf("trained at:   %s\n", version.TrainedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("test mae:     %.4f\n", version.Metrics.TestMAE)
	fmt.Printf("test rmse:    %.4f\n", version.Metrics.TestRMSE)
	fmt.Printf("test r2:      %.4f\n", version.Metrics.TestR2)
	fmt.Printf("perf score:   %.4f\n", version.Metrics.PerformanceScore)
	fmt.Printf("samples:      %d\n", version.Metrics.NSamples)
	fmt.Printf("features:     %d\n", len(version.Features))
	fmt.Printf("artifacts:    model=%v scaler=%v features=%v metrics=%v\n",
		presence.Model, presence.Scaler, presence.Features, presence.Metrics)
	return nil
}

func validate(reg *registry.Registry, id string) error {
	report, err := reg.Validate(id)
	if err != nil {
		return err
	}

	for name, ok := range report.Checks {
		status := "ok"
		if !ok {
			status = "FAIL"
		}
		fmt.Printf("  %-12s %s\n", name, status)
	}
	for _, e := range report.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	if report.Valid {
		fmt.Printf("%s is valid\n", id)
		return nil
	}
	return fmt.Errorf("%s failed validation", id)
}

func compare(reg *registry.Registry, id1, id2, metric string) error {
	result, err := reg.Compare(id1, id2, metric)
	if err != nil {
		return err
	}

	fmt.Printf("%-20s %-14s %-14s %s\n", "METRIC", id1[:min(14, len(id1))], id2[:min(14, len(id2))], "WINNER")
	for name, mc := range result.Metrics {
		fmt.Printf("%-20s %-14.4f %-14.4f %s\n", name, mc.Value1, mc.Value2, mc.Winner)
	}
	fmt.Printf("\nranked by %s: %s\n", result.RankedBy, result.Recommendation)
	return nil
}

func history(reg *registry.Registry) error {
	entries := reg.History()
	if len(entries) == 0 {
		fmt.Println("no training history")
		return nil
	}
	for _, m := range entries {
		fmt.Printf("%-24s %-12s mae=%.4f rmse=%.4f r2=%.4f score=%.4f n=%d\n",
			m.TrainedAt, m.ModelType, m.TestMAE, m.TestRMSE, m.TestR2, m.PerformanceScore, m.NSamples)
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
