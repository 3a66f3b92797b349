package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/spanline/internal/fixtures"
	"github.com/okian/spanline/pkg/logger"
)

func main() {
	var (
		outDir = flag.String("out", "data", "Directory receiving <site>/<table>.parquet")
		sites  = flag.String("sites", "chi_uc,chi_tacc", "Comma separated site names")
		start  = flag.String("start", "2024-01-01", "First day of the synthetic schedule (YYYY-MM-DD)")
		hosts  = flag.Int("hosts", 4, "Hosts per site")
		leases = flag.Int("leases", 6, "Leases per site")
		legacy = flag.Bool("legacy", true, "Include legacy usage rows")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("fixtures")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	day, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Error(ctx, "invalid start", logger.String("start", *start), logger.Error(err))
		stop()
		os.Exit(1)
	}

	for _, site := range strings.Split(*sites, ",") {
		site = strings.TrimSpace(site)
		if site == "" {
			continue
		}
		cfg := fixtures.DefaultConfig(site, day)
		cfg.Hosts, cfg.Leases, cfg.Legacy = *hosts, *leases, *legacy

		paths, err := fixtures.Write(ctx, *outDir, fixtures.Generate(cfg))
		if err != nil {
			log.Error(ctx, "writing fixtures failed", logger.String("site", site), logger.Error(err))
			stop()
			os.Exit(1)
		}
		log.Info(ctx, "fixtures written", logger.String("site", site), logger.Int("tables", len(paths)))
	}
}
