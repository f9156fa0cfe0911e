package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"paceload/internal/api"
	"paceload/internal/auth"
	"paceload/internal/export"
	"paceload/internal/service"
	"paceload/internal/store"
)

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	oc, err := a.oauthConfig()
	if err != nil {
		return err
	}
	res, err := auth.Authenticate(ctx, auth.NewOAuthConfig(*oc), os.Stdout)
	if err != nil {
		return fmt.Errorf("authentication: %w", err)
	}
	if err := auth.Save(ctx, a.db, res); err != nil {
		return fmt.Errorf("saving auth: %w", err)
	}
	fmt.Printf("\nSuccessfully authenticated as athlete %d!\n", res.AthleteID)
	return nil
}

func runSync(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	quiet := fs.Bool("q", false, "suppress progress output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := a.stravaClient(ctx)
	if err != nil {
		return err
	}

	var progress chan service.SyncProgress
	done := make(chan struct{})
	if !*quiet {
		progress = make(chan service.SyncProgress, 16)
		go func() {
			defer close(done)
			for p := range progress {
				fmt.Printf("\r%-10s %d/%d %-40.40s", p.Phase, p.Completed, p.Total, p.CurrentActivity)
			}
			fmt.Println()
		}()
	} else {
		close(done)
	}

	res, err := a.syncService(client).SyncAll(ctx, progress)
	<-done
	if res != nil {
		fmt.Printf("fetched %d, stored %d, samples %d, classified %d\n",
			res.ActivitiesFetched, res.ActivitiesStored, res.SamplesFetched, res.Classified)
		for _, e := range res.Errors {
			fmt.Fprintln(os.Stderr, "  ", e)
		}
	}
	if err != nil {
		return err
	}
	short, daily := client.RateLimitStatus()
	a.logger.Debug("strava rate limit", "short_remaining", short, "daily_remaining", daily)

	// Drain any job the sync left behind so the tables are current on exit.
	return a.worker().Drain(ctx)
}

func runZones(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: paceload zones add|show|history [flags]")
	}
	switch args[0] {
	case "add":
		return runZonesAdd(ctx, a, args[1:])
	case "show":
		return runZonesShow(ctx, a, args[1:])
	case "history":
		return runZonesHistory(ctx, a, args[1:])
	}
	return fmt.Errorf("unknown zones command %q", args[0])
}

func runZonesAdd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("zones add", flag.ContinueOnError)
	athlete := fs.Int64("athlete", 0, "athlete ID (default: logged-in athlete)")
	from := fs.String("from", "", "effective date, YYYY-MM-DD (required)")
	bounds := fs.String("bounds", "", "ascending zone boundaries in sec/km, e.g. 210,270 for three zones")
	file := fs.String("file", "", "JSON file with a zones array")
	if err := fs.Parse(args); err != nil {
		return err
	}

	athleteID, err := a.athleteID(ctx, *athlete)
	if err != nil {
		return err
	}
	effectiveFrom, err := store.ParseDate(*from)
	if err != nil {
		return errors.New("-from must be YYYY-MM-DD")
	}

	var zones []store.ZoneBracket
	switch {
	case *file != "":
		data, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &zones); err != nil {
			return fmt.Errorf("parsing %s: %w", *file, err)
		}
	case *bounds != "":
		if zones, err = parseBounds(*bounds); err != nil {
			return err
		}
	default:
		return errors.New("one of -bounds or -file is required")
	}

	res, err := a.zones.InsertVersion(ctx, athleteID, effectiveFrom, zones)
	if err != nil {
		return err
	}
	fmt.Printf("zone configuration stored (generation %d)\n", res.Generation)
	if res.JobID != "" {
		fmt.Printf("recompute job %s queued, run \"paceload recompute\" or keep \"paceload serve\" running\n", res.JobID)
	}
	return nil
}

// parseBounds turns N ascending pace boundaries into N+1 zones, fastest
// first. Zone 1 has no lower bound and the last zone no upper bound.
func parseBounds(s string) ([]store.ZoneBracket, error) {
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad boundary %q: %w", p, err)
		}
		if n := len(values); n > 0 && v <= values[n-1] {
			return nil, fmt.Errorf("boundaries must be ascending, got %v after %v", v, values[n-1])
		}
		values = append(values, v)
	}

	zones := make([]store.ZoneBracket, 0, len(values)+1)
	for i := 0; i <= len(values); i++ {
		z := store.ZoneBracket{ZoneNumber: i + 1}
		if i > 0 {
			z.PaceMin = &values[i-1]
		}
		if i < len(values) {
			z.PaceMax = &values[i]
		}
		zones = append(zones, z)
	}
	return zones, nil
}

func runZonesShow(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("zones show", flag.ContinueOnError)
	athlete := fs.Int64("athlete", 0, "athlete ID (default: logged-in athlete)")
	asOf := fs.String("as-of", "", "date to resolve, YYYY-MM-DD (default: today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	athleteID, err := a.athleteID(ctx, *athlete)
	if err != nil {
		return err
	}
	day := store.Day(time.Now())
	if *asOf != "" {
		if day, err = store.ParseDate(*asOf); err != nil {
			return errors.New("-as-of must be YYYY-MM-DD")
		}
	}

	v, err := a.query.ResolveVersion(ctx, athleteID, day)
	if err != nil {
		return err
	}
	if v.EffectiveFrom == nil {
		configured, err := a.query.HasZoneConfig(ctx, athleteID)
		if err != nil {
			return err
		}
		if !configured {
			fmt.Printf("athlete %d has no zone configuration yet, add one with \"paceload zones add\"\n", athleteID)
			return nil
		}
		fmt.Printf("no zones were in force for athlete %d on %s\n", athleteID, store.FormatDate(day))
		return nil
	}
	fmt.Printf("zones in force on %s (effective %s):\n", store.FormatDate(day), store.FormatDate(*v.EffectiveFrom))
	printZones(v.Zones)
	return nil
}

func runZonesHistory(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("zones history", flag.ContinueOnError)
	athlete := fs.Int64("athlete", 0, "athlete ID (default: logged-in athlete)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	athleteID, err := a.athleteID(ctx, *athlete)
	if err != nil {
		return err
	}
	versions, err := a.zones.Versions(ctx, athleteID)
	if err != nil {
		return err
	}
	for _, v := range versions {
		fmt.Printf("%s (generation %d)\n", store.FormatDate(v.EffectiveFrom), v.Generation)
		printZones(v.Zones)
	}
	return nil
}

func printZones(zones []store.ZoneBracket) {
	for _, z := range zones {
		fmt.Printf("  zone %d  %s - %s\n", z.ZoneNumber, formatPace(z.PaceMin), formatPace(z.PaceMax))
	}
}

func formatPace(p *float64) string {
	if p == nil {
		return "open"
	}
	secs := int(*p + 0.5)
	return fmt.Sprintf("%d:%02d/km", secs/60, secs%60)
}

func runRecompute(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("recompute", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.worker().Drain(ctx); err != nil {
		return err
	}
	counts, err := a.db.CountRecomputeJobs(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("jobs: %d pending, %d done, %d failed\n",
		counts[store.JobPending], counts[store.JobDone], counts[store.JobFailed])
	return nil
}

func runRebuild(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("rebuild", flag.ContinueOnError)
	athlete := fs.Int64("athlete", 0, "athlete ID (default: logged-in athlete)")
	weeksOnly := fs.Bool("weeks-only", false, "rebuild weekly tables without reclassifying")
	if err := fs.Parse(args); err != nil {
		return err
	}
	athleteID, err := a.athleteID(ctx, *athlete)
	if err != nil {
		return err
	}

	var weeks int
	if *weeksOnly {
		weeks, err = a.engine.RecomputeAllWeeks(ctx, athleteID)
	} else {
		weeks, err = a.engine.Rebuild(ctx, athleteID)
	}
	if err != nil {
		return err
	}
	fmt.Printf("rebuilt %d weeks for athlete %d\n", weeks, athleteID)
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.Int64("activity", 0, "activity ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-activity is required")
	}
	return a.engine.DeleteActivity(ctx, *id)
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", a.cfg.Server.Address, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	worker := a.worker()
	go worker.Run(ctx)

	handler := api.NewHandler(a.zones, a.query, a.logger)
	server := &http.Server{
		Addr:         *addr,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("paceload listening", "address", *addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("graceful shutdown failed", "error", err)
	}
	worker.Wait()
	return nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", "weekly.parquet", "output file")
	athlete := fs.Int64("athlete", 0, "athlete ID (default: every athlete)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	athletes := []int64{*athlete}
	if *athlete == 0 {
		ids, err := a.db.ListAthleteIDs(ctx)
		if err != nil {
			return err
		}
		athletes = ids
	}

	from, to := time.Time{}, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	var weeks []store.WeeklyZoneTime
	var loads []store.WeeklyMonotonyStrain
	for _, id := range athletes {
		w, err := a.db.ListWeeklyZoneTimes(ctx, id, from, to)
		if err != nil {
			return err
		}
		l, err := a.db.ListWeeklyMonotonyStrain(ctx, id, from, to)
		if err != nil {
			return err
		}
		weeks = append(weeks, w...)
		loads = append(loads, l...)
	}

	n, err := export.WriteWeeklyParquet(*out, weeks, loads)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d weeks to %s\n", n, *out)
	return nil
}

func runStatus(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	athlete := fs.Int64("athlete", 0, "athlete ID (default: logged-in athlete)")
	recent := fs.Int("n", 5, "recent activities to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	athleteID, err := a.athleteID(ctx, *athlete)
	if err != nil {
		return err
	}

	total, err := a.db.CountActivities(ctx)
	if err != nil {
		return err
	}
	stale, err := a.query.StaleActivities(ctx, athleteID)
	if err != nil {
		return err
	}
	counts, err := a.db.CountRecomputeJobs(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("activities stored: %d\n", total)
	fmt.Printf("classifications awaiting recompute: %d\n", len(stale))
	fmt.Printf("recompute jobs: %d pending, %d running, %d failed\n",
		counts[store.JobPending], counts[store.JobRunning], counts[store.JobFailed])

	acts, err := a.db.ListActivities(ctx, athleteID, *recent, 0)
	if err != nil {
		return err
	}
	for _, act := range acts {
		status := "unclassified"
		zt, err := a.db.GetActivityZoneTime(ctx, act.ID)
		switch {
		case err == nil:
			status = fmt.Sprintf("%s %.1f min", zt.Status, zt.TotalMinutes)
		case !errors.Is(err, store.ErrActivityNotFound):
			return err
		}
		fmt.Printf("  %s  %-10s %-30.30s %s\n", store.FormatDate(act.Date()), act.Type, act.Name, status)
	}
	return nil
}
