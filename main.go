package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"calmaquarium/internal/aquarium"
	"calmaquarium/internal/clock"
	"calmaquarium/internal/config"
	"calmaquarium/internal/fish"
	"calmaquarium/internal/pet"
	"calmaquarium/internal/store"
	"calmaquarium/internal/telemetry"
	"calmaquarium/internal/ui"
	"calmaquarium/internal/usage"
	"calmaquarium/internal/water"
)

const usageText = `Usage: calmaquarium [flags] <command> [args]

Commands:
  run                     open the aquarium (default)
  status                  print the tank status
  adopt <name>            adopt a new fish (--personality)
  restrict <app>          limit an app (--daily, --weekly, --off)
  apps                    list installed apps and restrictions
  water-change            change the water now
  memorial                list fish that have died
  notifications <on|off>  turn alerts on or off
  config                  print the effective configuration

Flags:
`

var errUsage = errors.New("invalid usage")

// runTUI is replaced in tests
var runTUI = runProgram

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newFlagSet(stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("calmaquarium", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	fs.String("personality", "", "fish personality: active, calm, playful, shy, curious (random when empty)")
	fs.Duration("daily", usage.DefaultDailyLimit, "daily limit for restrict")
	fs.Duration("weekly", usage.DefaultWeeklyLimit, "weekly limit for restrict")
	fs.Bool("off", false, "remove the restriction instead of setting it")
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}
	return fs
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath, _ := fs.GetString("config")
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		return err
	}

	command := "run"
	rest := fs.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	if command == "config" {
		return cfg.WriteYAML(stdout)
	}

	logger, closeLog, err := openLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	switch command {
	case "run", "status", "adopt", "restrict", "apps", "water-change", "memorial", "notifications":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		fs.Usage()
		return errUsage
	}

	sess, closeSession, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSession(); err != nil {
			logger.Error("failed to close aquarium", "error", err)
		}
	}()

	switch command {
	case "run":
		return runTUI(ctx, sess)
	case "status":
		fmt.Fprint(stdout, ui.StatusCard(sess.Refresh(ctx)))
	case "adopt":
		return adopt(sess, fs, rest, stdout)
	case "restrict":
		return restrict(sess, fs, rest, stdout)
	case "apps":
		return listApps(ctx, sess, stdout)
	case "water-change":
		info := sess.WaterChange()
		fmt.Fprintf(stdout, "💧 Water changed. Turbidity %.0f%% (%s), next reset %s\n",
			info.Turbidity, info.Level, info.NextResetTime.Local().Format("Mon Jan 2 15:04"))
	case "memorial":
		dead := sess.DeadPets()
		fmt.Fprint(stdout, ui.MemorialCard(dead, pet.SummarizeLifetimes(dead)))
	case "notifications":
		return notifications(sess, rest, stdout)
	}
	return nil
}

// openLogger writes to the configured log file so the terminal UI is not
// disturbed, or to stderr when no file is set
func openLogger(cfg config.LogConfig, stderr io.Writer) (*slog.Logger, func(), error) {
	if cfg.File == "" {
		return config.SetupLogger(cfg, stderr), func() {}, nil
	}
	f, err := config.OpenLogFile(cfg)
	if err != nil {
		return nil, nil, err
	}
	return config.SetupLogger(cfg, f), func() { f.Close() }, nil
}

func storePath(cfg config.StoreConfig) string {
	if cfg.Driver == store.DriverFile {
		return filepath.Join(filepath.Dir(cfg.Path), "state.json")
	}
	return cfg.Path
}

func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*aquarium.Session, func() error, error) {
	path := storePath(cfg.Store)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	st, err := store.Open(cfg.Store.Driver, path, logger)
	if err != nil {
		return nil, nil, err
	}

	rec, err := telemetry.NewRecorder(cfg.Telemetry.Dir)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	clk := clock.NewReal()
	sess := aquarium.New(aquarium.Options{
		Clock:  clk,
		Store:  st,
		Source: usage.NewFileSource(cfg.Usage.FeedPath, clk),
		Poller: usage.PollerConfig{
			Interval: cfg.Usage.PollInterval,
			Window:   cfg.Usage.Window,
		},
		Water: water.Config{
			ResetTurbidity:  cfg.Water.ResetTurbidity,
			IncreaseRate:    cfg.Water.IncreaseRate,
			DecreaseRate:    cfg.Water.DecreaseRate,
			MonitorInterval: cfg.Water.MonitorInterval,
		},
		Fish: fish.Config{
			PositionInterval: cfg.Fish.PositionInterval,
			PhaseInterval:    cfg.Fish.PhaseInterval,
		},
		FlushInterval: cfg.Store.FlushInterval,
		Recorder:      rec,
		Logger:        logger,
	})

	if err := sess.Load(ctx); err != nil {
		rec.Close()
		st.Close()
		return nil, nil, err
	}

	closeFn := func() error {
		// The run context may already be cancelled by a signal
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(sess.Close(closeCtx), rec.Close(), st.Close())
	}
	return sess, closeFn, nil
}

func runProgram(ctx context.Context, sess *aquarium.Session) error {
	program := tea.NewProgram(ui.NewModel(sess), tea.WithAltScreen())

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)

	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		return err
	})
	g.Go(func() error {
		<-runCtx.Done()
		program.Quit()
		return nil
	})

	unsubStatus := sess.Subscribe(func(st aquarium.Status) {
		program.Send(ui.StatusMsg(st))
	})
	unsubAlerts := sess.SubscribeAlerts(func(a aquarium.Alert) {
		program.Send(ui.AlertMsg(a))
	})
	defer unsubStatus()
	defer unsubAlerts()

	sess.Start()
	return g.Wait()
}

func adopt(sess *aquarium.Session, fs *pflag.FlagSet, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("adopt needs exactly one name: %w", errUsage)
	}
	raw, _ := fs.GetString("personality")
	personality, err := pet.ParsePersonality(raw)
	if err != nil {
		return err
	}
	p, err := sess.CreatePet(args[0], personality)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "🎉 Welcome, %s! (%s)\n", p.Name, p.Personality)
	return nil
}

func restrict(sess *aquarium.Session, fs *pflag.FlagSet, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("restrict needs exactly one app id: %w", errUsage)
	}
	appID := args[0]

	if off, _ := fs.GetBool("off"); off {
		if err := sess.RemoveRestriction(appID); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "🔓 %s is no longer restricted\n", appID)
		return nil
	}

	r := usage.NewRestriction(appID, "")
	r.DailyLimit, _ = fs.GetDuration("daily")
	r.WeeklyLimit, _ = fs.GetDuration("weekly")
	saved, err := sess.SetRestriction(r)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "🔒 %s limited to %s a day, %s a week\n", saved.AppID, saved.DailyLimit, saved.WeeklyLimit)
	return nil
}

func listApps(ctx context.Context, sess *aquarium.Session, stdout io.Writer) error {
	restrictions := sess.Restrictions()
	restricted := make(map[string]usage.AppRestriction, len(restrictions))
	for _, r := range restrictions {
		restricted[r.AppID] = r
	}

	apps, err := sess.InstalledApps(ctx)
	if err != nil {
		return err
	}
	listed := make(map[string]bool, len(apps))
	for _, app := range apps {
		listed[app.AppID] = true
		line := fmt.Sprintf("  %-32s %s", app.AppID, app.AppName)
		if r, ok := restricted[app.AppID]; ok && r.IsActive {
			line += fmt.Sprintf("  🔒 %s/day", r.DailyLimit)
		}
		fmt.Fprintln(stdout, line)
	}
	// Restrictions for apps the feed no longer lists
	for _, r := range restrictions {
		if !listed[r.AppID] {
			fmt.Fprintf(stdout, "  %-32s (not installed)  🔒 %s/day\n", r.AppID, r.DailyLimit)
		}
	}
	return nil
}

func notifications(sess *aquarium.Session, args []string, stdout io.Writer) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return fmt.Errorf("notifications needs on or off: %w", errUsage)
	}
	enabled := args[0] == "on"
	sess.SetNotifications(enabled)
	if enabled {
		fmt.Fprintln(stdout, "🔔 Alerts on")
	} else {
		fmt.Fprintln(stdout, "🔕 Alerts off")
	}
	return nil
}
