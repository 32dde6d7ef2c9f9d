package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/liftlog/internal/client"
	"github.com/meltforce/liftlog/internal/workout"
	"go.uber.org/multierr"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const usage = `Usage: liftlog-cli [-server URL] [-api-key KEY] <command> [flags]

Commands:
  me                                   show the identity the server sees
  start    -program P -day D           start (or resume) a session and print it
  view     -workout ID                 print the session view
  log      -workout ID -order N -exercise E
                                       read "set reps weight" lines from stdin
  pause    -workout ID
  resume   -workout ID
  complete -workout ID [-duration S]
  rate     -workout ID -rating R
  swap     -workout ID -order N -exercise E [-name NAME]
  reset    -workout ID
  delete   -workout ID
  history  [-limit N] [-exercise E]
  failed                               list set writes that did not reach the server
  replay                               resend failed set writes
`

type app struct {
	client   *client.Client
	log      *slog.Logger
	stateDir string
	out      io.Writer
}

func main() {
	serverURL := flag.String("server", os.Getenv("LIFTLOG_URL"), "liftlog server URL")
	apiKey := flag.String("api-key", os.Getenv("LIFTLOG_API_KEY"), "API key, if the server requires one")
	debug := flag.Bool("debug", false, "verbose logging")
	version := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if *version {
		fmt.Println("liftlog-cli", Version)
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *serverURL == "" {
		fmt.Fprintf(os.Stderr, "Error: -server or LIFTLOG_URL is required\n")
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}

	a := &app{
		client:   client.NewClient(*serverURL, *apiKey),
		log:      log,
		stateDir: filepath.Join(homeDir, ".liftlog"),
		out:      os.Stdout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	workoutID := fs.String("workout", "", "workout session id")
	programID := fs.String("program", "", "program id")
	dayID := fs.String("day", "", "day id")
	order := fs.Int("order", -1, "exercise position in the session")
	exerciseID := fs.String("exercise", "", "exercise id")
	name := fs.String("name", "", "exercise display name")
	duration := fs.Int("duration", -1, "session duration in seconds")
	rating := fs.Int("rating", 0, "session rating")
	limit := fs.Int("limit", 20, "number of entries")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id := func() (uuid.UUID, error) {
		sid, err := uuid.Parse(*workoutID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("-workout: %w", err)
		}
		return sid, nil
	}

	switch cmd {
	case "me":
		login, display, err := a.client.Me(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s (%s)\n", login, display)
		return nil

	case "start":
		if *programID == "" || *dayID == "" {
			return errors.New("-program and -day are required")
		}
		sid, view, err := a.client.StartAndView(ctx, workout.StartInput{ProgramID: *programID, DayID: *dayID})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "workout %s\n", sid)
		return a.print(view)

	case "view":
		sid, err := id()
		if err != nil {
			return err
		}
		view, err := a.client.GetView(ctx, sid, "")
		if err != nil {
			return err
		}
		return a.print(view)

	case "log":
		sid, err := id()
		if err != nil {
			return err
		}
		if *order < 0 || *exerciseID == "" {
			return errors.New("-order and -exercise are required")
		}
		return a.logSets(ctx, os.Stdin, workout.SetInput{
			SessionID: sid, OrderIndex: *order, ExerciseID: *exerciseID, ExerciseName: *name,
		})

	case "pause":
		sid, err := id()
		if err != nil {
			return err
		}
		return a.client.Pause(ctx, sid, "")

	case "resume":
		sid, err := id()
		if err != nil {
			return err
		}
		paused, err := a.client.Resume(ctx, sid, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "resumed, paused %s in total\n", time.Duration(paused)*time.Second)
		return nil

	case "complete":
		sid, err := id()
		if err != nil {
			return err
		}
		var d *int
		if *duration >= 0 {
			d = duration
		}
		return a.client.Complete(ctx, sid, "", d)

	case "rate":
		sid, err := id()
		if err != nil {
			return err
		}
		return a.client.Rate(ctx, sid, "", *rating)

	case "swap":
		sid, err := id()
		if err != nil {
			return err
		}
		if *order < 0 || *exerciseID == "" {
			return errors.New("-order and -exercise are required")
		}
		return a.client.SwapExercise(ctx, workout.SwapInput{
			SessionID: sid, OrderIndex: *order, NewExerciseID: *exerciseID, NewExerciseName: *name,
		})

	case "reset":
		sid, err := id()
		if err != nil {
			return err
		}
		res, err := a.client.Reset(ctx, sid, "")
		if err != nil {
			return err
		}
		return a.print(res)

	case "delete":
		sid, err := id()
		if err != nil {
			return err
		}
		return a.client.Delete(ctx, sid, "")

	case "history":
		if *exerciseID != "" {
			entries, err := a.client.ExerciseHistory(ctx, "", *exerciseID, *limit)
			if err != nil {
				return err
			}
			return a.print(entries)
		}
		entries, err := a.client.History(ctx, "", *limit)
		if err != nil {
			return err
		}
		return a.print(entries)

	case "failed":
		return a.listFailed(ctx)

	case "replay":
		return a.replay(ctx)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// logSets reads "set reps weight" lines and sends them through the
// debouncer, so a corrected line for the same set replaces the earlier one.
func (a *app) logSets(ctx context.Context, r io.Reader, base workout.SetInput) (err error) {
	failures, err := client.OpenFailureLog(a.stateDir)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, failures.Close()) }()

	d := client.NewDebouncer(a.client.UpsertSet,
		client.WithLogger(a.log),
		client.WithFailureLog(failures),
		client.WithOnError(func(in workout.SetInput, err error) {
			fmt.Fprintf(os.Stderr, "set %d not saved: %v\n", in.SetNumber, err)
		}),
	)
	defer func() { err = multierr.Append(err, d.Close(ctx)) }()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		in, perr := parseSetLine(line, base)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "skipping %q: %v\n", line, perr)
			continue
		}
		if err := d.Submit(in); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func parseSetLine(line string, base workout.SetInput) (workout.SetInput, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return base, errors.New(`want "set reps weight"`)
	}
	set, err := strconv.Atoi(fields[0])
	if err != nil {
		return base, fmt.Errorf("set number: %w", err)
	}
	reps, err := strconv.Atoi(fields[1])
	if err != nil {
		return base, fmt.Errorf("reps: %w", err)
	}
	weight, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return base, fmt.Errorf("weight: %w", err)
	}
	base.SetNumber, base.Reps, base.Weight = set, reps, weight
	return base, nil
}

func (a *app) listFailed(ctx context.Context) error {
	failures, err := client.OpenFailureLog(a.stateDir)
	if err != nil {
		return err
	}
	defer failures.Close()

	failed, err := failures.List(ctx)
	if err != nil {
		return err
	}
	if len(failed) == 0 {
		fmt.Fprintln(a.out, "no failed set writes")
		return nil
	}
	for _, f := range failed {
		fmt.Fprintf(a.out, "%s  workout %s  #%d %s set %d: %d x %g  (%s)\n",
			f.FailedAt.Local().Format(time.DateTime), f.Set.SessionID, f.Set.OrderIndex,
			f.Set.ExerciseID, f.Set.SetNumber, f.Set.Reps, f.Set.Weight, f.Error)
	}
	return nil
}

// replay resends every failed write once. Writes that fail again stay in the
// log with their new error.
func (a *app) replay(ctx context.Context) (err error) {
	failures, err := client.OpenFailureLog(a.stateDir)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, failures.Close()) }()

	failed, err := failures.List(ctx)
	if err != nil {
		return err
	}

	d := client.NewDebouncer(a.client.UpsertSet, client.WithLogger(a.log), client.WithFailureLog(failures))
	for _, f := range failed {
		if err := d.Submit(f.Set); err != nil {
			return err
		}
	}
	if err := d.Close(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "replayed %d set writes\n", len(failed))
	return nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
