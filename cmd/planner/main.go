package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/example/event-planner/internal/application"
	"github.com/example/event-planner/internal/config"
	"github.com/example/event-planner/internal/logging"
	"github.com/example/event-planner/internal/persistence"
	"github.com/example/event-planner/internal/persistence/postgres"
	"github.com/example/event-planner/internal/persistence/sqlite"
	"github.com/example/event-planner/internal/timeline"
)

const usage = `Usage: planner [-config path] <command> [arguments]

Commands:
  migrate                                          apply storage migrations
  create  -owner -name -start -end [-description]  create an event (RFC 3339 instants)
  update  -id [-name] [-start] [-end] [-description]  change only the given fields
  list    -owner [-date] [-zone]                   list events, optionally for one date
  delete  -id                                      delete an event
  export  -owner [-out path]                       write the owner's iCalendar document
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// txRunner executes fn against an event service whose repositories share
// one storage transaction, so validation and persistence see a single
// consistent snapshot.
type txRunner func(ctx context.Context, fn func(*application.EventService) error) error

func run(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("planner", flag.ContinueOnError)
	flags.SetOutput(out)
	configPath := flags.String("config", "", "path to a YAML config file")
	flags.Usage = func() { fmt.Fprint(out, usage) }
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("a command is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, logger)

	env, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer env.close()

	// Reads run over the plain pool; writes go through the transactional
	// seam so the day buckets stay locked from validation to commit.
	reader := buildEventService(env.days, env.events, logger)
	transact := txRunner(func(ctx context.Context, fn func(*application.EventService) error) error {
		return env.inTransaction(ctx, func(days persistence.DayRepository, events persistence.EventRepository) error {
			return fn(buildEventService(days, events, logger))
		})
	})

	command, rest := flags.Arg(0), flags.Args()[1:]
	switch command {
	case "migrate":
		if err := env.migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
		return nil
	case "create":
		return runCreate(ctx, transact, rest, out)
	case "update":
		return runUpdate(ctx, transact, rest, out)
	case "list":
		return runList(ctx, reader, rest, out)
	case "delete":
		return runDelete(ctx, transact, rest, out)
	case "export":
		return runExport(ctx, reader, cfg.CalendarName, rest, out)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func newID() string {
	return uuid.NewString()
}

func buildEventService(days persistence.DayRepository, events persistence.EventRepository, logger *slog.Logger) *application.EventService {
	dayService := application.NewDayServiceWithLogger(days, newID, time.Now, logger)
	validator := application.NewSchedulingService(dayService)
	return application.NewEventServiceWithLogger(events, dayService, validator, newID, time.Now, logger)
}

// storageEnv abstracts over the configured backend so command handlers see
// only the repository interfaces.
type storageEnv struct {
	days          persistence.DayRepository
	events        persistence.EventRepository
	inTransaction func(ctx context.Context, fn func(persistence.DayRepository, persistence.EventRepository) error) error
	migrate       func(ctx context.Context) error
	close         func()
}

func openStorage(ctx context.Context, cfg config.Config) (*storageEnv, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		pool, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		days := sqlite.NewDayRepository(pool)
		events := sqlite.NewEventRepository(pool)
		return &storageEnv{
			days:   days,
			events: events,
			// The single-connection pool serializes writers; each repository
			// statement already runs in its own transaction.
			inTransaction: func(ctx context.Context, fn func(persistence.DayRepository, persistence.EventRepository) error) error {
				return fn(days, events)
			},
			migrate: pool.Migrate,
			close:   func() { _ = pool.Close() },
		}, nil
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return &storageEnv{
			days:   postgres.NewDayRepository(store.Pool()),
			events: postgres.NewEventRepository(store.Pool()),
			// Transaction-scoped repositories keep the FOR UPDATE locks on
			// day rows held until the write commits.
			inTransaction: func(ctx context.Context, fn func(persistence.DayRepository, persistence.EventRepository) error) error {
				return store.WithTransaction(ctx, func(tx pgx.Tx) error {
					return fn(postgres.NewDayRepository(tx), postgres.NewEventRepository(tx))
				})
			},
			migrate: store.Migrate,
			close:   store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func runCreate(ctx context.Context, transact txRunner, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("create", flag.ContinueOnError)
	flags.SetOutput(out)
	owner := flags.String("owner", "", "owner identifier")
	name := flags.String("name", "", "event name")
	start := flags.String("start", "", "start instant, RFC 3339")
	end := flags.String("end", "", "end instant, RFC 3339")
	description := flags.String("description", "", "optional description")
	if err := flags.Parse(args); err != nil {
		return err
	}

	startAt, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}
	endAt, err := time.Parse(time.RFC3339, *end)
	if err != nil {
		return fmt.Errorf("parse -end: %w", err)
	}

	var created persistence.Event
	err = transact(ctx, func(events *application.EventService) error {
		var serr error
		created, serr = events.CreateEvent(ctx, application.CreateEventInput{
			OwnerID:     *owner,
			Name:        *name,
			Start:       startAt,
			End:         endAt,
			Description: *description,
		})
		return serr
	})
	if err != nil {
		return describeServiceError(err)
	}

	fmt.Fprintf(out, "created event %s (%s - %s, %d day(s))\n",
		created.ID, created.Start.Format(time.RFC3339), created.End.Format(time.RFC3339), len(created.DayIDs))
	return nil
}

func runUpdate(ctx context.Context, transact txRunner, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("update", flag.ContinueOnError)
	flags.SetOutput(out)
	id := flags.String("id", "", "event identifier")
	name := flags.String("name", "", "new event name")
	start := flags.String("start", "", "new start instant, RFC 3339")
	end := flags.String("end", "", "new end instant, RFC 3339")
	description := flags.String("description", "", "new description")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// Only flags the caller actually passed become part of the patch;
	// everything else keeps its stored value.
	var patch application.EventPatch
	var parseErr error
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			patch.Name = name
		case "description":
			patch.Description = description
		case "start":
			at, err := time.Parse(time.RFC3339, *start)
			if err != nil {
				parseErr = fmt.Errorf("parse -start: %w", err)
				return
			}
			patch.Start = &at
		case "end":
			at, err := time.Parse(time.RFC3339, *end)
			if err != nil {
				parseErr = fmt.Errorf("parse -end: %w", err)
				return
			}
			patch.End = &at
		}
	})
	if parseErr != nil {
		return parseErr
	}

	var updated persistence.Event
	err := transact(ctx, func(events *application.EventService) error {
		var serr error
		updated, serr = events.UpdateEvent(ctx, *id, patch)
		return serr
	})
	if err != nil {
		return describeServiceError(err)
	}

	fmt.Fprintf(out, "updated event %s (%s - %s)\n",
		updated.ID, updated.Start.Format(time.RFC3339), updated.End.Format(time.RFC3339))
	return nil
}

func runList(ctx context.Context, events *application.EventService, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("list", flag.ContinueOnError)
	flags.SetOutput(out)
	owner := flags.String("owner", "", "owner identifier")
	date := flags.String("date", "", "optional calendar date, YYYY-MM-DD")
	zone := flags.String("zone", "UTC", "IANA zone the date is observed in")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var (
		listed []persistence.Event
		err    error
	)
	if *date != "" {
		day, perr := timeline.ParseDate(*date)
		if perr != nil {
			return fmt.Errorf("parse -date: %w", perr)
		}
		loc, lerr := time.LoadLocation(*zone)
		if lerr != nil {
			return fmt.Errorf("load -zone: %w", lerr)
		}
		listed, err = events.ListEventsOnDate(ctx, *owner, day, loc)
	} else {
		listed, err = events.ListOwnerEvents(ctx, *owner)
	}
	if err != nil {
		return describeServiceError(err)
	}

	if len(listed) == 0 {
		fmt.Fprintln(out, "no events")
		return nil
	}
	for _, event := range listed {
		fmt.Fprintf(out, "%s\t%s\t%s - %s\n",
			event.ID, event.Name, event.Start.Format(time.RFC3339), event.End.Format(time.RFC3339))
	}
	return nil
}

func runDelete(ctx context.Context, transact txRunner, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("delete", flag.ContinueOnError)
	flags.SetOutput(out)
	id := flags.String("id", "", "event identifier")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := transact(ctx, func(events *application.EventService) error {
		return events.DeleteEvent(ctx, *id)
	}); err != nil {
		return describeServiceError(err)
	}
	fmt.Fprintf(out, "deleted event %s\n", *id)
	return nil
}

func runExport(ctx context.Context, events *application.EventService, calendarName string, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	flags.SetOutput(out)
	owner := flags.String("owner", "", "owner identifier")
	path := flags.String("out", "", "output file, stdout when empty")
	if err := flags.Parse(args); err != nil {
		return err
	}

	doc, err := events.ExportCalendar(ctx, *owner, calendarName)
	if err != nil {
		return describeServiceError(err)
	}

	if *path == "" {
		fmt.Fprint(out, doc)
		return nil
	}
	if err := os.WriteFile(*path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	fmt.Fprintf(out, "wrote calendar to %s\n", *path)
	return nil
}

// describeServiceError turns typed service errors into flat messages fit
// for a terminal.
func describeServiceError(err error) error {
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		for field, message := range vErr.FieldErrors {
			return fmt.Errorf("invalid %s: %s", field, message)
		}
	}
	var conflictErr *application.ConflictError
	if errors.As(err, &conflictErr) {
		return fmt.Errorf("the requested time overlaps %q (%s)", conflictErr.Name, conflictErr.EventID)
	}
	var intervalErr *application.InvalidIntervalError
	if errors.As(err, &intervalErr) {
		return errors.New("the start instant must be before the end instant")
	}
	if errors.Is(err, application.ErrEventNotFound) {
		return errors.New("no such event")
	}
	return err
}
