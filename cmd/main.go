package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"timesherpa/internal/ai"
	"timesherpa/internal/config"
	"timesherpa/internal/google"
	"timesherpa/internal/icloud"
	"timesherpa/internal/metrics"
	"timesherpa/internal/models"
	"timesherpa/internal/scheduling"
	"timesherpa/internal/server"
	"timesherpa/internal/service"
	"timesherpa/internal/settings"
	"timesherpa/internal/suggest"
	"timesherpa/internal/trends"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "timesherpa",
		Usage: "Analyze how you spend your calendar time and schedule the suggestions.",
		Commands: []*cli.Command{
			authCommand(),
			analyzeCommand(),
			upcomingCommand(),
			trendsCommand(),
			scheduleCommand(),
			serveCommand(),
			migrateCommand(),
			workweekCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

var (
	accountFlag = &cli.StringFlag{Name: "account", Usage: "Google account whose saved token to use (defaults to the only one)."}
	userFlag    = &cli.StringFlag{Name: "user", Usage: "User id for the workweek lookup."}
)

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			tokenFile := google.TokenFile(strings.TrimSpace(accountName))

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Analyze the last 30 days and print the analysis as JSON.",
		Flags: []cli.Flag{accountFlag, userFlag},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *service.Service, token string) error {
				result, err := svc.Analysis(ctx, token, c.String("user"))
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
}

func upcomingCommand() *cli.Command {
	return &cli.Command{
		Name:  "upcoming",
		Usage: "Suggest improvements for the next 7 days.",
		Flags: []cli.Flag{accountFlag, userFlag},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *service.Service, token string) error {
				result, err := svc.Upcoming(ctx, token, c.String("user"))
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
}

func trendsCommand() *cli.Command {
	return &cli.Command{
		Name:  "trends",
		Usage: "Compare the last four weeks.",
		Flags: []cli.Flag{accountFlag, userFlag},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *service.Service, token string) error {
				report, err := svc.WeekOverWeek(ctx, token, c.String("user"))
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Create a calendar event for a suggestion.",
		Flags: []cli.Flag{
			accountFlag,
			&cli.StringFlag{Name: "text", Required: true, Usage: "Suggestion text."},
			&cli.StringFlag{Name: "type", Usage: "Suggestion type; classified from the text when omitted."},
			&cli.StringFlag{Name: "id", Usage: "Suggestion id; a new one is generated when omitted."},
			&cli.StringFlag{Name: "date", Required: true, Usage: "Date as YYYY-MM-DD."},
			&cli.StringFlag{Name: "start", Required: true, Usage: "Start time as HH:MM."},
			&cli.StringFlag{Name: "end", Required: true, Usage: "End time as HH:MM."},
		},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *service.Service, token string) error {
				intent := suggest.Classify(c.String("text"))
				suggestion := models.ActionableSuggestion{
					ID:         uuid.NewString(),
					Text:       c.String("text"),
					Type:       intent.Type,
					Actionable: intent.Actionable,
				}
				if c.IsSet("type") {
					suggestion.Type = models.SuggestionType(c.String("type"))
				}
				if c.IsSet("id") {
					suggestion.ID = c.String("id")
				}
				result := svc.ScheduleSuggestion(ctx, token, scheduling.Request{
					Suggestion: suggestion,
					TimeSlot: models.TimeSlot{
						Date:      c.String("date"),
						StartTime: c.String("start"),
						EndTime:   c.String("end"),
					},
				})
				if err := printJSON(result); err != nil {
					return err
				}
				if !result.Success {
					return fmt.Errorf("scheduling failed: %s", result.Error)
				}
				return nil
			})
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the calendar API over HTTP.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides HTTP_ADDR)."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, cleanup, err := newService(ctx, cfg, logger, prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			defer cleanup()

			addr := cfg.HTTPAddr
			if c.IsSet("addr") {
				addr = c.String("addr")
			}
			return server.New(logger, svc, prometheus.DefaultGatherer).Run(ctx, addr)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database migrations.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL environment variable not set")
			}
			pool, err := settings.Connect(c.Context, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			return settings.Migrate(c.Context, logger, pool)
		},
	}
}

func workweekCommand() *cli.Command {
	userRequired := &cli.StringFlag{Name: "user", Required: true, Usage: "User id."}
	return &cli.Command{
		Name:  "workweek",
		Usage: "Show or change the workdays of a user.",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Print the workdays of a user.",
				Flags: []cli.Flag{userRequired},
				Action: func(c *cli.Context) error {
					return withStore(c, func(store *settings.PostgresStore) error {
						ww, err := store.GetUserWorkweek(c.Context, c.String("user"))
						if err != nil {
							return err
						}
						fmt.Println(settings.FormatWorkweek(ww))
						return nil
					})
				},
			},
			{
				Name:  "set",
				Usage: "Save the workdays of a user, e.g. --days mon,tue,wed,thu.",
				Flags: []cli.Flag{
					userRequired,
					&cli.StringFlag{Name: "days", Required: true, Usage: "Comma separated days, or 'none'."},
				},
				Action: func(c *cli.Context) error {
					ww, err := settings.ParseWorkweek(c.String("days"))
					if err != nil {
						return err
					}
					return withStore(c, func(store *settings.PostgresStore) error {
						return store.SaveUserWorkweek(c.Context, c.String("user"), ww)
					})
				},
			},
		},
	}
}

func withStore(c *cli.Context, fn func(store *settings.PostgresStore) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}
	pool, err := settings.Connect(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(settings.NewPostgresStore(logger, pool, cfg.Workweek()))
}

// withService runs fn with a fully wired service and the access token of
// the selected account.
func withService(c *cli.Context, fn func(ctx context.Context, svc *service.Service, token string) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(c.Context, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer cleanup()

	token := ""
	if cfg.CalendarBackend == config.BackendGoogle {
		account, err := selectAccount(c.String("account"))
		if err != nil {
			return err
		}
		token, err = google.AccessToken(c.Context, cfg.GoogleClientID, cfg.GoogleClientSecret, account)
		if err != nil {
			return err
		}
	}
	return fn(c.Context, svc, token)
}

func selectAccount(account string) (string, error) {
	if account != "" {
		return account, nil
	}
	accounts, err := google.GetTokenAccounts()
	if err != nil {
		return "", fmt.Errorf("could not find any google accounts, did you run auth command? %w", err)
	}
	switch len(accounts) {
	case 0:
		return "", fmt.Errorf("no google accounts found. Run the 'auth' command first")
	case 1:
		return accounts[0], nil
	default:
		return "", fmt.Errorf("several google accounts found (%s), pick one with --account", strings.Join(accounts, ", "))
	}
}

// calendarBackend reads and writes the user's calendar.
type calendarBackend interface {
	trends.EventSource
	scheduling.EventInserter
}

func newService(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*service.Service, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	m := metrics.New(reg)
	loc := cfg.Location()

	var gen ai.Generator
	switch cfg.AIProvider {
	case config.ProviderOpenAI:
		gen = ai.NewOpenAIGenerator(logger, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.AIRequestsPerMinute)
	default:
		gemini, err := ai.NewGeminiGenerator(ctx, logger, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AIRequestsPerMinute)
		if err != nil {
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = gemini.Close() })
		gen = gemini
	}
	analyzer := ai.NewAnalyzer(logger, gen, m)

	var backend calendarBackend
	switch cfg.CalendarBackend {
	case config.BackendCalDAV:
		client, err := icloud.NewClient(ctx, logger, cfg.CalDAVEndpoint, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendarName, loc)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("failed to create caldav client: %w", err)
		}
		backend = client
	default:
		backend = google.NewClient(logger)
	}

	var workweeks settings.Source = settings.StaticSource{Workweek: cfg.Workweek()}
	if cfg.DatabaseURL != "" {
		pool, err := settings.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, pool.Close)
		workweeks = settings.NewPostgresStore(logger, pool, cfg.Workweek())
	}

	defaultWorkweek := cfg.Workweek()
	svc := service.New(logger, service.Options{
		Source:          backend,
		Analyzer:        analyzer,
		Builder:         suggest.NewBuilder(suggest.NewSearcher(loc, nil)),
		Trends:          trends.NewCalculator(logger, backend, analyzer, loc, cfg.TrendConcurrency),
		Writer:          scheduling.NewWriter(logger, backend, loc, m),
		Workweeks:       workweeks,
		DefaultWorkweek: &defaultWorkweek,
		Metrics:         m,
		Location:        loc,
	})
	return svc, cleanup, nil
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
