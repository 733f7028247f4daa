package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/qarelay"
	"github.com/flarexio/qarelay/escalate"
	"github.com/flarexio/qarelay/kb"
	"github.com/flarexio/qarelay/persistence/chromem"
	"github.com/flarexio/qarelay/persistence/sqlite"

	llmO "github.com/flarexio/qarelay/llm/openai"
	httpT "github.com/flarexio/qarelay/transport/http"
	natsT "github.com/flarexio/qarelay/transport/nats"
	telegramT "github.com/flarexio/qarelay/transport/telegram"
)

func main() {
	cmd := &cli.Command{
		Name:  "qarelay",
		Usage: "QA relay service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the QA relay data directory",
			},
			&cli.BoolFlag{
				Name:  "http",
				Usage: "Enable the HTTP webhook transport",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "http-addr",
				Usage: "HTTP server address",
				Value: ":8080",
			},
			&cli.BoolFlag{
				Name:  "telegram",
				Usage: "Enable the Telegram polling transport",
				Value: false,
			},
			&cli.BoolFlag{
				Name:  "nats",
				Usage: "Enable the NATS transport",
				Value: false,
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				Value:   nats.DefaultURL,
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.StringFlag{
				Name:  "topic",
				Usage: "NATS topic prefix",
				Value: "qarelay",
			},
		},
		Action: run,
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	godotenv.Load()

	path := cmd.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		path = filepath.Join(homeDir, ".flarex", "qarelay")
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	f, err := os.Open(filepath.Join(path, "config.yaml"))
	if err != nil {
		return err
	}
	defer f.Close()

	var cfg qarelay.Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return err
	}

	cfg.ApplyDefaults()
	cfg.Vector.Path = filepath.Join(path, "vectors")

	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(path, "history.db")
	}

	// Secrets come from the environment, not the config file. A missing
	// value disables the dependent feature instead of halting.
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Warn("OPENAI_API_KEY not set, embeddings and completions unavailable")
	}

	cfg.Vector.APIKey = apiKey
	cfg.Completion.APIKey = apiKey

	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		log.Warn("TELEGRAM_TOKEN not set, Telegram transport and escalation unavailable")
	}

	if url := os.Getenv("ESCALATION_WEBHOOK_URL"); url != "" {
		cfg.Escalation.WebhookURL = url
	}

	var managerChatID int64
	if raw := os.Getenv("MANAGER_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Warn("MANAGER_CHAT_ID is not a number", zap.String("value", raw))
		} else {
			managerChatID = id
		}
	}

	var bot *tgbotapi.BotAPI
	if token != "" {
		b, err := tgbotapi.NewBotAPI(token)
		if err != nil {
			log.Error("telegram bot init failed", zap.Error(err))
		} else {
			bot = b
		}
	}

	deps, err := buildDependencies(ctx, cfg, bot, managerChatID, log)
	if err != nil {
		return err
	}

	svc, err := qarelay.NewService(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer svc.Close()

	svc = qarelay.LoggingMiddleware(log)(svc)

	endpoints := qarelay.EndpointSet{
		Ask:    qarelay.AskEndpoint(svc),
		Reload: qarelay.ReloadEndpoint(svc),
		Count:  qarelay.CountEndpoint(svc),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cmd.Bool("nats") {
		natsURL := cmd.String("nats-url")

		opts := []nats.Option{
			nats.Name("QA Relay"),
		}

		creds := filepath.Join(path, "user.creds")
		if _, err := os.Stat(creds); err == nil {
			opts = append(opts, nats.UserCredentials(creds))
		}

		nc, err := nats.Connect(natsURL, opts...)
		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "qarelay",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		root := srv.AddGroup(cmd.String("topic"))
		natsT.AddEndpoints(root, endpoints)
	}

	if cmd.Bool("http") {
		r := gin.Default()
		httpT.AddRouters(r, endpoints)

		httpAddr := cmd.String("http-addr")
		go r.Run(httpAddr)
	}

	if cmd.Bool("telegram") {
		if bot == nil {
			log.Error("telegram transport requested but bot is unavailable")
		} else {
			go telegramT.NewBot(bot, svc).Run(ctx)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}

func buildDependencies(ctx context.Context, cfg qarelay.Config, bot *tgbotapi.BotAPI, managerChatID int64, log *zap.Logger) (qarelay.Dependencies, error) {
	var deps qarelay.Dependencies

	vdb, err := chromem.NewChromemVectorDB(cfg.Vector)
	if err != nil {
		return deps, err
	}

	deps.Vector = vdb

	store, err := sqlite.NewHistoryStore(cfg.History.Path)
	if err != nil {
		return deps, err
	}

	deps.History = store

	deps.Loader = buildLoader(ctx, cfg.KnowledgeBase, log)

	if cfg.Completion.Enabled {
		if cfg.Completion.APIKey == "" {
			log.Warn("completion enabled but no API key, stored answers returned as-is")
		} else {
			deps.Completer = llmO.NewCompleter(cfg.Completion)
		}
	}

	deps.Notifier = buildNotifier(cfg.Escalation, bot, managerChatID, log)

	return deps, nil
}

func buildLoader(ctx context.Context, cfg kb.Config, log *zap.Logger) kb.Loader {
	switch cfg.Source {
	case "excel":
		if cfg.Path == "" {
			log.Warn("excel knowledge base source without a path")
			return nil
		}

		return kb.NewExcelLoader(cfg)

	case "sheets", "":
		if cfg.SpreadsheetID == "" || cfg.CredentialsFile == "" {
			log.Warn("sheets knowledge base source not fully configured")
			return nil
		}

		loader, err := kb.NewSheetsLoader(ctx, cfg)
		if err != nil {
			log.Error("sheets loader init failed", zap.Error(err))
			return nil
		}

		return loader

	default:
		log.Warn("unknown knowledge base source", zap.String("source", cfg.Source))
		return nil
	}
}

func buildNotifier(cfg qarelay.EscalationConfig, bot *tgbotapi.BotAPI, managerChatID int64, log *zap.Logger) escalate.Notifier {
	switch cfg.Transport {
	case escalate.TransportWebhook:
		if cfg.WebhookURL == "" {
			log.Warn("webhook escalation without a URL")
			return nil
		}

		return escalate.NewWebhookNotifier(escalate.Config{
			WebhookURL: cfg.WebhookURL,
			Timeout:    cfg.Timeout.Duration(),
		})

	case escalate.TransportTelegram, "":
		if bot == nil || managerChatID == 0 {
			log.Warn("telegram escalation without a bot or manager chat id")
			return nil
		}

		return escalate.NewTelegramNotifier(bot, managerChatID)

	default:
		log.Warn("unknown escalation transport", zap.String("transport", string(cfg.Transport)))
		return nil
	}
}
