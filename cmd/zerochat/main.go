// zerochat is a terminal client for a metered, pay-per-use AI inference
// network: fund a prepaid balance, pick a model, chat, and watch each
// message settle against the tracked ledger.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zerochat/zerochat/internal/client"
	"github.com/zerochat/zerochat/internal/config"
	"github.com/zerochat/zerochat/internal/network"
)

func main() {
	var (
		configFlag string
		dbFlag     string
		endpoint   string
		debugFlag  bool
		stubFlag   bool
	)

	args := os.Args[1:]
	i := 0
	for i < len(args) {
		switch args[i] {
		case "-h", "--help":
			printHelp()
			return
		case "-c", "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --config requires a value")
				os.Exit(1)
			}
			configFlag = args[i+1]
			i += 2
		case "--db":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --db requires a value")
				os.Exit(1)
			}
			dbFlag = args[i+1]
			i += 2
		case "--network":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --network requires a value")
				os.Exit(1)
			}
			endpoint = args[i+1]
			i += 2
		case "-d", "--debug":
			debugFlag = true
			i++
		case "--stub":
			stubFlag = true
			i++
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown option: %s\n", args[i])
			os.Exit(1)
		}
	}

	loadEnvFiles()
	setupLogging(debugFlag)

	cfg, err := config.Load(configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if dbFlag != "" {
		cfg.History.Path = dbFlag
	}
	if endpoint != "" {
		cfg.Network.Endpoint = endpoint
	}
	if debugFlag {
		cfg.Logging.Level = "debug"
	}
	applyLogLevel(cfg.Logging.Level)

	var backend network.Backend
	if stubFlag {
		// Offline demo mode: deterministic responses, no network.
		backend = network.NewStubBackend("This is a stubbed reply; run without --stub to reach the network.")
		cfg.Network.StatusStream = false
	} else {
		backend = network.NewHTTPBackend(cfg.Network.Endpoint, cfg.Network.APIKey,
			network.WithInvokeTimeout(cfg.Network.InvokeTimeout))
	}

	cl, err := client.New(cfg, backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cl.Close()

	// Ctrl-C tears the session down; an in-flight send is rolled back.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := runREPL(cl, sigCh); err != nil {
		log.Error().Err(err).Msg("session ended with error")
		os.Exit(1)
	}
}

// loadEnvFiles loads .env from the working directory if present.
func loadEnvFiles() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

func setupLogging(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func applyLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func printHelp() {
	fmt.Print(`zerochat - prepaid AI inference chat client

Usage: zerochat [options]

Options:
  -c, --config <path>   Config file (YAML)
      --db <path>       SQLite transaction history (default: in-memory)
      --network <url>   Compute network endpoint
      --stub            Offline demo mode with stubbed responses
  -d, --debug           Debug logging
  -h, --help            Show this help

Environment:
  ZEROCHAT_BASE_URL     Network endpoint (overridden by --network)
  ZEROCHAT_API_KEY      API key for the network
`)
}
