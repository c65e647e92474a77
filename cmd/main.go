package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/config"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	vaultPath := flag.String("vault", "", "Path to the Obsidian vault")
	dbURL := flag.String("db-url", "", "PostgreSQL connection string")
	provider := flag.String("provider", "", "Generation provider (ollama, openai, anthropic)")
	port := flag.String("port", "", "HTTP server port (serve command)")
	stream := flag.Bool("stream", true, "Enable streaming responses")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	if *vaultPath != "" {
		cfg.Vault.Path = *vaultPath
	}
	if *dbURL != "" {
		cfg.Database.URL = *dbURL
	}
	if *provider != "" {
		cfg.LLM.DefaultProvider = *provider
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	cfg.Server.Streaming = *stream

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "ingest":
		err = runIngest(cfg)
	case "chat", "":
		err = runChat(cfg)
	case "serve":
		err = runServe(cfg)
	default:
		fmt.Fprintln(os.Stderr, "usage: spiritual-chatbot [flags] <ingest|chat|serve>")
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
