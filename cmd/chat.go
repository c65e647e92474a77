package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"

	"github.com/FrancescoCavina02/Spiritual-chatbot/internal/models"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/config"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/llm"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/rag"
	"github.com/FrancescoCavina02/Spiritual-chatbot/pkg/store"
)

// runChat is the interactive terminal loop: read a question, retrieve
// context, generate an answer and print the sources behind it.
func runChat(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is required (use -db-url or DATABASE_URL)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		RateLimit: cfg.Embedding.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %v", err)
	}

	vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString:  cfg.Database.URL,
		TableName:   cfg.Database.TableName,
		VectorDim:   cfg.Database.VectorDim,
		SearchLimit: cfg.Database.SearchLimit,
	})
	if err != nil {
		return fmt.Errorf("connecting to vector store: %v", err)
	}
	defer vs.Close()

	engine := rag.NewWithConfig(rag.EngineConfig{
		TopK:         cfg.RAG.TopK,
		ContextLimit: cfg.RAG.ContextLimit,
	}, embedder, vs)

	generator := llm.NewService(llm.ServiceConfig{
		OllamaURL:      cfg.LLM.OllamaURL,
		OllamaModel:    cfg.LLM.OllamaModel,
		OpenAIKey:      cfg.LLM.OpenAIKey,
		OpenAIModel:    cfg.LLM.OpenAIModel,
		AnthropicKey:   cfg.LLM.AnthropicKey,
		AnthropicModel: cfg.LLM.AnthropicModel,
	})
	if len(generator.Available()) == 0 {
		return llm.ErrNoProviders
	}

	color.Cyan("Spiritual Chatbot — ask about your notes. Type 'exit' to quit.")
	fmt.Println()

	var history []models.ChatMessage
	scanner := bufio.NewScanner(os.Stdin)
	for {
		color.Set(color.FgGreen)
		fmt.Print("You: ")
		color.Unset()
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		spinner := getSpinner(" Searching notes")
		contextText, citations, err := engine.RetrieveContext(ctx, question, "", "")
		spinner.Finish()
		fmt.Print("\r")
		if err != nil {
			color.Red("retrieval failed: %v", err)
			continue
		}

		prompt := engine.ConstructPrompt(question, contextText, history)

		color.Set(color.FgYellow)
		fmt.Print("Assistant: ")
		color.Unset()

		var answer string
		if cfg.Server.Streaming {
			stream, err := generator.GenerateStream(ctx, cfg.LLM.DefaultProvider, prompt, llm.GenerateOptions{
				Temperature: cfg.LLM.Temperature,
				MaxTokens:   cfg.LLM.MaxTokens,
			})
			if err != nil {
				color.Red("generation failed: %v", err)
				continue
			}
			var sb strings.Builder
			for fragment := range stream {
				fmt.Print(fragment)
				sb.WriteString(fragment)
			}
			answer = sb.String()
			fmt.Println()
		} else {
			answer, err = generator.Generate(ctx, cfg.LLM.DefaultProvider, prompt, llm.GenerateOptions{
				Temperature: cfg.LLM.Temperature,
				MaxTokens:   cfg.LLM.MaxTokens,
			})
			if err != nil {
				color.Red("generation failed: %v", err)
				continue
			}
			fmt.Println(answer)
		}

		printCitations(citations, engine.ParseCitations(answer))
		fmt.Println()

		history = append(history,
			models.ChatMessage{Role: "user", Content: question},
			models.ChatMessage{Role: "assistant", Content: answer},
		)
	}
}

// printCitations lists the retrieved sources, marking those the answer
// actually cited.
func printCitations(citations []models.Citation, cited []string) {
	if len(citations) == 0 {
		return
	}

	citedSet := make(map[string]bool, len(cited))
	for _, title := range cited {
		citedSet[title] = true
	}

	color.Set(color.FgBlue)
	fmt.Println("Sources:")
	color.Unset()
	for _, c := range citations {
		marker := " "
		label := c.Title
		if c.Book != "" {
			label = c.Book + " - " + c.Title
		}
		if citedSet[label] || citedSet[c.Title] {
			marker = "*"
		}
		fmt.Printf("  %s %s (%.3f)\n", marker, label, c.RelevanceScore)
	}
}
