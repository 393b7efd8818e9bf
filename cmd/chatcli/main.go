// Package main is a small CLI for talking to a chat gateway.
package main

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aithena-ai/chatstream/internal/auth"
	"github.com/aithena-ai/chatstream/internal/chat"
	"github.com/aithena-ai/chatstream/internal/config"
	"github.com/aithena-ai/chatstream/internal/crypto"
	"github.com/aithena-ai/chatstream/internal/model"
	"github.com/aithena-ai/chatstream/pkg/logger"
	"github.com/aithena-ai/chatstream/pkg/tracing"
)

func main() {
	var (
		modelName      = flag.String("model", "", "model to generate with")
		prompt         = flag.String("prompt", "", "user prompt to send")
		conversationID = flag.String("conversation", "", "conversation ID (generated when empty)")
		listModels     = flag.Bool("list-models", false, "list available models and exit")
		noStream       = flag.Bool("no-stream", false, "use the non-streaming completion endpoint")
	)
	flag.Parse()

	cfg := config.Load()

	log, err := logger.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chatstream-cli", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	username := cfg.Username
	if username == "" {
		username = os.Getenv("USER")
	}

	// Each CLI run uses an ephemeral keypair; the gateway wraps reply keys
	// against the public half sent along with the request.
	key, err := keyPair(cfg)
	if err != nil {
		log.Fatal("failed to prepare key pair", zap.Error(err))
	}
	publicPEM, err := crypto.PublicKeyPEM(&key.PublicKey)
	if err != nil {
		log.Fatal("failed to encode public key", zap.Error(err))
	}

	var headers auth.HeaderProvider
	if cfg.JWTSecret != "" {
		headers = auth.JWT(username, cfg.JWTSecret, cfg.JWTExpiration, nil)
	} else {
		headers = auth.Static(username)
	}
	headers = auth.WithHeader(headers, "X-Client-Public-Key", base64.StdEncoding.EncodeToString(publicPEM))

	client := chat.NewClient(chat.ClientConfig{
		BaseURL:         cfg.GatewayURL,
		GenerateTimeout: cfg.GenerateTimeout,
		MetadataTimeout: cfg.MetadataTimeout,
		ModelCacheTTL:   cfg.ModelCacheTTL,
	}, headers, crypto.NewEnvelope(key, nil), log)

	if *listModels {
		models, err := client.GetModels(ctx)
		if err != nil {
			log.Fatal("failed to list models", zap.Error(err))
		}
		for _, m := range models {
			fmt.Printf("%s\t%s\t%s\n", m.ID, m.DisplayName, m.Provider)
		}
		return
	}

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "usage: chatcli -model <name> -prompt <text> [-conversation <id>]")
		os.Exit(2)
	}

	convID := *conversationID
	if convID == "" {
		convID = uuid.New().String()
	}
	messages := []model.ChatMessage{model.NewUserMessage(*prompt)}

	if *noStream {
		reply, err := client.GenerateChatCompletion(ctx, *modelName, messages, convID, nil)
		if err != nil {
			log.Fatal("completion failed", zap.Error(err))
		}
		fmt.Println(reply)
		return
	}

	err = client.StreamChat(ctx, *modelName, messages, convID, nil, func(d model.Delta) error {
		switch d.Kind {
		case model.DeltaText:
			fmt.Print(d.Text)
		case model.DeltaError:
			fmt.Printf("\n*ERROR* [%s]: %s\n", d.ErrorKind, d.Detail)
		case model.DeltaPlaceholder:
			fmt.Print(d.Reason)
		}
		return nil
	})
	if err != nil {
		log.Fatal("stream failed", zap.Error(err))
	}
	fmt.Println()
}

// keyPair loads the configured private key, or generates an ephemeral one.
func keyPair(cfg *config.Config) (*rsa.PrivateKey, error) {
	if cfg.PrivateKeyFile != "" {
		data, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, err
		}
		return crypto.ParsePrivateKeyPEM(data)
	}
	return crypto.GenerateKeyPair()
}
