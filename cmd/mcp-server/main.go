package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/docvault-go/pkg/docvault"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sessions persist in DOCVAULT_CREDENTIAL_FILE when set, memory otherwise
	client, err := docvault.NewClient(&docvault.ClientOptions{
		BaseURL:        os.Getenv("DOCVAULT_BASE_URL"),
		CredentialFile: os.Getenv("DOCVAULT_CREDENTIAL_FILE"),
		QueueDSN:       os.Getenv("DOCVAULT_QUEUE_DSN"),
		SentryDSN:      os.Getenv("DOCVAULT_SENTRY_DSN"),
	})
	if err != nil {
		log.Fatalf("failed to initialize document vault client: %v", err)
	}
	defer client.Close()

	if err := client.Start(ctx); err != nil {
		log.Printf("could not resume session: %v", err)
	}

	// Sign in from the environment when no stored session was resumed
	if username := os.Getenv("DOCVAULT_USERNAME"); username != "" && !client.Auth.IsAuthenticated() {
		if err := client.Auth.Login(ctx, username, os.Getenv("DOCVAULT_PASSWORD")); err != nil {
			log.Printf("login failed: %s", docvault.Message(err))
		}
	}

	impl := &mcp.Implementation{
		Name:    "docvault",
		Version: "1.0.0",
	}

	server := mcp.NewServer(impl, nil)

	// Register all tools
	registerTools(server, client)

	// Run server over stdio transport
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Printf("server error: %v", err)
	}
}

func registerTools(server *mcp.Server, client *docvault.Client) {
	tools := &vaultTools{client: client}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "whoami",
		Description: "Get the signed-in account profile. Fails when no session is active.",
	}, tools.WhoAmI)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "upload_file",
		Description: "Upload a local document with a title and optional metadata. When the device is offline the upload is queued and sent once connectivity returns.",
	}, tools.UploadFile)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "queue_status",
		Description: "List uploads waiting for connectivity, oldest first.",
	}, tools.QueueStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_uploads",
		Description: "Try to send every queued upload now. Uploads that fail stay queued.",
	}, tools.SyncUploads)
}
