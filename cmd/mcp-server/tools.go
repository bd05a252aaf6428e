package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/eshaffer321/docvault-go/pkg/docvault"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// vaultTools holds the document vault client and implements all tool handlers
type vaultTools struct {
	client *docvault.Client
}

// WhoAmI tool - returns the signed-in profile
type WhoAmIInput struct{}

type WhoAmIOutput struct {
	ID        int       `json:"id" jsonschema:"Account ID"`
	Username  string    `json:"username" jsonschema:"Account username"`
	Email     string    `json:"email,omitempty" jsonschema:"Account email"`
	Name      string    `json:"name,omitempty" jsonschema:"Full name"`
	ExpiresAt time.Time `json:"expiresAt" jsonschema:"When the current access token expires"`
}

func (t *vaultTools) WhoAmI(ctx context.Context, req *mcp.CallToolRequest, input WhoAmIInput) (*mcp.CallToolResult, WhoAmIOutput, error) {
	if !t.client.Auth.IsAuthenticated() {
		return nil, WhoAmIOutput{}, fmt.Errorf("not signed in")
	}

	user, err := t.client.Auth.Me(ctx)
	if err != nil {
		return nil, WhoAmIOutput{}, fmt.Errorf("failed to fetch profile: %s", docvault.Message(err))
	}

	out := WhoAmIOutput{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}
	if user.FirstName != "" || user.LastName != "" {
		out.Name = user.FirstName + " " + user.LastName
	}
	if session := t.client.Auth.Session(); session != nil {
		out.ExpiresAt = session.ExpiresAt
	}
	return nil, out, nil
}

// UploadFile tool - uploads a document or queues it while offline
type UploadFileInput struct {
	Path     string            `json:"path" jsonschema:"Absolute path of the document on this machine"`
	Title    string            `json:"title,omitempty" jsonschema:"Document title (defaults to the file name)"`
	Metadata map[string]string `json:"metadata,omitempty" jsonschema:"Extra metadata fields sent with the file (optional)"`
}

type UploadFileOutput struct {
	Queued      bool   `json:"queued" jsonschema:"True when the upload waits for connectivity"`
	ID          int    `json:"id,omitempty" jsonschema:"ID assigned by the vault"`
	Title       string `json:"title" jsonschema:"Title the document was stored under"`
	QueuedCount int    `json:"queuedCount" jsonschema:"Uploads currently waiting for connectivity"`
}

func (t *vaultTools) UploadFile(ctx context.Context, req *mcp.CallToolRequest, input UploadFileInput) (*mcp.CallToolResult, UploadFileOutput, error) {
	if input.Path == "" {
		return nil, UploadFileOutput{}, fmt.Errorf("path is required")
	}
	if !filepath.IsAbs(input.Path) {
		return nil, UploadFileOutput{}, fmt.Errorf("path must be absolute: %s", input.Path)
	}

	fields := make(map[string]string, len(input.Metadata)+1)
	for k, v := range input.Metadata {
		fields[k] = v
	}
	title := input.Title
	if title == "" {
		title = filepath.Base(input.Path)
	}
	fields["title"] = title

	res, err := t.client.Uploads.UploadFile(ctx, "file://"+input.Path, fields)
	if docvault.IsQueued(err) {
		return nil, UploadFileOutput{
			Queued:      true,
			Title:       title,
			QueuedCount: t.client.Uploads.QueuedUploadCount(),
		}, nil
	}
	if err != nil {
		return nil, UploadFileOutput{}, fmt.Errorf("upload failed: %s", docvault.Message(err))
	}

	return nil, UploadFileOutput{
		ID:          res.ID,
		Title:       res.Title,
		QueuedCount: t.client.Uploads.QueuedUploadCount(),
	}, nil
}

// QueueStatus tool - lists queued uploads
type QueueStatusInput struct{}

type QueuedEntry struct {
	Path       string            `json:"path" jsonschema:"Queued file location"`
	Title      string            `json:"title,omitempty" jsonschema:"Document title"`
	Metadata   map[string]string `json:"metadata,omitempty" jsonschema:"Metadata sent with the file"`
	EnqueuedAt time.Time         `json:"enqueuedAt" jsonschema:"When the upload was queued"`
}

type QueueStatusOutput struct {
	Uploads []QueuedEntry `json:"uploads" jsonschema:"Queued uploads, oldest first"`
	Count   int           `json:"count" jsonschema:"Number of queued uploads"`
}

func (t *vaultTools) QueueStatus(ctx context.Context, req *mcp.CallToolRequest, input QueueStatusInput) (*mcp.CallToolResult, QueueStatusOutput, error) {
	pending, err := t.client.Uploads.Pending(ctx)
	if err != nil {
		return nil, QueueStatusOutput{}, fmt.Errorf("failed to read upload queue: %w", err)
	}

	entries := make([]QueuedEntry, 0, len(pending))
	for _, p := range pending {
		entries = append(entries, QueuedEntry{
			Path:       p.FileLocation,
			Title:      p.Metadata["title"],
			Metadata:   p.Metadata,
			EnqueuedAt: p.EnqueuedAt,
		})
	}

	return nil, QueueStatusOutput{
		Uploads: entries,
		Count:   len(entries),
	}, nil
}

// SyncUploads tool - drains the queue now
type SyncUploadsInput struct{}

type SyncUploadsOutput struct {
	Attempted int `json:"attempted" jsonschema:"Queued uploads tried"`
	Delivered int `json:"delivered" jsonschema:"Uploads sent and removed from the queue"`
	Remaining int `json:"remaining" jsonschema:"Uploads still queued"`
}

func (t *vaultTools) SyncUploads(ctx context.Context, req *mcp.CallToolRequest, input SyncUploadsInput) (*mcp.CallToolResult, SyncUploadsOutput, error) {
	result, err := t.client.Uploads.Sync(ctx)
	if err != nil {
		return nil, SyncUploadsOutput{}, fmt.Errorf("failed to sync uploads: %w", err)
	}

	return nil, SyncUploadsOutput{
		Attempted: result.Attempted,
		Delivered: result.Delivered,
		Remaining: t.client.Uploads.QueuedUploadCount(),
	}, nil
}
