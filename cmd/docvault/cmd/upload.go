package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/eshaffer321/docvault-go/pkg/docvault"
	"github.com/spf13/cobra"
)

var (
	uploadTitle    string
	uploadMetadata map[string]string
	queueJSON      bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a document, queueing it when offline",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List uploads waiting for connectivity",
	Args:  cobra.NoArgs,
	RunE:  runQueue,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Send queued uploads now",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(uploadCmd, queueCmd, syncCmd)
	uploadCmd.Flags().StringVarP(&uploadTitle, "title", "t", "", "document title (default file name)")
	uploadCmd.Flags().StringToStringVarP(&uploadMetadata, "meta", "m", nil, "extra metadata as key=value")
	queueCmd.Flags().BoolVar(&queueJSON, "json", false, "Output the queue as JSON")
}

// uploadFields builds the form fields sent with a file
func uploadFields(path, title string, extra map[string]string) map[string]string {
	fields := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		fields[k] = v
	}
	if title == "" {
		title = filepath.Base(path)
	}
	fields["title"] = title
	return fields
}

func runUpload(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	client, logger, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	res, err := client.Uploads.UploadFile(commandContext(cmd), "file://"+path, uploadFields(path, uploadTitle, uploadMetadata))
	switch {
	case docvault.IsQueued(err):
		fmt.Fprintf(cmd.OutOrStdout(), "Offline: queued %s (%d waiting)\n", filepath.Base(path), client.Uploads.QueuedUploadCount())
		return nil
	case err != nil:
		return fmt.Errorf("upload failed: %s", docvault.Message(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as #%d\n", res.Title, res.ID)
	return nil
}

func runQueue(cmd *cobra.Command, args []string) error {
	client, logger, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	pending, err := client.Uploads.Pending(commandContext(cmd))
	if err != nil {
		return err
	}

	if queueJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(pending)
	}

	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No queued uploads")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "QUEUED\tTITLE\tFILE")
	for _, p := range pending {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.EnqueuedAt.Local().Format("2006-01-02 15:04"), p.Metadata["title"], p.FileLocation)
	}
	return w.Flush()
}

func runSync(cmd *cobra.Command, args []string) error {
	client, logger, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	result, err := client.Uploads.Sync(commandContext(cmd))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d of %d, %d still queued\n",
		result.Delivered, result.Attempted, client.Uploads.QueuedUploadCount())
	return nil
}
