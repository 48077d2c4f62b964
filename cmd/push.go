package cmd

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

type pushOptions struct {
	URL      string
	ID       string
	Name     string
	Insecure bool
	Timeout  time.Duration
}

var pushOpts pushOptions

var pushCmd = &cobra.Command{
	Use:   "push <file>",
	Short: "Upload a file to a running receiver",
	Example: `  backup_receiver push --url https://backups.internal:8443 --id db dump.sql
  backup_receiver push --url http://localhost:8080 --id db --name nightly/dump.sql dump.sql`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := push(cmd.Context(), pushOpts, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%s)\n", args[0], humanize.Bytes(uint64(size)))
		return nil
	},
}

func init() {
	flags := pushCmd.Flags()
	flags.StringVar(&pushOpts.URL, "url", "http://localhost:8080", "base URL of the receiver")
	flags.StringVar(&pushOpts.ID, "id", "", "backup id to upload to")
	flags.StringVar(&pushOpts.Name, "name", "", "filename to request (only used by routes with a default_filename)")
	flags.BoolVar(&pushOpts.Insecure, "insecure", false, "skip TLS certificate verification")
	flags.DurationVar(&pushOpts.Timeout, "timeout", 0, "overall request timeout (0 disables)")
	pushCmd.MarkFlagRequired("id") //nolint:errcheck
}

// pushURL builds /backup/<id>[/<name>] under base, escaping each segment
func pushURL(base, id, name string) string {
	u := strings.TrimSuffix(base, "/") + "/backup/" + url.PathEscape(id)
	if name == "" {
		return u
	}
	segments := strings.Split(strings.Trim(name, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return u + "/" + strings.Join(segments, "/")
}

// push streams file to the receiver with its length declared and returns the
// number of bytes sent
func push(ctx context.Context, opts pushOptions, file string) (int64, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetPreRequestHook(func(_ *resty.Client, r *http.Request) error {
			// stream the file instead of letting the body be buffered
			r.ContentLength = size
			return nil
		})
	if opts.Insecure {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(f).
		Put(pushURL(opts.URL, opts.ID, opts.Name))
	if err != nil {
		return 0, fmt.Errorf("upload failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("upload rejected: %s %s", resp.Status(), strings.TrimSpace(resp.String()))
	}
	return size, nil
}
