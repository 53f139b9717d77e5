package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"teralink/internal"
	"teralink/resolver"
	"teralink/utils"
)

var (
	jsonOutput bool
	quiet      bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <URL>",
	Short: "Resolve one share link and print its files",
	Long: `Resolve one share link and print its files with their direct links.

Examples:
  teralink resolve https://terabox.com/s/1AbC123
  teralink resolve --json https://www.terabox.app/sharing/link?surl=AbC123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		linkResolver, err := buildResolver()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result, err := resolveWithBar(ctx, linkResolver, args[0], func(total int64) *utils.ProgressTracker {
			return utils.NewProgressTracker(total, quiet || jsonOutput)
		})
		if err != nil {
			if te, ok := internal.AsTeraboxError(err); ok {
				internal.LogTeraboxError(te)
				return fmt.Errorf("%s", te.DetailedError())
			}
			return err
		}

		if jsonOutput {
			return writeJSON(os.Stdout, result)
		}
		return writeTable(os.Stdout, result)
	},
}

type progressResolver interface {
	ResolveWithProgress(ctx context.Context, rawURL string, progress resolver.ProgressFunc) (*internal.ResolveResult, error)
}

// resolveWithBar resolves rawURL and draws a bar once the file count is known.
// The bar is closed on both success and failure.
func resolveWithBar(ctx context.Context, r progressResolver, rawURL string, newTracker func(total int64) *utils.ProgressTracker) (*internal.ResolveResult, error) {
	var (
		once    sync.Once
		tracker *utils.ProgressTracker
	)
	progress := func(done, total int) {
		once.Do(func() {
			tracker = newTracker(int64(total))
		})
		tracker.Update(int64(done))
	}

	result, err := r.ResolveWithProgress(ctx, rawURL, progress)
	if tracker == nil {
		return result, err
	}
	if err != nil {
		tracker.Abort()
		return nil, err
	}

	for i := 0; i < result.PartialCount(); i++ {
		tracker.MarkPartial()
	}
	tracker.Finish()
	return result, nil
}

func writeJSON(w io.Writer, result *internal.ResolveResult) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"url":             result.URL,
		"files":           result.Files,
		"count":           result.Count(),
		"processing_time": fmt.Sprintf("%.2fs", result.ProcessingTime.Seconds()),
		"cached":          result.Cached,
	})
}

func writeTable(w io.Writer, result *internal.ResolveResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tMODIFIED\tDIRECT URL")
	for _, f := range result.Files {
		modified := "-"
		if f.Modified > 0 {
			modified = humanize.Time(time.Unix(f.Modified, 0))
		}
		link := f.DirectURL
		if f.Partial {
			link += " (indirect)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Filename, f.Size, modified, link)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !quiet {
		suffix := ""
		if result.Cached {
			suffix = " (cached)"
		}
		fmt.Fprintf(w, "\n%d file(s)%s\n", result.Count(), suffix)
	}
	return nil
}

func init() {
	resolveCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	resolveCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
}
