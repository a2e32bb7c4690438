package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"genstudio/internal/app"
	"genstudio/internal/generation"
	"genstudio/internal/upstream"
)

type generateOptions struct {
	prompt         string
	negativePrompt string
	model          string
	resolution     string
	aspectRatio    string
	count          int
	refs           []string
	token          string
	outDir         string
}

func generateCommand(cli *cliContext) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate images and add them to history",
		Long: `Generate images with the configured upstream API.

Resolution, aspect ratio and count default to the values used last time.
Transient upstream failures (5xx) are retried with exponential backoff.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.withApp(cmd.Context(), func(a *app.App) error {
				return runGenerate(cmd, cli, a, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "Prompt text (required)")
	cmd.Flags().StringVar(&opts.negativePrompt, "negative", "", "Negative prompt")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model id (required)")
	cmd.Flags().StringVarP(&opts.resolution, "resolution", "r", "", "Resolution tier: 1k, 2k, 4k")
	cmd.Flags().StringVarP(&opts.aspectRatio, "aspect", "a", "", "Aspect ratio, e.g. 1:1, 16:9")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, fmt.Sprintf("Number of images (1-%d)", generation.MaxCount))
	cmd.Flags().StringArrayVar(&opts.refs, "ref", nil, "Reference image file (repeatable)")
	cmd.Flags().StringVar(&opts.token, "token", "", "API token key to use instead of the configured one")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Directory to write the generated images to")
	_ = cmd.MarkFlagRequired("prompt")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runGenerate(cmd *cobra.Command, cli *cliContext, a *app.App, opts *generateOptions) error {
	ctx := cmd.Context()

	settings := generation.LoadSettings(ctx, a.Settings())
	req := generation.Request{
		Prompt:         opts.prompt,
		NegativePrompt: opts.negativePrompt,
		Model:          opts.model,
		Resolution:     settings.Resolution,
		AspectRatio:    settings.AspectRatio,
		Count:          settings.NumberOfImages,
	}
	if cmd.Flags().Changed("resolution") {
		req.Resolution = opts.resolution
	}
	if cmd.Flags().Changed("aspect") {
		req.AspectRatio = opts.aspectRatio
	}
	if cmd.Flags().Changed("count") {
		req.Count = opts.count
	}

	for _, path := range opts.refs {
		ref, err := generation.LoadReferenceImage(path)
		if err != nil {
			return err
		}
		req.ReferenceImages = append(req.ReferenceImages, ref)
	}

	a.Orchestrator().Machine().OnChange(func(s generation.Snapshot) {
		if s.State == generation.StateRetrying {
			if s.Advisory != "" {
				fmt.Fprintln(cli.errOut, s.Advisory)
			}
			fmt.Fprintf(cli.errOut, "attempt %d failed, retrying (%d so far)\n", s.Attempt, s.Retries)
		}
	})

	genCtx := upstream.ContextWithAPIKey(ctx, opts.token)
	snap, err := a.Orchestrator().Generate(genCtx, req)
	if err != nil {
		return err
	}

	req.Normalize()
	if err := generation.SaveSettings(ctx, a.Settings(), req); err != nil {
		fmt.Fprintln(cli.errOut, "warning: failed to save settings:", err)
	}

	var written []string
	if opts.outDir != "" {
		written, err = exportImages(ctx, a, snap, opts.outDir)
		if err != nil {
			return err
		}
	}

	if cli.jsonOutput {
		return cli.printJSON(snap)
	}

	fmt.Fprintf(cli.out, "record %s: %d image(s)\n", snap.RecordID, len(snap.Images))
	for i, img := range snap.Images {
		line := fmt.Sprintf("  %s  %s  %dx%d  %d bytes", img.ID, img.MimeType, img.Width, img.Height, img.ByteSize)
		if i < len(written) {
			line += "  " + written[i]
		}
		fmt.Fprintln(cli.out, line)
	}
	return nil
}

func exportImages(ctx context.Context, a *app.App, snap generation.Snapshot, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(snap.Images))
	for _, img := range snap.Images {
		path := filepath.Join(dir, img.ID+extensionFor(img.MimeType))
		if err := writeImage(ctx, a, img.ID, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeImage(ctx context.Context, a *app.App, id, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := a.Images().Export(ctx, id, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to export image %s: %w", id, err)
	}
	return f.Close()
}

func extensionFor(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil {
		return m.Extension()
	}
	return ".bin"
}
