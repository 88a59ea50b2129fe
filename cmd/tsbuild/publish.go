package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/tsbuild/internal/build"
	"github.com/vango-dev/tsbuild/internal/errors"
	"github.com/vango-dev/tsbuild/internal/publish"
)

type publishFlags struct {
	bucket string
	prefix string
	region string
	build  bool
}

func publishCmd(g *globalFlags) *cobra.Command {
	f := &publishFlags{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the output directory to S3",
		Long: `Upload every file of the output directory to an S3 bucket.

Credentials come from the default AWS chain (environment, shared
config, instance role). Object keys are the file paths relative to the
output directory, below --prefix.

Examples:
  tsbuild publish --bucket=my-site
  tsbuild publish --bucket=my-site --prefix=releases/v2 --build`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(g, f)
		},
	}

	cmd.Flags().StringVar(&f.bucket, "bucket", "", "S3 bucket (default from tsbuild.json)")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "Key prefix (default from tsbuild.json)")
	cmd.Flags().StringVar(&f.region, "region", "", "AWS region (default from the AWS config)")
	cmd.Flags().BoolVar(&f.build, "build", false, "Build before uploading")

	return cmd
}

func runPublish(g *globalFlags, f *publishFlags) error {
	cfg, err := loadProject(g)
	if err != nil {
		return err
	}

	// Apply command-line overrides
	if f.bucket != "" {
		cfg.Publish.Bucket = f.bucket
	}
	if f.prefix != "" {
		cfg.Publish.Prefix = f.prefix
	}
	if f.region != "" {
		cfg.Publish.Region = f.region
	}
	if cfg.Publish.Bucket == "" {
		return errors.New("E181").
			WithSuggestion("Pass --bucket or set publish.bucket in tsbuild.json")
	}

	ctx, cancel := signalContext(nil)
	defer cancel()

	if f.build {
		builder := build.New(cfg, build.Options{
			Stdout:     stdout,
			Stderr:     stderr,
			OnProgress: func(step string) { info(step) },
			OnWarning:  func(msg string) { warn("%s", msg) },
		})
		if _, err := builder.Build(ctx); err != nil {
			return err
		}
	}

	client, err := publish.NewS3(ctx, cfg.Publish.Region)
	if err != nil {
		return err
	}

	uploader := publish.New(client, cfg.Publish.Bucket, cfg.Publish.Prefix)
	uploader.OnUpload = func(obj publish.Object) {
		info("%s (%s)", obj.Key, formatBytes(obj.Size))
	}

	report, err := uploader.Upload(ctx, cfg.OutputPath())
	if err != nil {
		if report != nil && len(report.Objects) > 0 {
			errorMsg("Stopped after uploading %d files", len(report.Objects))
		}
		return err
	}

	fmt.Fprintln(stdout)
	success("Published %d files (%s) to s3://%s", len(report.Objects), formatBytes(report.Bytes), report.Bucket)
	return nil
}
