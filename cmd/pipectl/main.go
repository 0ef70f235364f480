package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "pipectl",
		Usage: "operate scenecast jobs from the terminal",
		Commands: []*cli.Command{
			jobsCommand(),
			scenesCommand(),
			retryCommand(),
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// apiFlags returns fresh connection flags; cli flags hold state, so each
// leaf command needs its own instances.
func apiFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "api",
			Usage: "base URL of the API (falls back to API_BASE_URL)",
		},
		&cli.StringFlag{
			Name:  "token",
			Usage: "bearer token (falls back to SERVICE_TOKEN)",
		},
	}
}

func clientFrom(cmd *cli.Command) *apiClient {
	return newAPIClient(cmd.String("api"), cmd.String("token"))
}

func jobsCommand() *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "create and inspect narration jobs",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "submit a new job",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "topic", Usage: "what the video should cover", Required: true},
					&cli.StringFlag{Name: "language", Usage: "ISO 639-1 narration language"},
					&cli.StringFlag{Name: "audience", Usage: "target audience, e.g. teens"},
					&cli.StringFlag{Name: "hint", Usage: "free-form style hint for the script"},
					&cli.StringFlag{Name: "reuse", Usage: "existing job id to reset and rerun"},
				}, apiFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					payload := map[string]any{
						"topic":    cmd.String("topic"),
						"language": cmd.String("language"),
						"audience": cmd.String("audience"),
						"hint":     cmd.String("hint"),
					}
					if reuse := cmd.String("reuse"); reuse != "" {
						payload["reuse_job_id"] = reuse
					}
					raw, err := clientFrom(cmd).do(ctx, "POST", "/v1/jobs", payload)
					if err != nil {
						return err
					}
					return printJSON(raw)
				},
			},
			{
				Name:  "list",
				Usage: "list recent jobs, newest first",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "maximum jobs to return", Value: 20},
				}, apiFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := fmt.Sprintf("/v1/jobs?limit=%d", cmd.Int("limit"))
					raw, err := clientFrom(cmd).do(ctx, "GET", path, nil)
					if err != nil {
						return err
					}
					return printJSON(raw)
				},
			},
			{
				Name:  "show",
				Usage: "print the full status snapshot of a job",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "job id", Required: true},
				}, apiFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					raw, err := clientFrom(cmd).do(ctx, "GET", "/v1/jobs/"+url.PathEscape(cmd.String("id")), nil)
					if err != nil {
						return err
					}
					return printJSON(raw)
				},
			},
			{
				Name:  "restart",
				Usage: "reset a job to queued and rerun the pipeline",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "job id", Required: true},
				}, apiFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					raw, err := clientFrom(cmd).do(ctx, "POST", "/v1/jobs/"+url.PathEscape(cmd.String("id"))+"/restart", nil)
					if err != nil {
						return err
					}
					return printJSON(raw)
				},
			},
			{
				Name:  "delete",
				Usage: "delete a job, its scenes and its stored assets",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "job id", Required: true},
				}, apiFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					raw, err := clientFrom(cmd).do(ctx, "DELETE", "/v1/jobs/"+url.PathEscape(cmd.String("id")), nil)
					if err != nil {
						return err
					}
					return printJSON(raw)
				},
			},
			{
				Name:  "archive",
				Usage: "download the job bundle as a zip",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "job id", Required: true},
					&cli.StringFlag{Name: "out", Usage: "output file", Value: "job.zip"},
				}, apiFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					raw, err := clientFrom(cmd).do(ctx, "GET", "/v1/jobs/"+url.PathEscape(cmd.String("id"))+"/archive", nil)
					if err != nil {
						return err
					}
					out := cmd.String("out")
					if err := os.WriteFile(out, raw, 0o644); err != nil {
						return fmt.Errorf("write %s: %w", out, err)
					}
					fmt.Printf("wrote %s (%d bytes)\n", out, len(raw))
					return nil
				},
			},
		},
	}
}

func scenesCommand() *cli.Command {
	return &cli.Command{
		Name:  "scenes",
		Usage: "per-scene operations",
		Commands: []*cli.Command{
			{
				Name:  "image",
				Usage: "generate one scene image synchronously",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "job", Usage: "job id", Required: true},
					&cli.StringFlag{Name: "scene", Usage: "scene id", Required: true},
					&cli.BoolFlag{Name: "force", Usage: "regenerate even if an image exists"},
				}, apiFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := "/v1/jobs/" + url.PathEscape(cmd.String("job")) +
						"/scenes/" + url.PathEscape(cmd.String("scene")) + "/image"
					raw, err := clientFrom(cmd).do(ctx, "POST", path, map[string]any{
						"force": cmd.Bool("force"),
					})
					if err != nil {
						return err
					}
					return printJSON(raw)
				},
			},
		},
	}
}

func retryCommand() *cli.Command {
	return &cli.Command{
		Name:  "retry",
		Usage: "queue asset regeneration for a job",
		Commands: []*cli.Command{
			{
				Name:  "images",
				Usage: "queue image regeneration",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "job", Usage: "job id", Required: true},
					&cli.StringFlag{Name: "scenes", Usage: "comma-separated scene ids; empty means all"},
					&cli.BoolFlag{Name: "missing-only", Usage: "only scenes without an image"},
				}, apiFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					payload := map[string]any{
						"scene_ids":    splitIDs(cmd.String("scenes")),
						"missing_only": cmd.Bool("missing-only"),
					}
					path := "/v1/jobs/" + url.PathEscape(cmd.String("job")) + "/images/retry"
					raw, err := clientFrom(cmd).do(ctx, "POST", path, payload)
					if err != nil {
						return err
					}
					return printJSON(raw)
				},
			},
			{
				Name:  "audio",
				Usage: "queue narration regeneration",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "job", Usage: "job id", Required: true},
					&cli.StringFlag{Name: "scenes", Usage: "comma-separated scene ids; empty means all"},
					&cli.BoolFlag{Name: "force", Usage: "regenerate even where audio exists"},
				}, apiFlags()...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					payload := map[string]any{
						"scene_ids": splitIDs(cmd.String("scenes")),
						"force":     cmd.Bool("force"),
					}
					path := "/v1/jobs/" + url.PathEscape(cmd.String("job")) + "/audio/retry"
					raw, err := clientFrom(cmd).do(ctx, "POST", path, payload)
					if err != nil {
						return err
					}
					return printJSON(raw)
				},
			},
		},
	}
}

func splitIDs(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}
