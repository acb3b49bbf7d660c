/**
 * AdTopics CLI
 *
 * Runs the ad mining pipeline locally, submits jobs to the worker queue and
 * queries stored results.
 */

package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load(".env.adtopics")

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	formatFlag := &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "json",
		Usage:   "output format: json or yaml",
	}
	languageFlag := &cli.StringFlag{
		Name:    "language",
		Aliases: []string{"l"},
		Usage:   "ISO 639-1 language of the ads, e.g. en or de",
	}

	return &cli.App{
		Name:  "adtopics",
		Usage: "mine topics from ad creatives",
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Usage:     "OCR ad creatives into headline, description and sitelinks",
				ArgsUsage: "<image url or file>...",
				Flags:     []cli.Flag{formatFlag},
				Action:    ExtractAction,
			},
			{
				Name:  "keyphrases",
				Usage: "extract keyphrases from ad text",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "headline", Usage: "ad headline"},
					&cli.StringFlag{Name: "description", Usage: "ad description"},
					&cli.StringFlag{Name: "raw", Usage: "raw ad text, used when headline and description are empty"},
					&cli.StringSliceFlag{Name: "sitelink", Usage: "sitelink text, repeatable"},
					&cli.IntFlag{Name: "max", Value: 0, Usage: "phrases per segment (default 5)"},
					languageFlag,
					formatFlag,
				},
				Action: KeyphrasesAction,
			},
			{
				Name:  "mine",
				Usage: "run the full pipeline over a batch file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "YAML or JSON batch file"},
					&cli.BoolFlag{Name: "store", Usage: "persist results to PostgreSQL and Qdrant"},
					&cli.DurationFlag{Name: "timeout", Usage: "overall deadline (default PROCESSING_TIMEOUT)"},
					languageFlag,
					formatFlag,
				},
				Action: MineAction,
			},
			{
				Name:  "enqueue",
				Usage: "submit a batch file to the worker queue",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "YAML or JSON batch file"},
					&cli.StringFlag{Name: "job-id", Usage: "job ID (default generated)"},
					languageFlag,
				},
				Action: EnqueueAction,
			},
			{
				Name:      "search",
				Usage:     "find stored keyphrases similar to a query",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 10, Usage: "maximum matches"},
					formatFlag,
				},
				Action: SearchAction,
			},
			{
				Name:      "status",
				Usage:     "show a stored job and its clusters",
				ArgsUsage: "<job id>",
				Flags:     []cli.Flag{formatFlag},
				Action:    StatusAction,
			},
		},
	}
}
