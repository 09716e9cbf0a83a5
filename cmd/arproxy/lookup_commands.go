package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/brojonat/arproxy/client"
	"github.com/itchyny/gojq"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"
)

func lookupCommand() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Aliases:   []string{"get"},
		Usage:     "Look up an Arweave transaction",
		ArgsUsage: "TRANSACTION_ID",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter applied to the response document (repeatable; outputs of each are printed)",
			},
			&cli.BoolFlag{
				Name:    "raw",
				Aliases: []string{"r"},
				Usage:   "Print string jq outputs without quotes",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output the response document as JSON",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 30 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("exactly one TRANSACTION_ID is required")
			}
			id := c.Args().First()

			filters, err := compileJQ(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			cl := client.NewClient(c.String("server-url"), nil, newLogger(c))

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			tx, err := cl.GetTransaction(ctx, id)
			if err != nil {
				return fmt.Errorf("lookup failed: %w", err)
			}

			switch {
			case len(filters) > 0:
				return printJQ(c.App.Writer, filters, tx, c.Bool("raw"))
			case c.Bool("json"):
				return printJSON(c.App.Writer, tx)
			default:
				printTransaction(c.App.Writer, tx)
				return nil
			}
		},
	}
}

func awaitCommand() *cli.Command {
	return &cli.Command{
		Name:      "await",
		Usage:     "Poll until a transaction is confirmed",
		ArgsUsage: "TRANSACTION_ID",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Time between lookups",
				Value: 30 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up after this long",
				Value: 30 * time.Minute,
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output the confirmed document as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("exactly one TRANSACTION_ID is required")
			}
			id := c.Args().First()
			interval := c.Duration("interval")
			if interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}

			logger := newLogger(c)
			cl := client.NewClient(c.String("server-url"), nil, logger)

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			if !c.Bool("json") {
				fmt.Fprintf(c.App.ErrWriter, "Waiting for transaction %s to confirm...\n", id)
			}

			tx, err := awaitConfirmed(ctx, cl, id, interval, logger)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, tx)
			}
			printTransaction(c.App.Writer, tx)
			return nil
		},
	}
}

// awaitConfirmed looks id up every interval until it is confirmed or ctx ends.
// Failed lookups are logged and retried.
func awaitConfirmed(ctx context.Context, cl *client.Client, id string, interval time.Duration, logger *slog.Logger) (*client.Transaction, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tx, err := cl.GetTransaction(ctx, id)
		switch {
		case err != nil:
			logger.Warn("lookup failed, retrying", "id", id, "error", err)
		case tx.Confirmed():
			return tx, nil
		default:
			logger.Debug("transaction not confirmed yet", "id", id)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transaction %s not confirmed: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// compileJQ parses and compiles each filter.
func compileJQ(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// applyJQ runs every filter against tx and returns all outputs in order.
func applyJQ(filters []*gojq.Code, tx *client.Transaction) ([]any, error) {
	// gojq only understands plain JSON values, so round-trip the document.
	b, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	var out []any
	for _, code := range filters {
		iter := code.Run(doc)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				return nil, fmt.Errorf("jq filter failed: %w", err)
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func printJQ(w io.Writer, filters []*gojq.Code, tx *client.Transaction, raw bool) error {
	values, err := applyJQ(filters, tx)
	if err != nil {
		return err
	}
	for _, v := range values {
		if s, ok := v.(string); ok && raw {
			fmt.Fprintln(w, s)
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode jq output: %w", err)
		}
		fmt.Fprintln(w, string(b))
	}
	return nil
}

func printJSON(w io.Writer, tx *client.Transaction) error {
	data, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// printTransaction writes a human readable summary of tx.
func printTransaction(w io.Writer, tx *client.Transaction) {
	fmt.Fprintf(w, "Transaction: %s\n", tx.ID)
	fmt.Fprintf(w, "  Status:    %s\n", tx.Status)
	if tx.Timestamp != nil {
		ts := time.Unix(*tx.Timestamp, 0).UTC()
		fmt.Fprintf(w, "  Timestamp: %d (%s)\n", *tx.Timestamp, ts.Format(time.RFC3339))
	}
	if len(tx.Tags) > 0 {
		names := make([]string, 0, len(tx.Tags))
		for name := range tx.Tags {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(w, "  Tags:\n")
		for _, name := range names {
			fmt.Fprintf(w, "    %s: %s\n", name, tx.Tags[name])
		}
	}
	fmt.Fprintf(w, "  Data:      %s\n", string(tx.Data))
}

// newLogger returns a stderr logger; debug output only with --verbose.
func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen}))
}
