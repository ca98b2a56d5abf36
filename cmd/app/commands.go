package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/jotter/internal"
	"github.com/starford/jotter/internal/mcpserver"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/parser"
	"github.com/starford/jotter/internal/query"
)

var errUsage = errors.New("wrong number of arguments")

func recordID(cmd *cli.Command) (int, error) {
	if cmd.Args().Len() < 1 {
		return 0, fmt.Errorf("%w: record id required", errUsage)
	}
	id, err := strconv.Atoi(cmd.Args().First())
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", cmd.Args().First())
	}
	return id, nil
}

func printRecords(w io.Writer, records []models.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tMODIFIED\tTAGS\tTEXT")
	for _, r := range records {
		text := strings.ReplaceAll(r.Text, "\n", " ")
		if r.Deleted {
			text = "(deleted) " + text
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Created, r.Modified, strings.Join(r.Tags, ","), text)
	}
	return tw.Flush()
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a record from arguments, or import a Markdown file",
		ArgsUsage: "<text...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tags", Aliases: []string{"t"}, Usage: "Comma separated tags"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Markdown file to import (- for stdin)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRuntime(ctx, cmd, func(ctx context.Context, rt *internal.Runtime) error {
				var (
					id  int
					err error
				)
				if file := cmd.String("file"); file != "" {
					var data []byte
					if file == "-" {
						data, err = io.ReadAll(os.Stdin)
					} else {
						data, err = os.ReadFile(file)
					}
					if err != nil {
						return fmt.Errorf("read %s: %w", file, err)
					}
					id, err = rt.Service.Import(ctx, data)
				} else {
					text := strings.Join(cmd.Args().Slice(), " ")
					if strings.TrimSpace(text) == "" {
						return fmt.Errorf("%w: text required", errUsage)
					}
					id, err = rt.Service.Add(ctx, text, query.SplitTags(cmd.String("tags")))
				}
				if err != nil {
					return err
				}
				fmt.Println(id)
				return nil
			})
		},
	}
}

func findCommand() *cli.Command {
	return &cli.Command{
		Name:  "find",
		Usage: "List records matching all given filters",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tag", Usage: "Has any of the comma separated tags"},
			&cli.StringFlag{Name: "tags", Usage: "Has all comma separated tags"},
			&cli.StringFlag{Name: "text", Usage: "Contains text, ignoring case"},
			&cli.BoolFlag{Name: "deleted", Usage: "Only records marked deleted"},
			&cli.BoolFlag{Name: "all", Usage: "Include records marked deleted"},
			&cli.StringFlag{Name: "after", Usage: "Created on or after YYYY-MM-DD"},
			&cli.StringFlag{Name: "before", Usage: "Created before YYYY-MM-DD"},
			&cli.StringFlag{Name: "mafter", Usage: "Modified on or after YYYY-MM-DD"},
			&cli.StringFlag{Name: "mbefore", Usage: "Modified before YYYY-MM-DD"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			v := url.Values{}
			for _, name := range []string{"tag", "tags", "text", "after", "before", "mafter", "mbefore"} {
				if s := cmd.String(name); s != "" {
					v.Set(name, s)
				}
			}
			v.Set("deleted", strconv.FormatBool(cmd.Bool("deleted")))
			v.Set("with_deleted", strconv.FormatBool(cmd.Bool("all")))
			f, err := query.ParseValues(v)
			if err != nil {
				return err
			}
			return withRuntime(ctx, cmd, func(ctx context.Context, rt *internal.Runtime) error {
				records, err := rt.Service.Search(ctx, f.Predicate())
				if err != nil {
					return err
				}
				return printRecords(os.Stdout, records)
			})
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print one record as Markdown",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := recordID(cmd)
			if err != nil {
				return err
			}
			return withRuntime(ctx, cmd, func(ctx context.Context, rt *internal.Runtime) error {
				rec, err := rt.Service.Get(ctx, id)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(parser.Render(rec))
				return err
			})
		},
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Replace the text of a record",
		ArgsUsage: "<id> <text...>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := recordID(cmd)
			if err != nil {
				return err
			}
			text := strings.Join(cmd.Args().Tail(), " ")
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("%w: text required", errUsage)
			}
			return withRuntime(ctx, cmd, func(ctx context.Context, rt *internal.Runtime) error {
				_, err := rt.Service.SetText(ctx, id, text)
				return err
			})
		},
	}
}

func tagCommand() *cli.Command {
	return &cli.Command{
		Name:      "tag",
		Usage:     "Add tags to a record",
		ArgsUsage: "<id> <tag...>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return retag(ctx, cmd, true)
		},
	}
}

func untagCommand() *cli.Command {
	return &cli.Command{
		Name:      "untag",
		Usage:     "Remove tags from a record",
		ArgsUsage: "<id> <tag...>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return retag(ctx, cmd, false)
		},
	}
}

func retag(ctx context.Context, cmd *cli.Command, add bool) error {
	id, err := recordID(cmd)
	if err != nil {
		return err
	}
	tags := query.SplitTags(strings.Join(cmd.Args().Tail(), ","))
	if len(tags) == 0 {
		return fmt.Errorf("%w: at least one tag required", errUsage)
	}
	return withRuntime(ctx, cmd, func(ctx context.Context, rt *internal.Runtime) error {
		var rec models.Record
		if add {
			rec, err = rt.Service.AddTags(ctx, id, tags...)
		} else {
			rec, err = rt.Service.RemoveTags(ctx, id, tags...)
		}
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(rec.Tags, ","))
		return nil
	})
}

// idCommand builds a command that applies fn to the record named by its
// single argument.
func idCommand(name, usage string, fn func(context.Context, *internal.Runtime, int) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := recordID(cmd)
			if err != nil {
				return err
			}
			return withRuntime(ctx, cmd, func(ctx context.Context, rt *internal.Runtime) error {
				return fn(ctx, rt, id)
			})
		},
	}
}

func deleteCommand() *cli.Command {
	return idCommand("delete", "Mark a record deleted", func(ctx context.Context, rt *internal.Runtime, id int) error {
		return rt.Service.Delete(ctx, id)
	})
}

func restoreCommand() *cli.Command {
	return idCommand("restore", "Clear the deleted mark of a record", func(ctx context.Context, rt *internal.Runtime, id int) error {
		return rt.Service.Undelete(ctx, id)
	})
}

func purgeCommand() *cli.Command {
	return idCommand("purge", "Remove a record permanently", func(ctx context.Context, rt *internal.Runtime, id int) error {
		return rt.Service.Purge(ctx, id)
	})
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the record tools over MCP on stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRuntime(ctx, cmd, func(_ context.Context, rt *internal.Runtime) error {
				return mcpserver.New(rt.Service, version).ServeStdio()
			})
		},
	}
}
