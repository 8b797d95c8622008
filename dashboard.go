package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"voiceassist/core"
	"voiceassist/store"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

func NewDashboardCommand() *cobra.Command {
	var (
		dataDir string
		limit   int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print conversation totals, top topics, top questions and FAQs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataDir == "" {
				dataDir = cfg.DataDir
			}
			kv, err := store.NewFileKV(dataDir)
			if err != nil {
				return err
			}
			d := store.New(kv, core.GetLogger()).Dashboard(limit)

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := sonic.ConfigStd.MarshalIndent(d, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			return printDashboard(out, d)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory holding the persisted tables (default $DATA_DIR or data)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Rows per ranking, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of tables")
	return cmd
}

func printDashboard(out io.Writer, d store.Dashboard) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Conversations\t%d\n", d.TotalConversations)
	fmt.Fprintf(w, "Interactions\t%d\n", d.TotalInteractions)
	fmt.Fprintf(w, "Users\t%d\n", d.Users)

	fmt.Fprintln(w, "\nTOPIC\tCOUNT")
	for _, c := range d.TopTopics {
		fmt.Fprintf(w, "%s\t%d\n", c.Key, c.Count)
	}

	fmt.Fprintln(w, "\nQUESTION\tCOUNT")
	for _, c := range d.TopQuestions {
		fmt.Fprintf(w, "%s\t%d\n", c.Key, c.Count)
	}

	fmt.Fprintln(w, "\nFAQ\tCOUNT\tANSWER")
	for _, f := range d.FAQs {
		fmt.Fprintf(w, "%s\t%d\t%s\n", f.Question, f.Count, f.Answer)
	}
	return w.Flush()
}
