package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/platformsec/tagsentry/store"
)

var (
	verdictsLimit  int
	verdictsOutput string
)

// verdictsCmd represents the verdicts command
var verdictsCmd = &cobra.Command{
	Use:   "verdicts",
	Short: "List recorded compliance verdicts",
	Long:  `List past compliance verdicts from local storage, newest first.`,
	Example: `  tagsentry verdicts              # Last 20 verdicts
  tagsentry verdicts --limit 100
  tagsentry verdicts -o json`,
	RunE: runVerdicts,
}

func init() {
	rootCmd.AddCommand(verdictsCmd)

	verdictsCmd.Flags().IntVar(&verdictsLimit, "limit", 20, "Maximum verdicts to show (0 for all)")
	verdictsCmd.Flags().StringVarP(&verdictsOutput, "output", "o", "table", "Output format: table, json")
}

func runVerdicts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	verdicts, err := store.Open(cfg.StoragePath)
	if err != nil {
		return err
	}
	defer func() { _ = verdicts.Close() }()

	list, err := verdicts.List(verdictsLimit)
	if err != nil {
		return err
	}

	if verdictsOutput == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(list)
	}

	if len(list) == 0 {
		fmt.Println("No verdicts recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REV\tTIME\tTYPE\tRESOURCES\tVERDICT\tFAILED")
	for _, v := range list {
		verdict := "compliant"
		if !v.Result.Compliant {
			verdict = "NON-COMPLIANT"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
			v.Revision,
			v.RecordedAt.Format("2006-01-02 15:04:05"),
			v.ResourceType,
			strings.Join(v.ResourceIDs, ", "),
			verdict,
			v.Result.FailedCount())
	}
	return w.Flush()
}
