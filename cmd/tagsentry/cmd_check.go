package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platformsec/tagsentry/orchestrator"
	awsprovider "github.com/platformsec/tagsentry/providers/aws"
	"github.com/platformsec/tagsentry/types"
)

var (
	checkOutput string
	checkNotify bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [event.json]",
	Short: "Check one change event for tag compliance",
	Long: `Check a single CloudTrail change event against the tagging rules.

The event is read from the named file, or from stdin when no file is
given. Accepts a bare CloudTrail record or an EventBridge envelope.`,
	Example: `  tagsentry check event.json              # Check an event file
  cat event.json | tagsentry check        # Check from stdin
  tagsentry check event.json -o json      # Machine-readable verdict
  tagsentry check event.json --notify     # Alert channels on violation`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "table", "Output format: table, json")
	checkCmd.Flags().BoolVar(&checkNotify, "notify", false, "Send violation notifications")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if checkOutput != "table" && checkOutput != "json" {
		return fmt.Errorf("invalid output format: %s (must be table or json)", checkOutput)
	}

	event, err := readEvent(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := buildPipeline(cmd.Context(), cfg, pipelineOptions{notify: checkNotify, persist: true})
	if err != nil {
		return err
	}
	defer p.Close()

	outcome := p.orchestrator.Process(cmd.Context(), event)
	if outcome.Status == orchestrator.StatusError {
		return fmt.Errorf("check failed: %w", outcome.Err)
	}

	if checkOutput == "json" {
		return printOutcomeJSON(outcome)
	}
	printOutcomeTable(outcome)

	if outcome.Result != nil && !outcome.Result.Compliant {
		os.Exit(2)
	}
	return nil
}

func readEvent(args []string) (types.ChangeEvent, error) {
	var data []byte
	var err error

	if len(args) == 1 {
		data, err = os.ReadFile(args[0]) // #nosec G304 -- path is intentional user input
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return types.ChangeEvent{}, fmt.Errorf("failed to read event: %w", err)
	}

	return parseEventDocument(data)
}

// parseEventDocument accepts a bare CloudTrail record or an EventBridge
// envelope with the record under detail.
func parseEventDocument(data []byte) (types.ChangeEvent, error) {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return types.ChangeEvent{}, fmt.Errorf("failed to parse event: %w", err)
	}
	if len(envelope.Detail) > 0 {
		data = envelope.Detail
	}
	return awsprovider.ParseCloudTrailRecord(data)
}

func printOutcomeJSON(outcome orchestrator.Outcome) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"status":     outcome.Status,
		"descriptor": outcome.Descriptor,
		"result":     outcome.Result,
	})
}

func printOutcomeTable(outcome orchestrator.Outcome) {
	switch outcome.Status {
	case orchestrator.StatusNotApplicable:
		fmt.Println("Event is not a supported resource creation, nothing to check.")
		return
	case orchestrator.StatusSkipped:
		fmt.Printf("Event for %s is flagged skip-check, nothing to evaluate.\n",
			outcome.Descriptor.ResourceType)
		return
	}

	desc := outcome.Descriptor
	result := outcome.Result

	fmt.Printf("Resource:  %s (%s)\n", strings.Join(desc.ResourceIDs, ", "), desc.ResourceType)
	fmt.Printf("Region:    %s  Account: %s\n", desc.Region, desc.AccountID)
	fmt.Printf("Rules:     %d checked, %d passed, %d failed\n",
		result.TotalRules, result.PassedCount(), result.FailedCount())

	if result.Compliant {
		fmt.Println("Verdict:   COMPLIANT")
		return
	}

	fmt.Println("Verdict:   NON-COMPLIANT")
	if len(result.MissingTags) > 0 {
		fmt.Printf("Missing:   %s\n", strings.Join(result.MissingTags, ", "))
	}
	for _, invalid := range result.InvalidValues {
		fmt.Printf("Invalid:   %s=%q (allowed: %s)\n",
			invalid.TagKey, invalid.CurrentValue, strings.Join(invalid.AllowedValues, ", "))
	}
}
