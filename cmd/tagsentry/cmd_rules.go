package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/platformsec/tagsentry/types"
)

var (
	rulesResourceType string
	rulesOutput       string
)

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the effective tagging rules",
	Long: `List the enabled tagging rules from the configured source.

Shows every enabled rule, or only those in scope for one resource type
when --type is given.`,
	Example: `  tagsentry rules                       # All enabled rules
  tagsentry rules --type ec2:instance   # Rules for EC2 instances
  tagsentry rules -o json               # Machine-readable`,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.Flags().StringVarP(&rulesResourceType, "type", "t", "", "Filter rules by resource type")
	rulesCmd.Flags().StringVarP(&rulesOutput, "output", "o", "table", "Output format: table, json")
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(cmd.Context(), awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	source, err := buildRuleSource(cfg, awsCfg)
	if err != nil {
		return err
	}

	ruleList, err := source.Fetch(cmd.Context(), rulesResourceType)
	if err != nil {
		return fmt.Errorf("failed to fetch rules: %w", err)
	}

	if rulesOutput == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(ruleList)
	}

	printRulesTable(ruleList)
	return nil
}

func printRulesTable(ruleList []types.Rule) {
	if len(ruleList) == 0 {
		fmt.Println("No enabled rules found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tTAG KEY\tALLOWED VALUES\tRESOURCE TYPES")
	for _, rule := range ruleList {
		allowed := "any"
		if len(rule.AllowedValues) > 0 {
			allowed = strings.Join(rule.AllowedValues, ", ")
		}
		scope := "all"
		if len(rule.ResourceTypes) > 0 {
			scope = strings.Join(rule.ResourceTypes, ", ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rule.RuleID, rule.TagKey, allowed, scope)
	}
	_ = w.Flush()
}
