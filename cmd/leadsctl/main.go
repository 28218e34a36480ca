// Command leadsctl evaluates questionnaires offline and exports lead files.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"mirror-backend/internal/diagnosis"
	"mirror-backend/internal/leads"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadsctl",
		Short:         "Operator tools for the consultation backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newEvaluateCmd(), newExportCmd())
	return root
}

func newEvaluateCmd() *cobra.Command {
	var (
		age, skin, sagging, wrinkle, budget, downtime, locale string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one questionnaire through the recommendation engine",
		Example: "  leadsctl evaluate --age 40 --skin dry --sagging 4 --wrinkle 2 --budget high --downtime yes\n" +
			"  leadsctl evaluate --age 40대 --skin 건성 --sagging 4 --wrinkle 2 --budget 고예산 --locale ko",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseQuestionnaire(age, skin, sagging, wrinkle, budget, downtime)
			if err != nil {
				return err
			}
			result, err := diagnosis.NewEngine(diagnosis.ParseLocale(locale)).Evaluate(in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	f := cmd.Flags()
	f.StringVar(&age, "age", "", "age bucket: 20, 30, 40, 50 or 60")
	f.StringVar(&skin, "skin", "", "skin type: dry, oily, combination or sensitive")
	f.StringVar(&sagging, "sagging", "", "sagging concern 1-5")
	f.StringVar(&wrinkle, "wrinkle", "", "wrinkle concern 1-5")
	f.StringVar(&budget, "budget", "", "budget: low, medium or high")
	f.StringVar(&downtime, "downtime", "no", "downtime acceptable: yes or no")
	f.StringVar(&locale, "locale", "en", "output language: en or ko")
	for _, name := range []string{"age", "skin", "sagging", "wrinkle", "budget"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func parseQuestionnaire(age, skin, sagging, wrinkle, budget, downtime string) (diagnosis.Input, error) {
	var (
		in  diagnosis.Input
		err error
	)
	if in.Age, err = diagnosis.ParseAge(age); err != nil {
		return in, err
	}
	if in.SkinType, err = diagnosis.ParseSkinType(skin); err != nil {
		return in, err
	}
	if in.SaggingLevel, err = diagnosis.ParseLevel("sagging", sagging); err != nil {
		return in, err
	}
	if in.WrinkleLevel, err = diagnosis.ParseLevel("wrinkle", wrinkle); err != nil {
		return in, err
	}
	if in.Budget, err = diagnosis.ParseBudget(budget); err != nil {
		return in, err
	}
	if in.DowntimeOK, err = diagnosis.ParseDowntime(downtime); err != nil {
		return in, err
	}
	return in, nil
}

func newExportCmd() *cobra.Command {
	var file, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a leads file as CSV, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open leads file: %w", err)
			}
			defer f.Close()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				dst, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer dst.Close()
				w = dst
			}
			return exportFile(f, file, w)
		},
	}
	cmd.Flags().StringVar(&file, "file", "data/leads.jsonl", "leads JSON-lines file")
	cmd.Flags().StringVar(&out, "out", "", "output CSV path (default stdout)")
	return cmd
}

func exportFile(r io.Reader, source string, w io.Writer) error {
	byID, err := leads.ReadJSONL(r, source)
	if err != nil {
		return err
	}
	all := make([]leads.Lead, 0, len(byID))
	for _, l := range byID {
		all = append(all, l)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return leads.WriteCSV(w, all)
}
