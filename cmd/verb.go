package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recall/claims/internal/datatype"
	"recall/claims/internal/db"
	"recall/claims/internal/infer"
)

var (
	verbType     string
	verbInternal bool
	verbOptions  string
	verbTemplate string
	verbRule     string
	verbLabel    string
	verbNewType  string
	verbHide     bool
	verbPublic   bool
	verbPage     int
	verbJSON     bool
)

var verbCmd = &cobra.Command{
	Use:   "verb",
	Short: "Manage the verb registry",
}

// verbExtra builds the payload the flags describe, or nil when none was
// given. The store rejects a payload that does not fit the data type.
func verbExtra() (db.Extra, error) {
	switch {
	case verbRule != "":
		rule, err := infer.ParseRule([]byte(verbRule))
		if err != nil {
			return nil, err
		}
		return db.RuleExtra{Rule: rule}, nil
	case verbOptions != "":
		var opts []string
		for _, o := range strings.Split(verbOptions, ",") {
			opts = append(opts, strings.TrimSpace(o))
		}
		return db.ChoiceExtra{Options: opts}, nil
	case verbTemplate != "":
		return db.TemplateExtra{Template: verbTemplate}, nil
	}
	return nil, nil
}

var verbAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Register a verb",
	Long: `Register a verb with a data type.

Choice verbs take --options a,b,c. Social verbs take --template with a {handle}
placeholder. Inferred verbs take --rule, a JSON array of
[subject, verb-id, object] conditions over the labels "this" and "that":

  claims verb add "sibling of" --type inferred \
    --rule '[["this",1,"P"],["that",1,"P"]]'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		extra, err := verbExtra()
		if err != nil {
			return err
		}
		v, err := d.CreateVerb(ctx, db.VerbSpec{
			Label:    args[0],
			DataType: verbType,
			Internal: verbInternal,
			Extra:    extra,
		})
		if err != nil {
			return err
		}
		if verbJSON {
			return printJSON(v)
		}
		fmt.Printf("Created verb %d: %s (%s)\n", v.ID, v.Label(), v.DataType())
		return nil
	},
}

var verbUpdateCmd = &cobra.Command{
	Use:   "update <verb>",
	Short: "Relabel a verb, change its visibility or replace its payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		v, err := ResolveVerb(ctx, d, args[0])
		if err != nil {
			return err
		}
		var u db.VerbUpdate
		if cmd.Flags().Changed("label") {
			u.Label = &verbLabel
		}
		if cmd.Flags().Changed("internal") {
			u.Internal = &verbHide
		}
		if cmd.Flags().Changed("public") {
			internal := !verbPublic
			u.Internal = &internal
		}
		if cmd.Flags().Changed("type") {
			u.DataType = &verbNewType
		}
		if u.Extra, err = verbExtra(); err != nil {
			return err
		}

		updated, err := d.UpdateVerb(ctx, v.ID, u)
		if err != nil {
			return err
		}
		fmt.Printf("Updated verb %d: %s (%s)\n", updated.ID, updated.Label(), updated.DataType())
		return nil
	},
}

var verbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List verbs, built-ins first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		page := currentPage(verbPage)
		verbs, err := d.ListVerbs(ctx, page)
		if err != nil {
			return err
		}
		verbs, more := db.Trim(verbs, page)
		if verbJSON {
			return printJSON(verbs)
		}
		for _, verb := range verbs {
			v := verb.Row()
			flags := ""
			if v.Internal {
				flags = " [internal]"
			}
			switch e := v.Extra.(type) {
			case db.RuleExtra:
				if e.Err != nil {
					flags += fmt.Sprintf(" [broken rule: %v]", e.Err)
				} else {
					flags += " " + e.Rule.String()
				}
			case db.ChoiceExtra:
				if e.Err != nil {
					flags += fmt.Sprintf(" [broken options: %v]", e.Err)
				} else {
					flags += " " + strings.Join(e.Options, "|")
				}
			}
			fmt.Printf("%6d  %-24s %-16s%s\n", v.ID, v.Label, v.DataType, flags)
		}
		printMore(more, page)
		return nil
	},
}

var verbRmCmd = &cobra.Command{
	Use:   "rm <verb>",
	Short: "Delete a verb no claim or rule uses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		v, err := ResolveVerb(ctx, d, args[0])
		if err != nil {
			return err
		}
		if err := d.DeleteVerb(ctx, v.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted verb %d: %s\n", v.ID, v.Label())
		return nil
	},
}

func init() {
	verbAddCmd.Flags().StringVar(&verbType, "type", datatype.String, "Data type: "+strings.Join(datatype.Tags(), ", "))
	verbAddCmd.Flags().BoolVar(&verbInternal, "internal", false, "Hide from label lookup and search")
	for _, c := range []*cobra.Command{verbAddCmd, verbUpdateCmd} {
		c.Flags().StringVar(&verbOptions, "options", "", "Comma-separated options for choice verbs")
		c.Flags().StringVar(&verbTemplate, "template", "", "Link template for social verbs")
		c.Flags().StringVar(&verbRule, "rule", "", "JSON rule for inferred verbs")
	}
	verbUpdateCmd.Flags().StringVar(&verbLabel, "label", "", "New label")
	verbUpdateCmd.Flags().BoolVar(&verbHide, "internal", false, "Hide from label lookup and search")
	verbUpdateCmd.Flags().BoolVar(&verbPublic, "public", false, "Make visible to label lookup and search")
	verbUpdateCmd.Flags().StringVar(&verbNewType, "type", "", "Data type (cannot change, rejected if different)")
	verbListCmd.Flags().IntVar(&verbPage, "page", 0, "0-based page index")
	verbCmd.PersistentFlags().BoolVar(&verbJSON, "json", false, "JSON output")

	verbCmd.AddCommand(verbAddCmd, verbUpdateCmd, verbListCmd, verbRmCmd)
	rootCmd.AddCommand(verbCmd)
}
