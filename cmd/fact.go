package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"recall/claims/internal/apperr"
	"recall/claims/internal/datatype"
	"recall/claims/internal/db"
)

var (
	factOwner int64
	factJSON  bool
)

var factCmd = &cobra.Command{
	Use:   "fact",
	Short: "State facts about claims",
}

var factAddCmd = &cobra.Command{
	Use:   "add <subject> <verb> <value-or-object>",
	Short: "State a fact: a value for scalar verbs, a claim for link verbs",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		subject, err := ResolveClaim(ctx, d, args[0])
		if err != nil {
			return err
		}
		verb, err := ResolveVerb(ctx, d, args[1])
		if err != nil {
			return err
		}

		target := db.Value(args[2])
		if verb.Shape() == datatype.ShapeLink {
			object, err := ResolveClaim(ctx, d, args[2])
			if err != nil {
				return err
			}
			target = db.Object(object.ID)
		}

		c, err := d.CreateFact(ctx, factOwner, subject.ID, verb.ID, target)
		if err != nil {
			return err
		}
		if factJSON {
			return printJSON(c)
		}
		fmt.Println(claimLine(ctx, d, c))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <claim> <value|object|subject|owner> <new>",
	Short: "Overwrite one field of a claim",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		c, err := ResolveClaim(ctx, d, args[0])
		if err != nil {
			return err
		}

		field := db.Field(args[1])
		var value any
		switch field {
		case db.FieldValue:
			value = args[2]
		case db.FieldObject, db.FieldSubject:
			ref, err := ResolveClaim(ctx, d, args[2])
			if err != nil {
				return err
			}
			value = ref.ID
		case db.FieldOwner:
			owner, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return apperr.Encoding("owner must be an integer: %q", args[2])
			}
			value = owner
		default:
			return apperr.TypeMismatch("unknown claim field %q", args[1])
		}

		updated, err := d.Mutate(ctx, c.ID, field, value)
		if err != nil {
			return err
		}
		fmt.Println(claimLine(ctx, d, updated))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <claim>",
	Short: "Delete a fact that no other fact refers to; entities are permanent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		c, err := ResolveClaim(ctx, d, args[0])
		if err != nil {
			return err
		}
		if err := d.DeleteClaim(ctx, c.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted claim %d\n", c.ID)
		return nil
	},
}

func init() {
	factAddCmd.Flags().Int64Var(&factOwner, "owner", 0, "Owner id recorded on the claim")
	factAddCmd.Flags().BoolVar(&factJSON, "json", false, "JSON output")
	factCmd.AddCommand(factAddCmd)
	rootCmd.AddCommand(factCmd, setCmd, deleteCmd)
}
