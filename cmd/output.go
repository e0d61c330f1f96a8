package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"recall/claims/internal/db"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// claimLine renders a claim as "id  text"
func claimLine(ctx context.Context, d *db.DB, c *db.Claim) string {
	text, err := d.Describe(ctx, c.ID)
	if err != nil {
		text = fmt.Sprintf("<%v>", err)
	}
	return fmt.Sprintf("%6d  %s", c.ID, text)
}

// printMore hints at the next page when the peeked item came back
func printMore(more bool, page db.Page) {
	if more {
		fmt.Printf("(more with --page %d)\n", page.Index+1)
	}
}
