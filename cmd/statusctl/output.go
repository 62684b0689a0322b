package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/pkg/messaging"
)

type issuedToken struct {
	Token     string          `json:"token"`
	UserID    string          `json:"userId"`
	Role      models.UserRole `json:"role"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func printReasons(w io.Writer, items []models.StatusChangeReason) error {
	if viper.GetBool("json") {
		return printJSON(w, items)
	}
	tw := newTable(w, table.Row{"ID", "Category", "Code", "Comment", "Approval", "Active", "Description"})
	for _, r := range items {
		tw.AppendRow(table.Row{r.ID, r.Category, r.Code, yesNo(r.RequiresComment), yesNo(r.RequiresApproval), yesNo(r.Active), r.Description})
	}
	tw.Render()
	return nil
}

func printRecords(w io.Writer, items []models.StatusChangeRecord) error {
	if viper.GetBool("json") {
		return printJSON(w, items)
	}
	tw := newTable(w, table.Row{"Changed At", "From", "To", "Reason", "By", "Approved By", "Comment"})
	for _, r := range items {
		approvedBy, comment := "", ""
		if r.ApprovedBy != nil {
			approvedBy = *r.ApprovedBy
		}
		if r.Comment != nil {
			comment = *r.Comment
		}
		tw.AppendRow(table.Row{r.ChangedAt.UTC().Format(time.RFC3339), r.PreviousStatus, r.NewStatus, r.ReasonID, r.ChangedBy, approvedBy, comment})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "Total", len(items)})
	tw.Render()
	return nil
}

func printToken(w io.Writer, t issuedToken) error {
	if viper.GetBool("json") {
		return printJSON(w, t)
	}
	_, err := fmt.Fprintf(w, "%s\n# user=%s role=%s expires=%s\n", t.Token, t.UserID, t.Role, t.ExpiresAt.UTC().Format(time.RFC3339))
	return err
}

func printEnvelope(w io.Writer, env messaging.Envelope) error {
	if viper.GetBool("json") {
		enc := json.NewEncoder(w)
		return enc.Encode(env)
	}
	_, err := fmt.Fprintf(w, "%s  %-24s %-20s %s\n", env.OccurredAt.UTC().Format(time.RFC3339), env.Type, env.Key, env.Payload)
	return err
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
