package commands

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"approval-ledger/internal/export"
	"approval-ledger/internal/ledger"
	"approval-ledger/internal/model"

	"github.com/spf13/cobra"
)

func addStageFlag(cmd *cobra.Command) {
	cmd.Flags().String("stage", "all", "Dashboard: all, check, acknowledge, approve, receive or a full queue name")
}

func stageFlag(cmd *cobra.Command) (ledger.Stage, error) {
	raw, _ := cmd.Flags().GetString("stage")
	return ledger.ParseStage(raw)
}

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the documents of a dashboard, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := stageFlag(cmd)
			if err != nil {
				return err
			}
			l, closeFn, err := a.openLedger(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			docs, err := l.List(cmd.Context(), stage)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPR NO\tSTATUS\tREQUESTER\tDEPARTMENT\tTOTAL\tVERSION")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
					d.ID, d.PurchaseRequestNo, d.Status, d.RequesterName, d.DepartmentName, d.Total().StringFixed(2), d.Version)
			}
			return tw.Flush()
		},
	}
	addStageFlag(cmd)
	return cmd
}

func newCountersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counters",
		Short: "Show the dashboard counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := stageFlag(cmd)
			if err != nil {
				return err
			}
			l, closeFn, err := a.openLedger(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			counters, err := l.Counters(cmd.Context(), stage)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total: %d\n", counters.Total)
			for _, st := range stage.Statuses() {
				fmt.Fprintf(out, "%s: %d\n", st, counters.Count(st))
			}
			return nil
		},
	}
	addStageFlag(cmd)
	return cmd
}

func newTransitionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transition <id> <status>",
		Short: "Move a document to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ledger.ParseStatus(args[1])
			if err != nil {
				return err
			}
			in := ledger.TransitionInput{Status: status}
			in.Actor, _ = cmd.Flags().GetString("by")
			in.ExpectedVersion, _ = cmd.Flags().GetInt64("version")
			if in.ReceivedDate, err = dateFlag(cmd, "received-date"); err != nil {
				return err
			}
			if in.GRDate, err = dateFlag(cmd, "gr-date"); err != nil {
				return err
			}
			if cmd.Flags().Changed("po") {
				po, _ := cmd.Flags().GetString("po")
				in.PONumber = &po
			}

			l, closeFn, err := a.openLedger(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeFn()

			doc, err := l.Transition(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %s is %s (version %d).\n", doc.ID, doc.Status, doc.Version)
			return nil
		},
	}
	cmd.Flags().String("received-date", "", "Receipt date (YYYY-MM-DD), defaults to today when receiving")
	cmd.Flags().String("gr-date", "", "Goods receipt date (YYYY-MM-DD)")
	cmd.Flags().String("po", "", "Purchase order number; empty clears it")
	cmd.Flags().String("by", "", "Name recorded as the stage actor")
	cmd.Flags().Int64("version", 0, "Fail unless the document is at this version")
	return cmd
}

func dateFlag(cmd *cobra.Command, name string) (*model.Date, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: --%s: %v", ledger.ErrMalformedInput, name, err)
	}
	return &d, nil
}

func newDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document from every dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			by, _ := cmd.Flags().GetString("by")
			l, closeFn, err := a.openLedger(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := l.Delete(cmd.Context(), args[0], "", by); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Document %s deleted.\n", args[0])
			return nil
		},
	}
	cmd.Flags().String("by", "", "Operator name for the log")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a dashboard to an xlsx or csv file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := stageFlag(cmd)
			if err != nil {
				return err
			}
			rawFormat, _ := cmd.Flags().GetString("format")
			format, err := export.ParseFormat(rawFormat)
			if err != nil {
				return err
			}
			rawColumns, _ := cmd.Flags().GetString("columns")
			columns, err := ledger.ParseColumns(rawColumns)
			if err != nil {
				return err
			}
			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				outPath = export.FileName(stage, format, time.Now())
			}

			l, closeFn, err := a.openLedger(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()

			projection, err := l.Export(cmd.Context(), stage, columns)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := export.Write(&buf, format, projection, string(stage)); err != nil {
				return err
			}
			if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d documents to %s.\n", len(projection.Rows), outPath)
			return nil
		},
	}
	addStageFlag(cmd)
	cmd.Flags().String("format", "xlsx", "xlsx or csv")
	cmd.Flags().String("columns", "", "Comma separated column names; empty uses the stage defaults")
	cmd.Flags().String("out", "", "Output path; defaults to <stage>-<timestamp>.<format>")
	return cmd
}
