package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/eventsync"
	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/ticketing"
)

// print writes v as indented JSON with --json, else through human.
func (o *globalOptions) print(cmd *cobra.Command, v any, human func(p *printer)) error {
	out := cmd.OutOrStdout()
	if o.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	p := newPrinter(out)
	human(p)
	return p.flush()
}

// describe prints the blocking rows of a refused import before returning
// the error.
func describe(cmd *cobra.Command, err error) error {
	var rowErrs *core.RowErrors
	if errors.As(err, &rowErrs) {
		p := newPrinter(cmd.ErrOrStderr())
		p.rowErrors(rowErrs.Errors)
		_ = p.flush()
		msg := core.MapError(err)
		return fmt.Errorf("%s [%s]: %s", msg.Message, msg.Code, msg.Action)
	}
	return err
}

type printer struct {
	tw *tabwriter.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
}

func (p *printer) flush() error { return p.tw.Flush() }

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.tw, format+"\n", args...)
}

func (p *printer) preview(res *core.PreviewResult) {
	s := res.Stats
	p.line("source:\t%s", res.Source)
	p.line("rows:\t%d", s.TotalRows)
	p.line("unpaid or invalid:\t%d", s.RowsUnpaidInvalid)
	p.line("with errors:\t%d", s.RowsWithErrors)
	p.line("duplicates in file:\t%d", s.DuplicatesInFile)
	p.line("already registered:\t%d", s.AlreadyRegistered)
	p.line("existing depositors:\t%d", s.ExistingDepositors)
	p.line("new depositors:\t%d", s.NewDepositors)
	p.line("to import:\t%d", s.RowsToImport)
	p.line("can import:\t%v", res.CanImport)

	if len(res.SlotOccupancy) > 0 {
		p.line("")
		p.line("SLOT\tCURRENT\tINCOMING\tCAPACITY\t")
		for _, o := range res.SlotOccupancy {
			flag := ""
			if o.OverCapacity {
				flag = "over capacity"
			}
			p.line("%s\t%d\t%d\t%d\t%s", o.Description, o.CurrentCount, o.IncomingCount, o.MaxCapacity, flag)
		}
	}
	if len(res.Errors) > 0 {
		p.line("")
		p.rowErrors(res.Errors)
	}
	for _, w := range res.Warnings {
		p.line("warning:\t%s", w)
	}
}

func (p *printer) commit(res *core.CommitResult) {
	p.line("import log:\t%s", res.ImportLogID)
	p.line("linked existing:\t%d", res.LinkedExisting)
	p.line("created new:\t%d", res.CreatedNew)
	p.line("skipped:\t%d", res.RowsSkipped)
	p.line("invitations queued:\t%d", res.InvitationsSent)
	p.line("notices queued:\t%d", res.NotificationsSent)
	for _, w := range res.Warnings {
		p.line("warning:\t%s", w)
	}
}

func (p *printer) rowErrors(errs []core.RowError) {
	p.line("ROW\tTYPE\tEMAIL\tMESSAGE")
	for _, e := range errs {
		row := "-"
		if e.RowNumber > 0 {
			row = fmt.Sprint(e.RowNumber)
		}
		p.line("%s\t%s\t%s\t%s", row, e.Type, e.Email, e.Message)
	}
}

func (p *printer) importLogs(logs []core.ImportLog) {
	p.line("ID\tSTARTED\tBY\tSOURCE\tIMPORTED\tSKIPPED\tDURATION")
	for _, l := range logs {
		p.line("%s\t%s\t%s\t%s\t%d\t%d\t%s",
			l.ID, l.StartedAt.Local().Format(time.DateTime), l.ImportedBy, l.SourceDescriptor,
			l.Totals.Imported, l.Totals.Skipped(), l.Duration().Round(time.Millisecond))
	}
}

func (p *printer) remoteEvents(events []ticketing.Event) {
	p.line("REF\tNAME\tDATE\tPLACE")
	for _, e := range events {
		p.line("%s\t%s\t%s\t%s", e.ID, e.Name, e.Date, e.Place)
	}
}

func (p *printer) remoteSessions(sessions []ticketing.Session) {
	p.line("REF\tNAME\tSTART\tEND")
	for _, s := range sessions {
		p.line("%s\t%s\t%s\t%s", s.ID, s.Name, s.Start, s.End)
	}
}

func (p *printer) cycle(r eventsync.CycleReport) {
	p.line("events:\t%d", r.Events)
	p.line("succeeded:\t%d", r.Succeeded)
	p.line("failed:\t%d", r.Failed)
	p.line("skipped:\t%d", r.Skipped)
	p.line("created:\t%d", r.Created)
	p.line("linked:\t%d", r.Linked)
	if r.Aborted {
		p.line("aborted:\ttrue")
	}
}
