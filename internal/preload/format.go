package preload

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iliamunaev/async-tracker/internal/model"
)

// WriteJSON writes rep as indented JSON.
func WriteJSON(w io.Writer, rep model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteText writes rep as a table followed by a summary line.
func WriteText(w io.Writer, rep model.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tKIND\tSIZE\tTIME\tASSET")
	for _, a := range rep.Actions {
		size := "-"
		if a.Bytes > 0 {
			size = humanize.Bytes(uint64(a.Bytes))
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s", a.Status, a.Kind, size,
			(time.Duration(a.DurationMS) * time.Millisecond).String(), a.Name)
		if a.Detail != "" {
			line += "\t" + a.Detail
		}
		fmt.Fprintln(tw, line)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%s: %d/%d settled (%.0f%%), %d failed\n",
		rep.Status, rep.Completed+rep.Errors, rep.Total, rep.Percent*100, rep.Errors)
	return err
}
