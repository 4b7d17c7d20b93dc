package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/okian/birdboard/internal/domain/model"
)

const (
	dateLayout      = "Jan 2, 2006, 03:04 PM"
	unknownLocation = "Unknown"
	missingCount    = "X"
	noData          = "No data."
)

// FormatObsDate renders an observation timestamp for people. Values that
// do not parse are returned unchanged.
func FormatObsDate(s string) string {
	t, ok := model.ParseObsTime(s)
	if !ok {
		return s
	}
	return t.Format(dateLayout)
}

// FormatCount renders a reported count; eBird uses no count for "present".
func FormatCount(n *int) string {
	if n == nil {
		return missingCount
	}
	return humanize.Comma(int64(*n))
}

// FormatLocation falls back to Unknown for a blank location name.
func FormatLocation(name string) string {
	if strings.TrimSpace(name) == "" {
		return unknownLocation
	}
	return name
}

// FormatCoordinates renders "lat, lng" with four decimals.
func FormatCoordinates(lat, lng *float64) string {
	if lat == nil || lng == nil {
		return unknownLocation
	}
	return strconv.FormatFloat(*lat, 'f', 4, 64) + ", " + strconv.FormatFloat(*lng, 'f', 4, 64)
}

func table(w io.Writer, header string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func writeNoData(w io.Writer) error {
	_, err := fmt.Fprintln(w, noData)
	return err
}

func writeRecent(w io.Writer, l model.List[model.Observation]) error {
	if l.Empty() {
		return writeNoData(w)
	}
	rows := make([][]string, len(l.Items))
	for i, o := range l.Items {
		rows[i] = []string{o.ComName, FormatCount(o.HowMany), FormatLocation(o.LocName), FormatObsDate(o.ObsDt)}
	}
	return table(w, "SPECIES\tCOUNT\tLOCATION\tDATE", rows)
}

func writeSpecies(w io.Writer, l model.List[model.SpeciesAggregate]) error {
	if l.Empty() {
		return writeNoData(w)
	}
	rows := make([][]string, len(l.Items))
	for i, s := range l.Items {
		rows[i] = []string{strconv.Itoa(i + 1), s.ComName, s.SciName, humanize.Comma(int64(s.Count))}
	}
	return table(w, "#\tSPECIES\tSCIENTIFIC NAME\tOBSERVATIONS", rows)
}

func writeHotspots(w io.Writer, l model.List[model.Hotspot]) error {
	if l.Empty() {
		return writeNoData(w)
	}
	rows := make([][]string, len(l.Items))
	for i, h := range l.Items {
		rows[i] = []string{strconv.Itoa(i + 1), h.Name, humanize.Comma(int64(h.SpeciesAllTime())), FormatCoordinates(h.Lat, h.Lng)}
	}
	return table(w, "#\tHOTSPOT\tSPECIES\tLOCATION", rows)
}

func writeStats(w io.Writer, s model.StatsSummary) error {
	return table(w, "METRIC\tTOTAL", [][]string{
		{"Observations", humanize.Comma(int64(s.TotalObservations))},
		{"Species", humanize.Comma(int64(s.TotalSpecies))},
		{"Checklists", humanize.Comma(int64(s.TotalChecklists))},
		{"Hotspots", humanize.Comma(int64(s.TotalHotspots))},
	})
}

func writeSearch(w io.Writer, l model.List[model.Observation]) error {
	if l.Empty() {
		_, err := fmt.Fprintln(w, "No matching species.")
		return err
	}
	rows := make([][]string, len(l.Items))
	for i, o := range l.Items {
		rows[i] = []string{o.ComName, o.SciName, FormatLocation(o.LocName), FormatObsDate(o.ObsDt)}
	}
	return table(w, "SPECIES\tSCIENTIFIC NAME\tLOCATION\tDATE", rows)
}

func writeGallery(w io.Writer, l model.List[model.PhotoObservation]) error {
	if l.Empty() {
		return writeNoData(w)
	}
	rows := make([][]string, len(l.Items))
	for i, p := range l.Items {
		rows[i] = []string{p.ComName, FormatLocation(p.LocName), FormatObsDate(p.ObsDt), p.PhotoURL}
	}
	return table(w, "SPECIES\tLOCATION\tDATE\tPHOTO", rows)
}

func writeDashboard(w io.Writer, d model.Dashboard) error {
	fmt.Fprintf(w, "Region %s  (recent: %d days, summary: %d days)\n",
		d.Params.Region, d.Params.RecentDays, d.Params.Days)

	sections := []struct {
		title  string
		err    *model.ViewError
		render func() error
	}{
		{"Stats", d.Stats.Error, func() error { return writeStats(w, d.Stats.Data) }},
		{"Recent sightings", d.Recent.Error, func() error { return writeRecent(w, d.Recent.Data) }},
		{"Most seen species", d.Species.Error, func() error { return writeSpecies(w, d.Species.Data) }},
		{"Top hotspots", d.Hotspots.Error, func() error { return writeHotspots(w, d.Hotspots.Data) }},
		{"Gallery", d.Gallery.Error, func() error { return writeGallery(w, d.Gallery.Data) }},
	}
	for _, s := range sections {
		fmt.Fprintf(w, "\n== %s ==\n", s.title)
		if s.err != nil {
			fmt.Fprintf(w, "error (%s): %s\n", s.err.Code, s.err.Message)
			continue
		}
		if err := s.render(); err != nil {
			return err
		}
	}
	return nil
}
