// Package dashboard renders cycle reports as a refreshing console panel.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/srg/telebridge/internal/scheduler"
	"github.com/srg/telebridge/internal/telemetry"
)

const clearScreen = "\x1b[H\x1b[2J"

// Dashboard writes one panel per cycle report.
type Dashboard struct {
	out   io.Writer
	clear bool

	title *color.Color
	label *color.Color
	stale *color.Color
	fail  *color.Color
}

// New renders to out. Colors and screen clearing are enabled only when out
// is a terminal.
func New(out io.Writer) *Dashboard {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return NewWithOptions(out, tty, tty)
}

// NewWithOptions renders to out with explicit color and clearing choices.
func NewWithOptions(out io.Writer, colors, clear bool) *Dashboard {
	d := &Dashboard{
		out:   out,
		clear: clear,
		title: color.New(color.FgCyan, color.Bold),
		label: color.New(color.FgWhite, color.Bold),
		stale: color.New(color.FgYellow),
		fail:  color.New(color.FgRed),
	}
	for _, c := range []*color.Color{d.title, d.label, d.stale, d.fail} {
		if colors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return d
}

// Run renders reports until the channel closes or ctx is done.
func (d *Dashboard) Run(ctx context.Context, reports <-chan scheduler.CycleReport) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-reports:
			if !ok {
				return nil
			}
			if err := d.Write(r); err != nil {
				return err
			}
		}
	}
}

// Write renders r to the output.
func (d *Dashboard) Write(r scheduler.CycleReport) error {
	if r.Skipped {
		return nil
	}
	var sb strings.Builder
	if d.clear {
		sb.WriteString(clearScreen)
	}
	sb.WriteString(d.Render(r))
	_, err := io.WriteString(d.out, sb.String())
	return err
}

// Render formats r as a panel.
func (d *Dashboard) Render(r scheduler.CycleReport) string {
	var sb strings.Builder
	f := &r.Frame

	sb.WriteString(d.title.Sprint("=== TELEBRIDGE DASHBOARD ===") + "\n")
	fmt.Fprintf(&sb, "Cycle #%d at %s (%s)\n", r.Seq, r.Started.Format("15:04:05"), r.Duration.Round(time.Millisecond))

	t1 := f.Slot(telemetry.ChannelTemperature)
	hum := f.Slot(telemetry.ChannelHumidity)
	pres := f.Slot(telemetry.ChannelPressure)
	t2 := f.Slot(telemetry.ChannelTemperatureSecondary)

	d.line(&sb, "Humidity/Temp", t1.Fresh && hum.Fresh, t1.Valid,
		"Temp: %.1f C | Hum: %.1f %%", t1.Reading.Value.Float(), hum.Reading.Value.Float())
	d.line(&sb, "Pressure/Temp", pres.Fresh && t2.Fresh, pres.Valid,
		"Press: %.3f kPa | Temp: %.1f C", pres.Reading.Value.Float()/1000, t2.Reading.Value.Float())
	d.vector(&sb, "Accelerometer", f.Slot(telemetry.ChannelAcceleration), "%.2f", "g")
	d.vector(&sb, "Gyroscope", f.Slot(telemetry.ChannelAngularRate), "%.2f", "dps")
	d.vector(&sb, "Magnetometer", f.Slot(telemetry.ChannelMagneticField), "%.3f", "uT")

	fmt.Fprintf(&sb, "%s: ", d.label.Sprintf("%-14s", "Link"))
	fmt.Fprintf(&sb, "sent %d | suppressed %d | errors %d\n",
		r.Published.Sent, r.Published.Suppressed, len(r.Published.Errors))

	fmt.Fprintf(&sb, "%s: ", d.label.Sprintf("%-14s", "Clock"))
	if r.ClockEpoch == 0 {
		sb.WriteString("unset\n")
	} else {
		sb.WriteString(time.Unix(int64(r.ClockEpoch), 0).UTC().Format("2006-01-02 15:04:05 MST") + "\n")
	}

	if len(r.Failed) > 0 {
		names := make([]string, 0, len(r.Failed))
		for name := range r.Failed {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sb.WriteString(d.fail.Sprintf("FAILED %s: %v", name, r.Failed[name]) + "\n")
		}
	}
	return sb.String()
}

func (d *Dashboard) line(sb *strings.Builder, label string, fresh, valid bool, format string, args ...interface{}) {
	fmt.Fprintf(sb, "%s: ", d.label.Sprintf("%-14s", label))
	if !valid {
		sb.WriteString(d.stale.Sprint("no data") + "\n")
		return
	}
	fmt.Fprintf(sb, format, args...)
	if !fresh {
		sb.WriteString(" " + d.stale.Sprint("(stale)"))
	}
	sb.WriteString("\n")
}

func (d *Dashboard) vector(sb *strings.Builder, label string, slot telemetry.Slot, verb, unit string) {
	v := slot.Reading.Vec
	format := fmt.Sprintf("X: %s Y: %s Z: %s %s", verb, verb, verb, unit)
	d.line(sb, label, slot.Fresh, slot.Valid, format, v[0].Float(), v[1].Float(), v[2].Float())
}
