package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/fatih/color"

	"github.com/GriffinCanCode/TopazBridge/internal/domain/capture"
	"github.com/GriffinCanCode/TopazBridge/internal/sigweb"
)

type jsonView struct {
	BaseURL string `json:"baseUrl"`
	capture.State
}

func render(out io.Writer, format, baseURL string, st capture.State) error {
	if format == "json" {
		data, err := sonic.MarshalIndent(jsonView{BaseURL: baseURL, State: st}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	return renderText(out, baseURL, st)
}

func renderText(out io.Writer, baseURL string, st capture.State) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	row := func(label, value string) { fmt.Fprintf(w, "%s:\t%s\n", label, value) }

	if st.LastAction != "" {
		row("Action", color.New(color.Bold).Sprint(st.LastAction))
	}
	row("SigWeb", baseURL)
	if st.Version != "" {
		row("Version", valueOrUnknown(st.Version))
	}
	if st.LastAction != "BridgeCheck" {
		row("Tablet connected", triState(st.TabletConnected))
	}
	if st.BridgeDetected != nil || st.LastAction == "BridgeCheck" {
		row("Bridge detected", triState(st.BridgeDetected))
	}
	if d := st.DeviceInfo; d != nil {
		row("Model", valueOrUnknown(d.Model))
		row("Serial", valueOrUnknown(d.Serial))
		row("Firmware", valueOrUnknown(d.Firmware))
	}
	if s := st.Stats; s != nil {
		row("Total points", valueOrUnknown(s.TotalPoints))
		row("Strokes", valueOrUnknown(s.Strokes))
	}
	if st.SigString != "" {
		row("SigString", st.SigString)
	}
	if img := st.Image; img != nil {
		row("Image", fmt.Sprintf("%s, %d bytes", img.MIMEType, len(img.Data)))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if st.Failed() {
		_, err := fmt.Fprintf(out, "\n%s %s\n", color.RedString("Error:"), st.LastError)
		return err
	}
	return nil
}

func triState(b *bool) string {
	switch {
	case b == nil:
		return color.YellowString(sigweb.Unknown)
	case *b:
		return color.GreenString("yes")
	default:
		return color.RedString("no")
	}
}

func valueOrUnknown(s string) string {
	if s == sigweb.Unknown || s == "" {
		return color.YellowString(sigweb.Unknown)
	}
	return s
}
