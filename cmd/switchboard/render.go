package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/topology"
)

func renderStatus(w io.Writer, store *topology.Store) error {
	display := store.DisplayGroup()
	fmt.Fprintf(w, "mode:    %s\n", store.Mode())
	fmt.Fprintf(w, "nodes:   %d\n", store.Count())
	if display == "" {
		fmt.Fprintln(w, "display: (none)")
		return nil
	}

	res := store.ResolveLeaf(display)
	fmt.Fprintf(w, "display: %s\n", display)
	fmt.Fprintf(w, "chain:   %s\n", strings.Join(res.Chain, " → "))
	fmt.Fprintf(w, "leaf:    %s", res.Leaf.Name)
	if res.Leaf.LastLatencyMs != nil {
		fmt.Fprintf(w, " (%d ms)", *res.Leaf.LastLatencyMs)
	}
	if res.Anomaly != topology.AnomalyNone {
		fmt.Fprintf(w, " [%s]", res.Anomaly)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func renderProbe(w io.Writer, results []domain.ProbeResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tOUTCOME\tLATENCY\tREASON")
	for _, r := range results {
		latency := "-"
		if r.Outcome == domain.OutcomeSuccess {
			latency = fmt.Sprintf("%d ms", r.LatencyMs)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.NodeName, r.Outcome, latency, r.Reason)
	}
	return tw.Flush()
}
