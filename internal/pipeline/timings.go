package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/nebulastream/nebulastream-sub003/internal/diag"
	"github.com/nebulastream/nebulastream-sub003/internal/observ"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	Graph   string               `json:"graph,omitempty"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// AppendTimings records a timer as an OBS6001 info diagnostic whose note
// carries the JSON report.
func AppendTimings(bag *diag.Bag, graph string, timer *observ.Timer) {
	if bag == nil || timer == nil {
		return
	}
	report := timer.Report()
	payload := timingPayload{Kind: "pipeline", Graph: graph, TotalMS: report.TotalMS, Phases: report.Phases}
	if graph == "" {
		payload.Kind = "batch"
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms", payload.Kind, payload.TotalMS)

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	at := diag.NoLocation
	at.Graph = graph
	entry := diag.New(diag.SevInfo, diag.ObsTimings, at, msg).WithNote(diag.NoLocation, string(data))

	if bag.Add(entry) {
		return
	}
	overflow := diag.NewBag(len(bag.Items()) + 1)
	overflow.Add(entry)
	bag.Merge(overflow)
}
