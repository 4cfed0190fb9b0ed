package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"example.com/meetease/client"
)

// SummaryView renders the end-of-call table.
func SummaryView(s client.Summary) string {
	t := table.NewWriter()
	t.SetTitle("Call Summary")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Room", s.RoomID},
		{"You", s.ParticipantID},
		{"Peer", orDash(s.RemotePeer)},
		{"Role", s.Role},
		{"Duration", s.Duration.Round(time.Second)},
		{"Microphone", onOff(!s.AudioMuted)},
		{"Camera", onOff(!s.VideoMuted)},
		{"Negotiations", s.Stats.NegotiationRounds},
		{"Candidates sent", s.Stats.CandidatesSent},
		{"Candidates received", s.Stats.CandidatesReceived},
		{"Candidates failed", s.Stats.CandidatesFailed},
	})
	t.AppendFooter(table.Row{"Ended", endReason(s.Err)})
	t.SetStyle(table.StyleRounded)
	return t.Render()
}

func RenderSummary(s client.Summary) {
	fmt.Println(SummaryView(s))
}

func endReason(err error) string {
	if err == nil {
		return "left"
	}
	return err.Error()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "muted"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
