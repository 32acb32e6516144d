package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

//go:generate go tool mockgen -destination=mock_poller.go -package=poller i4.energy/across/linkstation/poller Executor

// DefaultInterval is the pause between two polling cycles.
const DefaultInterval = time.Second

// Executor runs one AT command and returns the raw response lines.
type Executor interface {
	Execute(ctx context.Context, command string, deadline time.Duration) ([]string, error)
}

// Command is one AT command of a polling cycle with its read deadline.
type Command struct {
	Line     string
	Deadline time.Duration
}

const (
	CmdServingCell = `AT+QENG="servingcell"`
	CmdEPSReg      = "AT+CEREG?"
	CmdNR5GReg     = "AT+C5GREG?"
	CmdOperator    = "AT+COPS?"
	CmdThermal     = "AT+QTEMP"
	CmdNetworkInfo = "AT+QNWINFO"
	CmdCAInfo      = "AT+QCAINFO"
	CmdNeighbours  = `AT+QENG="neighbourcell"`
	CmdNetDev      = "AT+QNETDEVSTATUS"
	CmdPDPContexts = "AT+CGDCONT?"
	CmdPDPActive   = "AT+CGACT?"
	CmdPDPDynamic  = "AT+CGCONTRDP?"
	CmdDNSConfig   = "AT+QIDNSCFG?"
)

// Cycle is the command sequence of one poll.
var Cycle = []Command{
	{CmdServingCell, 1200 * time.Millisecond},
	{CmdEPSReg, 800 * time.Millisecond},
	{CmdNR5GReg, 800 * time.Millisecond},
	{CmdOperator, 800 * time.Millisecond},
	{CmdThermal, 1200 * time.Millisecond},
	{CmdNetworkInfo, 800 * time.Millisecond},
	{CmdCAInfo, 1200 * time.Millisecond},
	{CmdNeighbours, 1200 * time.Millisecond},
	{CmdNetDev, 800 * time.Millisecond},
	{CmdPDPContexts, 800 * time.Millisecond},
	{CmdPDPActive, 800 * time.Millisecond},
	{CmdPDPDynamic, 1200 * time.Millisecond},
	{CmdDNSConfig, 800 * time.Millisecond},
}

// Poller periodically queries the modem and publishes a Snapshot to State.
type Poller struct {
	exec     Executor
	state    *State
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Poller. A non-positive interval uses DefaultInterval and a
// nil logger discards output.
func New(exec Executor, state *State, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{exec: exec, state: state, interval: interval, logger: logger}
}

// Run polls until ctx is cancelled. A failed cycle is skipped and the
// previous snapshot stays in place.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Poller started", "interval", p.interval)
	defer p.logger.Info("Poller stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		snapshot, err := p.Poll(ctx)
		if err != nil {
			p.logger.Warn("Poll cycle skipped", "error", err)
		} else {
			p.state.Set(snapshot)
		}
		timer.Reset(p.interval)
	}
}

// Poll runs one cycle and decodes the responses. It stops at the first
// failed command.
func (p *Poller) Poll(ctx context.Context) (Snapshot, error) {
	raw := make(map[string][]string, len(Cycle))
	for _, cmd := range Cycle {
		lines, err := p.exec.Execute(ctx, cmd.Line, cmd.Deadline)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w", cmd.Line, err)
		}
		raw[cmd.Line] = lines
	}
	return Decode(raw), nil
}

// Decode builds a Snapshot from the raw responses of one cycle.
func Decode(raw map[string][]string) Snapshot {
	s := Snapshot{
		Operator: Operator{Name: ParseOperator(raw[CmdOperator])},
		Reg: Registration{
			EPS:  ParseEPSReg(raw[CmdEPSReg]),
			NR5G: ParseNR5GReg(raw[CmdNR5GReg]),
		},
		Mode:       ParseMode(raw[CmdNetworkInfo]),
		Neighbours: ParseNeighbours(raw[CmdNeighbours]),
		CA:         ParseCA(raw[CmdCAInfo]),
		Session:    ParseSession(raw[CmdPDPContexts], raw[CmdPDPActive], raw[CmdPDPDynamic], raw[CmdDNSConfig]),
		NetDev:     ParseNetDev(raw[CmdNetDev]),
		Thermal:    ParseThermal(raw[CmdThermal]),
		Raw:        raw,
	}

	if sc, ok := ParseServingCell(raw[CmdServingCell]); ok {
		rat := sc.RAT
		s.RAT = &rat
		if sc.MCC != "" && sc.MNC != "" {
			mccmnc := sc.MCC + sc.MNC
			s.Operator.MCCMNC = &mccmnc
		}
		s.Cell = Cell{
			State:  sc.State,
			PCI:    sc.PCI,
			TAC:    sc.TAC,
			CellID: sc.CellID,
			Band:   sc.Band,
			ARFCN:  sc.ARFCN,
		}
		s.Signal = Signal{RSSI: sc.RSSI, RSRP: sc.RSRP, RSRQ: sc.RSRQ, SINR: sc.SINR}
	}
	return s
}
