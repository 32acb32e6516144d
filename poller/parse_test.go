package poller_test

import (
	"slices"
	"testing"

	"i4.energy/across/linkstation/poller"
)

const (
	lteServing = `+QENG: "servingcell","NOCONN","LTE","FDD",262,01,1A2D003,310,6300,20,3,3,D2A3,-96,-11,-65,12,9,-,40`
	saServing  = `+QENG: "servingcell","CONNECT","NR5G-SA","TDD",262,01,2A1B3C4D5,501,3F2A1,627264,78,12,-88,-11,15,1,-`

	caPCC             = `+QCAINFO: "PCC",6300,50,"LTE BAND 20",1,310,-96,-11,-65,12`
	caSCC             = `+QCAINFO: "SCC",1300,100,"LTE BAND 3",2,318,-101,-13,-70,4`
	lteNeighbourIntra = `+QENG: "neighbourcell intra","LTE",6300,311,-14,-104,-72,0,22,7,16,6,62`
	pdpDynamic        = `+CGCONTRDP: 1,5,"internet.telekom","10.12.34.56.255.0.0.0","10.12.34.1","10.74.210.210","10.74.210.211"`
)

func intp(v int) *int { return &v }

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strOf(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestParseRegistration(t *testing.T) {
	tests := []struct {
		name     string
		parse    func([]string) *int
		lines    []string
		expected *int
	}{
		{name: "EPS registered home", parse: poller.ParseEPSReg, lines: []string{"AT+CEREG?", "+CEREG: 0,1", "", "OK"}, expected: intp(1)},
		{name: "EPS roaming with spaces", parse: poller.ParseEPSReg, lines: []string{"+CEREG: 2, 5,\"D2A3\",\"1A2D003\",7"}, expected: intp(5)},
		{name: "NR5G searching", parse: poller.ParseNR5GReg, lines: []string{"+C5GREG: 0,2", "OK"}, expected: intp(2)},
		{name: "Error response", parse: poller.ParseEPSReg, lines: []string{"AT+CEREG?", "ERROR"}, expected: nil},
		{name: "Wrong prefix", parse: poller.ParseNR5GReg, lines: []string{"+CEREG: 0,1"}, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.parse(tt.lines); !equalInt(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestParseOperator(t *testing.T) {
	t.Run("Long alphanumeric name", func(t *testing.T) {
		got := poller.ParseOperator([]string{"AT+COPS?", `+COPS: 0,0,"Telekom.de",13`, "OK"})
		if strOf(got) != "Telekom.de" {
			t.Errorf("expected Telekom.de, got %s", strOf(got))
		}
	})

	t.Run("No operator selected", func(t *testing.T) {
		if got := poller.ParseOperator([]string{"+COPS: 0", "OK"}); got != nil {
			t.Errorf("expected nil, got %s", *got)
		}
	})
}

func TestParseThermal(t *testing.T) {
	lines := []string{
		"AT+QTEMP",
		`+QTEMP:"soc-thermal","41"`,
		`+QTEMP:"pa-thermal","38"`,
		`+QTEMP:"pa5g-thermal","-3"`,
		"OK",
	}

	got := poller.ParseThermal(lines)
	if !equalInt(got.Baseband, intp(41)) {
		t.Errorf("unexpected baseband %v", got.Baseband)
	}
	if !equalInt(got.PA, intp(38)) {
		t.Errorf("unexpected pa %v", got.PA)
	}
	if !equalInt(got.PA5G, intp(-3)) {
		t.Errorf("unexpected pa5g %v", got.PA5G)
	}
	if got.Board != nil {
		t.Errorf("expected no board reading, got %d", *got.Board)
	}
}

func TestParseServingCell(t *testing.T) {
	t.Run("LTE", func(t *testing.T) {
		sc, ok := poller.ParseServingCell([]string{`AT+QENG="servingcell"`, lteServing, "", "OK"})
		if !ok {
			t.Fatal("expected serving cell")
		}
		if sc.RAT != "LTE" || strOf(sc.State) != "NOCONN" {
			t.Errorf("unexpected rat/state %s/%s", sc.RAT, strOf(sc.State))
		}
		if sc.MCC != "262" || sc.MNC != "01" {
			t.Errorf("unexpected plmn %s%s", sc.MCC, sc.MNC)
		}
		if strOf(sc.CellID) != "1A2D003" || strOf(sc.TAC) != "D2A3" {
			t.Errorf("unexpected cell %s tac %s", strOf(sc.CellID), strOf(sc.TAC))
		}
		checks := []struct {
			name     string
			got      *int
			expected int
		}{
			{"pci", sc.PCI, 310},
			{"earfcn", sc.ARFCN, 6300},
			{"band", sc.Band, 20},
			{"rsrp", sc.RSRP, -96},
			{"rsrq", sc.RSRQ, -11},
			{"rssi", sc.RSSI, -65},
			{"sinr", sc.SINR, 12},
		}
		for _, c := range checks {
			if !equalInt(c.got, intp(c.expected)) {
				t.Errorf("%s: expected %d, got %v", c.name, c.expected, c.got)
			}
		}
	})

	t.Run("NR5G standalone", func(t *testing.T) {
		sc, ok := poller.ParseServingCell([]string{saServing, "OK"})
		if !ok {
			t.Fatal("expected serving cell")
		}
		if sc.RAT != "NR5G-SA" || strOf(sc.State) != "CONNECT" {
			t.Errorf("unexpected rat/state %s/%s", sc.RAT, strOf(sc.State))
		}
		if strOf(sc.TAC) != "3F2A1" || !equalInt(sc.PCI, intp(501)) {
			t.Errorf("unexpected tac %s pci %v", strOf(sc.TAC), sc.PCI)
		}
		if !equalInt(sc.ARFCN, intp(627264)) || !equalInt(sc.Band, intp(78)) {
			t.Errorf("unexpected arfcn %v band %v", sc.ARFCN, sc.Band)
		}
		if !equalInt(sc.RSRP, intp(-88)) || !equalInt(sc.RSRQ, intp(-11)) || !equalInt(sc.SINR, intp(15)) {
			t.Errorf("unexpected signal %v %v %v", sc.RSRP, sc.RSRQ, sc.SINR)
		}
		if sc.RSSI != nil {
			t.Errorf("standalone report carries no rssi, got %d", *sc.RSSI)
		}
	})

	t.Run("NR5G non-standalone uses the LTE anchor", func(t *testing.T) {
		sc, ok := poller.ParseServingCell([]string{
			`+QENG: "servingcell","NOCONN"`,
			`+QENG: "LTE","FDD",262,01,1A2D003,310,6300,20,3,3,D2A3,-32768,-11,-65,12,9,-,40`,
			`+QENG: "NR5G-NSA",262,01,501,-88,15,-11,627264,78,12,1`,
			"OK",
		})
		if !ok {
			t.Fatal("expected serving cell")
		}
		if sc.RAT != "NR5G-NSA" || strOf(sc.State) != "NOCONN" {
			t.Errorf("unexpected rat/state %s/%s", sc.RAT, strOf(sc.State))
		}
		if sc.RSRP != nil {
			t.Errorf("unavailable rsrp should be nil, got %d", *sc.RSRP)
		}
		if !equalInt(sc.PCI, intp(310)) {
			t.Errorf("unexpected pci %v", sc.PCI)
		}
	})

	t.Run("Search state has no cell", func(t *testing.T) {
		if _, ok := poller.ParseServingCell([]string{`+QENG: "servingcell","SEARCH"`, "OK"}); ok {
			t.Error("expected no serving cell")
		}
	})

	t.Run("Truncated report", func(t *testing.T) {
		if _, ok := poller.ParseServingCell([]string{`+QENG: "servingcell","NOCONN","LTE","FDD",262,01`}); ok {
			t.Error("expected truncated report to be rejected")
		}
	})
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		rat     string
		duplex  string
		band    string
		channel *int
	}{
		{name: "LTE FDD", lines: []string{`+QNWINFO: "FDD LTE","26201","LTE BAND 3",1300`, "OK"}, rat: "LTE", duplex: "FDD", band: "LTE BAND 3", channel: intp(1300)},
		{name: "NR5G TDD", lines: []string{`+QNWINFO: "TDD NR5G","26201","NR5G BAND 78",627264`}, rat: "NR5G-SA", duplex: "TDD", band: "NR5G BAND 78", channel: intp(627264)},
		{name: "Other access keeps its name", lines: []string{`+QNWINFO: "WCDMA","26201","WCDMA 2100",10700`}, rat: "WCDMA", duplex: "<nil>", band: "WCDMA 2100", channel: intp(10700)},
		{name: "No service", lines: []string{`+QNWINFO: No Service`, "OK"}, rat: "<nil>", duplex: "<nil>", band: "<nil>"},
		{name: "Error", lines: []string{"ERROR"}, rat: "<nil>", duplex: "<nil>", band: "<nil>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := poller.ParseMode(tt.lines)
			if strOf(m.RAT) != tt.rat || strOf(m.Duplex) != tt.duplex {
				t.Errorf("expected %s/%s, got %s/%s", tt.rat, tt.duplex, strOf(m.RAT), strOf(m.Duplex))
			}
			if strOf(m.Band) != tt.band || !equalInt(m.Channel, tt.channel) {
				t.Errorf("unexpected band %s channel %v", strOf(m.Band), m.Channel)
			}
		})
	}
}

func TestParseNeighbours(t *testing.T) {
	t.Run("LTE intra and inter frequency", func(t *testing.T) {
		n := poller.ParseNeighbours([]string{
			`AT+QENG="neighbourcell"`,
			lteNeighbourIntra,
			`+QENG: "neighbourcell inter","LTE",1300,318,-12,-98,-66,3,30,5,10,12`,
			"OK",
		})
		if len(n.LTE) != 2 || len(n.NR) != 0 {
			t.Fatalf("unexpected neighbours %+v", n)
		}
		intra, inter := n.LTE[0], n.LTE[1]
		if intra.Scope != "intra" || intra.EARFCN != 6300 || intra.PCI != 311 {
			t.Errorf("unexpected intra neighbour %+v", intra)
		}
		if !equalInt(intra.RSRQ, intp(-14)) || !equalInt(intra.RSRP, intp(-104)) || !equalInt(intra.SrxLev, intp(22)) {
			t.Errorf("unexpected intra measurements rsrq=%v rsrp=%v srxlev=%v", intra.RSRQ, intra.RSRP, intra.SrxLev)
		}
		if inter.Scope != "inter" || inter.EARFCN != 1300 || !equalInt(inter.RSSI, intp(-66)) {
			t.Errorf("unexpected inter neighbour %+v", inter)
		}
	})

	t.Run("Swapped RSRP and RSRQ are corrected", func(t *testing.T) {
		n := poller.ParseNeighbours([]string{`+QENG: "neighbourcell intra","LTE",6300,311,-104,-9,-72`})
		if len(n.LTE) != 1 {
			t.Fatalf("unexpected neighbours %+v", n)
		}
		if !equalInt(n.LTE[0].RSRP, intp(-104)) || !equalInt(n.LTE[0].RSRQ, intp(-9)) {
			t.Errorf("expected rsrp -104 rsrq -9, got %v %v", n.LTE[0].RSRP, n.LTE[0].RSRQ)
		}
	})

	t.Run("NR with and without subcarrier spacing", func(t *testing.T) {
		n := poller.ParseNeighbours([]string{
			`+QENG: "neighbourcell","NR5G",627264,502,-95,-12`,
			`+QENG: "neighbourcell","NR5G",30,643296,17,-101,-14`,
		})
		if len(n.NR) != 2 {
			t.Fatalf("unexpected neighbours %+v", n)
		}
		if n.NR[0].ARFCN != 627264 || n.NR[0].PCI != 502 || n.NR[0].SCS != nil {
			t.Errorf("unexpected first NR neighbour %+v", n.NR[0])
		}
		if n.NR[1].ARFCN != 643296 || !equalInt(n.NR[1].SCS, intp(30)) || !equalInt(n.NR[1].RSRP, intp(-101)) {
			t.Errorf("unexpected second NR neighbour %+v", n.NR[1])
		}
	})

	t.Run("Lines without channel or PCI are skipped", func(t *testing.T) {
		n := poller.ParseNeighbours([]string{
			`+QENG: "neighbourcell intra","LTE",-,311,-14,-104`,
			`+QENG: "servingcell","NOCONN"`,
			"OK",
		})
		if n.LTE == nil || n.NR == nil || len(n.LTE)+len(n.NR) != 0 {
			t.Errorf("expected empty non-nil lists, got %+v", n)
		}
	})
}

func TestParseCA(t *testing.T) {
	t.Run("LTE primary and secondary carrier", func(t *testing.T) {
		ca := poller.ParseCA([]string{"AT+QCAINFO", caPCC, caSCC, "OK"})
		if ca.PCC == nil {
			t.Fatal("expected primary carrier")
		}
		pcc := *ca.PCC
		if pcc.RAT != "LTE" || strOf(pcc.Band) != "LTE BAND 20" || !equalInt(pcc.ARFCN, intp(6300)) {
			t.Errorf("unexpected pcc %+v", pcc)
		}
		checks := []struct {
			name     string
			got      *int
			expected int
		}{
			{"bw", pcc.BandwidthMHz, 10},
			{"state", pcc.State, 1},
			{"pci", pcc.PCI, 310},
			{"rsrp", pcc.RSRP, -96},
			{"rsrq", pcc.RSRQ, -11},
			{"rssi", pcc.RSSI, -65},
			{"sinr", pcc.SINR, 12},
		}
		for _, c := range checks {
			if !equalInt(c.got, intp(c.expected)) {
				t.Errorf("%s: expected %d, got %v", c.name, c.expected, c.got)
			}
		}
		if len(ca.SCC) != 1 || !equalInt(ca.SCC[0].BandwidthMHz, intp(20)) || !equalInt(ca.SCC[0].PCI, intp(318)) {
			t.Errorf("unexpected scc %+v", ca.SCC)
		}
	})

	t.Run("NR secondary carrier has no RSSI", func(t *testing.T) {
		ca := poller.ParseCA([]string{caPCC, `+QCAINFO: "SCC",627264,12,"NR5G BAND 78",1,501,-88,-11,15`})
		if len(ca.SCC) != 1 {
			t.Fatalf("unexpected scc %+v", ca.SCC)
		}
		scc := ca.SCC[0]
		if scc.RAT != "NR5G" || !equalInt(scc.BandwidthMHz, intp(100)) {
			t.Errorf("unexpected nr carrier %+v", scc)
		}
		if scc.RSSI != nil || !equalInt(scc.SINR, intp(15)) {
			t.Errorf("expected sinr 15 without rssi, got rssi=%v sinr=%v", scc.RSSI, scc.SINR)
		}
	})

	t.Run("No aggregation", func(t *testing.T) {
		ca := poller.ParseCA([]string{"AT+QCAINFO", "OK"})
		if ca.PCC != nil || ca.SCC == nil || len(ca.SCC) != 0 {
			t.Errorf("unexpected aggregation %+v", ca)
		}
	})
}

func TestParseNetDev(t *testing.T) {
	t.Run("Status line", func(t *testing.T) {
		nd := poller.ParseNetDev([]string{"AT+QNETDEVSTATUS", "+QNETDEVSTATUS: rmnet_data0,up,10.12.34.56,1048576,65536", "OK"})
		if nd == nil {
			t.Fatal("expected netdev status")
		}
		if nd.Iface != "rmnet_data0" || nd.State != "up" || strOf(nd.IPv4) != "10.12.34.56" {
			t.Errorf("unexpected netdev %+v", nd)
		}
		if nd.RxBytes != 1048576 || nd.TxBytes != 65536 {
			t.Errorf("unexpected counters rx=%d tx=%d", nd.RxBytes, nd.TxBytes)
		}
	})

	t.Run("Unassigned address", func(t *testing.T) {
		nd := poller.ParseNetDev([]string{"+QNETDEVSTATUS: rmnet_data0,down,0.0.0.0,0,0"})
		if nd == nil || nd.IPv4 != nil {
			t.Errorf("expected status without address, got %+v", nd)
		}
	})

	t.Run("Unsupported command", func(t *testing.T) {
		if nd := poller.ParseNetDev([]string{"AT+QNETDEVSTATUS", "ERROR"}); nd != nil {
			t.Errorf("expected nil, got %+v", nd)
		}
	})
}

func TestParseSession(t *testing.T) {
	contexts := []string{
		"AT+CGDCONT?",
		`+CGDCONT: 1,"IPV4V6","internet.telekom","0.0.0.0",0,0,0,0`,
		`+CGDCONT: 2,"IP","ims","0.0.0.0",0,0,0,0`,
		`+CGDCONT: 3,"IP","","0.0.0.0",0,0,0,0`,
		"OK",
	}

	t.Run("Contexts are merged by id", func(t *testing.T) {
		s := poller.ParseSession(
			contexts,
			[]string{"+CGACT: 1,1", "+CGACT: 2,0", "+CGACT: 3,0", "OK"},
			[]string{pdpDynamic, "OK"},
			[]string{`+QIDNSCFG: 1,"8.8.8.8","8.8.4.4"`, "OK"},
		)
		if s == nil || len(s.PDP) != 3 {
			t.Fatalf("unexpected session %+v", s)
		}
		if !equalInt(s.DefaultCID, intp(1)) {
			t.Errorf("expected default cid 1, got %v", s.DefaultCID)
		}

		primary := s.PDP[0]
		if primary.CID != 1 || strOf(primary.Type) != "IPV4V6" || strOf(primary.APN) != "internet.telekom" {
			t.Errorf("unexpected primary context %+v", primary)
		}
		if strOf(primary.IP) != "10.12.34.56" {
			t.Errorf("expected address without mask, got %s", strOf(primary.IP))
		}
		if strOf(primary.DNS1) != "10.74.210.210" || strOf(primary.DNS2) != "10.74.210.211" {
			t.Errorf("unexpected dns %s %s", strOf(primary.DNS1), strOf(primary.DNS2))
		}

		ims := s.PDP[1]
		if !equalInt(ims.State, intp(0)) || ims.IP != nil {
			t.Errorf("unexpected ims context %+v", ims)
		}
		if strOf(ims.DNS1) != "8.8.8.8" || strOf(ims.DNS2) != "8.8.4.4" {
			t.Errorf("expected configured dns fallback, got %s %s", strOf(ims.DNS1), strOf(ims.DNS2))
		}
		if s.PDP[2].APN != nil {
			t.Errorf("empty apn should be nil, got %s", *s.PDP[2].APN)
		}
	})

	t.Run("Swapped activation order", func(t *testing.T) {
		s := poller.ParseSession(nil, []string{"+CGACT: 0,4"}, nil, nil)
		if s == nil || len(s.PDP) != 1 || s.PDP[0].CID != 4 || !equalInt(s.PDP[0].State, intp(0)) {
			t.Errorf("unexpected session %+v", s)
		}
		if s != nil && s.DefaultCID != nil {
			t.Errorf("inactive context chosen as default: %d", *s.DefaultCID)
		}
	})

	t.Run("Dynamic parameters without mask", func(t *testing.T) {
		s := poller.ParseSession(nil, nil, []string{`+CGCONTRDP: 1,5,"N/A","100.64.1.2","100.64.1.1","1.1.1.1"`}, nil)
		if s == nil || len(s.PDP) != 1 {
			t.Fatalf("unexpected session %+v", s)
		}
		c := s.PDP[0]
		if c.APN != nil || strOf(c.IP) != "100.64.1.2" || strOf(c.DNS1) != "1.1.1.1" || c.DNS2 != nil {
			t.Errorf("unexpected context %+v", c)
		}
	})

	t.Run("No contexts", func(t *testing.T) {
		if s := poller.ParseSession([]string{"OK"}, []string{"OK"}, []string{"OK"}, []string{`+QIDNSCFG: 1,"8.8.8.8"`}); s != nil {
			t.Errorf("expected nil, got %+v", s)
		}
	})
}

func TestSnapshotClone(t *testing.T) {
	s := poller.Snapshot{Raw: map[string][]string{"AT+COPS?": {"+COPS: 0", "OK"}}}

	c := s.Clone()
	c.Raw["AT+COPS?"][0] = "changed"
	c.Raw["AT+QTEMP"] = nil

	if s.Raw["AT+COPS?"][0] != "+COPS: 0" {
		t.Error("clone shares raw lines")
	}
	if !slices.Equal(s.Commands(), []string{"AT+COPS?"}) {
		t.Errorf("clone shares raw map: %v", s.Commands())
	}

	t.Run("Cell lists are copied", func(t *testing.T) {
		s := poller.Decode(map[string][]string{
			poller.CmdNeighbours:  {lteNeighbourIntra},
			poller.CmdPDPContexts: {`+CGDCONT: 1,"IP","internet"`},
		})

		c := s.Clone()
		c.Neighbours.LTE[0].PCI = 1
		c.Session.PDP[0].CID = 9

		if s.Neighbours.LTE[0].PCI != 311 || s.Session.PDP[0].CID != 1 {
			t.Error("clone shares cell lists")
		}
	})
}
