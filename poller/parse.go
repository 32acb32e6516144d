package poller

import (
	"maps"
	"net/netip"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// unavailable is what Quectel firmware reports for a missing measurement.
const unavailable = -32768

var (
	ceregRe  = regexp.MustCompile(`\+CEREG:\s*\d\s*,\s*(\d+)`)
	c5gregRe = regexp.MustCompile(`\+C5GREG:\s*\d\s*,\s*(\d+)`)
	copsRe   = regexp.MustCompile(`\+COPS:\s*\d+,\s*\d+,\s*"([^"]+)"`)
)

// thermalSensors maps AT+QTEMP sensor names to Thermal fields.
var thermalSensors = []struct {
	re    *regexp.Regexp
	field func(*Thermal) **int
}{
	{sensorRe("soc-thermal"), func(t *Thermal) **int { return &t.Baseband }},
	{sensorRe("pa-thermal"), func(t *Thermal) **int { return &t.PA }},
	{sensorRe("pa5g-thermal"), func(t *Thermal) **int { return &t.PA5G }},
	{sensorRe("board-thermal"), func(t *Thermal) **int { return &t.Board }},
}

func sensorRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`"` + regexp.QuoteMeta(name) + `"\s*,\s*"(-?\d+)"`)
}

// ParseEPSReg returns the stat field of a +CEREG read response.
func ParseEPSReg(lines []string) *int {
	return firstInt(lines, ceregRe)
}

// ParseNR5GReg returns the stat field of a +C5GREG read response.
func ParseNR5GReg(lines []string) *int {
	return firstInt(lines, c5gregRe)
}

// ParseOperator returns the long alphanumeric operator name of +COPS.
func ParseOperator(lines []string) *string {
	for _, line := range lines {
		if m := copsRe.FindStringSubmatch(line); m != nil {
			return &m[1]
		}
	}
	return nil
}

// ParseThermal picks the known sensors out of an AT+QTEMP response.
func ParseThermal(lines []string) Thermal {
	var t Thermal
	for _, sensor := range thermalSensors {
		*sensor.field(&t) = firstInt(lines, sensor.re)
	}
	return t
}

// ServingCell is the decoded AT+QENG="servingcell" response.
type ServingCell struct {
	State  *string
	RAT    string
	MCC    string
	MNC    string
	CellID *string
	PCI    *int
	TAC    *string
	ARFCN  *int
	Band   *int
	RSRP   *int
	RSRQ   *int
	RSSI   *int
	SINR   *int
}

// Field offsets relative to the RAT token.
type cellLayout struct {
	mcc, mnc, cellID, pci, arfcn, band, tac, rsrp, rsrq, rssi, sinr int
	width                                                           int
}

var (
	lteLayout = cellLayout{mcc: 2, mnc: 3, cellID: 4, pci: 5, arfcn: 6, band: 7, tac: 10, rsrp: 11, rsrq: 12, rssi: 13, sinr: 14, width: 15}
	saLayout  = cellLayout{mcc: 2, mnc: 3, cellID: 4, pci: 5, tac: 6, arfcn: 7, band: 8, rsrp: 10, rsrq: 11, sinr: 12, rssi: -1, width: 13}
)

// ParseServingCell decodes LTE, NR5G-SA and NR5G-NSA (LTE anchor) serving
// cell reports. It returns false when no serving cell line is recognised.
func ParseServingCell(lines []string) (ServingCell, bool) {
	var (
		state  *string
		lte    []string
		sa     []string
		nsa    bool
		parsed bool
	)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "+QENG:")
		if !ok {
			continue
		}
		toks := splitFields(rest)
		if len(toks) == 0 {
			continue
		}
		if toks[0] == "servingcell" {
			if len(toks) > 1 {
				state = &toks[1]
			}
			toks = toks[min(2, len(toks)):]
			if len(toks) == 0 {
				continue
			}
		}
		switch strings.ToUpper(toks[0]) {
		case "LTE":
			lte = toks
		case "NR5G-SA":
			sa = toks
		case "NR5G-NSA":
			nsa = true
		}
	}

	var sc ServingCell
	switch {
	case sa != nil && len(sa) >= saLayout.width:
		sc = decodeCell("NR5G-SA", sa, saLayout)
		parsed = true
	case lte != nil && len(lte) >= lteLayout.width:
		rat := "LTE"
		if nsa {
			rat = "NR5G-NSA"
		}
		sc = decodeCell(rat, lte, lteLayout)
		parsed = true
	}
	if !parsed {
		return ServingCell{}, false
	}
	sc.State = state
	return sc, true
}

func decodeCell(rat string, toks []string, l cellLayout) ServingCell {
	sc := ServingCell{
		RAT:    rat,
		MCC:    toks[l.mcc],
		MNC:    toks[l.mnc],
		CellID: hexField(toks[l.cellID]),
		PCI:    intField(toks[l.pci]),
		TAC:    hexField(toks[l.tac]),
		ARFCN:  intField(toks[l.arfcn]),
		Band:   intField(toks[l.band]),
		RSRP:   intField(toks[l.rsrp]),
		RSRQ:   intField(toks[l.rsrq]),
		SINR:   intField(toks[l.sinr]),
	}
	if l.rssi >= 0 {
		sc.RSSI = intField(toks[l.rssi])
	}
	return sc
}

// ParseMode decodes an AT+QNWINFO response such as
// +QNWINFO: "FDD LTE","26201","LTE BAND 3",1300.
func ParseMode(lines []string) Mode {
	toks := firstPayload(lines, "+QNWINFO:")
	if len(toks) == 0 || toks[0] == "" || strings.EqualFold(toks[0], "No Service") {
		return Mode{}
	}
	access := toks[0]
	up := strings.ToUpper(access)
	m := Mode{Access: &access}

	rat := up
	switch {
	case strings.Contains(up, "NR5G"):
		rat = "NR5G-SA"
	case strings.Contains(up, "LTE"):
		rat = "LTE"
	}
	m.RAT = &rat
	for _, duplex := range []string{"TDD", "FDD"} {
		if strings.Contains(up, duplex) {
			m.Duplex = &duplex
			break
		}
	}
	m.Band = textField(field(toks, 2))
	m.Channel = intField(field(toks, 3))
	return m
}

// nrSubcarrierSpacings are the SCS values in kHz some firmware inserts after
// the NR5G token of a neighbour line.
var nrSubcarrierSpacings = []int{15, 30, 60, 120}

// ParseNeighbours decodes the intra and inter frequency neighbour lines of
// AT+QENG="neighbourcell". Lines without a channel or PCI are skipped.
func ParseNeighbours(lines []string) Neighbours {
	n := Neighbours{LTE: []LTENeighbour{}, NR: []NRNeighbour{}}
	for _, line := range lines {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "+QENG:")
		if !ok {
			continue
		}
		toks := splitFields(rest)
		if len(toks) < 4 || !strings.HasPrefix(toks[0], "neighbourcell") {
			continue
		}
		f := toks[2:]
		switch strings.ToUpper(toks[1]) {
		case "LTE":
			earfcn, pci := intField(f[0]), intField(f[1])
			if earfcn == nil || pci == nil {
				continue
			}
			nb := LTENeighbour{
				Scope:  strings.TrimSpace(strings.TrimPrefix(toks[0], "neighbourcell")),
				EARFCN: *earfcn,
				PCI:    *pci,
				RSRQ:   intField(field(f, 2)),
				RSRP:   intField(field(f, 3)),
				RSSI:   intField(field(f, 4)),
				SINR:   intField(field(f, 5)),
				SrxLev: intField(field(f, 6)),
			}
			// Some firmware reports RSRP and RSRQ the other way round.
			if nb.RSRP != nil && nb.RSRQ != nil && abs(*nb.RSRP) < 10 && abs(*nb.RSRQ) > 10 {
				nb.RSRP, nb.RSRQ = nb.RSRQ, nb.RSRP
			}
			n.LTE = append(n.LTE, nb)
		case "NR5G", "NR", "NR5G-SA", "NR5G-NSA":
			var scs *int
			if v := intField(f[0]); v != nil && slices.Contains(nrSubcarrierSpacings, *v) {
				scs, f = v, f[1:]
			}
			arfcn, pci := intField(field(f, 0)), intField(field(f, 1))
			if arfcn == nil || pci == nil {
				continue
			}
			n.NR = append(n.NR, NRNeighbour{
				ARFCN: *arfcn,
				PCI:   *pci,
				RSRP:  intField(field(f, 2)),
				RSRQ:  intField(field(f, 3)),
				SCS:   scs,
			})
		}
	}
	return n
}

// Bandwidth codes of AT+QCAINFO mapped to MHz.
var (
	lteBandwidth = map[int]int{6: 1, 15: 3, 25: 5, 50: 10, 75: 15, 100: 20}
	nrBandwidth  = map[int]int{0: 5, 1: 10, 2: 15, 3: 20, 4: 25, 5: 30, 6: 40, 7: 50, 8: 60, 9: 70, 10: 80, 11: 90, 12: 100, 13: 200, 14: 400}
)

// ParseCA decodes the PCC and SCC rows of AT+QCAINFO:
//
//	+QCAINFO: "PCC",<freq>,<bw>,<band>,<state>,<pci>,<rsrp>,<rsrq>,<rssi>,<sinr>
//
// NR rows carry no RSSI, so their SINR follows RSRQ directly.
func ParseCA(lines []string) CarrierAggregation {
	ca := CarrierAggregation{SCC: []Carrier{}}
	for _, line := range lines {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "+QCAINFO:")
		if !ok {
			continue
		}
		toks := splitFields(rest)
		if len(toks) < 4 {
			continue
		}
		kind := strings.ToUpper(toks[0])
		switch {
		case kind == "PCC":
			c := decodeCarrier(toks[1:])
			ca.PCC = &c
		case strings.HasPrefix(kind, "SCC"):
			ca.SCC = append(ca.SCC, decodeCarrier(toks[1:]))
		}
	}
	return ca
}

func decodeCarrier(f []string) Carrier {
	c := Carrier{
		RAT:   "LTE",
		ARFCN: intField(f[0]),
		Band:  textField(f[2]),
		State: intField(field(f, 3)),
		PCI:   intField(field(f, 4)),
		RSRP:  intField(field(f, 5)),
		RSRQ:  intField(field(f, 6)),
	}
	widths := lteBandwidth
	if strings.HasPrefix(strings.ToUpper(f[2]), "NR") {
		c.RAT = "NR5G"
		c.SINR = intField(field(f, 7))
		widths = nrBandwidth
	} else {
		c.RSSI = intField(field(f, 7))
		c.SINR = intField(field(f, 8))
	}
	if code := intField(f[1]); code != nil {
		if mhz, ok := widths[*code]; ok {
			c.BandwidthMHz = &mhz
		}
	}
	return c
}

// ParseNetDev decodes +QNETDEVSTATUS: <iface>,<state>,<ipv4>,<rx>,<tx>.
// It returns nil when no status line is present.
func ParseNetDev(lines []string) *NetDev {
	for _, line := range lines {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "+QNETDEVSTATUS:")
		if !ok {
			continue
		}
		toks := splitFields(rest)
		if len(toks) < 5 {
			continue
		}
		rx, err := strconv.ParseUint(toks[3], 10, 64)
		if err != nil {
			continue
		}
		tx, err := strconv.ParseUint(toks[4], 10, 64)
		if err != nil {
			continue
		}
		return &NetDev{
			Iface:   toks[0],
			State:   toks[1],
			IPv4:    addrField(toks[2]),
			RxBytes: rx,
			TxBytes: tx,
		}
	}
	return nil
}

// ParseSession merges the AT+CGDCONT?, AT+CGACT?, AT+CGCONTRDP? and
// AT+QIDNSCFG? responses into one entry per context id. Contexts without
// their own DNS servers inherit the configured ones. It returns nil when no
// context is reported.
func ParseSession(contexts, activation, dynamic, dns []string) *Session {
	pdp := make(map[int]*PDPContext)
	lookup := func(cid int) *PDPContext {
		c, ok := pdp[cid]
		if !ok {
			c = &PDPContext{CID: cid}
			pdp[cid] = c
		}
		return c
	}

	for _, f := range payloads(contexts, "+CGDCONT:") {
		cid, err := strconv.Atoi(f[0])
		if err != nil || len(f) < 3 {
			continue
		}
		c := lookup(cid)
		c.Type = textField(f[1])
		c.APN = textField(f[2])
	}

	for _, f := range payloads(activation, "+CGACT:") {
		if len(f) < 2 {
			continue
		}
		a, errA := strconv.Atoi(f[0])
		b, errB := strconv.Atoi(f[1])
		if errA != nil || errB != nil {
			continue
		}
		// The standard order is <cid>,<state>; some modems swap it.
		cid, state := a, b
		if b > a {
			cid, state = b, a
		}
		lookup(cid).State = &state
	}

	for _, f := range payloads(dynamic, "+CGCONTRDP:") {
		cid, err := strconv.Atoi(f[0])
		if err != nil || len(f) < 3 {
			continue
		}
		c := lookup(cid)
		if apn := textField(f[2]); apn != nil && !strings.EqualFold(*apn, "N/A") {
			c.APN = apn
		}
		if c.IP == nil {
			c.IP = localAddr(field(f, 3))
		}
		if c.DNS1 == nil {
			c.DNS1 = addrField(field(f, 5))
		}
		if c.DNS2 == nil {
			c.DNS2 = addrField(field(f, 6))
		}
	}

	if len(pdp) == 0 {
		return nil
	}

	var servers []*string
	if f := firstPayload(dns, "+QIDNSCFG:"); f != nil {
		for _, tok := range f[1:] {
			if addr := addrField(tok); addr != nil {
				servers = append(servers, addr)
			}
		}
	}

	s := &Session{PDP: make([]PDPContext, 0, len(pdp))}
	for _, cid := range slices.Sorted(maps.Keys(pdp)) {
		c := pdp[cid]
		if c.DNS1 == nil && len(servers) > 0 {
			c.DNS1 = servers[0]
		}
		if c.DNS2 == nil && len(servers) > 1 {
			c.DNS2 = servers[1]
		}
		if s.DefaultCID == nil && c.State != nil && *c.State == 1 {
			s.DefaultCID = &c.CID
		}
		s.PDP = append(s.PDP, *c)
	}
	return s
}

// localAddr decodes the local address field of +CGCONTRDP, which some
// firmware reports as address and subnet mask joined by dots.
func localAddr(s string) *string {
	parts := strings.Split(s, ".")
	var raw []byte
	switch len(parts) {
	case 8, 32:
		raw = make([]byte, len(parts)/2)
		for i := range raw {
			v, err := strconv.ParseUint(parts[i], 10, 8)
			if err != nil {
				return nil
			}
			raw[i] = byte(v)
		}
	default:
		return addrField(s)
	}
	addr, ok := netip.AddrFromSlice(raw)
	if !ok || addr.IsUnspecified() {
		return nil
	}
	out := addr.String()
	return &out
}

// addrField returns the normalised IP address in s, or nil when s is empty,
// unspecified or not an address.
func addrField(s string) *string {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || addr.IsUnspecified() {
		return nil
	}
	out := addr.String()
	return &out
}

// firstPayload returns the fields of the first line starting with prefix.
func firstPayload(lines []string, prefix string) []string {
	if all := payloads(lines, prefix); len(all) > 0 {
		return all[0]
	}
	return nil
}

// payloads returns the non-empty field lists of every line starting with
// prefix.
func payloads(lines []string, prefix string) [][]string {
	var out [][]string
	for _, line := range lines {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), prefix)
		if !ok {
			continue
		}
		if toks := splitFields(rest); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}

// splitFields splits a comma separated AT payload, ignoring commas inside
// double quotes, and strips the quotes from each field.
func splitFields(s string) []string {
	var (
		fields []string
		cur    strings.Builder
		quoted bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if last := strings.TrimSpace(cur.String()); last != "" || len(fields) > 0 {
		fields = append(fields, last)
	}
	return fields
}

func intField(s string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v == unavailable {
		return nil
	}
	return &v
}

func textField(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil
	}
	return &s
}

func field(toks []string, i int) string {
	if i < 0 || i >= len(toks) {
		return ""
	}
	return toks[i]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func hexField(s string) *string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return nil
	}
	if _, err := strconv.ParseUint(s, 16, 64); err != nil {
		return nil
	}
	return &s
}

func firstInt(lines []string, re *regexp.Regexp) *int {
	for _, line := range lines {
		if m := re.FindStringSubmatch(line); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				return &v
			}
		}
	}
	return nil
}
