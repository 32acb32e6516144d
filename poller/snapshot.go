package poller

import (
	"maps"
	"slices"
)

// Snapshot is one polling cycle's view of the radio. Fields the modem did
// not report are nil and encode as JSON null. Raw holds the response lines
// by command and is left out of the encoding.
type Snapshot struct {
	Operator   Operator            `json:"operator"`
	RAT        *string             `json:"rat"`
	Mode       Mode                `json:"mode"`
	Reg        Registration        `json:"reg"`
	Cell       Cell                `json:"cell"`
	Signal     Signal              `json:"signal"`
	Neighbours Neighbours          `json:"neighbours"`
	CA         CarrierAggregation  `json:"ca"`
	Session    *Session            `json:"session"`
	NetDev     *NetDev             `json:"netdev"`
	Thermal    Thermal             `json:"thermal"`
	Raw        map[string][]string `json:"-"`
}

type Operator struct {
	Name   *string `json:"name"`
	MCCMNC *string `json:"mccmnc"`
}

// Registration holds the +CEREG / +C5GREG stat values.
type Registration struct {
	EPS  *int `json:"eps"`
	NR5G *int `json:"nr5g"`
}

type Cell struct {
	State  *string `json:"state"`
	PCI    *int    `json:"pci"`
	TAC    *string `json:"tac"`
	CellID *string `json:"cell_id"`
	Band   *int    `json:"band"`
	ARFCN  *int    `json:"arfcn"`
}

type Signal struct {
	RSSI *int `json:"rssi"`
	RSRP *int `json:"rsrp"`
	RSRQ *int `json:"rsrq"`
	SINR *int `json:"sinr"`
}

// Mode is the access technology reported by AT+QNWINFO.
type Mode struct {
	Access  *string `json:"access"`
	RAT     *string `json:"rat"`
	Duplex  *string `json:"duplex"`
	Band    *string `json:"band"`
	Channel *int    `json:"channel"`
}

// Neighbours are the cells listed by AT+QENG="neighbourcell". Decode leaves
// both slices non-nil so they encode as empty arrays.
type Neighbours struct {
	LTE []LTENeighbour `json:"lte"`
	NR  []NRNeighbour  `json:"nr"`
}

type LTENeighbour struct {
	Scope  string `json:"scope"`
	EARFCN int    `json:"earfcn"`
	PCI    int    `json:"pci"`
	RSRQ   *int   `json:"rsrq"`
	RSRP   *int   `json:"rsrp"`
	RSSI   *int   `json:"rssi"`
	SINR   *int   `json:"sinr"`
	SrxLev *int   `json:"srxlev"`
}

type NRNeighbour struct {
	ARFCN int  `json:"nrarfcn"`
	PCI   int  `json:"pci"`
	RSRP  *int `json:"rsrp"`
	RSRQ  *int `json:"rsrq"`
	SCS   *int `json:"scs_khz"`
}

// CarrierAggregation holds the primary and secondary component carriers of
// AT+QCAINFO.
type CarrierAggregation struct {
	PCC *Carrier  `json:"pcc"`
	SCC []Carrier `json:"scc"`
}

type Carrier struct {
	RAT          string  `json:"rat"`
	ARFCN        *int    `json:"arfcn"`
	BandwidthMHz *int    `json:"bw_mhz"`
	Band         *string `json:"band"`
	State        *int    `json:"state"`
	PCI          *int    `json:"pci"`
	RSRP         *int    `json:"rsrp"`
	RSRQ         *int    `json:"rsrq"`
	RSSI         *int    `json:"rssi"`
	SINR         *int    `json:"sinr"`
}

// Session is the packet data state merged from the PDP context commands.
// DefaultCID is the lowest active context.
type Session struct {
	DefaultCID *int         `json:"default_cid"`
	PDP        []PDPContext `json:"pdp"`
}

type PDPContext struct {
	CID   int     `json:"cid"`
	Type  *string `json:"type"`
	APN   *string `json:"apn"`
	State *int    `json:"state"`
	IP    *string `json:"ip"`
	DNS1  *string `json:"dns1"`
	DNS2  *string `json:"dns2"`
}

// NetDev is the modem's network device status from AT+QNETDEVSTATUS.
type NetDev struct {
	Iface   string  `json:"iface"`
	State   string  `json:"state"`
	IPv4    *string `json:"ipv4"`
	RxBytes uint64  `json:"rx_bytes"`
	TxBytes uint64  `json:"tx_bytes"`
}

// Thermal holds AT+QTEMP readings in degrees Celsius.
type Thermal struct {
	Baseband *int `json:"bb"`
	PA       *int `json:"pa"`
	PA5G     *int `json:"pa5g"`
	Board    *int `json:"board"`
}

// Clone returns a copy whose raw lines and cell lists can be modified
// without affecting s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Neighbours.LTE = slices.Clone(s.Neighbours.LTE)
	out.Neighbours.NR = slices.Clone(s.Neighbours.NR)
	out.CA.SCC = slices.Clone(s.CA.SCC)
	if s.Session != nil {
		session := *s.Session
		session.PDP = slices.Clone(s.Session.PDP)
		out.Session = &session
	}
	out.Raw = make(map[string][]string, len(s.Raw))
	for cmd, lines := range s.Raw {
		out.Raw[cmd] = slices.Clone(lines)
	}
	return out
}

// Commands returns the polled commands in a stable order.
func (s Snapshot) Commands() []string {
	return slices.Sorted(maps.Keys(s.Raw))
}
