package api

import (
	"net/http"
	"regexp"
	"strconv"

	"i4.energy/across/linkstation/at"
)

const (
	cmdManufacturer = "AT+GMI"
	cmdModel        = "AT+CGMM"
	cmdRevision     = "AT+GMR"
	cmdIMEI         = "AT+GSN"
	cmdIMSI         = "AT+CIMI"
	cmdICCID        = "AT+ICCID"
	cmdMSISDN       = "AT+CNUM"
	cmdSIMStatus    = "AT+QSIMSTAT?"
	cmdUSBSpeed     = `AT+QCFG="usbspeed"`
)

var infoCommands = []string{
	cmdManufacturer, cmdModel, cmdRevision, cmdIMEI,
	cmdIMSI, cmdICCID, cmdMSISDN, cmdSIMStatus, cmdUSBSpeed,
}

var usbSpeedLabels = map[string]string{
	"20":  "USB 2.0 high speed, 480 Mbps",
	"311": "USB 3.1 Gen1, 5 Gbps",
	"312": "USB 3.1 Gen2, 10 Gbps",
}

var (
	iccidRe    = regexp.MustCompile(`\+ICCID:\s*([0-9A-Fa-f]+)`)
	simStatRe  = regexp.MustCompile(`\+QSIMSTAT:\s*(\d)\s*,\s*(\d)`)
	usbSpeedRe = regexp.MustCompile(`\+QCFG:\s*"usbspeed"\s*,\s*"([^"]+)"`)

	// +CNUM: "alpha","number",type | +CNUM: ,"number",type | +CNUM: "number",type
	cnumRes = []*regexp.Regexp{
		regexp.MustCompile(`\+CNUM:\s*"[^"]*"\s*,\s*"([^"]+)"\s*,\s*\d+`),
		regexp.MustCompile(`\+CNUM:\s*,\s*"([^"]+)"\s*,\s*\d+`),
		regexp.MustCompile(`\+CNUM:\s*"([^"]+)"\s*,\s*\d+`),
	}
)

type ModemInfo struct {
	Manufacturer *string `json:"manufacturer"`
	Model        *string `json:"model"`
	Revision     *string `json:"revision"`
	IMEI         *string `json:"imei"`
}

type SIMInfo struct {
	IMSI     *string `json:"imsi"`
	ICCID    *string `json:"iccid"`
	MSISDN   *string `json:"msisdn"`
	Enabled  *bool   `json:"enabled"`
	Inserted *bool   `json:"inserted"`
}

type USBSpeed struct {
	Code  *int    `json:"code"`
	Label *string `json:"label"`
}

type ModemDetails struct {
	USB USBSpeed `json:"usb"`
}

type InfoResponse struct {
	OK    bool                `json:"ok"`
	TS    int64               `json:"ts"`
	Info  ModemInfo           `json:"info"`
	SIM   SIMInfo             `json:"sim"`
	Modem ModemDetails        `json:"modem"`
	Raw   map[string][]string `json:"raw"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	raw := make(map[string][]string, len(infoCommands))
	for _, cmd := range infoCommands {
		lines, err := s.Modem.Execute(r.Context(), cmd, 0)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		raw[cmd] = lines
	}

	resp := InfoResponse{
		OK: true,
		TS: nowMillis(),
		Info: ModemInfo{
			Manufacturer: payload(raw[cmdManufacturer]),
			Model:        payload(raw[cmdModel]),
			Revision:     payload(raw[cmdRevision]),
			IMEI:         payload(raw[cmdIMEI]),
		},
		SIM: SIMInfo{
			IMSI:   payload(raw[cmdIMSI]),
			ICCID:  match(raw[cmdICCID], iccidRe),
			MSISDN: parseMSISDN(raw[cmdMSISDN]),
		},
	}
	resp.SIM.Enabled, resp.SIM.Inserted = parseSIMStatus(raw[cmdSIMStatus])
	resp.Modem.USB = parseUSBSpeed(raw[cmdUSBSpeed])
	if verbose(r) {
		resp.Raw = raw
	}

	s.sendJSON(w, resp, http.StatusOK)
}

// payload returns the first payload line, or nil for error and empty
// responses.
func payload(lines []string) *string {
	if _, failed := at.Failed(lines); failed {
		return nil
	}
	if p := at.FirstPayload(lines); p != "" {
		return &p
	}
	return nil
}

func match(lines []string, re *regexp.Regexp) *string {
	for _, line := range lines {
		if m := re.FindStringSubmatch(line); m != nil {
			return &m[1]
		}
	}
	return nil
}

func parseMSISDN(lines []string) *string {
	for _, line := range lines {
		for _, re := range cnumRes {
			if m := re.FindStringSubmatch(line); m != nil {
				return &m[1]
			}
		}
	}
	return nil
}

func parseSIMStatus(lines []string) (*bool, *bool) {
	for _, line := range lines {
		if m := simStatRe.FindStringSubmatch(line); m != nil {
			enabled, inserted := m[1] == "1", m[2] == "1"
			return &enabled, &inserted
		}
	}
	return nil, nil
}

func parseUSBSpeed(lines []string) USBSpeed {
	var u USBSpeed
	code := match(lines, usbSpeedRe)
	if code == nil {
		return u
	}
	if n, err := strconv.Atoi(*code); err == nil {
		u.Code = &n
	}
	if label, ok := usbSpeedLabels[*code]; ok {
		u.Label = &label
	}
	return u
}
