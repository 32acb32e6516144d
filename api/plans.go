package api

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// planRequest is a decoded control request that can plan its AT commands.
type planRequest interface {
	plan() ([]string, error)
	dryRun() bool
}

type ctrlRequest struct {
	DryRun bool `json:"dry_run"`
}

func (c ctrlRequest) dryRun() bool { return c.DryRun }

func onOff(v bool) int {
	if v {
		return 1
	}
	return 0
}

// quotable rejects values that would break out of a quoted AT argument.
func quotable(name, v string) error {
	if strings.ContainsAny(v, "\"\r\n") {
		return fmt.Errorf("%w: %s contains a quote or line break", ErrInvalidRequest, name)
	}
	return nil
}

var rebootPlans = map[string][]string{
	"soft":   {"AT+CFUN=1,1"},
	"full":   {"AT+CFUN=4", "AT+CFUN=1,1"},
	"rf_off": {"AT+CFUN=4"},
}

type rebootRequest struct {
	ctrlRequest
	Mode string `json:"mode"`
}

func (r *rebootRequest) plan() ([]string, error) {
	plan, ok := rebootPlans[r.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, r.Mode)
	}
	return plan, nil
}

type bandRequest struct {
	ctrlRequest
	RAT      string   `json:"rat"`
	LTEBands []string `json:"lte_bands"`
	NRBands  []string `json:"nr_bands"`
	Reset    bool     `json:"reset"`
}

func (r *bandRequest) plan() ([]string, error) {
	rat := strings.ToUpper(r.RAT)
	lte, nr := rat == "LTE" || rat == "BOTH", rat == "NR5G" || rat == "BOTH"
	if !lte && !nr {
		return nil, fmt.Errorf("%w: rat %s", ErrUnsupportedMode, r.RAT)
	}

	var plan []string
	if r.Reset {
		if lte {
			plan = append(plan, `AT+QCFG="lte/band","0"`)
		}
		if nr {
			plan = append(plan, `AT+QCFG="nr5g/band","0"`)
		}
		return plan, nil
	}

	for _, set := range []struct {
		enabled bool
		name    string
		bands   []string
	}{
		{lte, "LTE", r.LTEBands},
		{nr, "NR5G", r.NRBands},
	} {
		if !set.enabled || len(set.bands) == 0 {
			continue
		}
		for _, b := range set.bands {
			if _, err := strconv.ParseUint(b, 10, 16); err != nil {
				return nil, fmt.Errorf("%w: band %q", ErrInvalidRequest, b)
			}
		}
		plan = append(plan, fmt.Sprintf(`AT+QCFG="band","%s","%s"`, set.name, strings.Join(set.bands, ",")))
	}
	return plan, nil
}

var cellLockRATs = map[string]string{
	"lte":  "LTE",
	"nr5g": "NR5G",
	"nr":   "NR5G",
	"5g":   "NR5G",
}

type cellLockRequest struct {
	ctrlRequest
	Enable *bool  `json:"enable"`
	RAT    string `json:"rat"`
}

// plan locks the radio to one RAT. Locking to a single cell needs firmware
// specific commands and is not planned.
func (r *cellLockRequest) plan() ([]string, error) {
	if r.Enable == nil {
		return nil, fmt.Errorf("%w: enable is required", ErrInvalidRequest)
	}
	if !*r.Enable {
		return []string{"AT+QNWLOCK=0"}, nil
	}
	if r.RAT == "" {
		return nil, nil
	}
	rat, ok := cellLockRATs[strings.ToLower(r.RAT)]
	if !ok {
		return nil, fmt.Errorf("%w: rat %s", ErrUnsupportedMode, r.RAT)
	}
	return []string{fmt.Sprintf(`AT+QNWLOCK=1,"%s"`, rat)}, nil
}

type caRequest struct {
	ctrlRequest
	LTE *bool `json:"lte_ca_enable"`
	NR  *bool `json:"nr_ca_enable"`
}

// plan switches carrier aggregation per RAT. With a single RAT given the
// global switch follows it; with none the global switch is turned on.
func (r *caRequest) plan() ([]string, error) {
	var plan []string
	if r.LTE != nil {
		plan = append(plan, fmt.Sprintf(`AT+QCFG="lte/ca",%d`, onOff(*r.LTE)))
	}
	if r.NR != nil {
		plan = append(plan, fmt.Sprintf(`AT+QCFG="nr5g/ca",%d`, onOff(*r.NR)))
	}
	switch {
	case r.LTE == nil && r.NR == nil:
		plan = append(plan, `AT+QCFG="ca",1`)
	case r.NR == nil:
		plan = append(plan, fmt.Sprintf(`AT+QCFG="ca",%d`, onOff(*r.LTE)))
	case r.LTE == nil:
		plan = append(plan, fmt.Sprintf(`AT+QCFG="ca",%d`, onOff(*r.NR)))
	}
	return plan, nil
}

var gnssModeRe = regexp.MustCompile(`^[A-Za-z_]+$`)

type gnssRequest struct {
	ctrlRequest
	Enable *bool  `json:"enable"`
	Mode   string `json:"mode"`
}

func (r *gnssRequest) plan() ([]string, error) {
	if r.Enable == nil {
		return nil, fmt.Errorf("%w: enable is required", ErrInvalidRequest)
	}
	mode := r.Mode
	if mode == "" {
		mode = "all"
	}
	if !gnssModeRe.MatchString(mode) {
		return nil, fmt.Errorf("%w: gnss mode %q", ErrUnsupportedMode, r.Mode)
	}
	return []string{fmt.Sprintf(`AT+QCFG="gnss","%s",%d`, mode, onOff(*r.Enable))}, nil
}

var (
	pdpTypes     = []string{"IP", "IPV6", "IPV4V6"}
	apnAuthTypes = map[string]int{"none": 0, "pap": 1, "chap": 2}
)

type apnRequest struct {
	ctrlRequest
	CID     int    `json:"cid"`
	APN     string `json:"apn"`
	PDPType string `json:"pdp_type"`
	Auth    struct {
		Type     string `json:"type"`
		User     string `json:"user"`
		Password string `json:"password"`
	} `json:"auth"`
	Activate bool `json:"activate"`
}

func (r *apnRequest) plan() ([]string, error) {
	if r.APN == "" {
		return nil, fmt.Errorf("%w: apn is required", ErrInvalidRequest)
	}
	if r.CID < 1 || r.CID > 15 {
		return nil, fmt.Errorf("%w: cid %d out of range", ErrInvalidRequest, r.CID)
	}
	pdpType := strings.ToUpper(r.PDPType)
	if !slices.Contains(pdpTypes, pdpType) {
		return nil, fmt.Errorf("%w: pdp type %s", ErrUnsupportedMode, r.PDPType)
	}
	authType := strings.ToLower(r.Auth.Type)
	if authType == "" {
		authType = "none"
	}
	auth, ok := apnAuthTypes[authType]
	if !ok {
		return nil, fmt.Errorf("%w: auth type %s", ErrUnsupportedMode, r.Auth.Type)
	}
	for name, v := range map[string]string{"apn": r.APN, "user": r.Auth.User, "password": r.Auth.Password} {
		if err := quotable(name, v); err != nil {
			return nil, err
		}
	}

	plan := []string{fmt.Sprintf(`AT+CGDCONT=%d,"%s","%s"`, r.CID, pdpType, r.APN)}
	if auth != 0 && r.Auth.User != "" && r.Auth.Password != "" {
		plan = append(plan, fmt.Sprintf(`AT+CGAUTH=%d,%d,"%s","%s"`, r.CID, auth, r.Auth.User, r.Auth.Password))
	}
	if r.Activate {
		plan = append(plan, fmt.Sprintf("AT+CGACT=1,%d", r.CID))
	}
	return plan, nil
}

// usbnetModes maps USB network modes to AT+QCFG="usbnet" values. MBIM is
// served through NCM.
var usbnetModes = map[string]int{
	"ecm":   0,
	"rndis": 1,
	"ncm":   2,
	"mbim":  2,
	"auto":  0,
}

type usbnetRequest struct {
	ctrlRequest
	Mode        string `json:"mode"`
	RebootModem bool   `json:"reboot_modem"`
}

func (r *usbnetRequest) plan() ([]string, error) {
	if r.Mode == "" {
		return nil, fmt.Errorf("%w: mode is required", ErrInvalidRequest)
	}
	mode, ok := usbnetModes[strings.ToLower(r.Mode)]
	if !ok {
		return nil, fmt.Errorf("%w: usbnet %s", ErrUnsupportedMode, r.Mode)
	}
	plan := []string{fmt.Sprintf(`AT+QCFG="usbnet",%d`, mode)}
	if r.RebootModem {
		plan = append(plan, "AT+CFUN=1,1")
	}
	return plan, nil
}

// resetProfiles are the network settings restored by /ctrl/reset_profile.
// APN and GNSS settings are left alone.
var resetProfiles = map[string][]string{
	"modem_safe": {
		`AT+QCFG="lte/band","0"`,
		`AT+QCFG="nr5g/band","0"`,
		"AT+QNWLOCK=0",
		`AT+QCFG="lte/ca",1`,
		`AT+QCFG="nr5g/ca",1`,
		fmt.Sprintf(`AT+QNWPREFCFG="roam_pref",%d`, roamPrefAny),
		fmt.Sprintf(`AT+QCFG="usbnet",%d`, usbnetModes["rndis"]),
	},
}

type resetProfileRequest struct {
	ctrlRequest
	Profile string `json:"profile"`
}

func (r *resetProfileRequest) plan() ([]string, error) {
	plan, ok := resetProfiles[r.Profile]
	if !ok {
		return nil, fmt.Errorf("%w: profile %s", ErrUnsupportedMode, r.Profile)
	}
	return plan, nil
}
