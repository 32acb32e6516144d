package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
)

const (
	blockedCtrlDisabled = "CTRL_ENABLE=0"
	blockedNotDangerous = "CTRL_ALLOW_DANGEROUS=0"
	cmdRoamingQuery     = `AT+QNWPREFCFG="roam_pref"`
	roamPrefAny         = 255
	roamPrefHomeOnly    = 1
)

var roamPrefRe = regexp.MustCompile(`\+QNWPREFCFG:\s*"roam_pref"\s*,\s*(\d+)`)

// ActionDetail describes what a control action planned and did.
type ActionDetail struct {
	DryRun        bool     `json:"dry_run"`
	Dangerous     bool     `json:"dangerous"`
	Executed      bool     `json:"executed"`
	BlockedReason *string  `json:"blocked_reason"`
	Planned       []string `json:"planned"`
	Errors        []string `json:"errors"`
}

type CtrlResponse struct {
	OK      bool                `json:"ok"`
	TS      int64               `json:"ts"`
	Action  string              `json:"action"`
	Error   *string             `json:"error"`
	Detail  ActionDetail        `json:"detail"`
	Raw     map[string][]string `json:"raw"`
	Roaming *RoamingState       `json:"roaming,omitempty"`
}

type RoamingState struct {
	Enabled bool `json:"enabled"`
}

// executePlan is the single gate through which control actions reach the
// modem. The first matching rule wins: control disabled, empty plan,
// dangerous action without allowance, requested dry run, execute.
func (s *Server) executePlan(ctx context.Context, action string, plan []string, dryRun, dangerous bool) CtrlResponse {
	resp := CtrlResponse{
		OK:     true,
		TS:     nowMillis(),
		Action: action,
		Detail: ActionDetail{
			Dangerous: dangerous,
			Planned:   plan,
			Errors:    []string{},
			DryRun:    true,
		},
	}
	if resp.Detail.Planned == nil {
		resp.Detail.Planned = []string{}
	}

	switch {
	case !s.Options.CtrlEnabled:
		reason := blockedCtrlDisabled
		resp.Detail.BlockedReason = &reason
	case len(plan) == 0:
	case dangerous && !s.Options.AllowDangerous:
		reason := blockedNotDangerous
		resp.Detail.BlockedReason = &reason
	case dryRun:
	default:
		resp.Detail.DryRun = false
		resp.Raw = make(map[string][]string, len(plan))
		for _, cmd := range plan {
			s.Logger.Info("Executing control command", "action", action, "command", cmd)
			lines, err := s.Modem.Execute(ctx, cmd, 0)
			if err != nil {
				resp.Detail.Errors = append(resp.Detail.Errors, fmt.Sprintf("%s: %v", cmd, err))
				resp.Raw[cmd] = []string{"ERROR: " + err.Error()}
				continue
			}
			resp.Raw[cmd] = lines
		}
		resp.Detail.Executed = len(resp.Detail.Errors) == 0
	}
	return resp
}

func decodeRequest(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// runPlan decodes req over its defaults, plans it and runs the plan through
// executePlan.
func (s *Server) runPlan(w http.ResponseWriter, r *http.Request, action string, req planRequest, dangerous bool) {
	if err := decodeRequest(r, req); err != nil {
		s.fail(w, r, err)
		return
	}
	plan, err := req.plan()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.Logger.Info("Control action requested", "action", action, "dry_run", req.dryRun(), "planned", len(plan))
	s.sendJSON(w, s.executePlan(r.Context(), action, plan, req.dryRun(), dangerous), http.StatusOK)
}

func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	s.runPlan(w, r, "reboot", &rebootRequest{Mode: "soft"}, true)
}

func (s *Server) handleBand(w http.ResponseWriter, r *http.Request) {
	s.runPlan(w, r, "band", &bandRequest{RAT: "BOTH"}, true)
}

func (s *Server) handleCellLock(w http.ResponseWriter, r *http.Request) {
	s.runPlan(w, r, "cell_lock", &cellLockRequest{}, true)
}

func (s *Server) handleCA(w http.ResponseWriter, r *http.Request) {
	s.runPlan(w, r, "ca", &caRequest{}, false)
}

func (s *Server) handleGNSSCtrl(w http.ResponseWriter, r *http.Request) {
	s.runPlan(w, r, "gnss", &gnssRequest{}, false)
}

func (s *Server) handleAPN(w http.ResponseWriter, r *http.Request) {
	s.runPlan(w, r, "apn", &apnRequest{CID: 1, PDPType: "IPV4V6", Activate: true}, true)
}

func (s *Server) handleUSBNet(w http.ResponseWriter, r *http.Request) {
	s.runPlan(w, r, "usbnet", &usbnetRequest{}, true)
}

func (s *Server) handleResetProfile(w http.ResponseWriter, r *http.Request) {
	s.runPlan(w, r, "reset_profile", &resetProfileRequest{Profile: "modem_safe"}, true)
}

// queryRoaming reads the roaming preference. Any value but home-only means
// roaming is allowed. ok is false when the modem does not report it.
func (s *Server) queryRoaming(ctx context.Context) (enabled, ok bool, lines []string, err error) {
	lines, err = s.Modem.Execute(ctx, cmdRoamingQuery, 0)
	if err != nil {
		return false, false, nil, err
	}
	for _, line := range lines {
		if m := roamPrefRe.FindStringSubmatch(line); m != nil {
			pref, _ := strconv.Atoi(m[1])
			return pref != roamPrefHomeOnly, true, lines, nil
		}
	}
	return false, false, lines, nil
}

func (s *Server) handleGetRoaming(w http.ResponseWriter, r *http.Request) {
	type RoamingResponse struct {
		OK      bool         `json:"ok"`
		TS      int64        `json:"ts"`
		Error   *string      `json:"error"`
		Roaming RoamingState `json:"roaming"`
		Raw     []string     `json:"raw"`
	}

	enabled, ok, lines, err := s.queryRoaming(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := RoamingResponse{OK: ok, TS: nowMillis(), Roaming: RoamingState{Enabled: enabled}, Raw: lines}
	if !ok {
		msg := `modem did not return roam_pref value (AT+QNWPREFCFG="roam_pref" not supported)`
		resp.Error = &msg
	}
	s.sendJSON(w, resp, http.StatusOK)
}

func (s *Server) handleSetRoaming(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enable *bool `json:"enable"`
		DryRun bool  `json:"dry_run"`
	}
	if err := decodeRequest(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Enable == nil {
		s.fail(w, r, fmt.Errorf("%w: enable is required", ErrInvalidRequest))
		return
	}

	pref := roamPrefHomeOnly
	if *req.Enable {
		pref = roamPrefAny
	}
	plan := []string{fmt.Sprintf(`AT+QNWPREFCFG="roam_pref",%d`, pref)}
	resp := s.executePlan(r.Context(), "roaming", plan, req.DryRun, false)

	// Report the state the modem confirms, falling back to what was set.
	var state RoamingState
	if resp.Detail.Executed {
		state.Enabled = *req.Enable
	}
	if enabled, ok, _, err := s.queryRoaming(r.Context()); err == nil && ok {
		state.Enabled = enabled
	}
	resp.Roaming = &state
	s.sendJSON(w, resp, http.StatusOK)
}
