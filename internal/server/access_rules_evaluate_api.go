package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/meridian-hq/docvault/internal/routing"
	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
	"github.com/meridian-hq/docvault/modules/docfile/services"
	"github.com/meridian-hq/docvault/pkg/classification"
)

const (
	ruleDecisionAllow = "allow"
	ruleDecisionDeny  = "deny"
)

// accessRulesEvaluateAPI is the dry-run surface for policy authors: it runs
// the layered engine against a real file and principal, then evaluates
// caller-supplied CEL rule candidates over the same context. Nothing it
// computes is persisted or enforced.
type accessRulesEvaluateAPI struct {
	files      ports.FileStore
	groups     ports.GroupStore
	principals ports.PrincipalStore
	lattice    classification.Lattice
}

type ruleCandidate struct {
	RuleID          string `json:"rule_id"`
	Priority        int    `json:"priority"`
	EligibilityExpr string `json:"eligibility_expr"`
	DecisionExpr    string `json:"decision_expr"`
	ReasonCode      string `json:"reason_code"`
}

type accessRulesEvaluateRequest struct {
	FileID      string          `json:"file_id"`
	Action      string          `json:"action"`
	PrincipalID string          `json:"principal_id,omitempty"`
	Rules       []ruleCandidate `json:"rules"`
}

type accessRulesEvaluateResponse struct {
	TraceID             string            `json:"trace_id"`
	FileID              string            `json:"file_id"`
	Action              string            `json:"action"`
	PrincipalID         string            `json:"principal_id"`
	EngineDecision      string            `json:"engine_decision"`
	EngineReason        string            `json:"engine_reason,omitempty"`
	Decision            string            `json:"decision"`
	ReasonCode          string            `json:"reason_code"`
	SelectedRuleID      string            `json:"selected_rule_id,omitempty"`
	SelectedRule        *ruleCandidate    `json:"selected_rule,omitempty"`
	BriefExplain        string            `json:"brief_explain"`
	Context             map[string]string `json:"context"`
	CandidatesEvaluated int               `json:"candidates_evaluated"`
	EligibilityMatched  int               `json:"eligibility_matched"`
}

var newRulesCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
}

var newRulesCELProgram = func(env *cel.Env, ast *cel.Ast) (cel.Program, error) {
	return env.Program(ast)
}

var ruleEligibilityProgramCache sync.Map
var ruleDecisionProgramCache sync.Map

func (api accessRulesEvaluateAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeRulesError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req accessRulesEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRulesError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	req.FileID = strings.TrimSpace(req.FileID)
	req.PrincipalID = strings.TrimSpace(req.PrincipalID)
	req.Action = strings.ToLower(strings.TrimSpace(req.Action))
	if req.FileID == "" || req.Action == "" {
		writeRulesError(w, r, http.StatusBadRequest, "invalid_request", "file_id/action required")
		return
	}
	action, ok := types.ParseAction(req.Action)
	if !ok {
		writeRulesError(w, r, http.StatusBadRequest, "invalid_action", "invalid action")
		return
	}
	if len(req.Rules) == 0 {
		writeRulesError(w, r, http.StatusBadRequest, "invalid_request", "at least one rule candidate required")
		return
	}
	for i := range req.Rules {
		req.Rules[i].RuleID = strings.TrimSpace(req.Rules[i].RuleID)
		if req.Rules[i].RuleID == "" {
			req.Rules[i].RuleID = fmt.Sprintf("rule-%d", i+1)
		}
	}

	principal, ok := currentPrincipal(r.Context())
	if !ok {
		writeRulesError(w, r, http.StatusInternalServerError, "principal_missing", "principal missing")
		return
	}
	if req.PrincipalID != "" && req.PrincipalID != principal.ID {
		rec, found, err := api.principals.GetPrincipal(r.Context(), req.PrincipalID)
		if err != nil {
			writeRulesError(w, r, http.StatusInternalServerError, "principal_lookup_error", "principal lookup error")
			return
		}
		if !found {
			writeRulesError(w, r, http.StatusNotFound, "principal_not_found", "principal not found")
			return
		}
		clearance, known := api.lattice.LevelByName(rec.Clearance)
		if !known {
			writeRulesError(w, r, http.StatusInternalServerError, "principal_clearance_error", "principal clearance error")
			return
		}
		principal = types.Principal{
			ID:        rec.ID,
			RoleSlug:  strings.ToLower(strings.TrimSpace(rec.RoleSlug)),
			Clearance: clearance,
			Groups:    rec.Groups,
		}
	}

	file, doc, found, err := api.files.GetFile(r.Context(), req.FileID)
	if err != nil {
		writeRulesError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	if !found {
		writeRulesError(w, r, http.StatusNotFound, "file_not_found", "file not found")
		return
	}

	snapshot, err := services.LoadGroupSnapshot(r.Context(), api.groups)
	if err != nil {
		writeRulesError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	resolver := services.NewProfileResolver(api.lattice, snapshot)
	profile, err := resolver.ResolveProfile(doc, file)
	if err != nil {
		writeRulesError(w, r, http.StatusInternalServerError, "profile_error", "profile error")
		return
	}
	engine := services.NewDecisionEngine(api.lattice, snapshot)
	engineDecision := engine.Decide(principal, profile, action)

	traceID := traceIDFromRulesRequest(r)
	ctxMap := buildRulesContextMap(principal, file, profile, action, engineDecision, traceID)

	decision, reasonCode, selected, matched, evalErr := evaluateRuleCandidates(ctxMap, req.Rules)
	if evalErr != nil {
		writeRulesError(w, r, http.StatusUnprocessableEntity, "rule_expression_error", evalErr.Error())
		return
	}

	response := accessRulesEvaluateResponse{
		TraceID:             traceID,
		FileID:              file.ID,
		Action:              string(action),
		PrincipalID:         principal.ID,
		EngineDecision:      decisionWord(engineDecision.Allowed),
		EngineReason:        string(engineDecision.Reason),
		Decision:            decision,
		ReasonCode:          reasonCode,
		BriefExplain:        ruleBriefExplain(selected, matched),
		Context:             ctxMap,
		CandidatesEvaluated: len(req.Rules),
		EligibilityMatched:  matched,
	}
	if selected != nil {
		response.SelectedRuleID = selected.RuleID
		response.SelectedRule = selected
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(response)
}

func writeRulesError(w http.ResponseWriter, r *http.Request, status int, code string, msg string) {
	routing.WriteError(w, r, routing.RouteClassInternalAPI, status, code, msg)
}

func buildRulesContextMap(p types.Principal, file types.DocumentFile, profile types.SecurityProfile, action types.Action, engineDecision types.Decision, traceID string) map[string]string {
	releasable := make([]string, 0, len(profile.ReleasableTo))
	for _, g := range profile.ReleasableTo {
		releasable = append(releasable, g.ID)
	}
	eyesOnly := make([]string, 0, len(profile.EyesOnly))
	for _, g := range profile.EyesOnly {
		eyesOnly = append(eyesOnly, g.ID)
	}
	return map[string]string{
		"principal_id":        p.ID,
		"principal_role":      p.RoleSlug,
		"principal_groups":    strings.Join(p.Groups, ","),
		"clearance":           p.Clearance.Name,
		"clearance_rank":      strconv.Itoa(p.Clearance.Rank),
		"file_id":             file.ID,
		"document_id":         file.DocumentID,
		"classification":      profile.Classification.Name,
		"classification_rank": strconv.Itoa(profile.Classification.Rank),
		"releasable_to":       strings.Join(releasable, ","),
		"eyes_only":           strings.Join(eyesOnly, ","),
		"action":              string(action),
		"engine_decision":     decisionWord(engineDecision.Allowed),
		"engine_reason":       string(engineDecision.Reason),
		"trace_id":            traceID,
	}
}

func decisionWord(allowed bool) string {
	if allowed {
		return ruleDecisionAllow
	}
	return ruleDecisionDeny
}

func evaluateRuleCandidates(ctxMap map[string]string, candidates []ruleCandidate) (string, string, *ruleCandidate, int, error) {
	matched := 0
	var selected *ruleCandidate
	for i := range candidates {
		candidate := candidates[i]
		eligible, err := evalRuleEligibilityExpr(candidate.EligibilityExpr, ctxMap)
		if err != nil {
			return "", "", nil, matched, err
		}
		if !eligible {
			continue
		}
		matched++
		if selected == nil || candidate.Priority > selected.Priority ||
			(candidate.Priority == selected.Priority && candidate.RuleID < selected.RuleID) {
			copyCandidate := candidate
			selected = &copyCandidate
		}
	}
	if selected == nil {
		return ruleDecisionDeny, "NO_ELIGIBLE_RULE", nil, matched, nil
	}
	decision, err := evalRuleDecisionExpr(selected.DecisionExpr, ctxMap)
	if err != nil {
		return "", "", nil, matched, err
	}
	switch decision {
	case ruleDecisionAllow, ruleDecisionDeny:
	default:
		decision = ruleDecisionDeny
	}
	reasonCode := strings.TrimSpace(selected.ReasonCode)
	if reasonCode == "" {
		if decision == ruleDecisionDeny {
			reasonCode = "RULE_DENIED"
		} else {
			reasonCode = "RULE_ALLOWED"
		}
	}
	return decision, reasonCode, selected, matched, nil
}

func evalRuleEligibilityExpr(expr string, ctxMap map[string]string) (bool, error) {
	program, err := loadOrCompileRuleProgram(expr, cel.BoolType, &ruleEligibilityProgramCache)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{"ctx": ctxMap})
	if err != nil {
		return false, err
	}
	v := out.Value().(bool)
	return v, nil
}

func evalRuleDecisionExpr(expr string, ctxMap map[string]string) (string, error) {
	program, err := loadOrCompileRuleProgram(expr, cel.StringType, &ruleDecisionProgramCache)
	if err != nil {
		return "", err
	}
	out, _, err := program.Eval(map[string]any{"ctx": ctxMap})
	if err != nil {
		return "", err
	}
	v := out.Value().(string)
	return strings.ToLower(strings.TrimSpace(v)), nil
}

func loadOrCompileRuleProgram(expr string, outputType *cel.Type, cache *sync.Map) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := cache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newRulesCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != outputType {
		return nil, errors.New("expression output type mismatch")
	}
	program, err := newRulesCELProgram(env, ast)
	if err != nil {
		return nil, err
	}
	cache.Store(expr, program)
	return program, nil
}

func ruleBriefExplain(selected *ruleCandidate, matched int) string {
	if selected == nil {
		return "no eligible rule candidate"
	}
	return fmt.Sprintf("selected %s (priority=%d, matched=%d)", selected.RuleID, selected.Priority, matched)
}

func traceIDFromRulesRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) < 2 {
		return ""
	}
	traceID := strings.TrimSpace(parts[1])
	if len(traceID) != 32 {
		return ""
	}
	return traceID
}
