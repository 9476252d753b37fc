package decision

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	Save(key, value string)
	Saved(key string) (string, bool)
}

// RegisterSteps registers scoring, classification and decision steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &decisionSteps{tc: tc}
	ctx.Before(func(c context.Context, _ *godog.Scenario) (context.Context, error) {
		steps.evidence = nil
		steps.subjectID = ""
		return c, nil
	})

	// Evidence setup
	ctx.Step(`^complete verification evidence$`, steps.completeEvidence)
	ctx.Step(`^the document expired on "([^"]*)"$`, steps.documentExpiredOn)
	ctx.Step(`^no biometric signals were captured$`, steps.noBiometrics)
	ctx.Step(`^a face match score of (\d+)$`, steps.faceMatchScore)
	ctx.Step(`^no external sources were verified$`, steps.noExternal)
	ctx.Step(`^a new subject$`, steps.newSubject)

	// Actions
	ctx.Step(`^I score the evidence$`, steps.scoreEvidence)
	ctx.Step(`^I submit a decision for the subject$`, steps.submitDecision)
	ctx.Step(`^I classify requirements "([^"]*)"$`, steps.classifyRequirements)
	ctx.Step(`^I remember the report$`, steps.rememberReport)
	ctx.Step(`^I fetch the remembered report$`, steps.fetchRememberedReport)
	ctx.Step(`^I fetch a report that does not exist$`, steps.fetchUnknownReport)
	ctx.Step(`^I list the subject's decision history$`, steps.listHistory)
	ctx.Step(`^I verify the returned attestation$`, steps.verifyAttestation)

	// Assertions
	ctx.Step(`^the overall score should be ([\d.]+)$`, steps.overallScoreShouldBe)
	ctx.Step(`^the risk level should be "([^"]*)"$`, steps.riskLevelShouldBe)
	ctx.Step(`^the flags should include "([^"]*)"$`, steps.flagsShouldInclude)
	ctx.Step(`^there should be no flags$`, steps.noFlags)
	ctx.Step(`^the new report should supersede the remembered report$`, steps.shouldSupersede)
	ctx.Step(`^the history should contain (\d+) reports$`, steps.historyShouldContain)
}

type decisionSteps struct {
	tc        TestContext
	evidence  map[string]any
	subjectID string
}

func (s *decisionSteps) completeEvidence(context.Context) error {
	s.evidence = map[string]any{
		"personal_info": map[string]any{"full_name": "Alice Johnson", "date_of_birth": "1990-05-15"},
		"document_info": map[string]any{
			"document_type":   "id_card",
			"document_number": "X1234567",
			"issue_date":      "2020-01-01",
			"expiry_date":     "2035-01-01",
		},
		"biometric_signals":    map[string]any{"face_match_score": 85},
		"behavioral_telemetry": map[string]any{"completion_time_seconds": 120, "number_of_attempts": 1},
		"external_verification": map[string]any{
			"social_media_verified": true,
			"bank_account_verified": true,
			"phone_number_verified": true,
			"email_verified":        true,
		},
	}
	return nil
}

func (s *decisionSteps) documentExpiredOn(_ context.Context, date string) error {
	s.evidence["document_info"].(map[string]any)["expiry_date"] = date
	return nil
}

func (s *decisionSteps) noBiometrics(context.Context) error {
	delete(s.evidence, "biometric_signals")
	return nil
}

func (s *decisionSteps) faceMatchScore(_ context.Context, score int) error {
	s.evidence["biometric_signals"] = map[string]any{"face_match_score": score}
	return nil
}

func (s *decisionSteps) noExternal(context.Context) error {
	s.evidence["external_verification"] = map[string]any{}
	return nil
}

// newSubject isolates a scenario from history left by earlier runs.
func (s *decisionSteps) newSubject(context.Context) error {
	s.subjectID = uuid.NewString()
	return nil
}

func (s *decisionSteps) scoreEvidence(context.Context) error {
	return s.tc.POST("/v1/scores", s.evidence)
}

func (s *decisionSteps) submitDecision(context.Context) error {
	return s.tc.POST("/v1/decisions", map[string]any{"subject_id": s.subjectID, "evidence": s.evidence})
}

func (s *decisionSteps) classifyRequirements(_ context.Context, list string) error {
	body := map[string]bool{}
	for _, name := range splitCSV(list) {
		body[name] = true
	}
	return s.tc.POST("/v1/levels", body)
}

func (s *decisionSteps) rememberReport(context.Context) error {
	id, err := s.stringField("report.id")
	if err != nil {
		return err
	}
	s.tc.Save("report_id", id)
	if token, err := s.stringField("attestation"); err == nil {
		s.tc.Save("attestation", token)
	}
	return nil
}

func (s *decisionSteps) fetchRememberedReport(context.Context) error {
	id, ok := s.tc.Saved("report_id")
	if !ok {
		return fmt.Errorf("no report remembered")
	}
	return s.tc.GET("/v1/decisions/"+id, nil)
}

func (s *decisionSteps) fetchUnknownReport(context.Context) error {
	return s.tc.GET("/v1/decisions/"+uuid.NewString(), nil)
}

func (s *decisionSteps) listHistory(context.Context) error {
	return s.tc.GET("/v1/subjects/"+s.subjectID+"/decisions", nil)
}

func (s *decisionSteps) verifyAttestation(context.Context) error {
	token, err := s.stringField("attestation")
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/attestations/verify", map[string]string{"token": token})
}

func (s *decisionSteps) overallScoreShouldBe(_ context.Context, want string) error {
	expected, err := strconv.ParseFloat(want, 64)
	if err != nil {
		return err
	}
	v, err := s.scoreField("overall_score")
	if err != nil {
		return err
	}
	got, ok := v.(float64)
	if !ok {
		return fmt.Errorf("overall_score is %T", v)
	}
	if math.Abs(got-expected) > 1e-9 {
		return fmt.Errorf("expected overall score %v, got %v", expected, got)
	}
	return nil
}

func (s *decisionSteps) riskLevelShouldBe(_ context.Context, want string) error {
	v, err := s.scoreField("risk_level")
	if err != nil {
		return err
	}
	if v != want {
		return fmt.Errorf("expected risk level %q, got %v", want, v)
	}
	return nil
}

func (s *decisionSteps) flagsShouldInclude(_ context.Context, flag string) error {
	flags, err := s.flags()
	if err != nil {
		return err
	}
	if !slices.Contains(flags, flag) {
		return fmt.Errorf("flag %q not in %v", flag, flags)
	}
	return nil
}

func (s *decisionSteps) noFlags(context.Context) error {
	flags, err := s.flags()
	if err != nil {
		return err
	}
	if len(flags) > 0 {
		return fmt.Errorf("expected no flags, got %v", flags)
	}
	return nil
}

func (s *decisionSteps) shouldSupersede(context.Context) error {
	prev, ok := s.tc.Saved("report_id")
	if !ok {
		return fmt.Errorf("no report remembered")
	}
	got, err := s.stringField("report.supersedes_id")
	if err != nil {
		return err
	}
	if got != prev {
		return fmt.Errorf("expected supersedes_id %q, got %q", prev, got)
	}
	return nil
}

func (s *decisionSteps) historyShouldContain(_ context.Context, n int) error {
	v, err := s.tc.GetResponseField("reports")
	if err != nil {
		return err
	}
	reports, ok := v.([]any)
	if !ok {
		return fmt.Errorf("reports is %T", v)
	}
	if len(reports) != n {
		return fmt.Errorf("expected %d reports, got %d", n, len(reports))
	}
	return nil
}

// scoreField reads a risk score field from either a bare score response or
// a decision response.
func (s *decisionSteps) scoreField(name string) (any, error) {
	if v, err := s.tc.GetResponseField(name); err == nil {
		return v, nil
	}
	return s.tc.GetResponseField("report.risk_score." + name)
}

func (s *decisionSteps) flags() ([]string, error) {
	v, err := s.scoreField("flags")
	if err != nil {
		return nil, err
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("flags is %T", v)
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		out = append(out, fmt.Sprint(f))
	}
	return out, nil
}

func (s *decisionSteps) stringField(name string) (string, error) {
	v, err := s.tc.GetResponseField(name)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q is %T", name, v)
	}
	return str, nil
}

func splitCSV(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
