package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/evidence"
	"verigate/internal/evidence/assembler"
	"verigate/internal/level"
	"verigate/internal/scoring"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
)

func TestCombine(t *testing.T) {
	score := scoring.RiskScore{
		Components: scoring.ComponentScores{Document: 25, Biometric: 21.25, Behavioral: 25, External: 25},
		Overall:    96.25,
		Level:      scoring.RiskLevelLow,
		Flags:      []string{"a"},
	}
	lvl := level.Standard
	ref := id.NewEvidenceRef()

	t.Run("pairs score and level", func(t *testing.T) {
		report, err := Combine(&score, &lvl, ref)
		require.NoError(t, err)
		assert.Equal(t, ref, report.EvidenceRef)
		assert.Equal(t, level.Standard, report.Level)
		assert.Equal(t, 96.25, report.Risk.Overall)
		assert.Equal(t, []string{}, report.Risk.Recommendations)

		score.Flags[0] = "mutated"
		assert.Equal(t, "a", report.Risk.Flags[0], "report must not alias the score's slices")
		score.Flags[0] = "a"
	})

	invalidLevel := level.VerificationLevel(42)
	tests := []struct {
		name  string
		score *scoring.RiskScore
		lvl   *level.VerificationLevel
		ref   id.EvidenceRef
	}{
		{"missing score", nil, &lvl, ref},
		{"missing level", &score, nil, ref},
		{"unknown level", &score, &invalidLevel, ref},
		{"empty evidence reference", &score, &lvl, id.EvidenceRef{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Combine(tt.score, tt.lvl, tt.ref)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestDecisionReport_Clone(t *testing.T) {
	prev := id.NewReportID()
	r := &DecisionReport{
		ID:           id.NewReportID(),
		Risk:         scoring.RiskScore{Flags: []string{"x"}, Recommendations: []string{"y"}},
		SupersedesID: &prev,
	}
	c := r.Clone()
	c.Risk.Flags[0] = "changed"
	*c.SupersedesID = id.NewReportID()

	assert.Equal(t, "x", r.Risk.Flags[0])
	assert.Equal(t, prev, *r.SupersedesID)
	assert.Nil(t, (*DecisionReport)(nil).Clone())
}

func TestDecisionReport_CertificateEligible(t *testing.T) {
	r := &DecisionReport{Level: level.Enhanced}
	assert.True(t, r.CertificateEligible(level.Standard))
	assert.True(t, r.CertificateEligible(level.Enhanced))
	assert.False(t, r.CertificateEligible(level.Premium))
}

func TestEvaluateRequest_Validate(t *testing.T) {
	subject := id.SubjectID(id.NewReportID())
	ev := &evidence.VerificationEvidence{}

	assert.True(t, dErrors.HasCode(EvaluateRequest{Evidence: ev}.Validate(), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(EvaluateRequest{SubjectID: subject}.Validate(), dErrors.CodeValidation))
	assert.NoError(t, EvaluateRequest{SubjectID: subject, Evidence: ev}.Validate())
}

func TestDeriveRequirements(t *testing.T) {
	ev := evidence.VerificationEvidence{
		Document:   evidence.DocumentInfo{Type: evidence.DocumentTypePassport, Number: "P1"},
		Biometrics: evidence.BiometricSignals{FaceMatchScore: evidence.Score(80)},
	}

	t.Run("inline evidence", func(t *testing.T) {
		r := DeriveRequirements(ev, nil, true, false)
		assert.Equal(t, level.Requirements{DocumentVerification: true, BiometricMatch: true, AddressVerification: true}, r)
		assert.Equal(t, level.Enhanced, level.Classify(r))
	})

	t.Run("inline evidence without biometrics", func(t *testing.T) {
		noBio := ev
		noBio.Biometrics = evidence.BiometricSignals{}
		assert.Equal(t, level.Basic, level.Classify(DeriveRequirements(noBio, nil, false, false)))
	})

	t.Run("gathered evidence follows what providers returned", func(t *testing.T) {
		performed := &assembler.Performed{Document: true, Biometric: false}
		r := DeriveRequirements(ev, performed, true, true)
		assert.False(t, r.BiometricMatch)
		assert.Equal(t, level.Basic, level.Classify(r))

		performed.Biometric = true
		assert.Equal(t, level.Premium, level.Classify(DeriveRequirements(ev, performed, true, true)))
	})

	t.Run("gathered evidence trusts the assembler report alone", func(t *testing.T) {
		noBio := ev
		noBio.Biometrics = evidence.BiometricSignals{}
		r := DeriveRequirements(noBio, &assembler.Performed{Document: true, Biometric: true}, false, false)
		assert.True(t, r.BiometricMatch)
		assert.Equal(t, level.Standard, level.Classify(r))
	})
}
