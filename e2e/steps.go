package e2e

import (
	"github.com/cucumber/godog"

	"verigate/e2e/steps/common"
	"verigate/e2e/steps/decision"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register decisioning steps
	decision.RegisterSteps(ctx, tc)
}
