//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/cucumber/godog"
)

var signaturePattern = regexp.MustCompile(`^0x[0-9a-fA-F]{130}$`)

// RegisterSteps registers all step definitions.
func RegisterSteps(sc *godog.ScenarioContext, tc *TestContext) {
	sc.Step(`^the attestor is running$`, tc.attestorIsRunning)

	sc.Step(`^I request an attestation for wallet "([^"]*)" token "([^"]*)" spender "([^"]*)"$`, tc.requestAttestation)
	sc.Step(`^I POST to "([^"]*)" with body:$`, tc.postWithBody)
	sc.Step(`^I GET "([^"]*)"$`, tc.getPath)
	sc.Step(`^I GET "([^"]*)" with the admin token$`, tc.getWithAdminToken)
	sc.Step(`^I POST to "([^"]*)" with the admin token$`, tc.postWithAdminToken)

	sc.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
	sc.Step(`^the response should have field "([^"]*)"$`, tc.responseShouldHaveField)
	sc.Step(`^the response should carry a 65-byte signature$`, tc.responseShouldCarrySignature)
}

func (tc *TestContext) attestorIsRunning(ctx context.Context) error {
	if err := tc.GET(ctx, "/health", nil); err != nil {
		return err
	}
	if tc.LastResponse.StatusCode != http.StatusOK {
		return fmt.Errorf("attestor not healthy: %d", tc.LastResponse.StatusCode)
	}
	issuer, err := tc.ResponseField("issuer")
	if err != nil {
		return err
	}
	tc.Issuer = fmt.Sprint(issuer)
	return nil
}

func (tc *TestContext) requestAttestation(ctx context.Context, wallet, token, spender string) error {
	body, err := json.Marshal(map[string]string{
		"wallet":  wallet,
		"token":   token,
		"spender": spender,
	})
	if err != nil {
		return err
	}
	return tc.POST(ctx, "/attest", body, nil)
}

func (tc *TestContext) postWithBody(ctx context.Context, path string, body *godog.DocString) error {
	return tc.POST(ctx, path, []byte(body.Content), nil)
}

func (tc *TestContext) getPath(ctx context.Context, path string) error {
	return tc.GET(ctx, path, nil)
}

func (tc *TestContext) getWithAdminToken(ctx context.Context, path string) error {
	return tc.GET(ctx, path, map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) postWithAdminToken(ctx context.Context, path string) error {
	return tc.POST(ctx, path, []byte(`{}`), map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) responseStatusShouldBe(_ context.Context, expected int) error {
	if tc.LastResponse == nil {
		return fmt.Errorf("no response recorded")
	}
	if tc.LastResponse.StatusCode != expected {
		return fmt.Errorf("expected status %d but got %d: %s", expected, tc.LastResponse.StatusCode, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(_ context.Context, field, expected string) error {
	actual, err := tc.ResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(actual) != expected {
		return fmt.Errorf("field %s: expected %s but got %v", field, expected, actual)
	}
	return nil
}

func (tc *TestContext) responseShouldHaveField(_ context.Context, field string) error {
	_, err := tc.ResponseField(field)
	return err
}

func (tc *TestContext) responseShouldCarrySignature(_ context.Context) error {
	sig, err := tc.ResponseField("signature")
	if err != nil {
		return err
	}
	if !signaturePattern.MatchString(fmt.Sprint(sig)) {
		return fmt.Errorf("signature %v is not 65 hex bytes", sig)
	}
	issuer, err := tc.ResponseField("issuer")
	if err != nil {
		return err
	}
	if tc.Issuer != "" && fmt.Sprint(issuer) != tc.Issuer {
		return fmt.Errorf("issuer %v does not match /health issuer %s", issuer, tc.Issuer)
	}
	return nil
}
