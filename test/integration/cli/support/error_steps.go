package support

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

func (testCtx *TestContext) nothingShouldBeWrittenToStdout() error {
	if strings.TrimSpace(testCtx.LastStdout) != "" {
		return fmt.Errorf("expected empty stdout, got: %s", testCtx.LastStdout)
	}
	return nil
}

// theErrorShouldReportFailures checks the "N of M input(s) failed" summary.
func (testCtx *TestContext) theErrorShouldReportFailures(failed, total int) error {
	return testCtx.theErrorShouldMention(fmt.Sprintf("%d of %d input(s) failed to decode", failed, total))
}

// theLogsShouldBeStructured checks that every stderr line other than the
// final error summary is a JSON log record.
func (testCtx *TestContext) theLogsShouldBeStructured() error {
	for _, line := range strings.Split(strings.TrimSpace(testCtx.LastStderr), "\n") {
		if line == "" || strings.HasPrefix(line, "Error:") {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("stderr line is not a JSON log record: %q", line)
		}
		if _, ok := rec["level"]; !ok {
			return fmt.Errorf("log record has no level: %q", line)
		}
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldSuggestAvailableCommands() error {
	return testCtx.theErrorShouldMention("unknown command")
}

// RegisterErrorSteps registers error reporting steps.
func (testCtx *TestContext) RegisterErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^nothing should be written to stdout$`, testCtx.nothingShouldBeWrittenToStdout)
	sc.Step(`^the error should report (\d+) of (\d+) inputs failed$`, testCtx.theErrorShouldReportFailures)
	sc.Step(`^the logs should be structured JSON$`, testCtx.theLogsShouldBeStructured)
	sc.Step(`^the error should suggest available commands$`, testCtx.theErrorShouldSuggestAvailableCommands)
}
