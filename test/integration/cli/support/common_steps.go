package support

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrscan/cmd/qrscan/cmd"
)

// iRunCommand runs the qrscan command tree in-process from the scenario
// working directory. A leading "qrscan" is optional.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command

	args, err := splitArgs(command)
	if err != nil {
		return err
	}
	if len(args) > 0 && args[0] == "qrscan" {
		args = args[1:]
	}

	restore, err := testCtx.enterEnvironment()
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	start := time.Now()
	testCtx.LastExitCode = cmd.Run(ctx, args, &stdout, &stderr)
	testCtx.LastDuration = time.Since(start)
	testCtx.LastStdout = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastOutput = testCtx.LastStdout + testCtx.LastStderr
	return nil
}

// enterEnvironment switches into the working directory with the scenario's
// variables set, and returns a function undoing both.
func (testCtx *TestContext) enterEnvironment() (func(), error) {
	prevDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := os.Chdir(testCtx.WorkingDir); err != nil {
		return nil, fmt.Errorf("failed to enter working directory: %w", err)
	}

	type saved struct {
		value string
		ok    bool
	}
	prev := map[string]saved{}
	for _, name := range []string{"HOME", "XDG_CONFIG_HOME"} {
		if _, set := testCtx.EnvVars[name]; !set {
			testCtx.EnvVars[name] = testCtx.WorkingDir
		}
	}
	for name, value := range testCtx.EnvVars {
		v, ok := os.LookupEnv(name)
		prev[name] = saved{v, ok}
		_ = os.Setenv(name, value)
	}

	return func() {
		for name, s := range prev {
			if s.ok {
				_ = os.Setenv(name, s.value)
			} else {
				_ = os.Unsetenv(name)
			}
		}
		_ = os.Chdir(prevDir)
	}, nil
}

// splitArgs splits a command line on spaces, keeping single or double
// quoted words together.
func splitArgs(command string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inWord  bool
	)
	for _, r := range command {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", command)
	}
	if inWord {
		args = append(args, current.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %s", testCtx.LastExitCode, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded but was expected to fail: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theExitCodeShouldBe(code int) error {
	if testCtx.LastExitCode != code {
		return fmt.Errorf("expected exit code %d, got %d: %s", code, testCtx.LastExitCode, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastStdout, expectedText) {
		return fmt.Errorf("output does not contain %q: %s", expectedText, testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastStdout, text) {
		return fmt.Errorf("output unexpectedly contains %q: %s", text, testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var v any
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\n%s", err, testCtx.LastStdout)
	}
	return nil
}

// theJSONShouldContain checks that a dotted field path exists in the JSON
// output. Array elements are addressed by the first element.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	var data any
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &data); err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}
	if _, err := lookupField(data, field); err != nil {
		return err
	}
	return nil
}

func lookupField(data any, field string) (any, error) {
	current := data
	for _, part := range strings.Split(field, ".") {
		if arr, ok := current.([]any); ok {
			if len(arr) == 0 {
				return nil, fmt.Errorf("field %q: empty array", field)
			}
			current = arr[0]
		}
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		if current, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %q not found", field)
		}
	}
	return current, nil
}

func (testCtx *TestContext) theOutputShouldBeValidCSV() error {
	records, err := csv.NewReader(strings.NewReader(testCtx.LastStdout)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w", err)
	}
	if len(records) < 2 {
		return fmt.Errorf("CSV has no data rows: %s", testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if !strings.Contains(strings.ToLower(testCtx.LastStderr), strings.ToLower(errorText)) {
		return fmt.Errorf("error output does not mention %q: %s", errorText, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(filename string) error {
	if _, err := os.Stat(testCtx.path(filename)); err != nil {
		return fmt.Errorf("file %s does not exist: %w", filename, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(filename, expectedContent string) error {
	data, err := os.ReadFile(testCtx.path(filename))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if !strings.Contains(string(data), expectedContent) {
		return fmt.Errorf("file %s does not contain %q", filename, expectedContent)
	}
	return nil
}

func (testCtx *TestContext) aConfigFileContaining(filename string, content *godog.DocString) error {
	path := testCtx.path(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content.Content), 0o600)
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, value)
	return nil
}

func (testCtx *TestContext) theHelpShouldListSubcommands() error {
	for _, sub := range []string{"image", "batch", "pdf", "serve", "config", "version"} {
		if !strings.Contains(testCtx.LastStdout, sub) {
			return fmt.Errorf("help does not list %q", sub)
		}
	}
	return nil
}

// RegisterCommonSteps registers command execution and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^I run '([^']*)'$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the exit code should be (\d+)$`, testCtx.theExitCodeShouldBe)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should be valid CSV$`, testCtx.theOutputShouldBeValidCSV)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the help should list all subcommands$`, testCtx.theHelpShouldListSubcommands)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^a config file "([^"]*)" containing:$`, testCtx.aConfigFileContaining)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
}
