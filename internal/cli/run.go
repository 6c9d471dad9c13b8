package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"testops/testplan-engine/internal/lifecycle"
	"testops/testplan-engine/internal/notebook"
	"testops/testplan-engine/internal/parser"
	"testops/testplan-engine/internal/property"
	"testops/testplan-engine/internal/request"
	"testops/testplan-engine/internal/scheduler"
	"testops/testplan-engine/internal/sysmgmt"
	"testops/testplan-engine/pkg/types"
)

var (
	runPlanID      string
	runSystemID    string
	runProperties  []string
	runPropsFile   string
	runTransitions string
	runDryRun      bool
	runEngineURL   string
	runNotebookURL string
	runAPIKey      string
	runPollEvery   time.Duration
)

// runCmd is the run subcommand.
var runCmd = &cobra.Command{
	Use:   "run <template.yaml>",
	Short: "Instantiate a test plan and fire its transitions",
	Long: `Instantiate a test plan from a template file and fire a sequence of
lifecycle transitions, waiting for each transition's action to complete
before firing the next. An interrupt aborts the plan.`,
	Example: `  # Fire start and end against the configured engines
  testplan-engine run plan.yaml --engine-url http://localhost:9090

  # Override the target system and a property
  testplan-engine run plan.yaml --system rack-7 --set voltage=24

  # Show the resolved execution requests without dispatching anything
  testplan-engine run plan.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runPlanID, "id", "", "test plan instance id (generated when empty)")
	runCmd.Flags().StringVarP(&runSystemID, "system", "s", "", "target system id (overrides the template)")
	runCmd.Flags().StringArrayVar(&runProperties, "set", nil, "property override, key=value (repeatable)")
	runCmd.Flags().StringVar(&runPropsFile, "properties-file", "", "YAML file with property overrides")
	runCmd.Flags().StringVarP(&runTransitions, "transitions", "t", "start,end", "comma separated transition sequence")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print resolved execution requests without dispatching")
	runCmd.Flags().StringVar(&runEngineURL, "engine-url", "http://localhost:9090", "systems management service URL")
	runCmd.Flags().StringVar(&runNotebookURL, "notebook-url", "", "notebook execution service URL (defaults to engine-url)")
	runCmd.Flags().StringVar(&runAPIKey, "api-key", "", "API key for the execution services")
	runCmd.Flags().DurationVar(&runPollEvery, "poll-interval", 2*time.Second, "job state poll interval")
}

func runPlan(cmd *cobra.Command, args []string) error {
	tmpl, err := parser.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	props, err := loadPropertiesFile(runPropsFile)
	if err != nil {
		return err
	}
	flagProps, err := parsePropertyFlags(runProperties)
	if err != nil {
		return err
	}
	for k, v := range flagProps {
		// --set wins over the properties file.
		if props == nil {
			props = make(map[string]types.Value, len(flagProps))
		}
		props[k] = v
	}

	plan := parser.Instantiate(tmpl, runPlanID, runSystemID, props)

	transitions, err := parseTransitions(runTransitions)
	if err != nil {
		return err
	}

	if runDryRun {
		return printResolvedRequests(plan, transitions)
	}

	if runNotebookURL == "" {
		runNotebookURL = runEngineURL
	}
	sched := scheduler.New(
		sysmgmt.NewClient(sysmgmt.Config{BaseURL: runEngineURL, APIKey: runAPIKey, PollInterval: runPollEvery}),
		notebook.NewClient(notebook.Config{BaseURL: runNotebookURL, APIKey: runAPIKey, PollInterval: runPollEvery}),
		nil,
	)

	controller, err := lifecycle.NewController(plan, sched)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("test plan %s (%s)\n", plan.ID, plan.Name)

	for _, t := range transitions {
		rec, err := controller.Fire(ctx, t)
		if rec != nil {
			printRecord(rec)
		}
		if err != nil {
			if ctx.Err() != nil {
				// Interrupted: run the abort transition before leaving.
				if rec, aerr := controller.Fire(context.Background(), lifecycle.TransitionAbort); aerr == nil {
					printRecord(rec)
				}
				return fmt.Errorf("interrupted during %s", t)
			}
			return err
		}
	}
	return nil
}

// loadPropertiesFile reads a YAML map of property overrides.
func loadPropertiesFile(path string) (map[string]types.Value, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read properties file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid properties file %s: %w", path, err)
	}

	props := make(map[string]types.Value, len(raw))
	for k, v := range raw {
		value, err := types.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("invalid property %q in %s: %w", k, path, err)
		}
		props[k] = value
	}
	return props, nil
}

// parsePropertyFlags turns repeated key=value flags into typed property
// overrides. Values are YAML scalars, so numbers and booleans keep their
// types.
func parsePropertyFlags(flags []string) (map[string]types.Value, error) {
	if len(flags) == 0 {
		return nil, nil
	}

	props := make(map[string]types.Value, len(flags))
	for _, f := range flags {
		key, raw, found := strings.Cut(f, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid property override %q, expected key=value", f)
		}

		var decoded any
		if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("invalid property value %q: %w", raw, err)
		}
		value, err := types.FromAny(decoded)
		if err != nil {
			return nil, fmt.Errorf("invalid property value %q: %w", raw, err)
		}
		props[key] = value
	}
	return props, nil
}

func parseTransitions(list string) ([]lifecycle.Transition, error) {
	var out []lifecycle.Transition
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t := lifecycle.Transition(name)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown transition %q", name)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no transitions given")
	}
	return out, nil
}

// printResolvedRequests resolves each transition's action against the plan's
// properties and prints the requests that would be dispatched.
func printResolvedRequests(plan *types.TestPlanInstance, transitions []lifecycle.Transition) error {
	store := property.NewInstanceStore(plan)

	for _, t := range transitions {
		action := plan.ExecutionActions[string(t)]
		if action == nil {
			fmt.Printf("%s: no action\n", t)
			continue
		}

		req, err := request.Build(action, plan.TargetSystem(action), store)
		if err != nil {
			return fmt.Errorf("transition %s: %w", t, err)
		}

		fmt.Printf("%s:\n%s\n", t, oj.JSON(requestToAny(req), &ojg.Options{Sort: true, Indent: 2}))
	}
	return nil
}

// requestToAny builds a printable shape of an execution request.
func requestToAny(req *request.ExecutionRequest) any {
	out := map[string]any{
		"type":     string(req.Type),
		"systemId": req.SystemID,
	}

	if len(req.Jobs) > 0 {
		jobs := make([]any, len(req.Jobs))
		for i, job := range req.Jobs {
			calls := make([]any, len(job.Calls))
			for j, call := range job.Calls {
				entry := map[string]any{"function": call.Function}
				args := make([]any, len(call.Positional))
				for k, v := range call.Positional {
					args[k] = v.ToAny()
				}
				entry["args"] = args
				if call.Keywords != nil {
					kwargs := make(map[string]any, len(call.Keywords))
					for k, v := range call.Keywords {
						kwargs[k] = v.ToAny()
					}
					entry["kwargs"] = kwargs
				}
				calls[j] = entry
			}
			jobs[i] = map[string]any{"id": job.ID, "calls": calls}
		}
		out["jobs"] = jobs
	}

	if req.Notebook != nil {
		args := make([]any, len(req.Notebook.Arguments))
		for i, v := range req.Notebook.Arguments {
			args[i] = v.ToAny()
		}
		out["notebook"] = map[string]any{
			"notebookId": req.Notebook.NotebookID,
			"arguments":  args,
		}
	}
	return out
}

func printRecord(rec *lifecycle.Record) {
	status := "ok"
	if rec.Error != "" {
		status = rec.Error
	}
	fmt.Printf("%-8s phase=%s %s (%s)\n", rec.Transition, rec.Phase, status, rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	for _, job := range rec.JobResults {
		fmt.Printf("  job %s: %s (%s)\n", job.JobID, job.Status, job.Duration.Round(time.Millisecond))
	}
}
