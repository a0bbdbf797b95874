// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"proco-workers/internal/common/config"
	"proco-workers/pkg/registry"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	coverageCmd := flag.NewFlagSet("coverage", flag.ExitOnError)

	validatePath := validateCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	updatePath := updateCmd.String("path", "configs/activity-registry.json", "Path to registry file")
	taskType := updateCmd.String("taskType", "", "Task type to update (e.g., notify-landlord)")
	field := updateCmd.String("field", "", "Field to update (status, version, timeout, retries, description)")
	value := updateCmd.String("value", "", "New value for the field")

	checkPath := checkCmd.String("path", "configs/activity-registry.json", "Path to registry file")
	checkTask := checkCmd.String("taskType", "", "Task type whose input schema to check against")
	varsFile := checkCmd.String("vars", "", "JSON file with process variables")

	coveragePath := coverageCmd.String("path", "configs/activity-registry.json", "Path to registry file")
	configFile := coverageCmd.String("config", "configs/config.yaml", "Path to worker config")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validateRegistry(*validatePath)
		if err == nil {
			fmt.Println("Registry validation passed.")
		}

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *taskType == "" || *field == "" || *value == "" {
			fmt.Println("Error: taskType, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err = updateActivity(*updatePath, *taskType, *field, *value)
		if err == nil {
			fmt.Printf("Updated %s: %s = %s\n", *taskType, *field, *value)
		}

	case "check":
		checkCmd.Parse(os.Args[2:])
		if *checkTask == "" || *varsFile == "" {
			fmt.Println("Error: taskType and vars are required for check.")
			checkCmd.Usage()
			os.Exit(1)
		}
		err = checkVariables(*checkPath, *checkTask, *varsFile)

	case "coverage":
		coverageCmd.Parse(os.Args[2:])
		err = checkCoverage(*coveragePath, *configFile)

	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func validateRegistry(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	return reg.Validate()
}

func updateActivity(path, taskType, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	activity, ok := reg.Find(taskType)
	if !ok {
		return fmt.Errorf("no activity for task type %s", taskType)
	}

	switch field {
	case "status":
		activity.ImplementationStatus = value
	case "version":
		activity.Version = value
	case "description":
		activity.Description = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	if err := reg.Validate(); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return reg.Save(path)
}

// checkVariables runs a sample variables document through the same schema
// the worker manager applies to incoming jobs.
func checkVariables(path, taskType, varsFile string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	schema, err := reg.InputValidator(taskType)
	if err != nil {
		return err
	}
	if schema == nil {
		fmt.Printf("%s has no input schema; any variables are accepted.\n", taskType)
		return nil
	}

	data, err := os.ReadFile(varsFile)
	if err != nil {
		return err
	}
	result := schema.ValidateJSON(string(data))
	if !result.Valid {
		for _, e := range result.Errors {
			fmt.Printf("  %s: %s (%s)\n", e.Field, e.Message, e.Code)
		}
		return fmt.Errorf("variables rejected by %s input schema", taskType)
	}
	fmt.Printf("Variables accepted by %s.\n", taskType)
	return nil
}

// checkCoverage reports configured workers with no registry entry and
// registry entries no worker is configured for.
func checkCoverage(path, configFile string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var missing, unused []string
	for taskType := range cfg.Workers {
		if _, ok := reg.Find(taskType); !ok {
			missing = append(missing, taskType)
		}
	}
	for _, a := range reg.Activities {
		if _, ok := cfg.Workers[a.TaskType]; !ok {
			unused = append(unused, a.TaskType)
		}
	}
	sort.Strings(missing)
	sort.Strings(unused)

	for _, t := range unused {
		fmt.Printf("warning: %s is registered but not configured\n", t)
	}
	if len(missing) > 0 {
		return fmt.Errorf("configured workers missing from registry: %v", missing)
	}
	fmt.Printf("All %d configured workers are registered.\n", len(cfg.Workers))
	return nil
}

func help() {
	fmt.Println("Usage: registry-updater <command> [flags]")
	fmt.Println("Commands:")
	fmt.Println("  validate  -path <file>")
	fmt.Println("  update    -taskType <type> -field <field> -value <value>")
	fmt.Println("  check     -taskType <type> -vars <variables.json>")
	fmt.Println("  coverage  -config <config.yaml>")
}
