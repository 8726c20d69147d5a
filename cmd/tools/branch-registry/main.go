// cmd/tools/branch-registry/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	commonhttp "asset-lookup-bot/internal/common/http"
	"asset-lookup-bot/internal/common/logger"
	"asset-lookup-bot/internal/lookup/dataset"
	"asset-lookup-bot/internal/sources/sheet"
	"asset-lookup-bot/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	setCmd := flag.NewFlagSet("set", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, setCmd, validateCmd, checkCmd} {
		fs.StringVar(&registryPath, "path", "configs/branches.json", "Path to registry file")
	}

	nameAdd := addCmd.String("name", "", "Branch name as shown in the menu")
	urlAdd := addCmd.String("url", "", "Sheet URL for the branch dataset")
	indexAdd := addCmd.String("index", "", "Search index for the branch dataset")

	nameSet := setCmd.String("name", "", "Branch to update")
	field := setCmd.String("field", "", "Field to update (url, index, disabled)")
	value := setCmd.String("value", "", "New value for the field")

	assetColumn := checkCmd.String("asset-column", "Наименование ТП", "Asset name column")
	regionColumn := checkCmd.String("region-column", "РЭС", "Region column")
	timeout := checkCmd.Duration("timeout", 15*time.Second, "Per-sheet fetch timeout")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *nameAdd == "" {
			fmt.Println("Error: name is required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		err = addBranch(registry.Branch{Name: *nameAdd, URL: *urlAdd, Index: *indexAdd})
		if err == nil {
			fmt.Printf("Added branch: %s\n", *nameAdd)
		}

	case "set":
		setCmd.Parse(os.Args[2:])
		if *nameSet == "" || *field == "" {
			fmt.Println("Error: name and field are required for set.")
			setCmd.Usage()
			os.Exit(1)
		}
		err = setField(*nameSet, *field, *value)
		if err == nil {
			fmt.Printf("Updated branch %s, field %s to %q\n", *nameSet, *field, *value)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validate()

	case "check":
		checkCmd.Parse(os.Args[2:])
		err = check(dataset.Columns{Asset: *assetColumn, Region: *regionColumn}, *timeout)

	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func addBranch(b registry.Branch) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = &registry.BranchRegistry{Version: "1"}
	}
	if reg.Find(b.Name) != nil {
		return fmt.Errorf("branch %s already exists", b.Name)
	}
	reg.Branches = append(reg.Branches, b)
	if err := reg.Validate(); err != nil {
		return err
	}
	return registry.SaveRegistry(reg, registryPath)
}

func setField(name, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	b := reg.Find(name)
	if b == nil {
		return fmt.Errorf("branch %s not found", name)
	}
	switch field {
	case "url":
		b.URL = value
	case "index":
		b.Index = value
	case "disabled":
		b.Disabled = value == "true"
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	return registry.SaveRegistry(reg, registryPath)
}

func validate() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	fmt.Printf("Registry validation passed. Found %d branches, %d enabled.\n", len(reg.Branches), len(reg.Enabled()))
	return nil
}

// check downloads every enabled sheet-backed branch and verifies it parses with the given columns.
func check(columns dataset.Columns, timeout time.Duration) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	fetcher := sheet.NewFetcher(commonhttp.NewClient(timeout), 0, logger.NewNoOpLogger())
	src := sheet.NewDatasetSource(fetcher)

	failed := 0
	for _, b := range reg.Enabled() {
		if b.URL == "" {
			fmt.Printf("  SKIP  %s (no sheet url)\n", b.Name)
			continue
		}
		src.Add(b.Name, b.URL)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		rows, err := fetchAndParse(ctx, src, b.Name, columns)
		cancel()
		if err != nil {
			failed++
			fmt.Printf("  FAIL  %s: %v\n", b.Name, err)
			continue
		}
		fmt.Printf("  OK    %s (%d rows)\n", b.Name, rows)
	}

	if failed > 0 {
		return fmt.Errorf("%d branch(es) failed", failed)
	}
	return nil
}

func fetchAndParse(ctx context.Context, src *sheet.DatasetSource, branch string, columns dataset.Columns) (int, error) {
	table, err := src.FetchTable(ctx, branch)
	if err != nil {
		return 0, err
	}
	rows, err := dataset.Parse(table, columns, branch)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func help() {
	fmt.Print(`
Usage: branch-registry <command> [flags]

Commands:
  add       Add a branch to the registry
  set       Update a branch field (url, index, disabled)
  validate  Validate the registry file
  check     Fetch every enabled sheet branch and verify its columns
  help      Show this help message

Examples:
  branch-registry add -name "Сочинские ЭС" -url https://docs.google.com/spreadsheets/d/e/XXX/pubhtml
  branch-registry set -name "Сочинские ЭС" -field disabled -value true
  branch-registry check -path configs/branches.json

Use 'branch-registry <command> -h' for more information about a command.
`)
}
